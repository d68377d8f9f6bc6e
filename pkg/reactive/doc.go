// Package reactive provides a small typed value container with change
// subscriptions.
//
// A Signal holds one value. Set and Update replace it and, when the new value
// differs from the old one, call every subscriber with the new value:
//
//	count := reactive.NewSignal(0)
//	stop := count.Subscribe(func(n int) { fmt.Println("count is", n) })
//	defer stop()
//
//	count.Set(1)                                // prints "count is 1"
//	count.Update(func(n int) int { return n + 1 }) // prints "count is 2"
//	count.Set(2)                                // equal value, nothing printed
//
// Subscribers run synchronously on the goroutine that changed the value,
// after the value lock has been released, in subscription order.
package reactive
