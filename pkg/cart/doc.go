// Package cart implements the shopping cart store.
//
// A Store holds the cart in memory and mirrors it to a storage.KV after
// every change. The cart is an ordered list of items with unique IDs and
// quantities of at least one:
//
//	kv := storage.NewMemoryStore()
//	store, err := cart.New(kv)
//	if err != nil {
//	    return err
//	}
//	store.Start(ctx)
//	defer store.Close(ctx)
//
//	store.AddToCart(cart.Product{ID: "1", Title: "Mug", Price: cart.NewPrice(9.5)})
//	store.Increment("1")
//	store.Decrement("1")
//
// # Hydration
//
// Start reads the persisted cart in the background. Operations never wait
// for it: anything done before hydration finishes acts on the empty cart,
// and a successfully loaded value replaces it. Malformed data leaves the
// cart empty and is reported by HydrateErr.
//
// # Persistence
//
// Every change is serialized immediately and written by a single background
// goroutine, in order, overwriting the stored value in full. Failed writes
// are logged and counted but never retried or returned to the caller. Flush
// waits for pending writes.
//
// # Scoping
//
// Handlers reach the store through a context. WithStore and the Provider
// middleware scope it; Use panics when no store is in scope.
package cart
