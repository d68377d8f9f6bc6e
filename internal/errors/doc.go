// Package errors provides structured, coded errors for the marketplace cart.
//
// Each error has a unique code (e.g., "E010") that maps to a registered
// template with a category, a short message, a longer detail, and an
// optional hint:
//
//   - usage: programmer errors, such as using the cart store outside a provider
//   - storage: persistence backend failures and malformed persisted data
//   - config: configuration file problems
//   - cli: command line errors
//
// # Usage
//
//	err := errors.New("E012").Wrap(cause)
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR E012: Storage write failed
//	//
//	//   The storage backend returned an error while saving the cart. Writes
//	//   are not retried.
//	//
//	//   Cause: dial tcp 127.0.0.1:6379: connect: connection refused
//
// Errors created from the same code match with errors.Is:
//
//	if errors.Is(err, cerrors.New("E010")) { ... }
package errors
