package storage

import (
	"context"
	"errors"
)

// KV defines the interface for key-value persistence backends.
// Implementations must be safe for concurrent use.
type KV interface {
	// Get retrieves the value stored under key.
	// Returns ("", false, nil) if the key doesn't exist.
	// Returns ("", false, err) on backend errors.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set stores value under key, overwriting any previous value in full.
	Set(ctx context.Context, key, value string) error

	// Close releases any resources held by the store.
	// Backends never close clients or connections they were handed.
	Close() error
}

// ErrClosed is returned when operations are attempted on a closed store.
var ErrClosed = errors.New("storage: store is closed")
