// Package store provides the coordination store client: a thin layer
// over a shared key-value store with TTL and single-key atomicity.
// Every cross-replica concern (token fingerprints, revocation entries,
// rate-limit buckets, cached responses) goes through this interface.
package store

import (
	"context"
	"time"
)

// Store defines the coordination store operations. Implementations
// guarantee single-key atomicity; no multi-key transactions are
// offered or required.
type Store interface {
	// Get retrieves the value for the given key.
	// Returns *ErrKeyNotFound if the key does not exist.
	Get(ctx context.Context, key string) (string, error)

	// Set stores a value with an expiration. A zero expiration means
	// the key never expires.
	Set(ctx context.Context, key, value string, expiration time.Duration) error

	// Delete removes the key from the store.
	Delete(ctx context.Context, key string) error

	// Exists reports whether the key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// IncrementWithExpiry atomically increments the counter at key by
	// delta, setting the expiration if the key is created by this call.
	IncrementWithExpiry(ctx context.Context, key string, delta int64, expiration time.Duration) (int64, error)

	// TTL returns the remaining time-to-live for the key, or zero if
	// the key has no expiration or does not exist.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Ping verifies connectivity to the store.
	Ping(ctx context.Context) error

	// Close closes the store and releases resources.
	Close() error
}

// ErrKeyNotFound is returned when a key is not found in the store.
type ErrKeyNotFound struct {
	Key string
}

func (e *ErrKeyNotFound) Error() string {
	return "key not found: " + e.Key
}

// IsKeyNotFound returns true if the error is a key not found error.
func IsKeyNotFound(err error) bool {
	_, ok := err.(*ErrKeyNotFound)
	return ok
}
