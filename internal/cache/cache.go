// Package cache provides the response cache backing the gateway's
// read-path short circuit, with Redis and in-memory backends.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned when a key is not present in the cache.
var ErrCacheMiss = errors.New("cache miss")

// Cache is the backend interface for cached response bytes.
type Cache interface {
	// Get returns the cached value for key, or ErrCacheMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key for the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key from the cache. Deleting an absent key is not
	// an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// IsMiss reports whether err represents a cache miss.
func IsMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}
