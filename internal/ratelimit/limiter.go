// Package ratelimit enforces per-endpoint-class, per-principal request
// quotas across all gateway replicas via the coordination store.
package ratelimit

import (
	"context"
	"time"
)

// Limiter defines the interface for rate limiting.
type Limiter interface {
	// Allow checks whether one request for the given endpoint class and
	// subject key is admitted within the class quota.
	Allow(ctx context.Context, class, subject string) (*Result, error)

	// Limit returns the quota configured for the given endpoint class.
	Limit(class string) Quota

	// Reset clears the bucket for the given endpoint class and subject.
	Reset(ctx context.Context, class, subject string) error
}

// Quota is the configured limit for one endpoint class.
type Quota struct {
	// Requests is the maximum number of requests allowed in the window.
	Requests int

	// Window is the time window for the quota.
	Window time.Duration
}

// Result represents the outcome of a rate limit check.
type Result struct {
	// Allowed indicates whether the request is admitted.
	Allowed bool

	// Limit is the quota ceiling for the endpoint class.
	Limit int

	// Remaining is the number of requests left in the current window.
	Remaining int

	// ResetAfter is the duration until the window resets.
	ResetAfter time.Duration

	// RetryAfter is the duration to wait before retrying (when rejected).
	RetryAfter time.Duration
}

// FallbackMode selects the degraded-store policy: what the limiter does
// when the coordination store cannot be reached.
type FallbackMode string

const (
	// FallbackAllow admits all traffic while the store is down,
	// prioritizing availability over quota enforcement.
	FallbackAllow FallbackMode = "allow"

	// FallbackDeny rejects all traffic while the store is down.
	FallbackDeny FallbackMode = "deny"

	// FallbackLocal enforces quotas with a per-replica token bucket
	// while the store is down. Limits hold per replica, not globally.
	FallbackLocal FallbackMode = "local"
)

// Valid reports whether the mode is one of the known policies.
func (m FallbackMode) Valid() bool {
	switch m {
	case FallbackAllow, FallbackDeny, FallbackLocal:
		return true
	}
	return false
}

// DefaultClass is the endpoint class applied when no explicit class
// matches the request.
const DefaultClass = "default"

// NoopLimiter admits every request. Used when rate limiting is disabled.
type NoopLimiter struct{}

// NewNoopLimiter creates a limiter that always admits.
func NewNoopLimiter() *NoopLimiter {
	return &NoopLimiter{}
}

// Allow implements Limiter.
func (l *NoopLimiter) Allow(_ context.Context, _, _ string) (*Result, error) {
	return &Result{Allowed: true}, nil
}

// Limit implements Limiter.
func (l *NoopLimiter) Limit(_ string) Quota {
	return Quota{}
}

// Reset implements Limiter.
func (l *NoopLimiter) Reset(_ context.Context, _, _ string) error {
	return nil
}
