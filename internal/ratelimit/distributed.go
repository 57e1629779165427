package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sheetwise/gateway/internal/observability"
	"github.com/sheetwise/gateway/internal/store"
)

// Config holds configuration for the distributed limiter.
type Config struct {
	// Quotas maps endpoint classes to their limits. The DefaultClass
	// entry applies to requests matching no other class.
	Quotas map[string]Quota

	// FallbackMode is the degraded-store policy.
	FallbackMode FallbackMode

	// Logger for the limiter.
	Logger observability.Logger

	// Metrics for the limiter; fresh unregistered collectors are used
	// when nil.
	Metrics *Metrics
}

// fallbackQuota is applied when a class resolves to no configured
// quota at all, not even DefaultClass.
var fallbackQuota = Quota{Requests: 100, Window: time.Minute}

// DefaultConfig returns a Config with a conservative default quota and
// the local fallback policy.
func DefaultConfig() *Config {
	return &Config{
		Quotas: map[string]Quota{
			DefaultClass: fallbackQuota,
		},
		FallbackMode: FallbackLocal,
	}
}

// DistributedLimiter enforces quotas with atomic increment-with-expiry
// operations against the coordination store, so limits hold across all
// gateway replicas. Each window is a counter that the store expires;
// buckets are created on demand and never explicitly deleted.
type DistributedLimiter struct {
	store    store.Store
	fallback *localFallback
	mode     FallbackMode
	logger   observability.Logger
	metrics  *Metrics

	mu     sync.RWMutex
	quotas map[string]Quota
}

// NewDistributedLimiter creates a store-backed limiter.
func NewDistributedLimiter(s store.Store, config *Config) (*DistributedLimiter, error) {
	if s == nil {
		return nil, fmt.Errorf("coordination store is required")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if len(config.Quotas) == 0 {
		config.Quotas = DefaultConfig().Quotas
	}
	if !config.FallbackMode.Valid() {
		config.FallbackMode = FallbackLocal
	}

	logger := config.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}

	metrics := config.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}

	l := &DistributedLimiter{
		store:   s,
		quotas:  config.Quotas,
		mode:    config.FallbackMode,
		logger:  logger,
		metrics: metrics,
	}

	if config.FallbackMode == FallbackLocal {
		l.fallback = newLocalFallback(config.Quotas)
	}

	return l, nil
}

// Allow implements Limiter. The bucket counter is atomically
// incremented, creating it with the window's TTL when absent, and
// compared against the class quota.
func (l *DistributedLimiter) Allow(ctx context.Context, class, subject string) (*Result, error) {
	quota := l.Limit(class)
	key := BucketKey(class, subject)

	count, err := l.store.IncrementWithExpiry(ctx, key, 1, quota.Window)
	if err != nil {
		return l.allowDegraded(ctx, class, subject, quota, err)
	}

	resetAfter, ttlErr := l.store.TTL(ctx, key)
	if ttlErr != nil || resetAfter <= 0 {
		// The bucket exists but its TTL could not be read; assume a
		// full window for the Retry-After signal.
		resetAfter = quota.Window
	}

	if count > int64(quota.Requests) {
		l.metrics.RecordDecision(class, "rejected")
		return &Result{
			Allowed:    false,
			Limit:      quota.Requests,
			Remaining:  0,
			ResetAfter: resetAfter,
			RetryAfter: resetAfter,
		}, nil
	}

	l.metrics.RecordDecision(class, "admitted")
	return &Result{
		Allowed:    true,
		Limit:      quota.Requests,
		Remaining:  quota.Requests - int(count),
		ResetAfter: resetAfter,
	}, nil
}

// allowDegraded applies the configured fallback policy when the store
// is unreachable. The decision is explicit and observable: every
// degraded admission is logged and counted.
func (l *DistributedLimiter) allowDegraded(
	ctx context.Context, class, subject string, quota Quota, cause error,
) (*Result, error) {
	l.metrics.RecordFallback(class, string(l.mode))
	l.logger.Warn("coordination store unreachable, applying rate limit fallback policy",
		observability.String("class", class),
		observability.String("mode", string(l.mode)),
		observability.Error(cause),
	)

	switch l.mode {
	case FallbackDeny:
		l.metrics.RecordDecision(class, "rejected")
		return &Result{
			Allowed:    false,
			Limit:      quota.Requests,
			ResetAfter: quota.Window,
			RetryAfter: quota.Window,
		}, nil

	case FallbackLocal:
		res := l.fallback.allow(class, subject, quota)
		if res.Allowed {
			l.metrics.RecordDecision(class, "admitted")
		} else {
			l.metrics.RecordDecision(class, "rejected")
		}
		return res, nil

	default: // FallbackAllow
		l.metrics.RecordDecision(class, "admitted")
		return &Result{
			Allowed:   true,
			Limit:     quota.Requests,
			Remaining: quota.Requests,
		}, nil
	}
}

// Limit implements Limiter. When neither the class nor DefaultClass is
// present in the quota table (possible after a hot-reload that dropped
// the default entry), a built-in quota applies: a zero Quota would
// reject all unmatched traffic and write bucket keys with no expiry.
func (l *DistributedLimiter) Limit(class string) Quota {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if q, ok := l.quotas[class]; ok {
		return q
	}
	if q, ok := l.quotas[DefaultClass]; ok {
		return q
	}
	return fallbackQuota
}

// Reset implements Limiter.
func (l *DistributedLimiter) Reset(ctx context.Context, class, subject string) error {
	return l.store.Delete(ctx, BucketKey(class, subject))
}

// UpdateQuotas swaps in a new quota table. Used by config hot-reload.
func (l *DistributedLimiter) UpdateQuotas(quotas map[string]Quota) {
	if len(quotas) == 0 {
		return
	}
	l.mu.Lock()
	l.quotas = quotas
	l.mu.Unlock()
	if l.fallback != nil {
		l.fallback.updateQuotas(quotas)
	}
	l.logger.Info("rate limit quotas updated",
		observability.Int("classes", len(quotas)),
	)
}

// Close releases fallback limiter resources.
func (l *DistributedLimiter) Close() error {
	if l.fallback != nil {
		l.fallback.stop()
	}
	return nil
}
