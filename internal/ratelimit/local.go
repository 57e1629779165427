package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Local fallback limiter tuning.
const (
	// localEntryTTL is how long an idle per-subject limiter is kept.
	localEntryTTL = 10 * time.Minute

	// localCleanupInterval is how often idle limiters are swept.
	localCleanupInterval = time.Minute
)

// localEntry holds a token-bucket limiter and its last access time.
type localEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// localFallback enforces quotas per replica with in-process token
// buckets while the coordination store is unreachable. One limiter per
// (class, subject), created on demand and swept after idling.
type localFallback struct {
	mu      sync.Mutex
	entries map[string]*localEntry
	quotas  map[string]Quota
	stopCh  chan struct{}
	once    sync.Once
}

func newLocalFallback(quotas map[string]Quota) *localFallback {
	f := &localFallback{
		entries: make(map[string]*localEntry),
		quotas:  quotas,
		stopCh:  make(chan struct{}),
	}

	go f.startCleanup()

	return f
}

func (f *localFallback) allow(class, subject string, quota Quota) *Result {
	now := time.Now()
	key := class + ":" + subject

	f.mu.Lock()
	e, ok := f.entries[key]
	if !ok {
		limit := rate.Limit(float64(quota.Requests) / quota.Window.Seconds())
		e = &localEntry{
			limiter: rate.NewLimiter(limit, quota.Requests),
		}
		f.entries[key] = e
	}
	e.lastAccess = now
	limiter := e.limiter
	f.mu.Unlock()

	if limiter.Allow() {
		return &Result{
			Allowed:   true,
			Limit:     quota.Requests,
			Remaining: int(limiter.Tokens()),
		}
	}

	return &Result{
		Allowed:    false,
		Limit:      quota.Requests,
		ResetAfter: quota.Window,
		RetryAfter: quota.Window,
	}
}

func (f *localFallback) updateQuotas(quotas map[string]Quota) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quotas = quotas
	// Existing limiters keep their old rate until swept; new requests
	// after the sweep pick up the new quota.
	f.entries = make(map[string]*localEntry)
}

func (f *localFallback) startCleanup() {
	ticker := time.NewTicker(localCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			f.sweep()
		case <-f.stopCh:
			return
		}
	}
}

func (f *localFallback) sweep() {
	now := time.Now()
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, e := range f.entries {
		if now.Sub(e.lastAccess) > localEntryTTL {
			delete(f.entries, key)
		}
	}
}

func (f *localFallback) stop() {
	f.once.Do(func() { close(f.stopCh) })
}
