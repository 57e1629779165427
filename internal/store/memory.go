package store

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// entry represents a stored value with expiration.
type entry struct {
	value      string
	expiration time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiration.IsZero() && now.After(e.expiration)
}

// MemoryStore implements Store using in-process memory. It is intended
// for tests and single-replica deployments; expired entries are lazily
// dropped on access and swept by a background ticker.
type MemoryStore struct {
	mu      sync.Mutex
	data    map[string]*entry
	cleanup *time.Ticker
	done    chan struct{}
	closed  bool
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithCleanupInterval(time.Minute)
}

// NewMemoryStoreWithCleanupInterval creates a new in-memory store with a
// custom cleanup interval.
func NewMemoryStoreWithCleanupInterval(interval time.Duration) *MemoryStore {
	s := &MemoryStore{
		data:    make(map[string]*entry),
		cleanup: time.NewTicker(interval),
		done:    make(chan struct{}),
	}

	go s.startCleanup()

	return s
}

func (s *MemoryStore) startCleanup() {
	for {
		select {
		case <-s.cleanup.C:
			s.sweep()
		case <-s.done:
			return
		}
	}
}

func (s *MemoryStore) sweep() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, e := range s.data {
		if e.expired(now) {
			delete(s.data, key)
		}
	}
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[key]
	if !ok || e.expired(time.Now()) {
		delete(s.data, key)
		return "", &ErrKeyNotFound{Key: key}
	}
	return e.value, nil
}

// Set implements Store.
func (s *MemoryStore) Set(ctx context.Context, key, value string, expiration time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var exp time.Time
	if expiration > 0 {
		exp = time.Now().Add(expiration)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = &entry{value: value, expiration: exp}
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Exists implements Store.
func (s *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[key]
	if !ok {
		return false, nil
	}
	if e.expired(time.Now()) {
		delete(s.data, key)
		return false, nil
	}
	return true, nil
}

// IncrementWithExpiry implements Store.
func (s *MemoryStore) IncrementWithExpiry(
	ctx context.Context, key string, delta int64, expiration time.Duration,
) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[key]
	if !ok || e.expired(now) {
		var exp time.Time
		if expiration > 0 {
			exp = now.Add(expiration)
		}
		s.data[key] = &entry{value: strconv.FormatInt(delta, 10), expiration: exp}
		return delta, nil
	}

	current, err := strconv.ParseInt(e.value, 10, 64)
	if err != nil {
		return 0, err
	}
	current += delta
	e.value = strconv.FormatInt(current, 10)
	return current, nil
}

// TTL implements Store.
func (s *MemoryStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[key]
	if !ok || e.expiration.IsZero() {
		return 0, nil
	}
	ttl := time.Until(e.expiration)
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// Ping implements Store.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.cleanup.Stop()
	close(s.done)
	return nil
}
