package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	s, err := NewRedisStore(&RedisConfig{
		Address:   mr.Addr(),
		Prefix:    "test:",
		OpTimeout: time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s, mr
}

func TestRedisStoreSetGet(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k1", "v1", time.Minute))

	value, err := s.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "v1", value)
}

func TestRedisStoreGetMissing(t *testing.T) {
	s, _ := newTestRedisStore(t)

	_, err := s.Get(context.Background(), "absent")
	require.Error(t, err)
	assert.True(t, IsKeyNotFound(err))
}

func TestRedisStoreDelete(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k1", "v1", time.Minute))
	require.NoError(t, s.Delete(ctx, "k1"))

	_, err := s.Get(ctx, "k1")
	assert.True(t, IsKeyNotFound(err))

	// Deleting an absent key is not an error.
	assert.NoError(t, s.Delete(ctx, "k1"))
}

func TestRedisStoreExists(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()

	ok, err := s.Exists(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "k1", "v1", time.Minute))

	ok, err = s.Exists(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisStoreExpiration(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k1", "v1", time.Second))

	mr.FastForward(2 * time.Second)

	_, err := s.Get(ctx, "k1")
	assert.True(t, IsKeyNotFound(err))
}

func TestRedisStoreIncrementWithExpiry(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()

	count, err := s.IncrementWithExpiry(ctx, "counter", 1, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = s.IncrementWithExpiry(ctx, "counter", 1, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	ttl, err := s.TTL(ctx, "counter")
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)
}

func TestRedisStoreIncrementKeepsOriginalWindow(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()

	_, err := s.IncrementWithExpiry(ctx, "counter", 1, 10*time.Second)
	require.NoError(t, err)

	mr.FastForward(4 * time.Second)

	// Subsequent increments must not extend the window.
	_, err = s.IncrementWithExpiry(ctx, "counter", 1, 10*time.Second)
	require.NoError(t, err)

	ttl, err := s.TTL(ctx, "counter")
	require.NoError(t, err)
	assert.LessOrEqual(t, ttl, 6*time.Second)
}

func TestRedisStoreCounterResetsAfterWindow(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()

	count, err := s.IncrementWithExpiry(ctx, "counter", 1, time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	mr.FastForward(2 * time.Second)

	count, err = s.IncrementWithExpiry(ctx, "counter", 1, time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRedisStoreTTLMissingKey(t *testing.T) {
	s, _ := newTestRedisStore(t)

	ttl, err := s.TTL(context.Background(), "absent")
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), ttl)
}

func TestRedisStorePing(t *testing.T) {
	s, mr := newTestRedisStore(t)

	assert.NoError(t, s.Ping(context.Background()))

	mr.Close()
	assert.Error(t, s.Ping(context.Background()))
}

func TestRedisStoreCanceledContext(t *testing.T) {
	s, _ := newTestRedisStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Get(ctx, "k1")
	assert.ErrorIs(t, err, context.Canceled)
}
