package cache

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyIsQueryOrderInsensitive(t *testing.T) {
	a, err := url.ParseQuery("b=2&a=1")
	require.NoError(t, err)
	b, err := url.ParseQuery("a=1&b=2")
	require.NoError(t, err)

	assert.Equal(t, Key("GET", "/v1/suggestions", a), Key("GET", "/v1/suggestions", b))
}

func TestKeyDistinguishesRequests(t *testing.T) {
	q, err := url.ParseQuery("a=1")
	require.NoError(t, err)

	base := Key("GET", "/v1/suggestions", q)

	assert.NotEqual(t, base, Key("HEAD", "/v1/suggestions", q))
	assert.NotEqual(t, base, Key("GET", "/v1/other", q))

	q2, err := url.ParseQuery("a=2")
	require.NoError(t, err)
	assert.NotEqual(t, base, Key("GET", "/v1/suggestions", q2))
}

func TestKeyNormalizesMethodCase(t *testing.T) {
	assert.Equal(t, Key("get", "/p", nil), Key("GET", "/p", nil))
}

func runCacheContract(t *testing.T, c Cache) {
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	assert.True(t, IsMiss(err))

	require.NoError(t, c.Set(ctx, "k1", []byte("hello"), time.Minute))

	got, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)

	require.NoError(t, c.Delete(ctx, "k1"))
	_, err = c.Get(ctx, "k1")
	assert.True(t, IsMiss(err))

	// Deleting an absent key is not an error.
	assert.NoError(t, c.Delete(ctx, "k1"))
}

func TestMemoryCacheContract(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	runCacheContract(t, c)
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", []byte("v"), 10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)

	_, err := c.Get(ctx, "k1")
	assert.True(t, IsMiss(err))
}

func TestMemoryCacheCopiesValues(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	value := []byte("original")
	require.NoError(t, c.Set(ctx, "k1", value, time.Minute))
	value[0] = 'X'

	got, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), got)

	// Mutating the returned slice must not corrupt the stored entry.
	got[0] = 'Y'
	again, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), again)
}

func TestRedisCacheContract(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	runCacheContract(t, NewRedisCache(client))
}

func TestRedisCacheExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := NewRedisCache(client)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", []byte("v"), time.Second))
	mr.FastForward(2 * time.Second)

	_, err := c.Get(ctx, "k1")
	assert.True(t, IsMiss(err))
}
