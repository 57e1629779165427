package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sheetwise/gateway/internal/observability"
)

// incrementWithExpiryScript atomically increments a counter and sets
// the expiration when the key is created by this call.
// KEYS[1] = key, ARGV[1] = delta, ARGV[2] = expiration in milliseconds.
var incrementWithExpiryScript = redis.NewScript(`
	local current = redis.call('INCRBY', KEYS[1], ARGV[1])
	if current == tonumber(ARGV[1]) and tonumber(ARGV[2]) > 0 then
		redis.call('PEXPIRE', KEYS[1], ARGV[2])
	end
	return current
`)

// RedisConfig holds configuration for the Redis store.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string

	PoolSize     int
	MinIdleConns int
	MaxRetries   int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// OpTimeout bounds every store operation regardless of the
	// caller's context.
	OpTimeout time.Duration

	Logger observability.Logger
}

// DefaultRedisConfig returns a RedisConfig with default values.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Address:      "localhost:6379",
		DB:           0,
		Prefix:       "gw:",
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		OpTimeout:    2 * time.Second,
	}
}

// RedisStore implements Store using Redis.
type RedisStore struct {
	client    *redis.Client
	prefix    string
	opTimeout time.Duration
	logger    observability.Logger
	closed    bool
	mu        sync.Mutex
}

// NewRedisStore creates a new Redis-backed coordination store.
func NewRedisStore(config *RedisConfig) (*RedisStore, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}
	logger := config.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Address,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		MaxRetries:   config.MaxRetries,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	opTimeout := config.OpTimeout
	if opTimeout <= 0 {
		opTimeout = 2 * time.Second
	}

	s := &RedisStore{
		client:    client,
		prefix:    config.Prefix,
		opTimeout: opTimeout,
		logger:    logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", config.Address, err)
	}

	logger.Info("connected to coordination store",
		observability.String("address", config.Address),
		observability.Int("db", config.DB),
	)

	return s, nil
}

// opContext derives a bounded context for a single store operation.
func (s *RedisStore) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	value, err := s.client.Get(ctx, s.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", &ErrKeyNotFound{Key: key}
		}
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	return value, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key, value string, expiration time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if err := s.client.Set(ctx, s.prefix+key, value, expiration).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// Exists implements Store.
func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	n, err := s.client.Exists(ctx, s.prefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists failed: %w", err)
	}
	return n > 0, nil
}

// IncrementWithExpiry implements Store.
func (s *RedisStore) IncrementWithExpiry(
	ctx context.Context, key string, delta int64, expiration time.Duration,
) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	result, err := incrementWithExpiryScript.Run(ctx, s.client,
		[]string{s.prefix + key},
		delta,
		expiration.Milliseconds(),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis increment failed: %w", err)
	}
	return result, nil
}

// TTL implements Store.
func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	ttl, err := s.client.PTTL(ctx, s.prefix+key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis pttl failed: %w", err)
	}
	// Redis returns -1 for no expiration and -2 for a missing key.
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// Ping implements Store.
func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	return s.client.Ping(ctx).Err()
}

// Close implements Store.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}

// Client exposes the underlying Redis client for health checks.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}
