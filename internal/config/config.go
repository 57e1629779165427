package config

import (
	"fmt"
	"time"

	"github.com/sheetwise/gateway/internal/ratelimit"
)

// Config is the root gateway configuration.
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Redis     RedisConfig      `yaml:"redis"`
	Auth      AuthConfig       `yaml:"auth"`
	RateLimit RateLimitConfig  `yaml:"rate_limit"`
	Breaker   BreakerConfig    `yaml:"breaker"`
	Cache     CacheConfig      `yaml:"cache"`
	Upstreams []UpstreamConfig `yaml:"upstreams"`
	Log       LogConfig        `yaml:"log"`
	Tracing   TracingConfig    `yaml:"tracing"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	ListenAddress   string   `yaml:"listen_address"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	IdleTimeout     Duration `yaml:"idle_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// RedisConfig configures the coordination store connection.
type RedisConfig struct {
	Address      string   `yaml:"address"`
	Password     string   `yaml:"password"`
	DB           int      `yaml:"db"`
	Prefix       string   `yaml:"prefix"`
	PoolSize     int      `yaml:"pool_size"`
	MinIdleConns int      `yaml:"min_idle_conns"`
	OpTimeout    Duration `yaml:"op_timeout"`
}

// AuthConfig configures token issuance and verification.
type AuthConfig struct {
	Issuer     string   `yaml:"issuer"`
	SigningKey string   `yaml:"signing_key"`
	AccessTTL  Duration `yaml:"access_ttl"`
	RefreshTTL Duration `yaml:"refresh_ttl"`
}

// ClassConfig declares one endpoint class: which path prefix selects
// it and its quota. Classes are hot-reloadable.
type ClassConfig struct {
	Prefix   string   `yaml:"prefix"`
	Requests int      `yaml:"requests"`
	Window   Duration `yaml:"window"`
}

// RateLimitConfig configures the distributed rate limiter.
type RateLimitConfig struct {
	FallbackMode string                 `yaml:"fallback_mode"`
	Classes      map[string]ClassConfig `yaml:"classes"`
}

// Quotas converts the class table to the limiter's quota map.
func (c RateLimitConfig) Quotas() map[string]ratelimit.Quota {
	quotas := make(map[string]ratelimit.Quota, len(c.Classes))
	for name, class := range c.Classes {
		quotas[name] = ratelimit.Quota{
			Requests: class.Requests,
			Window:   class.Window.Std(),
		}
	}
	return quotas
}

// ClassPrefixes returns the path-prefix routing table for class
// resolution. Classes without a prefix apply only as the default.
func (c RateLimitConfig) ClassPrefixes() map[string]string {
	prefixes := make(map[string]string)
	for name, class := range c.Classes {
		if class.Prefix != "" {
			prefixes[class.Prefix] = name
		}
	}
	return prefixes
}

// BreakerConfig configures the per-dependency circuit breakers.
type BreakerConfig struct {
	FailureThreshold int      `yaml:"failure_threshold"`
	ResetTimeout     Duration `yaml:"reset_timeout"`
	TrialCalls       int      `yaml:"trial_calls"`
	Window           Duration `yaml:"window"`
}

// CacheConfig configures the response cache. ExcludedPaths lists path
// prefixes that must never be cached, such as endpoints whose GET
// responses are principal-specific.
type CacheConfig struct {
	Enabled       bool     `yaml:"enabled"`
	TTL           Duration `yaml:"ttl"`
	ExcludedPaths []string `yaml:"excluded_paths"`
}

// UpstreamConfig declares one downstream service and the route prefix
// the gateway fronts it under.
type UpstreamConfig struct {
	Name    string   `yaml:"name"`
	Prefix  string   `yaml:"prefix"`
	BaseURL string   `yaml:"base_url"`
	Timeout Duration `yaml:"timeout"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracingConfig configures OTLP trace export.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.ListenAddress == "" {
		return fmt.Errorf("server.listen_address is required")
	}
	if c.Redis.Address == "" {
		return fmt.Errorf("redis.address is required")
	}
	if c.Auth.SigningKey == "" {
		return fmt.Errorf("auth.signing_key is required")
	}
	if len(c.Auth.SigningKey) < 32 {
		return fmt.Errorf("auth.signing_key must be at least 32 bytes")
	}
	if c.Auth.Issuer == "" {
		return fmt.Errorf("auth.issuer is required")
	}

	if mode := ratelimit.FallbackMode(c.RateLimit.FallbackMode); c.RateLimit.FallbackMode != "" && !mode.Valid() {
		return fmt.Errorf("rate_limit.fallback_mode: unknown mode %q", c.RateLimit.FallbackMode)
	}
	for name, class := range c.RateLimit.Classes {
		if class.Requests < 1 {
			return fmt.Errorf("rate_limit.classes.%s: requests must be positive", name)
		}
		if class.Window.Std() < time.Second {
			return fmt.Errorf("rate_limit.classes.%s: window must be at least 1s", name)
		}
	}

	if len(c.Upstreams) == 0 {
		return fmt.Errorf("at least one upstream is required")
	}
	seen := make(map[string]bool, len(c.Upstreams))
	for i, u := range c.Upstreams {
		if u.Name == "" {
			return fmt.Errorf("upstreams[%d]: name is required", i)
		}
		if seen[u.Name] {
			return fmt.Errorf("upstreams[%d]: duplicate name %q", i, u.Name)
		}
		seen[u.Name] = true
		if u.BaseURL == "" {
			return fmt.Errorf("upstream %s: base_url is required", u.Name)
		}
		if u.Prefix == "" {
			return fmt.Errorf("upstream %s: prefix is required", u.Name)
		}
	}
	return nil
}

// applyDefaults fills unset fields.
func (c *Config) applyDefaults() {
	if c.Server.ListenAddress == "" {
		c.Server.ListenAddress = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = Duration(15 * time.Second)
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = Duration(30 * time.Second)
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = Duration(60 * time.Second)
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = Duration(15 * time.Second)
	}

	if c.Auth.AccessTTL == 0 {
		c.Auth.AccessTTL = Duration(15 * time.Minute)
	}
	if c.Auth.RefreshTTL == 0 {
		c.Auth.RefreshTTL = Duration(7 * 24 * time.Hour)
	}

	if c.RateLimit.FallbackMode == "" {
		c.RateLimit.FallbackMode = string(ratelimit.FallbackLocal)
	}
	if c.RateLimit.Classes == nil {
		c.RateLimit.Classes = map[string]ClassConfig{}
	}
	if _, ok := c.RateLimit.Classes[ratelimit.DefaultClass]; !ok {
		c.RateLimit.Classes[ratelimit.DefaultClass] = ClassConfig{Requests: 100, Window: Duration(time.Minute)}
	}

	if c.Breaker.FailureThreshold == 0 {
		c.Breaker.FailureThreshold = 5
	}
	if c.Breaker.ResetTimeout == 0 {
		c.Breaker.ResetTimeout = Duration(30 * time.Second)
	}
	if c.Breaker.Window == 0 {
		c.Breaker.Window = Duration(time.Minute)
	}

	if c.Cache.TTL == 0 {
		c.Cache.TTL = Duration(30 * time.Second)
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}

	if c.Tracing.SamplingRate == 0 {
		c.Tracing.SamplingRate = 0.1
	}
}
