package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheetwise/gateway/internal/ratelimit"
)

const validYAML = `
server:
  listen_address: ":8080"
redis:
  address: "localhost:6379"
auth:
  issuer: "test-gateway"
  signing_key: "0123456789abcdef0123456789abcdef"
  access_ttl: 10m
rate_limit:
  fallback_mode: deny
  classes:
    formula.suggest:
      prefix: /api/v1/ai/formula/suggest
      requests: 30
      window: 1m
    default:
      requests: 100
      window: 1m
upstreams:
  - name: ai
    prefix: /api/v1/ai
    base_url: "http://ai:8081"
    timeout: 20s
`

func TestParseValid(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.ListenAddress)
	assert.Equal(t, 10*time.Minute, cfg.Auth.AccessTTL.Std())
	assert.Equal(t, "deny", cfg.RateLimit.FallbackMode)
	assert.Equal(t, 20*time.Second, cfg.Upstreams[0].Timeout.Std())

	quotas := cfg.RateLimit.Quotas()
	assert.Equal(t, ratelimit.Quota{Requests: 30, Window: time.Minute}, quotas["formula.suggest"])

	prefixes := cfg.RateLimit.ClassPrefixes()
	assert.Equal(t, "formula.suggest", prefixes["/api/v1/ai/formula/suggest"])
	// The default class has no prefix and must not appear in the table.
	assert.Len(t, prefixes, 1)
}

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	require.NoError(t, err)

	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout.Std())
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTTL.Std())
	assert.Equal(t, 5, cfg.Breaker.FailureThreshold)
	assert.Equal(t, 30*time.Second, cfg.Breaker.ResetTimeout.Std())
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL.Std())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestParseAlwaysProvidesDefaultClass(t *testing.T) {
	// A class table that names only specific endpoints still receives a
	// default entry, so unmatched traffic always has a usable quota.
	cfg, err := Parse([]byte(`
server: {listen_address: ":8080"}
redis: {address: "localhost:6379"}
auth: {issuer: t, signing_key: "0123456789abcdef0123456789abcdef"}
rate_limit:
  classes:
    formula.suggest: {prefix: /api/v1/ai/formula/suggest, requests: 30, window: 1m}
upstreams: [{name: ai, prefix: /a, base_url: "http://ai"}]
`))
	require.NoError(t, err)

	quotas := cfg.RateLimit.Quotas()
	def, ok := quotas[ratelimit.DefaultClass]
	require.True(t, ok)
	assert.Equal(t, 100, def.Requests)
	assert.Equal(t, time.Minute, def.Window)
}

func TestParseRejections(t *testing.T) {
	cases := map[string]string{
		"missing redis address": `
server: {listen_address: ":8080"}
auth: {issuer: t, signing_key: "0123456789abcdef0123456789abcdef"}
upstreams: [{name: ai, prefix: /a, base_url: "http://ai"}]
`,
		"short signing key": `
server: {listen_address: ":8080"}
redis: {address: "localhost:6379"}
auth: {issuer: t, signing_key: "too-short"}
upstreams: [{name: ai, prefix: /a, base_url: "http://ai"}]
`,
		"missing issuer": `
server: {listen_address: ":8080"}
redis: {address: "localhost:6379"}
auth: {signing_key: "0123456789abcdef0123456789abcdef"}
upstreams: [{name: ai, prefix: /a, base_url: "http://ai"}]
`,
		"bad fallback mode": `
server: {listen_address: ":8080"}
redis: {address: "localhost:6379"}
auth: {issuer: t, signing_key: "0123456789abcdef0123456789abcdef"}
rate_limit: {fallback_mode: maybe}
upstreams: [{name: ai, prefix: /a, base_url: "http://ai"}]
`,
		"zero quota": `
server: {listen_address: ":8080"}
redis: {address: "localhost:6379"}
auth: {issuer: t, signing_key: "0123456789abcdef0123456789abcdef"}
rate_limit:
  classes:
    default: {requests: 0, window: 1m}
upstreams: [{name: ai, prefix: /a, base_url: "http://ai"}]
`,
		"no upstreams": `
server: {listen_address: ":8080"}
redis: {address: "localhost:6379"}
auth: {issuer: t, signing_key: "0123456789abcdef0123456789abcdef"}
`,
		"duplicate upstream": `
server: {listen_address: ":8080"}
redis: {address: "localhost:6379"}
auth: {issuer: t, signing_key: "0123456789abcdef0123456789abcdef"}
upstreams:
  - {name: ai, prefix: /a, base_url: "http://ai"}
  - {name: ai, prefix: /b, base_url: "http://ai2"}
`,
		"invalid duration": `
server: {listen_address: ":8080", read_timeout: soon}
redis: {address: "localhost:6379"}
auth: {issuer: t, signing_key: "0123456789abcdef0123456789abcdef"}
upstreams: [{name: ai, prefix: /a, base_url: "http://ai"}]
`,
	}

	for name, yaml := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ai", cfg.Upstreams[0].Name)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
