package proxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/sheetwise/gateway/internal/breaker"
	"github.com/sheetwise/gateway/internal/cache"
	"github.com/sheetwise/gateway/internal/observability"
	"github.com/sheetwise/gateway/internal/util"
)

const (
	cacheStatusHit  = "HIT"
	cacheStatusMiss = "MISS"

	defaultCacheTTL = 30 * time.Second

	// maxCacheableBody caps what gets written to the cache; larger
	// responses are served but not stored.
	maxCacheableBody = 1 << 20
)

// Proxy forwards requests for a single upstream. The read path runs
// cache lookup, then coalesces concurrent misses into one downstream
// call, then passes that call through the upstream's circuit breaker.
type Proxy struct {
	upstream Upstream
	prefix   string
	client   *http.Client
	breaker  *breaker.Breaker
	cache    cache.Cache
	cacheTTL time.Duration
	excluded []string
	group    singleflight.Group
	logger   observability.Logger
	metrics  *cache.Metrics
	tracer   trace.Tracer
}

// Option is a functional option for the Proxy.
type Option func(*Proxy)

// WithCache enables response caching with the given backend and TTL.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(p *Proxy) {
		p.cache = c
		if ttl > 0 {
			p.cacheTTL = ttl
		}
	}
}

// WithCacheExclusions marks request path prefixes that bypass the
// cache entirely. Cache keys carry no principal component, so
// endpoints with per-principal GET responses must be listed here.
func WithCacheExclusions(prefixes []string) Option {
	return func(p *Proxy) { p.excluded = prefixes }
}

// WithLogger sets the proxy's logger.
func WithLogger(logger observability.Logger) Option {
	return func(p *Proxy) { p.logger = logger }
}

// WithCacheMetrics sets the proxy's cache metrics.
func WithCacheMetrics(m *cache.Metrics) Option {
	return func(p *Proxy) { p.metrics = m }
}

// WithHTTPClient overrides the outbound HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Proxy) { p.client = client }
}

// New creates a Proxy for an upstream. prefix is the route prefix
// stripped from incoming paths before forwarding.
func New(upstream Upstream, prefix string, cb *breaker.Breaker, opts ...Option) *Proxy {
	upstream.normalize()

	p := &Proxy{
		upstream: upstream,
		prefix:   strings.TrimSuffix(prefix, "/"),
		client:   newHTTPClient(upstream.Timeout),
		breaker:  cb,
		cacheTTL: defaultCacheTTL,
		logger:   observability.NopLogger(),
		tracer:   otel.Tracer("gateway/proxy"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = cache.NewMetrics()
	}
	return p
}

// ServeHTTP implements http.Handler.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := p.tracer.Start(r.Context(), "proxy.forward",
		trace.WithAttributes(
			attribute.String("upstream", p.upstream.Name),
			attribute.String("http.method", r.Method),
		),
	)
	defer span.End()

	if p.cacheable(r) {
		p.serveCached(ctx, w, r)
		return
	}
	if p.cache != nil {
		p.metrics.RecordBypass()
	}

	resp, err := p.forward(ctx, r)
	if err != nil {
		p.writeError(ctx, w, err)
		return
	}
	resp.write(w, "")
}

// cacheable reports whether the cache participates in this request.
// Only safe methods on non-excluded paths qualify, and clients can opt
// out per request.
func (p *Proxy) cacheable(r *http.Request) bool {
	if p.cache == nil {
		return false
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}
	for _, prefix := range p.excluded {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return false
		}
	}
	cc := strings.ToLower(r.Header.Get("Cache-Control"))
	if strings.Contains(cc, "no-cache") || strings.Contains(cc, "no-store") {
		return false
	}
	return true
}

// serveCached runs the read path: lookup, then a coalesced fill on
// miss. All concurrent misses for one key share a single downstream
// call and each receives its own copy of the result.
func (p *Proxy) serveCached(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	key := cache.Key(r.Method, p.targetPath(r), r.URL.Query())

	data, err := p.cache.Get(ctx, key)
	if err == nil {
		if resp, derr := unmarshalStoredResponse(data); derr == nil {
			p.metrics.RecordHit()
			resp.write(w, cacheStatusHit)
			return
		}
		// Unreadable entry, drop it and refill.
		_ = p.cache.Delete(ctx, key)
	} else if !cache.IsMiss(err) {
		// A degraded cache backend must not take the read path down.
		p.logger.Warn("cache lookup failed, forwarding",
			observability.String("upstream", p.upstream.Name),
			observability.Error(err),
		)
	}
	p.metrics.RecordMiss()

	v, err, shared := p.group.Do(key, func() (any, error) {
		resp, err := p.forward(ctx, r)
		if err != nil {
			return nil, err
		}
		p.maybeStore(ctx, key, resp)
		return resp, nil
	})
	if shared {
		p.metrics.RecordCoalesced()
	}
	if err != nil {
		p.writeError(ctx, w, err)
		return
	}
	v.(*storedResponse).write(w, cacheStatusMiss)
}

// maybeStore writes a fill result to the cache. Only successful
// responses are stored, and nothing is stored unless the circuit is
// closed: results obtained around an unhealthy dependency must not be
// served after it recovers.
func (p *Proxy) maybeStore(ctx context.Context, key string, resp *storedResponse) {
	if resp.StatusCode != http.StatusOK || len(resp.Body) > maxCacheableBody {
		return
	}
	if p.breaker != nil && p.breaker.State() != breaker.StateClosed {
		return
	}
	data, err := resp.marshal()
	if err != nil {
		return
	}
	if err := p.cache.Set(ctx, key, data, p.cacheTTL); err != nil {
		p.logger.Warn("cache store failed",
			observability.String("upstream", p.upstream.Name),
			observability.Error(err),
		)
	}
}

// forward performs one breaker-guarded downstream call. Transport
// errors and 5xx responses count as failures; everything else,
// client errors included, counts as success.
func (p *Proxy) forward(ctx context.Context, r *http.Request) (*storedResponse, error) {
	if p.breaker != nil && !p.breaker.Allow() {
		return nil, util.NewDependencyUnavailableError(p.upstream.Name, breaker.ErrOpen)
	}

	resp, err := p.doRequest(ctx, r)
	if p.breaker != nil {
		if err != nil || resp.StatusCode >= http.StatusInternalServerError {
			p.breaker.RecordFailure()
		} else {
			p.breaker.RecordSuccess()
		}
	}
	if err != nil {
		return nil, util.NewDependencyError(p.upstream.Name, err)
	}
	return resp, nil
}

// doRequest issues the outbound HTTP request and captures the response.
func (p *Proxy) doRequest(ctx context.Context, r *http.Request) (*storedResponse, error) {
	target, err := p.targetURL(r)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if r.Body != nil && r.Method != http.MethodGet && r.Method != http.MethodHead {
		body = r.Body
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	copyForwardHeaders(req.Header, r.Header)
	if cid := observability.CorrelationIDFromContext(ctx); cid != "" {
		req.Header.Set(util.HeaderCorrelationID, cid)
	}
	req.Header.Set(util.HeaderForwardedFor, util.ClientIP(r))

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read upstream response: %w", err)
	}
	return newStoredResponse(resp.StatusCode, resp.Header, data), nil
}

// targetPath is the downstream path after stripping the route prefix.
func (p *Proxy) targetPath(r *http.Request) string {
	path := strings.TrimPrefix(r.URL.Path, p.prefix)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

func (p *Proxy) targetURL(r *http.Request) (string, error) {
	base, err := url.Parse(p.upstream.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse upstream base URL: %w", err)
	}
	base.Path = strings.TrimSuffix(base.Path, "/") + p.targetPath(r)
	base.RawQuery = r.URL.RawQuery
	return base.String(), nil
}

func (p *Proxy) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status, code := util.StatusForError(err)
	message := fmt.Sprintf("request to %s failed", p.upstream.Name)
	if status == http.StatusServiceUnavailable {
		message = fmt.Sprintf("%s is currently unavailable", p.upstream.Name)
	}
	p.logger.Warn("downstream call failed",
		observability.String("upstream", p.upstream.Name),
		observability.Int("status", status),
		observability.Error(err),
	)
	util.WriteError(w, status, util.ErrorBody{
		Code:          code,
		Message:       message,
		Service:       p.upstream.Name,
		CorrelationID: observability.CorrelationIDFromContext(ctx),
	})
}

func copyForwardHeaders(dst, src http.Header) {
	for name, values := range src {
		if isHopByHop(name) {
			continue
		}
		for _, v := range values {
			dst.Add(name, v)
		}
	}
}

func isHopByHop(name string) bool {
	canonical := http.CanonicalHeaderKey(name)
	for _, h := range hopByHopHeaders {
		if canonical == http.CanonicalHeaderKey(h) {
			return true
		}
	}
	return false
}
