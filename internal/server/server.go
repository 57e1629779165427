// Package server assembles the HTTP surface: auth endpoints, the
// protected proxy routes, health probes, and metrics.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sheetwise/gateway/internal/auth"
	"github.com/sheetwise/gateway/internal/breaker"
	"github.com/sheetwise/gateway/internal/cache"
	"github.com/sheetwise/gateway/internal/config"
	"github.com/sheetwise/gateway/internal/health"
	"github.com/sheetwise/gateway/internal/middleware"
	"github.com/sheetwise/gateway/internal/observability"
	"github.com/sheetwise/gateway/internal/proxy"
	"github.com/sheetwise/gateway/internal/ratelimit"
	"github.com/sheetwise/gateway/internal/store"
)

// Deps carries the wired components the server routes to.
type Deps struct {
	Store    store.Store
	Auth     *auth.Manager
	Limiter  ratelimit.Limiter
	Breakers *breaker.Registry
	Cache    cache.Cache
	Logger   observability.Logger
	Registry *prometheus.Registry
}

// Server is the gateway HTTP server.
type Server struct {
	config     config.ServerConfig
	deps       Deps
	httpServer *http.Server
	logger     observability.Logger
}

// New builds the server and its routes from configuration.
func New(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.Logger == nil {
		deps.Logger = observability.NopLogger()
	}
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
		deps.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	s := &Server{
		config: cfg.Server,
		deps:   deps,
		logger: deps.Logger,
	}

	handler, err := s.routes(cfg)
	if err != nil {
		return nil, err
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Server.ListenAddress,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
		IdleTimeout:  cfg.Server.IdleTimeout.Std(),
	}
	return s, nil
}

// routes builds the full handler tree.
func (s *Server) routes(cfg *config.Config) (http.Handler, error) {
	mux := http.NewServeMux()

	// Unprotected surface.
	healthHandler := health.NewHandler(s.deps.Store, s.deps.Breakers, s.logger)
	mux.HandleFunc("GET /health/live", healthHandler.Live)
	mux.HandleFunc("GET /health/ready", healthHandler.Ready)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.deps.Registry, promhttp.HandlerOpts{}))

	authHandler := newAuthHandler(s.deps.Auth, s.logger)
	mux.HandleFunc("POST /api/v1/auth/token", authHandler.issueToken)
	mux.HandleFunc("POST /api/v1/auth/refresh", authHandler.refreshToken)

	// Revocation requires a valid access token.
	revoke := middleware.Chain(
		http.HandlerFunc(authHandler.revokeToken),
		middleware.Authenticate(s.deps.Auth, s.logger),
	)
	mux.Handle("POST /api/v1/auth/revoke", revoke)

	// Proxy routes: authenticated, rate limited, resilient.
	resolve := middleware.PrefixClassResolver(cfg.RateLimit.ClassPrefixes())
	protect := func(h http.Handler) http.Handler {
		return middleware.Chain(h,
			middleware.Authenticate(s.deps.Auth, s.logger),
			middleware.RateLimit(s.deps.Limiter, resolve, s.logger),
		)
	}

	cacheMetrics := cache.NewMetrics()
	if err := cacheMetrics.Register(s.deps.Registry); err != nil {
		return nil, err
	}

	for _, u := range cfg.Upstreams {
		opts := []proxy.Option{
			proxy.WithLogger(s.logger),
			proxy.WithCacheMetrics(cacheMetrics),
		}
		if s.deps.Cache != nil && cfg.Cache.Enabled {
			opts = append(opts,
				proxy.WithCache(s.deps.Cache, cfg.Cache.TTL.Std()),
				proxy.WithCacheExclusions(cfg.Cache.ExcludedPaths),
			)
		}
		p := proxy.New(
			proxy.Upstream{Name: u.Name, BaseURL: u.BaseURL, Timeout: u.Timeout.Std()},
			u.Prefix,
			s.deps.Breakers.Get(u.Name),
			opts...,
		)
		pattern := strings.TrimSuffix(u.Prefix, "/") + "/"
		mux.Handle(pattern, protect(p))
	}

	return middleware.Chain(mux,
		middleware.RequestID(),
		middleware.Recovery(s.logger),
		middleware.Logging(s.logger),
	), nil
}

// Start runs the server until ctx is canceled, then drains connections
// within the shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("gateway listening",
			observability.String("address", s.httpServer.Addr),
		)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout.Std())
	defer cancel()

	s.logger.Info("shutting down",
		observability.Duration("timeout", s.config.ShutdownTimeout.Std()),
	)
	return s.httpServer.Shutdown(shutdownCtx)
}

// Handler exposes the assembled handler tree for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
