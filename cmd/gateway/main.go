// Command gateway runs the Sheetwise API gateway: token lifecycle,
// distributed rate limiting, and resilient proxying to the downstream
// services.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sheetwise/gateway/internal/auth"
	"github.com/sheetwise/gateway/internal/breaker"
	"github.com/sheetwise/gateway/internal/cache"
	"github.com/sheetwise/gateway/internal/config"
	"github.com/sheetwise/gateway/internal/observability"
	"github.com/sheetwise/gateway/internal/ratelimit"
	"github.com/sheetwise/gateway/internal/server"
	"github.com/sheetwise/gateway/internal/store"
)

func main() {
	configPath := flag.String("config", "configs/gateway.yaml", "path to the configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "gateway: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracer, err := observability.NewTracer(observability.TracerConfig{
		ServiceName:  "sheetwise-gateway",
		OTLPEndpoint: cfg.Tracing.Endpoint,
		SamplingRate: cfg.Tracing.SamplingRate,
		Enabled:      cfg.Tracing.Enabled,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() { _ = tracer.Shutdown(context.Background()) }()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	redisStore, err := store.NewRedisStore(&store.RedisConfig{
		Address:      cfg.Redis.Address,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		Prefix:       cfg.Redis.Prefix,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		OpTimeout:    cfg.Redis.OpTimeout.Std(),
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("connect coordination store: %w", err)
	}
	defer func() { _ = redisStore.Close() }()

	authMetrics := auth.NewMetrics()
	if err := authMetrics.Register(registry); err != nil {
		return err
	}
	manager, err := auth.NewManager(
		&auth.Config{
			Issuer:     cfg.Auth.Issuer,
			SigningKey: []byte(cfg.Auth.SigningKey),
			AccessTTL:  cfg.Auth.AccessTTL.Std(),
			RefreshTTL: cfg.Auth.RefreshTTL.Std(),
		},
		auth.NewSessionRepository(redisStore),
		auth.WithLogger(logger),
		auth.WithMetrics(authMetrics),
	)
	if err != nil {
		return fmt.Errorf("init token manager: %w", err)
	}

	limitMetrics := ratelimit.NewMetrics()
	if err := limitMetrics.Register(registry); err != nil {
		return err
	}
	limiter, err := ratelimit.NewDistributedLimiter(redisStore, &ratelimit.Config{
		Quotas:       cfg.RateLimit.Quotas(),
		FallbackMode: ratelimit.FallbackMode(cfg.RateLimit.FallbackMode),
		Logger:       logger,
		Metrics:      limitMetrics,
	})
	if err != nil {
		return fmt.Errorf("init rate limiter: %w", err)
	}
	defer func() { _ = limiter.Close() }()

	breakerMetrics := breaker.NewMetrics()
	if err := breakerMetrics.Register(registry); err != nil {
		return err
	}
	breakers := breaker.NewRegistry(&breaker.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		ResetTimeout:     cfg.Breaker.ResetTimeout.Std(),
		TrialCalls:       cfg.Breaker.TrialCalls,
		Window:           cfg.Breaker.Window.Std(),
	}, logger, breakerMetrics)

	var responseCache cache.Cache
	if cfg.Cache.Enabled {
		responseCache = cache.NewRedisCache(redisStore.Client())
		defer func() { _ = responseCache.Close() }()
	}

	srv, err := server.New(cfg, server.Deps{
		Store:    redisStore,
		Auth:     manager,
		Limiter:  limiter,
		Breakers: breakers,
		Cache:    responseCache,
		Logger:   logger,
		Registry: registry,
	})
	if err != nil {
		return fmt.Errorf("init server: %w", err)
	}

	// Quotas are the one hot-reloadable section; everything else takes
	// a restart.
	watcher, err := config.NewWatcher(configPath, func(next *config.Config) {
		limiter.UpdateQuotas(next.RateLimit.Quotas())
	}, logger)
	if err != nil {
		logger.Warn("config watcher disabled", observability.Error(err))
	} else {
		go watcher.Run(ctx)
	}

	return srv.Start(ctx)
}
