// Package main is the entrypoint for the parkadmin API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MacJediWizard/parkadmin/internal/api"
	"github.com/MacJediWizard/parkadmin/internal/backend"
	"github.com/MacJediWizard/parkadmin/internal/cache"
	"github.com/MacJediWizard/parkadmin/internal/config"
	"github.com/MacJediWizard/parkadmin/internal/feed"
	"github.com/MacJediWizard/parkadmin/internal/httpclient"
	"github.com/MacJediWizard/parkadmin/internal/metrics"
	"github.com/MacJediWizard/parkadmin/internal/refresh"
	"github.com/MacJediWizard/parkadmin/internal/shutdown"
	"github.com/MacJediWizard/parkadmin/internal/subscription"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.LoadServerConfig()

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("version", Version).Logger()
	if !cfg.IsProduction() {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	} else {
		logger.Warn().Str("log_level", cfg.LogLevel).Msg("Unknown LOG_LEVEL, using info")
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	logger.Info().
		Str("version", Version).
		Str("commit", Commit).
		Str("build_date", BuildDate).
		Str("environment", string(cfg.Environment)).
		Msg("Starting parkadmin server")

	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("Invalid configuration")
		return 1
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	promMetrics, err := metrics.NewPrometheusMetrics(registry)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to register metrics")
		return 1
	}

	// Backend client
	httpClient, err := httpclient.ForBackend(cfg.Backend, "parkadmin-server/"+Version)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create backend HTTP client")
		return 1
	}
	backendClient, err := backend.NewClient(backend.Options{
		BaseURL:    cfg.Backend.URL,
		HTTPClient: httpClient,
		Token:      cfg.Backend.Token,
		OAuth:      cfg.Backend.OAuth,
		Observer:   promMetrics,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create backend client")
		return 1
	}
	logger.Info().
		Str("backend_url", cfg.Backend.URL).
		Bool("oauth", cfg.Backend.OAuth.Enabled()).
		Str("proxy", httpclient.ProxyInfo(cfg.Backend.Proxy)).
		Msg("Backend client configured")

	// History cache: Redis when configured, memory otherwise
	var (
		redisClient  *redis.Client
		historyCache subscription.HistoryCache = subscription.NewMemoryHistoryCache()
		cachePinger  *cache.HistoryCache
	)
	if cfg.RedisURL != "" {
		redisClient, err = cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to connect to Redis")
			return 1
		}
		defer redisClient.Close()
		cachePinger = cache.NewHistoryCache(redisClient)
		historyCache = cachePinger
		logger.Info().Msg("Using Redis for history cache and rate limiting")
	}

	// Subscription engine
	svc := subscription.NewService(backendClient, subscription.ServiceConfig{
		Coordinator: subscription.CoordinatorConfig{
			ReconcileDelay:   cfg.ReconcileDelay,
			ReconcileTimeout: cfg.Backend.Timeout,
			UnassignScope:    subscription.GuardScope(cfg.UnassignGuardScope),
		},
		HistoryCache:    historyCache,
		HistoryCacheTTL: cfg.HistoryCacheTTL,
	}, logger)
	svc.Coordinator().SetObserver(promMetrics)
	registry.MustRegister(metrics.NewSubscriptionCollector(svc))

	// Dashboard stream
	feedCfg := feed.DefaultConfig()
	feedCfg.AllowedOrigins = cfg.CORSOrigins
	dashboardFeed := feed.NewFeed(svc, feedCfg, logger)
	dashboardFeed.OnClientCount(promMetrics.SetStreamClients)
	svc.OnChange(dashboardFeed.Notify)
	dashboardFeed.Start()

	// Initial load; a failure leaves /health unhealthy until a refresh succeeds
	loadCtx, loadCancel := context.WithTimeout(ctx, cfg.Backend.Timeout)
	err = svc.Load(loadCtx)
	loadCancel()
	promMetrics.ObserveRefresh(err)
	if err != nil {
		logger.Error().Err(err).Msg("Initial subscription load failed")
	}

	// Periodic refresh
	var scheduler *refresh.Scheduler
	if cfg.RefreshSchedule != "" {
		scheduler = refresh.NewScheduler(svc, refresh.Config{
			Schedule: cfg.RefreshSchedule,
			Timeout:  cfg.Backend.Timeout,
		}, logger)
		scheduler.SetObserver(promMetrics)
		if err := scheduler.Start(); err != nil {
			logger.Error().Err(err).Msg("Failed to start refresh scheduler")
			dashboardFeed.Stop()
			svc.Close()
			return 1
		}
	}

	// Shutdown drains in-flight mutations before stopping components
	shutdownCfg := shutdown.DefaultConfig()
	shutdownCfg.Timeout = cfg.ShutdownTimeout
	shutdownManager := shutdown.NewManager(shutdownCfg, svc.Coordinator(), logger)

	// HTTP API
	deps := api.Dependencies{
		Service:      svc,
		Stream:       dashboardFeed,
		Metrics:      promMetrics.Handler(),
		HTTPObserver: promMetrics,
		Redis:        redisClient,
		Drain:        shutdownManager,
	}
	if cachePinger != nil {
		deps.Cache = cachePinger
	}

	router, err := api.NewRouter(api.Config{
		Environment:       cfg.Environment,
		AllowedOrigins:    cfg.CORSOrigins,
		RateLimitRequests: int64(cfg.RateLimitRequests),
		RateLimitPeriod:   cfg.RateLimitPeriod,
		MaxBodyBytes:      api.DefaultConfig().MaxBodyBytes,
		Version:           Version,
		Commit:            Commit,
		BuildDate:         BuildDate,
	}, deps, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create router")
		if scheduler != nil {
			<-scheduler.Stop().Done()
		}
		dashboardFeed.Stop()
		svc.Close()
		return 1
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	shutdownManager.OnShutdown("http", srv.Shutdown)
	if scheduler != nil {
		shutdownManager.OnShutdown("refresh", func(ctx context.Context) error {
			select {
			case <-scheduler.Stop().Done():
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}
	shutdownManager.OnShutdown("feed", func(context.Context) error {
		dashboardFeed.Stop()
		return nil
	})
	shutdownManager.OnShutdown("subscriptions", func(context.Context) error {
		svc.Close()
		return nil
	})

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	code := 0
	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down server")
	case err := <-serverErr:
		logger.Error().Err(err).Msg("HTTP server failed")
		code = 1
	}

	if err := shutdownManager.Shutdown(context.Background()); err != nil {
		logger.Error().Err(err).Msg("Server shutdown error")
		return 1
	}

	if code == 0 {
		logger.Info().Msg("Server stopped gracefully")
	}
	return code
}
