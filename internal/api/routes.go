// Package api provides the dashboard HTTP API for the parkadmin server.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/MacJediWizard/parkadmin/internal/api/handlers"
	"github.com/MacJediWizard/parkadmin/internal/api/middleware"
	"github.com/MacJediWizard/parkadmin/internal/config"
	"github.com/MacJediWizard/parkadmin/internal/subscription"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Config holds configuration for the API router.
type Config struct {
	Environment config.Environment
	// AllowedOrigins for CORS. Empty means all origins allowed outside production.
	AllowedOrigins []string
	// RateLimitRequests per RateLimitPeriod per client IP; 0 disables limiting.
	RateLimitRequests int64
	RateLimitPeriod   time.Duration
	// MaxBodyBytes bounds request bodies on /api/v1.
	MaxBodyBytes int64
	// Version information for the version endpoint.
	Version   string
	Commit    string
	BuildDate string
}

// DefaultConfig returns a Config with sensible defaults for development.
func DefaultConfig() Config {
	return Config{
		Environment:       config.EnvDevelopment,
		AllowedOrigins:    []string{},
		RateLimitRequests: config.DefaultRateLimitRequests,
		RateLimitPeriod:   config.DefaultRateLimitPeriod,
		MaxBodyBytes:      middleware.DefaultMaxBodyBytes,
		Version:           "dev",
		Commit:            "unknown",
		BuildDate:         "unknown",
	}
}

// Dependencies are the collaborators the router serves. Only Service is
// required.
type Dependencies struct {
	Service *subscription.Service
	// Stream serves GET /api/v1/dashboard/stream.
	Stream handlers.StreamHandler
	// Metrics serves GET /metrics.
	Metrics http.Handler
	// HTTPObserver records per-route request metrics.
	HTTPObserver middleware.HTTPObserver
	// Cache is checked by /health when the history cache is remote.
	Cache handlers.CachePinger
	// Redis backs the rate limiter when set.
	Redis *redis.Client
	// Drain, when set, refuses mutations and fails /health during shutdown.
	Drain middleware.DrainState
}

// Router wraps a Gin engine with configured middleware and routes.
type Router struct {
	Engine *gin.Engine
	logger zerolog.Logger
}

// NewRouter creates a new Router with the given dependencies.
func NewRouter(cfg Config, deps Dependencies, logger zerolog.Logger) (*Router, error) {
	if deps.Service == nil {
		return nil, fmt.Errorf("api router requires a subscription service")
	}

	r := &Router{
		Engine: gin.New(),
		logger: logger.With().Str("component", "router").Logger(),
	}

	r.Engine.Use(gin.Recovery())
	r.Engine.Use(middleware.RequestID())
	r.Engine.Use(middleware.RequestLogger(logger))
	if deps.HTTPObserver != nil {
		r.Engine.Use(middleware.Metrics(deps.HTTPObserver))
	}
	r.Engine.Use(middleware.SecurityHeaders())

	cors, err := middleware.CORS(cfg.AllowedOrigins, cfg.Environment, logger)
	if err != nil {
		return nil, err
	}
	r.Engine.Use(cors)

	// Health, version and metrics endpoints are not rate limited
	healthHandler := handlers.NewHealthHandler(deps.Service.Registry(), deps.Cache, logger)
	if deps.Drain != nil {
		healthHandler.SetDrainState(deps.Drain)
	}
	healthHandler.RegisterPublicRoutes(r.Engine)

	versionHandler := handlers.NewVersionHandler(handlers.VersionInfo{
		Version:   cfg.Version,
		Commit:    cfg.Commit,
		BuildDate: cfg.BuildDate,
	})
	versionHandler.RegisterPublicRoutes(r.Engine)

	if deps.Metrics != nil {
		handlers.NewMetricsHandler(deps.Metrics).RegisterPublicRoutes(r.Engine)
	}

	apiV1 := r.Engine.Group("/api/v1")
	if cfg.RateLimitRequests > 0 {
		limiter, err := middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitPeriod, deps.Redis)
		if err != nil {
			return nil, err
		}
		apiV1.Use(limiter)
	}
	if cfg.MaxBodyBytes > 0 {
		apiV1.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	}
	if deps.Drain != nil {
		apiV1.Use(middleware.RejectWhileDraining(deps.Drain))
	}

	handlers.NewPlansHandler(deps.Service, logger).RegisterRoutes(apiV1)
	handlers.NewSubscriptionsHandler(deps.Service, logger).RegisterRoutes(apiV1)
	handlers.NewDashboardHandler(deps.Service, deps.Stream, logger).RegisterRoutes(apiV1)

	return r, nil
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.Engine.ServeHTTP(w, req)
}
