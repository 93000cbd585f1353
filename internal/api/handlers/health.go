package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// HealthStatus represents the health status of a component.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheckResult represents the result of a health check.
type HealthCheckResult struct {
	Status   HealthStatus   `json:"status"`
	Duration string         `json:"duration,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// HealthResponse is the response for health check endpoints.
type HealthResponse struct {
	Status HealthStatus                  `json:"status"`
	Checks map[string]*HealthCheckResult `json:"checks,omitempty"`
}

// DataState reports what the engine has loaded from the backend.
type DataState interface {
	LoadedAt() time.Time
	Len() int
}

// CachePinger checks the history cache connection.
type CachePinger interface {
	Ping(ctx context.Context) error
}

// DrainState reports whether the server is shutting down.
type DrainState interface {
	AcceptingMutations() bool
}

// HealthHandler handles health-related HTTP endpoints.
type HealthHandler struct {
	data   DataState
	cache  CachePinger
	drain  DrainState
	logger zerolog.Logger
}

// NewHealthHandler creates a new HealthHandler. cache may be nil when the
// history cache is in memory.
func NewHealthHandler(data DataState, cache CachePinger, logger zerolog.Logger) *HealthHandler {
	return &HealthHandler{
		data:   data,
		cache:  cache,
		logger: logger.With().Str("component", "health_handler").Logger(),
	}
}

// SetDrainState makes /health report unhealthy once shutdown begins, so load
// balancers stop routing new requests here.
func (h *HealthHandler) SetDrainState(d DrainState) {
	h.drain = d
}

// RegisterPublicRoutes registers health check routes that don't require authentication.
func (h *HealthHandler) RegisterPublicRoutes(r *gin.Engine) {
	health := r.Group("/health")
	{
		health.GET("", h.Overall)
		health.GET("/live", h.Live)
	}
}

// Live reports that the process is serving requests.
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: HealthStatusHealthy})
}

// Overall reports whether subscription data has been loaded and the cache
// is reachable.
// GET /health
func (h *HealthHandler) Overall(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	response := &HealthResponse{
		Status: HealthStatusHealthy,
		Checks: map[string]*HealthCheckResult{
			"subscriptions": h.checkData(),
		},
	}
	if h.cache != nil {
		response.Checks["cache"] = h.checkCache(ctx)
	}
	if h.drain != nil && !h.drain.AcceptingMutations() {
		response.Checks["shutdown"] = &HealthCheckResult{
			Status: HealthStatusUnhealthy,
			Error:  "server is shutting down",
		}
	}

	for _, check := range response.Checks {
		if check.Status == HealthStatusUnhealthy {
			response.Status = HealthStatusUnhealthy
		}
	}

	if response.Status == HealthStatusUnhealthy {
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *HealthHandler) checkData() *HealthCheckResult {
	loadedAt := h.data.LoadedAt()
	if loadedAt.IsZero() {
		return &HealthCheckResult{
			Status: HealthStatusUnhealthy,
			Error:  "subscriptions not loaded yet",
		}
	}
	return &HealthCheckResult{
		Status: HealthStatusHealthy,
		Details: map[string]any{
			"tenants":   h.data.Len(),
			"loaded_at": loadedAt.UTC().Format(time.RFC3339),
		},
	}
}

func (h *HealthHandler) checkCache(ctx context.Context) *HealthCheckResult {
	start := time.Now()
	err := h.cache.Ping(ctx)
	result := &HealthCheckResult{
		Status:   HealthStatusHealthy,
		Duration: time.Since(start).String(),
	}
	if err != nil {
		h.logger.Warn().Err(err).Msg("history cache health check failed")
		result.Status = HealthStatusUnhealthy
		result.Error = err.Error()
	}
	return result
}
