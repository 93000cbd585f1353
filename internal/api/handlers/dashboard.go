package handlers

import (
	"net/http"

	"github.com/MacJediWizard/parkadmin/internal/subscription"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// StreamHandler serves the websocket summary stream.
type StreamHandler interface {
	HandleWebSocket(w http.ResponseWriter, r *http.Request)
}

// DashboardHandler serves the dashboard summary cards.
type DashboardHandler struct {
	service *subscription.Service
	stream  StreamHandler
	logger  zerolog.Logger
}

// NewDashboardHandler creates a new DashboardHandler. stream may be nil, in
// which case the stream route is not registered.
func NewDashboardHandler(service *subscription.Service, stream StreamHandler, logger zerolog.Logger) *DashboardHandler {
	return &DashboardHandler{
		service: service,
		stream:  stream,
		logger:  logger.With().Str("component", "dashboard_handler").Logger(),
	}
}

// RegisterRoutes registers dashboard routes on the given router group.
func (h *DashboardHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/dashboard", h.Summary)
	if h.stream != nil {
		r.GET("/dashboard/stream", h.Stream)
	}
}

// Summary returns bucket counts and revenue over the records matching search.
// GET /api/v1/dashboard?search=
func (h *DashboardHandler) Summary(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Summary(c.Query("search")))
}

// Stream upgrades to a websocket that receives a summary on every change.
// GET /api/v1/dashboard/stream?search=
func (h *DashboardHandler) Stream(c *gin.Context) {
	h.stream.HandleWebSocket(c.Writer, c.Request)
}
