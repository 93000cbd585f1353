package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MacJediWizard/parkadmin/internal/models"
	"github.com/MacJediWizard/parkadmin/internal/subscription"
	apimodels "github.com/MacJediWizard/parkadmin/pkg/models"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RefreshResult reports what a refresh loaded.
type RefreshResult struct {
	Tenants  int       `json:"tenants"`
	Plans    int       `json:"plans"`
	LoadedAt time.Time `json:"loaded_at"`
}

// AssignRequest is the body of the assign command.
type AssignRequest struct {
	PlanID       string `json:"plan_id"`
	DurationDays int    `json:"duration_days"`
}

// MutationResponse reports the outcome of a subscription command. The
// subscription is the replica's view after the command, when known.
type MutationResponse struct {
	Operation    subscription.OperationState `json:"operation"`
	Subscription *models.SubscriptionRow     `json:"subscription,omitempty"`
}

// OperationsResponse lists the latest state of every operation for a tenant.
type OperationsResponse struct {
	TenantID   string                        `json:"tenant_id"`
	Operations []subscription.OperationState `json:"operations"`
}

// SubscriptionsHandler handles tenant subscription HTTP endpoints.
type SubscriptionsHandler struct {
	service *subscription.Service
	logger  zerolog.Logger
}

// NewSubscriptionsHandler creates a new SubscriptionsHandler.
func NewSubscriptionsHandler(service *subscription.Service, logger zerolog.Logger) *SubscriptionsHandler {
	return &SubscriptionsHandler{
		service: service,
		logger:  logger.With().Str("component", "subscriptions_handler").Logger(),
	}
}

// RegisterRoutes registers subscription routes on the given router group.
func (h *SubscriptionsHandler) RegisterRoutes(r *gin.RouterGroup) {
	subs := r.Group("/subscriptions")
	{
		subs.GET("", h.List)
		subs.POST("/refresh", h.Refresh)
		subs.GET("/:tenantId", h.Get)
		subs.DELETE("/:tenantId", h.Unassign)
		subs.POST("/:tenantId/assign", h.Assign)
		subs.POST("/:tenantId/renew", h.Renew)
		subs.GET("/:tenantId/operations", h.Operations)
		subs.GET("/:tenantId/history", h.History)
	}
}

// List returns one page of the filtered, sorted subscription table.
// GET /api/v1/subscriptions?search=&page=&page_size=&sort=&order=
func (h *SubscriptionsHandler) List(c *gin.Context) {
	page, ok := intQuery(c, "page", 1)
	if !ok {
		return
	}
	size, ok := intQuery(c, "page_size", subscription.DefaultPageSize)
	if !ok {
		return
	}

	sortBy := subscription.SortField(c.Query("sort"))
	if !sortBy.IsValid() {
		badRequest(c, "invalid sort field: "+string(sortBy))
		return
	}

	var desc bool
	switch strings.ToLower(c.DefaultQuery("order", "asc")) {
	case "asc":
	case "desc":
		desc = true
	default:
		badRequest(c, "order must be asc or desc")
		return
	}

	c.JSON(http.StatusOK, h.service.View(subscription.Query{
		Search:   c.Query("search"),
		Page:     page,
		PageSize: size,
		SortBy:   sortBy,
		Desc:     desc,
	}))
}

// Refresh reloads the catalog and the registry from the backend.
// POST /api/v1/subscriptions/refresh
func (h *SubscriptionsHandler) Refresh(c *gin.Context) {
	if err := h.service.Load(c.Request.Context()); err != nil {
		respondError(c, h.logger, err, "failed to refresh subscriptions")
		return
	}
	c.JSON(http.StatusOK, apimodels.APIResponse{
		Data: RefreshResult{
			Tenants:  h.service.Registry().Len(),
			Plans:    len(h.service.Catalog().List()),
			LoadedAt: h.service.Registry().LoadedAt(),
		},
		Message: "subscriptions refreshed",
	})
}

// Get returns one tenant's row.
// GET /api/v1/subscriptions/:tenantId
func (h *SubscriptionsHandler) Get(c *gin.Context) {
	row, ok := h.row(c.Param("tenantId"))
	if !ok {
		notFound(c, "tenant not found")
		return
	}
	c.JSON(http.StatusOK, row)
}

// Assign binds the tenant to a plan.
// POST /api/v1/subscriptions/:tenantId/assign
func (h *SubscriptionsHandler) Assign(c *gin.Context) {
	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	tenantID := c.Param("tenantId")
	state, err := h.service.Coordinator().Assign(c.Request.Context(), tenantID, req.PlanID, req.DurationDays)
	h.respondMutation(c, tenantID, state, err, "failed to assign subscription")
}

// Renew extends the current window or switches the tenant to another plan.
// POST /api/v1/subscriptions/:tenantId/renew
func (h *SubscriptionsHandler) Renew(c *gin.Context) {
	var req subscription.RenewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	tenantID := c.Param("tenantId")
	state, err := h.service.Coordinator().Renew(c.Request.Context(), tenantID, req)
	h.respondMutation(c, tenantID, state, err, "failed to renew subscription")
}

// Unassign removes the tenant's plan.
// DELETE /api/v1/subscriptions/:tenantId
func (h *SubscriptionsHandler) Unassign(c *gin.Context) {
	tenantID := c.Param("tenantId")
	state, err := h.service.Coordinator().Unassign(c.Request.Context(), tenantID)
	h.respondMutation(c, tenantID, state, err, "failed to unassign subscription")
}

// Operations returns the latest state of each operation for the tenant.
// GET /api/v1/subscriptions/:tenantId/operations
func (h *SubscriptionsHandler) Operations(c *gin.Context) {
	tenantID := c.Param("tenantId")
	c.JSON(http.StatusOK, OperationsResponse{
		TenantID:   tenantID,
		Operations: h.service.Coordinator().States(tenantID),
	})
}

// History returns one page of the tenant's audit trail, newest first.
// GET /api/v1/subscriptions/:tenantId/history?page=&page_size=
func (h *SubscriptionsHandler) History(c *gin.Context) {
	page, ok := intQuery(c, "page", 1)
	if !ok {
		return
	}
	size, ok := intQuery(c, "page_size", subscription.DefaultPageSize)
	if !ok {
		return
	}

	result, err := h.service.History().GetPage(c.Request.Context(), c.Param("tenantId"), page, size)
	if err != nil {
		respondError(c, h.logger, err, "failed to load subscription history")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *SubscriptionsHandler) respondMutation(c *gin.Context, tenantID string, state subscription.OperationState, err error, fallback string) {
	if err != nil {
		respondError(c, h.logger, err, fallback)
		return
	}

	resp := MutationResponse{Operation: state}
	if row, ok := h.row(tenantID); ok {
		resp.Subscription = &row
	}

	if state.Rejected() {
		c.JSON(http.StatusAccepted, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SubscriptionsHandler) row(tenantID string) (models.SubscriptionRow, bool) {
	rec, ok := h.service.Registry().Get(tenantID)
	if !ok {
		return models.SubscriptionRow{}, false
	}
	return h.service.Row(rec), true
}

// intQuery parses an optional integer query parameter, writing a 400 and
// returning false when it is malformed.
func intQuery(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		badRequest(c, "invalid "+name+": must be an integer")
		return 0, false
	}
	return n, true
}
