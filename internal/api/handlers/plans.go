package handlers

import (
	"net/http"

	"github.com/MacJediWizard/parkadmin/internal/models"
	"github.com/MacJediWizard/parkadmin/internal/subscription"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// PlansResponse lists the catalog.
type PlansResponse struct {
	Plans []models.Plan `json:"plans"`
}

// PlansHandler handles plan catalog HTTP endpoints.
type PlansHandler struct {
	service *subscription.Service
	logger  zerolog.Logger
}

// NewPlansHandler creates a new PlansHandler.
func NewPlansHandler(service *subscription.Service, logger zerolog.Logger) *PlansHandler {
	return &PlansHandler{
		service: service,
		logger:  logger.With().Str("component", "plans_handler").Logger(),
	}
}

// RegisterRoutes registers plan routes on the given router group.
func (h *PlansHandler) RegisterRoutes(r *gin.RouterGroup) {
	plans := r.Group("/plans")
	{
		plans.GET("", h.List)
		plans.POST("", h.Create)
		plans.GET("/:id", h.Get)
		plans.PUT("/:id", h.Update)
		plans.DELETE("/:id", h.Delete)
	}
}

// List returns the cached catalog.
// GET /api/v1/plans
func (h *PlansHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, PlansResponse{Plans: h.service.Catalog().List()})
}

// Get returns one plan.
// GET /api/v1/plans/:id
func (h *PlansHandler) Get(c *gin.Context) {
	plan, ok := h.service.Catalog().Get(c.Param("id"))
	if !ok {
		notFound(c, "plan not found")
		return
	}
	c.JSON(http.StatusOK, plan)
}

// Create adds a plan to the catalog.
// POST /api/v1/plans
func (h *PlansHandler) Create(c *gin.Context) {
	var input models.PlanInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	plan, err := h.service.Catalog().Create(c.Request.Context(), input)
	if err != nil {
		respondError(c, h.logger, err, "failed to create plan")
		return
	}

	c.JSON(http.StatusCreated, plan)
}

// Update replaces a plan's editable fields.
// PUT /api/v1/plans/:id
func (h *PlansHandler) Update(c *gin.Context) {
	var input models.PlanInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	plan, err := h.service.Catalog().Update(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		respondError(c, h.logger, err, "failed to update plan")
		return
	}

	c.JSON(http.StatusOK, plan)
}

// Delete removes a plan. Tenants still assigned to it are listed in the
// response; the delete is not blocked by them.
// DELETE /api/v1/plans/:id
func (h *PlansHandler) Delete(c *gin.Context) {
	result, err := h.service.DeletePlan(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err, "failed to delete plan")
		return
	}
	c.JSON(http.StatusOK, result)
}
