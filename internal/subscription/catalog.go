package subscription

import (
	"context"
	"strings"
	"sync"

	"github.com/MacJediWizard/parkadmin/internal/models"
	"github.com/rs/zerolog"
)

// PlanBackend is the subset of the backend API the catalog needs.
type PlanBackend interface {
	ListPlans(ctx context.Context) ([]models.Plan, error)
	CreatePlan(ctx context.Context, input models.PlanInput) (*models.Plan, error)
	UpdatePlan(ctx context.Context, id string, input models.PlanInput) (*models.Plan, error)
	DeletePlan(ctx context.Context, id string) error
}

// Catalog holds the subscription plan list. Every successful mutation is
// followed by a full refetch rather than an incremental patch.
type Catalog struct {
	backend PlanBackend
	logger  zerolog.Logger

	mu      sync.RWMutex
	plans   []models.Plan
	clock   uint64
	applied uint64

	listenersMu sync.RWMutex
	listeners   []func()
}

// NewCatalog creates an empty Catalog.
func NewCatalog(backend PlanBackend, logger zerolog.Logger) *Catalog {
	return &Catalog{
		backend: backend,
		logger:  logger.With().Str("component", "plan_catalog").Logger(),
	}
}

// OnChange registers fn to be called whenever the plan list is replaced.
func (c *Catalog) OnChange(fn func()) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// List returns a copy of the current plan list.
func (c *Catalog) List() []models.Plan {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Plan(nil), c.plans...)
}

// Get returns the plan with the given ID.
func (c *Catalog) Get(id string) (models.Plan, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if p := models.FindPlan(c.plans, id); p != nil {
		return *p, true
	}
	return models.Plan{}, false
}

// Refresh refetches the full plan list. When fetches overlap, a response
// older than the last applied one is dropped.
func (c *Catalog) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.clock++
	ticket := c.clock
	c.mu.Unlock()

	plans, err := c.backend.ListPlans(ctx)
	if err != nil {
		return transport("list plans", err)
	}

	c.mu.Lock()
	if ticket < c.applied {
		c.mu.Unlock()
		c.logger.Debug().Uint64("ticket", ticket).Msg("discarded stale plan list")
		return nil
	}
	c.applied = ticket
	c.plans = plans
	c.mu.Unlock()

	c.listenersMu.RLock()
	listeners := append([]func(){}, c.listeners...)
	c.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn()
	}
	return nil
}

// Create validates input, creates the plan, and refetches the catalog.
func (c *Catalog) Create(ctx context.Context, input models.PlanInput) (*models.Plan, error) {
	if err := ValidatePlanInput(input); err != nil {
		return nil, err
	}

	plan, err := c.backend.CreatePlan(ctx, input)
	if err != nil {
		return nil, transport("create plan", err)
	}

	c.logger.Info().Str("plan_id", plan.ID).Str("name", plan.Name).Msg("plan created")
	c.refreshAfterMutation(ctx)
	return plan, nil
}

// Update validates input, updates the plan, and refetches the catalog.
func (c *Catalog) Update(ctx context.Context, id string, input models.PlanInput) (*models.Plan, error) {
	if strings.TrimSpace(id) == "" {
		return nil, invalid("id", "no plan selected")
	}
	if err := ValidatePlanInput(input); err != nil {
		return nil, err
	}

	plan, err := c.backend.UpdatePlan(ctx, id, input)
	if err != nil {
		return nil, transport("update plan", err)
	}

	c.logger.Info().Str("plan_id", id).Msg("plan updated")
	c.refreshAfterMutation(ctx)
	return plan, nil
}

// Delete removes the plan and refetches the catalog. No dependency check is
// made: tenants assigned to the plan keep a dangling plan_id.
func (c *Catalog) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return invalid("id", "no plan selected")
	}

	if err := c.backend.DeletePlan(ctx, id); err != nil {
		return transport("delete plan", err)
	}

	c.logger.Info().Str("plan_id", id).Msg("plan deleted")
	c.refreshAfterMutation(ctx)
	return nil
}

// refreshAfterMutation refetches the catalog. A failure here is logged but
// does not fail the mutation that already succeeded on the backend.
func (c *Catalog) refreshAfterMutation(ctx context.Context) {
	if err := c.Refresh(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("failed to refetch plan catalog after mutation")
	}
}

// ValidatePlanInput checks the fields required for a catalog mutation.
func ValidatePlanInput(input models.PlanInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return invalid("name", "plan name is required")
	}
	if input.Price == nil {
		return invalid("price", "plan price is required")
	}
	if input.Price.IsNegative() {
		return invalid("price", "plan price cannot be negative")
	}
	if input.DurationDays <= 0 {
		return invalid("duration_days", "plan duration must be a positive number of days")
	}
	return nil
}
