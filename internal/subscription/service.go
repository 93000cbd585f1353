package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/MacJediWizard/parkadmin/internal/models"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Backend is everything the engine consumes from the parking backend.
type Backend interface {
	SubscriptionLister
	PlanBackend
	SubscriptionBackend
	HistoryBackend
}

// ServiceConfig holds configuration for the Service.
type ServiceConfig struct {
	Coordinator     CoordinatorConfig
	HistoryCache    HistoryCache
	HistoryCacheTTL time.Duration
}

// PlanDeletion reports the outcome of deleting a plan. Tenants listed in
// DanglingTenants still reference the deleted plan ID.
type PlanDeletion struct {
	PlanID          string   `json:"plan_id"`
	DanglingTenants []string `json:"dangling_tenants,omitempty"`
}

// Service is the single entry point to the subscription engine used by the
// API server and the CLI.
type Service struct {
	catalog     *Catalog
	registry    *Registry
	coordinator *Coordinator
	history     *HistoryPager
	now         func() time.Time
	logger      zerolog.Logger
}

// NewService wires the engine components around backend.
func NewService(backend Backend, config ServiceConfig, logger zerolog.Logger) *Service {
	catalog := NewCatalog(backend, logger)
	registry := NewRegistry(backend, logger)
	history := NewHistoryPager(backend, config.HistoryCache, config.HistoryCacheTTL, logger)

	coordinator := NewCoordinator(backend, registry, catalog, config.Coordinator, logger)
	coordinator.SetHistoryInvalidator(history)

	return &Service{
		catalog:     catalog,
		registry:    registry,
		coordinator: coordinator,
		history:     history,
		now:         time.Now,
		logger:      logger.With().Str("component", "subscription_service").Logger(),
	}
}

// SetClock replaces the time source for classification and optimistic patches.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
	s.coordinator.SetClock(now)
}

// Catalog returns the plan catalog.
func (s *Service) Catalog() *Catalog { return s.catalog }

// Registry returns the subscription registry.
func (s *Service) Registry() *Registry { return s.registry }

// Coordinator returns the mutation coordinator.
func (s *Service) Coordinator() *Coordinator { return s.coordinator }

// History returns the history pager.
func (s *Service) History() *HistoryPager { return s.history }

// OnChange registers fn to run whenever the catalog or the registry changes.
func (s *Service) OnChange(fn func()) {
	s.catalog.OnChange(fn)
	s.registry.OnChange(fn)
}

// Load fetches the catalog and the registry in parallel. Neither depends on
// the other; the first failure is returned.
func (s *Service) Load(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.catalog.Refresh(gctx); err != nil {
			return fmt.Errorf("load plan catalog: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := s.registry.Refresh(gctx); err != nil {
			return fmt.Errorf("load subscriptions: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	s.logger.Debug().
		Int("plans", len(s.catalog.List())).
		Int("tenants", s.registry.Len()).
		Msg("subscription data loaded")
	return nil
}

// View returns the requested page of the subscription table.
func (s *Service) View(q Query) models.SubscriptionPage {
	sel := s.registry.Select(q)
	plans := s.catalog.List()
	now := s.now()

	rows := make([]models.SubscriptionRow, 0, len(sel.Items))
	for i := range sel.Items {
		rows = append(rows, BuildRow(sel.Items[i], plans, now))
	}

	return models.SubscriptionPage{
		Items:         rows,
		Page:          sel.Page,
		PageSize:      sel.PageSize,
		PageCount:     sel.PageCount,
		FilteredCount: sel.FilteredCount,
		TotalCount:    sel.TotalCount,
	}
}

// Row enriches a single record for display.
func (s *Service) Row(rec models.TenantSubscription) models.SubscriptionRow {
	return BuildRow(rec, s.catalog.List(), s.now())
}

// Summary aggregates the dashboard cards over the records matching search.
func (s *Service) Summary(search string) models.DashboardSummary {
	filtered := Filter(s.registry.Snapshot(), search)
	return Summarize(filtered, s.catalog.List(), s.now())
}

// DeletePlan deletes the plan and reports tenants left referencing it.
func (s *Service) DeletePlan(ctx context.Context, id string) (*PlanDeletion, error) {
	dangling := s.registry.TenantsWithPlan(id)
	if err := s.catalog.Delete(ctx, id); err != nil {
		return nil, err
	}

	if len(dangling) > 0 {
		s.logger.Warn().
			Str("plan_id", id).
			Strs("tenant_ids", dangling).
			Msg("deleted plan is still assigned to tenants")
	}
	return &PlanDeletion{PlanID: id, DanglingTenants: dangling}, nil
}

// Close stops pending reconciliations.
func (s *Service) Close() {
	s.coordinator.Close()
}

// BuildRow enriches a registry record with its plan, bucket, and days left.
func BuildRow(rec models.TenantSubscription, plans []models.Plan, now time.Time) models.SubscriptionRow {
	row := models.SubscriptionRow{
		TenantSubscription: rec,
		Category:           ClassifyRecord(&rec, now),
	}
	if plan := models.FindPlan(plans, rec.PlanIDValue()); plan != nil && rec.HasPlan() {
		price := plan.Price
		row.PlanName = plan.Name
		row.PlanPrice = &price
	}
	if rec.EndDate != nil {
		days := DaysRemaining(*rec.EndDate, now)
		row.DaysRemaining = &days
	}
	return row
}
