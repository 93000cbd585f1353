package subscription

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/MacJediWizard/parkadmin/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SubscriptionBackend is the subset of the backend API the coordinator needs.
// Assign and Extend may return the authoritative record; nil means the
// backend did not include one.
type SubscriptionBackend interface {
	AssignSubscription(ctx context.Context, tenantID, planID string, days int) (*models.TenantSubscription, error)
	ExtendSubscription(ctx context.Context, tenantID string, days int) (*models.TenantSubscription, error)
	UnassignSubscription(ctx context.Context, tenantID string) error
}

// HistoryInvalidator drops cached history after a tenant's subscription changes.
type HistoryInvalidator interface {
	Invalidate(ctx context.Context, tenantID string)
}

// MutationObserver receives the terminal phase of every mutation request.
type MutationObserver interface {
	ObserveMutation(op string, phase string)
}

// CoordinatorConfig holds configuration for the Coordinator.
type CoordinatorConfig struct {
	// ReconcileDelay is how long to wait before refetching the registry after
	// a mutation whose response carried no record. It absorbs replication lag
	// on the backend.
	ReconcileDelay time.Duration
	// ReconcileTimeout bounds the reconciliation refetch.
	ReconcileTimeout time.Duration
	// UnassignScope selects global or per-tenant serialization of unassigns.
	UnassignScope GuardScope
}

// DefaultCoordinatorConfig returns the default configuration.
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		ReconcileDelay:   time.Second,
		ReconcileTimeout: 30 * time.Second,
		UnassignScope:    GuardGlobal,
	}
}

type stateKey struct {
	op     Operation
	tenant string
}

// Coordinator issues subscription mutations against the backend, patches the
// registry optimistically on success, and schedules an authoritative refetch.
//
// Assign, extend, and change-plan are guarded per tenant. Unassign is guarded
// by a single global slot unless configured per tenant. A request that hits a
// guard is not queued and not an error: it returns a rejected state.
type Coordinator struct {
	backend  SubscriptionBackend
	registry *Registry
	catalog  *Catalog
	history  HistoryInvalidator
	observer MutationObserver
	config   CoordinatorConfig
	now      func() time.Time
	logger   zerolog.Logger

	baseCtx context.Context
	cancel  context.CancelFunc

	mu        sync.Mutex
	states    map[stateKey]OperationState
	inFlight  map[string]string // tenant ID -> request ID for assign/extend/change
	unassigns map[string]string // guard key -> request ID
	timers    map[uint64]*time.Timer
	nextTimer uint64
	closed    bool
	wg        sync.WaitGroup
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(backend SubscriptionBackend, registry *Registry, catalog *Catalog, config CoordinatorConfig, logger zerolog.Logger) *Coordinator {
	if !config.UnassignScope.IsValid() {
		config.UnassignScope = GuardGlobal
	}
	if config.ReconcileTimeout <= 0 {
		config.ReconcileTimeout = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		backend:   backend,
		registry:  registry,
		catalog:   catalog,
		config:    config,
		now:       time.Now,
		logger:    logger.With().Str("component", "mutation_coordinator").Logger(),
		baseCtx:   ctx,
		cancel:    cancel,
		states:    make(map[stateKey]OperationState),
		inFlight:  make(map[string]string),
		unassigns: make(map[string]string),
		timers:    make(map[uint64]*time.Timer),
	}
}

// SetClock replaces the time source used for optimistic window patches.
func (c *Coordinator) SetClock(now func() time.Time) {
	c.now = now
}

// SetHistoryInvalidator sets the history cache to invalidate after mutations.
func (c *Coordinator) SetHistoryInvalidator(h HistoryInvalidator) {
	c.history = h
}

// SetObserver sets the observer notified of mutation outcomes.
func (c *Coordinator) SetObserver(o MutationObserver) {
	c.observer = o
}

// Assign binds the tenant to a plan and opens a window of days starting now.
// days == 0 uses the plan's catalog duration.
func (c *Coordinator) Assign(ctx context.Context, tenantID, planID string, days int) (OperationState, error) {
	return c.assign(ctx, OpAssign, tenantID, planID, days)
}

// ChangePlan moves a tenant that already has a plan to another one. Its
// effect is identical to Assign; days == 0 uses the new plan's duration.
func (c *Coordinator) ChangePlan(ctx context.Context, tenantID, planID string, days int) (OperationState, error) {
	return c.assign(ctx, OpChangePlan, tenantID, planID, days)
}

func (c *Coordinator) assign(ctx context.Context, op Operation, tenantID, planID string, days int) (OperationState, error) {
	if err := requireTenant(tenantID); err != nil {
		c.observe(op, "invalid")
		return OperationState{}, err
	}
	if strings.TrimSpace(planID) == "" {
		c.observe(op, "invalid")
		return OperationState{}, invalid("plan_id", "no plan selected")
	}

	days, err := c.resolveDuration(planID, days)
	if err != nil {
		c.observe(op, "invalid")
		return OperationState{}, err
	}

	state, ok := c.beginTenantOp(op, tenantID)
	if !ok {
		return state, nil
	}
	defer c.endTenantOp(tenantID)

	rec, err := c.backend.AssignSubscription(ctx, tenantID, planID, days)
	if err != nil {
		terr := transport(string(op), err)
		return c.finish(state, PhaseFailed, terr.Error()), terr
	}

	if rec != nil {
		c.registry.Put(*rec)
	} else {
		start := c.now().UTC()
		end := start.AddDate(0, 0, days)
		pid := planID
		c.registry.Patch(tenantID, func(r *models.TenantSubscription) {
			r.PlanID = &pid
			r.StartDate = &start
			r.EndDate = &end
			r.Status = models.SubscriptionStatusActive
		})
		c.scheduleReconcile()
	}

	c.afterSuccess(ctx, tenantID)
	c.logger.Info().
		Str("operation", string(op)).
		Str("tenant_id", tenantID).
		Str("plan_id", planID).
		Int("days", days).
		Str("request_id", state.RequestID).
		Msg("subscription assigned")
	return c.finish(state, PhaseSucceeded, ""), nil
}

// Extend resets the tenant's window to [now, now+days]. The previous end date
// is discarded, not extended.
func (c *Coordinator) Extend(ctx context.Context, tenantID string, days int) (OperationState, error) {
	if err := requireTenant(tenantID); err != nil {
		c.observe(OpExtend, "invalid")
		return OperationState{}, err
	}
	if days <= 0 {
		c.observe(OpExtend, "invalid")
		return OperationState{}, invalid("duration_days", "extension must be a positive number of days")
	}

	state, ok := c.beginTenantOp(OpExtend, tenantID)
	if !ok {
		return state, nil
	}
	defer c.endTenantOp(tenantID)

	rec, err := c.backend.ExtendSubscription(ctx, tenantID, days)
	if err != nil {
		terr := transport(string(OpExtend), err)
		return c.finish(state, PhaseFailed, terr.Error()), terr
	}

	if rec != nil {
		c.registry.Put(*rec)
	} else {
		start := c.now().UTC()
		end := start.AddDate(0, 0, days)
		c.registry.Patch(tenantID, func(r *models.TenantSubscription) {
			r.StartDate = &start
			r.EndDate = &end
		})
		c.scheduleReconcile()
	}

	c.afterSuccess(ctx, tenantID)
	c.logger.Info().
		Str("tenant_id", tenantID).
		Int("days", days).
		Str("request_id", state.RequestID).
		Msg("subscription extended")
	return c.finish(state, PhaseSucceeded, ""), nil
}

// Renew dispatches the extend-or-change command by mode.
func (c *Coordinator) Renew(ctx context.Context, tenantID string, req RenewRequest) (OperationState, error) {
	switch req.Mode {
	case RenewExtend:
		return c.Extend(ctx, tenantID, req.DurationDays)
	case RenewChange:
		if strings.TrimSpace(req.PlanID) == "" {
			c.observe(OpChangePlan, "invalid")
			return OperationState{}, invalid("plan_id", "no plan selected")
		}
		if req.DurationDays < 0 {
			c.observe(OpChangePlan, "invalid")
			return OperationState{}, invalid("duration_days", "duration must be a positive number of days")
		}
		return c.ChangePlan(ctx, tenantID, req.PlanID, req.DurationDays)
	default:
		return OperationState{}, invalid("mode", "mode must be extend or change")
	}
}

// Unassign removes the tenant's plan. While another unassign holds the guard
// the call is a no-op that returns a rejected state.
func (c *Coordinator) Unassign(ctx context.Context, tenantID string) (OperationState, error) {
	if err := requireTenant(tenantID); err != nil {
		c.observe(OpUnassign, "invalid")
		return OperationState{}, err
	}

	key := ""
	if c.config.UnassignScope == GuardTenant {
		key = tenantID
	}

	c.mu.Lock()
	if blocking, busy := c.unassigns[key]; busy {
		c.mu.Unlock()
		c.logger.Debug().Str("tenant_id", tenantID).Str("blocked_by", blocking).Msg("unassign already in flight, ignoring request")
		c.observe(OpUnassign, string(PhaseRejected))
		return OperationState{
			Operation: OpUnassign,
			TenantID:  tenantID,
			Phase:     PhaseRejected,
			BlockedBy: blocking,
			UpdatedAt: c.now().UTC(),
		}, nil
	}
	state := c.pendingLocked(OpUnassign, tenantID)
	c.unassigns[key] = state.RequestID
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.unassigns, key)
		c.mu.Unlock()
	}()

	if err := c.backend.UnassignSubscription(ctx, tenantID); err != nil {
		terr := transport(string(OpUnassign), err)
		return c.finish(state, PhaseFailed, terr.Error()), terr
	}

	c.registry.Patch(tenantID, func(r *models.TenantSubscription) {
		r.PlanID = nil
	})
	c.scheduleReconcile()
	c.afterSuccess(ctx, tenantID)

	c.logger.Info().Str("tenant_id", tenantID).Str("request_id", state.RequestID).Msg("subscription unassigned")
	return c.finish(state, PhaseSucceeded, ""), nil
}

// State returns the latest state of op for the tenant, or idle.
func (c *Coordinator) State(op Operation, tenantID string) OperationState {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.states[stateKey{op: op, tenant: tenantID}]; ok {
		return s
	}
	return OperationState{Operation: op, TenantID: tenantID, Phase: PhaseIdle}
}

// States returns the latest state of every operation for the tenant.
func (c *Coordinator) States(tenantID string) []OperationState {
	out := make([]OperationState, 0, len(Operations()))
	for _, op := range Operations() {
		out = append(out, c.State(op, tenantID))
	}
	return out
}

// InFlight returns the number of mutations currently waiting on the backend.
func (c *Coordinator) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inFlight) + len(c.unassigns)
}

// Close cancels pending reconciliations and waits for running ones.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	for id, t := range c.timers {
		if t.Stop() {
			c.wg.Done()
		}
		delete(c.timers, id)
	}
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

func (c *Coordinator) resolveDuration(planID string, days int) (int, error) {
	if days < 0 {
		return 0, invalid("duration_days", "duration must be a positive number of days")
	}
	if days > 0 {
		return days, nil
	}
	if c.catalog != nil {
		if plan, ok := c.catalog.Get(planID); ok && plan.DurationDays > 0 {
			return plan.DurationDays, nil
		}
	}
	return 0, invalid("duration_days", "duration must be a positive number of days")
}

func (c *Coordinator) beginTenantOp(op Operation, tenantID string) (OperationState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if blocking, busy := c.inFlight[tenantID]; busy {
		c.logger.Debug().Str("operation", string(op)).Str("tenant_id", tenantID).Str("blocked_by", blocking).Msg("mutation already in flight for tenant, ignoring request")
		c.observe(op, string(PhaseRejected))
		return OperationState{
			Operation: op,
			TenantID:  tenantID,
			Phase:     PhaseRejected,
			BlockedBy: blocking,
			UpdatedAt: c.now().UTC(),
		}, false
	}

	state := c.pendingLocked(op, tenantID)
	c.inFlight[tenantID] = state.RequestID
	return state, true
}

func (c *Coordinator) endTenantOp(tenantID string) {
	c.mu.Lock()
	delete(c.inFlight, tenantID)
	c.mu.Unlock()
}

func (c *Coordinator) pendingLocked(op Operation, tenantID string) OperationState {
	state := OperationState{
		Operation: op,
		TenantID:  tenantID,
		Phase:     PhasePending,
		RequestID: uuid.NewString(),
		UpdatedAt: c.now().UTC(),
	}
	c.states[stateKey{op: op, tenant: tenantID}] = state
	return state
}

func (c *Coordinator) finish(state OperationState, phase Phase, reason string) OperationState {
	state.Phase = phase
	state.Reason = reason
	state.UpdatedAt = c.now().UTC()

	c.mu.Lock()
	key := stateKey{op: state.Operation, tenant: state.TenantID}
	// a newer request may have started since; only overwrite our own
	if cur, ok := c.states[key]; !ok || cur.RequestID == state.RequestID {
		c.states[key] = state
	}
	c.mu.Unlock()

	if phase == PhaseFailed {
		c.logger.Warn().
			Str("operation", string(state.Operation)).
			Str("tenant_id", state.TenantID).
			Str("request_id", state.RequestID).
			Str("reason", reason).
			Msg("subscription mutation failed")
	}
	c.observe(state.Operation, string(phase))
	return state
}

func (c *Coordinator) observe(op Operation, phase string) {
	if c.observer != nil {
		c.observer.ObserveMutation(string(op), phase)
	}
}

func (c *Coordinator) afterSuccess(ctx context.Context, tenantID string) {
	if c.history != nil {
		c.history.Invalidate(ctx, tenantID)
	}
}

// scheduleReconcile refetches the registry after ReconcileDelay.
func (c *Coordinator) scheduleReconcile() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	id := c.nextTimer
	c.nextTimer++
	c.wg.Add(1)
	c.timers[id] = time.AfterFunc(c.config.ReconcileDelay, func() {
		defer c.wg.Done()

		c.mu.Lock()
		_, live := c.timers[id]
		delete(c.timers, id)
		c.mu.Unlock()
		if !live {
			return
		}

		ctx, cancel := context.WithTimeout(c.baseCtx, c.config.ReconcileTimeout)
		defer cancel()
		if err := c.registry.Refresh(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("reconciliation refetch failed")
		}
	})
}

func requireTenant(tenantID string) error {
	if strings.TrimSpace(tenantID) == "" {
		return invalid("tenant_id", "no tenant selected")
	}
	return nil
}
