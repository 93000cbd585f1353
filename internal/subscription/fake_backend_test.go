package subscription

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MacJediWizard/parkadmin/internal/backend"
	"github.com/MacJediWizard/parkadmin/internal/models"
	"github.com/shopspring/decimal"
)

// fakeBackend is an in-memory stand-in for the parking backend.
type fakeBackend struct {
	mu sync.Mutex

	plans   []models.Plan
	records []models.TenantSubscription
	history map[string][]models.HistoryEntry

	listCalls    int
	historyCalls int
	unassigns    []string
	assigns      []assignCall
	extends      []assignCall

	// returnRecord makes assign and extend answer with the updated record.
	returnRecord bool
	// failWith is returned by every mutation when set.
	failWith error
	listErr  error

	// gate, when set, blocks mutations until it is closed. entered receives
	// a value each time a mutation reaches the gate.
	gate    chan struct{}
	entered chan string

	// listPlansHook, when set, supplies the plan list for the nth ListPlans
	// call (1-based) and may block.
	listPlansHook func(n int) []models.Plan
	planCalls     int
	// historyHook runs before a history fetch returns and may block.
	historyHook func(ctx context.Context)
}

type assignCall struct {
	tenantID string
	planID   string
	days     int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{history: make(map[string][]models.HistoryEntry)}
}

func (f *fakeBackend) wait(ctx context.Context, tenantID string) error {
	f.mu.Lock()
	gate, entered := f.gate, f.entered
	f.mu.Unlock()

	if entered != nil {
		entered <- tenantID
	}
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeBackend) ListPlans(_ context.Context) ([]models.Plan, error) {
	f.mu.Lock()
	f.planCalls++
	n, hook := f.planCalls, f.listPlansHook
	f.mu.Unlock()

	if hook != nil {
		return hook(n), nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Plan(nil), f.plans...), nil
}

func (f *fakeBackend) CreatePlan(_ context.Context, input models.PlanInput) (*models.Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	p := models.Plan{
		ID:           fmt.Sprintf("plan-%d", len(f.plans)+1),
		Name:         input.Name,
		Price:        *input.Price,
		DurationDays: input.DurationDays,
	}
	f.plans = append(f.plans, p)
	return &p, nil
}

func (f *fakeBackend) UpdatePlan(_ context.Context, id string, input models.PlanInput) (*models.Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	for i := range f.plans {
		if f.plans[i].ID == id {
			f.plans[i].Name = input.Name
			f.plans[i].Price = *input.Price
			f.plans[i].DurationDays = input.DurationDays
			p := f.plans[i]
			return &p, nil
		}
	}
	return nil, &backend.APIError{StatusCode: 404, Message: "plan not found"}
}

func (f *fakeBackend) DeletePlan(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	for i := range f.plans {
		if f.plans[i].ID == id {
			f.plans = append(f.plans[:i], f.plans[i+1:]...)
			return nil
		}
	}
	return &backend.APIError{StatusCode: 404, Message: "plan not found"}
}

func (f *fakeBackend) ListTenantSubscriptions(_ context.Context) ([]models.TenantSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]models.TenantSubscription, len(f.records))
	for i := range f.records {
		out[i] = f.records[i].Clone()
	}
	return out, nil
}

func (f *fakeBackend) AssignSubscription(ctx context.Context, tenantID, planID string, days int) (*models.TenantSubscription, error) {
	if err := f.wait(ctx, tenantID); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.assigns = append(f.assigns, assignCall{tenantID: tenantID, planID: planID, days: days})
	if f.failWith != nil {
		return nil, f.failWith
	}

	rec := f.find(tenantID)
	if rec == nil {
		return nil, &backend.APIError{StatusCode: 404, Message: "contractor not found"}
	}
	start := time.Now().UTC()
	end := start.AddDate(0, 0, days)
	pid := planID
	rec.PlanID = &pid
	rec.StartDate = &start
	rec.EndDate = &end
	rec.Status = models.SubscriptionStatusActive

	if f.returnRecord {
		out := rec.Clone()
		return &out, nil
	}
	return nil, nil
}

func (f *fakeBackend) ExtendSubscription(ctx context.Context, tenantID string, days int) (*models.TenantSubscription, error) {
	if err := f.wait(ctx, tenantID); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.extends = append(f.extends, assignCall{tenantID: tenantID, days: days})
	if f.failWith != nil {
		return nil, f.failWith
	}

	rec := f.find(tenantID)
	if rec == nil {
		return nil, &backend.APIError{StatusCode: 404, Message: "contractor not found"}
	}
	start := time.Now().UTC()
	end := start.AddDate(0, 0, days)
	rec.StartDate = &start
	rec.EndDate = &end

	if f.returnRecord {
		out := rec.Clone()
		return &out, nil
	}
	return nil, nil
}

func (f *fakeBackend) UnassignSubscription(ctx context.Context, tenantID string) error {
	if err := f.wait(ctx, tenantID); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.unassigns = append(f.unassigns, tenantID)
	if f.failWith != nil {
		return f.failWith
	}
	if rec := f.find(tenantID); rec != nil {
		rec.PlanID = nil
	}
	return nil
}

func (f *fakeBackend) GetTenantSubscriptionHistory(ctx context.Context, tenantID string) ([]models.HistoryEntry, error) {
	f.mu.Lock()
	hook := f.historyHook
	f.mu.Unlock()
	if hook != nil {
		hook(ctx)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyCalls++
	if f.failWith != nil {
		return nil, f.failWith
	}
	return append([]models.HistoryEntry(nil), f.history[tenantID]...), nil
}

func (f *fakeBackend) find(tenantID string) *models.TenantSubscription {
	for i := range f.records {
		if f.records[i].TenantID == tenantID {
			return &f.records[i]
		}
	}
	return nil
}

func (f *fakeBackend) calls() (assigns, extends, unassigns int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.assigns), len(f.extends), len(f.unassigns)
}

func (f *fakeBackend) lists() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

var errBackendDown = errors.New("connection refused")

// test fixtures

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func pricePtr(s string) *decimal.Decimal {
	d := price(s)
	return &d
}

func samplePlans() []models.Plan {
	return []models.Plan{
		{ID: "basic", Name: "Basic", Price: price("10.00"), DurationDays: 30},
		{ID: "pro", Name: "Pro", Price: price("25.50"), DurationDays: 90},
	}
}

func tenant(id, company string, planID *string, end *time.Time) models.TenantSubscription {
	return models.TenantSubscription{
		TenantID:    id,
		CompanyName: company,
		ContactName: "Contact " + id,
		Email:       id + "@example.com",
		PlanID:      planID,
		StartDate:   timePtr(fixedNow.AddDate(0, 0, -1)),
		EndDate:     end,
		Status:      models.SubscriptionStatusActive,
	}
}
