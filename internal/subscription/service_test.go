package subscription

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MacJediWizard/parkadmin/internal/models"
	"github.com/rs/zerolog"
)

func newTestService(t *testing.T, fb *fakeBackend) *Service {
	t.Helper()
	config := ServiceConfig{
		Coordinator:     slowReconcile(),
		HistoryCache:    NewMemoryHistoryCache(),
		HistoryCacheTTL: time.Minute,
	}
	s := NewService(fb, config, zerolog.Nop())
	s.SetClock(fixedClock)
	t.Cleanup(s.Close)

	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return s
}

func TestService_Load(t *testing.T) {
	fb := seededBackend()
	s := newTestService(t, fb)

	if len(s.Catalog().List()) != 2 {
		t.Errorf("plans = %d, want 2", len(s.Catalog().List()))
	}
	if s.Registry().Len() != 3 {
		t.Errorf("tenants = %d, want 3", s.Registry().Len())
	}
}

func TestService_LoadError(t *testing.T) {
	fb := seededBackend()
	fb.listErr = errBackendDown
	s := NewService(fb, ServiceConfig{Coordinator: slowReconcile()}, zerolog.Nop())
	defer s.Close()

	err := s.Load(context.Background())
	if !IsTransport(err) {
		t.Fatalf("Load() error = %v, want TransportError", err)
	}
	if !errors.Is(err, errBackendDown) {
		t.Errorf("Load() error = %v, want wrapped %v", err, errBackendDown)
	}
}

func TestService_ViewEnrichesRows(t *testing.T) {
	fb := seededBackend()
	s := newTestService(t, fb)

	page := s.View(Query{SortBy: SortCompanyName})
	// A has no plan and is filtered out
	if page.FilteredCount != 2 || page.TotalCount != 3 {
		t.Fatalf("FilteredCount = %d, TotalCount = %d, want 2, 3", page.FilteredCount, page.TotalCount)
	}

	row := page.Items[1]
	if row.TenantID != "C" {
		t.Fatalf("Items[1] = %s, want C", row.TenantID)
	}
	if row.PlanName != "Pro" {
		t.Errorf("PlanName = %q, want Pro", row.PlanName)
	}
	if row.PlanPrice == nil || !row.PlanPrice.Equal(price("25.50")) {
		t.Errorf("PlanPrice = %v, want 25.50", row.PlanPrice)
	}
	if row.Category != models.CategoryExpiringCritical {
		t.Errorf("Category = %v, want %v", row.Category, models.CategoryExpiringCritical)
	}
	if row.DaysRemaining == nil || *row.DaysRemaining != 5 {
		t.Errorf("DaysRemaining = %v, want 5", row.DaysRemaining)
	}
}

func TestService_AssignShowsInExpiringCriticalBucket(t *testing.T) {
	fb := seededBackend()
	fb.plans = append(fb.plans, models.Plan{ID: "weekly", Name: "Weekly", Price: price("3.00"), DurationDays: 5})
	s := newTestService(t, fb)

	before := s.Summary("")
	if _, err := s.Coordinator().Assign(context.Background(), "A", "weekly", 0); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	after := s.Summary("")

	got := after.Counts[models.CategoryExpiringCritical] - before.Counts[models.CategoryExpiringCritical]
	if got != 1 {
		t.Errorf("expiring-critical delta = %d, want 1", got)
	}
	if fb.lists() != 1 {
		t.Errorf("list calls = %d, want the optimistic patch to show before any refetch", fb.lists())
	}

	page := s.View(Query{Search: "alpha"})
	if len(page.Items) != 1 || page.Items[0].Category != models.CategoryExpiringCritical {
		t.Errorf("View(alpha) = %+v, want A in expiring-critical", page.Items)
	}
}

func TestService_ThirtyDayAssignIsExpiringSoon(t *testing.T) {
	fb := seededBackend()
	s := newTestService(t, fb)

	// the 30 day boundary is inclusive, so a fresh 30 day plan is not yet active
	if _, err := s.Coordinator().Assign(context.Background(), "A", "basic", 30); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}

	rec, _ := s.Registry().Get("A")
	row := s.Row(rec)
	if row.Category != models.CategoryExpiringSoon {
		t.Errorf("Category = %v, want %v", row.Category, models.CategoryExpiringSoon)
	}
	if row.DaysRemaining == nil || *row.DaysRemaining != 30 {
		t.Errorf("DaysRemaining = %v, want 30", row.DaysRemaining)
	}
	if !rec.EndDate.Equal(fixedNow.AddDate(0, 0, 30)) {
		t.Errorf("EndDate = %v, want now+30d", rec.EndDate)
	}

	if _, err := s.Coordinator().Extend(context.Background(), "A", 31); err != nil {
		t.Fatalf("Extend() error = %v", err)
	}
	rec, _ = s.Registry().Get("A")
	if got := s.Row(rec).Category; got != models.CategoryActive {
		t.Errorf("Category after 31 days = %v, want %v", got, models.CategoryActive)
	}
}

func TestService_SummaryFollowsSearch(t *testing.T) {
	fb := seededBackend()
	s := newTestService(t, fb)

	all := s.Summary("")
	if all.TenantCount != 2 {
		t.Errorf("TenantCount = %d, want 2 assigned tenants", all.TenantCount)
	}
	if all.Financial.TotalRevenue.StringFixed(2) != "35.50" {
		t.Errorf("TotalRevenue = %s, want 35.50", all.Financial.TotalRevenue.StringFixed(2))
	}

	bravo := s.Summary("bravo")
	if bravo.TenantCount != 1 || bravo.Financial.TotalRevenue.StringFixed(2) != "10.00" {
		t.Errorf("Summary(bravo) = %+v", bravo)
	}
}

func TestService_DeletePlanReportsDanglingTenants(t *testing.T) {
	fb := seededBackend()
	s := newTestService(t, fb)

	res, err := s.DeletePlan(context.Background(), "pro")
	if err != nil {
		t.Fatalf("DeletePlan() error = %v", err)
	}
	if len(res.DanglingTenants) != 1 || res.DanglingTenants[0] != "C" {
		t.Errorf("DanglingTenants = %v, want [C]", res.DanglingTenants)
	}

	// the dangling tenant stays listed with no plan name and no revenue
	row := s.View(Query{Search: "charlie"}).Items[0]
	if row.PlanName != "" || row.PlanPrice != nil {
		t.Errorf("row = %+v, want no plan details for a dangling plan id", row)
	}
	if s.Summary("charlie").Financial.TotalRevenue.Sign() != 0 {
		t.Error("dangling plan id should contribute no revenue")
	}
}

func TestService_OnChange(t *testing.T) {
	fb := seededBackend()
	s := newTestService(t, fb)

	var changes atomic.Int32
	s.OnChange(func() { changes.Add(1) })

	if _, err := s.Coordinator().Unassign(context.Background(), "B"); err != nil {
		t.Fatalf("Unassign() error = %v", err)
	}
	if err := s.Catalog().Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if changes.Load() != 2 {
		t.Errorf("change notifications = %d, want 2", changes.Load())
	}
}

func TestService_MutationInvalidatesHistory(t *testing.T) {
	fb := seededBackend()
	fb.history["B"] = historyEntries(3)
	s := newTestService(t, fb)
	ctx := context.Background()

	if _, err := s.History().GetPage(ctx, "B", 1, 10); err != nil {
		t.Fatalf("GetPage() error = %v", err)
	}
	if _, err := s.Coordinator().Extend(ctx, "B", 30); err != nil {
		t.Fatalf("Extend() error = %v", err)
	}
	if _, err := s.History().GetPage(ctx, "B", 1, 10); err != nil {
		t.Fatalf("GetPage() error = %v", err)
	}
	if fb.historyCalls != 2 {
		t.Errorf("history fetches = %d, want 2", fb.historyCalls)
	}
}
