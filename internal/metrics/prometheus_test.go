package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MacJediWizard/parkadmin/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
)

func newTestMetrics(t *testing.T) (*PrometheusMetrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m, err := NewPrometheusMetrics(reg)
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}
	return m, reg
}

func TestPrometheus_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPrometheusMetrics(reg); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := NewPrometheusMetrics(reg); err == nil {
		t.Error("expected an error registering the same metrics twice")
	}
}

func TestPrometheus_BackendRequests(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.ObserveRequest("GET", "/plans", 200, 20*time.Millisecond)
	m.ObserveRequest("GET", "/plans", 200, 30*time.Millisecond)
	m.ObserveRequest("POST", "/contractors/{id}/subscription", 0, time.Second)

	if got := testutil.ToFloat64(m.BackendRequests.WithLabelValues("GET", "/plans", "200")); got != 2 {
		t.Errorf("GET /plans 200 = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.BackendRequests.WithLabelValues("POST", "/contractors/{id}/subscription", "error")); got != 1 {
		t.Errorf("transport failures = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(m.BackendDuration); n != 2 {
		t.Errorf("duration series = %d, want 2", n)
	}
}

func TestPrometheus_Mutations(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.ObserveMutation("unassign", "succeeded")
	m.ObserveMutation("unassign", "rejected")
	m.ObserveMutation("unassign", "rejected")

	if got := testutil.ToFloat64(m.Mutations.WithLabelValues("unassign", "rejected")); got != 2 {
		t.Errorf("rejected = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Mutations.WithLabelValues("unassign", "succeeded")); got != 1 {
		t.Errorf("succeeded = %v, want 1", got)
	}
}

func TestPrometheus_RefreshAndStream(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.ObserveRefresh(nil)
	m.ObserveRefresh(errors.New("backend down"))
	m.SetStreamClients(3)

	if got := testutil.ToFloat64(m.Refreshes.WithLabelValues("failure")); got != 1 {
		t.Errorf("failed refreshes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.StreamClients); got != 3 {
		t.Errorf("stream clients = %v, want 3", got)
	}
}

type staticSummary models.DashboardSummary

func (s staticSummary) Summary(string) models.DashboardSummary {
	return models.DashboardSummary(s)
}

func TestSubscriptionCollector(t *testing.T) {
	source := staticSummary{
		Counts: map[models.StatusCategory]int{
			models.CategoryActive:           4,
			models.CategoryExpiringCritical: 1,
		},
		PlanCount: 2,
		Financial: models.FinancialSummary{
			TotalRevenue:   decimal.RequireFromString("125.50"),
			TodayRevenue:   decimal.Zero,
			WeeklyRevenue:  decimal.RequireFromString("10"),
			MonthlyRevenue: decimal.RequireFromString("20"),
		},
	}
	c := NewSubscriptionCollector(source)

	// five categories, one plan gauge, four revenue windows
	if n := testutil.CollectAndCount(c); n != 10 {
		t.Errorf("collected series = %d, want 10", n)
	}

	expected := `
# HELP parkadmin_plans Plans in the catalog.
# TYPE parkadmin_plans gauge
parkadmin_plans 2
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected), "parkadmin_plans"); err != nil {
		t.Errorf("unexpected plans gauge: %v", err)
	}
}

func TestPrometheus_Handler(t *testing.T) {
	m, reg := newTestMetrics(t)
	reg.MustRegister(NewSubscriptionCollector(staticSummary{Counts: map[models.StatusCategory]int{}}))
	m.ObserveMutation("assign", "succeeded")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`parkadmin_subscription_mutations_total{operation="assign",outcome="succeeded"} 1`,
		`parkadmin_subscriptions{category="active"} 0`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
