package metrics

import (
	"github.com/MacJediWizard/parkadmin/internal/models"
	"github.com/prometheus/client_golang/prometheus"
)

// SummarySource produces the current dashboard summary.
type SummarySource interface {
	Summary(search string) models.DashboardSummary
}

// SubscriptionCollector exports the dashboard summary as gauges, computed
// from the registry at scrape time.
type SubscriptionCollector struct {
	source SummarySource

	tenants *prometheus.Desc
	plans   *prometheus.Desc
	revenue *prometheus.Desc
}

// NewSubscriptionCollector creates a collector over source.
func NewSubscriptionCollector(source SummarySource) *SubscriptionCollector {
	return &SubscriptionCollector{
		source: source,
		tenants: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "subscriptions"),
			"Tenants with an assigned plan by status category.",
			[]string{"category"}, nil,
		),
		plans: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "plans"),
			"Plans in the catalog.",
			nil, nil,
		),
		revenue: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "revenue"),
			"Sum of assigned plan prices by window.",
			[]string{"window"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *SubscriptionCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.tenants
	ch <- c.plans
	ch <- c.revenue
}

// Collect implements prometheus.Collector.
func (c *SubscriptionCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.source.Summary("")

	for _, cat := range models.StatusCategories() {
		ch <- prometheus.MustNewConstMetric(c.tenants, prometheus.GaugeValue, float64(s.Counts[cat]), string(cat))
	}
	ch <- prometheus.MustNewConstMetric(c.plans, prometheus.GaugeValue, float64(s.PlanCount))

	for window, amount := range map[string]float64{
		"total":   s.Financial.TotalRevenue.InexactFloat64(),
		"today":   s.Financial.TodayRevenue.InexactFloat64(),
		"weekly":  s.Financial.WeeklyRevenue.InexactFloat64(),
		"monthly": s.Financial.MonthlyRevenue.InexactFloat64(),
	} {
		ch <- prometheus.MustNewConstMetric(c.revenue, prometheus.GaugeValue, amount, window)
	}
}
