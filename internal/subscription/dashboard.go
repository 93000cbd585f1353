package subscription

import (
	"time"

	"github.com/MacJediWizard/parkadmin/internal/models"
	"github.com/shopspring/decimal"
)

const (
	weeklyWindow  = 7 * 24 * time.Hour
	monthlyWindow = 30 * 24 * time.Hour
)

// Summarize aggregates bucket counts and revenue over records, which should be
// the filtered but unpaginated set. Revenue is the catalog price of each
// record's plan; a plan ID missing from the catalog contributes nothing.
func Summarize(records []models.TenantSubscription, plans []models.Plan, now time.Time) models.DashboardSummary {
	counts := make(map[models.StatusCategory]int, len(models.StatusCategories()))
	for _, c := range models.StatusCategories() {
		counts[c] = 0
	}

	prices := make(map[string]decimal.Decimal, len(plans))
	for _, p := range plans {
		prices[p.ID] = p.Price
	}

	now = now.UTC()
	year, month, day := now.Date()
	weekAgo := now.Add(-weeklyWindow)
	monthAgo := now.Add(-monthlyWindow)

	fin := models.FinancialSummary{
		TotalRevenue:   decimal.Zero,
		TodayRevenue:   decimal.Zero,
		WeeklyRevenue:  decimal.Zero,
		MonthlyRevenue: decimal.Zero,
	}

	for i := range records {
		rec := &records[i]
		counts[ClassifyRecord(rec, now)]++

		price, ok := prices[rec.PlanIDValue()]
		if !rec.HasPlan() || !ok {
			continue
		}
		fin.TotalRevenue = fin.TotalRevenue.Add(price)

		if rec.StartDate == nil {
			continue
		}
		start := rec.StartDate.UTC()
		if y, m, d := start.Date(); y == year && m == month && d == day {
			fin.TodayRevenue = fin.TodayRevenue.Add(price)
		}
		if inWindow(start, weekAgo, now) {
			fin.WeeklyRevenue = fin.WeeklyRevenue.Add(price)
		}
		if inWindow(start, monthAgo, now) {
			fin.MonthlyRevenue = fin.MonthlyRevenue.Add(price)
		}
	}

	return models.DashboardSummary{
		Counts:      counts,
		TenantCount: len(records),
		PlanCount:   len(plans),
		Financial:   fin,
		GeneratedAt: now,
	}
}

// inWindow reports whether t lies in [from, to].
func inWindow(t, from, to time.Time) bool {
	return !t.Before(from) && !t.After(to)
}
