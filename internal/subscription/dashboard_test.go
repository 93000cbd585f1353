package subscription

import (
	"testing"
	"time"

	"github.com/MacJediWizard/parkadmin/internal/models"
)

func TestSummarize_Counts(t *testing.T) {
	records := []models.TenantSubscription{
		tenant("a", "A", strPtr("basic"), timePtr(fixedNow.AddDate(0, 0, 3))),
		tenant("b", "B", strPtr("basic"), timePtr(fixedNow.AddDate(0, 0, 20))),
		tenant("c", "C", strPtr("pro"), timePtr(fixedNow.AddDate(0, 0, 60))),
		tenant("d", "D", strPtr("pro"), timePtr(fixedNow.AddDate(0, 0, -2))),
		tenant("e", "E", strPtr("pro"), nil),
	}

	s := Summarize(records, samplePlans(), fixedNow)

	want := map[models.StatusCategory]int{
		models.CategoryExpiringCritical: 1,
		models.CategoryExpiringSoon:     1,
		models.CategoryActive:           1,
		models.CategoryExpired:          1,
		models.CategoryNoSubscription:   1,
	}
	for cat, n := range want {
		if s.Counts[cat] != n {
			t.Errorf("Counts[%s] = %d, want %d", cat, s.Counts[cat], n)
		}
	}
	if s.TenantCount != 5 || s.PlanCount != 2 {
		t.Errorf("TenantCount = %d, PlanCount = %d, want 5, 2", s.TenantCount, s.PlanCount)
	}
}

func TestSummarize_Revenue(t *testing.T) {
	at := func(id, plan string, start time.Time) models.TenantSubscription {
		rec := tenant(id, id, strPtr(plan), timePtr(fixedNow.AddDate(0, 0, 30)))
		rec.StartDate = timePtr(start)
		return rec
	}

	startOfDay := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	records := []models.TenantSubscription{
		at("today", "basic", startOfDay),                     // 10.00 today, week, month
		at("week", "pro", fixedNow.AddDate(0, 0, -5)),        // 25.50 week, month
		at("month", "basic", fixedNow.AddDate(0, 0, -20)),    // 10.00 month
		at("old", "pro", fixedNow.AddDate(0, 0, -45)),        // 25.50 total only
		at("dangling", "deleted", fixedNow),                  // no revenue
		at("yesterday", "basic", startOfDay.Add(-time.Hour)), // 10.00 week, month
	}

	s := Summarize(records, samplePlans(), fixedNow)

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"total", s.Financial.TotalRevenue.StringFixed(2), "81.00"},
		{"today", s.Financial.TodayRevenue.StringFixed(2), "10.00"},
		{"weekly", s.Financial.WeeklyRevenue.StringFixed(2), "45.50"},
		{"monthly", s.Financial.MonthlyRevenue.StringFixed(2), "55.50"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s revenue = %s, want %s", tt.name, tt.got, tt.want)
		}
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, nil, fixedNow)
	for _, cat := range models.StatusCategories() {
		if n, ok := s.Counts[cat]; !ok || n != 0 {
			t.Errorf("Counts[%s] = %d, %v, want 0, true", cat, n, ok)
		}
	}
	if !s.Financial.TotalRevenue.IsZero() {
		t.Errorf("TotalRevenue = %s, want 0", s.Financial.TotalRevenue)
	}
}
