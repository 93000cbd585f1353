package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SubscriptionRow is a registry record enriched for display.
type SubscriptionRow struct {
	TenantSubscription
	PlanName      string           `json:"plan_name,omitempty"`
	PlanPrice     *decimal.Decimal `json:"plan_price,omitempty"`
	Category      StatusCategory   `json:"category"`
	DaysRemaining *int             `json:"days_remaining,omitempty"`
}

// SubscriptionPage is one page of the filtered, sorted subscription table.
type SubscriptionPage struct {
	Items         []SubscriptionRow `json:"items"`
	Page          int               `json:"page"`
	PageSize      int               `json:"page_size"`
	PageCount     int               `json:"page_count"`
	FilteredCount int               `json:"filtered_count"`
	TotalCount    int               `json:"total_count"`
}

// HistoryPage is one page of a tenant's audit trail.
type HistoryPage struct {
	TenantID  string         `json:"tenant_id"`
	Entries   []HistoryEntry `json:"entries"`
	Page      int            `json:"page"`
	PageSize  int            `json:"page_size"`
	PageCount int            `json:"page_count"`
	Total     int            `json:"total"`
}

// FinancialSummary holds revenue sums over assigned plan prices.
type FinancialSummary struct {
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	TodayRevenue   decimal.Decimal `json:"today_revenue"`
	WeeklyRevenue  decimal.Decimal `json:"weekly_revenue"`
	MonthlyRevenue decimal.Decimal `json:"monthly_revenue"`
}

// DashboardSummary aggregates bucket counts and revenue for the dashboard cards.
type DashboardSummary struct {
	Counts      map[StatusCategory]int `json:"counts"`
	TenantCount int                    `json:"tenant_count"`
	PlanCount   int                    `json:"plan_count"`
	Financial   FinancialSummary       `json:"financial"`
	GeneratedAt time.Time              `json:"generated_at"`
}
