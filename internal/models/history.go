package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// HistoryAction is the kind of change recorded in a tenant's audit trail.
type HistoryAction string

const (
	HistoryActionAssigned   HistoryAction = "assigned"
	HistoryActionExtended   HistoryAction = "extended"
	HistoryActionUnassigned HistoryAction = "unassigned"
	HistoryActionChanged    HistoryAction = "changed"
)

// HistoryEntry is one immutable row of a tenant's subscription audit trail.
type HistoryEntry struct {
	ID        string              `json:"id"`
	Action    HistoryAction       `json:"action"`
	PlanName  string              `json:"plan_name"`
	PlanPrice decimal.NullDecimal `json:"plan_price"`
	StartDate *time.Time          `json:"start_date"`
	EndDate   *time.Time          `json:"end_date"`
	Status    SubscriptionStatus  `json:"status,omitempty"`
	Notes     string              `json:"notes,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
}
