package models

import (
	"github.com/shopspring/decimal"
)

// Plan is a priced, fixed-duration service tier in the subscription catalog.
// Subscription records reference plans by ID only.
type Plan struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	DurationDays int             `json:"duration_days"`
	Features     map[string]any  `json:"features,omitempty"`
}

// PlanInput holds the editable fields of a plan for create and update calls.
// Price is a pointer so that "not provided" can be told apart from zero.
type PlanInput struct {
	Name         string           `json:"name"`
	Price        *decimal.Decimal `json:"price"`
	DurationDays int              `json:"duration_days"`
	Features     map[string]any   `json:"features,omitempty"`
}

// FindPlan returns the plan with the given ID, or nil.
func FindPlan(plans []Plan, id string) *Plan {
	for i := range plans {
		if plans[i].ID == id {
			return &plans[i]
		}
	}
	return nil
}
