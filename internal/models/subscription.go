package models

import "time"

// SubscriptionStatus is the status flag stored by the backend for a tenant's
// subscription. The zero value means the backend sent null.
type SubscriptionStatus string

const (
	// SubscriptionStatusActive marks a running subscription.
	SubscriptionStatusActive SubscriptionStatus = "active"
	// SubscriptionStatusExpired marks a subscription the backend considers ended.
	SubscriptionStatusExpired SubscriptionStatus = "expired"
	// SubscriptionStatusSuspended marks a subscription paused by an operator.
	SubscriptionStatusSuspended SubscriptionStatus = "suspended"
)

// StatusCategory is the time-derived bucket a subscription falls into.
type StatusCategory string

const (
	CategoryNoSubscription   StatusCategory = "no-subscription"
	CategoryExpired          StatusCategory = "expired"
	CategoryExpiringCritical StatusCategory = "expiring-critical"
	CategoryExpiringSoon     StatusCategory = "expiring-soon"
	CategoryActive           StatusCategory = "active"
)

// StatusCategories returns every category in display order.
func StatusCategories() []StatusCategory {
	return []StatusCategory{
		CategoryActive,
		CategoryExpiringSoon,
		CategoryExpiringCritical,
		CategoryExpired,
		CategoryNoSubscription,
	}
}

// TenantSubscription is the client-side replica of a tenant joined with its
// current subscription window.
type TenantSubscription struct {
	TenantID    string             `json:"tenant_id"`
	CompanyName string             `json:"company_name"`
	ContactName string             `json:"contact_name"`
	Email       string             `json:"email"`
	PlanID      *string            `json:"plan_id"`
	StartDate   *time.Time         `json:"start_date"`
	EndDate     *time.Time         `json:"end_date"`
	Status      SubscriptionStatus `json:"status,omitempty"`
}

// HasPlan reports whether a plan is currently assigned to the tenant.
func (s *TenantSubscription) HasPlan() bool {
	return s.PlanID != nil && *s.PlanID != ""
}

// PlanIDValue returns the assigned plan ID or an empty string.
func (s *TenantSubscription) PlanIDValue() string {
	if s.PlanID == nil {
		return ""
	}
	return *s.PlanID
}

// Clone returns a deep copy so callers can patch it without aliasing the original.
func (s TenantSubscription) Clone() TenantSubscription {
	out := s
	if s.PlanID != nil {
		id := *s.PlanID
		out.PlanID = &id
	}
	if s.StartDate != nil {
		t := *s.StartDate
		out.StartDate = &t
	}
	if s.EndDate != nil {
		t := *s.EndDate
		out.EndDate = &t
	}
	return out
}
