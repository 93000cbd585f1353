package subscription

import "time"

// Operation names a subscription mutation.
type Operation string

const (
	OpAssign     Operation = "assign"
	OpExtend     Operation = "extend"
	OpChangePlan Operation = "change_plan"
	OpUnassign   Operation = "unassign"
)

// Operations returns every mutation kind.
func Operations() []Operation {
	return []Operation{OpAssign, OpExtend, OpChangePlan, OpUnassign}
}

// Phase is the lifecycle position of a mutation request.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhasePending   Phase = "pending"
	PhaseSucceeded Phase = "succeeded"
	PhaseFailed    Phase = "failed"
	// PhaseRejected is returned to a caller whose request was dropped because
	// a guarded request was already in flight. Nothing was sent to the backend.
	PhaseRejected Phase = "rejected"
)

// OperationState is the tagged state of one mutation request.
type OperationState struct {
	Operation Operation `json:"operation"`
	TenantID  string    `json:"tenant_id"`
	Phase     Phase     `json:"phase"`
	RequestID string    `json:"request_id,omitempty"`
	BlockedBy string    `json:"blocked_by,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Rejected reports whether the request was dropped by a concurrency guard.
func (s OperationState) Rejected() bool {
	return s.Phase == PhaseRejected
}

// GuardScope selects how unassign requests are serialized.
type GuardScope string

const (
	// GuardGlobal allows one unassign in flight across all tenants.
	GuardGlobal GuardScope = "global"
	// GuardTenant allows one unassign in flight per tenant.
	GuardTenant GuardScope = "tenant"
)

// IsValid reports whether s is a known scope.
func (s GuardScope) IsValid() bool {
	return s == GuardGlobal || s == GuardTenant
}

// RenewMode selects the behavior of the extend-or-change dialog.
type RenewMode string

const (
	RenewExtend RenewMode = "extend"
	RenewChange RenewMode = "change"
)

// RenewRequest is the input of the extend-or-change command.
type RenewRequest struct {
	Mode         RenewMode `json:"mode"`
	PlanID       string    `json:"plan_id,omitempty"`
	DurationDays int       `json:"duration_days"`
}
