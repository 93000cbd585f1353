// Package subscription implements the tenant subscription lifecycle: plan
// catalog, the subscription registry and its filtered view, mutation
// coordination with optimistic patches, audit history paging, and dashboard
// aggregation.
package subscription

import (
	"math"
	"time"

	"github.com/MacJediWizard/parkadmin/internal/models"
)

const (
	// millisPerDay is the divisor used for day arithmetic on subscription windows.
	millisPerDay = 86_400_000

	// CriticalWindowDays is the upper bound (inclusive) of the expiring-critical bucket.
	CriticalWindowDays = 7
	// SoonWindowDays is the upper bound (inclusive) of the expiring-soon bucket.
	SoonWindowDays = 30
)

// DaysRemaining returns ceil((end - now) / 1 day) computed on millisecond
// timestamps. A window that ended less than a day ago yields 0, not -1.
func DaysRemaining(end, now time.Time) int {
	diff := end.UnixMilli() - now.UnixMilli()
	return int(math.Ceil(float64(diff) / millisPerDay))
}

// Classify derives the status bucket of a subscription window.
//
// Precedence is fixed: no end date, then expired (flag or date), then the
// critical and soon windows, then active. The explicit expired flag wins even
// when the window is still open, and a past end date wins over an "active" flag.
func Classify(end *time.Time, status models.SubscriptionStatus, now time.Time) models.StatusCategory {
	if end == nil {
		return models.CategoryNoSubscription
	}

	days := DaysRemaining(*end, now)
	switch {
	case status == models.SubscriptionStatusExpired || days <= 0:
		return models.CategoryExpired
	case days <= CriticalWindowDays:
		return models.CategoryExpiringCritical
	case days <= SoonWindowDays:
		return models.CategoryExpiringSoon
	default:
		return models.CategoryActive
	}
}

// ClassifyRecord is Classify applied to a registry record.
func ClassifyRecord(rec *models.TenantSubscription, now time.Time) models.StatusCategory {
	return Classify(rec.EndDate, rec.Status, now)
}
