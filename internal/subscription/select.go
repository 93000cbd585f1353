package subscription

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/MacJediWizard/parkadmin/internal/models"
	"golang.org/x/text/cases"
)

// DefaultPageSize is used when a query asks for a non-positive page size.
const DefaultPageSize = 10

// SortField names a column the subscription table can be ordered by.
type SortField string

const (
	SortNone          SortField = ""
	SortCompanyName   SortField = "company_name"
	SortContactName   SortField = "contact_name"
	SortEmail         SortField = "email"
	SortStartDate     SortField = "start_date"
	SortEndDate       SortField = "end_date"
	SortDaysRemaining SortField = "days_remaining"
)

// ValidSortFields returns the accepted sort fields.
func ValidSortFields() []SortField {
	return []SortField{SortCompanyName, SortContactName, SortEmail, SortStartDate, SortEndDate, SortDaysRemaining}
}

// IsValid reports whether f is empty or a known sort field.
func (f SortField) IsValid() bool {
	return f == SortNone || slices.Contains(ValidSortFields(), f)
}

// Query is the transient view state of the subscription table.
type Query struct {
	Search   string
	Page     int
	PageSize int
	SortBy   SortField
	Desc     bool
}

// Selection is the result of applying a Query to the registry.
type Selection struct {
	Items         []models.TenantSubscription
	Page          int
	PageSize      int
	PageCount     int
	FilteredCount int
	TotalCount    int
}

// PageCount returns max(1, ceil(count/pageSize)).
func PageCount(count, pageSize int) int {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	pages := (count + pageSize - 1) / pageSize
	if pages < 1 {
		return 1
	}
	return pages
}

// ClampPage moves a requested page into [1, pageCount].
func ClampPage(page, pageCount int) int {
	if page < 1 {
		return 1
	}
	if page > pageCount {
		return pageCount
	}
	return page
}

// Filter returns the records that pass the table predicate, in input order:
// a plan is assigned and the search text is a case-insensitive substring of
// the company name, contact name or email. Empty search text matches every
// assigned record.
func Filter(records []models.TenantSubscription, search string) []models.TenantSubscription {
	// a Caser is stateful, so each call gets its own
	fold := cases.Fold()
	needle := normalizeSearch(search, fold)

	out := make([]models.TenantSubscription, 0, len(records))
	for i := range records {
		if matches(&records[i], needle, fold) {
			out = append(out, records[i])
		}
	}
	return out
}

func normalizeSearch(search string, fold cases.Caser) string {
	return fold.String(strings.TrimSpace(search))
}

func matches(rec *models.TenantSubscription, needle string, fold cases.Caser) bool {
	if !rec.HasPlan() {
		return false
	}
	if needle == "" {
		return true
	}
	for _, field := range []string{rec.CompanyName, rec.ContactName, rec.Email} {
		if strings.Contains(fold.String(field), needle) {
			return true
		}
	}
	return false
}

// Select filters, sorts, and paginates records. It never fails: an out of
// range page is clamped and a non-positive page size falls back to the default.
func Select(records []models.TenantSubscription, q Query) Selection {
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	filtered := Filter(records, q.Search)
	sortRecords(filtered, q.SortBy, q.Desc)

	pageCount := PageCount(len(filtered), pageSize)
	page := ClampPage(q.Page, pageCount)

	start := (page - 1) * pageSize
	end := min(start+pageSize, len(filtered))
	if start > end {
		start = end
	}

	return Selection{
		Items:         filtered[start:end],
		Page:          page,
		PageSize:      pageSize,
		PageCount:     pageCount,
		FilteredCount: len(filtered),
		TotalCount:    len(records),
	}
}

func sortRecords(records []models.TenantSubscription, field SortField, desc bool) {
	if field == SortNone {
		return
	}

	fold := cases.Fold()
	slices.SortStableFunc(records, func(a, b models.TenantSubscription) int {
		var c int
		switch field {
		case SortCompanyName:
			c = cmp.Compare(fold.String(a.CompanyName), fold.String(b.CompanyName))
		case SortContactName:
			c = cmp.Compare(fold.String(a.ContactName), fold.String(b.ContactName))
		case SortEmail:
			c = cmp.Compare(fold.String(a.Email), fold.String(b.Email))
		case SortStartDate:
			c = compareTimes(a.StartDate, b.StartDate)
		case SortEndDate, SortDaysRemaining:
			// days remaining is monotonic in the end date for a fixed now
			c = compareTimes(a.EndDate, b.EndDate)
		}
		if desc {
			return -c
		}
		return c
	})
}

// compareTimes orders nil after every set timestamp.
func compareTimes(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return a.Compare(*b)
	}
}
