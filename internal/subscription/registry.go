package subscription

import (
	"context"
	"sync"
	"time"

	"github.com/MacJediWizard/parkadmin/internal/models"
	"github.com/rs/zerolog"
)

// SubscriptionLister fetches the full, unpaged tenant subscription list.
type SubscriptionLister interface {
	ListTenantSubscriptions(ctx context.Context) ([]models.TenantSubscription, error)
}

// Ticket orders list fetches and local patches on a single monotonic clock.
type Ticket uint64

// Registry is the client-side replica of every tenant's subscription record.
//
// Every list fetch takes a ticket before it is issued. A response whose
// ticket is older than the last applied one is dropped, and a record patched
// locally after a fetch began survives that fetch. This keeps a slow, stale
// response from overwriting fresher state.
type Registry struct {
	lister SubscriptionLister
	logger zerolog.Logger

	mu       sync.RWMutex
	records  []models.TenantSubscription
	index    map[string]int
	clock    uint64
	applied  uint64
	stamps   map[string]uint64
	loadedAt time.Time

	listenersMu sync.RWMutex
	listeners   []func()
}

// NewRegistry creates an empty Registry backed by lister.
func NewRegistry(lister SubscriptionLister, logger zerolog.Logger) *Registry {
	return &Registry{
		lister: lister,
		logger: logger.With().Str("component", "subscription_registry").Logger(),
		index:  make(map[string]int),
		stamps: make(map[string]uint64),
	}
}

// OnChange registers fn to be called after every change to the replica.
func (r *Registry) OnChange(fn func()) {
	r.listenersMu.Lock()
	defer r.listenersMu.Unlock()
	r.listeners = append(r.listeners, fn)
}

func (r *Registry) notify() {
	r.listenersMu.RLock()
	listeners := append([]func(){}, r.listeners...)
	r.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn()
	}
}

// Begin issues a ticket for a list fetch that is about to start.
func (r *Registry) Begin() Ticket {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clock++
	return Ticket(r.clock)
}

// Refresh fetches the full list from the backend and applies it.
func (r *Registry) Refresh(ctx context.Context) error {
	ticket := r.Begin()

	records, err := r.lister.ListTenantSubscriptions(ctx)
	if err != nil {
		return transport("list tenant subscriptions", err)
	}

	if !r.Apply(ticket, records) {
		r.logger.Debug().Uint64("ticket", uint64(ticket)).Msg("discarded stale subscription list")
	}
	return nil
}

// Apply replaces the replica with records fetched under ticket. It returns
// false, leaving the replica untouched, when a newer fetch was already applied.
func (r *Registry) Apply(ticket Ticket, records []models.TenantSubscription) bool {
	r.mu.Lock()
	if uint64(ticket) < r.applied {
		r.mu.Unlock()
		return false
	}
	r.applied = uint64(ticket)

	next := make([]models.TenantSubscription, 0, len(records))
	index := make(map[string]int, len(records))
	for _, rec := range records {
		if stamp, ok := r.stamps[rec.TenantID]; ok && stamp > uint64(ticket) {
			if i, ok := r.index[rec.TenantID]; ok {
				rec = r.records[i]
			}
		}
		index[rec.TenantID] = len(next)
		next = append(next, rec.Clone())
	}

	for id, stamp := range r.stamps {
		if stamp <= uint64(ticket) {
			delete(r.stamps, id)
		}
	}

	r.records = next
	r.index = index
	r.loadedAt = time.Now()
	r.mu.Unlock()

	r.notify()
	return true
}

// Patch applies fn to the tenant's record as a local, optimistic change.
// It returns false if the tenant is not in the replica.
func (r *Registry) Patch(tenantID string, fn func(rec *models.TenantSubscription)) bool {
	r.mu.Lock()
	i, ok := r.index[tenantID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	rec := r.records[i].Clone()
	fn(&rec)
	r.records[i] = rec
	r.clock++
	r.stamps[tenantID] = r.clock
	r.mu.Unlock()

	r.notify()
	return true
}

// Put stores an authoritative record returned directly by a mutation.
func (r *Registry) Put(rec models.TenantSubscription) {
	r.mu.Lock()
	if i, ok := r.index[rec.TenantID]; ok {
		r.records[i] = rec.Clone()
	} else {
		r.index[rec.TenantID] = len(r.records)
		r.records = append(r.records, rec.Clone())
	}
	r.clock++
	r.stamps[rec.TenantID] = r.clock
	r.mu.Unlock()

	r.notify()
}

// Get returns a copy of the tenant's record.
func (r *Registry) Get(tenantID string) (models.TenantSubscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[tenantID]
	if !ok {
		return models.TenantSubscription{}, false
	}
	return r.records[i].Clone(), true
}

// Snapshot returns a copy of every record in backend order.
func (r *Registry) Snapshot() []models.TenantSubscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.TenantSubscription, len(r.records))
	for i := range r.records {
		out[i] = r.records[i].Clone()
	}
	return out
}

// Select applies q to a snapshot of the replica.
func (r *Registry) Select(q Query) Selection {
	return Select(r.Snapshot(), q)
}

// TenantsWithPlan returns the IDs of tenants currently assigned to planID.
func (r *Registry) TenantsWithPlan(planID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for i := range r.records {
		if r.records[i].PlanIDValue() == planID {
			ids = append(ids, r.records[i].TenantID)
		}
	}
	return ids
}

// LoadedAt returns when the last list fetch was applied.
func (r *Registry) LoadedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loadedAt
}

// Len returns the number of records in the replica.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
