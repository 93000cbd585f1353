package subscription

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MacJediWizard/parkadmin/internal/models"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// HistoryBackend fetches a tenant's full audit trail.
type HistoryBackend interface {
	GetTenantSubscriptionHistory(ctx context.Context, tenantID string) ([]models.HistoryEntry, error)
}

// HistoryCache stores a tenant's full audit trail between page requests.
type HistoryCache interface {
	Get(ctx context.Context, tenantID string) ([]models.HistoryEntry, bool, error)
	Set(ctx context.Context, tenantID string, entries []models.HistoryEntry, ttl time.Duration) error
	Delete(ctx context.Context, tenantID string) error
}

// HistoryPager serves client-side pages over a tenant's audit trail.
type HistoryPager struct {
	backend HistoryBackend
	cache   HistoryCache
	ttl     time.Duration
	logger  zerolog.Logger

	group singleflight.Group

	mu          sync.Mutex
	generations map[string]uint64
}

// NewHistoryPager creates a HistoryPager. A nil cache or a non-positive ttl
// disables caching and every page request refetches.
func NewHistoryPager(backend HistoryBackend, cache HistoryCache, ttl time.Duration, logger zerolog.Logger) *HistoryPager {
	return &HistoryPager{
		backend:     backend,
		cache:       cache,
		ttl:         ttl,
		logger:      logger.With().Str("component", "history_pager").Logger(),
		generations: make(map[string]uint64),
	}
}

// GetPage returns entries [(page-1)*size, page*size) of the tenant's trail,
// newest first. A page past the end is empty, not an error.
func (p *HistoryPager) GetPage(ctx context.Context, tenantID string, page, pageSize int) (*models.HistoryPage, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	entries, err := p.entries(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	return &models.HistoryPage{
		TenantID:  tenantID,
		Entries:   SliceHistory(entries, page, pageSize),
		Page:      page,
		PageSize:  pageSize,
		PageCount: PageCount(len(entries), pageSize),
		Total:     len(entries),
	}, nil
}

// Invalidate drops the tenant's cached trail. Fetches already in flight are
// not shared with requests made after this call.
func (p *HistoryPager) Invalidate(ctx context.Context, tenantID string) {
	p.mu.Lock()
	p.generations[tenantID]++
	p.mu.Unlock()

	if !p.cachingEnabled() {
		return
	}
	if err := p.cache.Delete(ctx, tenantID); err != nil {
		p.logger.Warn().Err(err).Str("tenant_id", tenantID).Msg("failed to invalidate cached history")
	}
}

// SliceHistory returns entries[(page-1)*size : page*size], clipped to the
// list. page and size must be positive.
func SliceHistory(entries []models.HistoryEntry, page, pageSize int) []models.HistoryEntry {
	start := (page - 1) * pageSize
	if start >= len(entries) {
		return []models.HistoryEntry{}
	}
	end := min(start+pageSize, len(entries))
	return append([]models.HistoryEntry(nil), entries[start:end]...)
}

func (p *HistoryPager) cachingEnabled() bool {
	return p.cache != nil && p.ttl > 0
}

func (p *HistoryPager) generation(tenantID string) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generations[tenantID]
}

func (p *HistoryPager) entries(ctx context.Context, tenantID string) ([]models.HistoryEntry, error) {
	if p.cachingEnabled() {
		cached, ok, err := p.cache.Get(ctx, tenantID)
		if err != nil {
			p.logger.Warn().Err(err).Str("tenant_id", tenantID).Msg("history cache read failed")
		} else if ok {
			return cached, nil
		}
	}

	gen := p.generation(tenantID)
	key := strings.Join([]string{tenantID, strconv.FormatUint(gen, 10)}, "#")

	// the shared fetch outlives any single caller's cancellation
	fetchCtx := context.WithoutCancel(ctx)
	ch := p.group.DoChan(key, func() (any, error) {
		entries, err := p.backend.GetTenantSubscriptionHistory(fetchCtx, tenantID)
		if err != nil {
			return nil, transport("get subscription history", err)
		}
		sortHistory(entries)

		// skip the write if a mutation invalidated the trail mid-fetch
		if p.cachingEnabled() && p.generation(tenantID) == gen {
			if err := p.cache.Set(fetchCtx, tenantID, entries, p.ttl); err != nil {
				p.logger.Warn().Err(err).Str("tenant_id", tenantID).Msg("history cache write failed")
			}
		}
		return entries, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]models.HistoryEntry), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// sortHistory orders entries newest first, keeping backend order for ties.
func sortHistory(entries []models.HistoryEntry) {
	slices.SortStableFunc(entries, func(a, b models.HistoryEntry) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}

// MemoryHistoryCache is an in-process HistoryCache.
type MemoryHistoryCache struct {
	now func() time.Time

	mu      sync.Mutex
	entries map[string]memoryHistoryItem
}

type memoryHistoryItem struct {
	entries   []models.HistoryEntry
	expiresAt time.Time
}

// NewMemoryHistoryCache creates an empty in-process cache.
func NewMemoryHistoryCache() *MemoryHistoryCache {
	return &MemoryHistoryCache{
		now:     time.Now,
		entries: make(map[string]memoryHistoryItem),
	}
}

// Get returns the cached trail if present and not expired.
func (c *MemoryHistoryCache) Get(_ context.Context, tenantID string) ([]models.HistoryEntry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.entries[tenantID]
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(item.expiresAt) {
		delete(c.entries, tenantID)
		return nil, false, nil
	}
	return append([]models.HistoryEntry(nil), item.entries...), true, nil
}

// Set stores the trail for ttl.
func (c *MemoryHistoryCache) Set(_ context.Context, tenantID string, entries []models.HistoryEntry, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[tenantID] = memoryHistoryItem{
		entries:   append([]models.HistoryEntry(nil), entries...),
		expiresAt: c.now().Add(ttl),
	}
	return nil
}

// Delete removes the tenant's cached trail.
func (c *MemoryHistoryCache) Delete(_ context.Context, tenantID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, tenantID)
	return nil
}
