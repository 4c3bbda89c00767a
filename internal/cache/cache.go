// Package cache implements the time-bucketed period cache: per-client,
// per-period snapshots with derived freshness and explicit invalidation.
package cache

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/harborview/adinsights/internal/models"
	"github.com/harborview/adinsights/internal/storage"
)

// DefaultMaxAge is the staleness threshold for still-accumulating periods.
// Historical periods are frozen and never considered stale.
const DefaultMaxAge = 3 * time.Hour

// PeriodCache wraps a CacheStore with freshness semantics. The store decides
// durability; this layer decides when an entry still counts as usable.
type PeriodCache struct {
	store  storage.CacheStore
	logger *zap.Logger
	now    func() time.Time
}

// New creates a period cache over the given store.
func New(store storage.CacheStore, logger *zap.Logger) *PeriodCache {
	return &PeriodCache{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock overrides the cache's clock. Tests use this to advance time.
func (c *PeriodCache) WithClock(now func() time.Time) *PeriodCache {
	c.now = now
	return c
}

// Get returns the cached entry for the key, or nil when absent.
func (c *PeriodCache) Get(ctx context.Context, clientID string, period models.Period) (*models.CacheEntry, error) {
	entry, err := c.store.Get(ctx, clientID, period.ID(), period.Granularity)
	if err != nil {
		return nil, fmt.Errorf("cache get %s/%s: %w", clientID, period.ID(), err)
	}
	return entry, nil
}

// Put upserts the summary under (client, period, granularity), overwriting
// any previous entry and stamping LastUpdated with the current clock.
func (c *PeriodCache) Put(ctx context.Context, clientID string, period models.Period, summary *models.PeriodSummary) (*models.CacheEntry, error) {
	now := c.now().UTC()
	entry := &models.CacheEntry{
		ClientID:    clientID,
		PeriodID:    period.ID(),
		Granularity: period.Granularity,
		Kind:        period.Kind(now),
		Summary:     summary,
		LastUpdated: now,
	}
	if err := c.store.Put(ctx, entry); err != nil {
		return nil, fmt.Errorf("cache put %s/%s: %w", clientID, period.ID(), err)
	}
	return entry, nil
}

// Invalidate removes the entry for the key. Used for manual cache-busts
// after a known data-correctness fix; a missing key is not an error.
func (c *PeriodCache) Invalidate(ctx context.Context, clientID string, period models.Period) error {
	if err := c.store.Delete(ctx, clientID, period.ID(), period.Granularity); err != nil {
		return fmt.Errorf("cache invalidate %s/%s: %w", clientID, period.ID(), err)
	}
	c.logger.Info("cache entry invalidated",
		zap.String("client_id", clientID),
		zap.String("period_id", period.ID()),
		zap.String("granularity", string(period.Granularity)),
	)
	return nil
}

// IsFresh reports whether the entry is younger than maxAge.
func (c *PeriodCache) IsFresh(entry *models.CacheEntry, maxAge time.Duration) bool {
	if entry == nil {
		return false
	}
	return entry.Age(c.now()) < maxAge
}

// Usable decides whether a cached entry can be served without a refresh.
// Historical periods are immutable once cached; current periods go stale
// after maxAge.
func (c *PeriodCache) Usable(entry *models.CacheEntry, maxAge time.Duration) bool {
	if entry == nil {
		return false
	}
	if entry.Kind == models.PeriodHistorical {
		return true
	}
	return c.IsFresh(entry, maxAge)
}
