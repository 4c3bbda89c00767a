package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/harborview/adinsights/internal/models"
	"github.com/harborview/adinsights/internal/storage"
)

func newTestCache(start time.Time) (*PeriodCache, *time.Time) {
	clock := &start
	c := New(storage.NewInMemoryCacheStore(), zap.NewNop()).
		WithClock(func() time.Time { return *clock })
	return c, clock
}

func summaryFor(p models.Period, spend float64) *models.PeriodSummary {
	return &models.PeriodSummary{
		ClientID:    "hotel-1",
		Granularity: p.Granularity,
		PeriodID:    p.ID(),
		Spend:       spend,
	}
}

func TestCache_GetMissing(t *testing.T) {
	c, clock := newTestCache(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))

	entry, err := c.Get(context.Background(), "hotel-1", models.MonthOf(*clock))
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestCache_PutOverwritesSameKey(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	c, clock := newTestCache(now)
	ctx := context.Background()
	period := models.MonthOf(now)

	_, err := c.Put(ctx, "hotel-1", period, summaryFor(period, 100))
	require.NoError(t, err)

	*clock = clock.Add(time.Hour)
	_, err = c.Put(ctx, "hotel-1", period, summaryFor(period, 250))
	require.NoError(t, err)

	entry, err := c.Get(ctx, "hotel-1", period)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 250.0, entry.Summary.Spend)
	assert.Equal(t, now.Add(time.Hour), entry.LastUpdated)
}

func TestCache_KeysAreIndependentByGranularity(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	c, _ := newTestCache(now)
	ctx := context.Background()

	// 2025-06-02 is both a Monday (weekly period ID) and a day ID
	weekly := models.WeekOf(now)
	daily := models.DayOf(now)
	require.Equal(t, weekly.ID(), daily.ID())

	_, err := c.Put(ctx, "hotel-1", weekly, summaryFor(weekly, 700))
	require.NoError(t, err)
	_, err = c.Put(ctx, "hotel-1", daily, summaryFor(daily, 100))
	require.NoError(t, err)

	w, err := c.Get(ctx, "hotel-1", weekly)
	require.NoError(t, err)
	d, err := c.Get(ctx, "hotel-1", daily)
	require.NoError(t, err)
	assert.Equal(t, 700.0, w.Summary.Spend)
	assert.Equal(t, 100.0, d.Summary.Spend)
}

func TestCache_FreshnessDerivedFromLastUpdated(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	c, clock := newTestCache(now)
	ctx := context.Background()
	period := models.MonthOf(now)

	entry, err := c.Put(ctx, "hotel-1", period, summaryFor(period, 100))
	require.NoError(t, err)
	assert.Equal(t, models.PeriodCurrent, entry.Kind)

	assert.True(t, c.IsFresh(entry, DefaultMaxAge))
	assert.True(t, c.Usable(entry, DefaultMaxAge))

	*clock = clock.Add(2 * time.Hour)
	assert.True(t, c.IsFresh(entry, DefaultMaxAge))

	*clock = clock.Add(90 * time.Minute)
	assert.False(t, c.IsFresh(entry, DefaultMaxAge))
	assert.False(t, c.Usable(entry, DefaultMaxAge))
}

func TestCache_HistoricalAlwaysUsable(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	c, clock := newTestCache(now)
	ctx := context.Background()
	period := models.MonthOf(now.AddDate(0, -3, 0))

	entry, err := c.Put(ctx, "hotel-1", period, summaryFor(period, 100))
	require.NoError(t, err)
	assert.Equal(t, models.PeriodHistorical, entry.Kind)

	*clock = clock.Add(30 * 24 * time.Hour)
	assert.False(t, c.IsFresh(entry, DefaultMaxAge))
	assert.True(t, c.Usable(entry, DefaultMaxAge))
}

func TestCache_NilEntryNeverUsable(t *testing.T) {
	c, _ := newTestCache(time.Now())
	assert.False(t, c.IsFresh(nil, DefaultMaxAge))
	assert.False(t, c.Usable(nil, DefaultMaxAge))
}

func TestCache_Invalidate(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	c, _ := newTestCache(now)
	ctx := context.Background()
	period := models.MonthOf(now)

	_, err := c.Put(ctx, "hotel-1", period, summaryFor(period, 100))
	require.NoError(t, err)

	require.NoError(t, c.Invalidate(ctx, "hotel-1", period))

	entry, err := c.Get(ctx, "hotel-1", period)
	require.NoError(t, err)
	assert.Nil(t, entry)

	// invalidating a missing key is not an error
	require.NoError(t, c.Invalidate(ctx, "hotel-1", period))
}
