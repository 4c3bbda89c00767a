package retention

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/harborview/adinsights/internal/models"
	"github.com/harborview/adinsights/internal/storage"
)

// failingSummaryStore errors on list for one client, passing everything else
// through to the wrapped store.
type failingSummaryStore struct {
	storage.SummaryStore
	failClientID string
}

func (s *failingSummaryStore) ListSummaryDates(ctx context.Context, clientID string, t models.Granularity) ([]time.Time, error) {
	if clientID == s.failClientID {
		return nil, errors.New("connection reset")
	}
	return s.SummaryStore.ListSummaryDates(ctx, clientID, t)
}

func newTestJanitor(t *testing.T, store storage.SummaryStore, clientIDs ...string) (*Janitor, *time.Time) {
	t.Helper()

	clients := storage.NewInMemoryClientRepo()
	for _, id := range clientIDs {
		require.NoError(t, clients.UpsertClient(context.Background(), &models.Client{
			ID:            id,
			Name:          id,
			Status:        models.ClientActive,
			MetaAccountID: "acct-" + id,
		}))
	}

	now := time.Date(2025, 6, 15, 3, 0, 0, 0, time.UTC)
	clock := &now

	j := NewJanitor(Config{
		Clients: clients,
		Store:   store,
		Logger:  zap.NewNop(),
	}).WithClock(func() time.Time { return *clock })

	return j, clock
}

func putSummary(t *testing.T, store storage.SummaryStore, clientID string, g models.Granularity, start time.Time) {
	t.Helper()
	require.NoError(t, store.UpsertSummary(context.Background(), &storage.SummaryRow{
		ClientID:    clientID,
		SummaryType: g,
		SummaryDate: start,
		Summary:     &models.PeriodSummary{ClientID: clientID, Granularity: g},
	}))
}

func TestRequiredPeriods_Monthly(t *testing.T) {
	j, clock := newTestJanitor(t, storage.NewInMemorySummaryStore())

	months := j.RequiredPeriods(*clock, models.GranularityMonthly)
	require.Len(t, months, 13)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), months[0])
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), months[12])
}

func TestRequiredPeriods_MonthlyYearBoundary(t *testing.T) {
	j, _ := newTestJanitor(t, storage.NewInMemorySummaryStore())

	months := j.RequiredPeriods(time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), models.GranularityMonthly)
	require.Len(t, months, 13)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), months[0])
	assert.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), months[1])
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), months[12])
}

func TestRequiredPeriods_Weekly(t *testing.T) {
	j, clock := newTestJanitor(t, storage.NewInMemorySummaryStore())

	weeks := j.RequiredPeriods(*clock, models.GranularityWeekly)
	require.Len(t, weeks, 53)

	// 2025-06-15 is a Sunday; its week starts Monday 2025-06-09
	assert.Equal(t, time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC), weeks[0])
	assert.Equal(t, time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), weeks[52])
	for _, w := range weeks {
		assert.Equal(t, time.Monday, w.Weekday())
	}
}

func TestSweep_DeletesOutsideWindowOnly(t *testing.T) {
	store := storage.NewInMemorySummaryStore()
	j, _ := newTestJanitor(t, store, "hotel-1")
	ctx := context.Background()

	inWindow := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	boundary := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	outside := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	ancient := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, d := range []time.Time{inWindow, boundary, outside, ancient} {
		putSummary(t, store, "hotel-1", models.GranularityMonthly, d)
	}

	report, err := j.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.DeletedMonthly)
	assert.Equal(t, 1, report.ClientsSwept)

	dates, err := store.ListSummaryDates(ctx, "hotel-1", models.GranularityMonthly)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{boundary, inWindow}, dates)
}

func TestSweep_Idempotent(t *testing.T) {
	store := storage.NewInMemorySummaryStore()
	j, _ := newTestJanitor(t, store, "hotel-1")
	ctx := context.Background()

	putSummary(t, store, "hotel-1", models.GranularityMonthly,
		time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC))

	first, err := j.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.DeletedMonthly)

	second, err := j.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, second.DeletedMonthly)
	assert.Zero(t, second.DeletedWeekly)
}

func TestSweep_ReportsGapsForCompletedPeriods(t *testing.T) {
	store := storage.NewInMemorySummaryStore()
	j, clock := newTestJanitor(t, store, "hotel-1")
	ctx := context.Background()

	// every required month except 2025-03, the current month, and all weeks
	for _, start := range j.RequiredPeriods(*clock, models.GranularityMonthly)[1:] {
		if start.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)) {
			continue
		}
		putSummary(t, store, "hotel-1", models.GranularityMonthly, start)
	}
	for _, start := range j.RequiredPeriods(*clock, models.GranularityWeekly) {
		putSummary(t, store, "hotel-1", models.GranularityWeekly, start)
	}

	report, err := j.Sweep(ctx)
	require.NoError(t, err)

	require.Len(t, report.Gaps, 1)
	assert.Equal(t, Gap{
		ClientID:    "hotel-1",
		SummaryType: models.GranularityMonthly,
		PeriodID:    "2025-03",
	}, report.Gaps[0])
}

func TestSweep_CurrentPeriodMissingIsNotAGap(t *testing.T) {
	store := storage.NewInMemorySummaryStore()
	j, clock := newTestJanitor(t, store, "hotel-1")
	ctx := context.Background()

	for _, start := range j.RequiredPeriods(*clock, models.GranularityMonthly)[1:] {
		putSummary(t, store, "hotel-1", models.GranularityMonthly, start)
	}
	for _, start := range j.RequiredPeriods(*clock, models.GranularityWeekly)[1:] {
		putSummary(t, store, "hotel-1", models.GranularityWeekly, start)
	}

	report, err := j.Sweep(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Gaps)
}

func TestSweep_ClientFailureIsIsolated(t *testing.T) {
	inner := storage.NewInMemorySummaryStore()
	store := &failingSummaryStore{SummaryStore: inner, failClientID: "hotel-bad"}
	j, _ := newTestJanitor(t, store, "hotel-bad", "hotel-good")
	ctx := context.Background()

	putSummary(t, inner, "hotel-good", models.GranularityMonthly,
		time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC))

	report, err := j.Sweep(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, report.ClientsSwept)
	assert.Equal(t, 1, report.DeletedMonthly)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "hotel-bad", report.Failures[0].ClientID)
	assert.Contains(t, report.Failures[0].Error, "connection reset")
	assert.NotEmpty(t, report.RunID)
}

func TestSweep_ArchivedClientsSkipped(t *testing.T) {
	store := storage.NewInMemorySummaryStore()
	j, _ := newTestJanitor(t, store, "hotel-1")
	ctx := context.Background()

	clients := storage.NewInMemoryClientRepo()
	require.NoError(t, clients.UpsertClient(ctx, &models.Client{
		ID: "hotel-archived", Name: "gone", Status: models.ClientArchived, MetaAccountID: "a",
	}))
	j.clients = clients

	putSummary(t, store, "hotel-archived", models.GranularityMonthly,
		time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC))

	report, err := j.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.ClientsSwept)
	assert.Zero(t, report.DeletedMonthly)
}
