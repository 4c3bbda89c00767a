package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeekOf_MondayStart(t *testing.T) {
	tests := []struct {
		day  string
		want string
	}{
		{"2025-06-09", "2025-06-09"}, // Monday maps to itself
		{"2025-06-11", "2025-06-09"},
		{"2025-06-15", "2025-06-09"}, // Sunday belongs to the preceding Monday
		{"2025-01-01", "2024-12-30"}, // week spanning the year boundary
	}
	for _, tt := range tests {
		d, err := time.Parse(time.DateOnly, tt.day)
		require.NoError(t, err)
		p := WeekOf(d)
		assert.Equalf(t, tt.want, p.ID(), "day %s", tt.day)
		assert.Equal(t, time.Monday, p.Start.Weekday())
	}
}

func TestParsePeriod_RoundTrip(t *testing.T) {
	m, err := ParsePeriod(GranularityMonthly, "2025-06")
	require.NoError(t, err)
	assert.Equal(t, "2025-06", m.ID())
	assert.Equal(t, time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), m.LastDay())

	w, err := ParsePeriod(GranularityWeekly, "2025-06-09")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-09", w.ID())
	assert.Equal(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), w.LastDay())

	_, err = ParsePeriod(GranularityMonthly, "June 2025")
	assert.Error(t, err)

	_, err = ParsePeriod(Granularity("hourly"), "2025-06-09")
	assert.Error(t, err)
}

func TestPeriod_Kind(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, PeriodCurrent, MonthOf(now).Kind(now))
	assert.Equal(t, PeriodHistorical, MonthOf(now).PrevMonth().Kind(now))
	assert.Equal(t, PeriodCurrent, WeekOf(now).Kind(now))
	assert.Equal(t, PeriodHistorical, DayOf(now.AddDate(0, 0, -1)).Kind(now))

	// a not-yet-started period is treated as current, never frozen
	future := MonthOf(now.AddDate(0, 1, 0))
	assert.Equal(t, PeriodCurrent, future.Kind(now))
}

func TestClampDay(t *testing.T) {
	assert.Equal(t, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), ClampDay(2025, time.February, 31))
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), ClampDay(2024, time.February, 31))
	assert.Equal(t, time.Date(2025, 4, 30, 0, 0, 0, 0, time.UTC), ClampDay(2025, time.April, 31))
	assert.Equal(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), ClampDay(2025, time.January, 15))
}

func TestPeriod_ContainsAndEnd(t *testing.T) {
	m := MonthOf(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))

	assert.True(t, m.Contains(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, m.Contains(time.Date(2025, 6, 30, 23, 59, 59, 0, time.UTC)))
	assert.False(t, m.Contains(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), m.End())
}
