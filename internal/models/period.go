package models

import (
	"fmt"
	"time"
)

// Granularity identifies the bucket size of a reporting period.
type Granularity string

const (
	GranularityMonthly Granularity = "monthly"
	GranularityWeekly  Granularity = "weekly"
	GranularityDaily   Granularity = "daily"
)

// Valid reports whether g is a known granularity.
func (g Granularity) Valid() bool {
	switch g {
	case GranularityMonthly, GranularityWeekly, GranularityDaily:
		return true
	}
	return false
}

// PeriodKind distinguishes a still-accumulating period from a fully elapsed
// one. Current periods change intraday; Historical periods are frozen once
// cached.
type PeriodKind string

const (
	PeriodCurrent    PeriodKind = "current"
	PeriodHistorical PeriodKind = "historical"
)

// Period is one reporting bucket: a granularity plus its start instant.
// Start is always normalized (first of month, Monday, or midnight) in UTC.
type Period struct {
	Granularity Granularity `json:"granularity"`
	Start       time.Time   `json:"start"`
}

// MonthOf returns the monthly period containing t.
func MonthOf(t time.Time) Period {
	t = t.UTC()
	return Period{
		Granularity: GranularityMonthly,
		Start:       time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC),
	}
}

// WeekOf returns the Monday-start ISO week period containing t.
func WeekOf(t time.Time) Period {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7
	return Period{
		Granularity: GranularityWeekly,
		Start:       day.AddDate(0, 0, -offset),
	}
}

// DayOf returns the daily period containing t.
func DayOf(t time.Time) Period {
	t = t.UTC()
	return Period{
		Granularity: GranularityDaily,
		Start:       time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC),
	}
}

// ParsePeriod parses a period ID in the format produced by ID():
// "2006-01" for monthly, "2006-01-02" for weekly and daily.
func ParsePeriod(g Granularity, id string) (Period, error) {
	switch g {
	case GranularityMonthly:
		t, err := time.Parse("2006-01", id)
		if err != nil {
			return Period{}, fmt.Errorf("invalid monthly period %q: %w", id, err)
		}
		return MonthOf(t), nil
	case GranularityWeekly:
		t, err := time.Parse(time.DateOnly, id)
		if err != nil {
			return Period{}, fmt.Errorf("invalid weekly period %q: %w", id, err)
		}
		return WeekOf(t), nil
	case GranularityDaily:
		t, err := time.Parse(time.DateOnly, id)
		if err != nil {
			return Period{}, fmt.Errorf("invalid daily period %q: %w", id, err)
		}
		return DayOf(t), nil
	}
	return Period{}, fmt.Errorf("unknown granularity %q", g)
}

// ID returns the canonical period identifier used as a storage key.
func (p Period) ID() string {
	if p.Granularity == GranularityMonthly {
		return p.Start.Format("2006-01")
	}
	return p.Start.Format(time.DateOnly)
}

// End returns the exclusive end of the period.
func (p Period) End() time.Time {
	switch p.Granularity {
	case GranularityMonthly:
		return p.Start.AddDate(0, 1, 0)
	case GranularityWeekly:
		return p.Start.AddDate(0, 0, 7)
	default:
		return p.Start.AddDate(0, 0, 1)
	}
}

// LastDay returns the inclusive last day of the period.
func (p Period) LastDay() time.Time {
	return p.End().AddDate(0, 0, -1)
}

// Contains reports whether t falls inside the period's half-open interval.
func (p Period) Contains(t time.Time) bool {
	t = t.UTC()
	return !t.Before(p.Start) && t.Before(p.End())
}

// Kind classifies the period relative to now: a period whose interval
// contains now is still accumulating data.
func (p Period) Kind(now time.Time) PeriodKind {
	if p.Contains(now) || p.Start.After(now.UTC()) {
		return PeriodCurrent
	}
	return PeriodHistorical
}

// PrevMonth returns the monthly period immediately before p. Only meaningful
// for monthly periods; year rollover is handled by date arithmetic.
func (p Period) PrevMonth() Period {
	return MonthOf(p.Start.AddDate(0, -1, 0))
}

// PrevYear returns the same month one calendar year earlier.
func (p Period) PrevYear() Period {
	return MonthOf(p.Start.AddDate(-1, 0, 0))
}

// ClampDay returns the given date with its day-of-month clamped to the last
// valid day of that month (e.g. Feb 31 -> Feb 28/29).
func ClampDay(year int, month time.Month, day int) time.Time {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
