package models

// MetricDelta is one metric's current/previous pair with its percentage
// change. PercentChange is 0 whenever the previous value is 0, regardless of
// the current value; dashboards depend on that convention.
type MetricDelta struct {
	Current       float64 `json:"current"`
	Previous      float64 `json:"previous"`
	PercentChange float64 `json:"percent_change"`
}

// ComparisonMode selects which prior period a comparison is against.
type ComparisonMode string

const (
	CompareMonthOverMonth ComparisonMode = "mom"
	CompareYearOverYear   ComparisonMode = "yoy"
)

// ComparisonResult maps metric names to their deltas between two period
// summaries.
type ComparisonResult struct {
	ClientID         string                 `json:"client_id"`
	Mode             ComparisonMode         `json:"mode,omitempty"`
	CurrentPeriodID  string                 `json:"current_period_id"`
	PreviousPeriodID string                 `json:"previous_period_id"`
	Metrics          map[string]MetricDelta `json:"metrics"`
}
