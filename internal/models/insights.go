package models

import (
	"encoding/json"
	"strconv"
	"time"
)

// Platform identifies the ad platform a payload came from.
type Platform string

const (
	PlatformMeta   Platform = "meta"
	PlatformGoogle Platform = "google"
)

// FlexValue is a numeric field that ad platforms serialize inconsistently:
// sometimes a JSON number, sometimes a quoted string. Unmarshaling never
// fails; anything unreadable becomes the empty value.
type FlexValue string

func (v *FlexValue) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*v = FlexValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*v = FlexValue(n.String())
		return nil
	}
	*v = ""
	return nil
}

// Count parses the value as a non-negative count. ok is false for anything
// malformed or negative; callers treat that as zero.
func (v FlexValue) Count() (int64, bool) {
	f, ok := v.Float()
	if !ok {
		return 0, false
	}
	return int64(f), true
}

// Float parses the value as a non-negative float.
func (v FlexValue) Float() (float64, bool) {
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(string(v), 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return f, true
}

// RawAction is one platform-reported action count for a campaign/date range.
// Action types are free-form strings (e.g. "click_to_call",
// "offsite_conversion.fb_pixel_purchase").
type RawAction struct {
	ActionType string    `json:"action_type"`
	Value      FlexValue `json:"value"`
}

// RawActionValue is a monetary value attached to an action type.
type RawActionValue struct {
	ActionType string    `json:"action_type"`
	Value      FlexValue `json:"value"`
}

// CampaignInsight is one campaign's raw insight row as delivered by a
// platform fetcher, already normalized to common field names.
type CampaignInsight struct {
	CampaignID   string           `json:"campaign_id"`
	CampaignName string           `json:"campaign_name"`
	Status       string           `json:"status"`
	Spend        float64          `json:"spend"`
	Impressions  int64            `json:"impressions"`
	Clicks       int64            `json:"clicks"`
	Actions      []RawAction      `json:"actions"`
	ActionValues []RawActionValue `json:"action_values"`
}

// ConversionMetrics is the normalized booking funnel for one campaign or one
// aggregated period. Immutable once produced; re-parsing yields a new value.
type ConversionMetrics struct {
	ClickToCall      int64   `json:"click_to_call"`
	EmailContacts    int64   `json:"email_contacts"`
	BookingStep1     int64   `json:"booking_step_1"`
	BookingStep2     int64   `json:"booking_step_2"`
	BookingStep3     int64   `json:"booking_step_3"`
	Reservations     int64   `json:"reservations"`
	ReservationValue float64 `json:"reservation_value"`
}

// Add accumulates o into m.
func (m *ConversionMetrics) Add(o ConversionMetrics) {
	m.ClickToCall += o.ClickToCall
	m.EmailContacts += o.EmailContacts
	m.BookingStep1 += o.BookingStep1
	m.BookingStep2 += o.BookingStep2
	m.BookingStep3 += o.BookingStep3
	m.Reservations += o.Reservations
	m.ReservationValue += o.ReservationValue
}

// IsZero reports whether every funnel field is zero.
func (m ConversionMetrics) IsZero() bool {
	return m == ConversionMetrics{}
}

// CampaignSnapshot is one campaign's metrics for one date range, with the
// parsed funnel embedded.
type CampaignSnapshot struct {
	CampaignID   string            `json:"campaign_id"`
	CampaignName string            `json:"campaign_name"`
	Status       string            `json:"status"`
	Spend        float64           `json:"spend"`
	Impressions  int64             `json:"impressions"`
	Clicks       int64             `json:"clicks"`
	CTR          float64           `json:"ctr"`
	CPC          float64           `json:"cpc"`
	Conversions  ConversionMetrics `json:"conversions"`
}

// PeriodSummary is the aggregated result for one (client, period, platform)
// tuple: core stat sums, zero-guarded ratios, funnel totals, and the
// contributing campaigns for drill-down.
type PeriodSummary struct {
	ClientID    string      `json:"client_id"`
	Platform    Platform    `json:"platform"`
	Granularity Granularity `json:"granularity"`
	PeriodID    string      `json:"period_id"`
	StartDate   time.Time   `json:"start_date"`
	EndDate     time.Time   `json:"end_date"`

	Spend       float64 `json:"spend"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	Conversions int64   `json:"conversions"`

	CTR                float64 `json:"ctr"`
	CPC                float64 `json:"cpc"`
	CPA                float64 `json:"cpa"`
	ROAS               float64 `json:"roas"`
	CostPerReservation float64 `json:"cost_per_reservation"`

	Funnel ConversionMetrics `json:"funnel"`

	CampaignCount int                `json:"campaign_count"`
	Campaigns     []CampaignSnapshot `json:"campaigns,omitempty"`

	FetchedAt time.Time `json:"fetched_at"`
}

// FunnelInversions lists stage pairs where a later booking step exceeds an
// earlier one. Attribution-window effects make this legitimate; it is
// reported, never rejected.
func (s *PeriodSummary) FunnelInversions() []string {
	var inv []string
	if s.Funnel.BookingStep2 > s.Funnel.BookingStep1 {
		inv = append(inv, "booking_step_2>booking_step_1")
	}
	if s.Funnel.BookingStep3 > s.Funnel.BookingStep2 {
		inv = append(inv, "booking_step_3>booking_step_2")
	}
	if s.Funnel.Reservations > s.Funnel.BookingStep3 {
		inv = append(inv, "reservations>booking_step_3")
	}
	return inv
}

// Suspicious reports the "all conversions exactly zero while money was
// spent" condition, which usually means broken pixel configuration rather
// than true zero activity.
func (s *PeriodSummary) Suspicious() bool {
	return s.Spend > 0 && s.Funnel.IsZero()
}

// CacheEntry is one persisted period snapshot plus its write timestamp.
// Freshness is derived from LastUpdated, never stored.
type CacheEntry struct {
	ClientID    string         `json:"client_id"`
	PeriodID    string         `json:"period_id"`
	Granularity Granularity    `json:"granularity"`
	Kind        PeriodKind     `json:"kind"`
	Summary     *PeriodSummary `json:"summary"`
	LastUpdated time.Time      `json:"last_updated"`
}

// Age returns how long ago the entry was written.
func (e *CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.LastUpdated)
}
