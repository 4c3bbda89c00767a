// Package parser normalizes a platform's heterogeneous action list into the
// booking funnel. The substring matching is intentionally loose: dashboards
// depend on its exact leniency, so the predicates below must not be tightened
// into exact-match sets.
package parser

import (
	"strings"

	"github.com/harborview/adinsights/internal/models"
)

// rule binds one funnel bucket to its match predicate. Rules are evaluated
// in order and independently: a single action type may match several rules
// and increment each matched bucket.
type rule struct {
	name  string
	match func(actionType string) bool
	add   func(m *models.ConversionMetrics, v int64)
}

func containsAny(subs ...string) func(string) bool {
	return func(t string) bool {
		for _, s := range subs {
			if strings.Contains(t, s) {
				return true
			}
		}
		return false
	}
}

// isReservation matches the purchase-shaped action types. Shared by the
// count rule and the reservation-value rule so both always agree.
func isReservation(t string) bool {
	return t == "purchase" ||
		strings.Contains(t, "fb_pixel_purchase") ||
		strings.Contains(t, "omni_purchase")
}

var rules = []rule{
	{
		name:  "click_to_call",
		match: containsAny("click_to_call", "phone_number_clicks", "call"),
		add:   func(m *models.ConversionMetrics, v int64) { m.ClickToCall += v },
	},
	{
		name:  "email_contacts",
		match: containsAny("contact", "email", "lead"),
		add:   func(m *models.ConversionMetrics, v int64) { m.EmailContacts += v },
	},
	{
		name:  "booking_step_1",
		match: func(t string) bool { return strings.Contains(t, "search") || t == "omni_search" },
		add:   func(m *models.ConversionMetrics, v int64) { m.BookingStep1 += v },
	},
	{
		name:  "booking_step_2",
		match: func(t string) bool { return strings.Contains(t, "view_content") || t == "omni_view_content" },
		add:   func(m *models.ConversionMetrics, v int64) { m.BookingStep2 += v },
	},
	{
		name:  "booking_step_3",
		match: func(t string) bool { return strings.Contains(t, "initiate_checkout") || t == "omni_initiated_checkout" },
		add:   func(m *models.ConversionMetrics, v int64) { m.BookingStep3 += v },
	},
	{
		name:  "reservations",
		match: isReservation,
		add:   func(m *models.ConversionMetrics, v int64) { m.Reservations += v },
	},
}

// Parse turns raw actions and action values into normalized funnel metrics.
// Pure and lenient: malformed or negative values count as zero, and nothing
// here ever returns an error; a broken action entry must not take down a
// report.
func Parse(actions []models.RawAction, actionValues []models.RawActionValue) models.ConversionMetrics {
	var m models.ConversionMetrics

	for _, a := range actions {
		v, ok := a.Value.Count()
		if !ok {
			continue
		}
		t := strings.ToLower(a.ActionType)
		for _, r := range rules {
			if r.match(t) {
				r.add(&m, v)
			}
		}
	}

	for _, av := range actionValues {
		f, ok := av.Value.Float()
		if !ok {
			continue
		}
		if isReservation(strings.ToLower(av.ActionType)) {
			m.ReservationValue += f
		}
	}

	return m
}

// Snapshot parses one raw campaign insight into a campaign snapshot with
// per-campaign derived rates.
func Snapshot(in models.CampaignInsight) models.CampaignSnapshot {
	s := models.CampaignSnapshot{
		CampaignID:   in.CampaignID,
		CampaignName: in.CampaignName,
		Status:       in.Status,
		Spend:        in.Spend,
		Impressions:  in.Impressions,
		Clicks:       in.Clicks,
		Conversions:  Parse(in.Actions, in.ActionValues),
	}
	if in.Impressions > 0 {
		s.CTR = float64(in.Clicks) / float64(in.Impressions) * 100
	}
	if in.Clicks > 0 {
		s.CPC = in.Spend / float64(in.Clicks)
	}
	return s
}
