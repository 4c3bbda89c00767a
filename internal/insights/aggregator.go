// Package insights aggregates parsed campaign metrics into period summaries
// and computes period-over-period comparisons.
package insights

import (
	"time"

	"github.com/harborview/adinsights/internal/models"
)

// Aggregate folds campaign snapshots into a fresh PeriodSummary. Campaign
// records are never mutated. Every ratio is guarded: a zero denominator
// yields 0, never NaN or Inf.
func Aggregate(clientID string, platform models.Platform, period models.Period, campaigns []models.CampaignSnapshot, fetchedAt time.Time) *models.PeriodSummary {
	s := &models.PeriodSummary{
		ClientID:      clientID,
		Platform:      platform,
		Granularity:   period.Granularity,
		PeriodID:      period.ID(),
		StartDate:     period.Start,
		EndDate:       period.LastDay(),
		CampaignCount: len(campaigns),
		Campaigns:     campaigns,
		FetchedAt:     fetchedAt,
	}

	for _, c := range campaigns {
		s.Spend += c.Spend
		s.Impressions += c.Impressions
		s.Clicks += c.Clicks
		s.Funnel.Add(c.Conversions)
	}
	s.Conversions = s.Funnel.ClickToCall + s.Funnel.EmailContacts + s.Funnel.Reservations

	deriveRatios(s)
	return s
}

// MergeSummaries sums the additive fields of two summaries (same client and
// granularity, e.g. Meta + Google for one period) and recomputes the ratios.
func MergeSummaries(a, b *models.PeriodSummary) *models.PeriodSummary {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}

	m := *a
	m.Spend += b.Spend
	m.Impressions += b.Impressions
	m.Clicks += b.Clicks
	m.Conversions += b.Conversions
	m.Funnel = a.Funnel
	m.Funnel.Add(b.Funnel)
	m.CampaignCount = a.CampaignCount + b.CampaignCount
	m.Campaigns = append(append([]models.CampaignSnapshot{}, a.Campaigns...), b.Campaigns...)
	if a.Platform != b.Platform {
		m.Platform = ""
	}

	deriveRatios(&m)
	return &m
}

func deriveRatios(s *models.PeriodSummary) {
	s.CTR, s.CPC, s.CPA, s.ROAS, s.CostPerReservation = 0, 0, 0, 0, 0

	if s.Impressions > 0 {
		s.CTR = float64(s.Clicks) / float64(s.Impressions) * 100
	}
	if s.Clicks > 0 {
		s.CPC = s.Spend / float64(s.Clicks)
	}
	if s.Conversions > 0 {
		s.CPA = s.Spend / float64(s.Conversions)
	}
	if s.Spend > 0 {
		s.ROAS = s.Funnel.ReservationValue / s.Spend
	}
	if s.Funnel.Reservations > 0 {
		s.CostPerReservation = s.Spend / float64(s.Funnel.Reservations)
	}
}
