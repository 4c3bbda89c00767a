package insights

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborview/adinsights/internal/models"
)

func monthlyPeriod(t *testing.T, id string) models.Period {
	t.Helper()
	p, err := models.ParsePeriod(models.GranularityMonthly, id)
	require.NoError(t, err)
	return p
}

func TestAggregate_SumsAndRatios(t *testing.T) {
	period := monthlyPeriod(t, "2025-06")
	fetchedAt := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)

	campaigns := []models.CampaignSnapshot{
		{
			CampaignID:  "c1",
			Spend:       600,
			Impressions: 3000,
			Clicks:      30,
			Conversions: models.ConversionMetrics{
				ClickToCall:      2,
				Reservations:     8,
				ReservationValue: 3000,
			},
		},
		{
			CampaignID:  "c2",
			Spend:       400,
			Impressions: 2000,
			Clicks:      20,
			Conversions: models.ConversionMetrics{
				EmailContacts:    2,
				Reservations:     4,
				ReservationValue: 1500,
			},
		},
	}

	s := Aggregate("hotel-1", models.PlatformMeta, period, campaigns, fetchedAt)

	assert.Equal(t, "hotel-1", s.ClientID)
	assert.Equal(t, "2025-06", s.PeriodID)
	assert.Equal(t, 2, s.CampaignCount)
	assert.Equal(t, 1000.0, s.Spend)
	assert.Equal(t, int64(5000), s.Impressions)
	assert.Equal(t, int64(50), s.Clicks)
	assert.Equal(t, int64(12), s.Funnel.Reservations)
	// conversions = click_to_call + email_contacts + reservations
	assert.Equal(t, int64(16), s.Conversions)

	assert.InDelta(t, 1.0, s.CTR, 1e-9)
	assert.InDelta(t, 20.0, s.CPC, 1e-9)
	assert.InDelta(t, 62.5, s.CPA, 1e-9)
	assert.InDelta(t, 4.5, s.ROAS, 1e-9)
	assert.InDelta(t, 1000.0/12.0, s.CostPerReservation, 1e-9)
}

func TestAggregate_ZeroDenominators(t *testing.T) {
	period := monthlyPeriod(t, "2025-06")

	s := Aggregate("hotel-1", models.PlatformMeta, period, nil, time.Now())

	assert.Zero(t, s.CTR)
	assert.Zero(t, s.CPC)
	assert.Zero(t, s.CPA)
	assert.Zero(t, s.ROAS)
	assert.Zero(t, s.CostPerReservation)
	assert.Equal(t, 0, s.CampaignCount)
}

func TestAggregate_SpendWithoutClicks(t *testing.T) {
	period := monthlyPeriod(t, "2025-06")

	s := Aggregate("hotel-1", models.PlatformGoogle, period, []models.CampaignSnapshot{
		{CampaignID: "c1", Spend: 50, Impressions: 1000},
	}, time.Now())

	assert.Zero(t, s.CTR)
	assert.Zero(t, s.CPC)
	assert.Zero(t, s.CPA)
	assert.Zero(t, s.ROAS)
	assert.Equal(t, 50.0, s.Spend)
	assert.True(t, s.Suspicious())
}

func TestAggregate_DoesNotMutateInput(t *testing.T) {
	period := monthlyPeriod(t, "2025-06")
	campaigns := []models.CampaignSnapshot{
		{CampaignID: "c1", Spend: 100, Clicks: 10, Impressions: 100},
	}
	orig := campaigns[0]

	_ = Aggregate("hotel-1", models.PlatformMeta, period, campaigns, time.Now())

	assert.Equal(t, orig, campaigns[0])
}

func TestMergeSummaries_OrderIndependent(t *testing.T) {
	period := monthlyPeriod(t, "2025-06")

	a := Aggregate("hotel-1", models.PlatformMeta, period, []models.CampaignSnapshot{
		{CampaignID: "m1", Spend: 300, Impressions: 1000, Clicks: 10,
			Conversions: models.ConversionMetrics{Reservations: 3, ReservationValue: 900}},
	}, time.Now())
	b := Aggregate("hotel-1", models.PlatformGoogle, period, []models.CampaignSnapshot{
		{CampaignID: "g1", Spend: 200, Impressions: 500, Clicks: 5,
			Conversions: models.ConversionMetrics{Reservations: 2, ReservationValue: 600}},
	}, time.Now())

	ab := MergeSummaries(a, b)
	ba := MergeSummaries(b, a)

	assert.Equal(t, ab.Spend, ba.Spend)
	assert.Equal(t, ab.Impressions, ba.Impressions)
	assert.Equal(t, ab.Clicks, ba.Clicks)
	assert.Equal(t, ab.Funnel, ba.Funnel)
	assert.Equal(t, ab.CTR, ba.CTR)
	assert.Equal(t, ab.ROAS, ba.ROAS)

	assert.Equal(t, 500.0, ab.Spend)
	assert.Equal(t, int64(5), ab.Funnel.Reservations)
	assert.InDelta(t, 3.0, ab.ROAS, 1e-9)
	assert.Equal(t, models.Platform(""), ab.Platform)
	assert.Equal(t, 2, ab.CampaignCount)
}

func TestMergeSummaries_NilOperands(t *testing.T) {
	period := monthlyPeriod(t, "2025-06")
	a := Aggregate("hotel-1", models.PlatformMeta, period, nil, time.Now())

	assert.Same(t, a, MergeSummaries(a, nil))
	assert.Same(t, a, MergeSummaries(nil, a))
}

func TestFunnelInversions_Reported(t *testing.T) {
	period := monthlyPeriod(t, "2025-06")

	s := Aggregate("hotel-1", models.PlatformMeta, period, []models.CampaignSnapshot{
		{CampaignID: "c1", Spend: 100, Conversions: models.ConversionMetrics{
			BookingStep1: 2,
			BookingStep3: 5,
			Reservations: 1,
		}},
	}, time.Now())

	inv := s.FunnelInversions()
	assert.Contains(t, inv, "booking_step_3>booking_step_2")
	assert.NotContains(t, inv, "reservations>booking_step_3")
	assert.False(t, s.Suspicious())
}
