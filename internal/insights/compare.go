package insights

import (
	"time"

	"github.com/harborview/adinsights/internal/models"
)

// Compare computes per-metric deltas between two period summaries. Pure; the
// inputs are not modified. The previous summary may describe a period with no
// data: every percent change against a zero previous value is reported as 0
// to keep dashboard output stable.
func Compare(current, previous *models.PeriodSummary) *models.ComparisonResult {
	res := &models.ComparisonResult{
		ClientID:         current.ClientID,
		CurrentPeriodID:  current.PeriodID,
		PreviousPeriodID: previous.PeriodID,
		Metrics:          make(map[string]models.MetricDelta),
	}

	put := func(name string, cur, prev float64) {
		res.Metrics[name] = models.MetricDelta{
			Current:       cur,
			Previous:      prev,
			PercentChange: percentChange(cur, prev),
		}
	}

	put("spend", current.Spend, previous.Spend)
	put("impressions", float64(current.Impressions), float64(previous.Impressions))
	put("clicks", float64(current.Clicks), float64(previous.Clicks))
	put("conversions", float64(current.Conversions), float64(previous.Conversions))
	put("ctr", current.CTR, previous.CTR)
	put("cpc", current.CPC, previous.CPC)
	put("cpa", current.CPA, previous.CPA)
	put("roas", current.ROAS, previous.ROAS)
	put("cost_per_reservation", current.CostPerReservation, previous.CostPerReservation)
	put("click_to_call", float64(current.Funnel.ClickToCall), float64(previous.Funnel.ClickToCall))
	put("email_contacts", float64(current.Funnel.EmailContacts), float64(previous.Funnel.EmailContacts))
	put("booking_step_1", float64(current.Funnel.BookingStep1), float64(previous.Funnel.BookingStep1))
	put("booking_step_2", float64(current.Funnel.BookingStep2), float64(previous.Funnel.BookingStep2))
	put("booking_step_3", float64(current.Funnel.BookingStep3), float64(previous.Funnel.BookingStep3))
	put("reservations", float64(current.Funnel.Reservations), float64(previous.Funnel.Reservations))
	put("reservation_value", current.Funnel.ReservationValue, previous.Funnel.ReservationValue)

	return res
}

func percentChange(cur, prev float64) float64 {
	if prev == 0 {
		return 0
	}
	return (cur - prev) / prev * 100
}

// DateRange is an inclusive start/end day pair.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// PreviousMonthRange returns the full prior calendar month of the month
// containing ref, handling the January -> December year rollover.
func PreviousMonthRange(ref time.Time) DateRange {
	p := models.MonthOf(ref).PrevMonth()
	return DateRange{Start: p.Start, End: p.LastDay()}
}

// PreviousYearRange returns the same month one calendar year earlier.
func PreviousYearRange(ref time.Time) DateRange {
	p := models.MonthOf(ref).PrevYear()
	return DateRange{Start: p.Start, End: p.LastDay()}
}

// ShiftRangeMonths moves an arbitrary day range by whole months, clamping
// each end-day to the last valid day of its target month (Jan 31 shifted one
// month back becomes Dec 31; Mar 31 shifted one back becomes Feb 28/29).
func ShiftRangeMonths(r DateRange, months int) DateRange {
	return DateRange{
		Start: shiftClamped(r.Start, months),
		End:   shiftClamped(r.End, months),
	}
}

func shiftClamped(d time.Time, months int) time.Time {
	d = d.UTC()
	y, mo := d.Year(), int(d.Month())+months
	// normalize month into [1,12] adjusting the year
	for mo < 1 {
		mo += 12
		y--
	}
	for mo > 12 {
		mo -= 12
		y++
	}
	return models.ClampDay(y, time.Month(mo), d.Day())
}

// PreviousPeriod resolves the comparison baseline for a monthly period.
func PreviousPeriod(p models.Period, mode models.ComparisonMode) models.Period {
	if mode == models.CompareYearOverYear {
		return p.PrevYear()
	}
	return p.PrevMonth()
}
