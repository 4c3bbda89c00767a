package insights

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harborview/adinsights/internal/models"
)

// auditTolerance absorbs float noise and sub-cent rounding between a cached
// summary and a live refetch of the same period.
const auditTolerance = 0.01

// AuditFinding records how one cached period compares against a live refetch.
type AuditFinding struct {
	PeriodID    string             `json:"period_id"`
	Granularity models.Granularity `json:"granularity"`

	CachedAt   time.Time `json:"cached_at"`
	Mismatches []string  `json:"mismatches,omitempty"`

	FunnelInversions []string `json:"funnel_inversions,omitempty"`
	SuspiciousZero   bool     `json:"suspicious_zero,omitempty"`

	FetchFailed bool   `json:"fetch_failed,omitempty"`
	Error       string `json:"error,omitempty"`
}

// AuditReport is the result of re-checking a client's cached periods against
// the platform. Read-only: the audit never rewrites cache entries.
type AuditReport struct {
	ID          string          `json:"id"`
	ClientID    string          `json:"client_id"`
	Platform    models.Platform `json:"platform"`
	GeneratedAt time.Time       `json:"generated_at"`
	Periods     int             `json:"periods"`
	Findings    []AuditFinding  `json:"findings"`
}

// Audit refetches the given periods live and diffs each against its cached
// entry. Periods with no cache entry are skipped; fetch failures are
// recorded per period and do not abort the run.
func (s *Service) Audit(ctx context.Context, client *models.Client, pf models.Platform, periods []models.Period) (*AuditReport, error) {
	report := &AuditReport{
		ID:          uuid.NewString(),
		ClientID:    client.ID,
		Platform:    pf,
		GeneratedAt: s.now().UTC(),
		Periods:     len(periods),
	}

	for _, p := range periods {
		entry, err := s.cache.Get(ctx, client.ID, p)
		if err != nil {
			return nil, fmt.Errorf("cache read for %s: %w", p.ID(), err)
		}
		if entry == nil || entry.Summary == nil {
			continue
		}

		finding := AuditFinding{
			PeriodID:         p.ID(),
			Granularity:      p.Granularity,
			CachedAt:         entry.LastUpdated,
			FunnelInversions: entry.Summary.FunnelInversions(),
			SuspiciousZero:   entry.Summary.Suspicious(),
		}

		live, err := s.fetchAndAggregate(ctx, client, pf, p)
		if err != nil {
			finding.FetchFailed = true
			finding.Error = err.Error()
			report.Findings = append(report.Findings, finding)
			continue
		}

		finding.Mismatches = diffSummaries(entry.Summary, live)
		if len(finding.Mismatches) > 0 {
			s.metrics.RecordAuditMismatch()
			s.logger.Info("audit mismatch",
				zap.String("client_id", client.ID),
				zap.String("period_id", p.ID()),
				zap.Strings("fields", finding.Mismatches),
			)
		}
		report.Findings = append(report.Findings, finding)
	}

	return report, nil
}

// diffSummaries lists the metric fields where cached and live disagree, as
// "name: cached -> live" strings.
func diffSummaries(cached, live *models.PeriodSummary) []string {
	var out []string

	fl := func(name string, c, l float64) {
		if math.Abs(c-l) > auditTolerance {
			out = append(out, fmt.Sprintf("%s: %.2f -> %.2f", name, c, l))
		}
	}
	ct := func(name string, c, l int64) {
		if c != l {
			out = append(out, fmt.Sprintf("%s: %d -> %d", name, c, l))
		}
	}

	fl("spend", cached.Spend, live.Spend)
	ct("impressions", cached.Impressions, live.Impressions)
	ct("clicks", cached.Clicks, live.Clicks)
	ct("conversions", cached.Conversions, live.Conversions)
	ct("click_to_call", cached.Funnel.ClickToCall, live.Funnel.ClickToCall)
	ct("email_contacts", cached.Funnel.EmailContacts, live.Funnel.EmailContacts)
	ct("booking_step_1", cached.Funnel.BookingStep1, live.Funnel.BookingStep1)
	ct("booking_step_2", cached.Funnel.BookingStep2, live.Funnel.BookingStep2)
	ct("booking_step_3", cached.Funnel.BookingStep3, live.Funnel.BookingStep3)
	ct("reservations", cached.Funnel.Reservations, live.Funnel.Reservations)
	fl("reservation_value", cached.Funnel.ReservationValue, live.Funnel.ReservationValue)

	return out
}
