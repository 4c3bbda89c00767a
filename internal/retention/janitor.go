// Package retention enforces the rolling data-retention window over the
// long-term summary tables and reports coverage gaps inside it.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harborview/adinsights/internal/cache"
	"github.com/harborview/adinsights/internal/metrics"
	"github.com/harborview/adinsights/internal/models"
	"github.com/harborview/adinsights/internal/storage"
)

// Window sizes include the current still-accumulating period, so a full
// year of completed periods survives alongside it.
const (
	DefaultMonthsKept = 13
	DefaultWeeksKept  = 53
)

// Gap is one required period with no stored summary.
type Gap struct {
	ClientID    string             `json:"client_id"`
	SummaryType models.Granularity `json:"summary_type"`
	PeriodID    string             `json:"period_id"`
}

// ClientFailure records one client whose sweep failed. Failures are isolated:
// the sweep continues with the remaining clients.
type ClientFailure struct {
	ClientID string `json:"client_id"`
	Error    string `json:"error"`
}

// SweepReport summarizes one retention run.
type SweepReport struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`

	ClientsSwept   int `json:"clients_swept"`
	ClientsSkipped int `json:"clients_skipped"`

	DeletedMonthly int `json:"deleted_monthly"`
	DeletedWeekly  int `json:"deleted_weekly"`

	Gaps     []Gap           `json:"gaps,omitempty"`
	Failures []ClientFailure `json:"failures,omitempty"`
}

// Janitor deletes summaries that have aged out of the retention window and
// reports periods missing inside it. Deletion is idempotent: a second sweep
// over the same data is a no-op.
type Janitor struct {
	clients storage.ClientRepo
	store   storage.SummaryStore
	lock    cache.RefreshLock
	metrics *metrics.Metrics
	logger  *zap.Logger

	monthsKept int
	weeksKept  int
	now        func() time.Time
}

type Config struct {
	Clients    storage.ClientRepo
	Store      storage.SummaryStore
	Lock       cache.RefreshLock
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
	MonthsKept int
	WeeksKept  int
}

func NewJanitor(cfg Config) *Janitor {
	monthsKept := cfg.MonthsKept
	if monthsKept <= 0 {
		monthsKept = DefaultMonthsKept
	}
	weeksKept := cfg.WeeksKept
	if weeksKept <= 0 {
		weeksKept = DefaultWeeksKept
	}
	lock := cfg.Lock
	if lock == nil {
		lock = cache.NewLocalRefreshLock()
	}
	return &Janitor{
		clients:    cfg.Clients,
		store:      cfg.Store,
		lock:       lock,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		monthsKept: monthsKept,
		weeksKept:  weeksKept,
		now:        time.Now,
	}
}

// WithClock overrides the janitor clock for tests.
func (j *Janitor) WithClock(now func() time.Time) *Janitor {
	j.now = now
	return j
}

// RequiredPeriods returns the period start dates the retention window covers
// at the given instant, newest first. The first element is the current
// still-accumulating period.
func (j *Janitor) RequiredPeriods(now time.Time, g models.Granularity) []time.Time {
	var out []time.Time
	switch g {
	case models.GranularityMonthly:
		p := models.MonthOf(now)
		for i := 0; i < j.monthsKept; i++ {
			out = append(out, p.Start)
			p = p.PrevMonth()
		}
	case models.GranularityWeekly:
		start := models.WeekOf(now).Start
		for i := 0; i < j.weeksKept; i++ {
			out = append(out, start.AddDate(0, 0, -7*i))
		}
	}
	return out
}

// Sweep runs one full retention pass over all non-archived clients. A failed
// client is recorded and skipped; only listing clients can fail the run.
func (j *Janitor) Sweep(ctx context.Context) (*SweepReport, error) {
	started := j.now().UTC()
	report := &SweepReport{
		RunID:     uuid.NewString(),
		StartedAt: started,
	}

	j.logger.Info("retention sweep started",
		zap.String("run_id", report.RunID),
		zap.Int("months_kept", j.monthsKept),
		zap.Int("weeks_kept", j.weeksKept),
	)

	clients, err := j.clients.ListClients(ctx, []models.ClientStatus{
		models.ClientActive, models.ClientPaused,
	})
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}

	for _, c := range clients {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lockKey := "sweep:" + c.ID
		if !j.lock.TryAcquire(ctx, lockKey, 5*time.Minute) {
			report.ClientsSkipped++
			continue
		}

		err := j.sweepClient(ctx, c.ID, report)
		j.lock.Release(ctx, lockKey)
		if err != nil {
			report.Failures = append(report.Failures, ClientFailure{
				ClientID: c.ID,
				Error:    err.Error(),
			})
			j.logger.Error("client sweep failed",
				zap.String("run_id", report.RunID),
				zap.String("client_id", c.ID),
				zap.Error(err),
			)
			continue
		}
		report.ClientsSwept++
	}

	report.Duration = j.now().UTC().Sub(started)

	gapsMonthly, gapsWeekly := 0, 0
	for _, g := range report.Gaps {
		if g.SummaryType == models.GranularityMonthly {
			gapsMonthly++
		} else {
			gapsWeekly++
		}
	}
	j.metrics.RecordSweep(report.DeletedMonthly, report.DeletedWeekly,
		gapsMonthly, gapsWeekly, len(report.Failures), report.Duration)

	j.logger.Info("retention sweep finished",
		zap.String("run_id", report.RunID),
		zap.Int("clients_swept", report.ClientsSwept),
		zap.Int("deleted_monthly", report.DeletedMonthly),
		zap.Int("deleted_weekly", report.DeletedWeekly),
		zap.Int("gaps", len(report.Gaps)),
		zap.Int("failures", len(report.Failures)),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

func (j *Janitor) sweepClient(ctx context.Context, clientID string, report *SweepReport) error {
	now := j.now()

	for _, g := range []models.Granularity{models.GranularityMonthly, models.GranularityWeekly} {
		required := j.RequiredPeriods(now, g)
		oldest := required[len(required)-1]

		dates, err := j.store.ListSummaryDates(ctx, clientID, g)
		if err != nil {
			return fmt.Errorf("list %s summaries: %w", g, err)
		}

		present := make(map[time.Time]bool, len(dates))
		for _, d := range dates {
			d = d.UTC()
			if d.Before(oldest) {
				if err := j.store.DeleteSummary(ctx, clientID, g, d); err != nil {
					return fmt.Errorf("delete %s summary %s: %w", g, d.Format(time.DateOnly), err)
				}
				if g == models.GranularityMonthly {
					report.DeletedMonthly++
				} else {
					report.DeletedWeekly++
				}
				continue
			}
			present[d] = true
		}

		// The current period may legitimately not exist yet; gaps are only
		// reported for completed periods inside the window.
		for _, start := range required[1:] {
			if present[start] {
				continue
			}
			report.Gaps = append(report.Gaps, Gap{
				ClientID:    clientID,
				SummaryType: g,
				PeriodID:    models.Period{Granularity: g, Start: start}.ID(),
			})
		}
	}
	return nil
}

// Run sweeps on a fixed interval until the context is canceled. The first
// sweep happens immediately.
func (j *Janitor) Run(ctx context.Context, interval time.Duration) {
	if _, err := j.Sweep(ctx); err != nil {
		j.logger.Error("retention sweep error", zap.Error(err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := j.Sweep(ctx); err != nil {
				j.logger.Error("retention sweep error", zap.Error(err))
			}
		}
	}
}
