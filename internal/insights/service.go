package insights

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/harborview/adinsights/internal/cache"
	"github.com/harborview/adinsights/internal/metrics"
	"github.com/harborview/adinsights/internal/models"
	"github.com/harborview/adinsights/internal/parser"
	"github.com/harborview/adinsights/internal/platform"
	"github.com/harborview/adinsights/internal/storage"
)

// ErrNoData is returned when a live fetch fails and no cached snapshot
// exists to fall back on. Callers must surface it rather than render zeros:
// "fetch failed" and "true zero activity" are different answers.
var ErrNoData = errors.New("no cached data and live fetch failed")

// Service orchestrates the read path: period cache first, live fetch on
// miss or staleness, stale fallback when the platform is down.
type Service struct {
	cache     *cache.PeriodCache
	summaries storage.SummaryStore
	fetchers  map[models.Platform]platform.Fetcher
	lock      cache.RefreshLock
	metrics   *metrics.Metrics
	logger    *zap.Logger

	maxAge       time.Duration
	fetchTimeout time.Duration
	now          func() time.Time
}

// Config bundles the service dependencies.
type Config struct {
	Cache        *cache.PeriodCache
	Summaries    storage.SummaryStore
	Fetchers     []platform.Fetcher
	Lock         cache.RefreshLock
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
	MaxAge       time.Duration
	FetchTimeout time.Duration
}

func NewService(cfg Config) *Service {
	fetchers := make(map[models.Platform]platform.Fetcher, len(cfg.Fetchers))
	for _, f := range cfg.Fetchers {
		fetchers[f.Platform()] = f
	}

	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = cache.DefaultMaxAge
	}
	fetchTimeout := cfg.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = 15 * time.Second
	}
	lock := cfg.Lock
	if lock == nil {
		lock = cache.NewLocalRefreshLock()
	}

	return &Service{
		cache:        cfg.Cache,
		summaries:    cfg.Summaries,
		fetchers:     fetchers,
		lock:         lock,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
		maxAge:       maxAge,
		fetchTimeout: fetchTimeout,
		now:          time.Now,
	}
}

// WithClock overrides the service clock for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	s.cache.WithClock(now)
	return s
}

// GetPeriodSummary returns the summary for (client, platform, period).
// fromCache reports whether the result was served from the cache (fresh or
// stale-fallback) rather than a live fetch.
func (s *Service) GetPeriodSummary(ctx context.Context, client *models.Client, pf models.Platform, period models.Period, forceRefresh bool) (summary *models.PeriodSummary, fromCache bool, err error) {
	g := string(period.Granularity)

	entry, err := s.cache.Get(ctx, client.ID, period)
	if err != nil {
		// A broken cache read degrades to a miss, it must not fail the report.
		s.logger.Warn("cache read failed, treating as miss",
			zap.String("client_id", client.ID),
			zap.String("period_id", period.ID()),
			zap.Error(err),
		)
		entry = nil
	}

	if !forceRefresh && s.cache.Usable(entry, s.maxAge) {
		s.metrics.RecordCacheHit(g, string(entry.Kind))
		return entry.Summary, true, nil
	}

	if entry == nil {
		s.metrics.RecordCacheMiss(g)
	} else {
		s.metrics.RecordCacheStale(g)
	}

	// Single-flight is best-effort: if another instance holds the refresh
	// and we have something stale, serve that instead of a duplicate fetch.
	key := refreshKey(client.ID, pf, period)
	if !s.lock.TryAcquire(ctx, key, s.fetchTimeout) {
		if entry != nil {
			s.metrics.RecordCacheHit(g, string(entry.Kind))
			return entry.Summary, true, nil
		}
	} else {
		defer s.lock.Release(ctx, key)
	}

	fresh, ferr := s.fetchAndAggregate(ctx, client, pf, period)
	if ferr != nil {
		if entry != nil {
			s.logger.Warn("live fetch failed, serving stale cache",
				zap.String("client_id", client.ID),
				zap.String("period_id", period.ID()),
				zap.String("platform", string(pf)),
				zap.Duration("stale_age", entry.Age(s.now())),
				zap.Error(ferr),
			)
			s.metrics.RecordStaleFallback(string(pf))
			return entry.Summary, true, nil
		}
		return nil, false, fmt.Errorf("%w: %w", ErrNoData, ferr)
	}

	if _, err := s.cache.Put(ctx, client.ID, period, fresh); err != nil {
		// The data is good even if persisting it was not.
		s.logger.Warn("cache write failed", zap.Error(err))
	}
	s.persistSummary(ctx, client.ID, period, fresh)

	return fresh, false, nil
}

// ForceRefresh re-fetches a period unconditionally and overwrites the cache.
// Used after data-correctness fixes, including for frozen historical periods.
func (s *Service) ForceRefresh(ctx context.Context, client *models.Client, pf models.Platform, period models.Period) (*models.PeriodSummary, error) {
	summary, _, err := s.GetPeriodSummary(ctx, client, pf, period, true)
	return summary, err
}

// Invalidate drops the cached entry for a key (manual cache-bust).
func (s *Service) Invalidate(ctx context.Context, clientID string, period models.Period) error {
	if err := s.cache.Invalidate(ctx, clientID, period); err != nil {
		return err
	}
	s.metrics.RecordInvalidation(string(period.Granularity))
	return nil
}

// Compare resolves the baseline period for the given mode and produces the
// per-metric deltas. Both sides go through the normal cache-or-fetch path.
func (s *Service) Compare(ctx context.Context, client *models.Client, pf models.Platform, period models.Period, mode models.ComparisonMode) (*models.ComparisonResult, error) {
	current, _, err := s.GetPeriodSummary(ctx, client, pf, period, false)
	if err != nil {
		return nil, fmt.Errorf("current period: %w", err)
	}

	prevPeriod := PreviousPeriod(period, mode)
	previous, _, err := s.GetPeriodSummary(ctx, client, pf, prevPeriod, false)
	if err != nil {
		return nil, fmt.Errorf("previous period: %w", err)
	}

	res := Compare(current, previous)
	res.Mode = mode
	return res, nil
}

func (s *Service) fetchAndAggregate(ctx context.Context, client *models.Client, pf models.Platform, period models.Period) (*models.PeriodSummary, error) {
	fetcher, ok := s.fetchers[pf]
	if !ok {
		return nil, fmt.Errorf("no fetcher configured for platform %q", pf)
	}
	accountID := client.AccountFor(pf)
	if accountID == "" {
		return nil, fmt.Errorf("client %s has no %s account", client.ID, pf)
	}

	fctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	start := s.now()
	raw, err := fetcher.FetchCampaignInsights(fctx, accountID, period.Start, period.LastDay())
	s.metrics.RecordFetch(string(pf), err == nil, s.now().Sub(start))
	if err != nil {
		return nil, err
	}

	snapshots := make([]models.CampaignSnapshot, 0, len(raw))
	for _, in := range raw {
		snapshots = append(snapshots, parser.Snapshot(in))
	}

	summary := Aggregate(client.ID, pf, period, snapshots, s.now().UTC())
	if summary.Suspicious() {
		s.metrics.RecordSuspiciousZero()
		s.logger.Warn("summary has spend but zero conversions, likely tracking misconfiguration",
			zap.String("client_id", client.ID),
			zap.String("period_id", period.ID()),
			zap.String("platform", string(pf)),
			zap.Float64("spend", summary.Spend),
		)
	}
	return summary, nil
}

// persistSummary mirrors weekly/monthly aggregates into the long-term
// summary table the retention janitor maintains. Daily buckets are
// cache-only.
func (s *Service) persistSummary(ctx context.Context, clientID string, period models.Period, summary *models.PeriodSummary) {
	if s.summaries == nil || period.Granularity == models.GranularityDaily {
		return
	}
	err := s.summaries.UpsertSummary(ctx, &storage.SummaryRow{
		ClientID:    clientID,
		SummaryType: period.Granularity,
		SummaryDate: period.Start,
		Summary:     summary,
	})
	if err != nil {
		s.logger.Warn("summary write failed",
			zap.String("client_id", clientID),
			zap.String("period_id", period.ID()),
			zap.Error(err),
		)
	}
}

func refreshKey(clientID string, pf models.Platform, period models.Period) string {
	return fmt.Sprintf("%s:%s:%s:%s", clientID, pf, period.Granularity, period.ID())
}
