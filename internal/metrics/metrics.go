// Package metrics exposes Prometheus instrumentation for the reporting core.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. All Record helpers tolerate a nil
// receiver so components can run uninstrumented (tests, one-shot jobs).
type Metrics struct {
	// Cache metrics
	CacheHits      *prometheus.CounterVec
	CacheMisses    *prometheus.CounterVec
	CacheStale     *prometheus.CounterVec
	StaleFallbacks *prometheus.CounterVec
	Invalidations  *prometheus.CounterVec

	// Upstream fetch metrics
	FetchLatency *prometheus.HistogramVec
	FetchErrors  *prometheus.CounterVec

	// Retention sweep metrics
	SweepDeleted  *prometheus.CounterVec
	SweepGaps     *prometheus.CounterVec
	SweepFailures prometheus.Counter
	SweepDuration prometheus.Histogram

	// Audit metrics
	AuditMismatches  prometheus.Counter
	SuspiciousZeroes prometheus.Counter

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics under the given namespace.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		CacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Cache hits served without an upstream fetch",
			},
			[]string{"granularity", "kind"},
		),
		CacheMisses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Cache lookups with no entry present",
			},
			[]string{"granularity"},
		),
		CacheStale: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_stale_total",
				Help:      "Cache hits past the freshness threshold",
			},
			[]string{"granularity"},
		),
		StaleFallbacks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stale_fallbacks_total",
				Help:      "Requests served from a stale entry after a failed live fetch",
			},
			[]string{"platform"},
		),
		Invalidations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_invalidations_total",
				Help:      "Manual cache-bust deletions",
			},
			[]string{"granularity"},
		),
		FetchLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "platform_fetch_seconds",
				Help:      "Upstream insight fetch latency",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
			},
			[]string{"platform", "status"},
		),
		FetchErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "platform_fetch_errors_total",
				Help:      "Upstream insight fetch failures",
			},
			[]string{"platform"},
		),
		SweepDeleted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retention_deleted_total",
				Help:      "Summary rows deleted by the retention sweep",
			},
			[]string{"summary_type"},
		),
		SweepGaps: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retention_gaps_total",
				Help:      "Coverage gaps found inside the retention window",
			},
			[]string{"summary_type"},
		),
		SweepFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retention_client_failures_total",
				Help:      "Per-client sweep failures (isolated, not fatal)",
			},
		),
		SweepDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "retention_sweep_seconds",
				Help:      "Full retention sweep duration",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
			},
		),
		AuditMismatches: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audit_mismatches_total",
				Help:      "Cache entries that disagree with a live fetch",
			},
		),
		SuspiciousZeroes: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "suspicious_zero_summaries_total",
				Help:      "Summaries with spend but zero conversions",
			},
		),
		HTTPRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by path and status",
			},
			[]string{"path", "method", "status"},
		),
		HTTPDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_seconds",
				Help:      "HTTP request latency",
				Buckets:   []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 20},
			},
			[]string{"path"},
		),
	}
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func (m *Metrics) RecordCacheHit(granularity, kind string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(granularity, kind).Inc()
}

func (m *Metrics) RecordCacheMiss(granularity string) {
	if m == nil {
		return
	}
	m.CacheMisses.WithLabelValues(granularity).Inc()
}

func (m *Metrics) RecordCacheStale(granularity string) {
	if m == nil {
		return
	}
	m.CacheStale.WithLabelValues(granularity).Inc()
}

func (m *Metrics) RecordStaleFallback(platform string) {
	if m == nil {
		return
	}
	m.StaleFallbacks.WithLabelValues(platform).Inc()
}

func (m *Metrics) RecordInvalidation(granularity string) {
	if m == nil {
		return
	}
	m.Invalidations.WithLabelValues(granularity).Inc()
}

func (m *Metrics) RecordFetch(platform string, ok bool, latency time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
		m.FetchErrors.WithLabelValues(platform).Inc()
	}
	m.FetchLatency.WithLabelValues(platform, status).Observe(latency.Seconds())
}

func (m *Metrics) RecordSweep(deletedMonthly, deletedWeekly, gapsMonthly, gapsWeekly, failures int, duration time.Duration) {
	if m == nil {
		return
	}
	m.SweepDeleted.WithLabelValues("monthly").Add(float64(deletedMonthly))
	m.SweepDeleted.WithLabelValues("weekly").Add(float64(deletedWeekly))
	m.SweepGaps.WithLabelValues("monthly").Add(float64(gapsMonthly))
	m.SweepGaps.WithLabelValues("weekly").Add(float64(gapsWeekly))
	m.SweepFailures.Add(float64(failures))
	m.SweepDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordAuditMismatch() {
	if m == nil {
		return
	}
	m.AuditMismatches.Inc()
}

func (m *Metrics) RecordSuspiciousZero() {
	if m == nil {
		return
	}
	m.SuspiciousZeroes.Inc()
}

func (m *Metrics) RecordHTTPRequest(path, method string, status int, latency time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(path).Observe(latency.Seconds())
}
