// Package httpserver wires the reporting services and exposes the HTTP API.
package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/harborview/adinsights/internal/cache"
	"github.com/harborview/adinsights/internal/config"
	"github.com/harborview/adinsights/internal/database"
	"github.com/harborview/adinsights/internal/insights"
	"github.com/harborview/adinsights/internal/metrics"
	"github.com/harborview/adinsights/internal/models"
	"github.com/harborview/adinsights/internal/platform"
	"github.com/harborview/adinsights/internal/retention"
	"github.com/harborview/adinsights/internal/storage"
)

// Dependencies holds all external dependencies for the server.
type Dependencies struct {
	DB      *database.PostgresDB
	Redis   *database.RedisDB
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *metrics.Metrics

	// Fetchers overrides the platform clients built from config (tests).
	Fetchers []platform.Fetcher
}

// Server exposes the reporting API over the insight service.
type Server struct {
	clients storage.ClientRepo
	service *insights.Service
	janitor *retention.Janitor
	logger  *zap.Logger
	config  *config.Config
	metrics *metrics.Metrics

	db    *database.PostgresDB
	redis *database.RedisDB

	mux *http.ServeMux
}

// NewServer wires the storage, platform, and service layers and registers
// all routes.
func NewServer(deps *Dependencies) *Server {
	cfg := deps.Config

	var clientRepo storage.ClientRepo
	var cacheStore storage.CacheStore
	var summaryStore storage.SummaryStore

	if deps.DB != nil {
		clientRepo = storage.NewPostgresClientRepo(deps.DB.Pool)
		cacheStore = storage.NewPostgresCacheStore(deps.DB.Pool)
		summaryStore = storage.NewPostgresSummaryStore(deps.DB.Pool)
	} else {
		clientRepo = storage.NewInMemoryClientRepo()
		cacheStore = storage.NewInMemoryCacheStore()
		summaryStore = storage.NewInMemorySummaryStore()
	}

	var lock cache.RefreshLock
	if deps.Redis != nil {
		lock = cache.NewRedisRefreshLock(deps.Redis.Client)
	} else {
		lock = cache.NewLocalRefreshLock()
	}

	fetchers := deps.Fetchers
	if fetchers == nil {
		fetchers = buildFetchers(cfg, deps.Logger)
	}

	svc := insights.NewService(insights.Config{
		Cache:        cache.New(cacheStore, deps.Logger),
		Summaries:    summaryStore,
		Fetchers:     fetchers,
		Lock:         lock,
		Metrics:      deps.Metrics,
		Logger:       deps.Logger,
		MaxAge:       cfg.Cache.MaxAge,
		FetchTimeout: cfg.Cache.FetchTimeout,
	})

	janitor := retention.NewJanitor(retention.Config{
		Clients:    clientRepo,
		Store:      summaryStore,
		Lock:       lock,
		Metrics:    deps.Metrics,
		Logger:     deps.Logger,
		MonthsKept: cfg.Retention.MonthsKept,
		WeeksKept:  cfg.Retention.WeeksKept,
	})

	s := &Server{
		clients: clientRepo,
		service: svc,
		janitor: janitor,
		logger:  deps.Logger,
		config:  cfg,
		metrics: deps.Metrics,
		db:      deps.DB,
		redis:   deps.Redis,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)

	if cfg.Metrics.Enabled {
		mux.Handle(cfg.Metrics.Path, metrics.Handler())
	}

	// Clients
	mux.HandleFunc("/clients", s.handleClients)
	mux.HandleFunc("/clients/", s.handleClientSubroutes)

	// Admin
	mux.HandleFunc("/admin/cache/invalidate", s.handleInvalidate)
	mux.HandleFunc("/admin/retention/sweep", s.handleSweep)
	mux.HandleFunc("/admin/audit/cache", s.handleAudit)

	s.mux = mux
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Janitor exposes the wired retention janitor so main can run it on a ticker.
func (s *Server) Janitor() *retention.Janitor { return s.janitor }

func buildFetchers(cfg *config.Config, logger *zap.Logger) []platform.Fetcher {
	var fetchers []platform.Fetcher
	if cfg.Platforms.Meta.Enabled {
		fetchers = append(fetchers, platform.NewMetaFetcher(
			cfg.Platforms.Meta.BaseURL,
			cfg.Platforms.Meta.AccessToken,
			cfg.Platforms.Meta.Timeout,
			logger,
		))
	}
	if cfg.Platforms.Google.Enabled {
		fetchers = append(fetchers, platform.NewGoogleFetcher(
			cfg.Platforms.Google.BaseURL,
			cfg.Platforms.Google.DeveloperToken,
			cfg.Platforms.Google.OAuthToken,
			cfg.Platforms.Google.Timeout,
			logger,
		))
	}
	return fetchers
}

// ---- Health Check ----

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok"}

	ctx := r.Context()
	if s.db != nil {
		if err := s.db.Health(ctx); err != nil {
			status["postgres"] = "down"
			status["status"] = "degraded"
		} else {
			status["postgres"] = "up"
		}
	}
	if s.redis != nil {
		if err := s.redis.Health(ctx); err != nil {
			status["redis"] = "down"
			status["status"] = "degraded"
		} else {
			status["redis"] = "up"
		}
	}

	s.jsonResponse(w, status)
}

// ---- Clients ----

func (s *Server) handleClients(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		var statuses []models.ClientStatus
		if st := r.URL.Query().Get("status"); st != "" {
			statuses = append(statuses, models.ClientStatus(st))
		}
		list, err := s.clients.ListClients(r.Context(), statuses)
		if err != nil {
			s.logger.Error("failed to list clients", zap.Error(err))
			s.errorResponse(w, "failed to list", http.StatusInternalServerError)
			return
		}
		s.jsonResponse(w, list)

	case http.MethodPost:
		var c models.Client
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			s.errorResponse(w, "invalid json", http.StatusBadRequest)
			return
		}
		if c.Status == "" {
			c.Status = models.ClientActive
		}
		now := time.Now().UTC()
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		c.UpdatedAt = now
		if err := c.Validate(); err != nil {
			s.errorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.clients.UpsertClient(r.Context(), &c); err != nil {
			s.logger.Error("failed to save client", zap.Error(err))
			s.errorResponse(w, "failed to save", http.StatusInternalServerError)
			return
		}
		s.jsonResponse(w, c)

	default:
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleClientSubroutes dispatches /clients/{id}, /clients/{id}/insights and
// /clients/{id}/comparison.
func (s *Server) handleClientSubroutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/clients/")
	parts := strings.SplitN(rest, "/", 2)
	id := parts[0]
	if id == "" {
		http.NotFound(w, r)
		return
	}

	client, err := s.clients.GetClient(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to get client", zap.Error(err))
		s.errorResponse(w, "error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if client == nil {
		http.NotFound(w, r)
		return
	}

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.jsonResponse(w, client)
		return
	}

	switch parts[1] {
	case "insights":
		s.handleInsights(w, r, client)
	case "comparison":
		s.handleComparison(w, r, client)
	default:
		http.NotFound(w, r)
	}
}

// insightsResponse wraps a summary with cache provenance.
type insightsResponse struct {
	Summary          *models.PeriodSummary `json:"summary"`
	FromCache        bool                  `json:"from_cache"`
	FunnelInversions []string              `json:"funnel_inversions,omitempty"`
	SuspiciousZero   bool                  `json:"suspicious_zero,omitempty"`
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request, client *models.Client) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	period, ok := s.parsePeriod(w, q.Get("granularity"), q.Get("period"))
	if !ok {
		return
	}
	force := q.Get("refresh") == "true"

	platforms, ok := s.resolvePlatforms(w, client, q.Get("platform"))
	if !ok {
		return
	}

	var merged *models.PeriodSummary
	fromCache := true
	var lastErr error
	for _, pf := range platforms {
		summary, cached, err := s.service.GetPeriodSummary(r.Context(), client, pf, period, force)
		if err != nil {
			lastErr = err
			s.logger.Warn("insights fetch failed",
				zap.String("client_id", client.ID),
				zap.String("platform", string(pf)),
				zap.Error(err),
			)
			continue
		}
		merged = insights.MergeSummaries(merged, summary)
		fromCache = fromCache && cached
	}

	if merged == nil {
		s.insightError(w, lastErr)
		return
	}

	s.jsonResponse(w, insightsResponse{
		Summary:          merged,
		FromCache:        fromCache,
		FunnelInversions: merged.FunnelInversions(),
		SuspiciousZero:   merged.Suspicious(),
	})
}

func (s *Server) handleComparison(w http.ResponseWriter, r *http.Request, client *models.Client) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()

	mode := models.ComparisonMode(q.Get("mode"))
	if mode == "" {
		mode = models.CompareMonthOverMonth
	}
	if mode != models.CompareMonthOverMonth && mode != models.CompareYearOverYear {
		s.errorResponse(w, "mode must be mom or yoy", http.StatusBadRequest)
		return
	}

	// Comparisons are monthly; prior periods resolve by calendar month.
	period, ok := s.parsePeriod(w, string(models.GranularityMonthly), q.Get("period"))
	if !ok {
		return
	}

	platforms, ok := s.resolvePlatforms(w, client, q.Get("platform"))
	if !ok {
		return
	}

	res, err := s.service.Compare(r.Context(), client, platforms[0], period, mode)
	if err != nil {
		s.insightError(w, err)
		return
	}
	s.jsonResponse(w, res)
}

// ---- Admin ----

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	clientID := q.Get("client_id")
	if clientID == "" {
		s.errorResponse(w, "client_id required", http.StatusBadRequest)
		return
	}
	period, ok := s.parsePeriod(w, q.Get("granularity"), q.Get("period"))
	if !ok {
		return
	}

	if err := s.service.Invalidate(r.Context(), clientID, period); err != nil {
		s.logger.Error("invalidate failed", zap.Error(err))
		s.errorResponse(w, "invalidate failed", http.StatusInternalServerError)
		return
	}
	s.jsonResponse(w, map[string]string{
		"status":    "invalidated",
		"client_id": clientID,
		"period_id": period.ID(),
	})
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	report, err := s.janitor.Sweep(r.Context())
	if err != nil {
		s.logger.Error("sweep failed", zap.Error(err))
		s.errorResponse(w, "sweep failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	s.jsonResponse(w, report)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	clientID := q.Get("client_id")
	if clientID == "" {
		s.errorResponse(w, "client_id required", http.StatusBadRequest)
		return
	}
	client, err := s.clients.GetClient(r.Context(), clientID)
	if err != nil {
		s.errorResponse(w, "error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if client == nil {
		http.NotFound(w, r)
		return
	}

	platforms, ok := s.resolvePlatforms(w, client, q.Get("platform"))
	if !ok {
		return
	}

	// Audit the current month plus the two before it.
	now := time.Now().UTC()
	cur := models.MonthOf(now)
	periods := []models.Period{cur, cur.PrevMonth(), cur.PrevMonth().PrevMonth()}

	report, err := s.service.Audit(r.Context(), client, platforms[0], periods)
	if err != nil {
		s.logger.Error("audit failed", zap.Error(err))
		s.errorResponse(w, "audit failed", http.StatusInternalServerError)
		return
	}
	s.jsonResponse(w, report)
}

// ---- Helper Methods ----

// parsePeriod resolves granularity/period query params, defaulting to the
// current month. Writes the error response itself on failure.
func (s *Server) parsePeriod(w http.ResponseWriter, granularity, periodID string) (models.Period, bool) {
	g := models.Granularity(granularity)
	if g == "" {
		g = models.GranularityMonthly
	}
	if !g.Valid() {
		s.errorResponse(w, "granularity must be monthly, weekly or daily", http.StatusBadRequest)
		return models.Period{}, false
	}

	if periodID == "" {
		now := time.Now().UTC()
		switch g {
		case models.GranularityWeekly:
			return models.WeekOf(now), true
		case models.GranularityDaily:
			return models.DayOf(now), true
		default:
			return models.MonthOf(now), true
		}
	}

	p, err := models.ParsePeriod(g, periodID)
	if err != nil {
		s.errorResponse(w, err.Error(), http.StatusBadRequest)
		return models.Period{}, false
	}
	return p, true
}

// resolvePlatforms picks the platforms to query: the requested one, or every
// platform the client has an account on.
func (s *Server) resolvePlatforms(w http.ResponseWriter, client *models.Client, param string) ([]models.Platform, bool) {
	if param != "" {
		pf := models.Platform(param)
		if pf != models.PlatformMeta && pf != models.PlatformGoogle {
			s.errorResponse(w, "platform must be meta or google", http.StatusBadRequest)
			return nil, false
		}
		if client.AccountFor(pf) == "" {
			s.errorResponse(w, "client has no "+param+" account", http.StatusBadRequest)
			return nil, false
		}
		return []models.Platform{pf}, true
	}

	var out []models.Platform
	if client.MetaAccountID != "" {
		out = append(out, models.PlatformMeta)
	}
	if client.GoogleCustomerID != "" {
		out = append(out, models.PlatformGoogle)
	}
	if len(out) == 0 {
		s.errorResponse(w, "client has no platform accounts", http.StatusBadRequest)
		return nil, false
	}
	return out, true
}

// insightError maps service errors to status codes: an unreachable platform
// with no cached fallback is a 502, anything else a 500.
func (s *Server) insightError(w http.ResponseWriter, err error) {
	if err == nil {
		s.errorResponse(w, "no data", http.StatusBadGateway)
		return
	}
	if errors.Is(err, insights.ErrNoData) {
		s.errorResponse(w, "no cached data and live fetch failed", http.StatusBadGateway)
		return
	}
	s.errorResponse(w, "internal error", http.StatusInternalServerError)
}

func (s *Server) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) errorResponse(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
