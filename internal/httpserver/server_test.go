package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/harborview/adinsights/internal/config"
	"github.com/harborview/adinsights/internal/models"
	"github.com/harborview/adinsights/internal/platform"
)

type stubFetcher struct {
	platform models.Platform
	insights []models.CampaignInsight
	fail     bool
}

func (f *stubFetcher) Platform() models.Platform { return f.platform }

func (f *stubFetcher) FetchCampaignInsights(_ context.Context, accountID string, _, _ time.Time) ([]models.CampaignInsight, error) {
	if f.fail {
		return nil, &platform.FetchError{
			Platform:  f.platform,
			AccountID: accountID,
			Err:       errors.New("api down"),
		}
	}
	return f.insights, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Addr: ":0", Env: "development"},
		Cache: config.CacheConfig{
			MaxAge:       3 * time.Hour,
			FetchTimeout: 5 * time.Second,
		},
		Retention: config.RetentionConfig{MonthsKept: 13, WeeksKept: 53},
	}
}

func newTestServer(t *testing.T, fetchers ...platform.Fetcher) *Server {
	t.Helper()
	if fetchers == nil {
		fetchers = []platform.Fetcher{&stubFetcher{
			platform: models.PlatformMeta,
			insights: []models.CampaignInsight{
				{
					CampaignID:  "c1",
					Spend:       1000,
					Impressions: 5000,
					Clicks:      50,
					Actions: []models.RawAction{
						{ActionType: "purchase", Value: "12"},
					},
					ActionValues: []models.RawActionValue{
						{ActionType: "purchase", Value: "4500"},
					},
				},
			},
		}}
	}
	return NewServer(&Dependencies{
		Config:   testConfig(),
		Logger:   zap.NewNop(),
		Fetchers: fetchers,
	})
}

func createClient(t *testing.T, srv *Server) {
	t.Helper()
	body := `{"id":"hotel-1","name":"Harbor View Hotel","meta_account_id":"123456"}`
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/clients", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestClients_CreateListGet(t *testing.T) {
	srv := newTestServer(t)
	createClient(t, srv)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/clients", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.Client
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "hotel-1", list[0].ID)
	assert.Equal(t, models.ClientActive, list[0].Status)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/clients/hotel-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/clients/no-such", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClients_InvalidRejected(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/clients",
		strings.NewReader(`{"id":"x","name":"No Accounts"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInsights_EndToEnd(t *testing.T) {
	srv := newTestServer(t)
	createClient(t, srv)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/clients/hotel-1/insights", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp insightsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Summary)
	assert.False(t, resp.FromCache)
	assert.Equal(t, 1000.0, resp.Summary.Spend)
	assert.Equal(t, int64(12), resp.Summary.Funnel.Reservations)
	assert.InDelta(t, 4.5, resp.Summary.ROAS, 1e-9)
	assert.InDelta(t, 1.0, resp.Summary.CTR, 1e-9)

	// second call comes from cache
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/clients/hotel-1/insights", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.FromCache)
}

func TestInsights_ExplicitPeriod(t *testing.T) {
	srv := newTestServer(t)
	createClient(t, srv)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/clients/hotel-1/insights?granularity=monthly&period=2025-04", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp insightsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2025-04", resp.Summary.PeriodID)
}

func TestInsights_BadParams(t *testing.T) {
	srv := newTestServer(t)
	createClient(t, srv)

	for _, url := range []string{
		"/clients/hotel-1/insights?granularity=hourly",
		"/clients/hotel-1/insights?period=not-a-period",
		"/clients/hotel-1/insights?platform=tiktok",
		"/clients/hotel-1/insights?platform=google", // no google account
	} {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
		assert.Equalf(t, http.StatusBadRequest, rec.Code, "url %s", url)
	}
}

func TestInsights_FetchFailureIsBadGateway(t *testing.T) {
	srv := newTestServer(t, &stubFetcher{platform: models.PlatformMeta, fail: true})
	createClient(t, srv)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/clients/hotel-1/insights", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestComparison(t *testing.T) {
	srv := newTestServer(t)
	createClient(t, srv)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/clients/hotel-1/comparison?mode=mom&period=2025-06", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res models.ComparisonResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, models.CompareMonthOverMonth, res.Mode)
	assert.Equal(t, "2025-06", res.CurrentPeriodID)
	assert.Equal(t, "2025-05", res.PreviousPeriodID)
	// identical stub data on both sides
	assert.Zero(t, res.Metrics["spend"].PercentChange)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/clients/hotel-1/comparison?mode=qoq", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminInvalidate(t *testing.T) {
	srv := newTestServer(t)
	createClient(t, srv)

	// warm the cache
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/clients/hotel-1/insights?period=2025-04", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		"/admin/cache/invalidate?client_id=hotel-1&granularity=monthly&period=2025-04", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// next read is a fresh fetch again
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/clients/hotel-1/insights?period=2025-04", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp insightsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.FromCache)
}

func TestAdminSweep(t *testing.T) {
	srv := newTestServer(t)
	createClient(t, srv)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/retention/sweep", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.NotEmpty(t, report["run_id"])
}

func TestAdminAudit(t *testing.T) {
	srv := newTestServer(t)
	createClient(t, srv)

	// warm current month so the audit has something to check
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/clients/hotel-1/insights", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		"/admin/audit/cache?client_id=hotel-1", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.NotEmpty(t, report["id"])

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		"/admin/audit/cache?client_id=missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
