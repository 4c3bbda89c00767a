package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/harborview/adinsights/internal/models"
)

// MetaFetcher pulls campaign-level insights from the Meta Marketing API.
// Responses already carry actions/action_values in the normalized shape.
type MetaFetcher struct {
	baseURL     string
	accessToken string
	httpc       *http.Client
	logger      *zap.Logger
}

// metaInsightsResponse mirrors the subset of the Graph API insights payload
// the core needs. Numeric fields arrive as strings.
type metaInsightsResponse struct {
	Data []struct {
		CampaignID   string                  `json:"campaign_id"`
		CampaignName string                  `json:"campaign_name"`
		Status       string                  `json:"effective_status"`
		Spend        models.FlexValue        `json:"spend"`
		Impressions  models.FlexValue        `json:"impressions"`
		Clicks       models.FlexValue        `json:"clicks"`
		Actions      []models.RawAction      `json:"actions"`
		ActionValues []models.RawActionValue `json:"action_values"`
	} `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

func NewMetaFetcher(baseURL, accessToken string, timeout time.Duration, logger *zap.Logger) *MetaFetcher {
	return &MetaFetcher{
		baseURL:     baseURL,
		accessToken: accessToken,
		httpc:       &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

func (f *MetaFetcher) Platform() models.Platform { return models.PlatformMeta }

func (f *MetaFetcher) FetchCampaignInsights(ctx context.Context, accountID string, start, end time.Time) ([]models.CampaignInsight, error) {
	q := url.Values{}
	q.Set("level", "campaign")
	q.Set("fields", "campaign_id,campaign_name,effective_status,spend,impressions,clicks,actions,action_values")
	q.Set("time_range", fmt.Sprintf(`{"since":"%s","until":"%s"}`,
		start.Format(time.DateOnly), end.Format(time.DateOnly)))
	q.Set("access_token", f.accessToken)

	endpoint := fmt.Sprintf("%s/act_%s/insights?%s", f.baseURL, accountID, q.Encode())

	var out []models.CampaignInsight
	// Follow paging until exhausted; each page retried independently.
	for endpoint != "" {
		var page metaInsightsResponse
		err := retry(ctx, 3, 500*time.Millisecond, func() error {
			return f.getJSON(ctx, endpoint, &page)
		})
		if err != nil {
			return nil, &FetchError{Platform: models.PlatformMeta, AccountID: accountID, Err: err}
		}

		for _, row := range page.Data {
			spend, _ := row.Spend.Float()
			imps, _ := row.Impressions.Count()
			clicks, _ := row.Clicks.Count()
			out = append(out, models.CampaignInsight{
				CampaignID:   row.CampaignID,
				CampaignName: row.CampaignName,
				Status:       row.Status,
				Spend:        spend,
				Impressions:  imps,
				Clicks:       clicks,
				Actions:      row.Actions,
				ActionValues: row.ActionValues,
			})
		}

		endpoint = page.Paging.Next
		page = metaInsightsResponse{}
	}

	f.logger.Debug("meta insights fetched",
		zap.String("account_id", accountID),
		zap.Int("campaigns", len(out)),
	)
	return out, nil
}

func (f *MetaFetcher) getJSON(ctx context.Context, endpoint string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := f.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("meta api status %d: %s", resp.StatusCode, string(b))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
