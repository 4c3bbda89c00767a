package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/harborview/adinsights/internal/models"
)

// GoogleFetcher pulls campaign metrics from the Google Ads reporting API and
// reshapes them to the common insight form: costMicros becomes spend in
// currency units, and conversion actions become RawAction entries so the
// same parser rules apply to both platforms.
type GoogleFetcher struct {
	baseURL        string
	developerToken string
	accessToken    string
	httpc          *http.Client
	logger         *zap.Logger
}

type googleSearchResponse struct {
	Results []struct {
		Campaign struct {
			ID     string `json:"id"`
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"campaign"`
		Metrics struct {
			CostMicros       models.FlexValue `json:"costMicros"`
			Impressions      models.FlexValue `json:"impressions"`
			Clicks           models.FlexValue `json:"clicks"`
			Conversions      models.FlexValue `json:"conversions"`
			ConversionsValue models.FlexValue `json:"conversionsValue"`
		} `json:"metrics"`
		SegmentsConversionAction string `json:"segments.conversionAction,omitempty"`
	} `json:"results"`
	NextPageToken string `json:"nextPageToken"`
}

func NewGoogleFetcher(baseURL, developerToken, accessToken string, timeout time.Duration, logger *zap.Logger) *GoogleFetcher {
	return &GoogleFetcher{
		baseURL:        baseURL,
		developerToken: developerToken,
		accessToken:    accessToken,
		httpc:          &http.Client{Timeout: timeout},
		logger:         logger,
	}
}

func (f *GoogleFetcher) Platform() models.Platform { return models.PlatformGoogle }

const googleCampaignQuery = `
SELECT campaign.id, campaign.name, campaign.status,
       metrics.cost_micros, metrics.impressions, metrics.clicks,
       metrics.conversions, metrics.conversions_value
FROM campaign
WHERE segments.date BETWEEN '%s' AND '%s'`

func (f *GoogleFetcher) FetchCampaignInsights(ctx context.Context, customerID string, start, end time.Time) ([]models.CampaignInsight, error) {
	query := fmt.Sprintf(googleCampaignQuery, start.Format(time.DateOnly), end.Format(time.DateOnly))
	endpoint := fmt.Sprintf("%s/customers/%s/googleAds:search", f.baseURL, customerID)

	var out []models.CampaignInsight
	pageToken := ""
	for {
		var page googleSearchResponse
		err := retry(ctx, 3, 500*time.Millisecond, func() error {
			return f.postJSON(ctx, endpoint, map[string]string{
				"query":     query,
				"pageToken": pageToken,
			}, &page)
		})
		if err != nil {
			return nil, &FetchError{Platform: models.PlatformGoogle, AccountID: customerID, Err: err}
		}

		for _, row := range page.Results {
			spendMicros, _ := row.Metrics.CostMicros.Float()
			imps, _ := row.Metrics.Impressions.Count()
			clicks, _ := row.Metrics.Clicks.Count()

			insight := models.CampaignInsight{
				CampaignID:   row.Campaign.ID,
				CampaignName: row.Campaign.Name,
				Status:       row.Campaign.Status,
				Spend:        spendMicros / 1e6,
				Impressions:  imps,
				Clicks:       clicks,
			}

			// Google reports conversions by named action; keep the raw
			// action name so the shared substring rules classify it.
			if row.SegmentsConversionAction != "" {
				insight.Actions = []models.RawAction{{
					ActionType: row.SegmentsConversionAction,
					Value:      row.Metrics.Conversions,
				}}
				insight.ActionValues = []models.RawActionValue{{
					ActionType: row.SegmentsConversionAction,
					Value:      row.Metrics.ConversionsValue,
				}}
			}

			out = append(out, insight)
		}

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	f.logger.Debug("google insights fetched",
		zap.String("customer_id", customerID),
		zap.Int("campaigns", len(out)),
	)
	return out, nil
}

func (f *GoogleFetcher) postJSON(ctx context.Context, endpoint string, body any, v any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.accessToken)
	req.Header.Set("developer-token", f.developerToken)

	resp, err := f.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("google ads api status %d: %s", resp.StatusCode, string(b))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
