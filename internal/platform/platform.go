// Package platform fetches raw campaign insights from the ad platforms and
// normalizes them into the shape the core consumes. Platform-specific field
// renaming (e.g. Google's costMicros) happens here, not in the core.
package platform

import (
	"context"
	"fmt"
	"time"

	"github.com/harborview/adinsights/internal/models"
)

// Fetcher retrieves per-campaign insights for one account and date range.
type Fetcher interface {
	Platform() models.Platform
	FetchCampaignInsights(ctx context.Context, accountID string, start, end time.Time) ([]models.CampaignInsight, error)
}

// FetchError is a typed upstream failure: API timeout, HTTP error, or auth
// failure. Callers use it to trigger the stale-cache fallback instead of
// failing the request; it is never swallowed into fabricated zero data.
type FetchError struct {
	Platform  models.Platform
	AccountID string
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s fetch failed for account %s: %v", e.Platform, e.AccountID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// retry runs fn up to attempts times with exponential backoff, respecting
// context cancellation between tries.
func retry(ctx context.Context, attempts int, base time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(1<<i) * base):
		}
	}
	return err
}
