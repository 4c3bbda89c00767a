// Package storage defines the persistence interfaces for the reporting core
// and provides in-memory and PostgreSQL implementations.
package storage

import (
	"context"
	"time"

	"github.com/harborview/adinsights/internal/models"
)

// ClientRepo defines CRUD operations for hotel clients.
type ClientRepo interface {
	GetClient(ctx context.Context, id string) (*models.Client, error)
	ListClients(ctx context.Context, statuses []models.ClientStatus) ([]*models.Client, error)
	UpsertClient(ctx context.Context, c *models.Client) error
}

// CacheStore persists period snapshots keyed by (client, period, granularity).
// Put is an upsert: it overwrites any existing entry for the key and always
// refreshes LastUpdated. A missing key is (nil, nil), not an error.
type CacheStore interface {
	Get(ctx context.Context, clientID, periodID string, g models.Granularity) (*models.CacheEntry, error)
	Put(ctx context.Context, entry *models.CacheEntry) error
	Delete(ctx context.Context, clientID, periodID string, g models.Granularity) error
}

// SummaryRow is one historical per-period summary as stored for retention.
type SummaryRow struct {
	ClientID    string
	SummaryType models.Granularity
	SummaryDate time.Time
	Summary     *models.PeriodSummary
}

// SummaryStore persists the long-term weekly/monthly summaries the retention
// janitor maintains.
type SummaryStore interface {
	GetSummary(ctx context.Context, clientID string, t models.Granularity, date time.Time) (*SummaryRow, error)
	UpsertSummary(ctx context.Context, row *SummaryRow) error
	// ListSummaryDates returns the period start dates present for one client
	// and summary type, sorted ascending.
	ListSummaryDates(ctx context.Context, clientID string, t models.Granularity) ([]time.Time, error)
	DeleteSummary(ctx context.Context, clientID string, t models.Granularity, date time.Time) error
}
