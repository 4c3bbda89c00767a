package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harborview/adinsights/internal/models"
)

// PostgresCacheStore implements CacheStore on the period_cache table.
type PostgresCacheStore struct {
	pool *pgxpool.Pool
}

func NewPostgresCacheStore(pool *pgxpool.Pool) *PostgresCacheStore {
	return &PostgresCacheStore{pool: pool}
}

func (s *PostgresCacheStore) Get(ctx context.Context, clientID, periodID string, g models.Granularity) (*models.CacheEntry, error) {
	var (
		e        models.CacheEntry
		dataJSON []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT client_id, period_id, granularity, kind, cache_data, last_updated
		FROM period_cache
		WHERE client_id = $1 AND period_id = $2 AND granularity = $3
	`, clientID, periodID, string(g)).Scan(
		&e.ClientID, &e.PeriodID, &e.Granularity, &e.Kind, &dataJSON, &e.LastUpdated,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}

	if len(dataJSON) > 0 {
		if err := json.Unmarshal(dataJSON, &e.Summary); err != nil {
			return nil, fmt.Errorf("failed to decode cached summary: %w", err)
		}
	}

	return &e, nil
}

func (s *PostgresCacheStore) Put(ctx context.Context, entry *models.CacheEntry) error {
	if entry == nil {
		return nil
	}

	dataJSON, err := json.Marshal(entry.Summary)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO period_cache (client_id, period_id, granularity, kind, cache_data, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (client_id, period_id, granularity) DO UPDATE SET
			kind = EXCLUDED.kind,
			cache_data = EXCLUDED.cache_data,
			last_updated = EXCLUDED.last_updated
	`, entry.ClientID, entry.PeriodID, string(entry.Granularity), string(entry.Kind), dataJSON, entry.LastUpdated)
	if err != nil {
		return fmt.Errorf("failed to upsert cache entry: %w", err)
	}
	return nil
}

func (s *PostgresCacheStore) Delete(ctx context.Context, clientID, periodID string, g models.Granularity) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM period_cache
		WHERE client_id = $1 AND period_id = $2 AND granularity = $3
	`, clientID, periodID, string(g))
	if err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// PostgresSummaryStore implements SummaryStore on the period_summaries table.
type PostgresSummaryStore struct {
	pool *pgxpool.Pool
}

func NewPostgresSummaryStore(pool *pgxpool.Pool) *PostgresSummaryStore {
	return &PostgresSummaryStore{pool: pool}
}

func (s *PostgresSummaryStore) GetSummary(ctx context.Context, clientID string, t models.Granularity, date time.Time) (*SummaryRow, error) {
	var (
		row      SummaryRow
		dataJSON []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT client_id, summary_type, summary_date, summary
		FROM period_summaries
		WHERE client_id = $1 AND summary_type = $2 AND summary_date = $3
	`, clientID, string(t), date.UTC()).Scan(
		&row.ClientID, &row.SummaryType, &row.SummaryDate, &dataJSON,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}

	if len(dataJSON) > 0 {
		if err := json.Unmarshal(dataJSON, &row.Summary); err != nil {
			return nil, fmt.Errorf("failed to decode summary: %w", err)
		}
	}

	return &row, nil
}

func (s *PostgresSummaryStore) UpsertSummary(ctx context.Context, row *SummaryRow) error {
	if row == nil {
		return nil
	}

	dataJSON, err := json.Marshal(row.Summary)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO period_summaries (client_id, summary_type, summary_date, summary)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (client_id, summary_type, summary_date) DO UPDATE SET
			summary = EXCLUDED.summary
	`, row.ClientID, string(row.SummaryType), row.SummaryDate.UTC(), dataJSON)
	if err != nil {
		return fmt.Errorf("failed to upsert summary: %w", err)
	}
	return nil
}

func (s *PostgresSummaryStore) ListSummaryDates(ctx context.Context, clientID string, t models.Granularity) ([]time.Time, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT summary_date FROM period_summaries
		WHERE client_id = $1 AND summary_type = $2
		ORDER BY summary_date
	`, clientID, string(t))
	if err != nil {
		return nil, fmt.Errorf("failed to list summary dates: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d.UTC())
	}
	return dates, rows.Err()
}

func (s *PostgresSummaryStore) DeleteSummary(ctx context.Context, clientID string, t models.Granularity, date time.Time) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM period_summaries
		WHERE client_id = $1 AND summary_type = $2 AND summary_date = $3
	`, clientID, string(t), date.UTC())
	if err != nil {
		return fmt.Errorf("failed to delete summary: %w", err)
	}
	return nil
}

// PostgresClientRepo implements ClientRepo on the clients table.
type PostgresClientRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresClientRepo(pool *pgxpool.Pool) *PostgresClientRepo {
	return &PostgresClientRepo{pool: pool}
}

func (r *PostgresClientRepo) GetClient(ctx context.Context, id string) (*models.Client, error) {
	var (
		c                       models.Client
		metaID, googleID, curr  *string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, status, meta_account_id, google_customer_id, currency, created_at, updated_at
		FROM clients WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Status, &metaID, &googleID, &curr, &c.CreatedAt, &c.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	if metaID != nil {
		c.MetaAccountID = *metaID
	}
	if googleID != nil {
		c.GoogleCustomerID = *googleID
	}
	if curr != nil {
		c.Currency = *curr
	}

	return &c, nil
}

func (r *PostgresClientRepo) ListClients(ctx context.Context, statuses []models.ClientStatus) ([]*models.Client, error) {
	query := `
		SELECT id, name, status, meta_account_id, google_customer_id, currency, created_at, updated_at
		FROM clients`
	args := []any{}
	if len(statuses) > 0 {
		ss := make([]string, 0, len(statuses))
		for _, st := range statuses {
			ss = append(ss, string(st))
		}
		query += ` WHERE status = ANY($1)`
		args = append(args, ss)
	}
	query += ` ORDER BY name`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var clients []*models.Client
	for rows.Next() {
		var (
			c                      models.Client
			metaID, googleID, curr *string
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Status, &metaID, &googleID, &curr, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		if metaID != nil {
			c.MetaAccountID = *metaID
		}
		if googleID != nil {
			c.GoogleCustomerID = *googleID
		}
		if curr != nil {
			c.Currency = *curr
		}
		clients = append(clients, &c)
	}

	return clients, rows.Err()
}

func (r *PostgresClientRepo) UpsertClient(ctx context.Context, c *models.Client) error {
	if c == nil {
		return nil
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO clients (id, name, status, meta_account_id, google_customer_id, currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			meta_account_id = EXCLUDED.meta_account_id,
			google_customer_id = EXCLUDED.google_customer_id,
			currency = EXCLUDED.currency,
			updated_at = EXCLUDED.updated_at
	`, c.ID, c.Name, string(c.Status), nullString(c.MetaAccountID), nullString(c.GoogleCustomerID),
		nullString(c.Currency), c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert client: %w", err)
	}
	return nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
