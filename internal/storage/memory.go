package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/harborview/adinsights/internal/models"
)

// In-memory implementations, used in tests and when PostgreSQL is not
// available at startup.

type cacheKey struct {
	clientID    string
	periodID    string
	granularity models.Granularity
}

// InMemoryCacheStore stores cache entries in a map.
type InMemoryCacheStore struct {
	mu      sync.RWMutex
	entries map[cacheKey]*models.CacheEntry
}

func NewInMemoryCacheStore() *InMemoryCacheStore {
	return &InMemoryCacheStore{
		entries: make(map[cacheKey]*models.CacheEntry),
	}
}

func (s *InMemoryCacheStore) Get(_ context.Context, clientID, periodID string, g models.Granularity) (*models.CacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.entries[cacheKey{clientID, periodID, g}]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, nil
}

func (s *InMemoryCacheStore) Put(_ context.Context, entry *models.CacheEntry) error {
	if entry == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *entry
	s.entries[cacheKey{entry.ClientID, entry.PeriodID, entry.Granularity}] = &cp
	return nil
}

func (s *InMemoryCacheStore) Delete(_ context.Context, clientID, periodID string, g models.Granularity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, cacheKey{clientID, periodID, g})
	return nil
}

type summaryKey struct {
	clientID    string
	summaryType models.Granularity
	date        time.Time
}

// InMemorySummaryStore stores historical summaries in a map.
type InMemorySummaryStore struct {
	mu   sync.RWMutex
	rows map[summaryKey]*SummaryRow
}

func NewInMemorySummaryStore() *InMemorySummaryStore {
	return &InMemorySummaryStore{
		rows: make(map[summaryKey]*SummaryRow),
	}
}

func (s *InMemorySummaryStore) GetSummary(_ context.Context, clientID string, t models.Granularity, date time.Time) (*SummaryRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.rows[summaryKey{clientID, t, date.UTC()}]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, nil
}

func (s *InMemorySummaryStore) UpsertSummary(_ context.Context, row *SummaryRow) error {
	if row == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *row
	cp.SummaryDate = row.SummaryDate.UTC()
	s.rows[summaryKey{row.ClientID, row.SummaryType, cp.SummaryDate}] = &cp
	return nil
}

func (s *InMemorySummaryStore) ListSummaryDates(_ context.Context, clientID string, t models.Granularity) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var dates []time.Time
	for k := range s.rows {
		if k.clientID == clientID && k.summaryType == t {
			dates = append(dates, k.date)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

func (s *InMemorySummaryStore) DeleteSummary(_ context.Context, clientID string, t models.Granularity, date time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, summaryKey{clientID, t, date.UTC()})
	return nil
}

// InMemoryClientRepo stores clients in a map.
type InMemoryClientRepo struct {
	mu      sync.RWMutex
	clients map[string]*models.Client
}

func NewInMemoryClientRepo() *InMemoryClientRepo {
	return &InMemoryClientRepo{
		clients: make(map[string]*models.Client),
	}
}

func (r *InMemoryClientRepo) GetClient(_ context.Context, id string) (*models.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.clients[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (r *InMemoryClientRepo) ListClients(_ context.Context, statuses []models.ClientStatus) ([]*models.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]*models.Client, 0, len(r.clients))
	for _, c := range r.clients {
		if len(statuses) > 0 && !containsStatus(statuses, c.Status) {
			continue
		}
		cp := *c
		res = append(res, &cp)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res, nil
}

func (r *InMemoryClientRepo) UpsertClient(_ context.Context, c *models.Client) error {
	if c == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.clients[c.ID] = &cp
	return nil
}

func containsStatus(statuses []models.ClientStatus, s models.ClientStatus) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}
