// Package inmemory provides a map-backed Store. Data is lost on restart;
// it exists for tests and for running the engine without a database file.
package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/recon-engine/internal/domain"
	"github.com/dvloznov/recon-engine/internal/store"
)

// Store is an in-memory implementation of store.Store.
// It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	nextID  int64
	records map[int64]*domain.TransactionRecord
	balance *domain.Balance
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		nextID:  1,
		records: make(map[int64]*domain.TransactionRecord),
	}
}

// Create assigns the next ID and saves a copy of the record.
func (s *Store) Create(ctx context.Context, rec *domain.TransactionRecord) (*domain.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := rec.Clone()
	cp.ID = s.nextID
	s.nextID++

	now := time.Now().UTC()
	cp.CreatedAt = now
	cp.UpdatedAt = now

	s.records[cp.ID] = cp
	return cp.Clone(), nil
}

// Get retrieves a record by ID.
func (s *Store) Get(ctx context.Context, id int64) (*domain.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.records[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return rec.Clone(), nil
}

// Update replaces an existing record.
func (s *Store) Update(ctx context.Context, rec *domain.TransactionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.ID]; !exists {
		return store.ErrNotFound
	}

	cp := rec.Clone()
	cp.UpdatedAt = time.Now().UTC()
	s.records[rec.ID] = cp
	return nil
}

// Delete removes a record by ID.
func (s *Store) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.records, id)
	return nil
}

// List retrieves records matching the filter, ordered by ID.
func (s *Store) List(ctx context.Context, filter store.Filter) ([]*domain.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.TransactionRecord, 0, len(s.records))
	for _, rec := range s.records {
		if !matches(rec, filter) {
			continue
		}
		result = append(result, rec.Clone())
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	return paginate(result, filter), nil
}

// GetBalance returns the stored balance, or a zero balance if none was set.
func (s *Store) GetBalance(ctx context.Context) (*domain.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.balance == nil {
		return &domain.Balance{
			OpeningBalance: decimal.Zero,
			CurrentBalance: decimal.Zero,
		}, nil
	}
	cp := *s.balance
	return &cp, nil
}

// SaveBalance stores a copy of the balance.
func (s *Store) SaveBalance(ctx context.Context, b *domain.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *b
	cp.LastUpdated = time.Now().UTC()
	s.balance = &cp
	return nil
}

func matches(rec *domain.TransactionRecord, filter store.Filter) bool {
	if filter.NeedsReview != nil && rec.NeedsReview != *filter.NeedsReview {
		return false
	}
	if filter.IsDuplicate != nil && rec.IsDuplicate != *filter.IsDuplicate {
		return false
	}
	if filter.Category != "" && rec.Category != filter.Category {
		return false
	}
	return true
}

func paginate(recs []*domain.TransactionRecord, filter store.Filter) []*domain.TransactionRecord {
	if filter.Offset > 0 {
		if filter.Offset >= len(recs) {
			return []*domain.TransactionRecord{}
		}
		recs = recs[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(recs) {
		recs = recs[:filter.Limit]
	}
	return recs
}
