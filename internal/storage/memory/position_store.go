package memory

import (
	"context"
	"sort"
	"sync"

	"position-lab/internal/domain"
	"position-lab/internal/storage"
)

// PositionStore is an in-memory implementation of storage.PositionStore.
type PositionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Position // keyed by position_id
}

// NewPositionStore creates a new in-memory position store.
func NewPositionStore() *PositionStore {
	return &PositionStore{
		data: make(map[string]*domain.Position),
	}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

// Insert adds a new position. Returns ErrDuplicateKey if position_id exists.
func (s *PositionStore) Insert(_ context.Context, p *domain.Position) error {
	if p == nil || p.PositionID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.PositionID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[p.PositionID] = copyPosition(p)
	return nil
}

// Update replaces a stored position. Returns ErrNotFound if not exists.
func (s *PositionStore) Update(_ context.Context, p *domain.Position) error {
	if p == nil || p.PositionID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.PositionID]; !exists {
		return storage.ErrNotFound
	}

	s.data[p.PositionID] = copyPosition(p)
	return nil
}

// GetByID retrieves a position by its ID. Returns ErrNotFound if not exists.
func (s *PositionStore) GetByID(_ context.Context, positionID string) (*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[positionID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	return copyPosition(p), nil
}

// GetByTicker retrieves all positions for a ticker, ordered by entry time ASC.
func (s *PositionStore) GetByTicker(_ context.Context, ticker string) ([]*domain.Position, error) {
	return s.filter(func(p *domain.Position) bool { return p.Ticker == ticker }), nil
}

// GetByStatus retrieves all positions with the given status, ordered by entry time ASC.
func (s *PositionStore) GetByStatus(_ context.Context, status string) ([]*domain.Position, error) {
	return s.filter(func(p *domain.Position) bool { return p.Status == status }), nil
}

// GetAll retrieves all positions, ordered by entry time ASC.
func (s *PositionStore) GetAll(_ context.Context) ([]*domain.Position, error) {
	return s.filter(func(*domain.Position) bool { return true }), nil
}

func (s *PositionStore) filter(keep func(*domain.Position) bool) []*domain.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Position
	for _, p := range s.data {
		if keep(p) {
			result = append(result, copyPosition(p))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].EntryTime.Equal(result[j].EntryTime) {
			return result[i].EntryTime.Before(result[j].EntryTime)
		}
		return result[i].PositionID < result[j].PositionID
	})

	return result
}

// copyPosition makes a deep copy including the nullable pointer fields.
func copyPosition(p *domain.Position) *domain.Position {
	c := *p
	if p.ExitTime != nil {
		t := *p.ExitTime
		c.ExitTime = &t
	}
	if p.ExitPrice != nil {
		v := *p.ExitPrice
		c.ExitPrice = &v
	}
	if p.ExitEfficiency != nil {
		v := *p.ExitEfficiency
		c.ExitEfficiency = &v
	}
	return &c
}
