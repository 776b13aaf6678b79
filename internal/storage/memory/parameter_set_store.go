package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"position-lab/internal/domain"
	"position-lab/internal/storage"
)

// ParameterSetStore is an in-memory implementation of storage.ParameterSetStore.
type ParameterSetStore struct {
	mu   sync.RWMutex
	data map[string]*domain.ParameterSet // keyed by (strategy_id, confidence_level)
}

// NewParameterSetStore creates a new in-memory parameter set store.
func NewParameterSetStore() *ParameterSetStore {
	return &ParameterSetStore{
		data: make(map[string]*domain.ParameterSet),
	}
}

// Compile-time interface check.
var _ storage.ParameterSetStore = (*ParameterSetStore)(nil)

func setKey(ps *domain.ParameterSet) string {
	return fmt.Sprintf("%s|%.4f", ps.StrategyID, ps.ConfidenceLevel)
}

// Insert adds a new parameter set. Returns ErrDuplicateKey if the
// (strategy_id, confidence_level) key exists.
func (s *ParameterSetStore) Insert(_ context.Context, ps *domain.ParameterSet) error {
	if ps == nil || ps.StrategyID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := setKey(ps)
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	c := *ps
	s.data[key] = &c
	return nil
}

// InsertBulk adds multiple parameter sets atomically. Fails entire batch
// on any duplicate.
func (s *ParameterSetStore) InsertBulk(_ context.Context, sets []*domain.ParameterSet) error {
	if len(sets) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(sets))
	for _, ps := range sets {
		if ps == nil || ps.StrategyID == "" {
			return storage.ErrInvalidInput
		}
		key := setKey(ps)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, ps := range sets {
		c := *ps
		s.data[setKey(ps)] = &c
	}

	return nil
}

// GetByStrategy retrieves all parameter sets for a strategy.
func (s *ParameterSetStore) GetByStrategy(_ context.Context, strategyID string) ([]*domain.ParameterSet, error) {
	return s.filter(func(ps *domain.ParameterSet) bool { return ps.StrategyID == strategyID }), nil
}

// GetAll retrieves all parameter sets.
func (s *ParameterSetStore) GetAll(_ context.Context) ([]*domain.ParameterSet, error) {
	return s.filter(func(*domain.ParameterSet) bool { return true }), nil
}

func (s *ParameterSetStore) filter(keep func(*domain.ParameterSet) bool) []*domain.ParameterSet {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ParameterSet
	for _, ps := range s.data {
		if keep(ps) {
			c := *ps
			result = append(result, &c)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].StrategyID != result[j].StrategyID {
			return result[i].StrategyID < result[j].StrategyID
		}
		return result[i].ConfidenceLevel < result[j].ConfidenceLevel
	})

	return result
}
