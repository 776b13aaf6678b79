package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"position-lab/internal/domain"
	"position-lab/internal/storage"
)

// PriceWindowStore is an in-memory implementation of storage.PriceWindowStore.
type PriceWindowStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.PriceBar // keyed by ticker
	keys map[string]struct{}           // (ticker, date) duplicate detection
}

// NewPriceWindowStore creates a new in-memory price window store.
func NewPriceWindowStore() *PriceWindowStore {
	return &PriceWindowStore{
		data: make(map[string][]*domain.PriceBar),
		keys: make(map[string]struct{}),
	}
}

// Compile-time interface check.
var _ storage.PriceWindowStore = (*PriceWindowStore)(nil)

func barKey(b *domain.PriceBar) string {
	return fmt.Sprintf("%s|%d", b.Ticker, b.Date.Unix())
}

// InsertBulk adds multiple bars. Fails entire batch on duplicate (ticker, date).
func (s *PriceWindowStore) InsertBulk(_ context.Context, bars []*domain.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(bars))
	for _, b := range bars {
		if b == nil || b.Ticker == "" {
			return storage.ErrInvalidInput
		}
		key := barKey(b)
		if _, exists := s.keys[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, b := range bars {
		c := *b
		s.data[b.Ticker] = append(s.data[b.Ticker], &c)
		s.keys[barKey(b)] = struct{}{}
	}

	return nil
}

// GetByTicker retrieves all bars for a ticker as a window, ordered by date ASC.
func (s *PriceWindowStore) GetByTicker(_ context.Context, ticker string) (*domain.PriceWindow, error) {
	return s.window(ticker, func(*domain.PriceBar) bool { return true }), nil
}

// GetByDateRange retrieves bars for a ticker within [start, end]
// (inclusive, unix seconds) as a window, ordered by date ASC.
func (s *PriceWindowStore) GetByDateRange(_ context.Context, ticker string, start, end int64) (*domain.PriceWindow, error) {
	return s.window(ticker, func(b *domain.PriceBar) bool {
		ts := b.Date.Unix()
		return ts >= start && ts <= end
	}), nil
}

func (s *PriceWindowStore) window(ticker string, keep func(*domain.PriceBar) bool) *domain.PriceWindow {
	s.mu.RLock()
	defer s.mu.RUnlock()

	window := &domain.PriceWindow{Ticker: ticker}
	for _, b := range s.data[ticker] {
		if keep(b) {
			window.Bars = append(window.Bars, *b)
		}
	}

	sort.Slice(window.Bars, func(i, j int) bool {
		return window.Bars[i].Date.Before(window.Bars[j].Date)
	})

	return window
}
