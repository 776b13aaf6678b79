package clickhouse

import (
	"context"
	"fmt"
	"time"

	"position-lab/internal/domain"
	"position-lab/internal/storage"
)

// PriceWindowStore implements storage.PriceWindowStore using ClickHouse.
type PriceWindowStore struct {
	conn *Conn
}

// NewPriceWindowStore creates a new PriceWindowStore.
func NewPriceWindowStore(conn *Conn) *PriceWindowStore {
	return &PriceWindowStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceWindowStore = (*PriceWindowStore)(nil)

// InsertBulk adds multiple bars. Fails entire batch on duplicate (ticker, date).
// ClickHouse MergeTree does not enforce uniqueness at insert time, so
// duplicates are detected with explicit checks before the batch is sent.
func (s *PriceWindowStore) InsertBulk(ctx context.Context, bars []*domain.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}

	type key struct {
		ticker string
		date   int64
	}
	seen := make(map[key]struct{})
	for _, b := range bars {
		if b == nil || b.Ticker == "" {
			return storage.ErrInvalidInput
		}
		k := key{b.Ticker, b.Date.Unix()}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	for _, b := range bars {
		exists, err := s.exists(ctx, b.Ticker, b.Date)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_bars (
			ticker, date, open, high, low, close, volume
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, b := range bars {
		err = batch.Append(
			b.Ticker, b.Date, b.Open, b.High, b.Low, b.Close, b.Volume,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByTicker retrieves all bars for a ticker as a window, ordered by date ASC.
func (s *PriceWindowStore) GetByTicker(ctx context.Context, ticker string) (*domain.PriceWindow, error) {
	query := `
		SELECT ticker, date, open, high, low, close, volume
		FROM price_bars
		WHERE ticker = ?
		ORDER BY date ASC
	`
	return s.queryWindow(ctx, ticker, query, ticker)
}

// GetByDateRange retrieves bars for a ticker within [start, end]
// (inclusive, unix seconds) as a window, ordered by date ASC.
func (s *PriceWindowStore) GetByDateRange(ctx context.Context, ticker string, start, end int64) (*domain.PriceWindow, error) {
	query := `
		SELECT ticker, date, open, high, low, close, volume
		FROM price_bars
		WHERE ticker = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`
	return s.queryWindow(ctx, ticker, query, ticker, time.Unix(start, 0).UTC(), time.Unix(end, 0).UTC())
}

func (s *PriceWindowStore) queryWindow(ctx context.Context, ticker, query string, args ...any) (*domain.PriceWindow, error) {
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query price bars: %w", err)
	}
	defer rows.Close()

	window := &domain.PriceWindow{Ticker: ticker}
	for rows.Next() {
		var b domain.PriceBar
		if err := rows.Scan(&b.Ticker, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan price bar: %w", err)
		}
		window.Bars = append(window.Bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price bars: %w", err)
	}

	return window, nil
}

func (s *PriceWindowStore) exists(ctx context.Context, ticker string, date time.Time) (bool, error) {
	query := `SELECT count() FROM price_bars WHERE ticker = ? AND date = ?`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, ticker, date).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}
