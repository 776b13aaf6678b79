package storage

import (
	"context"

	"position-lab/internal/domain"
)

// PositionStore provides access to position records. Positions are
// mutable: metric refreshes write computed fields back.
type PositionStore interface {
	// Insert adds a new position. Returns ErrDuplicateKey if position_id exists.
	Insert(ctx context.Context, p *domain.Position) error

	// Update replaces a stored position. Returns ErrNotFound if not exists.
	Update(ctx context.Context, p *domain.Position) error

	// GetByID retrieves a position by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, positionID string) (*domain.Position, error)

	// GetByTicker retrieves all positions for a ticker, ordered by entry time ASC.
	GetByTicker(ctx context.Context, ticker string) ([]*domain.Position, error)

	// GetByStatus retrieves all positions with the given status, ordered by entry time ASC.
	GetByStatus(ctx context.Context, status string) ([]*domain.Position, error)

	// GetAll retrieves all positions, ordered by entry time ASC.
	GetAll(ctx context.Context) ([]*domain.Position, error)
}

// ParameterSetStore provides access to derived parameter sets. Parameter
// sets are append-only: each analysis run creates fresh records.
type ParameterSetStore interface {
	// Insert adds a new parameter set. Returns ErrDuplicateKey if
	// (strategy_id, confidence_level) exists.
	Insert(ctx context.Context, ps *domain.ParameterSet) error

	// InsertBulk adds multiple parameter sets atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, sets []*domain.ParameterSet) error

	// GetByStrategy retrieves all parameter sets for a strategy.
	GetByStrategy(ctx context.Context, strategyID string) ([]*domain.ParameterSet, error)

	// GetAll retrieves all parameter sets.
	GetAll(ctx context.Context) ([]*domain.ParameterSet, error)
}

// PriceWindowStore provides access to OHLCV bar storage.
type PriceWindowStore interface {
	// InsertBulk adds multiple bars. Fails entire batch on duplicate (ticker, date).
	InsertBulk(ctx context.Context, bars []*domain.PriceBar) error

	// GetByTicker retrieves all bars for a ticker as a window, ordered by date ASC.
	GetByTicker(ctx context.Context, ticker string) (*domain.PriceWindow, error)

	// GetByDateRange retrieves bars for a ticker within [start, end]
	// (inclusive, unix seconds) as a window, ordered by date ASC.
	GetByDateRange(ctx context.Context, ticker string, start, end int64) (*domain.PriceWindow, error)
}
