package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"position-lab/internal/domain"
	"position-lab/internal/storage"
)

// PositionStore implements storage.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *Pool
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(pool *Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

const positionColumns = `
	position_id, ticker, strategy_type, short_window, long_window,
	entry_time, entry_price, size, direction,
	exit_time, exit_price, status,
	pnl, return_pct, mfe, mae, mfe_mae_ratio, exit_efficiency,
	days_held, excursion_status, trade_quality
`

// Insert adds a new position. Returns ErrDuplicateKey if position_id exists.
func (s *PositionStore) Insert(ctx context.Context, p *domain.Position) error {
	if p == nil || p.PositionID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO positions (` + positionColumns + `) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12,
			$13, $14, $15, $16, $17, $18,
			$19, $20, $21
		)
	`

	_, err := s.pool.Exec(ctx, query, positionArgs(p)...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert position: %w", err)
	}
	return nil
}

// Update replaces a stored position. Returns ErrNotFound if not exists.
func (s *PositionStore) Update(ctx context.Context, p *domain.Position) error {
	if p == nil || p.PositionID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE positions SET
			ticker = $2, strategy_type = $3, short_window = $4, long_window = $5,
			entry_time = $6, entry_price = $7, size = $8, direction = $9,
			exit_time = $10, exit_price = $11, status = $12,
			pnl = $13, return_pct = $14, mfe = $15, mae = $16,
			mfe_mae_ratio = $17, exit_efficiency = $18,
			days_held = $19, excursion_status = $20, trade_quality = $21
		WHERE position_id = $1
	`

	tag, err := s.pool.Exec(ctx, query, positionArgs(p)...)
	if err != nil {
		return fmt.Errorf("update position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByID retrieves a position by its ID. Returns ErrNotFound if not exists.
func (s *PositionStore) GetByID(ctx context.Context, positionID string) (*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE position_id = $1`

	row := s.pool.QueryRow(ctx, query, positionID)
	p, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get position by id: %w", err)
	}
	return p, nil
}

// GetByTicker retrieves all positions for a ticker, ordered by entry time ASC.
func (s *PositionStore) GetByTicker(ctx context.Context, ticker string) ([]*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE ticker = $1 ORDER BY entry_time ASC, position_id ASC`
	return s.queryPositions(ctx, query, ticker)
}

// GetByStatus retrieves all positions with the given status, ordered by entry time ASC.
func (s *PositionStore) GetByStatus(ctx context.Context, status string) ([]*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE status = $1 ORDER BY entry_time ASC, position_id ASC`
	return s.queryPositions(ctx, query, status)
}

// GetAll retrieves all positions, ordered by entry time ASC.
func (s *PositionStore) GetAll(ctx context.Context) ([]*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions ORDER BY entry_time ASC, position_id ASC`
	return s.queryPositions(ctx, query)
}

func (s *PositionStore) queryPositions(ctx context.Context, query string, args ...any) ([]*domain.Position, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()

	var result []*domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate positions: %w", err)
	}
	return result, nil
}

func positionArgs(p *domain.Position) []any {
	return []any{
		p.PositionID, p.Ticker, p.Strategy.Type, p.Strategy.ShortWindow, p.Strategy.LongWindow,
		p.EntryTime, p.EntryPrice, p.Size, string(p.Direction),
		p.ExitTime, p.ExitPrice, p.Status,
		p.PnL, p.Return, p.MFE, p.MAE, p.MFEMAERatio, p.ExitEfficiency,
		p.DaysHeld, p.ExcursionStatus, p.TradeQuality,
	}
}

func scanPosition(row pgx.Row) (*domain.Position, error) {
	var p domain.Position
	var direction string

	err := row.Scan(
		&p.PositionID, &p.Ticker, &p.Strategy.Type, &p.Strategy.ShortWindow, &p.Strategy.LongWindow,
		&p.EntryTime, &p.EntryPrice, &p.Size, &direction,
		&p.ExitTime, &p.ExitPrice, &p.Status,
		&p.PnL, &p.Return, &p.MFE, &p.MAE, &p.MFEMAERatio, &p.ExitEfficiency,
		&p.DaysHeld, &p.ExcursionStatus, &p.TradeQuality,
	)
	if err != nil {
		return nil, err
	}

	p.Direction = domain.Direction(direction)
	return &p, nil
}
