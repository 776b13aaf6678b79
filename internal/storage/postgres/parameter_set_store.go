package postgres

import (
	"context"
	"fmt"

	"position-lab/internal/domain"
	"position-lab/internal/storage"
)

// ParameterSetStore implements storage.ParameterSetStore using PostgreSQL.
// Parameter sets are append-only; each analysis run inserts fresh rows.
type ParameterSetStore struct {
	pool *Pool
}

// NewParameterSetStore creates a new ParameterSetStore.
func NewParameterSetStore(pool *Pool) *ParameterSetStore {
	return &ParameterSetStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ParameterSetStore = (*ParameterSetStore)(nil)

const parameterSetColumns = `
	strategy_id, take_profit_pct, stop_loss_pct, trailing_stop_pct,
	min_holding_days, max_holding_days,
	momentum_exit_threshold, trend_exit_threshold,
	confidence_level, sample_size, validity_tier
`

const insertParameterSetQuery = `
	INSERT INTO parameter_sets (` + parameterSetColumns + `) VALUES (
		$1, $2, $3, $4,
		$5, $6,
		$7, $8,
		$9, $10, $11
	)
`

// Insert adds a new parameter set. Returns ErrDuplicateKey if the
// (strategy_id, confidence_level) key exists.
func (s *ParameterSetStore) Insert(ctx context.Context, ps *domain.ParameterSet) error {
	if ps == nil || ps.StrategyID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, insertParameterSetQuery, parameterSetArgs(ps)...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert parameter set: %w", err)
	}
	return nil
}

// InsertBulk adds multiple parameter sets atomically. Fails entire batch
// on any duplicate.
func (s *ParameterSetStore) InsertBulk(ctx context.Context, sets []*domain.ParameterSet) error {
	if len(sets) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, ps := range sets {
		if ps == nil || ps.StrategyID == "" {
			return storage.ErrInvalidInput
		}
		if _, err := tx.Exec(ctx, insertParameterSetQuery, parameterSetArgs(ps)...); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert parameter set: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByStrategy retrieves all parameter sets for a strategy.
func (s *ParameterSetStore) GetByStrategy(ctx context.Context, strategyID string) ([]*domain.ParameterSet, error) {
	query := `SELECT ` + parameterSetColumns + ` FROM parameter_sets WHERE strategy_id = $1 ORDER BY confidence_level ASC`
	return s.queryParameterSets(ctx, query, strategyID)
}

// GetAll retrieves all parameter sets.
func (s *ParameterSetStore) GetAll(ctx context.Context) ([]*domain.ParameterSet, error) {
	query := `SELECT ` + parameterSetColumns + ` FROM parameter_sets ORDER BY strategy_id ASC, confidence_level ASC`
	return s.queryParameterSets(ctx, query)
}

func (s *ParameterSetStore) queryParameterSets(ctx context.Context, query string, args ...any) ([]*domain.ParameterSet, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query parameter sets: %w", err)
	}
	defer rows.Close()

	var result []*domain.ParameterSet
	for rows.Next() {
		var ps domain.ParameterSet
		err := rows.Scan(
			&ps.StrategyID, &ps.TakeProfitPct, &ps.StopLossPct, &ps.TrailingStopPct,
			&ps.MinHoldingDays, &ps.MaxHoldingDays,
			&ps.MomentumExitThreshold, &ps.TrendExitThreshold,
			&ps.ConfidenceLevel, &ps.SampleSize, &ps.ValidityTier,
		)
		if err != nil {
			return nil, fmt.Errorf("scan parameter set: %w", err)
		}
		result = append(result, &ps)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate parameter sets: %w", err)
	}
	return result, nil
}

func parameterSetArgs(ps *domain.ParameterSet) []any {
	return []any{
		ps.StrategyID, ps.TakeProfitPct, ps.StopLossPct, ps.TrailingStopPct,
		ps.MinHoldingDays, ps.MaxHoldingDays,
		ps.MomentumExitThreshold, ps.TrendExitThreshold,
		ps.ConfidenceLevel, ps.SampleSize, ps.ValidityTier,
	}
}
