package pipeline

import (
	"context"
	"fmt"
	"log"
	"sort"

	"position-lab/internal/derive"
	"position-lab/internal/domain"
	"position-lab/internal/observability"
	"position-lab/internal/statmodel"
	"position-lab/internal/storage"
)

// DeriveRunner groups closed positions by strategy, builds the
// per-strategy samples and derives exit parameter sets. Like the
// refresh runner it never aborts the batch on one bad strategy.
type DeriveRunner struct {
	positions storage.PositionStore
	sets      storage.ParameterSetStore
	engine    *derive.Engine
	obs       *observability.Metrics
	logger    *log.Logger
}

// DeriveRunnerOptions contains configuration for creating a DeriveRunner.
type DeriveRunnerOptions struct {
	PositionStore     storage.PositionStore
	ParameterSetStore storage.ParameterSetStore
	Config            *statmodel.Config      // nil selects defaults
	Observability     *observability.Metrics // optional
	Logger            *log.Logger            // optional
}

// NewDeriveRunner creates a derivation runner.
func NewDeriveRunner(opts DeriveRunnerOptions) *DeriveRunner {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &DeriveRunner{
		positions: opts.PositionStore,
		sets:      opts.ParameterSetStore,
		engine:    derive.NewEngine(opts.Config),
		obs:       opts.Observability,
		logger:    logger,
	}
}

// DeriveSummary reports the outcome of a derivation run.
type DeriveSummary struct {
	Strategies int
	Derived    int
	Failed     int

	// Sets holds the derived parameter sets, ordered by strategy ID.
	Sets []*domain.ParameterSet

	// Failures maps strategy_id to the reason it was skipped.
	Failures map[string]string
}

// Run derives a parameter set per strategy present in the closed
// positions and persists them in one batch.
func (r *DeriveRunner) Run(ctx context.Context, confidence float64) (*DeriveSummary, error) {
	closed, err := r.positions.GetByStatus(ctx, domain.StatusClosed)
	if err != nil {
		return nil, fmt.Errorf("load closed positions: %w", err)
	}

	grouped := groupByStrategy(closed)

	summary := &DeriveSummary{
		Strategies: len(grouped),
		Failures:   make(map[string]string),
	}

	strategyIDs := make([]string, 0, len(grouped))
	for id := range grouped {
		strategyIDs = append(strategyIDs, id)
	}
	sort.Strings(strategyIDs)

	for _, id := range strategyIDs {
		samples := buildSamples(id, grouped[id])

		set, err := r.engine.Derive(samples, confidence)
		if err != nil {
			r.logger.Printf("strategy %s: %v", id, err)
			summary.Failed++
			summary.Failures[id] = err.Error()
			if r.obs != nil {
				r.obs.DerivationFailures.Inc()
			}
			continue
		}

		summary.Derived++
		summary.Sets = append(summary.Sets, set)
		if r.obs != nil {
			r.obs.ParameterSetsDerived.WithLabelValues(set.ValidityTier).Inc()
		}
	}

	if len(summary.Sets) > 0 {
		if err := r.sets.InsertBulk(ctx, summary.Sets); err != nil {
			return nil, fmt.Errorf("persist parameter sets: %w", err)
		}
	}

	return summary, nil
}

func groupByStrategy(positions []*domain.Position) map[string][]*domain.Position {
	grouped := make(map[string][]*domain.Position)
	for _, p := range positions {
		id := p.Strategy.ID()
		grouped[id] = append(grouped[id], p)
	}
	return grouped
}

// buildSamples assembles the derivation inputs for one strategy: the
// return and duration samples plus the mean aggregate excursions.
func buildSamples(strategyID string, positions []*domain.Position) domain.StrategySamples {
	samples := domain.StrategySamples{StrategyID: strategyID}

	var sumMFE, sumMAE, sumReturn float64
	for _, p := range positions {
		samples.Returns = append(samples.Returns, p.Return)
		samples.Durations = append(samples.Durations, float64(p.DaysHeld))
		sumMFE += p.MFE
		sumMAE += p.MAE
		sumReturn += p.Return
	}

	if n := float64(len(positions)); n > 0 {
		samples.MFE = sumMFE / n
		samples.MAE = sumMAE / n
		samples.MeanReturn = sumReturn / n
	}

	return samples
}
