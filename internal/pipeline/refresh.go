// Package pipeline orchestrates batch runs of the pure engines over the
// portfolio stores: metric refreshes and parameter derivations.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"position-lab/internal/domain"
	"position-lab/internal/excursion"
	"position-lab/internal/metrics"
	"position-lab/internal/observability"
	"position-lab/internal/storage"
)

// RefreshRunner refreshes the computed metrics of every stored position
// from its price window. One bad row never aborts the batch: failures
// are logged, counted and reported in the summary.
type RefreshRunner struct {
	positions storage.PositionStore
	windows   storage.PriceWindowStore
	calc      *excursion.Calculator
	engine    *metrics.Engine
	obs       *observability.Metrics
	logger    *log.Logger
}

// RefreshRunnerOptions contains configuration for creating a RefreshRunner.
type RefreshRunnerOptions struct {
	PositionStore    storage.PositionStore
	PriceWindowStore storage.PriceWindowStore
	Observability    *observability.Metrics // optional
	Logger           *log.Logger            // optional
}

// NewRefreshRunner creates a refresh runner.
func NewRefreshRunner(opts RefreshRunnerOptions) *RefreshRunner {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &RefreshRunner{
		positions: opts.PositionStore,
		windows:   opts.PriceWindowStore,
		calc:      excursion.NewCalculator(),
		engine:    metrics.NewEngine(),
		obs:       opts.Observability,
		logger:    logger,
	}
}

// RefreshSummary reports the outcome of a batch refresh.
type RefreshSummary struct {
	Total     int
	Refreshed int
	Changed   int
	Failed    int

	// Failures maps position_id to the reason it was skipped.
	Failures map[string]string
}

// Run refreshes every stored position. now anchors days-held for open
// positions; passing the same now reproduces the same output.
func (r *RefreshRunner) Run(ctx context.Context, now time.Time) (*RefreshSummary, error) {
	started := time.Now()

	positions, err := r.positions.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load positions: %w", err)
	}

	summary := &RefreshSummary{
		Total:    len(positions),
		Failures: make(map[string]string),
	}

	for _, pos := range positions {
		if err := r.refreshOne(ctx, pos, now, summary); err != nil {
			r.logger.Printf("position %s: %v", pos.PositionID, err)
			summary.Failed++
			summary.Failures[pos.PositionID] = err.Error()
			if r.obs != nil {
				r.obs.RefreshFailures.Inc()
			}
		}
	}

	if r.obs != nil {
		r.obs.RefreshDuration.Observe(time.Since(started).Seconds())
	}
	return summary, nil
}

func (r *RefreshRunner) refreshOne(ctx context.Context, pos *domain.Position, now time.Time, summary *RefreshSummary) error {
	window, err := r.loadWindow(ctx, pos, now)
	if err != nil {
		return fmt.Errorf("load price window: %w", err)
	}

	input := metrics.RefreshInput{}
	if !window.Empty() {
		exc := r.calc.FromOHLC(pos.EntryPrice, window, pos.Direction)
		input.MFE = &exc.MFE
		input.MAE = &exc.MAE

		if !pos.Closed() {
			cur := currentExcursion(pos, window)
			input.CurrentExcursion = &cur
		}
	}

	result := r.engine.Refresh(*pos, input, now)

	if len(result.Validation.Errors) > 0 && r.obs != nil {
		r.obs.ValidationErrors.Add(float64(len(result.Validation.Errors)))
	}
	if len(result.Validation.Warnings) > 0 && r.obs != nil {
		r.obs.ValidationWarnings.Add(float64(len(result.Validation.Warnings)))
	}

	if err := r.positions.Update(ctx, &result.Position); err != nil {
		return fmt.Errorf("write back: %w", err)
	}

	summary.Refreshed++
	if len(result.Changes) > 0 {
		summary.Changed++
		r.logger.Printf("position %s updated: %v", pos.PositionID, result.Changes)
	}
	if r.obs != nil {
		r.obs.PositionsRefreshed.Inc()
	}
	return nil
}

// loadWindow fetches the bars covering the position's life: entry to
// exit for closed positions, entry to now for open ones.
func (r *RefreshRunner) loadWindow(ctx context.Context, pos *domain.Position, now time.Time) (*domain.PriceWindow, error) {
	end := now
	if pos.Closed() {
		end = *pos.ExitTime
	}
	return r.windows.GetByDateRange(ctx, pos.Ticker, pos.EntryTime.Unix(), end.Unix())
}

// currentExcursion computes the direction-adjusted unrealized return of
// an open position from the last close in its window.
func currentExcursion(pos *domain.Position, window *domain.PriceWindow) float64 {
	lastClose := window.Bars[len(window.Bars)-1].Close
	ret := (lastClose - pos.EntryPrice) / pos.EntryPrice
	if pos.Direction == domain.DirectionShort {
		ret = -ret
	}
	return ret
}
