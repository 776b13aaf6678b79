// Package metrics computes per-position performance metrics: profit and
// return, excursion ratio, exit efficiency, holding period and trade
// quality grading, with a standardized precision contract (PnL 2dp,
// Return 4dp, MFE/MAE 6dp, Ratio 4dp, Efficiency 4dp, Days integer).
package metrics

import (
	"errors"
	"fmt"
	"math"
	"time"

	"position-lab/internal/domain"
)

// Engine errors. The arithmetic operations return these together with
// zero values so a bulk portfolio refresh can log one bad row and keep
// going instead of aborting the batch.
var (
	ErrMalformedInput   = errors.New("malformed numeric input")
	ErrUnknownDirection = errors.New("unknown direction")
)

// Quality grading thresholds.
const (
	poorSetupMaxMFE      = 0.02
	poorSetupMinMAE      = 0.05
	excellentRatioFloor  = 2.0
	goodRatioFloor       = 1.5
	ratioCompareEpsilon  = 1e-4
	effortCompareEpsilon = 1e-4
)

// Engine computes position metrics. It is stateless and reentrant;
// callers inject one instance wherever metrics are needed.
type Engine struct{}

// NewEngine creates a new metrics engine.
func NewEngine() *Engine {
	return &Engine{}
}

// PnLAndReturn computes realized profit and fractional return.
// Long: pnl = (exit-entry)*size, ret = (exit-entry)/entry; Short negates
// both. Malformed input yields (0, 0, err) rather than a panic, so batch
// callers can log the row and continue.
func (e *Engine) PnLAndReturn(entry, exit, size float64, direction domain.Direction) (float64, float64, error) {
	if !finite(entry) || !finite(exit) || !finite(size) || entry <= 0 {
		return 0, 0, fmt.Errorf("%w: entry=%v exit=%v size=%v", ErrMalformedInput, entry, exit, size)
	}
	if !direction.Valid() {
		return 0, 0, fmt.Errorf("%w: %q", ErrUnknownDirection, string(direction))
	}

	pnl := (exit - entry) * size
	ret := (exit - entry) / entry
	if direction == domain.DirectionShort {
		pnl = -pnl
		ret = -ret
	}

	return round2(pnl), round4(ret), nil
}

// DaysSinceEntry returns the rounded whole-day count between entry and now.
func (e *Engine) DaysSinceEntry(entry, now time.Time) int {
	return int(math.Round(now.Sub(entry).Hours() / 24))
}

// ExitEfficiency is finalReturn/mfe: how much of the available favorable
// move was captured. With mfe <= 0 there is no favorable excursion to
// measure against and the second return value is false.
func (e *Engine) ExitEfficiency(finalReturn, mfe float64) (float64, bool) {
	if mfe <= 0 || !finite(finalReturn) || !finite(mfe) {
		return 0, false
	}
	return round4(finalReturn / mfe), true
}

// MFEMAERatio is mfe/mae. By convention: +Inf when mae <= 0 < mfe (pure
// upside), 0 when there was no favorable excursion at all.
func (e *Engine) MFEMAERatio(mfe, mae float64) float64 {
	if mfe <= 0 {
		return 0
	}
	if mae <= 0 {
		return math.Inf(1)
	}
	return round4(mfe / mae)
}

// TradeQuality grades a trade from its excursions and optional final
// return. The grading is total: exactly one grade applies to any input.
//
//  1. mfe < 2% with mae > 5%: a poor setup regardless of outcome.
//  2. Negative final return larger than the MFE: the trade had upside
//     and gave it all back.
//  3. ratio >= 2.0: excellent.
//  4. ratio >= 1.5: good.
//  5. otherwise: poor.
func (e *Engine) TradeQuality(mfe, mae float64, finalReturn *float64) string {
	if mfe < poorSetupMaxMFE && mae > poorSetupMinMAE {
		return domain.QualityPoorSetup
	}
	if finalReturn != nil && *finalReturn < 0 && math.Abs(*finalReturn) > mfe {
		return domain.QualityFailedToCapture
	}

	ratio := math.Inf(1)
	if mae > 0 {
		ratio = mfe / mae
	}

	switch {
	case ratio >= excellentRatioFloor:
		return domain.QualityExcellent
	case ratio >= goodRatioFloor:
		return domain.QualityGood
	default:
		return domain.QualityPoor
	}
}

// excursionStatus classifies the current return sign.
func excursionStatus(currentReturn float64) string {
	switch {
	case currentReturn > 0:
		return domain.ExcursionFavorable
	case currentReturn < 0:
		return domain.ExcursionAdverse
	default:
		return domain.ExcursionNeutral
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Standardized rounding helpers.

func round2(v float64) float64 {
	return math.Round(v*1e2) / 1e2
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
