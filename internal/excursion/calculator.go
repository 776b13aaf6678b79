// Package excursion computes Maximum Favorable/Adverse Excursion (MFE/MAE)
// from price windows, trade lists, or single return values.
package excursion

import (
	"fmt"
	"math"

	"position-lab/internal/domain"
)

// precision for excursion fractions (6 decimal places).
const precision = 1e6

// Calculator computes MFE/MAE. It is stateless; callers may share one
// instance across goroutines.
type Calculator struct{}

// NewCalculator creates a new excursion calculator.
func NewCalculator() *Calculator {
	return &Calculator{}
}

// FromOHLC computes MFE/MAE from an OHLC price window.
// Long: mfe = max(0, (maxHigh-entry)/entry), mae = |min(0, (minLow-entry)/entry)|.
// Short swaps sides: the favorable move comes from the lows, the adverse
// move from the highs. An empty window or non-positive entry price yields
// (0, 0); this operation never fails.
func (c *Calculator) FromOHLC(entryPrice float64, window *domain.PriceWindow, direction domain.Direction) domain.ExcursionResult {
	if window.Empty() || !usable(entryPrice) {
		return domain.ExcursionResult{}
	}

	maxHigh := window.Bars[0].High
	minLow := window.Bars[0].Low
	for _, bar := range window.Bars[1:] {
		if bar.High > maxHigh {
			maxHigh = bar.High
		}
		if bar.Low < minLow {
			minLow = bar.Low
		}
	}

	return fromExtremes(entryPrice, maxHigh, minLow, direction)
}

// FromPriceSeries computes MFE/MAE from a flat price series (each price
// acts as both high and low of its bar).
func (c *Calculator) FromPriceSeries(entryPrice float64, prices []float64, direction domain.Direction) domain.ExcursionResult {
	if len(prices) == 0 || !usable(entryPrice) {
		return domain.ExcursionResult{}
	}

	maxPrice := prices[0]
	minPrice := prices[0]
	for _, p := range prices[1:] {
		if p > maxPrice {
			maxPrice = p
		}
		if p < minPrice {
			minPrice = p
		}
	}

	return fromExtremes(entryPrice, maxPrice, minPrice, direction)
}

// FromTrades computes aggregate MFE/MAE over a list of closed trades as
// the mean of per-trade excursions. Trades with unusable entry prices are
// skipped. An empty or fully-skipped list yields (0, 0).
func (c *Calculator) FromTrades(trades []domain.ClosedTrade) domain.ExcursionResult {
	if len(trades) == 0 {
		return domain.ExcursionResult{}
	}

	var sumMFE, sumMAE float64
	counted := 0
	for _, t := range trades {
		if !usable(t.EntryPrice) {
			continue
		}
		r := fromExtremes(t.EntryPrice, t.HighPrice, t.LowPrice, t.Direction)
		sumMFE += r.MFE
		sumMAE += r.MAE
		counted++
	}
	if counted == 0 {
		return domain.ExcursionResult{}
	}

	return domain.ExcursionResult{
		MFE: round6(sumMFE / float64(counted)),
		MAE: round6(sumMAE / float64(counted)),
	}
}

// FromSingleReturn derives a degenerate excursion from one return value:
// a favorable return becomes the MFE, an adverse one the MAE. Used when
// no price history is available for a position.
//
// returnValue is the raw price-delta return, (price-entry)/entry, NOT
// direction-adjusted: shorts are negated here. Passing an already
// adjusted value such as Position.Return would adjust it twice.
func (c *Calculator) FromSingleReturn(returnValue float64, direction domain.Direction) domain.ExcursionResult {
	if math.IsNaN(returnValue) || math.IsInf(returnValue, 0) {
		return domain.ExcursionResult{}
	}

	adjusted := returnValue
	if direction == domain.DirectionShort {
		adjusted = -returnValue
	}

	if adjusted >= 0 {
		return domain.ExcursionResult{MFE: round6(adjusted)}
	}
	return domain.ExcursionResult{MAE: round6(-adjusted)}
}

// Validate cross-checks a current return against stored MFE/MAE and
// returns human-readable consistency violations. It is a diagnostic, not
// a gate: it never fails, and an empty slice means no violations.
//
// currentReturn follows the same convention as FromSingleReturn: the raw
// price-delta return, NOT direction-adjusted. Shorts are negated here.
func (c *Calculator) Validate(currentReturn, mfe, mae float64, direction domain.Direction, tolerance float64) []string {
	var violations []string

	if !direction.Valid() {
		violations = append(violations, fmt.Sprintf("unknown direction %q", string(direction)))
	}
	if mfe < 0 {
		violations = append(violations, fmt.Sprintf("MFE should not be negative (got %.6f)", mfe))
	}
	if mae < 0 {
		violations = append(violations, fmt.Sprintf("MAE should not be negative (got %.6f)", mae))
	}

	adjusted := currentReturn
	if direction == domain.DirectionShort {
		adjusted = -currentReturn
	}

	if mfe >= 0 && adjusted > mfe+tolerance {
		violations = append(violations, fmt.Sprintf(
			"current return exceeds MFE by %.2f%%", (adjusted-mfe)*100))
	}
	if mae >= 0 && adjusted < 0 && -adjusted > mae+tolerance {
		violations = append(violations, fmt.Sprintf(
			"current drawdown exceeds MAE by %.2f%%", (-adjusted-mae)*100))
	}

	return violations
}

// fromExtremes computes the direction-adjusted excursion pair from the
// highest and lowest prices seen during the hold.
func fromExtremes(entry, high, low float64, direction domain.Direction) domain.ExcursionResult {
	var mfe, mae float64
	if direction == domain.DirectionShort {
		mfe = math.Max(0, (entry-low)/entry)
		mae = math.Max(0, (high-entry)/entry)
	} else {
		mfe = math.Max(0, (high-entry)/entry)
		mae = math.Abs(math.Min(0, (low-entry)/entry))
	}
	return domain.ExcursionResult{MFE: round6(mfe), MAE: round6(mae)}
}

// usable reports whether a price can serve as an excursion base.
func usable(price float64) bool {
	return price > 0 && !math.IsNaN(price) && !math.IsInf(price, 0)
}

func round6(v float64) float64 {
	return math.Round(v*precision) / precision
}
