package metrics

import (
	"fmt"
	"math"
	"time"

	"position-lab/internal/domain"
)

// RefreshInput carries the optional externally-computed inputs for a
// refresh. Nil fields mean "keep the stored value".
type RefreshInput struct {
	MFE *float64
	MAE *float64

	// CurrentExcursion is the direction-adjusted unrealized return of an
	// open position, supplied by the caller from live prices.
	CurrentExcursion *float64
}

// RefreshResult is the outcome of a comprehensive refresh.
type RefreshResult struct {
	Position   domain.Position
	Changes    []string
	Validation ConsistencyReport
}

// Refresh runs the deterministic refresh pipeline on a position copy:
// recompute PnL/Return, merge supplied MFE/MAE, recompute ratio,
// efficiency, days held, excursion status and quality grade, apply
// standardized rounding to every numeric field and re-validate.
//
// The pipeline is idempotent: re-running with identical inputs and the
// same now yields an identical position (rounding is stable, so repeated
// refreshes cannot drift). now is passed in rather than read from a
// clock so refreshes are reproducible.
func (e *Engine) Refresh(pos domain.Position, input RefreshInput, now time.Time) RefreshResult {
	before := pos

	// PnL and Return.
	switch {
	case pos.Closed():
		pnl, ret, err := e.PnLAndReturn(pos.EntryPrice, *pos.ExitPrice, pos.Size, pos.Direction)
		if err == nil {
			pos.PnL = pnl
			pos.Return = ret
		} else {
			// Malformed row: zero the realized fields and let the
			// validation report carry the detail.
			pos.PnL = 0
			pos.Return = 0
		}
	case input.CurrentExcursion != nil && finite(*input.CurrentExcursion):
		pos.Return = round4(*input.CurrentExcursion)
		pos.PnL = round2(pos.Return * pos.EntryPrice * pos.Size)
	default:
		pos.PnL = round2(pos.PnL)
		pos.Return = round4(pos.Return)
	}

	// Merge supplied excursions.
	if input.MFE != nil {
		pos.MFE = round6(math.Max(0, *input.MFE))
	} else {
		pos.MFE = round6(pos.MFE)
	}
	if input.MAE != nil {
		pos.MAE = round6(math.Max(0, *input.MAE))
	} else {
		pos.MAE = round6(pos.MAE)
	}

	// Derived metrics.
	pos.MFEMAERatio = e.MFEMAERatio(pos.MFE, pos.MAE)

	if eff, ok := e.ExitEfficiency(pos.Return, pos.MFE); ok {
		pos.ExitEfficiency = &eff
	} else {
		pos.ExitEfficiency = nil
	}

	if pos.Closed() {
		pos.DaysHeld = e.DaysSinceEntry(pos.EntryTime, *pos.ExitTime)
		pos.Status = domain.StatusClosed
	} else {
		pos.DaysHeld = e.DaysSinceEntry(pos.EntryTime, now)
		pos.Status = domain.StatusOpen
	}

	pos.ExcursionStatus = excursionStatus(pos.Return)

	finalReturn := finalReturnFor(&pos, input.CurrentExcursion)
	pos.TradeQuality = e.TradeQuality(pos.MFE, pos.MAE, finalReturn)

	return RefreshResult{
		Position:   pos,
		Changes:    diffPositions(&before, &pos),
		Validation: e.ValidateConsistency(&pos, DefaultPnLTolerance, DefaultReturnTolerance),
	}
}

// finalReturnFor picks the return used for quality grading: the realized
// return for closed positions, the supplied current excursion for open
// ones, nil otherwise.
func finalReturnFor(pos *domain.Position, currentExcursion *float64) *float64 {
	if pos.Closed() {
		r := pos.Return
		return &r
	}
	if currentExcursion != nil {
		r := pos.Return
		return &r
	}
	return nil
}

// diffPositions produces human-readable change strings for every field
// the refresh touched.
func diffPositions(before, after *domain.Position) []string {
	var changes []string

	numeric := []struct {
		name     string
		old, new float64
		format   string
	}{
		{"PnL", before.PnL, after.PnL, "%.2f"},
		{"Return", before.Return, after.Return, "%.4f"},
		{"MFE", before.MFE, after.MFE, "%.6f"},
		{"MAE", before.MAE, after.MAE, "%.6f"},
		{"MFEMAERatio", before.MFEMAERatio, after.MFEMAERatio, "%.4f"},
	}
	for _, f := range numeric {
		if f.old != f.new && !(math.IsInf(f.old, 1) && math.IsInf(f.new, 1)) {
			changes = append(changes, fmt.Sprintf("%s: "+f.format+" -> "+f.format, f.name, f.old, f.new))
		}
	}

	if !effPtrEqual(before.ExitEfficiency, after.ExitEfficiency) {
		changes = append(changes, fmt.Sprintf("ExitEfficiency: %s -> %s",
			effString(before.ExitEfficiency), effString(after.ExitEfficiency)))
	}
	if before.DaysHeld != after.DaysHeld {
		changes = append(changes, fmt.Sprintf("DaysHeld: %d -> %d", before.DaysHeld, after.DaysHeld))
	}
	if before.Status != after.Status {
		changes = append(changes, fmt.Sprintf("Status: %s -> %s", before.Status, after.Status))
	}
	if before.ExcursionStatus != after.ExcursionStatus {
		changes = append(changes, fmt.Sprintf("ExcursionStatus: %s -> %s", before.ExcursionStatus, after.ExcursionStatus))
	}
	if before.TradeQuality != after.TradeQuality {
		changes = append(changes, fmt.Sprintf("TradeQuality: %s -> %s", before.TradeQuality, after.TradeQuality))
	}

	return changes
}

func effPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func effString(v *float64) string {
	if v == nil {
		return "none"
	}
	return fmt.Sprintf("%.4f", *v)
}
