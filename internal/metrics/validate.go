package metrics

import (
	"fmt"
	"math"

	"position-lab/internal/domain"
)

// Default tolerances for consistency validation.
const (
	DefaultPnLTolerance    = 0.01
	DefaultReturnTolerance = 0.0001
)

// ConsistencyReport is the structured result of validating a stored
// position against the metric formulas. PnL/Return drift is reported as
// an error; Ratio/Efficiency drift, being derived diagnostics, only as a
// warning. Missing critical fields leave Valid true with an advisory
// warning: validation could not be performed, which is not a failure.
type ConsistencyReport struct {
	Valid     bool
	Errors    []string
	Warnings  []string
	Corrected map[string]float64
}

// ValidateConsistency recomputes PnL, Return, Ratio and ExitEfficiency
// from the stored entry/exit/size/direction and reports any drift. It
// never fails; the caller decides whether to auto-correct or surface the
// report.
func (e *Engine) ValidateConsistency(pos *domain.Position, pnlTolerance, returnTolerance float64) ConsistencyReport {
	report := ConsistencyReport{
		Valid:     true,
		Corrected: make(map[string]float64),
	}

	if pos == nil {
		report.Warnings = append(report.Warnings, "no position supplied; validation not performed")
		return report
	}

	if !pos.Closed() {
		report.Warnings = append(report.Warnings, "position is open; realized PnL/Return cannot be validated")
		e.validateDerived(pos, &report)
		return report
	}

	pnl, ret, err := e.PnLAndReturn(pos.EntryPrice, *pos.ExitPrice, pos.Size, pos.Direction)
	if err != nil {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("cannot validate PnL/Return: %v", err))
		e.validateDerived(pos, &report)
		return report
	}

	if math.Abs(pos.PnL-pnl) > pnlTolerance {
		report.Valid = false
		report.Errors = append(report.Errors,
			fmt.Sprintf("PnL mismatch: stored %.2f, computed %.2f", pos.PnL, pnl))
		report.Corrected["pnl"] = pnl
	}
	if math.Abs(pos.Return-ret) > returnTolerance {
		report.Valid = false
		report.Errors = append(report.Errors,
			fmt.Sprintf("Return mismatch: stored %.4f, computed %.4f", pos.Return, ret))
		report.Corrected["return"] = ret
	}

	e.validateDerived(pos, &report)
	return report
}

// validateDerived checks the ratio and efficiency fields. Mismatches are
// warnings, not errors: both are derived diagnostics.
func (e *Engine) validateDerived(pos *domain.Position, report *ConsistencyReport) {
	ratio := e.MFEMAERatio(pos.MFE, pos.MAE)
	if !ratioEqual(pos.MFEMAERatio, ratio) {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("MFE/MAE ratio mismatch: stored %.4f, computed %.4f", pos.MFEMAERatio, ratio))
		if !math.IsInf(ratio, 1) {
			report.Corrected["mfe_mae_ratio"] = ratio
		}
	}

	eff, ok := e.ExitEfficiency(pos.Return, pos.MFE)
	switch {
	case !ok && pos.ExitEfficiency != nil:
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("exit efficiency stored as %.4f but MFE is %.6f; no favorable excursion to measure against",
				*pos.ExitEfficiency, pos.MFE))
	case ok && pos.ExitEfficiency == nil:
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("exit efficiency missing; computed %.4f", eff))
		report.Corrected["exit_efficiency"] = eff
	case ok && math.Abs(*pos.ExitEfficiency-eff) > effortCompareEpsilon:
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("exit efficiency mismatch: stored %.4f, computed %.4f", *pos.ExitEfficiency, eff))
		report.Corrected["exit_efficiency"] = eff
	}
}

// ratioEqual compares ratios treating +Inf as equal to +Inf.
func ratioEqual(a, b float64) bool {
	if math.IsInf(a, 1) && math.IsInf(b, 1) {
		return true
	}
	return math.Abs(a-b) <= ratioCompareEpsilon
}
