package metrics

import (
	"math"
	"testing"
	"time"

	"position-lab/internal/domain"
)

func closedPosition() *domain.Position {
	exitTime := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	exitPrice := 447.70
	eff := 0.606

	return &domain.Position{
		PositionID:     "pos-1",
		Ticker:         "MSFT",
		EntryTime:      time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		EntryPrice:     434.53,
		Size:           1.0,
		Direction:      domain.DirectionLong,
		ExitTime:       &exitTime,
		ExitPrice:      &exitPrice,
		Status:         domain.StatusClosed,
		PnL:            13.17,
		Return:         0.0303,
		MFE:            0.05,
		MAE:            0.02,
		MFEMAERatio:    2.5,
		ExitEfficiency: &eff,
		DaysHeld:       14,
	}
}

func TestValidateConsistency_Clean(t *testing.T) {
	engine := NewEngine()

	report := engine.ValidateConsistency(closedPosition(), DefaultPnLTolerance, DefaultReturnTolerance)

	if !report.Valid {
		t.Fatalf("expected valid, got errors %v", report.Errors)
	}
	if len(report.Errors) != 0 {
		t.Errorf("unexpected errors: %v", report.Errors)
	}
	if len(report.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", report.Warnings)
	}
}

func TestValidateConsistency_PnLDrift(t *testing.T) {
	engine := NewEngine()
	pos := closedPosition()
	pos.PnL = 99.99

	report := engine.ValidateConsistency(pos, DefaultPnLTolerance, DefaultReturnTolerance)

	if report.Valid {
		t.Fatal("expected drift to invalidate the report")
	}
	if len(report.Errors) != 1 {
		t.Fatalf("expected 1 error, got %v", report.Errors)
	}
	if got := report.Corrected["pnl"]; got != 13.17 {
		t.Errorf("corrected pnl: got %.2f, want 13.17", got)
	}
}

func TestValidateConsistency_ReturnDrift(t *testing.T) {
	engine := NewEngine()
	pos := closedPosition()
	pos.Return = 0.5

	report := engine.ValidateConsistency(pos, DefaultPnLTolerance, DefaultReturnTolerance)

	if report.Valid {
		t.Fatal("expected drift to invalidate the report")
	}
	if got := report.Corrected["return"]; got != 0.0303 {
		t.Errorf("corrected return: got %.4f, want 0.0303", got)
	}
	// Return feeds efficiency, so the derived check should warn too.
	if len(report.Warnings) == 0 {
		t.Error("expected an efficiency warning from the drifted return")
	}
}

func TestValidateConsistency_RatioDriftIsWarning(t *testing.T) {
	engine := NewEngine()
	pos := closedPosition()
	pos.MFEMAERatio = 7.0

	report := engine.ValidateConsistency(pos, DefaultPnLTolerance, DefaultReturnTolerance)

	if !report.Valid {
		t.Fatal("ratio drift should not invalidate the report")
	}
	if len(report.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", report.Warnings)
	}
	if got := report.Corrected["mfe_mae_ratio"]; got != 2.5 {
		t.Errorf("corrected ratio: got %.4f, want 2.5", got)
	}
}

func TestValidateConsistency_InfiniteRatio(t *testing.T) {
	engine := NewEngine()
	pos := closedPosition()
	pos.MAE = 0
	pos.MFEMAERatio = math.Inf(1)

	report := engine.ValidateConsistency(pos, DefaultPnLTolerance, DefaultReturnTolerance)

	if !report.Valid || len(report.Warnings) != 0 {
		t.Errorf("stored +Inf ratio with mae=0 should pass, got %+v", report)
	}
}

func TestValidateConsistency_MissingEfficiency(t *testing.T) {
	engine := NewEngine()
	pos := closedPosition()
	pos.ExitEfficiency = nil

	report := engine.ValidateConsistency(pos, DefaultPnLTolerance, DefaultReturnTolerance)

	if !report.Valid {
		t.Fatal("missing efficiency should not invalidate the report")
	}
	if got := report.Corrected["exit_efficiency"]; got != 0.606 {
		t.Errorf("corrected efficiency: got %.4f, want 0.6060", got)
	}
}

func TestValidateConsistency_NilPosition(t *testing.T) {
	engine := NewEngine()

	report := engine.ValidateConsistency(nil, DefaultPnLTolerance, DefaultReturnTolerance)

	if !report.Valid {
		t.Fatal("nil position must stay valid with an advisory warning")
	}
	if len(report.Warnings) != 1 {
		t.Errorf("expected 1 advisory warning, got %v", report.Warnings)
	}
}

func TestValidateConsistency_OpenPosition(t *testing.T) {
	engine := NewEngine()
	pos := closedPosition()
	pos.ExitTime = nil
	pos.ExitPrice = nil
	pos.Status = domain.StatusOpen

	report := engine.ValidateConsistency(pos, DefaultPnLTolerance, DefaultReturnTolerance)

	if !report.Valid {
		t.Fatal("open position must stay valid")
	}
	if len(report.Warnings) == 0 {
		t.Error("expected an advisory warning for the open position")
	}
	// Derived checks still run: drift the ratio and expect a second warning.
	pos.MFEMAERatio = 9.0
	report = engine.ValidateConsistency(pos, DefaultPnLTolerance, DefaultReturnTolerance)
	if len(report.Warnings) != 2 {
		t.Errorf("expected advisory + ratio warnings, got %v", report.Warnings)
	}
}
