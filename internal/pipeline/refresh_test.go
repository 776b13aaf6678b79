package pipeline

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"position-lab/internal/domain"
	"position-lab/internal/storage/memory"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func seedBars(t *testing.T, store *memory.PriceWindowStore, ticker string, start time.Time, closes []float64) {
	t.Helper()
	bars := make([]*domain.PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = &domain.PriceBar{
			Ticker: ticker,
			Date:   start.AddDate(0, 0, i),
			Open:   c,
			High:   c * 1.01,
			Low:    c * 0.99,
			Close:  c,
			Volume: 1_000_000,
		}
	}
	if err := store.InsertBulk(context.Background(), bars); err != nil {
		t.Fatalf("seed bars: %v", err)
	}
}

func TestRefreshRunner_Run(t *testing.T) {
	ctx := context.Background()
	positions := memory.NewPositionStore()
	windows := memory.NewPriceWindowStore()

	entry := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	exitTime := entry.AddDate(0, 0, 4)
	exitPrice := 104.0
	closed := &domain.Position{
		PositionID: "p1",
		Ticker:     "AAPL",
		Strategy:   domain.StrategyDescriptor{Type: "SMA", ShortWindow: 20, LongWindow: 50},
		EntryTime:  entry,
		EntryPrice: 100,
		Size:       1,
		Direction:  domain.DirectionLong,
		ExitTime:   &exitTime,
		ExitPrice:  &exitPrice,
		Status:     domain.StatusClosed,
	}
	open := &domain.Position{
		PositionID: "p2",
		Ticker:     "AAPL",
		Strategy:   domain.StrategyDescriptor{Type: "SMA", ShortWindow: 20, LongWindow: 50},
		EntryTime:  entry,
		EntryPrice: 100,
		Size:       2,
		Direction:  domain.DirectionLong,
		Status:     domain.StatusOpen,
	}
	for _, p := range []*domain.Position{closed, open} {
		if err := positions.Insert(ctx, p); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	seedBars(t, windows, "AAPL", entry, []float64{100, 102, 105, 101, 104})

	runner := NewRefreshRunner(RefreshRunnerOptions{
		PositionStore:    positions,
		PriceWindowStore: windows,
		Logger:           quietLogger(),
	})

	now := entry.AddDate(0, 0, 4)
	summary, err := runner.Run(ctx, now)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.Total != 2 || summary.Refreshed != 2 || summary.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.Changed != 2 {
		t.Errorf("both blank rows should report changes, got %d", summary.Changed)
	}

	got, err := positions.GetByID(ctx, "p1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.PnL != 4.00 {
		t.Errorf("closed PnL: got %.2f, want 4.00", got.PnL)
	}
	if got.Return != 0.04 {
		t.Errorf("closed Return: got %.4f, want 0.0400", got.Return)
	}
	// Window high is 105*1.01; the MFE came from OHLC, not closes.
	if got.MFE <= 0.05 {
		t.Errorf("closed MFE: got %.6f, want > 0.05", got.MFE)
	}
	if got.DaysHeld != 4 {
		t.Errorf("closed DaysHeld: got %d, want 4", got.DaysHeld)
	}
	if got.TradeQuality == "" {
		t.Error("quality grade missing after refresh")
	}

	got, err = positions.GetByID(ctx, "p2")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	// Open position: unrealized return from the last close.
	if got.Return != 0.04 {
		t.Errorf("open Return: got %.4f, want 0.0400", got.Return)
	}
	if got.PnL != 8.00 {
		t.Errorf("open PnL: got %.2f, want 8.00", got.PnL)
	}
	if got.Status != domain.StatusOpen {
		t.Errorf("open position flipped status: %q", got.Status)
	}
}

func TestRefreshRunner_Reproducible(t *testing.T) {
	ctx := context.Background()
	positions := memory.NewPositionStore()
	windows := memory.NewPriceWindowStore()

	entry := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	open := &domain.Position{
		PositionID: "p1",
		Ticker:     "AAPL",
		EntryTime:  entry,
		EntryPrice: 100,
		Size:       1,
		Direction:  domain.DirectionLong,
		Status:     domain.StatusOpen,
	}
	if err := positions.Insert(ctx, open); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	seedBars(t, windows, "AAPL", entry, []float64{100, 103, 99})

	runner := NewRefreshRunner(RefreshRunnerOptions{
		PositionStore:    positions,
		PriceWindowStore: windows,
		Logger:           quietLogger(),
	})

	now := entry.AddDate(0, 0, 2)
	if _, err := runner.Run(ctx, now); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	summary, err := runner.Run(ctx, now)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if summary.Changed != 0 {
		t.Errorf("second run with the same now should change nothing, got %d", summary.Changed)
	}
}

func TestRefreshRunner_MissingWindowStillRefreshes(t *testing.T) {
	ctx := context.Background()
	positions := memory.NewPositionStore()
	windows := memory.NewPriceWindowStore()

	entry := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	exitTime := entry.AddDate(0, 0, 3)
	exitPrice := 108.0
	pos := &domain.Position{
		PositionID: "p1",
		Ticker:     "NO_DATA",
		EntryTime:  entry,
		EntryPrice: 100,
		Size:       1,
		Direction:  domain.DirectionLong,
		ExitTime:   &exitTime,
		ExitPrice:  &exitPrice,
		Status:     domain.StatusClosed,
	}
	if err := positions.Insert(ctx, pos); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	runner := NewRefreshRunner(RefreshRunnerOptions{
		PositionStore:    positions,
		PriceWindowStore: windows,
		Logger:           quietLogger(),
	})

	summary, err := runner.Run(ctx, entry.AddDate(0, 0, 5))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Failed != 0 || summary.Refreshed != 1 {
		t.Fatalf("missing bars must not fail the row: %+v", summary)
	}

	// PnL still recomputed from the stored exit price.
	got, _ := positions.GetByID(ctx, "p1")
	if got.PnL != 8.00 {
		t.Errorf("PnL: got %.2f, want 8.00", got.PnL)
	}
}

func TestRefreshRunner_BadRowDoesNotAbortBatch(t *testing.T) {
	ctx := context.Background()
	positions := memory.NewPositionStore()
	windows := memory.NewPriceWindowStore()

	entry := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	good := &domain.Position{
		PositionID: "good",
		Ticker:     "AAPL",
		EntryTime:  entry,
		EntryPrice: 100,
		Size:       1,
		Direction:  domain.DirectionLong,
		Status:     domain.StatusOpen,
	}
	// Corrupt row: zero entry price. The refresh zeroes its realized
	// fields and the batch keeps going.
	bad := &domain.Position{
		PositionID: "bad",
		Ticker:     "AAPL",
		EntryTime:  entry,
		EntryPrice: 0,
		Size:       1,
		Direction:  domain.DirectionLong,
		Status:     domain.StatusOpen,
	}
	for _, p := range []*domain.Position{good, bad} {
		if err := positions.Insert(ctx, p); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	seedBars(t, windows, "AAPL", entry, []float64{100, 101})

	runner := NewRefreshRunner(RefreshRunnerOptions{
		PositionStore:    positions,
		PriceWindowStore: windows,
		Logger:           quietLogger(),
	})

	summary, err := runner.Run(ctx, entry.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Refreshed != 2 {
		t.Errorf("expected both rows processed, got %+v", summary)
	}

	got, _ := positions.GetByID(ctx, "bad")
	if got.PnL != 0 || got.Return != 0 {
		t.Errorf("corrupt row must keep zeroed realized fields, got (%.2f, %.4f)", got.PnL, got.Return)
	}
}
