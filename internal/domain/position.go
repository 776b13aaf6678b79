package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Direction of a position.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionLong || d == DirectionShort
}

// Position status constants.
const (
	StatusOpen   = "OPEN"
	StatusClosed = "CLOSED"
)

// Excursion status constants.
const (
	ExcursionFavorable = "FAVORABLE"
	ExcursionAdverse   = "ADVERSE"
	ExcursionNeutral   = "NEUTRAL"
)

// Trade quality grades. Exactly one grade applies to any
// (mfe, mae, finalReturn) triple.
const (
	QualityPoorSetup       = "Poor Setup - High Risk, Low Reward"
	QualityFailedToCapture = "Failed to Capture Upside"
	QualityExcellent       = "Excellent"
	QualityGood            = "Good"
	QualityPoor            = "Poor"
)

// StrategyDescriptor identifies the strategy that opened a position.
type StrategyDescriptor struct {
	Type        string // e.g. "SMA_CROSS", "MOMENTUM"
	ShortWindow int    // short lookback in bars
	LongWindow  int    // long lookback in bars
}

// ID returns the strategy identifier including window parameters,
// e.g. "SMA_CROSS_10_50". Used to group positions for derivation.
func (s StrategyDescriptor) ID() string {
	return fmt.Sprintf("%s_%d_%d", s.Type, s.ShortWindow, s.LongWindow)
}

// Position represents a tracked trading position with its computed metrics.
// Invariant: Status == CLOSED iff both ExitTime and ExitPrice are set.
type Position struct {
	PositionID string
	Ticker     string
	Strategy   StrategyDescriptor

	// Entry
	EntryTime  time.Time
	EntryPrice float64
	Size       float64
	Direction  Direction

	// Exit (nil while the position is open)
	ExitTime  *time.Time
	ExitPrice *float64

	Status string

	// Computed fields. Maintained by the metrics engine with the
	// standardized precision contract: PnL 2dp, Return 4dp, MFE/MAE 6dp,
	// Ratio 4dp, Efficiency 4dp, DaysHeld integer.
	PnL             float64
	Return          float64
	MFE             float64
	MAE             float64
	MFEMAERatio     float64
	ExitEfficiency  *float64 // nil when MFE <= 0
	DaysHeld        int
	ExcursionStatus string
	TradeQuality    string
}

// NewPosition creates an open position with a generated identifier.
func NewPosition(ticker string, strategy StrategyDescriptor, entryTime time.Time, entryPrice, size float64, direction Direction) *Position {
	return &Position{
		PositionID: uuid.NewString(),
		Ticker:     ticker,
		Strategy:   strategy,
		EntryTime:  entryTime,
		EntryPrice: entryPrice,
		Size:       size,
		Direction:  direction,
		Status:     StatusOpen,
	}
}

// Closed reports whether both exit fields are present.
func (p *Position) Closed() bool {
	return p.ExitTime != nil && p.ExitPrice != nil
}

// ClosedTrade is a minimal closed-trade row used for aggregate excursion
// computation. Replaces column-map probing of heterogeneous trade rows
// with an explicit type.
type ClosedTrade struct {
	EntryPrice float64
	HighPrice  float64 // highest price seen during the hold
	LowPrice   float64 // lowest price seen during the hold
	Direction  Direction
}
