package domain

// Validity tiers for derived parameter sets. Downstream consumers must
// treat LOW as non-authoritative.
const (
	TierHigh   = "HIGH"
	TierMedium = "MEDIUM"
	TierLow    = "LOW"
)

// ParameterSet holds derived exit parameters for one strategy.
// Created fresh per analysis run; never mutated in place.
// TakeProfitPct, StopLossPct and TrailingStopPct are fractions of entry
// price (0.05 = 5%), rounded to two decimal percentage places.
type ParameterSet struct {
	StrategyID string

	TakeProfitPct   float64
	StopLossPct     float64
	TrailingStopPct float64

	MinHoldingDays int
	MaxHoldingDays int

	MomentumExitThreshold float64
	TrendExitThreshold    float64

	ConfidenceLevel float64
	SampleSize      int
	ValidityTier    string
}

// StrategySamples carries the historical inputs a derivation consumes.
// Returns are per-trade fractional returns, Durations are holding periods
// in days. MFE/MAE are aggregate excursions; zero means "not available".
type StrategySamples struct {
	StrategyID string
	Returns    []float64
	Durations  []float64
	MFE        float64
	MAE        float64
	MeanReturn float64
}
