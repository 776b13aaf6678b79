// Package derive turns per-strategy return and duration samples into
// deterministic exit parameter sets: take-profit, stop-loss, trailing
// stop, holding period bounds and momentum/trend exit thresholds, each
// carrying a validity tier. Identical (samples, confidence) inputs always
// produce identical output; there is no randomness and no clock.
package derive

import (
	"errors"
	"fmt"
	"math"

	"position-lab/internal/domain"
	"position-lab/internal/statmodel"
)

// ErrInvalidConfidence is returned for a confidence level outside (0, 1].
var ErrInvalidConfidence = errors.New("confidence level must be in (0, 1]")

// Minimum sample counts for the derivation sub-steps.
const (
	minDistributionSamples = 10
	minThresholdSamples    = 5
)

// Volatility-regime scaling limits.
const (
	maxVolatilityScale = 1.5
	lowRegimeScale     = 0.8
)

// Trailing stop as a fraction of the reconciled stop loss: trails tighter
// than the hard stop.
const trailingStopFraction = 0.75

// Duration fallback defaults for a zero-volatility sample set.
const (
	fallbackMinDays = 5
	fallbackMaxDays = 90
)

// Engine derives exit parameter sets. It only reads the injected
// statistical model config, so a single instance is safe for concurrent
// use.
type Engine struct {
	cfg *statmodel.Config
}

// NewEngine creates a derivation engine. A nil config selects the
// built-in defaults.
func NewEngine(cfg *statmodel.Config) *Engine {
	if cfg == nil {
		cfg = statmodel.Default()
	}
	return &Engine{cfg: cfg}
}

// Derive produces a ParameterSet for the strategy described by samples.
// Source priority, first applicable wins:
//
//  1. direct aggregate MFE/MAE when both are positive,
//  2. the return distribution when at least 10 samples with both winners
//     and losers exist,
//  3. configured defaults.
//
// Volatility-regime scaling, duration bounds and risk/reward
// reconciliation then apply on top of the selected source.
func (e *Engine) Derive(samples domain.StrategySamples, confidence float64) (*domain.ParameterSet, error) {
	if confidence <= 0 || confidence > 1 || math.IsNaN(confidence) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfidence, confidence)
	}

	var takeProfit, stopLoss float64
	switch {
	case samples.MFE > 0 && samples.MAE > 0:
		takeProfit = samples.MFE * e.takeProfitFraction(confidence)
		stopLoss = samples.MAE * e.stopLossFraction(confidence)
	case distributionUsable(samples.Returns):
		takeProfit, stopLoss = e.fromDistribution(samples.Returns, confidence)
	default:
		takeProfit = e.cfg.Derivation.DefaultTakeProfit
		stopLoss = e.cfg.Derivation.DefaultStopLoss
	}

	stddev := sampleStddev(samples.Returns)
	takeProfit, stopLoss = e.scaleForVolatility(takeProfit, stopLoss, stddev)

	minDays, maxDays := e.holdingBounds(samples.Durations, stddev)
	takeProfit, stopLoss = e.reconcile(takeProfit, stopLoss)

	momentumExit, trendExit := e.exitThresholds(samples.Returns)

	trailingStop := roundPct(clamp(trailingStopFraction*stopLoss, e.cfg.Risk.StopLossMin, stopLoss))

	return &domain.ParameterSet{
		StrategyID:            samples.StrategyID,
		TakeProfitPct:         takeProfit,
		StopLossPct:           stopLoss,
		TrailingStopPct:       trailingStop,
		MinHoldingDays:        minDays,
		MaxHoldingDays:        maxDays,
		MomentumExitThreshold: momentumExit,
		TrendExitThreshold:    trendExit,
		ConfidenceLevel:       confidence,
		SampleSize:            len(samples.Returns),
		ValidityTier:          e.ValidityTier(len(samples.Returns), confidence),
	}, nil
}

// ValidityTier labels parameter confidence from sample size and
// statistical confidence. It is a pure function of its inputs.
func (e *Engine) ValidityTier(sampleSize int, confidence float64) string {
	switch {
	case sampleSize >= e.cfg.Confidence.PreferredSample && confidence >= e.cfg.Confidence.High:
		return domain.TierHigh
	case sampleSize >= e.cfg.Confidence.MinSampleCritical && confidence >= e.cfg.Confidence.Medium:
		return domain.TierMedium
	default:
		return domain.TierLow
	}
}

// distributionUsable requires at least 10 samples with both winners and
// losers; the Kelly fraction is undefined otherwise.
func distributionUsable(returns []float64) bool {
	if len(returns) < minDistributionSamples {
		return false
	}
	hasWin, hasLoss := false, false
	for _, r := range returns {
		if r > 0 {
			hasWin = true
		}
		if r < 0 {
			hasLoss = true
		}
	}
	return hasWin && hasLoss
}

// fromDistribution derives take-profit and stop-loss from the return
// distribution. The take profit is a confidence-scaled percentile of the
// winning returns shrunk by a Kelly-style fraction; the stop loss is the
// (1-confidence) tail of all returns widened by a safety margin.
func (e *Engine) fromDistribution(returns []float64, confidence float64) (takeProfit, stopLoss float64) {
	var wins, lossMagnitudes []float64
	for _, r := range returns {
		if r > 0 {
			wins = append(wins, r)
		} else if r < 0 {
			lossMagnitudes = append(lossMagnitudes, -r)
		}
	}

	winRate := float64(len(wins)) / float64(len(returns))
	avgWin := mean(wins)
	avgLoss := mean(lossMagnitudes)

	kelly := (winRate*avgWin - (1-winRate)*avgLoss) / avgWin
	kelly = clamp(kelly, e.cfg.Derivation.MinKellyFactor, 1.0)

	takeProfit = percentile(sortedCopy(wins), e.winPercentile(confidence)) * kelly
	stopLoss = math.Abs(percentile(sortedCopy(returns), 1-confidence)) * e.safetyMargin(confidence)
	return takeProfit, stopLoss
}

// scaleForVolatility widens both bounds in a high-volatility regime
// (capped at 1.5x) and tightens them in a low one.
func (e *Engine) scaleForVolatility(takeProfit, stopLoss, stddev float64) (float64, float64) {
	if stddev <= 0 {
		return takeProfit, stopLoss
	}
	switch {
	case stddev >= e.cfg.Volatility.High:
		factor := math.Min(maxVolatilityScale, stddev/e.cfg.Volatility.High)
		return takeProfit * factor, stopLoss * factor
	case stddev <= e.cfg.Volatility.Low:
		return takeProfit * lowRegimeScale, stopLoss * lowRegimeScale
	default:
		return takeProfit, stopLoss
	}
}

// holdingBounds derives the holding-period window: the 25th/95th
// percentiles of historical durations when samples exist, otherwise a
// volatility-inverse heuristic (more volatile means a shorter
// confirmation window).
func (e *Engine) holdingBounds(durations []float64, stddev float64) (minDays, maxDays int) {
	if len(durations) > 0 {
		sorted := sortedCopy(durations)
		minDays = int(math.Round(percentile(sorted, 0.25)))
		maxDays = int(math.Round(percentile(sorted, 0.95)))
		if minDays < 1 {
			minDays = 1
		}
		if maxDays < minDays {
			maxDays = minDays
		}
		return minDays, maxDays
	}

	if stddev <= 0 {
		return fallbackMinDays, fallbackMaxDays
	}

	scale := e.cfg.Volatility.Low / stddev
	minDays = clampInt(int(math.Round(21*scale)), 1, 21)
	maxDays = clampInt(int(math.Round(500*scale)), 30, 500)
	return minDays, maxDays
}

// reconcile enforces the risk/reward floor by widening the weaker side,
// clamps both bounds to their absolute ranges and rounds to two decimal
// percentage places. The floor is re-checked after rounding so the
// invariant holds on the emitted values.
func (e *Engine) reconcile(takeProfit, stopLoss float64) (float64, float64) {
	risk := e.cfg.Risk

	if stopLoss <= 0 {
		stopLoss = risk.StopLossMin
	}
	if takeProfit <= 0 {
		takeProfit = risk.TakeProfitMin
	}

	if takeProfit/stopLoss < risk.MinRiskReward {
		takeProfit = stopLoss * risk.MinRiskReward
	}

	stopLoss = clamp(stopLoss, risk.StopLossMin, risk.StopLossMax)
	takeProfit = clamp(takeProfit, risk.TakeProfitMin, risk.TakeProfitMax)

	// Clamping the take profit down can break the floor again; shrink the
	// stop loss to restore it.
	if takeProfit/stopLoss < risk.MinRiskReward {
		stopLoss = clamp(takeProfit/risk.MinRiskReward, risk.StopLossMin, risk.StopLossMax)
	}

	takeProfit = roundPct(takeProfit)
	stopLoss = roundPct(stopLoss)

	if takeProfit/stopLoss < risk.MinRiskReward {
		stopLoss = math.Max(risk.StopLossMin, floorPct(takeProfit/risk.MinRiskReward))
	}

	return takeProfit, stopLoss
}

func (e *Engine) takeProfitFraction(confidence float64) float64 {
	if confidence >= e.cfg.Confidence.High {
		return e.cfg.Derivation.TakeProfitFractionHigh
	}
	return e.cfg.Derivation.TakeProfitFractionLow
}

func (e *Engine) stopLossFraction(confidence float64) float64 {
	if confidence >= e.cfg.Confidence.High {
		return e.cfg.Derivation.StopLossFractionHigh
	}
	return e.cfg.Derivation.StopLossFractionLow
}

func (e *Engine) safetyMargin(confidence float64) float64 {
	switch {
	case confidence >= e.cfg.Confidence.High:
		return e.cfg.Derivation.SafetyMarginHigh
	case confidence >= e.cfg.Confidence.Medium:
		return e.cfg.Derivation.SafetyMarginMedium
	default:
		return e.cfg.Derivation.SafetyMarginLow
	}
}

// winPercentile picks the winning-return percentile used for the take
// profit, scaled by confidence: 80th at high, 75th at medium, 70th below.
func (e *Engine) winPercentile(confidence float64) float64 {
	switch {
	case confidence >= e.cfg.Confidence.High:
		return 0.80
	case confidence >= e.cfg.Confidence.Medium:
		return 0.75
	default:
		return 0.70
	}
}
