// Package statmodel holds the read-only statistical reference tables
// consumed by the metrics and derivation engines. A Config is loaded once
// per process and never mutated afterwards, so unsynchronized concurrent
// reads are safe.
package statmodel

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ConfidenceBounds defines the confidence levels and sample size
// thresholds used for validity tiering.
type ConfidenceBounds struct {
	High              float64 `yaml:"high"`
	Medium            float64 `yaml:"medium"`
	Low               float64 `yaml:"low"`
	MinSampleCritical int     `yaml:"min_sample_critical"`
	PreferredSample   int     `yaml:"preferred_sample"`
}

// VolatilityThresholds split return stddev into low/normal/high regimes.
type VolatilityThresholds struct {
	Low  float64 `yaml:"low"`
	High float64 `yaml:"high"`
}

// DurationThresholds classify holding periods, in days.
type DurationThresholds struct {
	ShortTerm int `yaml:"short_term"`
	LongTerm  int `yaml:"long_term"`
}

// RiskBounds constrain derived exit parameters.
type RiskBounds struct {
	MinRiskReward     float64 `yaml:"min_risk_reward"`
	OptimalRiskReward float64 `yaml:"optimal_risk_reward"`
	StopLossMin       float64 `yaml:"stop_loss_min"`
	StopLossMax       float64 `yaml:"stop_loss_max"`
	TakeProfitMin     float64 `yaml:"take_profit_min"`
	TakeProfitMax     float64 `yaml:"take_profit_max"`
}

// DerivationDefaults holds the fixed fractions, margins and fallbacks the
// parameter derivation uses where samples give no signal.
type DerivationDefaults struct {
	// Fractions of aggregate MFE/MAE used for direct derivation.
	TakeProfitFractionLow  float64 `yaml:"take_profit_fraction_low"`
	TakeProfitFractionHigh float64 `yaml:"take_profit_fraction_high"`
	StopLossFractionLow    float64 `yaml:"stop_loss_fraction_low"`
	StopLossFractionHigh   float64 `yaml:"stop_loss_fraction_high"`

	// Kelly clamp floor for the distribution-based take profit.
	MinKellyFactor float64 `yaml:"min_kelly_factor"`

	// Safety margins applied to the tail-percentile stop loss, by tier.
	SafetyMarginHigh   float64 `yaml:"safety_margin_high"`
	SafetyMarginMedium float64 `yaml:"safety_margin_medium"`
	SafetyMarginLow    float64 `yaml:"safety_margin_low"`

	// Fallbacks when neither excursions nor return samples are usable.
	DefaultTakeProfit float64 `yaml:"default_take_profit"`
	DefaultStopLoss   float64 `yaml:"default_stop_loss"`

	// Fixed exit thresholds when fewer than five samples exist.
	DefaultMomentumExit float64 `yaml:"default_momentum_exit"`
	DefaultTrendExit    float64 `yaml:"default_trend_exit"`
}

// Config is the full statistical model configuration.
type Config struct {
	Confidence ConfidenceBounds     `yaml:"confidence"`
	Volatility VolatilityThresholds `yaml:"volatility"`
	Duration   DurationThresholds   `yaml:"duration"`
	Risk       RiskBounds           `yaml:"risk"`
	Derivation DerivationDefaults   `yaml:"derivation"`
}

// Default returns the built-in reference tables.
func Default() *Config {
	return &Config{
		Confidence: ConfidenceBounds{
			High:              0.95,
			Medium:            0.80,
			Low:               0.60,
			MinSampleCritical: 30,
			PreferredSample:   100,
		},
		Volatility: VolatilityThresholds{
			Low:  0.01,
			High: 0.03,
		},
		Duration: DurationThresholds{
			ShortTerm: 21,
			LongTerm:  252,
		},
		Risk: RiskBounds{
			MinRiskReward:     1.5,
			OptimalRiskReward: 2.0,
			StopLossMin:       0.005,
			StopLossMax:       0.25,
			TakeProfitMin:     0.01,
			TakeProfitMax:     0.50,
		},
		Derivation: DerivationDefaults{
			TakeProfitFractionLow:  0.70,
			TakeProfitFractionHigh: 0.75,
			StopLossFractionLow:    0.90,
			StopLossFractionHigh:   0.95,
			MinKellyFactor:         0.25,
			SafetyMarginHigh:       1.05,
			SafetyMarginMedium:     1.03,
			SafetyMarginLow:        1.02,
			DefaultTakeProfit:      0.10,
			DefaultStopLoss:        0.05,
			DefaultMomentumExit:    0.02,
			DefaultTrendExit:       0.015,
		},
	}
}

// Load reads a YAML override file on top of the defaults. The path must
// exist: callers pass it deliberately, and a typo'd path must not fall
// back to the defaults silently.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read statmodel config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse statmodel config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks internal consistency of the reference tables.
func (c *Config) Validate() error {
	if c.Confidence.High <= c.Confidence.Medium || c.Confidence.Medium <= c.Confidence.Low {
		return fmt.Errorf("confidence bounds must be strictly decreasing: high=%.2f medium=%.2f low=%.2f",
			c.Confidence.High, c.Confidence.Medium, c.Confidence.Low)
	}
	if c.Confidence.MinSampleCritical <= 0 || c.Confidence.PreferredSample < c.Confidence.MinSampleCritical {
		return fmt.Errorf("sample thresholds invalid: critical=%d preferred=%d",
			c.Confidence.MinSampleCritical, c.Confidence.PreferredSample)
	}
	if c.Volatility.Low <= 0 || c.Volatility.High <= c.Volatility.Low {
		return fmt.Errorf("volatility thresholds invalid: low=%.4f high=%.4f",
			c.Volatility.Low, c.Volatility.High)
	}
	if c.Duration.ShortTerm <= 0 || c.Duration.LongTerm <= c.Duration.ShortTerm {
		return fmt.Errorf("duration thresholds invalid: short=%d long=%d",
			c.Duration.ShortTerm, c.Duration.LongTerm)
	}
	if c.Risk.MinRiskReward <= 0 || c.Risk.OptimalRiskReward < c.Risk.MinRiskReward {
		return fmt.Errorf("risk/reward bounds invalid: min=%.2f optimal=%.2f",
			c.Risk.MinRiskReward, c.Risk.OptimalRiskReward)
	}
	if c.Risk.StopLossMin <= 0 || c.Risk.StopLossMax <= c.Risk.StopLossMin {
		return fmt.Errorf("stop loss bounds invalid: [%.4f, %.4f]", c.Risk.StopLossMin, c.Risk.StopLossMax)
	}
	if c.Risk.TakeProfitMin <= 0 || c.Risk.TakeProfitMax <= c.Risk.TakeProfitMin {
		return fmt.Errorf("take profit bounds invalid: [%.4f, %.4f]", c.Risk.TakeProfitMin, c.Risk.TakeProfitMax)
	}
	if c.Derivation.MinKellyFactor <= 0 || c.Derivation.MinKellyFactor > 1 {
		return fmt.Errorf("min kelly factor invalid: %.4f", c.Derivation.MinKellyFactor)
	}
	return nil
}
