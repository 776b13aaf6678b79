package statmodel

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestDefault_Valid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("built-in defaults must validate: %v", err)
	}
}

func TestLoad_MissingFileIsAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if cfg != nil {
		t.Error("missing file must not return a config")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("missing file: got %v, want fs.ErrNotExist", err)
	}
}

func TestLoad_OverridesOnTopOfDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.yaml")
	content := []byte("risk:\n  min_risk_reward: 2.0\n  optimal_risk_reward: 3.0\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Risk.MinRiskReward != 2.0 {
		t.Errorf("override not applied: got %.2f", cfg.Risk.MinRiskReward)
	}
	// Fields not named in the file keep their defaults.
	if cfg.Risk.StopLossMax != Default().Risk.StopLossMax {
		t.Errorf("unrelated field lost its default: got %.4f", cfg.Risk.StopLossMax)
	}
	if cfg.Confidence.High != Default().Confidence.High {
		t.Errorf("unrelated section lost its default: got %.2f", cfg.Confidence.High)
	}
}

func TestLoad_InvalidOverrideRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.yaml")
	content := []byte("volatility:\n  low: 0.05\n  high: 0.01\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("inverted volatility thresholds must be rejected")
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.yaml")
	if err := os.WriteFile(path, []byte("risk: ["), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("malformed yaml must be rejected")
	}
}

func TestValidate_Failures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"confidence not decreasing", func(c *Config) { c.Confidence.Medium = 0.99 }},
		{"sample thresholds inverted", func(c *Config) { c.Confidence.PreferredSample = 10 }},
		{"zero volatility floor", func(c *Config) { c.Volatility.Low = 0 }},
		{"duration inverted", func(c *Config) { c.Duration.LongTerm = 5 }},
		{"optimal below min rr", func(c *Config) { c.Risk.OptimalRiskReward = 1.0 }},
		{"stop loss bounds inverted", func(c *Config) { c.Risk.StopLossMax = 0.001 }},
		{"take profit bounds inverted", func(c *Config) { c.Risk.TakeProfitMax = 0.001 }},
		{"kelly factor above one", func(c *Config) { c.Derivation.MinKellyFactor = 1.5 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected a validation error")
			}
		})
	}
}
