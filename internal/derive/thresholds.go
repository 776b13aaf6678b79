package derive

import "math"

// Rolling window for momentum deviation.
const momentumWindow = 3

// Slope changes below this are float residue from subtraction of nearly
// equal returns, not a real change in trend.
const slopeEpsilon = 1e-12

// exitThresholds derives the momentum and trend exit thresholds from
// rolling-window statistics over the return samples. With fewer than five
// samples the fixed defaults apply.
//
// Momentum: median absolute deviation of each return from the rolling
// mean of the preceding window, scaled by the mean absolute return.
// Trend: 70th percentile of absolute slope changes in the return series.
func (e *Engine) exitThresholds(returns []float64) (momentumExit, trendExit float64) {
	momentumExit = e.cfg.Derivation.DefaultMomentumExit
	trendExit = e.cfg.Derivation.DefaultTrendExit

	if len(returns) < minThresholdSamples {
		return momentumExit, trendExit
	}

	// Round before the positivity check: a sub-rounding-scale value
	// (float residue from a near-constant series) would otherwise pass
	// the check and then collapse to a zero threshold.
	if m := roundPct(momentumDeviation(returns)); m > 0 {
		momentumExit = m
	}
	if t := roundPct(trendSlopeChange(returns)); t > 0 {
		trendExit = t
	}
	return momentumExit, trendExit
}

// momentumDeviation is median(|r_i - rollingMean|) * (1 + mean(|r|)).
func momentumDeviation(returns []float64) float64 {
	var deviations []float64
	for i := momentumWindow; i < len(returns); i++ {
		rolling := mean(returns[i-momentumWindow : i])
		deviations = append(deviations, math.Abs(returns[i]-rolling))
	}
	if len(deviations) == 0 {
		return 0
	}

	absSum := 0.0
	for _, r := range returns {
		absSum += math.Abs(r)
	}
	meanAbs := absSum / float64(len(returns))

	return median(deviations) * (1 + meanAbs)
}

// trendSlopeChange is the 70th percentile of |slope_i - slope_{i-1}|
// where slope_i = r_i - r_{i-1}.
func trendSlopeChange(returns []float64) float64 {
	if len(returns) < 3 {
		return 0
	}

	slopes := make([]float64, 0, len(returns)-1)
	for i := 1; i < len(returns); i++ {
		slopes = append(slopes, returns[i]-returns[i-1])
	}

	changes := make([]float64, 0, len(slopes)-1)
	for i := 1; i < len(slopes); i++ {
		c := math.Abs(slopes[i] - slopes[i-1])
		if c < slopeEpsilon {
			c = 0
		}
		changes = append(changes, c)
	}

	return percentile(sortedCopy(changes), 0.70)
}
