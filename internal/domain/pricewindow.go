package domain

import "time"

// PriceBar is one OHLCV bar.
type PriceBar struct {
	Ticker string
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// PriceWindow is an ordered sequence of bars for one ticker over an
// interval. Immutable input owned by the caller; the engines never
// modify it.
type PriceWindow struct {
	Ticker string
	Bars   []PriceBar
}

// Empty reports whether the window has no bars.
func (w *PriceWindow) Empty() bool {
	return w == nil || len(w.Bars) == 0
}

// ExcursionResult holds direction-adjusted MFE/MAE as fractions of the
// entry price. Both values are >= 0.
type ExcursionResult struct {
	MFE float64
	MAE float64
}
