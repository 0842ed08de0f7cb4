package model

import "time"

// OHLCV represents a single candlestick bar.
type OHLCV struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Closes extracts the close prices of bars in order.
func Closes(bars []OHLCV) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}

// IndicatorSet holds the oscillator series derived from one bar series.
// Both slices are aligned index-for-index with the bars; entries inside the
// warm-up window are NaN.
type IndicatorSet struct {
	RSI  []float64
	MACD []float64
}
