package calculator

import (
	"math"

	"github.com/markcheno/go-talib"
)

// RSIPeriod is the lookback of the relative-strength oscillator.
const RSIPeriod = 14

// CalculateRSI computes the Wilder-smoothed RSI series over closes.
// The first period entries are NaN; a series shorter than period+1 is all NaN.
func CalculateRSI(closes []float64, period int) []float64 {
	out := nanSeries(len(closes))
	if period < 2 || len(closes) < period+1 {
		return out
	}
	rsi := talib.Rsi(closes, period)
	for i := period; i < len(rsi) && i < len(out); i++ {
		out[i] = finiteOrNaN(rsi[i])
	}
	return out
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func finiteOrNaN(v float64) float64 {
	if math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}

// Defined reports whether v holds a usable indicator value.
func Defined(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
