package calculator

import "github.com/markcheno/go-talib"

// MACD periods.
const (
	MACDFast   = 12
	MACDSlow   = 26
	MACDSignal = 9
)

// MACDResult holds the three MACD lines. Only Line feeds divergence detection.
type MACDResult struct {
	Line   []float64
	Signal []float64
	Hist   []float64
}

// macdWarmup is the index of the first defined value of every MACD line.
func macdWarmup(slow, signal int) int {
	return (slow - 1) + (signal - 1)
}

// CalculateMACD computes the MACD lines over closes. Entries before the
// warm-up window are NaN; a short series yields all-NaN lines.
func CalculateMACD(closes []float64, fast, slow, signal int) MACDResult {
	res := MACDResult{
		Line:   nanSeries(len(closes)),
		Signal: nanSeries(len(closes)),
		Hist:   nanSeries(len(closes)),
	}
	warmup := macdWarmup(slow, signal)
	if fast <= 0 || slow <= fast || signal <= 0 || len(closes) <= warmup {
		return res
	}
	line, sig, hist := talib.Macd(closes, fast, slow, signal)
	for i := warmup; i < len(closes); i++ {
		res.Line[i] = finiteOrNaN(line[i])
		res.Signal[i] = finiteOrNaN(sig[i])
		res.Hist[i] = finiteOrNaN(hist[i])
	}
	return res
}
