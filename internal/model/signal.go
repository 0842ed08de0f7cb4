package model

import (
	"math"
	"time"
)

// TradeDirection is the opportunity classification derived from the
// cross-timeframe ordering of closing prices.
type TradeDirection string

const (
	DirectionLong    TradeDirection = "long"
	DirectionShort   TradeDirection = "short"
	DirectionNeutral TradeDirection = "neutral"
)

// DivergenceFlags holds the per-indicator flags of one timeframe.
type DivergenceFlags struct {
	RSI  bool `json:"rsi"`
	MACD bool `json:"macd"`
}

// Count returns how many flags are raised (0, 1 or 2).
func (f DivergenceFlags) Count() int {
	n := 0
	if f.RSI {
		n++
	}
	if f.MACD {
		n++
	}
	return n
}

// DivergenceMatrix maps every timeframe to its flags: 8 flags per symbol.
type DivergenceMatrix map[Timeframe]DivergenceFlags

// Snapshot is the per-symbol output of the timeframe analysis.
type Snapshot struct {
	Symbol      string
	Divergences DivergenceMatrix
	Closes      map[Timeframe]float64
	FetchedAt   time.Time
}

// MarketCapTier is a company-size bracket with its grade multiplier.
type MarketCapTier struct {
	Label      string
	Multiplier float64
}

// AnalysisResult is the immutable outcome for one symbol in one batch.
// A failed analysis carries Err and NaN grades.
type AnalysisResult struct {
	Symbol        string
	RawGrade      float64
	WeightedGrade float64
	Direction     TradeDirection
	MarketCap     float64
	Tier          MarketCapTier
	Divergences   DivergenceMatrix
	Err           error
}

// Failed reports whether r is a failure marker.
func (r AnalysisResult) Failed() bool {
	return r.Err != nil || math.IsNaN(r.WeightedGrade)
}

// FailedResult builds the failure marker for symbol.
func FailedResult(symbol string, err error) AnalysisResult {
	return AnalysisResult{
		Symbol:        symbol,
		RawGrade:      math.NaN(),
		WeightedGrade: math.NaN(),
		MarketCap:     math.NaN(),
		Err:           err,
	}
}
