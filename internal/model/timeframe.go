package model

import "time"

// Timeframe identifies one of the fixed bar interval / lookback pairings.
type Timeframe string

const (
	Weekly    Timeframe = "weekly"
	NinetyMin Timeframe = "ninety_min"
	Hourly    Timeframe = "hourly"
	Minute15  Timeframe = "minute_15"
)

// TimeframeSpec describes how a timeframe is fetched and weighted.
type TimeframeSpec struct {
	Timeframe Timeframe
	Interval  string        // provider interval code: 1wk, 90m, 1h, 15m
	Lookback  time.Duration // history window ending now
	Weight    float64
}

// Timeframes lists every analysed timeframe, longest first. Weights sum to 1.0.
var Timeframes = []TimeframeSpec{
	{Timeframe: Weekly, Interval: "1wk", Lookback: 365 * 24 * time.Hour, Weight: 0.4},
	{Timeframe: NinetyMin, Interval: "90m", Lookback: 7 * 24 * time.Hour, Weight: 0.3},
	{Timeframe: Hourly, Interval: "1h", Lookback: 7 * 24 * time.Hour, Weight: 0.2},
	{Timeframe: Minute15, Interval: "15m", Lookback: 7 * 24 * time.Hour, Weight: 0.1},
}

// SpecFor returns the spec of tf.
func SpecFor(tf Timeframe) (TimeframeSpec, bool) {
	for _, s := range Timeframes {
		if s.Timeframe == tf {
			return s, true
		}
	}
	return TimeframeSpec{}, false
}
