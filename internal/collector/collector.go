package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"DivergenceScanner/internal/calculator"
	"DivergenceScanner/internal/model"
)

// Collector fetches every timeframe of a symbol and runs divergence
// detection on each one.
type Collector struct {
	Fetcher    Fetcher
	Timeframes []model.TimeframeSpec
}

// NewCollector creates a Collector over the standard timeframes.
func NewCollector(fetcher Fetcher) *Collector {
	return &Collector{Fetcher: fetcher, Timeframes: model.Timeframes}
}

// Collect fetches bars for all timeframes, computes indicators and returns
// the divergence matrix with the latest close of each timeframe. Fetch
// failures are returned as-is (wrapped) and abort the symbol.
func (c *Collector) Collect(ctx context.Context, symbol string) (*model.Snapshot, error) {
	snap := &model.Snapshot{
		Symbol:      symbol,
		Divergences: make(model.DivergenceMatrix, len(c.Timeframes)),
		Closes:      make(map[model.Timeframe]float64, len(c.Timeframes)),
		FetchedAt:   time.Now(),
	}

	for _, tf := range c.Timeframes {
		bars, err := c.Fetcher.FetchBars(ctx, symbol, tf)
		if err != nil {
			return nil, fmt.Errorf("fetch %s bars: %w", tf.Timeframe, err)
		}
		if len(bars) == 0 {
			return nil, fmt.Errorf("fetch %s bars: %w", tf.Timeframe, ErrNoData)
		}

		closes := model.Closes(bars)
		ind := calculator.ComputeIndicators(bars)
		flags := model.DivergenceFlags{
			RSI:  calculator.HasDivergence(closes, ind.RSI),
			MACD: calculator.HasDivergence(closes, ind.MACD),
		}
		snap.Divergences[tf.Timeframe] = flags
		snap.Closes[tf.Timeframe] = closes[len(closes)-1]

		log.Debug().
			Str("symbol", symbol).
			Str("timeframe", string(tf.Timeframe)).
			Int("bars", len(bars)).
			Bool("rsi_div", flags.RSI).
			Bool("macd_div", flags.MACD).
			Msg("timeframe analysed")
	}
	return snap, nil
}
