package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"DivergenceScanner/internal/model"
)

// AlpacaFetcher reads bars from Alpaca market data. Alpaca has no
// fundamentals, so market capitalisation comes from Fundamentals.
type AlpacaFetcher struct {
	Client       *marketdata.Client
	Fundamentals Fetcher
	Now          func() time.Time
}

// NewAlpacaFetcher creates a fetcher from API credentials.
func NewAlpacaFetcher(apiKey, apiSecret string, fundamentals Fetcher) *AlpacaFetcher {
	return &AlpacaFetcher{
		Client: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
		}),
		Fundamentals: fundamentals,
		Now:          time.Now,
	}
}

func (f *AlpacaFetcher) Name() string { return "alpaca" }

// alpacaFrame is the Alpaca request for one interval. Alpaca minute bars
// stop at 59, so longer intervals set Width and are aggregated locally.
type alpacaFrame struct {
	TimeFrame marketdata.TimeFrame
	Width     time.Duration
}

// alpacaTimeFrame maps a provider interval code to an Alpaca timeframe.
func alpacaTimeFrame(interval string) (alpacaFrame, error) {
	switch interval {
	case "1wk":
		return alpacaFrame{TimeFrame: marketdata.NewTimeFrame(1, marketdata.Week)}, nil
	case "90m":
		return alpacaFrame{
			TimeFrame: marketdata.NewTimeFrame(30, marketdata.Min),
			Width:     90 * time.Minute,
		}, nil
	case "1h":
		return alpacaFrame{TimeFrame: marketdata.OneHour}, nil
	case "15m":
		return alpacaFrame{TimeFrame: marketdata.NewTimeFrame(15, marketdata.Min)}, nil
	default:
		return alpacaFrame{}, fmt.Errorf("alpaca: unsupported interval %q", interval)
	}
}

// aggregateBars merges sorted bars into buckets of width. A bucket opens at
// its first bar and never spans two calendar days (UTC), so every session
// restarts the grid at its open.
func aggregateBars(bars []model.OHLCV, width time.Duration) []model.OHLCV {
	if width <= 0 || len(bars) == 0 {
		return bars
	}
	out := make([]model.OHLCV, 0, len(bars)/2+1)
	var cur *model.OHLCV
	for _, b := range bars {
		if cur != nil && sameDay(cur.Time, b.Time) && b.Time.Before(cur.Time.Add(width)) {
			cur.High = max(cur.High, b.High)
			cur.Low = min(cur.Low, b.Low)
			cur.Close = b.Close
			cur.Volume += b.Volume
			continue
		}
		out = append(out, b)
		cur = &out[len(out)-1]
	}
	return out
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func (f *AlpacaFetcher) FetchBars(ctx context.Context, symbol string, tf model.TimeframeSpec) ([]model.OHLCV, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	frame, err := alpacaTimeFrame(tf.Interval)
	if err != nil {
		return nil, err
	}
	end := f.Now()
	raw, err := f.Client.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: frame.TimeFrame,
		Start:     end.Add(-tf.Lookback),
		End:       end,
	})
	if err != nil {
		var apiErr *alpaca.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 &&
			apiErr.StatusCode != http.StatusTooManyRequests {
			return nil, fmt.Errorf("alpaca bars %s: %w: %w", frame.TimeFrame, ErrRejected, err)
		}
		return nil, fmt.Errorf("alpaca bars: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w for %s (%s)", ErrNoData, symbol, tf.Timeframe)
	}
	bars := make([]model.OHLCV, len(raw))
	for i, b := range raw {
		bars[i] = model.OHLCV{
			Time:   b.Timestamp,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: float64(b.Volume),
		}
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	if frame.Width > 0 {
		bars = aggregateBars(bars, frame.Width)
	}
	return bars, nil
}

func (f *AlpacaFetcher) FetchMarketCap(ctx context.Context, symbol string) (float64, error) {
	if f.Fundamentals == nil {
		return 0, nil
	}
	return f.Fundamentals.FetchMarketCap(ctx, symbol)
}
