package collector

import (
	"context"

	"DivergenceScanner/internal/model"
	"DivergenceScanner/internal/ratelimit"
)

// RateLimitedFetcher takes one limiter token before every provider request.
type RateLimitedFetcher struct {
	Next    Fetcher
	Limiter ratelimit.Waiter
}

// NewRateLimitedFetcher wraps next with limiter.
func NewRateLimitedFetcher(next Fetcher, limiter ratelimit.Waiter) *RateLimitedFetcher {
	return &RateLimitedFetcher{Next: next, Limiter: limiter}
}

func (f *RateLimitedFetcher) Name() string { return f.Next.Name() }

func (f *RateLimitedFetcher) FetchBars(ctx context.Context, symbol string, tf model.TimeframeSpec) ([]model.OHLCV, error) {
	if err := f.Limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return f.Next.FetchBars(ctx, symbol, tf)
}

func (f *RateLimitedFetcher) FetchMarketCap(ctx context.Context, symbol string) (float64, error) {
	if err := f.Limiter.Wait(ctx); err != nil {
		return 0, err
	}
	return f.Next.FetchMarketCap(ctx, symbol)
}
