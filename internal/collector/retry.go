package collector

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"DivergenceScanner/internal/model"
)

// Default retry policy for provider calls.
const (
	DefaultAttempts   = 3
	DefaultRetryDelay = 2 * time.Second
)

// RetryFetcher retries retryable failures of Next with a fixed delay.
// ErrNoData and context errors are returned immediately.
type RetryFetcher struct {
	Next     Fetcher
	Attempts int
	Delay    time.Duration

	// Sleep waits between attempts; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry is called before each repeated attempt.
	OnRetry func(symbol string, attempt int, err error)
}

// NewRetryFetcher wraps next with the given policy.
func NewRetryFetcher(next Fetcher, attempts int, delay time.Duration) *RetryFetcher {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	return &RetryFetcher{Next: next, Attempts: attempts, Delay: delay, Sleep: sleepCtx}
}

func (f *RetryFetcher) Name() string { return f.Next.Name() }

func (f *RetryFetcher) FetchBars(ctx context.Context, symbol string, tf model.TimeframeSpec) ([]model.OHLCV, error) {
	var bars []model.OHLCV
	err := f.do(ctx, symbol, "bars/"+tf.Interval, func() error {
		var err error
		bars, err = f.Next.FetchBars(ctx, symbol, tf)
		return err
	})
	return bars, err
}

func (f *RetryFetcher) FetchMarketCap(ctx context.Context, symbol string) (float64, error) {
	var mc float64
	err := f.do(ctx, symbol, "market_cap", func() error {
		var err error
		mc, err = f.Next.FetchMarketCap(ctx, symbol)
		return err
	})
	return mc, err
}

func (f *RetryFetcher) do(ctx context.Context, symbol, op string, call func() error) error {
	var lastErr error
	for attempt := 1; attempt <= f.Attempts; attempt++ {
		err := call()
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		lastErr = err
		if attempt == f.Attempts {
			break
		}
		log.Warn().Err(err).
			Str("symbol", symbol).
			Str("op", op).
			Int("attempt", attempt).
			Int("max_attempts", f.Attempts).
			Dur("retry_in", f.Delay).
			Msg("provider call failed, retrying")
		if f.OnRetry != nil {
			f.OnRetry(symbol, attempt, err)
		}
		sleep := f.Sleep
		if sleep == nil {
			sleep = sleepCtx
		}
		if err := sleep(ctx, f.Delay); err != nil {
			return err
		}
	}
	return &TransientError{Symbol: symbol, Attempts: f.Attempts, Err: lastErr}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
