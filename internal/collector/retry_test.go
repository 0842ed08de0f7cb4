package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DivergenceScanner/internal/model"
)

// flakyFetcher fails the first failures calls with err.
type flakyFetcher struct {
	failures int
	err      error
	calls    int
}

func (f *flakyFetcher) Name() string { return "flaky" }

func (f *flakyFetcher) FetchBars(_ context.Context, _ string, _ model.TimeframeSpec) ([]model.OHLCV, error) {
	f.calls++
	if f.failures < 0 || f.calls <= f.failures {
		return nil, f.err
	}
	return GenerateMockBars(100, 5, time.Hour), nil
}

func (f *flakyFetcher) FetchMarketCap(_ context.Context, _ string) (float64, error) {
	f.calls++
	if f.failures < 0 || f.calls <= f.failures {
		return 0, f.err
	}
	return 5e9, nil
}

func newTestRetry(next Fetcher) (*RetryFetcher, *[]time.Duration) {
	var slept []time.Duration
	r := NewRetryFetcher(next, DefaultAttempts, DefaultRetryDelay)
	r.Sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return r, &slept
}

func TestRetryFetcher_SucceedsOnThirdAttempt(t *testing.T) {
	stub := &flakyFetcher{failures: 2, err: errors.New("connection reset")}
	r, slept := newTestRetry(stub)

	bars, err := r.FetchBars(context.Background(), "AAPL", model.Timeframes[0])
	require.NoError(t, err)
	assert.Len(t, bars, 5)
	assert.Equal(t, 3, stub.calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, *slept)
}

func TestRetryFetcher_ExhaustsAfterThreeAttempts(t *testing.T) {
	stub := &flakyFetcher{failures: -1, err: errors.New("timeout")}
	r, slept := newTestRetry(stub)
	var retried []int
	r.OnRetry = func(_ string, attempt int, _ error) { retried = append(retried, attempt) }

	_, err := r.FetchBars(context.Background(), "AAPL", model.Timeframes[1])
	require.Error(t, err)

	var te *TransientError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 3, te.Attempts)
	assert.Equal(t, "AAPL", te.Symbol)
	assert.EqualError(t, te.Err, "timeout")
	assert.Equal(t, 3, stub.calls, "must never try a 4th time")
	assert.Len(t, *slept, 2)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestRetryFetcher_NoDataIsNotRetried(t *testing.T) {
	stub := &flakyFetcher{failures: -1, err: ErrNoData}
	r, slept := newTestRetry(stub)

	_, err := r.FetchBars(context.Background(), "GONE", model.Timeframes[0])
	assert.ErrorIs(t, err, ErrNoData)
	assert.Equal(t, 1, stub.calls)
	assert.Empty(t, *slept)
}

func TestRetryFetcher_MarketCap(t *testing.T) {
	stub := &flakyFetcher{failures: 1, err: errors.New("502")}
	r, _ := newTestRetry(stub)

	mc, err := r.FetchMarketCap(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 5e9, mc)
	assert.Equal(t, 2, stub.calls)
}

func TestRetryFetcher_StopsWhenContextCancelled(t *testing.T) {
	stub := &flakyFetcher{failures: -1, err: errors.New("boom")}
	r := NewRetryFetcher(stub, DefaultAttempts, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.FetchBars(ctx, "AAPL", model.Timeframes[0])
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, stub.calls)
}

func TestRetryFetcher_RealSleepObservesDelay(t *testing.T) {
	stub := &flakyFetcher{failures: 2, err: errors.New("flaky")}
	r := NewRetryFetcher(stub, 3, 10*time.Millisecond)

	start := time.Now()
	_, err := r.FetchBars(context.Background(), "AAPL", model.Timeframes[0])
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(ErrNoData))
	assert.False(t, IsRetryable(context.Canceled))
	assert.True(t, IsRetryable(errors.New("io timeout")))
}
