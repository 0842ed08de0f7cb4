package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DivergenceScanner/internal/model"
)

func newTestAlpaca(t *testing.T, h http.HandlerFunc) *AlpacaFetcher {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &AlpacaFetcher{
		Client: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    "key",
			APISecret: "secret",
			BaseURL:   srv.URL,
		}),
		Now: func() time.Time { return time.Date(2024, 3, 5, 21, 0, 0, 0, time.UTC) },
	}
}

func TestAlpacaTimeFrame_MinuteBarsStayBelowAnHour(t *testing.T) {
	want := map[string]string{"1wk": "1Week", "90m": "30Min", "1h": "1Hour", "15m": "15Min"}
	for _, tf := range model.Timeframes {
		got, err := alpacaTimeFrame(tf.Interval)
		require.NoError(t, err, tf.Interval)
		assert.Equal(t, want[tf.Interval], got.TimeFrame.String())
		if got.TimeFrame.Unit == marketdata.Min {
			assert.Less(t, got.TimeFrame.N, 60, tf.Interval)
		}
	}
	_, err := alpacaTimeFrame("3mo")
	assert.Error(t, err)
}

// Two sessions of 30Min bars: 5 on the first day, 2 on the second.
const alpaca30MinBars = `{"bars":{"AAPL":[
{"t":"2024-03-04T14:30:00Z","o":10,"h":11,"l":9,"c":10.5,"v":100},
{"t":"2024-03-04T15:00:00Z","o":10.5,"h":12,"l":10,"c":11,"v":200},
{"t":"2024-03-04T15:30:00Z","o":11,"h":11.5,"l":8,"c":9,"v":300},
{"t":"2024-03-04T16:00:00Z","o":9,"h":9.5,"l":8.5,"c":9.2,"v":50},
{"t":"2024-03-04T16:30:00Z","o":9.2,"h":10,"l":9,"c":9.8,"v":60},
{"t":"2024-03-05T14:30:00Z","o":20,"h":21,"l":19,"c":20.5,"v":10},
{"t":"2024-03-05T15:00:00Z","o":20.5,"h":22,"l":20,"c":21,"v":20}
]},"next_page_token":null}`

func TestAlpacaFetcher_NinetyMinuteBarsFromThirtyMinute(t *testing.T) {
	var gotFrame, gotSymbols string
	f := newTestAlpaca(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/stocks/bars", r.URL.Path)
		gotFrame = r.URL.Query().Get("timeframe")
		gotSymbols = r.URL.Query().Get("symbols")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(alpaca30MinBars))
	})

	spec, ok := model.SpecFor(model.NinetyMin)
	require.True(t, ok)
	bars, err := f.FetchBars(context.Background(), "AAPL", spec)
	require.NoError(t, err)

	assert.Equal(t, "30Min", gotFrame)
	assert.Equal(t, "AAPL", gotSymbols)
	require.Len(t, bars, 3)

	first := bars[0]
	assert.True(t, first.Time.Equal(time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC)))
	assert.Equal(t, 10.0, first.Open)
	assert.Equal(t, 12.0, first.High)
	assert.Equal(t, 8.0, first.Low)
	assert.Equal(t, 9.0, first.Close)
	assert.Equal(t, 600.0, first.Volume)

	second := bars[1]
	assert.True(t, second.Time.Equal(time.Date(2024, 3, 4, 16, 0, 0, 0, time.UTC)))
	assert.Equal(t, 9.8, second.Close)
	assert.Equal(t, 110.0, second.Volume)

	// the next session starts a new bucket
	third := bars[2]
	assert.True(t, third.Time.Equal(time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)))
	assert.Equal(t, 20.0, third.Open)
	assert.Equal(t, 21.0, third.Close)
}

func TestAlpacaFetcher_OtherTimeframesPassThrough(t *testing.T) {
	f := newTestAlpaca(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "15Min", r.URL.Query().Get("timeframe"))
		_, _ = w.Write([]byte(alpaca30MinBars))
	})
	spec, _ := model.SpecFor(model.Minute15)
	bars, err := f.FetchBars(context.Background(), "AAPL", spec)
	require.NoError(t, err)
	assert.Len(t, bars, 7)
}

func TestAlpacaFetcher_ClientErrorIsNotRetried(t *testing.T) {
	calls := 0
	f := newTestAlpaca(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"code":42210000,"message":"invalid timeframe"}`))
	})
	retry := NewRetryFetcher(f, 3, time.Second)
	retry.Sleep = func(context.Context, time.Duration) error { return nil }

	spec, _ := model.SpecFor(model.Hourly)
	_, err := retry.FetchBars(context.Background(), "AAPL", spec)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRejected)
	assert.False(t, IsRetryable(err))
	assert.Equal(t, 1, calls)
}

func TestAlpacaFetcher_EmptyIsNoData(t *testing.T) {
	f := newTestAlpaca(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"bars":{},"next_page_token":null}`))
	})
	spec, _ := model.SpecFor(model.Weekly)
	_, err := f.FetchBars(context.Background(), "GONE", spec)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestAggregateBars_Width(t *testing.T) {
	t0 := time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC)
	var in []model.OHLCV
	for i := 0; i < 7; i++ {
		c := float64(i + 1)
		in = append(in, model.OHLCV{Time: t0.Add(time.Duration(i) * 30 * time.Minute), Open: c, High: c, Low: c, Close: c, Volume: 1})
	}
	out := aggregateBars(in, 90*time.Minute)
	require.Len(t, out, 3)
	assert.Equal(t, []float64{3, 6, 7}, []float64{out[0].Close, out[1].Close, out[2].Close})
	assert.Equal(t, []float64{3, 3, 1}, []float64{out[0].Volume, out[1].Volume, out[2].Volume})
	assert.Equal(t, 1.0, in[0].Close, "input must not be modified")
	assert.Equal(t, in, aggregateBars(in, 0))
}

func TestAlpacaFetcher_MarketCapDelegates(t *testing.T) {
	f := &AlpacaFetcher{Fundamentals: &MockFetcher{MarketCaps: map[string]float64{"TSLA": 8e11}}}
	mc, err := f.FetchMarketCap(context.Background(), "TSLA")
	require.NoError(t, err)
	assert.Equal(t, 8e11, mc)

	mc, err = (&AlpacaFetcher{}).FetchMarketCap(context.Background(), "TSLA")
	require.NoError(t, err)
	assert.Zero(t, mc)
}
