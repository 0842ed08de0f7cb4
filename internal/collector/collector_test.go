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

func seriesBars(closes []float64) []model.OHLCV {
	bars := make([]model.OHLCV, len(closes))
	t0 := time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)
	for i, c := range closes {
		bars[i] = model.OHLCV{Time: t0.Add(time.Duration(i) * 15 * time.Minute), Open: c, High: c, Low: c, Close: c}
	}
	return bars
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func rising(n int, from float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = from + float64(i)
	}
	return out
}

func TestCollector_FlatSeriesHasNoDivergence(t *testing.T) {
	m := &MockFetcher{BarData: map[model.Timeframe][]model.OHLCV{
		model.Weekly:    seriesBars(constant(52, 100)),
		model.NinetyMin: seriesBars(constant(40, 90)),
		model.Hourly:    seriesBars(constant(40, 80)),
		model.Minute15:  seriesBars(constant(40, 70)),
	}}
	snap, err := NewCollector(m).Collect(context.Background(), "FLAT")
	require.NoError(t, err)

	require.Len(t, snap.Divergences, 4)
	for tf, flags := range snap.Divergences {
		assert.Zero(t, flags.Count(), "timeframe %s", tf)
	}
	assert.Equal(t, map[model.Timeframe]float64{
		model.Weekly: 100, model.NinetyMin: 90, model.Hourly: 80, model.Minute15: 70,
	}, snap.Closes)
	assert.Equal(t, 4, m.Calls("FLAT"))
}

func TestCollector_SaturatedRSIDiverges(t *testing.T) {
	// RSI pins at 100 on a one-way market while price keeps rising.
	m := &MockFetcher{BarData: map[model.Timeframe][]model.OHLCV{
		model.Weekly:    seriesBars(rising(52, 10)),
		model.NinetyMin: seriesBars(constant(40, 90)),
		model.Hourly:    seriesBars(constant(40, 80)),
		model.Minute15:  seriesBars(constant(40, 70)),
	}}
	snap, err := NewCollector(m).Collect(context.Background(), "UP")
	require.NoError(t, err)
	assert.True(t, snap.Divergences[model.Weekly].RSI)
	assert.False(t, snap.Divergences[model.Hourly].RSI)
	assert.Equal(t, 61.0, snap.Closes[model.Weekly])
}

func TestCollector_ShortSeriesIsNotAnError(t *testing.T) {
	m := &MockFetcher{BarData: map[model.Timeframe][]model.OHLCV{
		model.Weekly:    seriesBars(rising(3, 10)),
		model.NinetyMin: seriesBars(rising(1, 10)),
		model.Hourly:    seriesBars(rising(5, 10)),
		model.Minute15:  seriesBars(rising(12, 10)),
	}}
	snap, err := NewCollector(m).Collect(context.Background(), "NEW")
	require.NoError(t, err)
	for _, flags := range snap.Divergences {
		assert.Zero(t, flags.Count())
	}
}

func TestCollector_PropagatesFetchFailure(t *testing.T) {
	m := &MockFetcher{Price: 50, Failures: map[string]error{"GONE": ErrNoData}}
	_, err := NewCollector(m).Collect(context.Background(), "GONE")
	assert.ErrorIs(t, err, ErrNoData)
	assert.Equal(t, 1, m.Calls("GONE"), "analysis stops at the first failing timeframe")

	boom := errors.New("boom")
	m.Failures["BAD"] = boom
	_, err = NewCollector(m).Collect(context.Background(), "BAD")
	assert.ErrorIs(t, err, boom)
}

func TestCollector_EmptyBarsAreNoData(t *testing.T) {
	m := &MockFetcher{BarData: map[model.Timeframe][]model.OHLCV{model.Weekly: {}}}
	_, err := NewCollector(m).Collect(context.Background(), "EMPTY")
	assert.ErrorIs(t, err, ErrNoData)
}
