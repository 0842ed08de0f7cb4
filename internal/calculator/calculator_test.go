package calculator

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DivergenceScanner/internal/model"
)

func linear(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func barsFrom(closes []float64) []model.OHLCV {
	bars := make([]model.OHLCV, len(closes))
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		bars[i] = model.OHLCV{Time: t0.Add(time.Duration(i) * time.Hour), Open: c, High: c, Low: c, Close: c}
	}
	return bars
}

func TestCalculateRSI_ShortSeriesIsUndefined(t *testing.T) {
	for _, n := range []int{0, 1, RSIPeriod} {
		rsi := CalculateRSI(linear(n, 100, 1), RSIPeriod)
		require.Len(t, rsi, n)
		for _, v := range rsi {
			assert.True(t, math.IsNaN(v))
		}
	}
}

func TestCalculateRSI_WarmupAndBounds(t *testing.T) {
	rising := CalculateRSI(linear(40, 100, 1), RSIPeriod)
	require.Len(t, rising, 40)
	for i := 0; i < RSIPeriod; i++ {
		assert.True(t, math.IsNaN(rising[i]), "index %d should be warm-up", i)
	}
	assert.InDelta(t, 100.0, rising[39], 1e-9)

	falling := CalculateRSI(linear(40, 200, -1), RSIPeriod)
	assert.InDelta(t, 0.0, falling[39], 1e-9)

	rng := rand.New(rand.NewSource(7))
	walk := make([]float64, 200)
	walk[0] = 100
	for i := 1; i < len(walk); i++ {
		walk[i] = walk[i-1] + rng.Float64() - 0.5
	}
	for _, v := range CalculateRSI(walk, RSIPeriod)[RSIPeriod:] {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 100.0)
	}
}

func TestCalculateMACD_Warmup(t *testing.T) {
	warmup := macdWarmup(MACDSlow, MACDSignal)

	short := CalculateMACD(linear(warmup, 100, 1), MACDFast, MACDSlow, MACDSignal)
	for _, v := range short.Line {
		assert.True(t, math.IsNaN(v))
	}

	res := CalculateMACD(linear(60, 100, 1), MACDFast, MACDSlow, MACDSignal)
	require.Len(t, res.Line, 60)
	require.Len(t, res.Signal, 60)
	require.Len(t, res.Hist, 60)
	for i := 0; i < warmup; i++ {
		assert.True(t, math.IsNaN(res.Line[i]))
	}
	for i := warmup; i < 60; i++ {
		assert.Greater(t, res.Line[i], 0.0, "rising prices keep the fast average above the slow one")
	}
}

func TestCalculateMACD_FlatSeriesIsZero(t *testing.T) {
	res := CalculateMACD(linear(50, 42, 0), MACDFast, MACDSlow, MACDSignal)
	assert.InDelta(t, 0.0, res.Line[49], 1e-9)
}

func TestComputeIndicators_Aligned(t *testing.T) {
	bars := barsFrom(linear(10, 50, 0.5))
	set := ComputeIndicators(bars)
	assert.Len(t, set.RSI, 10)
	assert.Len(t, set.MACD, 10)
	assert.False(t, HasDivergence(model.Closes(bars), set.RSI))
	assert.False(t, HasDivergence(model.Closes(bars), set.MACD))
}

func TestHasDivergence(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		name      string
		prices    []float64
		indicator []float64
		want      bool
	}{
		{"both up", []float64{1, 2}, []float64{10, 11}, false},
		{"both down", []float64{2, 1}, []float64{11, 10}, false},
		{"price up indicator down", []float64{1, 2}, []float64{11, 10}, true},
		{"price down indicator up", []float64{2, 1}, []float64{10, 11}, true},
		{"both flat", []float64{5, 5}, []float64{3, 3}, false},
		{"price flat indicator up", []float64{5, 5}, []float64{3, 4}, true},
		{"price up indicator flat", []float64{5, 6}, []float64{3, 3}, true},
		{"only last step counts", []float64{9, 1, 2}, []float64{1, 9, 10}, false},
		{"empty indicator", []float64{1, 2}, nil, false},
		{"single indicator value", []float64{1, 2}, []float64{10}, false},
		{"undefined trailing value", []float64{1, 2}, []float64{10, nan}, false},
		{"undefined previous value", []float64{1, 2}, []float64{nan, 10}, false},
		{"short prices", []float64{1}, []float64{1, 2}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasDivergence(tt.prices, tt.indicator))
		})
	}
}

func TestHasDivergence_SymmetricUnderNegation(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	pick := func() float64 {
		// Mix in exact ties so the zero-delta rule is exercised.
		if rng.Intn(4) == 0 {
			return 1
		}
		return rng.NormFloat64()
	}
	neg := func(xs []float64) []float64 {
		out := make([]float64, len(xs))
		for i, x := range xs {
			out[i] = -x
		}
		return out
	}
	for i := 0; i < 500; i++ {
		prices := []float64{pick(), pick()}
		ind := []float64{pick(), pick()}
		assert.Equal(t, HasDivergence(prices, ind), HasDivergence(neg(prices), neg(ind)))
	}
}
