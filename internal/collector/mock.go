package collector

import (
	"context"
	"sync"
	"time"

	"DivergenceScanner/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
// It is safe for concurrent use.
type MockFetcher struct {
	Price      float64
	BarData    map[model.Timeframe][]model.OHLCV // shared by every symbol
	MarketCaps map[string]float64
	Failures   map[string]error // per-symbol FetchBars error

	mu    sync.Mutex
	calls map[string]int
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchBars(ctx context.Context, symbol string, tf model.TimeframeSpec) ([]model.OHLCV, error) {
	m.count(symbol)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := m.Failures[symbol]; ok {
		return nil, err
	}
	if bars, ok := m.BarData[tf.Timeframe]; ok {
		return bars, nil
	}
	return GenerateMockBars(m.Price, 60, time.Hour), nil
}

func (m *MockFetcher) FetchMarketCap(_ context.Context, symbol string) (float64, error) {
	m.count(symbol)
	return m.MarketCaps[symbol], nil
}

// Calls returns how many provider calls were made for symbol.
func (m *MockFetcher) Calls(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[symbol]
}

func (m *MockFetcher) count(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[symbol]++
}

// GenerateMockBars builds count gently rising bars spaced by step.
func GenerateMockBars(basePrice float64, count int, step time.Duration) []model.OHLCV {
	bars := make([]model.OHLCV, count)
	end := time.Now()
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars[i] = model.OHLCV{
			Time:   end.Add(-time.Duration(count-i) * step),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		}
	}
	return bars
}
