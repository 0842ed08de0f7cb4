package collector

import (
	"context"

	"DivergenceScanner/internal/model"
)

// Fetcher defines the interface for fetching market data.
type Fetcher interface {
	// FetchBars returns the bars of tf ending now, oldest first.
	// An empty window yields ErrNoData.
	FetchBars(ctx context.Context, symbol string, tf model.TimeframeSpec) ([]model.OHLCV, error)
	// FetchMarketCap returns 0 when the provider has no figure for symbol.
	FetchMarketCap(ctx context.Context, symbol string) (float64, error)
	Name() string
}
