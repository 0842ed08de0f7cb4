package scanner

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"DivergenceScanner/internal/collector"
	"DivergenceScanner/internal/metrics"
	"DivergenceScanner/internal/model"
	"DivergenceScanner/internal/strategy"
)

// DefaultConcurrency is the number of symbols analysed at once.
const DefaultConcurrency = 10

// ErrEmptyRoster aborts a batch that has nothing to analyse.
var ErrEmptyRoster = errors.New("empty symbol roster")

// Scanner runs the per-symbol analysis over a roster with bounded
// parallelism. Provider throttling is the fetcher's concern: wrap it in a
// collector.RateLimitedFetcher shared by every task.
type Scanner struct {
	Collector    *collector.Collector
	Fundamentals collector.Fetcher
	Concurrency  int
	Metrics      *metrics.Registry

	// ProgressEvery logs batch progress after this many completions.
	ProgressEvery int
}

// New creates a Scanner whose market-cap lookups go through the collector's
// fetcher.
func New(col *collector.Collector, concurrency int, m *metrics.Registry) *Scanner {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Scanner{
		Collector:     col,
		Fundamentals:  col.Fetcher,
		Concurrency:   concurrency,
		Metrics:       m,
		ProgressEvery: 25,
	}
}

// Analyze runs timeframe analysis, grading and size weighting for one
// symbol. It never returns an error: failures, including panics, come back
// as a failure marker.
func (s *Scanner) Analyze(ctx context.Context, symbol string) (res model.AnalysisResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("symbol", symbol).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("analysis panicked")
			res = model.FailedResult(symbol, fmt.Errorf("panic: %v", r))
		}
	}()

	snap, err := s.Collector.Collect(ctx, symbol)
	if err != nil {
		return model.FailedResult(symbol, err)
	}
	// An unavailable market cap weights the symbol as small.
	mcap, err := s.Fundamentals.FetchMarketCap(ctx, symbol)
	if err != nil {
		if ctx.Err() != nil {
			return model.FailedResult(symbol, ctx.Err())
		}
		log.Warn().Str("symbol", symbol).Err(err).Msg("market cap unavailable, using 0")
		mcap = 0
	}
	return strategy.Evaluate(snap, mcap)
}

// RunBatch analyses every symbol and returns one result per symbol in
// completion order. Only an empty roster fails the batch. When ctx is
// cancelled no further symbols are started; the unstarted ones are
// returned as failures together with ctx.Err().
func (s *Scanner) RunBatch(ctx context.Context, symbols []string) ([]model.AnalysisResult, error) {
	if len(symbols) == 0 {
		return nil, ErrEmptyRoster
	}

	total := len(symbols)
	results := make(chan model.AnalysisResult, total)
	var done, failed atomic.Int64

	var g errgroup.Group
	g.SetLimit(s.concurrency())

	started := time.Now()
	log.Info().Int("symbols", total).Int("concurrency", s.concurrency()).Msg("batch started")

	submitted := 0
	for _, sym := range symbols {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			t0 := time.Now()
			res := s.Analyze(ctx, sym)
			s.Metrics.ObserveTask(!res.Failed(), time.Since(t0))
			if res.Failed() {
				failed.Add(1)
				log.Warn().Str("symbol", sym).Err(res.Err).Msg("analysis failed")
			}
			results <- res

			n := done.Add(1)
			if s.ProgressEvery > 0 && (n%int64(s.ProgressEvery) == 0 || int(n) == total) {
				log.Info().Int64("completed", n).Int("total", total).Msg("batch progress")
			}
			return nil
		})
		submitted++
	}
	_ = g.Wait()
	close(results)

	out := make([]model.AnalysisResult, 0, total)
	for r := range results {
		out = append(out, r)
	}

	var err error
	if submitted < total {
		err = ctx.Err()
		for _, sym := range symbols[submitted:] {
			out = append(out, model.FailedResult(sym, err))
		}
		log.Warn().Int("skipped", total-submitted).Err(err).Msg("batch cancelled")
	}

	log.Info().
		Int("symbols", total).
		Int64("failed", failed.Load()).
		Dur("elapsed", time.Since(started)).
		Msg("batch finished")
	return out, err
}

func (s *Scanner) concurrency() int {
	if s.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return s.Concurrency
}
