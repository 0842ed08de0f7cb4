package collector

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"DivergenceScanner/internal/model"
)

const marketCapKeyPrefix = "divscan:mcap:"

// CachedFetcher keeps market capitalisation figures in Redis. Bars always
// go to Next. Redis failures fall through to Next.
type CachedFetcher struct {
	Next  Fetcher
	Redis redis.Cmdable
	TTL   time.Duration
}

// NewCachedFetcher wraps next with a Redis market-cap cache.
func NewCachedFetcher(next Fetcher, rdb redis.Cmdable, ttl time.Duration) *CachedFetcher {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedFetcher{Next: next, Redis: rdb, TTL: ttl}
}

func (f *CachedFetcher) Name() string { return f.Next.Name() + "+redis" }

func (f *CachedFetcher) FetchBars(ctx context.Context, symbol string, tf model.TimeframeSpec) ([]model.OHLCV, error) {
	return f.Next.FetchBars(ctx, symbol, tf)
}

func marketCapKey(symbol string) string {
	return marketCapKeyPrefix + strings.ToUpper(symbol)
}

func (f *CachedFetcher) FetchMarketCap(ctx context.Context, symbol string) (float64, error) {
	key := marketCapKey(symbol)
	cached, err := f.Redis.Get(ctx, key).Result()
	switch {
	case err == nil:
		if v, perr := strconv.ParseFloat(cached, 64); perr == nil {
			return v, nil
		}
		log.Warn().Str("key", key).Str("value", cached).Msg("discarding unparsable cached market cap")
	case !errors.Is(err, redis.Nil):
		log.Warn().Err(err).Str("symbol", symbol).Msg("market cap cache read failed")
	}

	mc, err := f.Next.FetchMarketCap(ctx, symbol)
	if err != nil {
		return 0, err
	}
	// Missing figures are not cached so a later run can pick them up.
	if mc > 0 {
		if err := f.Redis.Set(ctx, key, strconv.FormatFloat(mc, 'f', -1, 64), f.TTL).Err(); err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("market cap cache write failed")
		}
	}
	return mc, nil
}
