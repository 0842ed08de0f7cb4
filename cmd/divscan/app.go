package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"DivergenceScanner/internal/collector"
	"DivergenceScanner/internal/config"
	"DivergenceScanner/internal/logging"
	"DivergenceScanner/internal/metrics"
	"DivergenceScanner/internal/notifier"
	"DivergenceScanner/internal/ratelimit"
	"DivergenceScanner/internal/recorder"
	"DivergenceScanner/internal/roster"
	"DivergenceScanner/internal/scanner"
	"DivergenceScanner/internal/scheduler"
)

// app holds the wired components of one process.
type app struct {
	cfg      *config.Config
	sched    *scheduler.Scheduler
	notifier *notifier.TelegramNotifier
	closers  []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("close")
		}
	}
}

func loadConfig(opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.topN > 0 {
		cfg.Scan.TopN = opts.topN
	}
	if opts.concurrency > 0 {
		cfg.Scan.Concurrency = opts.concurrency
	}
	if opts.symbols != "" {
		cfg.Scan.Symbols = config.SplitSymbols(opts.symbols)
		cfg.Scan.Roster = config.RosterStatic
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func newApp(ctx context.Context, cfg *config.Config, out io.Writer) (*app, error) {
	if err := logging.Init(logging.Config{
		Level:         cfg.Logging.Level,
		Format:        cfg.Logging.Format,
		Dir:           cfg.Logging.Dir,
		RotationSize:  cfg.Logging.RotationSize,
		RetentionDays: cfg.Logging.RetentionDays,
		Service:       "divscan",
	}); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}
	reg := metrics.New()
	limiter := ratelimit.NewLimiter(cfg.Scan.RequestsPerSecond, cfg.Scan.Burst)

	fetcher, err := buildFetcher(ctx, cfg, limiter, reg, a)
	if err != nil {
		a.Close()
		return nil, err
	}
	log.Info().
		Str("provider", fetcher.Name()).
		Float64("rps", cfg.Scan.RequestsPerSecond).
		Int("burst", cfg.Scan.Burst).
		Msg("data source ready")

	sc := scanner.New(collector.NewCollector(fetcher), cfg.Scan.Concurrency, reg)

	rec, err := buildRecorder(cfg, a)
	if err != nil {
		a.Close()
		return nil, err
	}

	sched := scheduler.NewScheduler(ctx, buildRoster(cfg), sc, rec, cfg.Scan.TopN)
	sched.Provider = fetcher.Name()
	sched.Limiter = limiter
	sched.MetricsPath = cfg.Output.MetricsPath
	sched.Out = out

	if cfg.TelegramEnabled() {
		a.notifier = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.DataSource.Proxy)
		sched.Sender = a.notifier
	}
	a.sched = sched
	return a, nil
}

// buildFetcher layers the provider as Retry(Cache(RateLimit(provider))):
// every attempt takes a token, cache hits take none.
func buildFetcher(ctx context.Context, cfg *config.Config, limiter *ratelimit.Limiter, reg *metrics.Registry, a *app) (collector.Fetcher, error) {
	bs := collector.BreakerSettings{
		ConsecutiveFailures: cfg.DataSource.BreakerFailures,
		OpenTimeout:         cfg.DataSource.BreakerTimeout,
	}

	var provider collector.Fetcher
	switch cfg.DataSource.Provider {
	case config.ProviderAlpaca:
		provider = collector.NewAlpacaFetcher(cfg.DataSource.AlpacaKey, cfg.DataSource.AlpacaSecret,
			collector.NewYahooFetcher(cfg.DataSource.Proxy, bs))
	case config.ProviderMock:
		provider = &collector.MockFetcher{Price: 100}
	default:
		provider = collector.NewYahooFetcher(cfg.DataSource.Proxy, bs)
	}

	var f collector.Fetcher = collector.NewRateLimitedFetcher(provider, limiter)

	if cfg.Cache.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Cache.RedisAddr).Msg("redis unavailable, market-cap cache disabled")
			_ = rdb.Close()
		} else {
			a.closers = append(a.closers, rdb.Close)
			f = collector.NewCachedFetcher(f, rdb, cfg.Cache.MarketCapTTL)
		}
	}

	retry := collector.NewRetryFetcher(f, cfg.Scan.RetryAttempts, cfg.Scan.RetryDelay)
	retry.OnRetry = func(string, int, error) { reg.IncRetry() }
	return retry, nil
}

func buildRecorder(cfg *config.Config, a *app) (recorder.Recorder, error) {
	var sinks recorder.Multi
	if cfg.Output.CSVPath != "" {
		sinks = append(sinks, recorder.NewCSVRecorder(cfg.Output.CSVPath))
	}
	if cfg.Output.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Output.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("init sqlite recorder: %w", err)
		}
		sinks = append(sinks, sr)
	}
	if len(sinks) == 0 {
		return recorder.NewNoopRecorder(), nil
	}
	a.closers = append(a.closers, sinks.Close)
	return sinks, nil
}

func buildRoster(cfg *config.Config) roster.Roster {
	if cfg.Scan.Roster == config.RosterStatic {
		return roster.StaticRoster{List: cfg.Scan.Symbols}
	}
	return roster.NewWikipediaRoster(cfg.Scan.RosterURL)
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

func runOnce(parent context.Context, opts *options, out io.Writer) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	ctx, stop := signalContext(parent)
	defer stop()

	a, err := newApp(ctx, cfg, out)
	if err != nil {
		return err
	}
	defer a.Close()

	_, err = a.sched.RunOnce(ctx)
	return err
}

func runDaemon(parent context.Context, opts *options, runOnStart bool, out io.Writer) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	ctx, stop := signalContext(parent)
	defer stop()

	a, err := newApp(ctx, cfg, out)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.sched.Register(cfg.Schedule.Cron); err != nil {
		return err
	}
	a.sched.Start()
	defer a.sched.Stop()

	if a.notifier != nil {
		go a.notifier.StartPolling(ctx, a.sched.HandleCommand)
		log.Info().Msg("telegram polling started")
	}

	if runOnStart {
		go func() {
			if _, err := a.sched.RunOnce(ctx); err != nil {
				log.Error().Err(err).Msg("startup scan failed")
			}
		}()
	}

	log.Info().Str("cron", cfg.Schedule.Cron).Msg("divscan daemon running, press Ctrl+C to stop")
	<-ctx.Done()
	log.Info().Msg("shutdown signal received, stopping")
	return nil
}
