package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"DivergenceScanner/internal/metrics"
	"DivergenceScanner/internal/notifier"
	"DivergenceScanner/internal/ratelimit"
	"DivergenceScanner/internal/recorder"
	"DivergenceScanner/internal/roster"
	"DivergenceScanner/internal/scanner"
)

// ErrBusy is returned when a batch is requested while one is running.
var ErrBusy = errors.New("a scan is already running")

// Sender delivers a report to the user.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Report is the outcome of one completed batch.
type Report struct {
	Run    *recorder.Run
	Failed int
	Table  string
}

// Scheduler drives complete batches: roster, scan, ranking, sinks.
type Scheduler struct {
	Cron     *cron.Cron
	Roster   roster.Roster
	Scanner  *scanner.Scanner
	Recorder recorder.Recorder
	Sender   Sender // optional
	Metrics  *metrics.Registry
	Limiter  *ratelimit.Limiter // optional, for usage metrics

	Provider    string
	TopN        int
	MetricsPath string
	Out         io.Writer // table sink, usually stdout
	Ctx         context.Context

	running atomic.Bool
	mu      sync.RWMutex
	last    *Report
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, r roster.Roster, sc *scanner.Scanner, rec recorder.Recorder, topN int) *Scheduler {
	if topN <= 0 {
		topN = scanner.DefaultTopN
	}
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Roster:   r,
		Scanner:  sc,
		Recorder: rec,
		Metrics:  sc.Metrics,
		TopN:     topN,
		Out:      io.Discard,
		Ctx:      ctx,
	}
}

// Register schedules a batch on the given cron spec (with seconds).
func (s *Scheduler) Register(spec string) error {
	if _, err := s.Cron.AddFunc(spec, s.scheduledRun); err != nil {
		return fmt.Errorf("register scan task: %w", err)
	}
	log.Info().Str("cron", spec).Msg("scan task registered")
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Info().Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for a running batch to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) scheduledRun() {
	if _, err := s.RunOnce(s.Ctx); err != nil {
		log.Error().Err(err).Msg("scheduled scan failed")
	}
}

// RunOnce executes one full batch. Results are persisted and sent only
// when the batch completes; a cancelled batch leaves no partial output.
func (s *Scheduler) RunOnce(ctx context.Context) (*Report, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer s.running.Store(false)

	started := time.Now()
	symbols, err := s.Roster.Symbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}

	results, err := s.Scanner.RunBatch(ctx, symbols)
	if err != nil {
		return nil, fmt.Errorf("run batch: %w", err)
	}
	finished := time.Now()

	run := &recorder.Run{
		ID:         uuid.NewString(),
		Provider:   s.Provider,
		StartedAt:  started,
		FinishedAt: finished,
		Results:    results,
		Top:        scanner.TopN(results, s.TopN),
	}
	rep := &Report{
		Run:    run,
		Failed: len(scanner.Failures(results)),
		Table:  notifier.RenderTable(run.Top, finished),
	}

	fmt.Fprintln(s.Out, rep.Table)

	if err := s.Recorder.RecordRun(ctx, run); err != nil {
		log.Error().Err(err).Str("run_id", run.ID).Msg("record run")
	}
	s.publishMetrics(rep)
	s.notify(ctx, rep)

	s.mu.Lock()
	s.last = rep
	s.mu.Unlock()

	log.Info().
		Str("run_id", run.ID).
		Int("symbols", len(results)).
		Int("failed", rep.Failed).
		Int("ranked", len(run.Top)).
		Dur("elapsed", finished.Sub(started)).
		Msg("scan complete")
	return rep, nil
}

// LastReport returns the most recent completed batch, or nil.
func (s *Scheduler) LastReport() *Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

func (s *Scheduler) publishMetrics(rep *Report) {
	if s.Metrics == nil {
		return
	}
	top := 0.0
	if len(rep.Run.Top) > 0 {
		top = rep.Run.Top[0].WeightedGrade
	}
	s.Metrics.ObserveBatch(rep.Run.FinishedAt, len(rep.Run.Results), top)
	if s.Limiter != nil {
		st := s.Limiter.Stats()
		s.Metrics.ObserveLimiter(st.Waits, st.Delayed)
	}
	if err := s.Metrics.WriteTextfile(s.MetricsPath); err != nil {
		log.Error().Err(err).Msg("write metrics")
	}
}

func (s *Scheduler) notify(ctx context.Context, rep *Report) {
	if s.Sender == nil {
		return
	}
	msg := notifier.FormatReport(rep.Run.Top, len(rep.Run.Results), rep.Failed, rep.Run.FinishedAt)
	if err := s.Sender.SendWithRetry(ctx, msg, 3); err != nil {
		log.Error().Err(err).Msg("send report")
	}
}

// HandleCommand answers Telegram bot commands.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	cmd := strings.ToLower(fields[0])
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}

	switch cmd {
	case "/top":
		rep := s.LastReport()
		if rep == nil {
			return "No scan has completed yet."
		}
		return notifier.FormatReport(rep.Run.Top, len(rep.Run.Results), rep.Failed, rep.Run.FinishedAt)
	case "/scan":
		if s.running.Load() {
			return "⏳ A scan is already running."
		}
		go func() {
			if _, err := s.RunOnce(ctx); err != nil {
				log.Error().Err(err).Msg("manual scan failed")
			}
		}()
		return "🔍 Scan started."
	case "/help", "/start":
		return notifier.FormatHelp()
	default:
		return "Unknown command. Send /help."
	}
}
