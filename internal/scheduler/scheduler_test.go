package scheduler

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DivergenceScanner/internal/collector"
	"DivergenceScanner/internal/metrics"
	"DivergenceScanner/internal/ratelimit"
	"DivergenceScanner/internal/recorder"
	"DivergenceScanner/internal/roster"
	"DivergenceScanner/internal/scanner"
)

type captureRecorder struct {
	mu   sync.Mutex
	runs []*recorder.Run
}

func (c *captureRecorder) RecordRun(_ context.Context, run *recorder.Run) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs = append(c.runs, run)
	return nil
}

func (c *captureRecorder) Close() error { return nil }

type captureSender struct {
	mu       sync.Mutex
	messages []string
}

func (c *captureSender) SendWithRetry(_ context.Context, text string, _ int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, text)
	return nil
}

func newTestScheduler(t *testing.T, symbols []string) (*Scheduler, *captureRecorder, *captureSender) {
	t.Helper()
	mock := &collector.MockFetcher{
		Price:      100,
		MarketCaps: map[string]float64{"AAA": 3e12, "BBB": 5e9, "CCC": 1e9},
		Failures:   map[string]error{"DEAD": collector.ErrNoData},
	}
	lim := ratelimit.NewLimiter(0, 1)
	col := collector.NewCollector(collector.NewRateLimitedFetcher(mock, lim))
	sc := scanner.New(col, 2, metrics.New())

	rec := &captureRecorder{}
	snd := &captureSender{}
	s := NewScheduler(context.Background(), roster.StaticRoster{List: symbols}, sc, rec, 2)
	s.Sender = snd
	s.Limiter = lim
	s.Provider = "mock"
	return s, rec, snd
}

func TestRunOnce(t *testing.T) {
	s, rec, snd := newTestScheduler(t, []string{"CCC", "AAA", "DEAD", "BBB"})
	var out bytes.Buffer
	s.Out = &out
	s.MetricsPath = filepath.Join(t.TempDir(), "divscan.prom")

	rep, err := s.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Len(t, rep.Run.Results, 4)
	assert.Equal(t, 1, rep.Failed)
	require.Len(t, rep.Run.Top, 2)
	// identical bars, so the ranking is decided by the size tier
	assert.Equal(t, "AAA", rep.Run.Top[0].Symbol)
	assert.Equal(t, "BBB", rep.Run.Top[1].Symbol)
	assert.NotEmpty(t, rep.Run.ID)

	assert.Contains(t, out.String(), "Top 2 Opportunities as of")
	require.Len(t, rec.runs, 1)
	assert.Same(t, rep.Run, rec.runs[0])
	require.Len(t, snd.messages, 1)
	assert.Contains(t, snd.messages[0], "failed: 1")
	assert.Same(t, rep, s.LastReport())

	prom, err := os.ReadFile(s.MetricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "divscan_last_run_symbols 4")
}

func TestRunOnce_CancelledBatchIsNotPersisted(t *testing.T) {
	s, rec, snd := newTestScheduler(t, []string{"AAA", "BBB"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.RunOnce(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rec.runs)
	assert.Empty(t, snd.messages)
	assert.Nil(t, s.LastReport())
}

func TestRunOnce_RosterFailure(t *testing.T) {
	s, _, _ := newTestScheduler(t, nil)
	_, err := s.RunOnce(context.Background())
	assert.ErrorIs(t, err, roster.ErrNoSymbols)
}

func TestRunOnce_Busy(t *testing.T) {
	s, _, _ := newTestScheduler(t, []string{"AAA"})
	s.running.Store(true)
	_, err := s.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
}

func TestHandleCommand(t *testing.T) {
	s, _, _ := newTestScheduler(t, []string{"AAA", "BBB"})

	assert.Equal(t, "No scan has completed yet.", s.HandleCommand(context.Background(), "/top"))
	assert.Contains(t, s.HandleCommand(context.Background(), "/help"), "/scan")
	assert.Contains(t, s.HandleCommand(context.Background(), "/foo"), "Unknown command")
	assert.Empty(t, s.HandleCommand(context.Background(), "   "))

	_, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Contains(t, s.HandleCommand(context.Background(), "/top@divscan_bot"), "AAA")
}

func TestHandleCommand_Scan(t *testing.T) {
	s, rec, _ := newTestScheduler(t, []string{"AAA"})

	assert.Equal(t, "🔍 Scan started.", s.HandleCommand(context.Background(), "/scan"))
	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.runs) == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestRegister(t *testing.T) {
	s, _, _ := newTestScheduler(t, []string{"AAA"})
	assert.NoError(t, s.Register("0 30 16 * * 1-5"))
	assert.Error(t, s.Register("not a cron"))
	assert.Len(t, s.Cron.Entries(), 1)
}
