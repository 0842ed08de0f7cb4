package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Task outcome labels.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Registry holds the batch metrics of one process. A nil *Registry is valid
// and records nothing.
type Registry struct {
	reg *prometheus.Registry

	tasks       *prometheus.CounterVec
	retries     prometheus.Counter
	duration    prometheus.Histogram
	lastRun     prometheus.Gauge
	lastSize    prometheus.Gauge
	topGrade    prometheus.Gauge
	limiterWait prometheus.Gauge
	limiterTime prometheus.Gauge
}

// New creates a Registry with all collectors registered.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "divscan_tasks_total",
			Help: "Symbol analyses by outcome.",
		}, []string{"status"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "divscan_fetch_retries_total",
			Help: "Repeated provider requests after a transient failure.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "divscan_task_duration_seconds",
			Help:    "Wall time of one symbol analysis.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "divscan_last_run_timestamp_seconds",
			Help: "Unix time the last batch finished.",
		}),
		lastSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "divscan_last_run_symbols",
			Help: "Roster size of the last batch.",
		}),
		topGrade: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "divscan_top_weighted_grade",
			Help: "Highest weighted grade of the last batch.",
		}),
		limiterWait: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "divscan_limiter_waits",
			Help: "Rate-limit tokens taken by provider requests.",
		}),
		limiterTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "divscan_limiter_wait_seconds",
			Help: "Total time provider requests spent waiting for a token.",
		}),
	}
	r.reg.MustRegister(r.tasks, r.retries, r.duration, r.lastRun, r.lastSize, r.topGrade, r.limiterWait, r.limiterTime)
	return r
}

// ObserveTask records one finished symbol analysis.
func (r *Registry) ObserveTask(ok bool, d time.Duration) {
	if r == nil {
		return
	}
	status := StatusOK
	if !ok {
		status = StatusFailed
	}
	r.tasks.WithLabelValues(status).Inc()
	r.duration.Observe(d.Seconds())
}

// IncRetry counts one retried provider request.
func (r *Registry) IncRetry() {
	if r == nil {
		return
	}
	r.retries.Inc()
}

// ObserveBatch records the end of a batch.
func (r *Registry) ObserveBatch(finished time.Time, symbols int, topGrade float64) {
	if r == nil {
		return
	}
	r.lastRun.Set(float64(finished.Unix()))
	r.lastSize.Set(float64(symbols))
	r.topGrade.Set(topGrade)
}

// ObserveLimiter publishes cumulative limiter usage.
func (r *Registry) ObserveLimiter(waits int64, delayed time.Duration) {
	if r == nil {
		return
	}
	r.limiterWait.Set(float64(waits))
	r.limiterTime.Set(delayed.Seconds())
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// WriteTextfile writes every metric to path in the node_exporter textfile
// format. The file is replaced atomically.
func (r *Registry) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
