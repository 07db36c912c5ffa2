package jobmetrics

import (
	"errors"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
)

// Task outcomes recorded on console_tasks_total.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusSkipped = "skipped"
)

// Metrics exposes Prometheus collectors for queued tasks.
type Metrics struct {
	runs      *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	refreshed prometheus.Counter
	idle      prometheus.Counter
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the task metrics against registerer, or once against
// the default Prometheus registerer when registerer is nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker instruments a single task run.
type Tracker struct {
	metrics  *Metrics
	taskType string
	start    time.Time
}

// Track starts a tracker for taskType.
func (m *Metrics) Track(taskType string) *Tracker {
	return &Tracker{metrics: m, taskType: taskType, start: time.Now()}
}

// End records the outcome of the run and returns err untouched. Errors
// wrapping asynq.SkipRetry count as skipped, not failed, since the queue
// drops them without retrying.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.taskType == "" {
		return err
	}
	t.metrics.runs.WithLabelValues(t.taskType, Status(err)).Inc()
	t.metrics.duration.WithLabelValues(t.taskType).Observe(time.Since(t.start).Seconds())
	return err
}

// Status classifies a task result.
func Status(err error) string {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, asynq.SkipRetry):
		return StatusSkipped
	default:
		return StatusFailure
	}
}

// ObserveRefresh counts sessions rewritten for one user. A refresh that
// found no live session is counted separately.
func (m *Metrics) ObserveRefresh(sessions int) {
	if m == nil {
		return
	}
	if sessions <= 0 {
		m.idle.Inc()
		return
	}
	m.refreshed.Add(float64(sessions))
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "console_tasks_total",
		Help: "Queued task executions partitioned by task type and status.",
	}, []string{"task", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "console_task_duration_seconds",
		Help:    "Duration in seconds of queued task executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})
	refreshed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "console_sessions_refreshed_total",
		Help: "Sessions whose permission payload was rewritten after an admin edit.",
	})
	idle := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "console_sessions_refresh_idle_total",
		Help: "Refreshes that found no live session for the edited user.",
	})
	registerer.MustRegister(runs, duration, refreshed, idle)
	return &Metrics{runs: runs, duration: duration, refreshed: refreshed, idle: idle}
}
