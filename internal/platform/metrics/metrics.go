// Package metrics owns the process-wide Prometheus registry and the metrics of
// the periodic task runner.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the scheduler metrics. A nil *Metrics records nothing.
type Metrics struct {
	TaskRuns     *prometheus.CounterVec
	TaskDuration *prometheus.HistogramVec
	TaskSkipped  *prometheus.CounterVec
}

// NewRegistry returns a registry carrying the Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves g in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TaskRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetdocs_task_runs_total",
			Help: "Periodic task executions by task and outcome",
		}, []string{"task", "outcome"}),
		TaskDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fleetdocs_task_duration_seconds",
			Help:    "Duration of periodic task executions",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 300},
		}, []string{"task"}),
		TaskSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetdocs_task_skipped_total",
			Help: "Task ticks skipped because another replica held the lease",
		}, []string{"task"}),
	}
}

func (m *Metrics) ObserveTask(task string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.TaskRuns.WithLabelValues(task, outcome).Inc()
	m.TaskDuration.WithLabelValues(task).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncTaskSkipped(task string) {
	if m == nil {
		return
	}
	m.TaskSkipped.WithLabelValues(task).Inc()
}
