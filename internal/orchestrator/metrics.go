package orchestrator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ShayCichocki/crewline/pkg/models"
)

// Metrics records engine activity as Prometheus series.
type Metrics struct {
	tasks    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	waves    *prometheus.CounterVec
}

// NewMetrics creates the engine collectors and registers them with reg.
// A nil reg leaves them unregistered, which is useful in tests.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		tasks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crewline_tasks_total",
				Help: "Tasks settled by the engine, by final status.",
			},
			[]string{"status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crewline_task_duration_seconds",
				Help:    "Turn execution time per task.",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"agent_role"},
		),
		waves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crewline_waves_total",
				Help: "Dispatch steps taken, by process type.",
			},
			[]string{"process"},
		),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{m.tasks, m.duration, m.waves} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) observeTask(status models.TaskStatus, role string, d time.Duration) {
	if m == nil {
		return
	}
	m.tasks.WithLabelValues(string(status)).Inc()
	if status == models.TaskStatusCompleted || status == models.TaskStatusFailed {
		m.duration.WithLabelValues(role).Observe(d.Seconds())
	}
}

func (m *Metrics) observeWave(process models.ProcessType) {
	if m == nil {
		return
	}
	m.waves.WithLabelValues(string(process)).Inc()
}
