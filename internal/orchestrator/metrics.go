package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// unroutedLabel replaces task types with no route, so arbitrary caller input
// never becomes a label value.
const unroutedLabel = "unrouted"

// Metrics holds the orchestrator's Prometheus collectors.
type Metrics struct {
	tasks    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	retries  *prometheus.CounterVec
}

// NewMetrics registers the orchestrator collectors with reg. A nil reg uses a
// private registry, which keeps the collectors usable but unexported.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Metrics{
		tasks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "tasks_total",
			Help:      "Orchestrated tasks by type and outcome",
		}, []string{"type", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "relay",
			Name:      "task_duration_seconds",
			Help:      "Wall-clock time from dispatch to result",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
		}, []string{"type"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "task_retries_total",
			Help:      "Retried agent invocations by task type",
		}, []string{"type"}),
	}
}

func (m *Metrics) observe(taskType string, success bool, seconds float64) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.tasks.WithLabelValues(taskType, status).Inc()
	m.duration.WithLabelValues(taskType).Observe(seconds)
}

func (m *Metrics) retried(taskType string) {
	m.retries.WithLabelValues(taskType).Inc()
}
