package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "synaptik"

// DomainMetrics holds Prometheus counters for task activity.
// A nil *DomainMetrics is valid and records nothing.
type DomainMetrics struct {
	taskWrites   *prometheus.CounterVec
	rollbacks    prometheus.Counter
	cacheLookups *prometheus.CounterVec
	graphBuilds  *prometheus.CounterVec
	events       *prometheus.CounterVec
	failures     *prometheus.CounterVec
}

// NewDomainMetrics registers the domain counters with reg.
// Pass prometheus.DefaultRegisterer to expose them on /-/metrics.
func NewDomainMetrics(reg prometheus.Registerer) *DomainMetrics {
	factory := promauto.With(reg)

	return &DomainMetrics{
		taskWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "task_writes_total",
			Help:      "Task writes by operation.",
		}, []string{"op"}),
		rollbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rollbacks_total",
			Help:      "Multi-task writes that were rolled back.",
		}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cache_lookups_total",
			Help:      "Task list cache lookups by result.",
		}, []string{"result"}),
		graphBuilds: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "graph_builds_total",
			Help:      "Dependency graphs built by layout.",
		}, []string{"layout"}),
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_published_total",
			Help:      "Task events by type and outcome.",
		}, []string{"type", "outcome"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "operation_failures_total",
			Help:      "Failed operations by name and the step that failed.",
		}, []string{"operation", "step"}),
	}
}

// TaskWrite counts a stored task write (create, update, delete, status).
func (m *DomainMetrics) TaskWrite(op string) {
	if m == nil {
		return
	}

	m.taskWrites.WithLabelValues(op).Inc()
}

// Rollback counts a rolled back multi-task write.
func (m *DomainMetrics) Rollback() {
	if m == nil {
		return
	}

	m.rollbacks.Inc()
}

// CacheLookup counts a cache hit or miss.
func (m *DomainMetrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}

	result := "miss"
	if hit {
		result = "hit"
	}

	m.cacheLookups.WithLabelValues(result).Inc()
}

// GraphBuild counts a dependency graph build.
func (m *DomainMetrics) GraphBuild(layout string) {
	if m == nil {
		return
	}

	m.graphBuilds.WithLabelValues(layout).Inc()
}

// EventPublished counts a publish attempt.
func (m *DomainMetrics) EventPublished(eventType string, err error) {
	if m == nil {
		return
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}

	m.events.WithLabelValues(eventType, outcome).Inc()
}

// OperationFailed counts an operation that failed at step.
func (m *DomainMetrics) OperationFailed(operation, step string) {
	if m == nil {
		return
	}

	m.failures.WithLabelValues(operation, step).Inc()
}
