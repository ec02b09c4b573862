package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is shared by the API and the worker; each process registers its
// own copy under a distinct subsystem.
type Metrics struct {
	// Lifecycle
	Transitions          *prometheus.CounterVec
	TransitionRejections *prometheus.CounterVec

	// Outbox
	OutboxEventsRecorded    *prometheus.CounterVec
	OutboxEventsProcessed   prometheus.Counter
	OutboxEventsFailed      prometheus.Counter
	OutboxProcessingLatency prometheus.Histogram
	OutboxRetries           *prometheus.CounterVec
	OutboxEventsPurged      prometheus.Counter

	DatabaseOperations *prometheus.CounterVec
	NotificationsSent  *prometheus.CounterVec
}

type builder struct {
	factory   promauto.Factory
	namespace string
	subsystem string
}

func (b builder) counter(name, help string) prometheus.Counter {
	return b.factory.NewCounter(prometheus.CounterOpts{
		Namespace: b.namespace, Subsystem: b.subsystem, Name: name, Help: help,
	})
}

func (b builder) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return b.factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: b.namespace, Subsystem: b.subsystem, Name: name, Help: help,
	}, labels)
}

func (b builder) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return b.factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: b.namespace, Subsystem: b.subsystem, Name: name, Help: help, Buckets: buckets,
	})
}

// NewMetrics registers every collector with reg, or with the default
// registry when reg is nil.
func NewMetrics(namespace, subsystem string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	b := builder{factory: promauto.With(reg), namespace: namespace, subsystem: subsystem}

	return &Metrics{
		Transitions: b.counterVec("lifecycle_transitions_total",
			"Accepted state transitions by entity and edge", "entity", "from", "to"),
		TransitionRejections: b.counterVec("lifecycle_rejections_total",
			"Rejected lifecycle operations by entity and reason", "entity", "reason"),

		OutboxEventsRecorded: b.counterVec("outbox_events_recorded_total",
			"Events written to the outbox", "event_type"),
		OutboxEventsProcessed: b.counter("outbox_events_processed_total",
			"Outbox events published to the broker"),
		OutboxEventsFailed: b.counter("outbox_events_failed_total",
			"Outbox publish attempts the broker rejected"),
		OutboxProcessingLatency: b.histogram("outbox_processing_duration_seconds",
			"Time spent on one outbox batch", prometheus.ExponentialBuckets(0.001, 2.5, 12)),
		OutboxRetries: b.counterVec("outbox_retry_attempts_total",
			"Outbox events that will be retried on a later poll", "event_type"),
		OutboxEventsPurged: b.counter("outbox_events_purged_total",
			"Processed outbox events removed by the cleanup job"),

		DatabaseOperations: b.counterVec("database_operations_total",
			"Repository calls made by background jobs", "operation", "status"),
		NotificationsSent: b.counterVec("notifications_total",
			"Patient notifications by event type and outcome", "event_type", "status"),
	}
}

// New registers on a private registry, for tests and tools that never
// serve /metrics.
func New(namespace string) *Metrics {
	return NewMetrics(namespace, "", prometheus.NewRegistry())
}
