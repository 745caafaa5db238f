package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics records publisher throughput and failures.
type OutboxMetrics struct {
	duration     *prometheus.HistogramVec
	published    *prometheus.CounterVec
	failed       *prometheus.CounterVec
	deadLettered *prometheus.CounterVec
	batchSize    prometheus.Histogram
}

// NewOutboxMetrics registers the outbox publisher metrics on the provided registerer.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hera_outbox_publish_duration_seconds",
		Help:    "Duration of outbox publish attempts in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"event_type"})
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hera_outbox_published_total",
		Help: "Outbox events published successfully.",
	}, []string{"event_type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hera_outbox_failed_total",
		Help: "Outbox publish attempts that failed and will be retried.",
	}, []string{"event_type"})
	deadLettered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hera_outbox_dead_lettered_total",
		Help: "Outbox events moved to the dead letter queue.",
	}, []string{"event_type", "reason"})
	batchSize := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "hera_outbox_batch_size",
		Help:    "Rows claimed per publisher poll.",
		Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
	})
	reg.MustRegister(duration, published, failed, deadLettered, batchSize)
	return &OutboxMetrics{
		duration:     duration,
		published:    published,
		failed:       failed,
		deadLettered: deadLettered,
		batchSize:    batchSize,
	}
}

// ObserveDuration records the time spent publishing one event.
func (o *OutboxMetrics) ObserveDuration(eventType string, duration time.Duration) {
	if o == nil || o.duration == nil {
		return
	}
	o.duration.WithLabelValues(normalizeLabel(eventType)).Observe(duration.Seconds())
}

// IncPublished increments the success counter.
func (o *OutboxMetrics) IncPublished(eventType string) {
	if o == nil || o.published == nil {
		return
	}
	o.published.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncFailed increments the retryable failure counter.
func (o *OutboxMetrics) IncFailed(eventType string) {
	if o == nil || o.failed == nil {
		return
	}
	o.failed.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncDeadLettered increments the DLQ counter.
func (o *OutboxMetrics) IncDeadLettered(eventType, reason string) {
	if o == nil || o.deadLettered == nil {
		return
	}
	o.deadLettered.WithLabelValues(normalizeLabel(eventType), normalizeLabel(reason)).Inc()
}

// ObserveBatch records how many rows a poll claimed.
func (o *OutboxMetrics) ObserveBatch(size int) {
	if o == nil || o.batchSize == nil {
		return
	}
	o.batchSize.Observe(float64(size))
}
