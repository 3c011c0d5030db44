package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outbox delivery outcomes.
const (
	DeliveryPublished    = "published"
	DeliveryRetried      = "retried"
	DeliveryDeadLettered = "dead_lettered"
)

// OutboxMetrics tracks the order event publisher per event type. A nil
// receiver is a no-op.
type OutboxMetrics struct {
	batchDuration prometheus.Histogram
	batchErrors   prometheus.Counter
	deliveries    *prometheus.CounterVec
	lag           *prometheus.HistogramVec
}

// NewOutboxMetrics registers the publisher metrics on the provided registerer.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trailpack_outbox_batch_duration_seconds",
			Help:    "Time spent draining one outbox batch.",
			Buckets: prometheus.DefBuckets,
		}),
		batchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trailpack_outbox_batch_errors_total",
			Help: "Outbox batches aborted by a database error.",
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trailpack_outbox_order_events_total",
			Help: "Order events handled by the publisher, by event type and outcome.",
		}, []string{"event_type", "outcome"}),
		lag: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trailpack_outbox_publish_lag_seconds",
			Help:    "Delay between an order event being recorded and reaching Pub/Sub.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 15, 60, 300, 900},
		}, []string{"event_type"}),
	}
	reg.MustRegister(m.batchDuration, m.batchErrors, m.deliveries, m.lag)
	return m
}

// ObserveBatch records how long a non-empty or failed batch took.
func (m *OutboxMetrics) ObserveBatch(elapsed time.Duration) {
	if m == nil || m.batchDuration == nil {
		return
	}
	m.batchDuration.Observe(elapsed.Seconds())
}

// IncBatchError counts a batch that rolled back.
func (m *OutboxMetrics) IncBatchError() {
	if m == nil || m.batchErrors == nil {
		return
	}
	m.batchErrors.Inc()
}

// IncDelivery counts one event outcome.
func (m *OutboxMetrics) IncDelivery(eventType, outcome string) {
	if m == nil || m.deliveries == nil {
		return
	}
	m.deliveries.WithLabelValues(normalizeLabel(eventType), outcome).Inc()
}

// ObservePublishLag records the time from the row's creation to its publish.
func (m *OutboxMetrics) ObservePublishLag(eventType string, lag time.Duration) {
	if m == nil || m.lag == nil || lag < 0 {
		return
	}
	m.lag.WithLabelValues(normalizeLabel(eventType)).Observe(lag.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
