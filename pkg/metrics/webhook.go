package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics records outcomes of inbound channel webhook deliveries.
type WebhookMetrics struct {
	duration  *prometheus.HistogramVec
	delivered *prometheus.CounterVec
	changes   *prometheus.CounterVec
	failures  *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webhook_duration_seconds",
		Help:    "Duration of webhook processing in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"channel_type"})
	delivered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_deliveries_total",
		Help: "Accepted webhook deliveries.",
	}, []string{"channel_type", "topic"})
	changes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_stock_changes_total",
		Help: "Stock changes applied from webhook deliveries.",
	}, []string{"channel_type"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_failures_total",
		Help: "Webhook deliveries rejected or partially failed.",
	}, []string{"channel_type", "reason"})
	reg.MustRegister(duration, delivered, changes, failures)
	return &WebhookMetrics{
		duration:  duration,
		delivered: delivered,
		changes:   changes,
		failures:  failures,
	}
}

// ObserveDuration records processing time for one delivery.
func (w *WebhookMetrics) ObserveDuration(channelType string, duration time.Duration) {
	if w == nil || w.duration == nil {
		return
	}
	w.duration.WithLabelValues(normalizeLabel(channelType)).Observe(duration.Seconds())
}

// IncDelivered counts an accepted delivery for the given topic.
func (w *WebhookMetrics) IncDelivered(channelType, topic string) {
	if w == nil || w.delivered == nil {
		return
	}
	w.delivered.WithLabelValues(normalizeLabel(channelType), normalizeLabel(topic)).Inc()
}

// AddStockChanges counts stock changes applied from a delivery.
func (w *WebhookMetrics) AddStockChanges(channelType string, n int) {
	if w == nil || w.changes == nil || n <= 0 {
		return
	}
	w.changes.WithLabelValues(normalizeLabel(channelType)).Add(float64(n))
}

// IncFailure counts a rejected or partially failed delivery.
func (w *WebhookMetrics) IncFailure(channelType, reason string) {
	if w == nil || w.failures == nil {
		return
	}
	w.failures.WithLabelValues(normalizeLabel(channelType), normalizeLabel(reason)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
