package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all custom Prometheus metrics for the application
type Metrics struct {
	// Webhook pipeline
	WebhookEvents   *prometheus.CounterVec
	IntentDecisions *prometheus.CounterVec
	DispatchLatency prometheus.Histogram

	// Outcomes
	RepliesSent        *prometheus.CounterVec
	CapabilityFailures *prometheus.CounterVec
	QuotaDenials       *prometheus.CounterVec
}

var globalMetrics *Metrics

// InitMetrics initializes the Prometheus metrics. sessionCount feeds a gauge
// with the number of live session records.
func InitMetrics(sessionCount func() int) *Metrics {
	metrics := &Metrics{
		WebhookEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pibot_webhook_events_total",
			Help: "Total webhook events received, by message type",
		}, []string{"type"}),

		IntentDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pibot_intent_decisions_total",
			Help: "Total classifier decisions, by intent kind",
		}, []string{"intent"}),

		DispatchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pibot_dispatch_duration_seconds",
			Help:    "End-to-end event dispatch latency in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}, // image generation can take minutes
		}),

		RepliesSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pibot_replies_total",
			Help: "Total outbound replies, by result",
		}, []string{"result"}), // "ok", "fallback", "dropped"

		CapabilityFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pibot_capability_failures_total",
			Help: "Total external capability failures, by capability",
		}, []string{"capability"}),

		QuotaDenials: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pibot_quota_denials_total",
			Help: "Total usage gate denials, by reason",
		}, []string{"reason"}),
	}

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "pibot_sessions_active",
			Help: "Current number of live session records",
		},
		func() float64 {
			if sessionCount != nil {
				return float64(sessionCount())
			}
			return 0
		},
	))

	globalMetrics = metrics
	return metrics
}

// GetMetrics returns the global metrics instance; nil before InitMetrics
func GetMetrics() *Metrics {
	return globalMetrics
}

// RecordWebhookEvent records one inbound event
func (m *Metrics) RecordWebhookEvent(messageType string) {
	m.WebhookEvents.WithLabelValues(messageType).Inc()
}

// RecordIntent records a classifier decision
func (m *Metrics) RecordIntent(intent string) {
	m.IntentDecisions.WithLabelValues(intent).Inc()
}

// RecordDispatchLatency records one event's dispatch latency
func (m *Metrics) RecordDispatchLatency(seconds float64) {
	m.DispatchLatency.Observe(seconds)
}

// RecordReply records an outbound reply outcome
func (m *Metrics) RecordReply(result string) {
	m.RepliesSent.WithLabelValues(result).Inc()
}

// RecordCapabilityFailure records an external capability failure
func (m *Metrics) RecordCapabilityFailure(capability string) {
	m.CapabilityFailures.WithLabelValues(capability).Inc()
}

// RecordQuotaDenial records a usage gate denial
func (m *Metrics) RecordQuotaDenial(reason string) {
	m.QuotaDenials.WithLabelValues(reason).Inc()
}
