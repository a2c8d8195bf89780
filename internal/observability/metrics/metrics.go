package metrics

import "github.com/prometheus/client_golang/prometheus"

// ConversationMetrics exposes counters/histograms for the sizing flows.
type ConversationMetrics struct {
	webhooksTotal    *prometheus.CounterVec
	outboundTotal    *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	webhookLatency   *prometheus.HistogramVec
}

func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	m := &ConversationMetrics{
		webhooksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sizeagent",
			Subsystem: "webhooks",
			Name:      "inbound_total",
			Help:      "Total inbound webhook requests",
		}, []string{"source", "status"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sizeagent",
			Subsystem: "messaging",
			Name:      "outbound_total",
			Help:      "Total outbound WhatsApp sends",
		}, []string{"status"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sizeagent",
			Subsystem: "conversation",
			Name:      "phase_transitions_total",
			Help:      "Phase transitions taken during reply processing",
		}, []string{"from", "to"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sizeagent",
			Subsystem: "webhooks",
			Name:      "latency_seconds",
			Help:      "Latency of webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.webhooksTotal, m.outboundTotal, m.transitionsTotal, m.webhookLatency)
	return m
}

func (m *ConversationMetrics) ObserveWebhook(source, status string) {
	if m == nil {
		return
	}
	m.webhooksTotal.WithLabelValues(source, status).Inc()
}

func (m *ConversationMetrics) ObserveOutbound(status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(status).Inc()
}

func (m *ConversationMetrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(from, to).Inc()
}

func (m *ConversationMetrics) ObserveWebhookLatency(source string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(source).Observe(seconds)
}
