package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestConversationMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewConversationMetrics(reg)
	m.ObserveWebhook("shopify", "ok")
	m.ObserveOutbound("sent")
	m.ObserveTransition("CONFIRMATION", "COMPLETE")
	m.ObserveWebhookLatency("twilio", 0.25)
}

func TestConversationMetricsNilSafe(t *testing.T) {
	var m *ConversationMetrics
	m.ObserveWebhook("shopify", "ok")
	m.ObserveOutbound("sent")
	m.ObserveTransition("a", "b")
	m.ObserveWebhookLatency("twilio", 0.1)
}
