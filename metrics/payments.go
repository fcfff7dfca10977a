package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentsTotal,
		webhookEvents,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payments by provider, kind (booking/order) and outcome (initiated/captured/duplicate/rejected/failed).",
		},
		[]string{"provider", "kind", "outcome"},
	)

	webhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhook_events_total",
			Help: "Provider webhook events by type and result (processed/duplicate/ignored/invalid).",
		},
		[]string{"provider", "type", "result"},
	)
)

// IncPayment counts a payment step.
func IncPayment(provider, kind, outcome string) {
	paymentsTotal.WithLabelValues(norm(provider), norm(kind), norm(outcome)).Inc()
}

// IncWebhookEvent counts a received webhook event.
func IncWebhookEvent(provider, eventType, result string) {
	webhookEvents.WithLabelValues(norm(provider), eventType, norm(result)).Inc()
}
