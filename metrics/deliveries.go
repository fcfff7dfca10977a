package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		deliveriesTotal,
		deliveryLatency,
	)
}

var (
	deliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_deliveries_total",
			Help: "Delivery queue operations by result (enqueued/claimed/completed/requeued/failed/retried).",
		},
		[]string{"result"},
	)

	deliveryLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shop_delivery_latency_seconds",
			Help:    "Time from enqueue to completion of a delivery.",
			Buckets: []float64{1, 5, 15, 30, 60, 300, 900, 3600, 4 * 3600},
		},
	)
)

// IncDelivery counts a delivery queue operation.
func IncDelivery(result string) {
	deliveriesTotal.WithLabelValues(norm(result)).Inc()
}

// ObserveDeliveryCompleted records the time a completed delivery spent in
// the queue.
func ObserveDeliveryCompleted(createdAt, completedAt time.Time) {
	deliveriesTotal.WithLabelValues("completed").Inc()
	deliveryLatency.Observe(completedAt.Sub(createdAt).Seconds())
}
