package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		bookingsTotal,
		bookingConflicts,
		bookingsSwept,
	)
}

var (
	bookingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partner_bookings_total",
			Help: "Partner booking transitions by resulting status and provider.",
		},
		[]string{"status", "provider"},
	)

	bookingConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partner_booking_conflicts_total",
			Help: "Reservations rejected by the active key indexes, by reason.",
		},
		[]string{"reason"},
	)

	bookingsSwept = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partner_bookings_swept_total",
			Help: "Bookings released by the sweeper (canceled on payment timeout or expired).",
		},
		[]string{"status"},
	)
)

// BookingTransition counts a booking entering status.
func BookingTransition(status, provider string) {
	bookingsTotal.WithLabelValues(norm(status), norm(provider)).Inc()
}

// BookingConflict counts a reservation rejected because the slot or the ad
// was already held.
func BookingConflict(reason string) {
	bookingConflicts.WithLabelValues(norm(reason)).Inc()
}

// BookingsSwept counts the bookings canceled and expired by one sweep.
func BookingsSwept(canceled, expired int64) {
	bookingsSwept.WithLabelValues("canceled").Add(float64(canceled))
	bookingsSwept.WithLabelValues("expired").Add(float64(expired))
}
