package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	c := qt.New(t)
	MustRegister()
	MustRegister() // registering twice is a no-op

	BookingConflict(" Slot_Taken ")
	c.Assert(testutil.ToFloat64(bookingConflicts.WithLabelValues("slot_taken")), qt.Equals, float64(1))

	BookingsSwept(2, 3)
	c.Assert(testutil.ToFloat64(bookingsSwept.WithLabelValues("canceled")), qt.Equals, float64(2))
	c.Assert(testutil.ToFloat64(bookingsSwept.WithLabelValues("expired")), qt.Equals, float64(3))

	now := time.Now()
	ObserveDeliveryCompleted(now.Add(-time.Minute), now)
	c.Assert(testutil.ToFloat64(deliveriesTotal.WithLabelValues("completed")), qt.Equals, float64(1))

	IncPayment("STRIPE", "booking", "captured")
	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	c.Assert(w.Code, qt.Equals, http.StatusOK)
	c.Assert(strings.Contains(w.Body.String(),
		`payments_total{kind="booking",outcome="captured",provider="stripe"} 1`), qt.IsTrue)
}
