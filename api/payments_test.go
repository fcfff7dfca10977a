package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	stripeapi "github.com/stripe/stripe-go/v81"
	stripewebhook "github.com/stripe/stripe-go/v81/webhook"
	"github.com/voxelhub/community-backend/api/apicommon"
	"github.com/voxelhub/community-backend/db"
)

// postWebhook delivers a signed Stripe event about the checkout session and
// returns the status code.
func postWebhook(c *qt.C, eventID string, eventType stripeapi.EventType, sessionID, paymentStatus, secret string) int {
	body, err := json.Marshal(map[string]any{
		"id":     eventID,
		"object": "event",
		"type":   eventType,
		"data": map[string]any{"object": map[string]any{
			"id":             sessionID,
			"object":         "checkout.session",
			"payment_status": paymentStatus,
			"payment_intent": "pi_" + sessionID,
		}},
	})
	c.Assert(err, qt.IsNil)
	signed := stripewebhook.GenerateTestSignedPayload(&stripewebhook.UnsignedPayload{
		Payload:   body,
		Secret:    secret,
		Timestamp: time.Now(),
	})
	req, err := http.NewRequest(http.MethodPost, testServer.URL+stripeWebhookEndpoint, bytes.NewReader(signed.Payload))
	c.Assert(err, qt.IsNil)
	req.Header.Set("Stripe-Signature", signed.Header)
	resp, err := http.DefaultClient.Do(req)
	c.Assert(err, qt.IsNil)
	defer func() { _ = resp.Body.Close() }()
	_, err = io.Copy(io.Discard, resp.Body)
	c.Assert(err, qt.IsNil)
	return resp.StatusCode
}

func TestStripeWebhook(t *testing.T) {
	c := qt.New(t)
	resetDB(c)
	product := createProduct(c, "Rank VIP", 999, "lp user {player} parent add vip")
	token := testToken(c, testUserID, "", testMCName)

	resp, code := testRequest(c, http.MethodPost, token, &apicommon.OrderRequest{
		Items:    []apicommon.OrderItemRequest{{ProductID: product.ID.Hex(), Quantity: 1}},
		Provider: db.ProviderStripe,
	}, shopOrdersEndpoint)
	c.Assert(code, qt.Equals, http.StatusOK, qt.Commentf("response: %s", resp))
	placed := &apicommon.OrderResponse{}
	decode(c, resp, placed)
	sessionID := placed.Checkout.SessionID

	// missing and wrong signatures
	_, code = testRequest(c, http.MethodPost, "", []byte(`{}`), stripeWebhookEndpoint)
	c.Assert(code, qt.Equals, http.StatusBadRequest)
	code = postWebhook(c, "evt_forged", stripeapi.EventTypeCheckoutSessionCompleted, sessionID, "paid", "whsec_other")
	c.Assert(code, qt.Equals, http.StatusBadRequest)

	code = postWebhook(c, "evt_paid", stripeapi.EventTypeCheckoutSessionCompleted, sessionID, "paid", testWebhookSecret)
	c.Assert(code, qt.Equals, http.StatusOK)
	// redelivered
	code = postWebhook(c, "evt_paid", stripeapi.EventTypeCheckoutSessionCompleted, sessionID, "paid", testWebhookSecret)
	c.Assert(code, qt.Equals, http.StatusOK)

	resp, code = testRequest(c, http.MethodGet, token, nil, shopOrdersEndpoint)
	c.Assert(code, qt.Equals, http.StatusOK)
	orders := []db.ShopOrder{}
	decode(c, resp, &orders)
	c.Assert(orders, qt.HasLen, 1)
	c.Assert(orders[0].Status, qt.Equals, db.OrderStatusPaid)
	c.Assert(orders[0].StripePaymentIntentID, qt.Equals, "pi_"+sessionID)

	// a single delivery is queued
	admin := testToken(c, testAdminID, "admin", "")
	resp, code = testRequest(c, http.MethodGet, admin, nil, adminDeliveriesEndpoint+"?status=PENDING")
	c.Assert(code, qt.Equals, http.StatusOK)
	deliveries := []db.ShopDelivery{}
	decode(c, resp, &deliveries)
	c.Assert(deliveries, qt.HasLen, 1)
	c.Assert(deliveries[0].Commands, qt.DeepEquals, []string{"lp user Alex_42 parent add vip"})
}

func TestStripeWebhookExpired(t *testing.T) {
	c := qt.New(t)
	resetDB(c)
	token := testToken(c, testUserID, "", "")
	approvedAd(c, testUserID, "Blocky")

	resp, code := testRequest(c, http.MethodPost, token,
		&apicommon.BookingRequest{Slot: 4, Days: 2, Provider: db.ProviderStripe}, partnerBookingsEndpoint)
	c.Assert(code, qt.Equals, http.StatusOK, qt.Commentf("response: %s", resp))
	booked := &apicommon.BookingResponse{}
	decode(c, resp, booked)

	code = postWebhook(c, "evt_expired", stripeapi.EventTypeCheckoutSessionExpired,
		booked.Checkout.SessionID, "unpaid", testWebhookSecret)
	c.Assert(code, qt.Equals, http.StatusOK)

	admin := testToken(c, testAdminID, "admin", "")
	resp, code = testRequest(c, http.MethodGet, admin, nil, adminBookingsEndpoint+"?user="+testUserID)
	c.Assert(code, qt.Equals, http.StatusOK)
	bookings := []db.PartnerBooking{}
	decode(c, resp, &bookings)
	c.Assert(bookings, qt.HasLen, 1)
	c.Assert(bookings[0].Status, qt.Equals, db.BookingStatusCanceled)

	// paid too late, acknowledged without activating the booking
	code = postWebhook(c, "evt_late", stripeapi.EventTypeCheckoutSessionCompleted,
		booked.Checkout.SessionID, "paid", testWebhookSecret)
	c.Assert(code, qt.Equals, http.StatusOK)
	resp, code = testRequest(c, http.MethodGet, admin, nil, adminBookingsEndpoint+"?status=ACTIVE")
	c.Assert(code, qt.Equals, http.StatusOK)
	decode(c, resp, &bookings)
	c.Assert(bookings, qt.HasLen, 0)
}

func TestPayPalNotConfigured(t *testing.T) {
	c := qt.New(t)
	token := testToken(c, testUserID, "", "")
	resp, code := testRequest(c, http.MethodPost, token,
		&apicommon.PayPalCaptureRequest{OrderID: "PAYPAL-1"}, paypalCaptureEndpoint)
	c.Assert(code, qt.Equals, http.StatusServiceUnavailable)
	c.Assert(string(resp), qt.Contains, "50007")
}
