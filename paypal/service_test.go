package paypal

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	qt "github.com/frankban/quicktest"
	paypalapi "github.com/plutov/paypal/v4"
	"github.com/voxelhub/community-backend/db"
	"github.com/voxelhub/community-backend/partners"
	"github.com/voxelhub/community-backend/payments"
	"github.com/voxelhub/community-backend/shop"
)

const testUser = "buyer-1"

// fakeGateway plays the PayPal orders API. Orders are approved as soon as
// they are created.
type fakeGateway struct {
	mu             sync.Mutex
	units          [][]paypalapi.PurchaseUnitRequest
	captured       map[string]*paypalapi.PurchaseUnitAmount
	requests       []string
	captures       int
	failWith       error
	capturedBefore bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{captured: make(map[string]*paypalapi.PurchaseUnitAmount)}
}

func (f *fakeGateway) CreateOrder(_ context.Context, intent string, units []paypalapi.PurchaseUnitRequest,
	_ *paypalapi.PaymentSource, _ *paypalapi.ApplicationContext,
) (*paypalapi.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if intent != paypalapi.OrderIntentCapture {
		return nil, fmt.Errorf("unexpected intent %s", intent)
	}
	f.units = append(f.units, units)
	id := fmt.Sprintf("PAYPAL-%d", len(f.units))
	return &paypalapi.Order{
		ID:     id,
		Status: "CREATED",
		Links: []paypalapi.Link{
			{Rel: "self", Href: "https://api.paypal.test/v2/checkout/orders/" + id},
			{Rel: "approve", Href: "https://www.paypal.test/checkoutnow?token=" + id},
		},
	}, nil
}

func (f *fakeGateway) GetOrder(_ context.Context, orderID string) (*paypalapi.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	amount, ok := f.captured[orderID]
	if !ok {
		return &paypalapi.Order{ID: orderID, Status: "APPROVED"}, nil
	}
	return &paypalapi.Order{
		ID:     orderID,
		Status: orderStatusCompleted,
		PurchaseUnits: []paypalapi.PurchaseUnit{{
			Payments: &paypalapi.CapturedPayments{
				Captures: []paypalapi.CaptureAmount{{ID: "CAPTURE-" + orderID, Amount: amount}},
			},
		}},
	}, nil
}

func (f *fakeGateway) CaptureOrderWithPaypalRequestId(_ context.Context, orderID string, _ paypalapi.CaptureOrderRequest,
	requestID string, _ *paypalapi.CaptureOrderMockResponse,
) (*paypalapi.CaptureOrderResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, requestID)
	if f.failWith != nil {
		return nil, f.failWith
	}
	amount := f.orderAmount(orderID)
	if _, ok := f.captured[orderID]; ok || f.capturedBefore {
		f.captured[orderID] = amount
		return nil, &paypalapi.ErrorResponse{
			Response: &http.Response{
				StatusCode: http.StatusUnprocessableEntity,
				Request:    httptest.NewRequest(http.MethodPost, "/v2/checkout/orders/"+orderID+"/capture", nil),
			},
			Name:    "UNPROCESSABLE_ENTITY",
			Details: []paypalapi.ErrorResponseDetail{{Issue: issueAlreadyCaptured}},
		}
	}
	f.captures++
	f.captured[orderID] = amount
	return &paypalapi.CaptureOrderResponse{
		ID:     orderID,
		Status: orderStatusCompleted,
		PurchaseUnits: []paypalapi.CapturedPurchaseUnit{{
			Payments: &paypalapi.CapturedPayments{
				Captures: []paypalapi.CaptureAmount{{ID: "CAPTURE-" + orderID, Amount: amount}},
			},
		}},
	}, nil
}

// orderAmount returns the amount the order was created with.
func (f *fakeGateway) orderAmount(orderID string) *paypalapi.PurchaseUnitAmount {
	var n int
	if _, err := fmt.Sscanf(orderID, "PAYPAL-%d", &n); err != nil || n < 1 || n > len(f.units) {
		return nil
	}
	return f.units[n-1][0].Amount
}

type testEnv struct {
	service *Service
	gateway *fakeGateway
	ledger  *partners.Ledger
	shop    *shop.Service
}

func newTestEnv(c *qt.C) *testEnv {
	c.Cleanup(func() { c.Assert(testDB.Reset(), qt.IsNil) })
	ledger, err := partners.New(testDB, partners.DefaultConfig(), silent{})
	c.Assert(err, qt.IsNil)
	shopService, err := shop.New(testDB, shop.DefaultConfig(), silent{})
	c.Assert(err, qt.IsNil)
	gateway := newFakeGateway()
	service, err := NewService(&Config{
		ClientID:  "client",
		Secret:    "secret",
		Sandbox:   true,
		ReturnURL: "https://voxel.test/paypal/return",
		CancelURL: "https://voxel.test/paypal/cancel",
	}, gateway, payments.NewReconciler(ledger, shopService))
	c.Assert(err, qt.IsNil)
	return &testEnv{service: service, gateway: gateway, ledger: ledger, shop: shopService}
}

func (e *testEnv) booking(c *qt.C) *db.PartnerBooking {
	ad, err := e.ledger.SubmitAd(testUser, &db.PartnerAd{ServerName: "Blocky"})
	c.Assert(err, qt.IsNil)
	_, err = e.ledger.ReviewAd(ad.ID, "admin", true, "")
	c.Assert(err, qt.IsNil)
	booking, err := e.ledger.Reserve(testUser, 3, 2, db.ProviderPayPal)
	c.Assert(err, qt.IsNil)
	return booking
}

func TestNewService(t *testing.T) {
	c := qt.New(t)
	_, err := NewService(&Config{ClientID: "client"}, newFakeGateway(), nil)
	c.Assert(err, qt.ErrorIs, ErrInvalidConfiguration)

	conf := &Config{Sandbox: true}
	c.Assert(conf.apiBase(), qt.Equals, paypalapi.APIBaseSandBox)
	conf.Sandbox = false
	c.Assert(conf.apiBase(), qt.Equals, paypalapi.APIBaseLive)
}

func TestCheckout(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	ctx := context.Background()
	booking := env.booking(c)

	checkout, err := env.service.CheckoutForBooking(ctx, booking)
	c.Assert(err, qt.IsNil)
	c.Assert(checkout.OrderID, qt.Equals, "PAYPAL-1")
	c.Assert(checkout.ApproveURL, qt.Equals, "https://www.paypal.test/checkoutnow?token=PAYPAL-1")

	unit := env.gateway.units[0][0]
	c.Assert(unit.CustomID, qt.Equals, booking.ID.Hex())
	c.Assert(unit.ReferenceID, qt.Equals, string(payments.KindBooking))
	c.Assert(unit.Amount.Currency, qt.Equals, "EUR")
	c.Assert(unit.Amount.Value, qt.Equals, "2.00")

	stored, err := env.ledger.Booking(booking.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(stored.PayPalOrderID, qt.Equals, "PAYPAL-1")
}

func TestCheckoutLongDescription(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)

	var items []shop.Item
	for _, name := range []string{strings.Repeat("a", 60), strings.Repeat("ñ", 60)} {
		product, err := env.shop.SetProduct(&db.ShopProduct{
			Name:     name,
			Price:    100,
			Currency: "eur",
			Commands: []string{"say {player}"},
			Active:   true,
		})
		c.Assert(err, qt.IsNil)
		items = append(items, shop.Item{ProductID: product.ID, Quantity: 1})
	}
	order, err := env.shop.CreateOrder(testUser, "Alex_42", items, db.ProviderPayPal)
	c.Assert(err, qt.IsNil)
	_, err = env.service.CheckoutForOrder(context.Background(), order)
	c.Assert(err, qt.IsNil)

	description := env.gateway.units[0][0].Description
	c.Assert(utf8.ValidString(description), qt.IsTrue)
	c.Assert(utf8.RuneCountInString(description), qt.Equals, maxDescriptionLen)
	c.Assert(description, qt.Equals, "Shop order: "+strings.Repeat("a", 60)+", "+strings.Repeat("ñ", 53))
}

func TestCapture(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	ctx := context.Background()
	booking := env.booking(c)

	checkout, err := env.service.CheckoutForBooking(ctx, booking)
	c.Assert(err, qt.IsNil)

	_, err = env.service.Capture(ctx, "PAYPAL-404")
	c.Assert(err, qt.ErrorIs, payments.ErrPaymentNotFound)

	target, err := env.service.Capture(ctx, checkout.OrderID)
	c.Assert(err, qt.IsNil)
	c.Assert(target.Settled, qt.IsTrue)
	c.Assert(target.Status, qt.Equals, string(db.BookingStatusActive))

	active, err := env.ledger.Booking(booking.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(active.PayPalCaptureID, qt.Equals, "CAPTURE-"+checkout.OrderID)

	// settled targets are not captured again
	_, err = env.service.Capture(ctx, checkout.OrderID)
	c.Assert(err, qt.IsNil)
	c.Assert(env.gateway.requests, qt.HasLen, 1)
	c.Assert(env.gateway.captures, qt.Equals, 1)
}

func TestCaptureAlreadyCaptured(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	ctx := context.Background()

	product, err := env.shop.SetProduct(&db.ShopProduct{
		Name:     "Kit",
		Price:    1250,
		Currency: "eur",
		Commands: []string{"kit give {player} starter"},
		Active:   true,
	})
	c.Assert(err, qt.IsNil)
	order, err := env.shop.CreateOrder(testUser, "Alex_42", []shop.Item{{ProductID: product.ID, Quantity: 1}}, db.ProviderPayPal)
	c.Assert(err, qt.IsNil)
	checkout, err := env.service.CheckoutForOrder(ctx, order)
	c.Assert(err, qt.IsNil)
	c.Assert(env.gateway.units[0][0].Amount.Value, qt.Equals, "12.50")

	// a previous request captured the order but its response was lost
	env.gateway.capturedBefore = true
	target, err := env.service.Capture(ctx, checkout.OrderID)
	c.Assert(err, qt.IsNil)
	c.Assert(target.Kind, qt.Equals, payments.KindOrder)
	c.Assert(target.Status, qt.Equals, string(db.OrderStatusPaid))

	delivery, err := testDB.ShopDeliveryByOrder(order.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(delivery.Commands, qt.DeepEquals, []string{"kit give Alex_42 starter"})
}

func TestCaptureRequestID(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	ctx := context.Background()
	booking := env.booking(c)
	checkout, err := env.service.CheckoutForBooking(ctx, booking)
	c.Assert(err, qt.IsNil)

	env.gateway.failWith = fmt.Errorf("connection reset")
	_, err = env.service.Capture(ctx, checkout.OrderID)
	c.Assert(err, qt.ErrorIs, ErrAPICallFailed)
	env.gateway.failWith = nil
	_, err = env.service.Capture(ctx, checkout.OrderID)
	c.Assert(err, qt.IsNil)

	// retries carry the same request ID so PayPal captures once
	c.Assert(env.gateway.requests, qt.HasLen, 2)
	c.Assert(env.gateway.requests[0], qt.Equals, env.gateway.requests[1])
}

func TestCaptureReleased(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	ctx := context.Background()
	booking := env.booking(c)
	checkout, err := env.service.CheckoutForBooking(ctx, booking)
	c.Assert(err, qt.IsNil)

	_, err = env.ledger.Cancel(booking.ID, testUser, false, "")
	c.Assert(err, qt.IsNil)
	_, err = env.service.Capture(ctx, checkout.OrderID)
	c.Assert(err, qt.ErrorIs, ErrNothingToPay)
	c.Assert(env.gateway.requests, qt.HasLen, 0)
}

func TestCheckAmount(t *testing.T) {
	c := qt.New(t)
	target := &payments.Target{Amount: 500, Currency: "eur"}
	c.Assert(checkAmount(target, &paypalapi.PurchaseUnitAmount{Currency: "EUR", Value: "5.00"}), qt.IsNil)
	c.Assert(checkAmount(target, &paypalapi.PurchaseUnitAmount{Currency: "EUR", Value: "0.05"}), qt.ErrorIs, ErrAmountMismatch)
	c.Assert(checkAmount(target, &paypalapi.PurchaseUnitAmount{Currency: "USD", Value: "5.00"}), qt.ErrorIs, ErrAmountMismatch)
}
