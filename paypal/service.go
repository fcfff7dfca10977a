// Package paypal takes the payments of partner bookings and shop orders
// through PayPal orders. The buyer approves the order on PayPal and the
// frontend asks for its capture once redirected back.
package paypal

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	paypalapi "github.com/plutov/paypal/v4"
	"github.com/voxelhub/community-backend/db"
	"github.com/voxelhub/community-backend/internal"
	"github.com/voxelhub/community-backend/metrics"
	"github.com/voxelhub/community-backend/payments"
	"go.vocdoni.io/dvote/log"
)

const (
	orderStatusCompleted = "COMPLETED"
	// maxDescriptionLen is the longest purchase unit description PayPal takes.
	maxDescriptionLen = 127
)

// captureNamespace scopes the request IDs of order captures.
var captureNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("voxelhub:paypal:capture"))

// Service provides the PayPal payment flows.
type Service struct {
	gateway  Gateway
	payments *payments.Reconciler
	config   *Config
	now      func() time.Time
}

// NewService creates a new PayPal service
func NewService(config *Config, gateway Gateway, reconciler *payments.Reconciler) (*Service, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if gateway == nil || reconciler == nil {
		return nil, fmt.Errorf("gateway and reconciler are required")
	}
	return &Service{
		gateway:  gateway,
		payments: reconciler,
		config:   config,
		now:      time.Now,
	}, nil
}

// Checkout is a PayPal order waiting for the approval of the buyer.
type Checkout struct {
	OrderID    string `json:"orderId"`
	ApproveURL string `json:"approveUrl"`
}

// CheckoutForBooking creates the PayPal order that pays a partner booking.
func (s *Service) CheckoutForBooking(ctx context.Context, booking *db.PartnerBooking) (*Checkout, error) {
	return s.Checkout(ctx, payments.BookingTarget(booking))
}

// CheckoutForOrder creates the PayPal order that pays a shop order.
func (s *Service) CheckoutForOrder(ctx context.Context, order *db.ShopOrder) (*Checkout, error) {
	return s.Checkout(ctx, payments.OrderTarget(order))
}

// Checkout creates a PayPal order for the target and links it to the target.
// A new checkout replaces the PayPal order linked before, which can no longer
// be captured.
func (s *Service) Checkout(ctx context.Context, target *payments.Target) (*Checkout, error) {
	if !target.Pending() || target.Amount <= 0 {
		return nil, ErrNothingToPay
	}
	description := truncate(target.Description, maxDescriptionLen)
	units := []paypalapi.PurchaseUnitRequest{{
		ReferenceID: string(target.Kind),
		CustomID:    target.ID.Hex(),
		Description: description,
		Amount: &paypalapi.PurchaseUnitAmount{
			Currency: strings.ToUpper(target.Currency),
			Value:    internal.FormatAmount(target.Amount, target.Currency),
		},
	}}
	appContext := &paypalapi.ApplicationContext{
		BrandName:          s.config.BrandName,
		ShippingPreference: paypalapi.ShippingPreferenceNoShipping,
		UserAction:         paypalapi.UserActionPayNow,
		ReturnURL:          s.config.ReturnURL,
		CancelURL:          s.config.CancelURL,
	}
	order, err := s.gateway.CreateOrder(ctx, paypalapi.OrderIntentCapture, units, nil, appContext)
	if err != nil {
		metrics.IncPayment(string(db.ProviderPayPal), string(target.Kind), "failed")
		return nil, NewPayPalError(ErrAPICallFailed.Code, "failed to create paypal order", err)
	}
	link := approveLink(order)
	if link == "" {
		return nil, NewPayPalError(ErrNoApproveLink.Code, "order "+order.ID, nil)
	}
	if err := s.payments.SetCheckout(target, db.ProviderPayPal, "", order.ID); err != nil {
		return nil, err
	}
	metrics.IncPayment(string(db.ProviderPayPal), string(target.Kind), "initiated")
	log.Infow("paypal order created",
		"kind", target.Kind,
		"refID", target.ID.Hex(),
		"paypalOrder", order.ID,
		"amount", target.Amount,
		"currency", target.Currency)
	return &Checkout{OrderID: order.ID, ApproveURL: link}, nil
}

// Capture takes the money of an approved PayPal order and settles its
// target. It can be called any number of times: targets already settled are
// returned without calling PayPal, and an order PayPal reports as already
// captured is accepted once its status is COMPLETED.
func (s *Service) Capture(ctx context.Context, paypalOrderID string) (*payments.Target, error) {
	target, err := s.payments.ByPayPalOrder(paypalOrderID)
	if err != nil {
		return nil, err
	}
	if target.Settled {
		return target, nil
	}
	if !target.Pending() {
		// released before the capture, no money is taken
		return nil, ErrNothingToPay
	}

	requestID := uuid.NewSHA1(captureNamespace, []byte(paypalOrderID)).String()
	var captures []paypalapi.CaptureAmount
	resp, err := s.gateway.CaptureOrderWithPaypalRequestId(ctx, paypalOrderID, paypalapi.CaptureOrderRequest{}, requestID, nil)
	switch {
	case hasIssue(err, issueAlreadyCaptured):
		order, err := s.gateway.GetOrder(ctx, paypalOrderID)
		if err != nil {
			return nil, NewPayPalError(ErrAPICallFailed.Code, "failed to get paypal order", err)
		}
		if order.Status != orderStatusCompleted {
			return nil, NewPayPalError(ErrPaymentNotCompleted.Code, "order status "+order.Status, nil)
		}
		for _, unit := range order.PurchaseUnits {
			if unit.Payments != nil {
				captures = append(captures, unit.Payments.Captures...)
			}
		}
	case err != nil:
		metrics.IncPayment(string(db.ProviderPayPal), string(target.Kind), "failed")
		return nil, NewPayPalError(ErrAPICallFailed.Code, "failed to capture paypal order", err)
	default:
		if resp.Status != orderStatusCompleted {
			return nil, NewPayPalError(ErrPaymentNotCompleted.Code, "capture status "+resp.Status, nil)
		}
		for _, unit := range resp.PurchaseUnits {
			if unit.Payments != nil {
				captures = append(captures, unit.Payments.Captures...)
			}
		}
	}
	if len(captures) == 0 {
		return nil, NewPayPalError(ErrPaymentNotCompleted.Code, "no capture in order "+paypalOrderID, nil)
	}
	capture := captures[0]
	if err := checkAmount(target, capture.Amount); err != nil {
		log.Errorw(err, fmt.Sprintf("paypal capture %s of order %s does not match %s %s",
			capture.ID, paypalOrderID, target.Kind, target.ID.Hex()))
		return nil, err
	}

	settled, applied, err := s.payments.Settle(target, db.Payment{
		Provider:        db.ProviderPayPal,
		PayPalOrderID:   paypalOrderID,
		PayPalCaptureID: capture.ID,
		PaidAt:          s.now(),
	})
	if err != nil {
		return nil, err
	}
	if applied {
		log.Infow("paypal order captured",
			"kind", settled.Kind,
			"refID", settled.ID.Hex(),
			"paypalOrder", paypalOrderID,
			"capture", capture.ID)
	}
	return settled, nil
}

// truncate cuts s to its first n characters.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// checkAmount verifies that the captured amount is the one of the target.
func checkAmount(target *payments.Target, amount *paypalapi.PurchaseUnitAmount) error {
	if amount == nil {
		return nil
	}
	want := internal.FormatAmount(target.Amount, target.Currency)
	if amount.Value != want || !strings.EqualFold(amount.Currency, target.Currency) {
		return NewPayPalError(ErrAmountMismatch.Code,
			fmt.Sprintf("captured %s %s, expected %s %s", amount.Value, amount.Currency, want, target.Currency), nil)
	}
	return nil
}
