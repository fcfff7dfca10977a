// Package stripe takes the payments of partner bookings and shop orders
// through Stripe Checkout, and settles them from the webhook events or from
// the confirmation requested by the frontend after the redirect.
package stripe

import (
	"fmt"
	"time"

	stripeapi "github.com/stripe/stripe-go/v81"
	"github.com/voxelhub/community-backend/db"
	"github.com/voxelhub/community-backend/metrics"
	"github.com/voxelhub/community-backend/payments"
	"go.vocdoni.io/dvote/log"
)

// minSessionTTL is the shortest expiration Stripe accepts for a checkout
// session.
const minSessionTTL = 30 * time.Minute

// Service provides the main business logic for Stripe operations
type Service struct {
	gateway  Gateway
	events   EventStore
	payments *payments.Reconciler
	config   *Config
	now      func() time.Time
}

// NewService creates a new Stripe service
func NewService(config *Config, gateway Gateway, events EventStore, reconciler *payments.Reconciler) (*Service, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if gateway == nil || events == nil || reconciler == nil {
		return nil, fmt.Errorf("gateway, event store and reconciler are required")
	}
	return &Service{
		gateway:  gateway,
		events:   events,
		payments: reconciler,
		config:   config,
		now:      time.Now,
	}, nil
}

// Checkout is a started Stripe checkout.
type Checkout struct {
	SessionID string    `json:"sessionId"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// CheckoutForBooking creates the checkout session that pays a partner
// booking.
func (s *Service) CheckoutForBooking(booking *db.PartnerBooking) (*Checkout, error) {
	return s.Checkout(payments.BookingTarget(booking))
}

// CheckoutForOrder creates the checkout session that pays a shop order.
func (s *Service) CheckoutForOrder(order *db.ShopOrder) (*Checkout, error) {
	return s.Checkout(payments.OrderTarget(order))
}

// Checkout creates the checkout session that pays the target and links it
// to the target. Asking again for the same target returns the same session.
func (s *Service) Checkout(target *payments.Target) (*Checkout, error) {
	if !target.Pending() || target.Amount <= 0 {
		return nil, ErrNothingToPay
	}
	// the expiration is derived from the target so retried requests carry the
	// same parameters as the first one
	expiresAt := target.CreatedAt.Add(s.sessionTTL()).Truncate(time.Second)
	if expiresAt.Before(s.now().Add(minSessionTTL)) {
		return nil, NewStripeError(ErrNothingToPay.Code, "checkout window elapsed", nil)
	}
	refID := target.ID.Hex()
	metadata := map[string]string{
		"kind":  string(target.Kind),
		"refId": refID,
	}
	params := &stripeapi.CheckoutSessionParams{
		Mode:              stripeapi.String(string(stripeapi.CheckoutSessionModePayment)),
		ClientReferenceID: stripeapi.String(refID),
		SuccessURL:        stripeapi.String(s.config.successURL()),
		CancelURL:         stripeapi.String(s.config.CancelURL),
		ExpiresAt:         stripeapi.Int64(expiresAt.Unix()),
		Metadata:          metadata,
		LineItems: []*stripeapi.CheckoutSessionLineItemParams{
			{
				PriceData: &stripeapi.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripeapi.String(target.Currency),
					UnitAmount: stripeapi.Int64(target.Amount),
					ProductData: &stripeapi.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripeapi.String(target.Description),
					},
				},
				Quantity: stripeapi.Int64(1),
			},
		},
		PaymentIntentData: &stripeapi.CheckoutSessionPaymentIntentDataParams{
			Metadata: metadata,
		},
	}
	params.SetIdempotencyKey(fmt.Sprintf("checkout-%s-%s", target.Kind, refID))

	session, err := s.gateway.NewCheckoutSession(params)
	if err != nil {
		metrics.IncPayment(string(db.ProviderStripe), string(target.Kind), "failed")
		return nil, err
	}
	if err := s.payments.SetCheckout(target, db.ProviderStripe, session.ID, ""); err != nil {
		return nil, err
	}
	metrics.IncPayment(string(db.ProviderStripe), string(target.Kind), "initiated")
	log.Infow("stripe checkout created",
		"kind", target.Kind,
		"refID", refID,
		"session", session.ID,
		"amount", target.Amount,
		"currency", target.Currency)
	return &Checkout{
		SessionID: session.ID,
		URL:       session.URL,
		ExpiresAt: time.Unix(session.ExpiresAt, 0),
	}, nil
}

// Confirm settles the target paid through the checkout session, as requested
// by the buyer once redirected back. Targets already settled are returned
// without calling Stripe.
func (s *Service) Confirm(sessionID string) (*payments.Target, error) {
	target, err := s.payments.ByStripeSession(sessionID)
	if err != nil {
		return nil, err
	}
	if target.Settled {
		return target, nil
	}
	session, err := s.gateway.CheckoutSession(sessionID)
	if err != nil {
		return nil, err
	}
	if session.PaymentStatus != stripeapi.CheckoutSessionPaymentStatusPaid {
		return nil, ErrPaymentNotCompleted
	}
	settled, _, err := s.payments.Settle(target, sessionPayment(session))
	return settled, err
}

func (s *Service) sessionTTL() time.Duration {
	if s.config.SessionTTL < minSessionTTL {
		return minSessionTTL + time.Minute
	}
	return s.config.SessionTTL
}

// sessionPayment returns the payment references of a paid session.
func sessionPayment(session *stripeapi.CheckoutSession) db.Payment {
	payment := db.Payment{
		Provider:        db.ProviderStripe,
		StripeSessionID: session.ID,
		PaidAt:          time.Now(),
	}
	if session.PaymentIntent != nil {
		payment.StripePaymentIntentID = session.PaymentIntent.ID
	}
	return payment
}
