// Package payments links the payment providers with the things being paid:
// partner bookings and shop orders. Providers locate what a checkout pays for
// and settle or release it through the Reconciler, which never cares about
// the provider that took the money.
package payments

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/voxelhub/community-backend/db"
	"github.com/voxelhub/community-backend/metrics"
	"github.com/voxelhub/community-backend/partners"
	"github.com/voxelhub/community-backend/shop"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Kind is the type of the thing being paid.
type Kind string

const (
	KindBooking Kind = "booking"
	KindOrder   Kind = "order"
)

// ErrPaymentNotFound is returned when no booking or order is linked to a
// provider reference.
var ErrPaymentNotFound = fmt.Errorf("payment reference not found: %w", db.ErrNotFound)

// ErrUnknownKind is returned for targets of an unsupported kind.
var ErrUnknownKind = fmt.Errorf("unknown payment kind")

// Target is a booking or an order as seen by a payment provider.
type Target struct {
	Kind        Kind               `json:"kind"`
	ID          primitive.ObjectID `json:"id"`
	UserID      string             `json:"-"`
	Status      string             `json:"status"`
	Provider    db.PaymentProvider `json:"provider"`
	Amount      int64              `json:"amount"`
	Currency    string             `json:"currency"`
	Description string             `json:"-"`
	CreatedAt   time.Time          `json:"-"`
	// Settled is set once the target has been paid, whatever happened to it
	// afterwards.
	Settled bool `json:"settled"`
}

// Pending reports whether the target is still waiting for its payment.
func (t *Target) Pending() bool {
	return t.Status == string(db.BookingStatusPending) && !t.Settled
}

// BookingTarget returns the payment target of a booking.
func BookingTarget(b *db.PartnerBooking) *Target {
	return &Target{
		Kind:        KindBooking,
		ID:          b.ID,
		UserID:      b.UserID,
		Status:      string(b.Status),
		Provider:    b.Provider,
		Amount:      b.Amount,
		Currency:    b.Currency,
		Description: fmt.Sprintf("Partner slot %d for %d days", b.Slot, b.Days),
		CreatedAt:   b.CreatedAt,
		Settled:     !b.PaidAt.IsZero(),
	}
}

// OrderTarget returns the payment target of a shop order.
func OrderTarget(o *db.ShopOrder) *Target {
	names := make([]string, 0, len(o.Items))
	for _, item := range o.Items {
		if item.Quantity > 1 {
			names = append(names, fmt.Sprintf("%dx %s", item.Quantity, item.Name))
			continue
		}
		names = append(names, item.Name)
	}
	return &Target{
		Kind:        KindOrder,
		ID:          o.ID,
		UserID:      o.UserID,
		Status:      string(o.Status),
		Provider:    o.Provider,
		Amount:      o.Total,
		Currency:    o.Currency,
		Description: "Shop order: " + strings.Join(names, ", "),
		CreatedAt:   o.CreatedAt,
		Settled:     !o.PaidAt.IsZero(),
	}
}

// Reconciler settles and releases bookings and orders on behalf of the
// payment providers.
type Reconciler struct {
	ledger *partners.Ledger
	shop   *shop.Service
}

// NewReconciler creates a reconciler over the partner ledger and the shop.
func NewReconciler(ledger *partners.Ledger, shopService *shop.Service) *Reconciler {
	return &Reconciler{ledger: ledger, shop: shopService}
}

// Target returns the target of the given kind and ID.
func (r *Reconciler) Target(kind Kind, id primitive.ObjectID) (*Target, error) {
	switch kind {
	case KindBooking:
		booking, err := r.ledger.Booking(id)
		if err != nil {
			return nil, err
		}
		return BookingTarget(booking), nil
	case KindOrder:
		order, err := r.shop.Order(id)
		if err != nil {
			return nil, err
		}
		return OrderTarget(order), nil
	}
	return nil, ErrUnknownKind
}

// ByStripeSession returns the target paid through a Stripe checkout session.
func (r *Reconciler) ByStripeSession(sessionID string) (*Target, error) {
	return r.locate(
		func() (*db.PartnerBooking, error) { return r.ledger.BookingByStripeSession(sessionID) },
		func() (*db.ShopOrder, error) { return r.shop.OrderByStripeSession(sessionID) },
	)
}

// ByPayPalOrder returns the target paid through a PayPal order.
func (r *Reconciler) ByPayPalOrder(orderID string) (*Target, error) {
	return r.locate(
		func() (*db.PartnerBooking, error) { return r.ledger.BookingByPayPalOrder(orderID) },
		func() (*db.ShopOrder, error) { return r.shop.OrderByPayPalOrder(orderID) },
	)
}

func (r *Reconciler) locate(booking func() (*db.PartnerBooking, error), order func() (*db.ShopOrder, error)) (*Target, error) {
	b, err := booking()
	if err == nil {
		return BookingTarget(b), nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}
	o, err := order()
	if err == nil {
		return OrderTarget(o), nil
	}
	if errors.Is(err, db.ErrNotFound) || errors.Is(err, db.ErrInvalidData) {
		return nil, ErrPaymentNotFound
	}
	return nil, err
}

// SetCheckout stores the provider references of a checkout started for the
// target.
func (r *Reconciler) SetCheckout(t *Target, provider db.PaymentProvider, stripeSessionID, paypalOrderID string) error {
	switch t.Kind {
	case KindBooking:
		return r.ledger.SetCheckout(t.ID, stripeSessionID, paypalOrderID)
	case KindOrder:
		return r.shop.SetCheckout(t.ID, provider, stripeSessionID, paypalOrderID)
	}
	return ErrUnknownKind
}

// Settle records the payment of the target: the booking is activated or the
// order is paid and its delivery enqueued. It is safe to call it again for
// the same payment, the flag is true only for the call that applied it.
func (r *Reconciler) Settle(t *Target, payment db.Payment) (*Target, bool, error) {
	var (
		settled *Target
		applied bool
		err     error
	)
	switch t.Kind {
	case KindBooking:
		var booking *db.PartnerBooking
		booking, applied, err = r.ledger.Activate(t.ID, payment)
		if booking != nil {
			settled = BookingTarget(booking)
		}
	case KindOrder:
		var order *db.ShopOrder
		order, applied, err = r.shop.MarkPaid(t.ID, payment)
		if order != nil {
			settled = OrderTarget(order)
		}
	default:
		return nil, false, ErrUnknownKind
	}
	switch {
	case errors.Is(err, db.ErrNotPending):
		metrics.IncPayment(string(payment.Provider), string(t.Kind), "rejected")
	case err != nil:
		metrics.IncPayment(string(payment.Provider), string(t.Kind), "failed")
	case applied:
		metrics.IncPayment(string(payment.Provider), string(t.Kind), "captured")
	default:
		metrics.IncPayment(string(payment.Provider), string(t.Kind), "duplicate")
	}
	return settled, applied, err
}

// Release cancels the target if it is still waiting for its payment. Targets
// already paid or canceled are left untouched.
func (r *Reconciler) Release(t *Target, reason string) error {
	var err error
	switch t.Kind {
	case KindBooking:
		_, err = r.ledger.CancelPending(t.ID, reason)
	case KindOrder:
		_, err = r.shop.Cancel(t.ID)
	default:
		return ErrUnknownKind
	}
	if errors.Is(err, db.ErrNotPending) {
		return nil
	}
	return err
}
