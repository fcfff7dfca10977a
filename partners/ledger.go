// Package partners implements the partner marketplace: partner servers submit
// an ad, staff reviews it, and approved ads book one of the numbered slots of
// the board for a number of days.
//
// A slot is held by at most one PENDING or ACTIVE booking. The guarantee lives
// in the storage (unique partial indexes over the active keys of a booking),
// the ledger never locks.
package partners

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/voxelhub/community-backend/db"
	"github.com/voxelhub/community-backend/metrics"
	"github.com/voxelhub/community-backend/notifications"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.vocdoni.io/dvote/log"
)

const (
	adCacheSize = 256
	adCacheTTL  = time.Minute
	// lazySweepInterval is the shortest time between two sweeps run by reads
	// of the board.
	lazySweepInterval = 5 * time.Second
)

// Ledger is the booking ledger of the partner slots.
type Ledger struct {
	db       *db.MongoStorage
	conf     Config
	ads      *expirable.LRU[primitive.ObjectID, db.PartnerAd]
	notifier notifications.NotificationService
	now      func() time.Time
	// lastSweep holds the clock of the last sweep in unix nanoseconds
	lastSweep atomic.Int64
}

// New creates the ledger over the given storage. The notifier may be nil.
func New(storage *db.MongoStorage, conf Config, notifier notifications.NotificationService) (*Ledger, error) {
	if storage == nil {
		return nil, fmt.Errorf("missing storage")
	}
	if err := conf.validate(); err != nil {
		return nil, err
	}
	return &Ledger{
		db:       storage,
		conf:     conf,
		ads:      expirable.NewLRU[primitive.ObjectID, db.PartnerAd](adCacheSize, nil, adCacheTTL),
		notifier: notifier,
		now:      time.Now,
	}, nil
}

// Config returns the marketplace configuration.
func (l *Ledger) Config() Config {
	return l.conf
}

// SubmitAd creates or replaces the ad of the user. Any edit sends the ad back
// to review.
func (l *Ledger) SubmitAd(userID string, ad *db.PartnerAd) (*db.PartnerAd, error) {
	if ad == nil || userID == "" {
		return nil, db.ErrInvalidData
	}
	ad.UserID = userID
	stored, err := l.db.SetPartnerAd(ad)
	if err != nil {
		return nil, err
	}
	l.ads.Remove(stored.ID)
	log.Infow("partner ad submitted", "adID", stored.ID.Hex(), "userID", userID)
	notifications.Notify(l.notifier, &notifications.Notification{
		Title: "Partner ad waiting for review",
		Body:  stored.Description,
		Level: notifications.LevelInfo,
		Fields: []notifications.Field{
			{Name: "Server", Value: stored.ServerName},
			{Name: "Address", Value: stored.ServerAddress},
			{Name: "Ad", Value: stored.ID.Hex()},
		},
	})
	return stored, nil
}

// ReviewAd approves or rejects an ad.
func (l *Ledger) ReviewAd(adID primitive.ObjectID, reviewer string, approve bool, note string) (*db.PartnerAd, error) {
	status := db.AdStatusRejected
	if approve {
		status = db.AdStatusApproved
	}
	ad, err := l.db.ReviewPartnerAd(adID, status, reviewer, note)
	if err != nil {
		return nil, err
	}
	if approve {
		l.ads.Add(ad.ID, *ad)
	} else {
		l.ads.Remove(ad.ID)
	}
	log.Infow("partner ad reviewed", "adID", adID.Hex(), "status", status, "reviewer", reviewer)
	return ad, nil
}

// Ad returns the ad of the user.
func (l *Ledger) Ad(userID string) (*db.PartnerAd, error) {
	return l.db.PartnerAdByUser(userID)
}

// Ads returns the ads, optionally filtered by status.
func (l *Ledger) Ads(status *db.AdStatus) ([]db.PartnerAd, error) {
	return l.db.PartnerAds(status)
}

// approvedAd returns the ad if it is approved, going to the storage only on
// cache misses.
func (l *Ledger) approvedAd(adID primitive.ObjectID) (*db.PartnerAd, error) {
	if ad, ok := l.ads.Get(adID); ok {
		return &ad, nil
	}
	ad, err := l.db.PartnerAd(adID)
	if err != nil {
		return nil, err
	}
	if ad.Status != db.AdStatusApproved {
		return nil, ErrAdNotApproved
	}
	l.ads.Add(ad.ID, *ad)
	return ad, nil
}

// Quote is the price of a booking.
type Quote struct {
	Days     int    `json:"days"`
	DayPrice int64  `json:"dayPrice"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// Quote returns the price of booking a slot for the given days.
func (l *Ledger) Quote(days int) (*Quote, error) {
	if days < l.conf.MinDays || days > l.conf.MaxDays {
		return nil, ErrInvalidDays
	}
	return &Quote{
		Days:     days,
		DayPrice: l.conf.DayPrice,
		Amount:   l.conf.DayPrice * int64(days),
		Currency: l.conf.Currency,
	}, nil
}

// SlotStatus is the state of a slot on the board.
type SlotStatus string

const (
	SlotFree     SlotStatus = "FREE"
	SlotReserved SlotStatus = "RESERVED"
	SlotActive   SlotStatus = "ACTIVE"
)

// Slot is a slot of the board with its current holder, if any.
type Slot struct {
	Index  int           `json:"slot"`
	Status SlotStatus    `json:"status"`
	EndsAt *time.Time    `json:"endsAt,omitempty"`
	Ad     *db.PartnerAd `json:"ad,omitempty"`
}

// Board returns every slot with its holder. Only ACTIVE bookings of approved
// ads are shown with their ad; slots held by an unpaid booking are RESERVED.
func (l *Ledger) Board() ([]Slot, error) {
	l.sweepLazily()
	holding, err := l.db.PartnerBookings(db.BookingFilter{
		Status: []db.BookingStatus{db.BookingStatusPending, db.BookingStatusActive},
	})
	if err != nil {
		return nil, err
	}
	board := make([]Slot, l.conf.Slots)
	for i := range board {
		board[i] = Slot{Index: i, Status: SlotFree}
	}
	for _, b := range holding {
		if b.Slot < 0 || b.Slot >= len(board) {
			// the slot count was reduced while the booking was running
			continue
		}
		slot := &board[b.Slot]
		if b.Status == db.BookingStatusPending {
			slot.Status = SlotReserved
			continue
		}
		slot.Status = SlotActive
		endsAt := b.EndsAt
		slot.EndsAt = &endsAt
		ad, err := l.approvedAd(b.AdID)
		switch {
		case err == nil:
			slot.Ad = ad
		case errors.Is(err, ErrAdNotApproved), errors.Is(err, db.ErrNotFound):
			// edited after booking, hidden until approved again
		default:
			return nil, err
		}
	}
	return board, nil
}

// Reserve books a slot for the approved ad of the user. The booking is
// created PENDING and waits for its payment, unless the price is zero in
// which case it is activated right away with the FREE provider.
func (l *Ledger) Reserve(userID string, slot, days int, provider db.PaymentProvider) (*db.PartnerBooking, error) {
	quote, err := l.Quote(days)
	if err != nil {
		return nil, err
	}
	if quote.Amount == 0 {
		provider = db.ProviderFree
	}
	if !db.IsValidProvider(provider) || (provider == db.ProviderFree && quote.Amount > 0) {
		return nil, ErrInvalidProvider
	}
	ad, err := l.db.PartnerAdByUser(userID)
	if err != nil {
		return nil, err
	}
	return l.reserve(ad, slot, days, provider, quote.Amount)
}

// Grant books a slot for free on behalf of an ad, bypassing payment.
func (l *Ledger) Grant(adID primitive.ObjectID, slot, days int) (*db.PartnerBooking, error) {
	if _, err := l.Quote(days); err != nil {
		return nil, err
	}
	ad, err := l.db.PartnerAd(adID)
	if err != nil {
		return nil, err
	}
	return l.reserve(ad, slot, days, db.ProviderFree, 0)
}

func (l *Ledger) reserve(ad *db.PartnerAd, slot, days int, provider db.PaymentProvider, amount int64) (*db.PartnerBooking, error) {
	if slot < 0 || slot >= l.conf.Slots {
		return nil, ErrInvalidSlot
	}
	if ad.Status != db.AdStatusApproved {
		return nil, ErrAdNotApproved
	}
	// release what is no longer legitimately held before competing for it
	l.sweep()

	booking := &db.PartnerBooking{
		AdID:     ad.ID,
		UserID:   ad.UserID,
		Slot:     slot,
		Provider: provider,
		Days:     days,
		Amount:   amount,
		Currency: l.conf.Currency,
	}
	if err := l.db.CreatePartnerBooking(booking); err != nil {
		switch {
		case errors.Is(err, db.ErrSlotTaken):
			metrics.BookingConflict("slot_taken")
		case errors.Is(err, db.ErrAdAlreadyBooked):
			metrics.BookingConflict("ad_already_booked")
		}
		return nil, err
	}
	metrics.BookingTransition(string(db.BookingStatusPending), string(provider))
	log.Infow("partner booking reserved",
		"bookingID", booking.ID.Hex(),
		"adID", ad.ID.Hex(),
		"slot", slot,
		"days", days,
		"provider", provider)

	if provider != db.ProviderFree {
		return booking, nil
	}
	active, _, err := l.Activate(booking.ID, db.Payment{Provider: db.ProviderFree, PaidAt: l.now()})
	if err != nil {
		return nil, err
	}
	return active, nil
}

// Activate moves a PENDING booking to ACTIVE once its payment is confirmed.
// It can be called any number of times for the same payment: the flag is
// true only for the call that activated the booking. A payment for a booking
// that was already released returns ErrBookingNotPending and is reported to
// staff for a manual refund.
func (l *Ledger) Activate(id primitive.ObjectID, payment db.Payment) (*db.PartnerBooking, bool, error) {
	booking, activated, err := l.db.ActivatePartnerBooking(id, payment)
	if errors.Is(err, db.ErrNotPending) {
		if payment.Provider != db.ProviderFree {
			log.Warnw("payment received for a released partner booking, refund required",
				"bookingID", id.Hex(),
				"status", booking.Status,
				"provider", payment.Provider,
				"stripeSession", payment.StripeSessionID,
				"paypalOrder", payment.PayPalOrderID)
			notifications.Notify(l.notifier, &notifications.Notification{
				Title: "Refund required: payment for a released booking",
				Body:  fmt.Sprintf("booking %s is %s but a %s payment was received", id.Hex(), booking.Status, payment.Provider),
				Level: notifications.LevelAlert,
				Fields: []notifications.Field{
					{Name: "Booking", Value: id.Hex()},
					{Name: "User", Value: booking.UserID},
					{Name: "Amount", Value: fmt.Sprintf("%d %s", booking.Amount, booking.Currency)},
				},
			})
		}
		return booking, false, ErrBookingNotPending
	}
	if err != nil {
		return nil, false, err
	}
	if activated {
		metrics.BookingTransition(string(db.BookingStatusActive), string(payment.Provider))
		log.Infow("partner booking activated",
			"bookingID", id.Hex(),
			"slot", booking.Slot,
			"provider", payment.Provider,
			"endsAt", booking.EndsAt)
	}
	return booking, activated, nil
}

// Cancel cancels a booking and releases its slot. Owners can only cancel
// their PENDING bookings, admins can cancel ACTIVE ones too.
func (l *Ledger) Cancel(id primitive.ObjectID, userID string, admin bool, reason string) (*db.PartnerBooking, error) {
	booking, err := l.db.PartnerBooking(id)
	if err != nil {
		return nil, err
	}
	from := []db.BookingStatus{db.BookingStatusPending, db.BookingStatusActive}
	if !admin {
		if booking.UserID != userID {
			return nil, ErrNotOwner
		}
		from = []db.BookingStatus{db.BookingStatusPending}
	}
	return l.cancel(id, reason, from...)
}

// CancelPending cancels a booking only if it is still PENDING, as done when
// its checkout expires.
func (l *Ledger) CancelPending(id primitive.ObjectID, reason string) (*db.PartnerBooking, error) {
	return l.cancel(id, reason, db.BookingStatusPending)
}

func (l *Ledger) cancel(id primitive.ObjectID, reason string, from ...db.BookingStatus) (*db.PartnerBooking, error) {
	booking, canceled, err := l.db.CancelPartnerBooking(id, reason, from...)
	if errors.Is(err, db.ErrNotPending) {
		return booking, ErrBookingNotPending
	}
	if err != nil {
		return nil, err
	}
	if canceled {
		metrics.BookingTransition(string(db.BookingStatusCanceled), string(booking.Provider))
		log.Infow("partner booking canceled", "bookingID", id.Hex(), "slot", booking.Slot, "reason", reason)
	}
	return booking, nil
}

// Booking returns the booking with the given ID.
func (l *Ledger) Booking(id primitive.ObjectID) (*db.PartnerBooking, error) {
	return l.db.PartnerBooking(id)
}

// BookingByStripeSession returns the booking paid through a Stripe checkout
// session.
func (l *Ledger) BookingByStripeSession(sessionID string) (*db.PartnerBooking, error) {
	return l.db.PartnerBookingByStripeSession(sessionID)
}

// BookingByPayPalOrder returns the booking paid through a PayPal order.
func (l *Ledger) BookingByPayPalOrder(orderID string) (*db.PartnerBooking, error) {
	return l.db.PartnerBookingByPayPalOrder(orderID)
}

// SetCheckout stores the provider references of the checkout started for a
// PENDING booking.
func (l *Ledger) SetCheckout(id primitive.ObjectID, stripeSessionID, paypalOrderID string) error {
	err := l.db.SetPartnerBookingCheckout(id, stripeSessionID, paypalOrderID)
	if errors.Is(err, db.ErrNotPending) {
		return ErrBookingNotPending
	}
	return err
}

// Bookings returns the bookings matching the filter.
func (l *Ledger) Bookings(filter db.BookingFilter) ([]db.PartnerBooking, error) {
	return l.db.PartnerBookings(filter)
}

// Sweep releases the slots held by unpaid bookings older than the pending
// TTL and by active bookings whose window ended at now.
func (l *Ledger) Sweep(now time.Time) (int64, int64, error) {
	canceled, expired, err := l.db.ExpirePartnerBookings(now, l.conf.PendingTTL)
	metrics.BookingsSwept(canceled, expired)
	if err != nil {
		return canceled, expired, err
	}
	if canceled > 0 || expired > 0 {
		log.Infow("partner bookings swept", "canceled", canceled, "expired", expired)
	}
	return canceled, expired, nil
}

func (l *Ledger) sweep() {
	now := l.now()
	l.lastSweep.Store(now.UnixNano())
	if _, _, err := l.Sweep(now); err != nil {
		log.Warnw("could not sweep partner bookings", "error", err)
	}
}

// sweepLazily sweeps unless another sweep ran less than lazySweepInterval
// ago.
func (l *Ledger) sweepLazily() {
	now := l.now()
	last := l.lastSweep.Load()
	if now.UnixNano()-last < int64(lazySweepInterval) {
		return
	}
	if !l.lastSweep.CompareAndSwap(last, now.UnixNano()) {
		return
	}
	if _, _, err := l.Sweep(now); err != nil {
		log.Warnw("could not sweep partner bookings", "error", err)
	}
}

// StartSweeper sweeps the bookings every interval until the context is
// canceled.
func (l *Ledger) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.sweep()
			}
		}
	}()
}
