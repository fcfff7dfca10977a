package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// holdingKeysUnset is the $unset document that releases the slot and the ad
// held by a booking.
var holdingKeysUnset = bson.M{
	"slotActiveKey": "",
	"adActiveKey":   "",
}

// CreatePartnerBooking inserts a new PENDING booking holding booking.Slot for
// booking.AdID. The insert fails with ErrSlotTaken if another booking holds
// the slot, or with ErrAdAlreadyBooked if the ad already holds one.
func (ms *MongoStorage) CreatePartnerBooking(booking *PartnerBooking) error {
	if booking == nil || booking.AdID.IsZero() || booking.Slot < 0 || booking.Days <= 0 {
		return ErrInvalidData
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	now := time.Now()
	booking.ID = primitive.NewObjectID()
	booking.Status = BookingStatusPending
	booking.SlotActiveKey = SlotKey(booking.Slot)
	booking.AdActiveKey = AdKey(booking.AdID)
	booking.CreatedAt = now
	booking.UpdatedAt = now
	if _, err := ms.partnerBookings.InsertOne(ctx, booking); err != nil {
		switch {
		case duplicateKeyOn(err, "slotActiveKey"):
			return ErrSlotTaken
		case duplicateKeyOn(err, "adActiveKey"):
			return ErrAdAlreadyBooked
		}
		return fmt.Errorf("failed to create partner booking: %w", err)
	}
	return nil
}

// PartnerBooking returns the booking with the given ID.
func (ms *MongoStorage) PartnerBooking(id primitive.ObjectID) (*PartnerBooking, error) {
	return ms.findPartnerBooking(bson.M{"_id": id})
}

// PartnerBookingByStripeSession returns the booking paid through the given
// Stripe checkout session.
func (ms *MongoStorage) PartnerBookingByStripeSession(sessionID string) (*PartnerBooking, error) {
	if sessionID == "" {
		return nil, ErrInvalidData
	}
	return ms.findPartnerBooking(bson.M{"stripeSessionId": sessionID})
}

// PartnerBookingByPayPalOrder returns the booking paid through the given
// PayPal order.
func (ms *MongoStorage) PartnerBookingByPayPalOrder(orderID string) (*PartnerBooking, error) {
	if orderID == "" {
		return nil, ErrInvalidData
	}
	return ms.findPartnerBooking(bson.M{"paypalOrderId": orderID})
}

func (ms *MongoStorage) findPartnerBooking(filter bson.M) (*PartnerBooking, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	booking := &PartnerBooking{}
	if err := ms.partnerBookings.FindOne(ctx, filter).Decode(booking); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get partner booking: %w", err)
	}
	return booking, nil
}

// SetPartnerBookingCheckout stores the provider references of a checkout
// started for a PENDING booking. Only non-empty references are written.
func (ms *MongoStorage) SetPartnerBookingCheckout(id primitive.ObjectID, stripeSessionID, paypalOrderID string) error {
	set := bson.M{"updatedAt": time.Now()}
	if stripeSessionID != "" {
		set["stripeSessionId"] = stripeSessionID
	}
	if paypalOrderID != "" {
		set["paypalOrderId"] = paypalOrderID
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	res, err := ms.partnerBookings.UpdateOne(ctx,
		bson.M{"_id": id, "status": BookingStatusPending},
		bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to set partner booking checkout: %w", err)
	}
	if res.MatchedCount == 0 {
		if _, err := ms.PartnerBooking(id); err != nil {
			return err
		}
		return ErrNotPending
	}
	return nil
}

// ActivatePartnerBooking moves a PENDING booking to ACTIVE with a single
// conditional update, opening its window at payment.PaidAt. The returned flag
// is true only for the call that performed the transition: activating an
// already ACTIVE booking returns the stored booking and false. Bookings that
// are EXPIRED or CANCELED return ErrNotPending.
func (ms *MongoStorage) ActivatePartnerBooking(id primitive.ObjectID, payment Payment) (*PartnerBooking, bool, error) {
	booking, err := ms.PartnerBooking(id)
	if err != nil {
		return nil, false, err
	}
	if booking.Status == BookingStatusActive {
		return booking, false, nil
	}
	if booking.Status != BookingStatusPending {
		return booking, false, ErrNotPending
	}
	paidAt := payment.PaidAt
	if paidAt.IsZero() {
		paidAt = time.Now()
	}
	set := bson.M{
		"status":    BookingStatusActive,
		"provider":  payment.Provider,
		"paidAt":    paidAt,
		"startsAt":  paidAt,
		"endsAt":    paidAt.Add(time.Duration(booking.Days) * 24 * time.Hour),
		"updatedAt": time.Now(),
	}
	setPaymentRefs(set, payment)

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	activated := &PartnerBooking{}
	err = ms.partnerBookings.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": BookingStatusPending},
		bson.M{"$set": set}, opts).Decode(activated)
	if err == nil {
		return activated, true, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, false, fmt.Errorf("failed to activate partner booking: %w", err)
	}
	// someone else moved the booking first, report what it became
	current, err := ms.PartnerBooking(id)
	if err != nil {
		return nil, false, err
	}
	if current.Status == BookingStatusActive {
		return current, false, nil
	}
	return current, false, ErrNotPending
}

// CancelPartnerBooking moves a booking in one of the given statuses to
// CANCELED and releases its slot. Canceling an already CANCELED booking
// returns it with a false flag; any other status returns ErrNotPending.
func (ms *MongoStorage) CancelPartnerBooking(id primitive.ObjectID, reason string,
	from ...BookingStatus,
) (*PartnerBooking, bool, error) {
	if len(from) == 0 {
		from = []BookingStatus{BookingStatusPending, BookingStatusActive}
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	now := time.Now()
	update := bson.M{
		"$set": bson.M{
			"status":       BookingStatusCanceled,
			"canceledAt":   now,
			"cancelReason": reason,
			"updatedAt":    now,
		},
		"$unset": holdingKeysUnset,
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	canceled := &PartnerBooking{}
	err := ms.partnerBookings.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": bson.M{"$in": from}},
		update, opts).Decode(canceled)
	if err == nil {
		return canceled, true, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, false, fmt.Errorf("failed to cancel partner booking: %w", err)
	}
	current, err := ms.PartnerBooking(id)
	if err != nil {
		return nil, false, err
	}
	if current.Status == BookingStatusCanceled {
		return current, false, nil
	}
	return current, false, ErrNotPending
}

// ExpirePartnerBookings releases the slots that are no longer legitimately
// held at now: PENDING bookings created before now-pendingTTL are CANCELED
// and ACTIVE bookings whose window ended are EXPIRED. It returns the number of
// bookings of each kind.
func (ms *MongoStorage) ExpirePartnerBookings(now time.Time, pendingTTL time.Duration) (int64, int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	canceled, err := ms.partnerBookings.UpdateMany(ctx,
		bson.M{
			"status":    BookingStatusPending,
			"createdAt": bson.M{"$lte": now.Add(-pendingTTL)},
		},
		bson.M{
			"$set": bson.M{
				"status":       BookingStatusCanceled,
				"canceledAt":   now,
				"cancelReason": "payment timeout",
				"updatedAt":    now,
			},
			"$unset": holdingKeysUnset,
		})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to cancel stale partner bookings: %w", err)
	}
	expired, err := ms.partnerBookings.UpdateMany(ctx,
		bson.M{
			"status": BookingStatusActive,
			"endsAt": bson.M{"$lte": now},
		},
		bson.M{
			"$set": bson.M{
				"status":    BookingStatusExpired,
				"updatedAt": now,
			},
			"$unset": holdingKeysUnset,
		})
	if err != nil {
		return canceled.ModifiedCount, 0, fmt.Errorf("failed to expire partner bookings: %w", err)
	}
	return canceled.ModifiedCount, expired.ModifiedCount, nil
}

// BookingFilter narrows the bookings returned by PartnerBookings. Zero values
// are ignored.
type BookingFilter struct {
	UserID string
	AdID   primitive.ObjectID
	Status []BookingStatus
}

// PartnerBookings returns the bookings matching the filter, newest first.
func (ms *MongoStorage) PartnerBookings(f BookingFilter) ([]PartnerBooking, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	filter := bson.M{}
	if f.UserID != "" {
		filter["userId"] = f.UserID
	}
	if !f.AdID.IsZero() {
		filter["adId"] = f.AdID
	}
	if len(f.Status) > 0 {
		filter["status"] = bson.M{"$in": f.Status}
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	bookings, err := findAll[PartnerBooking](ctx, ms.partnerBookings, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get partner bookings: %w", err)
	}
	return bookings, nil
}

// setPaymentRefs copies the non-empty provider references of the payment
// into the $set document.
func setPaymentRefs(set bson.M, payment Payment) {
	if payment.StripeSessionID != "" {
		set["stripeSessionId"] = payment.StripeSessionID
	}
	if payment.StripePaymentIntentID != "" {
		set["stripePaymentIntentId"] = payment.StripePaymentIntentID
	}
	if payment.PayPalOrderID != "" {
		set["paypalOrderId"] = payment.PayPalOrderID
	}
	if payment.PayPalCaptureID != "" {
		set["paypalCaptureId"] = payment.PayPalCaptureID
	}
}
