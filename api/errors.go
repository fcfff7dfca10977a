package api

import (
	goerrors "errors"
	"net/http"

	"github.com/voxelhub/community-backend/db"
	"github.com/voxelhub/community-backend/errors"
	"github.com/voxelhub/community-backend/partners"
	"github.com/voxelhub/community-backend/payments"
	"github.com/voxelhub/community-backend/paypal"
	"github.com/voxelhub/community-backend/shop"
	"github.com/voxelhub/community-backend/stripe"
)

// writeError writes the API error matching an error returned by the
// services. notFound is the error used when the requested document does not
// exist, and decides between the booking and the order conflicts.
func writeError(w http.ResponseWriter, err error, notFound errors.Error) {
	apiError(err, notFound).Write(w)
}

func apiError(err error, notFound errors.Error) errors.Error {
	var (
		apiErr    errors.Error
		stripeErr *stripe.StripeError
		paypalErr *paypal.PayPalError
	)
	notPending := errors.ErrBookingNotPending
	if notFound.Is(errors.ErrOrderNotFound) {
		notPending = errors.ErrOrderNotPending
	}
	switch {
	case goerrors.As(err, &apiErr):
		return apiErr
	// partners
	case goerrors.Is(err, partners.ErrInvalidSlot):
		return errors.ErrInvalidSlot
	case goerrors.Is(err, partners.ErrInvalidDays):
		return errors.ErrInvalidDays
	case goerrors.Is(err, partners.ErrInvalidProvider), goerrors.Is(err, shop.ErrInvalidProvider):
		return errors.ErrInvalidProvider
	case goerrors.Is(err, partners.ErrAdNotApproved):
		return errors.ErrAdNotApproved
	case goerrors.Is(err, partners.ErrNotOwner):
		// other users' bookings are not disclosed
		return notFound
	case goerrors.Is(err, db.ErrSlotTaken):
		return errors.ErrSlotTaken
	case goerrors.Is(err, db.ErrAdAlreadyBooked):
		return errors.ErrAdAlreadyBooked
	// shop
	case goerrors.Is(err, shop.ErrEmptyOrder), goerrors.Is(err, shop.ErrInvalidQuantity),
		goerrors.Is(err, shop.ErrMixedCurrencies):
		return errors.ErrInvalidData.WithErr(err)
	case goerrors.Is(err, shop.ErrProductUnavailable):
		return errors.ErrProductUnavailable
	case goerrors.Is(err, shop.ErrMinecraftNameMissing):
		return errors.ErrMinecraftNameMissing
	case goerrors.Is(err, shop.ErrNoDeliveryPending):
		return errors.ErrNoDeliveryPending
	case goerrors.Is(err, db.ErrLeaseLost):
		return errors.ErrLeaseLost
	case goerrors.Is(err, db.ErrNotFailed):
		return errors.ErrDeliveryNotFailed
	// payments
	case goerrors.Is(err, payments.ErrPaymentNotFound):
		return errors.ErrPaymentNotFound
	case goerrors.Is(err, stripe.ErrNothingToPay), goerrors.Is(err, paypal.ErrNothingToPay):
		return notPending.WithErr(err)
	case goerrors.Is(err, stripe.ErrPaymentNotCompleted), goerrors.Is(err, paypal.ErrPaymentNotCompleted):
		return errors.ErrPaymentNotCompleted
	case goerrors.As(err, &stripeErr):
		return errors.ErrStripeError.WithErr(err)
	case goerrors.As(err, &paypalErr):
		return errors.ErrPayPalError.WithErr(err)
	// storage
	case goerrors.Is(err, db.ErrNotPending):
		return notPending
	case goerrors.Is(err, db.ErrNotFound):
		return notFound
	case goerrors.Is(err, db.ErrInvalidData):
		return errors.ErrInvalidData.WithErr(err)
	}
	return errors.ErrInternalStorageError.WithErr(err)
}
