package api

import (
	goerrors "errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/voxelhub/community-backend/api/apicommon"
	"github.com/voxelhub/community-backend/db"
	"github.com/voxelhub/community-backend/errors"
	"github.com/voxelhub/community-backend/payments"
	"github.com/voxelhub/community-backend/stripe"
	"go.vocdoni.io/dvote/log"
)

// MaxBodyBytes bounds the size of the webhook payloads.
const MaxBodyBytes = int64(65536)

// providerAvailable checks that payments can be taken with the provider
// before anything is reserved for them.
func (a *API) providerAvailable(provider db.PaymentProvider) error {
	switch provider {
	case db.ProviderStripe:
		if a.stripe == nil {
			return errors.ErrProviderNotConfigured.With("stripe")
		}
	case db.ProviderPayPal:
		if a.paypal == nil {
			return errors.ErrProviderNotConfigured.With("paypal")
		}
	}
	return nil
}

// checkout starts the payment of a pending target with its provider. Targets
// with nothing to pay, like free bookings, have no checkout.
func (a *API) checkout(r *http.Request, target *payments.Target) (*apicommon.CheckoutInfo, error) {
	if !target.Pending() || target.Amount == 0 {
		return nil, nil
	}
	if err := a.providerAvailable(target.Provider); err != nil {
		return nil, err
	}
	switch target.Provider {
	case db.ProviderStripe:
		checkout, err := a.stripe.Checkout(target)
		if err != nil {
			return nil, err
		}
		return &apicommon.CheckoutInfo{
			Provider:  db.ProviderStripe,
			URL:       checkout.URL,
			SessionID: checkout.SessionID,
			ExpiresAt: &checkout.ExpiresAt,
		}, nil
	case db.ProviderPayPal:
		checkout, err := a.paypal.Checkout(r.Context(), target)
		if err != nil {
			return nil, err
		}
		return &apicommon.CheckoutInfo{
			Provider: db.ProviderPayPal,
			URL:      checkout.ApproveURL,
			OrderID:  checkout.OrderID,
		}, nil
	}
	return nil, errors.ErrInvalidProvider
}

// startCheckout starts the checkout of a target just created. If the
// provider fails the target is released so it does not hold anything until
// the sweep.
func (a *API) startCheckout(r *http.Request, target *payments.Target) (*apicommon.CheckoutInfo, error) {
	checkout, err := a.checkout(r, target)
	if err != nil {
		if releaseErr := a.payments.Release(target, "checkout failed"); releaseErr != nil {
			log.Warnw("could not release target after a failed checkout",
				"kind", target.Kind,
				"refID", target.ID.Hex(),
				"error", releaseErr)
		}
		return nil, err
	}
	return checkout, nil
}

// stripeWebhookHandler godoc
//
//	@Summary		Handle Stripe webhook events
//	@Description	Process the checkout events sent by Stripe. Events are processed once, paid sessions
//	@Description	activate their booking or pay their order and expired sessions release them.
//	@Tags			payments
//	@Accept			json
//	@Param			body	body		string	true	"Stripe webhook payload"
//	@Success		200		{string}	string	"OK"
//	@Failure		400		{string}	string	"Bad Request"
//	@Failure		500		{string}	string	"Internal Server Error"
//	@Router			/payments/stripe/webhook [post]
func (a *API) stripeWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if a.stripe == nil {
		log.Warnw("stripe webhook: stripe service not available")
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	// Read and validate the request body
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		log.Warnw("stripe webhook: error reading request body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	signatureHeader := r.Header.Get("Stripe-Signature")
	if signatureHeader == "" {
		log.Warnw("stripe webhook: missing Stripe-Signature header")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := a.stripe.HandleWebhookEvent(r.Context(), payload, signatureHeader); err != nil {
		log.Warnw("stripe webhook: failed to process event", "error", err)
		if goerrors.Is(err, stripe.ErrWebhookValidation) || goerrors.Is(err, stripe.ErrInvalidEvent) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		// Stripe retries the event
		errors.ErrStripeWebhookError.WithErr(err).Write(w)
		return
	}
	apicommon.HTTPWriteOK(w)
}

// stripeConfirmHandler godoc
//
//	@Summary		Confirm a Stripe checkout
//	@Description	Settle the booking or order paid through the checkout session, once the buyer is back
//	@Description	from Stripe. Settled payments are returned without calling Stripe again.
//	@Tags			payments
//	@Produce		json
//	@Security		BearerAuth
//	@Param			sessionID	path		string	true	"Checkout session ID"
//	@Success		200			{object}	apicommon.PaymentStatus
//	@Failure		400			{object}	errors.Error	"Payment not completed"
//	@Failure		404			{object}	errors.Error	"No booking or order for the session"
//	@Failure		409			{object}	errors.Error	"Released before the payment"
//	@Router			/payments/stripe/confirm/{sessionID} [get]
func (a *API) stripeConfirmHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := apicommon.UserFromContext(r.Context())
	if !ok {
		errors.ErrUnauthorized.Write(w)
		return
	}
	if a.stripe == nil {
		errors.ErrProviderNotConfigured.With("stripe").Write(w)
		return
	}
	sessionID := chi.URLParam(r, "sessionID")
	target, err := a.payments.ByStripeSession(sessionID)
	if err != nil {
		writeError(w, err, errors.ErrPaymentNotFound)
		return
	}
	if target.UserID != user.ID {
		errors.ErrPaymentNotFound.Write(w)
		return
	}
	settled, err := a.stripe.Confirm(sessionID)
	if err != nil {
		writeError(w, err, notFoundFor(target.Kind))
		return
	}
	apicommon.HTTPWriteJSON(w, paymentStatus(settled))
}

// paypalCaptureHandler godoc
//
//	@Summary		Capture a PayPal order
//	@Description	Capture the PayPal order approved by the buyer and settle its booking or order. Capturing
//	@Description	an order twice is safe.
//	@Tags			payments
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		apicommon.PayPalCaptureRequest	true	"PayPal order"
//	@Success		200		{object}	apicommon.PaymentStatus
//	@Failure		404		{object}	errors.Error	"No booking or order for the PayPal order"
//	@Failure		409		{object}	errors.Error	"Released before the capture"
//	@Router			/payments/paypal/capture [post]
func (a *API) paypalCaptureHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := apicommon.UserFromContext(r.Context())
	if !ok {
		errors.ErrUnauthorized.Write(w)
		return
	}
	if a.paypal == nil {
		errors.ErrProviderNotConfigured.With("paypal").Write(w)
		return
	}
	req := &apicommon.PayPalCaptureRequest{}
	if err := a.validator.DecodeJSON(r, req); err != nil {
		writeError(w, err, errors.ErrPaymentNotFound)
		return
	}
	target, err := a.payments.ByPayPalOrder(req.OrderID)
	if err != nil {
		writeError(w, err, errors.ErrPaymentNotFound)
		return
	}
	if target.UserID != user.ID {
		errors.ErrPaymentNotFound.Write(w)
		return
	}
	settled, err := a.paypal.Capture(r.Context(), req.OrderID)
	if err != nil {
		writeError(w, err, notFoundFor(target.Kind))
		return
	}
	apicommon.HTTPWriteJSON(w, paymentStatus(settled))
}

func paymentStatus(t *payments.Target) *apicommon.PaymentStatus {
	return &apicommon.PaymentStatus{
		Kind:    string(t.Kind),
		ID:      t.ID.Hex(),
		Status:  t.Status,
		Settled: t.Settled,
	}
}

func notFoundFor(kind payments.Kind) errors.Error {
	if kind == payments.KindOrder {
		return errors.ErrOrderNotFound
	}
	return errors.ErrBookingNotFound
}
