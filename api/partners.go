package api

import (
	"net/http"
	"strconv"

	"github.com/voxelhub/community-backend/api/apicommon"
	"github.com/voxelhub/community-backend/db"
	"github.com/voxelhub/community-backend/errors"
	"github.com/voxelhub/community-backend/payments"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// partnerSlotsHandler godoc
//
//	@Summary		Get the partner board
//	@Description	Get every partner slot with its status. Active slots carry the ad they show.
//	@Tags			partners
//	@Produce		json
//	@Success		200	{object}	apicommon.PartnerBoard
//	@Failure		500	{object}	errors.Error	"Internal server error"
//	@Router			/partners/slots [get]
func (a *API) partnerSlotsHandler(w http.ResponseWriter, _ *http.Request) {
	board, err := a.ledger.Board()
	if err != nil {
		writeError(w, err, errors.ErrBookingNotFound)
		return
	}
	conf := a.ledger.Config()
	apicommon.HTTPWriteJSON(w, &apicommon.PartnerBoard{
		Slots:    board,
		DayPrice: conf.DayPrice,
		Currency: conf.Currency,
		MinDays:  conf.MinDays,
		MaxDays:  conf.MaxDays,
	})
}

func (a *API) partnerAdHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := apicommon.UserFromContext(r.Context())
	if !ok {
		errors.ErrUnauthorized.Write(w)
		return
	}
	ad, err := a.ledger.Ad(user.ID)
	if err != nil {
		writeError(w, err, errors.ErrAdNotFound)
		return
	}
	apicommon.HTTPWriteJSON(w, ad)
}

// setPartnerAdHandler godoc
//
//	@Summary		Submit the partner ad
//	@Description	Create or edit the partner ad of the user. The ad goes back to review after any edit and
//	@Description	is hidden from the board until approved again.
//	@Tags			partners
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		apicommon.PartnerAdRequest	true	"Ad information"
//	@Success		200		{object}	db.PartnerAd
//	@Failure		400		{object}	errors.Error	"Invalid input data"
//	@Failure		401		{object}	errors.Error	"Unauthorized"
//	@Router			/partners/ad [put]
func (a *API) setPartnerAdHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := apicommon.UserFromContext(r.Context())
	if !ok {
		errors.ErrUnauthorized.Write(w)
		return
	}
	req := &apicommon.PartnerAdRequest{}
	if err := a.validator.DecodeJSON(r, req); err != nil {
		writeError(w, err, errors.ErrAdNotFound)
		return
	}
	ad, err := a.ledger.SubmitAd(user.ID, req.ToDB())
	if err != nil {
		writeError(w, err, errors.ErrAdNotFound)
		return
	}
	apicommon.HTTPWriteJSON(w, ad)
}

func (a *API) partnerQuoteHandler(w http.ResponseWriter, r *http.Request) {
	days, err := strconv.Atoi(r.URL.Query().Get("days"))
	if err != nil {
		errors.ErrMalformedURLParam.Withf("invalid days: %v", err).Write(w)
		return
	}
	quote, err := a.ledger.Quote(days)
	if err != nil {
		writeError(w, err, errors.ErrBookingNotFound)
		return
	}
	apicommon.HTTPWriteJSON(w, quote)
}

// createBookingHandler godoc
//
//	@Summary		Book a partner slot
//	@Description	Book a slot for the approved ad of the user. The booking holds the slot while it waits
//	@Description	for its payment, the response carries the checkout where the user pays it.
//	@Tags			partners
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		apicommon.BookingRequest	true	"Slot, days and payment provider"
//	@Success		200		{object}	apicommon.BookingResponse
//	@Failure		400		{object}	errors.Error	"Invalid slot, days, provider or ad not approved"
//	@Failure		404		{object}	errors.Error	"The user has no ad"
//	@Failure		409		{object}	errors.Error	"Slot taken or ad already booked"
//	@Failure		503		{object}	errors.Error	"Payment provider not configured"
//	@Router			/partners/bookings [post]
func (a *API) createBookingHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := apicommon.UserFromContext(r.Context())
	if !ok {
		errors.ErrUnauthorized.Write(w)
		return
	}
	req := &apicommon.BookingRequest{}
	if err := a.validator.DecodeJSON(r, req); err != nil {
		writeError(w, err, errors.ErrAdNotFound)
		return
	}
	if err := a.providerAvailable(req.Provider); err != nil {
		writeError(w, err, errors.ErrAdNotFound)
		return
	}
	booking, err := a.ledger.Reserve(user.ID, req.Slot, req.Days, req.Provider)
	if err != nil {
		writeError(w, err, errors.ErrAdNotFound)
		return
	}
	checkout, err := a.startCheckout(r, payments.BookingTarget(booking))
	if err != nil {
		writeError(w, err, errors.ErrBookingNotFound)
		return
	}
	apicommon.HTTPWriteJSON(w, &apicommon.BookingResponse{Booking: booking, Checkout: checkout})
}

func (a *API) bookingsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := apicommon.UserFromContext(r.Context())
	if !ok {
		errors.ErrUnauthorized.Write(w)
		return
	}
	bookings, err := a.ledger.Bookings(db.BookingFilter{UserID: user.ID})
	if err != nil {
		writeError(w, err, errors.ErrBookingNotFound)
		return
	}
	apicommon.HTTPWriteJSON(w, bookings)
}

// bookingCheckoutHandler returns the checkout of a pending booking of the
// user, so a closed payment page can be opened again.
func (a *API) bookingCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := apicommon.UserFromContext(r.Context())
	if !ok {
		errors.ErrUnauthorized.Write(w)
		return
	}
	id, err := apicommon.ObjectIDFromRequest(r, "bookingID")
	if err != nil {
		errors.ErrMalformedURLParam.WithErr(err).Write(w)
		return
	}
	booking, err := a.ledger.Booking(id)
	if err != nil {
		writeError(w, err, errors.ErrBookingNotFound)
		return
	}
	if booking.UserID != user.ID {
		errors.ErrBookingNotFound.Write(w)
		return
	}
	target := payments.BookingTarget(booking)
	if !target.Pending() {
		errors.ErrBookingNotPending.Write(w)
		return
	}
	checkout, err := a.checkout(r, target)
	if err != nil {
		writeError(w, err, errors.ErrBookingNotFound)
		return
	}
	apicommon.HTTPWriteJSON(w, &apicommon.BookingResponse{Booking: booking, Checkout: checkout})
}

func (a *API) cancelBookingHandler(w http.ResponseWriter, r *http.Request) {
	a.cancelBooking(w, r, false)
}

func (a *API) adminCancelBookingHandler(w http.ResponseWriter, r *http.Request) {
	a.cancelBooking(w, r, true)
}

// cancelBooking cancels the booking of the URL. Users can only cancel their
// own pending bookings.
func (a *API) cancelBooking(w http.ResponseWriter, r *http.Request, admin bool) {
	user, ok := apicommon.UserFromContext(r.Context())
	if !ok {
		errors.ErrUnauthorized.Write(w)
		return
	}
	id, err := apicommon.ObjectIDFromRequest(r, "bookingID")
	if err != nil {
		errors.ErrMalformedURLParam.WithErr(err).Write(w)
		return
	}
	req := &apicommon.CancelRequest{}
	if r.ContentLength != 0 {
		if err := a.validator.DecodeJSON(r, req); err != nil {
			writeError(w, err, errors.ErrBookingNotFound)
			return
		}
	}
	reason := req.Reason
	if reason == "" {
		reason = "canceled by the user"
		if admin {
			reason = "canceled by " + user.ID
		}
	}
	booking, err := a.ledger.Cancel(id, user.ID, admin, reason)
	if err != nil {
		writeError(w, err, errors.ErrBookingNotFound)
		return
	}
	apicommon.HTTPWriteJSON(w, booking)
}

func (a *API) adminAdsHandler(w http.ResponseWriter, r *http.Request) {
	var status *db.AdStatus
	if s := r.URL.Query().Get("status"); s != "" {
		adStatus := db.AdStatus(s)
		status = &adStatus
	}
	ads, err := a.ledger.Ads(status)
	if err != nil {
		writeError(w, err, errors.ErrAdNotFound)
		return
	}
	apicommon.HTTPWriteJSON(w, ads)
}

// reviewAdHandler godoc
//
//	@Summary		Review a partner ad
//	@Description	Approve or reject a partner ad. Only approved ads can book slots and be shown.
//	@Tags			admin
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			adID	path		string						true	"Ad ID"
//	@Param			request	body		apicommon.ReviewAdRequest	true	"Decision"
//	@Success		200		{object}	db.PartnerAd
//	@Failure		403		{object}	errors.Error	"Admin role required"
//	@Failure		404		{object}	errors.Error	"Ad not found"
//	@Router			/admin/partners/ads/{adID}/review [post]
func (a *API) reviewAdHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := apicommon.UserFromContext(r.Context())
	if !ok {
		errors.ErrUnauthorized.Write(w)
		return
	}
	id, err := apicommon.ObjectIDFromRequest(r, "adID")
	if err != nil {
		errors.ErrMalformedURLParam.WithErr(err).Write(w)
		return
	}
	req := &apicommon.ReviewAdRequest{}
	if err := a.validator.DecodeJSON(r, req); err != nil {
		writeError(w, err, errors.ErrAdNotFound)
		return
	}
	ad, err := a.ledger.ReviewAd(id, user.ID, req.Approve, req.Note)
	if err != nil {
		writeError(w, err, errors.ErrAdNotFound)
		return
	}
	apicommon.HTTPWriteJSON(w, ad)
}

func (a *API) adminBookingsHandler(w http.ResponseWriter, r *http.Request) {
	filter := db.BookingFilter{UserID: r.URL.Query().Get("user")}
	for _, s := range r.URL.Query()["status"] {
		filter.Status = append(filter.Status, db.BookingStatus(s))
	}
	bookings, err := a.ledger.Bookings(filter)
	if err != nil {
		writeError(w, err, errors.ErrBookingNotFound)
		return
	}
	apicommon.HTTPWriteJSON(w, bookings)
}

// grantBookingHandler godoc
//
//	@Summary		Grant a partner slot
//	@Description	Book a slot for an approved ad without payment. The booking is active right away.
//	@Tags			admin
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		apicommon.GrantRequest	true	"Ad, slot and days"
//	@Success		200		{object}	apicommon.BookingResponse
//	@Failure		403		{object}	errors.Error	"Admin role required"
//	@Failure		409		{object}	errors.Error	"Slot taken or ad already booked"
//	@Router			/admin/partners/bookings [post]
func (a *API) grantBookingHandler(w http.ResponseWriter, r *http.Request) {
	req := &apicommon.GrantRequest{}
	if err := a.validator.DecodeJSON(r, req); err != nil {
		writeError(w, err, errors.ErrAdNotFound)
		return
	}
	adID, err := primitive.ObjectIDFromHex(req.AdID)
	if err != nil {
		errors.ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	booking, err := a.ledger.Grant(adID, req.Slot, req.Days)
	if err != nil {
		writeError(w, err, errors.ErrAdNotFound)
		return
	}
	apicommon.HTTPWriteJSON(w, &apicommon.BookingResponse{Booking: booking})
}
