package api

import (
	"net/http"

	"github.com/voxelhub/community-backend/api/apicommon"
	"github.com/voxelhub/community-backend/db"
	"github.com/voxelhub/community-backend/errors"
)

// nextDeliveryHandler godoc
//
//	@Summary		Claim the next delivery
//	@Description	Lease the oldest pending delivery, or one whose lease expired, to the worker. The worker
//	@Description	must complete or fail it before the lease ends, otherwise it is handed to another worker.
//	@Tags			deliveries
//	@Produce		json
//	@Param			worker	query		string	true	"Worker ID"
//	@Success		200		{object}	db.ShopDelivery
//	@Success		204		"No delivery to claim"
//	@Failure		401		{object}	errors.Error	"Invalid worker token"
//	@Router			/deliveries/next [get]
func (a *API) nextDeliveryHandler(w http.ResponseWriter, r *http.Request) {
	worker := r.URL.Query().Get("worker")
	if worker == "" || len(worker) > 64 {
		errors.ErrMalformedURLParam.Withf("worker is required").Write(w)
		return
	}
	delivery, err := a.shop.ClaimNext(worker)
	if err != nil {
		writeError(w, err, errors.ErrDeliveryNotFound)
		return
	}
	apicommon.HTTPWriteJSON(w, delivery)
}

func (a *API) completeDeliveryHandler(w http.ResponseWriter, r *http.Request) {
	id, err := apicommon.ObjectIDFromRequest(r, "deliveryID")
	if err != nil {
		errors.ErrMalformedURLParam.WithErr(err).Write(w)
		return
	}
	req := &apicommon.DeliveryResultRequest{}
	if err := a.validator.DecodeJSON(r, req); err != nil {
		writeError(w, err, errors.ErrDeliveryNotFound)
		return
	}
	delivery, err := a.shop.Complete(id, req.Worker)
	if err != nil {
		writeError(w, err, errors.ErrDeliveryNotFound)
		return
	}
	apicommon.HTTPWriteJSON(w, delivery)
}

func (a *API) failDeliveryHandler(w http.ResponseWriter, r *http.Request) {
	id, err := apicommon.ObjectIDFromRequest(r, "deliveryID")
	if err != nil {
		errors.ErrMalformedURLParam.WithErr(err).Write(w)
		return
	}
	req := &apicommon.DeliveryResultRequest{}
	if err := a.validator.DecodeJSON(r, req); err != nil {
		writeError(w, err, errors.ErrDeliveryNotFound)
		return
	}
	delivery, err := a.shop.Fail(id, req.Worker, req.Reason)
	if err != nil {
		writeError(w, err, errors.ErrDeliveryNotFound)
		return
	}
	apicommon.HTTPWriteJSON(w, delivery)
}

func (a *API) adminDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
	var status []db.DeliveryStatus
	for _, s := range r.URL.Query()["status"] {
		status = append(status, db.DeliveryStatus(s))
	}
	deliveries, err := a.shop.Deliveries(status...)
	if err != nil {
		writeError(w, err, errors.ErrDeliveryNotFound)
		return
	}
	apicommon.HTTPWriteJSON(w, deliveries)
}

func (a *API) retryDeliveryHandler(w http.ResponseWriter, r *http.Request) {
	id, err := apicommon.ObjectIDFromRequest(r, "deliveryID")
	if err != nil {
		errors.ErrMalformedURLParam.WithErr(err).Write(w)
		return
	}
	delivery, err := a.shop.Retry(id)
	if err != nil {
		writeError(w, err, errors.ErrDeliveryNotFound)
		return
	}
	apicommon.HTTPWriteJSON(w, delivery)
}
