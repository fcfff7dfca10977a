// Package errors provides custom error types and definitions for the application.
//
//nolint:lll
package errors

import (
	"fmt"
	"net/http"
)

// The custom Error type satisfies the error interface.
// Error() returns a human-readable description of the error.
//
// Error codes in the 40001-49999 range are the user's fault,
// and they return HTTP Status 400, 401, 403, 404 or 409 (or even 204), whatever is most appropriate.
//
// Error codes 50001-59999 are the server's fault
// and they return HTTP Status 500 or 503, or something else if appropriate.
//
// NEVER change any of the current error codes, only append new errors after the current last 4XXXX or 5XXXX.
// There's no correlation between Code and HTTP Status.
//
// Do note that HTTPstatus 204 No Content implies the response body will be empty,
// so the Code and Message will actually be discarded, never sent to the client
var (
	// Authentication errors (401, 403)
	ErrUnauthorized  = Error{Code: 40001, HTTPstatus: http.StatusUnauthorized, Err: fmt.Errorf("authentication required"), LogLevel: "info"}
	ErrAdminRequired = Error{Code: 40002, HTTPstatus: http.StatusForbidden, Err: fmt.Errorf("admin role required"), LogLevel: "info"}
	ErrWorkerToken   = Error{Code: 40003, HTTPstatus: http.StatusUnauthorized, Err: fmt.Errorf("invalid delivery worker token"), LogLevel: "warn"}

	// Validation errors (400)
	ErrMalformedBody        = Error{Code: 40004, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid JSON request body")}
	ErrMalformedURLParam    = Error{Code: 40005, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid URL parameter")}
	ErrInvalidData          = Error{Code: 40006, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid data provided")}
	ErrInvalidSlot          = Error{Code: 40007, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("slot out of range")}
	ErrInvalidDays          = Error{Code: 40008, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("booking days out of range")}
	ErrInvalidProvider      = Error{Code: 40009, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("payment provider not supported")}
	ErrAdNotApproved        = Error{Code: 40010, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("partner ad is not approved")}
	ErrProductUnavailable   = Error{Code: 40011, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("shop product unavailable")}
	ErrMinecraftNameMissing = Error{Code: 40012, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("minecraft name is required")}
	ErrPaymentNotCompleted  = Error{Code: 40013, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("payment not completed"), LogLevel: "info"}

	// Not found errors (404)
	ErrAdNotFound       = Error{Code: 40014, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("partner ad not found")}
	ErrBookingNotFound  = Error{Code: 40015, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("partner booking not found")}
	ErrProductNotFound  = Error{Code: 40016, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("shop product not found")}
	ErrOrderNotFound    = Error{Code: 40017, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("shop order not found")}
	ErrDeliveryNotFound = Error{Code: 40018, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("shop delivery not found")}
	ErrPaymentNotFound  = Error{Code: 40019, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("no booking or order for this payment")}

	// Empty results (204)
	ErrNoDeliveryPending = Error{Code: 40020, HTTPstatus: http.StatusNoContent, Err: fmt.Errorf("no delivery to claim")}

	// Conflict errors (409)
	ErrSlotTaken         = Error{Code: 40901, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("slot already booked"), LogLevel: "info"}
	ErrAdAlreadyBooked   = Error{Code: 40902, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("ad already holds a slot"), LogLevel: "info"}
	ErrBookingNotPending = Error{Code: 40903, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("booking is not pending"), LogLevel: "warn"}
	ErrOrderNotPending   = Error{Code: 40904, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("order is not pending"), LogLevel: "warn"}
	ErrLeaseLost         = Error{Code: 40905, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("delivery lease lost"), LogLevel: "warn"}
	ErrDeliveryNotFailed = Error{Code: 40906, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("delivery is not failed")}

	// Server errors (500, 503)
	ErrInternalStorageError       = Error{Code: 50003, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("server error: storage operation failed"), LogLevel: "error"}
	ErrStripeError                = Error{Code: 50004, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("server error: stripe payment processing failed"), LogLevel: "error"}
	ErrStripeWebhookError         = Error{Code: 50005, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("server error: stripe webhook failed"), LogLevel: "error"}
	ErrPayPalError                = Error{Code: 50006, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("server error: paypal payment processing failed"), LogLevel: "error"}
	ErrProviderNotConfigured      = Error{Code: 50007, HTTPstatus: http.StatusServiceUnavailable, Err: fmt.Errorf("payment provider not configured"), LogLevel: "warn"}
)
