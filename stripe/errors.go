package stripe

import (
	"fmt"
)

// StripeError represents a Stripe-specific error
type StripeError struct {
	Code    string
	Message string
	Err     error
}

func (e *StripeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stripe error [%s]: %s - %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("stripe error [%s]: %s", e.Code, e.Message)
}

func (e *StripeError) Unwrap() error {
	return e.Err
}

// Is matches StripeErrors by code, so wrapped errors can be compared with
// the sentinels below.
func (e *StripeError) Is(target error) bool {
	t, ok := target.(*StripeError)
	return ok && t.Code == e.Code
}

// Common Stripe errors
var (
	ErrInvalidEvent         = &StripeError{Code: "invalid_event", Message: "invalid webhook event"}
	ErrInvalidConfiguration = &StripeError{Code: "invalid_configuration", Message: "invalid stripe configuration"}
	ErrAPICallFailed        = &StripeError{Code: "api_call_failed", Message: "stripe API call failed"}
	ErrWebhookValidation    = &StripeError{Code: "webhook_validation", Message: "webhook signature validation failed"}
	ErrPaymentNotCompleted  = &StripeError{Code: "payment_not_completed", Message: "checkout session is not paid"}
	ErrNothingToPay         = &StripeError{Code: "nothing_to_pay", Message: "checkout target has no amount or is not pending"}
)

// NewStripeError creates a new StripeError with the given code, message, and underlying error
func NewStripeError(code, message string, err error) *StripeError {
	return &StripeError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
