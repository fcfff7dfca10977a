package paypal

import (
	"fmt"
)

// PayPalError represents a PayPal-specific error
type PayPalError struct {
	Code    string
	Message string
	Err     error
}

func (e *PayPalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("paypal error [%s]: %s - %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("paypal error [%s]: %s", e.Code, e.Message)
}

func (e *PayPalError) Unwrap() error {
	return e.Err
}

// Is matches PayPalErrors by code.
func (e *PayPalError) Is(target error) bool {
	t, ok := target.(*PayPalError)
	return ok && t.Code == e.Code
}

// Common PayPal errors
var (
	ErrInvalidConfiguration = &PayPalError{Code: "invalid_configuration", Message: "invalid paypal configuration"}
	ErrAPICallFailed        = &PayPalError{Code: "api_call_failed", Message: "paypal API call failed"}
	ErrNothingToPay         = &PayPalError{Code: "nothing_to_pay", Message: "checkout target has no amount or is not pending"}
	ErrNoApproveLink        = &PayPalError{Code: "no_approve_link", Message: "paypal order has no approve link"}
	ErrPaymentNotCompleted  = &PayPalError{Code: "payment_not_completed", Message: "paypal order is not captured"}
	ErrAmountMismatch       = &PayPalError{Code: "amount_mismatch", Message: "captured amount does not match the order"}
)

// NewPayPalError creates a new PayPalError with the given code, message, and underlying error
func NewPayPalError(code, message string, err error) *PayPalError {
	return &PayPalError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
