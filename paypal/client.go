package paypal

import (
	"context"
	"errors"

	paypalapi "github.com/plutov/paypal/v4"
)

// issueAlreadyCaptured is the issue PayPal reports when capturing an order
// twice.
const issueAlreadyCaptured = "ORDER_ALREADY_CAPTURED"

// Gateway is the subset of the PayPal orders API used by the service. It is
// satisfied by *paypalapi.Client.
type Gateway interface {
	CreateOrder(ctx context.Context, intent string, purchaseUnits []paypalapi.PurchaseUnitRequest,
		paymentSource *paypalapi.PaymentSource, appContext *paypalapi.ApplicationContext) (*paypalapi.Order, error)
	GetOrder(ctx context.Context, orderID string) (*paypalapi.Order, error)
	CaptureOrderWithPaypalRequestId(ctx context.Context, orderID string, captureOrderRequest paypalapi.CaptureOrderRequest,
		requestID string, mockResponse *paypalapi.CaptureOrderMockResponse) (*paypalapi.CaptureOrderResponse, error)
}

var _ Gateway = (*paypalapi.Client)(nil)

// NewClient creates a PayPal API client and obtains its first access token.
// The client renews the token by itself afterwards.
func NewClient(ctx context.Context, config *Config) (*paypalapi.Client, error) {
	client, err := paypalapi.NewClient(config.ClientID, config.Secret, config.apiBase())
	if err != nil {
		return nil, NewPayPalError(ErrInvalidConfiguration.Code, "failed to create paypal client", err)
	}
	if _, err := client.GetAccessToken(ctx); err != nil {
		return nil, NewPayPalError(ErrAPICallFailed.Code, "failed to get paypal access token", err)
	}
	return client, nil
}

// hasIssue reports whether the error is a PayPal API error with the given
// issue in its details.
func hasIssue(err error, issue string) bool {
	var apiErr *paypalapi.ErrorResponse
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, detail := range apiErr.Details {
		if detail.Issue == issue {
			return true
		}
	}
	return false
}

// approveLink returns the link the buyer follows to approve the order.
func approveLink(order *paypalapi.Order) string {
	for _, link := range order.Links {
		if link.Rel == "approve" || link.Rel == "payer-action" {
			return link.Href
		}
	}
	return ""
}
