package stripe

import (
	stripeapi "github.com/stripe/stripe-go/v81"
	stripeclient "github.com/stripe/stripe-go/v81/client"
	stripewebhook "github.com/stripe/stripe-go/v81/webhook"
)

// Gateway is the subset of the Stripe API used by the service.
type Gateway interface {
	NewCheckoutSession(params *stripeapi.CheckoutSessionParams) (*stripeapi.CheckoutSession, error)
	CheckoutSession(sessionID string) (*stripeapi.CheckoutSession, error)
}

// Client wraps the Stripe API client
type Client struct {
	api *stripeclient.API
}

// NewClient creates a new Stripe client with the given API key
func NewClient(apiKey string) *Client {
	return &Client{api: stripeclient.New(apiKey, nil)}
}

// NewCheckoutSession creates a checkout session.
func (c *Client) NewCheckoutSession(params *stripeapi.CheckoutSessionParams) (*stripeapi.CheckoutSession, error) {
	session, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, NewStripeError(ErrAPICallFailed.Code, "failed to create checkout session", err)
	}
	return session, nil
}

// CheckoutSession retrieves a checkout session by ID
func (c *Client) CheckoutSession(sessionID string) (*stripeapi.CheckoutSession, error) {
	params := &stripeapi.CheckoutSessionParams{}
	params.AddExpand("payment_intent")
	session, err := c.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, NewStripeError(ErrAPICallFailed.Code, "failed to get checkout session", err)
	}
	return session, nil
}

// validateWebhookEvent validates and parses a webhook event. Events sent
// with another API version are accepted, only the checkout session fields
// are read from them.
func validateWebhookEvent(payload []byte, signatureHeader, secret string) (*stripeapi.Event, error) {
	event, err := stripewebhook.ConstructEventWithOptions(payload, signatureHeader, secret,
		stripewebhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, NewStripeError(ErrWebhookValidation.Code, ErrWebhookValidation.Message, err)
	}
	return &event, nil
}
