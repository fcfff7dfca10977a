package paypal

import (
	"fmt"

	paypalapi "github.com/plutov/paypal/v4"
)

// Config holds the PayPal configuration
type Config struct {
	ClientID string
	Secret   string
	// Sandbox selects the PayPal sandbox API instead of the live one.
	Sandbox bool
	// ReturnURL and CancelURL are where PayPal sends the buyer back after
	// approving or abandoning the order.
	ReturnURL string
	CancelURL string
	// BrandName is shown to the buyer on the PayPal pages.
	BrandName string
}

// Validate checks that the configuration can be used to talk to PayPal.
func (c *Config) Validate() error {
	if c.ClientID == "" || c.Secret == "" {
		return fmt.Errorf("%w: missing client credentials", ErrInvalidConfiguration)
	}
	if c.ReturnURL == "" || c.CancelURL == "" {
		return fmt.Errorf("%w: missing return URLs", ErrInvalidConfiguration)
	}
	return nil
}

// apiBase returns the API endpoint for the configured environment.
func (c *Config) apiBase() string {
	if c.Sandbox {
		return paypalapi.APIBaseSandBox
	}
	return paypalapi.APIBaseLive
}
