package stripe

import (
	"fmt"
	"strings"
	"time"
)

// Config holds the Stripe configuration
type Config struct {
	APIKey        string
	WebhookSecret string
	// SuccessURL and CancelURL are where Stripe sends the buyer back. The
	// success URL gets the session ID appended so the frontend can confirm it.
	SuccessURL string
	CancelURL  string
	// SessionTTL is how long a checkout session can be paid, counted from the
	// creation of what it pays. Stripe requires at least 30 minutes.
	SessionTTL time.Duration
	// EventTTL is how long processed webhook events are remembered.
	EventTTL time.Duration
}

// Validate checks that the configuration can be used to talk to Stripe.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("%w: missing API key", ErrInvalidConfiguration)
	}
	if c.WebhookSecret == "" {
		return fmt.Errorf("%w: missing webhook secret", ErrInvalidConfiguration)
	}
	if c.SuccessURL == "" || c.CancelURL == "" {
		return fmt.Errorf("%w: missing return URLs", ErrInvalidConfiguration)
	}
	return nil
}

// successURL returns the success URL with the session ID placeholder that
// Stripe fills in.
func (c *Config) successURL() string {
	sep := "?"
	if strings.Contains(c.SuccessURL, "?") {
		sep = "&"
	}
	return c.SuccessURL + sep + "session_id={CHECKOUT_SESSION_ID}"
}
