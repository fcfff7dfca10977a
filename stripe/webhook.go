package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	stripeapi "github.com/stripe/stripe-go/v81"
	"github.com/voxelhub/community-backend/db"
	"github.com/voxelhub/community-backend/metrics"
	"github.com/voxelhub/community-backend/payments"
	"go.vocdoni.io/dvote/log"
)

// HandleWebhookEvent processes a webhook event with idempotency. Events
// already processed are skipped; an event is only marked once its handler
// succeeded, so Stripe retries the ones that failed.
func (s *Service) HandleWebhookEvent(ctx context.Context, payload []byte, signatureHeader string) error {
	event, err := validateWebhookEvent(payload, signatureHeader, s.config.WebhookSecret)
	if err != nil {
		metrics.IncWebhookEvent(string(db.ProviderStripe), "unknown", "invalid")
		return err
	}

	processed, err := s.events.EventExists(ctx, event.ID)
	if err != nil {
		log.Warnw("stripe webhook: could not check event store", "event", event.ID, "error", err)
	}
	if processed {
		log.Debugf("stripe webhook: event %s already processed, skipping", event.ID)
		metrics.IncWebhookEvent(string(db.ProviderStripe), string(event.Type), "duplicate")
		return nil
	}

	handled, err := s.HandleEvent(event)
	if err != nil {
		metrics.IncWebhookEvent(string(db.ProviderStripe), string(event.Type), "failed")
		return err
	}
	result := "processed"
	if !handled {
		result = "ignored"
	}
	metrics.IncWebhookEvent(string(db.ProviderStripe), string(event.Type), result)

	if err := s.events.MarkProcessed(ctx, event.ID); err != nil {
		log.Warnw("stripe webhook: could not mark event processed", "event", event.ID, "error", err)
	}
	return nil
}

// HandleEvent dispatches a verified event. It reports whether the event type
// is one the service acts on.
func (s *Service) HandleEvent(event *stripeapi.Event) (bool, error) {
	switch event.Type {
	case stripeapi.EventTypeCheckoutSessionCompleted,
		stripeapi.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		return true, s.handleSessionPaid(event)
	case stripeapi.EventTypeCheckoutSessionExpired,
		stripeapi.EventTypeCheckoutSessionAsyncPaymentFailed:
		return true, s.handleSessionClosed(event)
	default:
		log.Debugf("stripe webhook: received unhandled event type %s (id %s)", event.Type, event.ID)
		return false, nil
	}
}

// handleSessionPaid settles the target of a paid session. Sessions completed
// with a payment still processing are settled later by the async event.
func (s *Service) handleSessionPaid(event *stripeapi.Event) error {
	session, err := parseSessionFromEvent(event)
	if err != nil {
		return err
	}
	if session.PaymentStatus != stripeapi.CheckoutSessionPaymentStatusPaid {
		log.Infow("stripe webhook: checkout session not paid yet",
			"session", session.ID,
			"paymentStatus", session.PaymentStatus)
		return nil
	}
	target, err := s.payments.ByStripeSession(session.ID)
	if errors.Is(err, payments.ErrPaymentNotFound) {
		log.Warnw("stripe webhook: paid session not linked to any booking or order",
			"session", session.ID,
			"metadata", session.Metadata)
		return nil
	}
	if err != nil {
		return err
	}

	settled, applied, err := s.payments.Settle(target, sessionPayment(session))
	if errors.Is(err, db.ErrNotPending) {
		// paid after being released, already reported for a refund
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to settle %s %s for session %s: %w", target.Kind, target.ID.Hex(), session.ID, err)
	}
	if applied {
		log.Infow("stripe webhook: payment settled",
			"kind", settled.Kind,
			"refID", settled.ID.Hex(),
			"session", session.ID)
	}
	return nil
}

// handleSessionClosed releases the target of a session that can no longer be
// paid.
func (s *Service) handleSessionClosed(event *stripeapi.Event) error {
	session, err := parseSessionFromEvent(event)
	if err != nil {
		return err
	}
	target, err := s.payments.ByStripeSession(session.ID)
	if errors.Is(err, payments.ErrPaymentNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.payments.Release(target, "checkout "+string(event.Type)); err != nil {
		return fmt.Errorf("failed to release %s %s for session %s: %w", target.Kind, target.ID.Hex(), session.ID, err)
	}
	log.Infow("stripe webhook: checkout closed", "kind", target.Kind, "refID", target.ID.Hex(), "session", session.ID)
	return nil
}

// parseSessionFromEvent extracts the checkout session of a webhook event
func parseSessionFromEvent(event *stripeapi.Event) (*stripeapi.CheckoutSession, error) {
	if event.Data == nil {
		return nil, ErrInvalidEvent
	}
	var session stripeapi.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, NewStripeError(ErrInvalidEvent.Code, "failed to parse checkout session from event", err)
	}
	if session.ID == "" {
		return nil, NewStripeError(ErrInvalidEvent.Code, "checkout session without ID", nil)
	}
	return &session, nil
}
