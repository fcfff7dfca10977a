package shop

import (
	"errors"
	"fmt"

	"github.com/voxelhub/community-backend/db"
	"github.com/voxelhub/community-backend/metrics"
	"github.com/voxelhub/community-backend/notifications"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.vocdoni.io/dvote/log"
)

// ClaimNext leases the oldest claimable delivery to the worker. Deliveries
// whose lease expired on their last attempt are marked FAILED first.
// ErrNoDeliveryPending is returned when the queue is empty.
func (s *Service) ClaimNext(workerID string) (*db.ShopDelivery, error) {
	now := s.now()
	failed, err := s.db.FailStaleShopDeliveries(now, s.conf.Lease)
	if err != nil {
		log.Warnw("could not fail stale shop deliveries", "error", err)
	}
	for i := range failed {
		s.deliveryFailed(&failed[i])
	}

	delivery, err := s.db.ClaimNextShopDelivery(workerID, now, s.conf.Lease)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNoDeliveryPending
	}
	if err != nil {
		return nil, err
	}
	metrics.IncDelivery("claimed")
	log.Debugw("shop delivery claimed",
		"deliveryID", delivery.ID.Hex(),
		"worker", workerID,
		"attempt", delivery.Attempts)
	return delivery, nil
}

// Complete marks the delivery leased by the worker as COMPLETED and its order
// as DELIVERED. Completing it again is not an error.
func (s *Service) Complete(id primitive.ObjectID, workerID string) (*db.ShopDelivery, error) {
	delivery, completed, err := s.db.CompleteShopDelivery(id, workerID)
	if err != nil {
		return nil, err
	}
	// repeated on already completed deliveries, the order may have been left PAID
	if err := s.db.MarkShopOrderDelivered(delivery.OrderID); err != nil {
		return nil, err
	}
	if !completed {
		return delivery, nil
	}
	metrics.ObserveDeliveryCompleted(delivery.CreatedAt, delivery.CompletedAt)
	log.Infow("shop delivery completed",
		"deliveryID", id.Hex(),
		"orderID", delivery.OrderID.Hex(),
		"worker", workerID,
		"attempts", delivery.Attempts)
	return delivery, nil
}

// Fail reports that the worker could not run the delivery. It is requeued
// while attempts are left, otherwise it becomes FAILED and staff is
// notified.
func (s *Service) Fail(id primitive.ObjectID, workerID, reason string) (*db.ShopDelivery, error) {
	delivery, terminal, err := s.db.FailShopDelivery(id, workerID, reason)
	if err != nil {
		return nil, err
	}
	if terminal {
		s.deliveryFailed(delivery)
		return delivery, nil
	}
	if delivery.Status == db.DeliveryStatusPending {
		metrics.IncDelivery("requeued")
		log.Infow("shop delivery requeued",
			"deliveryID", id.Hex(),
			"worker", workerID,
			"attempts", delivery.Attempts,
			"reason", reason)
	}
	return delivery, nil
}

// Retry puts a FAILED delivery back in the queue with its attempts reset.
func (s *Service) Retry(id primitive.ObjectID) (*db.ShopDelivery, error) {
	delivery, err := s.db.RetryShopDelivery(id)
	if err != nil {
		return nil, err
	}
	metrics.IncDelivery("retried")
	log.Infow("shop delivery retried", "deliveryID", id.Hex())
	return delivery, nil
}

// Delivery returns the delivery with the given ID.
func (s *Service) Delivery(id primitive.ObjectID) (*db.ShopDelivery, error) {
	return s.db.ShopDelivery(id)
}

// Deliveries returns the deliveries in the given statuses, oldest first.
func (s *Service) Deliveries(status ...db.DeliveryStatus) ([]db.ShopDelivery, error) {
	return s.db.ShopDeliveries(status...)
}

func (s *Service) deliveryFailed(delivery *db.ShopDelivery) {
	metrics.IncDelivery("failed")
	log.Warnw("shop delivery failed",
		"deliveryID", delivery.ID.Hex(),
		"orderID", delivery.OrderID.Hex(),
		"attempts", delivery.Attempts,
		"error", delivery.LastError)
	notifications.Notify(s.notifier, &notifications.Notification{
		Title: "Shop delivery failed",
		Body:  delivery.LastError,
		Level: notifications.LevelWarning,
		Fields: []notifications.Field{
			{Name: "Delivery", Value: delivery.ID.Hex()},
			{Name: "Order", Value: delivery.OrderID.Hex()},
			{Name: "Player", Value: delivery.MinecraftName},
			{Name: "Attempts", Value: fmt.Sprintf("%d/%d", delivery.Attempts, delivery.MaxAttempts)},
		},
	})
}
