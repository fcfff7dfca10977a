package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// leaseUnset is the $unset document that releases the lease of a delivery.
var leaseUnset = bson.M{
	"lockedAt": "",
	"lockedBy": "",
}

// attemptsLeft matches the deliveries that can still be claimed.
var attemptsLeft = bson.M{"$lt": bson.A{"$attempts", "$maxAttempts"}}

// attemptsExhausted matches the deliveries that reached their max attempts.
var attemptsExhausted = bson.M{"$gte": bson.A{"$attempts", "$maxAttempts"}}

// EnsureShopDelivery creates the delivery of a paid order if it does not exist
// yet. The upsert is keyed on the order ID and only writes on insert, so
// calling it several times for the same order enqueues a single delivery. The
// flag reports whether this call created it.
func (ms *MongoStorage) EnsureShopDelivery(order *ShopOrder, commands []string, maxAttempts int) (*ShopDelivery, bool, error) {
	if order == nil || order.ID.IsZero() || maxAttempts <= 0 {
		return nil, false, ErrInvalidData
	}
	if commands == nil {
		commands = []string{}
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	now := time.Now()
	update := bson.M{"$setOnInsert": bson.M{
		"_id":           primitive.NewObjectID(),
		"orderId":       order.ID,
		"minecraftName": order.MinecraftName,
		"commands":      commands,
		"status":        DeliveryStatusPending,
		"attempts":      0,
		"maxAttempts":   maxAttempts,
		"createdAt":     now,
		"updatedAt":     now,
	}}
	res, err := ms.shopDeliveries.UpdateOne(ctx, bson.M{"orderId": order.ID}, update,
		options.Update().SetUpsert(true))
	created := err == nil && res.UpsertedCount > 0
	// a concurrent upsert for the same order may lose the race on the unique
	// index, the delivery exists either way
	if err != nil && !duplicateKeyOn(err, "orderId") {
		return nil, false, fmt.Errorf("failed to ensure shop delivery: %w", err)
	}
	delivery, err := ms.ShopDeliveryByOrder(order.ID)
	if err != nil {
		return nil, false, err
	}
	return delivery, created, nil
}

// ShopDelivery returns the delivery with the given ID.
func (ms *MongoStorage) ShopDelivery(id primitive.ObjectID) (*ShopDelivery, error) {
	return ms.findShopDelivery(bson.M{"_id": id})
}

// ShopDeliveryByOrder returns the delivery of the given order.
func (ms *MongoStorage) ShopDeliveryByOrder(orderID primitive.ObjectID) (*ShopDelivery, error) {
	return ms.findShopDelivery(bson.M{"orderId": orderID})
}

func (ms *MongoStorage) findShopDelivery(filter bson.M) (*ShopDelivery, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	delivery := &ShopDelivery{}
	if err := ms.shopDeliveries.FindOne(ctx, filter).Decode(delivery); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get shop delivery: %w", err)
	}
	return delivery, nil
}

// FailStaleShopDeliveries marks as FAILED the PROCESSING deliveries whose lease
// expired and that have no attempts left. Each delivery is moved with its own
// conditional update, the moved ones are returned.
func (ms *MongoStorage) FailStaleShopDeliveries(now time.Time, lease time.Duration) ([]ShopDelivery, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	filter := bson.M{
		"status":   DeliveryStatusProcessing,
		"lockedAt": bson.M{"$lt": now.Add(-lease)},
		"$expr":    attemptsExhausted,
	}
	update := bson.M{
		"$set": bson.M{
			"status":    DeliveryStatusFailed,
			"lastError": "lease expired on last attempt",
			"failedAt":  now,
			"updatedAt": now,
		},
		"$unset": leaseUnset,
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	failed := []ShopDelivery{}
	for {
		delivery := ShopDelivery{}
		err := ms.shopDeliveries.FindOneAndUpdate(ctx, filter, update, opts).Decode(&delivery)
		if err == mongo.ErrNoDocuments {
			return failed, nil
		}
		if err != nil {
			return failed, fmt.Errorf("failed to fail stale shop deliveries: %w", err)
		}
		failed = append(failed, delivery)
	}
}

// ClaimNextShopDelivery leases the oldest claimable delivery to the worker: a
// PENDING one, or a PROCESSING one whose lease expired, with attempts left.
// The claim and the attempts increment happen in a single find-and-update.
// ErrNotFound is returned when nothing can be claimed.
func (ms *MongoStorage) ClaimNextShopDelivery(workerID string, now time.Time, lease time.Duration) (*ShopDelivery, error) {
	if workerID == "" {
		return nil, ErrInvalidData
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	filter := bson.M{
		"$or": bson.A{
			bson.M{"status": DeliveryStatusPending},
			bson.M{
				"status":   DeliveryStatusProcessing,
				"lockedAt": bson.M{"$lt": now.Add(-lease)},
			},
		},
		"$expr": attemptsLeft,
	}
	update := bson.M{
		"$set": bson.M{
			"status":    DeliveryStatusProcessing,
			"lockedAt":  now,
			"lockedBy":  workerID,
			"updatedAt": now,
		},
		"$inc": bson.M{"attempts": 1},
	}
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}).
		SetReturnDocument(options.After)
	delivery := &ShopDelivery{}
	if err := ms.shopDeliveries.FindOneAndUpdate(ctx, filter, update, opts).Decode(delivery); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to claim shop delivery: %w", err)
	}
	return delivery, nil
}

// CompleteShopDelivery marks a delivery leased by the worker as COMPLETED.
// Completing an already COMPLETED delivery returns it with a false flag; a
// delivery leased by another worker, or no longer leased, returns
// ErrLeaseLost.
func (ms *MongoStorage) CompleteShopDelivery(id primitive.ObjectID, workerID string) (*ShopDelivery, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	now := time.Now()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	delivery := &ShopDelivery{}
	err := ms.shopDeliveries.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": DeliveryStatusProcessing, "lockedBy": workerID},
		bson.M{
			"$set": bson.M{
				"status":      DeliveryStatusCompleted,
				"completedAt": now,
				"updatedAt":   now,
			},
			"$unset": leaseUnset,
		}, opts).Decode(delivery)
	if err == nil {
		return delivery, true, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, false, fmt.Errorf("failed to complete shop delivery: %w", err)
	}
	current, err := ms.ShopDelivery(id)
	if err != nil {
		return nil, false, err
	}
	if current.Status == DeliveryStatusCompleted {
		return current, false, nil
	}
	return current, false, ErrLeaseLost
}

// FailShopDelivery resolves a delivery leased by the worker as failed. If the
// delivery has no attempts left it becomes FAILED, otherwise it is requeued as
// PENDING. The flag reports whether this call made it FAILED. Failing an
// already FAILED delivery is not an error.
func (ms *MongoStorage) FailShopDelivery(id primitive.ObjectID, workerID, reason string) (*ShopDelivery, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	now := time.Now()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	leased := bson.M{"_id": id, "status": DeliveryStatusProcessing, "lockedBy": workerID}

	// terminal failure first
	terminal := bson.M{"$expr": attemptsExhausted}
	for k, v := range leased {
		terminal[k] = v
	}
	delivery := &ShopDelivery{}
	err := ms.shopDeliveries.FindOneAndUpdate(ctx, terminal, bson.M{
		"$set": bson.M{
			"status":    DeliveryStatusFailed,
			"lastError": reason,
			"failedAt":  now,
			"updatedAt": now,
		},
		"$unset": leaseUnset,
	}, opts).Decode(delivery)
	if err == nil {
		return delivery, true, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, false, fmt.Errorf("failed to fail shop delivery: %w", err)
	}

	// requeue
	delivery = &ShopDelivery{}
	err = ms.shopDeliveries.FindOneAndUpdate(ctx, leased, bson.M{
		"$set": bson.M{
			"status":    DeliveryStatusPending,
			"lastError": reason,
			"updatedAt": now,
		},
		"$unset": leaseUnset,
	}, opts).Decode(delivery)
	if err == nil {
		return delivery, false, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, false, fmt.Errorf("failed to requeue shop delivery: %w", err)
	}

	current, err := ms.ShopDelivery(id)
	if err != nil {
		return nil, false, err
	}
	if current.Status == DeliveryStatusFailed {
		return current, false, nil
	}
	return current, false, ErrLeaseLost
}

// RetryShopDelivery puts a FAILED delivery back in the queue with its attempts
// reset. Deliveries in any other status return ErrNotFailed.
func (ms *MongoStorage) RetryShopDelivery(id primitive.ObjectID) (*ShopDelivery, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	delivery := &ShopDelivery{}
	err := ms.shopDeliveries.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": DeliveryStatusFailed},
		bson.M{
			"$set": bson.M{
				"status":    DeliveryStatusPending,
				"attempts":  0,
				"updatedAt": time.Now(),
			},
			"$unset": bson.M{"failedAt": ""},
		}, opts).Decode(delivery)
	if err == nil {
		return delivery, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, fmt.Errorf("failed to retry shop delivery: %w", err)
	}
	if _, err := ms.ShopDelivery(id); err != nil {
		return nil, err
	}
	return nil, ErrNotFailed
}

// ShopDeliveries returns the deliveries in the given statuses (all of them if
// none is provided), oldest first.
func (ms *MongoStorage) ShopDeliveries(status ...DeliveryStatus) ([]ShopDelivery, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	filter := bson.M{}
	if len(status) > 0 {
		filter["status"] = bson.M{"$in": status}
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	deliveries, err := findAll[ShopDelivery](ctx, ms.shopDeliveries, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get shop deliveries: %w", err)
	}
	return deliveries, nil
}
