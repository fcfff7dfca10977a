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

// CreateShopOrder stores a new PENDING order. Items, total and buyer must be
// already resolved by the caller.
func (ms *MongoStorage) CreateShopOrder(order *ShopOrder) error {
	if order == nil || order.UserID == "" || order.MinecraftName == "" || len(order.Items) == 0 {
		return ErrInvalidData
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	now := time.Now()
	order.ID = primitive.NewObjectID()
	order.Status = OrderStatusPending
	order.CreatedAt = now
	order.UpdatedAt = now
	if _, err := ms.shopOrders.InsertOne(ctx, order); err != nil {
		return fmt.Errorf("failed to create shop order: %w", err)
	}
	return nil
}

// ShopOrder returns the order with the given ID.
func (ms *MongoStorage) ShopOrder(id primitive.ObjectID) (*ShopOrder, error) {
	return ms.findShopOrder(bson.M{"_id": id})
}

// ShopOrderByStripeSession returns the order paid through the given Stripe
// checkout session.
func (ms *MongoStorage) ShopOrderByStripeSession(sessionID string) (*ShopOrder, error) {
	if sessionID == "" {
		return nil, ErrInvalidData
	}
	return ms.findShopOrder(bson.M{"stripeSessionId": sessionID})
}

// ShopOrderByPayPalOrder returns the order paid through the given PayPal
// order.
func (ms *MongoStorage) ShopOrderByPayPalOrder(orderID string) (*ShopOrder, error) {
	if orderID == "" {
		return nil, ErrInvalidData
	}
	return ms.findShopOrder(bson.M{"paypalOrderId": orderID})
}

func (ms *MongoStorage) findShopOrder(filter bson.M) (*ShopOrder, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	order := &ShopOrder{}
	if err := ms.shopOrders.FindOne(ctx, filter).Decode(order); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get shop order: %w", err)
	}
	return order, nil
}

// SetShopOrderCheckout stores the provider references of a checkout started
// for a PENDING order. Only non-empty references are written.
func (ms *MongoStorage) SetShopOrderCheckout(id primitive.ObjectID, provider PaymentProvider,
	stripeSessionID, paypalOrderID string,
) error {
	set := bson.M{"provider": provider, "updatedAt": time.Now()}
	if stripeSessionID != "" {
		set["stripeSessionId"] = stripeSessionID
	}
	if paypalOrderID != "" {
		set["paypalOrderId"] = paypalOrderID
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	res, err := ms.shopOrders.UpdateOne(ctx,
		bson.M{"_id": id, "status": OrderStatusPending},
		bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to set shop order checkout: %w", err)
	}
	if res.MatchedCount == 0 {
		if _, err := ms.ShopOrder(id); err != nil {
			return err
		}
		return ErrNotPending
	}
	return nil
}

// MarkShopOrderPaid moves a PENDING order to PAID with a single conditional
// update. The flag is true only for the call that performed the transition,
// orders already PAID or DELIVERED are returned as they are. A CANCELED order
// returns ErrNotPending.
func (ms *MongoStorage) MarkShopOrderPaid(id primitive.ObjectID, payment Payment) (*ShopOrder, bool, error) {
	paidAt := payment.PaidAt
	if paidAt.IsZero() {
		paidAt = time.Now()
	}
	set := bson.M{
		"status":    OrderStatusPaid,
		"provider":  payment.Provider,
		"paidAt":    paidAt,
		"updatedAt": time.Now(),
	}
	setPaymentRefs(set, payment)

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	paid := &ShopOrder{}
	err := ms.shopOrders.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": OrderStatusPending},
		bson.M{"$set": set}, opts).Decode(paid)
	if err == nil {
		return paid, true, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, false, fmt.Errorf("failed to mark shop order paid: %w", err)
	}
	current, err := ms.ShopOrder(id)
	if err != nil {
		return nil, false, err
	}
	if current.Status.IsPaid() {
		return current, false, nil
	}
	return current, false, ErrNotPending
}

// CancelShopOrder moves a PENDING order to CANCELED. Canceling an already
// CANCELED order is not an error; paid orders return ErrNotPending.
func (ms *MongoStorage) CancelShopOrder(id primitive.ObjectID) (*ShopOrder, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	now := time.Now()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	canceled := &ShopOrder{}
	err := ms.shopOrders.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": OrderStatusPending},
		bson.M{"$set": bson.M{
			"status":     OrderStatusCanceled,
			"canceledAt": now,
			"updatedAt":  now,
		}}, opts).Decode(canceled)
	if err == nil {
		return canceled, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, fmt.Errorf("failed to cancel shop order: %w", err)
	}
	current, err := ms.ShopOrder(id)
	if err != nil {
		return nil, err
	}
	if current.Status == OrderStatusCanceled {
		return current, nil
	}
	return current, ErrNotPending
}

// MarkShopOrderDelivered moves a PAID order to DELIVERED. It does nothing if
// the order is not PAID.
func (ms *MongoStorage) MarkShopOrderDelivered(id primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	now := time.Now()
	if _, err := ms.shopOrders.UpdateOne(ctx,
		bson.M{"_id": id, "status": OrderStatusPaid},
		bson.M{"$set": bson.M{
			"status":      OrderStatusDelivered,
			"deliveredAt": now,
			"updatedAt":   now,
		}}); err != nil {
		return fmt.Errorf("failed to mark shop order delivered: %w", err)
	}
	return nil
}

// OrderFilter narrows the orders returned by ShopOrders. Zero values are
// ignored.
type OrderFilter struct {
	UserID string
	Status []OrderStatus
}

// ShopOrders returns the orders matching the filter, newest first.
func (ms *MongoStorage) ShopOrders(f OrderFilter) ([]ShopOrder, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	filter := bson.M{}
	if f.UserID != "" {
		filter["userId"] = f.UserID
	}
	if len(f.Status) > 0 {
		filter["status"] = bson.M{"$in": f.Status}
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	orders, err := findAll[ShopOrder](ctx, ms.shopOrders, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get shop orders: %w", err)
	}
	return orders, nil
}
