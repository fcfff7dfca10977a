package migrations

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func init() {
	AddMigration(2, "initial_indexes", upInitialIndexes, downInitialIndexes)
}

// uniqueStringIndex returns a unique index over an optional string field,
// documents without the field are not indexed.
func uniqueStringIndex(field string) mongo.IndexModel {
	return mongo.IndexModel{
		Keys: bson.D{{Key: field, Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.M{
				field: bson.M{"$exists": true, "$type": "string"},
			}),
	}
}

func upInitialIndexes(ctx context.Context, database *mongo.Database) error {
	ms := struct {
		partnerAds      *mongo.Collection
		partnerBookings *mongo.Collection
		shopProducts    *mongo.Collection
		shopOrders      *mongo.Collection
		shopDeliveries  *mongo.Collection
	}{
		partnerAds:      database.Collection("partnerAds"),
		partnerBookings: database.Collection("partnerBookings"),
		shopProducts:    database.Collection("shopProducts"),
		shopOrders:      database.Collection("shopOrders"),
		shopDeliveries:  database.Collection("shopDeliveries"),
	}

	// one ad per user
	if _, err := ms.partnerAds.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "updatedAt", Value: 1},
			},
		},
	}); err != nil {
		return fmt.Errorf("failed to create indexes for partner ads: %w", err)
	}

	// a slot and an ad are held by at most one PENDING or ACTIVE booking, the
	// keys are unset when the booking leaves those statuses
	if _, err := ms.partnerBookings.Indexes().CreateMany(ctx, []mongo.IndexModel{
		uniqueStringIndex("slotActiveKey"),
		uniqueStringIndex("adActiveKey"),
		uniqueStringIndex("stripeSessionId"),
		uniqueStringIndex("paypalOrderId"),
		{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "endsAt", Value: 1},
			},
		},
		{
			Keys: bson.D{
				{Key: "userId", Value: 1},
				{Key: "createdAt", Value: -1},
			},
		},
	}); err != nil {
		return fmt.Errorf("failed to create indexes for partner bookings: %w", err)
	}

	if _, err := ms.shopProducts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "active", Value: 1},
			{Key: "name", Value: 1},
		},
	}); err != nil {
		return fmt.Errorf("failed to create index on active and name for shop products: %w", err)
	}

	if _, err := ms.shopOrders.Indexes().CreateMany(ctx, []mongo.IndexModel{
		uniqueStringIndex("stripeSessionId"),
		uniqueStringIndex("paypalOrderId"),
		{
			Keys: bson.D{
				{Key: "userId", Value: 1},
				{Key: "createdAt", Value: -1},
			},
		},
	}); err != nil {
		return fmt.Errorf("failed to create indexes for shop orders: %w", err)
	}

	// one delivery per order, claimed by status in creation order
	if _, err := ms.shopDeliveries.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "orderId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "createdAt", Value: 1},
			},
		},
	}); err != nil {
		return fmt.Errorf("failed to create indexes for shop deliveries: %w", err)
	}
	return nil
}

func downInitialIndexes(ctx context.Context, database *mongo.Database) error {
	for _, name := range []string{
		"partnerAds",
		"partnerBookings",
		"shopProducts",
		"shopOrders",
		"shopDeliveries",
	} {
		if _, err := database.Collection(name).Indexes().DropAll(ctx); err != nil {
			return fmt.Errorf("failed to drop indexes of %s: %w", name, err)
		}
	}
	return nil
}
