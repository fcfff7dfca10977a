package migrations

import (
	"context"
	"fmt"
	"slices"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func init() {
	AddMigration(1, "initial_collections", upInitialCollections, downInitialCollections)
}

var collectionsToCreate = []string{
	"partnerAds",
	"partnerBookings",
	"shopProducts",
	"shopOrders",
	"shopDeliveries",
	"migrations",
}

var collectionsValidators = map[string]bson.M{
	"partnerBookings": partnerBookingsCollectionValidator,
	"shopOrders":      shopOrdersCollectionValidator,
	"shopDeliveries":  shopDeliveriesCollectionValidator,
}

var partnerBookingsCollectionValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "adId", "userId", "slot", "status", "days"},
		"properties": bson.M{
			"adId": bson.M{
				"bsonType":    "objectId",
				"description": "must be the id of the booked ad and is required",
			},
			"slot": bson.M{
				"bsonType":    []string{"int", "long"},
				"description": "must be a non negative slot index and is required",
				"minimum":     0,
			},
			"status": bson.M{
				"enum":        []string{"PENDING", "ACTIVE", "EXPIRED", "CANCELED"},
				"description": "must be a valid booking status and is required",
			},
			"days": bson.M{
				"bsonType":    []string{"int", "long"},
				"description": "must be a positive number of days and is required",
				"minimum":     1,
			},
			"slotActiveKey": bson.M{
				"bsonType":    "string",
				"description": "must be a string when present",
			},
			"adActiveKey": bson.M{
				"bsonType":    "string",
				"description": "must be a string when present",
			},
		},
	},
}

var shopOrdersCollectionValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "userId", "minecraftName", "items", "total", "status"},
		"properties": bson.M{
			"items": bson.M{
				"bsonType":    "array",
				"description": "must be a non empty array and is required",
				"minItems":    1,
			},
			"total": bson.M{
				"bsonType":    []string{"int", "long"},
				"description": "must be a non negative amount in minor units and is required",
				"minimum":     0,
			},
			"status": bson.M{
				"enum":        []string{"PENDING", "PAID", "DELIVERED", "CANCELED"},
				"description": "must be a valid order status and is required",
			},
		},
	},
}

var shopDeliveriesCollectionValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "orderId", "status", "attempts", "maxAttempts"},
		"properties": bson.M{
			"orderId": bson.M{
				"bsonType":    "objectId",
				"description": "must be the id of the paid order and is required",
			},
			"status": bson.M{
				"enum":        []string{"PENDING", "PROCESSING", "COMPLETED", "FAILED"},
				"description": "must be a valid delivery status and is required",
			},
			"attempts": bson.M{
				"bsonType":    []string{"int", "long"},
				"description": "must be a non negative integer and is required",
				"minimum":     0,
			},
			"maxAttempts": bson.M{
				"bsonType":    []string{"int", "long"},
				"description": "must be a positive integer and is required",
				"minimum":     1,
			},
		},
	},
}

func upInitialCollections(ctx context.Context, database *mongo.Database) error {
	// get the current collections names to create only the missing ones
	currentCollections, err := listCollectionsInDB(ctx, database)
	if err != nil {
		return fmt.Errorf("failed to get current collections: %w", err)
	}
	for _, name := range collectionsToCreate {
		if slices.Contains(currentCollections, name) {
			continue
		}
		// if the collection has a validator create it with it
		opts := options.CreateCollection()
		if validator, ok := collectionsValidators[name]; ok {
			opts = opts.SetValidator(validator).SetValidationLevel("strict").SetValidationAction("error")
		}
		if err := database.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed to create collection %s: %w", name, err)
		}
	}
	return nil
}

func downInitialCollections(context.Context, *mongo.Database) error {
	// dropping the collections would destroy every booking and order, the up
	// func is idempotent anyway
	return nil
}
