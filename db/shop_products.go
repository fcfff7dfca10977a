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

// SetShopProduct creates a product if its ID is zero, or updates the stored
// one otherwise. On update only the non-zero fields are written, except the
// active flag that is always set.
func (ms *MongoStorage) SetShopProduct(product *ShopProduct) (primitive.ObjectID, error) {
	if product == nil || product.Price < 0 {
		return primitive.NilObjectID, ErrInvalidData
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	now := time.Now()
	if product.ID.IsZero() {
		if product.Name == "" || product.Currency == "" {
			return primitive.NilObjectID, ErrInvalidData
		}
		product.ID = primitive.NewObjectID()
		product.CreatedAt = now
		product.UpdatedAt = now
		if product.Commands == nil {
			product.Commands = []string{}
		}
		if _, err := ms.shopProducts.InsertOne(ctx, product); err != nil {
			return primitive.NilObjectID, fmt.Errorf("failed to create shop product: %w", err)
		}
		return product.ID, nil
	}

	product.CreatedAt = time.Time{}
	product.UpdatedAt = now
	update, err := dynamicUpdateDocument(product, []string{"active"})
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("failed to build shop product update: %w", err)
	}
	res, err := ms.shopProducts.UpdateOne(ctx, bson.M{"_id": product.ID}, update)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("failed to update shop product: %w", err)
	}
	if res.MatchedCount == 0 {
		return primitive.NilObjectID, ErrNotFound
	}
	return product.ID, nil
}

// ShopProduct returns the product with the given ID.
func (ms *MongoStorage) ShopProduct(id primitive.ObjectID) (*ShopProduct, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	product := &ShopProduct{}
	if err := ms.shopProducts.FindOne(ctx, bson.M{"_id": id}).Decode(product); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get shop product: %w", err)
	}
	return product, nil
}

// ShopProducts returns the products sorted by name. If onlyActive is set the
// inactive ones are left out.
func (ms *MongoStorage) ShopProducts(onlyActive bool) ([]ShopProduct, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	filter := bson.M{}
	if onlyActive {
		filter["active"] = true
	}
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	products, err := findAll[ShopProduct](ctx, ms.shopProducts, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get shop products: %w", err)
	}
	return products, nil
}

// ShopProductsByIDs returns the products with the given IDs, keyed by ID.
func (ms *MongoStorage) ShopProductsByIDs(ids []primitive.ObjectID) (map[primitive.ObjectID]ShopProduct, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	products, err := findAll[ShopProduct](ctx, ms.shopProducts, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to get shop products: %w", err)
	}
	byID := make(map[primitive.ObjectID]ShopProduct, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return byID, nil
}
