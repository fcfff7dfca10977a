package db

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.vocdoni.io/dvote/log"
)

// initCollections sets the collection handlers of the storage. Collection
// creation, validators and indexes are handled by the migrations package.
func (ms *MongoStorage) initCollections(database string) {
	db := ms.DBClient.Database(database)
	ms.partnerAds = db.Collection("partnerAds")
	ms.partnerBookings = db.Collection("partnerBookings")
	ms.shopProducts = db.Collection("shopProducts")
	ms.shopOrders = db.Collection("shopOrders")
	ms.shopDeliveries = db.Collection("shopDeliveries")
	ms.migrations = db.Collection("migrations")
}

// duplicateKeyOn reports whether err is a duplicate key error raised by an
// index over the given field. The server reports the offending index in the
// error message ("index: slotActiveKey_1 dup key: ..."), which is the only
// place where the field can be recovered from.
func duplicateKeyOn(err error, field string) bool {
	if !mongo.IsDuplicateKeyError(err) {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if strings.Contains(e.Message, field) {
				return true
			}
		}
		return false
	}
	return strings.Contains(err.Error(), field)
}

// dynamicUpdateDocument creates a BSON update document from a struct, including only non-zero fields.
// It uses reflection to iterate over the struct fields and create the update document.
// The struct fields must have a bson tag to be included in the update document.
// The _id field is skipped.
func dynamicUpdateDocument(item any, alwaysUpdateTags []string) (bson.M, error) {
	val := reflect.ValueOf(item)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	if !val.IsValid() || val.Kind() != reflect.Struct {
		return nil, fmt.Errorf("input must be a valid struct")
	}
	update := bson.M{}
	typ := val.Type()
	// create a map for quick lookup
	alwaysUpdateMap := make(map[string]bool, len(alwaysUpdateTags))
	for _, tag := range alwaysUpdateTags {
		alwaysUpdateMap[tag] = true
	}
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		if !field.CanInterface() {
			continue
		}
		fieldType := typ.Field(i)
		tag := strings.Split(fieldType.Tag.Get("bson"), ",")[0]
		if tag == "" || tag == "-" || tag == "_id" {
			continue
		}
		// check if the field should always be updated or is not the zero value
		_, alwaysUpdate := alwaysUpdateMap[tag]
		if alwaysUpdate || !reflect.DeepEqual(field.Interface(), reflect.Zero(field.Type()).Interface()) {
			update[tag] = field.Interface()
		}
	}
	return bson.M{"$set": update}, nil
}

// findAll decodes every document returned by the cursor into a slice of T,
// closing the cursor afterwards.
func findAll[T any](ctx context.Context, coll *mongo.Collection, filter any, opts ...*options.FindOptions) ([]T, error) {
	cursor, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := cursor.Close(ctx); err != nil {
			log.Warnw("error closing cursor", "error", err)
		}
	}()
	items := []T{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}
