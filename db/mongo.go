package db

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.vocdoni.io/dvote/log"
)

const defaultTimeout = 10 * time.Second

// MongoStorage uses an external MongoDB service for storing the partner
// marketplace and shop data. Every state transition on bookings, orders and
// deliveries is a single conditional document operation, so no in-process
// locking is needed to keep the invariants across several replicas.
type MongoStorage struct {
	DBClient *mongo.Client
	database string

	partnerAds      *mongo.Collection
	partnerBookings *mongo.Collection
	shopProducts    *mongo.Collection
	shopOrders      *mongo.Collection
	shopDeliveries  *mongo.Collection
	migrations      *mongo.Collection
}

// New connects to the MongoDB server at url, initializes the collections of
// the provided database and applies the pending migrations.
func New(url, database string) (*MongoStorage, error) {
	if url == "" {
		return nil, fmt.Errorf("mongo URL is not defined")
	}
	if database == "" {
		return nil, fmt.Errorf("mongo database is not defined")
	}
	log.Infow("connecting to mongodb", "url", url, "database", database)
	// preparing connection
	opts := options.Client()
	opts.ApplyURI(url)
	opts.SetMaxConnecting(200)
	timeout := time.Second * 10
	opts.ConnectTimeout = &timeout
	// create a new client with the connection options
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to mongodb: %w", err)
	}
	// check if the connection is successful
	ctx, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("cannot connect to mongodb: %w", err)
	}
	ms := &MongoStorage{
		DBClient: client,
		database: database,
	}
	ms.initCollections(database)
	// if reset flag is enabled, Reset drops the database documents before
	// running the migrations
	if reset := os.Getenv("VOXEL_MONGO_RESET_DB"); reset != "" {
		if err := ms.Reset(); err != nil {
			return nil, err
		}
	}
	if err := ms.RunMigrationsUp(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return ms, nil
}

// Close disconnects the client from the MongoDB server.
func (ms *MongoStorage) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ms.DBClient.Disconnect(ctx); err != nil {
		log.Warn(err)
	}
}

// Reset removes every document from the domain collections. Collections and
// indexes are kept, so it can be used between tests.
func (ms *MongoStorage) Reset() error {
	log.Infof("resetting database")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, coll := range []*mongo.Collection{
		ms.partnerAds,
		ms.partnerBookings,
		ms.shopProducts,
		ms.shopOrders,
		ms.shopDeliveries,
	} {
		if _, err := coll.DeleteMany(ctx, map[string]any{}); err != nil {
			return fmt.Errorf("failed to reset collection %s: %w", coll.Name(), err)
		}
	}
	return nil
}

// String returns the name of the database used by the storage.
func (ms *MongoStorage) String() string {
	return ms.database
}
