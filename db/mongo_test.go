package db

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/voxelhub/community-backend/test"
)

var (
	testDB   *MongoStorage
	mongoURI string
)

const (
	testUserID        = "user-1"
	testOtherUserID   = "user-2"
	testMinecraftName = "Steve_01"
	testCurrency      = "eur"
	testWorker        = "lobby-1"
)

func TestMain(m *testing.M) {
	ctx := context.Background()
	// start a MongoDB container for testing
	dbContainer, err := test.StartMongoContainer(ctx)
	if err != nil {
		panic(fmt.Sprintf("failed to start MongoDB container: %v", err))
	}

	// get the MongoDB connection string
	mongoURI, err = dbContainer.Endpoint(ctx, "mongodb")
	if err != nil {
		panic(fmt.Sprintf("failed to get MongoDB endpoint: %v", err))
	}

	testDB, err = New(mongoURI, test.RandomDatabaseName())
	if err != nil {
		panic(fmt.Sprintf("failed to create new MongoDB connection: %v", err))
	}

	code := m.Run()

	// close the database connection
	testDB.Close()

	// stop the MongoDB container
	if err := dbContainer.Terminate(ctx); err != nil {
		panic(fmt.Sprintf("failed to stop MongoDB container: %v", err))
	}

	os.Exit(code)
}
