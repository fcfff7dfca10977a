package db

import (
	"context"
	"fmt"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/voxelhub/community-backend/migrations"
	"github.com/voxelhub/community-backend/test"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.vocdoni.io/dvote/log"
)

func TestMigrations(t *testing.T) {
	c := qt.New(t)

	log.Init("debug", "stdout", nil)
	testDBName := test.RandomDatabaseName()

	var adUserID string
	{
		testDB, err := New(mongoURI, testDBName)
		if err != nil {
			panic(fmt.Sprintf("failed to create new MongoDB connection: %v", err))
		}
		ad, err := testDB.SetPartnerAd(testPartnerAd(testUserID))
		c.Assert(err, qt.IsNil)
		adUserID = ad.UserID
		testDB.Close()
	}

	t.Run("UpAndDown", func(*testing.T) {
		migs := migrations.SortedByVersionAsc()
		lastVersion := migs[len(migs)-1].Version
		migrations.AddMigration(lastVersion+1, "test_migration", upRenameServerAddress, downRenameServerAddress)
		defer migrations.DelMigration(lastVersion + 1) // to avoid affecting other tests

		testDB, err := New(mongoURI, testDBName)
		if err != nil {
			panic(fmt.Sprintf("failed to create new MongoDB connection: %v", err))
		}
		ad, err := testDB.PartnerAdByUser(adUserID)
		c.Assert(err, qt.IsNil)
		c.Assert(ad.ServerAddress, qt.Equals, "") // the field was renamed

		// now roll back migration
		c.Assert(testDB.RunMigrationsDown(1), qt.IsNil)
		ad, err = testDB.PartnerAdByUser(adUserID)
		c.Assert(err, qt.IsNil)
		c.Assert(ad.ServerAddress, qt.Equals, "play.blocky.example")
		testDB.Close()
	})

	t.Run("Idempotency", func(*testing.T) {
		c.Log("check that all migrations can run again on top of an up-to-date DB")
		testDB, err := New(mongoURI, testDBName)
		if err != nil {
			panic(fmt.Sprintf("failed to create new MongoDB connection: %v", err))
		}
		c.Assert(testDB.migrations.Drop(context.TODO()), qt.IsNil)
		testDB.Close()

		testDB, err = New(mongoURI, testDBName)
		if err != nil {
			panic(fmt.Sprintf("failed to create new MongoDB connection: %v", err))
		}
		ad, err := testDB.PartnerAdByUser(adUserID)
		c.Assert(err, qt.IsNil)
		c.Assert(ad.ServerAddress, qt.Equals, "play.blocky.example")
		testDB.Close()
	})
}

func upRenameServerAddress(ctx context.Context, database *mongo.Database) error {
	_, err := database.Collection("partnerAds").UpdateMany(ctx,
		bson.M{"serverAddress": bson.M{"$exists": true}},
		bson.M{"$rename": bson.M{"serverAddress": "host"}},
	)
	if err != nil {
		return fmt.Errorf("failed to rename serverAddress field to host: %w", err)
	}
	return nil
}

func downRenameServerAddress(ctx context.Context, database *mongo.Database) error {
	_, err := database.Collection("partnerAds").UpdateMany(ctx,
		bson.M{"host": bson.M{"$exists": true}},
		bson.M{"$rename": bson.M{"host": "serverAddress"}},
	)
	if err != nil {
		return fmt.Errorf("failed to rename host field back to serverAddress: %w", err)
	}
	return nil
}
