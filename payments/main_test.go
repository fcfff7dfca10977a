package payments

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/voxelhub/community-backend/db"
	"github.com/voxelhub/community-backend/notifications"
	"github.com/voxelhub/community-backend/test"
)

var testDB *db.MongoStorage

func TestMain(m *testing.M) {
	ctx := context.Background()
	dbContainer, err := test.StartMongoContainer(ctx)
	if err != nil {
		panic(fmt.Sprintf("failed to start MongoDB container: %v", err))
	}
	mongoURI, err := dbContainer.Endpoint(ctx, "mongodb")
	if err != nil {
		panic(fmt.Sprintf("failed to get MongoDB endpoint: %v", err))
	}
	testDB, err = db.New(mongoURI, test.RandomDatabaseName())
	if err != nil {
		panic(fmt.Sprintf("failed to create new MongoDB connection: %v", err))
	}

	code := m.Run()

	testDB.Close()
	if err := dbContainer.Terminate(ctx); err != nil {
		panic(fmt.Sprintf("failed to stop MongoDB container: %v", err))
	}
	os.Exit(code)
}

// recorder is a notification service that keeps what it is sent.
type recorder struct {
	mu   sync.Mutex
	sent []notifications.Notification
}

func (r *recorder) New(any) error { return nil }

func (r *recorder) SendNotification(_ context.Context, n *notifications.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, *n)
	return nil
}

func (r *recorder) titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	titles := []string{}
	for _, n := range r.sent {
		titles = append(titles, n.Title)
	}
	return titles
}
