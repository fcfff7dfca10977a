// Package shop sells in-game items. A paid order enqueues a delivery, a batch
// of server commands that the Minecraft server integration claims, runs and
// reports back through the delivery queue.
package shop

import (
	"fmt"
	"time"

	"github.com/voxelhub/community-backend/db"
	"github.com/voxelhub/community-backend/notifications"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Service manages the products, orders and deliveries of the shop.
type Service struct {
	db       *db.MongoStorage
	conf     Config
	notifier notifications.NotificationService
	now      func() time.Time
}

// New creates the shop service over the given storage. The notifier may be
// nil.
func New(storage *db.MongoStorage, conf Config, notifier notifications.NotificationService) (*Service, error) {
	if storage == nil {
		return nil, fmt.Errorf("missing storage")
	}
	if err := conf.validate(); err != nil {
		return nil, err
	}
	return &Service{
		db:       storage,
		conf:     conf,
		notifier: notifier,
		now:      time.Now,
	}, nil
}

// SetProduct creates the product if its ID is zero, or updates it.
func (s *Service) SetProduct(product *db.ShopProduct) (*db.ShopProduct, error) {
	id, err := s.db.SetShopProduct(product)
	if err != nil {
		return nil, err
	}
	return s.db.ShopProduct(id)
}

// Product returns the product with the given ID.
func (s *Service) Product(id primitive.ObjectID) (*db.ShopProduct, error) {
	return s.db.ShopProduct(id)
}

// Products returns the catalog. The public one only has the active products.
func (s *Service) Products(onlyActive bool) ([]db.ShopProduct, error) {
	return s.db.ShopProducts(onlyActive)
}
