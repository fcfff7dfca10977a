package shop

import (
	"errors"
	"strings"

	"github.com/voxelhub/community-backend/db"
	"github.com/voxelhub/community-backend/metrics"
	"github.com/voxelhub/community-backend/validator"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.vocdoni.io/dvote/log"
)

// playerPlaceholder is replaced in the product commands with the Minecraft
// name of the buyer.
const playerPlaceholder = "{player}"

// Item is a product and the quantity requested in an order.
type Item struct {
	ProductID primitive.ObjectID `json:"productId"`
	Quantity  int                `json:"quantity"`
}

// CreateOrder creates a PENDING order for the items, snapshotting the price
// and the commands of each product. Orders with a zero total are paid right
// away with the FREE provider and their delivery is enqueued.
func (s *Service) CreateOrder(userID, minecraftName string, items []Item, provider db.PaymentProvider) (*db.ShopOrder, error) {
	if !validator.ValidMinecraftName(minecraftName) {
		return nil, ErrMinecraftNameMissing
	}
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}
	if len(items) > s.conf.MaxItems {
		return nil, db.ErrInvalidData
	}
	ids := make([]primitive.ObjectID, 0, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		ids = append(ids, item.ProductID)
	}
	products, err := s.db.ShopProductsByIDs(ids)
	if err != nil {
		return nil, err
	}

	order := &db.ShopOrder{
		UserID:        userID,
		MinecraftName: minecraftName,
		Items:         make([]db.OrderItem, 0, len(items)),
	}
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok || !product.Active {
			return nil, ErrProductUnavailable
		}
		if order.Currency == "" {
			order.Currency = product.Currency
		} else if order.Currency != product.Currency {
			return nil, ErrMixedCurrencies
		}
		order.Items = append(order.Items, db.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			Quantity:  item.Quantity,
			UnitPrice: product.Price,
			Commands:  product.Commands,
		})
		order.Total += product.Price * int64(item.Quantity)
	}

	if order.Total == 0 {
		provider = db.ProviderFree
	}
	if !db.IsValidProvider(provider) || (provider == db.ProviderFree && order.Total > 0) {
		return nil, ErrInvalidProvider
	}
	order.Provider = provider
	if err := s.db.CreateShopOrder(order); err != nil {
		return nil, err
	}
	log.Infow("shop order created",
		"orderID", order.ID.Hex(),
		"userID", userID,
		"total", order.Total,
		"currency", order.Currency,
		"provider", provider)

	if provider != db.ProviderFree {
		return order, nil
	}
	paid, _, err := s.MarkPaid(order.ID, db.Payment{Provider: db.ProviderFree, PaidAt: s.now()})
	if err != nil {
		return nil, err
	}
	return paid, nil
}

// MarkPaid moves a PENDING order to PAID and enqueues its delivery. It can be
// called any number of times for the same payment: the order is paid and the
// delivery is enqueued once, and the flag is true only for the call that paid
// the order. Already paid orders still make sure their delivery exists.
func (s *Service) MarkPaid(id primitive.ObjectID, payment db.Payment) (*db.ShopOrder, bool, error) {
	order, paid, err := s.db.MarkShopOrderPaid(id, payment)
	if errors.Is(err, db.ErrNotPending) {
		log.Warnw("payment received for a canceled shop order, refund required",
			"orderID", id.Hex(),
			"provider", payment.Provider,
			"stripeSession", payment.StripeSessionID,
			"paypalOrder", payment.PayPalOrderID)
		return order, false, ErrOrderNotPending
	}
	if err != nil {
		return nil, false, err
	}
	if paid {
		log.Infow("shop order paid", "orderID", id.Hex(), "provider", payment.Provider)
	}
	if order.Status == db.OrderStatusDelivered {
		return order, paid, nil
	}
	if _, err := s.EnsureDelivery(order); err != nil {
		return order, paid, err
	}
	return order, paid, nil
}

// EnsureDelivery enqueues the delivery of a paid order unless it already
// exists.
func (s *Service) EnsureDelivery(order *db.ShopOrder) (*db.ShopDelivery, error) {
	delivery, created, err := s.db.EnsureShopDelivery(order, RenderCommands(order), s.conf.MaxAttempts)
	if err != nil {
		return nil, err
	}
	if created {
		metrics.IncDelivery("enqueued")
		log.Infow("shop delivery enqueued",
			"deliveryID", delivery.ID.Hex(),
			"orderID", order.ID.Hex(),
			"commands", len(delivery.Commands))
	}
	return delivery, nil
}

// RenderCommands returns the commands of every item of the order, repeated
// per unit, with the placeholder replaced by the Minecraft name of the
// buyer.
func RenderCommands(order *db.ShopOrder) []string {
	commands := []string{}
	for _, item := range order.Items {
		for i := 0; i < item.Quantity; i++ {
			for _, cmd := range item.Commands {
				commands = append(commands, strings.ReplaceAll(cmd, playerPlaceholder, order.MinecraftName))
			}
		}
	}
	return commands
}

// Cancel cancels a PENDING order.
func (s *Service) Cancel(id primitive.ObjectID) (*db.ShopOrder, error) {
	order, err := s.db.CancelShopOrder(id)
	if errors.Is(err, db.ErrNotPending) {
		return order, ErrOrderNotPending
	}
	if err != nil {
		return nil, err
	}
	log.Infow("shop order canceled", "orderID", id.Hex())
	return order, nil
}

// Order returns the order with the given ID.
func (s *Service) Order(id primitive.ObjectID) (*db.ShopOrder, error) {
	return s.db.ShopOrder(id)
}

// OrderByStripeSession returns the order paid through a Stripe checkout
// session.
func (s *Service) OrderByStripeSession(sessionID string) (*db.ShopOrder, error) {
	return s.db.ShopOrderByStripeSession(sessionID)
}

// OrderByPayPalOrder returns the order paid through a PayPal order.
func (s *Service) OrderByPayPalOrder(orderID string) (*db.ShopOrder, error) {
	return s.db.ShopOrderByPayPalOrder(orderID)
}

// SetCheckout stores the provider references of the checkout started for a
// PENDING order.
func (s *Service) SetCheckout(id primitive.ObjectID, provider db.PaymentProvider, stripeSessionID, paypalOrderID string) error {
	err := s.db.SetShopOrderCheckout(id, provider, stripeSessionID, paypalOrderID)
	if errors.Is(err, db.ErrNotPending) {
		return ErrOrderNotPending
	}
	return err
}

// Orders returns the orders matching the filter.
func (s *Service) Orders(filter db.OrderFilter) ([]db.ShopOrder, error) {
	return s.db.ShopOrders(filter)
}
