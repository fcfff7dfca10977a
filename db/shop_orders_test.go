package db

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newTestProduct(c *qt.C, name string, price int64) *ShopProduct {
	product := &ShopProduct{
		Name:     name,
		Price:    price,
		Currency: testCurrency,
		Commands: []string{"give {player} diamond 1"},
		Active:   true,
	}
	id, err := testDB.SetShopProduct(product)
	c.Assert(err, qt.IsNil)
	c.Assert(id.IsZero(), qt.IsFalse)
	return product
}

func newTestOrder(c *qt.C, product *ShopProduct, quantity int) *ShopOrder {
	order := &ShopOrder{
		UserID:        testUserID,
		MinecraftName: testMinecraftName,
		Items: []OrderItem{{
			ProductID: product.ID,
			Name:      product.Name,
			Quantity:  quantity,
			UnitPrice: product.Price,
			Commands:  product.Commands,
		}},
		Total:    product.Price * int64(quantity),
		Currency: product.Currency,
		Provider: ProviderStripe,
	}
	c.Assert(testDB.CreateShopOrder(order), qt.IsNil)
	return order
}

func TestShopProducts(t *testing.T) {
	c := qt.New(t)
	c.Cleanup(func() { c.Assert(testDB.Reset(), qt.IsNil) })

	_, err := testDB.SetShopProduct(&ShopProduct{Price: 10})
	c.Assert(err, qt.Equals, ErrInvalidData)

	vip := newTestProduct(c, "VIP rank", 999)
	newTestProduct(c, "Diamond kit", 250)

	// deactivate the rank, the price is kept
	_, err = testDB.SetShopProduct(&ShopProduct{ID: vip.ID, Active: false})
	c.Assert(err, qt.IsNil)
	stored, err := testDB.ShopProduct(vip.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(stored.Active, qt.IsFalse)
	c.Assert(stored.Price, qt.Equals, int64(999))
	c.Assert(stored.Name, qt.Equals, "VIP rank")

	active, err := testDB.ShopProducts(true)
	c.Assert(err, qt.IsNil)
	c.Assert(active, qt.HasLen, 1)
	c.Assert(active[0].Name, qt.Equals, "Diamond kit")

	all, err := testDB.ShopProducts(false)
	c.Assert(err, qt.IsNil)
	c.Assert(all, qt.HasLen, 2)

	byID, err := testDB.ShopProductsByIDs([]primitive.ObjectID{vip.ID, primitive.NewObjectID()})
	c.Assert(err, qt.IsNil)
	c.Assert(byID, qt.HasLen, 1)

	_, err = testDB.SetShopProduct(&ShopProduct{ID: primitive.NewObjectID(), Name: "ghost"})
	c.Assert(err, qt.Equals, ErrNotFound)
}

func TestMarkShopOrderPaid(t *testing.T) {
	c := qt.New(t)
	c.Cleanup(func() { c.Assert(testDB.Reset(), qt.IsNil) })

	order := newTestOrder(c, newTestProduct(c, "Diamond kit", 250), 2)
	c.Assert(order.Status, qt.Equals, OrderStatusPending)
	c.Assert(testDB.SetShopOrderCheckout(order.ID, ProviderPayPal, "", "PAYPAL-ORDER-1"), qt.IsNil)

	found, err := testDB.ShopOrderByPayPalOrder("PAYPAL-ORDER-1")
	c.Assert(err, qt.IsNil)
	c.Assert(found.ID, qt.Equals, order.ID)
	c.Assert(found.Provider, qt.Equals, ProviderPayPal)

	payment := Payment{
		Provider:        ProviderPayPal,
		PayPalOrderID:   "PAYPAL-ORDER-1",
		PayPalCaptureID: "CAPTURE-1",
	}
	paid, ok, err := testDB.MarkShopOrderPaid(order.ID, payment)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)
	c.Assert(paid.Status, qt.Equals, OrderStatusPaid)
	c.Assert(paid.PayPalCaptureID, qt.Equals, "CAPTURE-1")

	_, ok, err = testDB.MarkShopOrderPaid(order.ID, payment)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)

	_, err = testDB.CancelShopOrder(order.ID)
	c.Assert(err, qt.Equals, ErrNotPending)

	c.Assert(testDB.MarkShopOrderDelivered(order.ID), qt.IsNil)
	delivered, err := testDB.ShopOrder(order.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(delivered.Status, qt.Equals, OrderStatusDelivered)
	c.Assert(delivered.DeliveredAt.IsZero(), qt.IsFalse)

	// paying a delivered order again is still a success
	_, ok, err = testDB.MarkShopOrderPaid(order.ID, payment)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)
}

func TestCancelShopOrder(t *testing.T) {
	c := qt.New(t)
	c.Cleanup(func() { c.Assert(testDB.Reset(), qt.IsNil) })

	order := newTestOrder(c, newTestProduct(c, "Diamond kit", 250), 1)
	canceled, err := testDB.CancelShopOrder(order.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(canceled.Status, qt.Equals, OrderStatusCanceled)

	_, err = testDB.CancelShopOrder(order.ID)
	c.Assert(err, qt.IsNil)

	_, _, err = testDB.MarkShopOrderPaid(order.ID, Payment{Provider: ProviderStripe})
	c.Assert(err, qt.Equals, ErrNotPending)

	orders, err := testDB.ShopOrders(OrderFilter{UserID: testUserID, Status: []OrderStatus{OrderStatusCanceled}})
	c.Assert(err, qt.IsNil)
	c.Assert(orders, qt.HasLen, 1)

	_, err = testDB.CancelShopOrder(primitive.NewObjectID())
	c.Assert(err, qt.Equals, ErrNotFound)
}
