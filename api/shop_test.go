package api

import (
	"net/http"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/voxelhub/community-backend/api/apicommon"
	"github.com/voxelhub/community-backend/db"
)

func deliveryPath(endpoint, deliveryID string) string {
	return strings.ReplaceAll(endpoint, "{deliveryID}", deliveryID)
}

// createProduct adds an active product to the catalog.
func createProduct(c *qt.C, name string, price int64, commands ...string) *db.ShopProduct {
	admin := testToken(c, testAdminID, "admin", "")
	resp, code := testRequest(c, http.MethodPost, admin, &apicommon.ProductRequest{
		Name:     name,
		Price:    price,
		Currency: "eur",
		Commands: commands,
		Active:   true,
	}, adminProductsEndpoint)
	c.Assert(code, qt.Equals, http.StatusOK, qt.Commentf("response: %s", resp))
	product := &db.ShopProduct{}
	decode(c, resp, product)
	return product
}

func TestShopProducts(t *testing.T) {
	c := qt.New(t)
	resetDB(c)
	admin := testToken(c, testAdminID, "admin", "")

	resp, code := testRequest(c, http.MethodPost, admin, &apicommon.ProductRequest{
		Name:     "Rank VIP",
		Price:    999,
		Currency: "EUR",
		Commands: []string{"lp user {player} parent add vip"},
	}, adminProductsEndpoint)
	c.Assert(code, qt.Equals, http.StatusBadRequest, qt.Commentf("response: %s", resp))
	c.Assert(string(resp), qt.Contains, "40004")

	vip := createProduct(c, "Rank VIP", 999, "lp user {player} parent add vip")
	kit := createProduct(c, "Starter kit", 250, "kit give {player} starter")

	// disabled products leave the public catalog
	resp, code = testRequest(c, http.MethodPut, admin, &apicommon.ProductRequest{
		Name:     kit.Name,
		Price:    kit.Price,
		Currency: kit.Currency,
		Commands: kit.Commands,
		Active:   false,
	}, strings.ReplaceAll(adminProductEndpoint, "{productID}", kit.ID.Hex()))
	c.Assert(code, qt.Equals, http.StatusOK, qt.Commentf("response: %s", resp))

	resp, code = testRequest(c, http.MethodGet, "", nil, shopProductsEndpoint)
	c.Assert(code, qt.Equals, http.StatusOK)
	products := []db.ShopProduct{}
	decode(c, resp, &products)
	c.Assert(products, qt.HasLen, 1)
	c.Assert(products[0].ID, qt.Equals, vip.ID)

	resp, code = testRequest(c, http.MethodGet, admin, nil, adminProductsEndpoint)
	c.Assert(code, qt.Equals, http.StatusOK)
	decode(c, resp, &products)
	c.Assert(products, qt.HasLen, 2)

	// ordering the disabled product
	token := testToken(c, testUserID, "", testMCName)
	resp, code = testRequest(c, http.MethodPost, token, &apicommon.OrderRequest{
		Items:    []apicommon.OrderItemRequest{{ProductID: kit.ID.Hex(), Quantity: 1}},
		Provider: db.ProviderStripe,
	}, shopOrdersEndpoint)
	c.Assert(code, qt.Equals, http.StatusBadRequest)
	c.Assert(string(resp), qt.Contains, "40011")
}

func TestShopOrder(t *testing.T) {
	c := qt.New(t)
	resetDB(c)
	product := createProduct(c, "Starter kit", 250, "kit give {player} starter", "say welcome {player}")

	// a Minecraft name is required, from the request or the token
	noName := testToken(c, testUserID, "", "")
	resp, code := testRequest(c, http.MethodPost, noName, &apicommon.OrderRequest{
		Items:    []apicommon.OrderItemRequest{{ProductID: product.ID.Hex(), Quantity: 2}},
		Provider: db.ProviderStripe,
	}, shopOrdersEndpoint)
	c.Assert(code, qt.Equals, http.StatusBadRequest)
	c.Assert(string(resp), qt.Contains, "40012")

	token := testToken(c, testUserID, "", testMCName)
	resp, code = testRequest(c, http.MethodPost, token, &apicommon.OrderRequest{
		Items:    []apicommon.OrderItemRequest{{ProductID: product.ID.Hex(), Quantity: 2}},
		Provider: db.ProviderStripe,
	}, shopOrdersEndpoint)
	c.Assert(code, qt.Equals, http.StatusOK, qt.Commentf("response: %s", resp))
	placed := &apicommon.OrderResponse{}
	decode(c, resp, placed)
	c.Assert(placed.Order.Status, qt.Equals, db.OrderStatusPending)
	c.Assert(placed.Order.MinecraftName, qt.Equals, testMCName)
	c.Assert(placed.Order.Total, qt.Equals, int64(500))
	c.Assert(placed.Checkout, qt.IsNotNil)

	// nothing is queued until the order is paid
	worker := testWorkerToken
	_, code = testRequest(c, http.MethodGet, worker, nil, deliveriesNextEndpoint+"?worker="+testWorkerID)
	c.Assert(code, qt.Equals, http.StatusNoContent)

	// the confirmation is refused while unpaid and to other users
	confirmPath := strings.ReplaceAll(stripeConfirmEndpoint, "{sessionID}", placed.Checkout.SessionID)
	resp, code = testRequest(c, http.MethodGet, token, nil, confirmPath)
	c.Assert(code, qt.Equals, http.StatusBadRequest)
	c.Assert(string(resp), qt.Contains, "40013")
	testGateway.pay(placed.Checkout.SessionID)
	_, code = testRequest(c, http.MethodGet, testToken(c, testOtherID, "", ""), nil, confirmPath)
	c.Assert(code, qt.Equals, http.StatusNotFound)

	resp, code = testRequest(c, http.MethodGet, token, nil, confirmPath)
	c.Assert(code, qt.Equals, http.StatusOK, qt.Commentf("response: %s", resp))
	status := &apicommon.PaymentStatus{}
	decode(c, resp, status)
	c.Assert(status.Kind, qt.Equals, "order")
	c.Assert(status.ID, qt.Equals, placed.Order.ID.Hex())
	c.Assert(status.Status, qt.Equals, string(db.OrderStatusPaid))
	c.Assert(status.Settled, qt.IsTrue)

	// a paid order has nothing left to check out
	resp, code = testRequest(c, http.MethodPost, token, nil,
		strings.ReplaceAll(shopOrderCheckoutEndpoint, "{orderID}", placed.Order.ID.Hex()))
	c.Assert(code, qt.Equals, http.StatusConflict)
	c.Assert(string(resp), qt.Contains, "40904")

	// the worker runs the rendered commands
	resp, code = testRequest(c, http.MethodGet, worker, nil, deliveriesNextEndpoint+"?worker="+testWorkerID)
	c.Assert(code, qt.Equals, http.StatusOK, qt.Commentf("response: %s", resp))
	delivery := &db.ShopDelivery{}
	decode(c, resp, delivery)
	c.Assert(delivery.OrderID, qt.Equals, placed.Order.ID)
	c.Assert(delivery.Commands, qt.DeepEquals, []string{
		"kit give Alex_42 starter",
		"say welcome Alex_42",
		"kit give Alex_42 starter",
		"say welcome Alex_42",
	})
	c.Assert(delivery.Status, qt.Equals, db.DeliveryStatusProcessing)

	// leased to the first worker
	_, code = testRequest(c, http.MethodGet, worker, nil, deliveriesNextEndpoint+"?worker=lobby-2")
	c.Assert(code, qt.Equals, http.StatusNoContent)
	resp, code = testRequest(c, http.MethodPost, worker, &apicommon.DeliveryResultRequest{Worker: "lobby-2"},
		deliveryPath(deliveryCompleteEndpoint, delivery.ID.Hex()))
	c.Assert(code, qt.Equals, http.StatusConflict)
	c.Assert(string(resp), qt.Contains, "40905")

	resp, code = testRequest(c, http.MethodPost, worker, &apicommon.DeliveryResultRequest{Worker: testWorkerID},
		deliveryPath(deliveryCompleteEndpoint, delivery.ID.Hex()))
	c.Assert(code, qt.Equals, http.StatusOK, qt.Commentf("response: %s", resp))
	decode(c, resp, delivery)
	c.Assert(delivery.Status, qt.Equals, db.DeliveryStatusCompleted)

	resp, code = testRequest(c, http.MethodGet, token, nil, shopOrdersEndpoint)
	c.Assert(code, qt.Equals, http.StatusOK)
	orders := []db.ShopOrder{}
	decode(c, resp, &orders)
	c.Assert(orders, qt.HasLen, 1)
	c.Assert(orders[0].Status, qt.Equals, db.OrderStatusDelivered)
}

func TestShopFreeOrder(t *testing.T) {
	c := qt.New(t)
	resetDB(c)
	product := createProduct(c, "Welcome gift", 0, "give {player} bread 16")
	token := testToken(c, testUserID, "", "")

	resp, code := testRequest(c, http.MethodPost, token, &apicommon.OrderRequest{
		MinecraftName: "Steve",
		Items:         []apicommon.OrderItemRequest{{ProductID: product.ID.Hex(), Quantity: 1}},
		Provider:      db.ProviderPayPal,
	}, shopOrdersEndpoint)
	c.Assert(code, qt.Equals, http.StatusServiceUnavailable, qt.Commentf("response: %s", resp))

	resp, code = testRequest(c, http.MethodPost, token, &apicommon.OrderRequest{
		MinecraftName: "Steve",
		Items:         []apicommon.OrderItemRequest{{ProductID: product.ID.Hex(), Quantity: 1}},
		Provider:      db.ProviderStripe,
	}, shopOrdersEndpoint)
	c.Assert(code, qt.Equals, http.StatusOK, qt.Commentf("response: %s", resp))
	placed := &apicommon.OrderResponse{}
	decode(c, resp, placed)
	c.Assert(placed.Order.Status, qt.Equals, db.OrderStatusPaid)
	c.Assert(placed.Order.Provider, qt.Equals, db.ProviderFree)
	c.Assert(placed.Checkout, qt.IsNil)

	resp, code = testRequest(c, http.MethodGet, testWorkerToken, nil, deliveriesNextEndpoint+"?worker="+testWorkerID)
	c.Assert(code, qt.Equals, http.StatusOK, qt.Commentf("response: %s", resp))
	delivery := &db.ShopDelivery{}
	decode(c, resp, delivery)
	c.Assert(delivery.Commands, qt.DeepEquals, []string{"give Steve bread 16"})
}

func TestDeliveryFailures(t *testing.T) {
	c := qt.New(t)
	resetDB(c)
	product := createProduct(c, "Welcome gift", 0, "give {player} bread 16")
	token := testToken(c, testUserID, "", testMCName)
	admin := testToken(c, testAdminID, "admin", "")
	worker := testWorkerToken

	_, code := testRequest(c, http.MethodPost, token, &apicommon.OrderRequest{
		Items:    []apicommon.OrderItemRequest{{ProductID: product.ID.Hex(), Quantity: 1}},
		Provider: db.ProviderFree,
	}, shopOrdersEndpoint)
	c.Assert(code, qt.Equals, http.StatusOK)

	resp, code := testRequest(c, http.MethodGet, worker, nil, deliveriesNextEndpoint)
	c.Assert(code, qt.Equals, http.StatusBadRequest)
	c.Assert(string(resp), qt.Contains, "40005")

	// every attempt fails until the delivery is given up
	delivery := &db.ShopDelivery{}
	for {
		resp, code = testRequest(c, http.MethodGet, worker, nil, deliveriesNextEndpoint+"?worker="+testWorkerID)
		if code == http.StatusNoContent {
			break
		}
		c.Assert(code, qt.Equals, http.StatusOK, qt.Commentf("response: %s", resp))
		decode(c, resp, delivery)
		resp, code = testRequest(c, http.MethodPost, worker,
			&apicommon.DeliveryResultRequest{Worker: testWorkerID, Reason: "player offline"},
			deliveryPath(deliveryFailEndpoint, delivery.ID.Hex()))
		c.Assert(code, qt.Equals, http.StatusOK, qt.Commentf("response: %s", resp))
		decode(c, resp, delivery)
	}
	c.Assert(delivery.Status, qt.Equals, db.DeliveryStatusFailed)
	c.Assert(delivery.Attempts, qt.Equals, delivery.MaxAttempts)
	c.Assert(delivery.LastError, qt.Equals, "player offline")

	resp, code = testRequest(c, http.MethodGet, admin, nil, adminDeliveriesEndpoint+"?status=FAILED")
	c.Assert(code, qt.Equals, http.StatusOK)
	failed := []db.ShopDelivery{}
	decode(c, resp, &failed)
	c.Assert(failed, qt.HasLen, 1)

	// staff puts it back in the queue
	retryPath := deliveryPath(adminDeliveryRetryEndpoint, delivery.ID.Hex())
	resp, code = testRequest(c, http.MethodPost, admin, nil, retryPath)
	c.Assert(code, qt.Equals, http.StatusOK, qt.Commentf("response: %s", resp))
	decode(c, resp, delivery)
	c.Assert(delivery.Status, qt.Equals, db.DeliveryStatusPending)
	c.Assert(delivery.Attempts, qt.Equals, 0)

	resp, code = testRequest(c, http.MethodPost, admin, nil, retryPath)
	c.Assert(code, qt.Equals, http.StatusConflict)
	c.Assert(string(resp), qt.Contains, "40906")

	_, code = testRequest(c, http.MethodGet, worker, nil, deliveriesNextEndpoint+"?worker="+testWorkerID)
	c.Assert(code, qt.Equals, http.StatusOK)
}
