package api

import (
	"net/http"

	"github.com/voxelhub/community-backend/api/apicommon"
	"github.com/voxelhub/community-backend/db"
	"github.com/voxelhub/community-backend/errors"
	"github.com/voxelhub/community-backend/payments"
	"github.com/voxelhub/community-backend/shop"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// productsHandler returns the products on sale.
func (a *API) productsHandler(w http.ResponseWriter, _ *http.Request) {
	products, err := a.shop.Products(true)
	if err != nil {
		writeError(w, err, errors.ErrProductNotFound)
		return
	}
	apicommon.HTTPWriteJSON(w, products)
}

func (a *API) adminProductsHandler(w http.ResponseWriter, _ *http.Request) {
	products, err := a.shop.Products(false)
	if err != nil {
		writeError(w, err, errors.ErrProductNotFound)
		return
	}
	apicommon.HTTPWriteJSON(w, products)
}

func (a *API) createProductHandler(w http.ResponseWriter, r *http.Request) {
	req := &apicommon.ProductRequest{}
	if err := a.validator.DecodeJSON(r, req); err != nil {
		writeError(w, err, errors.ErrProductNotFound)
		return
	}
	product, err := a.shop.SetProduct(req.ToDB())
	if err != nil {
		writeError(w, err, errors.ErrProductNotFound)
		return
	}
	apicommon.HTTPWriteJSON(w, product)
}

func (a *API) updateProductHandler(w http.ResponseWriter, r *http.Request) {
	id, err := apicommon.ObjectIDFromRequest(r, "productID")
	if err != nil {
		errors.ErrMalformedURLParam.WithErr(err).Write(w)
		return
	}
	req := &apicommon.ProductRequest{}
	if err := a.validator.DecodeJSON(r, req); err != nil {
		writeError(w, err, errors.ErrProductNotFound)
		return
	}
	update := req.ToDB()
	update.ID = id
	product, err := a.shop.SetProduct(update)
	if err != nil {
		writeError(w, err, errors.ErrProductNotFound)
		return
	}
	apicommon.HTTPWriteJSON(w, product)
}

// createOrderHandler godoc
//
//	@Summary		Place a shop order
//	@Description	Create an order for the given products. Prices and commands are those of the products when
//	@Description	the order is placed. The response carries the checkout where the user pays it, free orders
//	@Description	are paid and enqueued for delivery right away.
//	@Tags			shop
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		apicommon.OrderRequest	true	"Items, Minecraft name and payment provider"
//	@Success		200		{object}	apicommon.OrderResponse
//	@Failure		400		{object}	errors.Error	"Invalid items, product unavailable or missing Minecraft name"
//	@Failure		503		{object}	errors.Error	"Payment provider not configured"
//	@Router			/shop/orders [post]
func (a *API) createOrderHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := apicommon.UserFromContext(r.Context())
	if !ok {
		errors.ErrUnauthorized.Write(w)
		return
	}
	req := &apicommon.OrderRequest{}
	if err := a.validator.DecodeJSON(r, req); err != nil {
		writeError(w, err, errors.ErrOrderNotFound)
		return
	}
	if err := a.providerAvailable(req.Provider); err != nil {
		writeError(w, err, errors.ErrOrderNotFound)
		return
	}
	items := make([]shop.Item, 0, len(req.Items))
	for _, item := range req.Items {
		productID, err := primitive.ObjectIDFromHex(item.ProductID)
		if err != nil {
			errors.ErrMalformedBody.Withf("invalid product ID %q", item.ProductID).Write(w)
			return
		}
		items = append(items, shop.Item{ProductID: productID, Quantity: item.Quantity})
	}
	minecraftName := req.MinecraftName
	if minecraftName == "" {
		minecraftName = user.MinecraftName
	}
	order, err := a.shop.CreateOrder(user.ID, minecraftName, items, req.Provider)
	if err != nil {
		writeError(w, err, errors.ErrProductNotFound)
		return
	}
	checkout, err := a.startCheckout(r, payments.OrderTarget(order))
	if err != nil {
		writeError(w, err, errors.ErrOrderNotFound)
		return
	}
	apicommon.HTTPWriteJSON(w, &apicommon.OrderResponse{Order: order, Checkout: checkout})
}

func (a *API) ordersHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := apicommon.UserFromContext(r.Context())
	if !ok {
		errors.ErrUnauthorized.Write(w)
		return
	}
	orders, err := a.shop.Orders(db.OrderFilter{UserID: user.ID})
	if err != nil {
		writeError(w, err, errors.ErrOrderNotFound)
		return
	}
	apicommon.HTTPWriteJSON(w, orders)
}

// orderCheckoutHandler returns the checkout of a pending order of the user.
func (a *API) orderCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := apicommon.UserFromContext(r.Context())
	if !ok {
		errors.ErrUnauthorized.Write(w)
		return
	}
	id, err := apicommon.ObjectIDFromRequest(r, "orderID")
	if err != nil {
		errors.ErrMalformedURLParam.WithErr(err).Write(w)
		return
	}
	order, err := a.shop.Order(id)
	if err != nil {
		writeError(w, err, errors.ErrOrderNotFound)
		return
	}
	if order.UserID != user.ID {
		errors.ErrOrderNotFound.Write(w)
		return
	}
	target := payments.OrderTarget(order)
	if !target.Pending() {
		errors.ErrOrderNotPending.Write(w)
		return
	}
	checkout, err := a.checkout(r, target)
	if err != nil {
		writeError(w, err, errors.ErrOrderNotFound)
		return
	}
	apicommon.HTTPWriteJSON(w, &apicommon.OrderResponse{Order: order, Checkout: checkout})
}

func (a *API) adminOrdersHandler(w http.ResponseWriter, r *http.Request) {
	filter := db.OrderFilter{UserID: r.URL.Query().Get("user")}
	for _, s := range r.URL.Query()["status"] {
		filter.Status = append(filter.Status, db.OrderStatus(s))
	}
	orders, err := a.shop.Orders(filter)
	if err != nil {
		writeError(w, err, errors.ErrOrderNotFound)
		return
	}
	apicommon.HTTPWriteJSON(w, orders)
}
