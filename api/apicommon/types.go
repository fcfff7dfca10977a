package apicommon

import (
	"time"

	"github.com/voxelhub/community-backend/db"
	"github.com/voxelhub/community-backend/partners"
)

// User is the caller identified by the JWT token.
type User struct {
	ID            string `json:"id"`
	Role          string `json:"role,omitempty"`
	MinecraftName string `json:"minecraftName,omitempty"`
}

// IsAdmin reports whether the user can use the admin routes.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// PartnerAdRequest is the ad a user submits to get a partner slot.
type PartnerAdRequest struct {
	ServerName    string `json:"serverName" validate:"required,max=64"`
	ServerAddress string `json:"serverAddress" validate:"required,serveraddr"`
	Description   string `json:"description" validate:"required,max=500"`
	BannerURL     string `json:"bannerUrl,omitempty" validate:"omitempty,url,max=512"`
	WebsiteURL    string `json:"websiteUrl,omitempty" validate:"omitempty,url,max=512"`
}

// ToDB returns the ad as stored, status and ownership are set by the ledger.
func (r *PartnerAdRequest) ToDB() *db.PartnerAd {
	return &db.PartnerAd{
		ServerName:    r.ServerName,
		ServerAddress: r.ServerAddress,
		Description:   r.Description,
		BannerURL:     r.BannerURL,
		WebsiteURL:    r.WebsiteURL,
	}
}

// ReviewAdRequest is the decision of an admin about a partner ad.
type ReviewAdRequest struct {
	Approve bool   `json:"approve"`
	Note    string `json:"note,omitempty" validate:"max=500"`
}

// PartnerBoard is the public view of the partner slots.
type PartnerBoard struct {
	Slots    []partners.Slot `json:"slots"`
	DayPrice int64           `json:"dayPrice"`
	Currency string          `json:"currency"`
	MinDays  int             `json:"minDays"`
	MaxDays  int             `json:"maxDays"`
}

// BookingRequest asks for a partner slot for the ad of the caller.
type BookingRequest struct {
	Slot     int                `json:"slot" validate:"min=0"`
	Days     int                `json:"days" validate:"required,min=1"`
	Provider db.PaymentProvider `json:"provider" validate:"required,oneof=PAYPAL STRIPE FREE"`
}

// GrantRequest gives a slot to an ad for free.
type GrantRequest struct {
	AdID string `json:"adId" validate:"required,len=24,hexadecimal"`
	Slot int    `json:"slot" validate:"min=0"`
	Days int    `json:"days" validate:"required,min=1"`
}

// CancelRequest carries the optional reason of a cancellation.
type CancelRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=200"`
}

// ProductRequest creates or updates a shop product.
type ProductRequest struct {
	Name        string   `json:"name" validate:"required,max=64"`
	Description string   `json:"description,omitempty" validate:"max=500"`
	Price       int64    `json:"price" validate:"min=0"`
	Currency    string   `json:"currency" validate:"required,currency"`
	Commands    []string `json:"commands" validate:"required,min=1,dive,required,max=256"`
	Active      bool     `json:"active"`
}

// ToDB returns the product as stored.
func (r *ProductRequest) ToDB() *db.ShopProduct {
	return &db.ShopProduct{
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		Currency:    r.Currency,
		Commands:    r.Commands,
		Active:      r.Active,
	}
}

// OrderItemRequest is a line of a shop order.
type OrderItemRequest struct {
	ProductID string `json:"productId" validate:"required,len=24,hexadecimal"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=64"`
}

// OrderRequest places a shop order. The Minecraft name defaults to the one of
// the JWT token.
type OrderRequest struct {
	MinecraftName string             `json:"minecraftName,omitempty" validate:"omitempty,mcname"`
	Items         []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
	Provider      db.PaymentProvider `json:"provider" validate:"required,oneof=PAYPAL STRIPE FREE"`
}

// CheckoutInfo tells the frontend where the buyer pays.
type CheckoutInfo struct {
	Provider  db.PaymentProvider `json:"provider"`
	URL       string             `json:"url"`
	SessionID string             `json:"sessionId,omitempty"`
	OrderID   string             `json:"orderId,omitempty"`
	ExpiresAt *time.Time         `json:"expiresAt,omitempty"`
}

// BookingResponse is a booking with the checkout that pays it, if any.
type BookingResponse struct {
	Booking  *db.PartnerBooking `json:"booking"`
	Checkout *CheckoutInfo      `json:"checkout,omitempty"`
}

// OrderResponse is an order with the checkout that pays it, if any.
type OrderResponse struct {
	Order    *db.ShopOrder `json:"order"`
	Checkout *CheckoutInfo `json:"checkout,omitempty"`
}

// PaymentStatus is the state of a booking or order after a confirmation or a
// capture.
type PaymentStatus struct {
	Kind    string `json:"kind"`
	ID      string `json:"id"`
	Status  string `json:"status"`
	Settled bool   `json:"settled"`
}

// PayPalCaptureRequest asks for the capture of an approved PayPal order.
type PayPalCaptureRequest struct {
	OrderID string `json:"orderId" validate:"required,max=64"`
}

// DeliveryResultRequest is sent by a worker to resolve a claimed delivery.
type DeliveryResultRequest struct {
	Worker string `json:"worker" validate:"required,max=64"`
	Reason string `json:"reason,omitempty" validate:"max=1000"`
}
