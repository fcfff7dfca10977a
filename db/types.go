package db

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AdStatus string

type BookingStatus string

type PaymentProvider string

type OrderStatus string

type DeliveryStatus string

// PartnerAd is the advertisement a partner server shows when it holds a
// slot. Every user owns at most one ad.
type PartnerAd struct {
	ID            primitive.ObjectID `json:"id" bson:"_id"`
	UserID        string             `json:"userId" bson:"userId"`
	ServerName    string             `json:"serverName" bson:"serverName"`
	ServerAddress string             `json:"serverAddress" bson:"serverAddress"`
	Description   string             `json:"description" bson:"description"`
	BannerURL     string             `json:"bannerUrl,omitempty" bson:"bannerUrl,omitempty"`
	WebsiteURL    string             `json:"websiteUrl,omitempty" bson:"websiteUrl,omitempty"`
	Status        AdStatus           `json:"status" bson:"status"`
	ReviewNote    string             `json:"reviewNote,omitempty" bson:"reviewNote,omitempty"`
	ReviewedBy    string             `json:"reviewedBy,omitempty" bson:"reviewedBy,omitempty"`
	CreatedAt     time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// PartnerBooking is a time-bounded reservation of a slot. The SlotActiveKey
// and AdActiveKey fields are only present while the booking is PENDING or
// ACTIVE, the unique partial indexes over them enforce that a slot (and an
// ad) is held by at most one booking at a time.
type PartnerBooking struct {
	ID                    primitive.ObjectID `json:"id" bson:"_id"`
	AdID                  primitive.ObjectID `json:"adId" bson:"adId"`
	UserID                string             `json:"userId" bson:"userId"`
	Slot                  int                `json:"slot" bson:"slot"`
	Status                BookingStatus      `json:"status" bson:"status"`
	Provider              PaymentProvider    `json:"provider" bson:"provider"`
	Days                  int                `json:"days" bson:"days"`
	Amount                int64              `json:"amount" bson:"amount"`
	Currency              string             `json:"currency" bson:"currency"`
	StartsAt              time.Time          `json:"startsAt,omitempty" bson:"startsAt,omitempty"`
	EndsAt                time.Time          `json:"endsAt,omitempty" bson:"endsAt,omitempty"`
	SlotActiveKey         string             `json:"-" bson:"slotActiveKey,omitempty"`
	AdActiveKey           string             `json:"-" bson:"adActiveKey,omitempty"`
	StripeSessionID       string             `json:"stripeSessionId,omitempty" bson:"stripeSessionId,omitempty"`
	StripePaymentIntentID string             `json:"stripePaymentIntentId,omitempty" bson:"stripePaymentIntentId,omitempty"`
	PayPalOrderID         string             `json:"paypalOrderId,omitempty" bson:"paypalOrderId,omitempty"`
	PayPalCaptureID       string             `json:"paypalCaptureId,omitempty" bson:"paypalCaptureId,omitempty"`
	PaidAt                time.Time          `json:"paidAt,omitempty" bson:"paidAt,omitempty"`
	CanceledAt            time.Time          `json:"canceledAt,omitempty" bson:"canceledAt,omitempty"`
	CancelReason          string             `json:"cancelReason,omitempty" bson:"cancelReason,omitempty"`
	CreatedAt             time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt             time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// SlotKey returns the value of the slotActiveKey field for the slot.
func SlotKey(slot int) string {
	return fmt.Sprintf("slot:%d", slot)
}

// AdKey returns the value of the adActiveKey field for the ad.
func AdKey(adID primitive.ObjectID) string {
	return "ad:" + adID.Hex()
}

// Payment holds the provider references stored when a booking or an order is
// moved out of PENDING.
type Payment struct {
	Provider              PaymentProvider
	StripeSessionID       string
	StripePaymentIntentID string
	PayPalOrderID         string
	PayPalCaptureID       string
	PaidAt                time.Time
}

// ShopProduct is an item of the shop. Commands are executed in-game by the
// delivery worker after the order is paid, {player} is replaced with the
// buyer's Minecraft name.
type ShopProduct struct {
	ID          primitive.ObjectID `json:"id" bson:"_id"`
	Name        string             `json:"name" bson:"name"`
	Description string             `json:"description,omitempty" bson:"description,omitempty"`
	Price       int64              `json:"price" bson:"price"`
	Currency    string             `json:"currency" bson:"currency"`
	Commands    []string           `json:"commands,omitempty" bson:"commands"`
	Active      bool               `json:"active" bson:"active"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// OrderItem is a snapshot of a product at purchase time.
type OrderItem struct {
	ProductID primitive.ObjectID `json:"productId" bson:"productId"`
	Name      string             `json:"name" bson:"name"`
	Quantity  int                `json:"quantity" bson:"quantity"`
	UnitPrice int64              `json:"unitPrice" bson:"unitPrice"`
	Commands  []string           `json:"-" bson:"commands"`
}

type ShopOrder struct {
	ID                    primitive.ObjectID `json:"id" bson:"_id"`
	UserID                string             `json:"userId" bson:"userId"`
	MinecraftName         string             `json:"minecraftName" bson:"minecraftName"`
	Items                 []OrderItem        `json:"items" bson:"items"`
	Total                 int64              `json:"total" bson:"total"`
	Currency              string             `json:"currency" bson:"currency"`
	Status                OrderStatus        `json:"status" bson:"status"`
	Provider              PaymentProvider    `json:"provider" bson:"provider"`
	StripeSessionID       string             `json:"stripeSessionId,omitempty" bson:"stripeSessionId,omitempty"`
	StripePaymentIntentID string             `json:"stripePaymentIntentId,omitempty" bson:"stripePaymentIntentId,omitempty"`
	PayPalOrderID         string             `json:"paypalOrderId,omitempty" bson:"paypalOrderId,omitempty"`
	PayPalCaptureID       string             `json:"paypalCaptureId,omitempty" bson:"paypalCaptureId,omitempty"`
	PaidAt                time.Time          `json:"paidAt,omitempty" bson:"paidAt,omitempty"`
	DeliveredAt           time.Time          `json:"deliveredAt,omitempty" bson:"deliveredAt,omitempty"`
	CanceledAt            time.Time          `json:"canceledAt,omitempty" bson:"canceledAt,omitempty"`
	CreatedAt             time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt             time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// ShopDelivery is the batch of in-game commands of a paid order, claimed and
// executed by an external Minecraft server integration.
type ShopDelivery struct {
	ID            primitive.ObjectID `json:"id" bson:"_id"`
	OrderID       primitive.ObjectID `json:"orderId" bson:"orderId"`
	MinecraftName string             `json:"minecraftName" bson:"minecraftName"`
	Commands      []string           `json:"commands" bson:"commands"`
	Status        DeliveryStatus     `json:"status" bson:"status"`
	Attempts      int                `json:"attempts" bson:"attempts"`
	MaxAttempts   int                `json:"maxAttempts" bson:"maxAttempts"`
	LockedAt      time.Time          `json:"lockedAt,omitempty" bson:"lockedAt,omitempty"`
	LockedBy      string             `json:"lockedBy,omitempty" bson:"lockedBy,omitempty"`
	LastError     string             `json:"lastError,omitempty" bson:"lastError,omitempty"`
	CompletedAt   time.Time          `json:"completedAt,omitempty" bson:"completedAt,omitempty"`
	FailedAt      time.Time          `json:"failedAt,omitempty" bson:"failedAt,omitempty"`
	CreatedAt     time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt" bson:"updatedAt"`
}
