package db

const (
	// partner ad statuses
	AdStatusPendingReview AdStatus = "PENDING_REVIEW"
	AdStatusApproved      AdStatus = "APPROVED"
	AdStatusRejected      AdStatus = "REJECTED"
	// partner booking statuses
	BookingStatusPending  BookingStatus = "PENDING"
	BookingStatusActive   BookingStatus = "ACTIVE"
	BookingStatusExpired  BookingStatus = "EXPIRED"
	BookingStatusCanceled BookingStatus = "CANCELED"
	// payment providers
	ProviderPayPal PaymentProvider = "PAYPAL"
	ProviderStripe PaymentProvider = "STRIPE"
	ProviderFree   PaymentProvider = "FREE"
	// shop order statuses
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCanceled  OrderStatus = "CANCELED"
	// shop delivery statuses
	DeliveryStatusPending    DeliveryStatus = "PENDING"
	DeliveryStatusProcessing DeliveryStatus = "PROCESSING"
	DeliveryStatusCompleted  DeliveryStatus = "COMPLETED"
	DeliveryStatusFailed     DeliveryStatus = "FAILED"
)

// validProviders is a map that contains the payment providers a booking or
// an order can be created with
var validProviders = map[PaymentProvider]bool{
	ProviderPayPal: true,
	ProviderStripe: true,
	ProviderFree:   true,
}

// IsValidProvider function checks if the payment provider is supported
func IsValidProvider(p PaymentProvider) bool {
	return validProviders[p]
}

// IsHolding reports whether a booking in this status holds its slot.
func (s BookingStatus) IsHolding() bool {
	return s == BookingStatusPending || s == BookingStatusActive
}

// IsPaid reports whether the order has been paid, delivered or not.
func (s OrderStatus) IsPaid() bool {
	return s == OrderStatusPaid || s == OrderStatusDelivered
}
