package shop

import (
	"fmt"

	"github.com/voxelhub/community-backend/db"
)

var (
	ErrEmptyOrder           = fmt.Errorf("order has no items")
	ErrInvalidQuantity      = fmt.Errorf("item quantity must be positive")
	ErrProductUnavailable   = fmt.Errorf("product not found or inactive")
	ErrMixedCurrencies      = fmt.Errorf("order items use different currencies")
	ErrMinecraftNameMissing = fmt.Errorf("a valid Minecraft name is required")
	ErrInvalidProvider      = fmt.Errorf("payment provider not allowed")
	ErrOrderNotPending      = fmt.Errorf("order is not pending: %w", db.ErrNotPending)
	ErrNoDeliveryPending    = fmt.Errorf("no delivery pending: %w", db.ErrNotFound)
	ErrLeaseLost            = db.ErrLeaseLost
	ErrDeliveryNotFailed    = db.ErrNotFailed
)
