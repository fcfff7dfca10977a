package partners

import (
	"fmt"

	"github.com/voxelhub/community-backend/db"
)

var (
	ErrInvalidSlot       = fmt.Errorf("slot out of range")
	ErrInvalidDays       = fmt.Errorf("booking days out of range")
	ErrInvalidProvider   = fmt.Errorf("payment provider not allowed")
	ErrAdNotApproved     = fmt.Errorf("partner ad is not approved")
	ErrNotOwner          = fmt.Errorf("booking belongs to another user")
	ErrSlotTaken         = db.ErrSlotTaken
	ErrAdAlreadyBooked   = db.ErrAdAlreadyBooked
	ErrBookingNotPending = fmt.Errorf("booking is not pending: %w", db.ErrNotPending)
)
