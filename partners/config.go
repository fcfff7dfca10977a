package partners

import (
	"fmt"
	"time"
)

// Config holds the marketplace parameters: how many slots are sold, their
// daily price and the booking length limits.
type Config struct {
	Slots    int
	DayPrice int64 // minor units
	Currency string
	MinDays  int
	MaxDays  int
	// PendingTTL is how long an unpaid booking holds its slot.
	PendingTTL time.Duration
}

// DefaultConfig returns the configuration used when none is provided.
func DefaultConfig() Config {
	return Config{
		Slots:      6,
		DayPrice:   100,
		Currency:   "eur",
		MinDays:    1,
		MaxDays:    30,
		PendingTTL: 45 * time.Minute,
	}
}

func (c Config) validate() error {
	switch {
	case c.Slots <= 0:
		return fmt.Errorf("partner slots must be positive")
	case c.DayPrice < 0:
		return fmt.Errorf("partner day price can't be negative")
	case c.Currency == "":
		return fmt.Errorf("partner currency is required")
	case c.MinDays <= 0 || c.MaxDays < c.MinDays:
		return fmt.Errorf("invalid partner booking days range [%d, %d]", c.MinDays, c.MaxDays)
	case c.PendingTTL <= 0:
		return fmt.Errorf("partner pending TTL must be positive")
	}
	return nil
}
