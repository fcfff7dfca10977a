package shop

import (
	"fmt"
	"time"
)

// Config holds the delivery queue parameters.
type Config struct {
	// MaxAttempts is the number of times a delivery can be claimed before it
	// is marked FAILED.
	MaxAttempts int
	// Lease is how long a claimed delivery stays locked by its worker.
	Lease time.Duration
	// MaxItems bounds the distinct products of a single order.
	MaxItems int
}

// DefaultConfig returns the configuration used when none is provided.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 5,
		Lease:       2 * time.Minute,
		MaxItems:    20,
	}
}

func (c Config) validate() error {
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("delivery max attempts must be positive")
	}
	if c.Lease <= 0 {
		return fmt.Errorf("delivery lease must be positive")
	}
	if c.MaxItems <= 0 {
		return fmt.Errorf("order max items must be positive")
	}
	return nil
}
