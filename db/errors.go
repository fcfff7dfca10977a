package db

import "fmt"

var (
	ErrNotFound    = fmt.Errorf("not found")
	ErrInvalidData = fmt.Errorf("invalid data provided")
	// ErrSlotTaken is returned when another PENDING or ACTIVE booking already
	// holds the requested slot.
	ErrSlotTaken = fmt.Errorf("slot already booked")
	// ErrAdAlreadyBooked is returned when the ad already holds a PENDING or
	// ACTIVE booking on any slot.
	ErrAdAlreadyBooked = fmt.Errorf("ad already has an active booking")
	// ErrNotPending is returned when a transition requires a PENDING document
	// and the stored one is in a terminal state.
	ErrNotPending = fmt.Errorf("document is not pending")
	// ErrLeaseLost is returned when a worker tries to resolve a delivery that
	// is no longer locked by it.
	ErrLeaseLost = fmt.Errorf("delivery lease lost")
	// ErrNotFailed is returned when retrying a delivery that is not FAILED.
	ErrNotFailed = fmt.Errorf("delivery is not failed")
)
