// Package notifications defines the staff notifications sent when something
// in the booking or delivery flows needs a human (a new ad to review, a
// delivery that failed for good, a payment for a booking that was already
// released).
package notifications

import "context"

// Level classifies a notification. Implementations may use it to pick a
// color or a mention.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelAlert
)

// Field is a key/value line shown with the notification.
type Field struct {
	Name  string
	Value string
}

type Notification struct {
	Title  string
	Body   string
	URL    string
	Level  Level
	Fields []Field
}

type NotificationService interface {
	New(conf any) error
	SendNotification(context.Context, *Notification) error
}
