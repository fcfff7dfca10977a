package notifications

import (
	"context"
	"time"

	"go.vocdoni.io/dvote/log"
)

// sendTimeout bounds the time spent delivering a single notification.
const sendTimeout = 10 * time.Second

// Notify sends the notification in the background. A nil service disables
// notifications; delivery errors are only logged.
func Notify(service NotificationService, n *Notification) {
	if service == nil || n == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := service.SendNotification(ctx, n); err != nil {
			log.Warnw("could not send notification", "title", n.Title, "error", err)
		}
	}()
}
