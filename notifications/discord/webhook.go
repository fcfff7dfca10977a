// Package discord provides a Discord webhook implementation of the
// NotificationService interface.
package discord

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/voxelhub/community-backend/notifications"
)

// embed colors per notification level
var levelColors = map[notifications.Level]int{
	notifications.LevelInfo:    0x3498db,
	notifications.LevelWarning: 0xf1c40f,
	notifications.LevelAlert:   0xe74c3c,
}

// Config represents the configuration of the Discord webhook notifier. The
// WebhookURL is the one Discord shows when the webhook is created, it carries
// the webhook id and token.
type Config struct {
	WebhookURL string
	Username   string
}

// Webhook is the implementation of the NotificationService interface that
// posts every notification as an embed through a Discord webhook.
type Webhook struct {
	config  *Config
	id      string
	token   string
	session *discordgo.Session
}

// New initializes the webhook notifier with the configuration. It returns an
// error if the configuration is invalid or the webhook URL can't be parsed.
func (dw *Webhook) New(rawConfig any) error {
	config, ok := rawConfig.(*Config)
	if !ok {
		return fmt.Errorf("invalid Discord configuration")
	}
	id, token, err := ParseWebhookURL(config.WebhookURL)
	if err != nil {
		return err
	}
	// webhooks don't need a bot token
	session, err := discordgo.New("")
	if err != nil {
		return fmt.Errorf("could not create discord session: %w", err)
	}
	session.ShouldRetryOnRateLimit = true
	dw.config = config
	dw.id = id
	dw.token = token
	dw.session = session
	return nil
}

// SendNotification posts the notification to the webhook channel. It returns
// an error if Discord rejects the message or the context is done.
func (dw *Webhook) SendNotification(ctx context.Context, n *notifications.Notification) error {
	embed := &discordgo.MessageEmbed{
		Title:       n.Title,
		Description: n.Body,
		URL:         n.URL,
		Color:       levelColors[n.Level],
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
	for _, f := range n.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: true,
		})
	}
	params := &discordgo.WebhookParams{
		Username: dw.config.Username,
		Embeds:   []*discordgo.MessageEmbed{embed},
	}
	if _, err := dw.session.WebhookExecute(dw.id, dw.token, false, params, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("could not execute discord webhook: %w", err)
	}
	return nil
}

// ParseWebhookURL extracts the webhook id and token from a Discord webhook
// URL like https://discord.com/api/webhooks/<id>/<token>.
func ParseWebhookURL(rawURL string) (string, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid discord webhook URL: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("invalid discord webhook URL: missing id or token")
}
