package notifications

import (
	"context"
	"fmt"
	"net/http"

	"github.com/frostdev-ops/pma-alerting-go/pkg/errors"
)

// DiscordChannel posts alerts to a Discord webhook.
// Required settings: "webhook_url".
type DiscordChannel struct {
	baseChannel
	client *http.Client
}

// discord embed colors by severity
const (
	discordRed    = 0xE01E5A
	discordYellow = 0xECB22E
	discordBlue   = 0x36C5F0
)

// Send delivers the payload as a Discord embed
func (d *DiscordChannel) Send(ctx context.Context, payload Payload) Result {
	url := d.stringSetting("webhook_url")
	if url == "" {
		return d.failure(errors.NewChannelConfigError(d.ID(), "webhook_url"))
	}

	color := discordBlue
	switch payload.Severity {
	case "critical":
		color = discordRed
	case "warning":
		color = discordYellow
	}

	body := map[string]interface{}{
		"embeds": []map[string]interface{}{
			{
				"title":       fmt.Sprintf("[%s] %s", payload.Severity, payload.RuleName),
				"description": payload.Message,
				"color":       color,
			},
		},
	}

	if err := postJSON(ctx, d.client, url, body, nil); err != nil {
		return d.failure(errors.NewDeliveryError(d.ID(), err))
	}

	d.logger.WithField("channel_id", d.ID()).Debug("Discord notification sent")
	return d.success()
}
