package notifications

import (
	"context"
	"fmt"
	"net/http"

	"github.com/frostdev-ops/pma-alerting-go/pkg/errors"
)

// SlackChannel posts alerts to a Slack incoming webhook.
// Required settings: "webhook_url". Optional: "channel".
type SlackChannel struct {
	baseChannel
	client *http.Client
}

// Send delivers the payload as a Slack attachment colored by severity
func (s *SlackChannel) Send(ctx context.Context, payload Payload) Result {
	url := s.stringSetting("webhook_url")
	if url == "" {
		return s.failure(errors.NewChannelConfigError(s.ID(), "webhook_url"))
	}

	color := "#439FE0"
	switch payload.Severity {
	case "critical":
		color = "danger"
	case "warning":
		color = "warning"
	}

	body := map[string]interface{}{
		"attachments": []map[string]interface{}{
			{
				"color": color,
				"title": fmt.Sprintf("[%s] %s", payload.Severity, payload.RuleName),
				"text":  payload.Message,
				"ts":    payload.Timestamp.Unix(),
			},
		},
	}
	if channel := s.stringSetting("channel"); channel != "" {
		body["channel"] = channel
	}

	if err := postJSON(ctx, s.client, url, body, nil); err != nil {
		return s.failure(errors.NewDeliveryError(s.ID(), err))
	}

	s.logger.WithField("channel_id", s.ID()).Debug("Slack notification sent")
	return s.success()
}
