package notifications

import (
	"context"
	"net/http"
	"time"

	"github.com/frostdev-ops/pma-alerting-go/pkg/errors"
)

// WebhookChannel POSTs the payload as JSON to a configured URL.
// Required settings: "url". Optional: "headers" (map of extra headers).
type WebhookChannel struct {
	baseChannel
	client *http.Client
}

// Send delivers the payload to the webhook URL
func (w *WebhookChannel) Send(ctx context.Context, payload Payload) Result {
	url := w.stringSetting("url")
	if url == "" {
		return w.failure(errors.NewChannelConfigError(w.ID(), "url"))
	}

	headers := map[string]string{}
	if raw, ok := w.config.Settings["headers"].(map[string]interface{}); ok {
		for k, v := range raw {
			if s, ok := v.(string); ok {
				headers[k] = s
			}
		}
	}

	body := map[string]interface{}{
		"rule_id":   payload.RuleID,
		"rule_name": payload.RuleName,
		"message":   payload.Message,
		"severity":  payload.Severity,
		"timestamp": payload.Timestamp.Format(time.RFC3339),
		"metadata":  payload.Metadata,
	}

	if err := postJSON(ctx, w.client, url, body, headers); err != nil {
		return w.failure(errors.NewDeliveryError(w.ID(), err))
	}

	w.logger.WithField("channel_id", w.ID()).Debug("Webhook notification sent")
	return w.success()
}
