package notifications

import (
	"context"
	"net/http"

	"github.com/frostdev-ops/pma-alerting-go/pkg/errors"
)

// pagerDutyEventsURL is the PagerDuty Events API v2 enqueue endpoint
const pagerDutyEventsURL = "https://events.pagerduty.com/v2/enqueue"

// PagerDutyChannel triggers PagerDuty incidents via the Events API.
// Required settings: "routing_key". Optional: "events_url" (override for
// testing or EU service region).
type PagerDutyChannel struct {
	baseChannel
	client *http.Client
}

// Send enqueues a trigger event for the alert
func (p *PagerDutyChannel) Send(ctx context.Context, payload Payload) Result {
	routingKey := p.stringSetting("routing_key")
	if routingKey == "" {
		return p.failure(errors.NewChannelConfigError(p.ID(), "routing_key"))
	}

	url := p.stringSetting("events_url")
	if url == "" {
		url = pagerDutyEventsURL
	}

	severity := payload.Severity
	if severity == "" {
		severity = "warning"
	}

	body := map[string]interface{}{
		"routing_key":  routingKey,
		"event_action": "trigger",
		"dedup_key":    payload.RuleID,
		"payload": map[string]interface{}{
			"summary":        payload.Message,
			"source":         payload.RuleName,
			"severity":       severity,
			"timestamp":      payload.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"),
			"custom_details": payload.Metadata,
		},
	}

	if err := postJSON(ctx, p.client, url, body, nil); err != nil {
		return p.failure(errors.NewDeliveryError(p.ID(), err))
	}

	p.logger.WithField("channel_id", p.ID()).Debug("PagerDuty event enqueued")
	return p.success()
}
