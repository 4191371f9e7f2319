package notifications

import (
	"context"

	"github.com/sirupsen/logrus"
)

// ConsoleChannel writes alerts to the process log. It has no required
// settings and never fails.
type ConsoleChannel struct {
	baseChannel
}

// Send logs the payload at a level matching its severity
func (c *ConsoleChannel) Send(ctx context.Context, payload Payload) Result {
	entry := c.logger.WithFields(logrus.Fields{
		"channel_id": c.ID(),
		"rule_id":    payload.RuleID,
		"severity":   payload.Severity,
	})

	switch payload.Severity {
	case "critical":
		entry.Errorf("ALERT: %s", payload.Message)
	case "warning":
		entry.Warnf("ALERT: %s", payload.Message)
	default:
		entry.Infof("ALERT: %s", payload.Message)
	}

	return c.success()
}
