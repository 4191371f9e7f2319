package notifications

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/frostdev-ops/pma-alerting-go/pkg/errors"
)

// EmailChannel sends alert mail over SMTP.
// Required settings: "to", "smtp_host", "from". Optional: "smtp_port"
// (default 587), "username", "password", "subject".
type EmailChannel struct {
	baseChannel

	// sendMail is swappable in tests
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// Send delivers the payload as a plain-text email
func (e *EmailChannel) Send(ctx context.Context, payload Payload) Result {
	to := e.stringSetting("to")
	if to == "" {
		return e.failure(errors.NewChannelConfigError(e.ID(), "to"))
	}
	host := e.stringSetting("smtp_host")
	if host == "" {
		return e.failure(errors.NewChannelConfigError(e.ID(), "smtp_host"))
	}
	from := e.stringSetting("from")
	if from == "" {
		return e.failure(errors.NewChannelConfigError(e.ID(), "from"))
	}

	port := e.intSetting("smtp_port", 587)

	subject := e.stringSetting("subject")
	if subject == "" {
		subject = fmt.Sprintf("[%s] Alert: %s", payload.Severity, payload.RuleName)
	}

	body := fmt.Sprintf("Alert: %s\nSeverity: %s\nTime: %s\n\n%s\n",
		payload.RuleName, payload.Severity,
		payload.Timestamp.Format("2006-01-02 15:04:05"), payload.Message)
	msg := []byte(fmt.Sprintf("To: %s\r\nSubject: %s\r\n\r\n%s", to, subject, body))

	var auth smtp.Auth
	if username := e.stringSetting("username"); username != "" {
		auth = smtp.PlainAuth("", username, e.stringSetting("password"), host)
	}

	send := e.sendMail
	if send == nil {
		send = smtp.SendMail
	}
	if err := send(fmt.Sprintf("%s:%d", host, port), auth, from, []string{to}, msg); err != nil {
		return e.failure(errors.NewDeliveryError(e.ID(), err))
	}

	e.logger.WithField("channel_id", e.ID()).Debug("Email notification sent")
	return e.success()
}
