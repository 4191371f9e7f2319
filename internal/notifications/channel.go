package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/frostdev-ops/pma-alerting-go/pkg/errors"
)

// ChannelType identifies a notification channel variant
type ChannelType string

const (
	TypeWebhook   ChannelType = "webhook"
	TypeEmail     ChannelType = "email"
	TypeSlack     ChannelType = "slack"
	TypeDiscord   ChannelType = "discord"
	TypePagerDuty ChannelType = "pagerduty"
	TypeConsole   ChannelType = "console"
)

// Config describes a channel. Required Settings keys depend on Type
// (webhook needs "url", email needs "to", and so on); each variant
// validates its own keys at send time.
type Config struct {
	ID       string                 `json:"id"`
	Name     string                 `json:"name"`
	Type     ChannelType            `json:"type"`
	Enabled  bool                   `json:"enabled"`
	Settings map[string]interface{} `json:"config"`
}

// Payload is the message delivered to a channel when a rule triggers
type Payload struct {
	RuleID    string                 `json:"rule_id"`
	RuleName  string                 `json:"rule_name"`
	Message   string                 `json:"message"`
	Severity  string                 `json:"severity"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Result reports one delivery attempt. Failures are carried in Error
// rather than returned as Go errors so one bad channel never aborts the
// evaluation pass.
type Result struct {
	Success   bool      `json:"success"`
	ChannelID string    `json:"channel_id"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error,omitempty"`
}

// Channel is a notification delivery target
type Channel interface {
	ID() string
	Name() string
	Type() ChannelType
	Enabled() bool
	Send(ctx context.Context, payload Payload) Result
}

// New instantiates the channel variant matching cfg.Type. An
// unrecognized type is a configuration error and fails fast.
func New(cfg Config, logger *logrus.Logger) (Channel, error) {
	base := baseChannel{config: cfg, logger: logger}

	switch cfg.Type {
	case TypeWebhook:
		return &WebhookChannel{baseChannel: base, client: newHTTPClient()}, nil
	case TypeEmail:
		return &EmailChannel{baseChannel: base}, nil
	case TypeSlack:
		return &SlackChannel{baseChannel: base, client: newHTTPClient()}, nil
	case TypeDiscord:
		return &DiscordChannel{baseChannel: base, client: newHTTPClient()}, nil
	case TypePagerDuty:
		return &PagerDutyChannel{baseChannel: base, client: newHTTPClient()}, nil
	case TypeConsole:
		return &ConsoleChannel{baseChannel: base}, nil
	default:
		return nil, errors.NewUnsupportedChannelTypeError(string(cfg.Type))
	}
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// baseChannel carries the identity accessors shared by all variants
type baseChannel struct {
	config Config
	logger *logrus.Logger
}

func (b *baseChannel) ID() string        { return b.config.ID }
func (b *baseChannel) Name() string      { return b.config.Name }
func (b *baseChannel) Type() ChannelType { return b.config.Type }
func (b *baseChannel) Enabled() bool     { return b.config.Enabled }

// stringSetting returns a string setting, or "" when absent or not a string
func (b *baseChannel) stringSetting(key string) string {
	v, ok := b.config.Settings[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// intSetting returns an integer setting, accepting the numeric types
// viper and JSON decoding produce
func (b *baseChannel) intSetting(key string, fallback int) int {
	switch v := b.config.Settings[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}

// success builds a successful Result for this channel
func (b *baseChannel) success() Result {
	return Result{Success: true, ChannelID: b.config.ID, Timestamp: time.Now()}
}

// failure builds a failed Result carrying err's message
func (b *baseChannel) failure(err error) Result {
	b.logger.WithError(err).WithFields(logrus.Fields{
		"channel_id":   b.config.ID,
		"channel_type": b.config.Type,
	}).Warn("Notification delivery failed")

	return Result{Success: false, ChannelID: b.config.ID, Timestamp: time.Now(), Error: err.Error()}
}

// postJSON marshals body and POSTs it, treating non-2xx statuses as
// delivery failures
func postJSON(ctx context.Context, client *http.Client, url string, body interface{}, headers map[string]string) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
