package alerting

import (
	"fmt"
	"time"

	"github.com/frostdev-ops/pma-alerting-go/pkg/errors"
)

// AlertSeverity classifies how urgent a triggered rule is
type AlertSeverity string

const (
	SeverityCritical AlertSeverity = "critical"
	SeverityWarning  AlertSeverity = "warning"
	SeverityInfo     AlertSeverity = "info"
)

// RuleState tracks a rule through its lifecycle
type RuleState string

const (
	StatePending  RuleState = "pending"
	StateActive   RuleState = "active"
	StateResolved RuleState = "resolved"
	StateSilenced RuleState = "silenced"
)

// ConditionOperator is the comparison applied to an aggregated metric value
type ConditionOperator string

const (
	OpGreaterThan    ConditionOperator = ">"
	OpGreaterOrEqual ConditionOperator = ">="
	OpLessThan       ConditionOperator = "<"
	OpLessOrEqual    ConditionOperator = "<="
	OpEqual          ConditionOperator = "="
	OpNotEqual       ConditionOperator = "!="
)

// Aggregation reduces a metric's sample series to a single value
type Aggregation string

const (
	AggAverage Aggregation = "average"
	AggSum     Aggregation = "sum"
	AggMin     Aggregation = "min"
	AggMax     Aggregation = "max"
	AggCount   Aggregation = "count"
)

// DefaultCooldown is applied when a rule does not set its own cooldown
const DefaultCooldown = 5 * time.Minute

// AlertCondition is a single threshold test. Duration is the minimum
// continuous time the comparison must hold before the condition counts
// as met; zero means it is met immediately.
type AlertCondition struct {
	Metric      string            `json:"metric"`
	Operator    ConditionOperator `json:"operator"`
	Threshold   float64           `json:"threshold"`
	Duration    time.Duration     `json:"duration"`
	Aggregation Aggregation       `json:"aggregation"`
}

// AlertRule defines a threshold alert. Rules are owned by the Manager's
// registry and must be constructed through a RuleBuilder.
type AlertRule struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Description   string            `json:"description"`
	Severity      AlertSeverity     `json:"severity"`
	Conditions    []AlertCondition  `json:"conditions"`
	Enabled       bool              `json:"enabled"`
	Cooldown      time.Duration     `json:"cooldown"`
	Tags          []string          `json:"tags"`
	Labels        map[string]string `json:"labels"`
	Actions       []string          `json:"actions"`
	State         RuleState         `json:"state"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	LastTriggered *time.Time        `json:"last_triggered,omitempty"`
}

// RuleBuilder constructs validated AlertRules
type RuleBuilder struct {
	rule AlertRule

	enabledSet  bool
	cooldownSet bool
}

// NewRuleBuilder starts building a rule with the given ID
func NewRuleBuilder(id string) *RuleBuilder {
	return &RuleBuilder{rule: AlertRule{ID: id}}
}

// WithName sets the rule name
func (b *RuleBuilder) WithName(name string) *RuleBuilder {
	b.rule.Name = name
	return b
}

// WithDescription sets the rule description
func (b *RuleBuilder) WithDescription(desc string) *RuleBuilder {
	b.rule.Description = desc
	return b
}

// WithSeverity sets the rule severity
func (b *RuleBuilder) WithSeverity(severity AlertSeverity) *RuleBuilder {
	b.rule.Severity = severity
	return b
}

// WithCondition appends a condition; its aggregation defaults to average
func (b *RuleBuilder) WithCondition(cond AlertCondition) *RuleBuilder {
	b.rule.Conditions = append(b.rule.Conditions, cond)
	return b
}

// WithConditions replaces the condition list
func (b *RuleBuilder) WithConditions(conds []AlertCondition) *RuleBuilder {
	b.rule.Conditions = conds
	return b
}

// WithEnabled overrides the enabled default (true)
func (b *RuleBuilder) WithEnabled(enabled bool) *RuleBuilder {
	b.rule.Enabled = enabled
	b.enabledSet = true
	return b
}

// WithCooldown overrides the cooldown default (5 minutes)
func (b *RuleBuilder) WithCooldown(cooldown time.Duration) *RuleBuilder {
	b.rule.Cooldown = cooldown
	b.cooldownSet = true
	return b
}

// WithTags sets free-form tags
func (b *RuleBuilder) WithTags(tags ...string) *RuleBuilder {
	b.rule.Tags = tags
	return b
}

// WithLabels sets free-form labels
func (b *RuleBuilder) WithLabels(labels map[string]string) *RuleBuilder {
	b.rule.Labels = labels
	return b
}

// WithActions sets the notification channel IDs to notify on trigger
func (b *RuleBuilder) WithActions(channelIDs ...string) *RuleBuilder {
	b.rule.Actions = channelIDs
	return b
}

// Build validates the rule and returns it with defaults applied.
// ID, name, severity and at least one condition are required.
func (b *RuleBuilder) Build() (*AlertRule, error) {
	if b.rule.ID == "" {
		return nil, errors.NewValidationError("id", "rule ID is required")
	}
	if b.rule.Name == "" {
		return nil, errors.NewValidationError("name", "rule name is required")
	}
	if b.rule.Severity == "" {
		return nil, errors.NewValidationError("severity", "rule severity is required")
	}
	if _, err := ParseSeverity(string(b.rule.Severity)); err != nil {
		return nil, err
	}
	if len(b.rule.Conditions) == 0 {
		return nil, errors.NewValidationError("conditions", "at least one condition is required")
	}

	rule := b.rule
	if !b.enabledSet {
		rule.Enabled = true
	}
	if !b.cooldownSet {
		rule.Cooldown = DefaultCooldown
	}
	if rule.Tags == nil {
		rule.Tags = []string{}
	}
	if rule.Labels == nil {
		rule.Labels = map[string]string{}
	}
	if rule.Actions == nil {
		rule.Actions = []string{}
	}
	for i := range rule.Conditions {
		if rule.Conditions[i].Aggregation == "" {
			rule.Conditions[i].Aggregation = AggAverage
		}
	}

	now := time.Now()
	rule.State = StatePending
	rule.CreatedAt = now
	rule.UpdatedAt = now

	return &rule, nil
}

// ParseSeverity validates a severity string
func ParseSeverity(s string) (AlertSeverity, error) {
	switch AlertSeverity(s) {
	case SeverityCritical, SeverityWarning, SeverityInfo:
		return AlertSeverity(s), nil
	default:
		return "", errors.NewValidationError("severity", fmt.Sprintf("unknown severity %q", s))
	}
}

// ParseOperator validates a comparison operator string
func ParseOperator(s string) (ConditionOperator, error) {
	switch ConditionOperator(s) {
	case OpGreaterThan, OpGreaterOrEqual, OpLessThan, OpLessOrEqual, OpEqual, OpNotEqual:
		return ConditionOperator(s), nil
	default:
		return "", errors.NewValidationError("operator", fmt.Sprintf("unknown operator %q", s))
	}
}

// ParseAggregation validates an aggregation string; empty defaults to average
func ParseAggregation(s string) (Aggregation, error) {
	if s == "" {
		return AggAverage, nil
	}
	switch Aggregation(s) {
	case AggAverage, AggSum, AggMin, AggMax, AggCount:
		return Aggregation(s), nil
	default:
		return "", errors.NewValidationError("aggregation", fmt.Sprintf("unknown aggregation %q", s))
	}
}
