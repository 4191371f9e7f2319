package alerting

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// EvaluationContext is the snapshot of current metric sample series and
// timestamp supplied to one evaluation pass. The engine never stores it.
type EvaluationContext struct {
	MetricValues map[string][]float64 `json:"metric_values"`
	Timestamp    time.Time            `json:"timestamp"`
}

// ConditionResult reports the outcome of one condition within a rule
type ConditionResult struct {
	Metric        string            `json:"metric"`
	Operator      ConditionOperator `json:"operator"`
	Threshold     float64           `json:"threshold"`
	ActualValue   float64           `json:"actual_value"`
	ComparisonMet bool              `json:"comparison_met"`
	Met           bool              `json:"met"`
}

// ChannelResult records one channel's delivery outcome for a trigger
type ChannelResult struct {
	ChannelID string `json:"channel_id"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

// EvaluationResult reports the outcome of evaluating one rule
type EvaluationResult struct {
	RuleID        string            `json:"rule_id"`
	RuleName      string            `json:"rule_name"`
	Severity      AlertSeverity     `json:"severity"`
	Triggered     bool              `json:"triggered"`
	Message       string            `json:"message,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
	Conditions    []ConditionResult `json:"conditions"`
	Notifications []ChannelResult   `json:"notifications,omitempty"`
}

// Evaluator evaluates rule conditions against evaluation contexts,
// keeping per-condition duration state between passes. The state is the
// time each "ruleID:metric" comparison first went true; an entry is
// removed the instant its comparison goes false, so presence in the map
// means the comparison has held continuously since the stored time.
type Evaluator struct {
	firstMetAt map[string]time.Time
	logger     *logrus.Logger
	mu         sync.Mutex
}

// NewEvaluator creates an Evaluator with an empty state table
func NewEvaluator(logger *logrus.Logger) *Evaluator {
	return &Evaluator{
		firstMetAt: make(map[string]time.Time),
		logger:     logger,
	}
}

// Evaluate checks every condition of rule against ctx. A condition is met
// only when its comparison holds and has held continuously for at least
// its configured duration. The rule triggers when all conditions are met.
func (e *Evaluator) Evaluate(rule *AlertRule, ctx *EvaluationContext) EvaluationResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	result := EvaluationResult{
		RuleID:     rule.ID,
		RuleName:   rule.Name,
		Severity:   rule.Severity,
		Timestamp:  ctx.Timestamp,
		Conditions: make([]ConditionResult, 0, len(rule.Conditions)),
	}

	allMet := len(rule.Conditions) > 0

	for _, cond := range rule.Conditions {
		samples := ctx.MetricValues[cond.Metric]
		value := aggregate(samples, cond.Aggregation)

		comparisonMet := len(samples) > 0 && compare(value, cond.Operator, cond.Threshold)
		met := e.trackDuration(rule.ID, cond, comparisonMet, ctx.Timestamp)

		result.Conditions = append(result.Conditions, ConditionResult{
			Metric:        cond.Metric,
			Operator:      cond.Operator,
			Threshold:     cond.Threshold,
			ActualValue:   value,
			ComparisonMet: comparisonMet,
			Met:           met,
		})

		if !met {
			allMet = false
		}
	}

	result.Triggered = allMet
	if result.Triggered {
		result.Message = buildTriggerMessage(rule, result.Conditions)
		e.logger.WithFields(logrus.Fields{
			"rule_id":  rule.ID,
			"severity": rule.Severity,
		}).Debugf("Rule conditions satisfied: %s", rule.Name)
	}

	return result
}

// trackDuration updates the duration-tracking state for one condition and
// reports whether the condition has held long enough to count as met.
func (e *Evaluator) trackDuration(ruleID string, cond AlertCondition, comparisonMet bool, now time.Time) bool {
	key := ruleID + ":" + cond.Metric

	if !comparisonMet {
		delete(e.firstMetAt, key)
		return false
	}

	since, ok := e.firstMetAt[key]
	if !ok {
		since = now
		e.firstMetAt[key] = since
	}

	return now.Sub(since) >= cond.Duration
}

// ResetRule purges all condition state belonging to a rule
func (e *Evaluator) ResetRule(ruleID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	prefix := ruleID + ":"
	for key := range e.firstMetAt {
		if strings.HasPrefix(key, prefix) {
			delete(e.firstMetAt, key)
		}
	}
}

// Reset clears all condition state
func (e *Evaluator) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.firstMetAt = make(map[string]time.Time)
}

// aggregate reduces a sample series to a single value. An empty series
// aggregates to 0 regardless of function.
func aggregate(samples []float64, agg Aggregation) float64 {
	if len(samples) == 0 {
		return 0
	}

	switch agg {
	case AggSum:
		sum := 0.0
		for _, v := range samples {
			sum += v
		}
		return sum
	case AggMin:
		min := samples[0]
		for _, v := range samples[1:] {
			if v < min {
				min = v
			}
		}
		return min
	case AggMax:
		max := samples[0]
		for _, v := range samples[1:] {
			if v > max {
				max = v
			}
		}
		return max
	case AggCount:
		return float64(len(samples))
	default: // average
		sum := 0.0
		for _, v := range samples {
			sum += v
		}
		return sum / float64(len(samples))
	}
}

// compare applies a comparison operator to a value and threshold
func compare(value float64, op ConditionOperator, threshold float64) bool {
	switch op {
	case OpGreaterThan:
		return value > threshold
	case OpGreaterOrEqual:
		return value >= threshold
	case OpLessThan:
		return value < threshold
	case OpLessOrEqual:
		return value <= threshold
	case OpEqual:
		return value == threshold
	case OpNotEqual:
		return value != threshold
	default:
		return false
	}
}

// buildTriggerMessage lists each satisfied condition with its actual value
func buildTriggerMessage(rule *AlertRule, conditions []ConditionResult) string {
	parts := make([]string, 0, len(conditions))
	for _, c := range conditions {
		parts = append(parts, fmt.Sprintf("%s %s %.2f (actual: %.2f)",
			c.Metric, c.Operator, c.Threshold, c.ActualValue))
	}
	return fmt.Sprintf("Alert rule '%s' triggered: %s", rule.Name, strings.Join(parts, "; "))
}
