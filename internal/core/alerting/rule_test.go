package alerting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frostdev-ops/pma-alerting-go/pkg/errors"
)

func TestRuleBuilder_Build(t *testing.T) {
	condition := AlertCondition{
		Metric:    "cpu_usage",
		Operator:  OpGreaterThan,
		Threshold: 80,
	}

	tests := []struct {
		name    string
		builder *RuleBuilder
		wantErr bool
	}{
		{
			name: "valid rule",
			builder: NewRuleBuilder("high-cpu").
				WithName("High CPU").
				WithSeverity(SeverityCritical).
				WithCondition(condition),
			wantErr: false,
		},
		{
			name: "missing id",
			builder: NewRuleBuilder("").
				WithName("High CPU").
				WithSeverity(SeverityCritical).
				WithCondition(condition),
			wantErr: true,
		},
		{
			name: "missing name",
			builder: NewRuleBuilder("high-cpu").
				WithSeverity(SeverityCritical).
				WithCondition(condition),
			wantErr: true,
		},
		{
			name: "missing severity",
			builder: NewRuleBuilder("high-cpu").
				WithName("High CPU").
				WithCondition(condition),
			wantErr: true,
		},
		{
			name: "unknown severity",
			builder: NewRuleBuilder("high-cpu").
				WithName("High CPU").
				WithSeverity(AlertSeverity("fatal")).
				WithCondition(condition),
			wantErr: true,
		},
		{
			name: "no conditions",
			builder: NewRuleBuilder("high-cpu").
				WithName("High CPU").
				WithSeverity(SeverityCritical),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, err := tt.builder.Build()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsValidation(err))
				assert.Nil(t, rule)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, rule)
			assert.Equal(t, "high-cpu", rule.ID)
		})
	}
}

func TestRuleBuilder_Defaults(t *testing.T) {
	rule, err := NewRuleBuilder("high-cpu").
		WithName("High CPU").
		WithSeverity(SeverityWarning).
		WithCondition(AlertCondition{Metric: "cpu_usage", Operator: OpGreaterThan, Threshold: 80}).
		Build()
	require.NoError(t, err)

	assert.True(t, rule.Enabled)
	assert.Equal(t, DefaultCooldown, rule.Cooldown)
	assert.Equal(t, StatePending, rule.State)
	assert.Equal(t, AggAverage, rule.Conditions[0].Aggregation)
	assert.NotNil(t, rule.Tags)
	assert.NotNil(t, rule.Labels)
	assert.NotNil(t, rule.Actions)
	assert.Nil(t, rule.LastTriggered)
	assert.False(t, rule.CreatedAt.IsZero())
	assert.Equal(t, rule.CreatedAt, rule.UpdatedAt)
}

func TestRuleBuilder_Overrides(t *testing.T) {
	rule, err := NewRuleBuilder("low-disk").
		WithName("Low Disk").
		WithDescription("Free disk space is running out").
		WithSeverity(SeverityInfo).
		WithCondition(AlertCondition{Metric: "disk_free", Operator: OpLessThan, Threshold: 10, Aggregation: AggMin}).
		WithEnabled(false).
		WithCooldown(30 * time.Second).
		WithTags("storage", "capacity").
		WithLabels(map[string]string{"team": "infra"}).
		WithActions("ops-webhook").
		Build()
	require.NoError(t, err)

	assert.False(t, rule.Enabled)
	assert.Equal(t, 30*time.Second, rule.Cooldown)
	assert.Equal(t, []string{"storage", "capacity"}, rule.Tags)
	assert.Equal(t, "infra", rule.Labels["team"])
	assert.Equal(t, []string{"ops-webhook"}, rule.Actions)
	assert.Equal(t, AggMin, rule.Conditions[0].Aggregation)
}

func TestParseSeverity(t *testing.T) {
	for _, s := range []string{"critical", "warning", "info"} {
		severity, err := ParseSeverity(s)
		require.NoError(t, err)
		assert.Equal(t, AlertSeverity(s), severity)
	}

	_, err := ParseSeverity("fatal")
	assert.True(t, errors.IsValidation(err))
}

func TestParseOperator(t *testing.T) {
	for _, s := range []string{">", ">=", "<", "<=", "=", "!="} {
		op, err := ParseOperator(s)
		require.NoError(t, err)
		assert.Equal(t, ConditionOperator(s), op)
	}

	_, err := ParseOperator("~")
	assert.True(t, errors.IsValidation(err))
}

func TestParseAggregation(t *testing.T) {
	agg, err := ParseAggregation("")
	require.NoError(t, err)
	assert.Equal(t, AggAverage, agg)

	for _, s := range []string{"average", "sum", "min", "max", "count"} {
		agg, err := ParseAggregation(s)
		require.NoError(t, err)
		assert.Equal(t, Aggregation(s), agg)
	}

	_, err = ParseAggregation("median")
	assert.True(t, errors.IsValidation(err))
}
