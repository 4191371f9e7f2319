package alerting

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frostdev-ops/pma-alerting-go/internal/notifications"
	"github.com/frostdev-ops/pma-alerting-go/pkg/errors"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	config := DefaultAlertConfig()
	config.MaxHistorySize = 100
	return NewManager(config, newTestLogger(), nil)
}

func addConsoleChannel(t *testing.T, m *Manager, id string) {
	t.Helper()
	require.NoError(t, m.AddChannel(notifications.Config{
		ID:      id,
		Name:    id,
		Type:    notifications.TypeConsole,
		Enabled: true,
	}))
}

func simpleRule(t *testing.T, id string, cooldown time.Duration, actions ...string) *AlertRule {
	t.Helper()
	return mustBuildRule(t, NewRuleBuilder(id).
		WithName("Rule "+id).
		WithSeverity(SeverityCritical).
		WithCooldown(cooldown).
		WithActions(actions...).
		WithCondition(AlertCondition{Metric: "cpu_usage", Operator: OpGreaterThan, Threshold: 80}))
}

func TestManager_AddRule_DuplicateID(t *testing.T) {
	m := newTestManager(t)

	require.NoError(t, m.AddRule(simpleRule(t, "high-cpu", time.Minute)))
	err := m.AddRule(simpleRule(t, "high-cpu", time.Minute))
	assert.True(t, errors.IsValidation(err))
}

func TestManager_GetAllRules_RegistrationOrder(t *testing.T) {
	m := newTestManager(t)

	for _, id := range []string{"c-rule", "a-rule", "b-rule"} {
		require.NoError(t, m.AddRule(simpleRule(t, id, time.Minute)))
	}

	rules := m.GetAllRules()
	require.Len(t, rules, 3)
	assert.Equal(t, "c-rule", rules[0].ID)
	assert.Equal(t, "a-rule", rules[1].ID)
	assert.Equal(t, "b-rule", rules[2].ID)
}

func TestManager_RemoveRule(t *testing.T) {
	m := newTestManager(t)

	require.NoError(t, m.AddRule(simpleRule(t, "high-cpu", time.Minute)))
	require.NoError(t, m.RemoveRule("high-cpu"))

	_, err := m.GetRule("high-cpu")
	assert.True(t, errors.IsNotFound(err))

	err = m.RemoveRule("high-cpu")
	assert.True(t, errors.IsNotFound(err))
}

func TestManager_UpdateRule(t *testing.T) {
	m := newTestManager(t)

	original := simpleRule(t, "high-cpu", time.Minute)
	require.NoError(t, m.AddRule(original))

	replacement := mustBuildRule(t, NewRuleBuilder("high-cpu").
		WithName("Renamed").
		WithSeverity(SeverityWarning).
		WithCondition(AlertCondition{Metric: "cpu_usage", Operator: OpGreaterThan, Threshold: 90}))
	require.NoError(t, m.UpdateRule(replacement))

	updated, err := m.GetRule("high-cpu")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, SeverityWarning, updated.Severity)
	assert.Equal(t, original.CreatedAt, updated.CreatedAt)

	unknown := simpleRule(t, "missing", time.Minute)
	assert.True(t, errors.IsNotFound(m.UpdateRule(unknown)))
}

func TestManager_AddChannel_UnknownType(t *testing.T) {
	m := newTestManager(t)

	err := m.AddChannel(notifications.Config{ID: "bad", Type: notifications.ChannelType("carrier-pigeon")})
	assert.True(t, errors.IsUnsupportedChannelType(err))
	assert.Empty(t, m.GetAllChannels())
}

func TestManager_Evaluate_TriggersAndNotifies(t *testing.T) {
	var received int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&received, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	m := newTestManager(t)
	require.NoError(t, m.AddChannel(notifications.Config{
		ID:       "ops-webhook",
		Name:     "Ops webhook",
		Type:     notifications.TypeWebhook,
		Enabled:  true,
		Settings: map[string]interface{}{"url": server.URL},
	}))
	require.NoError(t, m.AddRule(simpleRule(t, "high-cpu", time.Minute, "ops-webhook")))

	results := m.Evaluate(context.Background(), evalContext(time.Now(), map[string][]float64{"cpu_usage": {95}}))

	require.Len(t, results, 1)
	assert.True(t, results[0].Triggered)
	require.Len(t, results[0].Notifications, 1)
	assert.True(t, results[0].Notifications[0].Success)
	assert.Equal(t, int32(1), atomic.LoadInt32(&received))

	rule, err := m.GetRule("high-cpu")
	require.NoError(t, err)
	assert.Equal(t, StateActive, rule.State)
	require.NotNil(t, rule.LastTriggered)
}

func TestManager_Evaluate_CooldownSuppresses(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.AddRule(simpleRule(t, "high-cpu", 5*time.Second)))

	start := time.Now()
	hot := map[string][]float64{"cpu_usage": {95}}

	results := m.Evaluate(context.Background(), evalContext(start, hot))
	require.Len(t, results, 1)
	assert.True(t, results[0].Triggered)

	// Still cooling down; the rule is skipped entirely
	results = m.Evaluate(context.Background(), evalContext(start.Add(3*time.Second), hot))
	assert.Empty(t, results)

	// Cooldown elapsed; the rule fires again
	results = m.Evaluate(context.Background(), evalContext(start.Add(6*time.Second), hot))
	require.Len(t, results, 1)
	assert.True(t, results[0].Triggered)

	assert.Len(t, m.GetHistory(0), 2)
}

func TestManager_Evaluate_MixedChannelOutcomes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	m := newTestManager(t)
	require.NoError(t, m.AddChannel(notifications.Config{
		ID:       "ops-webhook",
		Name:     "Ops webhook",
		Type:     notifications.TypeWebhook,
		Enabled:  true,
		Settings: map[string]interface{}{"url": server.URL},
	}))
	// Broken on purpose: the email channel has no recipient configured
	require.NoError(t, m.AddChannel(notifications.Config{
		ID:       "ops-email",
		Name:     "Ops email",
		Type:     notifications.TypeEmail,
		Enabled:  true,
		Settings: map[string]interface{}{"smtp_host": "localhost", "from": "alerts@example.com"},
	}))
	require.NoError(t, m.AddRule(simpleRule(t, "high-cpu", time.Minute, "ops-webhook", "ops-email")))

	results := m.Evaluate(context.Background(), evalContext(time.Now(), map[string][]float64{"cpu_usage": {95}}))

	require.Len(t, results, 1)
	require.Len(t, results[0].Notifications, 2)
	assert.True(t, results[0].Notifications[0].Success)
	assert.False(t, results[0].Notifications[1].Success)
	assert.NotEmpty(t, results[0].Notifications[1].Error)

	history := m.GetHistory(0)
	require.Len(t, history, 1)
	require.Len(t, history[0].Channels, 2)
	assert.True(t, history[0].Channels[0].Success)
	assert.False(t, history[0].Channels[1].Success)
}

func TestManager_Evaluate_SkipsDisabledAndSilenced(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.AddRule(simpleRule(t, "disabled-rule", time.Minute)))
	require.NoError(t, m.AddRule(simpleRule(t, "silenced-rule", time.Minute)))
	require.NoError(t, m.AddRule(simpleRule(t, "live-rule", time.Minute)))

	require.NoError(t, m.DisableRule("disabled-rule"))
	require.NoError(t, m.SilenceRule("silenced-rule"))

	results := m.Evaluate(context.Background(), evalContext(time.Now(), map[string][]float64{"cpu_usage": {95}}))

	require.Len(t, results, 1)
	assert.Equal(t, "live-rule", results[0].RuleID)
}

func TestManager_Evaluate_MissingChannelSkipped(t *testing.T) {
	m := newTestManager(t)
	addConsoleChannel(t, m, "console")
	require.NoError(t, m.AddRule(simpleRule(t, "high-cpu", time.Minute, "console", "ghost-channel")))

	results := m.Evaluate(context.Background(), evalContext(time.Now(), map[string][]float64{"cpu_usage": {95}}))

	require.Len(t, results, 1)
	require.Len(t, results[0].Notifications, 1)
	assert.Equal(t, "console", results[0].Notifications[0].ChannelID)
}

func TestManager_HistoryBounded(t *testing.T) {
	config := DefaultAlertConfig()
	config.MaxHistorySize = 3
	m := NewManager(config, newTestLogger(), nil)
	require.NoError(t, m.AddRule(simpleRule(t, "high-cpu", time.Second)))

	start := time.Now()
	for i := 0; i < 5; i++ {
		at := start.Add(time.Duration(i) * 2 * time.Second)
		m.Evaluate(context.Background(), evalContext(at, map[string][]float64{"cpu_usage": {95}}))
	}

	history := m.GetHistory(0)
	require.Len(t, history, 3)
	// Most recent first; the two oldest entries were evicted
	assert.True(t, history[0].Timestamp.After(history[1].Timestamp))
	assert.True(t, history[1].Timestamp.After(history[2].Timestamp))
}

func TestManager_GetHistoryForRule(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.AddRule(simpleRule(t, "rule-a", time.Second)))
	require.NoError(t, m.AddRule(simpleRule(t, "rule-b", time.Second)))

	m.Evaluate(context.Background(), evalContext(time.Now(), map[string][]float64{"cpu_usage": {95}}))

	assert.Len(t, m.GetHistory(0), 2)
	forA := m.GetHistoryForRule("rule-a", 0)
	require.Len(t, forA, 1)
	assert.Equal(t, "rule-a", forA[0].RuleID)

	assert.Len(t, m.GetHistory(1), 1)
}

func TestManager_GetStats(t *testing.T) {
	m := newTestManager(t)
	addConsoleChannel(t, m, "console")

	require.NoError(t, m.AddRule(simpleRule(t, "critical-rule", time.Minute)))
	require.NoError(t, m.AddRule(mustBuildRule(t, NewRuleBuilder("warning-rule").
		WithName("Warning rule").
		WithSeverity(SeverityWarning).
		WithEnabled(false).
		WithCondition(AlertCondition{Metric: "memory_usage", Operator: OpGreaterThan, Threshold: 90}))))

	m.Evaluate(context.Background(), evalContext(time.Now(), map[string][]float64{"cpu_usage": {95}}))

	stats := m.GetStats()
	assert.Equal(t, 2, stats.TotalRules)
	assert.Equal(t, 1, stats.EnabledRules)
	assert.Equal(t, 1, stats.RulesBySeverity[SeverityCritical])
	assert.Equal(t, 1, stats.RulesBySeverity[SeverityWarning])
	assert.Equal(t, 1, stats.TotalAlerts)
	assert.Equal(t, 1, stats.AlertsBySeverity[SeverityCritical])
	assert.Equal(t, 1, stats.TotalChannels)
}

func TestManager_DetectAnomalies_Disabled(t *testing.T) {
	config := DefaultAlertConfig()
	config.EnableAnomalyDetection = false
	m := NewManager(config, newTestLogger(), nil)

	for i := 0; i < 30; i++ {
		assert.Nil(t, m.DetectAnomalies("cpu_usage", 10, time.Now()))
	}
	assert.Nil(t, m.DetectAnomalies("cpu_usage", 500, time.Now()))
}

func TestManager_DetectAnomalies(t *testing.T) {
	m := newTestManager(t)

	for i := 0; i < 25; i++ {
		m.DetectAnomalies("cpu_usage", 10, time.Now())
	}
	assert.NotEmpty(t, m.DetectAnomalies("cpu_usage", 500, time.Now()))
}

func TestManager_StartAutoEvaluation(t *testing.T) {
	config := DefaultAlertConfig()
	config.EvaluationInterval = time.Second
	m := NewManager(config, newTestLogger(), nil)

	provider := func() *EvaluationContext {
		return evalContext(time.Now(), map[string][]float64{})
	}

	require.NoError(t, m.StartAutoEvaluation(provider))
	err := m.StartAutoEvaluation(provider)
	assert.True(t, errors.IsValidation(err))

	m.StopAutoEvaluation()
	require.NoError(t, m.StartAutoEvaluation(provider))
	m.StopAutoEvaluation()
}

func TestManager_Reset(t *testing.T) {
	m := newTestManager(t)
	addConsoleChannel(t, m, "console")
	require.NoError(t, m.AddRule(simpleRule(t, "high-cpu", time.Minute, "console")))

	m.Evaluate(context.Background(), evalContext(time.Now(), map[string][]float64{"cpu_usage": {95}}))
	m.Reset()

	assert.Empty(t, m.GetAllRules())
	assert.Empty(t, m.GetAllChannels())
	assert.Empty(t, m.GetHistory(0))

	stats := m.GetStats()
	assert.Zero(t, stats.TotalRules)
	assert.Zero(t, stats.TotalAlerts)
}
