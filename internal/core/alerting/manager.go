package alerting

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/frostdev-ops/pma-alerting-go/internal/core/metrics"
	"github.com/frostdev-ops/pma-alerting-go/internal/notifications"
	"github.com/frostdev-ops/pma-alerting-go/pkg/errors"
)

// defaultSendTimeout bounds a single notification delivery so one hung
// channel cannot stall an evaluation pass indefinitely
const defaultSendTimeout = 30 * time.Second

// AlertConfig configures a Manager
type AlertConfig struct {
	EnableAnomalyDetection bool          `json:"enable_anomaly_detection"`
	AnomalyConfig          AnomalyConfig `json:"anomaly_config"`
	EvaluationInterval     time.Duration `json:"evaluation_interval"`
	MaxHistorySize         int           `json:"max_history_size"`
}

// DefaultAlertConfig returns the default manager configuration
func DefaultAlertConfig() AlertConfig {
	return AlertConfig{
		EnableAnomalyDetection: true,
		AnomalyConfig:          DefaultAnomalyConfig(),
		EvaluationInterval:     10 * time.Second,
		MaxHistorySize:         1000,
	}
}

// HistoryEntry records one triggered rule and its delivery outcomes.
// History is append-only and bounded; the oldest entries are evicted
// first.
type HistoryEntry struct {
	ID        string          `json:"id"`
	RuleID    string          `json:"rule_id"`
	Timestamp time.Time       `json:"timestamp"`
	Triggered bool            `json:"triggered"`
	Message   string          `json:"message"`
	Channels  []ChannelResult `json:"channels"`
}

// AlertStats summarizes the engine's registries and trigger counts
type AlertStats struct {
	TotalRules       int                   `json:"total_rules"`
	EnabledRules     int                   `json:"enabled_rules"`
	RulesBySeverity  map[AlertSeverity]int `json:"rules_by_severity"`
	TotalAlerts      int                   `json:"total_alerts"`
	AlertsBySeverity map[AlertSeverity]int `json:"alerts_by_severity"`
	TotalChannels    int                   `json:"total_channels"`
}

// ContextProvider supplies the metric snapshot for one auto-evaluation
// tick
type ContextProvider func() *EvaluationContext

// Manager owns the rule and channel registries, cooldown tracking,
// bounded history, and the evaluation loop. A single Manager instance
// is the sole owner of all alert state; collaborators receive only the
// parts they need.
type Manager struct {
	config    AlertConfig
	logger    *logrus.Logger
	collector *metrics.Collector

	evaluator *Evaluator
	detector  *AnomalyDetector
	scheduler *evaluationScheduler

	mu           sync.RWMutex
	rules        map[string]*AlertRule
	ruleOrder    []string
	channels     map[string]notifications.Channel
	cooldowns    map[string]time.Time
	history      []HistoryEntry
	alertCounts  map[AlertSeverity]int
	totalAlerts  int
}

// NewManager creates a Manager. collector may be nil to disable metrics.
func NewManager(config AlertConfig, logger *logrus.Logger, collector *metrics.Collector) *Manager {
	if config.EvaluationInterval <= 0 {
		config.EvaluationInterval = 10 * time.Second
	}
	if config.MaxHistorySize <= 0 {
		config.MaxHistorySize = 1000
	}

	return &Manager{
		config:      config,
		logger:      logger,
		collector:   collector,
		evaluator:   NewEvaluator(logger),
		detector:    NewAnomalyDetector(config.AnomalyConfig, logger),
		rules:       make(map[string]*AlertRule),
		channels:    make(map[string]notifications.Channel),
		cooldowns:   make(map[string]time.Time),
		alertCounts: make(map[AlertSeverity]int),
	}
}

// AddRule registers a rule. Rule IDs are unique within a manager.
func (m *Manager) AddRule(rule *AlertRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.rules[rule.ID]; exists {
		return errors.NewValidationError("id", "rule ID already registered: "+rule.ID)
	}

	m.rules[rule.ID] = rule
	m.ruleOrder = append(m.ruleOrder, rule.ID)
	if m.collector != nil {
		m.collector.SetRuleCount(len(m.rules))
	}

	m.logger.WithFields(logrus.Fields{
		"rule_id":  rule.ID,
		"severity": rule.Severity,
	}).Infof("Alert rule added: %s", rule.Name)
	return nil
}

// RemoveRule deletes a rule along with its evaluator state and pending
// cooldown
func (m *Manager) RemoveRule(ruleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.rules[ruleID]; !exists {
		return errors.NewNotFoundError("rule", ruleID)
	}

	delete(m.rules, ruleID)
	delete(m.cooldowns, ruleID)
	for i, id := range m.ruleOrder {
		if id == ruleID {
			m.ruleOrder = append(m.ruleOrder[:i], m.ruleOrder[i+1:]...)
			break
		}
	}
	m.evaluator.ResetRule(ruleID)

	if m.collector != nil {
		m.collector.SetRuleCount(len(m.rules))
	}

	m.logger.Infof("Alert rule removed: %s", ruleID)
	return nil
}

// GetRule returns a rule by ID
func (m *Manager) GetRule(ruleID string) (*AlertRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rule, exists := m.rules[ruleID]
	if !exists {
		return nil, errors.NewNotFoundError("rule", ruleID)
	}
	return rule, nil
}

// GetAllRules returns all rules in registration order
func (m *Manager) GetAllRules() []*AlertRule {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rules := make([]*AlertRule, 0, len(m.ruleOrder))
	for _, id := range m.ruleOrder {
		rules = append(rules, m.rules[id])
	}
	return rules
}

// UpdateRule replaces the definition of an existing rule, preserving its
// creation time, lifecycle state and registration position. Fails when
// the rule ID is unknown.
func (m *Manager) UpdateRule(rule *AlertRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, exists := m.rules[rule.ID]
	if !exists {
		return errors.NewNotFoundError("rule", rule.ID)
	}

	rule.CreatedAt = existing.CreatedAt
	rule.State = existing.State
	rule.LastTriggered = existing.LastTriggered
	rule.UpdatedAt = time.Now()
	m.rules[rule.ID] = rule

	m.logger.Infof("Alert rule updated: %s", rule.ID)
	return nil
}

// EnableRule marks a rule eligible for evaluation again
func (m *Manager) EnableRule(ruleID string) error {
	return m.setRuleEnabled(ruleID, true)
}

// DisableRule excludes a rule from evaluation without removing it
func (m *Manager) DisableRule(ruleID string) error {
	return m.setRuleEnabled(ruleID, false)
}

func (m *Manager) setRuleEnabled(ruleID string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rule, exists := m.rules[ruleID]
	if !exists {
		return errors.NewNotFoundError("rule", ruleID)
	}
	rule.Enabled = enabled
	rule.UpdatedAt = time.Now()
	return nil
}

// SilenceRule moves a rule to the silenced state; silenced rules are
// skipped by evaluation until resolved or re-silenced off
func (m *Manager) SilenceRule(ruleID string) error {
	return m.setRuleState(ruleID, StateSilenced)
}

// ResolveRule explicitly moves a rule to the resolved state. The engine
// never resolves rules automatically.
func (m *Manager) ResolveRule(ruleID string) error {
	return m.setRuleState(ruleID, StateResolved)
}

func (m *Manager) setRuleState(ruleID string, state RuleState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rule, exists := m.rules[ruleID]
	if !exists {
		return errors.NewNotFoundError("rule", ruleID)
	}
	rule.State = state
	rule.UpdatedAt = time.Now()

	m.logger.WithField("rule_id", ruleID).Infof("Rule state set to %s", state)
	return nil
}

// AddChannel builds and registers a notification channel from its
// configuration. An unrecognized channel type fails immediately.
func (m *Manager) AddChannel(cfg notifications.Config) error {
	channel, err := notifications.New(cfg, m.logger)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[cfg.ID] = channel

	m.logger.WithFields(logrus.Fields{
		"channel_id":   cfg.ID,
		"channel_type": cfg.Type,
	}).Infof("Notification channel added: %s", cfg.Name)
	return nil
}

// RemoveChannel deletes a channel by ID
func (m *Manager) RemoveChannel(channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.channels[channelID]; !exists {
		return errors.NewNotFoundError("channel", channelID)
	}
	delete(m.channels, channelID)

	m.logger.Infof("Notification channel removed: %s", channelID)
	return nil
}

// GetChannel returns a channel by ID
func (m *Manager) GetChannel(channelID string) (notifications.Channel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	channel, exists := m.channels[channelID]
	if !exists {
		return nil, errors.NewNotFoundError("channel", channelID)
	}
	return channel, nil
}

// GetAllChannels returns all registered channels
func (m *Manager) GetAllChannels() []notifications.Channel {
	m.mu.RLock()
	defer m.mu.RUnlock()

	channels := make([]notifications.Channel, 0, len(m.channels))
	for _, channel := range m.channels {
		channels = append(channels, channel)
	}
	return channels
}

// triggeredRule carries a trigger from the evaluation phase to the
// dispatch phase
type triggeredRule struct {
	resultIndex int
	severity    AlertSeverity
	channels    []notifications.Channel
	payload     notifications.Payload
}

// Evaluate runs one evaluation pass over every enabled, non-cooled-down
// rule. Rules are processed and history appended in registration order;
// a triggered rule's channels are notified in the order listed in its
// actions. Delivery failures are recorded in the results and history,
// never returned as errors.
func (m *Manager) Evaluate(ctx context.Context, ectx *EvaluationContext) []EvaluationResult {
	started := time.Now()
	now := ectx.Timestamp

	// Phase 1: evaluate conditions and update rule state under the lock.
	m.mu.Lock()
	results := make([]EvaluationResult, 0, len(m.ruleOrder))
	var triggers []triggeredRule

	for _, id := range m.ruleOrder {
		rule := m.rules[id]
		if !rule.Enabled || rule.State == StateSilenced {
			continue
		}
		if expiry, ok := m.cooldowns[id]; ok && now.Before(expiry) {
			continue
		}

		result := m.evaluator.Evaluate(rule, ectx)

		if result.Triggered {
			rule.State = StateActive
			triggeredAt := now
			rule.LastTriggered = &triggeredAt
			m.cooldowns[id] = now.Add(rule.Cooldown)

			m.totalAlerts++
			m.alertCounts[rule.Severity]++
			if m.collector != nil {
				m.collector.RecordTrigger(string(rule.Severity))
			}

			channels := make([]notifications.Channel, 0, len(rule.Actions))
			for _, channelID := range rule.Actions {
				channel, ok := m.channels[channelID]
				if !ok || !channel.Enabled() {
					continue
				}
				channels = append(channels, channel)
			}

			triggers = append(triggers, triggeredRule{
				resultIndex: len(results),
				severity:    rule.Severity,
				channels:    channels,
				payload: notifications.Payload{
					RuleID:    rule.ID,
					RuleName:  rule.Name,
					Message:   result.Message,
					Severity:  string(rule.Severity),
					Timestamp: now,
					Metadata:  map[string]interface{}{"labels": rule.Labels, "tags": rule.Tags},
				},
			})

			m.logger.WithFields(logrus.Fields{
				"rule_id":  rule.ID,
				"severity": rule.Severity,
			}).Warnf("Alert triggered: %s", result.Message)
		}

		results = append(results, result)
	}
	m.mu.Unlock()

	// Phase 2: dispatch notifications outside the lock. All triggered
	// rules dispatch concurrently; within one rule the channels are
	// notified in action-list order.
	var wg sync.WaitGroup
	for i := range triggers {
		wg.Add(1)
		go func(t *triggeredRule) {
			defer wg.Done()
			results[t.resultIndex].Notifications = m.dispatch(ctx, t)
		}(&triggers[i])
	}
	wg.Wait()

	// Phase 3: append history entries in registration order.
	m.mu.Lock()
	for _, t := range triggers {
		r := &results[t.resultIndex]
		m.appendHistoryLocked(HistoryEntry{
			ID:        uuid.New().String(),
			RuleID:    r.RuleID,
			Timestamp: r.Timestamp,
			Triggered: true,
			Message:   r.Message,
			Channels:  r.Notifications,
		})
	}
	m.mu.Unlock()

	if m.collector != nil {
		m.collector.RecordEvaluation(time.Since(started).Seconds())
	}

	return results
}

// dispatch sends a trigger's payload to each of its channels, bounding
// every send with a timeout and converting failures into recorded
// results
func (m *Manager) dispatch(ctx context.Context, t *triggeredRule) []ChannelResult {
	channelResults := make([]ChannelResult, 0, len(t.channels))

	for _, channel := range t.channels {
		sendCtx, cancel := context.WithTimeout(ctx, defaultSendTimeout)
		result := channel.Send(sendCtx, t.payload)
		cancel()

		if m.collector != nil {
			m.collector.RecordNotification(string(channel.Type()), result.Success)
		}

		channelResults = append(channelResults, ChannelResult{
			ChannelID: result.ChannelID,
			Success:   result.Success,
			Error:     result.Error,
		})
	}

	return channelResults
}

// appendHistoryLocked appends an entry, evicting the oldest once the
// buffer exceeds MaxHistorySize. Caller must hold m.mu.
func (m *Manager) appendHistoryLocked(entry HistoryEntry) {
	m.history = append(m.history, entry)
	if len(m.history) > m.config.MaxHistorySize {
		m.history = m.history[len(m.history)-m.config.MaxHistorySize:]
	}
	if m.collector != nil {
		m.collector.SetHistorySize(len(m.history))
	}
}

// DetectAnomalies feeds one observation to the anomaly detector.
// Returns nothing when anomaly detection is disabled.
func (m *Manager) DetectAnomalies(metric string, value float64, timestamp time.Time) []Anomaly {
	if !m.config.EnableAnomalyDetection {
		return nil
	}

	anomalies := m.detector.Detect(metric, value, timestamp)
	if m.collector != nil {
		for _, a := range anomalies {
			m.collector.RecordAnomaly(string(a.Type))
		}
	}
	return anomalies
}

// GetHistory returns history entries most-recent-first. A limit of 0
// returns everything retained.
func (m *Manager) GetHistory(limit int) []HistoryEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterHistoryLocked("", limit)
}

// GetHistoryForRule returns one rule's history most-recent-first
func (m *Manager) GetHistoryForRule(ruleID string, limit int) []HistoryEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterHistoryLocked(ruleID, limit)
}

func (m *Manager) filterHistoryLocked(ruleID string, limit int) []HistoryEntry {
	entries := make([]HistoryEntry, 0, len(m.history))
	for i := len(m.history) - 1; i >= 0; i-- {
		if ruleID != "" && m.history[i].RuleID != ruleID {
			continue
		}
		entries = append(entries, m.history[i])
		if limit > 0 && len(entries) >= limit {
			break
		}
	}
	return entries
}

// GetStats summarizes rules, cumulative triggers and channels
func (m *Manager) GetStats() AlertStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := AlertStats{
		TotalRules:       len(m.rules),
		RulesBySeverity:  make(map[AlertSeverity]int),
		TotalAlerts:      m.totalAlerts,
		AlertsBySeverity: make(map[AlertSeverity]int),
		TotalChannels:    len(m.channels),
	}
	for _, rule := range m.rules {
		stats.RulesBySeverity[rule.Severity]++
		if rule.Enabled {
			stats.EnabledRules++
		}
	}
	for severity, count := range m.alertCounts {
		stats.AlertsBySeverity[severity] = count
	}
	return stats
}

// StartAutoEvaluation begins periodic evaluation using contexts from
// provider. Ticks are single-flight: a tick is skipped while the
// previous evaluation is still running.
func (m *Manager) StartAutoEvaluation(provider ContextProvider) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.scheduler != nil {
		return errors.NewValidationError("scheduler", "auto evaluation already running")
	}

	scheduler, err := newEvaluationScheduler(m.config.EvaluationInterval, m.logger, func() {
		ectx := provider()
		if ectx == nil {
			return
		}
		m.Evaluate(context.Background(), ectx)
	})
	if err != nil {
		return err
	}
	m.scheduler = scheduler
	m.scheduler.Start()

	m.logger.Infof("Auto evaluation started (interval %s)", m.config.EvaluationInterval)
	return nil
}

// StopAutoEvaluation stops scheduling further evaluations. In-flight
// notification sends are not cancelled.
func (m *Manager) StopAutoEvaluation() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.scheduler == nil {
		return
	}
	m.scheduler.Stop()
	m.scheduler = nil

	m.logger.Info("Auto evaluation stopped")
}

// Reset clears every piece of owned state: rules, channels, cooldowns,
// history, condition state and anomaly windows
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rules = make(map[string]*AlertRule)
	m.ruleOrder = nil
	m.channels = make(map[string]notifications.Channel)
	m.cooldowns = make(map[string]time.Time)
	m.history = nil
	m.alertCounts = make(map[AlertSeverity]int)
	m.totalAlerts = 0
	m.evaluator.Reset()
	m.detector.Reset()

	if m.collector != nil {
		m.collector.SetRuleCount(0)
		m.collector.SetHistorySize(0)
	}
}

// Dispose stops auto evaluation and clears all state
func (m *Manager) Dispose() {
	m.StopAutoEvaluation()
	m.Reset()
}
