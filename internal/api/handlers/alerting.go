package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/frostdev-ops/pma-alerting-go/internal/core/alerting"
	"github.com/frostdev-ops/pma-alerting-go/internal/notifications"
	"github.com/frostdev-ops/pma-alerting-go/pkg/errors"
	"github.com/frostdev-ops/pma-alerting-go/pkg/utils"
)

// AlertingHandler handles alerting engine requests
type AlertingHandler struct {
	manager *alerting.Manager
	logger  *logrus.Logger
}

// NewAlertingHandler creates a new alerting handler
func NewAlertingHandler(manager *alerting.Manager, logger *logrus.Logger) *AlertingHandler {
	return &AlertingHandler{manager: manager, logger: logger}
}

// RegisterRoutes registers alerting routes on the given group
func (h *AlertingHandler) RegisterRoutes(api *gin.RouterGroup) {
	rules := api.Group("/rules")
	{
		rules.GET("", h.ListRules)
		rules.POST("", h.CreateRule)
		rules.GET("/:id", h.GetRule)
		rules.PUT("/:id", h.UpdateRule)
		rules.DELETE("/:id", h.DeleteRule)
		rules.POST("/:id/enable", h.EnableRule)
		rules.POST("/:id/disable", h.DisableRule)
		rules.POST("/:id/silence", h.SilenceRule)
		rules.POST("/:id/resolve", h.ResolveRule)
	}

	channels := api.Group("/channels")
	{
		channels.GET("", h.ListChannels)
		channels.POST("", h.CreateChannel)
		channels.GET("/:id", h.GetChannel)
		channels.DELETE("/:id", h.DeleteChannel)
	}

	api.POST("/evaluate", h.Evaluate)
	api.POST("/anomalies/detect", h.DetectAnomalies)
	api.GET("/history", h.GetHistory)
	api.GET("/stats", h.GetStats)
}

// conditionRequest mirrors AlertCondition with millisecond durations
type conditionRequest struct {
	Metric      string  `json:"metric" binding:"required"`
	Operator    string  `json:"operator" binding:"required"`
	Threshold   float64 `json:"threshold"`
	DurationMs  int64   `json:"duration_ms"`
	Aggregation string  `json:"aggregation"`
}

// ruleRequest is the create/update payload for a rule
type ruleRequest struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Severity    string             `json:"severity"`
	Enabled     *bool              `json:"enabled"`
	CooldownMs  int64              `json:"cooldown_ms"`
	Tags        []string           `json:"tags"`
	Labels      map[string]string  `json:"labels"`
	Actions     []string           `json:"actions"`
	Conditions  []conditionRequest `json:"conditions"`
}

// buildRule converts a request into a validated rule
func buildRule(req ruleRequest) (*alerting.AlertRule, error) {
	builder := alerting.NewRuleBuilder(req.ID).
		WithName(req.Name).
		WithDescription(req.Description).
		WithSeverity(alerting.AlertSeverity(req.Severity))

	for _, c := range req.Conditions {
		op, err := alerting.ParseOperator(c.Operator)
		if err != nil {
			return nil, err
		}
		agg, err := alerting.ParseAggregation(c.Aggregation)
		if err != nil {
			return nil, err
		}
		builder.WithCondition(alerting.AlertCondition{
			Metric:      c.Metric,
			Operator:    op,
			Threshold:   c.Threshold,
			Duration:    time.Duration(c.DurationMs) * time.Millisecond,
			Aggregation: agg,
		})
	}

	if req.Enabled != nil {
		builder.WithEnabled(*req.Enabled)
	}
	if req.CooldownMs > 0 {
		builder.WithCooldown(time.Duration(req.CooldownMs) * time.Millisecond)
	}
	if len(req.Tags) > 0 {
		builder.WithTags(req.Tags...)
	}
	if len(req.Labels) > 0 {
		builder.WithLabels(req.Labels)
	}
	if len(req.Actions) > 0 {
		builder.WithActions(req.Actions...)
	}

	return builder.Build()
}

// sendEngineError maps engine error types to HTTP statuses
func sendEngineError(c *gin.Context, err error) {
	switch {
	case errors.IsNotFound(err):
		utils.SendError(c, http.StatusNotFound, err.Error())
	case errors.IsValidation(err), errors.IsUnsupportedChannelType(err):
		utils.SendError(c, http.StatusBadRequest, err.Error())
	default:
		utils.SendError(c, http.StatusInternalServerError, err.Error())
	}
}

// ListRules returns all rules in registration order
func (h *AlertingHandler) ListRules(c *gin.Context) {
	utils.SendSuccess(c, h.manager.GetAllRules())
}

// CreateRule builds and registers a rule
func (h *AlertingHandler) CreateRule(c *gin.Context) {
	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "invalid rule payload: "+err.Error())
		return
	}

	rule, err := buildRule(req)
	if err != nil {
		sendEngineError(c, err)
		return
	}
	if err := h.manager.AddRule(rule); err != nil {
		sendEngineError(c, err)
		return
	}

	c.JSON(http.StatusCreated, utils.Response{
		Success:   true,
		Data:      rule,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// GetRule returns a single rule
func (h *AlertingHandler) GetRule(c *gin.Context) {
	rule, err := h.manager.GetRule(c.Param("id"))
	if err != nil {
		sendEngineError(c, err)
		return
	}
	utils.SendSuccess(c, rule)
}

// UpdateRule replaces an existing rule definition
func (h *AlertingHandler) UpdateRule(c *gin.Context) {
	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "invalid rule payload: "+err.Error())
		return
	}
	req.ID = c.Param("id")

	rule, err := buildRule(req)
	if err != nil {
		sendEngineError(c, err)
		return
	}
	if err := h.manager.UpdateRule(rule); err != nil {
		sendEngineError(c, err)
		return
	}
	utils.SendSuccess(c, rule)
}

// DeleteRule removes a rule and its evaluation state
func (h *AlertingHandler) DeleteRule(c *gin.Context) {
	if err := h.manager.RemoveRule(c.Param("id")); err != nil {
		sendEngineError(c, err)
		return
	}
	utils.SendSuccess(c, gin.H{"removed": c.Param("id")})
}

// EnableRule re-enables a rule for evaluation
func (h *AlertingHandler) EnableRule(c *gin.Context) {
	h.ruleStateOp(c, h.manager.EnableRule)
}

// DisableRule excludes a rule from evaluation
func (h *AlertingHandler) DisableRule(c *gin.Context) {
	h.ruleStateOp(c, h.manager.DisableRule)
}

// SilenceRule silences a rule
func (h *AlertingHandler) SilenceRule(c *gin.Context) {
	h.ruleStateOp(c, h.manager.SilenceRule)
}

// ResolveRule resolves a rule
func (h *AlertingHandler) ResolveRule(c *gin.Context) {
	h.ruleStateOp(c, h.manager.ResolveRule)
}

func (h *AlertingHandler) ruleStateOp(c *gin.Context, op func(string) error) {
	id := c.Param("id")
	if err := op(id); err != nil {
		sendEngineError(c, err)
		return
	}
	rule, err := h.manager.GetRule(id)
	if err != nil {
		sendEngineError(c, err)
		return
	}
	utils.SendSuccess(c, rule)
}

// channelResponse is the JSON shape for a registered channel
type channelResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Enabled bool   `json:"enabled"`
}

func toChannelResponse(ch notifications.Channel) channelResponse {
	return channelResponse{
		ID:      ch.ID(),
		Name:    ch.Name(),
		Type:    string(ch.Type()),
		Enabled: ch.Enabled(),
	}
}

// ListChannels returns all registered channels
func (h *AlertingHandler) ListChannels(c *gin.Context) {
	channels := h.manager.GetAllChannels()
	out := make([]channelResponse, 0, len(channels))
	for _, ch := range channels {
		out = append(out, toChannelResponse(ch))
	}
	utils.SendSuccess(c, out)
}

// CreateChannel registers a notification channel
func (h *AlertingHandler) CreateChannel(c *gin.Context) {
	var cfg notifications.Config
	if err := c.ShouldBindJSON(&cfg); err != nil {
		utils.SendError(c, http.StatusBadRequest, "invalid channel payload: "+err.Error())
		return
	}
	if cfg.ID == "" {
		utils.SendError(c, http.StatusBadRequest, "channel id is required")
		return
	}

	if err := h.manager.AddChannel(cfg); err != nil {
		sendEngineError(c, err)
		return
	}

	c.JSON(http.StatusCreated, utils.Response{
		Success:   true,
		Data:      gin.H{"id": cfg.ID},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// GetChannel returns a single channel
func (h *AlertingHandler) GetChannel(c *gin.Context) {
	channel, err := h.manager.GetChannel(c.Param("id"))
	if err != nil {
		sendEngineError(c, err)
		return
	}
	utils.SendSuccess(c, toChannelResponse(channel))
}

// DeleteChannel removes a channel
func (h *AlertingHandler) DeleteChannel(c *gin.Context) {
	if err := h.manager.RemoveChannel(c.Param("id")); err != nil {
		sendEngineError(c, err)
		return
	}
	utils.SendSuccess(c, gin.H{"removed": c.Param("id")})
}

// evaluateRequest is an externally supplied evaluation context
type evaluateRequest struct {
	MetricValues map[string][]float64 `json:"metric_values" binding:"required"`
	TimestampMs  int64                `json:"timestamp_ms"`
}

// Evaluate runs one evaluation pass against the supplied context
func (h *AlertingHandler) Evaluate(c *gin.Context) {
	var req evaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "invalid evaluation context: "+err.Error())
		return
	}

	timestamp := time.Now()
	if req.TimestampMs > 0 {
		timestamp = time.UnixMilli(req.TimestampMs)
	}

	results := h.manager.Evaluate(c.Request.Context(), &alerting.EvaluationContext{
		MetricValues: req.MetricValues,
		Timestamp:    timestamp,
	})
	utils.SendSuccess(c, results)
}

// detectRequest is a single observation for anomaly detection
type detectRequest struct {
	Metric      string  `json:"metric" binding:"required"`
	Value       float64 `json:"value"`
	TimestampMs int64   `json:"timestamp_ms"`
}

// DetectAnomalies feeds one observation to the anomaly detector
func (h *AlertingHandler) DetectAnomalies(c *gin.Context) {
	var req detectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "invalid observation: "+err.Error())
		return
	}

	timestamp := time.Now()
	if req.TimestampMs > 0 {
		timestamp = time.UnixMilli(req.TimestampMs)
	}

	anomalies := h.manager.DetectAnomalies(req.Metric, req.Value, timestamp)
	if anomalies == nil {
		anomalies = []alerting.Anomaly{}
	}
	utils.SendSuccess(c, anomalies)
}

// GetHistory returns alert history, most recent first. Supports
// ?limit=N and ?rule_id=X.
func (h *AlertingHandler) GetHistory(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			utils.SendError(c, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	var entries []alerting.HistoryEntry
	if ruleID := c.Query("rule_id"); ruleID != "" {
		entries = h.manager.GetHistoryForRule(ruleID, limit)
	} else {
		entries = h.manager.GetHistory(limit)
	}
	utils.SendSuccessWithMeta(c, entries, gin.H{"count": len(entries)})
}

// GetStats returns engine statistics
func (h *AlertingHandler) GetStats(c *gin.Context) {
	utils.SendSuccess(c, h.manager.GetStats())
}
