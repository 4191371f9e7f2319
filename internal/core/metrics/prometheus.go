package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector exposes engine counters and gauges as Prometheus metrics
type Collector struct {
	evaluationsTotal   prometheus.Counter
	evaluationDuration prometheus.Histogram
	alertsTriggered    *prometheus.CounterVec
	rulesRegistered    prometheus.Gauge
	notificationsTotal *prometheus.CounterVec
	anomaliesTotal     *prometheus.CounterVec
	historySize        prometheus.Gauge
}

// NewCollector registers the engine metrics on reg (the default
// registerer when nil) under the given prefix.
func NewCollector(prefix string, reg prometheus.Registerer) *Collector {
	if prefix == "" {
		prefix = "pma_alerting"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		evaluationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_evaluations_total",
			Help: "Total number of evaluation passes",
		}),
		evaluationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    prefix + "_evaluation_duration_seconds",
			Help:    "Duration of evaluation passes in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		}),
		alertsTriggered: factory.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_alerts_triggered_total",
			Help: "Total number of triggered alert rules",
		}, []string{"severity"}),
		rulesRegistered: factory.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_rules_registered",
			Help: "Number of registered alert rules",
		}),
		notificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_notifications_total",
			Help: "Total number of notification delivery attempts",
		}, []string{"channel_type", "success"}),
		anomaliesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_anomalies_total",
			Help: "Total number of detected anomalies",
		}, []string{"type"}),
		historySize: factory.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_history_size",
			Help: "Current number of retained history entries",
		}),
	}
}

// RecordEvaluation records one evaluation pass and its duration
func (c *Collector) RecordEvaluation(seconds float64) {
	c.evaluationsTotal.Inc()
	c.evaluationDuration.Observe(seconds)
}

// RecordTrigger records a triggered rule by severity
func (c *Collector) RecordTrigger(severity string) {
	c.alertsTriggered.WithLabelValues(severity).Inc()
}

// SetRuleCount updates the registered-rule gauge
func (c *Collector) SetRuleCount(n int) {
	c.rulesRegistered.Set(float64(n))
}

// RecordNotification records one delivery attempt outcome
func (c *Collector) RecordNotification(channelType string, success bool) {
	c.notificationsTotal.WithLabelValues(channelType, strconv.FormatBool(success)).Inc()
}

// RecordAnomaly records a detected anomaly by type
func (c *Collector) RecordAnomaly(anomalyType string) {
	c.anomaliesTotal.WithLabelValues(anomalyType).Inc()
}

// SetHistorySize updates the history size gauge
func (c *Collector) SetHistorySize(n int) {
	c.historySize.Set(float64(n))
}
