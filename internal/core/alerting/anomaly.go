package alerting

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AnomalyType classifies a detected anomaly
type AnomalyType string

const (
	AnomalySpike       AnomalyType = "spike"
	AnomalyDrop        AnomalyType = "drop"
	AnomalyOutlier     AnomalyType = "outlier"
	AnomalyTrendChange AnomalyType = "trend_change"
)

// maxWindowSize caps the per-metric sample history
const maxWindowSize = 1000

// trendMinSamples is the minimum window size for the trend-change check
const trendMinSamples = 50

// Anomaly is a statistical deviation detected in a metric stream.
// Produced transiently; the engine does not retain anomalies.
type Anomaly struct {
	ID            string      `json:"id"`
	Type          AnomalyType `json:"type"`
	Metric        string      `json:"metric"`
	Timestamp     time.Time   `json:"timestamp"`
	Value         float64     `json:"value"`
	ExpectedValue float64     `json:"expected_value"`
	Deviation     float64     `json:"deviation"`
	Confidence    float64     `json:"confidence"`
	Description   string      `json:"description"`
}

// AnomalyConfig tunes the statistical checks
type AnomalyConfig struct {
	Sensitivity       float64 `json:"sensitivity"`
	MinDataPoints     int     `json:"min_data_points"`
	StdDevThreshold   float64 `json:"stddev_threshold"`
	EnableSpike       bool    `json:"enable_spike"`
	EnableDrop        bool    `json:"enable_drop"`
	EnableTrendChange bool    `json:"enable_trend_change"`
	EnableOutlier     bool    `json:"enable_outlier"`
}

// DefaultAnomalyConfig returns the default detector configuration
func DefaultAnomalyConfig() AnomalyConfig {
	return AnomalyConfig{
		Sensitivity:       0.7,
		MinDataPoints:     20,
		StdDevThreshold:   3,
		EnableSpike:       true,
		EnableDrop:        true,
		EnableTrendChange: true,
		EnableOutlier:     true,
	}
}

// AnomalyDetector keeps a rolling per-metric sample window and flags
// statistical deviations: z-score spikes/drops/outliers and slope-sign
// trend reversals.
type AnomalyDetector struct {
	config  AnomalyConfig
	windows map[string][]float64
	logger  *logrus.Logger
	mu      sync.Mutex
}

// NewAnomalyDetector creates a detector. Zero-valued tuning fields fall
// back to their defaults.
func NewAnomalyDetector(config AnomalyConfig, logger *logrus.Logger) *AnomalyDetector {
	if config.Sensitivity <= 0 {
		config.Sensitivity = 0.7
	}
	if config.MinDataPoints <= 0 {
		config.MinDataPoints = 20
	}
	if config.StdDevThreshold <= 0 {
		config.StdDevThreshold = 3
	}

	return &AnomalyDetector{
		config:  config,
		windows: make(map[string][]float64),
		logger:  logger,
	}
}

// Detect appends value to the metric's window and runs every enabled
// check, comparing the value against the baseline (mean and standard
// deviation) of the samples seen before it. Checks fire independently,
// so a single call can return several anomalies. Nothing is reported
// until at least MinDataPoints samples have been seen for the metric.
func (d *AnomalyDetector) Detect(metric string, value float64, timestamp time.Time) []Anomaly {
	d.mu.Lock()
	defer d.mu.Unlock()

	baseline := d.windows[metric]

	window := append(baseline, value)
	if len(window) > maxWindowSize {
		window = window[len(window)-maxWindowSize:]
	}
	d.windows[metric] = window

	if len(window) < d.config.MinDataPoints {
		return nil
	}

	mean, stdDev := meanStdDev(baseline)
	k := d.config.StdDevThreshold

	// A constant baseline has zero spread; any departure from it is a
	// fully confident deviation.
	zOf := func(delta float64) float64 {
		if stdDev == 0 {
			if delta > 0 {
				return math.Inf(1)
			}
			return 0
		}
		return delta / stdDev
	}

	var anomalies []Anomaly

	if d.config.EnableSpike {
		if z := zOf(value - mean); z > k {
			confidence := math.Min(z/k, 1)
			if confidence >= d.config.Sensitivity {
				anomalies = append(anomalies, d.newAnomaly(AnomalySpike, metric, timestamp, value, mean, confidence,
					fmt.Sprintf("Value %.2f spiked above expected %.2f", value, mean)))
			}
		}
	}

	if d.config.EnableDrop {
		if z := zOf(mean - value); z > k {
			confidence := math.Min(z/k, 1)
			if confidence >= d.config.Sensitivity {
				anomalies = append(anomalies, d.newAnomaly(AnomalyDrop, metric, timestamp, value, mean, confidence,
					fmt.Sprintf("Value %.2f dropped below expected %.2f", value, mean)))
			}
		}
	}

	if d.config.EnableOutlier {
		if zScore := zOf(math.Abs(value - mean)); zScore > 1.5*k {
			confidence := math.Min(zScore/(2*k), 1)
			if confidence >= d.config.Sensitivity {
				anomalies = append(anomalies, d.newAnomaly(AnomalyOutlier, metric, timestamp, value, mean, confidence,
					fmt.Sprintf("Value %.2f is a statistical outlier against mean %.2f", value, mean)))
			}
		}
	}

	if d.config.EnableTrendChange && len(window) >= trendMinSamples {
		if anomaly, ok := d.detectTrendChange(metric, window, value, mean, timestamp); ok {
			anomalies = append(anomalies, anomaly)
		}
	}

	return anomalies
}

// detectTrendChange splits the window into two halves and compares their
// least-squares slopes. A reversal is reported when the slopes differ by
// more than 0.5 and point in opposite directions.
func (d *AnomalyDetector) detectTrendChange(metric string, window []float64, value, mean float64, timestamp time.Time) (Anomaly, bool) {
	half := len(window) / 2
	firstSlope := olsSlope(window[:half])
	secondSlope := olsSlope(window[half:])

	slopeDiff := math.Abs(secondSlope - firstSlope)
	if slopeDiff <= 0.5 || firstSlope*secondSlope >= 0 {
		return Anomaly{}, false
	}

	// Any sign reversal past the slope-difference threshold is reported;
	// confidence scales with the size of the reversal.
	confidence := math.Min(slopeDiff/2, 1)

	direction := "upward to downward"
	if secondSlope > firstSlope {
		direction = "downward to upward"
	}

	return d.newAnomaly(AnomalyTrendChange, metric, timestamp, value, mean, confidence,
		fmt.Sprintf("Trend reversed %s (slope %.2f -> %.2f)", direction, firstSlope, secondSlope)), true
}

func (d *AnomalyDetector) newAnomaly(anomalyType AnomalyType, metric string, timestamp time.Time, value, mean, confidence float64, description string) Anomaly {
	d.logger.WithFields(logrus.Fields{
		"metric":     metric,
		"type":       anomalyType,
		"value":      value,
		"expected":   mean,
		"confidence": confidence,
	}).Debug("Anomaly detected")

	return Anomaly{
		ID:            uuid.New().String(),
		Type:          anomalyType,
		Metric:        metric,
		Timestamp:     timestamp,
		Value:         value,
		ExpectedValue: mean,
		Deviation:     value - mean,
		Confidence:    confidence,
		Description:   description,
	}
}

// ResetMetric clears the tracked history for one metric
func (d *AnomalyDetector) ResetMetric(metric string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.windows, metric)
}

// Reset clears all tracked history
func (d *AnomalyDetector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.windows = make(map[string][]float64)
}

// meanStdDev computes the mean and population standard deviation
func meanStdDev(samples []float64) (float64, float64) {
	if len(samples) == 0 {
		return 0, 0
	}
	n := float64(len(samples))
	sum := 0.0
	for _, v := range samples {
		sum += v
	}
	mean := sum / n

	variance := 0.0
	for _, v := range samples {
		diff := v - mean
		variance += diff * diff
	}
	variance /= n

	return mean, math.Sqrt(variance)
}

// olsSlope computes the ordinary-least-squares slope of value against
// sample index
func olsSlope(samples []float64) float64 {
	n := float64(len(samples))
	if n < 2 {
		return 0
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, v := range samples {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}
