package alerting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feedSamples(d *AnomalyDetector, metric string, values []float64) {
	at := time.Now()
	for _, v := range values {
		d.Detect(metric, v, at)
		at = at.Add(time.Second)
	}
}

func repeat(value float64, n int) []float64 {
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = value
	}
	return samples
}

func TestAnomalyDetector_SilentBelowMinDataPoints(t *testing.T) {
	detector := NewAnomalyDetector(DefaultAnomalyConfig(), newTestLogger())

	for i := 0; i < 19; i++ {
		anomalies := detector.Detect("cpu_usage", 10, time.Now())
		assert.Empty(t, anomalies)
	}

	// The 20th sample reaches the minimum; a wild value still gets flagged
	anomalies := detector.Detect("cpu_usage", 500, time.Now())
	assert.NotEmpty(t, anomalies)
}

func TestAnomalyDetector_Spike(t *testing.T) {
	detector := NewAnomalyDetector(DefaultAnomalyConfig(), newTestLogger())
	feedSamples(detector, "cpu_usage", repeat(10, 25))

	anomalies := detector.Detect("cpu_usage", 200, time.Now())
	require.NotEmpty(t, anomalies)

	var spike *Anomaly
	for i := range anomalies {
		if anomalies[i].Type == AnomalySpike {
			spike = &anomalies[i]
		}
	}
	require.NotNil(t, spike)
	assert.Equal(t, "cpu_usage", spike.Metric)
	assert.Equal(t, 200.0, spike.Value)
	assert.InDelta(t, 10.0, spike.ExpectedValue, 0.001)
	assert.InDelta(t, 190.0, spike.Deviation, 0.001)
	assert.Equal(t, 1.0, spike.Confidence)
	assert.NotEmpty(t, spike.ID)
}

func TestAnomalyDetector_Drop(t *testing.T) {
	config := DefaultAnomalyConfig()
	config.EnableOutlier = false
	detector := NewAnomalyDetector(config, newTestLogger())
	feedSamples(detector, "throughput", repeat(100, 30))

	anomalies := detector.Detect("throughput", 2, time.Now())
	require.Len(t, anomalies, 1)
	assert.Equal(t, AnomalyDrop, anomalies[0].Type)
	assert.InDelta(t, 100.0, anomalies[0].ExpectedValue, 0.001)
	assert.Negative(t, anomalies[0].Deviation)
}

func TestAnomalyDetector_Outlier(t *testing.T) {
	config := DefaultAnomalyConfig()
	config.EnableSpike = false
	config.EnableDrop = false
	detector := NewAnomalyDetector(config, newTestLogger())
	feedSamples(detector, "latency", repeat(50, 25))

	anomalies := detector.Detect("latency", 400, time.Now())
	require.Len(t, anomalies, 1)
	assert.Equal(t, AnomalyOutlier, anomalies[0].Type)
	assert.Equal(t, 1.0, anomalies[0].Confidence)
}

func TestAnomalyDetector_NormalValuesStaySilent(t *testing.T) {
	detector := NewAnomalyDetector(DefaultAnomalyConfig(), newTestLogger())

	// Alternating values give a real nonzero spread
	samples := make([]float64, 30)
	for i := range samples {
		samples[i] = 10 + float64(i%3)
	}
	feedSamples(detector, "cpu_usage", samples)

	anomalies := detector.Detect("cpu_usage", 11, time.Now())
	assert.Empty(t, anomalies)
}

func TestAnomalyDetector_TrendChange(t *testing.T) {
	config := DefaultAnomalyConfig()
	config.EnableSpike = false
	config.EnableDrop = false
	config.EnableOutlier = false
	detector := NewAnomalyDetector(config, newTestLogger())

	// 25 rising samples then 24 falling ones; the 50th completes the
	// reversal across the window halves
	var ramp []float64
	for i := 0; i < 25; i++ {
		ramp = append(ramp, float64(i))
	}
	for i := 25; i < 49; i++ {
		ramp = append(ramp, float64(49-i))
	}
	feedSamples(detector, "queue_depth", ramp)

	anomalies := detector.Detect("queue_depth", 0, time.Now())
	require.Len(t, anomalies, 1)
	assert.Equal(t, AnomalyTrendChange, anomalies[0].Type)
	assert.Contains(t, anomalies[0].Description, "upward to downward")
}

func TestAnomalyDetector_TrendChange_ModestSlopes(t *testing.T) {
	config := DefaultAnomalyConfig()
	config.EnableSpike = false
	config.EnableDrop = false
	config.EnableOutlier = false
	detector := NewAnomalyDetector(config, newTestLogger())

	// Slopes of +0.4 then -0.4: the 0.8 difference clears the reversal
	// threshold even though the resulting confidence (0.4) is low
	var ramp []float64
	for i := 0; i < 25; i++ {
		ramp = append(ramp, 0.4*float64(i))
	}
	for i := 25; i < 49; i++ {
		ramp = append(ramp, 0.4*float64(49-i))
	}
	feedSamples(detector, "queue_depth", ramp)

	anomalies := detector.Detect("queue_depth", 0, time.Now())
	require.Len(t, anomalies, 1)
	assert.Equal(t, AnomalyTrendChange, anomalies[0].Type)
	assert.InDelta(t, 0.4, anomalies[0].Confidence, 0.001)
}

func TestAnomalyDetector_ResetMetric(t *testing.T) {
	detector := NewAnomalyDetector(DefaultAnomalyConfig(), newTestLogger())
	feedSamples(detector, "cpu_usage", repeat(10, 25))
	feedSamples(detector, "memory_usage", repeat(40, 25))

	detector.ResetMetric("cpu_usage")

	// cpu_usage history is gone, so an extreme value is below the minimum
	// again; memory_usage is untouched
	assert.Empty(t, detector.Detect("cpu_usage", 500, time.Now()))
	assert.NotEmpty(t, detector.Detect("memory_usage", 500, time.Now()))
}

func TestAnomalyDetector_Reset(t *testing.T) {
	detector := NewAnomalyDetector(DefaultAnomalyConfig(), newTestLogger())
	feedSamples(detector, "cpu_usage", repeat(10, 25))

	detector.Reset()
	assert.Empty(t, detector.Detect("cpu_usage", 500, time.Now()))
}

func TestMeanStdDev(t *testing.T) {
	mean, stdDev := meanStdDev(nil)
	assert.Equal(t, 0.0, mean)
	assert.Equal(t, 0.0, stdDev)

	mean, stdDev = meanStdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, 5.0, mean, 0.001)
	assert.InDelta(t, 2.0, stdDev, 0.001)
}

func TestOLSSlope(t *testing.T) {
	assert.Equal(t, 0.0, olsSlope([]float64{5}))
	assert.InDelta(t, 1.0, olsSlope([]float64{0, 1, 2, 3, 4}), 0.001)
	assert.InDelta(t, -2.0, olsSlope([]float64{8, 6, 4, 2, 0}), 0.001)
	assert.InDelta(t, 0.0, olsSlope([]float64{3, 3, 3, 3}), 0.001)
}
