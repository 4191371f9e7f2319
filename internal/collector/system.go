package collector

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"

	"github.com/frostdev-ops/pma-alerting-go/internal/core/alerting"
)

// SystemCollector samples host metrics (cpu_usage, memory_usage,
// disk_usage, load1) on an interval and exposes rolling windows of the
// most recent samples as evaluation contexts.
type SystemCollector struct {
	interval   time.Duration
	windowSize int
	logger     *logrus.Logger

	mu      sync.RWMutex
	samples map[string][]float64

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSystemCollector creates a collector keeping windowSize samples per
// metric
func NewSystemCollector(interval time.Duration, windowSize int, logger *logrus.Logger) *SystemCollector {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if windowSize <= 0 {
		windowSize = 60
	}

	return &SystemCollector{
		interval:   interval,
		windowSize: windowSize,
		logger:     logger,
		samples:    make(map[string][]float64),
	}
}

// Start begins the sampling loop in a background goroutine
func (c *SystemCollector) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		c.sample(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.sample(ctx)
			}
		}
	}()

	c.logger.Infof("System collector started (interval %s)", c.interval)
}

// Stop halts sampling and waits for the loop to exit
func (c *SystemCollector) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
}

// sample takes one reading of each host metric
func (c *SystemCollector) sample(ctx context.Context) {
	if percentages, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percentages) > 0 {
		c.record("cpu_usage", percentages[0])
	} else if err != nil {
		c.logger.WithError(err).Debug("Failed to sample CPU usage")
	}

	if vmem, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		c.record("memory_usage", vmem.UsedPercent)
	} else {
		c.logger.WithError(err).Debug("Failed to sample memory usage")
	}

	if usage, err := disk.UsageWithContext(ctx, "/"); err == nil {
		c.record("disk_usage", usage.UsedPercent)
	} else {
		c.logger.WithError(err).Debug("Failed to sample disk usage")
	}

	if avg, err := load.AvgWithContext(ctx); err == nil {
		c.record("load1", avg.Load1)
	} else {
		c.logger.WithError(err).Debug("Failed to sample load average")
	}
}

// record appends a sample, evicting the oldest past the window size
func (c *SystemCollector) record(metric string, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	window := append(c.samples[metric], value)
	if len(window) > c.windowSize {
		window = window[len(window)-c.windowSize:]
	}
	c.samples[metric] = window
}

// Snapshot produces an evaluation context from the current windows
func (c *SystemCollector) Snapshot() *alerting.EvaluationContext {
	c.mu.RLock()
	defer c.mu.RUnlock()

	values := make(map[string][]float64, len(c.samples))
	for metric, window := range c.samples {
		values[metric] = append([]float64(nil), window...)
	}

	return &alerting.EvaluationContext{
		MetricValues: values,
		Timestamp:    time.Now(),
	}
}
