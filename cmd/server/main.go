package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frostdev-ops/pma-alerting-go/internal/api"
	"github.com/frostdev-ops/pma-alerting-go/internal/collector"
	"github.com/frostdev-ops/pma-alerting-go/internal/config"
	"github.com/frostdev-ops/pma-alerting-go/internal/core/alerting"
	"github.com/frostdev-ops/pma-alerting-go/internal/core/metrics"
	"github.com/frostdev-ops/pma-alerting-go/internal/notifications"
	"github.com/frostdev-ops/pma-alerting-go/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewWithConfig(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	collectorMetrics := metrics.NewCollector("pma_alerting", nil)

	manager := alerting.NewManager(alerting.AlertConfig{
		EnableAnomalyDetection: cfg.Alerting.EnableAnomalyDetection,
		AnomalyConfig: alerting.AnomalyConfig{
			Sensitivity:       cfg.Alerting.Anomaly.Sensitivity,
			MinDataPoints:     cfg.Alerting.Anomaly.MinDataPoints,
			StdDevThreshold:   cfg.Alerting.Anomaly.StdDevThreshold,
			EnableSpike:       cfg.Alerting.Anomaly.EnableSpike,
			EnableDrop:        cfg.Alerting.Anomaly.EnableDrop,
			EnableTrendChange: cfg.Alerting.Anomaly.EnableTrendChange,
			EnableOutlier:     cfg.Alerting.Anomaly.EnableOutlier,
		},
		EvaluationInterval: cfg.Alerting.EvaluationInterval,
		MaxHistorySize:     cfg.Alerting.MaxHistorySize,
	}, log, collectorMetrics)

	// Declarative bootstrap: invalid channel or rule definitions are
	// configuration errors and abort startup.
	if err := registerChannels(manager, cfg.Channels); err != nil {
		log.Fatalf("Failed to register channels: %v", err)
	}
	if err := registerRules(manager, cfg.Rules); err != nil {
		log.Fatalf("Failed to register rules: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Alerting.Collector.Enabled {
		systemCollector := collector.NewSystemCollector(
			cfg.Alerting.Collector.SampleInterval,
			cfg.Alerting.Collector.WindowSize,
			log,
		)
		systemCollector.Start(ctx)
		defer systemCollector.Stop()

		if err := manager.StartAutoEvaluation(systemCollector.Snapshot); err != nil {
			log.Fatalf("Failed to start auto evaluation: %v", err)
		}
		defer manager.StopAutoEvaluation()
	}

	router := api.NewRouter(cfg, manager, log)
	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Infof("Starting alerting server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Forced server shutdown")
	}
}

// registerChannels builds every configured channel through the factory
func registerChannels(manager *alerting.Manager, defs []config.ChannelDefinition) error {
	for _, def := range defs {
		err := manager.AddChannel(notifications.Config{
			ID:       def.ID,
			Name:     def.Name,
			Type:     notifications.ChannelType(def.Type),
			Enabled:  def.Enabled,
			Settings: def.Config,
		})
		if err != nil {
			return fmt.Errorf("channel %q: %w", def.ID, err)
		}
	}
	return nil
}

// registerRules builds every configured rule through the builder
func registerRules(manager *alerting.Manager, defs []config.RuleDefinition) error {
	for _, def := range defs {
		severity, err := alerting.ParseSeverity(def.Severity)
		if err != nil {
			return fmt.Errorf("rule %q: %w", def.ID, err)
		}
		builder := alerting.NewRuleBuilder(def.ID).
			WithName(def.Name).
			WithDescription(def.Description).
			WithSeverity(severity).
			WithTags(def.Tags...).
			WithLabels(def.Labels).
			WithActions(def.Actions...)

		if def.Enabled != nil {
			builder.WithEnabled(*def.Enabled)
		}
		if def.Cooldown > 0 {
			builder.WithCooldown(def.Cooldown)
		}

		for _, c := range def.Conditions {
			op, err := alerting.ParseOperator(c.Operator)
			if err != nil {
				return fmt.Errorf("rule %q: %w", def.ID, err)
			}
			agg, err := alerting.ParseAggregation(c.Aggregation)
			if err != nil {
				return fmt.Errorf("rule %q: %w", def.ID, err)
			}
			builder.WithCondition(alerting.AlertCondition{
				Metric:      c.Metric,
				Operator:    op,
				Threshold:   c.Threshold,
				Duration:    c.Duration,
				Aggregation: agg,
			})
		}

		rule, err := builder.Build()
		if err != nil {
			return fmt.Errorf("rule %q: %w", def.ID, err)
		}
		if err := manager.AddRule(rule); err != nil {
			return fmt.Errorf("rule %q: %w", def.ID, err)
		}
	}
	return nil
}
