package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig        `mapstructure:"server"`
	Logging  LoggingConfig       `mapstructure:"logging"`
	Alerting AlertingConfig      `mapstructure:"alerting"`
	Channels []ChannelDefinition `mapstructure:"channels"`
	Rules    []RuleDefinition    `mapstructure:"rules"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
	Mode string `mapstructure:"mode"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AlertingConfig configures the alert manager
type AlertingConfig struct {
	EnableAnomalyDetection bool            `mapstructure:"enable_anomaly_detection"`
	EvaluationInterval     time.Duration   `mapstructure:"evaluation_interval"`
	MaxHistorySize         int             `mapstructure:"max_history_size"`
	Anomaly                AnomalyConfig   `mapstructure:"anomaly"`
	Collector              CollectorConfig `mapstructure:"collector"`
}

// AnomalyConfig configures the statistical anomaly detector
type AnomalyConfig struct {
	Sensitivity       float64 `mapstructure:"sensitivity"`
	MinDataPoints     int     `mapstructure:"min_data_points"`
	StdDevThreshold   float64 `mapstructure:"stddev_threshold"`
	EnableSpike       bool    `mapstructure:"enable_spike"`
	EnableDrop        bool    `mapstructure:"enable_drop"`
	EnableTrendChange bool    `mapstructure:"enable_trend_change"`
	EnableOutlier     bool    `mapstructure:"enable_outlier"`
}

// CollectorConfig configures the built-in system metrics collector
type CollectorConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	SampleInterval time.Duration `mapstructure:"sample_interval"`
	WindowSize     int           `mapstructure:"window_size"`
}

// ChannelDefinition declares a notification channel to register at startup
type ChannelDefinition struct {
	ID      string                 `mapstructure:"id"`
	Name    string                 `mapstructure:"name"`
	Type    string                 `mapstructure:"type"`
	Enabled bool                   `mapstructure:"enabled"`
	Config  map[string]interface{} `mapstructure:"config"`
}

// RuleDefinition declares an alert rule to register at startup
type RuleDefinition struct {
	ID          string                `mapstructure:"id"`
	Name        string                `mapstructure:"name"`
	Description string                `mapstructure:"description"`
	Severity    string                `mapstructure:"severity"`
	Enabled     *bool                 `mapstructure:"enabled"`
	Cooldown    time.Duration         `mapstructure:"cooldown"`
	Tags        []string              `mapstructure:"tags"`
	Labels      map[string]string     `mapstructure:"labels"`
	Actions     []string              `mapstructure:"actions"`
	Conditions  []ConditionDefinition `mapstructure:"conditions"`
}

// ConditionDefinition declares a single threshold condition
type ConditionDefinition struct {
	Metric      string        `mapstructure:"metric"`
	Operator    string        `mapstructure:"operator"`
	Threshold   float64       `mapstructure:"threshold"`
	Duration    time.Duration `mapstructure:"duration"`
	Aggregation string        `mapstructure:"aggregation"`
}

// Load reads configuration from ./configs/config.yaml or ./config.yaml
// with environment variable overrides applied.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	viper.AutomaticEnv()
	viper.BindEnv("server.port", "PORT")
	viper.BindEnv("logging.level", "LOG_LEVEL")
	viper.BindEnv("server.mode", "GIN_MODE")

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env cover everything
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 3100)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.mode", "release")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("alerting.enable_anomaly_detection", true)
	viper.SetDefault("alerting.evaluation_interval", "10s")
	viper.SetDefault("alerting.max_history_size", 1000)

	viper.SetDefault("alerting.anomaly.sensitivity", 0.7)
	viper.SetDefault("alerting.anomaly.min_data_points", 20)
	viper.SetDefault("alerting.anomaly.stddev_threshold", 3.0)
	viper.SetDefault("alerting.anomaly.enable_spike", true)
	viper.SetDefault("alerting.anomaly.enable_drop", true)
	viper.SetDefault("alerting.anomaly.enable_trend_change", true)
	viper.SetDefault("alerting.anomaly.enable_outlier", true)

	viper.SetDefault("alerting.collector.enabled", true)
	viper.SetDefault("alerting.collector.sample_interval", "5s")
	viper.SetDefault("alerting.collector.window_size", 60)
}
