package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Config controls logger construction
type Config struct {
	Level  string
	Format string // "json" or "text"
}

// New creates a logger with sensible defaults (info level, JSON output)
func New() *logrus.Logger {
	return NewWithConfig(Config{})
}

// NewWithConfig creates a logger from explicit configuration.
// LOG_LEVEL in the environment overrides the configured level.
func NewWithConfig(cfg Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	if cfg.Format == "text" {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "time",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "msg",
			},
		})
	}

	level := cfg.Level
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		level = env
	}
	switch level {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}

	return log
}
