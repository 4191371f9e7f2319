package alerting

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// evaluationScheduler drives periodic evaluation ticks. The cron chain
// enforces single-flight execution: a tick that fires while the previous
// evaluation is still running is skipped rather than interleaved, which
// keeps cooldown and history updates race-free.
type evaluationScheduler struct {
	cron   *cron.Cron
	logger *logrus.Logger
}

// cronLogger adapts logrus to the cron logger interface
type cronLogger struct {
	logger *logrus.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugf("scheduler: %s %v", msg, keysAndValues)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.WithError(err).Errorf("scheduler: %s %v", msg, keysAndValues)
}

func newEvaluationScheduler(interval time.Duration, logger *logrus.Logger, tick func()) (*evaluationScheduler, error) {
	adapter := cronLogger{logger: logger}
	c := cron.New(
		cron.WithChain(
			cron.SkipIfStillRunning(adapter),
			cron.Recover(adapter),
		),
	)

	if _, err := c.AddFunc(fmt.Sprintf("@every %s", interval), tick); err != nil {
		return nil, fmt.Errorf("failed to schedule evaluation: %w", err)
	}

	return &evaluationScheduler{cron: c, logger: logger}, nil
}

// Start begins firing ticks
func (s *evaluationScheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling of future ticks; a tick already in progress is
// left to finish
func (s *evaluationScheduler) Stop() {
	s.cron.Stop()
}
