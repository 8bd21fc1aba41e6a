// Package sweeper periodically deletes conversation records that have been
// idle longer than the staleness timeout, so abandoned wizards do not pin
// users to a dead step forever.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"metro_report_bot/internal/logging"
)

// StaleDeleter removes conversation records older than the cutoff and
// reports how many were dropped.
type StaleDeleter interface {
	DeleteStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Sweeper schedules the staleness sweep on a cron runner.
type Sweeper struct {
	states   StaleDeleter
	interval time.Duration
	timeout  time.Duration
	logger   *logrus.Entry
	cron     *cron.Cron
}

// New builds a sweeper that runs every interval and deletes records idle
// longer than timeout.
func New(states StaleDeleter, interval, timeout time.Duration, logger *logrus.Entry) (*Sweeper, error) {
	if states == nil {
		return nil, errors.New("state repository is required")
	}
	if interval <= 0 {
		return nil, errors.New("sweep interval must be positive")
	}
	if timeout <= 0 {
		return nil, errors.New("staleness timeout must be positive")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	return &Sweeper{
		states:   states,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
		cron:     cron.New(),
	}, nil
}

// Start registers the sweep job and starts the cron runner. The job inherits
// ctx so an application shutdown also cancels an in-flight sweep.
func (s *Sweeper) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	schedule := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(schedule, func() { s.Sweep(ctx) }); err != nil {
		return fmt.Errorf("schedule staleness sweep: %w", err)
	}

	s.cron.Start()
	s.logger.WithFields(logging.Fields{
		"event":    "sweeper_started",
		"interval": s.interval.String(),
		"timeout":  s.timeout.String(),
	}).Info("staleness sweeper started")

	return nil
}

// Stop halts the cron runner and waits for a running sweep to return.
func (s *Sweeper) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.WithField("event", "sweeper_stopped").Info("staleness sweeper stopped")
}

// Sweep runs one deletion pass. Failures are logged, not fatal; the next tick
// tries again.
func (s *Sweeper) Sweep(ctx context.Context) {
	removed, err := s.states.DeleteStale(ctx, s.timeout)
	if err != nil {
		s.logger.WithField("event", "sweep_failed").WithError(err).Error("staleness sweep failed")
		return
	}
	if removed == 0 {
		return
	}

	s.logger.WithFields(logging.Fields{
		"event":   "conversations_swept",
		"removed": removed,
	}).Info("stale conversations removed")
}
