// Package broadcast delivers an admin announcement to every known user,
// pacing sends to stay inside the Telegram rate quota.
package broadcast

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"metro_report_bot/internal/logging"
)

// progressEvery is how many recipients pass between progress callbacks.
const progressEvery = 50

// Sender delivers one message to one user.
type Sender interface {
	SendTo(ctx context.Context, userID int64, text string) error
}

// Result summarizes a finished or aborted run. Attempted counts every
// recipient the run reached; Succeeded plus Failed equals Attempted.
type Result struct {
	Attempted int
	Succeeded int
	Failed    int
}

// Progress reports interim counts during a run. processed is the number of
// recipients handled so far out of total.
type Progress func(processed, total int, result Result)

// newLimiter is overridable for tests.
var newLimiter = newWindowLimiter

// Dispatcher runs sequential rate-limited broadcasts. A run blocks its
// goroutine for the whole delivery; callers start it on a dedicated one.
type Dispatcher struct {
	sender Sender
	rate   int
	window time.Duration
	logger *logrus.Entry
}

// NewDispatcher wires a dispatcher sending at most rate messages per window.
func NewDispatcher(sender Sender, rate int, window time.Duration, logger *logrus.Entry) (*Dispatcher, error) {
	if sender == nil {
		return nil, errors.New("sender is required")
	}
	if rate <= 0 {
		return nil, errors.New("rate must be positive")
	}
	if window <= 0 {
		return nil, errors.New("window must be positive")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	return &Dispatcher{
		sender: sender,
		rate:   rate,
		window: window,
		logger: logger,
	}, nil
}

// Run delivers text to each recipient in order. A failed recipient is counted
// and skipped; only context cancellation stops the run early, returning the
// counts accumulated so far.
func (d *Dispatcher) Run(ctx context.Context, recipients []int64, text string, progress Progress) Result {
	if ctx == nil {
		ctx = context.Background()
	}

	limiter := newLimiter(d.rate, d.window)
	total := len(recipients)

	d.logger.WithFields(logging.Fields{
		"event":      "broadcast_started",
		"recipients": total,
	}).Info("broadcast started")

	var result Result
	for i, userID := range recipients {
		if err := limiter.wait(ctx); err != nil {
			d.logger.WithFields(logging.Fields{
				"event":     "broadcast_aborted",
				"processed": i,
			}).WithError(err).Warn("broadcast stopped early")
			return result
		}

		result.Attempted++
		if err := d.sender.SendTo(ctx, userID, text); err != nil {
			result.Failed++
			d.logger.WithFields(logging.Fields{
				"event":   "broadcast_send_failed",
				"user_id": userID,
			}).WithError(err).Warn("broadcast delivery failed")
		} else {
			result.Succeeded++
		}

		if progress != nil && (i+1)%progressEvery == 0 {
			progress(i+1, total, result)
		}
	}

	d.logger.WithFields(logging.Fields{
		"event":     "broadcast_finished",
		"attempted": result.Attempted,
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
	}).Info("broadcast finished")

	return result
}
