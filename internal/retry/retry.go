// Package retry applies an explicit retry policy around a single fallible
// operation.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Policy describes how often and how patiently an operation is retried. The
// delay before attempt n+1 is BaseDelay * Multiplier^(n-1), capped at MaxDelay
// when MaxDelay is set.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
}

// PublishPolicy throttles report publishing: 3 attempts with 1s, 2s, 4s waits.
var PublishPolicy = Policy{
	MaxAttempts: 3,
	BaseDelay:   time.Second,
	Multiplier:  2,
}

// StartupPolicy governs reconnecting the serving loop: 10 attempts, 5s base,
// doubling, capped at 60s. Exhaustion is fatal to the process.
var StartupPolicy = Policy{
	MaxAttempts: 10,
	BaseDelay:   5 * time.Second,
	Multiplier:  2,
	MaxDelay:    60 * time.Second,
}

// sleep is overridable for tests.
var sleep = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do runs fn until it succeeds or the policy is exhausted. It returns the
// last error wrapped when all attempts fail, and stops early when the context
// is canceled during a backoff wait.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	if p.MaxAttempts <= 0 {
		return errors.New("retry policy requires at least one attempt")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	delay := p.BaseDelay
	var last error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		last = fn()
		if last == nil {
			return nil
		}
		if attempt == p.MaxAttempts {
			break
		}

		if delay > 0 {
			if err := sleep(ctx, delay); err != nil {
				return fmt.Errorf("retry canceled after attempt %d: %w", attempt, err)
			}
		}

		if p.Multiplier > 1 {
			delay = time.Duration(float64(delay) * p.Multiplier)
		}
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}

	return fmt.Errorf("all %d attempts failed: %w", p.MaxAttempts, last)
}
