package broadcast

import (
	"context"
	"time"
)

// windowLimiter throttles sends in counted windows: after every burst-th send
// it sleeps out the remainder of the window, then starts a fresh one. Unlike
// a token bucket this keeps the burst shape, which is what the Telegram
// per-second send quota actually permits.
type windowLimiter struct {
	burst  int
	window time.Duration

	count int
	start time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func newWindowLimiter(burst int, window time.Duration) *windowLimiter {
	return &windowLimiter{
		burst:  burst,
		window: window,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// wait accounts for one send and suspends when the burst for the current
// window is used up. It returns the context error when canceled mid-sleep.
func (l *windowLimiter) wait(ctx context.Context) error {
	if l.start.IsZero() {
		l.start = l.now()
	}

	l.count++
	if l.count < l.burst {
		return nil
	}

	if elapsed := l.now().Sub(l.start); elapsed < l.window {
		if err := l.sleep(ctx, l.window-elapsed); err != nil {
			return err
		}
	}

	l.count = 0
	l.start = l.now()
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
