package broadcast

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeSender struct {
	sent    []int64
	failFor map[int64]error
}

func (f *fakeSender) SendTo(ctx context.Context, userID int64, text string) error {
	if err := f.failFor[userID]; err != nil {
		return err
	}
	f.sent = append(f.sent, userID)
	return nil
}

// stubLimiter installs a limiter with a controllable clock and recorded
// sleeps for the lifetime of the test.
func stubLimiter(t *testing.T) *[]time.Duration {
	t.Helper()

	orig := newLimiter
	t.Cleanup(func() { newLimiter = orig })

	var slept []time.Duration
	newLimiter = func(burst int, window time.Duration) *windowLimiter {
		l := newWindowLimiter(burst, window)
		now := time.Unix(0, 0)
		l.now = func() time.Time { return now }
		l.sleep = func(ctx context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		}
		return l
	}
	return &slept
}

func recipients(n int) []int64 {
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	return ids
}

func TestRunDeliversSequentially(t *testing.T) {
	stubLimiter(t)
	sender := &fakeSender{}

	d, err := NewDispatcher(sender, 25, time.Second, nil)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}

	result := d.Run(context.Background(), []int64{3, 1, 2}, "анонс", nil)

	if result.Attempted != 3 || result.Succeeded != 3 || result.Failed != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(sender.sent) != 3 || sender.sent[0] != 3 || sender.sent[1] != 1 || sender.sent[2] != 2 {
		t.Fatalf("expected in-order delivery, got %v", sender.sent)
	}
}

func TestRunIsolatesRecipientFailures(t *testing.T) {
	stubLimiter(t)
	sender := &fakeSender{failFor: map[int64]error{
		2: errors.New("blocked by user"),
		4: errors.New("chat not found"),
	}}

	d, err := NewDispatcher(sender, 25, time.Second, nil)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}

	result := d.Run(context.Background(), recipients(5), "анонс", nil)

	if result.Attempted != 5 {
		t.Fatalf("expected all recipients attempted, got %+v", result)
	}
	if result.Succeeded != 3 || result.Failed != 2 {
		t.Fatalf("unexpected counts %+v", result)
	}
	if result.Succeeded+result.Failed != result.Attempted {
		t.Fatalf("counts do not add up: %+v", result)
	}
}

func TestRunPausesAfterEachBurst(t *testing.T) {
	slept := stubLimiter(t)
	sender := &fakeSender{}

	d, err := NewDispatcher(sender, 3, time.Second, nil)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}

	d.Run(context.Background(), recipients(9), "анонс", nil)

	// With a frozen clock each burst sleeps the full window.
	if len(*slept) != 3 {
		t.Fatalf("expected 3 pauses for 9 sends at burst 3, got %v", *slept)
	}
	for _, d := range *slept {
		if d != time.Second {
			t.Fatalf("expected full-window pause, got %v", d)
		}
	}
}

func TestRunReportsProgressEveryFifty(t *testing.T) {
	stubLimiter(t)
	sender := &fakeSender{}

	d, err := NewDispatcher(sender, 25, time.Second, nil)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}

	var checkpoints []int
	d.Run(context.Background(), recipients(120), "анонс", func(processed, total int, result Result) {
		if total != 120 {
			t.Fatalf("expected total 120, got %d", total)
		}
		if result.Attempted != processed {
			t.Fatalf("progress result out of sync: %d processed, %+v", processed, result)
		}
		checkpoints = append(checkpoints, processed)
	})

	if len(checkpoints) != 2 || checkpoints[0] != 50 || checkpoints[1] != 100 {
		t.Fatalf("expected progress at 50 and 100, got %v", checkpoints)
	}
}

func TestRunStopsOnCancellation(t *testing.T) {
	orig := newLimiter
	t.Cleanup(func() { newLimiter = orig })

	ctx, cancel := context.WithCancel(context.Background())
	newLimiter = func(burst int, window time.Duration) *windowLimiter {
		l := newWindowLimiter(burst, window)
		l.now = func() time.Time { return time.Unix(0, 0) }
		l.sleep = func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		}
		return l
	}

	sender := &fakeSender{}
	d, err := NewDispatcher(sender, 2, time.Second, nil)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}

	result := d.Run(ctx, recipients(10), "анонс", nil)

	if result.Attempted >= 10 {
		t.Fatalf("expected early stop, got %+v", result)
	}
	if len(sender.sent) != result.Succeeded {
		t.Fatalf("sent %d but counted %d", len(sender.sent), result.Succeeded)
	}
}

func TestNewDispatcherValidates(t *testing.T) {
	if _, err := NewDispatcher(nil, 25, time.Second, nil); err == nil {
		t.Fatalf("expected error for nil sender")
	}
	if _, err := NewDispatcher(&fakeSender{}, 0, time.Second, nil); err == nil {
		t.Fatalf("expected error for zero rate")
	}
	if _, err := NewDispatcher(&fakeSender{}, 25, 0, nil); err == nil {
		t.Fatalf("expected error for zero window")
	}
}
