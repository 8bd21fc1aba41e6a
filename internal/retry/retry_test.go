package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func captureSleeps(t *testing.T) *[]time.Duration {
	t.Helper()

	orig := sleep
	t.Cleanup(func() { sleep = orig })

	var delays []time.Duration
	sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	return &delays
}

func TestDoSucceedsWithoutRetry(t *testing.T) {
	delays := captureSleeps(t)

	calls := 0
	err := PublishPolicy.Do(context.Background(), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if len(*delays) != 0 {
		t.Fatalf("expected no sleeps, got %v", *delays)
	}
}

func TestDoRecoversAfterTransientFailures(t *testing.T) {
	delays := captureSleeps(t)

	calls := 0
	err := PublishPolicy.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}

	want := []time.Duration{time.Second, 2 * time.Second}
	if len(*delays) != len(want) || (*delays)[0] != want[0] || (*delays)[1] != want[1] {
		t.Fatalf("expected backoff %v, got %v", want, *delays)
	}
}

func TestDoExhaustsAndWrapsLastError(t *testing.T) {
	delays := captureSleeps(t)

	boom := errors.New("boom")
	calls := 0
	err := PublishPolicy.Do(context.Background(), func() error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped last error, got %v", err)
	}
	if calls != PublishPolicy.MaxAttempts {
		t.Fatalf("expected %d calls, got %d", PublishPolicy.MaxAttempts, calls)
	}

	want := []time.Duration{time.Second, 2 * time.Second}
	if len(*delays) != len(want) {
		t.Fatalf("expected %d sleeps, got %v", len(want), *delays)
	}
}

func TestDoCapsDelay(t *testing.T) {
	delays := captureSleeps(t)

	err := StartupPolicy.Do(context.Background(), func() error {
		return errors.New("down")
	})
	if err == nil {
		t.Fatalf("expected exhaustion error")
	}

	// 5s, 10s, 20s, 40s, then pinned at the 60s cap.
	want := []time.Duration{
		5 * time.Second, 10 * time.Second, 20 * time.Second, 40 * time.Second,
		60 * time.Second, 60 * time.Second, 60 * time.Second, 60 * time.Second, 60 * time.Second,
	}
	if len(*delays) != len(want) {
		t.Fatalf("expected %d sleeps, got %d: %v", len(want), len(*delays), *delays)
	}
	for i, d := range want {
		if (*delays)[i] != d {
			t.Fatalf("sleep %d = %v, want %v", i, (*delays)[i], d)
		}
	}
}

func TestDoStopsOnContextCancellation(t *testing.T) {
	orig := sleep
	t.Cleanup(func() { sleep = orig })
	sleep = func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}

	calls := 0
	err := PublishPolicy.Do(context.Background(), func() error {
		calls++
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected no further attempts after cancellation, got %d", calls)
	}
}

func TestDoRejectsZeroAttempts(t *testing.T) {
	err := Policy{}.Do(context.Background(), func() error { return nil })
	if err == nil {
		t.Fatalf("expected error for empty policy")
	}
}
