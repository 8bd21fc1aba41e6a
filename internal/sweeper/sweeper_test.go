package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeStates struct {
	cutoffs []time.Duration
	removed int64
	err     error
}

func (f *fakeStates) DeleteStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	f.cutoffs = append(f.cutoffs, olderThan)
	return f.removed, f.err
}

func TestSweepUsesConfiguredTimeout(t *testing.T) {
	states := &fakeStates{removed: 3}

	s, err := New(states, 5*time.Minute, 30*time.Minute, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	s.Sweep(context.Background())

	if len(states.cutoffs) != 1 || states.cutoffs[0] != 30*time.Minute {
		t.Fatalf("expected one sweep with 30m cutoff, got %v", states.cutoffs)
	}
}

func TestSweepSurvivesStoreFailure(t *testing.T) {
	states := &fakeStates{err: errors.New("mongo down")}

	s, err := New(states, 5*time.Minute, 30*time.Minute, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	// Must not panic; the next tick retries.
	s.Sweep(context.Background())
	s.Sweep(context.Background())

	if len(states.cutoffs) != 2 {
		t.Fatalf("expected both sweeps attempted, got %d", len(states.cutoffs))
	}
}

func TestStartSchedulesAndStops(t *testing.T) {
	states := &fakeStates{}

	s, err := New(states, time.Hour, 30*time.Minute, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if entries := s.cron.Entries(); len(entries) != 1 {
		t.Fatalf("expected one scheduled job, got %d", len(entries))
	}
	s.Stop()
}

func TestNewValidates(t *testing.T) {
	if _, err := New(nil, time.Minute, time.Minute, nil); err == nil {
		t.Fatalf("expected error for nil repository")
	}
	if _, err := New(&fakeStates{}, 0, time.Minute, nil); err == nil {
		t.Fatalf("expected error for zero interval")
	}
	if _, err := New(&fakeStates{}, time.Minute, 0, nil); err == nil {
		t.Fatalf("expected error for zero timeout")
	}
}
