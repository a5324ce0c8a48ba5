package sched

import (
	"context"
	"testing"
	"time"
)

func TestMaybeRunFiresOncePerDay(t *testing.T) {
	var runs int
	d := New(0, 11, func(context.Context) { runs++ }, nil)

	clock := time.Date(2026, 8, 25, 0, 10, 0, 0, time.UTC)
	d.now = func() time.Time { return clock }

	// Before the scheduled minute: nothing.
	d.maybeRun(context.Background())
	if runs != 0 {
		t.Fatalf("fired before schedule, runs = %d", runs)
	}

	// At and after the scheduled minute: exactly one run today.
	clock = time.Date(2026, 8, 25, 0, 11, 0, 0, time.UTC)
	d.maybeRun(context.Background())
	clock = time.Date(2026, 8, 25, 0, 12, 0, 0, time.UTC)
	d.maybeRun(context.Background())
	clock = time.Date(2026, 8, 25, 23, 59, 0, 0, time.UTC)
	d.maybeRun(context.Background())
	if runs != 1 {
		t.Fatalf("runs = %d, want 1", runs)
	}

	// Next day fires again.
	clock = time.Date(2026, 8, 26, 0, 11, 30, 0, time.UTC)
	d.maybeRun(context.Background())
	if runs != 2 {
		t.Fatalf("runs = %d, want 2", runs)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	d := New(0, 11, func(context.Context) {}, nil)
	d.poll = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on context cancel")
	}
}
