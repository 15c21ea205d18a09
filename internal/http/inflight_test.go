package http

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestInFlightTracker_Counting(t *testing.T) {
	tracker := &InFlightTracker{}

	if got := tracker.Count(); got != 0 {
		t.Fatalf("initial Count() = %d, want 0", got)
	}
	tracker.Increment()
	tracker.Increment()
	if got := tracker.Count(); got != 2 {
		t.Errorf("Count() after two increments = %d, want 2", got)
	}
	tracker.Decrement()
	if got := tracker.Count(); got != 1 {
		t.Errorf("Count() after decrement = %d, want 1", got)
	}
}

func TestInFlightTracker_WaitForZero_ImmediateWhenIdle(t *testing.T) {
	tracker := &InFlightTracker{}

	if err := tracker.WaitForZero(context.Background(), time.Millisecond); err != nil {
		t.Errorf("WaitForZero() error = %v, want nil", err)
	}
}

func TestInFlightTracker_WaitForZero_WaitsForDrain(t *testing.T) {
	tracker := &InFlightTracker{}
	tracker.Increment()

	go func() {
		time.Sleep(20 * time.Millisecond)
		tracker.Decrement()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := tracker.WaitForZero(ctx, time.Millisecond); err != nil {
		t.Errorf("WaitForZero() error = %v, want nil after drain", err)
	}
}

func TestInFlightTracker_WaitForZero_ContextExpiry(t *testing.T) {
	tracker := &InFlightTracker{}
	tracker.Increment() // never drained

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := tracker.WaitForZero(ctx, time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitForZero() error = %v, want context.DeadlineExceeded", err)
	}
}
