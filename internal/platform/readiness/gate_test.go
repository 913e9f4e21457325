package readiness

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWaitSucceedsWithinBudget(t *testing.T) {
	gate := Gate{Name: "probe", Interval: time.Millisecond, MaxAttempts: 5}

	calls := 0
	err := gate.Wait(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestWaitExhaustsBudget(t *testing.T) {
	gate := Gate{Name: "postgres", Interval: time.Millisecond, MaxAttempts: 4}

	calls := 0
	probeErr := errors.New("connection refused")
	err := gate.Wait(context.Background(), func(context.Context) error {
		calls++
		return probeErr
	})
	if err == nil {
		t.Fatal("expected error after exhausting the budget")
	}
	if calls != 4 {
		t.Fatalf("expected exactly 4 attempts, got %d", calls)
	}
	if !errors.Is(err, probeErr) {
		t.Fatalf("expected error to wrap the probe failure, got %v", err)
	}
}

func TestWaitHonorsCancellation(t *testing.T) {
	gate := Gate{Interval: time.Hour, MaxAttempts: 10}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := gate.Wait(ctx, func(context.Context) error {
		return errors.New("never ready")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestWaitSingleAttemptMinimum(t *testing.T) {
	gate := Gate{MaxAttempts: 0}

	calls := 0
	err := gate.Wait(context.Background(), func(context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}
