package rate

import (
	"context"
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestLimiter(max int) (*Limiter, *fakeClock, *[]time.Duration) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	var slept []time.Duration
	sleep := func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		clock.now = clock.now.Add(d)
		return nil
	}
	return NewLimiterWithClock(max, clock, sleep), clock, &slept
}

func TestAcquireWithinCapDoesNotSleep(t *testing.T) {
	l, _, slept := newTestLimiter(3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("Acquire %d failed: %v", i, err)
		}
	}
	if len(*slept) != 0 {
		t.Errorf("expected no sleeps within the cap, got %v", *slept)
	}
}

func TestAcquireOverCapWaitsForWindowRemainder(t *testing.T) {
	l, clock, slept := newTestLimiter(2)
	ctx := context.Background()

	l.Acquire(ctx)
	clock.now = clock.now.Add(20 * time.Second)
	l.Acquire(ctx)
	clock.now = clock.now.Add(10 * time.Second)

	// Third acquisition 30s into the window must wait the other 30s.
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if len(*slept) != 1 || (*slept)[0] != 30*time.Second {
		t.Errorf("expected a single 30s wait, got %v", *slept)
	}
}

func TestWindowElapseResetsCount(t *testing.T) {
	l, clock, slept := newTestLimiter(1)
	ctx := context.Background()

	l.Acquire(ctx)
	clock.now = clock.now.Add(61 * time.Second)

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if len(*slept) != 0 {
		t.Errorf("expected no wait after the window elapsed, got %v", *slept)
	}

	// The count restarted at zero, so the next acquire over the new
	// window's cap waits again.
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if len(*slept) != 1 {
		t.Errorf("expected a wait once the fresh window's cap is spent, got %v", *slept)
	}
}

func TestAcquireHonorsContextCancellation(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	l := NewLimiterWithClock(1, clock, func(ctx context.Context, d time.Duration) error {
		return ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}

	cancel()
	if err := l.Acquire(ctx); err == nil {
		t.Fatal("expected context error while waiting for a slot")
	}
}
