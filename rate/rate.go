// Package rate guards calls to rate-limited external services with a
// sliding, self-resetting one-minute window.
package rate

import (
	"context"
	"time"
)

const window = time.Minute

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SleepFunc suspends the caller for d, honoring ctx cancellation.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Limiter admits at most max acquisitions per minute. A caller over
// the cap is delayed until the window resets, never rejected.
type Limiter struct {
	max         int
	clock       Clock
	sleep       SleepFunc
	windowStart time.Time
	count       int
}

func NewLimiter(maxPerMinute int) *Limiter {
	return NewLimiterWithClock(maxPerMinute, systemClock{}, sleep)
}

func NewLimiterWithClock(maxPerMinute int, clock Clock, sleep SleepFunc) *Limiter {
	return &Limiter{
		max:         maxPerMinute,
		clock:       clock,
		sleep:       sleep,
		windowStart: clock.Now(),
	}
}

// Acquire takes one slot, suspending for the remainder of the window
// when the cap is already spent. It returns early only when ctx is
// canceled during the wait.
func (l *Limiter) Acquire(ctx context.Context) error {
	now := l.clock.Now()
	elapsed := now.Sub(l.windowStart)

	if elapsed < window {
		if l.count >= l.max {
			if err := l.sleep(ctx, window-elapsed); err != nil {
				return err
			}
			l.count = 0
			l.windowStart = l.clock.Now()
		}
	} else {
		l.count = 0
		l.windowStart = now
	}

	l.count++
	return nil
}
