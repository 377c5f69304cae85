// Package gate implements an amplitude noise gate with timed hysteresis.
package gate

import "time"

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Gate classifies sample blocks as speech or background noise. Peak
// detection gives a fast attack; the hold time keeps the gate open
// across brief dips below the threshold so one sentence doesn't
// fragment into several segments.
type Gate struct {
	threshold  float32
	hold       time.Duration
	clock      Clock
	lastActive time.Time
	active     bool
}

func New(threshold float32, hold time.Duration) *Gate {
	return NewWithClock(threshold, hold, systemClock{})
}

func NewWithClock(threshold float32, hold time.Duration, clock Clock) *Gate {
	return &Gate{
		threshold: threshold,
		hold:      hold,
		clock:     clock,
	}
}

// Process inspects one block of samples and returns whether the gate
// is open. It never blocks and never allocates; it runs on the audio
// device callback.
func (g *Gate) Process(samples []float32) bool {
	var peak float32
	for _, s := range samples {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}

	if peak > g.threshold {
		g.lastActive = g.clock.Now()
		g.active = true
	} else if g.active && g.clock.Now().Sub(g.lastActive) > g.hold {
		g.active = false
	}

	return g.active
}

// Active reports the gate state as of the last processed block.
func (g *Gate) Active() bool { return g.active }
