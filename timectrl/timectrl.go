package timectrl

import (
	"sync"
	"time"
)

// Clock is an interface for reading time and blocking the calling goroutine.
// Motion loops (verified move, hold, calibration probes) depend on this
// abstraction rather than the time package directly, so tests can drive them
// with a fake clock and run without wall-clock delay.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// Sleep blocks the caller for the duration d.
	Sleep(d time.Duration)
}

// Wall is the real wall clock.
type Wall struct{}

// Now returns the current wall time.
func (Wall) Now() time.Time { return time.Now() }

// Sleep blocks on the real clock.
func (Wall) Sleep(d time.Duration) { time.Sleep(d) }

// Fake is a manually driven clock. Sleep returns immediately after advancing
// the clock by the requested duration, so a polling loop observes time
// passing at exactly its nominal cadence.
type Fake struct {
	mu      sync.Mutex
	current time.Time
	slept   []time.Duration
}

// NewFake constructs a fake clock starting at the given instant.
func NewFake(start time.Time) *Fake {
	return &Fake{current: start}
}

// Now returns the fake clock's current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// Sleep advances the clock by d without blocking.
func (f *Fake) Sleep(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d > 0 {
		f.current = f.current.Add(d)
	}
	f.slept = append(f.slept, d)
}

// Advance moves the clock forward by d without recording a sleep.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.Add(d)
}

// Sleeps returns every duration passed to Sleep, in order.
func (f *Fake) Sleeps() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Duration, len(f.slept))
	copy(out, f.slept)
	return out
}
