package testutil

import (
	"sync"
	"time"
)

// ReferenceTime is the instant DeterministicClock starts at by default.
var ReferenceTime = time.Date(2022, time.July, 13, 13, 48, 1, 0, time.UTC)

// DeterministicClock is a wall clock for tests: every call to Now returns
// the start time advanced by one more step.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu    sync.Mutex
	start time.Time
	step  time.Duration
	calls int64
}

// NewDeterministicClock creates a clock starting at start. A zero start
// means ReferenceTime; a zero step freezes the clock.
//
// The first call to Now() returns start itself.
func NewDeterministicClock(start time.Time, step time.Duration) *DeterministicClock {
	if start.IsZero() {
		start = ReferenceTime
	}
	return &DeterministicClock{start: start, step: step}
}

// Now returns the current instant and advances the clock.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.start.Add(time.Duration(c.calls) * c.step)
	c.calls++
	return t
}

// Calls returns how many times Now was called.
func (c *DeterministicClock) Calls() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Reset rewinds the clock to its start.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = 0
}
