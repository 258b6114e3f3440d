package testfixtures

import (
	"sync"
	"time"
)

// Clock is a controllable time source. A stepping clock advances by step
// after every read, so consecutive writes get distinct timestamps.
type Clock struct {
	mu      sync.Mutex
	current time.Time
	step    time.Duration
}

// NewClock returns a frozen clock. The zero start selects ReferenceTime.
func NewClock(start time.Time) *Clock {
	return NewSteppingClock(start, 0)
}

// NewSteppingClock returns a clock that moves forward by step on each Now.
func NewSteppingClock(start time.Time, step time.Duration) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{current: start, step: step}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.current
	c.current = c.current.Add(c.step)
	return now
}

// NowFunc adapts the clock to the now func() time.Time that services take.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d and returns the new time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	return c.current
}
