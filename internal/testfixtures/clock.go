package testfixtures

import (
	"sync"
	"time"
)

// Clock is a manually driven time source. Services take an injected
// `func() time.Time`; handing them clock.NowFunc() keeps timestamps
// deterministic across a test.
type Clock struct {
	mu      sync.Mutex
	current time.Time
}

// NewClock returns a clock pinned to start. The zero value pins it to
// ReferenceTime, the instant the occurrence fixtures anchor on.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{current: start}
}

// Now reports the pinned instant.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// NowFunc adapts the clock to the injection signature the services expect.
// A nil clock degrades to the real time source.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Set pins the clock to an exact instant.
func (c *Clock) Set(t time.Time) {
	c.shift(func(time.Time) time.Time { return t })
}

// Advance moves the clock forward by d and returns the new instant.
func (c *Clock) Advance(d time.Duration) time.Time {
	return c.shift(func(cur time.Time) time.Time { return cur.Add(d) })
}

// AdvanceDays moves the clock forward whole civil days, handy for walking
// a weekly series one session at a time.
func (c *Clock) AdvanceDays(days int) time.Time {
	return c.shift(func(cur time.Time) time.Time { return cur.AddDate(0, 0, days) })
}

// Current is a read-only alias for Now used where a test asserts against
// the pinned instant without implying progression.
func (c *Clock) Current() time.Time {
	return c.Now()
}

func (c *Clock) shift(fn func(time.Time) time.Time) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = fn(c.current)
	return c.current
}
