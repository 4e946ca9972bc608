package event

import "sync/atomic"

// Clock is the monotonic version counter a tab stamps on its events.
//
// Safe for concurrent use. Each call to Next returns a unique, strictly
// increasing value; the first value is 1.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock that resumes after start.
// Used when a tab restores its queue from storage.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next version.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued version without advancing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// Observe moves the clock forward to at least v. It never moves backwards.
func (c *Clock) Observe(v int64) {
	for {
		cur := c.seq.Load()
		if v <= cur || c.seq.CompareAndSwap(cur, v) {
			return
		}
	}
}
