// Package testutil holds deterministic helpers shared by package tests and
// the scenario harness.
package testutil

import (
	"sync"
	"time"
)

// FakeClock is a manually advanced wall clock.
//
// Thread-safety: all methods are safe for concurrent use.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// DefaultEpoch is where NewFakeClock starts: 2023-11-14T22:13:20Z.
var DefaultEpoch = time.UnixMilli(1_700_000_000_000).UTC()

// NewFakeClock creates a clock frozen at DefaultEpoch.
func NewFakeClock() *FakeClock {
	return &FakeClock{now: DefaultEpoch}
}

// NewFakeClockAt creates a clock frozen at t.
func NewFakeClockAt(t time.Time) *FakeClock {
	return &FakeClock{now: t}
}

// Now returns the current fake time. Matches the func() time.Time shape the
// engine packages accept.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
