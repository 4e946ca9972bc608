// Package status holds the single coarse lifecycle status of a tab's sync
// engine.
//
// The machine is a holder, not a policy: any status may follow any other.
// Callers decide when to move it.
package status

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Status is the sync subsystem's current disposition.
type Status string

const (
	// Idle is the initial status; nothing has happened yet.
	Idle Status = "idle"
	// Syncing means a sync round is in progress.
	Syncing Status = "syncing"
	// Synced means the last sync round completed.
	Synced Status = "synced"
	// Conflict means divergent copies are awaiting resolution.
	Conflict Status = "conflict"
	// Offline means the transport is unavailable.
	Offline Status = "offline"
	// Error means the last operation failed, e.g. a transport send.
	Error Status = "error"
)

// All lists every status in declaration order.
var All = []Status{Idle, Syncing, Synced, Conflict, Offline, Error}

// ErrInvalidStatus is returned for values outside All.
var ErrInvalidStatus = errors.New("invalid sync status")

// Valid reports whether s is one of the six statuses.
func (s Status) Valid() bool {
	switch s {
	case Idle, Syncing, Synced, Conflict, Offline, Error:
		return true
	}
	return false
}

// Parse converts a user-supplied name into a Status.
func Parse(name string) (Status, error) {
	s := Status(name)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, name)
	}
	return s, nil
}

// Machine holds the current status and when it last became Synced.
//
// Thread-safety: safe for concurrent use.
type Machine struct {
	now func() time.Time

	mu         sync.RWMutex
	current    Status
	changedAt  time.Time
	lastSynced time.Time
}

// NewMachine creates a machine in Idle. Until the first transition into
// Synced, time since last sync is measured from construction.
func NewMachine(now func() time.Time) *Machine {
	if now == nil {
		now = time.Now
	}
	t := now()
	return &Machine{
		now:        now,
		current:    Idle,
		changedAt:  t,
		lastSynced: t,
	}
}

// Get returns the current status.
func (m *Machine) Get() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Set assigns s and returns the previous status. Entering Synced from any
// other status restamps the last sync time; re-asserting Synced does not.
func (m *Machine) Set(s Status) (Status, error) {
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.current
	if prev == s {
		return prev, nil
	}
	t := m.now()
	m.current = s
	m.changedAt = t
	if s == Synced {
		m.lastSynced = t
	}
	return prev, nil
}

// ChangedAt returns when the current status was entered.
func (m *Machine) ChangedAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.changedAt
}

// LastSynced returns when the machine last entered Synced, or the
// construction time if it never has.
func (m *Machine) LastSynced() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastSynced
}

// TimeSinceLastSync is the elapsed time since LastSynced, never negative.
func (m *Machine) TimeSinceLastSync() time.Duration {
	m.mu.RLock()
	last := m.lastSynced
	m.mu.RUnlock()

	d := m.now().Sub(last)
	if d < 0 {
		return 0
	}
	return d
}
