package syncmgr

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/roach88/tabsync/internal/bus"
	"github.com/roach88/tabsync/internal/conflict"
	"github.com/roach88/tabsync/internal/event"
	"github.com/roach88/tabsync/internal/queue"
	"github.com/roach88/tabsync/internal/record"
	"github.com/roach88/tabsync/internal/slot"
	"github.com/roach88/tabsync/internal/status"
	"github.com/roach88/tabsync/internal/transport"
)

// Slot keys shared by every tab of the same origin.
const (
	QueueKey   = "__SYNC_QUEUE__"
	JournalKey = "__SYNC_LOGS__"
)

// DefaultJournalCapacity bounds the diagnostic journal.
const DefaultJournalCapacity = 500

// Manager is one tab's sync engine.
//
// Thread-safety: safe for concurrent use.
type Manager struct {
	tabID     string
	now       func() time.Time
	transport transport.Transport

	queue    *queue.Log[event.SyncEvent]
	journal  *queue.Log[JournalEntry]
	bus      *bus.Bus
	resolver *conflict.Resolver
	status   *status.Machine

	closed atomic.Bool
}

// New creates a Manager publishing through tr and persisting to s.
//
// A nil tr falls back to transport.Local (single-tab operation); a nil s
// falls back to an in-memory slot.
func New(tr transport.Transport, s slot.Slot, opts ...Option) *Manager {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if tr == nil {
		slog.Warn("no broadcast channel, running single-tab")
		tr = transport.Local{}
	}
	if s == nil {
		s = slot.NewMemory()
	}

	tabID := o.tabID
	if tabID == "" {
		tabID = o.tabIDs.Generate()
	}

	m := &Manager{
		tabID:     tabID,
		now:       o.now,
		transport: tr,
		queue: queue.New(s, QueueKey,
			queue.WithCapacity[event.SyncEvent](o.queueCapacity),
			queue.WithValidator(event.SyncEvent.Validate)),
		journal: queue.New(s, JournalKey,
			queue.WithCapacity[JournalEntry](o.journalCapacity)),
		resolver: conflict.NewResolver(conflict.WithNow(o.now)),
		status:   status.NewMachine(o.now),
	}
	m.journal.Hydrate()

	clock := event.NewClock()
	if o.restoreOnStart {
		restored := m.queue.Hydrate()
		for _, e := range restored {
			clock.Observe(e.Version)
		}
		slog.Info("restored event queue",
			"tab_id", tabID,
			"events", len(restored),
			"next_version", clock.Current()+1)
	}

	m.bus = bus.New(tabID, tr, m.queue,
		bus.WithNow(o.now),
		bus.WithClock(clock),
		bus.WithSendErrorHandler(m.onSendError))

	slog.Info("sync manager initialized", "tab_id", tabID)
	m.logEvent("Sync manager initialized", nil)
	return m
}

// TabID returns this tab's publisher identity.
func (m *Manager) TabID() string {
	return m.tabID
}

// Broadcast publishes req to every other tab and records it locally.
// Returns an error only when req has no type.
func (m *Manager) Broadcast(req event.Request) (event.SyncEvent, error) {
	return m.bus.Broadcast(req)
}

// Subscribe registers fn for events of exactly type t and returns its
// unsubscribe function.
func (m *Manager) Subscribe(t event.Type, fn func(event.SyncEvent)) func() {
	return m.bus.Subscribe(t, fn)
}

// DetectConflict reports whether both version and modification time
// differ between local and remote.
func (m *Manager) DetectConflict(local, remote record.Record) bool {
	return conflict.Detect(local, remote)
}

// ResolveConflict reconciles local and remote under s. Every successful
// call is logged and counted, whether or not DetectConflict was called.
func (m *Manager) ResolveConflict(id string, local, remote record.Record, s conflict.Strategy) (record.Record, error) {
	result, err := m.resolver.Resolve(id, local, remote, s)
	if err != nil {
		slog.Warn("conflict resolution rejected", "tab_id", m.tabID, "record_id", id, "error", err)
		return nil, fmt.Errorf("resolve conflict: %w", err)
	}
	m.logEvent("Conflict resolved", map[string]any{"id": id, "strategy": string(s)})
	return result, nil
}

// ConflictLog returns every resolution made by this manager, oldest first.
func (m *Manager) ConflictLog() []conflict.Resolution {
	return m.resolver.Log()
}

// EventQueue returns a copy of the queue, oldest first.
func (m *Manager) EventQueue() []event.SyncEvent {
	return m.queue.Entries()
}

// ClearEventQueue empties the queue and its slot copy. Subscriptions are
// untouched.
func (m *Manager) ClearEventQueue() {
	m.queue.Clear()
	m.logEvent("Event queue cleared", nil)
}

// RestoreQueueFromStorage returns the events persisted in the slot.
// Missing or malformed data yields an empty slice. The live queue is not
// modified.
func (m *Manager) RestoreQueueFromStorage() []event.SyncEvent {
	return m.queue.Restore()
}

// Status returns the current sync status.
func (m *Manager) Status() status.Status {
	return m.status.Get()
}

// SetStatus assigns s. Any status may follow any other.
func (m *Manager) SetStatus(s status.Status) error {
	prev, err := m.status.Set(s)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	if prev != s {
		slog.Debug("sync status changed", "tab_id", m.tabID, "from", prev, "to", s)
		m.logEvent(fmt.Sprintf("Sync status changed: %s -> %s", prev, s), nil)
	}
	return nil
}

// ForceSync moves to syncing and broadcasts sync-start so every tab's
// sync-start subscribers run. Reconciliation itself is up to them.
func (m *Manager) ForceSync() (event.SyncEvent, error) {
	if err := m.SetStatus(status.Syncing); err != nil {
		return event.SyncEvent{}, err
	}
	return m.bus.Broadcast(event.SyncStart(m.tabID))
}

// SyncLogs returns the diagnostic journal, oldest first.
func (m *Manager) SyncLogs() []JournalEntry {
	return m.journal.Entries()
}

// Close detaches from the transport, drops every subscription and closes
// the transport. Later broadcasts are still recorded locally.
func (m *Manager) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	m.bus.Close()
	m.logEvent("Sync manager destroyed", nil)
	slog.Info("sync manager closed", "tab_id", m.tabID)

	if err := m.transport.Close(); err != nil {
		return fmt.Errorf("close transport: %w", err)
	}
	return nil
}

func (m *Manager) onSendError(err error) {
	if m.closed.Load() {
		return
	}
	if setErr := m.SetStatus(status.Error); setErr != nil {
		slog.Warn("failed to record transport error", "tab_id", m.tabID, "error", setErr)
	}
}
