package syncmgr

import (
	"log/slog"
	"time"

	"github.com/roach88/tabsync/internal/status"
)

// Stats is a point-in-time view of a Manager.
type Stats struct {
	TabID             string        `json:"tabId"`
	Status            status.Status `json:"status"`
	QueueSize         int           `json:"queueSize"`
	ConflictCount     int           `json:"conflictCount"`
	TimeSinceLastSync time.Duration `json:"-"`
	// TimeSinceLastSyncMs mirrors TimeSinceLastSync for JSON consumers.
	TimeSinceLastSyncMs int64 `json:"timeSinceLastSync"`
	LogCount            int   `json:"logCount"`
	Broadcasts          int64 `json:"broadcasts"`
	Received            int64 `json:"received"`
}

// Stats reports queue size, cumulative conflict count and time since the
// last sync. LogCount is the resolution log size.
func (m *Manager) Stats() Stats {
	since := m.status.TimeSinceLastSync()
	resolved := m.resolver.Count()
	return Stats{
		TabID:               m.tabID,
		Status:              m.status.Get(),
		QueueSize:           m.queue.Len(),
		ConflictCount:       resolved,
		TimeSinceLastSync:   since,
		TimeSinceLastSyncMs: since.Milliseconds(),
		LogCount:            resolved,
		Broadcasts:          m.bus.Broadcasts(),
		Received:            m.bus.Received(),
	}
}

// JournalEntry is one diagnostic journal line.
type JournalEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	TabID     string         `json:"tabId"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
}

// logEvent appends to the journal. Write failures are swallowed by the
// journal itself.
func (m *Manager) logEvent(message string, ctx map[string]any) {
	m.journal.Append(JournalEntry{
		Timestamp: m.now().UTC(),
		TabID:     m.tabID,
		Message:   message,
		Context:   ctx,
	})
	slog.Debug("journal", "tab_id", m.tabID, "message", message)
}
