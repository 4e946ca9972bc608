package syncmgr

import (
	"time"

	"github.com/roach88/tabsync/internal/event"
	"github.com/roach88/tabsync/internal/queue"
)

type options struct {
	tabID           string
	tabIDs          event.TabIDGenerator
	now             func() time.Time
	queueCapacity   int
	journalCapacity int
	restoreOnStart  bool
}

func defaultOptions() options {
	return options{
		tabIDs:          event.UUIDv7Generator{},
		now:             time.Now,
		queueCapacity:   queue.DefaultCapacity,
		journalCapacity: DefaultJournalCapacity,
	}
}

// Option configures a Manager.
type Option func(*options)

// WithTabID fixes the tab identity. Must match the id the transport joined
// with when the transport filters by sender.
func WithTabID(id string) Option {
	return func(o *options) {
		o.tabID = id
	}
}

// WithTabIDGenerator sets how an unset tab id is generated.
func WithTabIDGenerator(g event.TabIDGenerator) Option {
	return func(o *options) {
		o.tabIDs = g
	}
}

// WithNow sets the wall clock for event timestamps, resolution times and
// status bookkeeping.
func WithNow(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithQueueCapacity bounds the event queue. Values below 1 are ignored.
func WithQueueCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueCapacity = n
		}
	}
}

// WithJournalCapacity bounds the diagnostic journal. Values below 1 are
// ignored.
func WithJournalCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.journalCapacity = n
		}
	}
}

// WithRestoreOnStart loads the persisted queue into memory at construction
// and resumes the version counter past the largest restored version.
func WithRestoreOnStart(enabled bool) Option {
	return func(o *options) {
		o.restoreOnStart = enabled
	}
}
