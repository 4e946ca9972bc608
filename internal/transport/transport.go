// Package transport carries stamped events between tabs.
//
// A Transport is the only way events leave a tab. Implementations must
// never deliver an event back to its sender and must preserve each
// publisher's send order at every receiver. No order is promised across
// publishers.
package transport

import (
	"errors"

	"github.com/roach88/tabsync/internal/event"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("transport: closed")

// Handler receives inbound events. At most one handler is registered per
// transport; registering again replaces it.
type Handler func(event.SyncEvent)

// Transport publishes events to sibling tabs.
type Transport interface {
	// Send publishes e to every other tab. It does not block on receivers.
	Send(e event.SyncEvent) error
	// OnReceive registers the single dispatch entry point. nil detaches.
	OnReceive(h Handler)
	// Close detaches from the channel. Pending deliveries may be dropped.
	Close() error
}

// Local is a Transport with no siblings. Send succeeds and goes nowhere.
// It stands in when no broadcast channel is available so the rest of the
// engine keeps working single-tab.
type Local struct{}

var _ Transport = Local{}

func (Local) Send(event.SyncEvent) error { return nil }
func (Local) OnReceive(Handler)          {}
func (Local) Close() error               { return nil }
