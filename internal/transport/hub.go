package transport

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/tabsync/internal/event"
)

// Hub is an in-process broadcast channel shared by simulated tabs.
//
// Each joined endpoint owns an inbox drained by its own goroutine, so a
// publisher never waits for receivers and every receiver sees a given
// publisher's events in send order. Fan-out visits endpoints in join order.
type Hub struct {
	name string
	sync bool

	mu      sync.RWMutex
	members []*Endpoint
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithSyncDelivery delivers on the sender's goroutine before Send returns.
// Used by the scenario harness for reproducible traces.
func WithSyncDelivery() HubOption {
	return func(h *Hub) {
		h.sync = true
	}
}

// NewHub creates an empty channel.
func NewHub(name string, opts ...HubOption) *Hub {
	h := &Hub{name: name}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name returns the channel name.
func (h *Hub) Name() string {
	return h.name
}

// Join attaches a tab to the channel. Tab ids must be unique per hub.
func (h *Hub) Join(tabID string) (*Endpoint, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ep := range h.members {
		if ep.tabID == tabID {
			return nil, fmt.Errorf("hub %q: tab %q already joined", h.name, tabID)
		}
	}

	ep := &Endpoint{
		hub:   h,
		tabID: tabID,
	}
	if !h.sync {
		ep.inbox = newInbox()
		ep.done = make(chan struct{})
		go ep.drain()
	}
	h.members = append(h.members, ep)

	slog.Debug("tab joined channel", "channel", h.name, "tab_id", tabID)
	return ep, nil
}

// Members returns the number of joined endpoints.
func (h *Hub) Members() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.members)
}

// Close detaches every endpoint.
func (h *Hub) Close() error {
	h.mu.RLock()
	eps := make([]*Endpoint, len(h.members))
	copy(eps, h.members)
	h.mu.RUnlock()

	for _, ep := range eps {
		_ = ep.Close()
	}
	return nil
}

func (h *Hub) leave(ep *Endpoint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, m := range h.members {
		if m == ep {
			h.members = append(h.members[:i:i], h.members[i+1:]...)
			return
		}
	}
}

// publish fans e out to every endpoint except the sender.
func (h *Hub) publish(from string, e event.SyncEvent) {
	// Snapshot under the read lock, deliver outside it.
	h.mu.RLock()
	targets := make([]*Endpoint, 0, len(h.members))
	for _, ep := range h.members {
		if ep.tabID != from {
			targets = append(targets, ep)
		}
	}
	h.mu.RUnlock()

	for _, ep := range targets {
		ep.deliver(e)
	}
}

// Endpoint is one tab's attachment to a Hub. It implements Transport.
type Endpoint struct {
	hub     *Hub
	tabID   string
	handler atomic.Pointer[Handler]
	closed  atomic.Bool

	// nil in sync delivery mode
	inbox *inbox
	done  chan struct{}
}

var _ Transport = (*Endpoint)(nil)

// TabID returns the identity this endpoint joined with.
func (ep *Endpoint) TabID() string {
	return ep.tabID
}

// Send publishes e to every other endpoint on the hub.
func (ep *Endpoint) Send(e event.SyncEvent) error {
	if ep.closed.Load() {
		return ErrClosed
	}
	ep.hub.publish(ep.tabID, e)
	return nil
}

// OnReceive registers the dispatch entry point.
func (ep *Endpoint) OnReceive(h Handler) {
	if h == nil {
		ep.handler.Store(nil)
		return
	}
	ep.handler.Store(&h)
}

// Pending returns the number of queued, undelivered events.
func (ep *Endpoint) Pending() int {
	if ep.inbox == nil {
		return 0
	}
	return ep.inbox.len()
}

// Close leaves the hub. Undelivered events are dropped.
func (ep *Endpoint) Close() error {
	if !ep.closed.CompareAndSwap(false, true) {
		return nil
	}
	ep.hub.leave(ep)
	if ep.inbox != nil {
		close(ep.done)
		ep.inbox.close()
	}
	slog.Debug("tab left channel", "channel", ep.hub.name, "tab_id", ep.tabID)
	return nil
}

func (ep *Endpoint) deliver(e event.SyncEvent) {
	if ep.closed.Load() {
		return
	}
	if ep.inbox == nil {
		ep.handle(e)
		return
	}
	ep.inbox.push(e)
}

func (ep *Endpoint) handle(e event.SyncEvent) {
	h := ep.handler.Load()
	if h == nil {
		// Like a channel with no listener: the message is gone.
		return
	}
	(*h)(e)
}

// drain delivers inbox events in order until Close.
func (ep *Endpoint) drain() {
	for {
		select {
		case <-ep.done:
			return
		case <-ep.inbox.wait():
		}
		for {
			if ep.closed.Load() {
				return
			}
			e, ok := ep.inbox.pop()
			if !ok {
				break
			}
			ep.handle(e)
		}
	}
}
