// Package bus stamps outgoing events, records them, hands them to the
// transport and dispatches events to per-type subscribers.
//
// Every broadcast is appended to the queue and echoed to this tab's own
// subscribers, whether or not the transport delivered it anywhere. Inbound
// events from sibling tabs are recorded the same way before dispatch.
//
// Dispatch is exact-match on the event type. An unsubscribed callback is
// never invoked again, even for an event that was already being dispatched
// when unsubscribe ran.
package bus

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/tabsync/internal/event"
	"github.com/roach88/tabsync/internal/queue"
	"github.com/roach88/tabsync/internal/transport"
)

// Handler is a subscriber callback.
type Handler func(event.SyncEvent)

type subscription struct {
	fn     Handler
	active atomic.Bool
}

// Bus is one tab's event bus.
//
// Thread-safety: safe for concurrent use. Subscriber callbacks run on the
// goroutine that broadcast or received the event.
type Bus struct {
	tabID     string
	transport transport.Transport
	queue     *queue.Log[event.SyncEvent]
	clock     *event.Clock
	now       func() time.Time
	onSendErr func(error)

	// pubMu keeps stamp order, queue order and send order identical.
	// It is never held across transport.Send.
	pubMu   sync.Mutex
	outbox  []event.SyncEvent
	sending bool

	mu   sync.RWMutex
	subs map[event.Type][]*subscription

	closed       atomic.Bool
	broadcasts   atomic.Int64
	received     atomic.Int64
	sendFailures atomic.Int64
	panics       atomic.Int64
}

// Option configures a Bus.
type Option func(*Bus)

// WithNow sets the wall clock used for event timestamps.
func WithNow(now func() time.Time) Option {
	return func(b *Bus) {
		b.now = now
	}
}

// WithClock sets the version counter. Defaults to a fresh clock at 0.
func WithClock(c *event.Clock) Option {
	return func(b *Bus) {
		b.clock = c
	}
}

// WithSendErrorHandler is called after a failed transport send.
func WithSendErrorHandler(fn func(error)) Option {
	return func(b *Bus) {
		b.onSendErr = fn
	}
}

// New creates a bus for tabID and attaches it to tr.
func New(tabID string, tr transport.Transport, q *queue.Log[event.SyncEvent], opts ...Option) *Bus {
	b := &Bus{
		tabID:     tabID,
		transport: tr,
		queue:     q,
		clock:     event.NewClock(),
		now:       time.Now,
		subs:      make(map[event.Type][]*subscription),
	}
	for _, opt := range opts {
		opt(b)
	}
	tr.OnReceive(b.receive)
	return b
}

// TabID returns the publisher identity stamped on outgoing events.
func (b *Bus) TabID() string {
	return b.tabID
}

// Broadcast stamps req, appends it to the queue, sends it to sibling tabs
// and dispatches it locally. Only an empty type is an error; transport and
// persistence failures are logged and swallowed.
func (b *Bus) Broadcast(req event.Request) (event.SyncEvent, error) {
	if err := req.Validate(); err != nil {
		return event.SyncEvent{}, fmt.Errorf("broadcast: %w", err)
	}

	b.pubMu.Lock()
	e := req.Stamp(b.tabID, b.now(), b.clock.Next())
	if evicted := b.queue.Append(e); evicted > 0 {
		slog.Debug("queue evicted oldest events", "tab_id", b.tabID, "evicted", evicted)
	}
	b.broadcasts.Add(1)
	b.outbox = append(b.outbox, e)
	flush := !b.sending
	b.sending = true
	b.pubMu.Unlock()

	// A broadcast made while another flush is running, including one from
	// a subscriber reached through a synchronous transport, is sent by that
	// flush in stamp order.
	if flush {
		b.flush()
	}

	slog.Debug("event broadcast", "tab_id", b.tabID, "type", e.Type, "version", e.Version)
	b.dispatch(e)
	return e, nil
}

// flush sends queued outgoing events until the outbox is empty.
func (b *Bus) flush() {
	for {
		b.pubMu.Lock()
		if len(b.outbox) == 0 {
			b.outbox = nil
			b.sending = false
			b.pubMu.Unlock()
			return
		}
		e := b.outbox[0]
		b.outbox[0] = event.SyncEvent{}
		b.outbox = b.outbox[1:]
		b.pubMu.Unlock()

		b.send(e)
	}
}

func (b *Bus) send(e event.SyncEvent) {
	err := b.transport.Send(e)
	if err == nil {
		return
	}
	b.sendFailures.Add(1)
	slog.Warn("transport send failed",
		"tab_id", b.tabID,
		"type", e.Type,
		"version", e.Version,
		"error", err)
	if b.onSendErr != nil && !b.closed.Load() {
		b.onSendErr(err)
	}
}

// receive is the transport entry point.
func (b *Bus) receive(e event.SyncEvent) {
	if b.closed.Load() || e.Source == b.tabID {
		return
	}
	if err := e.Validate(); err != nil {
		slog.Warn("dropping invalid inbound event", "tab_id", b.tabID, "error", err)
		return
	}

	b.queue.Append(e)
	b.received.Add(1)
	slog.Debug("event received",
		"tab_id", b.tabID,
		"type", e.Type,
		"source", e.Source,
		"version", e.Version)
	b.dispatch(e)
}

// Subscribe registers fn for events of exactly type t. The returned
// function unsubscribes; calling it more than once is harmless.
func (b *Bus) Subscribe(t event.Type, fn Handler) func() {
	sub := &subscription{fn: fn}
	sub.active.Store(true)

	b.mu.Lock()
	b.subs[t] = append(b.subs[t], sub)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.active.Store(false)
			b.remove(t, sub)
		})
	}
}

func (b *Bus) remove(t event.Type, sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.subs[t]
	for i, s := range list {
		if s == sub {
			// Copy so in-flight snapshots keep their view.
			next := make([]*subscription, 0, len(list)-1)
			next = append(next, list[:i]...)
			next = append(next, list[i+1:]...)
			if len(next) == 0 {
				delete(b.subs, t)
			} else {
				b.subs[t] = next
			}
			return
		}
	}
}

// Subscribers returns the number of live subscriptions for t.
func (b *Bus) Subscribers(t event.Type) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[t])
}

func (b *Bus) dispatch(e event.SyncEvent) {
	b.mu.RLock()
	list := b.subs[e.Type]
	b.mu.RUnlock()

	for _, sub := range list {
		// Checked per call: unsubscribe may run between snapshot and here.
		if !sub.active.Load() {
			continue
		}
		b.invoke(sub, e)
	}
}

func (b *Bus) invoke(sub *subscription, e event.SyncEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.panics.Add(1)
			slog.Warn("subscriber panicked",
				"tab_id", b.tabID,
				"type", e.Type,
				"panic", r)
		}
	}()
	sub.fn(e)
}

// Close detaches from the transport and drops every subscription.
// Broadcast keeps recording locally afterwards.
func (b *Bus) Close() {
	if !b.closed.CompareAndSwap(false, true) {
		return
	}
	b.transport.OnReceive(nil)

	b.mu.Lock()
	for _, list := range b.subs {
		for _, sub := range list {
			sub.active.Store(false)
		}
	}
	b.subs = make(map[event.Type][]*subscription)
	b.mu.Unlock()
}

// Broadcasts counts events published by this tab.
func (b *Bus) Broadcasts() int64 { return b.broadcasts.Load() }

// Received counts events accepted from sibling tabs.
func (b *Bus) Received() int64 { return b.received.Load() }

// SendFailures counts transport sends that returned an error.
func (b *Bus) SendFailures() int64 { return b.sendFailures.Load() }

// Panics counts recovered subscriber panics.
func (b *Bus) Panics() int64 { return b.panics.Load() }
