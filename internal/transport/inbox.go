package transport

import (
	"sync"

	"github.com/roach88/tabsync/internal/event"
)

// inbox is a thread-safe unbounded FIFO of inbound events.
//
// Senders never block on a slow receiver. A buffered signal channel of
// size 1 lets the drain loop wait with select alongside its stop channel.
type inbox struct {
	mu     sync.Mutex
	events []event.SyncEvent
	closed bool
	signal chan struct{}
}

func newInbox() *inbox {
	return &inbox{
		events: make([]event.SyncEvent, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// push appends e. Returns false once the inbox is closed.
func (q *inbox) push(e event.SyncEvent) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.events = append(q.events, e)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// pop removes the front event without blocking.
func (q *inbox) pop() (event.SyncEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return event.SyncEvent{}, false
	}
	e := q.events[0]
	// Release the payload reference held by the backing array.
	q.events[0] = event.SyncEvent{}
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}
	return e, true
}

func (q *inbox) wait() <-chan struct{} {
	return q.signal
}

func (q *inbox) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// close rejects further pushes and wakes the drain loop.
func (q *inbox) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
