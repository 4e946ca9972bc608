package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/tabsync/internal/slot"
)

// DefaultCapacity bounds a log when no capacity is configured.
const DefaultCapacity = 1000

// Log is a bounded, slot-mirrored FIFO of T. Safe for concurrent use.
type Log[T any] struct {
	mu       sync.Mutex
	slot     slot.Slot
	key      string
	capacity int
	entries  []T
	validate func(T) error

	persistFailures atomic.Int64
}

// Option configures a Log.
type Option[T any] func(*Log[T])

// WithCapacity sets the maximum number of retained entries.
// Values below 1 are ignored.
func WithCapacity[T any](n int) Option[T] {
	return func(l *Log[T]) {
		if n > 0 {
			l.capacity = n
		}
	}
}

// WithValidator drops restored entries the function rejects.
func WithValidator[T any](fn func(T) error) Option[T] {
	return func(l *Log[T]) {
		l.validate = fn
	}
}

// New creates an empty log mirrored to key in s.
// The slot is not read; call Hydrate to load a previous session.
func New[T any](s slot.Slot, key string, opts ...Option[T]) *Log[T] {
	l := &Log[T]{
		slot:     s,
		key:      key,
		capacity: DefaultCapacity,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.entries = make([]T, 0, l.capacity)
	return l
}

// Key returns the slot key the log is mirrored to.
func (l *Log[T]) Key() string {
	return l.key
}

// Capacity returns the maximum number of retained entries.
func (l *Log[T]) Capacity() int {
	return l.capacity
}

// Append pushes item to the tail, evicts from the head until the log fits
// its capacity, then persists the whole log. Returns the number of evicted
// entries.
func (l *Log[T]) Append(item T) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, item)

	evicted := 0
	if over := len(l.entries) - l.capacity; over > 0 {
		// Zero the evicted slots so the backing array does not pin them.
		var zero T
		for i := 0; i < over; i++ {
			l.entries[i] = zero
		}
		l.entries = l.entries[over:]
		evicted = over
	}

	l.persistLocked()
	return evicted
}

// Entries returns a copy of the log, oldest first.
func (l *Log[T]) Entries() []T {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]T, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of retained entries.
func (l *Log[T]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Clear empties the log and removes the slot copy.
func (l *Log[T]) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = make([]T, 0, l.capacity)
	if err := l.slot.Delete(context.Background(), l.key); err != nil {
		l.persistFailures.Add(1)
		slog.Warn("failed to clear persisted log", "key", l.key, "error", err)
	}
}

// Restore reads the slot copy and returns its entries without touching the
// in-memory log. Missing or malformed data restores as an empty slice.
func (l *Log[T]) Restore() []T {
	data, err := l.slot.Get(context.Background(), l.key)
	if errors.Is(err, slot.ErrNotFound) {
		return []T{}
	}
	if err != nil {
		slog.Warn("failed to read persisted log", "key", l.key, "error", err)
		return []T{}
	}

	var restored []T
	if err := json.Unmarshal(data, &restored); err != nil {
		slog.Warn("discarding malformed persisted log", "key", l.key, "error", err)
		return []T{}
	}

	out := make([]T, 0, len(restored))
	for i, item := range restored {
		if l.validate != nil {
			if err := l.validate(item); err != nil {
				slog.Warn("dropping invalid persisted entry", "key", l.key, "index", i, "error", err)
				continue
			}
		}
		out = append(out, item)
	}
	return out
}

// Hydrate replaces the in-memory log with the restored slot copy, keeping
// the newest entries when the copy exceeds capacity. Returns the loaded
// entries.
func (l *Log[T]) Hydrate() []T {
	restored := l.Restore()
	if over := len(restored) - l.capacity; over > 0 {
		restored = restored[over:]
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make([]T, len(restored), l.capacity)
	copy(l.entries, restored)

	out := make([]T, len(restored))
	copy(out, restored)
	return out
}

// PersistFailures counts swallowed slot write failures.
func (l *Log[T]) PersistFailures() int64 {
	return l.persistFailures.Load()
}

// persistLocked serializes the full log to the slot. Caller holds l.mu.
func (l *Log[T]) persistLocked() {
	data, err := json.Marshal(l.entries)
	if err != nil {
		l.persistFailures.Add(1)
		slog.Warn("failed to encode log for persistence", "key", l.key, "error", err)
		return
	}
	if err := l.slot.Put(context.Background(), l.key, data); err != nil {
		l.persistFailures.Add(1)
		slog.Warn("failed to persist log", "key", l.key, "entries", len(l.entries), "error", err)
	}
}
