package event

import (
	"errors"
	"fmt"
	"time"
)

// Type names an event. Dispatch matches types exactly.
type Type string

// Event types used by the show and finance data contexts.
const (
	TypeShowsUpdated     Type = "shows-updated"
	TypeShowCreated      Type = "show-created"
	TypeShowDeleted      Type = "show-deleted"
	TypeFinanceUpdated   Type = "finance-updated"
	TypeSyncStart        Type = "sync-start"
	TypeSyncComplete     Type = "sync-complete"
	TypeConflictDetected Type = "conflict-detected"
)

// KnownTypes lists the built-in event types.
var KnownTypes = []Type{
	TypeShowsUpdated,
	TypeShowCreated,
	TypeShowDeleted,
	TypeFinanceUpdated,
	TypeSyncStart,
	TypeSyncComplete,
	TypeConflictDetected,
}

// ErrEmptyType is returned when a request has no event type.
var ErrEmptyType = errors.New("event type is required")

// SyncEvent is a fully-qualified event. Immutable once stamped.
type SyncEvent struct {
	Type      Type   `json:"type"`
	Payload   any    `json:"payload"`
	Timestamp int64  `json:"timestamp"` // ms since epoch
	Source    string `json:"source"`    // publishing tab id
	Version   int64  `json:"version"`
}

// Validate reports whether every field of the event is defined.
func (e SyncEvent) Validate() error {
	switch {
	case e.Type == "":
		return ErrEmptyType
	case e.Source == "":
		return fmt.Errorf("event %q: source is required", e.Type)
	case e.Timestamp <= 0:
		return fmt.Errorf("event %q: timestamp is required", e.Type)
	case e.Version <= 0:
		return fmt.Errorf("event %q: version must be positive, got %d", e.Type, e.Version)
	case e.Payload == nil:
		return fmt.Errorf("event %q: payload is required", e.Type)
	}
	return nil
}

// Time returns the event timestamp as a time.Time.
func (e SyncEvent) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// Request is an event before the publisher stamps its metadata.
type Request struct {
	Type    Type `json:"type"`
	Payload any  `json:"payload,omitempty"`
}

// Validate checks the request can be stamped.
func (r Request) Validate() error {
	if r.Type == "" {
		return ErrEmptyType
	}
	return nil
}

// Stamp turns the request into a SyncEvent. A nil payload becomes an empty
// object so the stamped event always carries one.
func (r Request) Stamp(source string, at time.Time, version int64) SyncEvent {
	payload := r.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	return SyncEvent{
		Type:      r.Type,
		Payload:   payload,
		Timestamp: at.UnixMilli(),
		Source:    source,
		Version:   version,
	}
}

// ShowsUpdated announces that one or more shows changed.
func ShowsUpdated(payload any) Request {
	return Request{Type: TypeShowsUpdated, Payload: payload}
}

// ShowCreated announces a new show.
func ShowCreated(payload any) Request {
	return Request{Type: TypeShowCreated, Payload: payload}
}

// ShowDeleted announces the removal of the show with the given id.
func ShowDeleted(id string) Request {
	return Request{Type: TypeShowDeleted, Payload: map[string]any{"id": id}}
}

// FinanceUpdated announces a change to finance entries.
func FinanceUpdated(payload any) Request {
	return Request{Type: TypeFinanceUpdated, Payload: payload}
}

// SyncStart asks sibling tabs to begin their own sync.
func SyncStart(tabID string) Request {
	return Request{Type: TypeSyncStart, Payload: map[string]any{"tabId": tabID}}
}

// SyncComplete reports how many records a sync pass applied.
func SyncComplete(syncedCount int) Request {
	return Request{Type: TypeSyncComplete, Payload: map[string]any{"syncedCount": syncedCount}}
}

// ConflictDetected reports a conflicting record.
func ConflictDetected(recordID string) Request {
	return Request{Type: TypeConflictDetected, Payload: map[string]any{"id": recordID}}
}

// Custom builds a request for a collaborator-defined type.
func Custom(t Type, payload any) Request {
	return Request{Type: t, Payload: payload}
}
