package event

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest_Stamp(t *testing.T) {
	at := time.UnixMilli(1_700_000_000_000)
	req := ShowsUpdated(map[string]any{"id": "123", "name": "Show 1"})

	ev := req.Stamp("tab-a", at, 7)

	assert.Equal(t, TypeShowsUpdated, ev.Type)
	assert.Equal(t, map[string]any{"id": "123", "name": "Show 1"}, ev.Payload)
	assert.Equal(t, "tab-a", ev.Source)
	assert.Equal(t, int64(1_700_000_000_000), ev.Timestamp)
	assert.Equal(t, int64(7), ev.Version)
	require.NoError(t, ev.Validate())
}

func TestRequest_Stamp_NilPayload(t *testing.T) {
	ev := Custom("ping", nil).Stamp("tab-a", time.UnixMilli(1), 1)

	assert.Equal(t, map[string]any{}, ev.Payload)
	assert.NoError(t, ev.Validate())
}

func TestRequest_Validate(t *testing.T) {
	assert.ErrorIs(t, Request{}.Validate(), ErrEmptyType)
	assert.NoError(t, SyncStart("tab-a").Validate())
}

func TestSyncEvent_Validate(t *testing.T) {
	valid := SyncEvent{Type: TypeShowCreated, Payload: map[string]any{}, Timestamp: 1, Source: "tab-a", Version: 1}

	tests := []struct {
		name   string
		mutate func(*SyncEvent)
		errMsg string
	}{
		{"missing type", func(e *SyncEvent) { e.Type = "" }, "event type is required"},
		{"missing source", func(e *SyncEvent) { e.Source = "" }, "source is required"},
		{"missing timestamp", func(e *SyncEvent) { e.Timestamp = 0 }, "timestamp is required"},
		{"zero version", func(e *SyncEvent) { e.Version = 0 }, "version must be positive"},
		{"missing payload", func(e *SyncEvent) { e.Payload = nil }, "payload is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := valid
			tt.mutate(&ev)
			err := ev.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		req      Request
		wantType Type
	}{
		{ShowsUpdated(nil), TypeShowsUpdated},
		{ShowCreated(nil), TypeShowCreated},
		{ShowDeleted("s-1"), TypeShowDeleted},
		{FinanceUpdated(nil), TypeFinanceUpdated},
		{SyncStart("tab-a"), TypeSyncStart},
		{SyncComplete(5), TypeSyncComplete},
		{ConflictDetected("s-1"), TypeConflictDetected},
		{Custom("custom", 1), "custom"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.wantType, tt.req.Type)
	}

	assert.Equal(t, map[string]any{"id": "s-1"}, ShowDeleted("s-1").Payload)
	assert.Equal(t, map[string]any{"syncedCount": 5}, SyncComplete(5).Payload)
	assert.Equal(t, map[string]any{"tabId": "tab-a"}, SyncStart("tab-a").Payload)
}

func TestUUIDv7Generator(t *testing.T) {
	gen := UUIDv7Generator{}

	a := gen.Generate()
	b := gen.Generate()

	assert.True(t, strings.HasPrefix(a, "tab-"))
	assert.Len(t, a, len("tab-")+36)
	assert.NotEqual(t, a, b)
}

func TestStaticTabID(t *testing.T) {
	assert.Equal(t, "tab-fixed", StaticTabID("tab-fixed").Generate())
}
