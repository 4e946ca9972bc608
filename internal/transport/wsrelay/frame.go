// Package wsrelay links tabs in separate processes through a websocket
// relay. The server fans every event frame out to the other connections on
// the same channel. The client is a transport.Transport.
//
// Wire format: one JSON envelope per text message.
//
//	{"type":"joined","tabId":"tab-1","channel":"c"}
//	{"type":"event","event":{"type":"shows-updated",...}}
package wsrelay

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/tabsync/internal/event"
)

const (
	frameJoined = "joined"
	frameEvent  = "event"
)

// readLimit caps a single frame. Queue payloads are small records.
const readLimit = 1 << 20

type envelope struct {
	Type    string           `json:"type"`
	TabID   string           `json:"tabId,omitempty"`
	Channel string           `json:"channel,omitempty"`
	Event   *event.SyncEvent `json:"event,omitempty"`
}

func encodeEvent(e event.SyncEvent) ([]byte, error) {
	data, err := json.Marshal(envelope{Type: frameEvent, Event: &e})
	if err != nil {
		return nil, fmt.Errorf("encode event frame: %w", err)
	}
	return data, nil
}

func decode(data []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return envelope{}, fmt.Errorf("decode frame: %w", err)
	}
	if env.Type == frameEvent && env.Event == nil {
		return envelope{}, fmt.Errorf("decode frame: event frame without event")
	}
	return env, nil
}
