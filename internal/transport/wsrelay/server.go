package wsrelay

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

// DefaultChannel is used when a client names no channel.
const DefaultChannel = "default"

const (
	outboxSize   = 256
	writeTimeout = 5 * time.Second
)

// Server relays event frames between tabs joined to the same channel.
// Mount it as an http.Handler; it upgrades every request.
type Server struct {
	mu       sync.RWMutex
	channels map[string]map[*peer]struct{}
}

// NewServer creates a relay with no members.
func NewServer() *Server {
	return &Server{channels: make(map[string]map[*peer]struct{})}
}

type peer struct {
	tabID   string
	channel string
	conn    *websocket.Conn
	out     chan []byte
	cancel  context.CancelFunc
}

// ServeHTTP upgrades the request and relays frames until the client leaves.
//
// Query parameters: tab (required) and channel.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tabID := r.URL.Query().Get("tab")
	if tabID == "" {
		http.Error(w, "missing tab parameter", http.StatusBadRequest)
		return
	}
	channel := r.URL.Query().Get("channel")
	if channel == "" {
		channel = DefaultChannel
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket accept failed", "tab_id", tabID, "error", err)
		return
	}
	conn.SetReadLimit(readLimit)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	p := &peer{
		tabID:   tabID,
		channel: channel,
		conn:    conn,
		out:     make(chan []byte, outboxSize),
		cancel:  cancel,
	}

	// The joined frame is queued before registration so it is always the
	// first frame the client reads.
	hello, _ := json.Marshal(envelope{Type: frameJoined, TabID: tabID, Channel: channel})
	p.out <- hello
	s.register(p)
	defer s.unregister(p)

	go p.writeLoop(ctx)

	slog.Info("tab connected", "channel", channel, "tab_id", tabID)
	s.readLoop(ctx, p)
	slog.Info("tab disconnected", "channel", channel, "tab_id", tabID)
}

func (s *Server) readLoop(ctx context.Context, p *peer) {
	defer p.conn.Close(websocket.StatusNormalClosure, "")

	for {
		_, data, err := p.conn.Read(ctx)
		if err != nil {
			return
		}

		env, err := decode(data)
		if err != nil {
			slog.Warn("dropping malformed frame", "tab_id", p.tabID, "error", err)
			continue
		}
		if env.Type != frameEvent {
			continue
		}
		if env.Event.Source != p.tabID {
			slog.Warn("dropping frame with foreign source",
				"tab_id", p.tabID, "source", env.Event.Source)
			continue
		}
		s.fanOut(p, data)
	}
}

// fanOut queues data on every other peer in the sender's channel.
func (s *Server) fanOut(from *peer, data []byte) {
	s.mu.RLock()
	targets := make([]*peer, 0, len(s.channels[from.channel]))
	for p := range s.channels[from.channel] {
		if p != from {
			targets = append(targets, p)
		}
	}
	s.mu.RUnlock()

	for _, p := range targets {
		select {
		case p.out <- data:
		default:
			slog.Warn("disconnecting slow tab", "channel", p.channel, "tab_id", p.tabID)
			p.cancel()
		}
	}
}

func (p *peer) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-p.out:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := p.conn.Write(wctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				p.cancel()
				return
			}
		}
	}
}

func (s *Server) register(p *peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	members, ok := s.channels[p.channel]
	if !ok {
		members = make(map[*peer]struct{})
		s.channels[p.channel] = members
	}
	members[p] = struct{}{}
}

func (s *Server) unregister(p *peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	members := s.channels[p.channel]
	delete(members, p)
	if len(members) == 0 {
		delete(s.channels, p.channel)
	}
}

// Members returns the number of connected tabs on channel.
func (s *Server) Members(channel string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.channels[channel])
}

// Close disconnects every tab.
func (s *Server) Close() {
	s.mu.RLock()
	var all []*peer
	for _, members := range s.channels {
		for p := range members {
			all = append(all, p)
		}
	}
	s.mu.RUnlock()

	for _, p := range all {
		p.cancel()
	}
}
