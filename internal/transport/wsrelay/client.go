package wsrelay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"

	"nhooyr.io/websocket"

	"github.com/roach88/tabsync/internal/event"
	"github.com/roach88/tabsync/internal/transport"
)

// Client is one tab's connection to a relay Server.
type Client struct {
	tabID   string
	channel string
	conn    *websocket.Conn
	cancel  context.CancelFunc

	writeMu sync.Mutex
	handler atomic.Pointer[transport.Handler]
	closed  atomic.Bool
	done    chan struct{}
}

var _ transport.Transport = (*Client)(nil)

// Dial connects to the relay at rawURL and joins channel as tabID.
// It returns once the server has acknowledged the join.
func Dial(ctx context.Context, rawURL, channel, tabID string) (*Client, error) {
	if tabID == "" {
		return nil, errors.New("wsrelay: empty tab id")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse relay url: %w", err)
	}
	q := u.Query()
	q.Set("tab", tabID)
	if channel != "" {
		q.Set("channel", channel)
	}
	u.RawQuery = q.Encode()

	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	conn.SetReadLimit(readLimit)

	_, data, err := conn.Read(ctx)
	if err != nil {
		conn.Close(websocket.StatusNormalClosure, "")
		return nil, fmt.Errorf("read joined frame: %w", err)
	}
	env, err := decode(data)
	if err != nil || env.Type != frameJoined {
		conn.Close(websocket.StatusNormalClosure, "")
		return nil, fmt.Errorf("expected %q frame, got %q", frameJoined, env.Type)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	c := &Client{
		tabID:   tabID,
		channel: env.Channel,
		conn:    conn,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go c.readLoop(loopCtx)
	return c, nil
}

// TabID returns the identity the client joined with.
func (c *Client) TabID() string {
	return c.tabID
}

// Channel returns the channel the server placed the client on.
func (c *Client) Channel() string {
	return c.channel
}

// Send writes e to the relay.
func (c *Client) Send(e event.SyncEvent) error {
	if c.closed.Load() {
		return transport.ErrClosed
	}
	data, err := encodeEvent(e)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	// Serialize writes so frames leave in Send order.
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("relay write: %w", err)
	}
	return nil
}

// OnReceive registers the dispatch entry point.
func (c *Client) OnReceive(h transport.Handler) {
	if h == nil {
		c.handler.Store(nil)
		return
	}
	c.handler.Store(&h)
}

// Close leaves the relay.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := c.conn.Close(websocket.StatusNormalClosure, "tab closed")
	c.cancel()
	<-c.done
	if err != nil {
		slog.Debug("relay close handshake incomplete", "tab_id", c.tabID, "error", err)
	}
	return nil
}

// Done is closed when the read loop exits.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) readLoop(ctx context.Context) {
	defer close(c.done)

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if !c.closed.Load() {
				slog.Warn("relay connection lost", "tab_id", c.tabID, "error", err)
			}
			return
		}

		env, err := decode(data)
		if err != nil {
			slog.Warn("dropping malformed frame", "tab_id", c.tabID, "error", err)
			continue
		}
		if env.Type != frameEvent || env.Event.Source == c.tabID {
			continue
		}
		if h := c.handler.Load(); h != nil {
			(*h)(*env.Event)
		}
	}
}
