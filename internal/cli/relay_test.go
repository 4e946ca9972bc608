package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tabsync/internal/config"
	"github.com/roach88/tabsync/internal/event"
	"github.com/roach88/tabsync/internal/slot"
	"github.com/roach88/tabsync/internal/status"
	"github.com/roach88/tabsync/internal/syncmgr"
	"github.com/roach88/tabsync/internal/transport/wsrelay"
)

// lockedBuffer is a bytes.Buffer safe for the relay read goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// lines decodes every JSON line written so far.
func (b *lockedBuffer) lines(t *testing.T) []tabOutput {
	t.Helper()
	var out []tabOutput
	for _, line := range strings.Split(strings.TrimSpace(b.String()), "\n") {
		if line == "" {
			continue
		}
		var o tabOutput
		require.NoError(t, json.Unmarshal([]byte(line), &o))
		out = append(out, o)
	}
	return out
}

// startRelay serves a relay on a loopback port until the test ends.
func startRelay(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serveRelay(ctx, ln, wsrelay.NewServer()) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Error("relay did not stop")
		}
	})
	return ln.Addr().String()
}

func joinTab(t *testing.T, addr, tabID string) *syncmgr.Manager {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := wsrelay.Dial(ctx, "ws://"+addr+"/ws", config.Default().Channel, tabID)
	require.NoError(t, err)

	mgr := syncmgr.New(client, slot.NewMemory(), syncmgr.WithTabID(tabID))
	t.Cleanup(func() { mgr.Close() })
	return mgr
}

func TestRelay_Healthz(t *testing.T) {
	addr := startRelay(t)

	resp, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok\n", string(body))
}

func TestRelay_TabSessionsExchangeEvents(t *testing.T) {
	addr := startRelay(t)

	aOut, bOut := &lockedBuffer{}, &lockedBuffer{}
	a := newTabSession(joinTab(t, addr, "tab-a"), aOut)
	b := newTabSession(joinTab(t, addr, "tab-b"), bOut)
	a.subscribe(event.KnownTypes)
	b.subscribe(event.KnownTypes)

	a.handleLine(`{"type":"show-created","payload":{"id":"s1"}}`)
	a.handleLine(`{"type":"finance-updated","payload":{"total":10}}`)

	require.Eventually(t, func() bool {
		return strings.Count(bOut.String(), "\n") == 2
	}, 5*time.Second, 10*time.Millisecond)

	got := bOut.lines(t)
	assert.Equal(t, "in", got[0].Dir)
	assert.Equal(t, event.TypeShowCreated, got[0].Event.Type)
	assert.Equal(t, "tab-a", got[0].Event.Source)
	assert.Equal(t, int64(1), got[0].Event.Version)
	assert.Equal(t, event.TypeFinanceUpdated, got[1].Event.Type)
	assert.Equal(t, int64(2), got[1].Event.Version)

	sent := aOut.lines(t)
	require.Len(t, sent, 2)
	assert.Equal(t, "out", sent[0].Dir)
	assert.Equal(t, "out", sent[1].Dir)

	assert.Equal(t, 2, b.mgr.Stats().QueueSize)
	assert.Equal(t, int64(2), b.mgr.Stats().Received)
}

func TestTabSession_Commands(t *testing.T) {
	out := &lockedBuffer{}
	mgr := syncmgr.New(nil, slot.NewMemory(), syncmgr.WithTabID("tab-a"))
	t.Cleanup(func() { mgr.Close() })
	s := newTabSession(mgr, out)

	err := s.run(context.Background(), strings.NewReader(strings.Join([]string{
		"# comment",
		"",
		`{"type":"shows-updated"}`,
		"status synced",
		"status bogus",
		"force-sync",
		"stats",
		"clear",
		"reload",
		`{"payload":{}}`,
		`{not json`,
	}, "\n")))
	require.NoError(t, err)

	got := out.lines(t)
	dirs := make([]string, 0, len(got))
	for _, o := range got {
		dirs = append(dirs, o.Dir)
	}
	assert.Equal(t, []string{"out", "status", "error", "out", "stats", "clear", "error", "error", "error"}, dirs)

	assert.Equal(t, event.TypeSyncStart, got[3].Event.Type)
	require.NotNil(t, got[4].Stats)
	assert.Equal(t, 2, got[4].Stats.QueueSize)
	assert.Equal(t, status.Syncing, got[4].Stats.Status)
	assert.Contains(t, got[6].Note, `unknown command "reload"`)

	assert.Empty(t, mgr.EventQueue())
}

func TestTabCommand_BroadcastsStdin(t *testing.T) {
	addr := startRelay(t)

	listenerOut := &lockedBuffer{}
	listener := newTabSession(joinTab(t, addr, "tab-listener"), listenerOut)
	listener.subscribe([]event.Type{event.TypeShowDeleted})

	out := &bytes.Buffer{}
	cmd := NewTabCommand(&RootOptions{Format: "text"})
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetIn(strings.NewReader(`{"type":"show-deleted","payload":{"id":"s7"}}` + "\n"))
	cmd.SetArgs([]string{"--url", "ws://" + addr + "/ws", "--tab-id", "tab-cli", "--linger", "200ms"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), `"dir":"out"`)
	assert.Contains(t, out.String(), `"source":"tab-cli"`)

	require.Eventually(t, func() bool {
		return strings.Contains(listenerOut.String(), `"id":"s7"`)
	}, 5*time.Second, 10*time.Millisecond)
}

func TestTabCommand_RelayUnavailable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	cmd := NewTabCommand(&RootOptions{Format: "text"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs([]string{"--url", "ws://" + addr + "/ws", "--tab-id", "tab-cli"})

	err = cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to join relay")
}

func TestSubscribeTypes(t *testing.T) {
	assert.Equal(t, event.KnownTypes, subscribeTypes(nil))
	assert.Equal(t, []event.Type{"show-created", "custom"}, subscribeTypes([]string{"show-created", " custom"}))
}
