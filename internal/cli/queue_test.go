package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tabsync/internal/config"
	"github.com/roach88/tabsync/internal/event"
	"github.com/roach88/tabsync/internal/syncmgr"
	"github.com/roach88/tabsync/internal/testutil"
	"github.com/roach88/tabsync/internal/transport"
)

// writeStorageConfig writes a YAML config selecting driver at path.
func writeStorageConfig(t *testing.T, driver, path string) string {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "tabsync.yaml")
	body := fmt.Sprintf("storage:\n  driver: %s\n  path: %s\n", driver, path)
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0644))
	return cfgPath
}

// seedQueue broadcasts two events from tab-a into the configured storage.
func seedQueue(t *testing.T, cfgPath string) {
	t.Helper()
	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	s, err := openSlot(cfg.Storage)
	require.NoError(t, err)

	clock := testutil.NewFakeClock()
	mgr := syncmgr.New(transport.Local{}, s,
		syncmgr.WithTabID("tab-a"),
		syncmgr.WithNow(clock.Now))
	_, err = mgr.Broadcast(event.ShowCreated(map[string]any{"id": "s1"}))
	require.NoError(t, err)
	_, err = mgr.Broadcast(event.ShowDeleted("s0"))
	require.NoError(t, err)
	require.NoError(t, mgr.Close())
	require.NoError(t, s.Close())
}

func executeQueue(t *testing.T, format, cfgPath string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewQueueCommand(&RootOptions{Format: format, ConfigPath: cfgPath})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

type queueShowResponse struct {
	Status string          `json:"status"`
	Data   QueueShowResult `json:"data"`
}

func TestQueueShow_SQLite(t *testing.T) {
	cfgPath := writeStorageConfig(t, config.DriverSQLite, filepath.Join(t.TempDir(), "tabsync.db"))
	seedQueue(t, cfgPath)

	out, err := executeQueue(t, "json", cfgPath, "show", "--journal")
	require.NoError(t, err)

	var resp queueShowResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, config.DriverSQLite, resp.Data.Driver)
	require.Len(t, resp.Data.Events, 2)
	assert.Equal(t, event.TypeShowCreated, resp.Data.Events[0].Type)
	assert.Equal(t, event.TypeShowDeleted, resp.Data.Events[1].Type)
	assert.Equal(t, int64(1), resp.Data.Events[0].Version)
	assert.Equal(t, int64(2), resp.Data.Events[1].Version)
	assert.Equal(t, "tab-a", resp.Data.Events[1].Source)

	require.Len(t, resp.Data.Journal, 2)
	assert.Equal(t, "Sync manager initialized", resp.Data.Journal[0].Message)
	assert.Equal(t, "Sync manager destroyed", resp.Data.Journal[1].Message)

	require.Len(t, resp.Data.Slots, 2)
	assert.Equal(t, syncmgr.JournalKey, resp.Data.Slots[0].Key)
	assert.Equal(t, syncmgr.QueueKey, resp.Data.Slots[1].Key)
	assert.Positive(t, resp.Data.Slots[1].Size)
}

func TestQueueShow_Text(t *testing.T) {
	cfgPath := writeStorageConfig(t, config.DriverSQLite, filepath.Join(t.TempDir(), "tabsync.db"))
	seedQueue(t, cfgPath)

	out, err := executeQueue(t, "text", cfgPath, "show")
	require.NoError(t, err)
	assert.Contains(t, out, "2 queued events (sqlite)")
	assert.Contains(t, out, `v1 show-created`)
	assert.Contains(t, out, `{"id":"s0"}`)
	assert.NotContains(t, out, "journal entries")
}

func TestQueueShow_Pebble(t *testing.T) {
	cfgPath := writeStorageConfig(t, config.DriverPebble, filepath.Join(t.TempDir(), "pebble"))
	seedQueue(t, cfgPath)

	out, err := executeQueue(t, "json", cfgPath, "show")
	require.NoError(t, err)

	var resp queueShowResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, config.DriverPebble, resp.Data.Driver)
	assert.Len(t, resp.Data.Events, 2)
	assert.Empty(t, resp.Data.Journal)
	assert.Empty(t, resp.Data.Slots)
}

func TestQueueShow_MemoryIsEmpty(t *testing.T) {
	out, err := executeQueue(t, "text", "", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "0 queued events (memory)")
}

func TestQueueClear(t *testing.T) {
	cfgPath := writeStorageConfig(t, config.DriverSQLite, filepath.Join(t.TempDir(), "tabsync.db"))
	seedQueue(t, cfgPath)

	out, err := executeQueue(t, "text", cfgPath, "clear", "--journal")
	require.NoError(t, err)
	assert.Contains(t, out, "Cleared 2 queued events")
	assert.Contains(t, out, "Cleared 2 journal entries")

	out, err = executeQueue(t, "json", cfgPath, "show", "--journal")
	require.NoError(t, err)
	var resp queueShowResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Empty(t, resp.Data.Events)
	assert.Empty(t, resp.Data.Journal)
}

func TestQueueClear_KeepsJournalByDefault(t *testing.T) {
	cfgPath := writeStorageConfig(t, config.DriverSQLite, filepath.Join(t.TempDir(), "tabsync.db"))
	seedQueue(t, cfgPath)

	_, err := executeQueue(t, "text", cfgPath, "clear")
	require.NoError(t, err)

	out, err := executeQueue(t, "json", cfgPath, "show", "--journal")
	require.NoError(t, err)
	var resp queueShowResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Empty(t, resp.Data.Events)
	assert.Len(t, resp.Data.Journal, 2)
}

func TestQueueShow_StorageError(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeStorageConfig(t, config.DriverSQLite, filepath.Join(dir, "missing", "tabsync.db"))

	_, err := executeQueue(t, "text", cfgPath, "show")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to open storage")
}
