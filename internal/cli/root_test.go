package cli

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tabsync/internal/config"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "tabsync", cmd.Use)
	assert.Contains(t, cmd.Long, "conflict resolution")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"simulate"},
		{"relay"},
		{"tab"},
		{"queue", "show"},
		{"queue", "clear"},
		{"resolve"},
	}

	for _, path := range commands {
		t.Run(path[len(path)-1], func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, path[len(path)-1], subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)

	require.NotNil(t, cmd.PersistentFlags().Lookup("log-format"))
}

func TestResolveCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	resolveCmd, _, err := cmd.Find([]string{"resolve"})
	require.NoError(t, err)

	strategyFlag := resolveCmd.Flags().Lookup("strategy")
	require.NotNil(t, strategyFlag)
	assert.Equal(t, "s", strategyFlag.Shorthand)
	assert.Equal(t, "merge", strategyFlag.DefValue)
}

func TestRoot_InvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--format", "xml", "queue", "show"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRoot_BadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tabsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte("queue:\n  capacity: 0\n"), 0644))

	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--config", path, "queue", "show"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRootOptions_ConfigDefaultsWithoutPath(t *testing.T) {
	opts := &RootOptions{}
	cfg, err := opts.Config()
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestRootOptions_SetupLogging(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	t.Run("json_override", func(t *testing.T) {
		buf := &bytes.Buffer{}
		opts := &RootOptions{LogFormat: "json", logOut: buf}
		opts.setupLogging(config.Log{Level: "info", Format: "text"})

		slog.Info("tab joined", "tab_id", "tab-a")
		slog.Debug("hidden")
		assert.Contains(t, buf.String(), `"msg":"tab joined"`)
		assert.Contains(t, buf.String(), `"tab_id":"tab-a"`)
		assert.NotContains(t, buf.String(), "hidden")
	})

	t.Run("verbose_lowers_level", func(t *testing.T) {
		buf := &bytes.Buffer{}
		opts := &RootOptions{Verbose: true, logOut: buf}
		opts.setupLogging(config.Log{Level: "warn", Format: "text"})

		slog.Debug("journal", "message", "Sync manager initialized")
		assert.Contains(t, buf.String(), "level=DEBUG")
		assert.Contains(t, buf.String(), "msg=journal")
	})
}
