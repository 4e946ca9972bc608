package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/tabsync/internal/config"
	"github.com/roach88/tabsync/internal/event"
	"github.com/roach88/tabsync/internal/queue"
	"github.com/roach88/tabsync/internal/record"
	"github.com/roach88/tabsync/internal/store"
	"github.com/roach88/tabsync/internal/syncmgr"
)

// QueueOptions holds flags shared by the queue subcommands.
type QueueOptions struct {
	*RootOptions
	Journal bool // also act on the diagnostic journal
}

// QueueShowResult is the persisted state reported by queue show.
type QueueShowResult struct {
	Driver  string                 `json:"driver"`
	Path    string                 `json:"path,omitempty"`
	Events  []event.SyncEvent      `json:"events"`
	Journal []syncmgr.JournalEntry `json:"journal,omitempty"`
	Slots   []store.Entry          `json:"slots,omitempty"` // sqlite only
}

// slotLister is implemented by slots that can enumerate their keys.
type slotLister interface {
	Entries(ctx context.Context) ([]store.Entry, error)
}

// NewQueueCommand creates the queue command group.
func NewQueueCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueueOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect or reset the persisted event queue",
		Long: `Inspect or reset the event queue persisted in the configured storage.

The queue lives under the __SYNC_QUEUE__ key and the diagnostic journal
under __SYNC_LOGS__. Both are shared by every tab using the same storage.

Examples:
  tabsync queue show --config tabsync.yaml
  tabsync queue show --journal --format json
  tabsync queue clear --journal`,
	}
	cmd.PersistentFlags().BoolVar(&opts.Journal, "journal", false, "include the diagnostic journal")

	cmd.AddCommand(&cobra.Command{
		Use:           "show",
		Short:         "Print the persisted queue",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueueShow(opts, cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "clear",
		Short:         "Remove the persisted queue",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueueClear(opts, cmd)
		},
	})

	return cmd
}

func runQueueShow(opts *QueueOptions, cmd *cobra.Command) error {
	cfg, err := opts.Config()
	if err != nil {
		return err
	}
	s, err := openSlot(cfg.Storage)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open storage", err)
	}
	defer closeSlot(s)

	events := queue.New(s, syncmgr.QueueKey,
		queue.WithCapacity[event.SyncEvent](cfg.Queue.Capacity),
		queue.WithValidator(event.SyncEvent.Validate))

	result := QueueShowResult{
		Driver: cfg.Storage.Driver,
		Events: events.Restore(),
	}
	if cfg.Storage.Driver != config.DriverMemory {
		result.Path = cfg.Storage.Path
	}
	if opts.Journal {
		journal := queue.New(s, syncmgr.JournalKey,
			queue.WithCapacity[syncmgr.JournalEntry](cfg.Journal.Capacity))
		result.Journal = journal.Restore()
	}
	if lister, ok := s.(slotLister); ok {
		entries, err := lister.Entries(cmd.Context())
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list slots", err)
		}
		result.Slots = entries
	}

	return opts.formatter(cmd).Render(result, func(w io.Writer) {
		writeQueueText(w, result, opts.Journal)
	})
}

func writeQueueText(w io.Writer, result QueueShowResult, withJournal bool) {
	for _, e := range result.Slots {
		fmt.Fprintf(w, "slot %s: %d bytes, updated %s\n", e.Key, e.Size, e.UpdatedAt.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(w, "%d queued events (%s)\n", len(result.Events), result.Driver)
	for _, e := range result.Events {
		fmt.Fprintf(w, "  %s v%d %-18s %s %s\n",
			e.Time().UTC().Format(time.RFC3339Nano), e.Version, e.Type, e.Source, record.CanonicalString(e.Payload))
	}
	if !withJournal {
		return
	}
	fmt.Fprintf(w, "%d journal entries\n", len(result.Journal))
	for _, j := range result.Journal {
		fmt.Fprintf(w, "  %s %s %s\n", j.Timestamp.UTC().Format(time.RFC3339Nano), j.TabID, j.Message)
	}
}

func runQueueClear(opts *QueueOptions, cmd *cobra.Command) error {
	cfg, err := opts.Config()
	if err != nil {
		return err
	}
	s, err := openSlot(cfg.Storage)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open storage", err)
	}
	defer closeSlot(s)

	events := queue.New[event.SyncEvent](s, syncmgr.QueueKey)
	cleared := len(events.Restore())
	events.Clear()
	if events.PersistFailures() > 0 {
		return NewExitError(ExitCommandError, "failed to clear persisted queue")
	}

	data := map[string]any{"cleared": cleared}
	if opts.Journal {
		journal := queue.New[syncmgr.JournalEntry](s, syncmgr.JournalKey)
		data["journal_cleared"] = len(journal.Restore())
		journal.Clear()
		if journal.PersistFailures() > 0 {
			return NewExitError(ExitCommandError, "failed to clear persisted journal")
		}
	}

	return opts.formatter(cmd).Render(data, func(w io.Writer) {
		fmt.Fprintf(w, "Cleared %d queued events\n", cleared)
		if n, ok := data["journal_cleared"]; ok {
			fmt.Fprintf(w, "Cleared %d journal entries\n", n)
		}
	})
}
