package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/tabsync/internal/event"
	"github.com/roach88/tabsync/internal/status"
	"github.com/roach88/tabsync/internal/syncmgr"
	"github.com/roach88/tabsync/internal/transport/wsrelay"
)

const dialTimeout = 10 * time.Second

// TabOptions holds flags for the tab command.
type TabOptions struct {
	*RootOptions
	URL       string
	TabID     string
	Subscribe []string
	Linger    time.Duration
}

// NewTabCommand creates the tab command.
func NewTabCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TabOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "tab",
		Short: "Join the relay as a tab",
		Long: `Join the relay as a tab and exchange events with its siblings.

Every line read from stdin is either an event to broadcast or a command:

  {"type":"shows-updated","payload":{"id":"s1"}}   broadcast an event
  status <idle|syncing|synced|conflict|offline|error>
  force-sync
  stats
  clear

Received events are printed to stdout as JSON lines. The tab leaves when
stdin ends (after --linger) or on SIGINT/SIGTERM.

Examples:
  tabsync tab --url ws://127.0.0.1:8787/ws
  echo '{"type":"show-created","payload":{"id":"s9"}}' | tabsync tab --linger 1s`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTab(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.URL, "url", "", "relay url (defaults to relay.url from config)")
	cmd.Flags().StringVar(&opts.TabID, "tab-id", "", "tab identity (defaults to tab_id from config, then a generated id)")
	cmd.Flags().StringSliceVar(&opts.Subscribe, "subscribe", nil, "event types to print (default: all built-in types)")
	cmd.Flags().DurationVar(&opts.Linger, "linger", 0, "time to keep receiving after stdin ends")

	return cmd
}

func runTab(opts *TabOptions, cmd *cobra.Command) error {
	cfg, err := opts.Config()
	if err != nil {
		return err
	}
	url := opts.URL
	if url == "" {
		url = cfg.Relay.URL
	}
	tabID := opts.TabID
	if tabID == "" {
		tabID = cfg.TabID
	}
	if tabID == "" {
		tabID = event.UUIDv7Generator{}.Generate()
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	client, err := wsrelay.Dial(dialCtx, url, cfg.Channel, tabID)
	cancel()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to join relay", err)
	}

	s, err := openSlot(cfg.Storage)
	if err != nil {
		client.Close()
		return WrapExitError(ExitCommandError, "failed to open storage", err)
	}
	defer closeSlot(s)

	mgr := syncmgr.New(client, s,
		syncmgr.WithTabID(tabID),
		syncmgr.WithQueueCapacity(cfg.Queue.Capacity),
		syncmgr.WithJournalCapacity(cfg.Journal.Capacity),
		syncmgr.WithRestoreOnStart(cfg.Queue.RestoreOnStart))
	defer mgr.Close()

	session := newTabSession(mgr, cmd.OutOrStdout())
	session.subscribe(subscribeTypes(opts.Subscribe))

	opts.formatter(cmd).VerboseLog("joined %s as %s on channel %s", url, tabID, client.Channel())
	slog.Info("tab joined", "tab_id", tabID, "channel", client.Channel())

	if err := session.run(ctx, cmd.InOrStdin()); err != nil {
		return WrapExitError(ExitFailure, "tab session failed", err)
	}

	if opts.Linger > 0 {
		select {
		case <-ctx.Done():
		case <-client.Done():
		case <-time.After(opts.Linger):
		}
	}
	return nil
}

func subscribeTypes(names []string) []event.Type {
	if len(names) == 0 {
		return event.KnownTypes
	}
	types := make([]event.Type, 0, len(names))
	for _, n := range names {
		types = append(types, event.Type(strings.TrimSpace(n)))
	}
	return types
}

// tabSession drives one manager from line input and writes observed
// events as JSON lines.
type tabSession struct {
	mgr *syncmgr.Manager

	mu  sync.Mutex
	enc *json.Encoder
}

// tabOutput is one JSON line written by a tab session.
type tabOutput struct {
	Dir   string           `json:"dir"` // in, out, status, stats, clear, error
	Event *event.SyncEvent `json:"event,omitempty"`
	Stats *syncmgr.Stats   `json:"stats,omitempty"`
	Note  string           `json:"note,omitempty"`
}

func newTabSession(mgr *syncmgr.Manager, out io.Writer) *tabSession {
	return &tabSession{mgr: mgr, enc: json.NewEncoder(out)}
}

func (s *tabSession) write(o tabOutput) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(o); err != nil {
		slog.Warn("failed to write output", "error", err)
	}
}

// subscribe prints every inbound event of the given types. Local echoes
// of this tab's own broadcasts are skipped; run reports those itself.
func (s *tabSession) subscribe(types []event.Type) {
	self := s.mgr.TabID()
	for _, t := range types {
		s.mgr.Subscribe(t, func(e event.SyncEvent) {
			if e.Source == self {
				return
			}
			s.write(tabOutput{Dir: "in", Event: &e})
		})
	}
}

// run consumes lines until EOF or ctx is done.
func (s *tabSession) run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	errCh := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errCh <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errCh:
					return err
				default:
					return nil
				}
			}
			s.handleLine(strings.TrimSpace(line))
		}
	}
}

// handleLine applies one input line. Bad input is reported and skipped.
func (s *tabSession) handleLine(line string) {
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}

	if strings.HasPrefix(line, "{") {
		var req event.Request
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			s.write(tabOutput{Dir: "error", Note: fmt.Sprintf("invalid event: %v", err)})
			return
		}
		e, err := s.mgr.Broadcast(req)
		if err != nil {
			s.write(tabOutput{Dir: "error", Note: err.Error()})
			return
		}
		s.write(tabOutput{Dir: "out", Event: &e})
		return
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "status":
		if len(fields) != 2 {
			s.write(tabOutput{Dir: "error", Note: "usage: status <name>"})
			return
		}
		st, err := status.Parse(fields[1])
		if err == nil {
			err = s.mgr.SetStatus(st)
		}
		if err != nil {
			s.write(tabOutput{Dir: "error", Note: err.Error()})
			return
		}
		s.write(tabOutput{Dir: "status", Note: string(st)})
	case "force-sync":
		e, err := s.mgr.ForceSync()
		if err != nil {
			s.write(tabOutput{Dir: "error", Note: err.Error()})
			return
		}
		s.write(tabOutput{Dir: "out", Event: &e})
	case "stats":
		stats := s.mgr.Stats()
		s.write(tabOutput{Dir: "stats", Stats: &stats})
	case "clear":
		s.mgr.ClearEventQueue()
		s.write(tabOutput{Dir: "clear"})
	default:
		s.write(tabOutput{Dir: "error", Note: fmt.Sprintf("unknown command %q", fields[0])})
	}
}
