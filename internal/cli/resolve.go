package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tabsync/internal/conflict"
	"github.com/roach88/tabsync/internal/record"
)

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	*RootOptions
	ID             string
	Local          string
	Remote         string
	Strategy       string
	FailOnConflict bool
}

// ResolveResult is the outcome of one resolve invocation.
type ResolveResult struct {
	ID          string            `json:"id"`
	Conflict    bool              `json:"conflict"`
	Strategy    conflict.Strategy `json:"strategy"`
	Result      record.Record     `json:"result"`
	Fingerprint string            `json:"fingerprint"`
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Detect and resolve a conflict between two record copies",
		Long: `Compare a local and a remote copy of a record and resolve them.

A conflict exists when both __version and __modifiedAt differ. The
strategy decides the result: local keeps the local copy, remote takes the
remote copy, merge keeps local business fields (numeric fields take the
larger value) and takes metadata from the more recently modified copy.

Exit codes:
  0 - Resolved
  1 - Conflict detected and --fail-on-conflict set
  2 - Command error (unreadable record, unknown strategy)

Examples:
  tabsync resolve --local a.json --remote b.json
  tabsync resolve --local a.json --remote b.json --strategy remote --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ID, "id", "record", "record id for the resolution log")
	cmd.Flags().StringVar(&opts.Local, "local", "", "path to the local record JSON (required)")
	cmd.Flags().StringVar(&opts.Remote, "remote", "", "path to the remote record JSON (required)")
	cmd.Flags().StringVarP(&opts.Strategy, "strategy", "s", string(conflict.StrategyMerge), "resolution strategy (local|remote|merge)")
	cmd.Flags().BoolVar(&opts.FailOnConflict, "fail-on-conflict", false, "exit 1 when the copies conflict")
	_ = cmd.MarkFlagRequired("local")
	_ = cmd.MarkFlagRequired("remote")

	return cmd
}

func runResolve(opts *ResolveOptions, cmd *cobra.Command) error {
	strategy, err := conflict.ParseStrategy(opts.Strategy)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid strategy", err)
	}
	local, err := readRecord(opts.Local)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read local record", err)
	}
	remote, err := readRecord(opts.Remote)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read remote record", err)
	}

	resolver := conflict.NewResolver()
	detected := conflict.Detect(local, remote)
	merged, err := resolver.Resolve(opts.ID, local, remote, strategy)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to resolve", err)
	}

	entry := resolver.Log()[0]
	result := ResolveResult{
		ID:          opts.ID,
		Conflict:    detected,
		Strategy:    strategy,
		Result:      merged,
		Fingerprint: entry.Fingerprint,
	}

	if err := opts.formatter(cmd).Render(result, func(w io.Writer) {
		fmt.Fprintf(w, "conflict: %t\n", result.Conflict)
		fmt.Fprintf(w, "strategy: %s\n", result.Strategy)
		fmt.Fprintf(w, "result:   %s\n", record.CanonicalString(result.Result))
		fmt.Fprintf(w, "sha256:   %s\n", result.Fingerprint)
	}); err != nil {
		return err
	}

	if detected && opts.FailOnConflict {
		return NewExitError(ExitFailure, fmt.Sprintf("conflict detected for %s", opts.ID))
	}
	return nil
}

func readRecord(path string) (record.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return record.Decode(data)
}
