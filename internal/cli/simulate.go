package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tabsync/internal/harness"
	"github.com/roach88/tabsync/internal/record"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	Trace bool // print the trace in text mode
}

// ScenarioReport is the outcome of one scenario file.
type ScenarioReport struct {
	Name   string                      `json:"name"`
	File   string                      `json:"file"`
	Pass   bool                        `json:"pass"`
	Errors []string                    `json:"errors,omitempty"`
	Trace  []harness.TraceEvent        `json:"trace"`
	Tabs   map[string]harness.TabState `json:"tabs"`
}

// SimulateResult aggregates every scenario run by one invocation.
type SimulateResult struct {
	Scenarios []ScenarioReport `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate <scenario.yaml|dir>...",
		Short: "Run multi-tab scenarios in process",
		Long: `Run one or more multi-tab scenarios through the in-process harness.

Each tab gets its own sync manager joined to a shared hub; steps run in
order and assertions are checked against the final state. A directory
argument runs every .yaml file inside it.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (unreadable or invalid scenario)

Examples:
  tabsync simulate ./scenarios/two_tabs.yaml
  tabsync simulate ./scenarios --trace
  tabsync simulate ./scenarios --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Trace, "trace", false, "print the full trace for each scenario")

	return cmd
}

func runSimulate(opts *SimulateOptions, args []string, cmd *cobra.Command) error {
	files, err := scenarioFiles(args)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}
	if len(files) == 0 {
		return NewExitError(ExitCommandError, "no scenario files found")
	}

	result := SimulateResult{Scenarios: make([]ScenarioReport, 0, len(files))}
	for _, file := range files {
		scenario, err := harness.LoadScenario(file)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("invalid scenario %s", file), err)
		}
		run, err := harness.Run(scenario)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("scenario %s aborted", scenario.Name), err)
		}

		result.Scenarios = append(result.Scenarios, ScenarioReport{
			Name:   scenario.Name,
			File:   file,
			Pass:   run.Pass,
			Errors: run.Errors,
			Trace:  run.Trace,
			Tabs:   run.Tabs,
		})
		result.Total++
		if run.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	f := opts.formatter(cmd)
	if err := f.Render(result, func(w io.Writer) { writeSimulateText(w, result, opts.Trace) }); err != nil {
		return err
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", result.Failed, result.Total))
	}
	return nil
}

// scenarioFiles expands directories to their .yaml/.yml files, sorted.
func scenarioFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		var found []string
		for _, e := range entries {
			ext := strings.ToLower(filepath.Ext(e.Name()))
			if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
				continue
			}
			found = append(found, filepath.Join(arg, e.Name()))
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	return files, nil
}

func writeSimulateText(w io.Writer, result SimulateResult, withTrace bool) {
	for _, s := range result.Scenarios {
		mark := "PASS"
		if !s.Pass {
			mark = "FAIL"
		}
		fmt.Fprintf(w, "%s %s (%d trace events)\n", mark, s.Name, len(s.Trace))
		for _, e := range s.Errors {
			fmt.Fprintf(w, "  - %s\n", e)
		}
		if withTrace {
			for _, e := range s.Trace {
				fmt.Fprintf(w, "  %s\n", formatTraceLine(e))
			}
		}
		tabs := make([]string, 0, len(s.Tabs))
		for id := range s.Tabs {
			tabs = append(tabs, id)
		}
		sort.Strings(tabs)
		for _, id := range tabs {
			st := s.Tabs[id]
			fmt.Fprintf(w, "  %s: status=%s queue=%d conflicts=%d sent=%d received=%d\n",
				id, st.Status, st.QueueSize, st.ConflictCount, st.Broadcasts, st.Received)
		}
	}
	fmt.Fprintf(w, "\n%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
}

func formatTraceLine(e harness.TraceEvent) string {
	switch e.Kind {
	case harness.KindBroadcast, harness.KindDeliver:
		return fmt.Sprintf("#%d %s %s %s v%d from %s %s",
			e.Seq, e.Tab, e.Kind, e.Type, e.Version, e.Source, record.CanonicalString(e.Payload))
	case harness.KindResolve:
		return fmt.Sprintf("#%d %s resolve %s (%s) -> %s",
			e.Seq, e.Tab, e.RecordID, e.Strategy, record.CanonicalString(e.Result))
	case harness.KindStatus:
		return fmt.Sprintf("#%d %s status %s", e.Seq, e.Tab, e.Status)
	default:
		return fmt.Sprintf("#%d %s %s", e.Seq, e.Tab, e.Kind)
	}
}
