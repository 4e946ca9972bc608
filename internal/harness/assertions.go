package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/tabsync/internal/syncmgr"
)

// AssertionContext gives assertions access to the live tabs.
type AssertionContext struct {
	Tabs map[string]*syncmgr.Manager
}

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Tab      string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s (tab %s)\n", e.Type, e.Tab)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s %s\n", ev.Seq, ev.Tab, ev.Kind, ev.Type)
		}
	}
	return buf.String()
}

// assertReceivedCount counts deliveries of one event type to one tab.
func assertReceivedCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Kind == KindDeliver && ev.Tab == a.Tab && ev.Type == a.Event {
			count++
		}
	}
	if count == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertReceivedCount,
		Tab:      a.Tab,
		Expected: fmt.Sprintf("%s delivered %d time(s)", a.Event, a.Count),
		Actual:   fmt.Sprintf("delivered %d time(s)", count),
		Trace:    trace,
	}
}

func assertCount(kind, tab string, want, got int) error {
	if want == got {
		return nil
	}
	return &AssertionError{
		Type:     kind,
		Tab:      tab,
		Expected: fmt.Sprintf("%d", want),
		Actual:   fmt.Sprintf("%d", got),
	}
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string

	for i, a := range assertions {
		mgr, ok := actx.Tabs[a.Tab]
		if !ok {
			errs = append(errs, fmt.Sprintf("assertion %d: unknown tab %q", i, a.Tab))
			continue
		}

		var err error
		switch a.Type {
		case AssertReceivedCount:
			err = assertReceivedCount(result.Trace, a)
		case AssertQueueSize:
			err = assertCount(a.Type, a.Tab, a.Count, len(mgr.EventQueue()))
		case AssertRestoredSize:
			err = assertCount(a.Type, a.Tab, a.Count, len(mgr.RestoreQueueFromStorage()))
		case AssertConflictCount:
			err = assertCount(a.Type, a.Tab, a.Count, mgr.Stats().ConflictCount)
		case AssertStatus:
			if got := string(mgr.Status()); got != a.Status {
				err = &AssertionError{Type: a.Type, Tab: a.Tab, Expected: a.Status, Actual: got}
			}
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}

		if err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}
