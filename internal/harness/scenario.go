package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tabsync/internal/conflict"
	"github.com/roach88/tabsync/internal/status"
)

// Scenario is a scripted multi-tab session.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description"`

	// Channel names the shared hub. Defaults to "harness".
	Channel string `yaml:"channel,omitempty"`

	// Tabs lists the tab ids, created in order before the first step.
	Tabs []string `yaml:"tabs"`

	// QueueCapacity overrides the per-tab queue bound.
	QueueCapacity int `yaml:"queue_capacity,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`
}

// Step performs exactly one action. Tab is required for everything but
// advance.
type Step struct {
	Tab string `yaml:"tab,omitempty"`

	Subscribe   string         `yaml:"subscribe,omitempty"`
	Unsubscribe string         `yaml:"unsubscribe,omitempty"`
	Broadcast   *BroadcastStep `yaml:"broadcast,omitempty"`
	Resolve     *ResolveStep   `yaml:"resolve,omitempty"`
	SetStatus   string         `yaml:"set_status,omitempty"`
	ForceSync   bool           `yaml:"force_sync,omitempty"`
	ClearQueue  bool           `yaml:"clear_queue,omitempty"`

	// Advance moves the shared clock, e.g. "250ms".
	Advance string `yaml:"advance,omitempty"`
}

// BroadcastStep publishes one event.
type BroadcastStep struct {
	Type    string `yaml:"type"`
	Payload any    `yaml:"payload,omitempty"`
}

// ResolveStep resolves one conflict. Expect, when set, must equal the
// resolved record exactly.
type ResolveStep struct {
	ID       string         `yaml:"id"`
	Strategy string         `yaml:"strategy"`
	Local    map[string]any `yaml:"local"`
	Remote   map[string]any `yaml:"remote"`
	Expect   map[string]any `yaml:"expect,omitempty"`
}

// Assertion checks final tab state or the trace.
type Assertion struct {
	Type   string `yaml:"type"`
	Tab    string `yaml:"tab"`
	Event  string `yaml:"event,omitempty"`
	Count  int    `yaml:"count,omitempty"`
	Status string `yaml:"status,omitempty"`
}

// Assertion type constants.
const (
	AssertReceivedCount = "received_count"
	AssertQueueSize     = "queue_size"
	AssertRestoredSize  = "restored_size"
	AssertStatus        = "status"
	AssertConflictCount = "conflict_count"
)

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Tabs) == 0 {
		return fmt.Errorf("tabs list is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if s.QueueCapacity < 0 {
		return fmt.Errorf("queue_capacity must be positive")
	}

	tabs := make(map[string]bool, len(s.Tabs))
	for i, id := range s.Tabs {
		if id == "" {
			return fmt.Errorf("tabs[%d]: empty tab id", i)
		}
		if tabs[id] {
			return fmt.Errorf("tabs[%d]: duplicate tab id %q", i, id)
		}
		tabs[id] = true
	}

	for i, step := range s.Steps {
		if err := validateStep(step, tabs); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a, tabs); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step, tabs map[string]bool) error {
	actions := 0
	for _, set := range []bool{
		step.Subscribe != "",
		step.Unsubscribe != "",
		step.Broadcast != nil,
		step.Resolve != nil,
		step.SetStatus != "",
		step.ForceSync,
		step.ClearQueue,
		step.Advance != "",
	} {
		if set {
			actions++
		}
	}
	if actions != 1 {
		return fmt.Errorf("exactly one action is required, got %d", actions)
	}

	if step.Advance != "" {
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return fmt.Errorf("advance: %w", err)
		}
		if d < 0 {
			return fmt.Errorf("advance: negative duration %s", step.Advance)
		}
		return nil
	}

	if !tabs[step.Tab] {
		return fmt.Errorf("unknown tab %q", step.Tab)
	}

	switch {
	case step.Broadcast != nil && step.Broadcast.Type == "":
		return fmt.Errorf("broadcast: type is required")
	case step.Resolve != nil:
		if step.Resolve.ID == "" {
			return fmt.Errorf("resolve: id is required")
		}
		if _, err := conflict.ParseStrategy(step.Resolve.Strategy); err != nil {
			return fmt.Errorf("resolve: %w", err)
		}
	case step.SetStatus != "":
		if _, err := status.Parse(step.SetStatus); err != nil {
			return fmt.Errorf("set_status: %w", err)
		}
	}
	return nil
}

func validateAssertion(a Assertion, tabs map[string]bool) error {
	if !tabs[a.Tab] {
		return fmt.Errorf("unknown tab %q", a.Tab)
	}

	switch a.Type {
	case AssertReceivedCount:
		if a.Event == "" {
			return fmt.Errorf("event is required for received_count")
		}
	case AssertQueueSize, AssertRestoredSize, AssertConflictCount:
	case AssertStatus:
		if _, err := status.Parse(a.Status); err != nil {
			return err
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}

	if a.Count < 0 {
		return fmt.Errorf("count must be non-negative")
	}
	return nil
}
