package harness

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/tabsync/internal/conflict"
	"github.com/roach88/tabsync/internal/event"
	"github.com/roach88/tabsync/internal/record"
	"github.com/roach88/tabsync/internal/status"
	"github.com/roach88/tabsync/internal/store"
	"github.com/roach88/tabsync/internal/syncmgr"
	"github.com/roach88/tabsync/internal/testutil"
	"github.com/roach88/tabsync/internal/transport"
)

// DefaultChannel names the hub when a scenario sets none.
const DefaultChannel = "harness"

// Harness executes one scenario.
type Harness struct {
	clock  *testutil.FakeClock
	hub    *transport.Hub
	store  *store.Store
	tabs   map[string]*tabRun
	result *Result
}

type tabRun struct {
	id   string
	mgr  *syncmgr.Manager
	subs map[event.Type]func()
}

// Run executes a scenario and returns the result.
//
// Each run gets a fresh in-memory SQLite slot, a fresh hub and a fake clock.
// Logs are discarded for the duration of the run.
//
// Execution flow:
// 1. Create the shared slot and hub
// 2. Create one manager per tab, in declaration order
// 3. Execute steps
// 4. Evaluate assertions
// 5. Close every tab
func Run(scenario *Scenario) (*Result, error) {
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer slog.SetDefault(prev)

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	channel := scenario.Channel
	if channel == "" {
		channel = DefaultChannel
	}

	h := &Harness{
		clock:  testutil.NewFakeClock(),
		hub:    transport.NewHub(channel, transport.WithSyncDelivery()),
		store:  st,
		tabs:   make(map[string]*tabRun, len(scenario.Tabs)),
		result: NewResult(),
	}
	defer h.closeTabs()

	for _, id := range scenario.Tabs {
		if err := h.openTab(id, scenario.QueueCapacity); err != nil {
			return nil, err
		}
	}

	for i, step := range scenario.Steps {
		if err := h.executeStep(step); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}
	h.result.numberTrace()

	for _, errMsg := range EvaluateAssertions(h.result, scenario.Assertions, &AssertionContext{Tabs: h.managers()}) {
		h.result.AddError(errMsg)
	}

	for id, tab := range h.tabs {
		stats := tab.mgr.Stats()
		h.result.Tabs[id] = TabState{
			Status:        string(stats.Status),
			QueueSize:     stats.QueueSize,
			ConflictCount: stats.ConflictCount,
			Broadcasts:    stats.Broadcasts,
			Received:      stats.Received,
		}
	}

	return h.result, nil
}

func (h *Harness) openTab(id string, capacity int) error {
	ep, err := h.hub.Join(id)
	if err != nil {
		return fmt.Errorf("open tab: %w", err)
	}
	opts := []syncmgr.Option{
		syncmgr.WithTabID(id),
		syncmgr.WithNow(h.clock.Now),
	}
	if capacity > 0 {
		opts = append(opts, syncmgr.WithQueueCapacity(capacity))
	}
	h.tabs[id] = &tabRun{
		id:   id,
		mgr:  syncmgr.New(ep, h.store, opts...),
		subs: make(map[event.Type]func()),
	}
	return nil
}

func (h *Harness) closeTabs() {
	for _, tab := range h.tabs {
		_ = tab.mgr.Close()
	}
}

func (h *Harness) managers() map[string]*syncmgr.Manager {
	out := make(map[string]*syncmgr.Manager, len(h.tabs))
	for id, tab := range h.tabs {
		out[id] = tab.mgr
	}
	return out
}

func (h *Harness) executeStep(step Step) error {
	if step.Advance != "" {
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return fmt.Errorf("advance: %w", err)
		}
		h.clock.Advance(d)
		return nil
	}

	tab, ok := h.tabs[step.Tab]
	if !ok {
		return fmt.Errorf("unknown tab %q", step.Tab)
	}

	switch {
	case step.Subscribe != "":
		h.subscribe(tab, event.Type(step.Subscribe))
	case step.Unsubscribe != "":
		t := event.Type(step.Unsubscribe)
		if unsubscribe, ok := tab.subs[t]; ok {
			unsubscribe()
			delete(tab.subs, t)
		}
	case step.Broadcast != nil:
		return h.broadcast(tab, event.Custom(event.Type(step.Broadcast.Type), step.Broadcast.Payload))
	case step.Resolve != nil:
		return h.resolve(tab, step.Resolve)
	case step.SetStatus != "":
		if err := tab.mgr.SetStatus(status.Status(step.SetStatus)); err != nil {
			return err
		}
		h.result.Trace = append(h.result.Trace, TraceEvent{Tab: tab.id, Kind: KindStatus, Status: step.SetStatus})
	case step.ForceSync:
		pos := len(h.result.Trace)
		e, err := tab.mgr.ForceSync()
		if err != nil {
			return err
		}
		h.result.insertTrace(pos, TraceEvent{Tab: tab.id, Kind: KindStatus, Status: string(status.Syncing)})
		h.result.insertTrace(pos+1, eventTrace(tab.id, KindBroadcast, e))
	case step.ClearQueue:
		tab.mgr.ClearEventQueue()
		h.result.Trace = append(h.result.Trace, TraceEvent{Tab: tab.id, Kind: KindClear})
	}
	return nil
}

// subscribe records every delivery to tab for type t in the trace.
// Subscribing twice to one type replaces the first subscription.
func (h *Harness) subscribe(tab *tabRun, t event.Type) {
	if unsubscribe, ok := tab.subs[t]; ok {
		unsubscribe()
	}
	tab.subs[t] = tab.mgr.Subscribe(t, func(e event.SyncEvent) {
		h.result.Trace = append(h.result.Trace, eventTrace(tab.id, KindDeliver, e))
	})
}

// broadcast records the broadcast ahead of the deliveries it caused.
func (h *Harness) broadcast(tab *tabRun, req event.Request) error {
	pos := len(h.result.Trace)
	e, err := tab.mgr.Broadcast(req)
	if err != nil {
		return err
	}
	h.result.insertTrace(pos, eventTrace(tab.id, KindBroadcast, e))
	return nil
}

func (h *Harness) resolve(tab *tabRun, step *ResolveStep) error {
	strategy, err := conflict.ParseStrategy(step.Strategy)
	if err != nil {
		return err
	}
	result, err := tab.mgr.ResolveConflict(step.ID, record.Record(step.Local), record.Record(step.Remote), strategy)
	if err != nil {
		return err
	}

	h.result.Trace = append(h.result.Trace, TraceEvent{
		Tab:      tab.id,
		Kind:     KindResolve,
		RecordID: step.ID,
		Strategy: step.Strategy,
		Result:   map[string]any(result),
	})

	if step.Expect != nil {
		want := record.CanonicalString(step.Expect)
		got := record.CanonicalString(result)
		if want != got {
			h.result.AddError(fmt.Sprintf("resolve %s (%s): expected %s, got %s", step.ID, step.Strategy, want, got))
		}
	}
	return nil
}

func eventTrace(tabID, kind string, e event.SyncEvent) TraceEvent {
	return TraceEvent{
		Tab:       tabID,
		Kind:      kind,
		Type:      string(e.Type),
		Source:    e.Source,
		Version:   e.Version,
		Timestamp: e.Timestamp,
		Payload:   e.Payload,
	}
}
