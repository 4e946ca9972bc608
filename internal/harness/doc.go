// Package harness runs multi-tab sync scenarios in one process.
//
// Every tab in a scenario gets its own syncmgr.Manager joined to a shared
// in-process hub with synchronous delivery, so a broadcast reaches every
// sibling before the next step runs. All tabs share one in-memory SQLite
// slot, like tabs of one origin sharing browser storage.
//
// # Scenario Format
//
//	name: show_edit_across_tabs
//	description: "Tab B sees tab A's show edit"
//	tabs: [tab-a, tab-b]
//	steps:
//	  - tab: tab-b
//	    subscribe: shows-updated
//	  - tab: tab-a
//	    broadcast: { type: shows-updated, payload: { id: s1 } }
//	  - advance: 250ms
//	  - tab: tab-a
//	    resolve:
//	      id: s1
//	      strategy: merge
//	      local:  { __version: 1, __modifiedAt: 100, budget: 1000 }
//	      remote: { __version: 2, __modifiedAt: 200, budget: 500 }
//	      expect: { __version: 2, __modifiedAt: 200, budget: 1000 }
//	  - tab: tab-a
//	    set_status: synced
//	assertions:
//	  - type: received_count
//	    tab: tab-b
//	    event: shows-updated
//	    count: 1
//
// Each step does exactly one thing: subscribe, unsubscribe, broadcast,
// resolve, set_status, force_sync, clear_queue or advance.
//
// # Assertion Types
//
//   - received_count: a tab's subscribers saw an event type N times
//   - queue_size: a tab's in-memory queue length
//   - restored_size: entries RestoreQueueFromStorage returns for a tab
//   - status: a tab's current status
//   - conflict_count: a tab's cumulative resolution count
//
// # Deterministic Testing
//
// Runs use a fake wall clock starting at testutil.DefaultEpoch and the
// scenario's tab ids, so traces are identical across runs and can be
// compared against golden files.
package harness
