// Package syncmgr is the per-tab sync engine: one Manager per tab, created
// at startup and passed to whatever needs it.
//
// A Manager owns the tab's bounded event queue (slot key "__SYNC_QUEUE__"),
// its diagnostic journal ("__SYNC_LOGS__"), the event bus, the conflict
// resolver and the status machine. It is the only type application code
// needs:
//
//	mgr := syncmgr.New(endpoint, slot, syncmgr.WithTabID(endpoint.TabID()))
//	defer mgr.Close()
//
//	unsubscribe := mgr.Subscribe(event.TypeShowsUpdated, reloadShows)
//	defer unsubscribe()
//
//	mgr.Broadcast(event.ShowsUpdated(map[string]any{"id": "s1"}))
//
// No Manager method blocks on other tabs. Transport and persistence
// failures are logged and recovered locally; the caller only sees errors
// for its own mistakes (empty event type, unknown strategy or status).
package syncmgr
