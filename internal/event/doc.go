// Package event defines the sync events exchanged between tabs.
//
// A SyncEvent is only ever produced by stamping a Request: the publisher
// fills in its tab identity (Source), the wall-clock time in milliseconds
// (Timestamp) and the next value of its version Clock (Version). Requests are
// built with one constructor per event type (ShowsUpdated, SyncStart, ...)
// or with Custom for collaborator-defined types.
//
// Ordering: versions are monotonic per publisher only. There is no total
// order across tabs; conflicting copies of a record are settled by the
// conflict package, never by delivery order.
package event
