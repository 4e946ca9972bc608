// Package store provides a SQLite-backed durable slot.
//
// Each slot key maps to one row in the slots table; Put overwrites the row
// wholesale, matching the browser-storage semantics the sync engine expects
// (last writer wins, no history).
//
// # Database Configuration
//
//   - WAL mode: concurrent readers while one tab writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//
// Several processes (tabs) may open the same database file; SQLite's
// locking serializes their writes.
package store
