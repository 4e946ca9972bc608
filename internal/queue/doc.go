// Package queue implements a size-bounded, FIFO-evicting log that is
// mirrored to a durable slot after every mutation.
//
// The in-memory entries are authoritative for the running tab. The slot copy
// exists for best-effort recovery after a reload: write failures are logged
// and swallowed, and unreadable slot data restores as an empty log.
//
// Invariants:
//   - Len() <= capacity after every Append
//   - after Append or Clear returns, the slot holds exactly the in-memory
//     entries (or nothing), unless the write itself failed
package queue
