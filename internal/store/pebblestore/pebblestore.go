// Package pebblestore provides a durable slot on top of Pebble, for hosts
// that prefer an embedded LSM store over a SQLite file.
package pebblestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"github.com/roach88/tabsync/internal/slot"
)

// keyPrefix namespaces slot keys inside the Pebble keyspace.
const keyPrefix = "slot/"

// Options configures the Pebble slot.
type Options struct {
	// Dir is the Pebble data directory.
	Dir string
	// Sync forces a WAL fsync on every Put/Delete. Without it Pebble may
	// coalesce syncs, trading the last writes on crash for throughput.
	Sync bool
	// FS overrides the filesystem. Tests pass vfs.NewMem().
	FS vfs.FS
}

// Store is a slot.Slot backed by Pebble.
type Store struct {
	db        *pebble.DB
	writeOpts *pebble.WriteOptions
}

var _ slot.Slot = (*Store)(nil)

// Open opens or creates the Pebble database in opts.Dir.
func Open(opts Options) (*Store, error) {
	if opts.Dir == "" {
		return nil, errors.New("pebblestore: data dir is required")
	}
	po := &pebble.Options{}
	if opts.FS != nil {
		po.FS = opts.FS
	}
	db, err := pebble.Open(opts.Dir, po)
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", opts.Dir, err)
	}
	writeOpts := pebble.NoSync
	if opts.Sync {
		writeOpts = pebble.Sync
	}
	return &Store{db: db, writeOpts: writeOpts}, nil
}

// Get returns the value stored under key, or slot.ErrNotFound.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	val, closer, err := s.db.Get([]byte(keyPrefix + key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, slot.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get slot %q: %w", key, err)
	}
	defer closer.Close()
	// val is only valid until closer.Close.
	return append([]byte(nil), val...), nil
}

// Put replaces the value stored under key.
func (s *Store) Put(_ context.Context, key string, value []byte) error {
	if err := s.db.Set([]byte(keyPrefix+key), value, s.writeOpts); err != nil {
		return fmt.Errorf("put slot %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(_ context.Context, key string) error {
	if err := s.db.Delete([]byte(keyPrefix+key), s.writeOpts); err != nil {
		return fmt.Errorf("delete slot %q: %w", key, err)
	}
	return nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
