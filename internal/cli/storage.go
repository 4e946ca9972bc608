package cli

import (
	"fmt"
	"log/slog"

	"github.com/roach88/tabsync/internal/config"
	"github.com/roach88/tabsync/internal/slot"
	"github.com/roach88/tabsync/internal/store"
	"github.com/roach88/tabsync/internal/store/pebblestore"
)

// openSlot opens the durable slot named by the storage config.
func openSlot(cfg config.Storage) (slot.Slot, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		st, err := store.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		slog.Debug("opened sqlite slot", "path", cfg.Path)
		return st, nil
	case config.DriverPebble:
		st, err := pebblestore.Open(pebblestore.Options{Dir: cfg.Path, Sync: true})
		if err != nil {
			return nil, err
		}
		slog.Debug("opened pebble slot", "dir", cfg.Path)
		return st, nil
	case config.DriverMemory, "":
		return slot.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func closeSlot(s slot.Slot) {
	if err := s.Close(); err != nil {
		slog.Error("error closing storage", "error", err)
	}
}
