package testutil

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/roach88/tabsync/internal/slot"
)

// ErrQuotaExceeded mimics a browser storage quota failure.
var ErrQuotaExceeded = errors.New("quota exceeded")

// FailingSlot wraps a slot and fails writes while FailWrites is set.
type FailingSlot struct {
	slot.Slot
	FailWrites atomic.Bool
	FailReads  atomic.Bool
}

// NewFailingSlot wraps an in-memory slot.
func NewFailingSlot() *FailingSlot {
	return &FailingSlot{Slot: slot.NewMemory()}
}

func (f *FailingSlot) Get(ctx context.Context, key string) ([]byte, error) {
	if f.FailReads.Load() {
		return nil, errors.New("storage disabled")
	}
	return f.Slot.Get(ctx, key)
}

func (f *FailingSlot) Put(ctx context.Context, key string, value []byte) error {
	if f.FailWrites.Load() {
		return ErrQuotaExceeded
	}
	return f.Slot.Put(ctx, key, value)
}

func (f *FailingSlot) Delete(ctx context.Context, key string) error {
	if f.FailWrites.Load() {
		return ErrQuotaExceeded
	}
	return f.Slot.Delete(ctx, key)
}
