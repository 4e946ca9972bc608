package testutil

import (
	"fmt"
	"sync"
)

// SequenceTabIDs hands out predetermined tab ids in order.
//
// Panics when the ids are exhausted: a test that creates more tabs than it
// declared is wrong, and a silent fallback would hide that.
//
// Thread-safety: safe for concurrent use.
type SequenceTabIDs struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewSequenceTabIDs creates a generator returning ids in order.
func NewSequenceTabIDs(ids ...string) *SequenceTabIDs {
	return &SequenceTabIDs{ids: ids}
}

// Generate returns the next id.
func (g *SequenceTabIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.idx >= len(g.ids) {
		panic(fmt.Sprintf("SequenceTabIDs: all %d ids consumed", len(g.ids)))
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
