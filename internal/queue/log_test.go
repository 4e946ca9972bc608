package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tabsync/internal/slot"
	"github.com/roach88/tabsync/internal/testutil"
)

type item struct {
	N    int    `json:"n"`
	Name string `json:"name"`
}

func TestLog_AppendKeepsOrder(t *testing.T) {
	l := New[item](slot.NewMemory(), "k")

	for i := 0; i < 3; i++ {
		assert.Equal(t, 0, l.Append(item{N: i}))
	}

	got := l.Entries()
	require.Len(t, got, 3)
	assert.Equal(t, 0, got[0].N)
	assert.Equal(t, 2, got[2].N)
}

func TestLog_EvictsOldestAtCapacity(t *testing.T) {
	l := New[item](slot.NewMemory(), "k")
	assert.Equal(t, DefaultCapacity, l.Capacity())

	evicted := 0
	for i := 0; i < 1200; i++ {
		evicted += l.Append(item{N: i})
	}

	assert.Equal(t, 200, evicted)
	got := l.Entries()
	require.Len(t, got, 1000)
	assert.Equal(t, 200, got[0].N, "oldest retained entry")
	assert.Equal(t, 1199, got[999].N)
}

func TestLog_WithCapacity(t *testing.T) {
	l := New(slot.NewMemory(), "k", WithCapacity[item](2))

	l.Append(item{N: 1})
	l.Append(item{N: 2})
	assert.Equal(t, 1, l.Append(item{N: 3}))
	assert.Equal(t, []item{{N: 2}, {N: 3}}, l.Entries())

	ignored := New(slot.NewMemory(), "k", WithCapacity[item](0))
	assert.Equal(t, DefaultCapacity, ignored.Capacity())
}

func TestLog_EntriesIsACopy(t *testing.T) {
	l := New[item](slot.NewMemory(), "k")
	l.Append(item{N: 1})

	got := l.Entries()
	got[0].N = 99

	assert.Equal(t, 1, l.Entries()[0].N)
}

func TestLog_PersistsAndRestores(t *testing.T) {
	s := slot.NewMemory()
	l := New[item](s, "k")
	l.Append(item{N: 1, Name: "a"})
	l.Append(item{N: 2, Name: "b"})

	fresh := New[item](s, "k")
	assert.Equal(t, 0, fresh.Len(), "construction does not read the slot")

	restored := fresh.Restore()
	assert.Equal(t, []item{{N: 1, Name: "a"}, {N: 2, Name: "b"}}, restored)
	assert.Equal(t, 0, fresh.Len(), "restore leaves the in-memory log alone")
}

func TestLog_RestoreMissingIsEmpty(t *testing.T) {
	l := New[item](slot.NewMemory(), "k")

	got := l.Restore()
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestLog_RestoreMalformedIsEmpty(t *testing.T) {
	s := slot.NewMemory()
	require.NoError(t, s.Put(context.Background(), "k", []byte("{not json")))

	got := New[item](s, "k").Restore()
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestLog_RestoreUnreadableIsEmpty(t *testing.T) {
	s := testutil.NewFailingSlot()
	l := New[item](s, "k")
	l.Append(item{N: 1})
	s.FailReads.Store(true)

	assert.Empty(t, l.Restore())
}

func TestLog_ClearRemovesSlotCopy(t *testing.T) {
	s := slot.NewMemory()
	l := New[item](s, "k")
	l.Append(item{N: 1})

	l.Clear()

	assert.Equal(t, 0, l.Len())
	assert.Empty(t, l.Restore())
	_, err := s.Get(context.Background(), "k")
	assert.ErrorIs(t, err, slot.ErrNotFound)
}

func TestLog_WriteFailuresAreSwallowed(t *testing.T) {
	s := testutil.NewFailingSlot()
	s.FailWrites.Store(true)
	l := New[item](s, "k")

	l.Append(item{N: 1})
	l.Append(item{N: 2})
	l.Clear()

	assert.Equal(t, int64(3), l.PersistFailures())
	assert.Equal(t, 0, l.Len())
}

func TestLog_AppendStillLandsInMemoryWhenPersistFails(t *testing.T) {
	s := testutil.NewFailingSlot()
	s.FailWrites.Store(true)
	l := New[item](s, "k")

	l.Append(item{N: 7})

	assert.Equal(t, []item{{N: 7}}, l.Entries())
}

func TestLog_ValidatorDropsEntries(t *testing.T) {
	s := slot.NewMemory()
	require.NoError(t, s.Put(context.Background(), "k",
		[]byte(`[{"n":1,"name":"ok"},{"n":2,"name":""},{"n":3,"name":"ok"}]`)))

	l := New(s, "k", WithValidator(func(it item) error {
		if it.Name == "" {
			return errors.New("missing name")
		}
		return nil
	}))

	got := l.Restore()
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].N)
	assert.Equal(t, 3, got[1].N)
}

func TestLog_HydrateKeepsNewest(t *testing.T) {
	s := slot.NewMemory()
	big := New[item](s, "k")
	for i := 0; i < 5; i++ {
		big.Append(item{N: i})
	}

	small := New(s, "k", WithCapacity[item](3))
	loaded := small.Hydrate()

	assert.Equal(t, []item{{N: 2}, {N: 3}, {N: 4}}, loaded)
	assert.Equal(t, loaded, small.Entries())

	small.Append(item{N: 5})
	assert.Equal(t, []item{{N: 3}, {N: 4}, {N: 5}}, small.Entries())
}
