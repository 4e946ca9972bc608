package pebblestore

import (
	"context"
	"testing"

	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tabsync/internal/slot"
)

func TestOpen_RequiresDir(t *testing.T) {
	_, err := Open(Options{})
	assert.Error(t, err)
}

func TestStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	st, err := Open(Options{Dir: "db", FS: vfs.NewMem(), Sync: true})
	require.NoError(t, err)
	defer st.Close()

	_, err = st.Get(ctx, "__SYNC_QUEUE__")
	assert.ErrorIs(t, err, slot.ErrNotFound)

	require.NoError(t, st.Put(ctx, "__SYNC_QUEUE__", []byte(`[{"type":"a"}]`)))
	got, err := st.Get(ctx, "__SYNC_QUEUE__")
	require.NoError(t, err)
	assert.Equal(t, []byte(`[{"type":"a"}]`), got)

	require.NoError(t, st.Delete(ctx, "__SYNC_QUEUE__"))
	_, err = st.Get(ctx, "__SYNC_QUEUE__")
	assert.ErrorIs(t, err, slot.ErrNotFound)
}

func TestStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	fs := vfs.NewMem()

	st, err := Open(Options{Dir: "db", FS: fs, Sync: true})
	require.NoError(t, err)
	require.NoError(t, st.Put(ctx, "k", []byte("v")))
	require.NoError(t, st.Close())

	st, err = Open(Options{Dir: "db", FS: fs})
	require.NoError(t, err)
	defer st.Close()

	got, err := st.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}
