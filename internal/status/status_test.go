package status

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tabsync/internal/testutil"
)

func TestMachine_StartsIdle(t *testing.T) {
	clock := testutil.NewFakeClock()
	m := NewMachine(clock.Now)

	assert.Equal(t, Idle, m.Get())
	assert.Equal(t, clock.Now(), m.LastSynced())
	assert.Equal(t, time.Duration(0), m.TimeSinceLastSync())
}

func TestMachine_AnyTransitionAllowed(t *testing.T) {
	m := NewMachine(nil)

	for _, from := range All {
		for _, to := range All {
			_, err := m.Set(from)
			require.NoError(t, err)
			prev, err := m.Set(to)
			require.NoError(t, err)
			assert.Equal(t, from, prev)
			assert.Equal(t, to, m.Get())
		}
	}
}

func TestMachine_RejectsUnknownStatus(t *testing.T) {
	m := NewMachine(nil)

	_, err := m.Set(Status("paused"))
	assert.ErrorIs(t, err, ErrInvalidStatus)
	assert.Equal(t, Idle, m.Get())
}

func TestMachine_TimeSinceLastSync(t *testing.T) {
	clock := testutil.NewFakeClock()
	m := NewMachine(clock.Now)

	clock.Advance(3 * time.Second)
	assert.Equal(t, 3*time.Second, m.TimeSinceLastSync(), "measured from construction before first sync")

	_, _ = m.Set(Syncing)
	clock.Advance(time.Second)
	_, _ = m.Set(Synced)
	syncedAt := clock.Now()
	assert.Equal(t, time.Duration(0), m.TimeSinceLastSync())

	clock.Advance(2 * time.Second)
	_, _ = m.Set(Synced)
	assert.Equal(t, syncedAt, m.LastSynced(), "re-asserting synced keeps the original time")
	assert.Equal(t, 2*time.Second, m.TimeSinceLastSync())

	_, _ = m.Set(Offline)
	clock.Advance(time.Second)
	assert.Equal(t, 3*time.Second, m.TimeSinceLastSync(), "leaving synced does not reset")
	assert.Equal(t, clock.Now().Add(-time.Second), m.ChangedAt())
}

func TestMachine_TimeSinceLastSyncNeverNegative(t *testing.T) {
	clock := testutil.NewFakeClock()
	m := NewMachine(clock.Now)

	clock.Advance(-time.Minute)
	assert.Equal(t, time.Duration(0), m.TimeSinceLastSync())
}

func TestParse(t *testing.T) {
	for _, s := range All {
		got, err := Parse(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := Parse("Synced")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}
