package room

import (
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luciancaetano/syncroom"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	m := NewManager(ManagerConfig{
		DocChannel:    true,
		IdleTTL:       time.Hour,
		SweepInterval: time.Hour,
		Logger:        testLogger(),
	})
	t.Cleanup(m.Stop)
	return m
}

func TestGetOrCreateSingleInstance(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)

	var wg sync.WaitGroup
	rooms := make([]*Room, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rooms[i] = m.GetOrCreate("proj1:/main.py", "/main.py")
		}(i)
	}
	wg.Wait()

	for i := 1; i < 100; i++ {
		require.Same(t, rooms[0], rooms[i], "concurrent GetOrCreate must return one instance")
	}
	assert.Equal(t, 1, m.Len())
}

func TestGetNeverCreates(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)

	_, ok := m.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len(), "read-only lookup must not create a room")
}

func TestRemoveOnlyWhenEmpty(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)

	r := m.GetOrCreate("k", "/f.go")
	c, _ := newMember(0)
	r.Join(c)

	assert.False(t, m.Remove("k"), "a room with clients is never removed")
	assert.Equal(t, 1, m.Len())

	r.Leave(c.ID)
	assert.True(t, m.Remove("k"))
	assert.Equal(t, 0, m.Len())

	assert.False(t, m.Remove("k"), "removing an unknown key is a no-op")
}

func TestSweepReapsIdleEmptyRooms(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)

	idle := m.GetOrCreate("idle", "/a.go")
	occupied := m.GetOrCreate("occupied", "/b.go")
	fresh := m.GetOrCreate("fresh", "/c.go")

	c, _ := newMember(0)
	occupied.Join(c)

	past := time.Now().Add(-2 * time.Hour)
	idle.mu.Lock()
	idle.lastActivity = past
	idle.mu.Unlock()
	occupied.mu.Lock()
	occupied.lastActivity = past
	occupied.mu.Unlock()

	m.sweep()

	_, ok := m.Get("idle")
	assert.False(t, ok, "empty room past the idle threshold is reaped")
	_, ok = m.Get("occupied")
	assert.True(t, ok, "a room with clients is never reaped")
	_, ok = m.Get("fresh")
	assert.True(t, ok, "an empty room under the threshold survives")
	_ = fresh
}

func TestSweepLeavesRoomThatGainedClient(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)

	r := m.GetOrCreate("k", "/f.go")
	r.mu.Lock()
	r.lastActivity = time.Now().Add(-2 * time.Hour)
	r.mu.Unlock()

	// A client arrives before the sweep runs.
	c, _ := newMember(0)
	r.Join(c)

	m.sweep()

	got, ok := m.Get("k")
	require.True(t, ok)
	assert.Same(t, r, got)
}

func TestForceClose(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)

	r := m.GetOrCreate("k", "/f.go")
	a, sinkA := newMember(0)
	b, sinkB := newMember(1)
	r.Join(a)
	r.Join(b)

	err := m.ForceClose("k", syncroom.CloseReasonRoomClosed)
	require.NoError(t, err)

	assert.Equal(t, 0, m.Len(), "force-closed room is removed immediately")

	for name, sink := range map[string]*fakeSink{"a": sinkA, "b": sinkB} {
		sink.mu.Lock()
		assert.True(t, sink.closed, "client %s disconnected", name)
		assert.Equal(t, websocket.CloseNormalClosure, sink.closeCode)
		assert.Equal(t, syncroom.CloseReasonRoomClosed, sink.closeReason)
		sink.mu.Unlock()
	}
}

func TestForceCloseUnknownRoom(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)

	err := m.ForceClose("missing", "because")
	assert.ErrorIs(t, err, syncroom.ErrRoomNotFound)
}

func TestSnapshotListsRooms(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)

	r := m.GetOrCreate("k1", "/a.go")
	m.GetOrCreate("k2", "/b.go")

	c, _ := newMember(0)
	r.Join(c)

	infos := m.Snapshot()
	require.Len(t, infos, 2)

	byKey := make(map[string]Info, len(infos))
	for _, info := range infos {
		byKey[info.RoomID] = info
	}
	assert.Equal(t, 1, byKey["k1"].ClientCount)
	assert.Equal(t, "/a.go", byKey["k1"].FilePath)
	assert.Equal(t, 0, byKey["k2"].ClientCount)
}
