package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry()
	c := NewClient("c1", 4)

	assert.False(t, r.Bind(c, 1, 7), "bind before register is a no-op")
	_, ok := r.Session(c)
	assert.False(t, ok)

	r.Register(c)
	require.True(t, r.Bind(c, 1, 7))
	require.True(t, r.SetRoom(c, 5))

	sess, ok := r.Session(c)
	require.True(t, ok)
	assert.Equal(t, Session{UserID: 1, CharacterID: 7, RoomID: 5}, sess)
	assert.Equal(t, 1, r.Len())

	got, ok := r.Unregister(c)
	assert.True(t, ok)
	assert.Equal(t, sess, got)

	_, ok = r.Unregister(c)
	assert.False(t, ok, "second unregister reports nothing removed")
	assert.Equal(t, 0, r.Len())
	assert.False(t, r.SetRoom(c, 6))
}

func TestRegistryRegisterKeepsFirst(t *testing.T) {
	r := NewRegistry()
	c := NewClient("c1", 4)
	r.Register(c)
	r.Bind(c, 1, 7)
	r.Register(c)

	sess, _ := r.Session(c)
	assert.Equal(t, int64(7), sess.CharacterID)
}

func TestRegistrySnapshotIsCopy(t *testing.T) {
	r := NewRegistry()
	a, b := NewClient("a", 4), NewClient("b", 4)
	r.Register(a)
	r.Register(b)
	r.SetRoom(a, 5)

	snap := r.Snapshot()
	require.Len(t, snap, 2)
	r.SetRoom(b, 5)
	r.Unregister(a)

	for _, bnd := range snap {
		if bnd.Client == b {
			assert.Zero(t, bnd.Session.RoomID)
		}
	}
	assert.Len(t, snap, 2)
}

func TestRegistryRoomQueries(t *testing.T) {
	r := NewRegistry()
	a, b, c := NewClient("a", 4), NewClient("b", 4), NewClient("c", 4)
	for _, x := range []*Client{a, b, c} {
		r.Register(x)
	}
	r.Bind(a, 1, 7)
	r.Bind(b, 1, 7)
	r.Bind(c, 2, 8)
	r.SetRoom(a, 5)
	r.SetRoom(b, 5)
	r.SetRoom(c, 6)

	assert.ElementsMatch(t, []*Client{a, b}, r.InRoom(5))
	assert.Equal(t, []*Client{c}, r.InRoom(6))
	assert.Empty(t, r.InRoom(9))

	assert.True(t, r.CharacterConnected(7, 5, a))
	assert.False(t, r.CharacterConnected(8, 6, c))
	assert.False(t, r.CharacterConnected(7, 6, nil))
}

func TestRegistryMoveCharacter(t *testing.T) {
	r := NewRegistry()
	a, b, idle, other := NewClient("a", 4), NewClient("b", 4), NewClient("idle", 4), NewClient("other", 4)
	for _, x := range []*Client{a, b, idle, other} {
		r.Register(x)
	}
	r.Bind(a, 1, 7)
	r.Bind(b, 1, 7)
	r.Bind(idle, 1, 7)
	r.Bind(other, 2, 8)
	r.SetRoom(a, 6)
	r.SetRoom(b, 5)
	r.SetRoom(other, 5)

	assert.Equal(t, []*Client{b}, r.MoveCharacter(7, 6, a))
	sess, _ := r.Session(b)
	assert.Equal(t, int64(6), sess.RoomID)
	sess, _ = r.Session(idle)
	assert.Zero(t, sess.RoomID)
	sess, _ = r.Session(other)
	assert.Equal(t, int64(5), sess.RoomID)

	assert.Empty(t, r.MoveCharacter(7, 6, a))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "unauthenticated", StateUnauthenticated.String())
	assert.Equal(t, "authenticated", StateAuthenticated.String())
	assert.Equal(t, "room_joined", StateRoomJoined.String())
}
