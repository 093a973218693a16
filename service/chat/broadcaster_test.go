package chat

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRoomSetup(t *testing.T) (*Broadcaster, *Registry, map[string]*Client) {
	t.Helper()
	reg := NewRegistry()
	clients := map[string]*Client{
		"a5":    NewClient("a5", 8),
		"b5":    NewClient("b5", 8),
		"c6":    NewClient("c6", 8),
		"lobby": NewClient("lobby", 8),
	}
	for _, c := range clients {
		reg.Register(c)
	}
	reg.SetRoom(clients["a5"], 5)
	reg.SetRoom(clients["b5"], 5)
	reg.SetRoom(clients["c6"], 6)
	return NewBroadcaster(reg), reg, clients
}

func TestBroadcastToRoomScoping(t *testing.T) {
	b, _, cs := newRoomSetup(t)

	n := b.BroadcastToRoom(5, PresenceUpdate(5, []int64{7, 8}))
	assert.Equal(t, 2, n)
	assert.Equal(t, TypePresenceUpdate, frame(t, cs["a5"])["type"])
	assert.Equal(t, TypePresenceUpdate, frame(t, cs["b5"])["type"])
	noFrame(t, cs["c6"])
	noFrame(t, cs["lobby"])
}

func TestBroadcastGlobalReachesEveryone(t *testing.T) {
	b, _, cs := newRoomSetup(t)
	assert.Equal(t, 4, b.BroadcastGlobal(Authenticated()))
	for _, c := range cs {
		assert.Equal(t, TypeAuthenticated, frame(t, c)["type"])
	}
}

func TestBroadcastSkipsClosed(t *testing.T) {
	b, _, cs := newRoomSetup(t)
	cs["a5"].Close()

	assert.Equal(t, 1, b.BroadcastToRoom(5, PresenceUpdate(5, nil)))
	assert.Equal(t, TypePresenceUpdate, frame(t, cs["b5"])["type"])
	assert.False(t, b.SendTo(cs["a5"], Authenticated()))
}

func TestBroadcastDropsOnFullQueue(t *testing.T) {
	reg := NewRegistry()
	slow, fast := NewClient("slow", 1), NewClient("fast", 8)
	reg.Register(slow)
	reg.Register(fast)
	reg.SetRoom(slow, 5)
	reg.SetRoom(fast, 5)
	b := NewBroadcaster(reg)

	assert.Equal(t, 2, b.BroadcastToRoom(5, PresenceUpdate(5, []int64{1})))
	assert.Equal(t, 1, b.BroadcastToRoom(5, PresenceUpdate(5, []int64{2})))
	assert.Equal(t, int64(1), slow.Dropped())

	assert.Equal(t, []int64{1}, idList(frame(t, slow)["characters"]))
	noFrame(t, slow)
	assert.Equal(t, []int64{1}, idList(frame(t, fast)["characters"]))
	assert.Equal(t, []int64{2}, idList(frame(t, fast)["characters"]))
}

func TestBroadcastPreservesOrder(t *testing.T) {
	reg := NewRegistry()
	c := NewClient("c", 64)
	reg.Register(c)
	reg.SetRoom(c, 5)
	b := NewBroadcaster(reg)

	for i := 1; i <= 20; i++ {
		b.BroadcastToRoom(5, PresenceUpdate(5, []int64{int64(i)}))
	}
	for i := 1; i <= 20; i++ {
		assert.Equal(t, []int64{int64(i)}, idList(frame(t, c)["characters"]), fmt.Sprint("frame ", i))
	}
}

func TestEventEncoding(t *testing.T) {
	data, err := json.Marshal(RoomJoined(5, nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"room_joined","roomId":5,"characters":[]}`, string(data))

	data, err = json.Marshal(Authenticated())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"authenticated","success":true}`, string(data))
}

func TestClientCloseIsIdempotent(t *testing.T) {
	c := NewClient("c", 2)
	require.True(t, c.Enqueue([]byte("x")))
	c.Close()
	c.Close()
	assert.False(t, c.IsOpen())
	assert.False(t, c.Enqueue([]byte("y")))

	data, ok := <-c.Send()
	assert.True(t, ok, "queued frames survive close")
	assert.Equal(t, "x", string(data))
	_, ok = <-c.Send()
	assert.False(t, ok)
}
