package chat

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"RPChat/module/roleplay/model"
	"RPChat/module/roleplay/store"

	"github.com/stretchr/testify/require"
)

type fixedRoller struct{ v int }

func (r fixedRoller) Intn(int) int { return r.v }

type mirrorCall struct {
	room    int64
	members []int64
}

type recMirror struct {
	mu    sync.Mutex
	calls []mirrorCall
}

func (m *recMirror) Publish(roomID int64, members []int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, mirrorCall{room: roomID, members: append([]int64(nil), members...)})
}

// newTestHub returns a hub over the demo data plus room 6 "Tavern".
func newTestHub(t *testing.T, opts ...Option) (*Hub, *store.Memory) {
	t.Helper()
	mem := store.NewMemory().SeedDemo()
	mem.AddRoom(model.ChatRoom{ID: 6, Name: "Tavern"})
	return NewHub(mem, HubConf{SendQueueSize: 32}, opts...), mem
}

func connect(h *Hub, id string) (*Client, *SessionHandler) {
	c := NewClient(id, h.conf.SendQueueSize)
	return c, h.Connect(c)
}

func send(s *SessionHandler, frame string) {
	s.HandleFrame(context.Background(), []byte(frame))
}

// frame pops the next queued frame; it fails when none is queued.
func frame(t *testing.T, c *Client) map[string]any {
	t.Helper()
	select {
	case data, ok := <-c.Send():
		require.True(t, ok, "queue of %s closed", c.ID)
		var m map[string]any
		require.NoError(t, json.Unmarshal(data, &m))
		return m
	default:
		require.FailNow(t, "no frame queued", "client %s", c.ID)
		return nil
	}
}

func noFrame(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data, ok := <-c.Send():
		if ok {
			require.FailNow(t, "unexpected frame", "client %s got %s", c.ID, data)
		}
	default:
	}
}

func drain(c *Client) {
	for {
		select {
		case _, ok := <-c.Send():
			if !ok {
				return
			}
		default:
			return
		}
	}
}

// join authenticates characterID as userID and joins roomID, then drops the acks.
func join(t *testing.T, h *Hub, id string, userID, characterID, roomID int64) (*Client, *SessionHandler) {
	t.Helper()
	c, s := connect(h, id)
	send(s, authFrame(userID, characterID))
	require.Equal(t, TypeAuthenticated, frame(t, c)["type"])
	send(s, roomFrame(TypeJoinRoom, roomID))
	require.Equal(t, TypeRoomJoined, frame(t, c)["type"])
	return c, s
}

func authFrame(userID, characterID int64) string {
	b, _ := json.Marshal(map[string]any{"type": TypeAuthenticate, "sessionId": "sess", "userId": userID, "characterId": characterID})
	return string(b)
}

func roomFrame(typ string, roomID int64) string {
	b, _ := json.Marshal(map[string]any{"type": typ, "roomId": roomID})
	return string(b)
}

func idList(v any) []int64 {
	raw, _ := v.([]any)
	out := make([]int64, 0, len(raw))
	for _, x := range raw {
		out = append(out, int64(x.(float64)))
	}
	return out
}
