package chat

import (
	"encoding/json"
	"slices"

	"RPChat/logger"

	"go.uber.org/zap"
)

// Broadcaster fans events out to registry connections. Each event is encoded
// once and enqueued on every recipient in call order; closed connections and
// full queues are skipped without affecting the other recipients.
type Broadcaster struct {
	reg *Registry
}

func NewBroadcaster(reg *Registry) *Broadcaster {
	return &Broadcaster{reg: reg}
}

// BroadcastToRoom delivers ev to every open connection whose session is in roomID.
// It returns the number of connections the frame was queued for.
func (b *Broadcaster) BroadcastToRoom(roomID int64, ev Event) int {
	return b.broadcastRoom(roomID, ev)
}

func (b *Broadcaster) broadcastRoom(roomID int64, ev Event, except ...*Client) int {
	data, ok := encode(ev)
	if !ok {
		return 0
	}
	n := 0
	for _, c := range b.reg.InRoom(roomID) {
		if slices.Contains(except, c) {
			continue
		}
		if c.Enqueue(data) {
			n++
		}
	}
	return n
}

// BroadcastGlobal delivers ev to every open connection regardless of room.
func (b *Broadcaster) BroadcastGlobal(ev Event) int {
	data, ok := encode(ev)
	if !ok {
		return 0
	}
	n := 0
	for _, bnd := range b.reg.Snapshot() {
		if bnd.Client.Enqueue(data) {
			n++
		}
	}
	return n
}

// SendTo queues ev for a single connection.
func (b *Broadcaster) SendTo(c *Client, ev Event) bool {
	data, ok := encode(ev)
	if !ok {
		return false
	}
	return c.Enqueue(data)
}

func encode(ev Event) ([]byte, bool) {
	data, err := json.Marshal(ev)
	if err != nil {
		logger.Error("[broadcast] encode event", zap.String("type", ev.EventType()), zap.Error(err))
		return nil, false
	}
	return data, true
}
