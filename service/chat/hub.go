package chat

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"RPChat/logger"
	"RPChat/module/roleplay/model"
	"RPChat/tools/errs"

	"go.uber.org/zap"
)

// Gateway is the persistence collaborator the chat core reads identities and
// rooms from and writes messages to.
type Gateway interface {
	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetCharacter(ctx context.Context, id int64) (*model.Character, error)
	GetChatRoom(ctx context.Context, id int64) (*model.ChatRoom, error)
	CreateMessage(ctx context.Context, in model.NewMessage) (*model.Message, error)
}

// PresenceMirror receives every membership change, e.g. to publish it to other nodes.
type PresenceMirror interface {
	Publish(roomID int64, members []int64)
}

// Roller is the random source for dice and coins. Intn returns [0, n).
type Roller interface {
	Intn(n int) int
}

type randRoller struct{}

func (randRoller) Intn(n int) int { return rand.IntN(n) }

type HubConf struct {
	SendQueueSize    int
	MaxMessageLength int           // runes
	PersistTimeout   time.Duration // per gateway call
}

func (c *HubConf) norm() {
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = 256
	}
	if c.MaxMessageLength <= 0 {
		c.MaxMessageLength = 2000
	}
	if c.PersistTimeout <= 0 {
		c.PersistTimeout = 5 * time.Second
	}
}

type Option func(*Hub)

func WithRoller(r Roller) Option { return func(h *Hub) { h.roller = r } }

func WithMirror(m PresenceMirror) Option { return func(h *Hub) { h.mirror = m } }

func WithClock(now func() time.Time) Option { return func(h *Hub) { h.now = now } }

// Hub owns the registry, the presence tracker and the broadcaster for one
// gateway process and hands out per-connection session handlers.
type Hub struct {
	conf   HubConf
	gw     Gateway
	reg    *Registry
	pres   *Presence
	bc     *Broadcaster
	roller Roller
	mirror PresenceMirror
	now    func() time.Time

	// roomMu serializes room transitions so every presence frame is built
	// from, and delivered against, one consistent membership state.
	roomMu sync.Mutex

	// persistWG tracks optimistic writes still in flight.
	persistWG sync.WaitGroup
}

func NewHub(gw Gateway, conf HubConf, opts ...Option) *Hub {
	conf.norm()
	reg := NewRegistry()
	h := &Hub{
		conf:   conf,
		gw:     gw,
		reg:    reg,
		pres:   NewPresence(),
		bc:     NewBroadcaster(reg),
		roller: randRoller{},
		now:    time.Now,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *Hub) Registry() *Registry       { return h.reg }
func (h *Hub) Presence() *Presence       { return h.pres }
func (h *Hub) Broadcaster() *Broadcaster { return h.bc }
func (h *Hub) Conf() HubConf             { return h.conf }

// Connect registers a new connection and returns the handler for its frames.
func (h *Hub) Connect(c *Client) *SessionHandler {
	h.reg.Register(c)
	return &SessionHandler{hub: h, client: c, state: StateUnauthenticated}
}

// BroadcastToRoom is the entry point for callers outside the websocket
// protocol, such as admin endpoints and the narrator bus.
func (h *Hub) BroadcastToRoom(roomID int64, ev Event) int {
	return h.bc.BroadcastToRoom(roomID, ev)
}

func (h *Hub) BroadcastGlobal(ev Event) int {
	return h.bc.BroadcastGlobal(ev)
}

func (h *Hub) MembersOf(roomID int64) []int64 {
	return h.pres.MembersOf(roomID)
}

// Stats returns the number of connections and of non-empty rooms.
func (h *Hub) Stats() (connections, rooms int) {
	return h.reg.Len(), h.pres.Rooms()
}

// Narrate persists a narrator line for roomID and broadcasts it to the room.
func (h *Hub) Narrate(ctx context.Context, roomID int64, content string) (*model.Message, error) {
	if err := h.validContent(content); err != nil {
		return nil, err
	}
	if _, err := h.gw.GetChatRoom(ctx, roomID); err != nil {
		return nil, err
	}
	msg, err := h.gw.CreateMessage(ctx, model.NewMessage{
		RoomID:      roomID,
		Content:     content,
		MessageType: model.TypeNarrator,
	})
	if err != nil {
		return nil, errs.WrapMsg(err, "persist narrator message", "roomId", roomID)
	}
	h.bc.BroadcastToRoom(roomID, NewMessage(*msg, nil))
	return msg, nil
}

// Announce sends a system line to every connection. Announcements are not persisted.
func (h *Hub) Announce(content string) (int, error) {
	if err := h.validContent(content); err != nil {
		return 0, err
	}
	ev := NewMessage(model.Message{
		Content:     content,
		MessageType: model.TypeSystem,
		CreatedAt:   h.now().UTC(),
	}, nil)
	return h.bc.BroadcastGlobal(ev), nil
}

// Wait blocks until optimistic writes started so far have finished or ctx ends.
func (h *Hub) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.persistWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) validContent(content string) error {
	n := runeCount(content)
	if n == 0 || n > h.conf.MaxMessageLength {
		return errs.ErrProtocol.WrapMsg(fmt.Sprintf("content must be 1 to %d characters", h.conf.MaxMessageLength))
	}
	return nil
}

// joinRoom moves c's character into roomID and notifies both rooms.
func (h *Hub) joinRoom(c *Client, characterID, roomID int64) []int64 {
	h.roomMu.Lock()
	defer h.roomMu.Unlock()

	res := h.pres.Join(roomID, characterID)
	h.reg.SetRoom(c, roomID)
	// a character is in one room, so its other tabs follow it
	moved := h.reg.MoveCharacter(characterID, roomID, c)
	joined := append([]*Client{c}, moved...)

	if res.PrevRoom != 0 {
		h.publish(res.PrevRoom, res.PrevMembers)
		h.bc.BroadcastToRoom(res.PrevRoom, PresenceUpdate(res.PrevRoom, res.PrevMembers))
	}
	if res.Added {
		h.publish(roomID, res.Members)
		h.bc.broadcastRoom(roomID, PresenceUpdate(roomID, res.Members), joined...)
	}
	for _, jc := range joined {
		h.bc.SendTo(jc, RoomJoined(roomID, res.Members))
	}
	return res.Members
}

// disconnect removes c and, when its character leaves the room, tells the
// remaining members. Safe to call more than once.
func (h *Hub) disconnect(c *Client) {
	h.roomMu.Lock()
	defer h.roomMu.Unlock()

	sess, ok := h.reg.Unregister(c)
	c.Close()
	if !ok || sess.RoomID == 0 || sess.CharacterID == 0 {
		return
	}
	// another tab of the same character keeps it present
	if h.reg.CharacterConnected(sess.CharacterID, sess.RoomID, c) {
		return
	}
	members, removed := h.pres.Leave(sess.RoomID, sess.CharacterID)
	if !removed {
		return
	}
	h.publish(sess.RoomID, members)
	if len(members) > 0 {
		h.bc.BroadcastToRoom(sess.RoomID, PresenceUpdate(sess.RoomID, members))
	}
	logger.Debug("[hub] character left", zap.Int64("room", sess.RoomID), zap.Int64("character", sess.CharacterID))
}

func (h *Hub) publish(roomID int64, members []int64) {
	if h.mirror != nil {
		h.mirror.Publish(roomID, members)
	}
}
