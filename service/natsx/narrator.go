package natsx

import (
	"context"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"RPChat/module/roleplay/model"
	"RPChat/service/chat"
	"RPChat/tools/decode"
	"RPChat/tools/errs"
)

// NarratorEvent is the payload published on the narrator subject by other
// services. RoomID 0 addresses every connection. ID and CreatedAt describe a
// message already stored by the publisher; the bridge only fans it out.
type NarratorEvent struct {
	RoomID      int64     `json:"roomId"`
	Content     string    `json:"content"`
	MessageType string    `json:"messageType"`
	ID          int64     `json:"id"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Sink is the broadcast side of the chat hub.
type Sink interface {
	BroadcastToRoom(roomID int64, ev chat.Event) int
	BroadcastGlobal(ev chat.Event) int
}

// Narrator turns narrator bus messages into new_message broadcasts.
type Narrator struct {
	sink   Sink
	maxLen int
	now    func() time.Time
}

func NewNarrator(sink Sink, maxLen int) *Narrator {
	if maxLen <= 0 {
		maxLen = 2000
	}
	return &Narrator{sink: sink, maxLen: maxLen, now: time.Now}
}

// NarratorKey keys a narrator message by its id header, or else by the id of
// the stored message it carries. Unstored announcements have no key.
func NarratorKey(msg Message) string {
	if id := HeaderMsgID(msg); id != "" {
		return id
	}
	ref, err := decode.DecodeJSON[struct {
		ID int64 `json:"id"`
	}](msg.Data)
	if err != nil || ref.ID <= 0 {
		return ""
	}
	return "narrator:" + strconv.FormatInt(ref.ID, 10)
}

// Handle is the Handler registered on the narrator subject.
func (n *Narrator) Handle(_ context.Context, msg Message) error {
	ev, err := decode.DecodeJSON[NarratorEvent](msg.Data)
	if err != nil {
		return errs.ErrProtocol.WrapMsg("bad narrator payload", "subject", msg.Subject)
	}
	if err := n.validate(ev); err != nil {
		return err
	}
	m := model.Message{
		ID:          ev.ID,
		RoomID:      ev.RoomID,
		Content:     ev.Content,
		MessageType: ev.MessageType,
		CreatedAt:   ev.CreatedAt,
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = n.now()
	}
	out := chat.NewMessage(m, nil)
	if ev.RoomID == 0 {
		n.sink.BroadcastGlobal(out)
	} else {
		n.sink.BroadcastToRoom(ev.RoomID, out)
	}
	return nil
}

func (n *Narrator) validate(ev *NarratorEvent) error {
	if ev.RoomID < 0 {
		return errs.ErrProtocol.WrapMsg("roomId must not be negative")
	}
	if strings.TrimSpace(ev.Content) == "" || utf8.RuneCountInString(ev.Content) > n.maxLen {
		return errs.ErrProtocol.WrapMsg("narrator content empty or too long")
	}
	switch ev.MessageType {
	case "":
		ev.MessageType = model.TypeNarrator
		if ev.RoomID == 0 {
			ev.MessageType = model.TypeSystem
		}
	case model.TypeNarrator, model.TypeSystem:
	default:
		return errs.ErrProtocol.WrapMsg("unsupported narrator messageType", "messageType", ev.MessageType)
	}
	return nil
}
