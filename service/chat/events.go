package chat

import (
	"RPChat/module/roleplay/model"
	"RPChat/tools/errs"
)

// Outbound frame types.
const (
	TypeAuthenticated  = "authenticated"
	TypeError          = "error"
	TypeRoomJoined     = "room_joined"
	TypePresenceUpdate = "presence_update"
	TypeNewMessage     = "new_message"
)

// Event is an immutable outbound frame. Every event carries its wire type.
type Event interface {
	EventType() string
}

type AuthenticatedEvent struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
}

type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type RoomJoinedEvent struct {
	Type       string  `json:"type"`
	RoomID     int64   `json:"roomId"`
	Characters []int64 `json:"characters"`
}

type PresenceUpdateEvent struct {
	Type       string  `json:"type"`
	RoomID     int64   `json:"roomId"`
	Characters []int64 `json:"characters"`
}

// CharacterView is the character summary attached to new_message.
type CharacterView struct {
	ID     int64  `json:"id"`
	UserID int64  `json:"userId"`
	Name   string `json:"name"`
}

type MessageView struct {
	model.Message
	Character *CharacterView `json:"character,omitempty"`
}

type NewMessageEvent struct {
	Type    string      `json:"type"`
	Message MessageView `json:"message"`
}

func (e AuthenticatedEvent) EventType() string  { return e.Type }
func (e ErrorEvent) EventType() string          { return e.Type }
func (e RoomJoinedEvent) EventType() string     { return e.Type }
func (e PresenceUpdateEvent) EventType() string { return e.Type }
func (e NewMessageEvent) EventType() string     { return e.Type }

func Authenticated() AuthenticatedEvent {
	return AuthenticatedEvent{Type: TypeAuthenticated, Success: true}
}

// ErrorFrom turns any error into an error frame; unknown errors become "internal".
func ErrorFrom(err error) ErrorEvent {
	ce := errs.AsCode(err)
	return ErrorEvent{Type: TypeError, Message: ce.Message(), Code: ce.WireCode()}
}

func RoomJoined(roomID int64, members []int64) RoomJoinedEvent {
	return RoomJoinedEvent{Type: TypeRoomJoined, RoomID: roomID, Characters: nonNil(members)}
}

func PresenceUpdate(roomID int64, members []int64) PresenceUpdateEvent {
	return PresenceUpdateEvent{Type: TypePresenceUpdate, RoomID: roomID, Characters: nonNil(members)}
}

// NewMessage wraps a stored (or about to be stored) message; character may be nil.
func NewMessage(m model.Message, character *model.Character) NewMessageEvent {
	view := MessageView{Message: m}
	if character != nil {
		view.Character = &CharacterView{ID: character.ID, UserID: character.UserID, Name: character.Name}
	}
	return NewMessageEvent{Type: TypeNewMessage, Message: view}
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
