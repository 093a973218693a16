package model

import "time"

// Message types stored with each chat line.
const (
	TypeMessage  = "message"
	TypeAction   = "action"
	TypeDiceRoll = "dice_roll"
	TypeCoinFlip = "coin_flip"
	TypeNarrator = "narrator"
	TypeSystem   = "system"
)

// ClientMessageType reports whether a client may send t in a chat_message frame.
func ClientMessageType(t string) bool {
	return t == TypeMessage || t == TypeAction
}

type Message struct {
	ID          int64     `json:"id"`
	RoomID      int64     `json:"roomId"`
	CharacterID int64     `json:"characterId,omitempty"` // 0 for narrator and system lines
	Content     string    `json:"content"`
	MessageType string    `json:"messageType"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewMessage is the input of Gateway.CreateMessage.
type NewMessage struct {
	RoomID      int64
	CharacterID int64
	Content     string
	MessageType string
}
