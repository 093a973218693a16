package chat

import (
	"RPChat/logger"
	"RPChat/module/roleplay/model"
	"RPChat/tools/decode"
	"RPChat/tools/errs"

	"github.com/golang/glog"
	"go.uber.org/zap"
)

// Inbound frame types.
const (
	TypeAuthenticate = "authenticate"
	TypeJoinRoom     = "join_room"
	TypeChatMessage  = "chat_message"
	TypeDiceRoll     = "dice_roll"
	TypeCoinFlip     = "coin_flip"
)

// Frame is the closed set of inbound frames. Adding a variant means adding a
// method to frameVisitor, so every consumer has to handle it.
type Frame interface {
	FrameType() string
	accept(v frameVisitor) error
}

type frameVisitor interface {
	visitAuthenticate(f *AuthenticateFrame) error
	visitJoinRoom(f *JoinRoomFrame) error
	visitChatMessage(f *ChatMessageFrame) error
	visitDiceRoll(f *DiceRollFrame) error
	visitCoinFlip(f *CoinFlipFrame) error
}

type AuthenticateFrame struct {
	SessionID   string `json:"sessionId"`
	UserID      int64  `json:"userId"`
	CharacterID int64  `json:"characterId"`
}

type JoinRoomFrame struct {
	RoomID int64 `json:"roomId"`
}

type ChatMessageFrame struct {
	RoomID      int64  `json:"roomId"`
	Content     string `json:"content"`
	MessageType string `json:"messageType"`
}

type DiceRollFrame struct {
	RoomID int64 `json:"roomId"`
}

type CoinFlipFrame struct {
	RoomID int64 `json:"roomId"`
}

func (*AuthenticateFrame) FrameType() string { return TypeAuthenticate }
func (*JoinRoomFrame) FrameType() string     { return TypeJoinRoom }
func (*ChatMessageFrame) FrameType() string  { return TypeChatMessage }
func (*DiceRollFrame) FrameType() string     { return TypeDiceRoll }
func (*CoinFlipFrame) FrameType() string     { return TypeCoinFlip }

func (f *AuthenticateFrame) accept(v frameVisitor) error { return v.visitAuthenticate(f) }
func (f *JoinRoomFrame) accept(v frameVisitor) error     { return v.visitJoinRoom(f) }
func (f *ChatMessageFrame) accept(v frameVisitor) error  { return v.visitChatMessage(f) }
func (f *DiceRollFrame) accept(v frameVisitor) error     { return v.visitDiceRoll(f) }
func (f *CoinFlipFrame) accept(v frameVisitor) error     { return v.visitCoinFlip(f) }

// ParseFrame decodes a text frame into its variant. Every failure is a protocol error.
func ParseFrame(raw []byte) (Frame, error) {
	m, err := decode.UnmarshalObject(raw)
	if err != nil {
		return nil, errs.ErrProtocol.WrapMsg("frame must be a single json object")
	}
	typ, err := decode.ReadString(m, "type")
	if err != nil {
		return nil, errs.ErrProtocol.WrapMsg("missing field type")
	}

	switch typ {
	case TypeAuthenticate:
		f, err := decodeFrame[AuthenticateFrame](m)
		if err != nil {
			return nil, err
		}
		if err := requireKeys(m, "sessionId", "userId", "characterId"); err != nil {
			return nil, err
		}
		if f.SessionID == "" || f.UserID <= 0 || f.CharacterID <= 0 {
			return nil, errs.ErrProtocol.WrapMsg("sessionId, userId and characterId are required")
		}
		return f, nil
	case TypeJoinRoom:
		return decodeRoomFrame[JoinRoomFrame](m, func(f *JoinRoomFrame) int64 { return f.RoomID })
	case TypeChatMessage:
		f, err := decodeRoomFrame[ChatMessageFrame](m, func(f *ChatMessageFrame) int64 { return f.RoomID })
		if err != nil {
			return nil, err
		}
		if err := requireKeys(m, "content"); err != nil {
			return nil, err
		}
		if f.MessageType == "" {
			f.MessageType = model.TypeMessage
		}
		return f, nil
	case TypeDiceRoll:
		return decodeRoomFrame[DiceRollFrame](m, func(f *DiceRollFrame) int64 { return f.RoomID })
	case TypeCoinFlip:
		return decodeRoomFrame[CoinFlipFrame](m, func(f *CoinFlipFrame) int64 { return f.RoomID })
	default:
		glog.V(1).Infof("no handler for type=%q", typ)
		return nil, errs.ErrProtocol.WrapMsg("unknown message type " + typ)
	}
}

func decodeFrame[T any](m map[string]any) (*T, error) {
	f, err := decode.DecodeMap[T](m)
	if err != nil {
		logger.Debug("[frames] decode", zap.Error(err))
		return nil, errs.ErrProtocol.WrapMsg("invalid field value")
	}
	return f, nil
}

func decodeRoomFrame[T any](m map[string]any, room func(*T) int64) (*T, error) {
	f, err := decodeFrame[T](m)
	if err != nil {
		return nil, err
	}
	if err := requireKeys(m, "roomId"); err != nil {
		return nil, err
	}
	if room(f) <= 0 {
		return nil, errs.ErrProtocol.WrapMsg("roomId must be positive")
	}
	return f, nil
}

func requireKeys(m map[string]any, keys ...string) error {
	for _, k := range keys {
		if v, ok := m[k]; !ok || v == nil {
			return errs.ErrProtocol.WrapMsg("missing field " + k)
		}
	}
	return nil
}
