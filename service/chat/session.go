package chat

import (
	"context"
	"fmt"
	"unicode/utf8"

	"RPChat/logger"
	"RPChat/module/roleplay/model"
	"RPChat/tools/errs"
	"RPChat/tools/safe"

	"go.uber.org/zap"
)

const (
	diceSides = 10
	diceText  = "hodil kostkou: %d"
	coinText  = "hodil mincí: %s"
)

var coinSides = [2]string{"panna", "orel"}

// SessionHandler drives the protocol state machine of one connection. Its
// methods must be called from a single goroutine, the connection's reader,
// which keeps a client's own frames strictly ordered.
type SessionHandler struct {
	hub    *Hub
	client *Client

	state       State
	userID      int64
	characterID int64
}

func (s *SessionHandler) State() State    { return s.state }
func (s *SessionHandler) Client() *Client { return s.client }

// HandleFrame parses and executes one inbound frame. Failures are reported to
// the sender as error frames and never end the connection.
func (s *SessionHandler) HandleFrame(ctx context.Context, raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			err := errs.ErrPanic(r)
			logger.Error("[session] handler panic", zap.String("conn", s.client.ID), zap.Error(err))
			s.reply(ErrorFrom(errs.ErrInternal.WrapMsg("internal error")))
		}
	}()

	f, err := ParseFrame(raw)
	if err != nil {
		s.fail(err)
		return
	}
	if err := s.dispatch(ctx, f); err != nil {
		s.fail(err)
	}
}

func (s *SessionHandler) dispatch(ctx context.Context, f Frame) error {
	return f.accept(&frameCall{ctx: ctx, s: s})
}

// Close runs the disconnect cleanup. Safe to call more than once.
func (s *SessionHandler) Close() {
	s.hub.disconnect(s.client)
}

func (s *SessionHandler) reply(ev Event) {
	s.hub.bc.SendTo(s.client, ev)
}

func (s *SessionHandler) fail(err error) {
	ce := errs.AsCode(err)
	if ce.Code == errs.ServerInternalError {
		logger.Error("[session] frame failed", zap.String("conn", s.client.ID), zap.Error(err))
	} else {
		logger.Debug("[session] frame rejected", zap.String("conn", s.client.ID), zap.String("reason", ce.Error()))
	}
	s.reply(ErrorFrom(err))
}

// frameCall binds a request context to the visitor methods.
type frameCall struct {
	ctx context.Context
	s   *SessionHandler
}

func (fc *frameCall) visitAuthenticate(f *AuthenticateFrame) error {
	s := fc.s
	if s.state != StateUnauthenticated {
		return errs.ErrUnauthorized.WrapMsg("already authenticated")
	}
	gw := s.hub.gw
	if _, err := gw.GetUser(fc.ctx, f.UserID); err != nil {
		return err
	}
	character, err := gw.GetCharacter(fc.ctx, f.CharacterID)
	if err != nil {
		return err
	}
	if !character.BelongsTo(f.UserID) {
		return errs.ErrUnauthorized.WrapMsg("character does not belong to user")
	}

	s.hub.reg.Bind(s.client, f.UserID, f.CharacterID)
	s.userID, s.characterID = f.UserID, f.CharacterID
	s.state = StateAuthenticated
	s.reply(Authenticated())
	logger.Info("[session] authenticated",
		zap.String("conn", s.client.ID), zap.Int64("user", f.UserID), zap.Int64("character", f.CharacterID))
	return nil
}

func (fc *frameCall) visitJoinRoom(f *JoinRoomFrame) error {
	s := fc.s
	if s.state == StateUnauthenticated {
		return errs.ErrUnauthorized.WrapMsg("not authenticated")
	}
	if _, err := s.hub.gw.GetChatRoom(fc.ctx, f.RoomID); err != nil {
		return err
	}
	s.hub.joinRoom(s.client, s.characterID, f.RoomID)
	s.state = StateRoomJoined
	return nil
}

func (fc *frameCall) visitChatMessage(f *ChatMessageFrame) error {
	s := fc.s
	roomID, err := s.requireRoom(f.RoomID)
	if err != nil {
		return err
	}
	if !model.ClientMessageType(f.MessageType) {
		return errs.ErrProtocol.WrapMsg("unsupported messageType " + f.MessageType)
	}
	if err := s.hub.validContent(f.Content); err != nil {
		return err
	}
	character, err := s.liveCharacter(fc.ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(fc.ctx, s.hub.conf.PersistTimeout)
	defer cancel()
	msg, err := s.hub.gw.CreateMessage(ctx, model.NewMessage{
		RoomID:      roomID,
		CharacterID: s.characterID,
		Content:     f.Content,
		MessageType: f.MessageType,
	})
	if err != nil {
		logger.Error("[session] persist chat message", zap.Int64("room", roomID), zap.Error(err))
		return errs.ErrInternal.WrapMsg("message could not be saved")
	}
	s.hub.bc.BroadcastToRoom(roomID, NewMessage(*msg, character))
	return nil
}

func (fc *frameCall) visitDiceRoll(f *DiceRollFrame) error {
	return fc.s.rollAndBroadcast(fc.ctx, f.RoomID, model.TypeDiceRoll, func(r Roller) string {
		return fmt.Sprintf(diceText, r.Intn(diceSides)+1)
	})
}

func (fc *frameCall) visitCoinFlip(f *CoinFlipFrame) error {
	return fc.s.rollAndBroadcast(fc.ctx, f.RoomID, model.TypeCoinFlip, func(r Roller) string {
		return fmt.Sprintf(coinText, coinSides[r.Intn(len(coinSides))])
	})
}

// rollAndBroadcast sends the outcome to the room first and persists it in the
// background. A failed write is only logged: clients already saw the result.
func (s *SessionHandler) rollAndBroadcast(ctx context.Context, requested int64, msgType string, outcome func(Roller) string) error {
	roomID, err := s.requireRoom(requested)
	if err != nil {
		return err
	}
	character, err := s.liveCharacter(ctx)
	if err != nil {
		return err
	}

	in := model.NewMessage{
		RoomID:      roomID,
		CharacterID: s.characterID,
		Content:     outcome(s.hub.roller),
		MessageType: msgType,
	}
	s.hub.bc.BroadcastToRoom(roomID, NewMessage(model.Message{
		RoomID:      in.RoomID,
		CharacterID: in.CharacterID,
		Content:     in.Content,
		MessageType: in.MessageType,
		CreatedAt:   s.hub.now().UTC(),
	}, character))

	h := s.hub
	h.persistWG.Add(1)
	safe.Go("persist-"+msgType, func() {
		defer h.persistWG.Done()
		pctx, cancel := context.WithTimeout(context.Background(), h.conf.PersistTimeout)
		defer cancel()
		if _, err := h.gw.CreateMessage(pctx, in); err != nil {
			logger.Error("[session] optimistic persist failed",
				zap.String("type", in.MessageType), zap.Int64("room", in.RoomID),
				zap.Int64("character", in.CharacterID), zap.Error(err))
		}
	})
	return nil
}

// requireRoom returns the joined room when it is roomID. The room is read from
// the registry because another tab of the character may have moved it.
func (s *SessionHandler) requireRoom(roomID int64) (int64, error) {
	switch s.state {
	case StateUnauthenticated:
		return 0, errs.ErrUnauthorized.WrapMsg("not authenticated")
	case StateAuthenticated:
		return 0, errs.ErrUnauthorized.WrapMsg("join a room first")
	}
	sess, ok := s.hub.reg.Session(s.client)
	if !ok || sess.RoomID != roomID {
		return 0, errs.ErrUnauthorized.WrapMsg("not in room", "roomId", roomID)
	}
	return sess.RoomID, nil
}

// liveCharacter re-reads the bound character; it may have died since authentication.
func (s *SessionHandler) liveCharacter(ctx context.Context) (*model.Character, error) {
	c, err := s.hub.gw.GetCharacter(ctx, s.characterID)
	if err != nil {
		return nil, err
	}
	if c.IsDead() {
		return nil, errs.ErrDeadCharacter.WrapMsg("dead characters cannot act")
	}
	return c, nil
}

func runeCount(s string) int {
	return utf8.RuneCountInString(s)
}
