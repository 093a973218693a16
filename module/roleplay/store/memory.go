package store

import (
	"context"
	"sync"
	"time"

	"RPChat/module/roleplay/model"
	"RPChat/tools/errs"
)

// Memory is an in-process gateway used for local runs and tests.
type Memory struct {
	mu         sync.RWMutex
	users      map[int64]model.User
	characters map[int64]model.Character
	rooms      map[int64]model.ChatRoom
	messages   []model.Message
	nextMsgID  int64

	createErr error
	now       func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		users:      make(map[int64]model.User),
		characters: make(map[int64]model.Character),
		rooms:      make(map[int64]model.ChatRoom),
		now:        time.Now,
	}
}

// SeedDemo loads two players with one character each and a single room.
func (m *Memory) SeedDemo() *Memory {
	m.AddUser(model.User{ID: 1, Username: "alice"})
	m.AddUser(model.User{ID: 2, Username: "bob"})
	m.AddCharacter(model.Character{ID: 7, UserID: 1, Name: "Aurelie"})
	m.AddCharacter(model.Character{ID: 8, UserID: 2, Name: "Bertrand"})
	m.AddRoom(model.ChatRoom{ID: 5, Name: "Great Hall"})
	return m
}

func (m *Memory) AddUser(u model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

func (m *Memory) AddCharacter(c model.Character) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.characters[c.ID] = c
}

func (m *Memory) AddRoom(r model.ChatRoom) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[r.ID] = r
}

// Kill marks the character as dead at the given time.
func (m *Memory) Kill(characterID int64, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.characters[characterID]
	if !ok {
		return
	}
	c.DeathDate = &at
	m.characters[characterID] = c
}

// FailCreate makes every following CreateMessage return err; nil restores success.
func (m *Memory) FailCreate(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createErr = err
}

// Messages returns a copy of everything persisted so far.
func (m *Memory) Messages() []model.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Message, len(m.messages))
	copy(out, m.messages)
	return out
}

func (m *Memory) GetUser(_ context.Context, id int64) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, errs.ErrNotFound.WrapMsg("user not found", "userId", id)
	}
	return &u, nil
}

func (m *Memory) GetCharacter(_ context.Context, id int64) (*model.Character, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.characters[id]
	if !ok {
		return nil, errs.ErrNotFound.WrapMsg("character not found", "characterId", id)
	}
	if c.DeathDate != nil {
		d := *c.DeathDate
		c.DeathDate = &d
	}
	return &c, nil
}

func (m *Memory) GetChatRoom(_ context.Context, id int64) (*model.ChatRoom, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	if !ok {
		return nil, errs.ErrNotFound.WrapMsg("room not found", "roomId", id)
	}
	return &r, nil
}

func (m *Memory) CreateMessage(ctx context.Context, in model.NewMessage) (*model.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, errs.Wrap(m.createErr)
	}
	m.nextMsgID++
	msg := model.Message{
		ID:          m.nextMsgID,
		RoomID:      in.RoomID,
		CharacterID: in.CharacterID,
		Content:     in.Content,
		MessageType: in.MessageType,
		CreatedAt:   m.now().UTC(),
	}
	m.messages = append(m.messages, msg)
	return &msg, nil
}
