package chat

import (
	"sync"
)

// State of a connection's session.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticated
	StateRoomJoined
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateRoomJoined:
		return "room_joined"
	default:
		return "unknown"
	}
}

// Session is the identity and room bound to a connection. Zero ids mean unset.
type Session struct {
	UserID      int64
	CharacterID int64
	RoomID      int64
}

// Binding pairs a connection with a copy of its session.
type Binding struct {
	Client  *Client
	Session Session
}

// Registry maps every open connection to its session data.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Binding // client id -> binding
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Binding)}
}

// Register adds c with an empty session. Registering twice keeps the first entry.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[c.ID]; ok {
		return
	}
	r.entries[c.ID] = &Binding{Client: c}
}

// Bind attaches a verified identity. No-op when c is not registered.
func (r *Registry) Bind(c *Client, userID, characterID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.entries[c.ID]
	if !ok {
		return false
	}
	b.Session.UserID = userID
	b.Session.CharacterID = characterID
	return true
}

func (r *Registry) SetRoom(c *Client, roomID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.entries[c.ID]
	if !ok {
		return false
	}
	b.Session.RoomID = roomID
	return true
}

// MoveCharacter points every other connection of characterID that sits in a
// room into roomID and returns them. Connections with no room stay put.
func (r *Registry) MoveCharacter(characterID, roomID int64, except *Client) []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	var moved []*Client
	for _, b := range r.entries {
		if b.Client == except || b.Session.CharacterID != characterID {
			continue
		}
		if b.Session.RoomID == 0 || b.Session.RoomID == roomID {
			continue
		}
		b.Session.RoomID = roomID
		moved = append(moved, b.Client)
	}
	return moved
}

// Unregister removes c and returns the session it had. The second return is
// false when c was already gone, which makes repeated calls harmless.
func (r *Registry) Unregister(c *Client) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.entries[c.ID]
	if !ok {
		return Session{}, false
	}
	delete(r.entries, c.ID)
	return b.Session, true
}

func (r *Registry) Session(c *Client) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.entries[c.ID]
	if !ok {
		return Session{}, false
	}
	return b.Session, true
}

// Snapshot copies every binding; callers may iterate it while the registry changes.
func (r *Registry) Snapshot() []Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Binding, 0, len(r.entries))
	for _, b := range r.entries {
		out = append(out, *b)
	}
	return out
}

// InRoom lists the open connections currently pointed at roomID.
func (r *Registry) InRoom(roomID int64) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Client
	for _, b := range r.entries {
		if b.Session.RoomID == roomID {
			out = append(out, b.Client)
		}
	}
	return out
}

// CharacterConnected reports whether another connection than except has
// characterID bound in roomID.
func (r *Registry) CharacterConnected(characterID, roomID int64, except *Client) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, b := range r.entries {
		if except != nil && id == except.ID {
			continue
		}
		if b.Session.CharacterID == characterID && b.Session.RoomID == roomID {
			return true
		}
	}
	return false
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
