package chat

import (
	"sort"
	"sync"
)

// JoinResult describes the membership change made by Presence.Join.
type JoinResult struct {
	Members     []int64 // members of the joined room, sorted
	Added       bool    // false when the character was already in the room
	PrevRoom    int64   // room the character was moved out of, 0 if none
	PrevMembers []int64 // remaining members of PrevRoom
}

// Presence tracks which characters are in which room. A character is in at
// most one room; empty rooms are pruned.
type Presence struct {
	mu    sync.RWMutex
	rooms map[int64]map[int64]struct{} // room id -> character ids
	where map[int64]int64              // character id -> room id
}

func NewPresence() *Presence {
	return &Presence{
		rooms: make(map[int64]map[int64]struct{}),
		where: make(map[int64]int64),
	}
}

func (p *Presence) Join(roomID, characterID int64) JoinResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	var res JoinResult
	if cur, ok := p.where[characterID]; ok {
		if cur == roomID {
			res.Members = p.membersLocked(roomID)
			return res
		}
		p.removeLocked(cur, characterID)
		res.PrevRoom = cur
		res.PrevMembers = p.membersLocked(cur)
	}

	set := p.rooms[roomID]
	if set == nil {
		set = make(map[int64]struct{})
		p.rooms[roomID] = set
	}
	set[characterID] = struct{}{}
	p.where[characterID] = roomID

	res.Added = true
	res.Members = p.membersLocked(roomID)
	return res
}

// Leave removes the character from roomID and returns who is left. removed is
// false when the character was not in that room.
func (p *Presence) Leave(roomID, characterID int64) (members []int64, removed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cur, ok := p.where[characterID]; !ok || cur != roomID {
		return p.membersLocked(roomID), false
	}
	p.removeLocked(roomID, characterID)
	return p.membersLocked(roomID), true
}

func (p *Presence) MembersOf(roomID int64) []int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.membersLocked(roomID)
}

func (p *Presence) RoomOf(characterID int64) (int64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	r, ok := p.where[characterID]
	return r, ok
}

// Rooms returns the number of non-empty rooms.
func (p *Presence) Rooms() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.rooms)
}

func (p *Presence) removeLocked(roomID, characterID int64) {
	delete(p.where, characterID)
	set := p.rooms[roomID]
	if set == nil {
		return
	}
	delete(set, characterID)
	if len(set) == 0 {
		delete(p.rooms, roomID)
	}
}

func (p *Presence) membersLocked(roomID int64) []int64 {
	set := p.rooms[roomID]
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
