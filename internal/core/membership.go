package core

import (
	"sync"

	"github.com/dkeye/voicechat/internal/domain"
)

// RoomMembership is the user ↔ room relation. The global room is implicit:
// every user is a member and it is never stored.
type RoomMembership struct {
	mu     sync.RWMutex
	byUser map[domain.UserID]map[domain.RoomID]struct{}
}

func NewRoomMembership() *RoomMembership {
	return &RoomMembership{
		byUser: make(map[domain.UserID]map[domain.RoomID]struct{}),
	}
}

func (m *RoomMembership) Join(user domain.UserID, room domain.RoomID) {
	if room == domain.GlobalRoomID {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rooms, ok := m.byUser[user]
	if !ok {
		rooms = make(map[domain.RoomID]struct{})
		m.byUser[user] = rooms
	}
	rooms[room] = struct{}{}
}

// RoomsOf returns the global room followed by user's private rooms.
func (m *RoomMembership) RoomsOf(user domain.UserID) []domain.RoomID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rooms := m.byUser[user]
	out := make([]domain.RoomID, 0, len(rooms)+1)
	out = append(out, domain.GlobalRoomID)
	for r := range rooms {
		out = append(out, r)
	}
	return out
}

func (m *RoomMembership) IsMember(user domain.UserID, room domain.RoomID) bool {
	if room == domain.GlobalRoomID {
		return true
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byUser[user][room]
	return ok
}
