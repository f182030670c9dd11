package core

import (
	"sync"

	"github.com/dkeye/voicechat/internal/domain"
)

// GroupManager owns one Group per room with at least one live connection and
// remembers which groups each connection joined.
type GroupManager struct {
	mu     sync.RWMutex
	groups map[domain.RoomID]*Group
	joined map[ConnID]map[domain.RoomID]struct{}
}

func NewGroupManager() *GroupManager {
	return &GroupManager{
		groups: make(map[domain.RoomID]*Group),
		joined: make(map[ConnID]map[domain.RoomID]struct{}),
	}
}

func (m *GroupManager) Get(room domain.RoomID) (*Group, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.groups[room]
	return g, ok
}

// Join adds conn to the group of every listed room.
func (m *GroupManager) Join(conn ConnID, sig SignalConnection, rooms ...domain.RoomID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.joined[conn]
	if !ok {
		set = make(map[domain.RoomID]struct{})
		m.joined[conn] = set
	}
	for _, room := range rooms {
		g, ok := m.groups[room]
		if !ok {
			g = NewGroup(room)
			m.groups[room] = g
		}
		g.Add(conn, sig)
		set[room] = struct{}{}
	}
}

// LeaveAll removes conn from every group it joined. Empty groups are dropped.
func (m *GroupManager) LeaveAll(conn ConnID) []domain.RoomID {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.joined[conn]
	delete(m.joined, conn)
	out := make([]domain.RoomID, 0, len(set))
	for room := range set {
		out = append(out, room)
		g, ok := m.groups[room]
		if !ok {
			continue
		}
		if g.Remove(conn) == 0 {
			delete(m.groups, room)
		}
	}
	return out
}

// Connections returns the union of the connections in rooms, each exactly once.
func (m *GroupManager) Connections(rooms ...domain.RoomID) map[ConnID]SignalConnection {
	m.mu.RLock()
	groups := make([]*Group, 0, len(rooms))
	for _, room := range rooms {
		if g, ok := m.groups[room]; ok {
			groups = append(groups, g)
		}
	}
	m.mu.RUnlock()
	out := make(map[ConnID]SignalConnection)
	for _, g := range groups {
		g.snapshot(out)
	}
	return out
}
