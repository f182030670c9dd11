package core

import (
	"sync"

	"github.com/dkeye/voicechat/internal/domain"
	"github.com/rs/zerolog/log"
)

// ConnectionRegistry maps a user to the set of connections they hold open.
// A user is online while the set is non-empty.
type ConnectionRegistry struct {
	mu    sync.Mutex
	conns map[domain.UserID][]ConnID
}

func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{conns: make(map[domain.UserID][]ConnID)}
}

// Add records conn for user and reports whether it is the user's first connection.
// Adding a connection that is already present is a no-op returning false.
func (r *ConnectionRegistry) Add(user domain.UserID, conn ConnID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.conns[user]
	for _, c := range set {
		if c == conn {
			return false
		}
	}
	r.conns[user] = append(set, conn)
	first := len(set) == 0
	log.Debug().Str("module", "core.registry").Str("user", string(user)).Str("conn", string(conn)).Bool("first", first).Msg("connection added")
	return first
}

// Remove drops conn and reports whether it was the user's last connection.
// Unknown users or connections are ignored.
func (r *ConnectionRegistry) Remove(user domain.UserID, conn ConnID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.conns[user]
	if !ok {
		return false
	}
	idx := -1
	for i, c := range set {
		if c == conn {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	set = append(set[:idx], set[idx+1:]...)
	if len(set) == 0 {
		delete(r.conns, user)
		log.Debug().Str("module", "core.registry").Str("user", string(user)).Str("conn", string(conn)).Msg("last connection removed")
		return true
	}
	r.conns[user] = set
	log.Debug().Str("module", "core.registry").Str("user", string(user)).Str("conn", string(conn)).Msg("connection removed")
	return false
}

// ConnectionsOf returns a copy of user's connections in the order they were added.
func (r *ConnectionRegistry) ConnectionsOf(user domain.UserID) []ConnID {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.conns[user]
	out := make([]ConnID, len(set))
	copy(out, set)
	return out
}

func (r *ConnectionRegistry) Has(user domain.UserID, conn ConnID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.conns[user] {
		if c == conn {
			return true
		}
	}
	return false
}

func (r *ConnectionRegistry) IsOnline(user domain.UserID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns[user]) > 0
}

func (r *ConnectionRegistry) AllOnlineUsers() []domain.UserID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.UserID, 0, len(r.conns))
	for u := range r.conns {
		out = append(out, u)
	}
	return out
}

// Len returns the number of online users.
func (r *ConnectionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}
