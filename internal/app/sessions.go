package app

import (
	"context"
	"sync"

	"github.com/dkeye/voicechat/internal/core"
	"github.com/dkeye/voicechat/internal/domain"
	"github.com/rs/zerolog/log"
)

type sessionEntry struct {
	User   domain.UserID
	Signal core.SignalConnection
	Cancel context.CancelFunc
}

// Sessions maps live connections to their owner and transport endpoint.
type Sessions struct {
	mu       sync.RWMutex
	sessions map[core.ConnID]*sessionEntry
}

func NewSessions() *Sessions {
	return &Sessions{sessions: make(map[core.ConnID]*sessionEntry)}
}

func (s *Sessions) Bind(conn core.ConnID, user domain.UserID, sig core.SignalConnection, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[conn] = &sessionEntry{User: user, Signal: sig, Cancel: cancel}
	log.Info().Str("module", "app.sessions").Str("conn", string(conn)).Str("user", string(user)).Msg("bound signal")
}

func (s *Sessions) Get(conn core.ConnID) (domain.UserID, core.SignalConnection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.sessions[conn]; ok {
		return e.User, e.Signal, true
	}
	return "", nil, false
}

func (s *Sessions) Signal(conn core.ConnID) (core.SignalConnection, bool) {
	_, sig, ok := s.Get(conn)
	return sig, ok
}

// Unbind forgets conn and reports whether it was bound.
func (s *Sessions) Unbind(conn core.ConnID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[conn]; !ok {
		return false
	}
	delete(s.sessions, conn)
	log.Info().Str("module", "app.sessions").Str("conn", string(conn)).Msg("unbind session")
	return true
}

// Cancel stops conn's pumps. The adapter then runs the disconnect path.
func (s *Sessions) Cancel(conn core.ConnID) bool {
	s.mu.RLock()
	e, ok := s.sessions[conn]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.sessions").Str("conn", string(conn)).Msg("canceled session")
	return true
}

func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
