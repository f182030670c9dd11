package core

import (
	"sync"

	"github.com/dkeye/voicechat/internal/domain"
	"github.com/rs/zerolog/log"
)

// PublishResult reports how many connections took a frame and which ones
// refused it.
type PublishResult struct {
	SendTo  int
	Dropped []ConnID
}

// Group is the transport fan-out set for one room.
// It never closes adapter-owned resources.
type Group struct {
	room   domain.RoomID
	mu     sync.RWMutex
	byConn map[ConnID]SignalConnection
}

func NewGroup(room domain.RoomID) *Group {
	return &Group{
		room:   room,
		byConn: make(map[ConnID]SignalConnection),
	}
}

func (g *Group) Add(conn ConnID, sig SignalConnection) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.byConn[conn] = sig
	log.Debug().Str("module", "core.group").Str("room", string(g.room)).Str("conn", string(conn)).Msg("connection joined group")
}

// Remove drops conn and returns the remaining size.
func (g *Group) Remove(conn ConnID) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.byConn, conn)
	return len(g.byConn)
}

// Broadcast sends data to every connection in the group except from. An
// empty from reaches everyone.
func (g *Group) Broadcast(from ConnID, data Frame) PublishResult {
	g.mu.RLock()
	defer g.mu.RUnlock()
	res := PublishResult{}
	for conn, sig := range g.byConn {
		if conn == from {
			continue
		}
		if err := sig.TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, conn)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "core.group").Str("room", string(g.room)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (g *Group) snapshot(into map[ConnID]SignalConnection) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for conn, sig := range g.byConn {
		into[conn] = sig
	}
}
