package app

import (
	"context"
	"sync"

	"github.com/dkeye/voicechat/internal/core"
	"github.com/dkeye/voicechat/internal/domain"
	"github.com/rs/zerolog/log"
)

// PresenceChange is the outcome of a connect or disconnect. Unique is true on
// a user's first connection and on their last disconnection.
type PresenceChange struct {
	Unique bool
	Rooms  []domain.RoomID
}

// PresenceCoordinator keeps connections and room groups in step. attach
// orders registry and group updates against AttachToRoom: a room joined
// while a connection comes online reaches it through one path or the other.
type PresenceCoordinator struct {
	Registry *core.ConnectionRegistry
	Groups   *core.GroupManager
	Channels *ChannelDirectory
	Sessions *Sessions

	attach sync.Mutex
}

// OnConnect joins conn to the group of every room user belongs to. Channel
// hydration runs first so a storage failure leaves no trace in the registry.
func (p *PresenceCoordinator) OnConnect(ctx context.Context, user domain.UserID, conn core.ConnID, sig core.SignalConnection) (PresenceChange, error) {
	if err := p.Channels.Hydrate(ctx, user); err != nil {
		return PresenceChange{}, err
	}
	p.attach.Lock()
	unique := p.Registry.Add(user, conn)
	rooms := p.Channels.Membership.RoomsOf(user)
	p.Groups.Join(conn, sig, rooms...)
	p.attach.Unlock()
	log.Info().Str("module", "app.presence").Str("user", string(user)).Str("conn", string(conn)).Bool("unique", unique).Int("rooms", len(rooms)).Msg("connected")
	return PresenceChange{Unique: unique, Rooms: rooms}, nil
}

func (p *PresenceCoordinator) OnDisconnect(user domain.UserID, conn core.ConnID) PresenceChange {
	p.attach.Lock()
	last := p.Registry.Remove(user, conn)
	p.Groups.LeaveAll(conn)
	p.attach.Unlock()
	log.Info().Str("module", "app.presence").Str("user", string(user)).Str("conn", string(conn)).Bool("last", last).Msg("disconnected")
	if !last {
		return PresenceChange{}
	}
	return PresenceChange{Unique: true, Rooms: p.Channels.Membership.RoomsOf(user)}
}

// AttachToRoom joins every live connection of user to room's group.
func (p *PresenceCoordinator) AttachToRoom(user domain.UserID, room domain.RoomID) {
	p.attach.Lock()
	defer p.attach.Unlock()
	for _, conn := range p.Registry.ConnectionsOf(user) {
		if sig, ok := p.Sessions.Signal(conn); ok {
			p.Groups.Join(conn, sig, room)
		}
	}
}

// Audience returns the connections in rooms that do not belong to user.
func (p *PresenceCoordinator) Audience(user domain.UserID, rooms []domain.RoomID) []core.ConnID {
	conns := p.Groups.Connections(rooms...)
	for _, own := range p.Registry.ConnectionsOf(user) {
		delete(conns, own)
	}
	out := make([]core.ConnID, 0, len(conns))
	for c := range conns {
		out = append(out, c)
	}
	return out
}

// Broadcast queues frame on every connection in room.
func (p *PresenceCoordinator) Broadcast(room domain.RoomID, frame core.Frame) core.PublishResult {
	g, ok := p.Groups.Get(room)
	if !ok {
		return core.PublishResult{}
	}
	return g.Broadcast("", frame)
}

func (p *PresenceCoordinator) OnlineUsers() []domain.UserID {
	return p.Registry.AllOnlineUsers()
}
