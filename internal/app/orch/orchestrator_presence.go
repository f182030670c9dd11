package orch

import (
	"context"

	"github.com/dkeye/voicechat/internal/app"
	"github.com/dkeye/voicechat/internal/core"
	"github.com/dkeye/voicechat/internal/domain"
	"github.com/rs/zerolog/log"
)

// Connect registers a new connection of user. The user is resolved before
// anything is recorded, so an unknown identity leaves no state behind.
// cancel stops the connection's pumps when the policy kicks it.
func (o *Orchestrator) Connect(ctx context.Context, user domain.UserID, conn core.ConnID, sig core.SignalConnection, cancel context.CancelFunc) error {
	if _, err := o.Users.Resolve(ctx, user); err != nil {
		return err
	}
	o.Sessions.Bind(conn, user, sig, cancel)
	change, err := o.Presence.OnConnect(ctx, user, conn, sig)
	if err != nil {
		o.Sessions.Unbind(conn)
		return err
	}
	o.Bus.Publish(core.NewEvent(core.TopicConnectionOpened, conn))

	channels, err := o.Channels.ChannelsOf(ctx, user)
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("user", string(user)).Msg("list channels")
		channels = []domain.Channel{}
	}
	o.send(conn, core.NewEvent(core.EventGetConnectedUsers, core.ConnectedUsersPayload{Users: o.Presence.OnlineUsers()}))
	o.send(conn, core.NewEvent(core.EventGetChannels, core.ChannelsPayload{Channels: channels}))

	if change.Unique {
		ev := core.NewEvent(core.EventUserConnected, core.UserPayload{User: user})
		o.Deliver([]app.Delivery{{Conns: o.Presence.Audience(user, change.Rooms), Event: ev}})
		o.Bus.Publish(ev)
	}
	return nil
}

// Disconnect tears down everything conn held: its call leg, its groups and
// its session. Unknown connections are a no-op.
func (o *Orchestrator) Disconnect(user domain.UserID, conn core.ConnID) {
	o.Deliver(o.Calls.DropConnection(conn))
	change := o.Presence.OnDisconnect(user, conn)
	if o.Sessions.Unbind(conn) {
		o.Bus.Publish(core.NewEvent(core.TopicConnectionClosed, conn))
	}

	if change.Unique {
		ev := core.NewEvent(core.EventUserDisconnected, core.UserPayload{User: user})
		o.Deliver([]app.Delivery{{Conns: o.Presence.Audience(user, change.Rooms), Event: ev}})
		o.Bus.Publish(ev)
	}
}
