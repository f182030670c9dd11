package orch

import (
	"context"

	"github.com/dkeye/voicechat/internal/app"
	"github.com/dkeye/voicechat/internal/core"
	"github.com/dkeye/voicechat/internal/domain"
	"github.com/rs/zerolog/log"
)

// SendMessage posts content to channel on behalf of user. Sends to a channel
// the user does not belong to are dropped without a reply.
func (o *Orchestrator) SendMessage(ctx context.Context, user domain.UserID, channel domain.RoomID, content string) error {
	if !o.Channels.IsMember(user, channel) {
		log.Debug().Str("module", "orch").Str("user", string(user)).Str("channel", string(channel)).Msg("send to foreign channel dropped")
		return nil
	}
	msg, err := domain.NewMessage(user, channel, content, nil, o.MaxMessageLen, o.now())
	if err != nil {
		return err
	}
	o.publishMessage(ctx, msg)
	return nil
}

// publishMessage persists msg and broadcasts it. A storage failure is logged
// and the message is still delivered to the live audience.
func (o *Orchestrator) publishMessage(ctx context.Context, msg *domain.Message) {
	if err := o.Messages.AppendMessage(ctx, msg); err != nil {
		log.Error().Err(err).Str("module", "orch").Str("channel", string(msg.ChannelID)).Str("message", string(msg.ID)).Msg("persist message")
	} else if err := o.Channels.RecordLastMessage(ctx, msg); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("channel", string(msg.ChannelID)).Msg("record last message")
	}
	ev := core.NewEvent(core.EventReceiveMessage, msg)
	o.broadcast(msg.ChannelID, ev)
	o.Bus.Publish(ev)
}

// CreateChannel creates a private channel and attaches every live connection
// of its participants before announcing it to them.
func (o *Orchestrator) CreateChannel(ctx context.Context, creator domain.UserID, participants []domain.UserID) (*domain.Channel, error) {
	ch, err := o.Channels.CreateChannel(ctx, creator, participants)
	if err != nil {
		return nil, err
	}
	for _, p := range ch.Participants {
		o.Presence.AttachToRoom(p, ch.ID)
	}
	o.broadcast(ch.ID, core.NewEvent(core.EventAddedToChannel, core.ChannelPayload{Channel: ch.Clone()}))
	return ch, nil
}

// ChannelHistory returns one page of channel's history for a member. An
// unknown channel is NotFound and a foreign one Unauthorized.
func (o *Orchestrator) ChannelHistory(ctx context.Context, user domain.UserID, channel domain.RoomID, cursor string) (app.Page, error) {
	if channel != domain.GlobalRoomID {
		ch, err := o.Channels.Get(ctx, channel)
		if err != nil {
			return app.Page{}, err
		}
		if !ch.HasParticipant(user) {
			return app.Page{}, domain.Unauthorized("not a channel member")
		}
	}
	return o.History.GetPage(ctx, channel, cursor)
}

func (o *Orchestrator) ChannelsOf(ctx context.Context, user domain.UserID) ([]domain.Channel, error) {
	return o.Channels.ChannelsOf(ctx, user)
}
