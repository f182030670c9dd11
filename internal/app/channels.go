package app

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/voicechat/internal/core"
	"github.com/dkeye/voicechat/internal/domain"
	"github.com/rs/zerolog/log"
)

// ChannelDirectory caches private channels and keeps RoomMembership in sync
// with the channel store.
type ChannelDirectory struct {
	Store      core.ChannelStore
	Users      core.UserStore
	Membership *core.RoomMembership
	Now        func() time.Time

	mu       sync.RWMutex
	channels map[domain.RoomID]*domain.Channel
	hydrated map[domain.UserID]struct{}
}

func NewChannelDirectory(store core.ChannelStore, users core.UserStore, membership *core.RoomMembership) *ChannelDirectory {
	return &ChannelDirectory{
		Store:      store,
		Users:      users,
		Membership: membership,
		Now:        time.Now,
		channels:   make(map[domain.RoomID]*domain.Channel),
		hydrated:   make(map[domain.UserID]struct{}),
	}
}

// Hydrate loads user's channels from the store once per process lifetime.
func (d *ChannelDirectory) Hydrate(ctx context.Context, user domain.UserID) error {
	d.mu.RLock()
	_, done := d.hydrated[user]
	d.mu.RUnlock()
	if done {
		return nil
	}
	chs, err := d.Store.ChannelsOf(ctx, user)
	if err != nil {
		return err
	}
	d.mu.Lock()
	for i := range chs {
		if _, ok := d.channels[chs[i].ID]; !ok {
			ch := chs[i]
			d.channels[ch.ID] = &ch
		}
	}
	d.hydrated[user] = struct{}{}
	d.mu.Unlock()
	for _, ch := range chs {
		for _, p := range ch.Participants {
			d.Membership.Join(p, ch.ID)
		}
	}
	return nil
}

// CreateChannel persists a channel with exactly the requested participants
// and then records the membership. The list must name at least two distinct
// users, the creator among them.
func (d *ChannelDirectory) CreateChannel(ctx context.Context, creator domain.UserID, participants []domain.UserID) (*domain.Channel, error) {
	if err := domain.ValidateParticipants(participants); err != nil {
		return nil, err
	}
	if creator != "" && !containsUser(participants, creator) {
		return nil, domain.Validation("creator must be a participant")
	}
	ch, err := domain.NewChannel(participants, d.Now())
	if err != nil {
		return nil, err
	}
	missing, err := d.Users.MissingUsers(ctx, ch.Participants)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		names := make([]string, len(missing))
		for i, m := range missing {
			names[i] = string(m)
		}
		return nil, domain.NotFound("unknown user " + strings.Join(names, ", "))
	}
	if err := d.Store.CreateChannel(ctx, ch); err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.channels[ch.ID] = ch
	d.mu.Unlock()
	for _, p := range ch.Participants {
		d.Membership.Join(p, ch.ID)
	}
	log.Info().Str("module", "app.channels").Str("channel", string(ch.ID)).Int("participants", len(ch.Participants)).Msg("channel created")
	out := ch.Clone()
	return &out, nil
}

// ChannelsOf lists user's private channels, most recently active first.
func (d *ChannelDirectory) ChannelsOf(ctx context.Context, user domain.UserID) ([]domain.Channel, error) {
	if err := d.Hydrate(ctx, user); err != nil {
		return nil, err
	}
	rooms := d.Membership.RoomsOf(user)
	d.mu.RLock()
	out := make([]domain.Channel, 0, len(rooms))
	for _, id := range rooms {
		if ch, ok := d.channels[id]; ok {
			out = append(out, ch.Clone())
		}
	}
	d.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return lastActivity(&out[i]).After(lastActivity(&out[j]))
	})
	return out, nil
}

func (d *ChannelDirectory) Get(ctx context.Context, id domain.RoomID) (*domain.Channel, error) {
	d.mu.RLock()
	ch, ok := d.channels[id]
	if ok {
		out := ch.Clone()
		d.mu.RUnlock()
		return &out, nil
	}
	d.mu.RUnlock()
	return d.Store.GetChannel(ctx, id)
}

func (d *ChannelDirectory) IsMember(user domain.UserID, room domain.RoomID) bool {
	return d.Membership.IsMember(user, room)
}

// RecordLastMessage overwrites the channel's last-message summary. The global
// room keeps no summary.
func (d *ChannelDirectory) RecordLastMessage(ctx context.Context, m *domain.Message) error {
	if m.ChannelID == domain.GlobalRoomID {
		return nil
	}
	sum := m.Summary()
	d.mu.Lock()
	if ch, ok := d.channels[m.ChannelID]; ok {
		ch.LastMessage = &sum
	}
	d.mu.Unlock()
	return d.Store.UpdateLastMessage(ctx, m.ChannelID, sum)
}

func lastActivity(ch *domain.Channel) time.Time {
	if ch.LastMessage != nil {
		return ch.LastMessage.Timestamp
	}
	return ch.CreatedAt
}

func containsUser(ids []domain.UserID, u domain.UserID) bool {
	for _, id := range ids {
		if id == u {
			return true
		}
	}
	return false
}
