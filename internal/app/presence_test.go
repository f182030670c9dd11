package app

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/voicechat/internal/core"
	"github.com/dkeye/voicechat/internal/domain"
)

func newPresence(users *memUsers, store *memChannels) (*PresenceCoordinator, *ChannelDirectory) {
	dir := NewChannelDirectory(store, users, core.NewRoomMembership())
	return &PresenceCoordinator{
		Registry: core.NewConnectionRegistry(),
		Groups:   core.NewGroupManager(),
		Channels: dir,
		Sessions: NewSessions(),
	}, dir
}

func TestPresenceUniqueOnlyOnFirstAndLast(t *testing.T) {
	ctx := context.Background()
	p, _ := newPresence(newMemUsers("alice"), newMemChannels())

	ch, err := p.OnConnect(ctx, "alice", "c1", nopSignal{})
	require.NoError(t, err)
	assert.True(t, ch.Unique)
	assert.Equal(t, []domain.RoomID{domain.GlobalRoomID}, ch.Rooms)

	ch, err = p.OnConnect(ctx, "alice", "c2", nopSignal{})
	require.NoError(t, err)
	assert.False(t, ch.Unique)

	assert.False(t, p.OnDisconnect("alice", "c1").Unique)
	last := p.OnDisconnect("alice", "c2")
	assert.True(t, last.Unique)
	assert.Equal(t, []domain.RoomID{domain.GlobalRoomID}, last.Rooms)
	assert.False(t, p.OnDisconnect("alice", "c2").Unique)
}

func TestPresenceJoinsChannelGroups(t *testing.T) {
	ctx := context.Background()
	users := newMemUsers("alice", "bob")
	store := newMemChannels()
	p, dir := newPresence(users, store)

	created, err := dir.CreateChannel(ctx, "alice", []domain.UserID{"alice", "bob"})
	require.NoError(t, err)

	_, err = p.OnConnect(ctx, "bob", "b1", nopSignal{})
	require.NoError(t, err)
	assert.Contains(t, p.Groups.Connections(created.ID), core.ConnID("b1"))
}

func TestPresenceStorageFailureLeavesNoTrace(t *testing.T) {
	store := newMemChannels()
	store.fail = errDown
	p, _ := newPresence(newMemUsers("alice"), store)

	_, err := p.OnConnect(context.Background(), "alice", "c1", nopSignal{})
	assert.ErrorIs(t, err, errDown)
	assert.False(t, p.Registry.IsOnline("alice"))
	assert.Empty(t, p.Groups.Connections(domain.GlobalRoomID))
}

func TestPresenceAudienceIsDeduplicatedAndExcludesSelf(t *testing.T) {
	ctx := context.Background()
	users := newMemUsers("alice", "bob", "carol")
	p, dir := newPresence(users, newMemChannels())

	_, err := dir.CreateChannel(ctx, "alice", []domain.UserID{"alice", "bob"})
	require.NoError(t, err)

	for _, c := range []struct {
		user domain.UserID
		conn core.ConnID
	}{{"bob", "b1"}, {"bob", "b2"}, {"carol", "k1"}, {"alice", "a1"}} {
		_, err := p.OnConnect(ctx, c.user, c.conn, nopSignal{})
		require.NoError(t, err)
	}

	audience := p.Audience("alice", p.Channels.Membership.RoomsOf("alice"))
	assert.ElementsMatch(t, []core.ConnID{"b1", "b2", "k1"}, audience)
}

func TestPresenceAttachToRoom(t *testing.T) {
	ctx := context.Background()
	p, _ := newPresence(newMemUsers("alice"), newMemChannels())
	_, err := p.OnConnect(ctx, "alice", "a1", nopSignal{})
	require.NoError(t, err)
	p.Sessions.Bind("a1", "alice", nopSignal{}, nil)

	p.AttachToRoom("alice", "r1")
	assert.Equal(t, core.PublishResult{SendTo: 1}, p.Broadcast("r1", core.Frame("hi")))
	assert.Equal(t, core.PublishResult{}, p.Broadcast("r2", core.Frame("hi")))
}

func TestPresenceChannelCreatedWhileConnecting(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < 200; i++ {
		p, dir := newPresence(newMemUsers("alice", "bob"), newMemChannels())
		p.Sessions.Bind("b1", "bob", nopSignal{}, nil)

		var ch *domain.Channel
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			created, err := dir.CreateChannel(ctx, "alice", []domain.UserID{"alice", "bob"})
			if assert.NoError(t, err) {
				p.AttachToRoom("bob", created.ID)
				ch = created
			}
		}()
		go func() {
			defer wg.Done()
			_, err := p.OnConnect(ctx, "bob", "b1", nopSignal{})
			assert.NoError(t, err)
		}()
		wg.Wait()

		require.NotNil(t, ch)
		require.Contains(t, p.Groups.Connections(ch.ID), core.ConnID("b1"))
	}
}

func TestPresenceChannelCreatedWhileDisconnecting(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < 200; i++ {
		p, dir := newPresence(newMemUsers("alice", "bob"), newMemChannels())
		p.Sessions.Bind("b1", "bob", nopSignal{}, nil)
		_, err := p.OnConnect(ctx, "bob", "b1", nopSignal{})
		require.NoError(t, err)

		var ch *domain.Channel
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			created, err := dir.CreateChannel(ctx, "alice", []domain.UserID{"alice", "bob"})
			if assert.NoError(t, err) {
				p.AttachToRoom("bob", created.ID)
				ch = created
			}
		}()
		go func() {
			defer wg.Done()
			p.OnDisconnect("bob", "b1")
		}()
		wg.Wait()

		require.NotNil(t, ch)
		require.NotContains(t, p.Groups.Connections(ch.ID), core.ConnID("b1"))
	}
}
