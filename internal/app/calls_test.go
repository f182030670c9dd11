package app

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/voicechat/internal/core"
	"github.com/dkeye/voicechat/internal/domain"
)

type callFixture struct {
	calls    *CallCoordinator
	registry *core.ConnectionRegistry
}

func newCallFixture(t *testing.T, ringTimeout time.Duration) *callFixture {
	t.Helper()
	reg := core.NewConnectionRegistry()
	reg.Add("alice", "a1")
	reg.Add("bob", "b1")
	reg.Add("bob", "b2")
	reg.Add("carol", "k1")
	return &callFixture{
		calls:    NewCallCoordinator(newMemUsers("alice", "bob", "carol", "dave"), reg, ringTimeout),
		registry: reg,
	}
}

func eventsFor(ds []Delivery, conn core.ConnID) []string {
	var out []string
	for _, d := range ds {
		for _, c := range d.Conns {
			if c == conn {
				out = append(out, d.Event.Type)
			}
		}
	}
	return out
}

func TestStartCallValidationOrder(t *testing.T) {
	tests := []struct {
		name      string
		initiator domain.UserID
		conn      core.ConnID
		invited   []domain.UserID
		wantErr   error
	}{
		{"empty list", "alice", "a1", nil, domain.ErrValidation},
		{"duplicates before unknown", "ghost", "x", []domain.UserID{"zed", "zed"}, domain.ErrValidation},
		{"self invite", "alice", "a1", []domain.UserID{"alice"}, domain.ErrValidation},
		{"unknown invitee before initiator", "ghost", "x", []domain.UserID{"zed"}, domain.ErrNotFound},
		{"unknown initiator", "ghost", "x", []domain.UserID{"bob"}, domain.ErrNotFound},
		{"initiator not connected", "alice", "a9", []domain.UserID{"bob"}, domain.ErrUnauthorized},
		{"nobody online", "alice", "a1", []domain.UserID{"dave"}, domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCallFixture(t, 0)
			_, ds, err := f.calls.StartCall(context.Background(), tt.initiator, tt.conn, tt.invited)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, ds)
			assert.Equal(t, 0, f.calls.ActiveCalls())
		})
	}
}

func TestStartCallFansOutToEveryConnection(t *testing.T) {
	f := newCallFixture(t, 0)
	info, ds, err := f.calls.StartCall(context.Background(), "alice", "a1", []domain.UserID{"bob", "carol"})
	require.NoError(t, err)

	assert.Equal(t, domain.CallProposed, info.State)
	assert.Len(t, info.Offers, 2)
	assert.ElementsMatch(t, []domain.UserID{"bob", "carol"}, info.Pending)
	assert.Equal(t, []string{core.EventIncomingCall}, eventsFor(ds, "b1"))
	assert.Equal(t, []string{core.EventIncomingCall}, eventsFor(ds, "b2"))
	assert.Equal(t, []string{core.EventIncomingCall}, eventsFor(ds, "k1"))
	assert.Equal(t, []string{core.EventCallStarted}, eventsFor(ds, "a1"))

	_, _, err = f.calls.StartCall(context.Background(), "alice", "a1", []domain.UserID{"bob"})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

// Scenario: alice calls bob, bob has two devices, accepts on one.
func TestAcceptFirstWinsAcrossDevices(t *testing.T) {
	f := newCallFixture(t, 0)
	info, _, err := f.calls.StartCall(context.Background(), "alice", "a1", []domain.UserID{"bob"})
	require.NoError(t, err)

	got, ds, err := f.calls.AcceptCall(info.ID, "bob", "b1")
	require.NoError(t, err)
	assert.Equal(t, domain.CallActive, got.State)
	assert.Equal(t, []Participant{{User: "alice", Conn: "a1"}, {User: "bob", Conn: "b1"}}, got.Participants)
	assert.Equal(t, []string{core.EventUserJoinedCall}, eventsFor(ds, "a1"))
	assert.Equal(t, []string{core.EventUserJoinedCall}, eventsFor(ds, "b1"))
	assert.Equal(t, []string{core.EventCallAccepted}, eventsFor(ds, "b2"))

	_, _, err = f.calls.AcceptCall(info.ID, "bob", "b2")
	assert.ErrorIs(t, err, domain.ErrConflict)

	cur, ok := f.calls.Call(info.ID)
	require.True(t, ok)
	assert.Empty(t, cur.Pending)
}

func TestAcceptSupersedesOtherInvitees(t *testing.T) {
	f := newCallFixture(t, 0)
	info, _, err := f.calls.StartCall(context.Background(), "alice", "a1", []domain.UserID{"bob", "carol"})
	require.NoError(t, err)

	_, ds, err := f.calls.AcceptCall(info.ID, "carol", "k1")
	require.NoError(t, err)
	assert.Contains(t, eventsFor(ds, "b1"), core.EventCallEnded)

	cur, ok := f.calls.Call(info.ID)
	require.True(t, ok)
	assert.NotContains(t, cur.Pending, domain.UserID("bob"))

	_, _, err = f.calls.AcceptCall(info.ID, "bob", "b1")
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, _, err = f.calls.AcceptCall(info.ID, "dave", "d1")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, _, err = f.calls.AcceptCall("nope", "bob", "b1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConcurrentAcceptExactlyOneWins(t *testing.T) {
	f := newCallFixture(t, 0)
	info, _, err := f.calls.StartCall(context.Background(), "alice", "a1", []domain.UserID{"bob", "carol"})
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for _, p := range []Participant{{"bob", "b1"}, {"bob", "b2"}, {"carol", "k1"}} {
		wg.Add(1)
		go func(p Participant) {
			defer wg.Done()
			if _, _, err := f.calls.AcceptCall(info.ID, p.User, p.Conn); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, domain.ErrConflict)
			}
		}(p)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)

	got, ok := f.calls.Call(info.ID)
	require.True(t, ok)
	assert.Len(t, got.Participants, 2)
	assert.Empty(t, got.Pending)
}

func TestDeclineLastOfferFailsCall(t *testing.T) {
	f := newCallFixture(t, 0)
	info, _, err := f.calls.StartCall(context.Background(), "alice", "a1", []domain.UserID{"bob", "carol"})
	require.NoError(t, err)

	_, err = f.calls.DeclineCall(info.Offers["bob"], "carol")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	ds, err := f.calls.DeclineCall(info.Offers["bob"], "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{core.EventCallDeclined}, eventsFor(ds, "a1"))
	assert.Equal(t, []string{core.EventCallDeclined}, eventsFor(ds, "b2"))

	_, err = f.calls.DeclineCall(info.Offers["bob"], "bob")
	assert.ErrorIs(t, err, domain.ErrConflict)

	ds, err = f.calls.DeclineCall(info.Offers["carol"], "carol")
	require.NoError(t, err)
	assert.Equal(t, []string{core.EventCallDeclined, core.EventCallFailed}, eventsFor(ds, "a1"))

	_, ok := f.calls.Call(info.ID)
	assert.False(t, ok)
}

func TestEndCallRequiresParticipant(t *testing.T) {
	f := newCallFixture(t, 0)
	info, _, err := f.calls.StartCall(context.Background(), "alice", "a1", []domain.UserID{"bob", "carol"})
	require.NoError(t, err)
	_, _, err = f.calls.AcceptCall(info.ID, "bob", "b1")
	require.NoError(t, err)

	_, err = f.calls.EndCall(info.ID, "carol")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	ds, err := f.calls.EndCall(info.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{core.EventCallEnded}, eventsFor(ds, "a1"))
	assert.Equal(t, []string{core.EventCallEnded}, eventsFor(ds, "b1"))

	_, err = f.calls.EndCall(info.ID, "bob")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 0, f.calls.ActiveCalls())
}

func TestInitiatorCancelsProposedCall(t *testing.T) {
	f := newCallFixture(t, 0)
	info, _, err := f.calls.StartCall(context.Background(), "alice", "a1", []domain.UserID{"bob"})
	require.NoError(t, err)

	ds, err := f.calls.EndCall(info.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{core.EventCallEnded}, eventsFor(ds, "b1"))
	assert.Equal(t, []string{core.EventCallEnded}, eventsFor(ds, "b2"))
}

func TestDropConnectionEndsTwoPartyCall(t *testing.T) {
	f := newCallFixture(t, 0)
	info, _, err := f.calls.StartCall(context.Background(), "alice", "a1", []domain.UserID{"bob"})
	require.NoError(t, err)
	_, _, err = f.calls.AcceptCall(info.ID, "bob", "b2")
	require.NoError(t, err)

	assert.Nil(t, f.calls.DropConnection("k1"))
	ds := f.calls.DropConnection("b2")
	assert.Equal(t, []string{core.EventCallEnded}, eventsFor(ds, "a1"))
	assert.Equal(t, 0, f.calls.ActiveCalls())
}

func TestRelayBetweenParticipants(t *testing.T) {
	f := newCallFixture(t, 0)
	info, _, err := f.calls.StartCall(context.Background(), "alice", "a1", []domain.UserID{"bob"})
	require.NoError(t, err)

	sig := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	_, err = f.calls.Relay(info.ID, "alice", "a1", "bob", sig)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, _, err = f.calls.AcceptCall(info.ID, "bob", "b1")
	require.NoError(t, err)

	ds, err := f.calls.Relay(info.ID, "alice", "a1", "bob", sig)
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, []core.ConnID{"b1"}, ds[0].Conns)

	_, err = f.calls.Relay(info.ID, "bob", "b2", "alice", sig)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestOfferExpires(t *testing.T) {
	f := newCallFixture(t, 20*time.Millisecond)
	delivered := make(chan []Delivery, 1)
	f.calls.Deliver = func(ds []Delivery) { delivered <- ds }

	info, _, err := f.calls.StartCall(context.Background(), "alice", "a1", []domain.UserID{"bob"})
	require.NoError(t, err)

	select {
	case ds := <-delivered:
		assert.Equal(t, []string{core.EventCallDeclined, core.EventCallFailed}, eventsFor(ds, "a1"))
	case <-time.After(2 * time.Second):
		t.Fatal("offer did not expire")
	}
	_, ok := f.calls.Call(info.ID)
	assert.False(t, ok)
}
