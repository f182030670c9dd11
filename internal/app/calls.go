package app

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/dkeye/voicechat/internal/core"
	"github.com/dkeye/voicechat/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Delivery is one event addressed to a set of connections. Coordinators
// return deliveries and the orchestrator sends them after locks are released.
type Delivery struct {
	Conns []core.ConnID
	Event core.Event
}

type Participant struct {
	User domain.UserID `json:"user"`
	Conn core.ConnID   `json:"-"`
}

type Call struct {
	ID           domain.CallID
	Initiator    domain.UserID
	Invited      map[domain.UserID]domain.OfferID
	Participants []Participant
	State        domain.CallState
	CreatedAt    time.Time
}

type Offer struct {
	ID     domain.OfferID
	CallID domain.CallID
	Caller domain.UserID
	Callee domain.UserID
	State  domain.OfferState

	timer *time.Timer
}

// CallInfo is a read-only copy of a call.
type CallInfo struct {
	ID           domain.CallID
	Initiator    domain.UserID
	Participants []Participant
	Pending      []domain.UserID
	State        domain.CallState
	Offers       map[domain.UserID]domain.OfferID
}

// CallCoordinator drives the call and offer state machines. All state sits
// behind one mutex that is never held across storage or transport I/O.
type CallCoordinator struct {
	Users       core.UserStore
	Registry    *core.ConnectionRegistry
	RingTimeout time.Duration
	// Deliver sends deliveries produced outside a client request, such as
	// ring timeouts. It is called without the lock held.
	Deliver func([]Delivery)

	mu     sync.Mutex
	calls  map[domain.CallID]*Call
	offers map[domain.OfferID]*Offer
	byConn map[core.ConnID]domain.CallID
}

func NewCallCoordinator(users core.UserStore, registry *core.ConnectionRegistry, ringTimeout time.Duration) *CallCoordinator {
	return &CallCoordinator{
		Users:       users,
		Registry:    registry,
		RingTimeout: ringTimeout,
		calls:       make(map[domain.CallID]*Call),
		offers:      make(map[domain.OfferID]*Offer),
		byConn:      make(map[core.ConnID]domain.CallID),
	}
}

// StartCall proposes a call from initiator's connection to invited. Checks run
// in order: the invite list, the invited users, the initiator. Nothing is
// recorded when any of them fails.
func (c *CallCoordinator) StartCall(ctx context.Context, initiator domain.UserID, conn core.ConnID, invited []domain.UserID) (CallInfo, []Delivery, error) {
	if len(invited) == 0 {
		return CallInfo{}, nil, domain.Validation("no invited users")
	}
	seen := make(map[domain.UserID]struct{}, len(invited))
	for _, u := range invited {
		if u == "" {
			return CallInfo{}, nil, domain.Validation("empty invited user id")
		}
		if u == initiator {
			return CallInfo{}, nil, domain.Validation("cannot invite yourself")
		}
		if _, dup := seen[u]; dup {
			return CallInfo{}, nil, domain.Validation("duplicate invited user " + string(u))
		}
		seen[u] = struct{}{}
	}

	missing, err := c.Users.MissingUsers(ctx, append([]domain.UserID{initiator}, invited...))
	if err != nil {
		return CallInfo{}, nil, err
	}
	initiatorKnown := true
	for _, m := range missing {
		if m == initiator {
			initiatorKnown = false
			continue
		}
		return CallInfo{}, nil, domain.NotFound("unknown user " + string(m))
	}
	if !initiatorKnown {
		return CallInfo{}, nil, domain.NotFound("unknown initiator")
	}
	if !c.Registry.Has(initiator, conn) {
		return CallInfo{}, nil, domain.Unauthorized("initiator not connected")
	}

	c.mu.Lock()
	if _, busy := c.byConn[conn]; busy {
		c.mu.Unlock()
		return CallInfo{}, nil, domain.Conflict("connection already in a call")
	}

	callees := make(map[domain.UserID][]core.ConnID, len(invited))
	reachable := 0
	for _, u := range invited {
		conns := c.Registry.ConnectionsOf(u)
		callees[u] = conns
		reachable += len(conns)
	}
	if reachable == 0 {
		c.mu.Unlock()
		return CallInfo{}, nil, domain.NotFound("no invited user is online")
	}

	call := &Call{
		ID:           domain.CallID(uuid.NewString()),
		Initiator:    initiator,
		Invited:      make(map[domain.UserID]domain.OfferID, len(invited)),
		Participants: []Participant{{User: initiator, Conn: conn}},
		State:        domain.CallProposed,
		CreatedAt:    time.Now().UTC(),
	}
	out := make([]Delivery, 0, len(invited)+1)
	for _, u := range invited {
		o := &Offer{
			ID:     domain.OfferID(uuid.NewString()),
			CallID: call.ID,
			Caller: initiator,
			Callee: u,
			State:  domain.OfferPending,
		}
		c.offers[o.ID] = o
		call.Invited[u] = o.ID
		if c.RingTimeout > 0 {
			id := o.ID
			o.timer = time.AfterFunc(c.RingTimeout, func() { c.expire(id) })
		}
		out = append(out, Delivery{
			Conns: callees[u],
			Event: core.NewEvent(core.EventIncomingCall, core.IncomingCallPayload{
				Caller: initiator, OfferID: o.ID, CallID: call.ID,
			}),
		})
	}
	c.calls[call.ID] = call
	c.byConn[conn] = call.ID
	info := c.info(call)
	c.mu.Unlock()

	out = append(out, Delivery{
		Conns: []core.ConnID{conn},
		Event: core.NewEvent(core.EventCallStarted, core.CallStartedPayload{
			CallID: call.ID, Offers: info.Offers, Invited: invited,
		}),
	})
	log.Info().Str("module", "app.calls").Str("call", string(call.ID)).Str("initiator", string(initiator)).Int("invited", len(invited)).Msg("call proposed")
	return info, out, nil
}

// AcceptCall resolves user's offer in callID as accepted. The first accept
// makes the call active and supersedes every other pending offer; any later
// accept fails with domain.ErrConflict.
func (c *CallCoordinator) AcceptCall(callID domain.CallID, user domain.UserID, conn core.ConnID) (CallInfo, []Delivery, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	call, ok := c.calls[callID]
	if !ok {
		return CallInfo{}, nil, domain.NotFound("call not found")
	}
	offerID, invited := call.Invited[user]
	if !invited {
		return CallInfo{}, nil, domain.Unauthorized("not invited")
	}
	offer := c.offers[offerID]
	if offer.State.Resolved() {
		return CallInfo{}, nil, domain.Conflict("offer already resolved")
	}
	if call.State != domain.CallProposed {
		return CallInfo{}, nil, domain.Conflict("call already answered")
	}
	if _, busy := c.byConn[conn]; busy {
		return CallInfo{}, nil, domain.Conflict("connection already in a call")
	}

	offer.State = domain.OfferAccepted
	offer.stop()
	call.State = domain.CallActive
	call.Participants = append(call.Participants, Participant{User: user, Conn: conn})
	c.byConn[conn] = call.ID

	out := []Delivery{{
		Conns: call.participantConns(),
		Event: core.NewEvent(core.EventUserJoinedCall, core.CallMemberPayload{User: user, CallID: call.ID}),
	}}
	others := withoutConn(c.Registry.ConnectionsOf(user), conn)
	if len(others) > 0 {
		out = append(out, Delivery{
			Conns: others,
			Event: core.NewEvent(core.EventCallAccepted, core.OfferPayload{OfferID: offer.ID, CallID: call.ID}),
		})
	}
	out = append(out, c.supersedePending(call)...)
	log.Info().Str("module", "app.calls").Str("call", string(call.ID)).Str("user", string(user)).Msg("call accepted")
	return c.info(call), out, nil
}

// DeclineCall resolves offerID as declined. When no offer is left pending and
// nobody answered, the call fails.
func (c *CallCoordinator) DeclineCall(offerID domain.OfferID, user domain.UserID) ([]Delivery, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	offer, ok := c.offers[offerID]
	if !ok {
		return nil, domain.NotFound("offer not found")
	}
	if offer.Callee != user {
		return nil, domain.Unauthorized("offer belongs to another user")
	}
	if offer.State.Resolved() {
		return nil, domain.Conflict("offer already resolved")
	}
	return c.resolveUnanswered(offer, domain.OfferDeclined, "declined"), nil
}

// EndCall terminates callID on behalf of one of its connected participants.
func (c *CallCoordinator) EndCall(callID domain.CallID, requester domain.UserID) ([]Delivery, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	call, ok := c.calls[callID]
	if !ok {
		return nil, domain.NotFound("call not found")
	}
	if !call.hasParticipant(requester) {
		return nil, domain.Unauthorized("not a participant")
	}
	log.Info().Str("module", "app.calls").Str("call", string(call.ID)).Str("by", string(requester)).Msg("call ended")
	return c.end(call), nil
}

// DropConnection removes conn from its call, if any. A proposed call whose
// initiator leaves ends, and so does an active call left with one participant.
func (c *CallCoordinator) DropConnection(conn core.ConnID) []Delivery {
	c.mu.Lock()
	defer c.mu.Unlock()

	callID, ok := c.byConn[conn]
	if !ok {
		return nil
	}
	call := c.calls[callID]
	var left domain.UserID
	kept := call.Participants[:0]
	for _, p := range call.Participants {
		if p.Conn == conn {
			left = p.User
			continue
		}
		kept = append(kept, p)
	}
	call.Participants = kept
	delete(c.byConn, conn)

	if call.State == domain.CallProposed || len(call.Participants) < 2 {
		log.Info().Str("module", "app.calls").Str("call", string(call.ID)).Str("conn", string(conn)).Msg("call ended by disconnect")
		return c.end(call)
	}
	return []Delivery{{
		Conns: call.participantConns(),
		Event: core.NewEvent(core.EventUserLeftCall, core.CallMemberPayload{User: left, CallID: call.ID}),
	}}
}

// Relay forwards a negotiation payload from one participant connection to the
// connections of another participant.
func (c *CallCoordinator) Relay(callID domain.CallID, from domain.UserID, fromConn core.ConnID, to domain.UserID, signal json.RawMessage) ([]Delivery, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	call, ok := c.calls[callID]
	if !ok {
		return nil, domain.NotFound("call not found")
	}
	if c.byConn[fromConn] != callID {
		return nil, domain.Unauthorized("not a participant")
	}
	var targets []core.ConnID
	for _, p := range call.Participants {
		if p.User == to && p.Conn != fromConn {
			targets = append(targets, p.Conn)
		}
	}
	if len(targets) == 0 {
		return nil, domain.NotFound("peer not in call")
	}
	return []Delivery{{
		Conns: targets,
		Event: core.NewEvent(core.EventCallSignal, core.CallSignalPayload{CallID: callID, From: from, Signal: signal}),
	}}, nil
}

func (c *CallCoordinator) Call(id domain.CallID) (CallInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	call, ok := c.calls[id]
	if !ok {
		return CallInfo{}, false
	}
	return c.info(call), true
}

// ActiveCalls counts calls that are proposed or active.
func (c *CallCoordinator) ActiveCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func (c *CallCoordinator) expire(id domain.OfferID) {
	c.mu.Lock()
	offer, ok := c.offers[id]
	if !ok || offer.State.Resolved() {
		c.mu.Unlock()
		return
	}
	out := c.resolveUnanswered(offer, domain.OfferExpired, "no answer")
	c.mu.Unlock()
	log.Info().Str("module", "app.calls").Str("offer", string(id)).Msg("offer expired")
	if c.Deliver != nil {
		c.Deliver(out)
	}
}

// resolveUnanswered settles a pending offer without joining its callee.
// Must be called with c.mu held.
func (c *CallCoordinator) resolveUnanswered(offer *Offer, state domain.OfferState, reason string) []Delivery {
	offer.State = state
	offer.stop()
	call := c.calls[offer.CallID]

	payload := core.OfferPayload{OfferID: offer.ID, CallID: offer.CallID}
	out := []Delivery{{
		Conns: append(call.participantConns(), c.Registry.ConnectionsOf(offer.Callee)...),
		Event: core.NewEvent(core.EventCallDeclined, payload),
	}}
	if call.State != domain.CallProposed || c.hasPending(call) {
		return out
	}

	call.State = domain.CallFailed
	out = append(out, Delivery{
		Conns: call.participantConns(),
		Event: core.NewEvent(core.EventCallFailed, core.CallFailedPayload{CallID: call.ID, Reason: reason}),
	})
	c.remove(call)
	log.Info().Str("module", "app.calls").Str("call", string(call.ID)).Str("reason", reason).Msg("call failed")
	return out
}

// end moves call to Ended and notifies everyone still attached to it.
// Must be called with c.mu held.
func (c *CallCoordinator) end(call *Call) []Delivery {
	call.State = domain.CallEnded
	conns := call.participantConns()
	for u, id := range call.Invited {
		o := c.offers[id]
		if o.State.Resolved() {
			continue
		}
		o.State = domain.OfferSuperseded
		o.stop()
		conns = append(conns, c.Registry.ConnectionsOf(u)...)
	}
	c.remove(call)
	if len(conns) == 0 {
		return nil
	}
	return []Delivery{{
		Conns: conns,
		Event: core.NewEvent(core.EventCallEnded, core.CallPayload{CallID: call.ID}),
	}}
}

// supersedePending cancels the offers still ringing once a call is answered.
func (c *CallCoordinator) supersedePending(call *Call) []Delivery {
	var conns []core.ConnID
	for u, id := range call.Invited {
		o := c.offers[id]
		if o.State.Resolved() {
			continue
		}
		o.State = domain.OfferSuperseded
		o.stop()
		conns = append(conns, c.Registry.ConnectionsOf(u)...)
	}
	if len(conns) == 0 {
		return nil
	}
	return []Delivery{{
		Conns: conns,
		Event: core.NewEvent(core.EventCallEnded, core.CallPayload{CallID: call.ID}),
	}}
}

func (c *CallCoordinator) hasPending(call *Call) bool {
	for _, id := range call.Invited {
		if !c.offers[id].State.Resolved() {
			return true
		}
	}
	return false
}

func (c *CallCoordinator) remove(call *Call) {
	for _, p := range call.Participants {
		if c.byConn[p.Conn] == call.ID {
			delete(c.byConn, p.Conn)
		}
	}
	for _, id := range call.Invited {
		delete(c.offers, id)
	}
	delete(c.calls, call.ID)
}

func (o *Offer) stop() {
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
}

func (call *Call) participantConns() []core.ConnID {
	out := make([]core.ConnID, 0, len(call.Participants))
	for _, p := range call.Participants {
		out = append(out, p.Conn)
	}
	return out
}

func (call *Call) hasParticipant(u domain.UserID) bool {
	for _, p := range call.Participants {
		if p.User == u {
			return true
		}
	}
	return false
}

func (c *CallCoordinator) info(call *Call) CallInfo {
	info := CallInfo{
		ID:           call.ID,
		Initiator:    call.Initiator,
		Participants: append([]Participant(nil), call.Participants...),
		State:        call.State,
		Offers:       make(map[domain.UserID]domain.OfferID, len(call.Invited)),
	}
	for u, id := range call.Invited {
		info.Offers[u] = id
		if o, ok := c.offers[id]; ok && !o.State.Resolved() {
			info.Pending = append(info.Pending, u)
		}
	}
	return info
}

func withoutConn(conns []core.ConnID, skip core.ConnID) []core.ConnID {
	out := conns[:0]
	for _, c := range conns {
		if c != skip {
			out = append(out, c)
		}
	}
	return out
}
