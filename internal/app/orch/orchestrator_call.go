package orch

import (
	"context"
	"encoding/json"

	"github.com/dkeye/voicechat/internal/core"
	"github.com/dkeye/voicechat/internal/domain"
	"github.com/rs/zerolog/log"
)

// StartCall proposes a call from conn. Any failure is reported back to conn
// as CallFailed.
func (o *Orchestrator) StartCall(ctx context.Context, user domain.UserID, conn core.ConnID, invited []domain.UserID) error {
	info, ds, err := o.Calls.StartCall(ctx, user, conn, invited)
	if err != nil {
		log.Info().Err(err).Str("module", "orch").Str("user", string(user)).Msg("start call rejected")
		ev := core.NewEvent(core.EventCallFailed, core.CallFailedPayload{Reason: domain.ReasonOf(err)})
		o.send(conn, ev)
		o.Bus.Publish(ev)
		return err
	}
	o.Deliver(ds)
	o.Bus.Publish(core.NewEvent(core.EventCallStarted, core.CallPayload{CallID: info.ID}))
	return nil
}

func (o *Orchestrator) AcceptCall(user domain.UserID, conn core.ConnID, callID domain.CallID) error {
	_, ds, err := o.Calls.AcceptCall(callID, user, conn)
	if err != nil {
		o.sendError(conn, err)
		return err
	}
	o.Deliver(ds)
	o.Bus.Publish(core.NewEvent(core.EventUserJoinedCall, core.CallMemberPayload{User: user, CallID: callID}))
	return nil
}

func (o *Orchestrator) DeclineCall(user domain.UserID, conn core.ConnID, offerID domain.OfferID) error {
	ds, err := o.Calls.DeclineCall(offerID, user)
	if err != nil {
		o.sendError(conn, err)
		return err
	}
	o.Deliver(ds)
	o.Bus.Publish(core.NewEvent(core.EventCallDeclined, core.OfferPayload{OfferID: offerID}))
	for _, d := range ds {
		if d.Event.Type == core.EventCallFailed {
			o.Bus.Publish(d.Event)
		}
	}
	return nil
}

func (o *Orchestrator) EndCall(user domain.UserID, conn core.ConnID, callID domain.CallID) error {
	ds, err := o.Calls.EndCall(callID, user)
	if err != nil {
		o.sendError(conn, err)
		return err
	}
	o.Deliver(ds)
	o.Bus.Publish(core.NewEvent(core.EventCallEnded, core.CallPayload{CallID: callID}))
	return nil
}

// RelayCallSignal forwards an already validated SDP or ICE payload to peer.
func (o *Orchestrator) RelayCallSignal(user domain.UserID, conn core.ConnID, callID domain.CallID, peer domain.UserID, signal json.RawMessage) error {
	ds, err := o.Calls.Relay(callID, user, conn, peer, signal)
	if err != nil {
		o.sendError(conn, err)
		return err
	}
	o.Deliver(ds)
	return nil
}
