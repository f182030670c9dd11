package signal

import (
	"github.com/dkeye/voicechat/internal/adapters/rtc"
	"github.com/dkeye/voicechat/internal/domain"
	"github.com/rs/zerolog/log"
)

// Call handlers leave error reporting to the orchestrator, which answers the
// requesting connection itself.

func (ctl *SignalWSController) handleStartCall(s *session, data []byte) {
	var p struct {
		InvitedIDs []domain.UserID `json:"invitedIds"`
	}
	if !ctl.decode(s, data, &p) {
		return
	}
	if err := ctl.Orch.StartCall(s.ctx, s.user, s.id, p.InvitedIDs); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("conn", string(s.id)).Msg("start call")
	}
}

func (ctl *SignalWSController) handleAcceptCall(s *session, data []byte) {
	var p struct {
		CallID domain.CallID `json:"callId"`
	}
	if !ctl.decode(s, data, &p) {
		return
	}
	if err := ctl.Orch.AcceptCall(s.user, s.id, p.CallID); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("conn", string(s.id)).Msg("accept call")
	}
}

func (ctl *SignalWSController) handleDeclineCall(s *session, data []byte) {
	var p struct {
		OfferID domain.OfferID `json:"offerId"`
	}
	if !ctl.decode(s, data, &p) {
		return
	}
	if err := ctl.Orch.DeclineCall(s.user, s.id, p.OfferID); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("conn", string(s.id)).Msg("decline call")
	}
}

func (ctl *SignalWSController) handleEndCall(s *session, data []byte) {
	var p struct {
		CallID domain.CallID `json:"callId"`
	}
	if !ctl.decode(s, data, &p) {
		return
	}
	if err := ctl.Orch.EndCall(s.user, s.id, p.CallID); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("conn", string(s.id)).Msg("end call")
	}
}

func (ctl *SignalWSController) handleCallSignal(s *session, data []byte) {
	var p struct {
		CallID domain.CallID `json:"callId"`
		To     domain.UserID `json:"to"`
		rtc.Signal
	}
	if !ctl.decode(s, data, &p) {
		return
	}
	raw, err := rtc.Validate(p.Signal)
	if err != nil {
		ctl.sendError(s.conn, domain.ReasonOf(err))
		return
	}
	if err := ctl.Orch.RelayCallSignal(s.user, s.id, p.CallID, p.To, raw); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("conn", string(s.id)).Msg("relay call signal")
	}
}
