package signal

import (
	"github.com/dkeye/voicechat/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleSendMessage(s *session, data []byte) {
	var p struct {
		Content   string        `json:"content"`
		ChannelID domain.RoomID `json:"channelId"`
	}
	if !ctl.decode(s, data, &p) {
		return
	}
	if p.ChannelID == "" {
		p.ChannelID = domain.GlobalRoomID
	}
	if !ctl.Limiter.Allow(s.user) {
		log.Info().Str("module", "signal").Str("user", string(s.user)).Msg("message rate limited")
		ctl.sendError(s.conn, "rate_limited")
		return
	}
	if err := ctl.Orch.SendMessage(s.ctx, s.user, p.ChannelID, p.Content); err != nil {
		ctl.sendError(s.conn, domain.ReasonOf(err))
	}
}
