package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

func (ctl *SignalWSController) writePump(s *session) {
	var tick <-chan time.Time
	if ctl.PingPeriod > 0 {
		ticker := time.NewTicker(ctl.PingPeriod)
		defer ticker.Stop()
		tick = ticker.C
	}
	// Closing the socket also unblocks the read pump.
	defer s.conn.Close()

	for {
		select {
		case <-s.ctx.Done():
			log.Info().Str("module", "signal").Str("conn", string(s.id)).Msg("writePump ctx done")
			_ = s.conn.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case data, ok := <-s.conn.send:
			if !ok {
				log.Warn().Str("module", "signal").Str("conn", string(s.id)).Msg("writePump channel closed")
				return
			}
			if err := s.conn.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := s.conn.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-tick:
			if err := s.conn.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("conn", string(s.id)).Msg("writePump ping")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(s *session, cancel context.CancelFunc) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(s.id)).Msg("readPump closing")
		cancel()
		ctl.Orch.Disconnect(s.user, s.id)
		s.conn.Close()
	}()

	ws := s.conn.conn
	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}
	if ctl.PingPeriod > 0 {
		pongWait := ctl.PingPeriod * 10 / 9
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(pongWait))
		})
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("module", "signal").Str("conn", string(s.id)).Msg("readPump read error")
			}
			return
		}
		if s.ctx.Err() != nil {
			return
		}
		ctl.handleSignal(s, data)
	}
}

func (ctl *SignalWSController) handleSignal(s *session, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendError(s.conn, "bad_payload")
		return
	}

	switch env.Type {
	case "SendMessage":
		ctl.handleSendMessage(s, data)
	case "StartCall":
		ctl.handleStartCall(s, data)
	case "AcceptCall":
		ctl.handleAcceptCall(s, data)
	case "DeclineCall":
		ctl.handleDeclineCall(s, data)
	case "EndCall":
		ctl.handleEndCall(s, data)
	case "CallSignal":
		ctl.handleCallSignal(s, data)
	case "ping":
		ctl.handlePing(s.conn)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		ctl.sendError(s.conn, "unknown_type")
	}
}

// decode unmarshals a client frame, answering bad_payload when it fails.
func (ctl *SignalWSController) decode(s *session, data []byte, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(s.id)).Msg("bad payload")
		ctl.sendError(s.conn, "bad_payload")
		return false
	}
	return true
}
