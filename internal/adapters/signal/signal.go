package signal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/voicechat/internal/core"
	"github.com/dkeye/voicechat/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

const sendBuffer = 32

// Service is the part of the orchestrator driven by client frames.
type Service interface {
	Connect(ctx context.Context, user domain.UserID, conn core.ConnID, sig core.SignalConnection, cancel context.CancelFunc) error
	Disconnect(user domain.UserID, conn core.ConnID)
	SendMessage(ctx context.Context, user domain.UserID, channel domain.RoomID, content string) error
	StartCall(ctx context.Context, user domain.UserID, conn core.ConnID, invited []domain.UserID) error
	AcceptCall(user domain.UserID, conn core.ConnID, callID domain.CallID) error
	DeclineCall(user domain.UserID, conn core.ConnID, offerID domain.OfferID) error
	EndCall(user domain.UserID, conn core.ConnID, callID domain.CallID) error
	RelayCallSignal(user domain.UserID, conn core.ConnID, callID domain.CallID, peer domain.UserID, signal json.RawMessage) error
}

type SignalWSController struct {
	Orch       Service
	Limiter    *RateLimiter
	ReadLimit  int64
	PingPeriod time.Duration
}

func NewSignalWSController(orch Service, limiter *RateLimiter, readLimit int64, pingPeriod time.Duration) *SignalWSController {
	return &SignalWSController{
		Orch:       orch,
		Limiter:    limiter,
		ReadLimit:  readLimit,
		PingPeriod: pingPeriod,
	}
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(ws *websocket.Conn) *WsSignalConn {
	return &WsSignalConn{conn: ws, send: make(chan core.Frame, sendBuffer)}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
}

// session is the per-connection state shared by the pumps and handlers.
type session struct {
	ctx  context.Context
	user domain.UserID
	id   core.ConnID
	conn *WsSignalConn
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and runs the connection of an already
// authenticated user until either side closes it.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context, user domain.UserID) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	s := &session{
		user: user,
		id:   core.ConnID(uuid.NewString()),
		conn: newWsSignalConn(ws),
	}
	var cancel context.CancelFunc
	s.ctx, cancel = context.WithCancel(ctx)
	log.Info().Str("module", "signal").Str("user", string(user)).Str("conn", string(s.id)).Msg("new WS connection")

	if err := ctl.Orch.Connect(s.ctx, user, s.id, s.conn, cancel); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("user", string(user)).Msg("connect rejected")
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, domain.ReasonOf(err)),
			time.Now().Add(time.Second))
		cancel()
		s.conn.Close()
		return
	}

	go ctl.writePump(s)
	go ctl.readPump(s, cancel)
}

func (ctl *SignalWSController) sendJSON(c *WsSignalConn, ev core.Event) {
	b, err := ev.Encode()
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

func (ctl *SignalWSController) sendError(c *WsSignalConn, reason string) {
	ctl.sendJSON(c, core.NewEvent(core.EventError, core.ErrorPayload{Reason: reason}))
}
