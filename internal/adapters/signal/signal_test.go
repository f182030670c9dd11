package signal

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/voicechat/internal/core"
	"github.com/dkeye/voicechat/internal/domain"
)

type fakeService struct {
	mu           sync.Mutex
	connectErr   error
	cancel       context.CancelFunc
	messages     []string
	invited      []domain.UserID
	relayed      []json.RawMessage
	disconnected chan core.ConnID
}

func newFakeService() *fakeService {
	return &fakeService{disconnected: make(chan core.ConnID, 1)}
}

func (f *fakeService) Connect(_ context.Context, _ domain.UserID, _ core.ConnID, sig core.SignalConnection, cancel context.CancelFunc) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.mu.Lock()
	f.cancel = cancel
	f.mu.Unlock()
	frame, _ := core.NewEvent(core.EventGetConnectedUsers, core.ConnectedUsersPayload{Users: []domain.UserID{"alice"}}).Encode()
	return sig.TrySend(frame)
}

func (f *fakeService) Disconnect(_ domain.UserID, conn core.ConnID) { f.disconnected <- conn }

func (f *fakeService) SendMessage(_ context.Context, _ domain.UserID, _ domain.RoomID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if strings.TrimSpace(content) == "" {
		return domain.Validation("empty message")
	}
	f.messages = append(f.messages, content)
	return nil
}

func (f *fakeService) StartCall(_ context.Context, _ domain.UserID, _ core.ConnID, invited []domain.UserID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invited = append(f.invited, invited...)
	return nil
}

func (f *fakeService) AcceptCall(domain.UserID, core.ConnID, domain.CallID) error   { return nil }
func (f *fakeService) DeclineCall(domain.UserID, core.ConnID, domain.OfferID) error { return nil }
func (f *fakeService) EndCall(domain.UserID, core.ConnID, domain.CallID) error      { return nil }

func (f *fakeService) RelayCallSignal(_ domain.UserID, _ core.ConnID, _ domain.CallID, _ domain.UserID, signal json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.relayed = append(f.relayed, signal)
	return nil
}

func (f *fakeService) snapshot() ([]string, []domain.UserID, []json.RawMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages...), append([]domain.UserID(nil), f.invited...), append([]json.RawMessage(nil), f.relayed...)
}

type received struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func dial(t *testing.T, svc *fakeService, limiter *RateLimiter) *websocket.Conn {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctl := NewSignalWSController(svc, limiter, 1<<16, time.Minute)
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { ctl.HandleSignal(context.Background(), c, "alice") })
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func read(t *testing.T, ws *websocket.Conn) received {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev received
	require.NoError(t, ws.ReadJSON(&ev))
	return ev
}

func write(t *testing.T, ws *websocket.Conn, frame string) {
	t.Helper()
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(frame)))
}

// roundTrip sends a ping and waits for its pong, so every earlier frame has
// been handled.
func roundTrip(t *testing.T, ws *websocket.Conn) {
	t.Helper()
	write(t, ws, `{"type":"ping"}`)
	assert.Equal(t, core.EventPong, read(t, ws).Type)
}

func errorReason(t *testing.T, ev received) string {
	t.Helper()
	require.Equal(t, core.EventError, ev.Type)
	var p core.ErrorPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &p))
	return p.Reason
}

func TestFramesQueuedOnConnectAreDelivered(t *testing.T) {
	ws := dial(t, newFakeService(), nil)
	assert.Equal(t, core.EventGetConnectedUsers, read(t, ws).Type)
	roundTrip(t, ws)
}

func TestSendMessage(t *testing.T) {
	svc := newFakeService()
	ws := dial(t, svc, NewRateLimiter(10, time.Minute))
	read(t, ws)

	write(t, ws, `{"type":"SendMessage","content":"hi","channelId":"c1"}`)
	roundTrip(t, ws)
	msgs, _, _ := svc.snapshot()
	assert.Equal(t, []string{"hi"}, msgs)

	write(t, ws, `{"type":"SendMessage","content":"  ","channelId":"c1"}`)
	assert.Equal(t, "empty message", errorReason(t, read(t, ws)))
}

func TestSendMessageRateLimited(t *testing.T) {
	svc := newFakeService()
	ws := dial(t, svc, NewRateLimiter(1, time.Minute))
	read(t, ws)

	write(t, ws, `{"type":"SendMessage","content":"one"}`)
	write(t, ws, `{"type":"SendMessage","content":"two"}`)
	assert.Equal(t, "rate_limited", errorReason(t, read(t, ws)))
	msgs, _, _ := svc.snapshot()
	assert.Equal(t, []string{"one"}, msgs)
}

func TestMalformedFrames(t *testing.T) {
	tests := []struct {
		name   string
		frame  string
		reason string
	}{
		{"not json", `{"type":`, "bad_payload"},
		{"unknown type", `{"type":"Dance"}`, "unknown_type"},
		{"wrong field type", `{"type":"StartCall","invitedIds":"bob"}`, "bad_payload"},
		{"garbage sdp", `{"type":"CallSignal","callId":"c","to":"bob","sdp":{"type":"offer","sdp":"nope"}}`, "malformed sdp"},
		{"no signal", `{"type":"CallSignal","callId":"c","to":"bob"}`, "signal needs sdp or candidate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := dial(t, newFakeService(), nil)
			read(t, ws)
			write(t, ws, tt.frame)
			assert.Equal(t, tt.reason, errorReason(t, read(t, ws)))
		})
	}
}

func TestCallFramesReachService(t *testing.T) {
	svc := newFakeService()
	ws := dial(t, svc, nil)
	read(t, ws)

	write(t, ws, `{"type":"StartCall","invitedIds":["bob","carol"]}`)
	write(t, ws, `{"type":"CallSignal","callId":"c1","to":"bob","candidate":{"candidate":"candidate:1 1 udp 1 10.0.0.1 5000 typ host","sdpMid":"0"}}`)
	roundTrip(t, ws)

	_, invited, relayed := svc.snapshot()
	assert.Equal(t, []domain.UserID{"bob", "carol"}, invited)
	require.Len(t, relayed, 1)
	assert.Contains(t, string(relayed[0]), "typ host")
}

func TestClientCloseDisconnects(t *testing.T) {
	svc := newFakeService()
	ws := dial(t, svc, nil)
	read(t, ws)
	require.NoError(t, ws.Close())

	select {
	case <-svc.disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect not called")
	}
}

func TestKickClosesSocket(t *testing.T) {
	svc := newFakeService()
	ws := dial(t, svc, nil)
	read(t, ws)

	svc.mu.Lock()
	svc.cancel()
	svc.mu.Unlock()

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := ws.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	select {
	case <-svc.disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect not called")
	}
}

func TestRejectedConnectClosesWithReason(t *testing.T) {
	svc := newFakeService()
	svc.connectErr = domain.NotFound("user not found")
	ws := dial(t, svc, nil)

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := ws.ReadMessage()
	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, websocket.ClosePolicyViolation, ce.Code)
	assert.Equal(t, "user not found", ce.Text)
}
