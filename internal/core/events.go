package core

import (
	"encoding/json"

	"github.com/dkeye/voicechat/internal/domain"
)

// Server → client event names.
const (
	EventReceiveMessage    = "ReceiveMessage"
	EventUserConnected     = "UserConnected"
	EventUserDisconnected  = "UserDisconnected"
	EventGetConnectedUsers = "GetConnectedUsers"
	EventGetChannels       = "GetChannels"
	EventAddedToChannel    = "AddedToChannel"
	EventIncomingCall      = "IncomingCall"
	EventCallStarted       = "CallStarted"
	EventCallAccepted      = "CallAccepted"
	EventCallDeclined      = "CallDeclined"
	EventCallEnded         = "CallEnded"
	EventCallFailed        = "CallFailed"
	EventUserJoinedCall    = "UserJoinedCall"
	EventUserLeftCall      = "UserLeftCall"
	EventCallSignal        = "CallSignal"
	EventError             = "Error"
	EventPong              = "pong"
)

// Event is the envelope written to clients.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

func NewEvent(typ string, payload any) Event { return Event{Type: typ, Payload: payload} }

func (e Event) Encode() (Frame, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return Frame(b), nil
}

type UserPayload struct {
	User domain.UserID `json:"user"`
}

type IncomingCallPayload struct {
	Caller  domain.UserID  `json:"caller"`
	OfferID domain.OfferID `json:"offerId"`
	CallID  domain.CallID  `json:"callId"`
}

type CallStartedPayload struct {
	CallID  domain.CallID                    `json:"callId"`
	Offers  map[domain.UserID]domain.OfferID `json:"offers"`
	Invited []domain.UserID                  `json:"invited"`
}

type OfferPayload struct {
	OfferID domain.OfferID `json:"offerId"`
	CallID  domain.CallID  `json:"callId"`
}

type CallPayload struct {
	CallID domain.CallID `json:"callId"`
}

type CallFailedPayload struct {
	CallID domain.CallID `json:"callId,omitempty"`
	Reason string        `json:"reason"`
}

type CallMemberPayload struct {
	User   domain.UserID `json:"user"`
	CallID domain.CallID `json:"callId"`
}

type CallSignalPayload struct {
	CallID domain.CallID   `json:"callId"`
	From   domain.UserID   `json:"from"`
	Signal json.RawMessage `json:"signal"`
}

type ErrorPayload struct {
	Reason string `json:"reason"`
}

type ConnectedUsersPayload struct {
	Users []domain.UserID `json:"users"`
}

type ChannelsPayload struct {
	Channels []domain.Channel `json:"channels"`
}

type ChannelPayload struct {
	Channel domain.Channel `json:"channel"`
}
