// Package rtc checks WebRTC negotiation payloads relayed between call
// participants. Media never flows through the server.
package rtc

import (
	"encoding/json"
	"strings"

	"github.com/dkeye/voicechat/internal/domain"
	"github.com/pion/webrtc/v4"
)

const maxCandidateLen = 1024

var DefaultICEServers = []string{"stun:stun.l.google.com:19302"}

// Signal is a single SDP description or ICE candidate sent to a peer.
type Signal struct {
	SDP       *webrtc.SessionDescription `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
}

// Validate checks that s carries exactly one well-formed payload and returns
// its canonical encoding.
func Validate(s Signal) (json.RawMessage, error) {
	switch {
	case s.SDP != nil && s.Candidate != nil:
		return nil, domain.Validation("signal carries both sdp and candidate")
	case s.SDP != nil:
		if err := validateSDP(s.SDP); err != nil {
			return nil, err
		}
	case s.Candidate != nil:
		if err := validateCandidate(s.Candidate); err != nil {
			return nil, err
		}
	default:
		return nil, domain.Validation("signal needs sdp or candidate")
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, domain.Validation("unencodable signal")
	}
	return b, nil
}

func validateSDP(sd *webrtc.SessionDescription) error {
	switch sd.Type {
	case webrtc.SDPTypeRollback:
		return nil
	case webrtc.SDPTypeOffer, webrtc.SDPTypeAnswer, webrtc.SDPTypePranswer:
	default:
		return domain.Validation("unknown sdp type")
	}
	if _, err := sd.Unmarshal(); err != nil {
		return domain.Validation("malformed sdp")
	}
	return nil
}

// An empty candidate string marks the end of gathering and is allowed.
func validateCandidate(c *webrtc.ICECandidateInit) error {
	if len(c.Candidate) > maxCandidateLen {
		return domain.Validation("candidate too long")
	}
	if c.Candidate != "" && !strings.HasPrefix(c.Candidate, "candidate:") {
		return domain.Validation("malformed candidate")
	}
	return nil
}

// Configuration is what clients need to build their peer connections.
func Configuration(iceServers []string) webrtc.Configuration {
	if len(iceServers) == 0 {
		iceServers = DefaultICEServers
	}
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: iceServers}},
	}
}
