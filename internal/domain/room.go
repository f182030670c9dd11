package domain

import (
	"time"

	"github.com/google/uuid"
)

type RoomID string

// GlobalRoomID is the room every user belongs to. It has no channel record.
const GlobalRoomID RoomID = "global"

// Channel is a private room with a fixed participant set.
type Channel struct {
	ID           RoomID          `json:"id"`
	Participants []UserID        `json:"participants"`
	CreatedAt    time.Time       `json:"createdAt"`
	LastMessage  *MessageSummary `json:"lastMessage,omitempty"`
}

// NewChannel validates the participant set and assigns an id.
func NewChannel(participants []UserID, now time.Time) (*Channel, error) {
	if err := ValidateParticipants(participants); err != nil {
		return nil, err
	}
	if len(participants) < 2 {
		return nil, Validation("channel needs at least two participants")
	}
	ps := make([]UserID, len(participants))
	copy(ps, participants)
	return &Channel{
		ID:           RoomID(uuid.NewString()),
		Participants: ps,
		CreatedAt:    now.UTC(),
	}, nil
}

// ValidateParticipants rejects empty and repeated ids.
func ValidateParticipants(ids []UserID) error {
	seen := make(map[UserID]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			return Validation("empty participant id")
		}
		if _, dup := seen[id]; dup {
			return Validation("duplicate participant " + string(id))
		}
		seen[id] = struct{}{}
	}
	return nil
}

func (c *Channel) HasParticipant(u UserID) bool {
	for _, p := range c.Participants {
		if p == u {
			return true
		}
	}
	return false
}

// Clone returns a copy safe to hand out of a locked cache.
func (c *Channel) Clone() Channel {
	out := *c
	out.Participants = append([]UserID(nil), c.Participants...)
	if c.LastMessage != nil {
		lm := *c.LastMessage
		out.LastMessage = &lm
	}
	return out
}
