package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const DefaultMaxMessageLen = 4000

type MessageID string

// Message is an append-only chat record. Seq is assigned by storage and
// breaks ties between messages sharing a timestamp.
type Message struct {
	ID        MessageID `json:"id"`
	Seq       int64     `json:"-"`
	ChannelID RoomID    `json:"channelId"`
	Author    UserID    `json:"author"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Embed     *Embed    `json:"embed,omitempty"`
}

type MessageSummary struct {
	ID        MessageID `json:"id"`
	Author    UserID    `json:"author"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage builds a record stamped with now. A message needs content or an embed.
func NewMessage(author UserID, channel RoomID, content string, embed *Embed, maxLen int, now time.Time) (*Message, error) {
	content = strings.TrimSpace(content)
	if content == "" && embed == nil {
		return nil, Validation("empty message")
	}
	if maxLen > 0 && utf8.RuneCountInString(content) > maxLen {
		return nil, Validation("message too long")
	}
	if channel == "" {
		return nil, Validation("missing channel")
	}
	return &Message{
		ID:        MessageID(uuid.NewString()),
		ChannelID: channel,
		Author:    author,
		Content:   content,
		Timestamp: now.UTC(),
		Embed:     embed,
	}, nil
}

func (m *Message) Summary() MessageSummary {
	return MessageSummary{ID: m.ID, Author: m.Author, Content: m.Content, Timestamp: m.Timestamp}
}

func (m *Message) Boundary() Boundary {
	return Boundary{At: m.Timestamp, Seq: m.Seq}
}
