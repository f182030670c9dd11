package app

import (
	"context"
	"slices"
	"sync"

	"github.com/dkeye/voicechat/internal/core"
	"github.com/dkeye/voicechat/internal/domain"
	"github.com/rs/zerolog/log"
)

const PageSize = 20

// Page is one slice of history, oldest message first. NextCursor points just
// before Messages[0]. ReachedEnd is set on the first empty page.
type Page struct {
	Messages   []domain.Message `json:"messages"`
	NextCursor string           `json:"nextCursor"`
	ReachedEnd bool             `json:"reachedEnd"`
}

// HistoryPager serves reverse-chronological history in fixed pages.
type HistoryPager struct {
	Store core.MessageStore

	mu   sync.Mutex
	ends map[domain.RoomID]domain.Boundary
}

func NewHistoryPager(store core.MessageStore) *HistoryPager {
	return &HistoryPager{Store: store, ends: make(map[domain.RoomID]domain.Boundary)}
}

// GetPage returns up to PageSize messages older than cursor. An empty or
// malformed cursor yields the newest page.
func (h *HistoryPager) GetPage(ctx context.Context, channel domain.RoomID, cursor string) (Page, error) {
	before, err := domain.DecodeCursor(cursor)
	if err != nil {
		log.Debug().Err(err).Str("module", "app.history").Str("channel", string(channel)).Msg("ignoring cursor")
		before = domain.Boundary{}
	}
	if h.knownEnd(channel, before) {
		return Page{Messages: []domain.Message{}, ReachedEnd: true}, nil
	}

	msgs, err := h.Store.MessagesBefore(ctx, channel, before, PageSize)
	if err != nil {
		return Page{}, err
	}
	if len(msgs) == 0 {
		h.markEnd(channel, before)
		return Page{Messages: []domain.Message{}, ReachedEnd: true}, nil
	}
	slices.Reverse(msgs)
	return Page{
		Messages:   msgs,
		NextCursor: domain.EncodeCursor(msgs[0].Boundary()),
	}, nil
}

// knownEnd reports whether an earlier query proved nothing exists at or
// before b. History only grows at the newest end, so the mark stays valid.
func (h *HistoryPager) knownEnd(channel domain.RoomID, b domain.Boundary) bool {
	if b.IsZero() {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	end, ok := h.ends[channel]
	return ok && !end.Before(b)
}

func (h *HistoryPager) markEnd(channel domain.RoomID, b domain.Boundary) {
	if b.IsZero() {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if end, ok := h.ends[channel]; !ok || end.Before(b) {
		h.ends[channel] = b
	}
}
