package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/dkeye/voicechat/internal/core/mock"
	"github.com/dkeye/voicechat/internal/domain"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// newestFirst builds n messages at t0+1s..t0+ns with matching seq, newest first.
func newestFirst(from, to int) []domain.Message {
	out := make([]domain.Message, 0, to-from+1)
	for i := to; i >= from; i-- {
		out = append(out, domain.Message{
			ID:        domain.MessageID(fmt.Sprintf("m%d", i)),
			Seq:       int64(i),
			ChannelID: "c",
			Timestamp: t0.Add(time.Duration(i) * time.Second),
		})
	}
	return out
}

func TestGetPageReversesAndSetsCursor(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mock.NewMockMessageStore(ctrl)
	pager := NewHistoryPager(store)

	store.EXPECT().MessagesBefore(gomock.Any(), domain.RoomID("c"), domain.Boundary{}, PageSize).
		Return(newestFirst(6, 25), nil)

	page, err := pager.GetPage(context.Background(), "c", "")
	require.NoError(t, err)
	require.Len(t, page.Messages, PageSize)
	assert.Equal(t, domain.MessageID("m6"), page.Messages[0].ID)
	assert.Equal(t, domain.MessageID("m25"), page.Messages[PageSize-1].ID)
	assert.False(t, page.ReachedEnd)

	b, err := domain.DecodeCursor(page.NextCursor)
	require.NoError(t, err)
	assert.True(t, b.At.Equal(t0.Add(6*time.Second)))
	assert.Equal(t, int64(6), b.Seq)
}

func TestGetPageFollowsCursorToEnd(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mock.NewMockMessageStore(ctrl)
	pager := NewHistoryPager(store)
	ctx := context.Background()

	cursor := domain.EncodeCursor(domain.Boundary{At: t0.Add(6 * time.Second), Seq: 6})
	store.EXPECT().MessagesBefore(gomock.Any(), domain.RoomID("c"), gomock.Any(), PageSize).
		DoAndReturn(func(_ context.Context, _ domain.RoomID, before domain.Boundary, _ int) ([]domain.Message, error) {
			assert.Equal(t, int64(6), before.Seq)
			return newestFirst(1, 5), nil
		})

	page, err := pager.GetPage(ctx, "c", cursor)
	require.NoError(t, err)
	require.Len(t, page.Messages, 5)
	assert.Equal(t, domain.MessageID("m1"), page.Messages[0].ID)

	oldest := domain.EncodeCursor(domain.Boundary{At: t0.Add(time.Second), Seq: 1})
	assert.Equal(t, oldest, page.NextCursor)

	store.EXPECT().MessagesBefore(gomock.Any(), domain.RoomID("c"), gomock.Any(), PageSize).
		Return(nil, nil).Times(1)
	page, err = pager.GetPage(ctx, "c", page.NextCursor)
	require.NoError(t, err)
	assert.Empty(t, page.Messages)
	assert.True(t, page.ReachedEnd)
	assert.Empty(t, page.NextCursor)

	// the end is remembered, no second query
	page, err = pager.GetPage(ctx, "c", oldest)
	require.NoError(t, err)
	assert.True(t, page.ReachedEnd)
}

func TestGetPageMalformedCursorIsNewest(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mock.NewMockMessageStore(ctrl)
	pager := NewHistoryPager(store)

	store.EXPECT().MessagesBefore(gomock.Any(), domain.RoomID("c"), domain.Boundary{}, PageSize).
		Return(newestFirst(1, 3), nil)

	page, err := pager.GetPage(context.Background(), "c", "!!not-a-cursor!!")
	require.NoError(t, err)
	assert.Len(t, page.Messages, 3)
}

func TestGetPageStorageError(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mock.NewMockMessageStore(ctrl)
	pager := NewHistoryPager(store)

	store.EXPECT().MessagesBefore(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, domain.Storage("query messages", errDown))

	_, err := pager.GetPage(context.Background(), "c", "")
	assert.ErrorIs(t, err, domain.ErrStorage)
}
