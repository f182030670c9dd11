package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChannelValidation(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		ids     []UserID
		wantErr bool
	}{
		{"two distinct", []UserID{"a", "b"}, false},
		{"three distinct", []UserID{"a", "b", "c"}, false},
		{"single", []UserID{"a"}, true},
		{"empty", nil, true},
		{"duplicates", []UserID{"a", "a"}, true},
		{"blank id", []UserID{"a", ""}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch, err := NewChannel(tt.ids, now)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
				assert.Nil(t, ch)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, ch.ID)
			assert.Equal(t, tt.ids, ch.Participants)
		})
	}
}

func TestNewMessage(t *testing.T) {
	_, err := NewMessage("a", GlobalRoomID, "   ", nil, 10, time.Now())
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewMessage("a", GlobalRoomID, strings.Repeat("x", 11), nil, 10, time.Now())
	assert.ErrorIs(t, err, ErrValidation)

	m, err := NewMessage("a", GlobalRoomID, "", FileEmbed("/files/1/a.txt", "a.txt", 3), 10, time.Now())
	require.NoError(t, err)
	assert.Equal(t, EmbedFile, m.Embed.Type)
	assert.Equal(t, time.UTC, m.Timestamp.Location())
}

func TestScaleToFit(t *testing.T) {
	tests := []struct {
		w, h, wantW, wantH int
	}{
		{1400, 1000, 700, 500},
		{600, 400, 600, 400},
		{700, 500, 700, 500},
		{2000, 500, 700, 175},
		{500, 2000, 125, 500},
		{10000, 1, 700, 1},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%dx%d", tt.w, tt.h), func(t *testing.T) {
			w, h := ScaleToFit(tt.w, tt.h, 700, 500)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

func TestErrorMatching(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NotFound("user bob"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrConflict)
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, "user bob", ReasonOf(err))

	st := Storage("insert message", errors.New("disk full"))
	assert.Equal(t, "storage", ReasonOf(st))
	assert.Equal(t, "insert message: disk full", st.Error())
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}

func TestNewFileMetaSanitizesName(t *testing.T) {
	f, err := NewFileMeta("a", GlobalRoomID, "../../etc/passwd", "", 10, 100)
	require.NoError(t, err)
	assert.Equal(t, "passwd", f.Filename)
	assert.Equal(t, "/files/"+string(f.ID)+"/passwd", f.URI())

	_, err = NewFileMeta("a", GlobalRoomID, "big.bin", "", 101, 100)
	assert.ErrorIs(t, err, ErrValidation)
}
