package core

//go:generate mockgen -source=ports.go -destination=mock/ports_mock.go -package=mock

import (
	"context"
	"io"

	"github.com/dkeye/voicechat/internal/domain"
)

// UserStore is the user directory. Lookups of unknown ids return domain.ErrNotFound.
type UserStore interface {
	CreateUser(ctx context.Context, u *domain.User, passwordHash string) error
	GetUser(ctx context.Context, id domain.UserID) (*domain.User, error)
	GetUserByName(ctx context.Context, username string) (*domain.User, string, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	// MissingUsers returns the ids in ids that have no user record.
	MissingUsers(ctx context.Context, ids []domain.UserID) ([]domain.UserID, error)
}

type ChannelStore interface {
	// CreateChannel writes the channel and its participant links atomically.
	CreateChannel(ctx context.Context, ch *domain.Channel) error
	GetChannel(ctx context.Context, id domain.RoomID) (*domain.Channel, error)
	ChannelsOf(ctx context.Context, user domain.UserID) ([]domain.Channel, error)
	UpdateLastMessage(ctx context.Context, id domain.RoomID, last domain.MessageSummary) error
}

type MessageStore interface {
	// AppendMessage stores m and sets m.Seq.
	AppendMessage(ctx context.Context, m *domain.Message) error
	// MessagesBefore returns up to limit messages strictly older than before,
	// newest first. A zero boundary means no upper bound.
	MessagesBefore(ctx context.Context, channel domain.RoomID, before domain.Boundary, limit int) ([]domain.Message, error)
}

type FileStore interface {
	CreateFile(ctx context.Context, f *domain.FileMeta) error
	GetFile(ctx context.Context, id domain.FileID) (*domain.FileMeta, error)
	UpdateFileProgress(ctx context.Context, id domain.FileID, received int64, completed bool) error
	DeleteFile(ctx context.Context, id domain.FileID) error
}

// BlobStore keeps file bytes keyed by file id.
type BlobStore interface {
	Create(ctx context.Context, id domain.FileID) error
	// Append adds chunk at offset and returns the new size. The offset must
	// equal the current size, otherwise domain.ErrConflict is returned.
	Append(ctx context.Context, id domain.FileID, offset int64, chunk []byte) (int64, error)
	Put(ctx context.Context, id domain.FileID, data []byte) error
	// Open streams the blob. Reads fail once ctx is done.
	Open(ctx context.Context, id domain.FileID) (io.ReadCloser, error)
	Size(ctx context.Context, id domain.FileID) (int64, error)
	Delete(ctx context.Context, id domain.FileID) error
}

// PreviewGenerator renders a downscaled copy of an image blob that fits maxW×maxH.
type PreviewGenerator interface {
	Generate(ctx context.Context, src *domain.FileMeta, maxW, maxH int) (domain.Preview, error)
}
