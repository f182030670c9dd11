package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dkeye/voicechat/internal/domain"
)

func (s *Store) CreateFile(ctx context.Context, f *domain.FileMeta) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO files (id, owner, channel_id, filename, content_type, size, received, completed, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(f.ID), string(f.Owner), string(f.ChannelID), f.Filename, f.ContentType,
		f.Size, f.Received, f.Completed, nanos(f.CreatedAt),
	)
	return storageErr("insert file", err)
}

func (s *Store) GetFile(ctx context.Context, id domain.FileID) (*domain.FileMeta, error) {
	var (
		f       domain.FileMeta
		created int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner, channel_id, filename, content_type, size, received, completed, created_at
		 FROM files WHERE id = ?`, string(id),
	).Scan(&f.ID, &f.Owner, &f.ChannelID, &f.Filename, &f.ContentType, &f.Size, &f.Received, &f.Completed, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("file not found")
	}
	if err != nil {
		return nil, storageErr("query file", err)
	}
	f.CreatedAt = fromNanos(created)
	return &f, nil
}

func (s *Store) UpdateFileProgress(ctx context.Context, id domain.FileID, received int64, completed bool) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE files SET received = ?, completed = ? WHERE id = ?", received, completed, string(id))
	if err != nil {
		return storageErr("update file", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("file not found")
	}
	return nil
}

func (s *Store) DeleteFile(ctx context.Context, id domain.FileID) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM files WHERE id = ?", string(id))
	return storageErr("delete file", err)
}
