package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dkeye/voicechat/internal/domain"
)

func (s *Store) CreateUser(ctx context.Context, u *domain.User, passwordHash string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (id, username, password_hash, created_at) VALUES (?, ?, ?, ?)",
		string(u.ID), u.Username, passwordHash, nanos(u.CreatedAt),
	)
	if isUnique(err) {
		return domain.Conflict("username taken")
	}
	return storageErr("insert user", err)
}

func (s *Store) GetUser(ctx context.Context, id domain.UserID) (*domain.User, error) {
	var (
		u       domain.User
		created int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, username, created_at FROM users WHERE id = ?", string(id),
	).Scan(&u.ID, &u.Username, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("user not found")
	}
	if err != nil {
		return nil, storageErr("query user", err)
	}
	u.CreatedAt = fromNanos(created)
	return &u, nil
}

func (s *Store) GetUserByName(ctx context.Context, username string) (*domain.User, string, error) {
	var (
		u       domain.User
		hash    string
		created int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, username, password_hash, created_at FROM users WHERE username = ?", username,
	).Scan(&u.ID, &u.Username, &hash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", domain.NotFound("user not found")
	}
	if err != nil {
		return nil, "", storageErr("query user", err)
	}
	u.CreatedAt = fromNanos(created)
	return &u, hash, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, username, created_at FROM users ORDER BY username")
	if err != nil {
		return nil, storageErr("list users", err)
	}
	defer rows.Close()
	var out []domain.User
	for rows.Next() {
		var (
			u       domain.User
			created int64
		)
		if err := rows.Scan(&u.ID, &u.Username, &created); err != nil {
			return nil, storageErr("scan user", err)
		}
		u.CreatedAt = fromNanos(created)
		out = append(out, u)
	}
	return out, storageErr("list users", rows.Err())
}

func (s *Store) MissingUsers(ctx context.Context, ids []domain.UserID) ([]domain.UserID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = string(id)
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM users WHERE id IN ("+placeholders(len(ids))+")", args...)
	if err != nil {
		return nil, storageErr("query users", err)
	}
	defer rows.Close()
	found := make(map[domain.UserID]struct{}, len(ids))
	for rows.Next() {
		var id domain.UserID
		if err := rows.Scan(&id); err != nil {
			return nil, storageErr("scan user", err)
		}
		found[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("query users", err)
	}
	var missing []domain.UserID
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}
