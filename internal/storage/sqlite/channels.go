package sqlite

import (
	"context"
	"database/sql"

	"github.com/dkeye/voicechat/internal/domain"
)

// CreateChannel writes the channel row and its participant links in one transaction.
func (s *Store) CreateChannel(ctx context.Context, ch *domain.Channel) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO channels (id, created_at) VALUES (?, ?)",
			string(ch.ID), nanos(ch.CreatedAt),
		); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx,
			"INSERT INTO channel_members (channel_id, user_id, position) VALUES (?, ?, ?)")
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i, p := range ch.Participants {
			if _, err := stmt.ExecContext(ctx, string(ch.ID), string(p), i); err != nil {
				return err
			}
		}
		return nil
	})
	return storageErr("insert channel", err)
}

func (s *Store) GetChannel(ctx context.Context, id domain.RoomID) (*domain.Channel, error) {
	chs, err := s.queryChannels(ctx, "c.id = ?", string(id))
	if err != nil {
		return nil, err
	}
	if len(chs) == 0 {
		return nil, domain.NotFound("channel not found")
	}
	return &chs[0], nil
}

func (s *Store) ChannelsOf(ctx context.Context, user domain.UserID) ([]domain.Channel, error) {
	return s.queryChannels(ctx,
		"c.id IN (SELECT channel_id FROM channel_members WHERE user_id = ?)", string(user))
}

func (s *Store) UpdateLastMessage(ctx context.Context, id domain.RoomID, last domain.MessageSummary) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE channels SET last_message_id = ?, last_author = ?, last_content = ?, last_at = ?
		 WHERE id = ?`,
		string(last.ID), string(last.Author), last.Content, nanos(last.Timestamp), string(id),
	)
	if err != nil {
		return storageErr("update last message", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("channel not found")
	}
	return nil
}

func (s *Store) queryChannels(ctx context.Context, where string, args ...any) ([]domain.Channel, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.created_at, c.last_message_id, c.last_author, c.last_content, c.last_at, m.user_id
		 FROM channels c JOIN channel_members m ON m.channel_id = c.id
		 WHERE `+where+`
		 ORDER BY c.created_at, c.id, m.position`, args...)
	if err != nil {
		return nil, storageErr("query channels", err)
	}
	defer rows.Close()

	var (
		out   []domain.Channel
		index = make(map[domain.RoomID]int)
	)
	for rows.Next() {
		var (
			id               domain.RoomID
			created          int64
			lastID, lastAuth sql.NullString
			lastContent      sql.NullString
			lastAt           sql.NullInt64
			member           domain.UserID
		)
		if err := rows.Scan(&id, &created, &lastID, &lastAuth, &lastContent, &lastAt, &member); err != nil {
			return nil, storageErr("scan channel", err)
		}
		i, ok := index[id]
		if !ok {
			ch := domain.Channel{ID: id, CreatedAt: fromNanos(created)}
			if lastID.Valid {
				ch.LastMessage = &domain.MessageSummary{
					ID:        domain.MessageID(lastID.String),
					Author:    domain.UserID(lastAuth.String),
					Content:   lastContent.String,
					Timestamp: fromNanos(lastAt.Int64),
				}
			}
			out = append(out, ch)
			i = len(out) - 1
			index[id] = i
		}
		out[i].Participants = append(out[i].Participants, member)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("query channels", err)
	}
	return out, nil
}
