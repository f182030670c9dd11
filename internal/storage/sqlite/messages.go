package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/dkeye/voicechat/internal/domain"
)

func (s *Store) AppendMessage(ctx context.Context, m *domain.Message) error {
	var embedType, embedData sql.NullString
	if m.Embed != nil {
		data, err := json.Marshal(m.Embed.Data)
		if err != nil {
			return err
		}
		embedType = sql.NullString{String: string(m.Embed.Type), Valid: true}
		embedData = sql.NullString{String: string(data), Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, channel_id, author, content, ts, embed_type, embed_data)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(m.ID), string(m.ChannelID), string(m.Author), m.Content, nanos(m.Timestamp), embedType, embedData,
	)
	if err != nil {
		return storageErr("insert message", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return storageErr("insert message", err)
	}
	m.Seq = seq
	return nil
}

// MessagesBefore pages newest-first. Rows sharing a timestamp are ordered by seq
// so a boundary inside a run of equal timestamps neither skips nor repeats rows.
func (s *Store) MessagesBefore(ctx context.Context, channel domain.RoomID, before domain.Boundary, limit int) ([]domain.Message, error) {
	query := `SELECT seq, id, channel_id, author, content, ts, embed_type, embed_data
		FROM messages WHERE channel_id = ?`
	args := []any{string(channel)}
	switch {
	case before.IsZero():
	case before.Seq == 0:
		query += " AND ts < ?"
		args = append(args, nanos(before.At))
	default:
		query += " AND (ts < ? OR (ts = ? AND seq < ?))"
		at := nanos(before.At)
		args = append(args, at, at, before.Seq)
	}
	query += " ORDER BY ts DESC, seq DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("query messages", err)
	}
	defer rows.Close()

	out := make([]domain.Message, 0, limit)
	for rows.Next() {
		var (
			m                    domain.Message
			ts                   int64
			embedType, embedData sql.NullString
		)
		if err := rows.Scan(&m.Seq, &m.ID, &m.ChannelID, &m.Author, &m.Content, &ts, &embedType, &embedData); err != nil {
			return nil, storageErr("scan message", err)
		}
		m.Timestamp = fromNanos(ts)
		if embedType.Valid {
			e := &domain.Embed{Type: domain.EmbedType(embedType.String)}
			if err := json.Unmarshal([]byte(embedData.String), &e.Data); err != nil {
				return nil, storageErr("decode embed", err)
			}
			m.Embed = e
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("query messages", err)
	}
	return out, nil
}
