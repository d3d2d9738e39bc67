package chat

import (
	"context"
	"database/sql"
	"encoding/json"
)

type PGStore struct {
	DB *sql.DB
}

func (s *PGStore) Append(ctx context.Context, msg Message) error {
	const query = `
INSERT INTO chat_messages (id, session_id, user_id, role, content, sql_text, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	var meta any
	if msg.Metadata != nil {
		raw, err := json.Marshal(msg.Metadata)
		if err != nil {
			return err
		}
		meta = raw
	}
	var sqlText any
	if msg.SQL != "" {
		sqlText = msg.SQL
	}
	_, err := s.DB.ExecContext(ctx, query, msg.ID, msg.SessionID, msg.UserID, msg.Role, msg.Text, sqlText, meta, msg.CreatedAt)
	return err
}

func (s *PGStore) List(ctx context.Context, userID, sessionID string, limit int) ([]Message, error) {
	const query = `
SELECT id, session_id, user_id, role, content, sql_text, metadata, created_at
FROM (
	SELECT * FROM chat_messages
	WHERE session_id = $1 AND user_id = $2
	ORDER BY created_at DESC
	LIMIT $3
) recent
ORDER BY created_at ASC`
	rows, err := s.DB.QueryContext(ctx, query, sessionID, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Message, 0)
	for rows.Next() {
		var m Message
		var sqlText sql.NullString
		var meta []byte
		if err := rows.Scan(&m.ID, &m.SessionID, &m.UserID, &m.Role, &m.Text, &sqlText, &meta, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.SQL = sqlText.String
		if len(meta) > 0 {
			var md Metadata
			if err := json.Unmarshal(meta, &md); err != nil {
				return nil, err
			}
			m.Metadata = &md
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
