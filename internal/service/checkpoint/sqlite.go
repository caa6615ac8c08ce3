package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/z-scout/backend/internal/model/chat"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps one row per session holding the JSON encoded history.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed creates) the checkpoint database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint db: %w", err)
	}
	// a single writer avoids SQLITE_BUSY between concurrent invocations
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS checkpoints (
			actor_id TEXT NOT NULL,
			thread_id TEXT NOT NULL,
			messages TEXT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (actor_id, thread_id)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create checkpoints table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Load reads the stored history for the session.
func (s *SQLiteStore) Load(ctx context.Context, session chat.Session) ([]*schema.Message, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT messages FROM checkpoints WHERE actor_id = ? AND thread_id = ?`,
		session.ActorID, session.ThreadID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", session.Key(), err)
	}

	var messages []*schema.Message
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", session.Key(), err)
	}
	return messages, nil
}

// Save upserts the history for the session.
func (s *SQLiteStore) Save(ctx context.Context, session chat.Session, messages []*schema.Message) error {
	raw, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("encode checkpoint %s: %w", session.Key(), err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (actor_id, thread_id, messages, updated_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (actor_id, thread_id)
		 DO UPDATE SET messages = excluded.messages, updated_at = CURRENT_TIMESTAMP`,
		session.ActorID, session.ThreadID, string(raw),
	)
	if err != nil {
		return fmt.Errorf("save checkpoint %s: %w", session.Key(), err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
