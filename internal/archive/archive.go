// Package archive persists every inbound event to a local SQLite
// database. Archival is a record of fact: events are stored before any
// access decision, including denied and ignored ones.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/marhthing/pipebot/internal/bus"
)

// Store wraps the events database. Safe for concurrent use; database/sql
// serializes access to the underlying connection pool.
type Store struct {
	db *sql.DB
}

// Open creates the database file (and its directory) if needed and
// ensures the schema exists.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open archive database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			channel TEXT NOT NULL,
			message_id TEXT,
			sender TEXT NOT NULL,
			chat TEXT NOT NULL,
			body TEXT,
			attachment TEXT,
			from_self INTEGER NOT NULL DEFAULT 0,
			is_group INTEGER NOT NULL DEFAULT 0,
			received_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create events table: %w", err)
	}
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_events_chat ON events(chat, received_at)`)

	return &Store{db: db}, nil
}

// StoreEvent writes one inbound event. The attachment descriptor, when
// present, is stored as JSON alongside the text body.
func (s *Store) StoreEvent(ctx context.Context, evt *bus.InboundEvent) error {
	var attachment sql.NullString
	if evt.Attachment != nil {
		raw, err := json.Marshal(evt.Attachment)
		if err != nil {
			return fmt.Errorf("encode attachment: %w", err)
		}
		attachment = sql.NullString{String: string(raw), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, channel, message_id, sender, chat, body, attachment, from_self, is_group, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), evt.Channel, evt.ID, evt.Sender, evt.Chat, evt.Text,
		attachment, boolToInt(evt.FromSelf), boolToInt(evt.IsGroup), evt.Timestamp.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("store event: %w", err)
	}
	return nil
}

// Recent returns the latest events for a chat, newest first.
func (s *Store) Recent(ctx context.Context, chat string, limit int) ([]bus.InboundEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT channel, message_id, sender, chat, body, attachment, from_self, is_group, received_at
		FROM events WHERE chat = ? ORDER BY received_at DESC LIMIT ?`, chat, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []bus.InboundEvent
	for rows.Next() {
		var (
			evt        bus.InboundEvent
			body       sql.NullString
			attachment sql.NullString
			fromSelf   int
			isGroup    int
			receivedAt int64
		)
		if err := rows.Scan(&evt.Channel, &evt.ID, &evt.Sender, &evt.Chat, &body, &attachment, &fromSelf, &isGroup, &receivedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		evt.Text = body.String
		if attachment.Valid {
			var att bus.Attachment
			if err := json.Unmarshal([]byte(attachment.String), &att); err == nil {
				evt.Attachment = &att
			}
		}
		evt.FromSelf = fromSelf != 0
		evt.IsGroup = isGroup != 0
		evt.Timestamp = time.UnixMilli(receivedAt)
		out = append(out, evt)
	}
	return out, rows.Err()
}

// Count reports the number of archived events.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
