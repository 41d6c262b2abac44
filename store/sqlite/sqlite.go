// Package sqlite implements grokcode.HistoryStore using pure-Go SQLite.
// Zero CGO required.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	grokcode "github.com/nevindra/grokcode"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// Store implements grokcode.HistoryStore backed by a local SQLite file.
type Store struct {
	db *sql.DB
}

var _ grokcode.HistoryStore = (*Store)(nil)

// New creates a Store using a local SQLite file at dbPath. A single
// shared connection serializes all writers, eliminating SQLITE_BUSY
// errors from concurrent background journaling.
func New(dbPath string) *Store {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		// sql.Open only fails when the driver is not registered; with
		// the blank import above that never happens.
		panic(fmt.Sprintf("sqlite: open driver: %v", err))
	}
	db.SetMaxOpenConns(1)
	return &Store{db: db}
}

// Init creates the schema.
func (s *Store) Init(ctx context.Context) error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS threads (
			id TEXT PRIMARY KEY,
			title TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			thread_id TEXT NOT NULL REFERENCES threads(id),
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id, created_at)`,
	}
	for _, stmt := range tables {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: init: %w", err)
		}
	}
	return nil
}

// CreateThread registers a new session thread.
func (s *Store) CreateThread(ctx context.Context, t grokcode.Thread) error {
	if t.CreatedAt == 0 {
		t.CreatedAt = grokcode.NowUnix()
	}
	if t.UpdatedAt == 0 {
		t.UpdatedAt = t.CreatedAt
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO threads (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		t.ID, t.Title, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: create thread: %w", err)
	}
	return nil
}

// AppendTurn records one completed user/assistant exchange.
func (s *Store) AppendTurn(ctx context.Context, threadID, userInput, assistantOutput string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback()

	now := grokcode.NowUnix()
	for _, m := range []struct{ role, content string }{
		{"user", userInput},
		{"assistant", assistantOutput},
	} {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (id, thread_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
			grokcode.NewID(), threadID, m.role, m.content, now); err != nil {
			return fmt.Errorf("sqlite: append turn: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE threads SET updated_at = ? WHERE id = ?`, now, threadID); err != nil {
		return fmt.Errorf("sqlite: touch thread: %w", err)
	}
	return tx.Commit()
}

// Messages returns a thread's messages in insertion order, newest last.
func (s *Store) Messages(ctx context.Context, threadID string, limit int) ([]grokcode.StoredMessage, error) {
	query := `SELECT id, thread_id, role, content, created_at FROM messages WHERE thread_id = ? ORDER BY created_at, id`
	args := []any{threadID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: messages: %w", err)
	}
	defer rows.Close()

	var out []grokcode.StoredMessage
	for rows.Next() {
		var m grokcode.StoredMessage
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Threads lists known threads, most recently updated first.
func (s *Store) Threads(ctx context.Context, limit int) ([]grokcode.Thread, error) {
	query := `SELECT id, COALESCE(title, ''), created_at, updated_at FROM threads ORDER BY updated_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: threads: %w", err)
	}
	defer rows.Close()

	var out []grokcode.Thread
	for rows.Next() {
		var t grokcode.Thread
		if err := rows.Scan(&t.ID, &t.Title, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan thread: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
