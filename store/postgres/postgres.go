// Package postgres implements grokcode.HistoryStore on PostgreSQL, for
// deployments where session journals are shared across machines.
//
// New accepts an existing *pgxpool.Pool so callers control pool sizing;
// Close closes that pool, whether it came from New or Connect.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	grokcode "github.com/nevindra/grokcode"
)

// Store implements grokcode.HistoryStore backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ grokcode.HistoryStore = (*Store)(nil)

// New creates a Store using an existing pgxpool.Pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Connect dials dsn and returns a Store owning its own pool.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Init creates the schema.
func (s *Store) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS threads (
			id TEXT PRIMARY KEY,
			title TEXT,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			thread_id TEXT NOT NULL REFERENCES threads(id),
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id, created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: init: %w", err)
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
	_, err := s.pool.Exec(ctx,
		`INSERT INTO threads (id, title, created_at, updated_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO NOTHING`,
		t.ID, t.Title, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: create thread: %w", err)
	}
	return nil
}

// AppendTurn records one completed user/assistant exchange.
func (s *Store) AppendTurn(ctx context.Context, threadID, userInput, assistantOutput string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	now := grokcode.NowUnix()
	for _, m := range []struct{ role, content string }{
		{"user", userInput},
		{"assistant", assistantOutput},
	} {
		if _, err := tx.Exec(ctx,
			`INSERT INTO messages (id, thread_id, role, content, created_at) VALUES ($1, $2, $3, $4, $5)`,
			grokcode.NewID(), threadID, m.role, m.content, now); err != nil {
			return fmt.Errorf("postgres: append turn: %w", err)
		}
	}
	if _, err := tx.Exec(ctx,
		`UPDATE threads SET updated_at = $1 WHERE id = $2`, now, threadID); err != nil {
		return fmt.Errorf("postgres: touch thread: %w", err)
	}
	return tx.Commit(ctx)
}

// Messages returns a thread's messages in insertion order, newest last.
func (s *Store) Messages(ctx context.Context, threadID string, limit int) ([]grokcode.StoredMessage, error) {
	query := `SELECT id, thread_id, role, content, created_at FROM messages WHERE thread_id = $1 ORDER BY created_at, id`
	args := []any{threadID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: messages: %w", err)
	}
	defer rows.Close()

	var out []grokcode.StoredMessage
	for rows.Next() {
		var m grokcode.StoredMessage
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan message: %w", err)
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
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: threads: %w", err)
	}
	defer rows.Close()

	var out []grokcode.Thread
	for rows.Next() {
		var t grokcode.Thread
		if err := rows.Scan(&t.ID, &t.Title, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan thread: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
