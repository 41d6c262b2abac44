package grokcode

import "context"

// Thread is a persisted conversation session.
type Thread struct {
	ID        string `json:"id"`
	Title     string `json:"title,omitempty"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// StoredMessage is one persisted turn half (user input or assistant
// output) in a thread.
type StoredMessage struct {
	ID        string `json:"id"`
	ThreadID  string `json:"thread_id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"created_at"`
}

// HistoryStore journals completed turns for later resumption. The
// sqlite and postgres subpackages implement it; a nil store disables
// journaling.
type HistoryStore interface {
	// Init creates the schema if needed.
	Init(ctx context.Context) error
	// CreateThread registers a new session thread.
	CreateThread(ctx context.Context, t Thread) error
	// AppendTurn records one completed user/assistant exchange.
	AppendTurn(ctx context.Context, threadID, userInput, assistantOutput string) error
	// Messages returns a thread's messages in insertion order, newest
	// last, capped at limit (0 = no cap).
	Messages(ctx context.Context, threadID string, limit int) ([]StoredMessage, error)
	// Threads lists known threads, most recently updated first.
	Threads(ctx context.Context, limit int) ([]Thread, error)
	// Close releases the underlying connection.
	Close() error
}
