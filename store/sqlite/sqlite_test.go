package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	grokcode "github.com/nevindra/grokcode"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(filepath.Join(t.TempDir(), "grok.db"))
	t.Cleanup(func() { s.Close() })
	if err := s.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestAppendTurnAndMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	threadID := grokcode.NewID()
	if err := s.CreateThread(ctx, grokcode.Thread{ID: threadID, Title: "session"}); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendTurn(ctx, threadID, "how?", "like this"); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendTurn(ctx, threadID, "and then?", "done"); err != nil {
		t.Fatal(err)
	}

	msgs, err := s.Messages(ctx, threadID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
	if msgs[0].Role != "user" || msgs[0].Content != "how?" {
		t.Errorf("first message wrong: %+v", msgs[0])
	}
	if msgs[3].Role != "assistant" || msgs[3].Content != "done" {
		t.Errorf("last message wrong: %+v", msgs[3])
	}
}

func TestThreadsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := grokcode.Thread{ID: "a", CreatedAt: 100, UpdatedAt: 100}
	b := grokcode.Thread{ID: "b", CreatedAt: 200, UpdatedAt: 200}
	if err := s.CreateThread(ctx, a); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateThread(ctx, b); err != nil {
		t.Fatal(err)
	}

	threads, err := s.Threads(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(threads) != 2 || threads[0].ID != "b" {
		t.Errorf("unexpected order: %+v", threads)
	}
}

func TestCreateThreadIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	thread := grokcode.Thread{ID: "t1"}
	if err := s.CreateThread(ctx, thread); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateThread(ctx, thread); err != nil {
		t.Errorf("re-creating the same thread must not fail: %v", err)
	}
}
