package openaicompat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	grokcode "github.com/nevindra/grokcode"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p := NewProvider("test-key", "test-model", srv.URL, WithMaxRetries(2))
	p.sleep = func(time.Duration) {} // no backoff in tests
	return p
}

func TestChatSendsAuthAndPayload(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody ChatRequest
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"hi"}}]}`)
	})

	resp, err := p.Chat(context.Background(), grokcode.ChatRequest{
		Messages:    []grokcode.ChatMessage{grokcode.UserMessage("hello")},
		Temperature: 0.7,
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "hi" {
		t.Errorf("content %q", resp.Content)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("auth header %q", gotAuth)
	}
	if gotPath != "/chat/completions" {
		t.Errorf("path %q", gotPath)
	}
	if gotBody.Model != "test-model" || gotBody.Stream {
		t.Errorf("body %+v", gotBody)
	}
}

func TestChatHTTPError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, "slow down")
	})

	_, err := p.Chat(context.Background(), grokcode.ChatRequest{})
	httpErr, ok := err.(*grokcode.ErrHTTP)
	if !ok {
		t.Fatalf("expected ErrHTTP, got %T %v", err, err)
	}
	if httpErr.Status != 429 || httpErr.RetryAfter != 3*time.Second {
		t.Errorf("unexpected ErrHTTP: %+v", httpErr)
	}
}

func TestChatStreamHappyPath(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var body ChatRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if !body.Stream {
			t.Error("streaming request must set stream=true")
		}
		fmt.Fprint(w, sse(
			`data: {"choices":[{"delta":{"content":"a"}}]}`,
			`data: {"choices":[{"delta":{"content":"b"}}]}`,
			`data: [DONE]`,
		))
	})

	var streamed strings.Builder
	resp, err := p.ChatStream(context.Background(), grokcode.ChatRequest{}, func(c string) { streamed.WriteString(c) })
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "ab" || streamed.String() != "ab" {
		t.Errorf("content %q streamed %q", resp.Content, streamed.String())
	}
}

func TestChatStreamRetriesConnectionDrop(t *testing.T) {
	// First attempt drops mid-stream; the retry restarts the stream and
	// the caller sees the successful attempt's content only.
	var attempt atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		if attempt.Add(1) == 1 {
			fmt.Fprint(w, sse(`data: {"choices":[{"delta":{"content":"doomed "}}]}`))
			w.(http.Flusher).Flush() // Hijack discards unflushed body bytes
			if hj, ok := w.(http.Hijacker); ok {
				conn, _, _ := hj.Hijack()
				conn.Close() // hard reset mid-body
			}
			return
		}
		fmt.Fprint(w, sse(
			`data: {"choices":[{"delta":{"content":"clean tokens"}}]}`,
			`data: [DONE]`,
		))
	})

	resp, err := p.ChatStream(context.Background(), grokcode.ChatRequest{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "clean tokens" {
		t.Errorf("caller must see the retried response, got %q", resp.Content)
	}
	if attempt.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", attempt.Load())
	}
}

func TestChatStreamPartialContentAfterExhaustedRetries(t *testing.T) {
	// Every attempt streams some tokens then resets; the last partial
	// content survives with the truncation suffix and no tool calls.
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, sse(`data: {"choices":[{"delta":{"content":"partial"}}]}`))
		w.(http.Flusher).Flush() // Hijack discards unflushed body bytes
		if hj, ok := w.(http.Hijacker); ok {
			conn, _, _ := hj.Hijack()
			conn.Close()
		}
	})

	resp, err := p.ChatStream(context.Background(), grokcode.ChatRequest{}, nil)
	if err != nil {
		t.Fatalf("partial content must not surface an error: %v", err)
	}
	if !strings.HasSuffix(resp.Content, TruncationSuffix) {
		t.Errorf("missing truncation suffix: %q", resp.Content)
	}
	if !strings.HasPrefix(resp.Content, "partial") {
		t.Errorf("partial content lost: %q", resp.Content)
	}
	if resp.ToolCalls != nil {
		t.Error("truncated responses must not carry tool calls")
	}
}

func TestChatStreamZeroContentFailureIsFatal(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		if hj, ok := w.(http.Hijacker); ok {
			conn, _, _ := hj.Hijack()
			conn.Close() // reset before any bytes
		}
	})

	_, err := p.ChatStream(context.Background(), grokcode.ChatRequest{}, nil)
	if err == nil {
		t.Fatal("zero-content failure must surface an error")
	}
	if !strings.Contains(err.Error(), "API connection failed after 3 attempts") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestChatStreamHTTPStatusNotRetried(t *testing.T) {
	var attempts atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := p.ChatStream(context.Background(), grokcode.ChatRequest{}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts.Load() != 1 {
		t.Errorf("status errors must not retry at the transport, got %d attempts", attempts.Load())
	}
}
