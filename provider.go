package grokcode

import "context"

// Provider abstracts the LLM backend.
type Provider interface {
	// Chat sends a request and returns a complete response.
	// When req.Tools is non-empty the response may contain ToolCalls.
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
	// ChatStream streams content deltas into onContent as they arrive,
	// then returns the fully assembled response. Tool-call fragments are
	// accumulated internally and surface only on the returned response.
	ChatStream(ctx context.Context, req ChatRequest, onContent func(string)) (ChatResponse, error)
	// Name returns the provider name (e.g. "xai", "openai").
	Name() string
}
