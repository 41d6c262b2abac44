package grokcode

import (
	"context"
	"sync"
	"time"
)

// rateLimitProvider wraps a Provider with proactive request-rate
// limiting: calls block until the sliding one-minute window has room.
type rateLimitProvider struct {
	inner Provider
	mu    sync.Mutex

	rpm    int
	window []time.Time
}

// RateLimitOption configures a rateLimitProvider.
type RateLimitOption func(*rateLimitProvider)

// RPM sets the maximum requests per minute.
func RPM(n int) RateLimitOption {
	return func(r *rateLimitProvider) { r.rpm = n }
}

// WithRateLimit wraps p with proactive rate limiting. Compose with other
// wrappers:
//
//	llm := grokcode.WithRateLimit(grokcode.WithRetry(provider), grokcode.RPM(60))
func WithRateLimit(p Provider, opts ...RateLimitOption) Provider {
	r := &rateLimitProvider{inner: p}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *rateLimitProvider) Name() string { return r.inner.Name() }

func (r *rateLimitProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if err := r.waitForBudget(ctx); err != nil {
		return ChatResponse{}, err
	}
	return r.inner.Chat(ctx, req)
}

func (r *rateLimitProvider) ChatStream(ctx context.Context, req ChatRequest, onContent func(string)) (ChatResponse, error) {
	if err := r.waitForBudget(ctx); err != nil {
		return ChatResponse{}, err
	}
	return r.inner.ChatStream(ctx, req, onContent)
}

// waitForBudget blocks until the request window allows another call.
// Returns ctx.Err() if the context is cancelled while waiting.
func (r *rateLimitProvider) waitForBudget(ctx context.Context) error {
	for {
		r.mu.Lock()
		now := time.Now()
		cutoff := now.Add(-time.Minute)

		kept := r.window[:0]
		for _, t := range r.window {
			if t.After(cutoff) {
				kept = append(kept, t)
			}
		}
		r.window = kept

		if r.rpm <= 0 || len(r.window) < r.rpm {
			if r.rpm > 0 {
				r.window = append(r.window, now)
			}
			r.mu.Unlock()
			return nil
		}

		wait := r.window[0].Sub(cutoff)
		r.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// compile-time check
var _ Provider = (*rateLimitProvider)(nil)
