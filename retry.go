package grokcode

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"
)

// retryProvider wraps a Provider and automatically retries transient
// HTTP errors (429 Too Many Requests, 503 Service Unavailable) with
// exponential backoff. Connection-level stream retries are the
// transport's own job (it restarts the stream and preserves partial
// content); this middleware handles endpoint throttling above it.
type retryProvider struct {
	inner       Provider
	maxAttempts int
	baseDelay   time.Duration
	logger      *slog.Logger
}

// RetryOption configures a retryProvider.
type RetryOption func(*retryProvider)

// RetryMaxAttempts sets the maximum number of attempts (default: 3).
func RetryMaxAttempts(n int) RetryOption {
	return func(r *retryProvider) { r.maxAttempts = n }
}

// RetryBaseDelay sets the initial backoff delay before the second
// attempt (default: 1s). Each subsequent delay doubles.
func RetryBaseDelay(d time.Duration) RetryOption {
	return func(r *retryProvider) { r.baseDelay = d }
}

// RetryLogger sets the middleware's logger.
func RetryLogger(l *slog.Logger) RetryOption {
	return func(r *retryProvider) { r.logger = l }
}

// WithRetry wraps p with automatic retry on transient HTTP errors.
// When the error carries a Retry-After duration, the delay is at least
// that long. Compose with any Provider:
//
//	llm := grokcode.WithRetry(openaicompat.NewProvider(key, model, base))
func WithRetry(p Provider, opts ...RetryOption) Provider {
	r := &retryProvider{
		inner:       p,
		maxAttempts: 3,
		baseDelay:   time.Second,
		logger:      nopLogger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name delegates to the inner provider.
func (r *retryProvider) Name() string { return r.inner.Name() }

// Chat implements Provider with retry.
func (r *retryProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	return r.retryCall(ctx, func() (ChatResponse, error) {
		return r.inner.Chat(ctx, req)
	})
}

// ChatStream implements Provider with retry. A retried stream restarts
// from scratch, so onContent may observe the opening tokens twice; the
// transport only reaches this middleware with an error when no usable
// response was produced.
func (r *retryProvider) ChatStream(ctx context.Context, req ChatRequest, onContent func(string)) (ChatResponse, error) {
	return r.retryCall(ctx, func() (ChatResponse, error) {
		return r.inner.ChatStream(ctx, req, onContent)
	})
}

// retryCall calls fn up to maxAttempts times, sleeping between transient
// failures.
func (r *retryProvider) retryCall(ctx context.Context, fn func() (ChatResponse, error)) (ChatResponse, error) {
	var last error
	for i := 0; i < r.maxAttempts; i++ {
		resp, err := fn()
		if err == nil || !isTransient(err) {
			return resp, err
		}
		last = err
		r.logger.Warn("transient LLM error, retrying",
			"provider", r.inner.Name(), "status", statusOf(err), "attempt", i+1, "max", r.maxAttempts)
		if i < r.maxAttempts-1 {
			timer := time.NewTimer(retryDelay(r.baseDelay, i, err))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ChatResponse{}, ctx.Err()
			case <-timer.C:
			}
		}
	}
	return ChatResponse{}, last
}

// isTransient reports whether err is a retryable HTTP error (429 or 503).
func isTransient(err error) bool {
	var e *ErrHTTP
	return errors.As(err, &e) && (e.Status == 429 || e.Status == 503)
}

// statusOf extracts the HTTP status code from an ErrHTTP, or 0.
func statusOf(err error) int {
	var e *ErrHTTP
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

// retryDelay computes the delay before retry attempt i: exponential
// backoff with jitter as a floor, the server's Retry-After as a minimum.
func retryDelay(base time.Duration, i int, err error) time.Duration {
	backoff := base * (1 << i)
	backoff += time.Duration(rand.Int63n(int64(backoff)/2 + 1))
	var e *ErrHTTP
	if errors.As(err, &e) && e.RetryAfter > backoff {
		return e.RetryAfter
	}
	return backoff
}

// compile-time check
var _ Provider = (*retryProvider)(nil)
