package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	grokcode "github.com/nevindra/grokcode"
)

// Defaults for the xAI endpoint; override via NewProvider arguments.
const (
	DefaultBaseURL = "https://api.x.ai/v1"
	DefaultModel   = "grok-3-latest"
)

// TruncationSuffix marks a streamed response that survived on partial
// content after connection retries were exhausted.
const TruncationSuffix = "\n\n[Response interrupted - connection error]"

const (
	connectTimeout = 10 * time.Second
	overallTimeout = 120 * time.Second

	// defaultMaxRetries is the number of additional attempts after a
	// connection-level streaming failure.
	defaultMaxRetries = 2
)

// Provider implements grokcode.Provider against any OpenAI-compatible
// chat completions endpoint. Authorization and content-type are fixed at
// construction; the pooled HTTP client uses a 10-second connect timeout
// and a 120-second overall timeout.
type Provider struct {
	apiKey     string
	model      string
	baseURL    string
	client     *http.Client
	name       string
	maxRetries int
	logger     *slog.Logger
	sleep      func(time.Duration) // test seam for retry backoff
}

// Option configures a Provider.
type Option func(*Provider)

// WithName overrides the provider name (default "xai").
func WithName(name string) Option {
	return func(p *Provider) { p.name = name }
}

// WithHTTPClient substitutes the HTTP client (tests, custom transports).
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

// WithMaxRetries sets how many times a streaming call is retried after a
// connection-level error (default 2).
func WithMaxRetries(n int) Option {
	return func(p *Provider) { p.maxRetries = n }
}

// WithLogger sets the provider's logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// NewProvider creates a chat provider. baseURL is the API base (e.g.
// "https://api.x.ai/v1"); the /chat/completions path is appended.
func NewProvider(apiKey, model, baseURL string, opts ...Option) *Provider {
	if model == "" {
		model = DefaultModel
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	p := &Provider{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		client: &http.Client{
			Timeout: overallTimeout,
			Transport: &http.Transport{
				DialContext:         (&net.Dialer{Timeout: connectTimeout}).DialContext,
				TLSHandshakeTimeout: connectTimeout,
			},
		},
		name:       "xai",
		maxRetries: defaultMaxRetries,
		sleep:      time.Sleep,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}
	return p
}

// Name returns the provider name.
func (p *Provider) Name() string { return p.name }

// Chat sends a non-streaming request and returns the complete response.
func (p *Provider) Chat(ctx context.Context, req grokcode.ChatRequest) (grokcode.ChatResponse, error) {
	body := BuildBody(req.Messages, req.Tools, p.model, req.Temperature)

	resp, err := p.send(ctx, body)
	if err != nil {
		return grokcode.ChatResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return grokcode.ChatResponse{}, p.httpErr(resp)
	}

	var chatResp ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return grokcode.ChatResponse{}, &grokcode.ErrLLM{Provider: p.name, Message: fmt.Sprintf("decode response: %v", err)}
	}
	return ParseResponse(chatResp), nil
}

// ChatStream sends a streaming request, forwarding content deltas to
// onContent. Connection-level failures (connect, reset, read) are
// retried up to maxRetries times with a backoff of 1s × (attempt+1);
// each retry restarts the stream from scratch. When retries are
// exhausted but an attempt produced content, the most recent non-empty
// partial content is returned
// with TruncationSuffix appended and no tool calls; with zero content
// the call fails.
func (p *Provider) ChatStream(ctx context.Context, req grokcode.ChatRequest, onContent func(string)) (grokcode.ChatResponse, error) {
	body := BuildBody(req.Messages, req.Tools, p.model, req.Temperature)
	body.Stream = true

	var lastErr error
	var lastContent string

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			p.logger.Warn("stream connection error, retrying",
				"provider", p.name, "attempt", attempt, "max", p.maxRetries, "error", lastErr)
			p.sleep(time.Duration(attempt) * time.Second)
			if ctx.Err() != nil {
				break
			}
		}

		resp, err := p.send(ctx, body)
		if err != nil {
			lastErr = err
			if isConnError(err) {
				continue
			}
			return grokcode.ChatResponse{}, err
		}

		if resp.StatusCode != http.StatusOK {
			err := p.httpErr(resp)
			resp.Body.Close()
			return grokcode.ChatResponse{}, err
		}

		streamed, err := StreamSSE(resp.Body, onContent)
		resp.Body.Close()
		if err == nil {
			return streamed, nil
		}
		lastErr = err
		if streamed.Content != "" {
			lastContent = streamed.Content
		}
	}

	if lastContent != "" {
		return grokcode.ChatResponse{Content: lastContent + TruncationSuffix}, nil
	}
	return grokcode.ChatResponse{}, &grokcode.ErrLLM{
		Provider: p.name,
		Message:  fmt.Sprintf("API connection failed after %d attempts: %v", p.maxRetries+1, lastErr),
	}
}

// send marshals the request body and posts it to the chat completions
// endpoint.
func (p *Provider) send(ctx context.Context, body ChatRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &grokcode.ErrLLM{Provider: p.name, Message: fmt.Sprintf("marshal request: %v", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, &grokcode.ErrLLM{Provider: p.name, Message: fmt.Sprintf("create request: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	return p.client.Do(httpReq)
}

// httpErr reads the response body into an ErrHTTP for the retry
// middleware, parsing Retry-After when present.
func (p *Provider) httpErr(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	return &grokcode.ErrHTTP{
		Status:     resp.StatusCode,
		Body:       string(body),
		RetryAfter: grokcode.ParseRetryAfter(resp.Header.Get("Retry-After")),
	}
}

// isConnError reports whether err is a connection-level failure worth a
// stream restart: dial/reset/read errors, unexpected EOF, timeouts.
// HTTP status errors never land here.
func isConnError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// Compile-time interface check.
var _ grokcode.Provider = (*Provider)(nil)
