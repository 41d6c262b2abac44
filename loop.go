package grokcode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
)

// ErrCancelled is returned by the conversation loop when a cooperative
// cancellation signal fires. The partial output accumulated so far still
// reaches the caller.
var ErrCancelled = errors.New("Agent cancelled")

// defaultTemperature is the sampling temperature sent when a loop does
// not override it.
const defaultTemperature = 0.7

// FinishHook is a policy run when the model stops emitting tool calls.
// Returning (message, true) injects message as a corrective user turn and
// the loop continues; (_, false) lets the loop exit.
type FinishHook interface {
	AfterFinish(ctx context.Context) (string, bool)
}

// loopConfig holds everything the shared conversation loop needs. The
// foreground controller and every sub-agent run the same loop, differing
// only in prompt, allow-list, turn cap, streaming and hooks.
type loopConfig struct {
	name        string
	provider    Provider
	registry    *Registry
	allowed     []string // definition names this agent may call; empty = unrestricted
	maxTurns    int      // 0 = run until the model stops
	temperature float64

	onContent  func(string)   // non-nil enables streaming
	onStatus   func(string)   // status fan-out ("Thinking...", "Edit(x.go)")
	onToolCall func(ToolCall) // observer invoked before each dispatch

	intercept   Interceptor // per-agent pre-execution gate (completion gate)
	trackMods   *ModSet     // records successful write_file/edit_file targets
	finishHooks []FinishHook

	cancelled   *atomic.Bool // local cancel flag, flipped by SubAgent.Cancel
	cancelCheck func() bool  // injected predicate from the controller

	processors *ProcessorChain
	tracer     Tracer
	logger     *slog.Logger
}

// cancelRequested tests every cancellation signal the loop honors.
func (cfg *loopConfig) cancelRequested(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	if cfg.cancelled != nil && cfg.cancelled.Load() {
		return true
	}
	return cfg.cancelCheck != nil && cfg.cancelCheck()
}

// allowedSet returns the lowercase allow-list, or nil for unrestricted.
func (cfg *loopConfig) allowedSet() map[string]struct{} {
	if len(cfg.allowed) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(cfg.allowed))
	for _, name := range cfg.allowed {
		set[strings.ToLower(name)] = struct{}{}
	}
	return set
}

// runLoop drives one conversation until the model stops emitting tool
// calls, a cancellation fires, or the turn cap is reached. The assistant
// message is appended before any of its tool observations; tool calls
// from one assistant message execute strictly in the order emitted.
// Returns the concatenated assistant text.
func runLoop(ctx context.Context, cfg loopConfig, conv *Conversation) (string, error) {
	logger := cfg.logger
	if logger == nil {
		logger = nopLogger
	}

	allowed := cfg.allowedSet()
	defs := filterSchemas(cfg.registry.Schemas(), allowed)

	var output []string

	for turn := 0; cfg.maxTurns == 0 || turn < cfg.maxTurns; turn++ {
		if cfg.cancelRequested(ctx) {
			return joinOutput(output), ErrCancelled
		}

		iterCtx := ctx
		var iterSpan Span
		if cfg.tracer != nil {
			iterCtx, iterSpan = cfg.tracer.Start(ctx, "loop.turn",
				StringAttr("agent", cfg.name), IntAttr("turn", turn))
		}
		endIter := func() {
			if iterSpan != nil {
				iterSpan.End()
			}
		}

		if cfg.onStatus != nil {
			cfg.onStatus("Thinking...")
		}

		req := ChatRequest{Messages: conv.Messages(), Tools: defs, Temperature: cfg.temperature}
		if err := cfg.processors.RunPreLLM(iterCtx, &req); err != nil {
			endIter()
			return handleHalt(err, output)
		}

		var resp ChatResponse
		var err error
		if cfg.onContent != nil {
			resp, err = cfg.provider.ChatStream(iterCtx, req, cfg.onContent)
		} else {
			resp, err = cfg.provider.Chat(iterCtx, req)
		}
		if err != nil {
			endIter()
			return joinOutput(output), err
		}
		if err := cfg.processors.RunPostLLM(iterCtx, &resp); err != nil {
			endIter()
			return handleHalt(err, output)
		}

		conv.AddAssistant(resp.Content, resp.ToolCalls)
		if resp.Content != "" {
			output = append(output, resp.Content)
		}

		if len(resp.ToolCalls) == 0 {
			endIter()
			if msg, again := runFinishHooks(iterCtx, cfg.finishHooks); again {
				conv.AddUser(msg)
				continue
			}
			return joinOutput(output), nil
		}

		if iterSpan != nil {
			iterSpan.SetAttr(IntAttr("tool_calls", len(resp.ToolCalls)))
		}

		for _, tc := range resp.ToolCalls {
			if cfg.cancelRequested(iterCtx) {
				endIter()
				return joinOutput(output), ErrCancelled
			}
			if cfg.onStatus != nil {
				cfg.onStatus(FormatToolStatus(tc.Name, tc.Args))
			}
			if cfg.onToolCall != nil {
				cfg.onToolCall(tc)
			}

			obs := dispatchCall(iterCtx, cfg, allowed, tc)
			if cfg.trackMods != nil {
				cfg.trackMods.Record(tc, obs)
			}

			result := ToolResult{Content: obs}
			if err := cfg.processors.RunPostTool(iterCtx, tc, &result); err != nil {
				endIter()
				return handleHalt(err, output)
			}
			conv.AddToolResult(tc.ID, tc.Name, result.Content)
		}
		endIter()
	}

	logger.Warn("turn cap reached", "agent", cfg.name, "turns", cfg.maxTurns)
	return joinOutput(output), nil
}

// dispatchCall resolves one tool call to its observation string:
// allow-list refusal, per-agent interceptor, or registry execution.
func dispatchCall(ctx context.Context, cfg loopConfig, allowed map[string]struct{}, tc ToolCall) string {
	if allowed != nil {
		if _, ok := allowed[strings.ToLower(tc.Name)]; !ok {
			return fmt.Sprintf("Error: Tool %s not allowed for this agent", tc.Name)
		}
	}
	if cfg.intercept != nil {
		if obs, handled := cfg.intercept(ctx, tc); handled {
			return obs
		}
	}
	return cfg.registry.Execute(ctx, tc)
}

// runFinishHooks runs hooks in order; the first corrective message wins.
func runFinishHooks(ctx context.Context, hooks []FinishHook) (string, bool) {
	for _, h := range hooks {
		if msg, again := h.AfterFinish(ctx); again {
			return msg, true
		}
	}
	return "", false
}

// handleHalt converts a processor ErrHalt into a graceful result.
func handleHalt(err error, output []string) (string, error) {
	var halt *ErrHalt
	if errors.As(err, &halt) {
		return halt.Response, nil
	}
	return joinOutput(output), err
}

func joinOutput(parts []string) string {
	return strings.Join(parts, "\n")
}

// filterSchemas returns the definitions an agent may see. nil allowed
// means unrestricted.
func filterSchemas(defs []ToolDefinition, allowed map[string]struct{}) []ToolDefinition {
	if allowed == nil {
		return defs
	}
	out := make([]ToolDefinition, 0, len(allowed))
	for _, d := range defs {
		if _, ok := allowed[strings.ToLower(d.Name)]; ok {
			out = append(out, d)
		}
	}
	return out
}

// FormatToolStatus renders a short status label for a tool call, e.g.
// "Read(main.go)" or "Bash(go test ./...)".
func FormatToolStatus(name string, args []byte) string {
	shortPath := func(p string) string {
		if idx := strings.LastIndex(p, "/"); idx >= 0 {
			return p[idx+1:]
		}
		return p
	}
	switch name {
	case "read_file":
		return "Read(" + shortPath(StringArg(args, "file_path")) + ")"
	case "write_file":
		return "Write(" + shortPath(StringArg(args, "file_path")) + ")"
	case "edit_file":
		return "Edit(" + shortPath(StringArg(args, "file_path")) + ")"
	case "bash":
		return "Bash(" + truncateStr(StringArg(args, "command"), 30) + ")"
	case "glob":
		return "Glob(" + StringArg(args, "pattern") + ")"
	case "grep":
		return "Grep(" + truncateStr(StringArg(args, "pattern"), 20) + ")"
	}
	parts := strings.Split(name, "_")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}

// truncateStr truncates a string to n runes.
func truncateStr(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
