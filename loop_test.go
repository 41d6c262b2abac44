package grokcode

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"testing"
)

// runTestLoop drives runLoop with a scripted provider and returns the
// conversation for inspection.
func runTestLoop(t *testing.T, cfg loopConfig, provider *scriptProvider) (*Conversation, string, error) {
	t.Helper()
	cfg.provider = provider
	if cfg.registry == nil {
		cfg.registry = NewRegistry()
	}
	conv := NewConversation(func() string { return "system prompt" })
	conv.AddUser("do the thing")
	out, err := runLoop(context.Background(), cfg, conv)
	return conv, out, err
}

func TestLoopToolObservationPairing(t *testing.T) {
	reg := NewRegistry()
	reg.Register(newEchoTool("alpha", "beta"))

	provider := &scriptProvider{responses: []ChatResponse{
		{Content: "working", ToolCalls: []ToolCall{
			call("tc-1", "alpha", ""),
			call("tc-2", "beta", ""),
		}},
		{Content: "all done"},
	}}

	conv, out, err := runTestLoop(t, loopConfig{name: "test", registry: reg}, provider)
	if err != nil {
		t.Fatal(err)
	}
	if out != "working\nall done" {
		t.Errorf("unexpected output: %q", out)
	}

	// The assistant message with k tool calls must be followed by
	// exactly k tool messages with matching ids, in emitted order.
	msgs := conv.Messages()
	var assistantIdx int
	for i, m := range msgs {
		if m.Role == "assistant" && len(m.ToolCalls) == 2 {
			assistantIdx = i
			break
		}
	}
	if assistantIdx == 0 {
		t.Fatal("assistant message with tool calls not found")
	}
	for j, wantID := range []string{"tc-1", "tc-2"} {
		obs := msgs[assistantIdx+1+j]
		if obs.Role != "tool" || obs.ToolCallID != wantID {
			t.Errorf("observation %d: got role=%s id=%s, want tool/%s", j, obs.Role, obs.ToolCallID, wantID)
		}
	}
}

func TestLoopAllowListRefusal(t *testing.T) {
	reg := NewRegistry()
	edits := newEchoTool("edit_file")
	reg.Register(edits)
	reg.Register(newEchoTool("read_file"))

	provider := &scriptProvider{responses: []ChatResponse{
		{ToolCalls: []ToolCall{call("tc-1", "edit_file", "")}},
		{Content: "done"},
	}}

	conv, _, err := runTestLoop(t, loopConfig{
		name:     "explore",
		registry: reg,
		allowed:  []string{"read_file", "glob", "grep"},
	}, provider)
	if err != nil {
		t.Fatal(err)
	}

	var obs string
	for _, m := range conv.Messages() {
		if m.Role == "tool" {
			obs = m.Content
		}
	}
	if obs != "Error: Tool edit_file not allowed for this agent" {
		t.Errorf("unexpected observation: %q", obs)
	}
	if edits.callCount() != 0 {
		t.Error("disallowed tool must not execute")
	}

	// The filtered schema list must not leak disallowed tools either.
	if len(provider.requests) == 0 {
		t.Fatal("no requests recorded")
	}
	for _, d := range provider.requests[0].Tools {
		if d.Name == "edit_file" {
			t.Error("edit_file schema leaked to a restricted agent")
		}
	}
}

func TestLoopCancellation(t *testing.T) {
	reg := NewRegistry()
	reg.Register(newEchoTool("alpha"))

	var cancelled atomic.Bool
	provider := &scriptProvider{responses: []ChatResponse{
		{Content: "first", ToolCalls: []ToolCall{call("tc-1", "alpha", "")}},
		{Content: "never reached"},
	}}

	// The flag is set by the "Thinking..." status before the LLM call; the
	// loop first observes it at the dispatch check after the response.
	cfg := loopConfig{
		name:      "test",
		registry:  reg,
		cancelled: &cancelled,
		onStatus: func(string) {
			cancelled.Store(true)
		},
	}
	_, out, err := runTestLoop(t, cfg, provider)
	if err != ErrCancelled {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if !strings.Contains(out, "first") {
		t.Errorf("partial output must be preserved, got %q", out)
	}
}

func TestLoopFinishHookInjectsCorrection(t *testing.T) {
	provider := &scriptProvider{responses: []ChatResponse{
		{Content: "I think I'm done"},
		{Content: "fixed it"},
	}}

	hook := &countingHook{message: "STOP - fix your errors", fireTimes: 1}
	conv, out, err := runTestLoop(t, loopConfig{name: "test", finishHooks: []FinishHook{hook}}, provider)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(out, "fixed it") {
		t.Errorf("loop must continue after hook injection, got %q", out)
	}

	var sawCorrection bool
	for _, m := range conv.Messages() {
		if m.Role == "user" && m.Content == "STOP - fix your errors" {
			sawCorrection = true
		}
	}
	if !sawCorrection {
		t.Error("corrective user message not appended")
	}
}

// countingHook fires its message fireTimes times, then lets the loop
// exit.
type countingHook struct {
	message   string
	fireTimes int
	fired     int
}

func (h *countingHook) AfterFinish(context.Context) (string, bool) {
	if h.fired >= h.fireTimes {
		return "", false
	}
	h.fired++
	return h.message, true
}

func TestLoopTurnCap(t *testing.T) {
	reg := NewRegistry()
	tool := newEchoTool("alpha")
	reg.Register(tool)

	// Provider always emits a tool call; the cap must stop the loop.
	var responses []ChatResponse
	for i := 0; i < 10; i++ {
		responses = append(responses, ChatResponse{ToolCalls: []ToolCall{call("tc", "alpha", "")}})
	}
	provider := &scriptProvider{responses: responses}

	_, _, err := runTestLoop(t, loopConfig{name: "capped", registry: reg, maxTurns: 3}, provider)
	if err != nil {
		t.Fatal(err)
	}
	if tool.callCount() != 3 {
		t.Errorf("expected 3 dispatches under a 3-turn cap, got %d", tool.callCount())
	}
}

func TestLoopModificationTracking(t *testing.T) {
	reg := NewRegistry()
	reg.Register(successWriteTool{})

	mods := NewModSet()
	provider := &scriptProvider{responses: []ChatResponse{
		{ToolCalls: []ToolCall{call("tc-1", "write_file", `{"file_path": "/tmp/a.go", "content": "x"}`)}},
		{Content: "done"},
	}}
	_, _, err := runTestLoop(t, loopConfig{name: "test", registry: reg, trackMods: mods}, provider)
	if err != nil {
		t.Fatal(err)
	}
	paths := mods.Paths()
	if len(paths) != 1 || paths[0] != "/tmp/a.go" {
		t.Errorf("expected /tmp/a.go tracked, got %v", paths)
	}
}

type successWriteTool struct{}

func (successWriteTool) Definitions() []ToolDefinition {
	return []ToolDefinition{{Name: "write_file", Description: "fake write"}}
}

func (successWriteTool) Execute(_ context.Context, _ string, _ json.RawMessage) (ToolResult, error) {
	return ToolResult{Content: "Successfully wrote 1 bytes to /tmp/a.go"}, nil
}
