package openaicompat

import (
	"encoding/json"
	"strings"
	"testing"

	grokcode "github.com/nevindra/grokcode"
)

func TestBuildBodySerializationRules(t *testing.T) {
	messages := []grokcode.ChatMessage{
		grokcode.SystemMessage("sys"),
		grokcode.UserMessage("hi"),
		{
			Role: "assistant",
			ToolCalls: []grokcode.ToolCall{
				{ID: "tc-1", Name: "read_file", Args: json.RawMessage(`{"file_path":"x"}`)},
			},
		},
		grokcode.ToolResultMessage("tc-1", "read_file", "     1│content"),
	}

	body := BuildBody(messages, nil, "grok-3-latest", 0.7)
	if body.Model != "grok-3-latest" || body.Temperature == nil || *body.Temperature != 0.7 {
		t.Errorf("header fields wrong: %+v", body)
	}
	if len(body.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(body.Messages))
	}

	// Assistant message with tool calls and no text omits content.
	assistant := body.Messages[2]
	if assistant.Content != nil {
		t.Error("empty assistant content must be omitted")
	}
	if len(assistant.ToolCalls) != 1 {
		t.Fatal("tool calls missing")
	}
	tc := assistant.ToolCalls[0]
	if tc.Type != "function" || tc.ID != "tc-1" || tc.Function.Name != "read_file" {
		t.Errorf("tool call encoding wrong: %+v", tc)
	}
	// Arguments travel as a JSON-encoded string.
	if tc.Function.Arguments != `{"file_path":"x"}` {
		t.Errorf("arguments not stringified: %q", tc.Function.Arguments)
	}

	// Tool message carries tool_call_id and name.
	tool := body.Messages[3]
	if tool.Role != "tool" || tool.ToolCallID != "tc-1" || tool.Name != "read_file" {
		t.Errorf("tool message encoding wrong: %+v", tool)
	}
}

func TestBuildBodyWireFormat(t *testing.T) {
	body := BuildBody(
		[]grokcode.ChatMessage{{
			Role: "assistant",
			ToolCalls: []grokcode.ToolCall{
				{ID: "a", Name: "bash", Args: json.RawMessage(`{"command":"ls"}`)},
			},
		}},
		[]grokcode.ToolDefinition{{Name: "bash", Description: "run", Parameters: json.RawMessage(`{"type":"object"}`)}},
		"m", 0)

	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	s := string(raw)
	for _, want := range []string{
		`"type":"function"`,
		`"arguments":"{\"command\":\"ls\"}"`,
		`"tools":[{"type":"function","function":{"name":"bash","description":"run","parameters":{"type":"object"}}}]`,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("wire body missing %s:\n%s", want, s)
		}
	}
}

func TestBuildBodyEmptyToolArgs(t *testing.T) {
	body := BuildBody([]grokcode.ChatMessage{{
		Role:      "assistant",
		ToolCalls: []grokcode.ToolCall{{ID: "a", Name: "task_list"}},
	}}, nil, "m", 0)

	if got := body.Messages[0].ToolCalls[0].Function.Arguments; got != "{}" {
		t.Errorf("nil args must encode as {}, got %q", got)
	}
}

func TestParseResponseBlockingPath(t *testing.T) {
	wire := `{
		"choices": [{"message": {
			"role": "assistant",
			"content": "done",
			"tool_calls": [{"id": "c1", "function": {"name": "grep", "arguments": "{\"pattern\": \"a &amp;&amp; b\"}"}}]
		}}],
		"usage": {"prompt_tokens": 10, "completion_tokens": 4}
	}`
	var resp ChatResponse
	if err := json.Unmarshal([]byte(wire), &resp); err != nil {
		t.Fatal(err)
	}

	parsed := ParseResponse(resp)
	if parsed.Content != "done" || parsed.Usage.InputTokens != 10 || parsed.Usage.OutputTokens != 4 {
		t.Errorf("parse wrong: %+v", parsed)
	}
	if len(parsed.ToolCalls) != 1 || parsed.ToolCalls[0].Name != "grep" {
		t.Fatalf("tool calls wrong: %v", parsed.ToolCalls)
	}
	// Unescaping applies on the blocking path too.
	if !strings.Contains(string(parsed.ToolCalls[0].Args), "a && b") {
		t.Errorf("args not unescaped: %s", parsed.ToolCalls[0].Args)
	}
}

func TestParseToolCallsInvalidArguments(t *testing.T) {
	out := ParseToolCalls([]ToolCallRequest{{
		ID:       "c1",
		Function: FunctionCall{Name: "bash", Arguments: "{broken"},
	}})
	if string(out[0].Args) != "{}" {
		t.Errorf("invalid arguments must collapse to {}, got %s", out[0].Args)
	}
}
