package grokcode

import "encoding/json"

// --- LLM protocol types ---

// ChatMessage is a single message in a conversation.
// Role is one of "system", "user", "assistant", "tool".
// Tool-role messages carry the ToolCallID they answer and the ToolName
// that produced the observation.
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"name,omitempty"`
}

// ToolCall is a structured instruction from the model requesting a tool
// invocation. Args is the parsed (and HTML-unescaped) arguments object.
type ToolCall struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

// ChatRequest is a provider-agnostic chat request.
type ChatRequest struct {
	Messages    []ChatMessage    `json:"messages"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	Temperature float64          `json:"temperature,omitempty"`
}

// ChatResponse is the assistant's reply. When ToolCalls is non-empty the
// caller must execute them and append one tool message per call before
// the next assistant turn.
type ChatResponse struct {
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Usage     Usage      `json:"usage"`
}

// Usage tracks token consumption across LLM calls.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ToolDefinition describes a callable tool for the model.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"` // JSON Schema
}

// ToolResult is the outcome of a tool execution. A non-empty Error marks
// Content as failed; the registry folds it into the "Error: ..." string
// contract the model sees.
type ToolResult struct {
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}

// --- ChatMessage constructors ---

func SystemMessage(text string) ChatMessage {
	return ChatMessage{Role: "system", Content: text}
}

func UserMessage(text string) ChatMessage {
	return ChatMessage{Role: "user", Content: text}
}

func AssistantMessage(text string) ChatMessage {
	return ChatMessage{Role: "assistant", Content: text}
}

// ToolResultMessage builds the tool-role observation answering callID.
func ToolResultMessage(callID, toolName, content string) ChatMessage {
	return ChatMessage{Role: "tool", Content: content, ToolCallID: callID, ToolName: toolName}
}

// StringArg extracts a top-level string field from raw tool arguments.
// Returns "" when the field is absent or not a string. Used by the
// permission gate and status formatting, which must not fail on
// malformed arguments.
func StringArg(args json.RawMessage, key string) string {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(args, &m); err != nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(m[key], &s); err != nil {
		return ""
	}
	return s
}
