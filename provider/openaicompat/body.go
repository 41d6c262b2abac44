package openaicompat

import (
	"encoding/json"

	grokcode "github.com/nevindra/grokcode"
)

// BuildBody converts messages and tool definitions into the wire-format
// request body. Serialization rules:
//
//   - role is always present; content only when the message carries text
//     or is a user/system/tool message (assistant tool-call messages with
//     empty text omit it)
//   - tool_calls are encoded as {id, type:function, function:{name,
//     arguments}} with arguments JSON-stringified
//   - tool-role messages carry tool_call_id and name
func BuildBody(messages []grokcode.ChatMessage, tools []grokcode.ToolDefinition, model string, temperature float64) ChatRequest {
	var msgs []Message

	for _, m := range messages {
		msg := Message{Role: m.Role}

		switch {
		case m.Role == "assistant" && len(m.ToolCalls) > 0:
			msg.ToolCalls = buildToolCalls(m.ToolCalls)
			if m.Content != "" {
				content := m.Content
				msg.Content = &content
			}
		case m.Role == "tool":
			content := m.Content
			msg.Content = &content
			msg.ToolCallID = m.ToolCallID
			msg.Name = m.ToolName
		default:
			content := m.Content
			msg.Content = &content
		}
		msgs = append(msgs, msg)
	}

	req := ChatRequest{
		Model:    model,
		Messages: msgs,
	}
	if temperature > 0 {
		req.Temperature = &temperature
	}
	if len(tools) > 0 {
		req.Tools = BuildToolDefs(tools)
	}
	return req
}

// buildToolCalls converts tool calls back to the wire format, re-encoding
// arguments as a JSON string.
func buildToolCalls(tcs []grokcode.ToolCall) []ToolCallRequest {
	out := make([]ToolCallRequest, 0, len(tcs))
	for _, tc := range tcs {
		args := string(tc.Args)
		if args == "" {
			args = "{}"
		}
		out = append(out, ToolCallRequest{
			ID:   tc.ID,
			Type: "function",
			Function: FunctionCall{
				Name:      tc.Name,
				Arguments: args,
			},
		})
	}
	return out
}

// BuildToolDefs converts tool definitions to the wire tool format.
func BuildToolDefs(tools []grokcode.ToolDefinition) []Tool {
	out := make([]Tool, 0, len(tools))
	for _, t := range tools {
		params := t.Parameters
		if len(params) == 0 {
			params = json.RawMessage(`{}`)
		}
		out = append(out, Tool{
			Type: "function",
			Function: Function{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return out
}
