package openaicompat

import (
	"encoding/json"

	grokcode "github.com/nevindra/grokcode"
)

// ParseResponse converts a wire-format ChatResponse to the engine's
// ChatResponse. Content, tool calls and usage come from choices[0].
func ParseResponse(resp ChatResponse) grokcode.ChatResponse {
	var out grokcode.ChatResponse

	if len(resp.Choices) > 0 && resp.Choices[0].Message != nil {
		msg := resp.Choices[0].Message
		out.Content = msg.Content
		out.ToolCalls = ParseToolCalls(msg.ToolCalls)
	}
	if resp.Usage != nil {
		out.Usage = grokcode.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		}
	}
	return out
}

// ParseToolCalls converts wire tool calls to engine ToolCalls. The wire
// format carries arguments as a JSON string; it is parsed, recursively
// HTML-unescaped, and stored as a raw JSON document. Unparseable
// arguments collapse to an empty object so a single malformed call
// cannot poison the turn.
func ParseToolCalls(tcs []ToolCallRequest) []grokcode.ToolCall {
	if len(tcs) == 0 {
		return nil
	}
	out := make([]grokcode.ToolCall, 0, len(tcs))
	for _, tc := range tcs {
		args := json.RawMessage(tc.Function.Arguments)
		if len(args) == 0 || !json.Valid(args) {
			args = json.RawMessage(`{}`)
		}
		out = append(out, grokcode.ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: UnescapeArgs(args),
		})
	}
	return out
}
