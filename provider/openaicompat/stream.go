package openaicompat

import (
	"bufio"
	"encoding/json"
	"io"
	"sort"
	"strings"

	grokcode "github.com/nevindra/grokcode"
)

// partialToolCall accumulates one tool call across stream chunks. The
// endpoint streams tool calls incrementally, keyed by an integer index:
// id and name latch on first appearance, arguments concatenate as string
// fragments across deltas.
type partialToolCall struct {
	ID   string
	Name string
	Args strings.Builder
}

// StreamSSE reads an SSE stream from body, invoking onContent for each
// content delta, and returns the fully accumulated response.
//
// Lines not starting with "data: " are ignored; "data: [DONE]" ends the
// stream. On a read error the partial response assembled so far is
// returned alongside the error so callers can preserve streamed content
// across retries.
//
// SSE format expected:
//
//	data: {"id":"...","choices":[...]}\n
//	data: [DONE]\n
func StreamSSE(body io.Reader, onContent func(string)) (grokcode.ChatResponse, error) {
	scanner := bufio.NewScanner(body)
	// Large SSE payloads (file contents inside tool arguments).
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	var fullContent strings.Builder
	var usage grokcode.Usage
	toolCalls := make(map[int]*partialToolCall)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}

		var chunk ChatResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// Skip malformed chunks.
			continue
		}

		if chunk.Usage != nil {
			usage.InputTokens = chunk.Usage.PromptTokens
			usage.OutputTokens = chunk.Usage.CompletionTokens
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta
		if delta == nil {
			continue
		}

		if delta.Content != "" {
			fullContent.WriteString(delta.Content)
			if onContent != nil {
				onContent(delta.Content)
			}
		}

		for _, tc := range delta.ToolCalls {
			partial, ok := toolCalls[tc.Index]
			if !ok {
				partial = &partialToolCall{}
				toolCalls[tc.Index] = partial
			}
			if tc.ID != "" {
				partial.ID = tc.ID
			}
			if tc.Function.Name != "" {
				partial.Name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				partial.Args.WriteString(tc.Function.Arguments)
			}
		}
	}

	resp := grokcode.ChatResponse{
		Content:   fullContent.String(),
		ToolCalls: assembleToolCalls(toolCalls),
		Usage:     usage,
	}
	if err := scanner.Err(); err != nil {
		return resp, err
	}
	return resp, nil
}

// assembleToolCalls finalizes accumulated fragments in index order,
// parsing each arguments string as JSON (empty → empty object) and
// HTML-unescaping every string field.
func assembleToolCalls(partials map[int]*partialToolCall) []grokcode.ToolCall {
	if len(partials) == 0 {
		return nil
	}
	indexes := make([]int, 0, len(partials))
	for idx := range partials {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	out := make([]grokcode.ToolCall, 0, len(indexes))
	for _, idx := range indexes {
		p := partials[idx]
		args := json.RawMessage(p.Args.String())
		if len(args) == 0 || !json.Valid(args) {
			args = json.RawMessage(`{}`)
		} else {
			args = UnescapeArgs(args)
		}
		out = append(out, grokcode.ToolCall{ID: p.ID, Name: p.Name, Args: args})
	}
	return out
}
