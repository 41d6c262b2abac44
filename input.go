package grokcode

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// InputRequest describes what the agent needs from the human.
type InputRequest struct {
	// Question is the natural language prompt shown to the human.
	Question string
	// Options provides suggested choices. Empty = free-form input.
	Options []string
	// Metadata carries context for the handler (agent name, tool being
	// approved, danger reason, ...).
	Metadata map[string]string
}

// InputResponse is the human's reply.
type InputResponse struct {
	Value string
}

// InputHandler delivers questions to a human and returns their response.
// Implementations bridge to the actual UI (terminal prompt, HTTP, ...).
// Must block until a response is received or ctx is cancelled.
type InputHandler interface {
	RequestInput(ctx context.Context, req InputRequest) (InputResponse, error)
}

// InputHandlerFunc adapts a function to InputHandler.
type InputHandlerFunc func(ctx context.Context, req InputRequest) (InputResponse, error)

func (f InputHandlerFunc) RequestInput(ctx context.Context, req InputRequest) (InputResponse, error) {
	return f(ctx, req)
}

// --- permission gate wiring ---

// formatForApproval renders a tool call for the approval prompt.
func formatForApproval(tool string, args json.RawMessage) string {
	switch tool {
	case "bash":
		return "bash: " + truncateStr(StringArg(args, "command"), 80)
	case "write_file":
		content := StringArg(args, "content")
		lines := strings.Count(content, "\n") + 1
		return fmt.Sprintf("write: %s (%d lines)", StringArg(args, "file_path"), lines)
	case "edit_file":
		return "edit: " + StringArg(args, "file_path")
	}
	return tool + ": " + truncateStr(string(args), 60)
}

// PermissionInterceptor builds the registry interceptor enforcing the
// permission gate on every execution path. When a call needs approval
// and a handler is wired, the human is asked yes / no / always; "always"
// also persists the approval. Without a handler the call is refused with
// an observation telling the model how to proceed.
func PermissionInterceptor(session *Session, handler InputHandler) Interceptor {
	return func(ctx context.Context, tc ToolCall) (string, bool) {
		allowed, dangerReason, key := session.Perms.Check(tc.Name, tc.Args)
		if allowed {
			return "", false
		}

		label := formatForApproval(tc.Name, tc.Args)
		reason := dangerReason
		if reason == "" {
			reason = "requires approval in " + string(session.Perms.Mode()) + " mode"
		}

		if handler == nil {
			return fmt.Sprintf("Permission required:\n%s\nReason: %s\n\nUse approve_operation tool to approve, or modify the command.",
				label, reason), true
		}

		resp, err := handler.RequestInput(ctx, InputRequest{
			Question: fmt.Sprintf("Allow %s?\nReason: %s", label, reason),
			Options:  []string{"yes", "no", "always"},
			Metadata: map[string]string{"tool": tc.Name, "key": key, "reason": reason},
		})
		if err != nil {
			return "Error: approval request failed: " + err.Error(), true
		}

		switch strings.ToLower(strings.TrimSpace(resp.Value)) {
		case "yes", "y", "approve":
			session.Perms.Approve(tc.Name, key, false)
			return "", false
		case "always", "a":
			session.Perms.Approve(tc.Name, key, true)
			return "", false
		}
		return fmt.Sprintf("Error: Permission denied by user for %s", label), true
	}
}

// --- ask_user tool ---

// askUserTool surfaces a clarification question. With an InputHandler it
// blocks for the human's answer; without one it emits the framed question
// for the UI layer to render.
type askUserTool struct {
	handler InputHandler
}

// NewAskUserTool creates the ask_user tool. handler may be nil.
func NewAskUserTool(handler InputHandler) Tool {
	return &askUserTool{handler: handler}
}

func (t *askUserTool) Definitions() []ToolDefinition {
	return []ToolDefinition{{
		Name:        "ask_user",
		Description: "Ask the user a question to clarify requirements or get their preference between options.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"question": {"type": "string", "description": "The question to ask the user"},
				"options": {"type": "array", "items": {"type": "string"}, "description": "Optional list of choices for the user"}
			},
			"required": ["question"]
		}`),
	}}
}

func (t *askUserTool) Execute(ctx context.Context, _ string, args json.RawMessage) (ToolResult, error) {
	var params struct {
		Question string   `json:"question"`
		Options  []string `json:"options"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return ToolResult{Error: "invalid args: " + err.Error()}, nil
	}

	if t.handler != nil {
		resp, err := t.handler.RequestInput(ctx, InputRequest{
			Question: params.Question,
			Options:  params.Options,
		})
		if err != nil {
			return ToolResult{Error: err.Error()}, nil
		}
		return ToolResult{Content: resp.Value}, nil
	}

	var b strings.Builder
	b.WriteString("[QUESTION FOR USER]\n" + params.Question)
	if len(params.Options) > 0 {
		b.WriteString("\n\nOptions:")
		for i, opt := range params.Options {
			fmt.Fprintf(&b, "\n  %d. %s", i+1, opt)
		}
	}
	b.WriteString("\n[END QUESTION]")
	return ToolResult{Content: b.String()}, nil
}

// --- approve_operation tool ---

// approveTool lets the model record a user-confirmed approval.
type approveTool struct {
	session *Session
}

// NewApproveTool creates the approve_operation tool.
func NewApproveTool(session *Session) Tool {
	return &approveTool{session: session}
}

func (t *approveTool) Definitions() []ToolDefinition {
	return []ToolDefinition{{
		Name: "approve_operation",
		Description: `Approve a dangerous operation that requires permission.
Use this when a tool returns a permission required message.
The user must explicitly confirm they want to proceed.`,
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"tool": {"type": "string", "description": "The tool name (e.g., 'bash', 'write_file')"},
				"pattern": {"type": "string", "description": "The pattern to approve (from the permission message)"},
				"approve_all": {"type": "boolean", "description": "Approve all similar operations for this session"}
			},
			"required": ["tool"]
		}`),
	}}
}

func (t *approveTool) Execute(_ context.Context, _ string, args json.RawMessage) (ToolResult, error) {
	var params struct {
		Tool       string `json:"tool"`
		Pattern    string `json:"pattern"`
		ApproveAll bool   `json:"approve_all"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return ToolResult{Error: "invalid args: " + err.Error()}, nil
	}

	if params.ApproveAll {
		t.session.Perms.ApproveAll(params.Tool)
		return ToolResult{Content: fmt.Sprintf("Approved all permission-requiring operations for '%s' tool this session", params.Tool)}, nil
	}
	if params.Pattern != "" {
		t.session.Perms.Approve(params.Tool, params.Pattern, false)
		return ToolResult{Content: fmt.Sprintf("Approved pattern for '%s' tool: %s", params.Tool, params.Pattern)}, nil
	}

	return ToolResult{Content: `[APPROVAL REQUEST]
The assistant is requesting permission for a potentially dangerous operation.

Please respond with:
- 'yes' or 'approve' to allow this operation
- 'no' or 'deny' to block it
- 'always' to approve all similar operations this session

[END APPROVAL REQUEST]`}, nil
}
