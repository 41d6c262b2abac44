// Package task provides the task_create, task_update, task_list and
// task_get tools over the session task store.
package task

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	grokcode "github.com/nevindra/grokcode"
)

// Tool implements the task CRUD suite against one session.
type Tool struct {
	session *grokcode.Session
}

// New creates the task tool bound to session.
func New(session *grokcode.Session) *Tool {
	return &Tool{session: session}
}

func (t *Tool) Definitions() []grokcode.ToolDefinition {
	return []grokcode.ToolDefinition{
		{
			Name:        "task_create",
			Description: "Create a new task to track work. Use for complex multi-step tasks.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"subject": {"type": "string", "description": "Brief title for the task (imperative form, e.g., 'Fix login bug')"},
					"description": {"type": "string", "description": "Detailed description of what needs to be done"},
					"active_form": {"type": "string", "description": "Present continuous form for spinner (e.g., 'Fixing login bug')"}
				},
				"required": ["subject", "description"]
			}`),
		},
		{
			Name:        "task_update",
			Description: "Update a task's status or details. Set status to 'in_progress' when starting, 'completed' when done.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"task_id": {"type": "string", "description": "The task ID to update"},
					"status": {"type": "string", "enum": ["pending", "in_progress", "completed", "deleted"], "description": "New status for the task"},
					"subject": {"type": "string", "description": "New subject for the task"},
					"description": {"type": "string", "description": "New description"},
					"add_blocked_by": {"type": "array", "items": {"type": "string"}, "description": "Task IDs that block this task"}
				},
				"required": ["task_id"]
			}`),
		},
		{
			Name:        "task_list",
			Description: "List all current tasks with their status",
			Parameters:  json.RawMessage(`{"type": "object", "properties": {}}`),
		},
		{
			Name:        "task_get",
			Description: "Get full details of a specific task",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"task_id": {"type": "string", "description": "The task ID to retrieve"}
				},
				"required": ["task_id"]
			}`),
		},
	}
}

func (t *Tool) Execute(_ context.Context, name string, args json.RawMessage) (grokcode.ToolResult, error) {
	var params struct {
		TaskID       string   `json:"task_id"`
		Subject      *string  `json:"subject"`
		Description  *string  `json:"description"`
		ActiveForm   *string  `json:"active_form"`
		Status       string   `json:"status"`
		AddBlockedBy []string `json:"add_blocked_by"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return grokcode.ToolResult{Error: "invalid args: " + err.Error()}, nil
	}

	store := t.session.Tasks
	switch name {
	case "task_create":
		subject, description, activeForm := "", "", ""
		if params.Subject != nil {
			subject = *params.Subject
		}
		if params.Description != nil {
			description = *params.Description
		}
		if params.ActiveForm != nil {
			activeForm = *params.ActiveForm
		}
		created := store.Create(subject, description, activeForm)
		return grokcode.ToolResult{Content: fmt.Sprintf("Task #%s created: %s", created.ID, created.Subject)}, nil

	case "task_update":
		updated, err := store.Update(params.TaskID, grokcode.TaskUpdate{
			Status:       params.Status,
			Subject:      params.Subject,
			Description:  params.Description,
			ActiveForm:   params.ActiveForm,
			AddBlockedBy: params.AddBlockedBy,
		})
		if err != nil {
			return grokcode.ToolResult{Error: err.Error()}, nil
		}
		if params.Status == string(grokcode.TaskDeleted) {
			return grokcode.ToolResult{Content: fmt.Sprintf("Task #%s deleted", params.TaskID)}, nil
		}
		return grokcode.ToolResult{Content: fmt.Sprintf("Task #%s updated: %s [%s]", updated.ID, updated.Subject, updated.Status)}, nil

	case "task_list":
		tasks := store.List()
		if len(tasks) == 0 {
			return grokcode.ToolResult{Content: "No tasks found"}, nil
		}
		var lines []string
		for _, item := range tasks {
			icon := statusIcon(item.Status)
			blocked := ""
			if len(item.BlockedBy) > 0 {
				blocked = fmt.Sprintf(" (blocked by: %s)", strings.Join(item.BlockedBy, ", "))
			}
			lines = append(lines, fmt.Sprintf("#%s %s [%s] %s%s", item.ID, icon, item.Status, item.Subject, blocked))
		}
		return grokcode.ToolResult{Content: strings.Join(lines, "\n")}, nil

	case "task_get":
		item, ok := store.Get(params.TaskID)
		if !ok {
			return grokcode.ToolResult{Error: fmt.Sprintf("Task #%s not found", params.TaskID)}, nil
		}
		lines := []string{
			fmt.Sprintf("Task #%s: %s", item.ID, item.Subject),
			fmt.Sprintf("Status: %s", item.Status),
			fmt.Sprintf("Description: %s", item.Description),
		}
		if len(item.BlockedBy) > 0 {
			lines = append(lines, "Blocked by: "+strings.Join(item.BlockedBy, ", "))
		}
		if len(item.Blocks) > 0 {
			lines = append(lines, "Blocks: "+strings.Join(item.Blocks, ", "))
		}
		if item.Owner != "" {
			lines = append(lines, "Owner: "+item.Owner)
		}
		return grokcode.ToolResult{Content: strings.Join(lines, "\n")}, nil
	}
	return grokcode.ToolResult{Error: "unknown task tool: " + name}, nil
}

func statusIcon(s grokcode.TaskStatus) string {
	switch s {
	case grokcode.TaskPending:
		return "○"
	case grokcode.TaskInProgress:
		return "◐"
	case grokcode.TaskCompleted:
		return "●"
	}
	return "?"
}
