// Package plan provides the plan-mode tools: enter_plan_mode,
// write_plan and exit_plan_mode, driving the session plan state machine.
package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	grokcode "github.com/nevindra/grokcode"
)

// Tool implements the plan-mode suite against one session.
type Tool struct {
	session *grokcode.Session
}

// New creates the plan tool bound to session.
func New(session *grokcode.Session) *Tool {
	return &Tool{session: session}
}

func (t *Tool) Definitions() []grokcode.ToolDefinition {
	return []grokcode.ToolDefinition{
		{
			Name: "enter_plan_mode",
			Description: `Enter plan mode for complex implementation tasks. Use this when:
- Adding new features that need architectural decisions
- Multiple valid approaches exist
- Changes affect multiple files
- Requirements need clarification

In plan mode, explore the codebase, design an approach, and get user approval before implementing.`,
			Parameters: json.RawMessage(`{"type": "object", "properties": {}}`),
		},
		{
			Name: "write_plan",
			Description: `Write or update the implementation plan. Your plan MUST include:

## Required Format:
# [Plan Title]

## Overview
[1-2 paragraph summary]

## Files to Modify
- ` + "`path/to/file.go`" + ` - [what changes]

## Tasks
- [ ] Task 1: [Specific, actionable task]
- [ ] Task 2: [Specific, actionable task]

Tasks are MANDATORY. Each task must be in ` + "`- [ ]`" + ` checkbox format.
Tasks will be automatically created for tracking.`,
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"content": {"type": "string", "description": "The plan content in markdown format. MUST include ## Tasks section with - [ ] checkboxes."}
				},
				"required": ["content"]
			}`),
		},
		{
			Name:        "exit_plan_mode",
			Description: "Exit plan mode and request user approval for your plan. The user will review your plan before you can proceed with implementation. Plan must have tasks before exiting.",
			Parameters:  json.RawMessage(`{"type": "object", "properties": {}}`),
		},
	}
}

func (t *Tool) Execute(_ context.Context, name string, args json.RawMessage) (grokcode.ToolResult, error) {
	switch name {
	case "enter_plan_mode":
		return t.enter()
	case "write_plan":
		var params struct {
			Content string `json:"content"`
		}
		if err := json.Unmarshal(args, &params); err != nil {
			return grokcode.ToolResult{Error: "invalid args: " + err.Error()}, nil
		}
		return t.write(params.Content)
	case "exit_plan_mode":
		return t.exit()
	}
	return grokcode.ToolResult{Error: "unknown plan tool: " + name}, nil
}

func (t *Tool) enter() (grokcode.ToolResult, error) {
	planFile := t.session.Plan.Enter()
	return grokcode.ToolResult{Content: fmt.Sprintf(`Entered plan mode.

In plan mode:
1. Use read_file, glob, grep to explore the codebase
2. Use task agent to explore complex areas
3. Design your implementation approach
4. Write your plan using write_plan tool (MUST include tasks)
5. Call exit_plan_mode when ready for user approval

## Plan Requirements:
Your plan MUST include a ## Tasks section with checkbox items:
`+"```"+`
## Tasks
- [ ] Task 1: Specific actionable task
- [ ] Task 2: Specific actionable task
- [ ] Task 3: Specific actionable task
`+"```"+`

Tasks will be automatically created for tracking when you write the plan.

Plan will be saved to: %s

DO NOT make any edits to code files while in plan mode.`, planFile)}, nil
}

func (t *Tool) write(content string) (grokcode.ToolResult, error) {
	if !t.session.Plan.Active() {
		return grokcode.ToolResult{Error: "Not in plan mode. Call enter_plan_mode first."}, nil
	}

	if len(grokcode.ExtractTaskSubjects(content)) == 0 {
		return grokcode.ToolResult{Error: `Plan must include tasks in checkbox format.

Add a ## Tasks section with tasks like:
## Tasks
- [ ] Task 1: Description
- [ ] Task 2: Description
- [ ] Task 3: Description

Each task should be specific and actionable.`}, nil
	}

	created, err := t.session.Plan.SetPlan(content, t.session.Tasks)
	if err != nil {
		return grokcode.ToolResult{Error: fmt.Sprintf("saving plan: %v", err)}, nil
	}
	return grokcode.ToolResult{Content: fmt.Sprintf("Plan saved to %s\n\nCreated %d task(s) for tracking.",
		t.session.Plan.File(), created)}, nil
}

func (t *Tool) exit() (grokcode.ToolResult, error) {
	state := t.session.Plan
	if !state.Active() {
		return grokcode.ToolResult{Error: "Not in plan mode."}, nil
	}
	if state.Content() == "" {
		return grokcode.ToolResult{Error: "No plan was written. Use write_plan to create your plan first."}, nil
	}
	created := state.CreatedTasks()
	if len(created) == 0 {
		return grokcode.ToolResult{Error: `Plan has no tasks. Cannot exit plan mode without tasks.

Your plan must include a ## Tasks section with checkbox items:
## Tasks
- [ ] Task 1: Description
- [ ] Task 2: Description

Use write_plan again with proper task format.`}, nil
	}

	var taskLines []string
	for _, subject := range created {
		if item, ok := t.session.Tasks.FindBySubject(subject); ok {
			taskLines = append(taskLines, fmt.Sprintf("  - #%s: %s", item.ID, subject))
		}
	}

	planContent := state.Content()
	planFile := state.File()
	state.Exit()

	return grokcode.ToolResult{Content: fmt.Sprintf(`Exiting plan mode.

[PLAN FOR USER APPROVAL]
%s
[END PLAN]

## Created Tasks:
%s

Plan saved to: %s

Waiting for user approval. The user should respond with:
- 'approve' or 'yes' to proceed with implementation
- 'reject' or 'no' to cancel
- Feedback/changes to request modifications`, planContent, strings.Join(taskLines, "\n"), planFile)}, nil
}
