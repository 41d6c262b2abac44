package grokcode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync/atomic"
	"time"
)

// AgentType identifies a sub-agent flavor.
type AgentType string

const (
	AgentExplore AgentType = "explore"
	AgentPlan    AgentType = "plan"
	AgentGeneral AgentType = "general"
	AgentPlugin  AgentType = "plugin"
)

// BuiltinAgentType reports whether name is a built-in agent type.
func BuiltinAgentType(name string) bool {
	switch AgentType(name) {
	case AgentExplore, AgentPlan, AgentGeneral:
		return true
	}
	return false
}

// BaseAgentRules applies to every implementing sub-agent and precedes the
// type-specific prompt.
const BaseAgentRules = `## Base Rules (Always Follow)
1. USE TOOLS TO DO WORK - You MUST use Edit/Write tools to make changes. Never just describe what you would do - actually do it with tools.
2. Read before modify - Always read a file before editing or writing to it.
3. Work autonomously - Don't ask for permission. Just do the work.
4. Be thorough - Complete the entire task. No placeholders or TODOs.
5. Mark tasks complete - ONLY mark a task complete AFTER you have used Edit/Write tools to implement it.
6. NO FAKE COMPLETIONS - If you didn't use Edit/Write to change files, you didn't complete the task.
7. FIX SYNTAX ERRORS - Your modified files will be checked for syntax errors. You cannot finish until all errors are fixed.

## CRITICAL: How to Edit Files Correctly
The edit_file tool requires EXACT string matching including all whitespace and indentation.

When you read a file, you see output like:
` + "```" + `
  42│    def my_function(self):
  43│        if condition:
  44│            do_something()
` + "```" + `

The format is: [line_number]│[actual_file_content]
Everything AFTER the │ is the actual file content including indentation.

To edit lines 43-44, your old_string must include the EXACT indentation:
- Line 43 has 8 spaces before "if"
- Line 44 has 12 spaces before "do_something"

**Rules for editing:**
- Copy the EXACT whitespace you see after the │ in read_file output
- Include enough context (2-3 lines) to make the match unique
- If edit fails, re-read the file and check your indentation carefully
- Count the spaces - Python files typically use 4-space indentation per level
`

// Turn caps per agent type. The foreground controller runs uncapped.
const (
	exploreMaxTurns = 10
	planMaxTurns    = 15
	generalMaxTurns = 30
	pluginMaxTurns  = 50
)

// AgentDefinition is an externally supplied agent (parsed from plugin
// markdown). An empty Tools list means unrestricted.
type AgentDefinition struct {
	Name        string
	Description string
	Prompt      string
	Tools       []string
}

// AgentResult is the terminal outcome of a sub-agent run.
type AgentResult struct {
	AgentID string
	Type    AgentType
	Success bool
	Output  string
	Error   string
}

// SubAgent is one restricted conversation loop spawned by the task tool.
// Each agent owns its conversation; it shares the registry and session
// with its parent but sees only its allow-listed tools.
type SubAgent struct {
	id          string
	typ         AgentType
	description string
	allowed     []string
	prompt      string
	maxTurns    int

	provider Provider
	registry *Registry
	session  *Session

	onStatus    func(string)
	cancelled   atomic.Bool
	cancelCheck func() bool

	mods       *ModSet
	intercept  Interceptor
	hooks      []FinishHook
	onToolCall func(ToolCall)
	postRun    func(ctx context.Context, output string) string

	logger *slog.Logger
	tracer Tracer
}

// SubAgentOption configures a sub-agent at construction.
type SubAgentOption func(*SubAgent)

// WithAgentStatus sets the status callback receiving formatted tool
// labels as the agent works.
func WithAgentStatus(fn func(string)) SubAgentOption {
	return func(a *SubAgent) { a.onStatus = fn }
}

// WithAgentLogger sets the agent's logger.
func WithAgentLogger(l *slog.Logger) SubAgentOption {
	return func(a *SubAgent) { a.logger = l }
}

// WithAgentTracer sets the agent's tracer.
func WithAgentTracer(t Tracer) SubAgentOption {
	return func(a *SubAgent) { a.tracer = t }
}

// ID returns the agent's 8-hex identifier.
func (a *SubAgent) ID() string { return a.id }

// Type returns the agent flavor.
func (a *SubAgent) Type() AgentType { return a.typ }

// Description returns what this agent does.
func (a *SubAgent) Description() string { return a.description }

// AllowedTools returns the agent's allow-list (nil = unrestricted).
func (a *SubAgent) AllowedTools() []string { return a.allowed }

// Cancel flips the agent's local cancellation flag. The loop honors it at
// every suspension point.
func (a *SubAgent) Cancel() { a.cancelled.Store(true) }

// Cancelled reports whether Cancel was called.
func (a *SubAgent) Cancelled() bool { return a.cancelled.Load() }

// SetCancelCheck injects the controller's cancellation predicate, checked
// alongside the local flag.
func (a *SubAgent) SetCancelCheck(fn func() bool) { a.cancelCheck = fn }

// Run executes the agent's conversation loop to completion. Errors —
// including cancellation — come back inside the AgentResult; Run never
// panics past its boundary.
func (a *SubAgent) Run(ctx context.Context, prompt string) (res AgentResult) {
	res = AgentResult{AgentID: a.id, Type: a.typ}
	defer func() {
		if p := recover(); p != nil {
			res.Success = false
			res.Error = fmt.Sprintf("agent panic: %v", p)
		}
	}()

	conv := NewConversation(func() string { return a.prompt })
	conv.AddUser(prompt)

	cfg := loopConfig{
		name:        string(a.typ) + ":" + a.id,
		provider:    a.provider,
		registry:    a.registry,
		allowed:     a.allowed,
		maxTurns:    a.maxTurns,
		temperature: defaultTemperature,
		onStatus:    a.onStatus,
		onToolCall:  a.onToolCall,
		intercept:   a.intercept,
		trackMods:   a.mods,
		finishHooks: a.hooks,
		cancelled:   &a.cancelled,
		cancelCheck: a.cancelCheck,
		logger:      a.logger,
		tracer:      a.tracer,
	}

	output, err := runLoop(ctx, cfg, conv)
	if errors.Is(err, ErrCancelled) {
		res.Output = output
		res.Error = "Agent cancelled"
		return res
	}
	if err != nil {
		res.Output = output
		res.Error = err.Error()
		return res
	}
	if a.postRun != nil {
		output = a.postRun(ctx, output)
	}
	res.Success = true
	res.Output = output
	return res
}

// --- built-in agent constructors ---

// NewExploreAgent builds the read-only exploration agent.
func NewExploreAgent(provider Provider, registry *Registry, session *Session, opts ...SubAgentOption) *SubAgent {
	a := &SubAgent{
		id:          ShortID(),
		typ:         AgentExplore,
		description: "Fast agent for exploring codebases - finding files, searching code, understanding structure",
		allowed:     []string{"read_file", "glob", "grep"},
		maxTurns:    exploreMaxTurns,
		provider:    provider,
		registry:    registry,
		session:     session,
	}
	a.prompt = fmt.Sprintf(`You are an exploration agent. Your job is to explore codebases and find information.

You have access to these tools:
- read_file: Read file contents
- glob: Find files by pattern
- grep: Search file contents

Be thorough but efficient. Search multiple patterns if needed. Summarize your findings clearly.

Current working directory: %s
`, session.Cwd)
	a.postRun = func(_ context.Context, output string) string {
		if output == "" {
			return "Exploration complete."
		}
		return output
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewGeneralAgent builds the unrestricted implementation agent. All
// finish hooks are active: completion gate, syntax validation and the
// pending-task reminder.
func NewGeneralAgent(provider Provider, registry *Registry, session *Session, opts ...SubAgentOption) *SubAgent {
	a := &SubAgent{
		id:          ShortID(),
		typ:         AgentGeneral,
		description: "General-purpose agent with full tool access for implementing features and fixes",
		maxTurns:    generalMaxTurns,
		provider:    provider,
		registry:    registry,
		session:     session,
	}
	a.prompt = fmt.Sprintf(`%s

You are a general-purpose coding agent with full access to all tools.

Your job is to implement features, fix bugs, and complete coding tasks autonomously.

## Workflow
1. Read and understand existing code before making changes
2. Make edits using edit_file or write_file
3. Test your changes with bash if appropriate
4. Complete the task fully - no placeholders or TODOs

Current working directory: %s
`, BaseAgentRules, session.Cwd)
	a.wireFinishPolicies(true)
	a.postRun = func(_ context.Context, output string) string {
		if output == "" {
			return "Task complete."
		}
		return output
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewPluginAgent builds an agent from an external definition. The system
// prompt is the shared base rules followed by the definition body; an
// empty tools list means unrestricted.
func NewPluginAgent(def AgentDefinition, provider Provider, registry *Registry, session *Session, opts ...SubAgentOption) *SubAgent {
	a := &SubAgent{
		id:          ShortID(),
		typ:         AgentPlugin,
		description: def.Description,
		allowed:     def.Tools,
		maxTurns:    pluginMaxTurns,
		provider:    provider,
		registry:    registry,
		session:     session,
		prompt:      BaseAgentRules + "\n---\n\n" + def.Prompt,
	}
	a.wireFinishPolicies(a.hasTaskTools())
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// wireFinishPolicies attaches modification tracking, the completion gate,
// the syntax finish hook, and (when the agent can manage tasks) the
// pending-task reminder.
func (a *SubAgent) wireFinishPolicies(withTaskReminder bool) {
	a.mods = NewModSet()
	a.intercept = CompletionGate(a.mods, ValidateFiles)
	a.hooks = []FinishHook{NewSyntaxFinishHook(a.mods, ValidateFiles)}
	if withTaskReminder {
		a.hooks = append(a.hooks, NewPendingTaskHook(a.session.Tasks))
	}
}

// hasTaskTools reports whether the agent's allow-list grants task
// management (an empty list grants everything).
func (a *SubAgent) hasTaskTools() bool {
	if len(a.allowed) == 0 {
		return true
	}
	for _, t := range a.allowed {
		switch strings.ToLower(t) {
		case "task_list", "task_update":
			return true
		}
	}
	return false
}

// --- plan agent ---

var (
	planOverviewRe = regexp.MustCompile(`(?s)## Overview\s*\n(.*?)(?:\n## |\z)`)
	planFilesRe    = regexp.MustCompile(`(?s)## Files to Modify\s*\n(.*?)(?:\n## |\z)`)
)

// NewPlanAgent builds the planning agent for the given prompt. It may
// read, search and call write_file; its prompt directs it to write only
// its plan file, but the write path is not restricted. Checkbox tasks are
// created from the content of every write_file call as it happens.
func NewPlanAgent(taskPrompt string, provider Provider, registry *Registry, session *Session, opts ...SubAgentOption) *SubAgent {
	planFile := filepath.Join(session.Plan.PlansDir(), PlanFileName(taskPrompt, time.Now()))

	a := &SubAgent{
		id:          ShortID(),
		typ:         AgentPlan,
		description: "Software architect agent for designing implementation plans",
		allowed:     []string{"read_file", "glob", "grep", "write_file"},
		maxTurns:    planMaxTurns,
		provider:    provider,
		registry:    registry,
		session:     session,
	}
	a.prompt = fmt.Sprintf(`%s

You are a software architect planning agent. Your job is to create detailed implementation plans.

## Process
1. First, explore the codebase to understand existing patterns and architecture
2. Design a clear implementation approach
3. Create a structured plan with specific tasks

## Output Requirements
You MUST create a plan file at: %s

The plan file should follow this EXACT format:

`+"```markdown"+`
# [Plan Title]

## Overview
[1-2 paragraph summary of the approach]

## Files to Modify
- `+"`path/to/file1.go`"+` - [what changes]
- `+"`path/to/file2.go`"+` - [what changes]

## Implementation Tasks

- [ ] Task 1: [Clear, actionable task description]
- [ ] Task 2: [Clear, actionable task description]
- [ ] Task 3: [Clear, actionable task description]

## Testing Plan
[How to verify the implementation]

## Notes
[Any important considerations, edge cases, or warnings]
`+"```"+`

IMPORTANT:
- Use `+"`- [ ]`"+` for uncompleted tasks (checkbox format)
- Each task should be specific and actionable
- Tasks should be in logical order of execution
- Write the plan file using write_file tool - do NOT output the plan content to chat
- Keep your chat responses brief - the plan file is the deliverable

Current working directory: %s
`, BaseAgentRules, planFile, session.Cwd)

	// Extract checkbox tasks from every plan write as it happens, so the
	// task list exists even if the agent never reaches a clean finish.
	var created []string
	createFrom := func(content string) {
		for _, subject := range ExtractTaskSubjects(content) {
			if slices.Contains(created, subject) {
				continue
			}
			session.Tasks.Create(subject, "Plan task: "+subject, "Working on: "+truncateStr(subject, 40))
			created = append(created, subject)
		}
	}
	a.onToolCall = func(tc ToolCall) {
		if tc.Name == "write_file" {
			createFrom(StringArg(tc.Args, "content"))
		}
	}
	a.postRun = func(_ context.Context, output string) string {
		return planSummary(planFile, created, session.Tasks)
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// planSummary assembles the plan agent's hand-off output: the Overview
// and Files to Modify sections from the plan file, one @@PLAN_TASK@@
// marker line per created task, and the plan file path.
func planSummary(planFile string, created []string, tasks *TaskStore) string {
	var parts []string

	if data, err := os.ReadFile(planFile); err == nil {
		content := string(data)
		if m := planOverviewRe.FindStringSubmatch(content); m != nil {
			parts = append(parts, "## Overview\n", strings.TrimSpace(m[1]), "")
		}
		if m := planFilesRe.FindStringSubmatch(content); m != nil {
			parts = append(parts, "## Files to Modify\n", strings.TrimSpace(m[1]), "")
		}
	}

	if len(created) > 0 {
		parts = append(parts, "## Tasks\n")
		for _, subject := range created {
			if t, ok := tasks.FindBySubject(subject); ok {
				parts = append(parts, fmt.Sprintf("@@PLAN_TASK@@ %s|%s|%s", t.ID, t.Status, t.Subject))
			}
		}
	}

	if _, err := os.Stat(planFile); err == nil {
		parts = append(parts, fmt.Sprintf("\nFull plan: `%s`", planFile))
	}

	if len(parts) == 0 {
		return "Planning complete."
	}
	return strings.Join(parts, "\n")
}
