package grokcode

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// ModSet tracks the files an agent has successfully modified. The
// completion gate and the syntax finish hook consult it.
type ModSet struct {
	mu    sync.Mutex
	paths map[string]struct{}
}

// NewModSet creates an empty set.
func NewModSet() *ModSet {
	return &ModSet{paths: make(map[string]struct{})}
}

// Record inspects a completed tool call and stores the target path when
// it was a successful write_file or edit_file.
func (m *ModSet) Record(tc ToolCall, observation string) {
	if tc.Name != "write_file" && tc.Name != "edit_file" {
		return
	}
	if !strings.HasPrefix(observation, "Successfully") {
		return
	}
	path := StringArg(tc.Args, "file_path")
	if path == "" {
		return
	}
	m.mu.Lock()
	m.paths[path] = struct{}{}
	m.mu.Unlock()
}

// Paths returns the modified paths.
func (m *ModSet) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.paths))
	for p := range m.paths {
		out = append(out, p)
	}
	return out
}

// Empty reports whether nothing has been modified.
func (m *ModSet) Empty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.paths) == 0
}

// --- completion gate ---

// CompletionGate intercepts task_update status=completed calls BEFORE
// execution: with no modifications recorded the update is refused, and
// with modifications the changed files must pass syntax validation first.
func CompletionGate(mods *ModSet, validate SyntaxValidator) Interceptor {
	return func(ctx context.Context, tc ToolCall) (string, bool) {
		if tc.Name != "task_update" || StringArg(tc.Args, "status") != string(TaskCompleted) {
			return "", false
		}
		if mods.Empty() {
			return "Error: Cannot mark task complete - no files have been modified. Use Edit or Write tools to make changes first.", true
		}
		ok, errs := validate(ctx, mods.Paths())
		if !ok {
			return "Error: Cannot mark task complete - files have syntax errors that must be fixed first:\n\n" +
				strings.Join(errs, "\n\n") + "\n\nFix the errors and try again.", true
		}
		return "", false
	}
}

// --- finish hooks ---

// maxSyntaxFinishAttempts caps how many consecutive natural-exit attempts
// the syntax hook may block; a persistently broken checker must not trap
// the agent forever.
const maxSyntaxFinishAttempts = 5

// syntaxFinishHook blocks an agent's natural exit while modified files
// have syntax errors, injecting a corrective user message instead.
type syntaxFinishHook struct {
	mods     *ModSet
	validate SyntaxValidator
	attempts int
}

// NewSyntaxFinishHook creates the syntax-validation finish hook.
func NewSyntaxFinishHook(mods *ModSet, validate SyntaxValidator) FinishHook {
	return &syntaxFinishHook{mods: mods, validate: validate}
}

func (h *syntaxFinishHook) AfterFinish(ctx context.Context) (string, bool) {
	if h.mods.Empty() {
		return "", false
	}
	ok, errs := h.validate(ctx, h.mods.Paths())
	if ok {
		h.attempts = 0
		return "", false
	}
	h.attempts++
	if h.attempts >= maxSyntaxFinishAttempts {
		return "", false
	}
	return "STOP - You have syntax errors in your modified files that must be fixed:\n\n" +
		strings.Join(errs, "\n\n") + "\n\nFix these errors before finishing.", true
}

// maxPendingReminders caps how many times the pending-task reminder may
// push the agent back into the loop.
const maxPendingReminders = 3

// pendingTaskHook reminds an agent that stopped with pending or
// in-progress tasks to keep working, listing up to three of them.
type pendingTaskHook struct {
	tasks     *TaskStore
	reminders int
}

// NewPendingTaskHook creates the pending-task reminder hook. Only wire it
// for agents whose allow-list includes the task tools.
func NewPendingTaskHook(tasks *TaskStore) FinishHook {
	return &pendingTaskHook{tasks: tasks}
}

func (h *pendingTaskHook) AfterFinish(ctx context.Context) (string, bool) {
	pending := h.tasks.Active()
	if len(pending) == 0 || h.reminders >= maxPendingReminders {
		return "", false
	}
	h.reminders++
	names := make([]string, 0, 3)
	for _, t := range pending {
		names = append(names, fmt.Sprintf("#%s: %s", t.ID, truncateStr(t.Subject, 30)))
		if len(names) == 3 {
			break
		}
	}
	return fmt.Sprintf("You still have pending tasks: %s. Continue implementing and mark them complete when done.",
		strings.Join(names, ", ")), true
}
