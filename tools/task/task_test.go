package task

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	grokcode "github.com/nevindra/grokcode"
)

func newTestTool(t *testing.T) (*Tool, *grokcode.Session) {
	t.Helper()
	session := grokcode.NewSession(t.TempDir())
	return New(session), session
}

func exec(t *testing.T, tool *Tool, name, args string) grokcode.ToolResult {
	t.Helper()
	res, err := tool.Execute(context.Background(), name, json.RawMessage(args))
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return res
}

func TestTaskCreateAndGet(t *testing.T) {
	tool, _ := newTestTool(t)

	res := exec(t, tool, "task_create", `{"subject": "Fix login bug", "description": "details"}`)
	if res.Content != "Task #1 created: Fix login bug" {
		t.Errorf("got %+v", res)
	}

	res = exec(t, tool, "task_get", `{"task_id": "1"}`)
	for _, want := range []string{"Task #1: Fix login bug", "Status: pending", "Description: details"} {
		if !strings.Contains(res.Content, want) {
			t.Errorf("missing %q in:\n%s", want, res.Content)
		}
	}
}

func TestTaskUpdateLifecycle(t *testing.T) {
	tool, _ := newTestTool(t)
	exec(t, tool, "task_create", `{"subject": "Work", "description": "d"}`)

	res := exec(t, tool, "task_update", `{"task_id": "1", "status": "in_progress"}`)
	if !strings.Contains(res.Content, "[in_progress]") {
		t.Errorf("got %+v", res)
	}

	// Completing twice succeeds both times.
	for i := 0; i < 2; i++ {
		res = exec(t, tool, "task_update", `{"task_id": "1", "status": "completed"}`)
		if res.Error != "" || !strings.Contains(res.Content, "[completed]") {
			t.Errorf("attempt %d: got %+v", i, res)
		}
	}
}

func TestTaskDeleteHidesFromList(t *testing.T) {
	tool, _ := newTestTool(t)
	exec(t, tool, "task_create", `{"subject": "Doomed", "description": "d"}`)

	res := exec(t, tool, "task_update", `{"task_id": "1", "status": "deleted"}`)
	if res.Content != "Task #1 deleted" {
		t.Errorf("got %+v", res)
	}
	res = exec(t, tool, "task_list", `{}`)
	if res.Content != "No tasks found" {
		t.Errorf("got %+v", res)
	}
	res = exec(t, tool, "task_get", `{"task_id": "1"}`)
	if !strings.Contains(res.Error, "Task #1 not found") {
		t.Errorf("got %+v", res)
	}
}

func TestTaskListFormatting(t *testing.T) {
	tool, _ := newTestTool(t)
	exec(t, tool, "task_create", `{"subject": "First", "description": "d"}`)
	exec(t, tool, "task_create", `{"subject": "Second", "description": "d"}`)
	exec(t, tool, "task_update", `{"task_id": "2", "add_blocked_by": ["1"]}`)

	res := exec(t, tool, "task_list", `{}`)
	lines := strings.Split(res.Content, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 rows:\n%s", res.Content)
	}
	if !strings.Contains(lines[0], "#1") || !strings.Contains(lines[0], "[pending] First") {
		t.Errorf("row 1: %q", lines[0])
	}
	if !strings.Contains(lines[1], "blocked by: 1") {
		t.Errorf("row 2: %q", lines[1])
	}
}

func TestTaskUpdateUnknown(t *testing.T) {
	tool, _ := newTestTool(t)
	res := exec(t, tool, "task_update", `{"task_id": "7", "status": "completed"}`)
	if !strings.Contains(res.Error, "Task #7 not found") {
		t.Errorf("got %+v", res)
	}
}
