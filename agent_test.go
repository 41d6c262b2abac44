package grokcode

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestExploreAgentDefaults(t *testing.T) {
	session := newTestSession(t)
	agent := NewExploreAgent(&scriptProvider{}, NewRegistry(), session)

	if agent.Type() != AgentExplore {
		t.Errorf("type %s", agent.Type())
	}
	want := []string{"read_file", "glob", "grep"}
	got := agent.AllowedTools()
	if len(got) != len(want) {
		t.Fatalf("allow-list %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("allow-list %v", got)
		}
	}
}

func TestGeneralAgentUnrestricted(t *testing.T) {
	session := newTestSession(t)
	agent := NewGeneralAgent(&scriptProvider{}, NewRegistry(), session)
	if len(agent.AllowedTools()) != 0 {
		t.Errorf("general agent must be unrestricted, got %v", agent.AllowedTools())
	}
}

func TestPluginAgentEmptyToolsMeansAll(t *testing.T) {
	session := newTestSession(t)
	def := AgentDefinition{Name: "x", Prompt: "p"}
	agent := NewPluginAgent(def, &scriptProvider{}, NewRegistry(), session)
	if len(agent.AllowedTools()) != 0 {
		t.Errorf("empty frontmatter tools must mean unrestricted, got %v", agent.AllowedTools())
	}
}

func TestPlanAgentCreatesTasksFromWrites(t *testing.T) {
	session := newTestSession(t)
	reg := NewRegistry()
	reg.Register(newEchoTool("write_file", "read_file", "glob", "grep"))

	planBody := "# Plan\n\n## Overview\nDo it simply.\n\n## Files to Modify\n- `a.go` - tweak\n\n## Implementation Tasks\n\n- [ ] Task one\n- [ ] Task two\n"
	args, _ := json.Marshal(map[string]string{"file_path": "plan.md", "content": planBody})

	provider := &scriptProvider{responses: []ChatResponse{
		{ToolCalls: []ToolCall{{ID: "tc-1", Name: "write_file", Args: args}}},
		{Content: "plan written"},
	}}

	agent := NewPlanAgent("add retry logic", provider, reg, session)
	result := agent.Run(context.Background(), "add retry logic")
	if !result.Success {
		t.Fatalf("plan agent failed: %s", result.Error)
	}

	// Tasks exist for each checkbox subject.
	for _, subject := range []string{"Task one", "Task two"} {
		if _, ok := session.Tasks.FindBySubject(subject); !ok {
			t.Errorf("task %q not created", subject)
		}
	}

	// The hand-off output carries one marker line per created task.
	if !strings.Contains(result.Output, "@@PLAN_TASK@@ 1|pending|Task one") {
		t.Errorf("marker lines missing:\n%s", result.Output)
	}
	if !strings.Contains(result.Output, "@@PLAN_TASK@@ 2|pending|Task two") {
		t.Errorf("marker lines missing:\n%s", result.Output)
	}
}

func TestSubAgentCancelMidRun(t *testing.T) {
	session := newTestSession(t)
	reg := NewRegistry()
	reg.Register(newEchoTool("read_file"))

	agent := NewExploreAgent(&scriptProvider{responses: []ChatResponse{
		{Content: "looking", ToolCalls: []ToolCall{call("tc", "read_file", `{"file_path": "x"}`)}},
	}}, reg, session)
	agent.SetCancelCheck(func() bool { return true })

	result := agent.Run(context.Background(), "look")
	if result.Success || result.Error != "Agent cancelled" {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestBaseAgentRulesInPrompts(t *testing.T) {
	session := newTestSession(t)
	provider := &scriptProvider{responses: []ChatResponse{{Content: "done"}}}
	agent := NewGeneralAgent(provider, NewRegistry(), session)
	agent.Run(context.Background(), "go")

	sys := provider.requests[0].Messages[0]
	if !strings.Contains(sys.Content, "Base Rules (Always Follow)") {
		t.Error("general agent prompt missing base rules")
	}
	if !strings.Contains(sys.Content, session.Cwd) {
		t.Error("general agent prompt missing cwd")
	}
}
