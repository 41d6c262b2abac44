package toolkit

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	grokcode "github.com/nevindra/grokcode"
)

func execute(reg *grokcode.Registry, name, args string) string {
	return reg.Execute(context.Background(), grokcode.ToolCall{ID: "t", Name: name, Args: json.RawMessage(args)})
}

func TestDefaultRegistryToolSurface(t *testing.T) {
	session := grokcode.NewSession(t.TempDir())
	reg := New(session, Options{})

	for _, name := range []string{
		"read_file", "write_file", "edit_file", "glob", "grep",
		"bash", "bash_output",
		"task_create", "task_update", "task_list", "task_get",
		"enter_plan_mode", "write_plan", "exit_plan_mode",
		"web_fetch", "web_search", "ask_user", "approve_operation",
	} {
		if reg.Get(name) == nil {
			t.Errorf("tool %s not registered", name)
		}
	}
}

func TestRefuserWinsOverGateInAutoMode(t *testing.T) {
	session := grokcode.NewSession(t.TempDir())
	session.Perms.SetMode(grokcode.ModeAuto)
	reg := New(session, Options{})

	// Always-fatal commands are refused outright, not gated.
	obs := execute(reg, "bash", `{"command": "rm -rf /"}`)
	if obs != "Error: Refusing to execute potentially dangerous command" {
		t.Errorf("got %q", obs)
	}

	// Dangerous-but-not-fatal commands hit the gate instead.
	obs = execute(reg, "bash", `{"command": "rm -rf ~/Downloads"}`)
	if !strings.Contains(obs, "Permission required") || !strings.Contains(obs, "root or home directory") {
		t.Errorf("got %q", obs)
	}
}

func TestGateCoversEveryExecutionPath(t *testing.T) {
	session := grokcode.NewSession(t.TempDir())
	reg := New(session, Options{}) // approve mode default

	obs := execute(reg, "bash", `{"command": "echo hi"}`)
	if !strings.Contains(obs, "Permission required") {
		t.Errorf("bash must be gated in approve mode, got %q", obs)
	}

	// After an approval the same class of call executes.
	session.Perms.Approve("bash", "echo", false)
	obs = execute(reg, "bash", `{"command": "echo hi"}`)
	if !strings.Contains(obs, "hi") {
		t.Errorf("approved command must run, got %q", obs)
	}
}

func TestApproveOperationToolUnlocksCalls(t *testing.T) {
	session := grokcode.NewSession(t.TempDir())
	reg := New(session, Options{})

	obs := execute(reg, "approve_operation", `{"tool": "bash", "pattern": "git"}`)
	if !strings.Contains(obs, "Approved pattern for 'bash' tool: git") {
		t.Errorf("got %q", obs)
	}
	obs = execute(reg, "bash", `{"command": "git status"}`)
	if strings.Contains(obs, "Permission required") {
		t.Errorf("approved pattern still gated: %q", obs)
	}
}
