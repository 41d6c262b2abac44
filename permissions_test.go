package grokcode

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestPerms(t *testing.T) *PermissionManager {
	t.Helper()
	return NewPermissionManager(filepath.Join(t.TempDir(), "permissions.json"))
}

func TestDangerousBashClassifier(t *testing.T) {
	cases := []struct {
		command string
		want    string
	}{
		{"rm -rf ~/Downloads", "Recursive delete in root or home directory"},
		{"rm -rf /var", "Recursive delete in root or home directory"},
		{"sudo rm file", "Sudo remove command"},
		{"mkfs.ext4 /dev/sdb1", "Filesystem formatting command"},
		{"git push origin main --force", "Force push to git"},
		{"git reset --hard HEAD~3", "Hard reset git"},
		{"psql -c 'DROP DATABASE prod'", "Drop database"},
		{"echo hi > /dev/sda", "Write to block device"},
		{"ls -la", ""},
		{"git status", ""},
		{"rm file.txt", ""},
	}
	for _, c := range cases {
		if got := DangerousBash(c.command); got != c.want {
			t.Errorf("DangerousBash(%q) = %q, want %q", c.command, got, c.want)
		}
	}
}

func TestDangerousFileClassifier(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"/etc/passwd", true},
		{"/home/me/.ssh/id_rsa", true},
		{"deploy/.env", true},
		{"certs/server.pem", true},
		{"src/main.go", false},
	}
	for _, c := range cases {
		if got := DangerousFile(c.path) != ""; got != c.want {
			t.Errorf("DangerousFile(%q) dangerous=%v, want %v", c.path, got, c.want)
		}
	}
}

func TestApprovalKeyDerivation(t *testing.T) {
	cases := []struct {
		tool string
		args string
		want string
	}{
		{"bash", `{"command": "git push origin"}`, "git"},
		{"bash", `{"command": "  npm install  "}`, "npm"},
		{"bash", `{"command": ""}`, "bash"},
		{"write_file", `{"file_path": "src/pkg/main.go"}`, "src/pkg/*"},
		{"edit_file", `{"file_path": "main.go"}`, "main.go"},
		{"web_fetch", `{"url": "https://x"}`, "web_fetch"},
	}
	for _, c := range cases {
		if got := ApprovalKey(c.tool, json.RawMessage(c.args)); got != c.want {
			t.Errorf("ApprovalKey(%s, %s) = %q, want %q", c.tool, c.args, got, c.want)
		}
	}
}

func TestCheckModes(t *testing.T) {
	m := newTestPerms(t)

	// Approve mode (default): writes and bash need approval, reads don't.
	if allowed, _, _ := m.Check("bash", json.RawMessage(`{"command": "ls"}`)); allowed {
		t.Error("approve mode must gate bash")
	}
	if allowed, _, _ := m.Check("read_file", json.RawMessage(`{"file_path": "x"}`)); !allowed {
		t.Error("approve mode must not gate reads")
	}

	// Auto mode: everything but dangerous passes.
	m.SetMode(ModeAuto)
	if allowed, _, _ := m.Check("bash", json.RawMessage(`{"command": "ls"}`)); !allowed {
		t.Error("auto mode must allow plain bash")
	}
	allowed, reason, _ := m.Check("bash", json.RawMessage(`{"command": "rm -rf ~/Downloads"}`))
	if allowed || !strings.Contains(reason, "root or home directory") {
		t.Errorf("dangerous command must need approval in auto mode, got allowed=%v reason=%q", allowed, reason)
	}

	// Manual mode: everything needs approval.
	m.SetMode(ModeManual)
	if allowed, _, _ := m.Check("read_file", json.RawMessage(`{"file_path": "x"}`)); allowed {
		t.Error("manual mode must gate everything")
	}
}

func TestApprovalShortCircuitsGate(t *testing.T) {
	m := newTestPerms(t)

	args := json.RawMessage(`{"command": "git push"}`)
	_, _, key := m.Check("bash", args)
	m.Approve("bash", key, false)

	if allowed, _, _ := m.Check("bash", args); !allowed {
		t.Error("approved key must pass the gate")
	}
	// A different first token is a different key.
	if allowed, _, _ := m.Check("bash", json.RawMessage(`{"command": "npm install"}`)); allowed {
		t.Error("approval must not widen beyond its key")
	}
}

func TestDangerousApprovalIsPerKey(t *testing.T) {
	m := newTestPerms(t)
	m.SetMode(ModeAuto)

	args := json.RawMessage(`{"command": "git push --force"}`)
	allowed, reason, key := m.Check("bash", args)
	if allowed || reason == "" {
		t.Fatal("force push must need approval")
	}
	m.Approve("bash", key, false)
	if allowed, _, _ := m.Check("bash", args); !allowed {
		t.Error("approved dangerous key must pass")
	}
}

func TestApproveAllWildcard(t *testing.T) {
	m := newTestPerms(t)
	m.ApproveAll("bash")
	if allowed, _, _ := m.Check("bash", json.RawMessage(`{"command": "ls"}`)); !allowed {
		t.Error("approve-all must cover any key")
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "permissions.json")

	first := NewPermissionManager(path)
	first.SetMode(ModeManual)
	first.Approve("bash", "git", true)

	// A fresh manager loads the persisted mode and approvals.
	second := NewPermissionManager(path)
	if second.Mode() != ModeManual {
		t.Errorf("mode not persisted, got %s", second.Mode())
	}
	if allowed, _, _ := second.Check("bash", json.RawMessage(`{"command": "git status"}`)); !allowed {
		t.Error("persistent approval not loaded")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var pf struct {
		Mode      string              `json:"mode"`
		Approvals map[string][]string `json:"approvals"`
	}
	if err := json.Unmarshal(data, &pf); err != nil {
		t.Fatalf("permissions file not valid JSON: %v", err)
	}
	if pf.Mode != "manual" || len(pf.Approvals["bash"]) != 1 {
		t.Errorf("unexpected file shape: %+v", pf)
	}
}

func TestPermissionInterceptorWithoutHandler(t *testing.T) {
	session := newTestSession(t)

	obs, handled := PermissionInterceptor(session, nil)(t.Context(), call("1", "bash", `{"command": "ls"}`))
	if !handled {
		t.Fatal("approve-mode bash must be intercepted")
	}
	if !strings.Contains(obs, "Permission required") || !strings.Contains(obs, "approve_operation") {
		t.Errorf("unexpected observation: %q", obs)
	}
}

func TestPermissionInterceptorHandlerDecisions(t *testing.T) {
	cases := []struct {
		answer  string
		handled bool
	}{
		{"yes", false},
		{"always", false},
		{"no", true},
	}
	for _, c := range cases {
		session := newTestSession(t)
		handler := InputHandlerFunc(func(_ context.Context, _ InputRequest) (InputResponse, error) {
			return InputResponse{Value: c.answer}, nil
		})
		_, handled := PermissionInterceptor(session, handler)(t.Context(), call("1", "bash", `{"command": "ls"}`))
		if handled != c.handled {
			t.Errorf("answer %q: handled=%v, want %v", c.answer, handled, c.handled)
		}
	}
}
