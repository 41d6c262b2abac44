package grokcode

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"
)

// ApprovalMode selects how much the permission gate intercepts.
type ApprovalMode string

const (
	// ModeAuto allows everything except always-dangerous operations.
	ModeAuto ApprovalMode = "auto"
	// ModeApprove requires approval for writes and bash.
	ModeApprove ApprovalMode = "approve"
	// ModeManual requires approval for every tool call.
	ModeManual ApprovalMode = "manual"
)

// CycleMode returns the next mode in the auto → approve → manual cycle.
func CycleMode(m ApprovalMode) ApprovalMode {
	switch m {
	case ModeAuto:
		return ModeApprove
	case ModeApprove:
		return ModeManual
	default:
		return ModeAuto
	}
}

// dangerRule pairs a compiled pattern with the reason shown on match.
type dangerRule struct {
	re     *regexp.Regexp
	reason string
}

func mustRules(pairs [][2]string) []dangerRule {
	rules := make([]dangerRule, len(pairs))
	for i, p := range pairs {
		rules[i] = dangerRule{re: regexp.MustCompile("(?i)" + p[0]), reason: p[1]}
	}
	return rules
}

// dangerousBashRules flag commands that always require approval,
// regardless of mode.
var dangerousBashRules = mustRules([][2]string{
	{`rm\s+-rf?\s+[/~]`, "Recursive delete in root or home directory"},
	{`rm\s+-rf?\s+\*`, "Recursive delete with wildcard"},
	{`rm\s+-rf?\s+\.\.`, "Recursive delete of parent directory"},
	{`sudo\s+rm\b`, "Sudo remove command"},
	{`:\(\)\s*\{`, "Fork bomb pattern"},
	{`mkfs\.`, "Filesystem formatting command"},
	{`dd\s+if=/dev/`, "Raw disk write"},
	{`chmod\s+-R\s+777`, "Recursive chmod 777"},
	{`chown\s+-R\s+root`, "Recursive chown to root"},
	{`git\s+push\s+.*--force`, "Force push to git"},
	{`git\s+reset\s+--hard`, "Hard reset git"},
	{`git\s+clean\s+-fd`, "Clean untracked files"},
	{`drop\s+database`, "Drop database"},
	{`drop\s+table`, "Drop table"},
	{`truncate\s+table`, "Truncate table"},
	{`>\s*/dev/sd[a-z]`, "Write to block device"},
})

// dangerousFileRules flag write/edit targets that always require approval.
var dangerousFileRules = mustRules([][2]string{
	{`^/(etc|sys|proc|dev|boot)/`, "Write to system directory"},
	{`\.ssh/`, "Write to SSH directory"},
	{`\.aws/`, "Write to AWS credentials"},
	{`\.env$`, "Write to environment file"},
	{`credentials`, "Write to credentials file"},
	{`\.pem$`, "Write to PEM key file"},
})

// DangerousBash returns the reason a command is always-dangerous, or "".
// The command is NFKC-normalized first so homoglyph variants of the
// pattern characters still match.
func DangerousBash(command string) string {
	command = norm.NFKC.String(command)
	for _, r := range dangerousBashRules {
		if r.re.MatchString(command) {
			return r.reason
		}
	}
	return ""
}

// DangerousFile returns the reason a target path is always-dangerous, or "".
func DangerousFile(path string) string {
	path = norm.NFKC.String(path)
	for _, r := range dangerousFileRules {
		if r.re.MatchString(path) {
			return r.reason
		}
	}
	return ""
}

// ApprovalKey derives the coarse identity an approval is remembered
// under: the first whitespace-delimited token for bash, the parent
// directory plus "/*" for file writes, and the tool name otherwise.
// Deliberately coarse so one "always" answer covers a class of calls;
// callers must not widen it further.
func ApprovalKey(tool string, args json.RawMessage) string {
	switch tool {
	case "bash":
		cmd := strings.TrimSpace(StringArg(args, "command"))
		if fields := strings.Fields(cmd); len(fields) > 0 {
			return fields[0]
		}
		return "bash"
	case "write_file", "edit_file":
		path := StringArg(args, "file_path")
		if idx := strings.LastIndex(path, "/"); idx >= 0 {
			return path[:idx] + "/*"
		}
		return path
	}
	return tool
}

// permissionsFile is the persisted shape of .grok/permissions.json.
type permissionsFile struct {
	Mode      string              `json:"mode"`
	Approvals map[string][]string `json:"approvals"`
}

// PermissionManager classifies tool calls into allowed / needs-approval /
// dangerous and remembers approvals, session-scoped and persistent.
type PermissionManager struct {
	mu         sync.Mutex
	path       string
	mode       ApprovalMode
	session    map[string]map[string]struct{}
	persistent map[string]map[string]struct{}
}

// NewPermissionManager creates a manager persisting to path, loading any
// existing mode and approvals from it.
func NewPermissionManager(path string) *PermissionManager {
	m := &PermissionManager{
		path:       path,
		mode:       ModeApprove,
		session:    make(map[string]map[string]struct{}),
		persistent: make(map[string]map[string]struct{}),
	}
	m.load()
	return m
}

// Mode returns the current approval mode.
func (m *PermissionManager) Mode() ApprovalMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// SetMode sets the approval mode and persists it.
func (m *PermissionManager) SetMode(mode ApprovalMode) {
	m.mu.Lock()
	m.mode = mode
	m.mu.Unlock()
	m.save()
}

// Check classifies a tool call. Returns:
//   - allowed: the call may proceed without approval
//   - dangerReason: non-empty when an always-dangerous pattern matched
//   - key: the approval key to remember an "always" answer under
func (m *PermissionManager) Check(tool string, args json.RawMessage) (allowed bool, dangerReason, key string) {
	key = ApprovalKey(tool, args)

	switch tool {
	case "bash":
		dangerReason = DangerousBash(StringArg(args, "command"))
	case "write_file", "edit_file":
		dangerReason = DangerousFile(StringArg(args, "file_path"))
	}

	if dangerReason != "" {
		if m.approved(tool, key) {
			return true, "", key
		}
		return false, dangerReason, key
	}

	m.mu.Lock()
	mode := m.mode
	m.mu.Unlock()

	if mode == ModeAuto {
		return true, "", key
	}
	if m.approved(tool, key) {
		return true, "", key
	}
	if mode == ModeApprove {
		switch tool {
		case "write_file", "edit_file", "bash":
			return false, "", key
		}
		return true, "", key
	}
	// Manual mode: everything needs approval.
	return false, "", key
}

func (m *PermissionManager) approved(tool, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range [2]string{key, "*"} {
		if _, ok := m.session[tool][k]; ok {
			return true
		}
		if _, ok := m.persistent[tool][k]; ok {
			return true
		}
	}
	return false
}

// Approve remembers a tool/key combination for this session; with
// persistent it is also written to disk.
func (m *PermissionManager) Approve(tool, key string, persistent bool) {
	m.mu.Lock()
	if m.session[tool] == nil {
		m.session[tool] = make(map[string]struct{})
	}
	m.session[tool][key] = struct{}{}
	if persistent {
		if m.persistent[tool] == nil {
			m.persistent[tool] = make(map[string]struct{})
		}
		m.persistent[tool][key] = struct{}{}
	}
	m.mu.Unlock()
	if persistent {
		m.save()
	}
}

// ApproveAll marks every permission-requiring call for tool as approved
// this session, via the "*" wildcard key.
func (m *PermissionManager) ApproveAll(tool string) {
	m.Approve(tool, "*", false)
}

// Deny forgets a tool/key combination.
func (m *PermissionManager) Deny(tool, key string) {
	m.mu.Lock()
	delete(m.session[tool], key)
	_, wasPersistent := m.persistent[tool][key]
	delete(m.persistent[tool], key)
	m.mu.Unlock()
	if wasPersistent {
		m.save()
	}
}

func (m *PermissionManager) load() {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return
	}
	var pf permissionsFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return
	}
	switch ApprovalMode(pf.Mode) {
	case ModeAuto, ModeApprove, ModeManual:
		m.mode = ApprovalMode(pf.Mode)
	}
	for tool, keys := range pf.Approvals {
		set := make(map[string]struct{}, len(keys))
		for _, k := range keys {
			set[k] = struct{}{}
		}
		m.persistent[tool] = set
	}
}

func (m *PermissionManager) save() {
	m.mu.Lock()
	pf := permissionsFile{
		Mode:      string(m.mode),
		Approvals: make(map[string][]string, len(m.persistent)),
	}
	for tool, keys := range m.persistent {
		list := make([]string, 0, len(keys))
		for k := range keys {
			list = append(list, k)
		}
		sort.Strings(list)
		pf.Approvals[tool] = list
	}
	m.mu.Unlock()

	data, err := json.MarshalIndent(pf, "", "  ")
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return
	}
	_ = os.WriteFile(m.path, data, 0o644)
}
