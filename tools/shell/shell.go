// Package shell provides the bash and bash_output tools: foreground
// command execution with combined output, and background execution
// tracked in the session's registry. A short refusal list rejects
// always-fatal commands before any gating; everything else flows through
// the registry-level permission gate.
package shell

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	grokcode "github.com/nevindra/grokcode"
)

const (
	defaultTimeout = 120 * time.Second
	maxOutputBytes = 50000

	// backgroundWait is how long bash_output blocks by default when the
	// task is still running.
	backgroundWait = 300 * time.Second
)

// refusedPatterns are always-fatal command substrings rejected outright,
// regardless of permission mode.
var refusedPatterns = []string{
	"rm -rf /",
	"rm -rf /*",
	":(){:|:&};:",
	"mkfs.",
	"dd if=/dev/zero",
	"> /dev/sda",
}

// RefusalInterceptor rejects always-fatal bash commands before any
// permission gating. Registered ahead of the permission gate so a
// refused command never reaches an approval prompt.
func RefusalInterceptor() grokcode.Interceptor {
	return func(_ context.Context, tc grokcode.ToolCall) (string, bool) {
		if tc.Name != "bash" {
			return "", false
		}
		lower := strings.ToLower(grokcode.StringArg(tc.Args, "command"))
		for _, pattern := range refusedPatterns {
			if strings.Contains(lower, pattern) {
				return "Error: Refusing to execute potentially dangerous command", true
			}
		}
		return "", false
	}
}

// Runner executes one shell command to completion.
// hostRunner runs on the host; DockerRunner runs in a container.
type Runner interface {
	Run(ctx context.Context, command, dir string, timeout time.Duration) RunResult
}

// RunResult is the raw outcome of a command run.
type RunResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
	Err      error // setup/launch failure, not a non-zero exit
}

// hostRunner executes commands via bash -c in the session cwd with the
// inherited environment.
type hostRunner struct{}

func (hostRunner) Run(ctx context.Context, command, dir string, timeout time.Duration) RunResult {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "bash", "-c", command)
	cmd.Dir = dir
	cmd.Env = os.Environ()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := RunResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if ctx.Err() == context.DeadlineExceeded {
		res.TimedOut = true
		return res
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.Err = err
		}
	}
	return res
}

// Tool implements bash and bash_output against one session.
type Tool struct {
	session *grokcode.Session
	runner  Runner
}

// Option configures the shell tool.
type Option func(*Tool)

// WithRunner substitutes the command runner (Docker sandbox, tests).
func WithRunner(r Runner) Option {
	return func(t *Tool) { t.runner = r }
}

// New creates the shell tool bound to session.
func New(session *grokcode.Session, opts ...Option) *Tool {
	t := &Tool{session: session, runner: hostRunner{}}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tool) Definitions() []grokcode.ToolDefinition {
	return []grokcode.ToolDefinition{
		{
			Name:        "bash",
			Description: "Execute a bash command and return its output. Use for running scripts, git commands, package managers, etc.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"command": {"type": "string", "description": "The bash command to execute"},
					"timeout": {"type": "integer", "description": "Timeout in seconds. Default is 120."},
					"run_in_background": {"type": "boolean", "description": "Run command in background and return task ID immediately"}
				},
				"required": ["command"]
			}`),
		},
		{
			Name:        "bash_output",
			Description: "Get output from a background bash command by its task ID",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"task_id": {"type": "string", "description": "The task ID from run_in_background"},
					"wait": {"type": "boolean", "description": "Wait for completion if not done. Default true."}
				},
				"required": ["task_id"]
			}`),
		},
	}
}

func (t *Tool) Execute(ctx context.Context, name string, args json.RawMessage) (grokcode.ToolResult, error) {
	switch name {
	case "bash":
		var params struct {
			Command         string `json:"command"`
			Timeout         int    `json:"timeout"`
			RunInBackground bool   `json:"run_in_background"`
		}
		if err := json.Unmarshal(args, &params); err != nil {
			return grokcode.ToolResult{Error: "invalid args: " + err.Error()}, nil
		}
		return t.bash(ctx, params.Command, params.Timeout, params.RunInBackground)

	case "bash_output":
		var params struct {
			TaskID string `json:"task_id"`
			Wait   *bool  `json:"wait"`
		}
		if err := json.Unmarshal(args, &params); err != nil {
			return grokcode.ToolResult{Error: "invalid args: " + err.Error()}, nil
		}
		wait := true
		if params.Wait != nil {
			wait = *params.Wait
		}
		return t.bashOutput(params.TaskID, wait)
	}
	return grokcode.ToolResult{Error: "unknown shell tool: " + name}, nil
}

// bash runs a command in the foreground, or registers it as a background
// task and returns its id immediately.
func (t *Tool) bash(ctx context.Context, command string, timeoutSecs int, background bool) (grokcode.ToolResult, error) {
	lower := strings.ToLower(command)
	for _, pattern := range refusedPatterns {
		if strings.Contains(lower, pattern) {
			return grokcode.ToolResult{Error: "Refusing to execute potentially dangerous command"}, nil
		}
	}

	timeout := defaultTimeout
	if timeoutSecs > 0 {
		timeout = time.Duration(timeoutSecs) * time.Second
	}

	if background {
		return t.runBackground(command, timeout), nil
	}

	res := t.runner.Run(ctx, command, t.session.Cwd, timeout)
	if res.TimedOut {
		return grokcode.ToolResult{Error: fmt.Sprintf("Command timed out after %d seconds", int(timeout.Seconds()))}, nil
	}
	if res.Err != nil {
		return grokcode.ToolResult{Error: fmt.Sprintf("executing command: %v", res.Err)}, nil
	}
	return grokcode.ToolResult{Content: combineOutput(res)}, nil
}

// combineOutput assembles stdout, a STDERR: section when non-empty, and
// an Exit code line when non-zero, truncated to maxOutputBytes.
func combineOutput(res RunResult) string {
	var parts []string
	if strings.TrimSpace(res.Stdout) != "" {
		parts = append(parts, res.Stdout)
	}
	if strings.TrimSpace(res.Stderr) != "" {
		parts = append(parts, "STDERR:\n"+res.Stderr)
	}
	if res.ExitCode != 0 {
		parts = append(parts, fmt.Sprintf("\nExit code: %d", res.ExitCode))
	}
	out := strings.Join(parts, "\n")
	if out == "" {
		out = "(no output)"
	}
	if len(out) > maxOutputBytes {
		out = out[:maxOutputBytes] + fmt.Sprintf("\n\n... (truncated, %d total characters)", len(out))
	}
	return out
}

// runBackground registers the command in the session registry and
// launches it detached. The task self-timeouts on its own timer and is
// never removed from the registry.
func (t *Tool) runBackground(command string, timeout time.Duration) grokcode.ToolResult {
	task := t.session.Bash.Start(command)

	go func() {
		res := t.runner.Run(context.Background(), command, t.session.Cwd, timeout)
		switch {
		case res.TimedOut:
			t.session.Bash.Finish(task, fmt.Sprintf("Error: Command timed out after %d seconds", int(timeout.Seconds())), nil)
		case res.Err != nil:
			t.session.Bash.Finish(task, "Error: "+res.Err.Error(), nil)
		default:
			exitCode := res.ExitCode
			t.session.Bash.Finish(task, combineOutput(RunResult{Stdout: res.Stdout, Stderr: res.Stderr}), &exitCode)
		}
	}()

	return grokcode.ToolResult{Content: fmt.Sprintf("Background task started with ID: %s\nUse bash_output tool to check status.", task.ID)}
}

// bashOutput reports a background task's status and output, optionally
// waiting for completion.
func (t *Tool) bashOutput(taskID string, wait bool) (grokcode.ToolResult, error) {
	task := t.session.Bash.Get(taskID)
	if task == nil {
		return grokcode.ToolResult{Error: fmt.Sprintf("No background task found with ID %s", taskID)}, nil
	}

	snap := t.session.Bash.Snapshot(task)
	if !snap.Completed && wait {
		select {
		case <-task.Done():
		case <-time.After(backgroundWait):
			return grokcode.ToolResult{Content: fmt.Sprintf("Task %s is still running after 5 minutes", taskID)}, nil
		}
		snap = t.session.Bash.Snapshot(task)
	}

	if !snap.Completed {
		return grokcode.ToolResult{Content: fmt.Sprintf("Task %s is still running...", taskID)}, nil
	}

	status := "Completed"
	if snap.ExitCode != nil {
		status = fmt.Sprintf("Exit code: %d", *snap.ExitCode)
	}
	return grokcode.ToolResult{Content: fmt.Sprintf("Task %s - %s\n\n%s", taskID, status, snap.Output)}, nil
}
