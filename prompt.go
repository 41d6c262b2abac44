package grokcode

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// systemPromptTemplate is the foreground system prompt. %s is the working
// directory.
const systemPromptTemplate = `You are grokCode, an AI coding assistant. You are a senior software engineer.

## Response Style
- Be direct and precise. No filler phrases or excessive enthusiasm.
- Structure complex responses with headings and bullet points.
- Provide complete, working code - never use placeholders.
- Reference file paths when discussing code: ` + "`path/file.go:42`" + `
- Explain reasoning for architectural decisions briefly.

## Tools

### File Operations
- ` + "`read_file`" + `: Read file contents (always read before editing)
- ` + "`write_file`" + `: Create or overwrite files
- ` + "`edit_file`" + `: Edit via exact string replacement (provide unique context)
- ` + "`glob`" + `: Find files by pattern
- ` + "`grep`" + `: Search contents with regex

### Execution
- ` + "`bash`" + `: Run shell commands (avoid destructive operations)

### Agents
- ` + "`task`" + `: Spawn sub-agents (explore, plan, general)
- ` + "`task_output`" + `: Get agent results

### Tasks
- ` + "`task_create`, `task_update`, `task_list`, `task_get`" + `: Track work

### Planning
- ` + "`enter_plan_mode`" + `: Plan complex implementations before coding
- ` + "`write_plan`" + `: Document your approach
- ` + "`exit_plan_mode`" + `: Request user approval
- ` + "`ask_user`" + `: Clarify requirements

### Web
- ` + "`web_fetch`" + `: Fetch URLs
- ` + "`web_search`" + `: Search the web

## Guidelines
1. Read files before editing
2. Make edits with unique context strings
3. Use plan mode for complex tasks
4. Use agents for codebase exploration
5. Track multi-step work with tasks

## Plan Task Workflow
When there are active plan tasks, you MUST mark them complete as you implement them:
1. Before starting work, check for pending plan tasks that match the request
2. As you complete each task, use ` + "`task_update`" + ` to set status to "completed"
3. This keeps the plan synchronized with actual progress

Working directory: %s
`

// AgentInfo is the name/description pair surfaced in the available-agents
// prompt section.
type AgentInfo struct {
	Name        string
	Description string
}

// PromptAssembler builds the foreground system prompt: the template, an
// optional available-agents section, project configuration files from
// .grok/, and the active-task section. Reassembled on every turn.
type PromptAssembler struct {
	session *Session
	agents  func() []AgentInfo
}

// NewPromptAssembler creates an assembler. agents may be nil when no
// plugin agents are available.
func NewPromptAssembler(session *Session, agents func() []AgentInfo) *PromptAssembler {
	return &PromptAssembler{session: session, agents: agents}
}

// Assemble returns the full system prompt for the current session state.
func (a *PromptAssembler) Assemble() string {
	var b strings.Builder
	fmt.Fprintf(&b, systemPromptTemplate, a.session.Cwd)

	if a.agents != nil {
		if infos := a.agents(); len(infos) > 0 {
			b.WriteString("\n## Available Project Agents\nSpawn these with the `task` tool:\n")
			for _, ag := range infos {
				fmt.Fprintf(&b, "- `%s`: %s\n", ag.Name, ag.Description)
			}
		}
	}

	grokMD := a.projectFile("GROK.md")
	workflowMD := a.projectFile("WORKFLOW.md")
	if grokMD != "" || workflowMD != "" {
		b.WriteString("\n---\n\n## Project Configuration\n")
	}
	if grokMD != "" {
		fmt.Fprintf(&b, "\n### Project Context (.grok/GROK.md)\n%s\n", grokMD)
	}
	if workflowMD != "" {
		fmt.Fprintf(&b, "\n### Workflow Instructions (.grok/WORKFLOW.md)\n%s\n", workflowMD)
	}

	if tasks := a.session.Tasks.Active(); len(tasks) > 0 {
		b.WriteString("\n---\n\n## Active Plan Tasks\nMark these complete with `task_update` as you implement them:\n\n")
		for _, t := range tasks {
			icon := "☐"
			if t.Status == TaskInProgress {
				icon = "◐"
			}
			fmt.Fprintf(&b, "- %s Task #%s: %s\n", icon, t.ID, t.Subject)
		}
	}

	return b.String()
}

// LoadedProjectFiles lists the .grok configuration files present, for the
// welcome banner.
func (a *PromptAssembler) LoadedProjectFiles() []string {
	var out []string
	for _, name := range []string{"GROK.md", "WORKFLOW.md"} {
		if a.projectFile(name) != "" {
			out = append(out, filepath.Join(GrokDirName, name))
		}
	}
	return out
}

// projectFile reads a .grok/<name> file, returning "" when absent or
// unreadable.
func (a *PromptAssembler) projectFile(name string) string {
	data, err := os.ReadFile(filepath.Join(a.session.GrokDir(), name))
	if err != nil {
		return ""
	}
	return string(data)
}
