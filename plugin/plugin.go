// Package plugin loads agent, command, skill and hook definitions from
// markdown files with YAML frontmatter, discovered under .grok/plugins/
// and .grok/agents/. The core consumes these as immutable records.
package plugin

import "path/filepath"

// Agent is an agent definition from a markdown file.
type Agent struct {
	Name        string
	Description string
	Prompt      string
	Tools       []string
	Model       string
	Color       string
	Plugin      string
	FilePath    string
}

// FullName returns the plugin-qualified name ("plugin:name"), or the
// bare name when Plugin is empty. Standalone agents loaded from an
// agents directory carry Plugin "local" and so are qualified too.
func (a Agent) FullName() string {
	if a.Plugin != "" {
		return a.Plugin + ":" + a.Name
	}
	return a.Name
}

// Command is a slash-command definition from a markdown file.
type Command struct {
	Name         string
	Description  string
	Prompt       string
	ArgumentHint string
	Plugin       string
	FilePath     string
}

// FullName returns the plugin-qualified command name.
func (c Command) FullName() string {
	if c.Plugin != "" {
		return c.Plugin + ":" + c.Name
	}
	return c.Name
}

// Skill is an auto-invoked command with trigger phrases.
type Skill struct {
	Name        string
	Description string
	Prompt      string
	Triggers    []string
	Plugin      string
	FilePath    string
}

// Hook is an event-bound script. The event is derived from the file stem
// (pretooluse.py → PreToolUse).
type Hook struct {
	Name     string
	Event    string
	Script   string
	Plugin   string
	FilePath string
}

// Plugin is one loaded plugin directory.
type Plugin struct {
	Name        string
	Version     string
	Description string
	Path        string
	Agents      []Agent
	Commands    []Command
	Skills      []Skill
	Hooks       []Hook
}

// hookEvents maps hook file stems to event names.
var hookEvents = map[string]string{
	"pretooluse":       "PreToolUse",
	"posttooluse":      "PostToolUse",
	"sessionstart":     "SessionStart",
	"stop":             "Stop",
	"userpromptsubmit": "UserPromptSubmit",
}

// hookEvent resolves a hook script path to its event name, falling back
// to the raw stem for unknown events.
func hookEvent(path string) string {
	stem := filepath.Base(path)
	stem = stem[:len(stem)-len(filepath.Ext(stem))]
	if event, ok := hookEvents[normalizeStem(stem)]; ok {
		return event
	}
	return stem
}

func normalizeStem(stem string) string {
	out := make([]byte, 0, len(stem))
	for i := 0; i < len(stem); i++ {
		c := stem[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		if c != '_' && c != '-' {
			out = append(out, c)
		}
	}
	return string(out)
}
