package plugin

import "strings"

// Registry is the aggregate read-only lookup across loaded plugins.
type Registry struct {
	plugins  []Plugin
	agents   map[string]Agent
	commands map[string]Command
}

// NewRegistry builds the lookup maps. Bare names resolve across all
// plugins (last loaded wins); plugin-qualified names are unambiguous.
func NewRegistry(plugins []Plugin) *Registry {
	r := &Registry{
		plugins:  plugins,
		agents:   make(map[string]Agent),
		commands: make(map[string]Command),
	}
	for _, p := range plugins {
		for _, a := range p.Agents {
			r.agents[strings.ToLower(a.Name)] = a
			r.agents[strings.ToLower(a.FullName())] = a
		}
		for _, c := range p.Commands {
			r.commands[strings.ToLower(c.Name)] = c
			r.commands[strings.ToLower(c.FullName())] = c
		}
	}
	return r
}

// Plugins returns the loaded plugins.
func (r *Registry) Plugins() []Plugin { return r.plugins }

// Agent resolves an agent by bare or plugin-qualified name.
func (r *Registry) Agent(name string) (Agent, bool) {
	a, ok := r.agents[strings.ToLower(name)]
	return a, ok
}

// Command resolves a command by bare or plugin-qualified name.
func (r *Registry) Command(name string) (Command, bool) {
	c, ok := r.commands[strings.ToLower(name)]
	return c, ok
}

// Agents lists all agents across plugins.
func (r *Registry) Agents() []Agent {
	var out []Agent
	for _, p := range r.plugins {
		out = append(out, p.Agents...)
	}
	return out
}

// Commands lists all commands across plugins.
func (r *Registry) Commands() []Command {
	var out []Command
	for _, p := range r.plugins {
		out = append(out, p.Commands...)
	}
	return out
}

// SkillsMatching returns skills whose trigger phrases appear in input
// (case-insensitive substring match).
func (r *Registry) SkillsMatching(input string) []Skill {
	lower := strings.ToLower(input)
	var out []Skill
	for _, p := range r.plugins {
		for _, s := range p.Skills {
			for _, trigger := range s.Triggers {
				if trigger != "" && strings.Contains(lower, strings.ToLower(trigger)) {
					out = append(out, s)
					break
				}
			}
		}
	}
	return out
}
