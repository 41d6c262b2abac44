package plugin

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// markerFile identifies a plugin directory.
const markerFile = ".grok-plugin/plugin.json"

// pluginMeta is the plugin.json shape.
type pluginMeta struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

// Loader discovers and loads plugins from a list of base directories
// (typically .grok/plugins and .grok/agents).
type Loader struct {
	dirs []string
}

// NewLoader creates a loader searching the given directories.
func NewLoader(dirs ...string) *Loader {
	return &Loader{dirs: dirs}
}

// AddDir appends a search directory.
func (l *Loader) AddDir(dir string) {
	for _, d := range l.dirs {
		if d == dir {
			return
		}
	}
	l.dirs = append(l.dirs, dir)
}

// LoadAll loads every discovered plugin plus standalone agent files
// (*.md directly in a search directory), which are grouped under a
// synthetic "local" plugin.
func (l *Loader) LoadAll() []Plugin {
	var plugins []Plugin

	for _, dir := range l.discover() {
		if p, ok := l.loadPlugin(dir); ok {
			plugins = append(plugins, p)
		}
	}

	var standalone []Agent
	for _, base := range l.dirs {
		entries, err := os.ReadDir(base)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
				continue
			}
			if a, ok := loadAgent(filepath.Join(base, e.Name()), "local"); ok {
				standalone = append(standalone, a)
			}
		}
	}
	if len(standalone) > 0 {
		plugins = append(plugins, Plugin{
			Name:        "local",
			Version:     "1.0.0",
			Description: "Local project agents",
			Agents:      standalone,
		})
	}
	return plugins
}

// discover returns directories carrying the plugin marker.
func (l *Loader) discover() []string {
	var found []string
	for _, base := range l.dirs {
		entries, err := os.ReadDir(base)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			dir := filepath.Join(base, e.Name())
			if _, err := os.Stat(filepath.Join(dir, markerFile)); err == nil {
				found = append(found, dir)
			}
		}
	}
	return found
}

// loadPlugin loads one plugin directory: plugin.json metadata plus its
// agents/, commands/, skills/ and hooks/ subdirectories.
func (l *Loader) loadPlugin(dir string) (Plugin, bool) {
	data, err := os.ReadFile(filepath.Join(dir, markerFile))
	if err != nil {
		return Plugin{}, false
	}
	var meta pluginMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return Plugin{}, false
	}
	if meta.Name == "" {
		meta.Name = filepath.Base(dir)
	}
	if meta.Version == "" {
		meta.Version = "1.0.0"
	}

	p := Plugin{
		Name:        meta.Name,
		Version:     meta.Version,
		Description: meta.Description,
		Path:        dir,
	}

	for _, path := range globMD(filepath.Join(dir, "agents")) {
		if a, ok := loadAgent(path, p.Name); ok {
			p.Agents = append(p.Agents, a)
		}
	}
	for _, path := range globMD(filepath.Join(dir, "commands")) {
		if c, ok := loadCommand(path, p.Name); ok {
			p.Commands = append(p.Commands, c)
		}
	}
	for _, path := range globMD(filepath.Join(dir, "skills")) {
		if s, ok := loadSkill(path, p.Name); ok {
			p.Skills = append(p.Skills, s)
		}
	}
	for _, path := range globExt(filepath.Join(dir, "hooks"), ".py") {
		p.Hooks = append(p.Hooks, Hook{
			Name:     stem(path),
			Event:    hookEvent(path),
			Script:   path,
			Plugin:   p.Name,
			FilePath: path,
		})
	}
	return p, true
}

func loadAgent(path, pluginName string) (Agent, bool) {
	fm, body, ok := readDefinition(path)
	if !ok {
		return Agent{}, false
	}
	name := fm.Name
	if name == "" {
		name = stem(path)
	}
	model := fm.Model
	if model == "" {
		model = "default"
	}
	color := fm.Color
	if color == "" {
		color = "cyan"
	}
	return Agent{
		Name:        name,
		Description: fm.Description,
		Prompt:      body,
		Tools:       fm.Tools,
		Model:       model,
		Color:       color,
		Plugin:      pluginName,
		FilePath:    path,
	}, true
}

func loadCommand(path, pluginName string) (Command, bool) {
	fm, body, ok := readDefinition(path)
	if !ok {
		return Command{}, false
	}
	return Command{
		Name:         stem(path),
		Description:  fm.Description,
		Prompt:       body,
		ArgumentHint: fm.ArgumentHint,
		Plugin:       pluginName,
		FilePath:     path,
	}, true
}

func loadSkill(path, pluginName string) (Skill, bool) {
	fm, body, ok := readDefinition(path)
	if !ok {
		return Skill{}, false
	}
	return Skill{
		Name:        stem(path),
		Description: fm.Description,
		Prompt:      body,
		Triggers:    fm.Triggers,
		Plugin:      pluginName,
		FilePath:    path,
	}, true
}

func readDefinition(path string) (Frontmatter, string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Frontmatter{}, "", false
	}
	fm, body := ParseFrontmatter(string(data))
	return fm, body, true
}

func globMD(dir string) []string {
	return globExt(dir, ".md")
}

func globExt(dir, ext string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ext) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out
}

func stem(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}
