package plugin

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// Frontmatter is the recognized key set of a definition file's
// `---`-delimited YAML head. Tools and Triggers accept either a YAML
// list or a comma-separated string.
type Frontmatter struct {
	Name         string     `yaml:"name"`
	Description  string     `yaml:"description"`
	Tools        stringList `yaml:"tools"`
	Model        string     `yaml:"model"`
	Color        string     `yaml:"color"`
	Triggers     stringList `yaml:"triggers"`
	ArgumentHint string     `yaml:"argument-hint"`
}

// stringList unmarshals from a YAML sequence or a comma-separated
// scalar.
type stringList []string

func (l *stringList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode {
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		*l = trimAll(items)
		return nil
	}
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		*l = nil
		return nil
	}
	*l = trimAll(strings.Split(s, ","))
	return nil
}

func trimAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// ParseFrontmatter splits a markdown document into its frontmatter and
// body. Documents without a leading `---` block yield a zero
// Frontmatter and the full content as body.
func ParseFrontmatter(content string) (Frontmatter, string) {
	var fm Frontmatter
	if !strings.HasPrefix(content, "---") {
		return fm, content
	}

	rest := content[3:]
	idx := strings.Index(rest, "\n---")
	if idx < 0 {
		return fm, content
	}
	head := rest[:idx]
	body := rest[idx+len("\n---"):]
	body = strings.TrimPrefix(body, "\n")

	if err := yaml.Unmarshal([]byte(head), &fm); err != nil {
		return Frontmatter{}, strings.TrimSpace(body)
	}
	return fm, strings.TrimSpace(body)
}

// EmitFrontmatter re-emits the recognized keys as a `---`-delimited
// block, used to round-trip definitions when installing plugins.
func EmitFrontmatter(fm Frontmatter, body string) string {
	var b strings.Builder
	b.WriteString("---\n")
	writeKV := func(k, v string) {
		if v != "" {
			b.WriteString(k + ": " + v + "\n")
		}
	}
	writeKV("name", fm.Name)
	writeKV("description", fm.Description)
	writeKV("tools", strings.Join(fm.Tools, ", "))
	writeKV("model", fm.Model)
	writeKV("color", fm.Color)
	writeKV("triggers", strings.Join(fm.Triggers, ", "))
	writeKV("argument-hint", fm.ArgumentHint)
	b.WriteString("---\n\n")
	b.WriteString(body)
	return b.String()
}
