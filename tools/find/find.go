// Package find provides the glob and grep search tools.
package find

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	grokcode "github.com/nevindra/grokcode"
)

// maxResults caps both glob results and grep matches.
const maxResults = 100

// binaryExtensions are skipped by grep.
var binaryExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".gif": {}, ".pdf": {}, ".zip": {},
	".tar": {}, ".gz": {}, ".exe": {}, ".bin": {},
}

// Tool implements glob and grep against one session.
type Tool struct {
	session *grokcode.Session
}

// New creates the search tool bound to session.
func New(session *grokcode.Session) *Tool {
	return &Tool{session: session}
}

func (t *Tool) Definitions() []grokcode.ToolDefinition {
	return []grokcode.ToolDefinition{
		{
			Name:        "glob",
			Description: `Find files matching a glob pattern (e.g., "**/*.go" for all Go files)`,
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"pattern": {"type": "string", "description": "The glob pattern to match (e.g., \"**/*.go\", \"src/**/*.ts\")"},
					"path": {"type": "string", "description": "Directory to search in. Defaults to current directory."}
				},
				"required": ["pattern"]
			}`),
		},
		{
			Name:        "grep",
			Description: "Search for a pattern in file contents. Returns matching lines with file paths and line numbers.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"pattern": {"type": "string", "description": "The regex pattern to search for"},
					"path": {"type": "string", "description": "File or directory to search in. Defaults to current directory."},
					"glob": {"type": "string", "description": "File pattern to filter (e.g., \"*.go\"). Defaults to all files."},
					"ignore_case": {"type": "boolean", "description": "Case-insensitive search. Default is false."}
				},
				"required": ["pattern"]
			}`),
		},
	}
}

func (t *Tool) Execute(_ context.Context, name string, args json.RawMessage) (grokcode.ToolResult, error) {
	var params struct {
		Pattern    string `json:"pattern"`
		Path       string `json:"path"`
		Glob       string `json:"glob"`
		IgnoreCase bool   `json:"ignore_case"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return grokcode.ToolResult{Error: "invalid args: " + err.Error()}, nil
	}

	root := t.session.Cwd
	if params.Path != "" {
		root = t.session.Reads.Resolve(params.Path)
	}

	switch name {
	case "glob":
		return t.glob(root, params.Pattern)
	case "grep":
		return t.grep(root, params.Pattern, params.Glob, params.IgnoreCase)
	}
	return grokcode.ToolResult{Error: "unknown search tool: " + name}, nil
}

// glob walks root collecting files matching pattern, sorted by
// modification time descending and capped at maxResults.
func (t *Tool) glob(root, pattern string) (grokcode.ToolResult, error) {
	if _, err := os.Stat(root); err != nil {
		return grokcode.ToolResult{Error: fmt.Sprintf("Directory not found: %s", root)}, nil
	}

	type match struct {
		rel   string
		mtime int64
	}
	var matches []match
	total := 0

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		if !matchGlob(pattern, rel) {
			return nil
		}
		total++
		info, err := d.Info()
		if err != nil {
			return nil
		}
		matches = append(matches, match{rel: rel, mtime: info.ModTime().UnixNano()})
		return nil
	})
	if err != nil {
		return grokcode.ToolResult{Error: fmt.Sprintf("searching: %v", err)}, nil
	}

	if len(matches) == 0 {
		return grokcode.ToolResult{Content: "No files found matching pattern: " + pattern}, nil
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].mtime > matches[j].mtime })

	truncated := len(matches) > maxResults
	if truncated {
		matches = matches[:maxResults]
	}
	lines := make([]string, len(matches))
	for i, m := range matches {
		lines[i] = m.rel
	}
	out := strings.Join(lines, "\n")
	if truncated {
		out += fmt.Sprintf("\n\n... (showing first %d of %d matches)", maxResults, total)
	}
	return grokcode.ToolResult{Content: out}, nil
}

// grep compiles the regex up front (failing early on invalid patterns),
// walks files filtered by the glob, skips binary extensions, and reports
// "<rel>:<lineno>: <line>" rows. The walk stops once maxResults matches
// are collected.
func (t *Tool) grep(root, pattern, glob string, ignoreCase bool) (grokcode.ToolResult, error) {
	if _, err := os.Stat(root); err != nil {
		return grokcode.ToolResult{Error: fmt.Sprintf("Path not found: %s", root)}, nil
	}

	expr := pattern
	if ignoreCase {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return grokcode.ToolResult{Error: fmt.Sprintf("Invalid regex pattern: %v", err)}, nil
	}

	var results []string
	total := 0
	capped := false

	searchFile := func(path, rel string) {
		if _, skip := binaryExtensions[strings.ToLower(filepath.Ext(path))]; skip {
			return
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return
		}
		for i, line := range strings.Split(string(data), "\n") {
			if !re.MatchString(line) {
				continue
			}
			total++
			if len(results) < maxResults {
				results = append(results, fmt.Sprintf("%s:%d: %s", rel, i+1, strings.TrimRight(line, " \t\r")))
			} else {
				capped = true
			}
		}
	}

	info, _ := os.Stat(root)
	if !info.IsDir() {
		searchFile(root, filepath.Base(root))
	} else {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			if capped || len(results) >= maxResults {
				capped = true
				return filepath.SkipAll
			}
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				rel = path
			}
			if glob != "" && !matchGlob(glob, rel) {
				return nil
			}
			searchFile(path, rel)
			return nil
		})
	}

	if len(results) == 0 {
		return grokcode.ToolResult{Content: "No matches found for pattern: " + pattern}, nil
	}

	out := strings.Join(results, "\n")
	if capped || total > maxResults {
		out += fmt.Sprintf("\n\n... (showing first %d matches)", maxResults)
	}
	return grokcode.ToolResult{Content: out}, nil
}

// matchGlob matches rel against a shell-style pattern. "**" spans
// directory separators; "*" and "?" do not. Patterns without a separator
// match the base name at any depth.
func matchGlob(pattern, rel string) bool {
	rel = filepath.ToSlash(rel)
	pattern = filepath.ToSlash(pattern)

	if !strings.Contains(pattern, "/") {
		ok, _ := filepath.Match(pattern, filepath.ToSlash(filepath.Base(rel)))
		return ok
	}
	return globRegexp(pattern).MatchString(rel)
}

// globCache memoizes compiled glob patterns for the life of the process;
// entries are never evicted.
var globCache sync.Map // string -> *regexp.Regexp

// globRegexp converts a glob pattern to an anchored regexp.
func globRegexp(pattern string) *regexp.Regexp {
	if cached, ok := globCache.Load(pattern); ok {
		return cached.(*regexp.Regexp)
	}
	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch c {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				// "**" spans directories; swallow a following slash so
				// "a/**/b" also matches "a/b".
				if i+2 < len(pattern) && pattern[i+2] == '/' {
					b.WriteString(`(?:.*/)?`)
					i += 2
				} else {
					b.WriteString(`.*`)
					i++
				}
			} else {
				b.WriteString(`[^/]*`)
			}
		case '?':
			b.WriteString(`[^/]`)
		case '.', '+', '(', ')', '|', '[', ']', '{', '}', '^', '$', '\\':
			b.WriteString(`\` + string(c))
		default:
			b.WriteByte(c)
		}
	}
	b.WriteString("$")
	re := regexp.MustCompile(b.String())
	globCache.Store(pattern, re)
	return re
}
