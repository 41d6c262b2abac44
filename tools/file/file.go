// Package file provides the read_file, write_file and edit_file tools.
// All three enforce the session read-before-modify contract through the
// shared ReadSet: reads insert, successful writes and edits remove, and
// modifications of unread files are refused.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	grokcode "github.com/nevindra/grokcode"
)

// Tool implements the file operation suite against one session.
type Tool struct {
	session *grokcode.Session
}

// New creates the file tool bound to session.
func New(session *grokcode.Session) *Tool {
	return &Tool{session: session}
}

func (t *Tool) Definitions() []grokcode.ToolDefinition {
	return []grokcode.ToolDefinition{
		{
			Name:        "read_file",
			Description: "Read the contents of a file. Returns the file contents with line numbers.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"file_path": {"type": "string", "description": "The path to the file to read (absolute or relative to cwd)"},
					"offset": {"type": "integer", "description": "Line number to start reading from (1-indexed). Optional."},
					"limit": {"type": "integer", "description": "Maximum number of lines to read. Optional."}
				},
				"required": ["file_path"]
			}`),
		},
		{
			Name:        "write_file",
			Description: "Write content to a file. Creates the file if it doesn't exist, overwrites if it does.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"file_path": {"type": "string", "description": "The path to the file to write"},
					"content": {"type": "string", "description": "The content to write to the file"}
				},
				"required": ["file_path", "content"]
			}`),
		},
		{
			Name:        "edit_file",
			Description: "Edit a file by replacing a specific string with another. The old_string must match exactly (including whitespace).",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"file_path": {"type": "string", "description": "The path to the file to edit"},
					"old_string": {"type": "string", "description": "The exact string to find and replace"},
					"new_string": {"type": "string", "description": "The string to replace it with"},
					"replace_all": {"type": "boolean", "description": "If true, replace all occurrences. Default is false (replace first only)."}
				},
				"required": ["file_path", "old_string", "new_string"]
			}`),
		},
	}
}

func (t *Tool) Execute(_ context.Context, name string, args json.RawMessage) (grokcode.ToolResult, error) {
	var params struct {
		FilePath   string `json:"file_path"`
		Offset     int    `json:"offset"`
		Limit      int    `json:"limit"`
		Content    string `json:"content"`
		OldString  string `json:"old_string"`
		NewString  string `json:"new_string"`
		ReplaceAll bool   `json:"replace_all"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return grokcode.ToolResult{Error: "invalid args: " + err.Error()}, nil
	}

	path := t.session.Reads.Resolve(params.FilePath)
	switch name {
	case "read_file":
		return t.read(path, params.Offset, params.Limit)
	case "write_file":
		return t.write(path, params.Content)
	case "edit_file":
		return t.edit(path, params.OldString, params.NewString, params.ReplaceAll)
	}
	return grokcode.ToolResult{Error: "unknown file tool: " + name}, nil
}

// read returns the file content with 1-indexed, right-aligned line
// numbers, applying the optional offset/limit line slice. Successful
// reads mark the path in the ReadSet.
func (t *Tool) read(path string, offset, limit int) (grokcode.ToolResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return grokcode.ToolResult{Error: fmt.Sprintf("File not found: %s", path)}, nil
	}
	if info.IsDir() {
		return grokcode.ToolResult{Error: fmt.Sprintf("Not a file: %s", path)}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return grokcode.ToolResult{Error: fmt.Sprintf("reading file: %v", err)}, nil
	}
	t.session.Reads.Mark(path)

	lines := splitLines(toValidUTF8(data))
	start := 0
	if offset > 0 {
		start = offset - 1
	}
	if start > len(lines) {
		start = len(lines)
	}
	end := len(lines)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	selected := lines[start:end]

	if len(selected) == 0 {
		return grokcode.ToolResult{Content: "(empty file)"}, nil
	}

	var b strings.Builder
	for i, line := range selected {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%6d│%s", start+i+1, line)
	}
	return grokcode.ToolResult{Content: b.String()}, nil
}

// write creates or overwrites path. Overwriting an existing file that is
// not in the ReadSet is refused without touching the file. A successful
// write unmarks the path: it must be re-read before the next
// modification.
func (t *Tool) write(path, content string) (grokcode.ToolResult, error) {
	if _, err := os.Stat(path); err == nil && !t.session.Reads.Has(path) {
		return grokcode.ToolResult{Error: fmt.Sprintf(
			"Cannot write to %s - file exists but has not been read first. Read the file before modifying it.", path)}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return grokcode.ToolResult{Error: fmt.Sprintf("writing file: %v", err)}, nil
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return grokcode.ToolResult{Error: fmt.Sprintf("writing file: %v", err)}, nil
	}
	t.session.Reads.Unmark(path)
	return grokcode.ToolResult{Content: fmt.Sprintf("Successfully wrote %d bytes to %s", len(content), path)}, nil
}

// edit replaces oldString with newString (first occurrence, or all).
// The file must exist and be in the ReadSet. When oldString is not found
// a diagnostic tries the whitespace-stripped form and its first line and
// reports the indentation found, to help the model recover.
func (t *Tool) edit(path, oldString, newString string, replaceAll bool) (grokcode.ToolResult, error) {
	if _, err := os.Stat(path); err != nil {
		return grokcode.ToolResult{Error: fmt.Sprintf("File not found: %s", path)}, nil
	}
	if !t.session.Reads.Has(path) {
		return grokcode.ToolResult{Error: fmt.Sprintf(
			"Cannot edit %s - file has not been read first. Read the file before modifying it.", path)}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return grokcode.ToolResult{Error: fmt.Sprintf("reading file: %v", err)}, nil
	}
	content := string(data)

	count := strings.Count(content, oldString)
	if count == 0 {
		return grokcode.ToolResult{Error: notFoundDiagnostic(path, content, oldString)}, nil
	}
	if count > 1 && !replaceAll {
		return grokcode.ToolResult{Error: fmt.Sprintf(
			"Found %d occurrences of the string. Use replace_all=true to replace all, or provide more context to make the match unique.", count)}, nil
	}

	var newContent string
	replaced := 1
	if replaceAll {
		newContent = strings.ReplaceAll(content, oldString, newString)
		replaced = count
	} else {
		newContent = strings.Replace(content, oldString, newString, 1)
	}

	if err := os.WriteFile(path, []byte(newContent), 0o644); err != nil {
		return grokcode.ToolResult{Error: fmt.Sprintf("writing file: %v", err)}, nil
	}
	t.session.Reads.Unmark(path)
	return grokcode.ToolResult{Content: fmt.Sprintf("Successfully replaced %d occurrence(s) in %s", replaced, path)}, nil
}

// notFoundDiagnostic builds the edit_file miss message: it looks for the
// stripped form of oldString, then for its first line, and reports the
// indentation detected at the match so the caller can fix its
// old_string.
func notFoundDiagnostic(path, content, oldString string) string {
	stripped := strings.TrimSpace(oldString)
	if stripped != "" && stripped != oldString {
		if idx := strings.Index(content, stripped); idx >= 0 {
			return fmt.Sprintf(
				"Could not find the specified string in %s. A whitespace-stripped version exists with indentation %q - copy the exact whitespace from read_file output.",
				path, lineIndentAt(content, idx))
		}
	}
	firstLine := strings.TrimSpace(strings.SplitN(oldString, "\n", 2)[0])
	if firstLine != "" {
		if idx := strings.Index(content, firstLine); idx >= 0 {
			return fmt.Sprintf(
				"Could not find the specified string in %s. Its first line exists with indentation %q - check the indentation of the remaining lines.",
				path, lineIndentAt(content, idx))
		}
	}
	return fmt.Sprintf("Could not find the specified string in %s", path)
}

// lineIndentAt returns the leading whitespace of the line containing
// byte offset idx.
func lineIndentAt(content string, idx int) string {
	lineStart := strings.LastIndexByte(content[:idx], '\n') + 1
	line := content[lineStart:]
	if end := strings.IndexByte(line, '\n'); end >= 0 {
		line = line[:end]
	}
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}

// splitLines splits content into lines without trailing newlines. An
// empty document yields no lines; a trailing newline does not produce a
// phantom final line.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	content = strings.TrimSuffix(content, "\n")
	return strings.Split(content, "\n")
}

// toValidUTF8 decodes file bytes as UTF-8 with replacement characters
// for invalid sequences.
func toValidUTF8(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), "�")
}
