package grokcode

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SaveTranscript writes the conversation as a markdown transcript under
// .grok/history/conversation_<YYYYMMDD_HHMMSS>.md and returns the path.
// The system message is omitted; it is reassembled on load.
func SaveTranscript(session *Session, conv *Conversation) (string, error) {
	dir := filepath.Join(session.GrokDir(), "history")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("conversation_%s.md", time.Now().Format("20060102_150405")))

	var b strings.Builder
	b.WriteString("# grokCode Conversation\n\n")
	fmt.Fprintf(&b, "Saved: %s\n\n", time.Now().Format(time.RFC3339))
	for _, m := range conv.Messages() {
		switch m.Role {
		case "user":
			b.WriteString("## User\n\n" + m.Content + "\n\n")
		case "assistant":
			if m.Content != "" {
				b.WriteString("## Assistant\n\n" + m.Content + "\n\n")
			}
		case "tool":
			fmt.Fprintf(&b, "## Tool (%s)\n\n```\n%s\n```\n\n", m.ToolName, m.Content)
		}
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// LoadTranscript reads a saved transcript back into user/assistant
// messages appended to conv. Tool sections are skipped: their call ids no
// longer pair with anything, so tool observations are not replayed.
func LoadTranscript(path string, conv *Conversation) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var role, body string
	flush := func() {
		text := strings.TrimSpace(body)
		if text == "" {
			return
		}
		switch role {
		case "User":
			conv.AddUser(text)
		case "Assistant":
			conv.AddAssistant(text, nil)
		}
	}
	for _, line := range strings.Split(string(data), "\n") {
		switch {
		case strings.HasPrefix(line, "## User"):
			flush()
			role, body = "User", ""
		case strings.HasPrefix(line, "## Assistant"):
			flush()
			role, body = "Assistant", ""
		case strings.HasPrefix(line, "## Tool"):
			flush()
			role, body = "Tool", ""
		case strings.HasPrefix(line, "# "):
			// Title line.
		default:
			if role != "" {
				body += line + "\n"
			}
		}
	}
	flush()
	return nil
}

// ListTranscripts returns the saved transcript paths, newest first.
func ListTranscripts(session *Session) []string {
	dir := filepath.Join(session.GrokDir(), "history")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "conversation_") && strings.HasSuffix(e.Name(), ".md") {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	// Names embed the timestamp, so lexical descending = newest first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
