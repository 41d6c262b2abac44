package grokcode

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// planMarkdown parses plan documents with the task-list extension so
// checkbox items become TaskCheckBox nodes.
var planMarkdown = goldmark.New(goldmark.WithExtensions(extension.TaskList))

// ExtractTaskSubjects returns the subjects of all unchecked `- [ ]`
// checkbox items in a markdown document, in document order. Duplicate
// subjects are collapsed to the first occurrence.
func ExtractTaskSubjects(markdown string) []string {
	src := []byte(markdown)
	doc := planMarkdown.Parser().Parse(text.NewReader(src))

	var subjects []string
	seen := make(map[string]struct{})
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		cb, ok := n.(*east.TaskCheckBox)
		if !ok || cb.IsChecked {
			return ast.WalkContinue, nil
		}
		var b strings.Builder
		for sib := cb.NextSibling(); sib != nil; sib = sib.NextSibling() {
			appendNodeText(sib, src, &b)
		}
		subject := strings.TrimSpace(b.String())
		if subject == "" {
			return ast.WalkSkipChildren, nil
		}
		if _, dup := seen[subject]; !dup {
			seen[subject] = struct{}{}
			subjects = append(subjects, subject)
		}
		return ast.WalkSkipChildren, nil
	})
	return subjects
}

// appendNodeText flattens the literal text under n into b.
func appendNodeText(n ast.Node, src []byte, b *strings.Builder) {
	switch t := n.(type) {
	case *ast.Text:
		b.Write(t.Segment.Value(src))
	case *ast.CodeSpan:
		for c := t.FirstChild(); c != nil; c = c.NextSibling() {
			appendNodeText(c, src, b)
		}
	default:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			appendNodeText(c, src, b)
		}
	}
}

// planSlugStopwords are skipped when deriving a plan filename slug.
var planSlugStopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "this": {}, "that": {},
}

var nonSlugChars = regexp.MustCompile(`[^\w\s]`)

// PlanFileName derives a `<slug>_<YYYYMMDD_HHMMSS>.md` filename from a
// task prompt: the first three words longer than two characters, minus
// stopwords.
func PlanFileName(prompt string, now time.Time) string {
	words := strings.Fields(nonSlugChars.ReplaceAllString(strings.ToLower(prompt), ""))
	var keywords []string
	for _, w := range words {
		if len(w) <= 2 {
			continue
		}
		if _, stop := planSlugStopwords[w]; stop {
			continue
		}
		keywords = append(keywords, w)
		if len(keywords) == 3 {
			break
		}
	}
	slug := "plan"
	if len(keywords) > 0 {
		slug = strings.Join(keywords, "-")
	}
	return fmt.Sprintf("%s_%s.md", slug, now.Format("20060102_150405"))
}

// PlanState is the plan-mode state machine: Inactive → Enter → Active →
// Exit → Inactive. While active, SetPlan may run any number of times;
// each call overwrites the plan file and creates tasks for checkbox
// subjects not already created this plan session.
type PlanState struct {
	mu       sync.Mutex
	cwd      string
	active   bool
	planFile string
	content  string
	created  []string
}

// NewPlanState creates an inactive plan state rooted at cwd.
func NewPlanState(cwd string) *PlanState {
	return &PlanState{cwd: cwd}
}

// PlansDir returns the directory plan files are written to.
func (p *PlanState) PlansDir() string {
	return filepath.Join(p.cwd, GrokDirName, "plans")
}

// Enter activates plan mode and assigns a fresh plan file path.
// Returns the plan file path.
func (p *PlanState) Enter() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = true
	p.created = nil
	p.content = ""
	p.planFile = filepath.Join(p.PlansDir(), "plan-"+ShortID()+".md")
	return p.planFile
}

// Exit deactivates plan mode. Created-task tracking resets so the next
// plan session starts clean.
func (p *PlanState) Exit() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = false
	p.created = nil
}

// Active reports whether plan mode is on. Collaborators may use this to
// suppress mutating tools while the user reviews a plan.
func (p *PlanState) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// File returns the current plan file path ("" before the first Enter).
func (p *PlanState) File() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.planFile
}

// Content returns the last committed plan content.
func (p *PlanState) Content() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.content
}

// CreatedTasks returns the subjects created this plan session.
func (p *PlanState) CreatedTasks() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.created))
	copy(out, p.created)
	return out
}

// SetPlan commits content: writes the plan file and creates a task for
// each checkbox subject not already created this session. Returns the
// number of tasks created.
func (p *PlanState) SetPlan(content string, tasks *TaskStore) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active {
		return 0, fmt.Errorf("not in plan mode")
	}
	p.content = content
	if p.planFile != "" {
		if err := os.MkdirAll(filepath.Dir(p.planFile), 0o755); err != nil {
			return 0, err
		}
		if err := os.WriteFile(p.planFile, []byte(content), 0o644); err != nil {
			return 0, err
		}
	}

	already := make(map[string]struct{}, len(p.created))
	for _, s := range p.created {
		already[s] = struct{}{}
	}
	var createdCount int
	for _, subject := range ExtractTaskSubjects(content) {
		if _, dup := already[subject]; dup {
			continue
		}
		tasks.Create(subject, "Plan task: "+subject, "Working on: "+truncateStr(subject, 40))
		p.created = append(p.created, subject)
		already[subject] = struct{}{}
		createdCount++
	}
	return createdCount, nil
}

// Reset fully clears the state (session reset).
func (p *PlanState) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = false
	p.planFile = ""
	p.content = ""
	p.created = nil
}
