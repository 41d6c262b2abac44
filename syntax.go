package grokcode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// SyntaxValidator checks a set of modified files and returns whether all
// are valid plus one description per failing file.
type SyntaxValidator func(ctx context.Context, paths []string) (bool, []string)

// checkerTimeout bounds subprocess-based syntax checkers. The TypeScript
// compiler gets longer since it loads the project.
const (
	checkerTimeout   = 10 * time.Second
	typecheckTimeout = 30 * time.Second
	syntaxErrorLines = 5
)

// ValidateFiles is the default SyntaxValidator: every path is dispatched
// by suffix to a language checker. Unknown suffixes, missing files, and
// unavailable or timed-out checkers count as valid — the gate exists to
// catch real errors, not to block on missing toolchains.
func ValidateFiles(ctx context.Context, paths []string) (bool, []string) {
	var errs []string
	for _, p := range paths {
		if ok, msg := CheckFileSyntax(ctx, p); !ok {
			errs = append(errs, msg)
		}
	}
	return len(errs) == 0, errs
}

// CheckFileSyntax checks one file. Returns (false, description) only on a
// definite syntax error.
func CheckFileSyntax(ctx context.Context, path string) (bool, string) {
	if _, err := os.Stat(path); err != nil {
		return true, ""
	}
	name := filepath.Base(path)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".py":
		return runChecker(ctx, checkerTimeout, name, "Python syntax error",
			"python3", "-m", "py_compile", path)
	case ".js", ".jsx":
		return runChecker(ctx, checkerTimeout, name, "Syntax error",
			"node", "--check", path)
	case ".ts", ".tsx":
		return runChecker(ctx, typecheckTimeout, name, "Syntax error",
			"npx", "tsc", "--noEmit", "--skipLibCheck", path)
	case ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return true, ""
		}
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return false, fmt.Sprintf("JSON syntax error in %s: %v", name, err)
		}
	}
	return true, ""
}

// runChecker runs a checker subprocess. A non-zero exit is a syntax
// error; a missing binary or timeout is treated as valid.
func runChecker(ctx context.Context, timeout time.Duration, name, label string, bin string, args ...string) (bool, string) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin, args...)
	out, err := cmd.CombinedOutput()
	if err == nil {
		return true, ""
	}
	if ctx.Err() == context.DeadlineExceeded {
		return true, ""
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		// Checker unavailable (exec not found etc.) — assume valid.
		return true, ""
	}
	msg := strings.TrimSpace(string(out))
	lines := strings.Split(msg, "\n")
	if len(lines) > syntaxErrorLines {
		lines = lines[:syntaxErrorLines]
	}
	return false, fmt.Sprintf("%s in %s:\n%s", label, name, strings.Join(lines, "\n"))
}
