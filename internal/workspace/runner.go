// Package workspace implements the exec-backed review collaborators: a test
// runner that detects the project's stack and a git-based merger.
package workspace

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"autoboard/internal/domain"
)

// stack marker files, checked in order.
var stackMarkers = []struct {
	file  string
	stack string
}{
	{"package.json", "node"},
	{"Cargo.toml", "rust"},
	{"pyproject.toml", "python"},
	{"go.mod", "go"},
}

var defaultTestCommands = map[string]string{
	"node":   "npm test",
	"rust":   "cargo test",
	"python": "python -m pytest",
	"go":     "go test ./...",
}

// DetectStack reports the stack of a working copy by its marker files.
func DetectStack(path string) (string, bool) {
	for _, m := range stackMarkers {
		if _, err := os.Stat(filepath.Join(path, m.file)); err == nil {
			return m.stack, true
		}
	}
	return "", false
}

// TestRunner executes the stack's test command inside a workspace. A failing
// command is a failed test run, not an error; errors are reserved for runs
// that could not execute at all (unknown stack, context timeout).
type TestRunner struct {
	// TestCommands overrides the per-stack default commands.
	TestCommands map[string]string
}

func (r TestRunner) RunTests(ctx context.Context, ws domain.Workspace) (bool, string, error) {
	stack, ok := DetectStack(ws.Path)
	if !ok {
		return false, "", fmt.Errorf("no recognizable stack in %s", ws.Path)
	}
	command := defaultTestCommands[stack]
	if r.TestCommands != nil {
		if custom, ok := r.TestCommands[stack]; ok {
			command = custom
		}
	}
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return false, "", fmt.Errorf("empty test command for stack %s", stack)
	}
	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	cmd.Dir = ws.Path
	output, err := cmd.CombinedOutput()
	if ctx.Err() != nil {
		return false, string(output), fmt.Errorf("test run timed out: %w", ctx.Err())
	}
	if err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return false, string(output), nil
		}
		return false, string(output), err
	}
	return true, string(output), nil
}

// GitMerger merges a workspace branch into its target branch with plain git.
// Conflicts are detected, aborted and reported; never resolved.
type GitMerger struct{}

func (GitMerger) Merge(ctx context.Context, ws domain.Workspace) (domain.MergeResult, error) {
	if out, err := git(ctx, ws.Path, "checkout", ws.TargetBranch); err != nil {
		return domain.MergeResult{}, fmt.Errorf("checkout %s: %v: %s", ws.TargetBranch, err, out)
	}
	out, err := git(ctx, ws.Path, "merge", "--no-ff", ws.Branch)
	if err == nil {
		return domain.MergeResult{Details: out}, nil
	}
	if ctx.Err() != nil {
		return domain.MergeResult{}, fmt.Errorf("merge timed out: %w", ctx.Err())
	}
	if strings.Contains(out, "CONFLICT") {
		// Leave the tree clean for manual resolution.
		if _, abortErr := git(ctx, ws.Path, "merge", "--abort"); abortErr != nil {
			return domain.MergeResult{}, fmt.Errorf("merge conflict, abort failed: %v", abortErr)
		}
		return domain.MergeResult{Conflict: true, Details: out}, nil
	}
	return domain.MergeResult{}, fmt.Errorf("merge %s: %v: %s", ws.Branch, err, out)
}

func git(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", dir}, args...)...)
	output, err := cmd.CombinedOutput()
	return string(output), err
}
