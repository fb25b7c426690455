package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"autoboard/internal/domain"
)

func touch(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestDetectStack(t *testing.T) {
	cases := []struct {
		marker string
		stack  string
	}{
		{"package.json", "node"},
		{"Cargo.toml", "rust"},
		{"pyproject.toml", "python"},
		{"go.mod", "go"},
	}
	for _, tc := range cases {
		t.Run(tc.stack, func(t *testing.T) {
			dir := t.TempDir()
			touch(t, dir, tc.marker)
			stack, ok := DetectStack(dir)
			if !ok || stack != tc.stack {
				t.Fatalf("expected %s, got %q ok=%v", tc.stack, stack, ok)
			}
		})
	}
}

func TestDetectStackPriorityOrder(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "go.mod")
	touch(t, dir, "package.json")
	stack, ok := DetectStack(dir)
	if !ok || stack != "node" {
		t.Fatalf("package.json should win over go.mod, got %q", stack)
	}
}

func TestDetectStackUnknown(t *testing.T) {
	if stack, ok := DetectStack(t.TempDir()); ok {
		t.Fatalf("empty dir should detect nothing, got %q", stack)
	}
}

func TestRunTestsUnknownStack(t *testing.T) {
	r := TestRunner{}
	ws := domain.Workspace{Path: t.TempDir()}
	if _, _, err := r.RunTests(context.Background(), ws); err == nil {
		t.Fatalf("expected error for unrecognized stack")
	}
}

func TestRunTestsFailingCommandIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "go.mod")
	r := TestRunner{TestCommands: map[string]string{"go": "false"}}
	passed, _, err := r.RunTests(context.Background(), domain.Workspace{Path: dir})
	if err != nil {
		t.Fatalf("exit status is a result, not an error: %v", err)
	}
	if passed {
		t.Fatalf("failing command should report failure")
	}
}

func TestRunTestsPassingCommand(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "go.mod")
	r := TestRunner{TestCommands: map[string]string{"go": "true"}}
	passed, _, err := r.RunTests(context.Background(), domain.Workspace{Path: dir})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !passed {
		t.Fatalf("passing command should report success")
	}
}

func TestRunTestsHonorsContextTimeout(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "go.mod")
	r := TestRunner{TestCommands: map[string]string{"go": "sleep 10"}}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, _, err := r.RunTests(ctx, domain.Workspace{Path: dir}); err == nil {
		t.Fatalf("expected timeout error")
	}
}
