package daemon

import (
	"bytes"
	"context"
	"log"
	"strings"
	"testing"
	"time"

	"autoboard/internal/db"
	"autoboard/internal/engine"
	"autoboard/internal/heuristics"
	"autoboard/internal/migrate"
)

func newTestDaemon(t *testing.T, buf *bytes.Buffer) *Daemon {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, nil)
	eng.Decider = heuristics.Decider{}
	if _, err := eng.InitProject(context.Background(), "proj-1", "test"); err != nil {
		t.Fatalf("init project: %v", err)
	}
	return &Daemon{
		Engine:        eng,
		Logger:        log.New(buf, "", 0),
		PollInterval:  10 * time.Millisecond,
		SweepInterval: 10 * time.Millisecond,
		StageTimeout:  time.Minute,
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	d := newTestDaemon(t, &buf)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("cancellation should not be an error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("daemon did not stop after cancel")
	}
}

func TestSchedulerLoopStopsWhenProjectDisabled(t *testing.T) {
	var buf bytes.Buffer
	d := newTestDaemon(t, &buf)
	ctx := context.Background()

	settings, err := d.Engine.Repo.GetAgentSettings(ctx, "proj-1")
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	settings.Enabled = true
	settings.IntervalSeconds = 1
	if _, err := d.Engine.Repo.UpsertAgentSettings(ctx, settings, "2024-01-01T00:00:00Z"); err != nil {
		t.Fatalf("enable agent: %v", err)
	}

	loopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- d.schedulerLoop(loopCtx, "proj-1", 10*time.Millisecond) }()

	time.Sleep(30 * time.Millisecond)
	settings.Enabled = false
	if _, err := d.Engine.Repo.UpsertAgentSettings(ctx, settings, "2024-01-01T00:01:00Z"); err != nil {
		t.Fatalf("disable agent: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("disable should stop the loop cleanly: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("loop did not stop after disable")
	}
	if !strings.Contains(buf.String(), "disabled; stopping scheduler loop") {
		t.Fatalf("missing stop log, got %q", buf.String())
	}
}

func TestSchedulerLoopStopsWhenSettingsGone(t *testing.T) {
	var buf bytes.Buffer
	d := newTestDaemon(t, &buf)
	ctx := context.Background()

	if err := d.Engine.Repo.DeleteProject(ctx, "proj-1"); err != nil {
		t.Fatalf("delete project: %v", err)
	}

	loopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := d.schedulerLoop(loopCtx, "proj-1", 10*time.Millisecond); err != nil {
		t.Fatalf("missing settings should stop the loop cleanly: %v", err)
	}
	if !strings.Contains(buf.String(), "settings gone") {
		t.Fatalf("missing stop log, got %q", buf.String())
	}
}
