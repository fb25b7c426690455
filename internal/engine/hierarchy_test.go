package engine_test

import (
	"errors"
	"testing"
	"time"

	"autoboard/internal/domain"
	"autoboard/internal/engine"
	"autoboard/internal/repo"
)

func TestCreateTaskValidation(t *testing.T) {
	env := newTestEnv(t)
	cases := []struct {
		name  string
		opts  engine.TaskCreateOptions
		field string
	}{
		{"empty title", engine.TaskCreateOptions{ProjectID: "proj-1"}, "title"},
		{"bad type", engine.TaskCreateOptions{ProjectID: "proj-1", Title: "x", Type: "epic"}, "task_type"},
		{"bad layer", engine.TaskCreateOptions{ProjectID: "proj-1", Title: "x", Layer: "cloud"}, "layer"},
		{"bad complexity", engine.TaskCreateOptions{ProjectID: "proj-1", Title: "x", ComplexityScore: 11}, "complexity_score"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.Engine.CreateTask(env.Ctx, tc.opts)
			var validation engine.ValidationError
			if !errors.As(err, &validation) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if validation.Field != tc.field {
				t.Fatalf("expected field %q, got %q", tc.field, validation.Field)
			}
		})
	}
}

func TestSetTaskStatusStampsStageClock(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, engine.TaskCreateOptions{Title: "work"})
	if task.StageStartedAt != nil {
		t.Fatalf("todo task should have no stage clock")
	}

	env.advance(5 * time.Minute)
	task = env.mustStatus(t, task.ID, domain.StatusInProgress)
	if task.StageStartedAt == nil || *task.StageStartedAt != env.now.Format(time.RFC3339) {
		t.Fatalf("inprogress should stamp stage_started_at, got %v", task.StageStartedAt)
	}
	started := *task.StageStartedAt

	env.advance(5 * time.Minute)
	task = env.mustStatus(t, task.ID, domain.StatusInReview)
	if task.StageStartedAt == nil || *task.StageStartedAt == started {
		t.Fatalf("inreview should restart the stage clock")
	}

	_, err := env.Engine.SetTaskStatus(env.Ctx, task.ID, "archived")
	var validation engine.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError for unknown status, got %v", err)
	}
}

func TestBreakdownReplacesTask(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, engine.TaskCreateOptions{Title: "big feature", Layer: domain.LayerBackend})
	subtasks, err := env.Engine.BreakdownTask(env.Ctx, task.ID, []domain.TaskDraft{
		{Title: "part one"},
		{Title: "part two", Layer: domain.LayerData},
	})
	if err != nil {
		t.Fatalf("breakdown: %v", err)
	}
	if len(subtasks) != 2 {
		t.Fatalf("expected 2 subtasks, got %d", len(subtasks))
	}
	for _, sub := range subtasks {
		if sub.ParentTaskID == nil || *sub.ParentTaskID != task.ID {
			t.Fatalf("subtask should link to original: %+v", sub)
		}
		if sub.Status != domain.StatusTodo {
			t.Fatalf("subtask should start todo, got %s", sub.Status)
		}
		if sub.Sequence == nil {
			t.Fatalf("subtask should get a fresh sequence")
		}
	}
	if *subtasks[0].Layer != domain.LayerBackend {
		t.Fatalf("subtask without layer should inherit the parent's")
	}
	if *subtasks[1].Layer != domain.LayerData {
		t.Fatalf("explicit draft layer should win")
	}

	original, err := env.Engine.Repo.GetTask(env.Ctx, task.ID)
	if err != nil {
		t.Fatalf("get original: %v", err)
	}
	if original.Status != domain.StatusCancelled {
		t.Fatalf("original should be cancelled, got %s", original.Status)
	}

	logs, err := env.Engine.Repo.ListAgentActivity(env.Ctx, "proj-1", 10)
	if err != nil {
		t.Fatalf("activity: %v", err)
	}
	if len(logs) != 1 || logs[0].Action != domain.AgentReplaced {
		t.Fatalf("expected one replaced entry, got %+v", logs)
	}
}

func TestBreakdownDepthLimit(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, engine.TaskCreateOptions{Title: "root"})
	subtasks, err := env.Engine.BreakdownTask(env.Ctx, task.ID, []domain.TaskDraft{{Title: "a"}, {Title: "b"}})
	if err != nil {
		t.Fatalf("first breakdown: %v", err)
	}

	// Default max depth is 1, so a subtask cannot be broken down again.
	_, err = env.Engine.BreakdownTask(env.Ctx, subtasks[0].ID, []domain.TaskDraft{{Title: "aa"}, {Title: "ab"}})
	var depth engine.DepthExceededError
	if !errors.As(err, &depth) {
		t.Fatalf("expected DepthExceededError, got %v", err)
	}
	if depth.Depth != 1 || depth.Max != 1 {
		t.Fatalf("unexpected depth report: %+v", depth)
	}
}

func TestBreakdownRejectsTerminalAndThinInput(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, engine.TaskCreateOptions{Title: "done deal"})
	env.mustStatus(t, task.ID, domain.StatusInProgress)
	env.mustStatus(t, task.ID, domain.StatusInReview)
	env.mustStatus(t, task.ID, domain.StatusDone)

	_, err := env.Engine.BreakdownTask(env.Ctx, task.ID, []domain.TaskDraft{{Title: "a"}, {Title: "b"}})
	var conflict engine.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError for done task, got %v", err)
	}

	other := env.createTask(t, engine.TaskCreateOptions{Title: "thin"})
	_, err = env.Engine.BreakdownTask(env.Ctx, other.ID, []domain.TaskDraft{{Title: "only one"}})
	var validation engine.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError for single subtask, got %v", err)
	}
}

func TestSplitFullstack(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, engine.TaskCreateOptions{Title: "profile page", Layer: domain.LayerFullstack})
	subtasks, err := env.Engine.SplitFullstack(env.Ctx, task.ID)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(subtasks) != 3 {
		t.Fatalf("expected 3 layer subtasks, got %d", len(subtasks))
	}
	layers := map[string]bool{}
	for _, sub := range subtasks {
		layers[*sub.Layer] = true
	}
	for _, want := range []string{domain.LayerData, domain.LayerBackend, domain.LayerFrontend} {
		if !layers[want] {
			t.Fatalf("missing %s subtask, got %v", want, layers)
		}
	}

	backendTask := env.createTask(t, engine.TaskCreateOptions{Title: "just backend", Layer: domain.LayerBackend})
	if _, err := env.Engine.SplitFullstack(env.Ctx, backendTask.ID); err == nil {
		t.Fatalf("non-fullstack task should not split")
	}
}

func TestTimeoutDetectionBoundary(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, engine.TaskCreateOptions{Title: "slow"})
	env.mustStatus(t, task.ID, domain.StatusInProgress)

	threshold := 20 * time.Minute
	env.advance(threshold)
	stalled, err := env.Engine.FindTimedOut(env.Ctx, "proj-1", threshold)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(stalled) != 0 {
		t.Fatalf("a task exactly at the threshold is not timed out")
	}

	env.advance(time.Second)
	stalled, err = env.Engine.FindTimedOut(env.Ctx, "proj-1", threshold)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(stalled) != 1 || stalled[0].ID != task.ID {
		t.Fatalf("expected the stalled task, got %+v", stalled)
	}
}

func TestSweepTimeoutsCancelsAndArchives(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, engine.TaskCreateOptions{Title: "stuck"})
	env.mustStatus(t, task.ID, domain.StatusInReview)
	ws := env.addWorkspace(t, task.ID)

	fresh := env.createTask(t, engine.TaskCreateOptions{Title: "fresh"})
	env.advance(30 * time.Minute)
	env.mustStatus(t, fresh.ID, domain.StatusInProgress)

	stalled, err := env.Engine.SweepTimeouts(env.Ctx, "proj-1", 20*time.Minute)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(stalled) != 1 || stalled[0].ID != task.ID {
		t.Fatalf("only the stuck task should be swept, got %+v", stalled)
	}

	got, err := env.Engine.Repo.GetTask(env.Ctx, task.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.StatusCancelled {
		t.Fatalf("swept task should be cancelled, got %s", got.Status)
	}
	if _, err := env.Engine.Repo.WorkspaceForTask(env.Ctx, task.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("workspace %s should be archived, got %v", ws.ID, err)
	}

	logs, err := env.Engine.Repo.ListAgentActivity(env.Ctx, "proj-1", 10)
	if err != nil {
		t.Fatalf("activity: %v", err)
	}
	if len(logs) != 1 || logs[0].Action != domain.AgentTimeout {
		t.Fatalf("expected one timeout entry, got %+v", logs)
	}
}

func TestTaskDepthDetectsCycle(t *testing.T) {
	env := newTestEnv(t)
	a := env.createTask(t, engine.TaskCreateOptions{Title: "a"})
	b := env.createTask(t, engine.TaskCreateOptions{Title: "b", ParentTaskID: a.ID})

	// Corrupt the chain directly; the walk must refuse to loop.
	if _, err := env.Engine.DB.ExecContext(env.Ctx, `UPDATE tasks SET parent_task_id=? WHERE id=?`, b.ID, a.ID); err != nil {
		t.Fatalf("corrupt chain: %v", err)
	}
	_, err := env.Engine.TaskDepth(env.Ctx, b.ID)
	var integrity engine.IntegrityError
	if !errors.As(err, &integrity) {
		t.Fatalf("expected IntegrityError, got %v", err)
	}
}
