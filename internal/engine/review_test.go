package engine_test

import (
	"errors"
	"testing"

	"autoboard/internal/domain"
	"autoboard/internal/engine"
	"autoboard/internal/repo"
)

func reviewTask(t *testing.T, env *testEnv) domain.Task {
	t.Helper()
	task := env.createTask(t, engine.TaskCreateOptions{Title: "ship it"})
	env.mustStatus(t, task.ID, domain.StatusInProgress)
	return env.mustStatus(t, task.ID, domain.StatusInReview)
}

func TestProcessReviewDisabledIsNoop(t *testing.T) {
	env := newTestEnv(t)
	task := reviewTask(t, env)
	env.addWorkspace(t, task.ID)

	logs, err := env.Engine.ProcessReview(env.Ctx, task.ID)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if logs != nil {
		t.Fatalf("disabled review should do nothing, got %+v", logs)
	}
	stored, err := env.Engine.Repo.ListReviewLogs(env.Ctx, task.ID, 10)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(stored) != 0 {
		t.Fatalf("disabled review should not log, got %+v", stored)
	}
}

func TestProcessReviewSkipsTaskNotInReview(t *testing.T) {
	env := newTestEnv(t)
	env.enableReview(t, true, true)
	task := env.createTask(t, engine.TaskCreateOptions{Title: "still todo"})

	logs, err := env.Engine.ProcessReview(env.Ctx, task.ID)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(logs) != 1 || logs[0].Action != domain.ReviewSkipped {
		t.Fatalf("expected one skipped entry, got %+v", logs)
	}
	got, _ := env.Engine.Repo.GetTask(env.Ctx, task.ID)
	if got.Status != domain.StatusTodo {
		t.Fatalf("skip must not move the task, got %s", got.Status)
	}
}

func TestProcessReviewSkipsWithoutWorkspace(t *testing.T) {
	env := newTestEnv(t)
	env.enableReview(t, true, true)
	task := reviewTask(t, env)

	logs, err := env.Engine.ProcessReview(env.Ctx, task.ID)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(logs) != 1 || logs[0].Action != domain.ReviewSkipped {
		t.Fatalf("expected skipped for missing workspace, got %+v", logs)
	}
}

func TestProcessReviewTestFailureKeepsTask(t *testing.T) {
	env := newTestEnv(t)
	env.enableReview(t, true, true)
	task := reviewTask(t, env)
	env.addWorkspace(t, task.ID)
	env.Engine.Tests = fakeTests{passed: false, output: "1 test failed"}
	env.Engine.Merger = fakeMerger{}

	logs, err := env.Engine.ProcessReview(env.Ctx, task.ID)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(logs) != 1 || logs[0].Action != domain.ReviewTestFailed {
		t.Fatalf("expected test_failed, got %+v", logs)
	}
	got, _ := env.Engine.Repo.GetTask(env.Ctx, task.ID)
	if got.Status != domain.StatusInReview {
		t.Fatalf("failed tests must keep the task in review, got %s", got.Status)
	}
	stored, _ := env.Engine.Repo.ListReviewLogs(env.Ctx, task.ID, 10)
	if len(stored) != 1 || stored[0].Output == nil || *stored[0].Output != "1 test failed" {
		t.Fatalf("test output should be captured, got %+v", stored)
	}
}

func TestProcessReviewMergeConflictKeepsTask(t *testing.T) {
	env := newTestEnv(t)
	env.enableReview(t, true, true)
	task := reviewTask(t, env)
	ws := env.addWorkspace(t, task.ID)
	env.Engine.Tests = fakeTests{passed: true, output: "ok"}
	env.Engine.Merger = fakeMerger{result: domain.MergeResult{Conflict: true, Details: "CONFLICT in main.go"}}

	logs, err := env.Engine.ProcessReview(env.Ctx, task.ID)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(logs) != 2 || logs[0].Action != domain.ReviewTestPassed || logs[1].Action != domain.ReviewMergeConflict {
		t.Fatalf("expected test_passed then merge_conflict, got %+v", logs)
	}
	got, _ := env.Engine.Repo.GetTask(env.Ctx, task.ID)
	if got.Status != domain.StatusInReview {
		t.Fatalf("conflict must keep the task in review, got %s", got.Status)
	}
	if _, err := env.Engine.Repo.WorkspaceForTask(env.Ctx, task.ID); err != nil {
		t.Fatalf("workspace %s should stay active, got %v", ws.ID, err)
	}
}

func TestProcessReviewCleanMergeCompletesTask(t *testing.T) {
	env := newTestEnv(t)
	env.enableReview(t, true, true)
	task := reviewTask(t, env)
	env.addWorkspace(t, task.ID)
	env.Engine.Tests = fakeTests{passed: true, output: "ok"}
	env.Engine.Merger = fakeMerger{result: domain.MergeResult{Details: "merged"}}

	logs, err := env.Engine.ProcessReview(env.Ctx, task.ID)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(logs) != 2 || logs[0].Action != domain.ReviewTestPassed || logs[1].Action != domain.ReviewMergeCompleted {
		t.Fatalf("expected test_passed then merge_completed, got %+v", logs)
	}
	got, _ := env.Engine.Repo.GetTask(env.Ctx, task.ID)
	if got.Status != domain.StatusDone {
		t.Fatalf("clean merge should finish the task, got %s", got.Status)
	}
	if _, err := env.Engine.Repo.WorkspaceForTask(env.Ctx, task.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("workspace should be archived after merge, got %v", err)
	}
}

func TestProcessReviewTestsOnly(t *testing.T) {
	env := newTestEnv(t)
	env.enableReview(t, true, false)
	task := reviewTask(t, env)
	env.addWorkspace(t, task.ID)
	env.Engine.Tests = fakeTests{passed: true, output: "ok"}

	logs, err := env.Engine.ProcessReview(env.Ctx, task.ID)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(logs) != 1 || logs[0].Action != domain.ReviewTestPassed {
		t.Fatalf("expected only test_passed, got %+v", logs)
	}
	got, _ := env.Engine.Repo.GetTask(env.Ctx, task.ID)
	if got.Status != domain.StatusInReview {
		t.Fatalf("without auto-merge the task stays in review, got %s", got.Status)
	}
}

func TestProcessReviewMutualExclusionPerTask(t *testing.T) {
	env := newTestEnv(t)
	env.enableReview(t, true, false)
	task := reviewTask(t, env)
	env.addWorkspace(t, task.ID)

	started := make(chan struct{})
	release := make(chan struct{})
	env.Engine.Tests = fakeTests{passed: true, started: started, release: release}

	done := make(chan error, 1)
	go func() {
		_, err := env.Engine.ProcessReview(env.Ctx, task.ID)
		done <- err
	}()
	<-started

	_, err := env.Engine.ProcessReview(env.Ctx, task.ID)
	var conflict engine.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError for concurrent pass, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first pass: %v", err)
	}
}

func TestSweepReviewsProcessesAllInReview(t *testing.T) {
	env := newTestEnv(t)
	env.enableReview(t, true, false)
	env.Engine.Tests = fakeTests{passed: true, output: "ok"}

	first := reviewTask(t, env)
	env.addWorkspace(t, first.ID)
	second := env.createTask(t, engine.TaskCreateOptions{Title: "also ready"})
	env.mustStatus(t, second.ID, domain.StatusInProgress)
	env.mustStatus(t, second.ID, domain.StatusInReview)
	env.addWorkspace(t, second.ID)

	if err := env.Engine.SweepReviews(env.Ctx, "proj-1"); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	for _, id := range []string{first.ID, second.ID} {
		logs, err := env.Engine.Repo.ListReviewLogs(env.Ctx, id, 10)
		if err != nil {
			t.Fatalf("list logs: %v", err)
		}
		if len(logs) != 1 || logs[0].Action != domain.ReviewTestPassed {
			t.Fatalf("task %s should have a test_passed entry, got %+v", id, logs)
		}
	}
}
