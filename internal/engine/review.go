package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"autoboard/internal/domain"
	"autoboard/internal/repo"
)

// ProcessReview runs one automation pass over a task sitting in review:
// test, then merge, per the project's review settings. Passes over the same
// task are mutually exclusive; a second concurrent pass is rejected with
// ConflictError. Every completed pass appends at least one log row, and a
// failure never moves the task - status advances only on a clean merge.
func (e Engine) ProcessReview(ctx context.Context, taskID string) ([]domain.ReviewAutomationLog, error) {
	if !e.reviewLocks.tryAcquire(taskID) {
		return nil, ConflictError{Reason: "review pass already running for task"}
	}
	defer e.reviewLocks.release(taskID)

	task, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	// Settings are read fresh on every pass so disabling takes effect
	// immediately.
	settings, err := e.Repo.GetReviewSettings(ctx, task.ProjectID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !settings.Enabled {
		return nil, nil
	}

	var appended []domain.ReviewAutomationLog
	logAction := func(wsID *string, action, output, errMsg string) error {
		if err := e.Audit.ReviewAction(ctx, nil, task.ID, wsID, action, output, errMsg); err != nil {
			return err
		}
		appended = append(appended, domain.ReviewAutomationLog{TaskID: task.ID, WorkspaceID: wsID, Action: action})
		return nil
	}

	if task.Status != domain.StatusInReview {
		err := logAction(nil, domain.ReviewSkipped, "", fmt.Sprintf("task is %s, not in review", task.Status))
		return appended, err
	}

	ws, err := e.Repo.WorkspaceForTask(ctx, task.ID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			err := logAction(nil, domain.ReviewSkipped, "", "no workspace for task")
			return appended, err
		}
		return nil, err
	}
	wsID := ws.ID

	if !settings.RunTestsEnabled && !settings.AutoMergeEnabled {
		err := logAction(&wsID, domain.ReviewSkipped, "", "tests and auto-merge both disabled")
		return appended, err
	}

	if settings.RunTestsEnabled {
		if e.Tests == nil {
			err := logAction(&wsID, domain.ReviewError, "", "no test runner configured")
			return appended, err
		}
		testCtx, cancel := context.WithTimeout(ctx, e.testTimeout())
		passed, output, err := e.Tests.RunTests(testCtx, ws)
		cancel()
		if err != nil {
			err := logAction(&wsID, domain.ReviewError, output, fmt.Sprintf("test run failed: %v", err))
			return appended, err
		}
		if !passed {
			// Terminal for this pass; the task stays in review.
			err := logAction(&wsID, domain.ReviewTestFailed, output, "")
			return appended, err
		}
		if err := logAction(&wsID, domain.ReviewTestPassed, output, ""); err != nil {
			return appended, err
		}
	}

	if !settings.AutoMergeEnabled {
		return appended, nil
	}
	if e.Merger == nil {
		err := logAction(&wsID, domain.ReviewError, "", "no merger configured")
		return appended, err
	}
	mergeCtx, cancel := context.WithTimeout(ctx, e.mergeTimeout())
	result, err := e.Merger.Merge(mergeCtx, ws)
	cancel()
	if err != nil {
		err := logAction(&wsID, domain.ReviewError, "", fmt.Sprintf("merge failed: %v", err))
		return appended, err
	}
	if result.Conflict {
		// Conflicts are never auto-resolved; the task waits in review.
		err := logAction(&wsID, domain.ReviewMergeConflict, result.Details, "")
		return appended, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return appended, err
	}
	defer tx.Rollback()
	now := e.nowString()
	if err := e.Repo.SetTaskStatus(ctx, tx, task.ID, domain.StatusDone, nil, now); err != nil {
		return appended, err
	}
	if err := e.Repo.ArchiveWorkspace(ctx, tx, ws.ID); err != nil {
		return appended, err
	}
	if err := e.Audit.ReviewAction(ctx, tx, task.ID, &wsID, domain.ReviewMergeCompleted, result.Details, ""); err != nil {
		return appended, err
	}
	if err := tx.Commit(); err != nil {
		return appended, err
	}
	appended = append(appended, domain.ReviewAutomationLog{TaskID: task.ID, WorkspaceID: &wsID, Action: domain.ReviewMergeCompleted})
	return appended, nil
}

func (e Engine) testTimeout() time.Duration {
	if e.Config != nil {
		return e.Config.TestTimeout()
	}
	return 15 * time.Minute
}

func (e Engine) mergeTimeout() time.Duration {
	if e.Config != nil {
		return e.Config.MergeTimeout()
	}
	return 5 * time.Minute
}

// SweepReviews runs one pass over every in-review task of a project.
// Conflicting passes (a task already being processed) are skipped quietly.
func (e Engine) SweepReviews(ctx context.Context, projectID string) error {
	tasks, err := e.Repo.ListTasks(ctx, repo.TaskFilters{ProjectID: projectID, Status: domain.StatusInReview})
	if err != nil {
		return err
	}
	for _, task := range tasks {
		if _, err := e.ProcessReview(ctx, task.ID); err != nil {
			var conflict ConflictError
			if errors.As(err, &conflict) {
				continue
			}
			return err
		}
	}
	return nil
}
