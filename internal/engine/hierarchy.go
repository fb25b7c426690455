package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"autoboard/internal/domain"
	"autoboard/internal/repo"
)

// maxDepthHops caps the ancestor walk so a corrupted parent chain can never
// be looped over indefinitely.
const maxDepthHops = 64

var validStatuses = map[string]bool{
	domain.StatusTodo:       true,
	domain.StatusInProgress: true,
	domain.StatusInReview:   true,
	domain.StatusDone:       true,
	domain.StatusCancelled:  true,
}

var validTypes = map[string]bool{
	domain.TypeArchitecture:   true,
	domain.TypeMock:           true,
	domain.TypeImplementation: true,
	domain.TypeIntegration:    true,
}

var validLayers = map[string]bool{
	domain.LayerData:      true,
	domain.LayerBackend:   true,
	domain.LayerFrontend:  true,
	domain.LayerFullstack: true,
	domain.LayerDevops:    true,
	domain.LayerTesting:   true,
}

// TaskCreateOptions are parameters for creating a manual task.
type TaskCreateOptions struct {
	ProjectID        string
	Title            string
	Description      string
	Type             string
	Layer            string
	ComplexityScore  int
	ParentTaskID     string
	TestingCriteria  string
	PreventBreakdown bool
}

func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	if opts.Title == "" {
		return domain.Task{}, ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if opts.Type == "" {
		opts.Type = domain.TypeImplementation
	}
	if !validTypes[opts.Type] {
		return domain.Task{}, ValidationError{Field: "task_type", Reason: "unknown type " + opts.Type}
	}
	if opts.Layer != "" && !validLayers[opts.Layer] {
		return domain.Task{}, ValidationError{Field: "layer", Reason: "unknown layer " + opts.Layer}
	}
	if opts.ComplexityScore != 0 && (opts.ComplexityScore < 1 || opts.ComplexityScore > 10) {
		return domain.Task{}, ValidationError{Field: "complexity_score", Reason: "must be in [1,10]"}
	}
	if _, err := e.Repo.GetProject(ctx, opts.ProjectID); err != nil {
		return domain.Task{}, err
	}
	if opts.ParentTaskID != "" {
		parent, err := e.Repo.GetTask(ctx, opts.ParentTaskID)
		if err != nil {
			return domain.Task{}, err
		}
		if parent.ProjectID != opts.ProjectID {
			return domain.Task{}, ValidationError{Field: "parent_task_id", Reason: "parent in different project"}
		}
	}
	now := e.nowString()
	t := domain.Task{
		ID:               uuid.NewString(),
		ProjectID:        opts.ProjectID,
		Title:            opts.Title,
		Description:      opts.Description,
		Status:           domain.StatusTodo,
		Source:           domain.SourceManual,
		Type:             opts.Type,
		PreventBreakdown: opts.PreventBreakdown,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if opts.Layer != "" {
		t.Layer = &opts.Layer
	}
	if opts.ComplexityScore != 0 {
		t.ComplexityScore = &opts.ComplexityScore
	}
	if opts.ParentTaskID != "" {
		t.ParentTaskID = &opts.ParentTaskID
	}
	if opts.TestingCriteria != "" {
		t.TestingCriteria = &opts.TestingCriteria
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// SetTaskStatus moves a task to a new status. Entering inprogress or
// inreview stamps stage_started_at together with the status in a single
// write; other edits leave the stage clock alone so timeout detection is not
// reset by cosmetic changes.
func (e Engine) SetTaskStatus(ctx context.Context, taskID, status string) (domain.Task, error) {
	if !validStatuses[status] {
		return domain.Task{}, ValidationError{Field: "status", Reason: "unknown status " + status}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	if _, err := e.Repo.GetTaskTx(ctx, tx, taskID); err != nil {
		return domain.Task{}, err
	}
	now := e.nowString()
	var stage *string
	if status == domain.StatusInProgress || status == domain.StatusInReview {
		stage = &now
	}
	if err := e.Repo.SetTaskStatus(ctx, tx, taskID, status, stage, now); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return e.Repo.GetTask(ctx, taskID)
}

// SetComplexity writes a task's complexity score, validated to [1,10].
func (e Engine) SetComplexity(ctx context.Context, taskID string, score int) error {
	if score < 1 || score > 10 {
		return ValidationError{Field: "complexity_score", Reason: "must be in [1,10]"}
	}
	return e.Repo.SetTaskComplexity(ctx, taskID, score, e.nowString())
}

// FindTimedOut returns tasks in inprogress or inreview whose stage clock
// started strictly more than threshold ago. Tasks that transitioned at the
// boundary instant are excluded.
func (e Engine) FindTimedOut(ctx context.Context, projectID string, threshold time.Duration) ([]domain.Task, error) {
	cutoff := e.now().UTC().Add(-threshold).Format(time.RFC3339)
	return e.Repo.TimedOutTasks(ctx, projectID, cutoff)
}

// TaskDepth counts ancestor hops by walking parent links until nil. A
// revisited id or more than maxDepthHops hops is reported as IntegrityError.
func (e Engine) TaskDepth(ctx context.Context, taskID string) (int, error) {
	visited := map[string]bool{taskID: true}
	depth := 0
	cur, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return 0, err
	}
	for cur.ParentTaskID != nil {
		parentID := *cur.ParentTaskID
		if visited[parentID] {
			return 0, IntegrityError{Reason: fmt.Sprintf("parent cycle through task %s", parentID)}
		}
		visited[parentID] = true
		depth++
		if depth > maxDepthHops {
			return 0, IntegrityError{Reason: fmt.Sprintf("parent chain for task %s exceeds %d hops", taskID, maxDepthHops)}
		}
		cur, err = e.Repo.GetTask(ctx, parentID)
		if err != nil {
			return 0, err
		}
	}
	return depth, nil
}

// BreakdownTask replaces a task with subtasks. The original is cancelled,
// each subtask links back through parent_task_id with a fresh sequence, and
// a replaced entry is appended to the activity log. Refused with
// DepthExceededError when the task already sits at the project's maximum
// breakdown depth.
func (e Engine) BreakdownTask(ctx context.Context, taskID string, drafts []domain.TaskDraft) ([]domain.Task, error) {
	task, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status == domain.StatusDone || task.Status == domain.StatusCancelled {
		return nil, ConflictError{Reason: "task is already " + task.Status}
	}
	if len(drafts) < 2 {
		return nil, ValidationError{Field: "subtasks", Reason: "breakdown needs at least 2 subtasks"}
	}
	for _, d := range drafts {
		if d.Title == "" {
			return nil, ValidationError{Field: "subtasks", Reason: "subtask title must not be empty"}
		}
		if d.ComplexityScore != 0 && (d.ComplexityScore < 1 || d.ComplexityScore > 10) {
			return nil, ValidationError{Field: "complexity_score", Reason: "must be in [1,10]"}
		}
	}
	maxDepth := e.maxBreakdownDepth(ctx, task.ProjectID)
	depth, err := e.TaskDepth(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if depth >= maxDepth {
		return nil, DepthExceededError{TaskID: taskID, Depth: depth, Max: maxDepth}
	}
	return e.replaceWithSubtasks(ctx, task, drafts, fmt.Sprintf("broken down into %d subtasks", len(drafts)))
}

// SplitFullstack splits a todo fullstack task into data, backend and
// frontend subtasks and cancels the original.
func (e Engine) SplitFullstack(ctx context.Context, taskID string) ([]domain.Task, error) {
	task, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != domain.StatusTodo {
		return nil, ConflictError{Reason: "only todo tasks can be split"}
	}
	if task.Layer == nil || *task.Layer != domain.LayerFullstack {
		return nil, ValidationError{Field: "layer", Reason: "task is not fullstack"}
	}
	drafts := []domain.TaskDraft{
		{Title: task.Title + " (data)", Description: task.Description, Type: task.Type, Layer: domain.LayerData},
		{Title: task.Title + " (backend)", Description: task.Description, Type: task.Type, Layer: domain.LayerBackend},
		{Title: task.Title + " (frontend)", Description: task.Description, Type: task.Type, Layer: domain.LayerFrontend},
	}
	return e.replaceWithSubtasks(ctx, task, drafts, "fullstack task split by layer")
}

func (e Engine) replaceWithSubtasks(ctx context.Context, task domain.Task, drafts []domain.TaskDraft, reasoning string) ([]domain.Task, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	seq, err := e.Repo.MaxSequence(ctx, tx, task.ProjectID)
	if err != nil {
		return nil, err
	}
	now := e.nowString()
	subtasks := make([]domain.Task, 0, len(drafts))
	for i, d := range drafts {
		next := seq + 1 + i
		sub := domain.Task{
			ID:        uuid.NewString(),
			ProjectID: task.ProjectID,
			Title:     d.Title,
			Status:    domain.StatusTodo,
			Source:    task.Source,
			Type:      task.Type,
			Sequence:  &next,
			CreatedAt: now,
			UpdatedAt: now,
		}
		parentID := task.ID
		sub.ParentTaskID = &parentID
		if d.Type != "" {
			sub.Type = d.Type
		}
		if d.Description != "" {
			sub.Description = d.Description
		}
		switch {
		case d.Layer != "":
			layer := d.Layer
			sub.Layer = &layer
		case task.Layer != nil:
			layer := *task.Layer
			sub.Layer = &layer
		}
		if d.ComplexityScore != 0 {
			score := d.ComplexityScore
			sub.ComplexityScore = &score
		}
		if d.TestingCriteria != "" {
			criteria := d.TestingCriteria
			sub.TestingCriteria = &criteria
		}
		if err := e.Repo.InsertTask(ctx, tx, sub); err != nil {
			return nil, err
		}
		subtasks = append(subtasks, sub)
	}
	if err := e.Repo.SetTaskStatus(ctx, tx, task.ID, domain.StatusCancelled, nil, now); err != nil {
		return nil, err
	}
	taskID := task.ID
	if err := e.Audit.AgentAction(ctx, tx, task.ProjectID, &taskID, domain.AgentReplaced, reasoning); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return subtasks, nil
}

func (e Engine) maxBreakdownDepth(ctx context.Context, projectID string) int {
	if settings, err := e.Repo.GetAgentSettings(ctx, projectID); err == nil {
		return settings.MaxBreakdownDepth
	}
	if e.Config != nil {
		return e.Config.Breakdown.MaxDepth
	}
	return 1
}

// SweepTimeouts cancels stalled tasks. Each timed-out task is cancelled, its
// workspace archived and a timeout entry appended to the activity log.
func (e Engine) SweepTimeouts(ctx context.Context, projectID string, threshold time.Duration) ([]domain.Task, error) {
	stalled, err := e.FindTimedOut(ctx, projectID, threshold)
	if err != nil {
		return nil, err
	}
	for _, task := range stalled {
		if err := e.escalateTimeout(ctx, task, threshold); err != nil {
			return nil, err
		}
	}
	return stalled, nil
}

func (e Engine) escalateTimeout(ctx context.Context, task domain.Task, threshold time.Duration) error {
	ws, wsErr := e.Repo.WorkspaceForTask(ctx, task.ID)
	if wsErr != nil && !errors.Is(wsErr, repo.ErrNotFound) {
		return wsErr
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := e.nowString()
	if err := e.Repo.SetTaskStatus(ctx, tx, task.ID, domain.StatusCancelled, nil, now); err != nil {
		return err
	}
	if wsErr == nil {
		if err := e.Repo.ArchiveWorkspace(ctx, tx, ws.ID); err != nil {
			return err
		}
	}
	taskID := task.ID
	reasoning := fmt.Sprintf("task stalled in %s longer than %s", task.Status, threshold)
	if err := e.Audit.AgentAction(ctx, tx, task.ProjectID, &taskID, domain.AgentTimeout, reasoning); err != nil {
		return err
	}
	return tx.Commit()
}
