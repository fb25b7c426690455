package engine

import (
	"context"
	"errors"
	"fmt"

	"autoboard/internal/domain"
)

// TickResult is the outcome of one scheduler pass.
type TickResult struct {
	Action    string  `json:"action"`
	TaskID    *string `json:"task_id,omitempty"`
	Reasoning string  `json:"reasoning,omitempty"`
}

// Tick runs one periodic scheduler pass for a project. Ticks for the same
// project never overlap: a tick due while another is running is dropped, not
// queued. A disabled project returns skipped without logging.
func (e Engine) Tick(ctx context.Context, projectID string) (TickResult, error) {
	if !e.tickLocks.tryAcquire(projectID) {
		return TickResult{Action: domain.AgentSkipped, Reasoning: "tick already in flight"}, nil
	}
	defer e.tickLocks.release(projectID)

	settings, err := e.Repo.GetAgentSettings(ctx, projectID)
	if err != nil {
		return TickResult{}, err
	}
	if !settings.Enabled {
		return TickResult{Action: domain.AgentSkipped, Reasoning: "automation disabled"}, nil
	}
	return e.schedule(ctx, projectID, settings)
}

// Trigger runs one manual scheduler pass. Unlike periodic ticks, a manual
// trigger on a disabled project still appends a skipped log so the caller
// can see why nothing happened.
func (e Engine) Trigger(ctx context.Context, projectID string) (TickResult, error) {
	if !e.tickLocks.tryAcquire(projectID) {
		return TickResult{}, ConflictError{Reason: "scheduler pass already in flight for project"}
	}
	defer e.tickLocks.release(projectID)

	settings, err := e.Repo.GetAgentSettings(ctx, projectID)
	if err != nil {
		return TickResult{}, err
	}
	if !settings.Enabled {
		reasoning := "automation disabled"
		if err := e.Audit.AgentAction(ctx, nil, projectID, nil, domain.AgentSkipped, reasoning); err != nil {
			return TickResult{}, err
		}
		return TickResult{Action: domain.AgentSkipped, Reasoning: reasoning}, nil
	}
	return e.schedule(ctx, projectID, settings)
}

func (e Engine) schedule(ctx context.Context, projectID string, settings domain.AgentSettings) (TickResult, error) {
	if e.Decider == nil {
		return TickResult{}, errors.New("decider not configured")
	}

	// Fullstack todo tasks are split by layer before selection so the
	// candidate list only carries schedulable work.
	if err := e.splitFullstackTodos(ctx, projectID); err != nil {
		return TickResult{}, err
	}

	candidates, err := e.eligibleTasks(ctx, projectID)
	if err != nil {
		return TickResult{}, err
	}
	if len(candidates) == 0 {
		reasoning := "no eligible tasks"
		if err := e.Audit.AgentAction(ctx, nil, projectID, nil, domain.AgentSkipped, reasoning); err != nil {
			return TickResult{}, err
		}
		return TickResult{Action: domain.AgentSkipped, Reasoning: reasoning}, nil
	}

	taskID, reasoning, err := e.Decider.Decide(ctx, candidates)
	if err != nil {
		msg := fmt.Sprintf("decision failed: %v", err)
		if err := e.Audit.AgentAction(ctx, nil, projectID, nil, domain.AgentError, msg); err != nil {
			return TickResult{}, err
		}
		return TickResult{Action: domain.AgentError, Reasoning: msg}, nil
	}
	if taskID == "" {
		if reasoning == "" {
			reasoning = "agent declined to pick a task"
		}
		if err := e.Audit.AgentAction(ctx, nil, projectID, nil, domain.AgentSkipped, reasoning); err != nil {
			return TickResult{}, err
		}
		return TickResult{Action: domain.AgentSkipped, Reasoning: reasoning}, nil
	}
	chosen, ok := findTask(candidates, taskID)
	if !ok {
		msg := fmt.Sprintf("decision returned task %s which is not a candidate", taskID)
		if err := e.Audit.AgentAction(ctx, nil, projectID, nil, domain.AgentError, msg); err != nil {
			return TickResult{}, err
		}
		return TickResult{Action: domain.AgentError, Reasoning: msg}, nil
	}

	// Oversized tasks are replaced by subtasks instead of being started.
	if replaced, result, err := e.maybeBreakdown(ctx, settings, chosen); err != nil {
		return TickResult{}, err
	} else if replaced {
		return result, nil
	}

	if _, err := e.SetTaskStatus(ctx, chosen.ID, domain.StatusInProgress); err != nil {
		return TickResult{}, err
	}
	if err := e.Audit.AgentAction(ctx, nil, projectID, &chosen.ID, domain.AgentSelected, reasoning); err != nil {
		return TickResult{}, err
	}
	return TickResult{Action: domain.AgentSelected, TaskID: &chosen.ID, Reasoning: reasoning}, nil
}

// eligibleTasks builds the candidate list for selection: todo tasks in
// execution order, constrained by what is already active. An integration
// task only runs alone, and work stays within a bounded set of concurrently
// active layers.
func (e Engine) eligibleTasks(ctx context.Context, projectID string) ([]domain.Task, error) {
	active, err := e.Repo.ActiveTasks(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for _, t := range active {
		if t.Type == domain.TypeIntegration {
			return nil, nil
		}
	}
	activeLayers := map[string]bool{}
	for _, t := range active {
		if t.Layer != nil {
			activeLayers[*t.Layer] = true
		}
	}
	maxLayers := 3
	if e.Config != nil {
		maxLayers = e.Config.Scheduler.MaxActiveLayers
	}

	todos, err := e.Repo.TodoTasks(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return architectureFirst(todos), nil
	}

	var candidates []domain.Task
	for _, t := range todos {
		if t.Type == domain.TypeIntegration {
			// Integration tasks wait until the board is quiet.
			continue
		}
		// Running alongside other work requires a layer to partition by.
		if t.Layer == nil {
			continue
		}
		if activeLayers[*t.Layer] {
			continue
		}
		if len(activeLayers) >= maxLayers {
			continue
		}
		candidates = append(candidates, t)
	}
	return architectureFirst(candidates), nil
}

// architectureFirst moves architecture tasks ahead of the rest, keeping the
// execution order within each group.
func architectureFirst(tasks []domain.Task) []domain.Task {
	if len(tasks) < 2 {
		return tasks
	}
	ordered := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Type == domain.TypeArchitecture {
			ordered = append(ordered, t)
		}
	}
	if len(ordered) == 0 {
		return tasks
	}
	for _, t := range tasks {
		if t.Type != domain.TypeArchitecture {
			ordered = append(ordered, t)
		}
	}
	return ordered
}

func (e Engine) splitFullstackTodos(ctx context.Context, projectID string) error {
	todos, err := e.Repo.TodoTasks(ctx, projectID)
	if err != nil {
		return err
	}
	for _, t := range todos {
		if t.PreventBreakdown || t.Layer == nil || *t.Layer != domain.LayerFullstack {
			continue
		}
		if _, err := e.SplitFullstack(ctx, t.ID); err != nil {
			return err
		}
	}
	return nil
}

// maybeBreakdown asks the sizer whether the chosen task is too complex to
// start. When the score clears the threshold and the sizer proposes enough
// subtasks, the task is replaced instead of selected. Sizer failures fall
// back to plain selection.
func (e Engine) maybeBreakdown(ctx context.Context, settings domain.AgentSettings, chosen domain.Task) (bool, TickResult, error) {
	if e.Sizer == nil || chosen.PreventBreakdown || chosen.ParentTaskID != nil {
		return false, TickResult{}, nil
	}
	threshold := 7
	maxSubtasks := 4
	if e.Config != nil {
		threshold = e.Config.Breakdown.ComplexityThreshold
		maxSubtasks = e.Config.Breakdown.MaxSubtasks
	}
	score := 0
	var drafts []domain.TaskDraft
	if chosen.ComplexityScore != nil {
		score = *chosen.ComplexityScore
	}
	sized, sizedDrafts, err := e.Sizer.Score(ctx, chosen, maxSubtasks)
	if err == nil {
		if score == 0 {
			score = sized
		}
		drafts = sizedDrafts
	}
	if score < threshold || len(drafts) < 2 {
		return false, TickResult{}, nil
	}
	if _, err := e.BreakdownTask(ctx, chosen.ID, drafts); err != nil {
		var depth DepthExceededError
		if errors.As(err, &depth) {
			return false, TickResult{}, nil
		}
		return false, TickResult{}, err
	}
	return true, TickResult{
		Action:    domain.AgentReplaced,
		TaskID:    &chosen.ID,
		Reasoning: fmt.Sprintf("complexity %d over threshold %d; replaced by %d subtasks", score, threshold, len(drafts)),
	}, nil
}

func findTask(tasks []domain.Task, id string) (domain.Task, bool) {
	for _, t := range tasks {
		if t.ID == id {
			return t, true
		}
	}
	return domain.Task{}, false
}
