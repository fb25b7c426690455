package engine_test

import (
	"errors"
	"testing"

	"autoboard/internal/domain"
	"autoboard/internal/engine"
)

func TestTickDisabledSkipsWithoutLogging(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.Decider = fakeDecider{pickFirst: true}

	result, err := env.Engine.Tick(env.Ctx, "proj-1")
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if result.Action != domain.AgentSkipped {
		t.Fatalf("expected skipped, got %+v", result)
	}
	logs, _ := env.Engine.Repo.ListAgentActivity(env.Ctx, "proj-1", 10)
	if len(logs) != 0 {
		t.Fatalf("periodic tick on a disabled project must not log, got %+v", logs)
	}
}

func TestTriggerDisabledLogsSkipped(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.Decider = fakeDecider{pickFirst: true}

	result, err := env.Engine.Trigger(env.Ctx, "proj-1")
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if result.Action != domain.AgentSkipped {
		t.Fatalf("expected skipped, got %+v", result)
	}
	logs, _ := env.Engine.Repo.ListAgentActivity(env.Ctx, "proj-1", 10)
	if len(logs) != 1 || logs[0].Action != domain.AgentSkipped {
		t.Fatalf("manual trigger should log the skip, got %+v", logs)
	}
}

func TestTriggerSelectsTaskInSequenceOrder(t *testing.T) {
	env := newTestEnv(t)
	env.enableAgent(t)
	env.Engine.Decider = fakeDecider{pickFirst: true}

	// Sequenced tasks come before unsequenced ones; lower sequence first.
	late := env.createTask(t, engine.TaskCreateOptions{Title: "later"})
	if err := env.Engine.SetComplexity(env.Ctx, late.ID, 2); err != nil {
		t.Fatalf("set complexity: %v", err)
	}
	seqTwo, seqOne := 2, 1
	for _, pair := range []struct {
		title string
		seq   *int
	}{{"second", &seqTwo}, {"first", &seqOne}} {
		task := env.createTask(t, engine.TaskCreateOptions{Title: pair.title})
		if _, err := env.Engine.DB.ExecContext(env.Ctx, `UPDATE tasks SET sequence=? WHERE id=?`, *pair.seq, task.ID); err != nil {
			t.Fatalf("set sequence: %v", err)
		}
	}

	result, err := env.Engine.Trigger(env.Ctx, "proj-1")
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if result.Action != domain.AgentSelected || result.TaskID == nil {
		t.Fatalf("expected selection, got %+v", result)
	}
	chosen, _ := env.Engine.Repo.GetTask(env.Ctx, *result.TaskID)
	if chosen.Title != "first" {
		t.Fatalf("expected lowest sequence first, got %q", chosen.Title)
	}
	if chosen.Status != domain.StatusInProgress {
		t.Fatalf("selected task should be inprogress, got %s", chosen.Status)
	}
	logs, _ := env.Engine.Repo.ListAgentActivity(env.Ctx, "proj-1", 10)
	if len(logs) != 1 || logs[0].Action != domain.AgentSelected {
		t.Fatalf("expected one selected entry, got %+v", logs)
	}
}

func TestSchedulerPrefersArchitectureTasks(t *testing.T) {
	env := newTestEnv(t)
	env.enableAgent(t)
	env.Engine.Decider = fakeDecider{pickFirst: true}

	impl := env.createTask(t, engine.TaskCreateOptions{Title: "wire endpoint"})
	arch := env.createTask(t, engine.TaskCreateOptions{Title: "design schema", Type: domain.TypeArchitecture})
	// Sequence order alone would pick the implementation task.
	for id, seq := range map[string]int{impl.ID: 0, arch.ID: 1} {
		if _, err := env.Engine.DB.ExecContext(env.Ctx, `UPDATE tasks SET sequence=? WHERE id=?`, seq, id); err != nil {
			t.Fatalf("set sequence: %v", err)
		}
	}

	result, err := env.Engine.Trigger(env.Ctx, "proj-1")
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if result.Action != domain.AgentSelected || result.TaskID == nil || *result.TaskID != arch.ID {
		t.Fatalf("architecture work should come first, got %+v", result)
	}
}

func TestTriggerSkipsWhenNoEligibleTasks(t *testing.T) {
	env := newTestEnv(t)
	env.enableAgent(t)
	env.Engine.Decider = fakeDecider{pickFirst: true}

	result, err := env.Engine.Trigger(env.Ctx, "proj-1")
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if result.Action != domain.AgentSkipped || result.Reasoning != "no eligible tasks" {
		t.Fatalf("expected no-eligible skip, got %+v", result)
	}
}

func TestSchedulerSplitsFullstackBeforeSelection(t *testing.T) {
	env := newTestEnv(t)
	env.enableAgent(t)
	env.Engine.Decider = fakeDecider{pickFirst: true}

	fullstack := env.createTask(t, engine.TaskCreateOptions{Title: "profile", Layer: domain.LayerFullstack})
	result, err := env.Engine.Trigger(env.Ctx, "proj-1")
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if result.Action != domain.AgentSelected || result.TaskID == nil {
		t.Fatalf("expected selection, got %+v", result)
	}

	original, _ := env.Engine.Repo.GetTask(env.Ctx, fullstack.ID)
	if original.Status != domain.StatusCancelled {
		t.Fatalf("fullstack task should be split away, got %s", original.Status)
	}
	chosen, _ := env.Engine.Repo.GetTask(env.Ctx, *result.TaskID)
	if chosen.ParentTaskID == nil || *chosen.ParentTaskID != fullstack.ID {
		t.Fatalf("selected task should be a layer subtask, got %+v", chosen)
	}
	if chosen.Layer == nil || *chosen.Layer == domain.LayerFullstack {
		t.Fatalf("subtask must carry a single layer, got %+v", chosen.Layer)
	}
}

func TestSchedulerPreventBreakdownStopsSplit(t *testing.T) {
	env := newTestEnv(t)
	env.enableAgent(t)
	env.Engine.Decider = fakeDecider{pickFirst: true}

	task := env.createTask(t, engine.TaskCreateOptions{Title: "keep whole", Layer: domain.LayerFullstack, PreventBreakdown: true})
	result, err := env.Engine.Trigger(env.Ctx, "proj-1")
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if result.Action != domain.AgentSelected || *result.TaskID != task.ID {
		t.Fatalf("marked task should be selected intact, got %+v", result)
	}
}

func TestSchedulerBreaksDownComplexTask(t *testing.T) {
	env := newTestEnv(t)
	env.enableAgent(t)
	env.Engine.Decider = fakeDecider{pickFirst: true}
	env.Engine.Sizer = fakeSizer{score: 9, drafts: []domain.TaskDraft{{Title: "half one"}, {Title: "half two"}}}

	task := env.createTask(t, engine.TaskCreateOptions{Title: "monolith", ComplexityScore: 8})
	result, err := env.Engine.Trigger(env.Ctx, "proj-1")
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if result.Action != domain.AgentReplaced || result.TaskID == nil || *result.TaskID != task.ID {
		t.Fatalf("expected replacement, got %+v", result)
	}

	original, _ := env.Engine.Repo.GetTask(env.Ctx, task.ID)
	if original.Status != domain.StatusCancelled {
		t.Fatalf("replaced task should be cancelled, got %s", original.Status)
	}
	// The stored score (8) wins over the sizer's estimate in the report.
	if result.Reasoning == "" {
		t.Fatalf("replacement should explain itself")
	}
}

func TestSchedulerSelectsBelowThreshold(t *testing.T) {
	env := newTestEnv(t)
	env.enableAgent(t)
	env.Engine.Decider = fakeDecider{pickFirst: true}
	env.Engine.Sizer = fakeSizer{score: 3, drafts: []domain.TaskDraft{{Title: "a"}, {Title: "b"}}}

	task := env.createTask(t, engine.TaskCreateOptions{Title: "small", ComplexityScore: 3})
	result, err := env.Engine.Trigger(env.Ctx, "proj-1")
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if result.Action != domain.AgentSelected || *result.TaskID != task.ID {
		t.Fatalf("small task should be selected, got %+v", result)
	}
}

func TestIntegrationTaskRunsAlone(t *testing.T) {
	env := newTestEnv(t)
	env.enableAgent(t)
	env.Engine.Decider = fakeDecider{pickFirst: true}

	active := env.createTask(t, engine.TaskCreateOptions{Title: "busy", Layer: domain.LayerBackend})
	env.mustStatus(t, active.ID, domain.StatusInProgress)
	env.createTask(t, engine.TaskCreateOptions{Title: "integrate all", Type: domain.TypeIntegration})

	result, err := env.Engine.Trigger(env.Ctx, "proj-1")
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if result.Action != domain.AgentSkipped {
		t.Fatalf("integration must wait for a quiet board, got %+v", result)
	}

	// With an integration task active, nothing else is eligible either.
	env.mustStatus(t, active.ID, domain.StatusDone)
	integration := env.createTask(t, engine.TaskCreateOptions{Title: "integration running", Type: domain.TypeIntegration})
	env.mustStatus(t, integration.ID, domain.StatusInProgress)
	env.createTask(t, engine.TaskCreateOptions{Title: "blocked", Layer: domain.LayerData})

	result, err = env.Engine.Trigger(env.Ctx, "proj-1")
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if result.Action != domain.AgentSkipped {
		t.Fatalf("active integration blocks everything, got %+v", result)
	}
}

func TestLayerConcurrencyBounds(t *testing.T) {
	env := newTestEnv(t)
	env.enableAgent(t)
	env.Engine.Decider = fakeDecider{pickFirst: true}

	// Same layer as an active task is excluded.
	active := env.createTask(t, engine.TaskCreateOptions{Title: "backend busy", Layer: domain.LayerBackend})
	env.mustStatus(t, active.ID, domain.StatusInProgress)
	env.createTask(t, engine.TaskCreateOptions{Title: "backend waiting", Layer: domain.LayerBackend})

	result, err := env.Engine.Trigger(env.Ctx, "proj-1")
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if result.Action != domain.AgentSkipped {
		t.Fatalf("same-layer todo must wait, got %+v", result)
	}

	// Three active layers saturate the board for layered work.
	otherActive := make([]string, 0, 2)
	for _, layer := range []string{domain.LayerData, domain.LayerFrontend} {
		task := env.createTask(t, engine.TaskCreateOptions{Title: "busy " + layer, Layer: layer})
		env.mustStatus(t, task.ID, domain.StatusInProgress)
		otherActive = append(otherActive, task.ID)
	}
	env.createTask(t, engine.TaskCreateOptions{Title: "devops waiting", Layer: domain.LayerDevops})
	result, err = env.Engine.Trigger(env.Ctx, "proj-1")
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if result.Action != domain.AgentSkipped {
		t.Fatalf("fourth layer must wait, got %+v", result)
	}

	// Running alongside active work requires a layer; layerless tasks
	// wait for a quiet board.
	env.createTask(t, engine.TaskCreateOptions{Title: "layerless"})
	result, err = env.Engine.Trigger(env.Ctx, "proj-1")
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if result.Action != domain.AgentSkipped {
		t.Fatalf("layerless task must wait while other tasks are active, got %+v", result)
	}

	// Once the board is quiet again everything is eligible, layerless
	// included.
	for _, id := range append(otherActive, active.ID) {
		env.mustStatus(t, id, domain.StatusDone)
	}
	result, err = env.Engine.Trigger(env.Ctx, "proj-1")
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if result.Action != domain.AgentSelected {
		t.Fatalf("quiet board should select a task, got %+v", result)
	}
}

func TestTriggerConflictWhileBusy(t *testing.T) {
	env := newTestEnv(t)
	env.enableAgent(t)
	env.createTask(t, engine.TaskCreateOptions{Title: "work"})

	started := make(chan struct{})
	release := make(chan struct{})
	env.Engine.Decider = fakeDecider{pickFirst: true, started: started, release: release}

	done := make(chan error, 1)
	go func() {
		_, err := env.Engine.Trigger(env.Ctx, "proj-1")
		done <- err
	}()
	<-started

	_, err := env.Engine.Trigger(env.Ctx, "proj-1")
	var conflict engine.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError while a pass is running, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first trigger: %v", err)
	}
}

func TestOverlappingTickIsDropped(t *testing.T) {
	env := newTestEnv(t)
	env.enableAgent(t)
	env.createTask(t, engine.TaskCreateOptions{Title: "work"})

	started := make(chan struct{})
	release := make(chan struct{})
	env.Engine.Decider = fakeDecider{pickFirst: true, started: started, release: release}

	done := make(chan error, 1)
	go func() {
		_, err := env.Engine.Tick(env.Ctx, "proj-1")
		done <- err
	}()
	<-started

	result, err := env.Engine.Tick(env.Ctx, "proj-1")
	if err != nil {
		t.Fatalf("overlapping tick should not error: %v", err)
	}
	if result.Action != domain.AgentSkipped {
		t.Fatalf("overlapping tick should be dropped, got %+v", result)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first tick: %v", err)
	}
}

func TestScheduleLogsDeciderFailure(t *testing.T) {
	env := newTestEnv(t)
	env.enableAgent(t)
	env.Engine.Decider = fakeDecider{err: errors.New("agent offline")}
	env.createTask(t, engine.TaskCreateOptions{Title: "work"})

	result, err := env.Engine.Trigger(env.Ctx, "proj-1")
	if err != nil {
		t.Fatalf("decider failures are captured, not returned: %v", err)
	}
	if result.Action != domain.AgentError {
		t.Fatalf("expected error outcome, got %+v", result)
	}
	logs, _ := env.Engine.Repo.ListAgentActivity(env.Ctx, "proj-1", 10)
	if len(logs) != 1 || logs[0].Action != domain.AgentError {
		t.Fatalf("expected one error entry, got %+v", logs)
	}
}

func TestScheduleRejectsNonCandidateDecision(t *testing.T) {
	env := newTestEnv(t)
	env.enableAgent(t)
	env.Engine.Decider = fakeDecider{taskID: "no-such-task", reasoning: "hallucinated"}
	env.createTask(t, engine.TaskCreateOptions{Title: "work"})

	result, err := env.Engine.Trigger(env.Ctx, "proj-1")
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if result.Action != domain.AgentError {
		t.Fatalf("a decision outside the candidate list is an error, got %+v", result)
	}
}
