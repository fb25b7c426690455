package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"autoboard/internal/domain"
	"autoboard/internal/repo"
)

// SubmitRequirements records a new analysis request for a project. At most
// one request per project may be in flight; a second submission while one is
// pending, analyzing or generating is rejected with ConflictError.
func (e Engine) SubmitRequirements(ctx context.Context, projectID, raw, prd string) (domain.RequirementsRequest, error) {
	if strings.TrimSpace(raw) == "" {
		return domain.RequirementsRequest{}, ValidationError{Field: "raw_requirements", Reason: "must not be empty"}
	}
	if _, err := e.Repo.GetProject(ctx, projectID); err != nil {
		return domain.RequirementsRequest{}, err
	}

	// The in-flight check and the insert below never run concurrently for
	// the same project; a simultaneous submission is a conflict.
	if !e.submitLocks.tryAcquire(projectID) {
		return domain.RequirementsRequest{}, ConflictError{Reason: "requirements analysis already in flight for project"}
	}
	defer e.submitLocks.release(projectID)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.RequirementsRequest{}, err
	}
	defer tx.Rollback()

	if _, err := e.Repo.InFlightRequirementsRequest(ctx, tx, projectID); err == nil {
		return domain.RequirementsRequest{}, ConflictError{Reason: "requirements analysis already in flight for project"}
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.RequirementsRequest{}, err
	}

	now := e.nowString()
	req := domain.RequirementsRequest{
		ID:               uuid.NewString(),
		ProjectID:        projectID,
		RawRequirements:  raw,
		GenerationStatus: domain.GenerationPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if prd != "" {
		req.PRDContent = &prd
	}
	if err := e.Repo.InsertRequirementsRequest(ctx, tx, req); err != nil {
		return domain.RequirementsRequest{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.RequirementsRequest{}, err
	}
	return req, nil
}

// RunAnalysis drives a pending request through analyzing and generating to a
// terminal state. Internal failures mark the request failed with a readable
// cause; tasks already inserted by a failed generation are kept so the set
// can be continued by hand.
func (e Engine) RunAnalysis(ctx context.Context, requestID string) (domain.RequirementsRequest, error) {
	req, err := e.Repo.GetRequirementsRequest(ctx, requestID)
	if err != nil {
		return domain.RequirementsRequest{}, err
	}
	if req.GenerationStatus != domain.GenerationPending {
		return domain.RequirementsRequest{}, ConflictError{Reason: fmt.Sprintf("request %s is %s, not pending", req.ID, req.GenerationStatus)}
	}
	if e.Extractor == nil || e.Generator == nil {
		return domain.RequirementsRequest{}, errors.New("analyzer collaborators not configured")
	}

	if err := e.Repo.SetRequirementsStatus(ctx, req.ID, domain.GenerationAnalyzing, nil, e.nowString()); err != nil {
		return domain.RequirementsRequest{}, err
	}

	result, err := e.Extractor.Extract(ctx, req.RawRequirements, req.PRDContent)
	if err != nil {
		return e.failRequest(ctx, req.ID, fmt.Sprintf("feature extraction failed: %v", err))
	}
	if len(result.Features) == 0 {
		return e.failRequest(ctx, req.ID, "feature extraction produced no features")
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return e.failRequest(ctx, req.ID, fmt.Sprintf("encode analysis result: %v", err))
	}
	if err := e.Repo.SetRequirementsAnalysis(ctx, req.ID, string(resultJSON), e.nowString()); err != nil {
		return domain.RequirementsRequest{}, err
	}

	if err := e.Repo.SetRequirementsStatus(ctx, req.ID, domain.GenerationRunning, nil, e.nowString()); err != nil {
		return domain.RequirementsRequest{}, err
	}

	drafts, err := e.Generator.Generate(ctx, result)
	if err != nil {
		return e.failRequest(ctx, req.ID, fmt.Sprintf("task generation failed: %v", err))
	}
	if len(drafts) == 0 {
		return e.failRequest(ctx, req.ID, "task generation produced no tasks")
	}

	// Each draft commits on its own so a mid-generation failure keeps the
	// partial task set.
	for i, draft := range drafts {
		if err := e.insertGeneratedTask(ctx, req.ProjectID, draft); err != nil {
			return e.failRequest(ctx, req.ID, fmt.Sprintf("insert generated task %d: %v", i, err))
		}
	}

	if err := e.Repo.SetRequirementsStatus(ctx, req.ID, domain.GenerationCompleted, nil, e.nowString()); err != nil {
		return domain.RequirementsRequest{}, err
	}
	return e.Repo.GetRequirementsRequest(ctx, req.ID)
}

func (e Engine) failRequest(ctx context.Context, requestID, cause string) (domain.RequirementsRequest, error) {
	if err := e.Repo.SetRequirementsStatus(ctx, requestID, domain.GenerationFailed, &cause, e.nowString()); err != nil {
		return domain.RequirementsRequest{}, err
	}
	return e.Repo.GetRequirementsRequest(ctx, requestID)
}

func (e Engine) insertGeneratedTask(ctx context.Context, projectID string, draft domain.TaskDraft) error {
	if draft.ComplexityScore != 0 && (draft.ComplexityScore < 1 || draft.ComplexityScore > 10) {
		return ValidationError{Field: "complexity_score", Reason: "must be in [1,10]"}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	seq, err := e.Repo.MaxSequence(ctx, tx, projectID)
	if err != nil {
		return err
	}
	next := seq + 1
	now := e.nowString()
	t := domain.Task{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Title:     draft.Title,
		Status:    domain.StatusTodo,
		Source:    domain.SourceAIGenerated,
		Type:      draft.Type,
		Sequence:  &next,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if t.Type == "" {
		t.Type = domain.TypeImplementation
	}
	if draft.Description != "" {
		t.Description = draft.Description
	}
	if draft.Layer != "" {
		layer := draft.Layer
		t.Layer = &layer
	}
	if draft.ComplexityScore != 0 {
		score := draft.ComplexityScore
		t.ComplexityScore = &score
	}
	if draft.TestingCriteria != "" {
		criteria := draft.TestingCriteria
		t.TestingCriteria = &criteria
	}
	if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
		return err
	}
	return tx.Commit()
}

// RequirementsStatus returns the latest request for a project together with
// the count of tasks generated so far. Cheap and side-effect-free for
// polling.
func (e Engine) RequirementsStatus(ctx context.Context, projectID string) (domain.RequirementsRequest, int, error) {
	req, err := e.Repo.LatestRequirementsRequest(ctx, projectID)
	if err != nil {
		return domain.RequirementsRequest{}, 0, err
	}
	count, err := e.Repo.CountGeneratedTasks(ctx, projectID)
	if err != nil {
		return domain.RequirementsRequest{}, 0, err
	}
	return req, count, nil
}

// DeleteRequirements removes a project's requirements requests. Generated
// tasks are preserved unless deleteTasks is set.
func (e Engine) DeleteRequirements(ctx context.Context, projectID string, deleteTasks bool) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	n, err := e.Repo.DeleteRequirementsRequests(ctx, tx, projectID)
	if err != nil {
		return err
	}
	if n == 0 {
		return repo.ErrNotFound
	}
	if deleteTasks {
		if _, err := e.Repo.DeleteGeneratedTasks(ctx, tx, projectID); err != nil {
			return err
		}
	}
	return tx.Commit()
}
