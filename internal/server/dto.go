package server

import (
	"encoding/json"

	"autoboard/internal/domain"
)

// Request payloads

type CreateProjectRequest struct {
	ID   *string `json:"id,omitempty"`
	Name string  `json:"name"`
}

type SubmitRequirementsRequest struct {
	RawRequirements string  `json:"raw_requirements"`
	PRDContent      *string `json:"prd_content,omitempty"`
}

type CreateTaskRequest struct {
	Title            string  `json:"title"`
	Description      *string `json:"description,omitempty"`
	Type             string  `json:"task_type,omitempty" enum:"architecture,mock,implementation,integration"`
	Layer            *string `json:"layer,omitempty" enum:"data,backend,frontend,fullstack,devops,testing"`
	ComplexityScore  *int    `json:"complexity_score,omitempty"`
	ParentTaskID     *string `json:"parent_task_id,omitempty"`
	TestingCriteria  *string `json:"testing_criteria,omitempty"`
	PreventBreakdown bool    `json:"prevent_breakdown,omitempty"`
}

type SetTaskStatusRequest struct {
	Status string `json:"status" enum:"todo,inprogress,inreview,done,cancelled"`
}

type BreakdownRequest struct {
	Subtasks []domain.TaskDraft `json:"subtasks,omitempty"`
}

type UpdateAgentSettingsRequest struct {
	Enabled           *bool `json:"enabled,omitempty"`
	IntervalSeconds   *int  `json:"interval_seconds,omitempty"`
	MaxBreakdownDepth *int  `json:"max_breakdown_depth,omitempty"`
}

type UpdateReviewSettingsRequest struct {
	Enabled          *bool `json:"enabled,omitempty"`
	AutoMergeEnabled *bool `json:"auto_merge_enabled,omitempty"`
	RunTestsEnabled  *bool `json:"run_tests_enabled,omitempty"`
}

type RegisterWorkspaceRequest struct {
	Branch       string `json:"branch"`
	Path         string `json:"path"`
	TargetBranch string `json:"target_branch,omitempty"`
}

// Response payloads

// RequirementsStatusResponse is the poll-friendly generation state.
type RequirementsStatusResponse struct {
	ID               string                 `json:"id"`
	ProjectID        string                 `json:"project_id"`
	GenerationStatus string                 `json:"generation_status" enum:"pending,analyzing,generating,completed,failed"`
	AnalysisResult   *domain.AnalysisResult `json:"analysis_result,omitempty"`
	TasksGenerated   int                    `json:"tasks_generated"`
	ErrorMessage     *string                `json:"error_message,omitempty"`
	CreatedAt        string                 `json:"created_at" format:"date-time"`
	UpdatedAt        string                 `json:"updated_at" format:"date-time"`
}

func requirementsStatusResponse(req domain.RequirementsRequest, tasksGenerated int) RequirementsStatusResponse {
	resp := RequirementsStatusResponse{
		ID:               req.ID,
		ProjectID:        req.ProjectID,
		GenerationStatus: req.GenerationStatus,
		TasksGenerated:   tasksGenerated,
		ErrorMessage:     req.ErrorMessage,
		CreatedAt:        req.CreatedAt,
		UpdatedAt:        req.UpdatedAt,
	}
	if req.AnalysisResult != nil {
		var result domain.AnalysisResult
		if err := json.Unmarshal([]byte(*req.AnalysisResult), &result); err == nil {
			resp.AnalysisResult = &result
		}
	}
	return resp
}
