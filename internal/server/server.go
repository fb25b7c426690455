// Package server exposes the orchestration core over HTTP. Reads are cheap
// and side-effect-free so board clients can poll them.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"autoboard/internal/domain"
	"autoboard/internal/engine"
	"autoboard/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Logger   *log.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"conflict"`
	Message string         `json:"message" example:"requirements analysis already in flight for project"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Autoboard API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}

	router := chi.NewRouter()
	hcfg := huma.DefaultConfig("Autoboard API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerProjects(group, cfg.Engine)
	registerRequirements(group, cfg.Engine, cfg.Logger)
	registerTasks(group, cfg.Engine)
	registerAgent(group, cfg.Engine)
	registerReview(group, cfg.Engine)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var validation engine.ValidationError
	if errors.As(err, &validation) {
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), map[string]any{"field": validation.Field})
	}
	var conflict engine.ConflictError
	if errors.As(err, &conflict) {
		return newAPIError(http.StatusConflict, "conflict", err.Error(), nil)
	}
	var depth engine.DepthExceededError
	if errors.As(err, &depth) {
		return newAPIError(http.StatusUnprocessableEntity, "depth_exceeded", err.Error(), map[string]any{"depth": depth.Depth, "max": depth.Max})
	}
	var integrity engine.IntegrityError
	if errors.As(err, &integrity) {
		return newAPIError(http.StatusUnprocessableEntity, "integrity_violation", err.Error(), nil)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerProjects(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create project",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest `json:"body"`
	}) (*struct {
		Body domain.Project `json:"body"`
	}, error) {
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		id := ""
		if input.Body.ID != nil {
			id = *input.Body.ID
		}
		p, err := e.InitProject(ctx, id, input.Body.Name)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Project `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Project `json:"body"`
	}, error) {
		items, err := e.Repo.ListProjects(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Project `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}",
		Summary:     "Get project",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body domain.Project `json:"body"`
	}, error) {
		p, err := e.Repo.GetProject(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Project `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-project",
		Method:      http.MethodDelete,
		Path:        "/projects/{project_id}",
		Summary:     "Delete project",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct{}, error) {
		if err := e.Repo.DeleteProject(ctx, input.ProjectID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "project-status",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/status",
		Summary:     "Project task counts",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body map[string]any `json:"body"`
	}, error) {
		p, err := e.Repo.GetProject(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		counts, err := e.Repo.CountTasksByStatus(ctx, p.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]any `json:"body"`
		}{Body: map[string]any{
			"project_id":  p.ID,
			"task_counts": counts,
		}}, nil
	})
}

func registerRequirements(api huma.API, e engine.Engine, logger *log.Logger) {
	huma.Register(api, huma.Operation{
		OperationID:   "submit-requirements",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/requirements",
		Summary:       "Submit requirements for analysis",
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ProjectID string                    `path:"project_id"`
		Body      SubmitRequirementsRequest `json:"body"`
	}) (*struct {
		Body domain.RequirementsRequest `json:"body"`
	}, error) {
		prd := ""
		if input.Body.PRDContent != nil {
			prd = *input.Body.PRDContent
		}
		req, err := e.SubmitRequirements(ctx, input.ProjectID, input.Body.RawRequirements, prd)
		if err != nil {
			return nil, handleError(err)
		}
		// Analysis runs in the background; clients poll the status
		// endpoint for terminal states.
		go func() {
			if _, err := e.RunAnalysis(context.Background(), req.ID); err != nil {
				logger.Printf("server: run analysis %s: %v", req.ID, err)
			}
		}()
		return &struct {
			Body domain.RequirementsRequest `json:"body"`
		}{Body: req}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "requirements-status",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/requirements",
		Summary:     "Requirements generation status",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body RequirementsStatusResponse `json:"body"`
	}, error) {
		req, generated, err := e.RequirementsStatus(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RequirementsStatusResponse `json:"body"`
		}{Body: requirementsStatusResponse(req, generated)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-requirements",
		Method:      http.MethodDelete,
		Path:        "/projects/{project_id}/requirements",
		Summary:     "Delete requirements request",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID   string `path:"project_id"`
		DeleteTasks bool   `query:"delete_tasks"`
	}) (*struct{}, error) {
		if err := e.DeleteRequirements(ctx, input.ProjectID, input.DeleteTasks); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/tasks",
		Summary:     "List tasks",
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		Status    string `query:"status"`
		Source    string `query:"source"`
	}) (*struct {
		Body []domain.Task `json:"body"`
	}, error) {
		tasks, err := e.Repo.ListTasks(ctx, repo.TaskFilters{
			ProjectID: input.ProjectID,
			Status:    input.Status,
			Source:    input.Source,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Task `json:"body"`
		}{Body: tasks}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/tasks",
		Summary:       "Create a manual task",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string            `path:"project_id"`
		Body      CreateTaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		opts := engine.TaskCreateOptions{
			ProjectID:        input.ProjectID,
			Title:            input.Body.Title,
			Type:             input.Body.Type,
			PreventBreakdown: input.Body.PreventBreakdown,
		}
		if input.Body.Description != nil {
			opts.Description = *input.Body.Description
		}
		if input.Body.Layer != nil {
			opts.Layer = *input.Body.Layer
		}
		if input.Body.ComplexityScore != nil {
			opts.ComplexityScore = *input.Body.ComplexityScore
		}
		if input.Body.ParentTaskID != nil {
			opts.ParentTaskID = *input.Body.ParentTaskID
		}
		if input.Body.TestingCriteria != nil {
			opts.TestingCriteria = *input.Body.TestingCriteria
		}
		t, err := e.CreateTask(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{task_id}",
		Summary:     "Get task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		t, err := e.Repo.GetTask(ctx, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-task-status",
		Method:      http.MethodPut,
		Path:        "/tasks/{task_id}/status",
		Summary:     "Set task status",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string               `path:"task_id"`
		Body   SetTaskStatusRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		t, err := e.SetTaskStatus(ctx, input.TaskID, input.Body.Status)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "breakdown-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/breakdown",
		Summary:     "Break a task into subtasks",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		TaskID string           `path:"task_id"`
		Body   BreakdownRequest `json:"body"`
	}) (*struct {
		Body []domain.Task `json:"body"`
	}, error) {
		drafts := input.Body.Subtasks
		if len(drafts) == 0 && e.Sizer != nil {
			t, err := e.Repo.GetTask(ctx, input.TaskID)
			if err != nil {
				return nil, handleError(err)
			}
			maxSubtasks := 4
			if e.Config != nil {
				maxSubtasks = e.Config.Breakdown.MaxSubtasks
			}
			if _, proposed, err := e.Sizer.Score(ctx, t, maxSubtasks); err == nil {
				drafts = proposed
			}
		}
		subtasks, err := e.BreakdownTask(ctx, input.TaskID, drafts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Task `json:"body"`
		}{Body: subtasks}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "timed-out-tasks",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/tasks/timed-out",
		Summary:     "Tasks stalled past the stage timeout",
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body []domain.Task `json:"body"`
	}, error) {
		tasks, err := e.FindTimedOut(ctx, input.ProjectID, e.Config.StageTimeout())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Task `json:"body"`
		}{Body: tasks}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "register-workspace",
		Method:        http.MethodPost,
		Path:          "/tasks/{task_id}/workspaces",
		Summary:       "Register a task workspace",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string                   `path:"task_id"`
		Body   RegisterWorkspaceRequest `json:"body"`
	}) (*struct {
		Body domain.Workspace `json:"body"`
	}, error) {
		if input.Body.Branch == "" || input.Body.Path == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "branch and path are required", nil)
		}
		t, err := e.Repo.GetTask(ctx, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		target := input.Body.TargetBranch
		if target == "" {
			target = "main"
		}
		ws := domain.Workspace{
			ID:           uuid.NewString(),
			TaskID:       t.ID,
			Branch:       input.Body.Branch,
			Path:         input.Body.Path,
			TargetBranch: target,
			CreatedAt:    e.Now().UTC().Format(time.RFC3339),
		}
		if err := e.Repo.InsertWorkspace(ctx, ws); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Workspace `json:"body"`
		}{Body: ws}, nil
	})
}

func registerAgent(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-agent-settings",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/agent/settings",
		Summary:     "Get agent settings",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body domain.AgentSettings `json:"body"`
	}, error) {
		s, err := e.Repo.GetAgentSettings(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.AgentSettings `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-agent-settings",
		Method:      http.MethodPut,
		Path:        "/projects/{project_id}/agent/settings",
		Summary:     "Update agent settings",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string                     `path:"project_id"`
		Body      UpdateAgentSettingsRequest `json:"body"`
	}) (*struct {
		Body domain.AgentSettings `json:"body"`
	}, error) {
		s, err := e.Repo.GetAgentSettings(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		if input.Body.Enabled != nil {
			s.Enabled = *input.Body.Enabled
		}
		if input.Body.IntervalSeconds != nil {
			if *input.Body.IntervalSeconds < 1 {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "interval_seconds must be >= 1", nil)
			}
			s.IntervalSeconds = *input.Body.IntervalSeconds
		}
		if input.Body.MaxBreakdownDepth != nil {
			if *input.Body.MaxBreakdownDepth < 0 {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "max_breakdown_depth must be >= 0", nil)
			}
			s.MaxBreakdownDepth = *input.Body.MaxBreakdownDepth
		}
		now := e.Now().UTC().Format(time.RFC3339)
		updated, err := e.Repo.UpsertAgentSettings(ctx, s, now)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.AgentSettings `json:"body"`
		}{Body: updated}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "trigger-agent",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/agent/trigger",
		Summary:     "Run one scheduler pass now",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body engine.TickResult `json:"body"`
	}, error) {
		result, err := e.Trigger(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.TickResult `json:"body"`
		}{Body: result}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "agent-logs",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/agent/logs",
		Summary:     "Agent activity log",
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		Limit     int    `query:"limit"`
	}) (*struct {
		Body []domain.AgentActivityLog `json:"body"`
	}, error) {
		logs, err := e.Repo.ListAgentActivity(ctx, input.ProjectID, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.AgentActivityLog `json:"body"`
		}{Body: logs}, nil
	})
}

func registerReview(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-review-settings",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/review/settings",
		Summary:     "Get review settings",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body domain.ReviewSettings `json:"body"`
	}, error) {
		s, err := e.Repo.GetReviewSettings(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ReviewSettings `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-review-settings",
		Method:      http.MethodPut,
		Path:        "/projects/{project_id}/review/settings",
		Summary:     "Update review settings",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string                      `path:"project_id"`
		Body      UpdateReviewSettingsRequest `json:"body"`
	}) (*struct {
		Body domain.ReviewSettings `json:"body"`
	}, error) {
		s, err := e.Repo.GetReviewSettings(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		if input.Body.Enabled != nil {
			s.Enabled = *input.Body.Enabled
		}
		if input.Body.AutoMergeEnabled != nil {
			s.AutoMergeEnabled = *input.Body.AutoMergeEnabled
		}
		if input.Body.RunTestsEnabled != nil {
			s.RunTestsEnabled = *input.Body.RunTestsEnabled
		}
		now := e.Now().UTC().Format(time.RFC3339)
		updated, err := e.Repo.UpsertReviewSettings(ctx, s, now)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ReviewSettings `json:"body"`
		}{Body: updated}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "process-review",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/review/process",
		Summary:     "Run one review pass over a task",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*struct {
		Body []domain.ReviewAutomationLog `json:"body"`
	}, error) {
		logs, err := e.ProcessReview(ctx, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.ReviewAutomationLog `json:"body"`
		}{Body: logs}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "task-review-logs",
		Method:      http.MethodGet,
		Path:        "/tasks/{task_id}/review/logs",
		Summary:     "Review automation log for a task",
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
		Limit  int    `query:"limit"`
	}) (*struct {
		Body []domain.ReviewAutomationLog `json:"body"`
	}, error) {
		logs, err := e.Repo.ListReviewLogs(ctx, input.TaskID, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.ReviewAutomationLog `json:"body"`
		}{Body: logs}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "project-review-logs",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/review/logs",
		Summary:     "Review automation log for a project",
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		Limit     int    `query:"limit"`
	}) (*struct {
		Body []domain.ReviewAutomationLog `json:"body"`
	}, error) {
		logs, err := e.Repo.ListProjectReviewLogs(ctx, input.ProjectID, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.ReviewAutomationLog `json:"body"`
		}{Body: logs}, nil
	})
}
