package autoboardsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Autoboard HTTP API client.
type Client struct {
	BaseURL    string
	ProjectID  string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, projectID string) *Client {
	return &Client{
		BaseURL:   baseURL,
		ProjectID: projectID,
		Timeout:   10 * time.Second,
	}
}

// Task represents the API task model (partial).
type Task struct {
	ID              string  `json:"id"`
	ProjectID       string  `json:"project_id"`
	Title           string  `json:"title"`
	Type            string  `json:"task_type"`
	Status          string  `json:"status"`
	Source          string  `json:"source"`
	Layer           *string `json:"layer,omitempty"`
	Sequence        *int    `json:"sequence,omitempty"`
	ComplexityScore *int    `json:"complexity_score,omitempty"`
	ParentTaskID    *string `json:"parent_task_id,omitempty"`
}

// RequirementsStatus is the poll-friendly generation state.
type RequirementsStatus struct {
	ID               string  `json:"id"`
	ProjectID        string  `json:"project_id"`
	GenerationStatus string  `json:"generation_status"`
	TasksGenerated   int     `json:"tasks_generated"`
	ErrorMessage     *string `json:"error_message,omitempty"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
}

// TickResult is one scheduling decision.
type TickResult struct {
	Action    string  `json:"action"`
	TaskID    *string `json:"task_id,omitempty"`
	Reasoning string  `json:"reasoning"`
}

// ActivityEntry is one agent activity log row.
type ActivityEntry struct {
	ID        string  `json:"id"`
	ProjectID string  `json:"project_id"`
	TaskID    *string `json:"task_id,omitempty"`
	Action    string  `json:"action"`
	Reasoning *string `json:"reasoning,omitempty"`
	CreatedAt string  `json:"created_at"`
}

// ReviewEntry is one review automation log row.
type ReviewEntry struct {
	ID           string  `json:"id"`
	TaskID       string  `json:"task_id"`
	Action       string  `json:"action"`
	Output       *string `json:"output,omitempty"`
	ErrorMessage *string `json:"error_message,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// SubmitRequirements starts requirements analysis for the project.
func (c *Client) SubmitRequirements(ctx context.Context, rawRequirements string) (RequirementsStatus, error) {
	body := map[string]any{"raw_requirements": rawRequirements}
	var resp RequirementsStatus
	err := c.do(ctx, http.MethodPost, c.projectPath("requirements"), body, &resp)
	return resp, err
}

// RequirementsStatus returns the latest requirements request.
func (c *Client) RequirementsStatus(ctx context.Context) (RequirementsStatus, error) {
	var resp RequirementsStatus
	err := c.do(ctx, http.MethodGet, c.projectPath("requirements"), nil, &resp)
	return resp, err
}

// CreateTask creates a manual task.
func (c *Client) CreateTask(ctx context.Context, title, taskType string) (Task, error) {
	body := map[string]any{
		"title":     title,
		"task_type": taskType,
	}
	var resp Task
	err := c.do(ctx, http.MethodPost, c.projectPath("tasks"), body, &resp)
	return resp, err
}

// ListTasks returns project tasks, optionally filtered by status.
func (c *Client) ListTasks(ctx context.Context, status string) ([]Task, error) {
	endpoint := c.projectPath("tasks")
	if status != "" {
		endpoint = fmt.Sprintf("%s?status=%s", endpoint, url.QueryEscape(status))
	}
	var resp []Task
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// SetTaskStatus moves a task to a new status.
func (c *Client) SetTaskStatus(ctx context.Context, taskID, status string) (Task, error) {
	body := map[string]any{"status": status}
	var resp Task
	endpoint := fmt.Sprintf("v0/tasks/%s/status", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodPut, endpoint, body, &resp)
	return resp, err
}

// TriggerAgent runs one scheduling pass and returns the decision.
func (c *Client) TriggerAgent(ctx context.Context) (TickResult, error) {
	var resp TickResult
	err := c.do(ctx, http.MethodPost, c.projectPath("agent/trigger"), nil, &resp)
	return resp, err
}

// AgentLogs returns recent agent activity.
func (c *Client) AgentLogs(ctx context.Context, limit int) ([]ActivityEntry, error) {
	endpoint := c.projectPath("agent/logs")
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []ActivityEntry
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// ProcessReview runs the review pipeline for a task.
func (c *Client) ProcessReview(ctx context.Context, taskID string) ([]ReviewEntry, error) {
	var resp []ReviewEntry
	endpoint := fmt.Sprintf("v0/tasks/%s/review/process", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// ReviewLogs returns review automation entries for a task.
func (c *Client) ReviewLogs(ctx context.Context, taskID string, limit int) ([]ReviewEntry, error) {
	endpoint := fmt.Sprintf("v0/tasks/%s/review/logs", url.PathEscape(taskID))
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []ReviewEntry
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) projectPath(p string) string {
	project := url.PathEscape(c.ProjectID)
	return fmt.Sprintf("v0/projects/%s/%s", project, strings.TrimLeft(p, "/"))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
