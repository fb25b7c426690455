package domain

// Generation statuses for a requirements request. The sequence is strictly
// linear: pending -> analyzing -> generating -> completed|failed.
const (
	GenerationPending   = "pending"
	GenerationAnalyzing = "analyzing"
	GenerationRunning   = "generating"
	GenerationCompleted = "completed"
	GenerationFailed    = "failed"
)

// Task statuses.
const (
	StatusTodo       = "todo"
	StatusInProgress = "inprogress"
	StatusInReview   = "inreview"
	StatusDone       = "done"
	StatusCancelled  = "cancelled"
)

// Task sources.
const (
	SourceManual      = "manual"
	SourceAIGenerated = "ai_generated"
)

// Task types.
const (
	TypeArchitecture   = "architecture"
	TypeMock           = "mock"
	TypeImplementation = "implementation"
	TypeIntegration    = "integration"
)

// Task layers.
const (
	LayerData      = "data"
	LayerBackend   = "backend"
	LayerFrontend  = "frontend"
	LayerFullstack = "fullstack"
	LayerDevops    = "devops"
	LayerTesting   = "testing"
)

// Agent activity actions.
const (
	AgentSelected = "selected"
	AgentSkipped  = "skipped"
	AgentError    = "error"
	AgentReplaced = "replaced"
	AgentTimeout  = "timeout"
)

// Review automation actions.
const (
	ReviewTestPassed     = "test_passed"
	ReviewTestFailed     = "test_failed"
	ReviewMergeCompleted = "merge_completed"
	ReviewMergeConflict  = "merge_conflict"
	ReviewSkipped        = "skipped"
	ReviewError          = "error"
)

type Project struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type RequirementsRequest struct {
	ID               string  `json:"id"`
	ProjectID        string  `json:"project_id"`
	RawRequirements  string  `json:"raw_requirements"`
	PRDContent       *string `json:"prd_content,omitempty"`
	AnalysisResult   *string `json:"analysis_result,omitempty"`
	GenerationStatus string  `json:"generation_status" enum:"pending,analyzing,generating,completed,failed"`
	ErrorMessage     *string `json:"error_message,omitempty"`
	CreatedAt        string  `json:"created_at" format:"date-time"`
	UpdatedAt        string  `json:"updated_at" format:"date-time"`
}

type Task struct {
	ID               string  `json:"id"`
	ProjectID        string  `json:"project_id"`
	Title            string  `json:"title"`
	Description      string  `json:"description,omitempty"`
	Status           string  `json:"status" enum:"todo,inprogress,inreview,done,cancelled"`
	Source           string  `json:"source" enum:"manual,ai_generated"`
	Type             string  `json:"task_type" enum:"architecture,mock,implementation,integration"`
	Layer            *string `json:"layer,omitempty" enum:"data,backend,frontend,fullstack,devops,testing"`
	Sequence         *int    `json:"sequence,omitempty"`
	StageStartedAt   *string `json:"stage_started_at,omitempty" format:"date-time"`
	ComplexityScore  *int    `json:"complexity_score,omitempty"`
	ParentTaskID     *string `json:"parent_task_id,omitempty"`
	PostTaskActions  *string `json:"post_task_actions,omitempty"`
	TestingCriteria  *string `json:"testing_criteria,omitempty"`
	PreventBreakdown bool    `json:"prevent_breakdown"`
	CreatedAt        string  `json:"created_at" format:"date-time"`
	UpdatedAt        string  `json:"updated_at" format:"date-time"`
}

// Workspace is the working copy holding a task's in-progress changes.
type Workspace struct {
	ID           string `json:"id"`
	TaskID       string `json:"task_id"`
	Branch       string `json:"branch"`
	Path         string `json:"path"`
	TargetBranch string `json:"target_branch"`
	Archived     bool   `json:"archived"`
	CreatedAt    string `json:"created_at" format:"date-time"`
}

// AgentSettings governs the autonomous scheduler for one project.
type AgentSettings struct {
	ID                string `json:"id"`
	ProjectID         string `json:"project_id"`
	Enabled           bool   `json:"enabled"`
	IntervalSeconds   int    `json:"interval_seconds"`
	MaxBreakdownDepth int    `json:"max_breakdown_depth"`
	CreatedAt         string `json:"created_at" format:"date-time"`
	UpdatedAt         string `json:"updated_at" format:"date-time"`
}

type AgentActivityLog struct {
	ID        string  `json:"id"`
	ProjectID string  `json:"project_id"`
	TaskID    *string `json:"task_id,omitempty"`
	Action    string  `json:"action" enum:"selected,skipped,error,replaced,timeout"`
	Reasoning *string `json:"reasoning,omitempty"`
	CreatedAt string  `json:"created_at" format:"date-time"`
}

// ReviewSettings governs the review automation pipeline for one project.
type ReviewSettings struct {
	ID               string `json:"id"`
	ProjectID        string `json:"project_id"`
	Enabled          bool   `json:"enabled"`
	AutoMergeEnabled bool   `json:"auto_merge_enabled"`
	RunTestsEnabled  bool   `json:"run_tests_enabled"`
	CreatedAt        string `json:"created_at" format:"date-time"`
	UpdatedAt        string `json:"updated_at" format:"date-time"`
}

type ReviewAutomationLog struct {
	ID           string  `json:"id"`
	TaskID       string  `json:"task_id"`
	WorkspaceID  *string `json:"workspace_id,omitempty"`
	Action       string  `json:"action" enum:"test_passed,test_failed,merge_completed,merge_conflict,skipped,error"`
	Output       *string `json:"output,omitempty"`
	ErrorMessage *string `json:"error_message,omitempty"`
	CreatedAt    string  `json:"created_at" format:"date-time"`
}

// ExtractedFeature is one discrete capability found in raw requirements.
type ExtractedFeature struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Layer       string `json:"layer,omitempty"`
	Priority    int    `json:"priority,omitempty"`
}

// AnalysisResult is the structured outcome of the analyzing phase, stored
// JSON-serialized on the requirements request.
type AnalysisResult struct {
	Features []ExtractedFeature `json:"features"`
	Summary  string             `json:"summary,omitempty"`
}

// TaskDraft is a task-to-be produced by generation or breakdown.
type TaskDraft struct {
	Title           string `json:"title"`
	Description     string `json:"description,omitempty"`
	Type            string `json:"task_type,omitempty"`
	Layer           string `json:"layer,omitempty"`
	ComplexityScore int    `json:"complexity_score,omitempty"`
	TestingCriteria string `json:"testing_criteria,omitempty"`
}

// MergeResult is the outcome of merging a workspace into its target branch.
type MergeResult struct {
	Conflict bool   `json:"conflict"`
	Details  string `json:"details,omitempty"`
}
