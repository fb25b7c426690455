package engine

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"

	"autoboard/internal/audit"
	"autoboard/internal/config"
	"autoboard/internal/domain"
	"autoboard/internal/repo"
)

// Extractor turns raw requirements text into a structured feature list.
type Extractor interface {
	Extract(ctx context.Context, raw string, prd *string) (domain.AnalysisResult, error)
}

// Generator converts extracted features into task drafts.
type Generator interface {
	Generate(ctx context.Context, result domain.AnalysisResult) ([]domain.TaskDraft, error)
}

// Decider picks the next task from a candidate list. An empty task id means
// the decider declined to pick.
type Decider interface {
	Decide(ctx context.Context, candidates []domain.Task) (taskID, reasoning string, err error)
}

// Sizer estimates a task's complexity and, when it warrants decomposition,
// proposes subtask drafts.
type Sizer interface {
	Score(ctx context.Context, t domain.Task, maxSubtasks int) (score int, drafts []domain.TaskDraft, err error)
}

// TestRunner executes the project's test command against a workspace.
type TestRunner interface {
	RunTests(ctx context.Context, ws domain.Workspace) (passed bool, output string, err error)
}

// Merger merges a workspace's branch into its target branch.
type Merger interface {
	Merge(ctx context.Context, ws domain.Workspace) (domain.MergeResult, error)
}

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Audit  audit.Writer
	Config *config.Config
	Now    func() time.Time

	Extractor Extractor
	Generator Generator
	Decider   Decider
	Sizer     Sizer
	Tests     TestRunner
	Merger    Merger

	reviewLocks *keyedLocks
	tickLocks   *keyedLocks
	submitLocks *keyedLocks
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:          db,
		Repo:        repo.Repo{DB: db},
		Audit:       audit.Writer{DB: db},
		Config:      cfg,
		Now:         time.Now,
		reviewLocks: newKeyedLocks(),
		tickLocks:   newKeyedLocks(),
		submitLocks: newKeyedLocks(),
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowString() string {
	return e.now().UTC().Format(time.RFC3339)
}

// InitProject creates a project row plus default settings rows.
func (e Engine) InitProject(ctx context.Context, projectID, name string) (domain.Project, error) {
	if projectID == "" {
		projectID = uuid.NewString()
	}
	now := e.nowString()
	p := domain.Project{ID: projectID, Name: name, CreatedAt: now}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO projects(id,name,created_at) VALUES (?,?,?)`,
		p.ID, p.Name, p.CreatedAt); err != nil {
		return domain.Project{}, err
	}
	interval := 60
	maxDepth := 1
	if e.Config != nil {
		interval = e.Config.Scheduler.IntervalSeconds
		maxDepth = e.Config.Breakdown.MaxDepth
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO project_agent_settings(id,project_id,enabled,interval_seconds,max_breakdown_depth,created_at,updated_at) VALUES (?,?,0,?,?,?,?)`,
		uuid.NewString(), p.ID, interval, maxDepth, now, now); err != nil {
		return domain.Project{}, err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO project_review_settings(id,project_id,enabled,auto_merge_enabled,run_tests_enabled,created_at,updated_at) VALUES (?,?,0,1,1,?,?)`,
		uuid.NewString(), p.ID, now, now); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

// keyedLocks hands out non-blocking per-key mutual exclusion. Used to
// serialize review passes per task and to drop overlapping scheduler ticks
// per project.
type keyedLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{held: map[string]bool{}}
}

func (l *keyedLocks) tryAcquire(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return false
	}
	l.held[key] = true
	return true
}

func (l *keyedLocks) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
}
