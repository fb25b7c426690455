package repo

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"autoboard/internal/domain"
)

func scanAgentSettings(scan func(dest ...any) error) (domain.AgentSettings, error) {
	var s domain.AgentSettings
	var enabled int
	err := scan(&s.ID, &s.ProjectID, &enabled, &s.IntervalSeconds, &s.MaxBreakdownDepth, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return s, err
	}
	s.Enabled = enabled != 0
	return s, nil
}

func (r Repo) GetAgentSettings(ctx context.Context, projectID string) (domain.AgentSettings, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,project_id,enabled,interval_seconds,max_breakdown_depth,created_at,updated_at FROM project_agent_settings WHERE project_id=?`, projectID)
	s, err := scanAgentSettings(row.Scan)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

func (r Repo) UpsertAgentSettings(ctx context.Context, s domain.AgentSettings, now string) (domain.AgentSettings, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	_, err := r.DB.ExecContext(ctx, `INSERT INTO project_agent_settings(id,project_id,enabled,interval_seconds,max_breakdown_depth,created_at,updated_at) VALUES (?,?,?,?,?,?,?)
ON CONFLICT(project_id) DO UPDATE SET enabled=excluded.enabled, interval_seconds=excluded.interval_seconds, max_breakdown_depth=excluded.max_breakdown_depth, updated_at=excluded.updated_at`,
		s.ID, s.ProjectID, boolToInt(s.Enabled), s.IntervalSeconds, s.MaxBreakdownDepth, now, now)
	if err != nil {
		return domain.AgentSettings{}, err
	}
	return r.GetAgentSettings(ctx, s.ProjectID)
}

// ListEnabledAgentSettings returns settings rows for projects with the
// scheduler switched on. Used by the daemon reconciler.
func (r Repo) ListEnabledAgentSettings(ctx context.Context) ([]domain.AgentSettings, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,project_id,enabled,interval_seconds,max_breakdown_depth,created_at,updated_at FROM project_agent_settings WHERE enabled=1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.AgentSettings
	for rows.Next() {
		s, err := scanAgentSettings(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func scanReviewSettings(scan func(dest ...any) error) (domain.ReviewSettings, error) {
	var s domain.ReviewSettings
	var enabled, autoMerge, runTests int
	err := scan(&s.ID, &s.ProjectID, &enabled, &autoMerge, &runTests, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return s, err
	}
	s.Enabled = enabled != 0
	s.AutoMergeEnabled = autoMerge != 0
	s.RunTestsEnabled = runTests != 0
	return s, nil
}

func (r Repo) GetReviewSettings(ctx context.Context, projectID string) (domain.ReviewSettings, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,project_id,enabled,auto_merge_enabled,run_tests_enabled,created_at,updated_at FROM project_review_settings WHERE project_id=?`, projectID)
	s, err := scanReviewSettings(row.Scan)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

func (r Repo) UpsertReviewSettings(ctx context.Context, s domain.ReviewSettings, now string) (domain.ReviewSettings, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	_, err := r.DB.ExecContext(ctx, `INSERT INTO project_review_settings(id,project_id,enabled,auto_merge_enabled,run_tests_enabled,created_at,updated_at) VALUES (?,?,?,?,?,?,?)
ON CONFLICT(project_id) DO UPDATE SET enabled=excluded.enabled, auto_merge_enabled=excluded.auto_merge_enabled, run_tests_enabled=excluded.run_tests_enabled, updated_at=excluded.updated_at`,
		s.ID, s.ProjectID, boolToInt(s.Enabled), boolToInt(s.AutoMergeEnabled), boolToInt(s.RunTestsEnabled), now, now)
	if err != nil {
		return domain.ReviewSettings{}, err
	}
	return r.GetReviewSettings(ctx, s.ProjectID)
}

func (r Repo) ListEnabledReviewSettings(ctx context.Context) ([]domain.ReviewSettings, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,project_id,enabled,auto_merge_enabled,run_tests_enabled,created_at,updated_at FROM project_review_settings WHERE enabled=1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ReviewSettings
	for rows.Next() {
		s, err := scanReviewSettings(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}
