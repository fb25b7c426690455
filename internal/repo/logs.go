package repo

import (
	"context"
	"database/sql"

	"autoboard/internal/domain"
)

// ListAgentActivity returns a project's scheduler log, newest first.
func (r Repo) ListAgentActivity(ctx context.Context, projectID string, limit int) ([]domain.AgentActivityLog, error) {
	query := `SELECT id,project_id,task_id,action,reasoning,created_at FROM agent_activity_logs WHERE project_id=? ORDER BY created_at DESC, id DESC`
	args := []any{projectID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.AgentActivityLog
	for rows.Next() {
		var l domain.AgentActivityLog
		var taskID, reasoning sql.NullString
		if err := rows.Scan(&l.ID, &l.ProjectID, &taskID, &l.Action, &reasoning, &l.CreatedAt); err != nil {
			return nil, err
		}
		if taskID.Valid {
			l.TaskID = &taskID.String
		}
		if reasoning.Valid {
			l.Reasoning = &reasoning.String
		}
		res = append(res, l)
	}
	return res, rows.Err()
}

// ListReviewLogs returns a task's review automation log, newest first.
func (r Repo) ListReviewLogs(ctx context.Context, taskID string, limit int) ([]domain.ReviewAutomationLog, error) {
	query := `SELECT id,task_id,workspace_id,action,output,error_message,created_at FROM review_automation_logs WHERE task_id=? ORDER BY created_at DESC, id DESC`
	args := []any{taskID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return r.queryReviewLogs(ctx, query, args...)
}

// ListProjectReviewLogs returns review logs across a project's tasks,
// newest first.
func (r Repo) ListProjectReviewLogs(ctx context.Context, projectID string, limit int) ([]domain.ReviewAutomationLog, error) {
	query := `SELECT l.id,l.task_id,l.workspace_id,l.action,l.output,l.error_message,l.created_at
		FROM review_automation_logs l JOIN tasks t ON t.id=l.task_id
		WHERE t.project_id=? ORDER BY l.created_at DESC, l.id DESC`
	args := []any{projectID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return r.queryReviewLogs(ctx, query, args...)
}

func (r Repo) queryReviewLogs(ctx context.Context, query string, args ...any) ([]domain.ReviewAutomationLog, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ReviewAutomationLog
	for rows.Next() {
		var l domain.ReviewAutomationLog
		var wsID, output, errMsg sql.NullString
		if err := rows.Scan(&l.ID, &l.TaskID, &wsID, &l.Action, &output, &errMsg, &l.CreatedAt); err != nil {
			return nil, err
		}
		if wsID.Valid {
			l.WorkspaceID = &wsID.String
		}
		if output.Valid {
			l.Output = &output.String
		}
		if errMsg.Valid {
			l.ErrorMessage = &errMsg.String
		}
		res = append(res, l)
	}
	return res, rows.Err()
}
