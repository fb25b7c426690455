package repo

import (
	"context"
	"database/sql"

	"autoboard/internal/domain"
)

func (r Repo) InsertWorkspace(ctx context.Context, ws domain.Workspace) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO workspaces(id,task_id,branch,path,target_branch,archived,created_at) VALUES (?,?,?,?,?,?,?)`,
		ws.ID, ws.TaskID, ws.Branch, ws.Path, ws.TargetBranch, boolToInt(ws.Archived), ws.CreatedAt)
	return err
}

// WorkspaceForTask returns the newest live workspace for a task.
func (r Repo) WorkspaceForTask(ctx context.Context, taskID string) (domain.Workspace, error) {
	var ws domain.Workspace
	var archived int
	err := r.DB.QueryRowContext(ctx, `SELECT id,task_id,branch,path,target_branch,archived,created_at FROM workspaces WHERE task_id=? AND archived=0 ORDER BY created_at DESC, id DESC LIMIT 1`, taskID).
		Scan(&ws.ID, &ws.TaskID, &ws.Branch, &ws.Path, &ws.TargetBranch, &archived, &ws.CreatedAt)
	if err == sql.ErrNoRows {
		return ws, ErrNotFound
	}
	if err != nil {
		return ws, err
	}
	ws.Archived = archived != 0
	return ws, nil
}

func (r Repo) ArchiveWorkspace(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `UPDATE workspaces SET archived=1 WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
