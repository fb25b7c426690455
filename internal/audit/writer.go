package audit

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Writer appends rows to the append-only automation log tables. Rows are
// never mutated after insert.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

func (w Writer) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

// AgentAction records one scheduler decision for a project.
func (w Writer) AgentAction(ctx context.Context, tx *sql.Tx, projectID string, taskID *string, action, reasoning string) error {
	ts := w.now().UTC().Format(time.RFC3339)
	_, err := exec(ctx, w.DB, tx,
		`INSERT INTO agent_activity_logs(id,project_id,task_id,action,reasoning,created_at) VALUES (?,?,?,?,?,?)`,
		uuid.NewString(), projectID, nullableStringPtr(taskID), action, nullable(reasoning), ts)
	return err
}

// ReviewAction records one review automation outcome for a task.
func (w Writer) ReviewAction(ctx context.Context, tx *sql.Tx, taskID string, workspaceID *string, action, output, errMsg string) error {
	ts := w.now().UTC().Format(time.RFC3339)
	_, err := exec(ctx, w.DB, tx,
		`INSERT INTO review_automation_logs(id,task_id,workspace_id,action,output,error_message,created_at) VALUES (?,?,?,?,?,?,?)`,
		uuid.NewString(), taskID, nullableStringPtr(workspaceID), action, nullable(output), nullable(errMsg), ts)
	return err
}

func exec(ctx context.Context, db *sql.DB, tx *sql.Tx, query string, args ...any) (sql.Result, error) {
	if tx != nil {
		return tx.ExecContext(ctx, query, args...)
	}
	return db.ExecContext(ctx, query, args...)
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}
