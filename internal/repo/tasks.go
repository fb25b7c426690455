package repo

import (
	"context"
	"database/sql"
	"strings"

	"autoboard/internal/domain"
)

const taskColumns = `id,project_id,title,description,status,source,task_type,layer,sequence,stage_started_at,complexity_score,parent_task_id,post_task_actions,testing_criteria,prevent_breakdown,created_at,updated_at`

func scanTask(scan func(dest ...any) error) (domain.Task, error) {
	var t domain.Task
	var description, layer, stageStartedAt, parentTaskID, postActions, criteria sql.NullString
	var sequence, complexity sql.NullInt64
	var prevent int
	err := scan(&t.ID, &t.ProjectID, &t.Title, &description, &t.Status, &t.Source, &t.Type,
		&layer, &sequence, &stageStartedAt, &complexity, &parentTaskID, &postActions, &criteria,
		&prevent, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return t, err
	}
	if description.Valid {
		t.Description = description.String
	}
	if layer.Valid {
		t.Layer = &layer.String
	}
	if sequence.Valid {
		s := int(sequence.Int64)
		t.Sequence = &s
	}
	if stageStartedAt.Valid {
		t.StageStartedAt = &stageStartedAt.String
	}
	if complexity.Valid {
		c := int(complexity.Int64)
		t.ComplexityScore = &c
	}
	if parentTaskID.Valid {
		t.ParentTaskID = &parentTaskID.String
	}
	if postActions.Valid {
		t.PostTaskActions = &postActions.String
	}
	if criteria.Valid {
		t.TestingCriteria = &criteria.String
	}
	t.PreventBreakdown = prevent != 0
	return t, nil
}

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tasks(`+taskColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.ProjectID, t.Title, nullable(t.Description), t.Status, t.Source, t.Type,
		nullableStringPtr(t.Layer), nullableIntPtr(t.Sequence), nullableStringPtr(t.StageStartedAt),
		nullableIntPtr(t.ComplexityScore), nullableStringPtr(t.ParentTaskID),
		nullableStringPtr(t.PostTaskActions), nullableStringPtr(t.TestingCriteria),
		boolToInt(t.PreventBreakdown), t.CreatedAt, t.UpdatedAt)
	return err
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id)
	t, err := scanTask(row.Scan)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	return t, err
}

func (r Repo) GetTaskTx(ctx context.Context, tx *sql.Tx, id string) (domain.Task, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id)
	t, err := scanTask(row.Scan)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	return t, err
}

// SetTaskStatus writes status and, for stage-tracked transitions, the stage
// clock in one statement so the pair can never diverge.
func (r Repo) SetTaskStatus(ctx context.Context, tx *sql.Tx, id, status string, stageStartedAt *string, updatedAt string) error {
	var res sql.Result
	var err error
	if stageStartedAt != nil {
		res, err = tx.ExecContext(ctx, `UPDATE tasks SET status=?, stage_started_at=?, updated_at=? WHERE id=?`,
			status, *stageStartedAt, updatedAt, id)
	} else {
		res, err = tx.ExecContext(ctx, `UPDATE tasks SET status=?, updated_at=? WHERE id=?`,
			status, updatedAt, id)
	}
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) SetTaskComplexity(ctx context.Context, id string, score int, updatedAt string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE tasks SET complexity_score=?, updated_at=? WHERE id=?`,
		score, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type TaskFilters struct {
	ProjectID string
	Status    string
	Source    string
	Parent    string
	Limit     int
}

func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	var clauses []string
	var args []any
	if f.ProjectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.Source != "" {
		clauses = append(clauses, "source=?")
		args = append(args, f.Source)
	}
	if f.Parent != "" {
		clauses = append(clauses, "parent_task_id=?")
		args = append(args, f.Parent)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + taskColumns + ` FROM tasks ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	return r.queryTasks(ctx, query, args...)
}

// TodoTasks returns a project's todo tasks in execution order: generated
// sequence first (unsequenced manual tasks last), then creation time, then
// id for determinism.
func (r Repo) TodoTasks(ctx context.Context, projectID string) ([]domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE project_id=? AND status=? ORDER BY
		CASE WHEN sequence IS NULL THEN 1 ELSE 0 END,
		sequence ASC,
		created_at ASC,
		id ASC`
	return r.queryTasks(ctx, query, projectID, domain.StatusTodo)
}

// ActiveTasks returns tasks currently being worked or reviewed.
func (r Repo) ActiveTasks(ctx context.Context, projectID string) ([]domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE project_id=? AND status IN (?,?) ORDER BY created_at ASC, id ASC`
	return r.queryTasks(ctx, query, projectID, domain.StatusInProgress, domain.StatusInReview)
}

// TimedOutTasks returns stage-tracked tasks whose stage clock started
// strictly before the cutoff.
func (r Repo) TimedOutTasks(ctx context.Context, projectID, cutoff string) ([]domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks
		WHERE project_id=? AND status IN (?,?) AND stage_started_at IS NOT NULL AND stage_started_at < ?
		ORDER BY stage_started_at ASC, id ASC`
	return r.queryTasks(ctx, query, projectID, domain.StatusInProgress, domain.StatusInReview, cutoff)
}

// MaxSequence returns the highest assigned sequence in a project, or -1 when
// no task carries one.
func (r Repo) MaxSequence(ctx context.Context, tx *sql.Tx, projectID string) (int, error) {
	var max int
	row := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(sequence),-1) FROM tasks WHERE project_id=?`, projectID)
	if err := row.Scan(&max); err != nil {
		return 0, err
	}
	return max, nil
}

func (r Repo) DeleteGeneratedTasks(ctx context.Context, tx *sql.Tx, projectID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE project_id=? AND source=?`, projectID, domain.SourceAIGenerated)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r Repo) CountGeneratedTasks(ctx context.Context, projectID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM tasks WHERE project_id=? AND source=?`,
		projectID, domain.SourceAIGenerated).Scan(&n)
	return n, err
}

func (r Repo) CountTasksByStatus(ctx context.Context, projectID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, count(*) FROM tasks WHERE project_id=? GROUP BY status`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		res[status] = count
	}
	return res, rows.Err()
}

func (r Repo) queryTasks(ctx context.Context, query string, args ...any) ([]domain.Task, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}
