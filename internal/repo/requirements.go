package repo

import (
	"context"
	"database/sql"

	"autoboard/internal/domain"
)

const requirementsColumns = `id,project_id,raw_requirements,prd_content,analysis_result,generation_status,error_message,created_at,updated_at`

func scanRequirements(scan func(dest ...any) error) (domain.RequirementsRequest, error) {
	var req domain.RequirementsRequest
	var prd, analysis, errMsg sql.NullString
	err := scan(&req.ID, &req.ProjectID, &req.RawRequirements, &prd, &analysis,
		&req.GenerationStatus, &errMsg, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return req, err
	}
	if prd.Valid {
		req.PRDContent = &prd.String
	}
	if analysis.Valid {
		req.AnalysisResult = &analysis.String
	}
	if errMsg.Valid {
		req.ErrorMessage = &errMsg.String
	}
	return req, nil
}

func (r Repo) InsertRequirementsRequest(ctx context.Context, tx *sql.Tx, req domain.RequirementsRequest) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO requirements_requests(`+requirementsColumns+`) VALUES (?,?,?,?,?,?,?,?,?)`,
		req.ID, req.ProjectID, req.RawRequirements, nullableStringPtr(req.PRDContent),
		nullableStringPtr(req.AnalysisResult), req.GenerationStatus, nullableStringPtr(req.ErrorMessage),
		req.CreatedAt, req.UpdatedAt)
	return err
}

func (r Repo) GetRequirementsRequest(ctx context.Context, id string) (domain.RequirementsRequest, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+requirementsColumns+` FROM requirements_requests WHERE id=?`, id)
	req, err := scanRequirements(row.Scan)
	if err == sql.ErrNoRows {
		return req, ErrNotFound
	}
	return req, err
}

// LatestRequirementsRequest returns the most recent request for a project.
func (r Repo) LatestRequirementsRequest(ctx context.Context, projectID string) (domain.RequirementsRequest, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+requirementsColumns+` FROM requirements_requests WHERE project_id=? ORDER BY created_at DESC, id DESC LIMIT 1`, projectID)
	req, err := scanRequirements(row.Scan)
	if err == sql.ErrNoRows {
		return req, ErrNotFound
	}
	return req, err
}

// InFlightRequirementsRequest returns a non-terminal request for the project,
// or ErrNotFound when analysis is idle.
func (r Repo) InFlightRequirementsRequest(ctx context.Context, tx *sql.Tx, projectID string) (domain.RequirementsRequest, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+requirementsColumns+` FROM requirements_requests WHERE project_id=? AND generation_status IN (?,?,?) LIMIT 1`,
		projectID, domain.GenerationPending, domain.GenerationAnalyzing, domain.GenerationRunning)
	req, err := scanRequirements(row.Scan)
	if err == sql.ErrNoRows {
		return req, ErrNotFound
	}
	return req, err
}

func (r Repo) SetRequirementsStatus(ctx context.Context, id, status string, errMsg *string, updatedAt string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE requirements_requests SET generation_status=?, error_message=?, updated_at=? WHERE id=?`,
		status, nullableStringPtr(errMsg), updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) SetRequirementsAnalysis(ctx context.Context, id, analysisJSON, updatedAt string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE requirements_requests SET analysis_result=?, updated_at=? WHERE id=?`,
		analysisJSON, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteRequirementsRequests(ctx context.Context, tx *sql.Tx, projectID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM requirements_requests WHERE project_id=?`, projectID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
