package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/quotedesk/approval-api/internal/models"
)

const workflowColumns = `id, document_id, document_type, client_name, amount, status, current_step, total_steps, workflow_steps, version, created_at, updated_at`

// WorkflowRepository persists approval workflows. A workflow is one row,
// its step chain embedded as a JSONB array, so reads and writes always
// cover the whole document.
type WorkflowRepository struct {
	db *sqlx.DB
}

// NewWorkflowRepository constructs the repository.
func NewWorkflowRepository(db *sqlx.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

// Create inserts a new workflow row.
func (r *WorkflowRepository) Create(ctx context.Context, wf *models.Workflow) error {
	if wf.ID == "" {
		wf.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if wf.CreatedAt.IsZero() {
		wf.CreatedAt = now
	}
	wf.UpdatedAt = wf.CreatedAt
	wf.Version = 1
	const query = `INSERT INTO workflows
	(id, document_id, document_type, client_name, amount, status, current_step, total_steps, workflow_steps, version, created_at, updated_at)
	VALUES (:id, :document_id, :document_type, :client_name, :amount, :status, :current_step, :total_steps, :workflow_steps, :version, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, wf); err != nil {
		return fmt.Errorf("create workflow: %w", err)
	}
	return nil
}

// GetByID fetches a workflow by identifier.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE id = $1`
	var wf models.Workflow
	if err := r.db.GetContext(ctx, &wf, query, id); err != nil {
		return nil, err
	}
	return &wf, nil
}

// List returns every workflow, most recent first. This is the audit
// view shared by all roles.
func (r *WorkflowRepository) List(ctx context.Context) ([]models.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows ORDER BY created_at DESC`
	var workflows []models.Workflow
	if err := r.db.SelectContext(ctx, &workflows, query); err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	return workflows, nil
}

// ListQueue returns non-terminal workflows whose active step is owned by
// the given role. Ownership is derived from (status, current_step) and
// the embedded step array on every call; there is no cached assignment
// flag to go stale.
func (r *WorkflowRepository) ListQueue(ctx context.Context, role models.UserRole) ([]models.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows
	WHERE status IN ($1, $2)
	  AND workflow_steps -> (current_step - 1) ->> 'role' = $3
	ORDER BY created_at DESC`
	var workflows []models.Workflow
	if err := r.db.SelectContext(ctx, &workflows, query,
		models.WorkflowStatusPending, models.WorkflowStatusInProgress, string(role)); err != nil {
		return nil, fmt.Errorf("list workflow queue for %s: %w", role, err)
	}
	return workflows, nil
}

// Update persists the full workflow state guarded by the version read at
// load time. Zero rows affected surfaces as sql.ErrNoRows; the caller
// disambiguates a missing row from a stale version.
func (r *WorkflowRepository) Update(ctx context.Context, wf *models.Workflow) error {
	const query = `UPDATE workflows SET
	document_type = :document_type,
	client_name = :client_name,
	amount = :amount,
	status = :status,
	current_step = :current_step,
	workflow_steps = :workflow_steps,
	version = version + 1,
	updated_at = :updated_at
	WHERE id = :id AND version = :version`
	result, err := r.db.NamedExecContext(ctx, query, wf)
	if err != nil {
		return fmt.Errorf("update workflow: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check workflow update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	wf.Version++
	return nil
}

// Delete removes a workflow row. Hard delete, no undo.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete workflow: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check workflow delete rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Exists reports whether a workflow row is present, used to tell a
// stale-version write apart from a deleted workflow.
func (r *WorkflowRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM workflows WHERE id = $1)`, id); err != nil {
		return false, fmt.Errorf("check workflow exists: %w", err)
	}
	return exists, nil
}
