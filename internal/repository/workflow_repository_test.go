package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/quotedesk/approval-api/internal/models"
)

func newWorkflowRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func workflowRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "document_id", "document_type", "client_name", "amount", "status", "current_step", "total_steps", "workflow_steps", "version", "created_at", "updated_at"})
}

const stepsJSON = `[{"step":1,"role":"TECHNICAL_TEAM","status":"PENDING"},{"step":2,"role":"LEGAL_TEAM","status":"PENDING"}]`

func TestWorkflowRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newWorkflowRepoMock(t)
	defer cleanup()

	repo := NewWorkflowRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO workflows")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	wf := &models.Workflow{
		DocumentID:   "doc-1",
		DocumentType: "quote",
		ClientName:   "Acme Corp",
		Amount:       1200,
		Status:       models.WorkflowStatusPending,
		CurrentStep:  1,
		TotalSteps:   2,
		Steps: models.WorkflowSteps{
			{Step: 1, Role: models.RoleTechnicalTeam, Status: models.StepStatusPending},
			{Step: 2, Role: models.RoleLegalTeam, Status: models.StepStatusPending},
		},
	}
	require.NoError(t, repo.Create(context.Background(), wf))
	require.NotEmpty(t, wf.ID)
	require.Equal(t, 1, wf.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkflowRepositoryGetByIDScansSteps(t *testing.T) {
	db, mock, cleanup := newWorkflowRepoMock(t)
	defer cleanup()

	repo := NewWorkflowRepository(db)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, document_id, document_type")).
		WithArgs("wf-1").
		WillReturnRows(workflowRows().
			AddRow("wf-1", "doc-1", "quote", "Acme Corp", 1200.0, "IN_PROGRESS", 2, 2, []byte(stepsJSON), 3, now, now))

	wf, err := repo.GetByID(context.Background(), "wf-1")
	require.NoError(t, err)
	require.Equal(t, "wf-1", wf.ID)
	require.Equal(t, 3, wf.Version)
	require.Len(t, wf.Steps, 2)
	require.Equal(t, models.RoleLegalTeam, wf.Steps[1].Role)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkflowRepositoryGetByIDNotFound(t *testing.T) {
	db, mock, cleanup := newWorkflowRepoMock(t)
	defer cleanup()

	repo := NewWorkflowRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, document_id, document_type")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkflowRepositoryListQueueFiltersByRole(t *testing.T) {
	db, mock, cleanup := newWorkflowRepoMock(t)
	defer cleanup()

	repo := NewWorkflowRepository(db)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("workflow_steps -> (current_step - 1) ->> 'role' = $3")).
		WithArgs("PENDING", "IN_PROGRESS", "LEGAL_TEAM").
		WillReturnRows(workflowRows().
			AddRow("wf-1", "doc-1", "quote", "Acme Corp", 1200.0, "IN_PROGRESS", 2, 2, []byte(stepsJSON), 2, now, now))

	queue, err := repo.ListQueue(context.Background(), models.RoleLegalTeam)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	require.Equal(t, "wf-1", queue[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkflowRepositoryUpdateBumpsVersion(t *testing.T) {
	db, mock, cleanup := newWorkflowRepoMock(t)
	defer cleanup()

	repo := NewWorkflowRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE workflows SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	wf := &models.Workflow{ID: "wf-1", Version: 2, Steps: models.WorkflowSteps{}}
	require.NoError(t, repo.Update(context.Background(), wf))
	require.Equal(t, 3, wf.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkflowRepositoryUpdateStaleVersion(t *testing.T) {
	db, mock, cleanup := newWorkflowRepoMock(t)
	defer cleanup()

	repo := NewWorkflowRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE workflows SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	wf := &models.Workflow{ID: "wf-1", Version: 1, Steps: models.WorkflowSteps{}}
	err := repo.Update(context.Background(), wf)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.Equal(t, 1, wf.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkflowRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newWorkflowRepoMock(t)
	defer cleanup()

	repo := NewWorkflowRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM workflows")).
		WithArgs("wf-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), "wf-1"))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM workflows")).
		WithArgs("wf-2").
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, repo.Delete(context.Background(), "wf-2"), sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkflowRepositoryExists(t *testing.T) {
	db, mock, cleanup := newWorkflowRepoMock(t)
	defer cleanup()

	repo := NewWorkflowRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("wf-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.Exists(context.Background(), "wf-1")
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}
