package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quotedesk/approval-api/internal/models"
	appErrors "github.com/quotedesk/approval-api/pkg/errors"
)

func threeStepWorkflow() *models.Workflow {
	return &models.Workflow{
		ID:          "wf-1",
		DocumentID:  "doc-1",
		ClientName:  "Acme Corp",
		Amount:      12500,
		Status:      models.WorkflowStatusPending,
		CurrentStep: 1,
		TotalSteps:  3,
		Steps: models.WorkflowSteps{
			{Step: 1, Role: models.RoleTechnicalTeam, Status: models.StepStatusPending},
			{Step: 2, Role: models.RoleLegalTeam, Status: models.StepStatusPending},
			{Step: 3, Role: models.RoleClient, Status: models.StepStatusPending},
		},
	}
}

func stepStatus(s models.StepStatus) *models.StepStatus { return &s }

func strPtr(s string) *string { return &s }

func TestTransitionApproveAdvances(t *testing.T) {
	wf := threeStepWorkflow()
	now := time.Now().UTC()

	next, err := Transition(wf, 1, models.StepUpdate{Status: stepStatus(models.StepStatusApproved)}, now)
	require.NoError(t, err)
	require.Equal(t, models.WorkflowStatusInProgress, next.Status)
	require.Equal(t, 2, next.CurrentStep)
	require.Equal(t, models.StepStatusApproved, next.Steps[0].Status)
	require.NotNil(t, next.Steps[0].Timestamp)
	require.Equal(t, now, next.UpdatedAt)

	// input untouched
	require.Equal(t, models.WorkflowStatusPending, wf.Status)
	require.Equal(t, 1, wf.CurrentStep)
	require.Equal(t, models.StepStatusPending, wf.Steps[0].Status)
}

func TestTransitionApproveFinalStepTerminates(t *testing.T) {
	wf := threeStepWorkflow()
	wf.Status = models.WorkflowStatusInProgress
	wf.CurrentStep = 3
	wf.Steps[0].Status = models.StepStatusApproved
	wf.Steps[1].Status = models.StepStatusApproved

	next, err := Transition(wf, 3, models.StepUpdate{Status: stepStatus(models.StepStatusApproved)}, time.Now().UTC())
	require.NoError(t, err)
	require.Equal(t, models.WorkflowStatusApproved, next.Status)
	require.Equal(t, 3, next.CurrentStep)
}

func TestTransitionDenyShortCircuits(t *testing.T) {
	wf := threeStepWorkflow()
	wf.Status = models.WorkflowStatusInProgress
	wf.CurrentStep = 2
	wf.Steps[0].Status = models.StepStatusApproved

	next, err := Transition(wf, 2, models.StepUpdate{
		Status:   stepStatus(models.StepStatusDenied),
		Comments: strPtr("missing SOW"),
	}, time.Now().UTC())
	require.NoError(t, err)
	require.Equal(t, models.WorkflowStatusDenied, next.Status)
	require.Equal(t, 2, next.CurrentStep)
	require.Equal(t, models.StepStatusPending, next.Steps[2].Status)
	require.Equal(t, "missing SOW", next.Steps[1].Comments)
}

func TestTransitionDenyRequiresComment(t *testing.T) {
	wf := threeStepWorkflow()

	_, err := Transition(wf, 1, models.StepUpdate{Status: stepStatus(models.StepStatusDenied)}, time.Now().UTC())
	require.ErrorIs(t, err, appErrors.ErrCommentRequired)

	_, err = Transition(wf, 1, models.StepUpdate{
		Status:   stepStatus(models.StepStatusDenied),
		Comments: strPtr("   "),
	}, time.Now().UTC())
	require.ErrorIs(t, err, appErrors.ErrCommentRequired)

	// state unchanged after rejection
	require.Equal(t, models.StepStatusPending, wf.Steps[0].Status)
	require.Equal(t, models.WorkflowStatusPending, wf.Status)
}

func TestTransitionDenyIgnoresExistingComment(t *testing.T) {
	// a comment left on the step earlier does not stand in for the
	// denial rationale; the denying update must carry its own
	wf := threeStepWorkflow()
	wf.Steps[0].Comments = "quoted rates are stale"

	_, err := Transition(wf, 1, models.StepUpdate{Status: stepStatus(models.StepStatusDenied)}, time.Now().UTC())
	require.ErrorIs(t, err, appErrors.ErrCommentRequired)
}

func TestTransitionRejectsUnknownStatus(t *testing.T) {
	wf := threeStepWorkflow()

	next, err := Transition(wf, 1, models.StepUpdate{Status: stepStatus("BANANAS")}, time.Now().UTC())
	require.Nil(t, next)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	require.Equal(t, models.StepStatusPending, wf.Steps[0].Status)
	require.Equal(t, models.WorkflowStatusPending, wf.Status)
}

func TestTransitionRejectsInactiveStep(t *testing.T) {
	wf := threeStepWorkflow()

	for _, step := range []int{0, 2, 3, 4} {
		_, err := Transition(wf, step, models.StepUpdate{Status: stepStatus(models.StepStatusApproved)}, time.Now().UTC())
		require.ErrorIs(t, err, appErrors.ErrStepNotActive, "step %d", step)
	}
}

func TestTransitionRejectsTerminalWorkflow(t *testing.T) {
	for _, status := range []models.WorkflowStatus{models.WorkflowStatusApproved, models.WorkflowStatusDenied} {
		wf := threeStepWorkflow()
		wf.Status = status
		_, err := Transition(wf, 1, models.StepUpdate{Comments: strPtr("late note")}, time.Now().UTC())
		require.ErrorIs(t, err, appErrors.ErrWorkflowTerminated)
	}
}

func TestTransitionCommentOnlyKeepsStepActive(t *testing.T) {
	wf := threeStepWorkflow()
	now := time.Now().UTC()

	next, err := Transition(wf, 1, models.StepUpdate{Comments: strPtr("reviewing the line items")}, now)
	require.NoError(t, err)
	require.Equal(t, models.WorkflowStatusPending, next.Status)
	require.Equal(t, 1, next.CurrentStep)
	require.Equal(t, models.StepStatusPending, next.Steps[0].Status)
	require.Equal(t, "reviewing the line items", next.Steps[0].Comments)
	require.NotNil(t, next.Steps[0].Timestamp)
}

func TestTransitionEmailOnlyUpdate(t *testing.T) {
	wf := threeStepWorkflow()

	next, err := Transition(wf, 1, models.StepUpdate{Email: strPtr("lead@acme.example")}, time.Now().UTC())
	require.NoError(t, err)
	require.Equal(t, "lead@acme.example", next.Steps[0].Email)
	require.Equal(t, models.WorkflowStatusPending, next.Status)
}

func TestTransitionFullChain(t *testing.T) {
	wf := threeStepWorkflow()
	now := time.Now().UTC()

	next, err := Transition(wf, 1, models.StepUpdate{Status: stepStatus(models.StepStatusApproved)}, now)
	require.NoError(t, err)
	next, err = Transition(next, 2, models.StepUpdate{Status: stepStatus(models.StepStatusApproved)}, now)
	require.NoError(t, err)
	next, err = Transition(next, 3, models.StepUpdate{Status: stepStatus(models.StepStatusApproved)}, now)
	require.NoError(t, err)

	require.Equal(t, models.WorkflowStatusApproved, next.Status)
	for _, step := range next.Steps {
		require.Equal(t, models.StepStatusApproved, step.Status)
	}

	_, err = Transition(next, 3, models.StepUpdate{Status: stepStatus(models.StepStatusApproved)}, now)
	require.ErrorIs(t, err, appErrors.ErrWorkflowTerminated)
}

func TestValidateSteps(t *testing.T) {
	require.Error(t, ValidateSteps(nil))

	gap := []models.WorkflowStep{
		{Step: 1, Role: models.RoleTechnicalTeam},
		{Step: 3, Role: models.RoleLegalTeam},
	}
	require.ErrorIs(t, ValidateSteps(gap), appErrors.ErrInvalidSpec)

	zeroIndexed := []models.WorkflowStep{{Step: 0, Role: models.RoleTechnicalTeam}}
	require.ErrorIs(t, ValidateSteps(zeroIndexed), appErrors.ErrInvalidSpec)

	badRole := []models.WorkflowStep{{Step: 1, Role: models.RoleAdmin}}
	require.Error(t, ValidateSteps(badRole))

	valid := []models.WorkflowStep{
		{Step: 1, Role: models.RoleTechnicalTeam},
		{Step: 2, Role: models.RoleLegalTeam},
		{Step: 3, Role: models.RoleClient},
		{Step: 4, Role: models.RoleDealDesk},
	}
	require.NoError(t, ValidateSteps(valid))
}
