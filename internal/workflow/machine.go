// Package workflow holds the pure transition logic for the approval
// state machine. It never touches storage or notifications, so the full
// space of step positions and statuses is unit-testable in isolation.
package workflow

import (
	"strings"
	"time"

	"github.com/quotedesk/approval-api/internal/models"
	appErrors "github.com/quotedesk/approval-api/pkg/errors"
)

// Transition applies a step mutation to a workflow and computes the new
// step list, current step, and overall status. The input workflow is
// never mutated; on success a deep copy carrying the new state is
// returned.
//
// Rules:
//   - terminal workflows reject every mutation (WORKFLOW_TERMINATED)
//   - only the current step may be acted on (STEP_NOT_ACTIVE)
//   - a status outside the step enum is rejected (VALIDATION_ERROR)
//   - denial requires a non-blank comment in the update (COMMENT_REQUIRED)
//   - approving the last step terminates the workflow as APPROVED
//   - approving any earlier step advances currentStep and marks the
//     workflow IN_PROGRESS
//   - denial terminates the workflow as DENIED from any position;
//     currentStep freezes and later steps stay PENDING forever
//   - a comment-only update leaves workflow status and currentStep alone
func Transition(wf *models.Workflow, stepNumber int, update models.StepUpdate, now time.Time) (*models.Workflow, error) {
	if wf.Status.Terminal() {
		return nil, appErrors.ErrWorkflowTerminated
	}
	if stepNumber != wf.CurrentStep {
		return nil, appErrors.ErrStepNotActive
	}
	if update.Status != nil {
		if !update.Status.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown step status: "+string(*update.Status))
		}
		if *update.Status == models.StepStatusDenied {
			if update.Comments == nil || strings.TrimSpace(*update.Comments) == "" {
				return nil, appErrors.ErrCommentRequired
			}
		}
	}

	next := wf.Clone()
	step := &next.Steps[stepNumber-1]
	if update.Status != nil {
		step.Status = *update.Status
	}
	if update.Comments != nil {
		step.Comments = *update.Comments
	}
	if update.Email != nil {
		step.Email = *update.Email
	}
	ts := now
	step.Timestamp = &ts

	switch step.Status {
	case models.StepStatusApproved:
		if stepNumber == next.TotalSteps {
			next.Status = models.WorkflowStatusApproved
		} else {
			next.Status = models.WorkflowStatusInProgress
			next.CurrentStep = stepNumber + 1
		}
	case models.StepStatusDenied:
		next.Status = models.WorkflowStatusDenied
	}

	next.UpdatedAt = now
	return next, nil
}

// ValidateSteps checks that a requested approval chain is non-empty,
// 1-indexed, and contiguous, and that every step names an approver role.
func ValidateSteps(steps []models.WorkflowStep) error {
	if len(steps) == 0 {
		return appErrors.Clone(appErrors.ErrInvalidSpec, "workflow requires at least one step")
	}
	for i, step := range steps {
		if step.Step != i+1 {
			return appErrors.ErrInvalidSpec
		}
		if !step.Role.IsApprover() {
			return appErrors.Clone(appErrors.ErrInvalidSpec, "step role must be an approver role")
		}
	}
	return nil
}
