package dto

import "github.com/quotedesk/approval-api/internal/models"

// CreateWorkflowStep describes one position in the requested chain.
type CreateWorkflowStep struct {
	Step  int             `json:"step" validate:"required,min=1"`
	Role  models.UserRole `json:"role" validate:"required"`
	Email string          `json:"email" validate:"omitempty,email"`
}

// CreateWorkflowRequest payload for starting a new approval workflow.
type CreateWorkflowRequest struct {
	DocumentID   string               `json:"documentId" validate:"required"`
	DocumentType string               `json:"documentType" validate:"required"`
	ClientName   string               `json:"clientName" validate:"required"`
	Amount       float64              `json:"amount" validate:"gte=0"`
	Steps        []CreateWorkflowStep `json:"workflowSteps" validate:"required,min=1,dive"`
}

// UpdateStepRequest captures an approver's action on the active step.
// All fields are optional: omitting status records a comment (or email
// correction) without deciding.
type UpdateStepRequest struct {
	Status   *models.StepStatus `json:"status"`
	Comments *string            `json:"comments"`
	Email    *string            `json:"email"`
}

// UpdateWorkflowRequest is the administrative partial update. It
// bypasses the step transition rules and is restricted to admins.
type UpdateWorkflowRequest struct {
	Status      *models.WorkflowStatus `json:"status"`
	CurrentStep *int                   `json:"currentStep"`
	ClientName  *string                `json:"clientName"`
	Amount      *float64               `json:"amount"`
}

// CreateWorkflowResponse returns the identifier of the created workflow.
type CreateWorkflowResponse struct {
	WorkflowID string `json:"workflowId"`
}
