package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// WorkflowStatus captures the overall state of an approval workflow.
type WorkflowStatus string

const (
	WorkflowStatusPending    WorkflowStatus = "PENDING"
	WorkflowStatusInProgress WorkflowStatus = "IN_PROGRESS"
	WorkflowStatusApproved   WorkflowStatus = "APPROVED"
	WorkflowStatusDenied     WorkflowStatus = "DENIED"
)

// Terminal reports whether no further step mutation is permitted.
func (s WorkflowStatus) Terminal() bool {
	return s == WorkflowStatusApproved || s == WorkflowStatusDenied
}

// StepStatus captures the state of a single approval step.
type StepStatus string

const (
	StepStatusPending  StepStatus = "PENDING"
	StepStatusApproved StepStatus = "APPROVED"
	StepStatusDenied   StepStatus = "DENIED"
)

// Valid reports whether s is one of the known step states.
func (s StepStatus) Valid() bool {
	return s == StepStatusPending || s == StepStatusApproved || s == StepStatusDenied
}

// WorkflowStep is one stage in the approval chain. Steps are 1-indexed
// and their order is the chain; they are never reordered.
type WorkflowStep struct {
	Step      int        `json:"step"`
	Role      UserRole   `json:"role"`
	Email     string     `json:"email,omitempty"`
	Status    StepStatus `json:"status"`
	Comments  string     `json:"comments,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// WorkflowSteps is the embedded ordered step array, stored as a single
// JSONB column so a workflow is always read and written as one document.
type WorkflowSteps []WorkflowStep

// Value implements driver.Valuer.
func (s WorkflowSteps) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner.
func (s *WorkflowSteps) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*s = nil
		return nil
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("unsupported workflow_steps source type %T", src)
	}
}

// Workflow is a single document's journey through an ordered approval
// chain. Version is the optimistic concurrency token: every persisted
// update requires the version read and increments it.
type Workflow struct {
	ID           string         `db:"id" json:"id"`
	DocumentID   string         `db:"document_id" json:"document_id"`
	DocumentType string         `db:"document_type" json:"document_type"`
	ClientName   string         `db:"client_name" json:"client_name"`
	Amount       float64        `db:"amount" json:"amount"`
	Status       WorkflowStatus `db:"status" json:"status"`
	CurrentStep  int            `db:"current_step" json:"current_step"`
	TotalSteps   int            `db:"total_steps" json:"total_steps"`
	Steps        WorkflowSteps  `db:"workflow_steps" json:"workflow_steps"`
	Version      int            `db:"version" json:"version"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// ActiveStep returns the step awaiting action, or nil when the chain is
// exhausted or the workflow shape is inconsistent.
func (w *Workflow) ActiveStep() *WorkflowStep {
	if w.CurrentStep < 1 || w.CurrentStep > len(w.Steps) {
		return nil
	}
	return &w.Steps[w.CurrentStep-1]
}

// Clone returns a deep copy, so transition logic never aliases the
// caller's step slice.
func (w *Workflow) Clone() *Workflow {
	clone := *w
	clone.Steps = make(WorkflowSteps, len(w.Steps))
	copy(clone.Steps, w.Steps)
	for i := range w.Steps {
		if w.Steps[i].Timestamp != nil {
			ts := *w.Steps[i].Timestamp
			clone.Steps[i].Timestamp = &ts
		}
	}
	return &clone
}

// StepUpdate is a requested mutation of a single step. Nil fields are
// left untouched; a nil Status records a comment without deciding.
type StepUpdate struct {
	Status   *StepStatus
	Comments *string
	Email    *string
}

// WorkflowPatch is the administrative partial update applied outside the
// step transition path. Trusted callers only.
type WorkflowPatch struct {
	Status      *WorkflowStatus
	CurrentStep *int
	ClientName  *string
	Amount      *float64
}

// TransitionEvent is emitted to the notification boundary whenever a
// step decision changes the workflow's overall status.
type TransitionEvent struct {
	WorkflowID string         `json:"workflow_id"`
	FromStep   int            `json:"from_step"`
	ToStep     int            `json:"to_step"`
	NewStatus  WorkflowStatus `json:"new_status"`
	DocumentID string         `json:"document_id"`
	ClientName string         `json:"client_name"`
	Amount     float64        `json:"amount"`
}
