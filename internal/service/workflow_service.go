package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/quotedesk/approval-api/internal/dto"
	"github.com/quotedesk/approval-api/internal/models"
	"github.com/quotedesk/approval-api/internal/workflow"
	appErrors "github.com/quotedesk/approval-api/pkg/errors"
)

const queueCacheKeyPrefix = "workflows:queue:"

type workflowStore interface {
	Create(ctx context.Context, wf *models.Workflow) error
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	List(ctx context.Context) ([]models.Workflow, error)
	ListQueue(ctx context.Context, role models.UserRole) ([]models.Workflow, error)
	Update(ctx context.Context, wf *models.Workflow) error
	Delete(ctx context.Context, id string) error
	Exists(ctx context.Context, id string) (bool, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type queueCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// TransitionNotifier receives the event emitted when a step decision
// changes the workflow's overall status. Delivery is best-effort and
// must never influence the persisted transition.
type TransitionNotifier interface {
	Notify(ctx context.Context, event models.TransitionEvent)
}

type engineMetrics interface {
	ObserveTransition(outcome string)
	RecordCacheOperation(hit bool)
}

// WorkflowService orchestrates the approval workflow engine: it
// validates mutations against persisted state, delegates the transition
// rules to the pure state machine, persists under the optimistic
// version guard, and fans out transition events.
type WorkflowService struct {
	repo      workflowStore
	audit     auditLogger
	cache     queueCache
	notifier  TransitionNotifier
	metrics   engineMetrics
	validator *validator.Validate
	logger    *zap.Logger
	queueTTL  time.Duration
	now       func() time.Time
}

// WorkflowServiceOption configures the service.
type WorkflowServiceOption func(*WorkflowService)

// WithQueueCache enables queue view caching with the given TTL.
func WithQueueCache(cache queueCache, ttl time.Duration) WorkflowServiceOption {
	return func(s *WorkflowService) {
		if cache != nil && ttl > 0 {
			s.cache = cache
			s.queueTTL = ttl
		}
	}
}

// WithNotifier wires the transition event boundary.
func WithNotifier(notifier TransitionNotifier) WorkflowServiceOption {
	return func(s *WorkflowService) {
		if notifier != nil {
			s.notifier = notifier
		}
	}
}

// WithMetrics wires transition and cache instrumentation.
func WithMetrics(metrics engineMetrics) WorkflowServiceOption {
	return func(s *WorkflowService) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) WorkflowServiceOption {
	return func(s *WorkflowService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewWorkflowService constructs the service with defaults.
func NewWorkflowService(repo workflowStore, audit auditLogger, logger *zap.Logger, opts ...WorkflowServiceOption) *WorkflowService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &WorkflowService{
		repo:      repo,
		audit:     audit,
		validator: validator.New(),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Create validates the requested chain and persists a new workflow with
// every step pending and step 1 active.
func (s *WorkflowService) Create(ctx context.Context, req dto.CreateWorkflowRequest, actor *models.JWTClaims) (*models.Workflow, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid workflow payload")
	}

	steps := make(models.WorkflowSteps, len(req.Steps))
	for i, step := range req.Steps {
		steps[i] = models.WorkflowStep{
			Step:   step.Step,
			Role:   step.Role,
			Email:  step.Email,
			Status: models.StepStatusPending,
		}
	}
	if err := workflow.ValidateSteps(steps); err != nil {
		return nil, err
	}

	wf := &models.Workflow{
		DocumentID:   req.DocumentID,
		DocumentType: req.DocumentType,
		ClientName:   req.ClientName,
		Amount:       req.Amount,
		Status:       models.WorkflowStatusPending,
		CurrentStep:  1,
		TotalSteps:   len(steps),
		Steps:        steps,
		CreatedAt:    s.now(),
	}
	if err := s.repo.Create(ctx, wf); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create workflow")
	}

	s.invalidateQueues(ctx)
	s.emitAudit(ctx, actor, models.AuditActionWorkflowCreate, wf.ID, nil, wf)
	return wf, nil
}

// Get returns a workflow by id.
func (s *WorkflowService) Get(ctx context.Context, id string) (*models.Workflow, error) {
	wf, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load workflow")
	}
	return wf, nil
}

// List returns every workflow, most recent first. Shared audit view for
// all roles; role-specific presentation is a UI concern.
func (s *WorkflowService) List(ctx context.Context) ([]models.Workflow, error) {
	workflows, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list workflows")
	}
	return workflows, nil
}

// Queue returns the non-terminal workflows whose active step is owned by
// the given role. Results may be served from cache; the store remains
// the source of truth on any miss or cache failure.
func (s *WorkflowService) Queue(ctx context.Context, role models.UserRole) ([]models.Workflow, error) {
	if !role.IsApprover() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role has no approval queue")
	}

	key := queueCacheKeyPrefix + string(role)
	if s.cache != nil {
		var cached []models.Workflow
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			if s.metrics != nil {
				s.metrics.RecordCacheOperation(true)
			}
			return cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("queue cache read failed", zap.String("role", string(role)), zap.Error(err))
		}
		if s.metrics != nil {
			s.metrics.RecordCacheOperation(false)
		}
	}

	workflows, err := s.repo.ListQueue(ctx, role)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approval queue")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, workflows, s.queueTTL); err != nil {
			s.logger.Warn("queue cache write failed", zap.String("role", string(role)), zap.Error(err))
		}
	}
	return workflows, nil
}

// UpdateStep applies an approver's action to the active step. The
// caller's role must own the targeted step; the transition rules live in
// the state machine; persistence is guarded by the version read here.
func (s *WorkflowService) UpdateStep(ctx context.Context, id string, stepNumber int, update models.StepUpdate, actor *models.JWTClaims) (*models.Workflow, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	wf, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if stepNumber < 1 || stepNumber > len(wf.Steps) {
		return nil, appErrors.ErrStepNotActive
	}
	if wf.Steps[stepNumber-1].Role != actor.Role {
		return nil, appErrors.ErrRoleMismatch
	}

	next, err := workflow.Transition(wf, stepNumber, update, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, next); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.resolveWriteConflict(ctx, id)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist step update")
	}

	s.invalidateQueues(ctx)

	if next.Status != wf.Status {
		s.observeTransition(next.Status, wf.CurrentStep != next.CurrentStep)
		s.emitTransition(ctx, wf, next)
	}

	s.emitAudit(ctx, actor, models.AuditActionStepDecision, next.ID, wf.Steps[stepNumber-1], next.Steps[stepNumber-1])
	return next, nil
}

// Update is the administrative partial update. It bypasses the state
// machine and is reserved for trusted callers (route-gated to admins);
// every use is audited.
func (s *WorkflowService) Update(ctx context.Context, id string, patch models.WorkflowPatch, actor *models.JWTClaims) (*models.Workflow, error) {
	wf, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	before := wf.Clone()

	if patch.Status != nil {
		wf.Status = *patch.Status
	}
	if patch.CurrentStep != nil {
		if *patch.CurrentStep < 1 || *patch.CurrentStep > wf.TotalSteps {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("currentStep must be within [1, %d]", wf.TotalSteps))
		}
		wf.CurrentStep = *patch.CurrentStep
	}
	if patch.ClientName != nil {
		wf.ClientName = *patch.ClientName
	}
	if patch.Amount != nil {
		wf.Amount = *patch.Amount
	}
	wf.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, wf); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.resolveWriteConflict(ctx, id)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update workflow")
	}

	s.invalidateQueues(ctx)
	s.emitAudit(ctx, actor, models.AuditActionWorkflowPatch, wf.ID, before, wf)
	return wf, nil
}

// Delete removes a workflow. Hard delete, administrative only.
func (s *WorkflowService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete workflow")
	}
	s.invalidateQueues(ctx)
	s.emitAudit(ctx, actor, models.AuditActionWorkflowDelete, id, nil, nil)
	return nil
}

// resolveWriteConflict tells a stale-version write apart from a deleted
// workflow after a zero-row update.
func (s *WorkflowService) resolveWriteConflict(ctx context.Context, id string) error {
	exists, err := s.repo.Exists(ctx, id)
	if err != nil {
		s.logger.Warn("failed to resolve write conflict", zap.String("workflow_id", id), zap.Error(err))
		return appErrors.ErrConcurrentModification
	}
	if !exists {
		return appErrors.ErrNotFound
	}
	return appErrors.ErrConcurrentModification
}

// emitTransition hands the event to the notification boundary. The
// transition is already durable; failures here are the notifier's to
// log, never the approver's to see.
func (s *WorkflowService) emitTransition(ctx context.Context, before, after *models.Workflow) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, models.TransitionEvent{
		WorkflowID: after.ID,
		FromStep:   before.CurrentStep,
		ToStep:     after.CurrentStep,
		NewStatus:  after.Status,
		DocumentID: after.DocumentID,
		ClientName: after.ClientName,
		Amount:     after.Amount,
	})
}

func (s *WorkflowService) observeTransition(status models.WorkflowStatus, advanced bool) {
	if s.metrics == nil {
		return
	}
	switch {
	case status == models.WorkflowStatusApproved:
		s.metrics.ObserveTransition("approved")
	case status == models.WorkflowStatusDenied:
		s.metrics.ObserveTransition("denied")
	case advanced:
		s.metrics.ObserveTransition("advanced")
	}
}

func (s *WorkflowService) invalidateQueues(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, queueCacheKeyPrefix+"*"); err != nil {
		s.logger.Warn("queue cache invalidation failed", zap.Error(err))
	}
}

func (s *WorkflowService) emitAudit(ctx context.Context, actor *models.JWTClaims, action, workflowID string, oldValue, newValue interface{}) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		Action:     action,
		Resource:   "workflow",
		ResourceID: &workflowID,
		IPAddress:  "system",
		UserAgent:  "workflow-service",
	}
	if actor != nil {
		userID := actor.UserID
		log.UserID = &userID
	}
	if oldValue != nil {
		log.OldValues, _ = json.Marshal(oldValue)
	}
	if newValue != nil {
		log.NewValues, _ = json.Marshal(newValue)
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
