package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quotedesk/approval-api/internal/models"
	"github.com/quotedesk/approval-api/pkg/jobs"
)

// NotificationConfig configures transition event delivery.
type NotificationConfig struct {
	WebhookURL string
	Timeout    time.Duration
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// NotificationService delivers transition events to the external
// notification system over a webhook. Delivery is asynchronous and
// best-effort: the transition is durable before any attempt, and
// failures are logged, never surfaced to the approver.
type NotificationService struct {
	webhookURL string
	client     *http.Client
	queue      *jobs.Queue
	logger     *zap.Logger
}

// NewNotificationService constructs the service. An empty webhook URL
// disables delivery entirely.
func NewNotificationService(cfg NotificationConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	svc := &NotificationService{
		webhookURL: cfg.WebhookURL,
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}
	if cfg.WebhookURL != "" {
		svc.queue = jobs.NewQueue("workflow-notifications", svc.deliver, jobs.QueueConfig{
			Workers:    cfg.Workers,
			MaxRetries: cfg.MaxRetries,
			RetryDelay: cfg.RetryDelay,
			Logger:     logger,
		})
	}
	return svc
}

// Start begins background delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	if s.queue != nil {
		s.queue.Start(ctx)
	}
}

// Stop drains the delivery workers.
func (s *NotificationService) Stop() {
	if s.queue != nil {
		s.queue.Stop()
	}
}

// Notify enqueues a transition event for delivery. It never blocks the
// caller beyond channel submission and never returns an error: a full
// or stopped queue is logged and the event dropped (at-most-once).
func (s *NotificationService) Notify(ctx context.Context, event models.TransitionEvent) {
	if s.queue == nil {
		return
	}
	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    "transition_event",
		Payload: event,
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("dropping transition event",
			zap.String("workflow_id", event.WorkflowID),
			zap.String("new_status", string(event.NewStatus)),
			zap.Error(err))
	}
}

func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.TransitionEvent)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal transition event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post transition event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}

	s.logger.Debug("transition event delivered",
		zap.String("workflow_id", event.WorkflowID),
		zap.String("new_status", string(event.NewStatus)))
	return nil
}
