package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quotedesk/approval-api/internal/models"
)

func TestNotificationServiceDeliversEvent(t *testing.T) {
	received := make(chan models.TransitionEvent, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var event models.TransitionEvent
		require.NoError(t, json.NewDecoder(r.Body).Decode(&event))
		received <- event
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	svc := NewNotificationService(NotificationConfig{
		WebhookURL: server.URL,
		Workers:    1,
	}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	svc.Notify(ctx, models.TransitionEvent{
		WorkflowID: "wf-1",
		FromStep:   1,
		ToStep:     2,
		NewStatus:  models.WorkflowStatusInProgress,
		DocumentID: "doc-1",
		ClientName: "Acme Corp",
		Amount:     500,
	})

	select {
	case event := <-received:
		require.Equal(t, "wf-1", event.WorkflowID)
		require.Equal(t, models.WorkflowStatusInProgress, event.NewStatus)
		require.Equal(t, 2, event.ToStep)
	case <-time.After(2 * time.Second):
		t.Fatal("transition event was not delivered")
	}
}

func TestNotificationServiceRetriesFailedDelivery(t *testing.T) {
	attempts := make(chan int, 4)
	var count int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count++
		attempts <- count
		if count == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	svc := NewNotificationService(NotificationConfig{
		WebhookURL: server.URL,
		Workers:    1,
		MaxRetries: 2,
		RetryDelay: 10 * time.Millisecond,
	}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	svc.Notify(ctx, models.TransitionEvent{WorkflowID: "wf-1", NewStatus: models.WorkflowStatusDenied})

	deadline := time.After(2 * time.Second)
	for {
		select {
		case n := <-attempts:
			if n >= 2 {
				return
			}
		case <-deadline:
			t.Fatal("delivery was not retried")
		}
	}
}

func TestNotificationServiceDisabledWithoutWebhook(t *testing.T) {
	svc := NewNotificationService(NotificationConfig{}, nil)
	svc.Start(context.Background())
	defer svc.Stop()

	// no queue, no panic
	svc.Notify(context.Background(), models.TransitionEvent{WorkflowID: "wf-1"})
}
