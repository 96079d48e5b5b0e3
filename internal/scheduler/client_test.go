package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type testSchedulerConfig struct {
	redisURL string
}

func (c testSchedulerConfig) GetRedisURL() string       { return c.redisURL }
func (c testSchedulerConfig) GetRedisTLSInsecure() bool { return false }
func (c testSchedulerConfig) GetAsynqQueueName() string { return "engagement" }
func (c testSchedulerConfig) GetAsynqConcurrency() int  { return 1 }

func newTestClient(t *testing.T) (*Client, *asynq.Inspector) {
	t.Helper()

	mr := miniredis.RunT(t)
	cfg := testSchedulerConfig{redisURL: "redis://" + mr.Addr()}

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: mr.Addr()})
	t.Cleanup(func() { _ = inspector.Close() })

	return client, inspector
}

func TestEnqueueCallAttempt(t *testing.T) {
	client, inspector := newTestClient(t)

	if err := client.EnqueueCallAttempt(context.Background(), uuid.New()); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	pending, err := inspector.ListPendingTasks("engagement")
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending task, got %d", len(pending))
	}
	if pending[0].Type != TaskCallAttempt {
		t.Fatalf("expected task type %s, got %s", TaskCallAttempt, pending[0].Type)
	}
}

func TestScheduleRedialIsDelayed(t *testing.T) {
	client, inspector := newTestClient(t)
	leadID := uuid.New()

	if err := client.ScheduleRedial(context.Background(), leadID, 1, 5*time.Minute); err != nil {
		t.Fatalf("schedule redial: %v", err)
	}

	pending, err := inspector.ListPendingTasks("engagement")
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("redial must not be pending immediately, got %d", len(pending))
	}

	scheduled, err := inspector.ListScheduledTasks("engagement")
	if err != nil {
		t.Fatalf("list scheduled: %v", err)
	}
	if len(scheduled) != 1 {
		t.Fatalf("expected 1 scheduled task, got %d", len(scheduled))
	}

	payload, err := ParseCallAttemptPayload(asynq.NewTask(scheduled[0].Type, scheduled[0].Payload))
	if err != nil {
		t.Fatalf("parse payload: %v", err)
	}
	if payload.LeadID != leadID.String() || payload.RedialCount != 1 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestEnqueueWhatsAppTrigger(t *testing.T) {
	client, inspector := newTestClient(t)

	if err := client.EnqueueWhatsAppTrigger(context.Background(), uuid.New(), "voice_pressed_1"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	pending, err := inspector.ListPendingTasks("engagement")
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].Type != TaskWhatsAppTrigger {
		t.Fatalf("expected one whatsapp trigger task, got %+v", pending)
	}

	payload, err := ParseWhatsAppTriggerPayload(asynq.NewTask(pending[0].Type, pending[0].Payload))
	if err != nil {
		t.Fatalf("parse payload: %v", err)
	}
	if payload.Source != "voice_pressed_1" {
		t.Fatalf("unexpected source %q", payload.Source)
	}
}
