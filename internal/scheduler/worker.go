package scheduler

import (
	"context"
	"fmt"

	"leadfunnel_backend/internal/callcycle"
	"leadfunnel_backend/internal/marketing"
	"leadfunnel_backend/internal/whatsapp"
	"leadfunnel_backend/platform/config"
	"leadfunnel_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Worker consumes engagement tasks and routes them to the engine services.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	calls     *callcycle.Service
	whatsapp  *whatsapp.Service
	marketing *marketing.Service
	log       *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, calls *callcycle.Service, wa *whatsapp.Service, mkt *marketing.Service, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:    server,
		mux:       mux,
		calls:     calls,
		whatsapp:  wa,
		marketing: mkt,
		log:       log,
	}

	mux.HandleFunc(TaskCallAttempt, w.handleCallAttempt)
	mux.HandleFunc(TaskWhatsAppTrigger, w.handleWhatsAppTrigger)
	mux.HandleFunc(TaskMarketingDispatch, w.handleMarketingDispatch)
	mux.HandleFunc(TaskPaidCongrats, w.handlePaidCongrats)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleCallAttempt(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseCallAttemptPayload(task)
	if err != nil {
		return err
	}

	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return err
	}

	// A version conflict bubbles up as an error so asynq retries the
	// attempt against fresh state.
	return w.calls.RunAttempt(ctx, leadID, payload.RedialCount)
}

func (w *Worker) handleWhatsAppTrigger(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseWhatsAppTriggerPayload(task)
	if err != nil {
		return err
	}

	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return err
	}

	return w.whatsapp.ProcessTrigger(ctx, leadID, payload.Source)
}

func (w *Worker) handleMarketingDispatch(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseMarketingDispatchPayload(task)
	if err != nil {
		return err
	}

	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return err
	}

	return w.marketing.Dispatch(ctx, leadID, payload.Channel)
}

func (w *Worker) handlePaidCongrats(ctx context.Context, task *asynq.Task) error {
	payload, err := ParsePaidCongratsPayload(task)
	if err != nil {
		return err
	}

	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return err
	}

	return w.marketing.SendPaidCongrats(ctx, leadID)
}
