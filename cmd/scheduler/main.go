package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadfunnel_backend/internal/callcycle"
	"leadfunnel_backend/internal/email"
	"leadfunnel_backend/internal/events"
	leadrepo "leadfunnel_backend/internal/leads/repository"
	leadsvc "leadfunnel_backend/internal/leads/service"
	"leadfunnel_backend/internal/marketing"
	"leadfunnel_backend/internal/scheduler"
	"leadfunnel_backend/internal/templates"
	"leadfunnel_backend/internal/whatsapp"
	"leadfunnel_backend/platform/config"
	"leadfunnel_backend/platform/db"
	"leadfunnel_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	eventBus := events.NewInMemoryBus(log)

	queueClient, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = queueClient.Close() }()

	leadStore := leadrepo.New(pool)
	templateStore := templates.NewRepository(pool)
	connectionStore := whatsapp.NewRepository(pool)
	selector := templates.NewSelector(templateStore)
	emailSender := email.NewSender(cfg, log)

	if err := connectionStore.SeedPool(ctx, cfg.GetWhatsAppPoolSize(), cfg.GetWhatsAppDailyLimit()); err != nil {
		log.Error("failed to seed whatsapp pool", "error", err)
		panic("failed to seed whatsapp pool: " + err.Error())
	}

	leadService := leadsvc.New(leadStore, eventBus, cfg, log)
	whatsappService := whatsapp.NewService(
		connectionStore, leadStore,
		whatsapp.NewClient(cfg, cfg, log),
		selector, eventBus, cfg, log,
	)
	marketingService := marketing.NewService(
		leadStore,
		marketing.NewRCSClient(cfg, cfg, log),
		marketing.NewSMSClient(cfg, cfg, log),
		emailSender, selector, queueClient, eventBus, cfg, log,
	)
	callService := callcycle.NewService(
		leadStore,
		callcycle.NewClient(cfg, cfg, log),
		selector, queueClient, eventBus, cfg, log,
	)

	worker, err := scheduler.NewWorker(cfg, callService, whatsappService, marketingService, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	go scheduler.NewDailyResetJob(whatsappService, log).Run(ctx)
	go scheduler.NewExpirationSweepJob(leadService, log).Run(ctx)
	go scheduler.NewCycleDriverJob(leadStore, queueClient, log).Run(ctx)

	log.Info("scheduler worker starting", "queue", cfg.GetAsynqQueueName(), "concurrency", cfg.GetAsynqConcurrency())
	worker.Run(ctx)
	log.Info("scheduler stopped")
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
