package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadfunnel_backend/internal/email"
	"leadfunnel_backend/internal/events"
	"leadfunnel_backend/internal/http/router"
	"leadfunnel_backend/internal/leads"
	leadrepo "leadfunnel_backend/internal/leads/repository"
	leadsvc "leadfunnel_backend/internal/leads/service"
	"leadfunnel_backend/internal/marketing"
	"leadfunnel_backend/internal/scheduler"
	"leadfunnel_backend/internal/templates"
	"leadfunnel_backend/internal/webhook"
	"leadfunnel_backend/internal/whatsapp"
	"leadfunnel_backend/platform/config"
	"leadfunnel_backend/platform/db"
	"leadfunnel_backend/platform/logger"
	"leadfunnel_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, cfg.MigrationsDir)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

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
	val := validator.New()

	queueClient, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = queueClient.Close() }()
	scheduler.RegisterEventHandlers(eventBus, queueClient, log)

	// Repositories and services shared across modules.
	leadStore := leadrepo.New(pool)
	templateStore := templates.NewRepository(pool)
	connectionStore := whatsapp.NewRepository(pool)
	selector := templates.NewSelector(templateStore)
	emailSender := email.NewSender(cfg, log)

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

	if err := connectionStore.SeedPool(ctx, cfg.GetWhatsAppPoolSize(), cfg.GetWhatsAppDailyLimit()); err != nil {
		log.Error("failed to seed whatsapp pool", "error", err)
		panic("failed to seed whatsapp pool: " + err.Error())
	}
	log.Info("whatsapp pool ready", "size", cfg.GetWhatsAppPoolSize(), "daily_limit", cfg.GetWhatsAppDailyLimit())

	webhookHandler := webhook.New(leadService, marketingService, whatsappService, queueClient, val, log)

	engine := router.New(cfg, log, db.NewPoolAdapter(pool),
		leads.NewModule(leadService, val),
		whatsapp.NewModule(whatsappService, val),
		templates.NewModule(templateStore, val),
		marketing.NewModule(leadStore, queueClient, val, log),
		webhook.NewModule(webhookHandler),
	)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
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
