package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"realty_leads_backend/internal/adapters"
	"realty_leads_backend/internal/adapters/storage"
	"realty_leads_backend/internal/alerts"
	"realty_leads_backend/internal/analytics"
	"realty_leads_backend/internal/email"
	"realty_leads_backend/internal/events"
	"realty_leads_backend/internal/imports"
	"realty_leads_backend/internal/leads"
	"realty_leads_backend/internal/leads/scoring"
	"realty_leads_backend/internal/markets"
	"realty_leads_backend/internal/scheduler"
	"realty_leads_backend/platform/config"
	"realty_leads_backend/platform/db"
	"realty_leads_backend/platform/logger"
	"realty_leads_backend/platform/metrics"
	"realty_leads_backend/platform/validator"

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

	weights, err := scoring.LoadWeights(cfg.GetScoringWeightsFile())
	if err != nil {
		log.Error("failed to load scoring weights", "error", err)
		panic("failed to load scoring weights: " + err.Error())
	}

	eventBus := events.NewInMemoryBus(log)
	reg := metrics.New()
	val := validator.New()

	// Worker-side wiring (no HTTP handlers required). Relay retries are
	// repeated by asynq itself, so the worker's router gets no retry queue.
	marketsModule := markets.NewModule(pool, weights, eventBus, reg, val, log)
	leadsModule := leads.NewModule(leads.Deps{
		Pool:       pool,
		Config:     cfg,
		Weights:    weights,
		Properties: marketsModule.Service(),
		EventBus:   eventBus,
		Metrics:    reg,
		Validator:  val,
		Log:        log,
	})
	defer leadsModule.Shutdown()

	var sender email.Sender = email.NoopSender{}
	if smtp := email.NewSMTPSenderFromConfig(cfg); smtp != nil {
		sender = smtp
	}
	alertsSvc := alerts.NewService(alerts.Deps{
		Store:      alerts.NewRepository(pool),
		Volumes:    adapters.NewLeadVolumeSource(leadsModule.Repository()),
		Bus:        eventBus,
		Sender:     sender,
		Recipients: cfg.GetAlertRecipients(),
		Thresholds: alertThresholds(cfg),
		Metrics:    reg,
		Log:        log,
	})
	alertsSvc.Subscribe(eventBus)

	var storageSvc storage.StorageService
	if cfg.IsMinIOEnabled() {
		minioSvc, err := storage.NewMinIOService(cfg)
		if err != nil {
			log.Error("failed to initialize storage service", "error", err)
			panic("failed to initialize storage service: " + err.Error())
		}
		storageSvc = minioSvc
	} else {
		log.Warn("MinIO not configured; snapshot archiving disabled")
	}

	analyticsSvc := analytics.NewService(analytics.Deps{
		Leads:      leadsModule.Repository(),
		Properties: markets.NewRepository(pool),
		Imports:    imports.NewRepository(pool),
		Snapshots:  analytics.NewRepository(pool),
		Alerts:     alertsSvc,
		Storage:    storageSvc,
		Bucket:     cfg.GetMinioBucketSnapshots(),
		Log:        log,
	})

	cron, err := scheduler.NewCron(cfg, log)
	if err != nil {
		log.Error("failed to initialize cron scheduler", "error", err)
		panic("failed to initialize cron scheduler: " + err.Error())
	}
	if err := cron.Start(); err != nil {
		log.Error("failed to start cron scheduler", "error", err)
		panic("failed to start cron scheduler: " + err.Error())
	}
	defer cron.Shutdown()

	worker, err := scheduler.NewWorker(cfg, scheduler.Jobs{
		Markets:   marketsModule.Service(),
		Analytics: analyticsSvc,
		Leads:     leadsModule.Service(),
		Relay:     leadsModule.Router(),
		Reconcile: leadsModule.Service(),
	}, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
	eventBus.Wait()
}

func alertThresholds(cfg config.AlertConfig) alerts.Thresholds {
	th := alerts.DefaultThresholds()
	if v := cfg.GetAlertVolumeSpikeRatio(); v > 0 {
		th.VolumeSpikeRatio = v
	}
	if v := cfg.GetAlertVolumeMinLeads(); v > 0 {
		th.VolumeMinLeads = v
	}
	if v := cfg.GetAlertFallbackSpikeRatio(); v > 0 {
		th.FallbackSpikeRatio = v
	}
	return th
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
