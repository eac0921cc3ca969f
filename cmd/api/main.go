package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
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
	apphttp "realty_leads_backend/internal/http"
	"realty_leads_backend/internal/http/router"
	"realty_leads_backend/internal/imports"
	"realty_leads_backend/internal/leads"
	"realty_leads_backend/internal/leads/ports"
	"realty_leads_backend/internal/leads/scoring"
	"realty_leads_backend/internal/markets"
	"realty_leads_backend/internal/scheduler"
	"realty_leads_backend/platform/config"
	"realty_leads_backend/platform/db"
	"realty_leads_backend/platform/logger"
	"realty_leads_backend/platform/metrics"
	"realty_leads_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

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

	if err := db.RunMigrations(ctx, pool, cfg.MigrationsDir); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete", "dir", cfg.MigrationsDir)

	weights, err := scoring.LoadWeights(cfg.GetScoringWeightsFile())
	if err != nil {
		log.Error("failed to load scoring weights", "error", err)
		panic("failed to load scoring weights: " + err.Error())
	}

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)
	reg := metrics.New()
	val := validator.New()

	redisClient, closeRedis := initRedis(cfg, log)
	if closeRedis != nil {
		defer closeRedis()
	}

	retryQueue, closeScheduler := initRelayRetryQueue(cfg, log)
	if closeScheduler != nil {
		defer closeScheduler()
	}

	storageSvc, bucket := initSnapshotStorage(ctx, cfg, log)

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	marketsModule := markets.NewModule(pool, weights, eventBus, reg, val, log)

	leadsModule := leads.NewModule(leads.Deps{
		Pool:       pool,
		Config:     cfg,
		Weights:    weights,
		Properties: marketsModule.Service(),
		RetryQueue: retryQueue,
		Redis:      redisClient,
		EventBus:   eventBus,
		Metrics:    reg,
		Validator:  val,
		Log:        log,
	})
	defer leadsModule.Shutdown()

	alertsSvc := alerts.NewService(alerts.Deps{
		Store:      alerts.NewRepository(pool),
		Volumes:    adapters.NewLeadVolumeSource(leadsModule.Repository()),
		Bus:        eventBus,
		Sender:     initAlertSender(cfg),
		Recipients: cfg.GetAlertRecipients(),
		Thresholds: alertThresholds(cfg),
		Metrics:    reg,
		Log:        log,
	})
	alertsSvc.Subscribe(eventBus)

	analyticsSvc := analytics.NewService(analytics.Deps{
		Leads:      leadsModule.Repository(),
		Properties: markets.NewRepository(pool),
		Imports:    imports.NewRepository(pool),
		Snapshots:  analytics.NewRepository(pool),
		Alerts:     alertsSvc,
		Storage:    storageSvc,
		Bucket:     bucket,
		Log:        log,
	})

	app := &apphttp.App{
		Config:  cfg,
		Logger:  log,
		Health:  pool,
		Metrics: reg.Handler(),
		Modules: []apphttp.Module{
			leadsModule,
			marketsModule,
			analytics.NewModule(analyticsSvc),
			alerts.NewModule(alertsSvc, val),
		},
	}

	engine := router.New(app)
	srv := &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", srv.Addr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
		eventBus.Wait()
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initRedis(cfg config.SchedulerConfig, log *logger.Logger) (*redis.Client, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; duplicate submission guard disabled")
		return nil, nil
	}
	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		log.Error("invalid REDIS_URL; duplicate submission guard disabled", "error", err)
		return nil, nil
	}
	client := redis.NewClient(opt)
	return client, func() { _ = client.Close() }
}

func initRelayRetryQueue(cfg config.SchedulerConfig, log *logger.Logger) (ports.RelayRetryQueue, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; relay retries disabled")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

// initSnapshotStorage returns a nil service when MinIO is not configured.
func initSnapshotStorage(ctx context.Context, cfg *config.Config, log *logger.Logger) (storage.StorageService, string) {
	if !cfg.IsMinIOEnabled() {
		log.Warn("MinIO not configured; snapshot archiving disabled")
		return nil, ""
	}
	svc, err := storage.NewMinIOService(cfg)
	if err != nil {
		log.Error("failed to initialize storage service", "error", err)
		panic("failed to initialize storage service: " + err.Error())
	}
	bucket := cfg.GetMinioBucketSnapshots()
	if err := withRetry(ctx, log, "ensure snapshots bucket", 5, 2*time.Second, func() error {
		return svc.EnsureBucketExists(ctx, bucket)
	}); err != nil {
		log.Error("failed to ensure storage bucket exists", "error", err, "bucket", bucket)
		panic("failed to ensure storage bucket exists: " + err.Error())
	}
	log.Info("storage service initialized", "snapshotsBucket", bucket)
	return svc, bucket
}

func initAlertSender(cfg config.EmailConfig) email.Sender {
	if sender := email.NewSMTPSenderFromConfig(cfg); sender != nil {
		return sender
	}
	return email.NoopSender{}
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
		return fmt.Errorf("%s: invalid retry attempts", name)
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
