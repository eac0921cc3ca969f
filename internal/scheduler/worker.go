package scheduler

import (
	"context"
	"fmt"
	"time"

	"realty_leads_backend/internal/alerts"
	"realty_leads_backend/internal/analytics"
	"realty_leads_backend/internal/imports"
	"realty_leads_backend/internal/leads/domain"
	"realty_leads_backend/internal/leads/ports"
	"realty_leads_backend/internal/markets"
	"realty_leads_backend/platform/config"
	"realty_leads_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type MarketRecomputer interface {
	RecomputeAll(ctx context.Context, periodStart time.Time) ([]markets.MarketMetrics, error)
}

type Snapshotter interface {
	Snapshot(ctx context.Context, day time.Time) (analytics.DailySnapshot, error)
	EvaluateLeadVolume(ctx context.Context) ([]alerts.Alert, error)
}

type LeadReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error)
}

type Relayer interface {
	RelayOnce(ctx context.Context, payload ports.RelayPayload) (domain.RelayStatus, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, limit int) (imports.Attempt, error)
}

// Jobs are the services the worker drives. A nil job skips its tasks.
type Jobs struct {
	Markets   MarketRecomputer
	Analytics Snapshotter
	Leads     LeadReader
	Relay     Relayer
	Reconcile Reconciler
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	jobs   Jobs
	log    *logger.Logger
	now    func() time.Time
}

func NewWorker(cfg config.SchedulerConfig, jobs Jobs, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	w := newWorker(jobs, log)
	w.server = server
	return w, nil
}

func newWorker(jobs Jobs, log *logger.Logger) *Worker {
	mux := asynq.NewServeMux()
	w := &Worker{
		mux:  mux,
		jobs: jobs,
		log:  log,
		now:  func() time.Time { return time.Now().UTC() },
	}

	mux.HandleFunc(TaskMarketsRecompute, w.handleMarketsRecompute)
	mux.HandleFunc(TaskAnalyticsSnapshot, w.handleAnalyticsSnapshot)
	mux.HandleFunc(TaskAlertsEvaluate, w.handleAlertsEvaluate)
	mux.HandleFunc(TaskLeadRelayRetry, w.handleLeadRelayRetry)
	mux.HandleFunc(TaskLeadsReconcile, w.handleLeadsReconcile)
	return w
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

func (w *Worker) handleMarketsRecompute(ctx context.Context, task *asynq.Task) error {
	if w.jobs.Markets == nil {
		return nil
	}
	payload, err := ParseMarketsRecomputePayload(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	start, err := parseDay(payload.PeriodStart, w.now())
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	_, err = w.jobs.Markets.RecomputeAll(ctx, start)
	return err
}

// handleAnalyticsSnapshot snapshots the previous UTC day unless the payload names one.
func (w *Worker) handleAnalyticsSnapshot(ctx context.Context, task *asynq.Task) error {
	if w.jobs.Analytics == nil {
		return nil
	}
	payload, err := ParseAnalyticsSnapshotPayload(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	day, err := parseDay(payload.Day, w.now().AddDate(0, 0, -1))
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	_, err = w.jobs.Analytics.Snapshot(ctx, day)
	return err
}

func (w *Worker) handleAlertsEvaluate(ctx context.Context, _ *asynq.Task) error {
	if w.jobs.Analytics == nil {
		return nil
	}
	raised, err := w.jobs.Analytics.EvaluateLeadVolume(ctx)
	if err != nil {
		return err
	}
	if len(raised) > 0 {
		w.log.Info("volume alerts raised", "count", len(raised))
	}
	return nil
}

// handleLeadRelayRetry re-relays a stored lead. A failed attempt returns an
// error so asynq retries with backoff up to the task's MaxRetry.
func (w *Worker) handleLeadRelayRetry(ctx context.Context, task *asynq.Task) error {
	if w.jobs.Leads == nil || w.jobs.Relay == nil {
		return nil
	}
	payload, err := ParseLeadRelayRetryPayload(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	lead, err := w.jobs.Leads.GetByID(ctx, leadID)
	if err != nil {
		return err
	}
	if lead.RelayStatus == domain.RelaySent {
		return nil
	}

	status, err := w.jobs.Relay.RelayOnce(ctx, ports.NewRelayPayload(lead))
	w.log.RelayOutcome(lead.ID.String(), string(status), err)
	return err
}

func (w *Worker) handleLeadsReconcile(ctx context.Context, task *asynq.Task) error {
	if w.jobs.Reconcile == nil {
		return nil
	}
	payload, err := ParseLeadsReconcilePayload(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	attempt, err := w.jobs.Reconcile.Reconcile(ctx, payload.Limit)
	if err != nil {
		return err
	}
	w.log.Info("crm reconcile finished", "attemptId", attempt.ID, "imported", attempt.Imported, "failed", attempt.Failed)
	return nil
}
