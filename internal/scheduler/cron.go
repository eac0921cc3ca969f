package scheduler

import (
	"fmt"
	"time"

	"realty_leads_backend/platform/config"
	"realty_leads_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Cron enqueues the periodic jobs on their configured schedules.
type Cron struct {
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

// Entry pairs a cron spec with the task it enqueues.
type Entry struct {
	Spec string
	Task *asynq.Task
}

// Entries lists the periodic jobs. An empty spec disables a job.
func Entries(cfg config.SchedulerConfig) ([]Entry, error) {
	recompute, err := NewMarketsRecomputeTask(MarketsRecomputePayload{})
	if err != nil {
		return nil, err
	}
	snapshot, err := NewAnalyticsSnapshotTask(AnalyticsSnapshotPayload{})
	if err != nil {
		return nil, err
	}
	reconcile, err := NewLeadsReconcileTask(LeadsReconcilePayload{})
	if err != nil {
		return nil, err
	}

	all := []Entry{
		{Spec: cfg.GetMarketRecomputeCron(), Task: recompute},
		{Spec: cfg.GetMarketRecomputeCron(), Task: NewAlertsEvaluateTask()},
		{Spec: cfg.GetSnapshotCron(), Task: snapshot},
		{Spec: cfg.GetReconcileCron(), Task: reconcile},
	}
	out := make([]Entry, 0, len(all))
	for _, e := range all {
		if e.Spec != "" {
			out = append(out, e)
		}
	}
	return out, nil
}

func NewCron(cfg config.SchedulerConfig, log *logger.Logger) (*Cron, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	entries, err := Entries(cfg)
	if err != nil {
		return nil, err
	}

	s := asynq.NewScheduler(opt, &asynq.SchedulerOpts{Location: time.UTC})
	queue := queueName(cfg)
	for _, e := range entries {
		id, err := s.Register(e.Spec, e.Task, asynq.Queue(queue), asynq.Unique(time.Minute))
		if err != nil {
			return nil, fmt.Errorf("register %s: %w", e.Task.Type(), err)
		}
		log.Info("periodic job registered", "task", e.Task.Type(), "spec", e.Spec, "entryId", id)
	}
	return &Cron{scheduler: s, log: log}, nil
}

// Start runs the scheduler in the background until Shutdown.
func (c *Cron) Start() error {
	if c == nil || c.scheduler == nil {
		return nil
	}
	return c.scheduler.Start()
}

func (c *Cron) Shutdown() {
	if c == nil || c.scheduler == nil {
		return
	}
	c.scheduler.Shutdown()
}
