package scheduler

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type schedulerCfg struct {
	redisURL string
	recron   string
	snapcron string
}

func (c schedulerCfg) GetRedisURL() string            { return c.redisURL }
func (c schedulerCfg) GetRedisTLSInsecure() bool      { return false }
func (c schedulerCfg) GetAsynqQueueName() string      { return "" }
func (c schedulerCfg) GetAsynqConcurrency() int       { return 0 }
func (c schedulerCfg) GetMarketRecomputeCron() string { return c.recron }
func (c schedulerCfg) GetSnapshotCron() string        { return c.snapcron }
func (c schedulerCfg) GetReconcileCron() string       { return "" }

func TestEnqueueRelayRetryIsIdempotentPerLead(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(schedulerCfg{redisURL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer client.Close()

	id := uuid.New()
	if err := client.EnqueueRelayRetry(context.Background(), id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := client.EnqueueRelayRetry(context.Background(), id); err != nil {
		t.Fatalf("expected duplicate enqueue to be a no-op, got %v", err)
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: mr.Addr()})
	defer inspector.Close()
	scheduled, err := inspector.ListScheduledTasks("default")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scheduled) != 1 {
		t.Fatalf("expected 1 scheduled retry, got %d", len(scheduled))
	}
}

func TestNewClientRequiresRedis(t *testing.T) {
	if _, err := NewClient(schedulerCfg{}); err == nil {
		t.Fatalf("expected error without redis url")
	}
}

func TestEntriesSkipEmptySpecs(t *testing.T) {
	entries, err := Entries(schedulerCfg{recron: "0 * * * *"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected recompute and evaluate entries, got %d", len(entries))
	}
	if entries[0].Task.Type() != TaskMarketsRecompute || entries[1].Task.Type() != TaskAlertsEvaluate {
		t.Fatalf("unexpected entries: %s, %s", entries[0].Task.Type(), entries[1].Task.Type())
	}
}
