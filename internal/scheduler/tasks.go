package scheduler

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const TaskMarketsRecompute = "markets.recompute"

const TaskAnalyticsSnapshot = "analytics.snapshot"

const TaskAlertsEvaluate = "alerts.evaluate"

const TaskLeadRelayRetry = "leads.relay.retry"

const TaskLeadsReconcile = "leads.reconcile"

const dayLayout = "2006-01-02"

type MarketsRecomputePayload struct {
	PeriodStart string `json:"periodStart,omitempty"`
}

type AnalyticsSnapshotPayload struct {
	Day string `json:"day,omitempty"`
}

type LeadRelayRetryPayload struct {
	LeadID string `json:"leadId"`
}

type LeadsReconcilePayload struct {
	Limit int `json:"limit,omitempty"`
}

func NewMarketsRecomputeTask(payload MarketsRecomputePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMarketsRecompute, data), nil
}

func ParseMarketsRecomputePayload(task *asynq.Task) (MarketsRecomputePayload, error) {
	var payload MarketsRecomputePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return MarketsRecomputePayload{}, err
	}
	return payload, nil
}

func NewAnalyticsSnapshotTask(payload AnalyticsSnapshotPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAnalyticsSnapshot, data), nil
}

func ParseAnalyticsSnapshotPayload(task *asynq.Task) (AnalyticsSnapshotPayload, error) {
	var payload AnalyticsSnapshotPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return AnalyticsSnapshotPayload{}, err
	}
	return payload, nil
}

func NewAlertsEvaluateTask() *asynq.Task {
	return asynq.NewTask(TaskAlertsEvaluate, nil)
}

func NewLeadRelayRetryTask(payload LeadRelayRetryPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLeadRelayRetry, data), nil
}

func ParseLeadRelayRetryPayload(task *asynq.Task) (LeadRelayRetryPayload, error) {
	var payload LeadRelayRetryPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return LeadRelayRetryPayload{}, err
	}
	return payload, nil
}

func NewLeadsReconcileTask(payload LeadsReconcilePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLeadsReconcile, data), nil
}

func ParseLeadsReconcilePayload(task *asynq.Task) (LeadsReconcilePayload, error) {
	var payload LeadsReconcilePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return LeadsReconcilePayload{}, err
	}
	return payload, nil
}

// parseDay reads a YYYY-MM-DD day, falling back when raw is empty.
func parseDay(raw string, fallback time.Time) (time.Time, error) {
	if raw == "" {
		return fallback, nil
	}
	t, err := time.Parse(dayLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q: %w", raw, err)
	}
	return t, nil
}
