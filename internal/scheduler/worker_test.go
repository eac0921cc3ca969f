package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"realty_leads_backend/internal/alerts"
	"realty_leads_backend/internal/analytics"
	"realty_leads_backend/internal/imports"
	"realty_leads_backend/internal/leads/domain"
	"realty_leads_backend/internal/leads/ports"
	"realty_leads_backend/internal/markets"
	"realty_leads_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type fakeMarkets struct {
	periods []time.Time
}

func (f *fakeMarkets) RecomputeAll(_ context.Context, periodStart time.Time) ([]markets.MarketMetrics, error) {
	f.periods = append(f.periods, periodStart)
	return nil, nil
}

type fakeAnalytics struct {
	days      []time.Time
	evaluated int
}

func (f *fakeAnalytics) Snapshot(_ context.Context, day time.Time) (analytics.DailySnapshot, error) {
	f.days = append(f.days, day)
	return analytics.DailySnapshot{Day: day}, nil
}

func (f *fakeAnalytics) EvaluateLeadVolume(context.Context) ([]alerts.Alert, error) {
	f.evaluated++
	return nil, nil
}

type fakeLeads struct {
	leads map[uuid.UUID]domain.Lead
}

func (f *fakeLeads) GetByID(_ context.Context, id uuid.UUID) (domain.Lead, error) {
	lead, ok := f.leads[id]
	if !ok {
		return domain.Lead{}, errors.New("not found")
	}
	return lead, nil
}

type fakeRelay struct {
	calls  []uuid.UUID
	status domain.RelayStatus
	err    error
}

func (f *fakeRelay) RelayOnce(_ context.Context, payload ports.RelayPayload) (domain.RelayStatus, error) {
	f.calls = append(f.calls, payload.LeadID)
	return f.status, f.err
}

type fakeReconciler struct {
	limits []int
}

func (f *fakeReconciler) Reconcile(_ context.Context, limit int) (imports.Attempt, error) {
	f.limits = append(f.limits, limit)
	return imports.Attempt{ID: uuid.New()}, nil
}

func fixedNow() time.Time {
	return time.Date(2026, 3, 2, 4, 30, 0, 0, time.UTC)
}

func testWorker(jobs Jobs) *Worker {
	w := newWorker(jobs, logger.Discard())
	w.now = fixedNow
	return w
}

func TestParseDay(t *testing.T) {
	fallback := fixedNow()
	got, err := parseDay("", fallback)
	if err != nil || !got.Equal(fallback) {
		t.Fatalf("expected fallback, got %v (%v)", got, err)
	}

	got, err = parseDay("2026-02-14", fallback)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	if _, err := parseDay("14/02/2026", fallback); err == nil {
		t.Fatalf("expected error for malformed day")
	}
}

func TestMarketsRecomputeDefaultsToToday(t *testing.T) {
	mk := &fakeMarkets{}
	w := testWorker(Jobs{Markets: mk})

	task, _ := NewMarketsRecomputeTask(MarketsRecomputePayload{})
	if err := w.mux.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mk.periods) != 1 || !mk.periods[0].Equal(fixedNow()) {
		t.Fatalf("expected recompute at now, got %v", mk.periods)
	}

	task, _ = NewMarketsRecomputeTask(MarketsRecomputePayload{PeriodStart: "bogus"})
	err := w.mux.ProcessTask(context.Background(), task)
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry for malformed period, got %v", err)
	}
}

func TestAnalyticsSnapshotDefaultsToYesterday(t *testing.T) {
	an := &fakeAnalytics{}
	w := testWorker(Jobs{Analytics: an})

	task, _ := NewAnalyticsSnapshotTask(AnalyticsSnapshotPayload{})
	if err := w.mux.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(an.days) != 1 || an.days[0].Day() != 1 {
		t.Fatalf("expected snapshot of March 1, got %v", an.days)
	}

	task, _ = NewAnalyticsSnapshotTask(AnalyticsSnapshotPayload{Day: "2026-02-20"})
	if err := w.mux.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if an.days[1].Day() != 20 {
		t.Fatalf("expected snapshot of Feb 20, got %v", an.days[1])
	}

	if err := w.mux.ProcessTask(context.Background(), NewAlertsEvaluateTask()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if an.evaluated != 1 {
		t.Fatalf("expected one volume evaluation, got %d", an.evaluated)
	}
}

func TestLeadRelayRetry(t *testing.T) {
	pending := domain.Lead{ID: uuid.New(), RelayStatus: domain.RelayFailed}
	sent := domain.Lead{ID: uuid.New(), RelayStatus: domain.RelaySent}
	leads := &fakeLeads{leads: map[uuid.UUID]domain.Lead{pending.ID: pending, sent.ID: sent}}
	relay := &fakeRelay{status: domain.RelaySent}
	w := testWorker(Jobs{Leads: leads, Relay: relay})

	task, _ := NewLeadRelayRetryTask(LeadRelayRetryPayload{LeadID: sent.ID.String()})
	if err := w.mux.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(relay.calls) != 0 {
		t.Fatalf("expected already-sent lead to be skipped, got %d calls", len(relay.calls))
	}

	task, _ = NewLeadRelayRetryTask(LeadRelayRetryPayload{LeadID: pending.ID.String()})
	if err := w.mux.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(relay.calls) != 1 || relay.calls[0] != pending.ID {
		t.Fatalf("expected one relay of pending lead, got %v", relay.calls)
	}

	relay.status = domain.RelayFailed
	relay.err = errors.New("webhook down")
	if err := w.mux.ProcessTask(context.Background(), task); err == nil {
		t.Fatalf("expected failed relay to surface for retry")
	}

	bad, _ := NewLeadRelayRetryTask(LeadRelayRetryPayload{LeadID: "not-a-uuid"})
	if err := w.mux.ProcessTask(context.Background(), bad); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry for bad id, got %v", err)
	}
}

func TestLeadsReconcile(t *testing.T) {
	rec := &fakeReconciler{}
	w := testWorker(Jobs{Reconcile: rec})

	task, _ := NewLeadsReconcileTask(LeadsReconcilePayload{Limit: 25})
	if err := w.mux.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rec.limits) != 1 || rec.limits[0] != 25 {
		t.Fatalf("expected limit 25, got %v", rec.limits)
	}
}

func TestNilJobsAreSkipped(t *testing.T) {
	w := testWorker(Jobs{})
	task, _ := NewMarketsRecomputeTask(MarketsRecomputePayload{})
	if err := w.mux.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("expected nil job to be a no-op, got %v", err)
	}
}
