package alerts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"realty_leads_backend/internal/email"
	"realty_leads_backend/internal/events"
	"realty_leads_backend/platform/apperr"
	"realty_leads_backend/platform/logger"

	"github.com/google/uuid"
)

type memStore struct {
	mu     sync.Mutex
	alerts map[uuid.UUID]Alert
	keys   map[string]bool
}

func newMemStore() *memStore {
	return &memStore{alerts: make(map[uuid.UUID]Alert), keys: make(map[string]bool)}
}

func (m *memStore) Insert(_ context.Context, a Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[a.DedupKey] {
		return ErrDuplicate
	}
	m.keys[a.DedupKey] = true
	m.alerts[a.ID] = a
	return nil
}

func (m *memStore) Get(_ context.Context, id uuid.UUID) (Alert, error) {
	a, ok := m.alerts[id]
	if !ok {
		return Alert{}, ErrNotFound
	}
	return a, nil
}

func (m *memStore) UpdateStatus(_ context.Context, id uuid.UUID, from, to Status, at time.Time) (Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.alerts[id]
	if a.Status != from {
		return Alert{}, ErrStale
	}
	a.Status = to
	switch to {
	case StatusAcknowledged:
		a.AcknowledgedAt = &at
	case StatusResolved:
		a.ResolvedAt = &at
	}
	m.alerts[id] = a
	return a, nil
}

func (m *memStore) List(_ context.Context, status Status, limit int) ([]Alert, error) {
	var out []Alert
	for _, a := range m.alerts {
		if status == "" || a.Status == status {
			out = append(out, a)
		}
	}
	return out, nil
}

type stubVolumes struct{ counts []DayCount }

func (s stubVolumes) DailyCounts(context.Context, time.Time, time.Time) ([]DayCount, error) {
	return s.counts, nil
}

type recordingSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (r *recordingSender) SendAlertEmail(_ context.Context, to string, _ email.AlertMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, to)
	return r.err
}

var fixedNow = time.Date(2026, 3, 9, 15, 0, 0, 0, time.UTC)

func newTestService(store Store, volumes VolumeSource, sender email.Sender, bus events.Bus) *Service {
	svc := NewService(Deps{
		Store:      store,
		Volumes:    volumes,
		Bus:        bus,
		Sender:     sender,
		Recipients: []string{"ops@example.com"},
		Thresholds: DefaultThresholds(),
		Log:        logger.Discard(),
	})
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestRaiseDeduplicatesWithinDay(t *testing.T) {
	sender := &recordingSender{}
	svc := newTestService(newMemStore(), nil, sender, nil)
	c := Candidate{Kind: KindHeatCategoryChange, Subject: "Austin, TX", Message: "warm to hot"}

	a, created, err := svc.Raise(context.Background(), c)
	if err != nil || !created {
		t.Fatalf("expected first raise to create, got %v %v", created, err)
	}
	if a.Status != StatusNew {
		t.Fatalf("expected new status, got %s", a.Status)
	}
	if _, created, err := svc.Raise(context.Background(), c); err != nil || created {
		t.Fatalf("expected repeat to be suppressed, got %v %v", created, err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one email, got %d", len(sender.sent))
	}
}

func TestRaiseSurvivesEmailFailure(t *testing.T) {
	sender := &recordingSender{err: errors.New("smtp down")}
	svc := newTestService(newMemStore(), nil, sender, nil)
	if _, created, err := svc.Raise(context.Background(), Candidate{Kind: KindLeadVolumeSpike, Subject: "all leads"}); err != nil || !created {
		t.Fatalf("expected alert despite email failure, got %v %v", created, err)
	}
}

func TestTransitionLifecycle(t *testing.T) {
	svc := newTestService(newMemStore(), nil, nil, nil)
	ctx := context.Background()
	a, _, _ := svc.Raise(ctx, Candidate{Kind: KindLeadVolumeSpike, Subject: "all leads"})

	if _, err := svc.Transition(ctx, a.ID, StatusResolved); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict skipping acknowledge, got %v", err)
	}
	acked, err := svc.Transition(ctx, a.ID, StatusAcknowledged)
	if err != nil || acked.AcknowledgedAt == nil {
		t.Fatalf("expected acknowledged alert, got %+v %v", acked, err)
	}
	resolved, err := svc.Transition(ctx, a.ID, StatusResolved)
	if err != nil || resolved.ResolvedAt == nil {
		t.Fatalf("expected resolved alert, got %+v %v", resolved, err)
	}
	if _, err := svc.Transition(ctx, a.ID, StatusAcknowledged); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict after resolve, got %v", err)
	}
	if _, err := svc.Transition(ctx, uuid.New(), StatusAcknowledged); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func checkTodayVolume(t *testing.T, svc *Service) *Alert {
	t.Helper()
	ctx := context.Background()
	today, baseline, err := svc.loadVolumes(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(baseline) != BaselineDays {
		t.Fatalf("expected %d baseline days, got %d", BaselineDays, len(baseline))
	}
	a, err := svc.CheckVolume(ctx, today, baseline)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return a
}

func TestStoredCountsRaiseVolumeSpike(t *testing.T) {
	day := fixedNow.Truncate(24 * time.Hour)
	counts := []DayCount{{Day: day, Leads: 30, Fallbacks: 0}}
	for i := 1; i <= BaselineDays; i++ {
		counts = append(counts, DayCount{Day: day.AddDate(0, 0, -i), Leads: 10})
	}
	svc := newTestService(newMemStore(), stubVolumes{counts: counts}, nil, nil)

	a := checkTodayVolume(t, svc)
	if a == nil || a.Kind != KindLeadVolumeSpike {
		t.Fatalf("expected a volume spike, got %+v", a)
	}
	if a.Observed != 3 {
		t.Fatalf("expected ratio 3, got %v", a.Observed)
	}
}

func TestMissingBaselineDaysCountAsZero(t *testing.T) {
	day := fixedNow.Truncate(24 * time.Hour)
	counts := []DayCount{
		{Day: day, Leads: 12},
		{Day: day.AddDate(0, 0, -1), Leads: 14},
	}
	svc := newTestService(newMemStore(), stubVolumes{counts: counts}, nil, nil)
	// baseline average is 14/7 = 2, so 12 leads is a 6x spike
	if a := checkTodayVolume(t, svc); a == nil || a.Observed != 6 {
		t.Fatalf("expected a 6x spike, got %+v", a)
	}
}

func TestFallbackEventRaisesSpike(t *testing.T) {
	day := fixedNow.Truncate(24 * time.Hour)
	counts := []DayCount{{Day: day, Leads: 10, Fallbacks: 8}}
	for i := 1; i <= BaselineDays; i++ {
		counts = append(counts, DayCount{Day: day.AddDate(0, 0, -i), Leads: 10, Fallbacks: 1})
	}
	store := newMemStore()
	bus := events.NewInMemoryBus(logger.Discard())
	svc := newTestService(store, stubVolumes{counts: counts}, nil, bus)
	svc.Subscribe(bus)

	if err := bus.PublishSync(context.Background(), events.LeadFallbackUsed{BaseEvent: events.NewBaseEvent(), LeadID: uuid.New()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items, _ := store.List(context.Background(), "", 10)
	if len(items) != 1 || items[0].Kind != KindRoutingFallbackSpike {
		t.Fatalf("expected a fallback spike alert, got %+v", items)
	}
}

func TestHeatChangeEventRaisesAlert(t *testing.T) {
	store := newMemStore()
	bus := events.NewInMemoryBus(logger.Discard())
	svc := newTestService(store, nil, nil, bus)
	svc.Subscribe(bus)

	err := bus.PublishSync(context.Background(), events.MarketHeatChanged{
		BaseEvent: events.NewBaseEvent(),
		City:      "Austin",
		State:     "TX",
		OldLabel:  "warm",
		NewLabel:  "hot",
		HeatScore: 72,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items, _ := store.List(context.Background(), StatusNew, 10)
	if len(items) != 1 || items[0].Subject != "Austin, TX" || items[0].City != "Austin" {
		t.Fatalf("expected a heat alert for Austin, got %+v", items)
	}
}
