package markets

import (
	"context"
	"sync"
	"testing"
	"time"

	"realty_leads_backend/internal/events"
	"realty_leads_backend/internal/leads/scoring"
	"realty_leads_backend/platform/apperr"
	"realty_leads_backend/platform/logger"

	"github.com/google/uuid"
)

type memStore struct {
	mu         sync.Mutex
	markets    []MarketKey
	snapshots  map[MarketKey][]PropertySnapshot
	rows       []MarketMetrics
	superseded []MarketMetrics
	propMarket map[uuid.UUID]MarketKey
	props      map[uuid.UUID]PropertyMetrics
	leadEvents map[uuid.UUID]int64
	beforeSave func()
}

func newMemStore() *memStore {
	return &memStore{
		snapshots:  make(map[MarketKey][]PropertySnapshot),
		propMarket: make(map[uuid.UUID]MarketKey),
		props:      make(map[uuid.UUID]PropertyMetrics),
		leadEvents: make(map[uuid.UUID]int64),
	}
}

func (m *memStore) addProperty(key MarketKey, snap PropertySnapshot) {
	if _, ok := m.snapshots[key]; !ok {
		m.markets = append(m.markets, key)
	}
	m.snapshots[key] = append(m.snapshots[key], snap)
	m.propMarket[snap.PropertyID] = key
}

func (m *memStore) ListMarkets(context.Context) ([]MarketKey, error) { return m.markets, nil }

func (m *memStore) LoadSnapshots(_ context.Context, key MarketKey, _ Period) ([]PropertySnapshot, error) {
	return m.snapshots[key], nil
}

func (m *memStore) ActiveMetrics(_ context.Context, key MarketKey, periodStart time.Time) (*MarketMetrics, error) {
	for i := range m.rows {
		if m.rows[i].Key == key && m.rows[i].PeriodStart.Equal(periodStart) {
			row := m.rows[i]
			return &row, nil
		}
	}
	return nil, nil
}

func (m *memStore) ReplaceActive(_ context.Context, mm MarketMetrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.rows[:0]
	for _, row := range m.rows {
		if row.Key == mm.Key && row.PeriodStart.Equal(mm.PeriodStart) {
			m.superseded = append(m.superseded, row)
			continue
		}
		kept = append(kept, row)
	}
	m.rows = append(kept, mm)
	return nil
}

func (m *memStore) LatestMarkets(_ context.Context, limit int) ([]MarketMetrics, error) {
	if len(m.rows) < limit {
		limit = len(m.rows)
	}
	return m.rows[:limit], nil
}

func (m *memStore) LatestHeat(_ context.Context, key MarketKey) (float64, bool, error) {
	var best *MarketMetrics
	for i := range m.rows {
		if m.rows[i].Key == key && (best == nil || m.rows[i].PeriodStart.After(best.PeriodStart)) {
			best = &m.rows[i]
		}
	}
	if best == nil {
		return 0, false, nil
	}
	return best.HeatScore, true, nil
}

func (m *memStore) PropertyMarket(_ context.Context, id uuid.UUID) (MarketKey, int64, error) {
	key, ok := m.propMarket[id]
	if !ok {
		return MarketKey{}, 0, ErrPropertyNotFound
	}
	return key, m.props[id].Views, nil
}

func (m *memStore) IncrementCounter(_ context.Context, id uuid.UUID, kind string) (PropertyMetrics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.propMarket[id]; !ok {
		return PropertyMetrics{}, ErrPropertyNotFound
	}
	pm := m.props[id]
	pm.PropertyID = id
	switch kind {
	case EventView:
		pm.Views++
	case EventLead:
		pm.Leads++
		m.leadEvents[id]++
	case EventConversion:
		pm.Conversions++
	}
	m.props[id] = pm
	return pm, nil
}

func (m *memStore) RollingLeads(_ context.Context, id uuid.UUID, _ time.Time) (int64, int64, error) {
	n := m.leadEvents[id]
	return n, n, nil
}

func (m *memStore) SaveDerived(_ context.Context, pm PropertyMetrics) (bool, error) {
	if hook := m.beforeSave; hook != nil {
		m.beforeSave = nil
		hook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.props[pm.PropertyID]
	if cur.Views != pm.Views || cur.Leads != pm.Leads || cur.Conversions != pm.Conversions {
		return false, nil
	}
	m.props[pm.PropertyID] = pm
	return true, nil
}

func (m *memStore) GetPropertyMetrics(_ context.Context, id uuid.UUID) (PropertyMetrics, error) {
	pm, ok := m.props[id]
	if !ok {
		return PropertyMetrics{}, ErrPropertyNotFound
	}
	return pm, nil
}

func (m *memStore) ListPropertyMetrics(_ context.Context, key MarketKey) ([]PropertyMetrics, error) {
	var out []PropertyMetrics
	for id, pm := range m.props {
		if m.propMarket[id] == key {
			out = append(out, pm)
		}
	}
	return out, nil
}

func (m *memStore) SaveRanks(_ context.Context, ranked []PropertyMetrics) error {
	for _, pm := range ranked {
		cur := m.props[pm.PropertyID]
		cur.MarketRank = pm.MarketRank
		m.props[pm.PropertyID] = cur
	}
	return nil
}

type heatRecorder struct {
	mu      sync.Mutex
	changes []events.MarketHeatChanged
}

func (r *heatRecorder) Subscribe(string, events.Handler) {}

func (r *heatRecorder) Publish(_ context.Context, e events.Event) {
	if hc, ok := e.(events.MarketHeatChanged); ok {
		r.mu.Lock()
		r.changes = append(r.changes, hc)
		r.mu.Unlock()
	}
}

func (r *heatRecorder) PublishSync(ctx context.Context, e events.Event) error {
	r.Publish(ctx, e)
	return nil
}

func newTestService(store *memStore, bus *heatRecorder) *Service {
	svc := NewService(store, scoring.DefaultWeights(), bus, nil, logger.Discard())
	svc.now = func() time.Time { return time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestRecomputeAllRanksAndKeepsOneActiveRow(t *testing.T) {
	store := newMemStore()
	austin := NewMarketKey("Austin", "TX")
	boise := NewMarketKey("Boise", "ID")
	for _, p := range sampleProps() {
		store.addProperty(austin, p)
	}
	store.addProperty(boise, PropertySnapshot{PropertyID: uuid.New(), ListPrice: 250000, DaysOnMarket: 170})

	svc := newTestService(store, &heatRecorder{})
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	first, err := svc.RecomputeAll(context.Background(), day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != 2 || first[0].Key != austin || first[0].Rank != 1 || first[1].Rank != 2 {
		t.Fatalf("unexpected ranking %+v", first)
	}

	if _, err := svc.RecomputeAll(context.Background(), day); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.rows) != 2 {
		t.Fatalf("expected one active row per market, got %d", len(store.rows))
	}
	if len(store.superseded) != 2 {
		t.Fatalf("expected two superseded rows, got %d", len(store.superseded))
	}
}

func TestRecomputeAllPublishesHeatChange(t *testing.T) {
	store := newMemStore()
	austin := NewMarketKey("Austin", "TX")
	for _, p := range sampleProps() {
		store.addProperty(austin, p)
	}
	yesterday := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	store.rows = append(store.rows, MarketMetrics{Key: austin, PeriodStart: yesterday, HeatLabel: scoring.HeatCold, AvgPrice: 150000, TotalLeads: 3})

	bus := &heatRecorder{}
	svc := newTestService(store, bus)
	ms, err := svc.RecomputeAll(context.Background(), time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ms[0].TrendState != TrendBaseline {
		t.Fatalf("expected baseline trend, got %s", ms[0].TrendState)
	}
	if len(bus.changes) != 1 {
		t.Fatalf("expected one heat change, got %d", len(bus.changes))
	}
	if bus.changes[0].OldLabel != "cold" || bus.changes[0].NewLabel != "warm" {
		t.Fatalf("unexpected change %+v", bus.changes[0])
	}
}

func TestRecordPropertyEventUpdatesDerivedFields(t *testing.T) {
	store := newMemStore()
	id := uuid.New()
	store.addProperty(NewMarketKey("Austin", "TX"), PropertySnapshot{PropertyID: id})
	svc := newTestService(store, &heatRecorder{})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := svc.RecordPropertyEvent(ctx, id, EventView); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if err := svc.RecordPropertyEvent(ctx, id, EventLead); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pm, err := svc.Property(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pm.Views != 10 || pm.Leads != 1 {
		t.Fatalf("unexpected counters %+v", pm)
	}
	if pm.ViewToLeadRate != 10 {
		t.Fatalf("expected view to lead rate 10, got %v", pm.ViewToLeadRate)
	}
	if pm.LeadsPerWeek != 0.25 {
		t.Fatalf("expected 0.25 leads per week, got %v", pm.LeadsPerWeek)
	}
}

func TestRecordPropertyEventSkipsStaleDerivedWrite(t *testing.T) {
	store := newMemStore()
	id := uuid.New()
	store.addProperty(NewMarketKey("Austin", "TX"), PropertySnapshot{PropertyID: id})
	svc := newTestService(store, &heatRecorder{})
	ctx := context.Background()

	// a second lead event commits and saves while the first is still computing
	store.beforeSave = func() {
		if err := svc.RecordPropertyEvent(ctx, id, EventLead); err != nil {
			t.Errorf("concurrent event: %v", err)
		}
	}
	if err := svc.RecordPropertyEvent(ctx, id, EventLead); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pm, err := svc.Property(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Rescore(PropertyMetrics{PropertyID: id, Leads: 2}, 2, 2, scoring.DefaultWeights())
	if pm.Leads != 2 || pm.LeadScore != want.LeadScore || pm.LeadsPerDay != want.LeadsPerDay {
		t.Fatalf("expected derived fields from leads=2, got leads=%d score=%v perDay=%v (want score=%v perDay=%v)",
			pm.Leads, pm.LeadScore, pm.LeadsPerDay, want.LeadScore, want.LeadsPerDay)
	}
}

func TestRecordPropertyEventErrors(t *testing.T) {
	svc := newTestService(newMemStore(), &heatRecorder{})
	if err := svc.RecordPropertyEvent(context.Background(), uuid.New(), "click"); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := svc.RecordPropertyEvent(context.Background(), uuid.New(), EventView); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPropertyContext(t *testing.T) {
	store := newMemStore()
	id := uuid.New()
	key := NewMarketKey("Austin", "TX")
	store.addProperty(key, PropertySnapshot{PropertyID: id})
	store.props[id] = PropertyMetrics{PropertyID: id, Views: 42}
	svc := newTestService(store, &heatRecorder{})

	pc, found, err := svc.PropertyContext(context.Background(), id)
	if err != nil || !found {
		t.Fatalf("expected found, got %v %v", found, err)
	}
	if pc.Views != 42 || pc.HasMarket {
		t.Fatalf("unexpected context before recompute %+v", pc)
	}

	store.rows = append(store.rows, MarketMetrics{Key: key, PeriodStart: time.Now(), HeatScore: 81})
	pc, _, _ = svc.PropertyContext(context.Background(), id)
	if !pc.HasMarket || pc.MarketHeat != 81 {
		t.Fatalf("expected market heat 81, got %+v", pc)
	}

	_, found, err = svc.PropertyContext(context.Background(), uuid.New())
	if err != nil || found {
		t.Fatalf("expected unknown property to be not found without error, got %v %v", found, err)
	}
}
