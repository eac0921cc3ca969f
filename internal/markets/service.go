package markets

import (
	"context"
	"errors"
	"time"

	"realty_leads_backend/internal/events"
	"realty_leads_backend/internal/leads/scoring"
	"realty_leads_backend/platform/apperr"
	"realty_leads_backend/platform/logger"
	"realty_leads_backend/platform/metrics"

	"github.com/google/uuid"
)

// Store is the persistence the markets service needs.
type Store interface {
	ListMarkets(ctx context.Context) ([]MarketKey, error)
	LoadSnapshots(ctx context.Context, key MarketKey, period Period) ([]PropertySnapshot, error)
	ActiveMetrics(ctx context.Context, key MarketKey, periodStart time.Time) (*MarketMetrics, error)
	ReplaceActive(ctx context.Context, m MarketMetrics) error
	LatestMarkets(ctx context.Context, limit int) ([]MarketMetrics, error)
	LatestHeat(ctx context.Context, key MarketKey) (float64, bool, error)
	PropertyMarket(ctx context.Context, id uuid.UUID) (MarketKey, int64, error)
	IncrementCounter(ctx context.Context, id uuid.UUID, kind string) (PropertyMetrics, error)
	RollingLeads(ctx context.Context, id uuid.UUID, now time.Time) (int64, int64, error)
	SaveDerived(ctx context.Context, pm PropertyMetrics) (bool, error)
	GetPropertyMetrics(ctx context.Context, id uuid.UUID) (PropertyMetrics, error)
	ListPropertyMetrics(ctx context.Context, key MarketKey) ([]PropertyMetrics, error)
	SaveRanks(ctx context.Context, ranked []PropertyMetrics) error
}

const defaultMarketLimit = 50

// Service recomputes market heat and keeps property metrics current.
type Service struct {
	store   Store
	weights scoring.Weights
	bus     events.Bus
	metrics *metrics.Registry
	log     *logger.Logger
	now     func() time.Time
}

func NewService(store Store, weights scoring.Weights, bus events.Bus, reg *metrics.Registry, log *logger.Logger) *Service {
	return &Service{
		store:   store,
		weights: weights,
		bus:     bus,
		metrics: reg,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// RecomputeAll aggregates every market for the day containing periodStart,
// ranks them and replaces the active rows.
func (s *Service) RecomputeAll(ctx context.Context, periodStart time.Time) ([]MarketMetrics, error) {
	started := time.Now()
	defer func() { s.metrics.ObserveRecompute(time.Since(started).Seconds()) }()

	period := DailyPeriod(periodStart)
	keys, err := s.store.ListMarkets(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	computed := make([]MarketMetrics, 0, len(keys))
	previous := make(map[MarketKey]*MarketMetrics, len(keys))
	for _, key := range keys {
		props, err := s.store.LoadSnapshots(ctx, key, period)
		if err != nil {
			return nil, err
		}
		prev, err := s.store.ActiveMetrics(ctx, key, period.Previous().Start)
		if err != nil {
			return nil, err
		}
		m := Aggregate(key, period, props, prev, s.weights)
		m.ID = uuid.New()
		m.CreatedAt = now
		computed = append(computed, m)
		previous[key] = prev
	}

	ranked := RankMarkets(computed)
	for _, m := range ranked {
		if err := s.store.ReplaceActive(ctx, m); err != nil {
			return nil, err
		}
		if prev := previous[m.Key]; prev != nil && prev.HeatLabel != m.HeatLabel {
			s.bus.Publish(ctx, events.MarketHeatChanged{
				BaseEvent:   events.NewBaseEvent(),
				City:        m.Key.City,
				State:       m.Key.State,
				PeriodStart: m.PeriodStart,
				OldLabel:    string(prev.HeatLabel),
				NewLabel:    string(m.HeatLabel),
				HeatScore:   m.HeatScore,
			})
		}
		if err := s.rankProperties(ctx, m.Key); err != nil {
			s.log.Error("failed to rank properties", "error", err, "city", m.Key.City, "state", m.Key.State)
		}
	}

	s.log.Info("market heat recomputed", "markets", len(ranked), "periodStart", period.Start.Format("2006-01-02"))
	return ranked, nil
}

func (s *Service) rankProperties(ctx context.Context, key MarketKey) error {
	props, err := s.store.ListPropertyMetrics(ctx, key)
	if err != nil {
		return err
	}
	return s.store.SaveRanks(ctx, RankProperties(props))
}

// RecordPropertyEvent increments one counter and refreshes the derived fields.
func (s *Service) RecordPropertyEvent(ctx context.Context, propertyID uuid.UUID, kind string) error {
	if !ValidEventKind(kind) {
		return apperr.Validation("unknown property event kind")
	}
	pm, err := s.store.IncrementCounter(ctx, propertyID, kind)
	if errors.Is(err, ErrPropertyNotFound) {
		return apperr.NotFound("property not found")
	}
	if err != nil {
		return err
	}

	last7, last28, err := s.store.RollingLeads(ctx, propertyID, s.now())
	if err != nil {
		return err
	}
	saved, err := s.store.SaveDerived(ctx, Rescore(pm, last7, last28, s.weights))
	if err != nil {
		return err
	}
	if !saved {
		s.log.Debug("skipped stale property metrics write", "propertyId", propertyID, "kind", kind)
	}
	return nil
}

// PropertyContext reports the property's views and its market's latest heat.
// Unknown properties are not an error: found is false.
func (s *Service) PropertyContext(ctx context.Context, propertyID uuid.UUID) (scoring.PropertyContext, bool, error) {
	key, views, err := s.store.PropertyMarket(ctx, propertyID)
	if errors.Is(err, ErrPropertyNotFound) {
		return scoring.PropertyContext{}, false, nil
	}
	if err != nil {
		return scoring.PropertyContext{}, false, err
	}
	heat, ok, err := s.store.LatestHeat(ctx, key)
	if err != nil {
		return scoring.PropertyContext{}, false, err
	}
	return scoring.PropertyContext{Views: views, MarketHeat: heat, HasMarket: ok}, true, nil
}

// Property returns one property's metrics.
func (s *Service) Property(ctx context.Context, propertyID uuid.UUID) (PropertyMetrics, error) {
	pm, err := s.store.GetPropertyMetrics(ctx, propertyID)
	if errors.Is(err, ErrPropertyNotFound) {
		return PropertyMetrics{}, apperr.NotFound("property metrics not found")
	}
	return pm, err
}

// Latest returns the ranked markets of the most recent period.
func (s *Service) Latest(ctx context.Context, limit int) ([]MarketMetrics, error) {
	if limit <= 0 || limit > 500 {
		limit = defaultMarketLimit
	}
	ms, err := s.store.LatestMarkets(ctx, limit)
	if err != nil {
		return nil, err
	}
	if ms == nil {
		ms = []MarketMetrics{}
	}
	return ms, nil
}
