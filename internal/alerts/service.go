package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"realty_leads_backend/internal/email"
	"realty_leads_backend/internal/events"
	"realty_leads_backend/platform/apperr"
	"realty_leads_backend/platform/logger"
	"realty_leads_backend/platform/metrics"

	"github.com/google/uuid"
)

// Store is the alert persistence.
type Store interface {
	Insert(ctx context.Context, a Alert) error
	Get(ctx context.Context, id uuid.UUID) (Alert, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, at time.Time) (Alert, error)
	List(ctx context.Context, status Status, limit int) ([]Alert, error)
}

// DayCount is one UTC day of lead volume.
type DayCount struct {
	Day       time.Time
	Leads     int
	Fallbacks int
}

// VolumeSource reads daily lead counts in [from, to).
type VolumeSource interface {
	DailyCounts(ctx context.Context, from, to time.Time) ([]DayCount, error)
}

// BaselineDays is how many days before today form the comparison baseline.
const BaselineDays = 7

const defaultListLimit = 100

// Service raises, deduplicates and transitions alerts.
type Service struct {
	store      Store
	volumes    VolumeSource
	bus        events.Bus
	sender     email.Sender
	recipients []string
	thresholds Thresholds
	metrics    *metrics.Registry
	log        *logger.Logger
	now        func() time.Time
}

type Deps struct {
	Store      Store
	Volumes    VolumeSource
	Bus        events.Bus
	Sender     email.Sender
	Recipients []string
	Thresholds Thresholds
	Metrics    *metrics.Registry
	Log        *logger.Logger
}

func NewService(d Deps) *Service {
	sender := d.Sender
	if sender == nil {
		sender = email.NoopSender{}
	}
	return &Service{
		store:      d.Store,
		volumes:    d.Volumes,
		bus:        d.Bus,
		sender:     sender,
		recipients: d.Recipients,
		thresholds: d.Thresholds,
		metrics:    d.Metrics,
		log:        d.Log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Raise stores the candidate unless the same kind and subject already fired
// today. created is false for a suppressed repeat.
func (s *Service) Raise(ctx context.Context, c Candidate) (Alert, bool, error) {
	now := s.now()
	a := Alert{
		ID:         uuid.New(),
		Kind:       c.Kind,
		Subject:    c.Subject,
		Message:    c.Message,
		PropertyID: c.PropertyID,
		City:       c.City,
		State:      c.State,
		Observed:   c.Observed,
		Threshold:  c.Threshold,
		Status:     StatusNew,
		DedupKey:   DedupKey(c.Kind, c.Subject, now),
		CreatedAt:  now,
	}
	if err := s.store.Insert(ctx, a); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return Alert{}, false, nil
		}
		return Alert{}, false, err
	}

	s.metrics.ObserveAlert(string(a.Kind))
	s.log.Warn("alert raised", "alertId", a.ID, "kind", a.Kind, "subject", a.Subject, "observed", a.Observed, "threshold", a.Threshold)
	if s.bus != nil {
		s.bus.Publish(ctx, events.AlertRaised{
			BaseEvent: events.NewBaseEvent(),
			AlertID:   a.ID,
			Kind:      string(a.Kind),
			Subject:   a.Subject,
			Message:   a.Message,
		})
	}
	s.notify(ctx, a)
	return a, true, nil
}

func (s *Service) notify(ctx context.Context, a Alert) {
	msg := email.AlertMessage{Kind: string(a.Kind), Subject: a.Subject, Message: a.Message, Observed: a.Observed, Limit: a.Threshold}
	for _, to := range s.recipients {
		if err := s.sender.SendAlertEmail(ctx, to, msg); err != nil {
			s.log.Error("failed to send alert email", "error", err, "alertId", a.ID, "to", to)
		}
	}
}

// Transition moves an alert along new -> acknowledged -> resolved.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, to Status) (Alert, error) {
	current, err := s.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Alert{}, apperr.NotFound("alert not found")
	}
	if err != nil {
		return Alert{}, err
	}
	if !CanTransition(current.Status, to) {
		return Alert{}, apperr.Conflict(fmt.Sprintf("cannot move alert from %s to %s", current.Status, to))
	}
	updated, err := s.store.UpdateStatus(ctx, id, current.Status, to, s.now())
	if errors.Is(err, ErrStale) {
		return Alert{}, apperr.Conflict("alert status changed concurrently")
	}
	return updated, err
}

func (s *Service) List(ctx context.Context, status Status, limit int) ([]Alert, error) {
	if limit <= 0 || limit > 500 {
		limit = defaultListLimit
	}
	return s.store.List(ctx, status, limit)
}

// CheckVolume raises a lead_volume_spike when today is far above the baseline.
func (s *Service) CheckVolume(ctx context.Context, today DayCount, baseline []DayCount) (*Alert, error) {
	avg := averageLeads(baseline)
	v := EvaluateVolume(today.Leads, avg, s.thresholds)
	if !v.Fire {
		return nil, nil
	}
	a, created, err := s.Raise(ctx, Candidate{
		Kind:      KindLeadVolumeSpike,
		Subject:   "all leads",
		Message:   fmt.Sprintf("%d leads today against a %d-day average of %.1f", today.Leads, BaselineDays, avg),
		Observed:  v.Observed,
		Threshold: v.Limit,
	})
	if err != nil || !created {
		return nil, err
	}
	return &a, nil
}

// CheckFallbacks raises a routing_fallback_spike when today's fallback share
// is far above the baseline share.
func (s *Service) CheckFallbacks(ctx context.Context, today DayCount, baseline []DayCount) (*Alert, error) {
	todayRate := rate(today.Fallbacks, today.Leads)
	var leads, fallbacks int
	for _, d := range baseline {
		leads += d.Leads
		fallbacks += d.Fallbacks
	}
	v := EvaluateFallbacks(today.Leads, todayRate, rate(fallbacks, leads), s.thresholds)
	if !v.Fire {
		return nil, nil
	}
	a, created, err := s.Raise(ctx, Candidate{
		Kind:      KindRoutingFallbackSpike,
		Subject:   "crm delivery",
		Message:   fmt.Sprintf("%d of %d leads fell back to local storage today", today.Fallbacks, today.Leads),
		Observed:  v.Observed,
		Threshold: v.Limit,
	})
	if err != nil || !created {
		return nil, err
	}
	return &a, nil
}

// loadVolumes splits the trailing window into today and the baseline days.
func (s *Service) loadVolumes(ctx context.Context) (DayCount, []DayCount, error) {
	day := s.now().Truncate(24 * time.Hour)
	counts, err := s.volumes.DailyCounts(ctx, day.AddDate(0, 0, -BaselineDays), day.AddDate(0, 0, 1))
	if err != nil {
		return DayCount{}, nil, err
	}
	today := DayCount{Day: day}
	baseline := make([]DayCount, 0, BaselineDays)
	for _, c := range counts {
		if c.Day.Equal(day) {
			today = c
			continue
		}
		baseline = append(baseline, c)
	}
	return today, padBaseline(baseline), nil
}

// padBaseline keeps days without leads in the average.
func padBaseline(days []DayCount) []DayCount {
	for len(days) < BaselineDays {
		days = append(days, DayCount{})
	}
	return days
}

// Subscribe registers the event handlers that feed the alert rules.
func (s *Service) Subscribe(bus events.Bus) {
	bus.Subscribe(events.MarketHeatChanged{}.EventName(), events.HandlerFunc(s.onHeatChanged))
	bus.Subscribe(events.LeadFallbackUsed{}.EventName(), events.HandlerFunc(s.onFallback))
}

func (s *Service) onHeatChanged(ctx context.Context, event events.Event) error {
	e, ok := event.(events.MarketHeatChanged)
	if !ok {
		return nil
	}
	_, _, err := s.Raise(ctx, Candidate{
		Kind:      KindHeatCategoryChange,
		Subject:   fmt.Sprintf("%s, %s", e.City, e.State),
		Message:   fmt.Sprintf("market heat moved from %s to %s", e.OldLabel, e.NewLabel),
		City:      e.City,
		State:     e.State,
		Observed:  e.HeatScore,
		Threshold: 0,
	})
	return err
}

func (s *Service) onFallback(ctx context.Context, event events.Event) error {
	if _, ok := event.(events.LeadFallbackUsed); !ok || s.volumes == nil {
		return nil
	}
	today, baseline, err := s.loadVolumes(ctx)
	if err != nil {
		return err
	}
	_, err = s.CheckFallbacks(ctx, today, baseline)
	return err
}

func averageLeads(days []DayCount) float64 {
	if len(days) == 0 {
		return 0
	}
	total := 0
	for _, d := range days {
		total += d.Leads
	}
	return float64(total) / float64(len(days))
}

func rate(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den) * 100
}
