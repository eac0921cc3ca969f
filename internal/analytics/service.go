package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"realty_leads_backend/internal/adapters/storage"
	"realty_leads_backend/internal/alerts"
	"realty_leads_backend/internal/imports"
	"realty_leads_backend/internal/leads/domain"
	"realty_leads_backend/internal/markets"
	"realty_leads_backend/platform/apperr"
	"realty_leads_backend/platform/logger"

	"golang.org/x/sync/errgroup"
)

type LeadSource interface {
	ListCreatedBetween(ctx context.Context, from, to time.Time) ([]domain.Lead, error)
}

type PropertySource interface {
	TopPropertyMetrics(ctx context.Context, limit int) ([]markets.PropertyMetrics, error)
}

type ImportSource interface {
	ListStartedSince(ctx context.Context, since time.Time) ([]imports.Attempt, error)
}

type SnapshotStore interface {
	UpsertSnapshot(ctx context.Context, snap DailySnapshot) error
	ListSnapshots(ctx context.Context, since time.Time) ([]DailySnapshot, error)
}

// VolumeAlerts receives the daily counts the alert rules evaluate.
type VolumeAlerts interface {
	CheckVolume(ctx context.Context, today alerts.DayCount, baseline []alerts.DayCount) (*alerts.Alert, error)
	CheckFallbacks(ctx context.Context, today alerts.DayCount, baseline []alerts.DayCount) (*alerts.Alert, error)
}

const maxSummaryDays = 366

type Deps struct {
	Leads      LeadSource
	Properties PropertySource
	Imports    ImportSource
	Snapshots  SnapshotStore
	Alerts     VolumeAlerts
	Storage    storage.StorageService
	Bucket     string
	Log        *logger.Logger
}

// Service loads windows of data and rolls them up.
type Service struct {
	leads      LeadSource
	properties PropertySource
	imports    ImportSource
	snapshots  SnapshotStore
	alerts     VolumeAlerts
	storage    storage.StorageService
	bucket     string
	log        *logger.Logger
	now        func() time.Time
}

func NewService(d Deps) *Service {
	return &Service{
		leads:      d.Leads,
		properties: d.Properties,
		imports:    d.Imports,
		snapshots:  d.Snapshots,
		alerts:     d.Alerts,
		storage:    d.Storage,
		bucket:     d.Bucket,
		log:        d.Log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Summary rolls up the last days whole UTC days including today.
func (s *Service) Summary(ctx context.Context, days int) (Summary, error) {
	if days <= 0 || days > maxSummaryDays {
		return Summary{}, apperr.Validation(fmt.Sprintf("days must be between 1 and %d", maxSummaryDays))
	}
	return s.rollupWindow(ctx, LastDays(s.now(), days))
}

func (s *Service) rollupWindow(ctx context.Context, w Window) (Summary, error) {
	data, err := s.load(ctx, w)
	if err != nil {
		return Summary{}, err
	}
	return Rollup(w, data, DefaultTopN), nil
}

// load reads the three sources concurrently.
func (s *Service) load(ctx context.Context, w Window) (Dataset, error) {
	var data Dataset
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		leads, err := s.leads.ListCreatedBetween(gctx, w.From, w.To)
		if err != nil {
			return fmt.Errorf("load leads: %w", err)
		}
		data.Leads = leads
		return nil
	})
	g.Go(func() error {
		if s.properties == nil {
			return nil
		}
		props, err := s.properties.TopPropertyMetrics(gctx, DefaultTopN)
		if err != nil {
			return fmt.Errorf("load properties: %w", err)
		}
		data.Properties = props
		return nil
	})
	g.Go(func() error {
		if s.imports == nil {
			return nil
		}
		attempts, err := s.imports.ListStartedSince(gctx, w.From)
		if err != nil {
			return fmt.Errorf("load imports: %w", err)
		}
		data.Imports = attempts
		return nil
	})
	if err := g.Wait(); err != nil {
		return Dataset{}, err
	}
	return data, nil
}

// Snapshot rolls up one UTC day, stores it and archives the JSON when storage
// is configured. An archive failure is logged and leaves archived false.
func (s *Service) Snapshot(ctx context.Context, day time.Time) (DailySnapshot, error) {
	w := Day(day)
	summary, err := s.rollupWindow(ctx, w)
	if err != nil {
		return DailySnapshot{}, err
	}
	snap := DailySnapshot{Day: w.From, Summary: summary, UpdatedAt: s.now()}

	if s.storage != nil && s.bucket != "" {
		if err := s.archive(ctx, snap); err != nil {
			s.log.Error("failed to archive snapshot", "error", err, "day", w.From.Format("2006-01-02"))
		} else {
			snap.Archived = true
		}
	}

	if err := s.snapshots.UpsertSnapshot(ctx, snap); err != nil {
		return DailySnapshot{}, err
	}
	s.log.Info("daily snapshot stored", "day", w.From.Format("2006-01-02"), "leads", summary.TotalLeads, "archived", snap.Archived)
	return snap, nil
}

func (s *Service) archive(ctx context.Context, snap DailySnapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	key := storage.SnapshotKey(snap.Day.Format("2006-01-02"))
	return s.storage.PutObject(ctx, s.bucket, key, "application/json", bytes.NewReader(body), int64(len(body)))
}

// Snapshots lists stored daily snapshots for the last days.
func (s *Service) Snapshots(ctx context.Context, days int) ([]DailySnapshot, error) {
	if days <= 0 || days > maxSummaryDays {
		return nil, apperr.Validation(fmt.Sprintf("days must be between 1 and %d", maxSummaryDays))
	}
	return s.snapshots.ListSnapshots(ctx, LastDays(s.now(), days).From)
}

// EvaluateLeadVolume hands today's counts and the preceding baseline days to
// the alert rules.
func (s *Service) EvaluateLeadVolume(ctx context.Context) ([]alerts.Alert, error) {
	if s.alerts == nil {
		return nil, nil
	}
	w := LastDays(s.now(), alerts.BaselineDays+1)
	leads, err := s.leads.ListCreatedBetween(ctx, w.From, w.To)
	if err != nil {
		return nil, err
	}
	series := Rollup(w, Dataset{Leads: leads}, 1).Daily
	today, baseline := splitSeries(series)

	var raised []alerts.Alert
	for _, check := range []func(context.Context, alerts.DayCount, []alerts.DayCount) (*alerts.Alert, error){s.alerts.CheckVolume, s.alerts.CheckFallbacks} {
		a, err := check(ctx, today, baseline)
		if err != nil {
			return raised, err
		}
		if a != nil {
			raised = append(raised, *a)
		}
	}
	return raised, nil
}

// splitSeries takes the last point as today and the rest as the baseline.
func splitSeries(series []DailyPoint) (alerts.DayCount, []alerts.DayCount) {
	if len(series) == 0 {
		return alerts.DayCount{}, nil
	}
	toCount := func(p DailyPoint) alerts.DayCount {
		return alerts.DayCount{Day: p.Day, Leads: p.Leads, Fallbacks: p.Fallbacks}
	}
	baseline := make([]alerts.DayCount, 0, len(series)-1)
	for _, p := range series[:len(series)-1] {
		baseline = append(baseline, toCount(p))
	}
	return toCount(series[len(series)-1]), baseline
}
