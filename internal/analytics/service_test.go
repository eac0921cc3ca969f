package analytics

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"realty_leads_backend/internal/adapters/storage"
	"realty_leads_backend/internal/alerts"
	"realty_leads_backend/internal/imports"
	"realty_leads_backend/internal/leads/domain"
	"realty_leads_backend/internal/markets"
	"realty_leads_backend/platform/apperr"
	"realty_leads_backend/platform/logger"

	"github.com/google/uuid"
)

type stubLeads struct {
	leads []domain.Lead
	err   error
}

func (s stubLeads) ListCreatedBetween(_ context.Context, from, to time.Time) ([]domain.Lead, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []domain.Lead
	for _, l := range s.leads {
		if !l.CreatedAt.Before(from) && l.CreatedAt.Before(to) {
			out = append(out, l)
		}
	}
	return out, nil
}

type stubProps struct{}

func (stubProps) TopPropertyMetrics(context.Context, int) ([]markets.PropertyMetrics, error) {
	return []markets.PropertyMetrics{{PropertyID: uuid.New(), LeadScore: 55}}, nil
}

type stubImports struct{}

func (stubImports) ListStartedSince(context.Context, time.Time) ([]imports.Attempt, error) {
	return []imports.Attempt{{Requested: 4, Imported: 3, Failed: 1, StartedAt: rollupNow}}, nil
}

type memSnapshots struct {
	mu    sync.Mutex
	byDay map[time.Time]DailySnapshot
}

func (m *memSnapshots) UpsertSnapshot(_ context.Context, snap DailySnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byDay[snap.Day] = snap
	return nil
}

func (m *memSnapshots) ListSnapshots(context.Context, time.Time) ([]DailySnapshot, error) {
	var out []DailySnapshot
	for _, s := range m.byDay {
		out = append(out, s)
	}
	return out, nil
}

type memStorage struct {
	objects map[string][]byte
	err     error
}

func (m *memStorage) EnsureBucketExists(context.Context, string) error { return nil }

func (m *memStorage) PutObject(_ context.Context, bucket, key, _ string, body io.Reader, _ int64) error {
	if m.err != nil {
		return m.err
	}
	b, _ := io.ReadAll(body)
	m.objects[bucket+"/"+key] = b
	return nil
}

func (m *memStorage) GenerateDownloadURL(context.Context, string, string) (*storage.PresignedURL, error) {
	return nil, nil
}

type recordingAlerts struct {
	today    alerts.DayCount
	baseline []alerts.DayCount
}

func (r *recordingAlerts) CheckVolume(_ context.Context, today alerts.DayCount, baseline []alerts.DayCount) (*alerts.Alert, error) {
	r.today, r.baseline = today, baseline
	return &alerts.Alert{Kind: alerts.KindLeadVolumeSpike}, nil
}

func (r *recordingAlerts) CheckFallbacks(context.Context, alerts.DayCount, []alerts.DayCount) (*alerts.Alert, error) {
	return nil, nil
}

func newTestService(leads LeadSource, store storage.StorageService, va VolumeAlerts) (*Service, *memSnapshots) {
	snaps := &memSnapshots{byDay: make(map[time.Time]DailySnapshot)}
	svc := NewService(Deps{
		Leads:      leads,
		Properties: stubProps{},
		Imports:    stubImports{},
		Snapshots:  snaps,
		Alerts:     va,
		Storage:    store,
		Bucket:     "analytics-snapshots",
		Log:        logger.Discard(),
	})
	svc.now = func() time.Time { return rollupNow }
	return svc, snaps
}

func TestSummaryLoadsAllSources(t *testing.T) {
	leads := stubLeads{leads: []domain.Lead{lead("00000000-0000-0000-0000-000000000001", 0, domain.StatusNew, 60)}}
	svc, _ := newTestService(leads, nil, nil)

	s, err := svc.Summary(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.TotalLeads != 1 || len(s.TopProperties) != 1 || s.Imports.Imported != 3 {
		t.Fatalf("unexpected summary %+v", s)
	}
}

func TestSummaryRejectsBadWindow(t *testing.T) {
	svc, _ := newTestService(stubLeads{}, nil, nil)
	if _, err := svc.Summary(context.Background(), 0); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSummaryPropagatesSourceError(t *testing.T) {
	svc, _ := newTestService(stubLeads{err: errors.New("db down")}, nil, nil)
	if _, err := svc.Summary(context.Background(), 7); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSnapshotArchivesAndUpserts(t *testing.T) {
	store := &memStorage{objects: make(map[string][]byte)}
	svc, snaps := newTestService(stubLeads{}, store, nil)

	snap, err := svc.Snapshot(context.Background(), rollupNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !snap.Archived {
		t.Fatalf("expected archived snapshot")
	}
	if _, ok := store.objects["analytics-snapshots/snapshots/2026/03/2026-03-09.json"]; !ok {
		t.Fatalf("expected archived object, got %v", store.objects)
	}

	if _, err := svc.Snapshot(context.Background(), rollupNow.Add(time.Hour)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snaps.byDay) != 1 {
		t.Fatalf("expected one snapshot per day, got %d", len(snaps.byDay))
	}
}

func TestSnapshotKeepsRowWhenArchiveFails(t *testing.T) {
	store := &memStorage{objects: make(map[string][]byte), err: errors.New("minio down")}
	svc, snaps := newTestService(stubLeads{}, store, nil)

	snap, err := svc.Snapshot(context.Background(), rollupNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Archived || len(snaps.byDay) != 1 {
		t.Fatalf("expected unarchived stored snapshot, got %+v", snap)
	}
}

func TestEvaluateLeadVolumeSplitsTodayFromBaseline(t *testing.T) {
	leads := stubLeads{leads: []domain.Lead{
		lead("00000000-0000-0000-0000-000000000001", 0, domain.StatusNew, 60),
		lead("00000000-0000-0000-0000-000000000002", 0, domain.StatusNew, 60),
		lead("00000000-0000-0000-0000-000000000003", 3, domain.StatusNew, 60),
	}}
	va := &recordingAlerts{}
	svc, _ := newTestService(leads, nil, va)

	raised, err := svc.EvaluateLeadVolume(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(raised) != 1 {
		t.Fatalf("expected one alert, got %d", len(raised))
	}
	if va.today.Leads != 2 {
		t.Fatalf("expected 2 leads today, got %d", va.today.Leads)
	}
	if len(va.baseline) != alerts.BaselineDays {
		t.Fatalf("expected %d baseline days, got %d", alerts.BaselineDays, len(va.baseline))
	}
	total := 0
	for _, d := range va.baseline {
		total += d.Leads
	}
	if total != 1 {
		t.Fatalf("expected 1 baseline lead, got %d", total)
	}
}
