package quota

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/wilbur182/recap/internal/core/model"
	"github.com/wilbur182/recap/internal/core/store"
)

type fakeProvider struct {
	name      string
	available bool
	snapshots []model.QuotaSnapshot
	err       error
}

func (f *fakeProvider) Name() string                              { return f.name }
func (f *fakeProvider) IsAvailable(ctx context.Context) bool       { return f.available }
func (f *fakeProvider) GetAccountInfo(ctx context.Context) (AccountInfo, error) {
	return AccountInfo{Provider: f.name}, nil
}
func (f *fakeProvider) FetchQuota(ctx context.Context) ([]model.QuotaSnapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.snapshots, nil
}

func openTestQuotaStore(t *testing.T) *store.QuotaStore {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "recap.db"), nil)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { db.DB.Close() })
	return store.NewQuotaStore(db)
}

func TestTickSkipsUnavailableProviders(t *testing.T) {
	qstore := openTestQuotaStore(t)
	provider := &fakeProvider{name: "claude", available: false}
	var alerts []Alert
	p := NewPoller([]Provider{provider}, qstore, 15, func(a Alert) { alerts = append(alerts, a) }, nil)

	p.Tick(context.Background())

	if len(alerts) != 0 {
		t.Errorf("expected no alerts, got %v", alerts)
	}
}

func TestTickPersistsSnapshotsAndAlertsAtWarning(t *testing.T) {
	qstore := openTestQuotaStore(t)
	provider := &fakeProvider{
		name:      "claude",
		available: true,
		snapshots: []model.QuotaSnapshot{
			{Provider: "claude", Window: model.Window5h, UsedPercent: 85, ResetAt: time.Now().Add(time.Hour)},
		},
	}
	var alerts []Alert
	p := NewPoller([]Provider{provider}, qstore, 15, func(a Alert) { alerts = append(alerts, a) }, nil)

	p.Tick(context.Background())

	if len(alerts) != 1 || alerts[0].Level != AlertWarning {
		t.Fatalf("alerts = %+v", alerts)
	}

	latest, err := qstore.Latest("claude", model.Window5h)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.UsedPercent != 85 {
		t.Errorf("UsedPercent = %v, want 85", latest.UsedPercent)
	}

	percent, ok := p.LatestPercent("claude", model.Window5h)
	if !ok || percent != 85 {
		t.Errorf("LatestPercent = %v, %v", percent, ok)
	}
}

func TestTickDeduplicatesAlertsAtSameLevel(t *testing.T) {
	qstore := openTestQuotaStore(t)
	provider := &fakeProvider{
		name:      "claude",
		available: true,
		snapshots: []model.QuotaSnapshot{
			{Provider: "claude", Window: model.Window5h, UsedPercent: 85, ResetAt: time.Now().Add(time.Hour)},
		},
	}
	var alerts []Alert
	p := NewPoller([]Provider{provider}, qstore, 15, func(a Alert) { alerts = append(alerts, a) }, nil)

	p.Tick(context.Background())
	p.Tick(context.Background())

	if len(alerts) != 1 {
		t.Errorf("expected exactly one alert across two ticks at the same level, got %d", len(alerts))
	}
}

func TestTickReAlertsWhenCrossingToCriticalAfterWarning(t *testing.T) {
	qstore := openTestQuotaStore(t)
	provider := &fakeProvider{
		name:      "claude",
		available: true,
		snapshots: []model.QuotaSnapshot{
			{Provider: "claude", Window: model.Window5h, UsedPercent: 85, ResetAt: time.Now().Add(time.Hour)},
		},
	}
	var alerts []Alert
	p := NewPoller([]Provider{provider}, qstore, 15, func(a Alert) { alerts = append(alerts, a) }, nil)

	p.Tick(context.Background())

	provider.snapshots[0].UsedPercent = 96
	p.Tick(context.Background())

	if len(alerts) != 2 {
		t.Fatalf("expected a second alert when crossing into critical, got %d: %+v", len(alerts), alerts)
	}
	if alerts[1].Level != AlertCritical {
		t.Errorf("second alert level = %v, want critical", alerts[1].Level)
	}
}

func TestTickResetsAlertStateWhenUsageDropsBelowThreshold(t *testing.T) {
	qstore := openTestQuotaStore(t)
	provider := &fakeProvider{
		name:      "claude",
		available: true,
		snapshots: []model.QuotaSnapshot{
			{Provider: "claude", Window: model.Window5h, UsedPercent: 85, ResetAt: time.Now().Add(time.Hour)},
		},
	}
	var alerts []Alert
	p := NewPoller([]Provider{provider}, qstore, 15, func(a Alert) { alerts = append(alerts, a) }, nil)

	p.Tick(context.Background())

	provider.snapshots[0].UsedPercent = 10
	p.Tick(context.Background())

	provider.snapshots[0].UsedPercent = 85
	p.Tick(context.Background())

	if len(alerts) != 2 {
		t.Errorf("expected a fresh alert after usage dropped and re-crossed, got %d", len(alerts))
	}
}

func TestNewPollerClampsIntervalBelowMinimum(t *testing.T) {
	p := NewPoller(nil, nil, 1, nil, nil)
	if p.IntervalMinutes != DefaultIntervalMinutes {
		t.Errorf("IntervalMinutes = %d, want %d", p.IntervalMinutes, DefaultIntervalMinutes)
	}
}
