package quota

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/wilbur182/recap/internal/core/model"
	"github.com/wilbur182/recap/internal/core/store"
)

// AlertLevel classifies how far over a threshold a quota window is.
type AlertLevel string

const (
	AlertWarning  AlertLevel = "warning"
	AlertCritical AlertLevel = "critical"
)

// Alert is emitted at most once per (provider, window, level) until the
// window's usage drops back below that threshold and crosses it again.
type Alert struct {
	Provider    string
	Window      model.QuotaWindow
	Level       AlertLevel
	UsedPercent float64
	At          time.Time
}

// AlertFunc receives threshold-crossing alerts from the poller.
type AlertFunc func(Alert)

// Poller runs FetchQuota on each registered provider on a fixed interval,
// persists every snapshot, and raises deduplicated threshold alerts.
type Poller struct {
	Providers       []Provider
	Store           *store.QuotaStore
	IntervalMinutes int
	OnAlert         AlertFunc
	Log             *slog.Logger
	Now             func() time.Time

	mu          sync.Mutex
	lastPercent map[string]float64   // "provider/window" -> latest used percent
	alerted     map[string]AlertLevel // "provider/window" -> level the window is currently past, already alerted

	cron *cron.Cron
}

// MinIntervalMinutes and DefaultIntervalMinutes bound the user-configured
// poll interval (spec §4.7).
const (
	MinIntervalMinutes     = 5
	DefaultIntervalMinutes = 15
)

// NewPoller builds a Poller. intervalMinutes below MinIntervalMinutes is
// replaced by DefaultIntervalMinutes.
func NewPoller(providers []Provider, qstore *store.QuotaStore, intervalMinutes int, onAlert AlertFunc, log *slog.Logger) *Poller {
	if intervalMinutes < MinIntervalMinutes {
		intervalMinutes = DefaultIntervalMinutes
	}
	if log == nil {
		log = slog.Default()
	}
	return &Poller{
		Providers:       providers,
		Store:           qstore,
		IntervalMinutes: intervalMinutes,
		OnAlert:         onAlert,
		Log:             log,
		Now:             time.Now,
		lastPercent:     make(map[string]float64),
		alerted:         make(map[string]AlertLevel),
	}
}

// Start schedules periodic ticks on a robfig/cron scheduler and runs until
// ctx is canceled, at which point it stops the scheduler and returns.
func (p *Poller) Start(ctx context.Context) error {
	p.cron = cron.New()
	spec := fmt.Sprintf("@every %dm", p.IntervalMinutes)
	if _, err := p.cron.AddFunc(spec, func() { p.Tick(ctx) }); err != nil {
		return fmt.Errorf("quota poller: schedule: %w", err)
	}
	p.cron.Start()
	<-ctx.Done()
	stopCtx := p.cron.Stop()
	<-stopCtx.Done()
	return nil
}

// Tick runs one poll pass across all available providers. Exported so
// callers (and tests) can drive a pass synchronously without waiting on the
// cron schedule.
func (p *Poller) Tick(ctx context.Context) {
	for _, provider := range p.Providers {
		if !provider.IsAvailable(ctx) {
			continue
		}
		snapshots, err := provider.FetchQuota(ctx)
		if err != nil {
			p.Log.Warn("quota poll failed", "provider", provider.Name(), "error", err)
			continue
		}
		for _, snap := range snapshots {
			p.persistAndAlert(provider.Name(), snap)
		}
	}
}

func (p *Poller) persistAndAlert(providerName string, snap model.QuotaSnapshot) {
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	if p.Store != nil {
		if err := p.Store.Append(snap); err != nil {
			p.Log.Warn("quota snapshot persist failed", "provider", providerName, "error", err)
		}
	}

	key := providerName + "/" + string(snap.Window)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastPercent[key] = snap.UsedPercent

	level, crossed := thresholdLevel(snap.UsedPercent)
	if !crossed {
		delete(p.alerted, key)
		return
	}
	if prev, ok := p.alerted[key]; ok && (prev == level || prev == AlertCritical) {
		// Still past a threshold this crossing already alerted on; a drop
		// from critical to warning re-arms the critical alert without
		// emitting a second warning alert.
		p.alerted[key] = level
		return
	}
	p.alerted[key] = level
	if p.OnAlert != nil {
		p.OnAlert(Alert{
			Provider:    providerName,
			Window:      snap.Window,
			Level:       level,
			UsedPercent: snap.UsedPercent,
			At:          p.now(),
		})
	}
}

// LatestPercent returns the most recently observed used-percent for
// (provider, window), for the tray/status UI. ok is false if no tick has
// observed that window yet.
func (p *Poller) LatestPercent(providerName string, window model.QuotaWindow) (percent float64, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	percent, ok = p.lastPercent[providerName+"/"+string(window)]
	return percent, ok
}

func (p *Poller) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func thresholdLevel(usedPercent float64) (AlertLevel, bool) {
	switch {
	case usedPercent >= CriticalThresholdPercent:
		return AlertCritical, true
	case usedPercent >= WarningThresholdPercent:
		return AlertWarning, true
	default:
		return "", false
	}
}
