package coordinator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// MinIntervalMinutes and DefaultIntervalMinutes bound the configured
// ingestion interval, mirroring the quota poller's own clamping.
const (
	MinIntervalMinutes     = 1
	DefaultIntervalMinutes = 10
)

// Scheduler triggers RunPass on a fixed interval for one or more users.
type Scheduler struct {
	Coordinator     *Coordinator
	UserIDs         []string
	IntervalMinutes int
	Log             *slog.Logger
	OnPass          func(userID string, result PassResult)

	cron *cron.Cron
}

// NewScheduler builds a Scheduler. intervalMinutes below MinIntervalMinutes
// is clamped up to DefaultIntervalMinutes.
func NewScheduler(c *Coordinator, userIDs []string, intervalMinutes int, onPass func(string, PassResult), log *slog.Logger) *Scheduler {
	if intervalMinutes < MinIntervalMinutes {
		intervalMinutes = DefaultIntervalMinutes
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{Coordinator: c, UserIDs: userIDs, IntervalMinutes: intervalMinutes, Log: log, OnPass: onPass}
}

// Start schedules periodic passes and runs until ctx is canceled, at which
// point the scheduler stops and waits for any in-flight tick to finish.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron = cron.New()
	spec := fmt.Sprintf("@every %dm", s.IntervalMinutes)
	if _, err := s.cron.AddFunc(spec, func() { s.Tick(ctx) }); err != nil {
		return fmt.Errorf("coordinator scheduler: schedule: %w", err)
	}
	s.cron.Start()
	<-ctx.Done()
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	return nil
}

// Tick runs one pass for every configured user. Exported so callers and
// tests can drive a pass synchronously without waiting on the schedule.
func (s *Scheduler) Tick(ctx context.Context) {
	for _, userID := range s.UserIDs {
		result := s.Coordinator.RunPass(ctx, userID)
		if result.Err != nil {
			s.Log.Warn("ingestion pass failed", "user", userID, "error", result.Err)
		}
		if s.OnPass != nil {
			s.OnPass(userID, result)
		}
	}
}
