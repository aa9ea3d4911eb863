package coordinator

import (
	"context"
	"testing"

	"github.com/wilbur182/recap/internal/core/sources"
)

func TestTickRunsPassForEveryConfiguredUser(t *testing.T) {
	registry := sources.NewRegistry()
	c := New(registry, openTestCompactor(t), nil)

	var seen []string
	s := NewScheduler(c, []string{"user-1", "user-2"}, 5, func(userID string, result PassResult) {
		seen = append(seen, userID)
	}, nil)

	s.Tick(context.Background())

	if len(seen) != 2 || seen[0] != "user-1" || seen[1] != "user-2" {
		t.Errorf("seen = %v", seen)
	}
}

func TestNewSchedulerClampsIntervalBelowMinimum(t *testing.T) {
	s := NewScheduler(nil, nil, 0, nil, nil)
	if s.IntervalMinutes != DefaultIntervalMinutes {
		t.Errorf("IntervalMinutes = %d, want %d", s.IntervalMinutes, DefaultIntervalMinutes)
	}
}
