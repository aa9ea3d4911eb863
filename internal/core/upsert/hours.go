// Package upsert maps session-hours to idempotent work-item rows: it
// estimates hours from a gappy stream of meaningful messages, generates a
// rule-based title and description, and applies the conflict resolution rule
// that preserves anything a human has since edited.
package upsert

import (
	"math"
	"sort"
	"time"

	"github.com/wilbur182/recap/internal/core/model"
)

const (
	gapThreshold   = 10 * time.Minute
	thinkTimeQuantum = 2 * time.Minute
	loneMessageMinutes = 1 * time.Minute
	minHours       = 0.1
)

// EstimateHours computes hours for a (session, day) group of meaningful
// messages: sort by timestamp, accumulate small gaps in full, cap large gaps
// at the threshold plus a fixed 2-minute think-time quantum, divide by 60 and
// round to one decimal, never exceeding dailyWorkHours and never below 0.1h
// when at least one meaningful message exists.
func EstimateHours(messages []model.Message, dailyWorkHours float64) float64 {
	meaningful := make([]model.Message, 0, len(messages))
	for _, m := range messages {
		if m.IsMeaningful() {
			meaningful = append(meaningful, m)
		}
	}
	if len(meaningful) == 0 {
		return 0
	}

	sort.Slice(meaningful, func(i, j int) bool {
		return meaningful[i].Timestamp.Before(meaningful[j].Timestamp)
	})

	if len(meaningful) == 1 {
		return clampHours(loneMessageMinutes.Minutes()/60, dailyWorkHours)
	}

	var totalMinutes float64
	for i := 1; i < len(meaningful); i++ {
		gap := meaningful[i].Timestamp.Sub(meaningful[i-1].Timestamp)
		if gap < 0 {
			gap = 0
		}
		if gap <= gapThreshold {
			totalMinutes += gap.Minutes()
		} else {
			// A gap over the threshold is charged for the threshold itself
			// (time genuinely spent before the assistant went idle) plus a
			// flat 2-minute quantum for picking the thread back up, rather
			// than the full elapsed idle time.
			totalMinutes += gapThreshold.Minutes() + thinkTimeQuantum.Minutes()
		}
	}

	return clampHours(totalMinutes/60, dailyWorkHours)
}

// EstimateFromDiff derives hours from lines-added+removed for Git-commit
// ingestion, at a conservative rate, capped the same way as EstimateHours.
func EstimateFromDiff(linesChanged int, dailyWorkHours float64) float64 {
	if linesChanged <= 0 {
		return 0
	}
	const linesPerHour = 80.0 // conservative: large diffs are not linear in effort
	hours := float64(linesChanged) / linesPerHour
	return clampHours(hours, dailyWorkHours)
}

func clampHours(hours, dailyWorkHours float64) float64 {
	rounded := math.Round(hours*10) / 10
	cap := dailyWorkHours
	if cap <= 0 || cap > 24.0 {
		cap = 24.0
	}
	if rounded > cap {
		rounded = cap
	}
	if rounded <= 0 {
		rounded = minHours
	}
	return rounded
}
