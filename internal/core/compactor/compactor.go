// Package compactor rolls raw hourly snapshots into hierarchical summaries
// (hourly -> daily -> weekly -> monthly) and stops once nothing remains to
// roll up. Each level's input_hash detects staleness so a late-arriving
// snapshot only rebuilds the summaries that actually depend on it.
package compactor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/wilbur182/recap/internal/core/model"
	"github.com/wilbur182/recap/internal/core/store"
	"github.com/wilbur182/recap/internal/features"
)

// maxHourBatchSize bounds how many pending hours go into one batched LLM
// call when the llm_batch_prompts feature is enabled.
const maxHourBatchSize = 6

// ChildSummary is one input to a roll-up: a lower-level summary's bucket key
// and outcome text, the pair the input_hash is computed over.
type ChildSummary struct {
	BucketKey string
	Outcome   string
}

// Result carries what SummarizeHour/SummarizeRollup produced, including
// whether the LLM path was attempted and degraded to the rule-based one.
type Result struct {
	Outcome    string
	Cost       *model.CostRecord
	Degraded   bool
	DegradeErr error
}

// Summarizer is the compactor's only collaborator for turning a bucket's raw
// inputs into a short outcome string. The concrete implementation (rule-based
// with optional LLM path) lives in the summarizer package; the compactor only
// depends on this narrow interface.
type Summarizer interface {
	SummarizeHour(ctx context.Context, userID string, bucket model.HourlyBucket) (Result, error)
	SummarizeRollup(ctx context.Context, userID string, scale model.SummaryScale, projectPath string, children []ChildSummary) (Result, error)
	// SummarizeHourBatch summarizes several hours of the same project in one
	// call, returning one Result per input bucket in the same order. Used
	// only when the llm_batch_prompts feature is enabled.
	SummarizeHourBatch(ctx context.Context, userID string, buckets []model.HourlyBucket) ([]Result, error)
}

// CompactionResult is the outcome of one run_compaction_cycle call.
type CompactionResult struct {
	HourlyCompacted     int
	DailyCompacted      int
	WeeklyCompacted     int
	MonthlyCompacted    int
	LatestCompactedDate string // YYYY-MM-DD, empty if nothing compacted
	Errors              []string
}

// Compactor runs compaction cycles for one user at a time.
type Compactor struct {
	Snapshots  *store.SnapshotStore
	Summaries  *store.SummaryStore
	Summarizer Summarizer
	Location   *time.Location
}

// New builds a Compactor. loc is the timezone used to decide which buckets
// are "finished" (hourly/daily/weekly/monthly boundaries are all local).
func New(snapshots *store.SnapshotStore, summaries *store.SummaryStore, summarizer Summarizer, loc *time.Location) *Compactor {
	if loc == nil {
		loc = time.Local
	}
	return &Compactor{Snapshots: snapshots, Summaries: summaries, Summarizer: summarizer, Location: loc}
}

// RunCompactionCycle performs one pass: hourly, then daily, then weekly, then
// monthly, in that order. A bucket whose wall-clock coverage is not strictly
// in the past at now is left alone. Per-bucket failures are recorded in
// Errors and do not abort the cycle.
func (c *Compactor) RunCompactionCycle(ctx context.Context, userID string, now time.Time) (CompactionResult, error) {
	var result CompactionResult
	now = now.In(c.Location)

	if err := c.compactHourly(ctx, userID, now, &result); err != nil {
		return result, err
	}
	if err := c.compactDaily(ctx, userID, now, &result); err != nil {
		return result, err
	}
	if err := c.compactWeekly(ctx, userID, now, &result); err != nil {
		return result, err
	}
	if err := c.compactMonthly(ctx, userID, now, &result); err != nil {
		return result, err
	}
	return result, nil
}

// pendingHour is one (project, hour) bucket whose summary is missing or
// stale, staged before deciding whether to summarize it alone or batched
// with its siblings.
type pendingHour struct {
	key        store.HourKey
	merged     model.HourlyBucket
	hash       uint64
	existingID string
}

func (c *Compactor) compactHourly(ctx context.Context, userID string, now time.Time, result *CompactionResult) error {
	keys, err := c.Snapshots.ListDistinctHourBuckets(userID)
	if err != nil {
		return fmt.Errorf("compactor: list hour buckets: %w", err)
	}

	var pending []pendingHour
	for _, key := range keys {
		if !hourFinished(key.HourStart, now) {
			continue
		}
		existing, err := c.Summaries.Find(userID, model.ScaleHourly, key.HourBucket, key.ProjectPath)
		found := err == nil
		if err != nil && err != model.ErrNotFound {
			result.Errors = append(result.Errors, fmt.Sprintf("hourly %s/%s: %v", key.ProjectPath, key.HourBucket, err))
			continue
		}

		buckets, err := c.Snapshots.LoadSnapshotsForProjectHours(userID, key.ProjectPath, []string{key.HourBucket})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("hourly %s/%s: %v", key.ProjectPath, key.HourBucket, err))
			continue
		}
		hash := inputHashForHour(buckets)
		if found && existing.InputHash == hash {
			continue // up to date
		}

		p := pendingHour{key: key, merged: mergeHourBuckets(userID, buckets), hash: hash, existingID: existing.ID}
		pending = append(pending, p)
	}

	if features.IsEnabled(features.LLMBatchPrompts.Name) {
		c.saveHourlyBatched(ctx, userID, pending, result)
		return nil
	}
	for _, p := range pending {
		res, err := c.Summarizer.SummarizeHour(ctx, userID, p.merged)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("hourly %s/%s: summarize: %v", p.key.ProjectPath, p.key.HourBucket, err))
			continue
		}
		c.saveHourResult(userID, p, res, result)
	}
	return nil
}

// saveHourlyBatched groups pending hours by project and sends each group,
// chunked to maxHourBatchSize, through one SummarizeHourBatch call instead
// of one call per hour.
func (c *Compactor) saveHourlyBatched(ctx context.Context, userID string, pending []pendingHour, result *CompactionResult) {
	byProject := make(map[string][]pendingHour)
	var order []string
	for _, p := range pending {
		if _, ok := byProject[p.key.ProjectPath]; !ok {
			order = append(order, p.key.ProjectPath)
		}
		byProject[p.key.ProjectPath] = append(byProject[p.key.ProjectPath], p)
	}

	for _, project := range order {
		group := byProject[project]
		for start := 0; start < len(group); start += maxHourBatchSize {
			end := start + maxHourBatchSize
			if end > len(group) {
				end = len(group)
			}
			chunk := group[start:end]

			buckets := make([]model.HourlyBucket, len(chunk))
			for i, p := range chunk {
				buckets[i] = p.merged
			}
			results, err := c.Summarizer.SummarizeHourBatch(ctx, userID, buckets)
			if err != nil || len(results) != len(chunk) {
				if err != nil {
					result.Errors = append(result.Errors, fmt.Sprintf("batch hourly %s: %v", project, err))
				}
				for _, p := range chunk {
					res, err := c.Summarizer.SummarizeHour(ctx, userID, p.merged)
					if err != nil {
						result.Errors = append(result.Errors, fmt.Sprintf("hourly %s/%s: summarize: %v", p.key.ProjectPath, p.key.HourBucket, err))
						continue
					}
					c.saveHourResult(userID, p, res, result)
				}
				continue
			}
			for i, p := range chunk {
				c.saveHourResult(userID, p, results[i], result)
			}
		}
	}
}

func (c *Compactor) saveHourResult(userID string, p pendingHour, res Result, result *CompactionResult) {
	sum := model.Summary{
		ID:          existingOrNewID(p.existingID),
		UserID:      userID,
		ProjectPath: p.key.ProjectPath,
		Scale:       model.ScaleHourly,
		BucketKey:   p.key.HourBucket,
		StartTime:   p.key.HourStart,
		EndTime:     p.key.HourStart.Add(time.Hour),
		Outcome:     res.Outcome,
		InputHash:   p.hash,
		Cost:        res.Cost,
	}
	if err := c.Summaries.Save(sum); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("hourly %s/%s: save: %v", p.key.ProjectPath, p.key.HourBucket, err))
		return
	}
	result.HourlyCompacted++
	bumpLatestDate(result, p.key.HourBucket[:10])
	if res.DegradeErr != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("hourly %s/%s: llm: %v", p.key.ProjectPath, p.key.HourBucket, res.DegradeErr))
	}
}

// mergeHourBuckets concatenates every (project, hour) snapshot row's
// meaningful content into a single synthetic bucket for the summarizer; in
// practice there is usually exactly one row (one session) per hour.
func mergeHourBuckets(userID string, buckets []model.HourlyBucket) model.HourlyBucket {
	merged := model.HourlyBucket{}
	if len(buckets) > 0 {
		merged.ProjectPath = buckets[0].ProjectPath
		merged.HourBucket = buckets[0].HourBucket
		merged.UserID = userID
	}
	for _, b := range buckets {
		merged.UserMessages = append(merged.UserMessages, b.UserMessages...)
		merged.AssistantMessages = append(merged.AssistantMessages, b.AssistantMessages...)
		merged.ToolCalls = append(merged.ToolCalls, b.ToolCalls...)
		merged.FilesModified = append(merged.FilesModified, b.FilesModified...)
	}
	return merged
}

func (c *Compactor) compactDaily(ctx context.Context, userID string, now time.Time, result *CompactionResult) error {
	return c.compactRollup(ctx, userID, now, model.ScaleHourly, model.ScaleDaily, dayKey, dayBounds, result)
}

func (c *Compactor) compactWeekly(ctx context.Context, userID string, now time.Time, result *CompactionResult) error {
	return c.compactRollup(ctx, userID, now, model.ScaleDaily, model.ScaleWeekly, weekKey, weekBounds, result)
}

func (c *Compactor) compactMonthly(ctx context.Context, userID string, now time.Time, result *CompactionResult) error {
	return c.compactRollup(ctx, userID, now, model.ScaleWeekly, model.ScaleMonthly, monthKey, monthBounds, result)
}

// compactRollup groups every childScale summary (across all projects touched
// by user) by its bucket key at parentScale, and for every finished group
// with a stale or missing parent summary, rebuilds it.
func (c *Compactor) compactRollup(
	ctx context.Context,
	userID string,
	now time.Time,
	childScale, parentScale model.SummaryScale,
	keyFor func(time.Time, *time.Location) string,
	boundsFor func(string, *time.Location) (time.Time, time.Time, error),
	result *CompactionResult,
) error {
	projects, err := c.Summaries.ListDistinctProjects(userID, childScale)
	if err != nil {
		return fmt.Errorf("compactor: list projects for %s: %w", childScale, err)
	}

	for _, projectPath := range projects {
		children, err := c.Summaries.ListByScale(userID, projectPath, childScale)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s %s: list children: %v", parentScale, projectPath, err))
			continue
		}

		groups := make(map[string][]model.Summary)
		for _, child := range children {
			key := keyFor(child.StartTime.In(c.Location), c.Location)
			groups[key] = append(groups[key], child)
		}

		keys := make([]string, 0, len(groups))
		for k := range groups {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, bucketKey := range keys {
			start, end, err := boundsFor(bucketKey, c.Location)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s %s/%s: %v", parentScale, projectPath, bucketKey, err))
				continue
			}
			if !end.Before(now) && !end.Equal(now) {
				continue // not yet finished
			}

			group := groups[bucketKey]
			sort.Slice(group, func(i, j int) bool { return group[i].StartTime.Before(group[j].StartTime) })

			childSummaries := make([]ChildSummary, len(group))
			for i, g := range group {
				childSummaries[i] = ChildSummary{BucketKey: g.BucketKey, Outcome: g.Outcome}
			}
			hash := inputHashForRollup(parentScale, childSummaries)

			existing, err := c.Summaries.Find(userID, parentScale, bucketKey, projectPath)
			if err != nil && err != model.ErrNotFound {
				result.Errors = append(result.Errors, fmt.Sprintf("%s %s/%s: find: %v", parentScale, projectPath, bucketKey, err))
				continue
			}
			if err == nil && existing.InputHash == hash {
				continue
			}

			res, err := c.Summarizer.SummarizeRollup(ctx, userID, parentScale, projectPath, childSummaries)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s %s/%s: summarize: %v", parentScale, projectPath, bucketKey, err))
				continue
			}
			if res.DegradeErr != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s %s/%s: llm: %v", parentScale, projectPath, bucketKey, res.DegradeErr))
			}

			sum := model.Summary{
				ID:          existingOrNewID(existing.ID),
				UserID:      userID,
				ProjectPath: projectPath,
				Scale:       parentScale,
				BucketKey:   bucketKey,
				StartTime:   start,
				EndTime:     end,
				Outcome:     res.Outcome,
				InputHash:   hash,
				Cost:        res.Cost,
			}
			if err := c.Summaries.Save(sum); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s %s/%s: save: %v", parentScale, projectPath, bucketKey, err))
				continue
			}

			switch parentScale {
			case model.ScaleDaily:
				result.DailyCompacted++
			case model.ScaleWeekly:
				result.WeeklyCompacted++
			case model.ScaleMonthly:
				result.MonthlyCompacted++
			}
			bumpLatestDate(result, dayKey(end.AddDate(0, 0, -1), c.Location))
		}
	}
	return nil
}

func existingOrNewID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

func bumpLatestDate(result *CompactionResult, date string) {
	if date > result.LatestCompactedDate {
		result.LatestCompactedDate = date
	}
}

// hourFinished reports whether the hour starting at hourStart has entirely
// elapsed as of now.
func hourFinished(hourStart, now time.Time) bool {
	if hourStart.IsZero() {
		return false
	}
	return !hourStart.Add(time.Hour).After(now)
}
