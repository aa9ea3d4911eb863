package compactor

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/wilbur182/recap/internal/config"
	"github.com/wilbur182/recap/internal/core/model"
	"github.com/wilbur182/recap/internal/core/store"
	"github.com/wilbur182/recap/internal/features"
)

type fakeSummarizer struct {
	hourOutcome   string
	hourDegrade   error
	rollupOutcome string
	rollupDegrade error
}

func (f *fakeSummarizer) SummarizeHour(ctx context.Context, userID string, bucket model.HourlyBucket) (Result, error) {
	outcome := f.hourOutcome
	if outcome == "" {
		outcome = "did some work"
	}
	return Result{Outcome: outcome, DegradeErr: f.hourDegrade}, nil
}

func (f *fakeSummarizer) SummarizeRollup(ctx context.Context, userID string, scale model.SummaryScale, projectPath string, children []ChildSummary) (Result, error) {
	outcome := f.rollupOutcome
	if outcome == "" {
		outcome = "rolled up"
	}
	return Result{Outcome: outcome, DegradeErr: f.rollupDegrade}, nil
}

func (f *fakeSummarizer) SummarizeHourBatch(ctx context.Context, userID string, buckets []model.HourlyBucket) ([]Result, error) {
	results := make([]Result, len(buckets))
	for i, b := range buckets {
		res, err := f.SummarizeHour(ctx, userID, b)
		if err != nil {
			return nil, err
		}
		results[i] = res
	}
	return results, nil
}

// batchCountingSummarizer records how many hours each call covered, so a
// test can tell a true batched call apart from several per-hour calls.
type batchCountingSummarizer struct {
	fakeSummarizer
	batchCalls  int
	batchSizes  []int
	singleCalls int
}

func (f *batchCountingSummarizer) SummarizeHour(ctx context.Context, userID string, bucket model.HourlyBucket) (Result, error) {
	f.singleCalls++
	return f.fakeSummarizer.SummarizeHour(ctx, userID, bucket)
}

func (f *batchCountingSummarizer) SummarizeHourBatch(ctx context.Context, userID string, buckets []model.HourlyBucket) ([]Result, error) {
	f.batchCalls++
	f.batchSizes = append(f.batchSizes, len(buckets))
	results := make([]Result, len(buckets))
	for i, b := range buckets {
		res, err := f.fakeSummarizer.SummarizeHour(ctx, userID, b)
		if err != nil {
			return nil, err
		}
		results[i] = res
	}
	return results, nil
}

func openTestStores(t *testing.T) (*store.SnapshotStore, *store.SummaryStore) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recap.db")
	s, err := store.Open(path, nil)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return store.NewSnapshotStore(s), store.NewSummaryStore(s)
}

func insertSnapshot(t *testing.T, snapshots *store.SnapshotStore, userID, projectPath, hourBucket string, hourStart time.Time) {
	t.Helper()
	bucket := model.HourlyBucket{
		UserID:      userID,
		SessionID:   "sess-1",
		ProjectPath: projectPath,
		HourBucket:  hourBucket,
		HourStart:   hourStart,
		UserMessages: []model.Message{
			{Role: model.RoleUser, Timestamp: hourStart.Add(5 * time.Minute), Content: "fix the bug"},
		},
		MessageCount: 1,
	}
	if err := snapshots.SaveHourlySnapshots(userID, "sess-1", []model.HourlyBucket{bucket}); err != nil {
		t.Fatalf("SaveHourlySnapshots: %v", err)
	}
}

func TestRunCompactionCycleCompactsFinishedHour(t *testing.T) {
	snapshots, summaries := openTestStores(t)
	loc := time.UTC
	userID := "user-1"
	hourStart := time.Date(2024, 3, 15, 10, 0, 0, 0, loc)
	insertSnapshot(t, snapshots, userID, "/home/dev/project", "2024-03-15T10", hourStart)

	c := New(snapshots, summaries, &fakeSummarizer{}, loc)
	now := hourStart.Add(2 * time.Hour)

	result, err := c.RunCompactionCycle(context.Background(), userID, now)
	if err != nil {
		t.Fatalf("RunCompactionCycle: %v", err)
	}
	if result.HourlyCompacted != 1 {
		t.Errorf("HourlyCompacted = %d, want 1", result.HourlyCompacted)
	}
	if result.LatestCompactedDate != "2024-03-15" {
		t.Errorf("LatestCompactedDate = %q, want 2024-03-15", result.LatestCompactedDate)
	}

	sum, err := summaries.Find(userID, model.ScaleHourly, "2024-03-15T10", "/home/dev/project")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if sum.Outcome != "did some work" {
		t.Errorf("Outcome = %q", sum.Outcome)
	}
}

func TestRunCompactionCycleBatchesHourlySummariesWhenFeatureEnabled(t *testing.T) {
	features.Init(config.Default())
	features.SetOverride(features.LLMBatchPrompts.Name, true)
	t.Cleanup(func() { features.Init(config.Default()) })

	snapshots, summaries := openTestStores(t)
	loc := time.UTC
	userID := "user-1"
	hourA := time.Date(2024, 3, 15, 9, 0, 0, 0, loc)
	hourB := time.Date(2024, 3, 15, 10, 0, 0, 0, loc)
	insertSnapshot(t, snapshots, userID, "/home/dev/project", "2024-03-15T09", hourA)
	insertSnapshot(t, snapshots, userID, "/home/dev/project", "2024-03-15T10", hourB)

	summ := &batchCountingSummarizer{}
	c := New(snapshots, summaries, summ, loc)
	now := hourB.Add(2 * time.Hour)

	result, err := c.RunCompactionCycle(context.Background(), userID, now)
	if err != nil {
		t.Fatalf("RunCompactionCycle: %v", err)
	}
	if result.HourlyCompacted != 2 {
		t.Errorf("HourlyCompacted = %d, want 2", result.HourlyCompacted)
	}
	if summ.batchCalls != 1 {
		t.Errorf("batchCalls = %d, want 1 (both hours in one batch)", summ.batchCalls)
	}
	if len(summ.batchSizes) != 1 || summ.batchSizes[0] != 2 {
		t.Errorf("batchSizes = %v, want [2]", summ.batchSizes)
	}
	if summ.singleCalls != 0 {
		t.Errorf("singleCalls = %d, want 0 when batching succeeds", summ.singleCalls)
	}
}

func TestRunCompactionCycleSkipsUnfinishedHour(t *testing.T) {
	snapshots, summaries := openTestStores(t)
	loc := time.UTC
	userID := "user-1"
	hourStart := time.Date(2024, 3, 15, 10, 0, 0, 0, loc)
	insertSnapshot(t, snapshots, userID, "/home/dev/project", "2024-03-15T10", hourStart)

	c := New(snapshots, summaries, &fakeSummarizer{}, loc)
	// now is still inside the 10:00-11:00 hour: not finished yet.
	now := hourStart.Add(30 * time.Minute)

	result, err := c.RunCompactionCycle(context.Background(), userID, now)
	if err != nil {
		t.Fatalf("RunCompactionCycle: %v", err)
	}
	if result.HourlyCompacted != 0 {
		t.Errorf("HourlyCompacted = %d, want 0 for an unfinished hour", result.HourlyCompacted)
	}
}

func TestRunCompactionCycleIsIdempotent(t *testing.T) {
	snapshots, summaries := openTestStores(t)
	loc := time.UTC
	userID := "user-1"
	hourStart := time.Date(2024, 3, 15, 10, 0, 0, 0, loc)
	insertSnapshot(t, snapshots, userID, "/home/dev/project", "2024-03-15T10", hourStart)

	c := New(snapshots, summaries, &fakeSummarizer{}, loc)
	now := hourStart.Add(2 * time.Hour)

	if _, err := c.RunCompactionCycle(context.Background(), userID, now); err != nil {
		t.Fatalf("RunCompactionCycle (first): %v", err)
	}
	second, err := c.RunCompactionCycle(context.Background(), userID, now)
	if err != nil {
		t.Fatalf("RunCompactionCycle (second): %v", err)
	}
	if second.HourlyCompacted != 0 || second.DailyCompacted != 0 || second.WeeklyCompacted != 0 || second.MonthlyCompacted != 0 {
		t.Errorf("second run = %+v, want all zeros (convergence)", second)
	}
	if len(second.Errors) != 0 {
		t.Errorf("second run Errors = %v, want none", second.Errors)
	}
}

func TestRunCompactionCycleRecordsLLMDegradation(t *testing.T) {
	snapshots, summaries := openTestStores(t)
	loc := time.UTC
	userID := "user-1"
	hourStart := time.Date(2024, 3, 15, 10, 0, 0, 0, loc)
	insertSnapshot(t, snapshots, userID, "/home/dev/project", "2024-03-15T10", hourStart)

	c := New(snapshots, summaries, &fakeSummarizer{hourOutcome: "fixed via rules", hourDegrade: errors.New("llm: network error")}, loc)
	now := hourStart.Add(2 * time.Hour)

	result, err := c.RunCompactionCycle(context.Background(), userID, now)
	if err != nil {
		t.Fatalf("RunCompactionCycle: %v", err)
	}
	if result.HourlyCompacted != 1 {
		t.Errorf("HourlyCompacted = %d, want 1 (rule-based fallback still produces a summary)", result.HourlyCompacted)
	}
	if len(result.Errors) == 0 {
		t.Errorf("expected the LLM degradation to be recorded in Errors")
	}

	sum, err := summaries.Find(userID, model.ScaleHourly, "2024-03-15T10", "/home/dev/project")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if sum.Outcome != "fixed via rules" {
		t.Errorf("Outcome = %q, want the rule-based fallback text", sum.Outcome)
	}
}

func TestRunCompactionCycleRollsUpDailyFromHourlySummaries(t *testing.T) {
	_, summaries := openTestStores(t)
	loc := time.UTC
	userID := "user-1"
	projectPath := "/home/dev/project"
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, loc)

	for h := 0; h < 3; h++ {
		start := day.Add(time.Duration(h) * time.Hour)
		sum := model.Summary{
			ID:          uuid.NewString(),
			UserID:      userID,
			ProjectPath: projectPath,
			Scale:       model.ScaleHourly,
			BucketKey:   start.Format("2006-01-02T15"),
			StartTime:   start,
			EndTime:     start.Add(time.Hour),
			Outcome:     "worked on the parser",
			InputHash:   uint64(h) + 1,
		}
		if err := summaries.Save(sum); err != nil {
			t.Fatalf("Save hourly summary: %v", err)
		}
	}

	c := New(nil, summaries, &fakeSummarizer{rollupOutcome: "a productive day"}, loc)
	now := day.AddDate(0, 0, 2)

	result := &CompactionResult{}
	if err := c.compactDaily(context.Background(), userID, now, result); err != nil {
		t.Fatalf("compactDaily: %v", err)
	}

	got, err := summaries.Find(userID, model.ScaleDaily, "2024-03-15", projectPath)
	if err != nil {
		t.Fatalf("Find daily summary: %v", err)
	}
	if got.Outcome != "a productive day" {
		t.Errorf("Outcome = %q", got.Outcome)
	}

	// Re-running with unchanged hourly inputs must not rebuild.
	res2 := &CompactionResult{}
	if err := c.compactDaily(context.Background(), userID, now, res2); err != nil {
		t.Fatalf("compactDaily (second): %v", err)
	}
	if res2.DailyCompacted != 0 {
		t.Errorf("DailyCompacted = %d on an unchanged re-run, want 0", res2.DailyCompacted)
	}
}

func TestRunCompactionCycleDailyWaitsForFinishedDay(t *testing.T) {
	_, summaries := openTestStores(t)
	loc := time.UTC
	userID := "user-1"
	projectPath := "/home/dev/project"
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, loc)

	sum := model.Summary{
		ID:          uuid.NewString(),
		UserID:      userID,
		ProjectPath: projectPath,
		Scale:       model.ScaleHourly,
		BucketKey:   "2024-03-15T10",
		StartTime:   day.Add(10 * time.Hour),
		EndTime:     day.Add(11 * time.Hour),
		Outcome:     "worked",
		InputHash:   1,
	}
	if err := summaries.Save(sum); err != nil {
		t.Fatalf("Save: %v", err)
	}

	c := New(nil, summaries, &fakeSummarizer{}, loc)
	// now is still within the same day: the day is not finished.
	now := day.Add(14 * time.Hour)

	result := &CompactionResult{}
	if err := c.compactDaily(context.Background(), userID, now, result); err != nil {
		t.Fatalf("compactDaily: %v", err)
	}
	if result.DailyCompacted != 0 {
		t.Errorf("DailyCompacted = %d, want 0 for a day still in progress", result.DailyCompacted)
	}
}

func TestWeekAndMonthKeyRoundTrip(t *testing.T) {
	loc := time.UTC
	tm := time.Date(2024, 3, 15, 12, 0, 0, 0, loc)

	wk := weekKey(tm, loc)
	start, end, err := weekBounds(wk, loc)
	if err != nil {
		t.Fatalf("weekBounds: %v", err)
	}
	if !tm.Before(end) || tm.Before(start) {
		t.Errorf("week bounds [%v,%v) do not contain %v", start, end, tm)
	}
	if end.Sub(start) != 7*24*time.Hour {
		t.Errorf("week span = %v, want 7 days", end.Sub(start))
	}

	mk := monthKey(tm, loc)
	mstart, mend, err := monthBounds(mk, loc)
	if err != nil {
		t.Fatalf("monthBounds: %v", err)
	}
	if !tm.Before(mend) || tm.Before(mstart) {
		t.Errorf("month bounds [%v,%v) do not contain %v", mstart, mend, tm)
	}
}
