package upsert

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/wilbur182/recap/internal/core/model"
	"github.com/wilbur182/recap/internal/core/store"
)

// Result reports what Upsert did, for the source-abstraction sync result's
// work_items_created / work_items_updated counters.
type Result struct {
	Created bool
	Updated bool
}

// Upsert writes candidate to itemStore, applying the conflict rule: if an
// existing row's hours_source is user_modified, its hours/title/description
// are preserved and only start_time/end_time/project_path/updated_at are
// refreshed; otherwise candidate's regenerated fields win outright.
func Upsert(itemStore *store.WorkItemStore, candidate model.WorkItem) (Result, error) {
	existing, err := itemStore.FindBySourceID(candidate.UserID, candidate.Source, candidate.SourceID)
	if errors.Is(err, model.ErrNotFound) {
		candidate.ID = uuid.NewString()
		if err := itemStore.Save(candidate); err != nil {
			return Result{}, fmt.Errorf("upsert: create %s: %w", candidate.SourceID, err)
		}
		return Result{Created: true}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("upsert: lookup %s: %w", candidate.SourceID, err)
	}

	next := candidate
	next.ID = existing.ID
	next.CreatedAt = existing.CreatedAt
	next.ExternalIssue = existing.ExternalIssue
	next.SyncedToRemote = existing.SyncedToRemote

	if existing.HoursSource == model.HoursSourceUserModified {
		next.Hours = existing.Hours
		next.Title = existing.Title
		next.Description = existing.Description
		next.HoursSource = model.HoursSourceUserModified
	}

	if unchanged(existing, next) {
		return Result{}, nil
	}

	if err := itemStore.Save(next); err != nil {
		return Result{}, fmt.Errorf("upsert: update %s: %w", candidate.SourceID, err)
	}
	return Result{Updated: true}, nil
}

// unchanged reports whether next's persisted fields are identical to
// existing, so that re-running ingestion on an unchanged transcript produces
// zero work_items_updated (testable property 4).
func unchanged(existing, next model.WorkItem) bool {
	return existing.Hours == next.Hours &&
		existing.Title == next.Title &&
		existing.Description == next.Description &&
		existing.Date == next.Date &&
		existing.ProjectPath == next.ProjectPath &&
		existing.StartTime.Equal(next.StartTime) &&
		existing.EndTime.Equal(next.EndTime) &&
		existing.HoursSource == next.HoursSource
}
