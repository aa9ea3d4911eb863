package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/wilbur182/recap/internal/core/model"
)

// WorkItemStore persists the externally visible work-item rows.
type WorkItemStore struct {
	db *Store
}

func NewWorkItemStore(db *Store) *WorkItemStore { return &WorkItemStore{db: db} }

type workItemRow struct {
	ID             string         `db:"id"`
	UserID         string         `db:"user_id"`
	Source         string         `db:"source"`
	SourceID       string         `db:"source_id"`
	Title          string         `db:"title"`
	Description    string         `db:"description"`
	Hours          float64        `db:"hours"`
	Date           string         `db:"date"`
	ProjectPath    string         `db:"project_path"`
	SessionID      string         `db:"session_id"`
	StartTime      sql.NullString `db:"start_time"`
	EndTime        sql.NullString `db:"end_time"`
	HoursSource    string         `db:"hours_source"`
	ExternalIssue  string         `db:"external_issue"`
	SyncedToRemote bool           `db:"synced_to_remote"`
	CreatedAt      string         `db:"created_at"`
	UpdatedAt      string         `db:"updated_at"`
}

// FindBySourceID returns the existing work item for (user, source,
// source_id), or model.ErrNotFound.
func (s *WorkItemStore) FindBySourceID(userID, source, sourceID string) (model.WorkItem, error) {
	var row workItemRow
	err := s.db.DB.Get(&row,
		`SELECT * FROM work_items WHERE user_id = ? AND source = ? AND source_id = ?`,
		userID, source, sourceID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.WorkItem{}, model.ErrNotFound
	}
	if err != nil {
		return model.WorkItem{}, fmt.Errorf("work item store: find %s: %w", sourceID, err)
	}
	return workItemFromRow(row), nil
}

// Save inserts or replaces a work item keyed by (user, source, source_id).
// Callers (the upsert package) are responsible for deciding whether to carry
// forward the stored hours/title/description when hours_source is
// user_modified; Save always writes exactly the item it is given.
func (s *WorkItemStore) Save(item model.WorkItem) error {
	now := time.Now().UTC().Format(time.RFC3339)
	item.UpdatedAt, _ = time.Parse(time.RFC3339, now)
	if item.CreatedAt.IsZero() {
		item.CreatedAt = item.UpdatedAt
	}

	var startTime, endTime sql.NullString
	if !item.StartTime.IsZero() {
		startTime = sql.NullString{String: item.StartTime.UTC().Format(time.RFC3339), Valid: true}
	}
	if !item.EndTime.IsZero() {
		endTime = sql.NullString{String: item.EndTime.UTC().Format(time.RFC3339), Valid: true}
	}

	_, err := s.db.DB.Exec(`
		INSERT INTO work_items
			(id, user_id, source, source_id, title, description, hours, date,
			 project_path, session_id, start_time, end_time, hours_source,
			 external_issue, synced_to_remote, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, source, source_id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			hours = excluded.hours,
			date = excluded.date,
			project_path = excluded.project_path,
			session_id = excluded.session_id,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			hours_source = excluded.hours_source,
			external_issue = excluded.external_issue,
			synced_to_remote = excluded.synced_to_remote,
			updated_at = excluded.updated_at
		`,
		item.ID, item.UserID, item.Source, item.SourceID, item.Title, item.Description,
		item.Hours, item.Date, item.ProjectPath, item.SessionID, startTime, endTime,
		string(item.HoursSource), item.ExternalIssue, item.SyncedToRemote,
		item.CreatedAt.UTC().Format(time.RFC3339), now,
	)
	if err != nil {
		return fmt.Errorf("work item store: save %s: %w", item.SourceID, err)
	}
	return nil
}

func workItemFromRow(r workItemRow) model.WorkItem {
	item := model.WorkItem{
		ID:             r.ID,
		UserID:         r.UserID,
		Source:         r.Source,
		SourceID:       r.SourceID,
		Title:          r.Title,
		Description:    r.Description,
		Hours:          r.Hours,
		Date:           r.Date,
		ProjectPath:    r.ProjectPath,
		SessionID:      r.SessionID,
		HoursSource:    model.HoursSource(r.HoursSource),
		ExternalIssue:  r.ExternalIssue,
		SyncedToRemote: r.SyncedToRemote,
	}
	if r.StartTime.Valid {
		item.StartTime, _ = time.Parse(time.RFC3339, r.StartTime.String)
	}
	if r.EndTime.Valid {
		item.EndTime, _ = time.Parse(time.RFC3339, r.EndTime.String)
	}
	if t, err := time.Parse(time.RFC3339, r.CreatedAt); err == nil {
		item.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, r.UpdatedAt); err == nil {
		item.UpdatedAt = t
	}
	return item
}
