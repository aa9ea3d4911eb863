package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/wilbur182/recap/internal/core/model"
)

// SnapshotStore persists hourly buckets and exposes them to the compactor.
type SnapshotStore struct {
	db *Store
}

func NewSnapshotStore(db *Store) *SnapshotStore { return &SnapshotStore{db: db} }

// snapshotMessageRow is the on-disk JSON shape of a bucket's message arrays.
// Kept separate from model.Message so the wire format can evolve without
// touching the in-memory pipeline types.
type snapshotMessageRow struct {
	Role      model.Role `json:"role"`
	Timestamp time.Time  `json:"timestamp"`
	Content   string     `json:"content"`
}

type snapshotToolRow struct {
	Name   string `json:"name"`
	Detail string `json:"detail"`
}

type snapshotCommitRow struct {
	Hash      string    `json:"hash"`
	Subject   string    `json:"subject"`
	Timestamp time.Time `json:"timestamp"`
}

// SaveHourlySnapshots upserts each bucket on (user, session_id, hour_bucket).
// The row is replaced, not merged: a later parse of a longer-grown session
// strictly supersedes the earlier snapshot, which is safe because the
// transcript is append-only on disk.
func (s *SnapshotStore) SaveHourlySnapshots(userID, sessionID string, buckets []model.HourlyBucket) error {
	if len(buckets) == 0 {
		return nil
	}

	tx, err := s.db.DB.Beginx()
	if err != nil {
		return fmt.Errorf("snapshot store: begin: %w", err)
	}
	defer tx.Rollback()

	const upsert = `
		INSERT INTO snapshot_raw_data
			(user_id, session_id, project_path, hour_bucket, hour_start,
			 user_messages, assistant_messages, tool_calls, files_modified, commits,
			 message_count, raw_byte_size, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, session_id, hour_bucket) DO UPDATE SET
			project_path = excluded.project_path,
			hour_start = excluded.hour_start,
			user_messages = excluded.user_messages,
			assistant_messages = excluded.assistant_messages,
			tool_calls = excluded.tool_calls,
			files_modified = excluded.files_modified,
			commits = excluded.commits,
			message_count = excluded.message_count,
			raw_byte_size = excluded.raw_byte_size,
			created_at = excluded.created_at
	`

	for _, b := range buckets {
		userMsgs, err := json.Marshal(toMessageRows(b.UserMessages))
		if err != nil {
			return fmt.Errorf("snapshot store: marshal user messages: %w", err)
		}
		assistantMsgs, err := json.Marshal(toMessageRows(b.AssistantMessages))
		if err != nil {
			return fmt.Errorf("snapshot store: marshal assistant messages: %w", err)
		}
		toolCalls, err := json.Marshal(toToolRows(b.ToolCalls))
		if err != nil {
			return fmt.Errorf("snapshot store: marshal tool calls: %w", err)
		}
		files, err := json.Marshal(b.FilesModified)
		if err != nil {
			return fmt.Errorf("snapshot store: marshal files modified: %w", err)
		}
		commits, err := json.Marshal(toCommitRows(b.Commits))
		if err != nil {
			return fmt.Errorf("snapshot store: marshal commits: %w", err)
		}

		_, err = tx.Exec(upsert,
			userID, sessionID, b.ProjectPath, b.HourBucket, b.HourStart.UTC().Format(time.RFC3339),
			string(userMsgs), string(assistantMsgs), string(toolCalls), string(files), string(commits),
			b.MessageCount, b.RawByteSize, time.Now().UTC().Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("snapshot store: upsert %s/%s: %w", sessionID, b.HourBucket, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("snapshot store: commit: %w", err)
	}
	return nil
}

type snapshotRow struct {
	ID                int64  `db:"id"`
	UserID            string `db:"user_id"`
	SessionID         string `db:"session_id"`
	ProjectPath       string `db:"project_path"`
	HourBucket        string `db:"hour_bucket"`
	HourStart         string `db:"hour_start"`
	UserMessages      string `db:"user_messages"`
	AssistantMessages string `db:"assistant_messages"`
	ToolCalls         string `db:"tool_calls"`
	FilesModified     string `db:"files_modified"`
	Commits           string `db:"commits"`
	MessageCount      int    `db:"message_count"`
	RawByteSize       int    `db:"raw_byte_size"`
	CreatedAt         string `db:"created_at"`
}

// LoadSnapshotsForHour returns every snapshot for user at the given hour
// bucket key, across all sessions and projects.
func (s *SnapshotStore) LoadSnapshotsForHour(userID, hourBucket string) ([]model.HourlyBucket, error) {
	var rows []snapshotRow
	err := s.db.DB.Select(&rows,
		`SELECT id, user_id, session_id, project_path, hour_bucket, hour_start,
		        user_messages, assistant_messages, tool_calls, files_modified, commits,
		        message_count, raw_byte_size, created_at
		 FROM snapshot_raw_data WHERE user_id = ? AND hour_bucket = ?
		 ORDER BY session_id`, userID, hourBucket)
	if err != nil {
		return nil, fmt.Errorf("snapshot store: load for hour %s: %w", hourBucket, err)
	}
	return rowsToBuckets(rows)
}

// LoadSnapshotsForProjectHours returns every snapshot for user/project across
// the given set of hour bucket keys, used by the compactor's hourly pass to
// load one (project, hour) group across sessions.
func (s *SnapshotStore) LoadSnapshotsForProjectHours(userID, projectPath string, hourBuckets []string) ([]model.HourlyBucket, error) {
	if len(hourBuckets) == 0 {
		return nil, nil
	}
	query, args, err := sqlxIn(
		`SELECT id, user_id, session_id, project_path, hour_bucket, hour_start,
		        user_messages, assistant_messages, tool_calls, files_modified, commits,
		        message_count, raw_byte_size, created_at
		 FROM snapshot_raw_data WHERE user_id = ? AND project_path = ? AND hour_bucket IN (?)
		 ORDER BY hour_bucket, session_id`,
		userID, projectPath, hourBuckets)
	if err != nil {
		return nil, err
	}
	var rows []snapshotRow
	if err := s.db.DB.Select(&rows, query, args...); err != nil {
		return nil, fmt.Errorf("snapshot store: load for project hours: %w", err)
	}
	return rowsToBuckets(rows)
}

// HourKey identifies one (project, hour) snapshot group for the compactor's
// hourly pass.
type HourKey struct {
	ProjectPath string
	HourBucket  string
	HourStart   time.Time
}

// ListDistinctHourBuckets returns every distinct (project_path, hour_bucket)
// pair with at least one snapshot for user, ascending by hour_start, so the
// compactor can walk them in time order and stop once nothing remains.
func (s *SnapshotStore) ListDistinctHourBuckets(userID string) ([]HourKey, error) {
	var rows []struct {
		ProjectPath string `db:"project_path"`
		HourBucket  string `db:"hour_bucket"`
		HourStart   string `db:"hour_start"`
	}
	err := s.db.DB.Select(&rows,
		`SELECT DISTINCT project_path, hour_bucket, MIN(hour_start) AS hour_start
		 FROM snapshot_raw_data WHERE user_id = ?
		 GROUP BY project_path, hour_bucket
		 ORDER BY hour_start ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("snapshot store: list distinct hour buckets: %w", err)
	}
	out := make([]HourKey, 0, len(rows))
	for _, r := range rows {
		k := HourKey{ProjectPath: r.ProjectPath, HourBucket: r.HourBucket}
		if t, err := time.Parse(time.RFC3339, r.HourStart); err == nil {
			k.HourStart = t
		}
		out = append(out, k)
	}
	return out, nil
}

// DeleteSnapshotsOlderThan removes snapshots whose hour_start predates the
// retention window, for the janitor. Returns the number of rows deleted.
func (s *SnapshotStore) DeleteSnapshotsOlderThan(userID string, retentionDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Format(time.RFC3339)
	res, err := s.db.DB.Exec(
		`DELETE FROM snapshot_raw_data WHERE user_id = ? AND hour_start < ?`,
		userID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("snapshot store: delete older than %d days: %w", retentionDays, err)
	}
	return res.RowsAffected()
}

func rowsToBuckets(rows []snapshotRow) ([]model.HourlyBucket, error) {
	buckets := make([]model.HourlyBucket, 0, len(rows))
	for _, r := range rows {
		b := model.HourlyBucket{
			ID:           r.ID,
			UserID:       r.UserID,
			SessionID:    r.SessionID,
			ProjectPath:  r.ProjectPath,
			HourBucket:   r.HourBucket,
			MessageCount: r.MessageCount,
			RawByteSize:  r.RawByteSize,
		}
		if t, err := time.Parse(time.RFC3339, r.HourStart); err == nil {
			b.HourStart = t
		}
		if t, err := time.Parse(time.RFC3339, r.CreatedAt); err == nil {
			b.CreatedAt = t
		}

		var userMsgs, assistantMsgs []snapshotMessageRow
		if err := json.Unmarshal([]byte(r.UserMessages), &userMsgs); err != nil {
			return nil, fmt.Errorf("snapshot store: decode user_messages: %w", err)
		}
		if err := json.Unmarshal([]byte(r.AssistantMessages), &assistantMsgs); err != nil {
			return nil, fmt.Errorf("snapshot store: decode assistant_messages: %w", err)
		}
		b.UserMessages = fromMessageRows(userMsgs)
		b.AssistantMessages = fromMessageRows(assistantMsgs)

		var tools []snapshotToolRow
		if err := json.Unmarshal([]byte(r.ToolCalls), &tools); err != nil {
			return nil, fmt.Errorf("snapshot store: decode tool_calls: %w", err)
		}
		b.ToolCalls = fromToolRows(tools)

		var files []string
		if err := json.Unmarshal([]byte(r.FilesModified), &files); err != nil {
			return nil, fmt.Errorf("snapshot store: decode files_modified: %w", err)
		}
		b.FilesModified = files

		var commits []snapshotCommitRow
		if err := json.Unmarshal([]byte(r.Commits), &commits); err != nil {
			return nil, fmt.Errorf("snapshot store: decode commits: %w", err)
		}
		b.Commits = fromCommitRows(commits)

		buckets = append(buckets, b)
	}
	return buckets, nil
}

func toMessageRows(msgs []model.Message) []snapshotMessageRow {
	rows := make([]snapshotMessageRow, len(msgs))
	for i, m := range msgs {
		rows[i] = snapshotMessageRow{Role: m.Role, Timestamp: m.Timestamp, Content: m.Content}
	}
	return rows
}

func fromMessageRows(rows []snapshotMessageRow) []model.Message {
	msgs := make([]model.Message, len(rows))
	for i, r := range rows {
		msgs[i] = model.Message{Role: r.Role, Timestamp: r.Timestamp, Content: r.Content}
	}
	return msgs
}

func toToolRows(tools []model.ToolUse) []snapshotToolRow {
	rows := make([]snapshotToolRow, len(tools))
	for i, t := range tools {
		rows[i] = snapshotToolRow{Name: t.Name, Detail: t.Detail}
	}
	return rows
}

func fromToolRows(rows []snapshotToolRow) []model.ToolUse {
	tools := make([]model.ToolUse, len(rows))
	for i, r := range rows {
		tools[i] = model.ToolUse{Name: r.Name, Detail: r.Detail}
	}
	return tools
}

func toCommitRows(commits []model.Commit) []snapshotCommitRow {
	rows := make([]snapshotCommitRow, len(commits))
	for i, c := range commits {
		rows[i] = snapshotCommitRow{Hash: c.Hash, Subject: c.Subject, Timestamp: c.Timestamp}
	}
	return rows
}

func fromCommitRows(rows []snapshotCommitRow) []model.Commit {
	commits := make([]model.Commit, len(rows))
	for i, r := range rows {
		commits[i] = model.Commit{Hash: r.Hash, Subject: r.Subject, Timestamp: r.Timestamp}
	}
	return commits
}
