package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/wilbur182/recap/internal/core/model"
)

// SummaryStore persists compacted records at one of the four roll-up scales.
type SummaryStore struct {
	db *Store
}

func NewSummaryStore(db *Store) *SummaryStore { return &SummaryStore{db: db} }

type summaryRow struct {
	ID                   string         `db:"id"`
	UserID               string         `db:"user_id"`
	ProjectPath          string         `db:"project_path"`
	Scale                string         `db:"scale"`
	BucketKey            string         `db:"bucket_key"`
	StartTime            string         `db:"start_time"`
	EndTime              string         `db:"end_time"`
	Outcome              string         `db:"outcome"`
	InputHash            int64          `db:"input_hash"`
	CostProvider         string         `db:"cost_provider"`
	CostModel            string         `db:"cost_model"`
	CostPromptTokens     int            `db:"cost_prompt_tokens"`
	CostCompletionTokens int            `db:"cost_completion_tokens"`
	CostUSD              float64        `db:"cost_usd"`
	CreatedAt            string         `db:"created_at"`
}

// Find returns the existing summary for (user, scale, bucket_key,
// project_path), or model.ErrNotFound.
func (s *SummaryStore) Find(userID string, scale model.SummaryScale, bucketKey, projectPath string) (model.Summary, error) {
	var row summaryRow
	err := s.db.DB.Get(&row,
		`SELECT id, user_id, project_path, scale, bucket_key, start_time, end_time,
		        outcome, input_hash, cost_provider, cost_model, cost_prompt_tokens,
		        cost_completion_tokens, cost_usd, created_at
		 FROM work_summaries
		 WHERE user_id = ? AND scale = ? AND bucket_key = ? AND project_path = ?`,
		userID, string(scale), bucketKey, projectPath)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Summary{}, model.ErrNotFound
	}
	if err != nil {
		return model.Summary{}, fmt.Errorf("summary store: find %s/%s: %w", scale, bucketKey, err)
	}
	return summaryFromRow(row), nil
}

// Save inserts or replaces a summary keyed by (user, scale, bucket_key,
// project_path).
func (s *SummaryStore) Save(sum model.Summary) error {
	if sum.CreatedAt.IsZero() {
		sum.CreatedAt = time.Now().UTC()
	}
	var provider, costModel string
	var promptTokens, completionTokens int
	var usd float64
	if sum.Cost != nil {
		provider = sum.Cost.Provider
		costModel = sum.Cost.Model
		promptTokens = sum.Cost.PromptTokens
		completionTokens = sum.Cost.CompletionTokens
		usd = sum.Cost.USD
	}

	_, err := s.db.DB.Exec(`
		INSERT INTO work_summaries
			(id, user_id, project_path, scale, bucket_key, start_time, end_time,
			 outcome, input_hash, cost_provider, cost_model, cost_prompt_tokens,
			 cost_completion_tokens, cost_usd, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, scale, bucket_key, project_path) DO UPDATE SET
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			outcome = excluded.outcome,
			input_hash = excluded.input_hash,
			cost_provider = excluded.cost_provider,
			cost_model = excluded.cost_model,
			cost_prompt_tokens = excluded.cost_prompt_tokens,
			cost_completion_tokens = excluded.cost_completion_tokens,
			cost_usd = excluded.cost_usd
		`,
		sum.ID, sum.UserID, sum.ProjectPath, string(sum.Scale), sum.BucketKey,
		sum.StartTime.UTC().Format(time.RFC3339), sum.EndTime.UTC().Format(time.RFC3339),
		sum.Outcome, int64(sum.InputHash), provider, costModel, promptTokens, completionTokens, usd,
		sum.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("summary store: save %s/%s: %w", sum.Scale, sum.BucketKey, err)
	}
	return nil
}

// ListByScale returns every summary at scale for user/project, ascending by
// start_time, used to assemble the next level's inputs.
func (s *SummaryStore) ListByScale(userID, projectPath string, scale model.SummaryScale) ([]model.Summary, error) {
	var rows []summaryRow
	err := s.db.DB.Select(&rows,
		`SELECT id, user_id, project_path, scale, bucket_key, start_time, end_time,
		        outcome, input_hash, cost_provider, cost_model, cost_prompt_tokens,
		        cost_completion_tokens, cost_usd, created_at
		 FROM work_summaries
		 WHERE user_id = ? AND project_path = ? AND scale = ?
		 ORDER BY start_time ASC`,
		userID, projectPath, string(scale))
	if err != nil {
		return nil, fmt.Errorf("summary store: list %s: %w", scale, err)
	}
	out := make([]model.Summary, len(rows))
	for i, r := range rows {
		out[i] = summaryFromRow(r)
	}
	return out, nil
}

// ListDistinctProjects returns every project_path with at least one summary
// at scale for user, used by the compactor to discover roll-up candidates
// without scanning snapshots again.
func (s *SummaryStore) ListDistinctProjects(userID string, scale model.SummaryScale) ([]string, error) {
	var paths []string
	err := s.db.DB.Select(&paths,
		`SELECT DISTINCT project_path FROM work_summaries WHERE user_id = ? AND scale = ?`,
		userID, string(scale))
	if err != nil {
		return nil, fmt.Errorf("summary store: list distinct projects for %s: %w", scale, err)
	}
	return paths, nil
}

func summaryFromRow(r summaryRow) model.Summary {
	sum := model.Summary{
		ID:          r.ID,
		UserID:      r.UserID,
		ProjectPath: r.ProjectPath,
		Scale:       model.SummaryScale(r.Scale),
		BucketKey:   r.BucketKey,
		Outcome:     r.Outcome,
		InputHash:   uint64(r.InputHash),
	}
	if t, err := time.Parse(time.RFC3339, r.StartTime); err == nil {
		sum.StartTime = t
	}
	if t, err := time.Parse(time.RFC3339, r.EndTime); err == nil {
		sum.EndTime = t
	}
	if t, err := time.Parse(time.RFC3339, r.CreatedAt); err == nil {
		sum.CreatedAt = t
	}
	if r.CostProvider != "" || r.CostModel != "" {
		sum.Cost = &model.CostRecord{
			Provider:         r.CostProvider,
			Model:            r.CostModel,
			PromptTokens:     r.CostPromptTokens,
			CompletionTokens: r.CostCompletionTokens,
			USD:              r.CostUSD,
		}
	}
	return sum
}
