package store

import (
	"fmt"
	"time"

	"github.com/wilbur182/recap/internal/core/model"
)

// UsageStore is the append-only LLM call log.
type UsageStore struct {
	db *Store
}

func NewUsageStore(db *Store) *UsageStore { return &UsageStore{db: db} }

// Append writes one row, success or error. The summarizer reports usage here
// before returning.
func (s *UsageStore) Append(entry model.LLMUsageLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.DB.Exec(`
		INSERT INTO llm_usage_log
			(id, user_id, provider, model, prompt_tokens, completion_tokens, total_tokens,
			 estimated_cost_usd, purpose, duration_ms, status, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.UserID, entry.Provider, entry.Model,
		entry.PromptTokens, entry.CompletionTokens, entry.TotalTokens,
		entry.EstimatedCostUSD, entry.Purpose, entry.DurationMS,
		entry.Status, entry.ErrorMessage, entry.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("usage store: append: %w", err)
	}
	return nil
}

// TotalCostSince sums estimated_cost_usd for user since the given time, used
// for budget reporting.
func (s *UsageStore) TotalCostSince(userID string, since time.Time) (float64, error) {
	var total float64
	err := s.db.DB.Get(&total,
		`SELECT COALESCE(SUM(estimated_cost_usd), 0) FROM llm_usage_log
		 WHERE user_id = ? AND created_at >= ?`,
		userID, since.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("usage store: total cost since: %w", err)
	}
	return total, nil
}
