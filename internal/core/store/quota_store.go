package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/wilbur182/recap/internal/core/model"
)

// QuotaStore is the append-only quota-observation log. Retention policy is
// left to the operator; no automatic pruning runs here.
type QuotaStore struct {
	db *Store
}

func NewQuotaStore(db *Store) *QuotaStore { return &QuotaStore{db: db} }

type quotaRow struct {
	ID           string          `db:"id"`
	Provider     string          `db:"provider"`
	Window       string          `db:"window"`
	UsedPercent  float64         `db:"used_percent"`
	ResetAt      string          `db:"reset_at"`
	CapturedAt   string          `db:"captured_at"`
	ExtraCredits sql.NullFloat64 `db:"extra_credits"`
}

// Append persists one observed quota window.
func (s *QuotaStore) Append(snap model.QuotaSnapshot) error {
	if snap.CapturedAt.IsZero() {
		snap.CapturedAt = time.Now().UTC()
	}
	var extra sql.NullFloat64
	if snap.ExtraCredits != nil {
		extra = sql.NullFloat64{Float64: *snap.ExtraCredits, Valid: true}
	}
	_, err := s.db.DB.Exec(`
		INSERT INTO quota_snapshots (id, provider, window, used_percent, reset_at, captured_at, extra_credits)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.Provider, string(snap.Window), snap.UsedPercent,
		snap.ResetAt.UTC().Format(time.RFC3339), snap.CapturedAt.UTC().Format(time.RFC3339), extra,
	)
	if err != nil {
		return fmt.Errorf("quota store: append: %w", err)
	}
	return nil
}

// Latest returns the most recently captured snapshot for (provider, window),
// or model.ErrNotFound if none has been observed yet.
func (s *QuotaStore) Latest(provider string, window model.QuotaWindow) (model.QuotaSnapshot, error) {
	var row quotaRow
	err := s.db.DB.Get(&row,
		`SELECT * FROM quota_snapshots WHERE provider = ? AND window = ?
		 ORDER BY captured_at DESC LIMIT 1`,
		provider, string(window))
	if errors.Is(err, sql.ErrNoRows) {
		return model.QuotaSnapshot{}, model.ErrNotFound
	}
	if err != nil {
		return model.QuotaSnapshot{}, fmt.Errorf("quota store: latest %s/%s: %w", provider, window, err)
	}
	return quotaFromRow(row), nil
}

func quotaFromRow(r quotaRow) model.QuotaSnapshot {
	snap := model.QuotaSnapshot{
		ID:          r.ID,
		Provider:    r.Provider,
		Window:      model.QuotaWindow(r.Window),
		UsedPercent: r.UsedPercent,
	}
	if t, err := time.Parse(time.RFC3339, r.ResetAt); err == nil {
		snap.ResetAt = t
	}
	if t, err := time.Parse(time.RFC3339, r.CapturedAt); err == nil {
		snap.CapturedAt = t
	}
	if r.ExtraCredits.Valid {
		v := r.ExtraCredits.Float64
		snap.ExtraCredits = &v
	}
	return snap
}
