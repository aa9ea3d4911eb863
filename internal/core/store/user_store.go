package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wilbur182/recap/internal/core/model"
)

// UserStore persists the single local identity a process instance tracks.
type UserStore struct {
	db *Store
}

func NewUserStore(db *Store) *UserStore { return &UserStore{db: db} }

type userRow struct {
	ID                string  `db:"id"`
	Username          string  `db:"username"`
	Email             string  `db:"email"`
	DisplayName       string  `db:"display_name"`
	LLMProvider       string  `db:"llm_provider"`
	LLMModel          string  `db:"llm_model"`
	LLMAPIKey         string  `db:"llm_api_key"`
	LLMBaseURL        string  `db:"llm_base_url"`
	ManualAccessToken string  `db:"manual_access_token"`
	DailyWorkHours    float64 `db:"daily_work_hours"`
	NormalizeHours    bool    `db:"normalize_hours"`
	CreatedAt         string  `db:"created_at"`
	UpdatedAt         string  `db:"updated_at"`
}

// GetOrCreateByUsername looks up a user by username, creating it with
// default attributes on first run. Users are never deleted while any owned
// row exists.
func (s *UserStore) GetOrCreateByUsername(username string) (model.User, error) {
	var row userRow
	err := s.db.DB.Get(&row, `SELECT * FROM users WHERE username = ?`, username)
	if err == nil {
		return userFromRow(row), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return model.User{}, fmt.Errorf("user store: lookup %s: %w", username, err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	u := model.User{
		ID:             uuid.NewString(),
		Username:       username,
		DailyWorkHours: 8.0,
		NormalizeHours: true,
	}
	_, err = s.db.DB.Exec(
		`INSERT INTO users (id, username, daily_work_hours, normalize_hours, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.DailyWorkHours, u.NormalizeHours, now, now)
	if err != nil {
		return model.User{}, fmt.Errorf("user store: create %s: %w", username, err)
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, now)
	u.UpdatedAt = u.CreatedAt
	return u, nil
}

// Get returns the user by id.
func (s *UserStore) Get(id string) (model.User, error) {
	var row userRow
	err := s.db.DB.Get(&row, `SELECT * FROM users WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, model.ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("user store: get %s: %w", id, err)
	}
	return userFromRow(row), nil
}

// SetManualAccessToken stores a manually provided OAuth token, the
// highest-priority source the quota provider's token lookup consults.
func (s *UserStore) SetManualAccessToken(userID, token string) error {
	_, err := s.db.DB.Exec(
		`UPDATE users SET manual_access_token = ?, updated_at = ? WHERE id = ?`,
		token, time.Now().UTC().Format(time.RFC3339), userID)
	if err != nil {
		return fmt.Errorf("user store: set manual access token: %w", err)
	}
	return nil
}

func userFromRow(r userRow) model.User {
	u := model.User{
		ID:                r.ID,
		Username:          r.Username,
		Email:             r.Email,
		DisplayName:       r.DisplayName,
		LLMProvider:       r.LLMProvider,
		LLMModel:          r.LLMModel,
		LLMAPIKey:         r.LLMAPIKey,
		LLMBaseURL:        r.LLMBaseURL,
		ManualAccessToken: r.ManualAccessToken,
		DailyWorkHours:    r.DailyWorkHours,
		NormalizeHours:    r.NormalizeHours,
	}
	if t, err := time.Parse(time.RFC3339, r.CreatedAt); err == nil {
		u.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, r.UpdatedAt); err == nil {
		u.UpdatedAt = t
	}
	return u
}
