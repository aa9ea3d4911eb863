// Package quota tracks LLM provider quota usage: a pluggable provider trait
// (spec §4.7), a poller that persists snapshots and raises deduplicated
// threshold alerts, and the "claude" provider's 3-tier OAuth token lookup.
package quota

import (
	"context"

	"github.com/wilbur182/recap/internal/core/model"
)

// AccountInfo is a provider's account identity, surfaced alongside quota
// snapshots for the tray/status UI.
type AccountInfo struct {
	Provider    string
	AccountID   string
	DisplayName string
	PlanName    string
}

// Provider is one quota backend (spec §4.7: "claude", anticipated
// "antigravity").
type Provider interface {
	// Name is the stable provider identifier, stored on QuotaSnapshot rows.
	Name() string

	// IsAvailable reports whether credentials can currently be resolved; the
	// poller skips a provider for which it returns false. A model.ErrAuthExpired
	// from an earlier FetchQuota does not by itself make it return false.
	IsAvailable(ctx context.Context) bool

	// FetchQuota returns the current usage snapshot for every tracked
	// window. Returns model.ErrAuthExpired when the stored token has
	// expired and token refresh is not supported.
	FetchQuota(ctx context.Context) ([]model.QuotaSnapshot, error)

	// GetAccountInfo returns the identity of the authenticated account.
	GetAccountInfo(ctx context.Context) (AccountInfo, error)
}

const (
	// WarningThresholdPercent and CriticalThresholdPercent are the
	// percent-used levels the poller alerts on (spec §4.7).
	WarningThresholdPercent  = 80.0
	CriticalThresholdPercent = 95.0
)
