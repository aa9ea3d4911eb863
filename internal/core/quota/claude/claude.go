// Package claude implements quota.Provider against Anthropic's usage API,
// using Claude Code's own OAuth credentials: a manually stored token, the
// OS credential store, or a fallback credentials file, checked in that
// priority order (spec §4.7).
package claude

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/zalando/go-keyring"

	"github.com/wilbur182/recap/internal/core/model"
	"github.com/wilbur182/recap/internal/core/quota"
)

// keyringService is the OS credential store service name Claude Code's own
// CLI registers its OAuth token under.
const keyringService = "Claude Code-credentials"

// credentialsFilePath is the fallback credentials file, relative to the
// user's home directory, read by the last lookup tier.
const credentialsFilePath = ".claude/.credentials.json"

// usageEndpoint is Anthropic's usage reporting endpoint.
const usageEndpoint = "https://api.anthropic.com/api/usage"

// usageEndpointOverride lets tests point FetchQuota at an httptest server
// instead of the real Anthropic API.
var usageEndpointOverride string

func effectiveUsageEndpoint() string {
	if usageEndpointOverride != "" {
		return usageEndpointOverride
	}
	return usageEndpoint
}

// TokenSource abstracts the 3-tier OAuth lookup so it can be swapped for a
// fake in tests.
type TokenSource interface {
	// ManualToken returns a token manually stored for userID, or "" if none.
	ManualToken(userID string) string
}

// fileCredentials mirrors the relevant fields of
// ~/.claude/.credentials.json.
type fileCredentials struct {
	ClaudeAiOauth struct {
		AccessToken string `json:"accessToken"`
		ExpiresAt   int64  `json:"expiresAt"` // unix millis
	} `json:"claudeAiOauth"`
}

// Provider implements quota.Provider for Claude Code.
type Provider struct {
	UserID     string
	Tokens     TokenSource
	HTTPClient *http.Client
	homeDir    func() (string, error)
}

// New builds a Provider for userID. tokens may be nil, in which case the
// manual-token tier is always empty and lookup falls through to the OS
// credential store and file fallback.
func New(userID string, tokens TokenSource) *Provider {
	return &Provider{
		UserID:     userID,
		Tokens:     tokens,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		homeDir:    os.UserHomeDir,
	}
}

// Name implements quota.Provider.
func (p *Provider) Name() string { return "claude" }

// IsAvailable implements quota.Provider: true when a token can be resolved
// by any tier.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	_, err := p.resolveToken()
	return err == nil
}

// accountResponse is the shape of Anthropic's account info endpoint this
// provider consumes.
type accountResponse struct {
	AccountID   string `json:"account_id"`
	DisplayName string `json:"display_name"`
	PlanName    string `json:"plan_name"`
}

// GetAccountInfo implements quota.Provider.
func (p *Provider) GetAccountInfo(ctx context.Context) (quota.AccountInfo, error) {
	token, err := p.resolveToken()
	if err != nil {
		return quota.AccountInfo{}, err
	}
	var resp accountResponse
	if err := p.getJSON(ctx, token, "https://api.anthropic.com/api/account", &resp); err != nil {
		return quota.AccountInfo{}, err
	}
	return quota.AccountInfo{
		Provider:    p.Name(),
		AccountID:   resp.AccountID,
		DisplayName: resp.DisplayName,
		PlanName:    resp.PlanName,
	}, nil
}

// usageResponse is the shape of Anthropic's usage API response this
// provider consumes, narrowed to the fields QuotaSnapshot needs.
type usageResponse struct {
	Windows []struct {
		Window      string  `json:"window"`
		UsedPercent float64 `json:"used_percent"`
		ResetAt     string  `json:"reset_at"`
	} `json:"windows"`
	ExtraCredits *float64 `json:"extra_credits_usd"`
}

// FetchQuota implements quota.Provider.
func (p *Provider) FetchQuota(ctx context.Context) ([]model.QuotaSnapshot, error) {
	token, err := p.resolveToken()
	if err != nil {
		return nil, err
	}

	var resp usageResponse
	if err := p.getJSON(ctx, token, effectiveUsageEndpoint(), &resp); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	snapshots := make([]model.QuotaSnapshot, 0, len(resp.Windows))
	for _, w := range resp.Windows {
		resetAt, err := time.Parse(time.RFC3339, w.ResetAt)
		if err != nil {
			resetAt = now
		}
		snapshots = append(snapshots, model.QuotaSnapshot{
			ID:           uuid.NewString(),
			Provider:     p.Name(),
			Window:       model.QuotaWindow(w.Window),
			UsedPercent:  w.UsedPercent,
			ResetAt:      resetAt,
			CapturedAt:   now,
			ExtraCredits: resp.ExtraCredits,
		})
	}
	return snapshots, nil
}

func (p *Provider) getJSON(ctx context.Context, token, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("claude quota: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return model.ErrAuthExpired
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("claude quota: unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// resolveToken walks the 3-tier lookup in priority order. Token refresh is
// not supported: a credentials-file token whose expiresAt has passed yields
// model.ErrAuthExpired here, while a manual or OS-store token is returned
// as-is and only surfaces as model.ErrAuthExpired when a request gets a 401.
func (p *Provider) resolveToken() (string, error) {
	if p.Tokens != nil {
		if tok := p.Tokens.ManualToken(p.UserID); tok != "" {
			return tok, nil
		}
	}
	if tok, err := keyring.Get(keyringService, p.UserID); err == nil && tok != "" {
		return tok, nil
	}
	tok, err := p.readCredentialsFile()
	if err != nil {
		return "", err
	}
	return tok, nil
}

func (p *Provider) readCredentialsFile() (string, error) {
	home, err := p.homeDir()
	if err != nil {
		return "", fmt.Errorf("claude quota: resolve home dir: %w", err)
	}
	path := filepath.Join(home, credentialsFilePath)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.New("claude quota: no token available in any tier")
	}
	var creds fileCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return "", fmt.Errorf("claude quota: parse %s: %w", path, err)
	}
	if creds.ClaudeAiOauth.AccessToken == "" {
		return "", errors.New("claude quota: credentials file has no access token")
	}
	if creds.ClaudeAiOauth.ExpiresAt != 0 {
		expiry := time.UnixMilli(creds.ClaudeAiOauth.ExpiresAt)
		if time.Now().After(expiry) {
			return "", model.ErrAuthExpired
		}
	}
	return creds.ClaudeAiOauth.AccessToken, nil
}

var _ quota.Provider = (*Provider)(nil)
