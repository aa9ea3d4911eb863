package claude

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wilbur182/recap/internal/core/model"
)

type fakeTokenSource struct{ token string }

func (f fakeTokenSource) ManualToken(userID string) string { return f.token }

func TestResolveTokenPrefersManualToken(t *testing.T) {
	p := New("user-1", fakeTokenSource{token: "manual-token"})
	p.homeDir = func() (string, error) { return t.TempDir(), nil }

	tok, err := p.resolveToken()
	if err != nil {
		t.Fatalf("resolveToken: %v", err)
	}
	if tok != "manual-token" {
		t.Errorf("token = %q, want manual-token", tok)
	}
}

func TestResolveTokenFallsBackToCredentialsFile(t *testing.T) {
	home := t.TempDir()
	if err := os.MkdirAll(filepath.Join(home, ".claude"), 0755); err != nil {
		t.Fatal(err)
	}
	creds := fileCredentials{}
	creds.ClaudeAiOauth.AccessToken = "file-token"
	creds.ClaudeAiOauth.ExpiresAt = time.Now().Add(time.Hour).UnixMilli()
	data, _ := json.Marshal(creds)
	if err := os.WriteFile(filepath.Join(home, credentialsFilePath), data, 0600); err != nil {
		t.Fatal(err)
	}

	p := New("user-1", nil)
	p.homeDir = func() (string, error) { return home, nil }

	tok, err := p.resolveToken()
	if err != nil {
		t.Fatalf("resolveToken: %v", err)
	}
	if tok != "file-token" {
		t.Errorf("token = %q, want file-token", tok)
	}
}

func TestResolveTokenReportsAuthExpiredForStaleFileCredentials(t *testing.T) {
	home := t.TempDir()
	if err := os.MkdirAll(filepath.Join(home, ".claude"), 0755); err != nil {
		t.Fatal(err)
	}
	creds := fileCredentials{}
	creds.ClaudeAiOauth.AccessToken = "stale-token"
	creds.ClaudeAiOauth.ExpiresAt = time.Now().Add(-time.Hour).UnixMilli()
	data, _ := json.Marshal(creds)
	if err := os.WriteFile(filepath.Join(home, credentialsFilePath), data, 0600); err != nil {
		t.Fatal(err)
	}

	p := New("user-1", nil)
	p.homeDir = func() (string, error) { return home, nil }

	_, err := p.resolveToken()
	if err != model.ErrAuthExpired {
		t.Errorf("err = %v, want ErrAuthExpired", err)
	}
}

func TestIsAvailableFalseWithNoTokenAnywhere(t *testing.T) {
	p := New("user-1", nil)
	p.homeDir = func() (string, error) { return t.TempDir(), nil }

	if p.IsAvailable(context.Background()) {
		t.Error("expected IsAvailable() == false with no credentials")
	}
}

func TestFetchQuotaParsesWindows(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer manual-token" {
			t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		resp := usageResponse{
			Windows: []struct {
				Window      string  `json:"window"`
				UsedPercent float64 `json:"used_percent"`
				ResetAt     string  `json:"reset_at"`
			}{
				{Window: "5h", UsedPercent: 42.5, ResetAt: time.Now().Add(time.Hour).Format(time.RFC3339)},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	p := New("user-1", fakeTokenSource{token: "manual-token"})
	p.homeDir = func() (string, error) { return t.TempDir(), nil }

	origEndpoint := usageEndpointOverride
	usageEndpointOverride = server.URL
	defer func() { usageEndpointOverride = origEndpoint }()

	snapshots, err := p.FetchQuota(context.Background())
	if err != nil {
		t.Fatalf("FetchQuota: %v", err)
	}
	if len(snapshots) != 1 || snapshots[0].Window != model.Window5h {
		t.Errorf("snapshots = %+v", snapshots)
	}
	if snapshots[0].UsedPercent != 42.5 {
		t.Errorf("UsedPercent = %v", snapshots[0].UsedPercent)
	}
}

func TestFetchQuotaReturnsAuthExpiredOn401(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	p := New("user-1", fakeTokenSource{token: "manual-token"})
	p.homeDir = func() (string, error) { return t.TempDir(), nil }

	origEndpoint := usageEndpointOverride
	usageEndpointOverride = server.URL
	defer func() { usageEndpointOverride = origEndpoint }()

	_, err := p.FetchQuota(context.Background())
	if err != model.ErrAuthExpired {
		t.Errorf("err = %v, want ErrAuthExpired", err)
	}
}
