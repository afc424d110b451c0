// Package auth loads Claude Code OAuth credentials and keeps the access
// token fresh for the duration of a run.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/santaclaude2025/insights/pkg/logger"
)

const (
	// TokenURL is the OAuth token refresh endpoint.
	TokenURL = "https://platform.claude.com/v1/oauth/token"
	// ClientID identifies Claude Code to the token endpoint.
	ClientID = "9d1c250a-e61b-44d9-88ed-5944d1962f5e"
	// Scopes requested on refresh.
	Scopes = "user:profile user:inference user:sessions:claude_code user:mcp_servers"

	// expiryBufferMs refreshes slightly before the recorded expiry.
	expiryBufferMs = 60_000
)

// OAuthCredentials is the claudeAiOauth block of ~/.claude/.credentials.json.
type OAuthCredentials struct {
	AccessToken      string `json:"accessToken"`
	RefreshToken     string `json:"refreshToken"`
	ExpiresAt        int64  `json:"expiresAt"` // unix milliseconds
	SubscriptionType string `json:"subscriptionType,omitempty"`
}

// Manager reads credentials once and refreshes the token on demand.
// Safe for use by concurrent workers.
type Manager struct {
	path       string
	tokenURL   string
	httpClient *http.Client

	mu    sync.Mutex
	creds OAuthCredentials
}

// NewManager loads credentials from the given file. A missing or
// unreadable credential store is a fatal setup error.
func NewManager(path string) (*Manager, error) {
	m := &Manager{
		path:       path,
		tokenURL:   TokenURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	if m.creds.AccessToken == "" {
		return nil, fmt.Errorf("no access token in %s (run `claude` and sign in first)", path)
	}
	return m, nil
}

// SubscriptionType reports the subscription recorded in the credential store.
func (m *Manager) SubscriptionType() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creds.SubscriptionType
}

// Token returns a currently-valid bearer token, refreshing it first when
// it is within a minute of expiry.
func (m *Manager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.expired() {
		logger.Info("access token expired, refreshing")
		if err := m.refresh(ctx); err != nil {
			return "", fmt.Errorf("failed to refresh token: %w", err)
		}
	}
	return m.creds.AccessToken, nil
}

func (m *Manager) expired() bool {
	return time.Now().UnixMilli() > m.creds.ExpiresAt-expiryBufferMs
}

func (m *Manager) load() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return fmt.Errorf("failed to read credentials: %w", err)
	}
	var file struct {
		ClaudeAiOauth OAuthCredentials `json:"claudeAiOauth"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse credentials: %w", err)
	}
	m.creds = file.ClaudeAiOauth
	return nil
}

type refreshRequest struct {
	GrantType    string `json:"grant_type"`
	RefreshToken string `json:"refresh_token"`
	ClientID     string `json:"client_id"`
	Scope        string `json:"scope"`
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"` // seconds
}

// refresh exchanges the refresh token for a new access token and persists
// the updated credentials. Caller holds m.mu.
func (m *Manager) refresh(ctx context.Context) error {
	body, err := json.Marshal(refreshRequest{
		GrantType:    "refresh_token",
		RefreshToken: m.creds.RefreshToken,
		ClientID:     ClientID,
		Scope:        Scopes,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", m.tokenURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var rr refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return fmt.Errorf("failed to parse refresh response: %w", err)
	}

	m.creds.AccessToken = rr.AccessToken
	if rr.RefreshToken != "" {
		m.creds.RefreshToken = rr.RefreshToken
	}
	m.creds.ExpiresAt = time.Now().UnixMilli() + rr.ExpiresIn*1000

	if err := m.save(); err != nil {
		// A failed save is not fatal: the in-memory token is still valid
		// for this run.
		logger.Warn("failed to persist refreshed credentials", "error", err)
	} else {
		logger.Info("token refreshed", "expires_in_min", rr.ExpiresIn/60)
	}
	return nil
}

// save rewrites the credentials file, preserving any top-level keys other
// than claudeAiOauth, using a temp file + rename with 0600 permissions.
func (m *Manager) save() error {
	all := map[string]json.RawMessage{}
	if data, err := os.ReadFile(m.path); err == nil {
		// Best effort; a corrupt file is replaced wholesale.
		_ = json.Unmarshal(data, &all)
	}

	oauthJSON, err := json.Marshal(m.creds)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	all["claudeAiOauth"] = oauthJSON

	data, err := json.Marshal(all)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials file: %w", err)
	}

	dir := filepath.Dir(m.path)
	tmp, err := os.CreateTemp(dir, ".credentials-*.json.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, m.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace credentials file: %w", err)
	}
	return nil
}

// SetTokenURLForTest points the manager's refresh calls at a test server.
// Returns a cleanup function restoring the previous endpoint.
func (m *Manager) SetTokenURLForTest(url string) {
	m.httpClient = &http.Client{Timeout: 5 * time.Second}
	m.tokenURL = url
}
