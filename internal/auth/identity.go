package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/brasmat/proposal-api/internal/config"
)

var (
	// ErrInvalidCredentials is returned when the identity provider rejects the password
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrLoginTimeout is returned when the identity provider does not answer in time
	ErrLoginTimeout = errors.New("login timed out")
)

// IdentityClient signs users in against the identity provider's password grant
type IdentityClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	timeout    time.Duration
}

// IdentityUser is the user returned together with a token
type IdentityUser struct {
	ID           string                 `json:"id"`
	Email        string                 `json:"email"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
	AppMetadata  map[string]interface{} `json:"app_metadata"`
}

// Role returns the application role stored on the user
func (u IdentityUser) Role() string {
	if role, ok := u.AppMetadata["role"].(string); ok {
		return role
	}
	return ""
}

// Name returns the display name, falling back to the email
func (u IdentityUser) Name() string {
	if name, ok := u.UserMetadata["name"].(string); ok && name != "" {
		return name
	}
	return u.Email
}

// TokenResponse represents the password grant response
type TokenResponse struct {
	AccessToken  string       `json:"access_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int          `json:"expires_in"`
	RefreshToken string       `json:"refresh_token"`
	User         IdentityUser `json:"user"`
}

// NewIdentityClient creates a new identity provider client
func NewIdentityClient(cfg *config.AuthConfig) *IdentityClient {
	timeout := cfg.LoginTimeoutDuration()
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &IdentityClient{
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(cfg.IdentityProviderURL, "/"),
		apiKey:     cfg.IdentityProviderKey,
		timeout:    timeout,
	}
}

// PasswordLogin exchanges email and password for a token. The whole exchange is bounded by
// the configured login timeout; hitting it yields ErrLoginTimeout.
func (c *IdentityClient) PasswordLogin(ctx context.Context, email, password string) (*TokenResponse, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("identity provider URL not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, fmt.Errorf("failed to encode login request: %w", err)
	}

	tokenURL := c.baseURL + "/token?grant_type=password"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrLoginTimeout
		}
		return nil, fmt.Errorf("failed to call token endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrInvalidCredentials
	}
	if resp.StatusCode != http.StatusOK {
		var errorResp struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errorResp); err == nil && errorResp.ErrorDescription != "" {
			return nil, fmt.Errorf("login failed (%d): %s - %s", resp.StatusCode, errorResp.Error, errorResp.ErrorDescription)
		}
		return nil, fmt.Errorf("login failed with status %d", resp.StatusCode)
	}

	var tokenResp TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrLoginTimeout
		}
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("token response without access token")
	}

	return &tokenResp, nil
}
