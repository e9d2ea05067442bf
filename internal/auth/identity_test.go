package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brasmat/proposal-api/internal/auth"
	"github.com/brasmat/proposal-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identityClient(url string, timeoutSeconds int) *auth.IdentityClient {
	return auth.NewIdentityClient(&config.AuthConfig{
		IdentityProviderURL: url,
		IdentityProviderKey: "anon-key",
		LoginTimeout:        timeoutSeconds,
	})
}

func TestPasswordLogin_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/token", r.URL.Path)
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "joana@brasmat.com.br", body["email"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "access",
			"refresh_token": "refresh",
			"expires_in":    3600,
			"user": map[string]interface{}{
				"id":            "4b7c3a0e-0c1f-4f44-9a5b-2b2e3f7d8a10",
				"email":         "joana@brasmat.com.br",
				"user_metadata": map[string]interface{}{"name": "Joana Lima"},
				"app_metadata":  map[string]interface{}{"role": "gerente"},
			},
		})
	}))
	defer server.Close()

	resp, err := identityClient(server.URL, 5).PasswordLogin(context.Background(), "joana@brasmat.com.br", "S3nha!forte")
	require.NoError(t, err)
	assert.Equal(t, "access", resp.AccessToken)
	assert.Equal(t, "gerente", resp.User.Role())
	assert.Equal(t, "Joana Lima", resp.User.Name())
}

func TestPasswordLogin_InvalidCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))
	}))
	defer server.Close()

	_, err := identityClient(server.URL, 5).PasswordLogin(context.Background(), "a@b.com", "wrong")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestPasswordLogin_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := identityClient(server.URL, 5).PasswordLogin(context.Background(), "a@b.com", "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, auth.ErrInvalidCredentials)
	assert.NotErrorIs(t, err, auth.ErrLoginTimeout)
}

func TestPasswordLogin_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := identityClient(server.URL, 5).PasswordLogin(ctx, "a@b.com", "x")
	assert.ErrorIs(t, err, auth.ErrLoginTimeout)
}
