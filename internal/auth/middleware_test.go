package auth_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/brasmat/proposal-api/internal/auth"
	"github.com/brasmat/proposal-api/internal/config"
	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/brasmat/proposal-api/internal/session"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubSessions struct {
	state session.State
	err   error
}

func (s stubSessions) Status(ctx context.Context, sessionID string) (session.Snapshot, error) {
	return session.Snapshot{State: s.state}, s.err
}

func createTestMiddleware(sessions auth.SessionChecker) *auth.Middleware {
	return auth.NewMiddleware(&config.Config{Auth: *testAuthConfig()}, sessions, zap.NewNop())
}

func captureUser(called *bool, user **auth.UserContext) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		*user, _ = auth.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticate_WithAPIKey(t *testing.T) {
	var called bool
	var user *auth.UserContext
	handler := createTestMiddleware(nil).Authenticate(captureUser(&called, &user))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/proposals", nil)
	req.Header.Set("x-api-key", "test-api-key-12345")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, user)
	assert.Equal(t, domain.RoleAPIService, user.Role)
	assert.Nil(t, user.Actor())
}

func TestAuthenticate_WithInvalidAPIKey(t *testing.T) {
	var called bool
	var user *auth.UserContext
	handler := createTestMiddleware(nil).Authenticate(captureUser(&called, &user))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/proposals", nil)
	req.Header.Set("x-api-key", "wrong")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthenticate_WithBearerToken(t *testing.T) {
	var called bool
	var user *auth.UserContext
	handler := createTestMiddleware(nil).Authenticate(captureUser(&called, &user))

	userID := uuid.New()
	token := signHS256(t, validClaims(userID, domain.RoleExternalSeller), testSecret)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/proposals", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.True(t, called)
	assert.Equal(t, userID, user.UserID)
	assert.Equal(t, token, user.AccessToken)
}

func TestAuthenticate_MissingOrMalformedHeader(t *testing.T) {
	for _, header := range []string{"", "Basic abc", "Bearer"} {
		var called bool
		var user *auth.UserContext
		handler := createTestMiddleware(nil).Authenticate(captureUser(&called, &user))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/proposals", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.False(t, called, header)
		assert.Equal(t, http.StatusUnauthorized, w.Code, header)
	}
}

func withUser(r *http.Request, user *auth.UserContext) *http.Request {
	return r.WithContext(auth.WithUserContext(r.Context(), user))
}

func TestRequireActiveSession(t *testing.T) {
	user := &auth.UserContext{UserID: uuid.New(), Role: domain.RoleClient, SessionID: "sess-1"}

	tests := []struct {
		name     string
		sessions auth.SessionChecker
		want     int
	}{
		{name: "active", sessions: stubSessions{state: session.StateActive}, want: http.StatusOK},
		{name: "warning", sessions: stubSessions{state: session.StateWarning}, want: http.StatusOK},
		{name: "expired", sessions: stubSessions{state: session.StateExpired}, want: http.StatusUnauthorized},
		{name: "store down", sessions: stubSessions{err: errors.New("redis down")}, want: http.StatusServiceUnavailable},
		{name: "not enforced", sessions: nil, want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := createTestMiddleware(tt.sessions).RequireActiveSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, withUser(httptest.NewRequest(http.MethodGet, "/", nil), user))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	mw := createTestMiddleware(nil)
	handler := mw.RequireRole(domain.RoleAdmin, domain.RoleManager)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, withUser(httptest.NewRequest(http.MethodGet, "/", nil), &auth.UserContext{Role: domain.RoleManager}))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, withUser(httptest.NewRequest(http.MethodGet, "/", nil), &auth.UserContext{Role: domain.RoleInternalSeller}))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireAdminAndStaff(t *testing.T) {
	mw := createTestMiddleware(nil)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	w := httptest.NewRecorder()
	mw.RequireAdmin(ok).ServeHTTP(w, withUser(httptest.NewRequest(http.MethodGet, "/", nil), &auth.UserContext{Role: domain.RoleManager}))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	mw.RequireAdmin(ok).ServeHTTP(w, withUser(httptest.NewRequest(http.MethodGet, "/", nil), &auth.UserContext{Role: domain.RoleAdmin}))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	mw.RequireStaff(ok).ServeHTTP(w, withUser(httptest.NewRequest(http.MethodGet, "/", nil), &auth.UserContext{Role: domain.RoleClient}))
	assert.Equal(t, http.StatusForbidden, w.Code)
}
