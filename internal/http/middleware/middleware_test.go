package middleware_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/brasmat/proposal-api/internal/auth"
	"github.com/brasmat/proposal-api/internal/config"
	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/brasmat/proposal-api/internal/http/middleware"
	"github.com/brasmat/proposal-api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestSecurityHeaders(t *testing.T) {
	cfg := &config.SecurityConfig{
		ContentTypeNosniff:    true,
		FrameOptions:          "DENY",
		ContentSecurityPolicy: "default-src 'self'",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		PermissionsPolicy:     "geolocation=()",
	}

	w := serve(middleware.SecurityHeaders(cfg)(ok), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "default-src 'self'", w.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
	assert.Equal(t, "geolocation=()", w.Header().Get("Permissions-Policy"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))

	cfg.EnableHSTS = true
	cfg.HSTSMaxAge = 31536000
	cfg.HSTSIncludeSubdomains = true
	w = serve(middleware.SecurityHeaders(cfg)(ok), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "max-age=31536000; includeSubDomains", w.Header().Get("Strict-Transport-Security"))
}

func TestCORS(t *testing.T) {
	cfg := &config.CORSConfig{
		AllowedOrigins: []string{"https://portal.example.com"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}
	h := middleware.CORS(cfg, "production", zap.NewNop())(ok)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/proposals", nil)
	req.Header.Set("Origin", "https://portal.example.com")
	assert.Equal(t, "https://portal.example.com", serve(h, req).Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/proposals", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	assert.Empty(t, serve(h, req).Header().Get("Access-Control-Allow-Origin"))

	closed := middleware.CORS(&config.CORSConfig{}, "production", zap.NewNop())(ok)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://portal.example.com")
	assert.Empty(t, serve(closed, req).Header().Get("Access-Control-Allow-Origin"))
}

func TestLogging_RequestID(t *testing.T) {
	var seen string
	h := middleware.Logging(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get(middleware.RequestIDHeader)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-123")
	w := serve(h, req)
	assert.Equal(t, "req-123", seen)
	assert.Equal(t, "req-123", w.Header().Get(middleware.RequestIDHeader))

	w = serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	_, err := uuid.Parse(w.Header().Get(middleware.RequestIDHeader))
	assert.NoError(t, err)
	assert.Equal(t, seen, w.Header().Get(middleware.RequestIDHeader))
}

func TestRecovery(t *testing.T) {
	h := middleware.Recovery(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body domain.APIError
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, domain.ErrorTypeInternal, body.Type)
	assert.NotContains(t, body.Detail, "boom")
}

func TestRateLimiter(t *testing.T) {
	cfg := &config.RateLimitConfig{
		Enabled:               true,
		RequestsPerMinute:     2,
		RequestsPerMinuteAuth: 3,
		LoginPerMinute:        1,
		WhitelistPaths:        []string{"/health", "/swagger/*"},
	}

	t.Run("per ip", func(t *testing.T) {
		h := middleware.NewRateLimiter(cfg, zap.NewNop()).LimitByIP(ok)
		for i := 0; i < 2; i++ {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/x", nil)
			req.RemoteAddr = "192.0.2.1:1000"
			assert.Equal(t, http.StatusOK, serve(h, req).Code)
		}
		req := httptest.NewRequest(http.MethodGet, "/api/v1/x", nil)
		req.RemoteAddr = "192.0.2.1:1000"
		w := serve(h, req)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "60", w.Header().Get("Retry-After"))

		req = httptest.NewRequest(http.MethodGet, "/api/v1/x", nil)
		req.RemoteAddr = "192.0.2.2:1000"
		assert.Equal(t, http.StatusOK, serve(h, req).Code)
	})

	t.Run("whitelisted paths", func(t *testing.T) {
		h := middleware.NewRateLimiter(cfg, zap.NewNop()).LimitByIP(ok)
		for i := 0; i < 10; i++ {
			req := httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil)
			assert.Equal(t, http.StatusOK, serve(h, req).Code)
		}
	})

	t.Run("authenticated callers are keyed by user", func(t *testing.T) {
		h := middleware.NewRateLimiter(cfg, zap.NewNop()).Limit(ok)
		user := &auth.UserContext{UserID: uuid.New(), Role: domain.RoleInternalSeller}
		for i := 0; i < 3; i++ {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/x", nil)
			req.RemoteAddr = "192.0.2.9:1000"
			req = req.WithContext(auth.WithUserContext(req.Context(), user))
			assert.Equal(t, http.StatusOK, serve(h, req).Code)
		}
		req := httptest.NewRequest(http.MethodGet, "/api/v1/x", nil)
		req = req.WithContext(auth.WithUserContext(req.Context(), user))
		assert.Equal(t, http.StatusTooManyRequests, serve(h, req).Code)
	})

	t.Run("login", func(t *testing.T) {
		h := middleware.NewRateLimiter(cfg, zap.NewNop()).LimitLogin(ok)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.5")
		assert.Equal(t, http.StatusOK, serve(h, req).Code)
		req = httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.5")
		assert.Equal(t, http.StatusTooManyRequests, serve(h, req).Code)
	})

	t.Run("disabled", func(t *testing.T) {
		h := middleware.NewRateLimiter(&config.RateLimitConfig{RequestsPerMinute: 1}, zap.NewNop()).LimitByIP(ok)
		for i := 0; i < 5; i++ {
			assert.Equal(t, http.StatusOK, serve(h, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
		}
	})
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []service.LogEntry
}

func (a *recordingAudit) Log(ctx context.Context, r *http.Request, entry service.LogEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	return nil
}

func TestAudit(t *testing.T) {
	rec := &recordingAudit{}
	audit := middleware.NewAuditMiddleware(rec, nil, zap.NewNop()).Synchronous()

	r := chi.NewRouter()
	r.Use(audit.Audit)
	r.Post("/api/v1/proposals", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	r.Post("/api/v1/proposals/{id}/accept", ok)
	r.Patch("/api/v1/discount-rules/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})
	r.Get("/api/v1/proposals/{id}", ok)
	r.Post("/api/v1/auth/session/activity", ok)

	body := `{"clientId":"c1","password":"secret","items":[]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/proposals", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	serve(r, req)

	id := uuid.New()
	serve(r, httptest.NewRequest(http.MethodPost, "/api/v1/proposals/"+id.String()+"/accept", nil))
	serve(r, httptest.NewRequest(http.MethodPatch, "/api/v1/discount-rules/"+uuid.NewString(), nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/proposals/"+id.String(), nil))
	serve(r, httptest.NewRequest(http.MethodPost, "/api/v1/auth/session/activity", nil))

	require.Len(t, rec.entries, 2)

	created := rec.entries[0]
	assert.Equal(t, domain.AuditActionCreate, created.Action)
	assert.Equal(t, "proposal", created.EntityType)
	assert.Nil(t, created.EntityID)
	values, isMap := created.NewValues.(map[string]interface{})
	require.True(t, isMap)
	assert.Equal(t, "c1", values["clientId"])
	assert.NotContains(t, values, "password")

	accepted := rec.entries[1]
	assert.Equal(t, domain.AuditActionUpdate, accepted.Action)
	require.NotNil(t, accepted.EntityID)
	assert.Equal(t, id, *accepted.EntityID)
}

func TestAudit_BodyStillReadable(t *testing.T) {
	audit := middleware.NewAuditMiddleware(&recordingAudit{}, nil, zap.NewNop()).Synchronous()

	var got map[string]string
	h := audit.Audit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	serve(h, httptest.NewRequest(http.MethodPost, "/api/v1/clients", strings.NewReader(`{"name":"Horizonte"}`)))

	assert.Equal(t, "Horizonte", got["name"])
}
