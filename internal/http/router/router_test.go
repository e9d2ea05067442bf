package router_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/brasmat/proposal-api/internal/auth"
	"github.com/brasmat/proposal-api/internal/config"
	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/brasmat/proposal-api/internal/http/handler"
	"github.com/brasmat/proposal-api/internal/http/middleware"
	"github.com/brasmat/proposal-api/internal/http/router"
	"github.com/brasmat/proposal-api/internal/repository"
	"github.com/brasmat/proposal-api/internal/service"
	"github.com/brasmat/proposal-api/internal/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const apiKey = "router-test-key"

func setupRouter(t *testing.T, redisClient *redis.Client) http.Handler {
	t.Helper()
	db := testutil.SetupTestDB(t)
	log := zap.NewNop()
	cfg := &config.Config{
		App:  config.AppConfig{Environment: "test"},
		Auth: config.AuthConfig{JWTSecret: "router-test-secret", APIKey: apiKey},
	}

	auditService := service.NewAuditLogService(repository.NewAuditLogRepository(db), log)
	rt := router.NewRouter(
		cfg,
		log,
		db,
		redisClient,
		auth.NewMiddleware(cfg, nil, log),
		middleware.NewRateLimiter(&cfg.RateLimit, log),
		middleware.NewAuditMiddleware(auditService, nil, log).Synchronous(),
		router.Handlers{Audit: handler.NewAuditHandler(auditService, log)},
	)
	return rt.WithERP(nil).Setup()
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	h := setupRouter(t, nil)

	w := serve(h, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}

func TestReady(t *testing.T) {
	t.Run("database only", func(t *testing.T) {
		w := serve(setupRouter(t, nil), httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var body domain.HealthResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "healthy", body.Status)
		assert.Equal(t, map[string]string{"database": "healthy"}, body.Checks)
	})

	t.Run("with redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })

		w := serve(setupRouter(t, client), httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var body domain.HealthResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "healthy", body.Checks["redis"])
	})

	t.Run("redis down", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
		t.Cleanup(func() { _ = client.Close() })
		mr.Close()

		w := serve(setupRouter(t, client), httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestAPIRequiresAuthentication(t *testing.T) {
	h := setupRouter(t, nil)

	w := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/audit", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/audit", nil)
	req.Header.Set("x-api-key", apiKey)
	w = serve(h, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body domain.PaginatedResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, int64(0), body.Total)
}

func TestSwaggerDisabled(t *testing.T) {
	w := serve(setupRouter(t, nil), httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
