package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/brasmat/proposal-api/internal/auth"
	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newUser(role domain.UserRoleType, name string) *auth.UserContext {
	return &auth.UserContext{
		UserID:      uuid.New(),
		DisplayName: name,
		Email:       "user-" + uuid.NewString()[:8] + "@brasmat.com.br",
		Role:        role,
	}
}

// newRequest builds a request as seen by a handler behind Authenticate. Params are chi URL
// parameters given as key, value pairs.
func newRequest(t *testing.T, method, target string, body interface{}, user *auth.UserContext, params ...string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	ctx := req.Context()
	if user != nil {
		ctx = auth.WithUserContext(ctx, user)
	}
	if len(params) > 0 {
		rctx := chi.NewRouteContext()
		for i := 0; i+1 < len(params); i += 2 {
			rctx.URLParams.Add(params[i], params[i+1])
		}
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	return req.WithContext(ctx)
}

func do(h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v), w.Body.String())
	return v
}

// page mirrors domain.PaginatedResponse with a typed data field
type page[T any] struct {
	Data  []T   `json:"data"`
	Total int64 `json:"total"`
}
