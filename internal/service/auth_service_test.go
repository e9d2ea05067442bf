package service_test

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brasmat/proposal-api/internal/auth"
	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/brasmat/proposal-api/internal/repository"
	"github.com/brasmat/proposal-api/internal/service"
	"github.com/brasmat/proposal-api/internal/session"
	"github.com/brasmat/proposal-api/internal/testutil"
	"github.com/brasmat/proposal-api/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeIdentity struct {
	err error
}

func (f *fakeIdentity) PasswordLogin(_ context.Context, email, _ string) (*auth.TokenResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &auth.TokenResponse{AccessToken: "token-for-" + email, RefreshToken: "refresh", ExpiresIn: 3600}, nil
}

type fakeTokens struct {
	user *auth.UserContext
	err  error
}

func (f *fakeTokens) ValidateToken(string) (*auth.UserContext, error) {
	return f.user, f.err
}

type fakeSessions struct {
	started map[string]string
	ended   []string
	missing bool
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{started: map[string]string{}}
}

func (f *fakeSessions) snapshot(sessionID string) (session.Snapshot, error) {
	if _, ok := f.started[sessionID]; !ok || f.missing {
		return session.Snapshot{}, session.ErrSessionNotFound
	}
	return session.Snapshot{State: session.StateActive, Remaining: 30 * time.Minute}, nil
}

func (f *fakeSessions) Start(_ context.Context, sessionID, userID, _ string) (session.Snapshot, error) {
	f.started[sessionID] = userID
	return session.Snapshot{State: session.StateActive, Remaining: 30 * time.Minute}, nil
}

func (f *fakeSessions) Activity(_ context.Context, sessionID string, _ session.ActivityKind) (session.Snapshot, error) {
	return f.snapshot(sessionID)
}

func (f *fakeSessions) Extend(_ context.Context, sessionID string) (session.Snapshot, error) {
	return f.snapshot(sessionID)
}

func (f *fakeSessions) Status(_ context.Context, sessionID string) (session.Snapshot, error) {
	snap, err := f.snapshot(sessionID)
	if err == nil {
		snap = session.Snapshot{State: session.StateWarning, Remaining: 4 * time.Minute, ShowWarning: true}
	}
	return snap, err
}

func (f *fakeSessions) End(_ context.Context, sessionID string) error {
	delete(f.started, sessionID)
	f.ended = append(f.ended, sessionID)
	return nil
}

func TestAuthService_Login(t *testing.T) {
	db := testutil.SetupTestDB(t)
	audit := service.NewAuditLogService(repository.NewAuditLogRepository(db), zap.NewNop())
	user := newUser(domain.RoleInternalSeller, "Carla Vendas")
	user.SessionID = "sess-123"

	t.Run("signs in and starts the countdown", func(t *testing.T) {
		sessions := newFakeSessions()
		svc := service.NewAuthService(&fakeIdentity{}, &fakeTokens{user: user}, sessions, audit, zap.NewNop())

		r := httptest.NewRequest("POST", "/api/v1/auth/login", nil)
		resp, err := svc.Login(context.Background(), r, &domain.LoginRequest{Email: "Carla@Brasmat.com.br", Password: "segredo"})
		require.NoError(t, err)
		assert.Equal(t, "token-for-carla@brasmat.com.br", resp.AccessToken)
		assert.Equal(t, user.UserID.String(), resp.User.ID)
		assert.Equal(t, domain.RoleInternalSeller, resp.User.Role)
		assert.Equal(t, "active", resp.Session.State)
		assert.Equal(t, int64(1800), resp.Session.RemainingSeconds)
		assert.Equal(t, user.UserID.String(), sessions.started["sess-123"])

		var logs []domain.AuditLog
		require.NoError(t, db.Where("action = ?", domain.AuditActionLogin).Find(&logs).Error)
		require.Len(t, logs, 1)
		assert.Equal(t, user.UserID.String(), logs[0].UserID)
	})

	t.Run("wrong password", func(t *testing.T) {
		svc := service.NewAuthService(&fakeIdentity{err: auth.ErrInvalidCredentials}, &fakeTokens{user: user}, nil, nil, zap.NewNop())
		_, err := svc.Login(context.Background(), nil, &domain.LoginRequest{Email: "carla@brasmat.com.br", Password: "x"})
		assert.ErrorIs(t, err, service.ErrInvalidCredentials)
		assert.ErrorIs(t, err, service.ErrUnauthorized)
	})

	t.Run("timeout", func(t *testing.T) {
		svc := service.NewAuthService(&fakeIdentity{err: fmt.Errorf("%w after 15s", auth.ErrLoginTimeout)}, &fakeTokens{user: user}, nil, nil, zap.NewNop())
		_, err := svc.Login(context.Background(), nil, &domain.LoginRequest{Email: "carla@brasmat.com.br", Password: "x"})
		assert.ErrorIs(t, err, service.ErrLoginTimeout)
		assert.ErrorIs(t, err, service.ErrUpstream)
	})

	t.Run("provider outage", func(t *testing.T) {
		svc := service.NewAuthService(&fakeIdentity{err: errors.New("connection refused")}, &fakeTokens{user: user}, nil, nil, zap.NewNop())
		_, err := svc.Login(context.Background(), nil, &domain.LoginRequest{Email: "carla@brasmat.com.br", Password: "x"})
		assert.ErrorIs(t, err, service.ErrUpstream)
		assert.NotContains(t, err.Error(), "connection refused")
	})

	t.Run("invalid email", func(t *testing.T) {
		svc := service.NewAuthService(&fakeIdentity{}, &fakeTokens{user: user}, nil, nil, zap.NewNop())
		_, err := svc.Login(context.Background(), nil, &domain.LoginRequest{Email: "not-an-email", Password: "x"})
		assert.ErrorIs(t, err, service.ErrValidation)
	})
}

func TestAuthService_Session(t *testing.T) {
	sessions := newFakeSessions()
	svc := service.NewAuthService(&fakeIdentity{}, &fakeTokens{}, sessions, nil, zap.NewNop())

	user := newUser(domain.RoleManager, "Gerente Loja")
	ctx := ctxFor(user)
	key := "user:" + user.UserID.String()
	sessions.started[key] = user.UserID.String()

	t.Run("status reports the warning", func(t *testing.T) {
		dto, err := svc.SessionStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, "warning", dto.State)
		assert.True(t, dto.ShowWarning)
		assert.Equal(t, int64(240), dto.RemainingSeconds)
	})

	t.Run("activity kinds are validated", func(t *testing.T) {
		dto, err := svc.Activity(ctx, "keydown")
		require.NoError(t, err)
		assert.Equal(t, "active", dto.State)

		_, err = svc.Activity(ctx, "mousemove")
		assert.ErrorIs(t, err, service.ErrValidation)
	})

	t.Run("extend", func(t *testing.T) {
		dto, err := svc.Extend(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1800), dto.RemainingSeconds)
	})

	t.Run("logout ends the session", func(t *testing.T) {
		require.NoError(t, svc.Logout(ctx, nil))
		assert.Contains(t, sessions.ended, key)

		_, err := svc.SessionStatus(ctx)
		assert.ErrorIs(t, err, service.ErrUnauthorized)
	})

	t.Run("me", func(t *testing.T) {
		me, err := svc.Me(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Gerente Loja", me.Name)

		_, err = svc.Me(context.Background())
		assert.ErrorIs(t, err, service.ErrUnauthorized)
	})
}

func TestAuthService_CheckPassword(t *testing.T) {
	svc := service.NewAuthService(&fakeIdentity{}, &fakeTokens{}, nil, nil, zap.NewNop())

	dto, err := svc.CheckPassword(&domain.UpdatePasswordCheckRequest{Password: "Brasmat#2026"})
	require.NoError(t, err)
	assert.True(t, dto.Valid)
	assert.Empty(t, dto.Violations)

	dto, err = svc.CheckPassword(&domain.UpdatePasswordCheckRequest{Password: "abc"})
	require.NoError(t, err)
	assert.False(t, dto.Valid)
	assert.Contains(t, dto.Violations, validation.PasswordTooShort)
	assert.Contains(t, dto.Violations, validation.PasswordNoUpper)
}
