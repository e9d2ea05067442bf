package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/brasmat/proposal-api/internal/auth"
	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/brasmat/proposal-api/internal/session"
	"github.com/brasmat/proposal-api/internal/validation"
	"go.uber.org/zap"
)

// PasswordAuthenticator signs a user in at the identity provider
type PasswordAuthenticator interface {
	PasswordLogin(ctx context.Context, email, password string) (*auth.TokenResponse, error)
}

// TokenValidator turns an access token into the caller identity
type TokenValidator interface {
	ValidateToken(token string) (*auth.UserContext, error)
}

// SessionTracker runs the server-side inactivity countdown of sign-in sessions
type SessionTracker interface {
	Start(ctx context.Context, sessionID, userID, role string) (session.Snapshot, error)
	Activity(ctx context.Context, sessionID string, kind session.ActivityKind) (session.Snapshot, error)
	Extend(ctx context.Context, sessionID string) (session.Snapshot, error)
	Status(ctx context.Context, sessionID string) (session.Snapshot, error)
	End(ctx context.Context, sessionID string) error
}

// AuthService signs users in and out and exposes the inactivity countdown
type AuthService struct {
	identity PasswordAuthenticator
	tokens   TokenValidator
	sessions SessionTracker
	audit    *AuditLogService
	logger   *zap.Logger
}

// NewAuthService creates a new AuthService instance. sessions and audit may be nil.
func NewAuthService(identity PasswordAuthenticator, tokens TokenValidator, sessions SessionTracker, audit *AuditLogService, logger *zap.Logger) *AuthService {
	return &AuthService{
		identity: identity,
		tokens:   tokens,
		sessions: sessions,
		audit:    audit,
		logger:   logger,
	}
}

// sessionKey identifies the countdown of a caller. Tokens without a session claim fall back
// to one session per user.
func sessionKey(user *auth.UserContext) string {
	if user.SessionID != "" {
		return user.SessionID
	}
	return "user:" + user.UserID.String()
}

func toSessionDTO(snap session.Snapshot) domain.SessionStatusDTO {
	return domain.SessionStatusDTO{
		State:            string(snap.State),
		RemainingSeconds: int64(snap.Remaining.Seconds()),
		ShowWarning:      snap.ShowWarning,
	}
}

// Login exchanges credentials for a token, starts the inactivity countdown and records the
// sign in. The identity provider call is bounded by the login timeout.
func (s *AuthService) Login(ctx context.Context, r *http.Request, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	if err := checkRequest(req); err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	token, err := s.identity.PasswordLogin(ctx, email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			s.logger.Info("login rejected", zap.String("email", email))
			return nil, ErrInvalidCredentials
		case errors.Is(err, auth.ErrLoginTimeout):
			s.logger.Warn("login timed out", zap.String("email", email))
			return nil, ErrLoginTimeout
		}
		s.logger.Error("identity provider login failed", zap.String("email", email), zap.Error(err))
		return nil, fmt.Errorf("%w: identity provider unavailable", ErrUpstream)
	}

	user, err := s.tokens.ValidateToken(token.AccessToken)
	if err != nil {
		s.logger.Error("identity provider issued a token that does not validate",
			zap.String("email", email),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	snap := session.Snapshot{State: session.StateActive, Remaining: session.DefaultConfig().Timeout}
	if s.sessions != nil {
		snap, err = s.sessions.Start(ctx, sessionKey(user), user.UserID.String(), string(user.Role))
		if err != nil {
			s.logger.Error("failed to start session", zap.String("user_id", user.UserID.String()), zap.Error(err))
			return nil, persistenceError("start session", err)
		}
	}

	if s.audit != nil {
		_ = s.audit.LogLogin(ctx, r, user)
	}

	s.logger.Info("user signed in",
		zap.String("user_id", user.UserID.String()),
		zap.String("role", string(user.Role)))

	return &domain.LoginResponse{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresIn:    token.ExpiresIn,
		User:         toAuthUserDTO(user),
		Session:      toSessionDTO(snap),
	}, nil
}

func toAuthUserDTO(user *auth.UserContext) domain.AuthUserDTO {
	return domain.AuthUserDTO{
		ID:    user.UserID.String(),
		Name:  user.DisplayName,
		Email: user.Email,
		Role:  user.Role,
	}
}

// Logout ends the caller's session
func (s *AuthService) Logout(ctx context.Context, r *http.Request) error {
	user, err := currentUser(ctx)
	if err != nil {
		return err
	}
	if s.sessions != nil {
		if err := s.sessions.End(ctx, sessionKey(user)); err != nil {
			return persistenceError("end session", err)
		}
	}
	if s.audit != nil {
		_ = s.audit.LogLogout(ctx, r)
	}
	s.logger.Info("user signed out", zap.String("user_id", user.UserID.String()))
	return nil
}

// Me returns the caller
func (s *AuthService) Me(ctx context.Context) (*domain.AuthUserDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	dto := toAuthUserDTO(user)
	return &dto, nil
}

// SessionStatus reports the countdown without counting as activity
func (s *AuthService) SessionStatus(ctx context.Context) (*domain.SessionStatusDTO, error) {
	return s.sessionCall(ctx, func(ctx context.Context, key string) (session.Snapshot, error) {
		return s.sessions.Status(ctx, key)
	})
}

// Activity resets the countdown for a recognised user interaction
func (s *AuthService) Activity(ctx context.Context, kind string) (*domain.SessionStatusDTO, error) {
	activity, err := session.ParseActivity(kind)
	if err != nil {
		return nil, validationError("kind", "must be one of: pointerdown keydown scroll touchstart")
	}
	return s.sessionCall(ctx, func(ctx context.Context, key string) (session.Snapshot, error) {
		return s.sessions.Activity(ctx, key, activity)
	})
}

// Extend keeps the session alive from the warning dialog
func (s *AuthService) Extend(ctx context.Context) (*domain.SessionStatusDTO, error) {
	return s.sessionCall(ctx, func(ctx context.Context, key string) (session.Snapshot, error) {
		return s.sessions.Extend(ctx, key)
	})
}

func (s *AuthService) sessionCall(ctx context.Context, call func(context.Context, string) (session.Snapshot, error)) (*domain.SessionStatusDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if s.sessions == nil {
		dto := toSessionDTO(session.Snapshot{State: session.StateActive, Remaining: session.DefaultConfig().Timeout})
		return &dto, nil
	}

	snap, err := call(ctx, sessionKey(user))
	if errors.Is(err, session.ErrSessionNotFound) {
		return nil, fmt.Errorf("%w: session expired", ErrUnauthorized)
	}
	if err != nil {
		return nil, persistenceError("session", err)
	}
	dto := toSessionDTO(snap)
	return &dto, nil
}

// CheckPassword lists the password policy violations of a candidate password
func (s *AuthService) CheckPassword(req *domain.UpdatePasswordCheckRequest) (*domain.PasswordCheckDTO, error) {
	if err := checkRequest(req); err != nil {
		return nil, err
	}
	violations := validation.CheckPassword(req.Password)
	if violations == nil {
		violations = []string{}
	}
	return &domain.PasswordCheckDTO{Valid: len(violations) == 0, Violations: violations}, nil
}
