package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/brasmat/proposal-api/internal/config"
	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrMissingRole  = errors.New("token has no application role")
)

// JWTValidator validates HS256 access tokens issued by the identity provider
type JWTValidator struct {
	secret []byte
	issuer string
}

// NewJWTValidator creates a new JWT validator
func NewJWTValidator(cfg *config.AuthConfig) *JWTValidator {
	return &JWTValidator{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.Issuer,
	}
}

// ValidateToken validates a JWT token and returns user context
func (v *JWTValidator) ValidateToken(tokenString string) (*UserContext, error) {
	if len(v.secret) == 0 {
		return nil, fmt.Errorf("%w: signing secret not configured", ErrInvalidToken)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	return userFromClaims(claims)
}

func userFromClaims(claims jwt.MapClaims) (*UserContext, error) {
	sub, _ := claims.GetSubject()
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, fmt.Errorf("%w: subject is not a user id", ErrInvalidToken)
	}

	role := ExtractRole(claims)
	if !role.IsValid() {
		return nil, ErrMissingRole
	}

	return &UserContext{
		UserID:      userID,
		Email:       extractString(claims, "email"),
		DisplayName: firstNonEmpty(nestedString(claims, "user_metadata", "name"), extractString(claims, "name", "email")),
		Role:        role,
		SessionID:   extractString(claims, "session_id", "sid"),
	}, nil
}

// ExtractRole reads the application role. app_metadata is only writable server side, so it
// wins over user_metadata; the top level user_role claim is set by custom access token hooks.
func ExtractRole(claims jwt.MapClaims) domain.UserRoleType {
	for _, candidate := range []string{
		nestedString(claims, "app_metadata", "role"),
		extractString(claims, "user_role"),
	} {
		if candidate != "" {
			return domain.UserRoleType(candidate)
		}
	}
	return ""
}

func extractString(claims jwt.MapClaims, keys ...string) string {
	for _, key := range keys {
		if val, ok := claims[key]; ok {
			if str, ok := val.(string); ok && str != "" {
				return str
			}
		}
	}
	return ""
}

func nestedString(claims jwt.MapClaims, object, key string) string {
	m, ok := claims[object].(map[string]interface{})
	if !ok {
		return ""
	}
	str, _ := m[key].(string)
	return str
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
