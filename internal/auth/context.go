package auth

import (
	"context"

	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/google/uuid"
)

// UserContext holds authenticated user information
type UserContext struct {
	UserID      uuid.UUID
	DisplayName string
	Email       string
	Role        domain.UserRoleType
	// SessionID identifies the sign-in session the token was issued for
	SessionID   string
	AccessToken string
}

type contextKey string

const userContextKey contextKey = "userContext"

// WithUserContext adds user context to the context
func WithUserContext(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// FromContext extracts user context from the context
func FromContext(ctx context.Context) (*UserContext, bool) {
	user, ok := ctx.Value(userContextKey).(*UserContext)
	return user, ok && user != nil
}

// HasRole checks if user has a specific role
func (u *UserContext) HasRole(role domain.UserRoleType) bool {
	return u.Role == role
}

// HasAnyRole checks if user has any of the specified roles
func (u *UserContext) HasAnyRole(roles ...domain.UserRoleType) bool {
	for _, role := range roles {
		if u.Role == role {
			return true
		}
	}
	return false
}

// IsAdmin is true for administrators and system integrations
func (u *UserContext) IsAdmin() bool {
	return u.HasAnyRole(domain.RoleAdmin, domain.RoleAPIService)
}

// IsStaff is true for every role except the client portal
func (u *UserContext) IsStaff() bool {
	return u.Role != domain.RoleClient && u.Role.IsValid()
}

// Actor is the user id of the caller, nil for system integrations
func (u *UserContext) Actor() *uuid.UUID {
	if u.UserID == uuid.Nil {
		return nil
	}
	id := u.UserID
	return &id
}
