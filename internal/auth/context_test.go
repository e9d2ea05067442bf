package auth_test

import (
	"context"
	"testing"

	"github.com/brasmat/proposal-api/internal/auth"
	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserContext_RoundTrip(t *testing.T) {
	user := &auth.UserContext{UserID: uuid.New(), Role: domain.RoleManager}
	ctx := auth.WithUserContext(context.Background(), user)

	got, ok := auth.FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, user, got)

	_, ok = auth.FromContext(context.Background())
	assert.False(t, ok)
}

func TestUserContext_Roles(t *testing.T) {
	admin := &auth.UserContext{Role: domain.RoleAdmin}
	system := &auth.UserContext{Role: domain.RoleAPIService}
	seller := &auth.UserContext{Role: domain.RoleInternalSeller}
	client := &auth.UserContext{Role: domain.RoleClient}

	assert.True(t, admin.IsAdmin())
	assert.True(t, system.IsAdmin())
	assert.False(t, seller.IsAdmin())

	assert.True(t, seller.IsStaff())
	assert.False(t, client.IsStaff())

	assert.True(t, seller.HasAnyRole(domain.RoleExternalSeller, domain.RoleInternalSeller))
	assert.False(t, seller.HasAnyRole(domain.RoleAdmin))
}

func TestUserContext_Actor(t *testing.T) {
	assert.Nil(t, (&auth.UserContext{}).Actor())

	id := uuid.New()
	actor := (&auth.UserContext{UserID: id}).Actor()
	require.NotNil(t, actor)
	assert.Equal(t, id, *actor)
}
