package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/brasmat/proposal-api/internal/repository"
	"github.com/brasmat/proposal-api/internal/service"
	"github.com/brasmat/proposal-api/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func createNotificationService(db *gorm.DB) *service.NotificationService {
	return service.NewNotificationService(repository.NewNotificationRepository(db), zap.NewNop())
}

func TestNotificationService(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createNotificationService(db)
	ctx := context.Background()

	seller := newUser(domain.RoleInternalSeller, "Carla Vendas")
	other := newUser(domain.RoleInternalSeller, "Outro Vendedor")
	proposalID := uuid.New()

	first, err := svc.CreateForUser(ctx, seller.UserID, domain.NotificationTypeProposalAccepted,
		"Proposta aceita", "A proposta PROP-2026-0001 foi aceita.", "proposal", &proposalID)
	require.NoError(t, err)
	_, err = svc.CreateForUser(ctx, seller.UserID, domain.NotificationTypeApprovalDecided,
		"Desconto aprovado", strings.Repeat("x", 600), "proposal", &proposalID)
	require.NoError(t, err)
	theirs, err := svc.CreateForUser(ctx, other.UserID, domain.NotificationTypeProposalExpired,
		"Proposta expirada", "Expirou", "proposal", nil)
	require.NoError(t, err)

	t.Run("long messages are truncated", func(t *testing.T) {
		result, err := svc.GetForCurrentUser(ctxFor(seller), 1, 20, false)
		require.NoError(t, err)
		notifications := result.Data.([]domain.NotificationDTO)
		require.Len(t, notifications, 2)
		for _, n := range notifications {
			assert.LessOrEqual(t, len([]rune(n.Message)), 500)
		}
	})

	t.Run("unread count and mark as read", func(t *testing.T) {
		count, err := svc.GetUnreadCount(ctxFor(seller))
		require.NoError(t, err)
		assert.Equal(t, int64(2), count.Count)

		require.NoError(t, svc.MarkAsRead(ctxFor(seller), first.ID))
		require.NoError(t, svc.MarkAsRead(ctxFor(seller), first.ID))

		count, err = svc.GetUnreadCount(ctxFor(seller))
		require.NoError(t, err)
		assert.Equal(t, int64(1), count.Count)

		unread, err := svc.GetForCurrentUser(ctxFor(seller), 1, 20, true)
		require.NoError(t, err)
		assert.Equal(t, int64(1), unread.Total)
	})

	t.Run("other users' notifications are not found", func(t *testing.T) {
		err := svc.MarkAsRead(ctxFor(seller), theirs.ID)
		assert.ErrorIs(t, err, service.ErrNotificationNotFound)

		err = svc.MarkAsRead(ctxFor(seller), uuid.New())
		assert.ErrorIs(t, err, service.ErrNotificationNotFound)
	})

	t.Run("mark all", func(t *testing.T) {
		require.NoError(t, svc.MarkAllAsReadForUser(ctxFor(seller)))
		count, err := svc.GetUnreadCount(ctxFor(seller))
		require.NoError(t, err)
		assert.Equal(t, int64(0), count.Count)

		count, err = svc.GetUnreadCount(ctxFor(other))
		require.NoError(t, err)
		assert.Equal(t, int64(1), count.Count)
	})

	t.Run("requires a user", func(t *testing.T) {
		_, err := svc.GetUnreadCount(ctx)
		assert.ErrorIs(t, err, service.ErrUnauthorized)
	})
}
