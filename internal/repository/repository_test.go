package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/brasmat/proposal-api/internal/repository"
	"github.com/brasmat/proposal-api/internal/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestDiscountRuleRepository_GetByRole(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewDiscountRuleRepository(db)
	ctx := context.Background()

	above := decimal.NewFromInt(5)
	require.NoError(t, repo.Create(ctx, &domain.DiscountRule{
		Role:                  domain.RoleInternalSeller,
		MaxDiscountPercent:    decimal.NewFromInt(10),
		RequiresApprovalAbove: &above,
		Active:                true,
	}))

	rule, err := repo.GetByRole(ctx, domain.RoleInternalSeller)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(10).Equal(rule.MaxDiscountPercent))
	require.NotNil(t, rule.RequiresApprovalAbove)

	_, err = repo.GetByRole(ctx, "unknown_role")
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestDiscountRuleRepository_UpdateClearsCeiling(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewDiscountRuleRepository(db)
	ctx := context.Background()

	above := decimal.NewFromInt(5)
	rule := &domain.DiscountRule{Role: domain.RoleManager, MaxDiscountPercent: decimal.NewFromInt(15), RequiresApprovalAbove: &above, Active: true}
	require.NoError(t, repo.Create(ctx, rule))

	rule.RequiresApprovalAbove = nil
	rule.Active = false
	require.NoError(t, repo.Update(ctx, rule))

	stored, err := repo.GetByID(ctx, rule.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.RequiresApprovalAbove)
	assert.False(t, stored.Active)

	rules, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, rules, 1)
}

func TestNotificationRepository_ReadFlow(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewNotificationRepository(db)
	ctx := context.Background()

	userID := uuid.New()
	first := &domain.Notification{UserID: userID, Type: string(domain.NotificationTypeProposalAccepted), Title: "Proposta aceita", Message: "PROP-2026-0001"}
	second := &domain.Notification{UserID: userID, Type: string(domain.NotificationTypeProposalRejected), Title: "Proposta recusada", Message: "PROP-2026-0002"}
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))
	require.NoError(t, repo.Create(ctx, &domain.Notification{UserID: uuid.New(), Type: "x", Title: "t", Message: "m"}))

	count, err := repo.CountUnread(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	ok, err := repo.MarkAsRead(ctx, first.ID, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok, "cannot mark someone else's notification")

	ok, err = repo.MarkAsRead(ctx, first.ID, userID)
	require.NoError(t, err)
	assert.True(t, ok)

	unread, total, err := repo.ListByUser(ctx, userID, 1, 20, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, second.ID, unread[0].ID)

	require.NoError(t, repo.MarkAllAsRead(ctx, userID))
	count, err = repo.CountUnread(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestClientRepository(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewClientRepository(db)
	ctx := context.Background()

	portalUser := uuid.New()
	client := &domain.Client{Name: "Madeireira São João", Slug: "madeireira-sao-joao", Document: "11222333000181", PortalUserID: &portalUser}
	require.NoError(t, repo.Create(ctx, client))

	exists, err := repo.SlugExists(ctx, "madeireira-sao-joao")
	require.NoError(t, err)
	assert.True(t, exists)

	bySlug, err := repo.GetBySlug(ctx, "madeireira-sao-joao")
	require.NoError(t, err)
	assert.Equal(t, client.ID, bySlug.ID)

	byUser, err := repo.GetByPortalUser(ctx, portalUser)
	require.NoError(t, err)
	assert.Equal(t, client.ID, byUser.ID)

	list, total, err := repo.List(ctx, 1, 10, "madeireira")
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, list, 1)
}

func TestInteractionRepository(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewInteractionRepository(db)
	ctx := context.Background()
	proposalID := uuid.New()
	base := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, &domain.ProposalInteraction{ProposalID: proposalID, Type: domain.InteractionSent, Description: "Proposta enviada", OccurredAt: base.Add(time.Hour)}))
	require.NoError(t, repo.Create(ctx, &domain.ProposalInteraction{ProposalID: proposalID, Type: domain.InteractionCreated, Description: "Proposta criada", OccurredAt: base}))

	log, err := repo.ListByProposal(ctx, proposalID)
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, domain.InteractionCreated, log[0].Type)

	count, err := repo.CountByType(ctx, proposalID, domain.InteractionSent)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestAuditLogRepository(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewAuditLogRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Create(ctx, &domain.AuditLog{UserID: "u1", Action: domain.AuditActionUpdate, EntityType: "DiscountRule", PerformedAt: now.Add(-48 * time.Hour)}))
	require.NoError(t, repo.Create(ctx, &domain.AuditLog{UserID: "u2", Action: domain.AuditActionCreate, EntityType: "Proposal", PerformedAt: now}))

	logs, total, err := repo.List(ctx, &repository.AuditLogFilter{EntityType: "Proposal"}, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "u2", logs[0].UserID)

	removed, err := repo.DeleteOlderThan(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestApplyOwnerFilterAndPaging(t *testing.T) {
	assert.True(t, repository.Viewer{Role: domain.RoleAPIService}.SeesEverything())
	assert.False(t, repository.Viewer{Role: domain.RoleManager}.SeesEverything())
	assert.Equal(t, "proposals.valid_until ASC", repository.BuildOrderClause(
		repository.SortConfig{Field: "validUntil", Order: repository.SortOrderAsc},
		map[string]string{"validUntil": "proposals.valid_until"}, "proposals.created_at"))
	assert.Equal(t, "proposals.created_at DESC", repository.BuildOrderClause(
		repository.SortConfig{Field: "dropTable", Order: repository.ParseSortOrder("sideways")},
		map[string]string{}, "proposals.created_at"))
}
