package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/brasmat/proposal-api/internal/auth"
	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/brasmat/proposal-api/internal/repository"
	"github.com/brasmat/proposal-api/internal/service"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newUser(role domain.UserRoleType, name string) *auth.UserContext {
	return &auth.UserContext{
		UserID:      uuid.New(),
		DisplayName: name,
		Email:       "user-" + uuid.NewString()[:8] + "@brasmat.com.br",
		Role:        role,
	}
}

func ctxFor(user *auth.UserContext) context.Context {
	return auth.WithUserContext(context.Background(), user)
}

// testNow is truncated to the second so values survive the SQLite round trip unchanged
func testNow() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

func clockAt(t time.Time) service.Clock {
	return func() time.Time { return t }
}

func seedDiscountRule(t *testing.T, db *gorm.DB, role domain.UserRoleType, max float64, threshold *float64, active bool) *domain.DiscountRule {
	t.Helper()
	rule := &domain.DiscountRule{
		Role:               role,
		MaxDiscountPercent: decimal.NewFromFloat(max),
		Active:             active,
	}
	if threshold != nil {
		v := decimal.NewFromFloat(*threshold)
		rule.RequiresApprovalAbove = &v
	}
	require.NoError(t, db.Create(rule).Error)
	return rule
}

func floatPtr(v float64) *float64 { return &v }

func createDiscountRuleService(db *gorm.DB) *service.DiscountRuleService {
	return service.NewDiscountRuleService(repository.NewDiscountRuleRepository(db), zap.NewNop())
}

func createProposalService(db *gorm.DB, now time.Time) *service.ProposalService {
	return service.NewProposalService(
		db,
		repository.NewProposalRepository(db),
		repository.NewInteractionRepository(db),
		repository.NewClientRepository(db),
		repository.NewNumberSequenceRepository(db),
		repository.NewNotificationRepository(db),
		createDiscountRuleService(db),
		zap.NewNop(),
	).WithClock(clockAt(now))
}

func notificationsFor(t *testing.T, db *gorm.DB, userID uuid.UUID) []domain.Notification {
	t.Helper()
	var notifications []domain.Notification
	require.NoError(t, db.Where("user_id = ?", userID).Order("created_at ASC").Find(&notifications).Error)
	return notifications
}

func interactionsOf(t *testing.T, db *gorm.DB, proposalID uuid.UUID) []domain.ProposalInteraction {
	t.Helper()
	interactions, err := repository.NewInteractionRepository(db).ListByProposal(context.Background(), proposalID)
	require.NoError(t, err)
	return interactions
}

func reloadProposal(t *testing.T, db *gorm.DB, id uuid.UUID) *domain.Proposal {
	t.Helper()
	p, err := repository.NewProposalRepository(db).GetByID(context.Background(), id)
	require.NoError(t, err)
	return p
}
