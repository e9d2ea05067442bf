package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/brasmat/proposal-api/internal/repository"
	"github.com/brasmat/proposal-api/internal/service"
	"github.com/brasmat/proposal-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func createDashboardService(db *gorm.DB, now time.Time) *service.DashboardService {
	return service.NewDashboardService(
		repository.NewProposalRepository(db),
		repository.NewApprovalRepository(db),
		repository.NewClientRepository(db),
		zap.NewNop(),
	).WithClock(clockAt(now))
}

func TestDashboardService_GetMetrics(t *testing.T) {
	db := testutil.SetupTestDB(t)
	now := testNow()
	svc := createDashboardService(db, now)
	client := testutil.CreateTestClient(t, db, "Construtora Horizonte", nil)
	admin := newUser(domain.RoleAdmin, "Admin Geral")

	testutil.CreateTestProposal(t, db, client, testutil.WithStatus(domain.ProposalStatusAccepted), testutil.WithTotal(1500))
	testutil.CreateTestProposal(t, db, client, testutil.WithStatus(domain.ProposalStatusAccepted), testutil.WithTotal(500))
	testutil.CreateTestProposal(t, db, client, testutil.WithStatus(domain.ProposalStatusRejected))
	testutil.CreateTestProposal(t, db, client, testutil.WithStatus(domain.ProposalStatusExpired))
	expiring := testutil.CreateTestProposal(t, db, client, testutil.WithValidUntil(now.Add(48*time.Hour)))
	testutil.CreateTestProposal(t, db, client, testutil.WithValidUntil(now.Add(20*24*time.Hour)))

	approvals := repository.NewApprovalRepository(db)
	require.NoError(t, approvals.Create(context.Background(), &domain.ApprovalRequest{
		ProposalID:  expiring.ID,
		RequestedBy: admin.UserID,
		Status:      domain.ApprovalStatusPending,
		Reason:      "Volume",
	}))

	t.Run("aggregates the visible proposals", func(t *testing.T) {
		dto, err := svc.GetMetrics(ctxFor(admin), 0)
		require.NoError(t, err)

		assert.Equal(t, int64(2), dto.CountsByStatus[domain.ProposalStatusAccepted])
		assert.Equal(t, int64(2), dto.CountsByStatus[domain.ProposalStatusSent])
		assert.Equal(t, 2000.0, dto.AcceptedValue)
		assert.Equal(t, int64(1), dto.PendingApprovals)
		assert.Equal(t, 50.0, dto.AcceptanceRatePercent)
		assert.Equal(t, service.DefaultExpiringWithinDays, dto.ExpiringWithinDays)
		require.Len(t, dto.ExpiringSoon, 1)
		assert.Equal(t, expiring.ID, dto.ExpiringSoon[0].ID)
		assert.Equal(t, 2, dto.ExpiringSoon[0].Expiration.DaysRemaining)
	})

	t.Run("window is configurable", func(t *testing.T) {
		dto, err := svc.GetMetrics(ctxFor(admin), 30)
		require.NoError(t, err)
		assert.Len(t, dto.ExpiringSoon, 2)
	})

	t.Run("external sellers only count their own", func(t *testing.T) {
		external := newUser(domain.RoleExternalSeller, "Rep Externo")
		dto, err := svc.GetMetrics(ctxFor(external), 0)
		require.NoError(t, err)
		assert.Empty(t, dto.CountsByStatus)
		assert.Equal(t, 0.0, dto.AcceptedValue)
		assert.Equal(t, 0.0, dto.AcceptanceRatePercent)
	})

	t.Run("clients have no dashboard", func(t *testing.T) {
		_, err := svc.GetMetrics(ctxFor(newUser(domain.RoleClient, "Cliente")), 0)
		assert.ErrorIs(t, err, service.ErrPermissionDenied)
	})
}

func TestDashboardService_Search(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createDashboardService(db, testNow())
	horizonte := testutil.CreateTestClient(t, db, "Construtora Horizonte", nil)
	testutil.CreateTestClient(t, db, "Depósito Central", nil)
	testutil.CreateTestProposal(t, db, horizonte)
	seller := newUser(domain.RoleInternalSeller, "Carla Vendas")

	t.Run("matches clients and proposals", func(t *testing.T) {
		results, err := svc.Search(ctxFor(seller), "Horizonte")
		require.NoError(t, err)
		assert.Len(t, results.Clients, 1)
		assert.Len(t, results.Proposals, 1)
		assert.Equal(t, 2, results.Total)
	})

	t.Run("blank query", func(t *testing.T) {
		results, err := svc.Search(ctxFor(seller), "   ")
		require.NoError(t, err)
		assert.Equal(t, 0, results.Total)
	})
}
