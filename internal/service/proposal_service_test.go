package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/brasmat/proposal-api/internal/repository"
	"github.com/brasmat/proposal-api/internal/service"
	"github.com/brasmat/proposal-api/internal/testutil"
	"github.com/brasmat/proposal-api/internal/validation"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validProposalRequest(clientID uuid.UUID, now time.Time) *domain.CreateProposalRequest {
	return &domain.CreateProposalRequest{
		ClientID:        clientID,
		ValidUntil:      now.Add(15 * 24 * time.Hour).Format(time.RFC3339),
		DiscountPercent: 5,
		Observations:    "Entrega na obra",
		Items: []domain.CreateProposalItemRequest{
			{Description: "Cimento CP-II 50kg", Quantity: 10, UnitPrice: 25.50, Solution: "Estrutura"},
			{Description: "Vergalhão 10mm", Quantity: 3, UnitPrice: 100},
		},
	}
}

func TestProposalService_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	now := testNow()
	svc := createProposalService(db, now)
	seedDiscountRule(t, db, domain.RoleInternalSeller, 10, nil, true)
	client := testutil.CreateTestClient(t, db, "Construtora Horizonte", nil)
	seller := newUser(domain.RoleInternalSeller, "Carla Vendas")

	t.Run("creates a numbered draft with totals", func(t *testing.T) {
		dto, err := svc.Create(ctxFor(seller), validProposalRequest(client.ID, now))
		require.NoError(t, err)

		assert.Equal(t, fmt.Sprintf("PROP-%d-0001", now.Year()), dto.Number)
		assert.Equal(t, domain.ProposalStatusDraft, dto.Status)
		assert.Equal(t, "Construtora Horizonte", dto.ClientName)
		assert.Equal(t, 555.0, dto.Subtotal)
		assert.Equal(t, 527.25, dto.TotalValue)
		assert.Len(t, dto.Items, 2)
		assert.Equal(t, seller.UserID, dto.CreatedByID)
		assert.False(t, dto.Expiration.IsExpired)

		interactions := interactionsOf(t, db, dto.ID)
		require.Len(t, interactions, 1)
		assert.Equal(t, domain.InteractionCreated, interactions[0].Type)
	})

	t.Run("numbers are sequential", func(t *testing.T) {
		dto, err := svc.Create(ctxFor(seller), validProposalRequest(client.ID, now))
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("PROP-%d-0002", now.Year()), dto.Number)
	})

	t.Run("clients cannot create", func(t *testing.T) {
		_, err := svc.Create(ctxFor(newUser(domain.RoleClient, "Cliente")), validProposalRequest(client.ID, now))
		assert.ErrorIs(t, err, service.ErrPermissionDenied)
	})

	t.Run("discount above the ceiling is refused", func(t *testing.T) {
		req := validProposalRequest(client.ID, now)
		req.DiscountPercent = 12
		_, err := svc.Create(ctxFor(seller), req)
		assert.ErrorIs(t, err, service.ErrDiscountNotPermitted)
	})

	t.Run("invalid payload lists every field", func(t *testing.T) {
		req := validProposalRequest(client.ID, now)
		req.ValidUntil = now.Add(-time.Hour).Format(time.RFC3339)
		req.Items = nil
		_, err := svc.Create(ctxFor(seller), req)
		require.ErrorIs(t, err, service.ErrValidation)

		var fields validation.FieldErrors
		require.ErrorAs(t, err, &fields)
		assert.Contains(t, fields, "validUntil")
		assert.Contains(t, fields, "items")
	})

	t.Run("unknown client", func(t *testing.T) {
		_, err := svc.Create(ctxFor(seller), validProposalRequest(uuid.New(), now))
		assert.ErrorIs(t, err, service.ErrClientNotFound)
	})
}

func TestProposalService_GetByID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	now := testNow()
	svc := createProposalService(db, now)

	portalUser := newUser(domain.RoleClient, "Compras Horizonte")
	client := testutil.CreateTestClient(t, db, "Construtora Horizonte", &portalUser.UserID)
	staff := newUser(domain.RoleInternalSeller, "Carla Vendas")

	t.Run("first client view marks the proposal as viewed", func(t *testing.T) {
		p := testutil.CreateTestProposal(t, db, client, testutil.WithValidUntil(now.Add(48*time.Hour)))

		dto, err := svc.GetByID(ctxFor(portalUser), p.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.ProposalStatusViewed, dto.Status)
		assert.Equal(t, 2, dto.Expiration.DaysRemaining)

		_, err = svc.GetByID(ctxFor(portalUser), p.ID)
		require.NoError(t, err)

		viewed := 0
		for _, i := range interactionsOf(t, db, p.ID) {
			if i.Type == domain.InteractionViewed {
				viewed++
			}
		}
		assert.Equal(t, 1, viewed)
		assert.Equal(t, domain.ProposalStatusViewed, reloadProposal(t, db, p.ID).Status)
	})

	t.Run("staff views do not change the status", func(t *testing.T) {
		p := testutil.CreateTestProposal(t, db, client)
		dto, err := svc.GetByID(ctxFor(staff), p.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.ProposalStatusSent, dto.Status)
	})

	t.Run("expired proposal is hidden from clients only", func(t *testing.T) {
		p := testutil.CreateTestProposal(t, db, client, testutil.WithValidUntil(now.Add(-time.Hour)))

		_, err := svc.GetByID(ctxFor(portalUser), p.ID)
		assert.ErrorIs(t, err, service.ErrProposalHidden)

		dto, err := svc.GetByID(ctxFor(staff), p.ID)
		require.NoError(t, err)
		assert.True(t, dto.Expiration.IsExpired)
		assert.True(t, dto.Expiration.CanView)
		assert.Equal(t, 0, dto.Expiration.DaysRemaining)
	})

	t.Run("valid until now is still valid", func(t *testing.T) {
		p := testutil.CreateTestProposal(t, db, client, testutil.WithValidUntil(now))
		dto, err := svc.GetByID(ctxFor(staff), p.ID)
		require.NoError(t, err)
		assert.False(t, dto.Expiration.IsExpired)
		assert.Equal(t, 0, dto.Expiration.DaysRemaining)
	})

	t.Run("other companies are not found", func(t *testing.T) {
		other := testutil.CreateTestClient(t, db, "Outra Empresa", nil)
		p := testutil.CreateTestProposal(t, db, other)
		_, err := svc.GetByID(ctxFor(portalUser), p.ID)
		assert.ErrorIs(t, err, service.ErrProposalNotFound)
	})

	t.Run("external sellers only see their own", func(t *testing.T) {
		external := newUser(domain.RoleExternalSeller, "Rep Externo")
		mine := testutil.CreateTestProposal(t, db, client, testutil.WithCreator(external.UserID))
		theirs := testutil.CreateTestProposal(t, db, client)

		_, err := svc.GetByID(ctxFor(external), mine.ID)
		assert.NoError(t, err)
		_, err = svc.GetByID(ctxFor(external), theirs.ID)
		assert.ErrorIs(t, err, service.ErrProposalNotFound)
	})

	t.Run("requires a user", func(t *testing.T) {
		_, err := svc.GetByID(context.Background(), uuid.New())
		assert.ErrorIs(t, err, service.ErrUnauthorized)
	})
}

func TestProposalService_Send(t *testing.T) {
	db := testutil.SetupTestDB(t)
	now := testNow()
	svc := createProposalService(db, now)
	client := testutil.CreateTestClient(t, db, "Construtora Horizonte", nil)
	seller := newUser(domain.RoleInternalSeller, "Carla Vendas")

	t.Run("draft becomes sent once", func(t *testing.T) {
		p := testutil.CreateTestProposal(t, db, client, testutil.WithStatus(domain.ProposalStatusDraft))

		dto, err := svc.Send(ctxFor(seller), p.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.ProposalStatusSent, dto.Status)
		assert.NotNil(t, dto.SentAt)

		_, err = svc.Send(ctxFor(seller), p.ID)
		assert.ErrorIs(t, err, service.ErrStatusTransitionInvalid)
	})

	t.Run("expired draft cannot be sent", func(t *testing.T) {
		p := testutil.CreateTestProposal(t, db, client,
			testutil.WithStatus(domain.ProposalStatusDraft),
			testutil.WithValidUntil(now.Add(-time.Minute)))
		_, err := svc.Send(ctxFor(seller), p.ID)
		assert.ErrorIs(t, err, service.ErrProposalExpired)
	})

	t.Run("decided proposal", func(t *testing.T) {
		p := testutil.CreateTestProposal(t, db, client, testutil.WithStatus(domain.ProposalStatusAccepted))
		_, err := svc.Send(ctxFor(seller), p.ID)
		assert.ErrorIs(t, err, service.ErrProposalAlreadyDecided)
	})
}

func TestProposalService_Decide(t *testing.T) {
	db := testutil.SetupTestDB(t)
	now := testNow()
	svc := createProposalService(db, now)

	portalUser := newUser(domain.RoleClient, "Compras Horizonte")
	client := testutil.CreateTestClient(t, db, "Construtora Horizonte", &portalUser.UserID)
	creator := uuid.New()
	ctx := ctxFor(portalUser)

	t.Run("accept notifies the creator", func(t *testing.T) {
		p := testutil.CreateTestProposal(t, db, client, testutil.WithCreator(creator))

		dto, err := svc.Accept(ctx, p.ID, &domain.ProposalDecisionRequest{Comment: "Pode faturar"})
		require.NoError(t, err)
		assert.Equal(t, domain.ProposalStatusAccepted, dto.Status)
		assert.NotNil(t, dto.DecidedAt)

		interactions := interactionsOf(t, db, p.ID)
		require.NotEmpty(t, interactions)
		last := interactions[len(interactions)-1]
		assert.Equal(t, domain.InteractionAccept, last.Type)
		assert.Equal(t, "Proposta aceita pelo cliente: Pode faturar", last.Description)

		notifications := notificationsFor(t, db, creator)
		require.Len(t, notifications, 1)
		assert.Equal(t, string(domain.NotificationTypeProposalAccepted), notifications[0].Type)
	})

	t.Run("retry after a decision is a conflict", func(t *testing.T) {
		p := testutil.CreateTestProposal(t, db, client)
		_, err := svc.Reject(ctx, p.ID, nil)
		require.NoError(t, err)

		_, err = svc.Reject(ctx, p.ID, nil)
		assert.ErrorIs(t, err, service.ErrProposalAlreadyDecided)
		_, err = svc.Accept(ctx, p.ID, nil)
		assert.ErrorIs(t, err, service.ErrProposalAlreadyDecided)
		assert.Equal(t, domain.ProposalStatusRejected, reloadProposal(t, db, p.ID).Status)
	})

	t.Run("viewed proposals can be decided", func(t *testing.T) {
		p := testutil.CreateTestProposal(t, db, client, testutil.WithStatus(domain.ProposalStatusViewed))
		dto, err := svc.Reject(ctx, p.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, domain.ProposalStatusRejected, dto.Status)
	})

	t.Run("draft has not been sent", func(t *testing.T) {
		p := testutil.CreateTestProposal(t, db, client, testutil.WithStatus(domain.ProposalStatusDraft))
		_, err := svc.Accept(ctx, p.ID, nil)
		assert.ErrorIs(t, err, service.ErrProposalNotSent)
	})

	t.Run("past validity is expired", func(t *testing.T) {
		p := testutil.CreateTestProposal(t, db, client, testutil.WithValidUntil(now.Add(-time.Second)))
		_, err := svc.Accept(ctx, p.ID, nil)
		assert.ErrorIs(t, err, service.ErrProposalExpired)
		assert.Equal(t, domain.ProposalStatusSent, reloadProposal(t, db, p.ID).Status)
	})

	t.Run("expired status is expired", func(t *testing.T) {
		p := testutil.CreateTestProposal(t, db, client, testutil.WithStatus(domain.ProposalStatusExpired))
		_, err := svc.Reject(ctx, p.ID, nil)
		assert.ErrorIs(t, err, service.ErrProposalExpired)
	})

	t.Run("comment longer than allowed", func(t *testing.T) {
		p := testutil.CreateTestProposal(t, db, client)
		long := make([]byte, 1001)
		for i := range long {
			long[i] = 'a'
		}
		_, err := svc.Accept(ctx, p.ID, &domain.ProposalDecisionRequest{Comment: string(long)})
		assert.ErrorIs(t, err, service.ErrValidation)
	})

	t.Run("staff cannot decide for the client", func(t *testing.T) {
		p := testutil.CreateTestProposal(t, db, client)
		for _, role := range []domain.UserRoleType{domain.RoleAdmin, domain.RoleManager, domain.RoleInternalSeller} {
			_, err := svc.Accept(ctxFor(newUser(role, "Equipe")), p.ID, nil)
			assert.ErrorIs(t, err, service.ErrPermissionDenied, role)
		}
		assert.Equal(t, domain.ProposalStatusSent, reloadProposal(t, db, p.ID).Status)
		assert.Empty(t, interactionsOf(t, db, p.ID))
	})

	t.Run("integrations decide on behalf of the client", func(t *testing.T) {
		p := testutil.CreateTestProposal(t, db, client)
		dto, err := svc.Reject(ctxFor(newUser(domain.RoleAPIService, "Portal B2B")), p.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, domain.ProposalStatusRejected, dto.Status)
	})

	t.Run("concurrent decisions have one winner", func(t *testing.T) {
		p := testutil.CreateTestProposal(t, db, client)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if i == 0 {
					_, errs[i] = svc.Accept(ctx, p.ID, nil)
				} else {
					_, errs[i] = svc.Reject(ctx, p.ID, nil)
				}
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, service.ErrProposalAlreadyDecided)
		}
		assert.Equal(t, 1, succeeded)

		decisions := 0
		for _, i := range interactionsOf(t, db, p.ID) {
			if i.Type == domain.InteractionAccept || i.Type == domain.InteractionReject {
				decisions++
			}
		}
		assert.Equal(t, 1, decisions)
	})
}

func TestProposalService_List(t *testing.T) {
	db := testutil.SetupTestDB(t)
	now := testNow()
	svc := createProposalService(db, now)

	portalUser := newUser(domain.RoleClient, "Compras Horizonte")
	client := testutil.CreateTestClient(t, db, "Construtora Horizonte", &portalUser.UserID)
	other := testutil.CreateTestClient(t, db, "Outra Empresa", nil)

	testutil.CreateTestProposal(t, db, client)
	testutil.CreateTestProposal(t, db, client, testutil.WithValidUntil(now.Add(-time.Hour)))
	testutil.CreateTestProposal(t, db, client, testutil.WithStatus(domain.ProposalStatusExpired))
	testutil.CreateTestProposal(t, db, other)

	t.Run("clients only see valid proposals of their company", func(t *testing.T) {
		result, err := svc.List(ctxFor(portalUser), repository.ProposalFilters{}, repository.DefaultSortConfig(), 1, 20)
		require.NoError(t, err)
		assert.Equal(t, int64(1), result.Total)
		proposals := result.Data.([]domain.ProposalDTO)
		require.Len(t, proposals, 1)
		assert.Equal(t, client.ID, proposals[0].ClientID)
	})

	t.Run("staff see everything", func(t *testing.T) {
		manager := newUser(domain.RoleManager, "Gerente Loja")
		result, err := svc.List(ctxFor(manager), repository.ProposalFilters{}, repository.DefaultSortConfig(), 1, 20)
		require.NoError(t, err)
		assert.Equal(t, int64(4), result.Total)
	})

	t.Run("status filter", func(t *testing.T) {
		admin := newUser(domain.RoleAdmin, "Admin Geral")
		status := domain.ProposalStatusExpired
		result, err := svc.List(ctxFor(admin), repository.ProposalFilters{Status: &status}, repository.DefaultSortConfig(), 1, 20)
		require.NoError(t, err)
		assert.Equal(t, int64(1), result.Total)
	})
}

func TestProposalService_Notes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	now := testNow()
	svc := createProposalService(db, now)

	portalUser := newUser(domain.RoleClient, "Compras Horizonte")
	client := testutil.CreateTestClient(t, db, "Construtora Horizonte", &portalUser.UserID)
	p := testutil.CreateTestProposal(t, db, client)
	seller := newUser(domain.RoleInternalSeller, "Carla Vendas")

	t.Run("staff add notes", func(t *testing.T) {
		dto, err := svc.AddNote(ctxFor(seller), p.ID, &domain.AddNoteRequest{Note: "Cliente pediu prazo de 30 dias"})
		require.NoError(t, err)
		assert.Equal(t, domain.InteractionNote, dto.Type)
		assert.Equal(t, "Carla Vendas", dto.UserName)

		interactions, err := svc.Interactions(ctxFor(seller), p.ID)
		require.NoError(t, err)
		require.Len(t, interactions, 1)
		assert.Equal(t, "Cliente pediu prazo de 30 dias", interactions[0].Description)
	})

	t.Run("clients cannot add notes", func(t *testing.T) {
		_, err := svc.AddNote(ctxFor(portalUser), p.ID, &domain.AddNoteRequest{Note: "oi"})
		assert.ErrorIs(t, err, service.ErrPermissionDenied)
	})

	t.Run("layout falls back to the generic renderer", func(t *testing.T) {
		l, err := svc.Layout(ctxFor(seller), p.ID)
		require.NoError(t, err)
		assert.NotEmpty(t, l.Title)
	})
}

func TestProposalService_ExpireOverdue(t *testing.T) {
	db := testutil.SetupTestDB(t)
	now := testNow()
	svc := createProposalService(db, now)
	client := testutil.CreateTestClient(t, db, "Construtora Horizonte", nil)
	creator := uuid.New()

	overdueSent := testutil.CreateTestProposal(t, db, client,
		testutil.WithValidUntil(now.Add(-48*time.Hour)), testutil.WithCreator(creator))
	overdueViewed := testutil.CreateTestProposal(t, db, client,
		testutil.WithStatus(domain.ProposalStatusViewed), testutil.WithValidUntil(now.Add(-time.Hour)))
	overdueDraft := testutil.CreateTestProposal(t, db, client,
		testutil.WithStatus(domain.ProposalStatusDraft), testutil.WithValidUntil(now.Add(-time.Hour)))
	current := testutil.CreateTestProposal(t, db, client)

	count, err := svc.ExpireOverdue(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	assert.Equal(t, domain.ProposalStatusExpired, reloadProposal(t, db, overdueSent.ID).Status)
	assert.Equal(t, domain.ProposalStatusExpired, reloadProposal(t, db, overdueViewed.ID).Status)
	assert.Equal(t, domain.ProposalStatusDraft, reloadProposal(t, db, overdueDraft.ID).Status)
	assert.Equal(t, domain.ProposalStatusSent, reloadProposal(t, db, current.ID).Status)

	interactions := interactionsOf(t, db, overdueSent.ID)
	require.Len(t, interactions, 1)
	assert.Equal(t, domain.InteractionExpired, interactions[0].Type)
	assert.Equal(t, "Sistema", interactions[0].UserName)

	notifications := notificationsFor(t, db, creator)
	require.Len(t, notifications, 1)
	assert.Equal(t, string(domain.NotificationTypeProposalExpired), notifications[0].Type)

	count, err = svc.ExpireOverdue(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestProposalService_ExpiringWithin(t *testing.T) {
	db := testutil.SetupTestDB(t)
	now := testNow()
	svc := createProposalService(db, now)
	client := testutil.CreateTestClient(t, db, "Construtora Horizonte", nil)

	soon := testutil.CreateTestProposal(t, db, client, testutil.WithValidUntil(now.Add(24*time.Hour)))
	testutil.CreateTestProposal(t, db, client, testutil.WithValidUntil(now.Add(10*24*time.Hour)))
	testutil.CreateTestProposal(t, db, client,
		testutil.WithStatus(domain.ProposalStatusAccepted), testutil.WithValidUntil(now.Add(time.Hour)))

	proposals, err := svc.ExpiringWithin(context.Background(), 3*24*time.Hour, 10)
	require.NoError(t, err)
	require.Len(t, proposals, 1)
	assert.Equal(t, soon.ID, proposals[0].ID)
}
