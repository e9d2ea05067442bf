package handler_test

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/brasmat/proposal-api/internal/http/handler"
	"github.com/brasmat/proposal-api/internal/repository"
	"github.com/brasmat/proposal-api/internal/service"
	"github.com/brasmat/proposal-api/internal/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func createProposalHandler(t *testing.T, db *gorm.DB) *handler.ProposalHandler {
	t.Helper()
	rules := service.NewDiscountRuleService(repository.NewDiscountRuleRepository(db), zap.NewNop())
	svc := service.NewProposalService(
		db,
		repository.NewProposalRepository(db),
		repository.NewInteractionRepository(db),
		repository.NewClientRepository(db),
		repository.NewNumberSequenceRepository(db),
		repository.NewNotificationRepository(db),
		rules,
		zap.NewNop(),
	)
	return handler.NewProposalHandler(svc, zap.NewNop())
}

func seedRule(t *testing.T, db *gorm.DB, role domain.UserRoleType, max int64) {
	t.Helper()
	require.NoError(t, db.Create(&domain.DiscountRule{
		Role:               role,
		MaxDiscountPercent: decimal.NewFromInt(max),
		Active:             true,
	}).Error)
}

func TestProposalHandler_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := createProposalHandler(t, db)
	seedRule(t, db, domain.RoleInternalSeller, 10)
	client := testutil.CreateTestClient(t, db, "Construtora Horizonte", nil)
	seller := newUser(domain.RoleInternalSeller, "Carla Vendas")

	valid := map[string]interface{}{
		"clientId":        client.ID,
		"validUntil":      time.Now().UTC().Add(15 * 24 * time.Hour).Format(time.RFC3339),
		"discountPercent": 5,
		"items": []map[string]interface{}{
			{"description": "Cimento CP-II 50kg", "quantity": 10, "unitPrice": 25.5},
		},
	}

	t.Run("created", func(t *testing.T) {
		w := do(h.Create, newRequest(t, http.MethodPost, "/api/v1/proposals", valid, seller))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		dto := decode[domain.ProposalDTO](t, w)
		assert.Equal(t, domain.ProposalStatusDraft, dto.Status)
		assert.Equal(t, fmt.Sprintf("PROP-%d-0001", time.Now().UTC().Year()), dto.Number)
		assert.Equal(t, "/api/v1/proposals/"+dto.ID.String(), w.Header().Get("Location"))
	})

	t.Run("field errors", func(t *testing.T) {
		body := map[string]interface{}{
			"clientId":   client.ID,
			"validUntil": time.Now().UTC().Add(-time.Hour).Format(time.RFC3339),
			"items":      []interface{}{},
		}
		w := do(h.Create, newRequest(t, http.MethodPost, "/api/v1/proposals", body, seller))
		require.Equal(t, http.StatusBadRequest, w.Code)

		apiErr := decode[domain.APIError](t, w)
		assert.Equal(t, domain.ErrorTypeValidation, apiErr.Type)
		assert.Contains(t, apiErr.Errors, "validUntil")
	})

	t.Run("malformed body", func(t *testing.T) {
		w := do(h.Create, newRequest(t, http.MethodPost, "/api/v1/proposals", `{"clientId":`, seller))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("clients cannot create", func(t *testing.T) {
		w := do(h.Create, newRequest(t, http.MethodPost, "/api/v1/proposals", valid, newUser(domain.RoleClient, "Cliente")))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestProposalHandler_GetByID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := createProposalHandler(t, db)
	portalUser := newUser(domain.RoleClient, "Compras Horizonte")
	client := testutil.CreateTestClient(t, db, "Construtora Horizonte", &portalUser.UserID)
	staff := newUser(domain.RoleInternalSeller, "Carla Vendas")

	t.Run("invalid id", func(t *testing.T) {
		w := do(h.GetByID, newRequest(t, http.MethodGet, "/api/v1/proposals/x", nil, staff, "id", "not-a-uuid"))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("not found", func(t *testing.T) {
		w := do(h.GetByID, newRequest(t, http.MethodGet, "/", nil, staff, "id", uuid.NewString()))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("expired proposal is hidden from the client", func(t *testing.T) {
		p := testutil.CreateTestProposal(t, db, client, testutil.WithValidUntil(time.Now().UTC().Add(-time.Hour)))

		w := do(h.GetByID, newRequest(t, http.MethodGet, "/", nil, portalUser, "id", p.ID.String()))
		assert.Equal(t, http.StatusForbidden, w.Code)

		w = do(h.GetByID, newRequest(t, http.MethodGet, "/", nil, staff, "id", p.ID.String()))
		require.Equal(t, http.StatusOK, w.Code)
		dto := decode[domain.ProposalDTO](t, w)
		assert.True(t, dto.Expiration.IsExpired)
	})
}

func TestProposalHandler_Decide(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := createProposalHandler(t, db)
	portalUser := newUser(domain.RoleClient, "Compras Horizonte")
	client := testutil.CreateTestClient(t, db, "Construtora Horizonte", &portalUser.UserID)

	t.Run("accept with comment", func(t *testing.T) {
		p := testutil.CreateTestProposal(t, db, client)
		w := do(h.Accept, newRequest(t, http.MethodPost, "/", map[string]string{"comment": "Pode faturar"}, portalUser, "id", p.ID.String()))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, domain.ProposalStatusAccepted, decode[domain.ProposalDTO](t, w).Status)
	})

	t.Run("reject without body then retry", func(t *testing.T) {
		p := testutil.CreateTestProposal(t, db, client)
		w := do(h.Reject, newRequest(t, http.MethodPost, "/", nil, portalUser, "id", p.ID.String()))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w = do(h.Accept, newRequest(t, http.MethodPost, "/", nil, portalUser, "id", p.ID.String()))
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("seller cannot accept for the client", func(t *testing.T) {
		p := testutil.CreateTestProposal(t, db, client)
		seller := newUser(domain.RoleInternalSeller, "Vendedor")
		w := do(h.Accept, newRequest(t, http.MethodPost, "/", nil, seller, "id", p.ID.String()))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestProposalHandler_List(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := createProposalHandler(t, db)
	client := testutil.CreateTestClient(t, db, "Construtora Horizonte", nil)
	testutil.CreateTestProposal(t, db, client)
	testutil.CreateTestProposal(t, db, client, testutil.WithStatus(domain.ProposalStatusAccepted))
	admin := newUser(domain.RoleAdmin, "Admin Geral")

	w := do(h.List, newRequest(t, http.MethodGet, "/api/v1/proposals?status=accepted", nil, admin))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := decode[page[domain.ProposalDTO]](t, w)
	assert.Equal(t, int64(1), result.Total)

	w = do(h.List, newRequest(t, http.MethodGet, "/api/v1/proposals?status=won", nil, admin))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(h.List, newRequest(t, http.MethodGet, "/api/v1/proposals?clientId=abc", nil, admin))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProposalHandler_Notes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := createProposalHandler(t, db)
	client := testutil.CreateTestClient(t, db, "Construtora Horizonte", nil)
	p := testutil.CreateTestProposal(t, db, client)
	seller := newUser(domain.RoleInternalSeller, "Carla Vendas")

	w := do(h.AddNote, newRequest(t, http.MethodPost, "/", map[string]string{"note": "Cliente pediu prazo maior"}, seller, "id", p.ID.String()))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(h.Interactions, newRequest(t, http.MethodGet, "/", nil, seller, "id", p.ID.String()))
	require.Equal(t, http.StatusOK, w.Code)
	interactions := decode[[]domain.InteractionDTO](t, w)
	require.NotEmpty(t, interactions)
	assert.Equal(t, domain.InteractionNote, interactions[len(interactions)-1].Type)
}
