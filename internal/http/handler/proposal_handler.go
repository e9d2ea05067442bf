package handler

import (
	"net/http"

	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/brasmat/proposal-api/internal/repository"
	"github.com/brasmat/proposal-api/internal/service"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProposalHandler handles HTTP requests for proposals and their interaction log
type ProposalHandler struct {
	proposalService *service.ProposalService
	logger          *zap.Logger
}

// NewProposalHandler creates a new ProposalHandler instance
func NewProposalHandler(proposalService *service.ProposalService, logger *zap.Logger) *ProposalHandler {
	return &ProposalHandler{
		proposalService: proposalService,
		logger:          logger,
	}
}

// List godoc
// @Summary List proposals
// @Description Paginated proposals in the caller's scope. Clients only see their company's proposals that are still valid.
// @Tags Proposals
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 200)" default(20)
// @Param status query string false "Filter by status" Enums(draft, sent, viewed, accepted, rejected, expired)
// @Param clientId query string false "Filter by client ID" format(uuid)
// @Param search query string false "Search by number or client name"
// @Param sortBy query string false "Sort field" Enums(createdAt, validUntil, totalValue, number)
// @Param sortOrder query string false "Sort order" Enums(asc, desc) default(desc)
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.ProposalDTO}
// @Failure 400 {object} domain.APIError
// @Failure 401 {object} domain.APIError
// @Failure 500 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /proposals [get]
func (h *ProposalHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r, repository.MaxPageSize)
	q := r.URL.Query()

	filters := repository.ProposalFilters{Search: q.Get("search")}
	if s := q.Get("status"); s != "" {
		status := domain.ProposalStatus(s)
		if !status.IsValid() {
			respondWithError(w, http.StatusBadRequest, "Invalid status: must be one of draft, sent, viewed, accepted, rejected, expired")
			return
		}
		filters.Status = &status
	}
	if c := q.Get("clientId"); c != "" {
		clientID, err := uuid.Parse(c)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid clientId: must be a valid UUID")
			return
		}
		filters.ClientID = &clientID
	}

	sort := repository.DefaultSortConfig()
	if field := q.Get("sortBy"); field != "" {
		sort.Field = field
	}
	if order := q.Get("sortOrder"); order != "" {
		sort.Order = repository.ParseSortOrder(order)
	}

	result, err := h.proposalService.List(r.Context(), filters, sort, page, pageSize)
	if err != nil {
		respondServiceError(w, h.logger, err, "list proposals")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Create godoc
// @Summary Create proposal
// @Description Creates a draft proposal. The discount must be within the caller's discount rule.
// @Tags Proposals
// @Accept json
// @Produce json
// @Param request body domain.CreateProposalRequest true "Proposal"
// @Success 201 {object} domain.ProposalDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /proposals [post]
func (h *ProposalHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateProposalRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	dto, err := h.proposalService.Create(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "create proposal")
		return
	}

	w.Header().Set("Location", "/api/v1/proposals/"+dto.ID.String())
	respondJSON(w, http.StatusCreated, dto)
}

// GetByID godoc
// @Summary Get proposal
// @Description Returns the proposal with its validity evaluated now. The first view by the client marks it as viewed.
// @Tags Proposals
// @Produce json
// @Param id path string true "Proposal ID" format(uuid)
// @Success 200 {object} domain.ProposalDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError "Expired proposal requested by a client"
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /proposals/{id} [get]
func (h *ProposalHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "proposal")
	if !ok {
		return
	}

	dto, err := h.proposalService.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get proposal")
		return
	}
	respondJSON(w, http.StatusOK, dto)
}

// Send godoc
// @Summary Send proposal to client
// @Tags Proposals
// @Produce json
// @Param id path string true "Proposal ID" format(uuid)
// @Success 200 {object} domain.ProposalDTO
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /proposals/{id}/send [post]
func (h *ProposalHandler) Send(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "proposal")
	if !ok {
		return
	}

	dto, err := h.proposalService.Send(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "send proposal")
		return
	}
	respondJSON(w, http.StatusOK, dto)
}

// Accept godoc
// @Summary Accept proposal
// @Description Client decision. Fails with 409 when the proposal is expired or already decided.
// @Tags Proposals
// @Accept json
// @Produce json
// @Param id path string true "Proposal ID" format(uuid)
// @Param request body domain.ProposalDecisionRequest false "Optional comment"
// @Success 200 {object} domain.ProposalDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Router /proposals/{id}/accept [post]
func (h *ProposalHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, true)
}

// Reject godoc
// @Summary Reject proposal
// @Description Client decision. Fails with 409 when the proposal is expired or already decided.
// @Tags Proposals
// @Accept json
// @Produce json
// @Param id path string true "Proposal ID" format(uuid)
// @Param request body domain.ProposalDecisionRequest false "Optional comment"
// @Success 200 {object} domain.ProposalDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Router /proposals/{id}/reject [post]
func (h *ProposalHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, false)
}

func (h *ProposalHandler) decide(w http.ResponseWriter, r *http.Request, accept bool) {
	id, ok := parseIDParam(w, r, "id", "proposal")
	if !ok {
		return
	}

	var req domain.ProposalDecisionRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}

	var (
		dto *domain.ProposalDTO
		err error
	)
	if accept {
		dto, err = h.proposalService.Accept(r.Context(), id, &req)
	} else {
		dto, err = h.proposalService.Reject(r.Context(), id, &req)
	}
	if err != nil {
		respondServiceError(w, h.logger, err, "record decision")
		return
	}
	respondJSON(w, http.StatusOK, dto)
}

// Interactions godoc
// @Summary Proposal interaction log
// @Tags Proposals
// @Produce json
// @Param id path string true "Proposal ID" format(uuid)
// @Success 200 {array} domain.InteractionDTO
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /proposals/{id}/interactions [get]
func (h *ProposalHandler) Interactions(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "proposal")
	if !ok {
		return
	}

	interactions, err := h.proposalService.Interactions(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "list interactions")
		return
	}
	respondJSON(w, http.StatusOK, interactions)
}

// AddNote godoc
// @Summary Add internal note
// @Tags Proposals
// @Accept json
// @Produce json
// @Param id path string true "Proposal ID" format(uuid)
// @Param request body domain.AddNoteRequest true "Note"
// @Success 201 {object} domain.InteractionDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /proposals/{id}/notes [post]
func (h *ProposalHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "proposal")
	if !ok {
		return
	}

	var req domain.AddNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	dto, err := h.proposalService.AddNote(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "add note")
		return
	}
	respondJSON(w, http.StatusCreated, dto)
}

// Layout godoc
// @Summary Presentation layout
// @Description Items grouped by the renderer of the proposal's product group
// @Tags Proposals
// @Produce json
// @Param id path string true "Proposal ID" format(uuid)
// @Success 200 {object} layout.Layout
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /proposals/{id}/layout [get]
func (h *ProposalHandler) Layout(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "proposal")
	if !ok {
		return
	}

	l, err := h.proposalService.Layout(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "render proposal")
		return
	}
	respondJSON(w, http.StatusOK, l)
}
