package handler

import (
	"net/http"

	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/brasmat/proposal-api/internal/repository"
	"github.com/brasmat/proposal-api/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ClientHandler handles customer companies
type ClientHandler struct {
	clientService *service.ClientService
	logger        *zap.Logger
}

// NewClientHandler creates a new ClientHandler instance
func NewClientHandler(clientService *service.ClientService, logger *zap.Logger) *ClientHandler {
	return &ClientHandler{
		clientService: clientService,
		logger:        logger,
	}
}

// List godoc
// @Summary List clients
// @Tags Clients
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 200)" default(20)
// @Param search query string false "Search by name or document"
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.ClientDTO}
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /clients [get]
func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r, repository.MaxPageSize)

	result, err := h.clientService.List(r.Context(), page, pageSize, r.URL.Query().Get("search"))
	if err != nil {
		respondServiceError(w, h.logger, err, "list clients")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Create godoc
// @Summary Register client
// @Description The slug is derived from the name; the ERP code is filled in when the document is known to the ERP.
// @Tags Clients
// @Accept json
// @Produce json
// @Param request body domain.CreateClientRequest true "Client"
// @Success 201 {object} domain.ClientDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /clients [post]
func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateClientRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	dto, err := h.clientService.Create(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "create client")
		return
	}

	w.Header().Set("Location", "/api/v1/clients/"+dto.ID.String())
	respondJSON(w, http.StatusCreated, dto)
}

// GetByID godoc
// @Summary Get client
// @Tags Clients
// @Produce json
// @Param id path string true "Client ID" format(uuid)
// @Success 200 {object} domain.ClientDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /clients/{id} [get]
func (h *ClientHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "client")
	if !ok {
		return
	}

	dto, err := h.clientService.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get client")
		return
	}
	respondJSON(w, http.StatusOK, dto)
}

// GetBySlug godoc
// @Summary Get client by portal slug
// @Tags Clients
// @Produce json
// @Param slug path string true "Client slug"
// @Success 200 {object} domain.ClientDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /clients/slug/{slug} [get]
func (h *ClientHandler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	dto, err := h.clientService.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		respondServiceError(w, h.logger, err, "get client")
		return
	}
	respondJSON(w, http.StatusOK, dto)
}

// Mine godoc
// @Summary The portal user's own company
// @Tags Clients
// @Produce json
// @Success 200 {object} domain.ClientDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /clients/me [get]
func (h *ClientHandler) Mine(w http.ResponseWriter, r *http.Request) {
	dto, err := h.clientService.Mine(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "get client")
		return
	}
	respondJSON(w, http.StatusOK, dto)
}
