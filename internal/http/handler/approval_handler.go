package handler

import (
	"net/http"

	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/brasmat/proposal-api/internal/service"
	"go.uber.org/zap"
)

// ApprovalHandler handles discount approval requests
type ApprovalHandler struct {
	approvalService *service.ApprovalService
	logger          *zap.Logger
}

// NewApprovalHandler creates a new ApprovalHandler instance
func NewApprovalHandler(approvalService *service.ApprovalService, logger *zap.Logger) *ApprovalHandler {
	return &ApprovalHandler{
		approvalService: approvalService,
		logger:          logger,
	}
}

// List godoc
// @Summary List approval requests
// @Description Administrators see every request, everyone else only the requests they made. Newest first.
// @Tags Approvals
// @Produce json
// @Param status query string false "Filter by status" Enums(pending, approved, rejected)
// @Success 200 {array} domain.ApprovalRequestDTO
// @Failure 400 {object} domain.APIError
// @Failure 401 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /approval-requests [get]
func (h *ApprovalHandler) List(w http.ResponseWriter, r *http.Request) {
	var status *domain.ApprovalStatus
	if s := r.URL.Query().Get("status"); s != "" {
		st := domain.ApprovalStatus(s)
		status = &st
	}

	requests, err := h.approvalService.List(r.Context(), status)
	if err != nil {
		respondServiceError(w, h.logger, err, "list approval requests")
		return
	}
	respondJSON(w, http.StatusOK, requests)
}

// Create godoc
// @Summary Request a discount approval
// @Tags Approvals
// @Accept json
// @Produce json
// @Param request body domain.CreateApprovalRequest true "Approval request"
// @Success 201 {object} domain.ApprovalRequestDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /approval-requests [post]
func (h *ApprovalHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateApprovalRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	dto, err := h.approvalService.Create(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "create approval request")
		return
	}
	respondJSON(w, http.StatusCreated, dto)
}

// Update godoc
// @Summary Decide or annotate an approval request
// @Description Partial update. A status decides the request with the caller as approver; approving applies the discount to the proposal.
// @Tags Approvals
// @Accept json
// @Produce json
// @Param id path string true "Approval request ID" format(uuid)
// @Param request body domain.UpdateApprovalRequest true "Changes"
// @Success 200 {object} domain.ApprovalRequestDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /approval-requests/{id} [patch]
func (h *ApprovalHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "approval request")
	if !ok {
		return
	}

	var req domain.UpdateApprovalRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	dto, err := h.approvalService.Update(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "update approval request")
		return
	}
	respondJSON(w, http.StatusOK, dto)
}
