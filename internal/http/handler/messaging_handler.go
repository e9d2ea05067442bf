package handler

import (
	"net/http"

	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/brasmat/proposal-api/internal/service"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MessagingHandler sends WhatsApp messages and proposal follow-ups
type MessagingHandler struct {
	messagingService *service.MessagingService
	logger           *zap.Logger
}

// NewMessagingHandler creates a new MessagingHandler instance
func NewMessagingHandler(messagingService *service.MessagingService, logger *zap.Logger) *MessagingHandler {
	return &MessagingHandler{
		messagingService: messagingService,
		logger:           logger,
	}
}

// Send godoc
// @Summary Send a WhatsApp message
// @Description The phone is normalised to E.164. Gateway failures are recorded in the history and reported as 502.
// @Tags Messaging
// @Accept json
// @Produce json
// @Param request body domain.SendWhatsAppRequest true "Message"
// @Success 201 {object} domain.WhatsAppMessageDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 502 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /whatsapp/send [post]
func (h *MessagingHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req domain.SendWhatsAppRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	msg, err := h.messagingService.Send(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "send message")
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}

// History godoc
// @Summary WhatsApp message history
// @Tags Messaging
// @Produce json
// @Param proposalId query string false "Only messages about this proposal" format(uuid)
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 200)" default(20)
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.WhatsAppMessageDTO}
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /whatsapp/messages [get]
func (h *MessagingHandler) History(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r, 200)

	var proposalID *uuid.UUID
	if p := r.URL.Query().Get("proposalId"); p != "" {
		id, err := uuid.Parse(p)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid proposalId: must be a valid UUID")
			return
		}
		proposalID = &id
	}

	result, err := h.messagingService.History(r.Context(), proposalID, page, pageSize)
	if err != nil {
		respondServiceError(w, h.logger, err, "list messages")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// ProposalMessages godoc
// @Summary WhatsApp messages about a proposal
// @Tags Messaging
// @Produce json
// @Param id path string true "Proposal ID" format(uuid)
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.WhatsAppMessageDTO}
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /proposals/{id}/messages [get]
func (h *MessagingHandler) ProposalMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "proposal")
	if !ok {
		return
	}
	page, pageSize := parsePagination(r, 200)

	result, err := h.messagingService.History(r.Context(), &id, page, pageSize)
	if err != nil {
		respondServiceError(w, h.logger, err, "list messages")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// FollowUp godoc
// @Summary Follow up with the client
// @Description Sends a reminder about an open proposal now, or queues it when delayMinutes is set.
// @Tags Messaging
// @Accept json
// @Produce json
// @Param id path string true "Proposal ID" format(uuid)
// @Param request body domain.FollowUpRequest false "Custom text and delay"
// @Success 200 {object} domain.FollowUpDTO "Sent now"
// @Success 202 {object} domain.FollowUpDTO "Queued"
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Failure 502 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /proposals/{id}/follow-up [post]
func (h *MessagingHandler) FollowUp(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "proposal")
	if !ok {
		return
	}

	var req domain.FollowUpRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}

	dto, err := h.messagingService.FollowUp(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "follow up")
		return
	}

	status := http.StatusOK
	if dto.Queued {
		status = http.StatusAccepted
	}
	respondJSON(w, status, dto)
}
