package handler

import (
	"errors"
	"net/http"

	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/brasmat/proposal-api/internal/service"
	"go.uber.org/zap"
)

// AssistantHandler proxies questions to the chat assistant
type AssistantHandler struct {
	assistantService *service.AssistantService
	logger           *zap.Logger
}

func NewAssistantHandler(assistantService *service.AssistantService, logger *zap.Logger) *AssistantHandler {
	return &AssistantHandler{
		assistantService: assistantService,
		logger:           logger,
	}
}

// Chat godoc
// @Summary Ask the sales assistant
// @Description Provider failures are answered with {"error": ...} and status 500; provider details are never returned.
// @Tags Assistant
// @Accept json
// @Produce json
// @Param request body domain.AssistantChatRequest true "Question and context"
// @Success 200 {object} domain.AssistantChatResponse
// @Failure 400 {object} domain.APIError
// @Failure 500 {object} domain.AssistantChatResponse
// @Security BearerAuth
// @Router /assistant/chat [post]
func (h *AssistantHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req domain.AssistantChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.assistantService.Chat(r.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrUpstream) {
			h.logger.Warn("assistant request failed", zap.Error(err))
			respondJSON(w, http.StatusInternalServerError, domain.AssistantChatResponse{
				Error: "O assistente está indisponível no momento. Tente novamente mais tarde.",
			})
			return
		}
		respondServiceError(w, h.logger, err, "ask assistant")
		return
	}
	respondJSON(w, http.StatusOK, resp)
}
