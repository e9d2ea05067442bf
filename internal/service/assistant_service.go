package service

import (
	"context"
	"errors"

	"github.com/brasmat/proposal-api/internal/assistant"
	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/brasmat/proposal-api/internal/validation"
	"go.uber.org/zap"
)

// Completer answers a chat conversation
type Completer interface {
	Complete(ctx context.Context, msgs []assistant.Message) (string, error)
}

// AssistantService proxies proposal questions to the language model provider.
// Provider errors are logged and replaced by ErrAssistantUnavailable.
type AssistantService struct {
	completer Completer
	logger    *zap.Logger
}

// NewAssistantService creates a new AssistantService instance
func NewAssistantService(completer Completer, logger *zap.Logger) *AssistantService {
	return &AssistantService{completer: completer, logger: logger}
}

// Chat answers one question with the proposal data and earlier client questions as context
func (s *AssistantService) Chat(ctx context.Context, req *domain.AssistantChatRequest) (*domain.AssistantChatResponse, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkRequest(req); err != nil {
		return nil, err
	}
	question := validation.SanitizeMultiline(req.Message)
	if question == "" {
		return nil, validationError("message", "is required")
	}

	questions := make([]string, 0, len(req.ClientQuestions))
	for _, q := range req.ClientQuestions {
		if q = validation.SanitizeText(q); q != "" {
			questions = append(questions, q)
		}
	}

	if s.completer == nil {
		return nil, ErrAssistantUnavailable
	}
	reply, err := s.completer.Complete(ctx, assistant.BuildMessages(question, req.ProposalData, questions))
	if err != nil {
		fields := []zap.Field{zap.String("user_id", user.UserID.String()), zap.Error(err)}
		if errors.Is(err, assistant.ErrNotConfigured) {
			s.logger.Warn("assistant called without provider configuration", fields...)
		} else {
			s.logger.Error("assistant provider failed", fields...)
		}
		return nil, ErrAssistantUnavailable
	}

	return &domain.AssistantChatResponse{Response: reply}, nil
}
