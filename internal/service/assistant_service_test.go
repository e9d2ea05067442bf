package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/brasmat/proposal-api/internal/assistant"
	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/brasmat/proposal-api/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCompleter struct {
	reply string
	err   error
	got   []assistant.Message
}

func (f *fakeCompleter) Complete(_ context.Context, msgs []assistant.Message) (string, error) {
	f.got = msgs
	return f.reply, f.err
}

func TestAssistantService_Chat(t *testing.T) {
	seller := newUser(domain.RoleInternalSeller, "Carla Vendas")

	t.Run("forwards the question with its context", func(t *testing.T) {
		completer := &fakeCompleter{reply: "O prazo de entrega é de 5 dias úteis."}
		svc := service.NewAssistantService(completer, zap.NewNop())

		resp, err := svc.Chat(ctxFor(seller), &domain.AssistantChatRequest{
			Message:         "  Qual o prazo de entrega?  ",
			ProposalData:    map[string]interface{}{"number": "PROP-2026-0001"},
			ClientQuestions: []string{"Tem frete grátis?", "   "},
		})
		require.NoError(t, err)
		assert.Equal(t, "O prazo de entrega é de 5 dias úteis.", resp.Response)

		require.NotEmpty(t, completer.got)
		assert.Equal(t, "system", completer.got[0].Role)
		last := completer.got[len(completer.got)-1]
		assert.Equal(t, "user", last.Role)
		assert.Equal(t, "Qual o prazo de entrega?", last.Content)
		assert.Len(t, completer.got, 4)
	})

	t.Run("provider failure is hidden", func(t *testing.T) {
		svc := service.NewAssistantService(&fakeCompleter{err: errors.New("429 rate limited by provider")}, zap.NewNop())
		_, err := svc.Chat(ctxFor(seller), &domain.AssistantChatRequest{Message: "Oi"})
		assert.ErrorIs(t, err, service.ErrAssistantUnavailable)
		assert.NotContains(t, err.Error(), "429")
	})

	t.Run("no provider", func(t *testing.T) {
		svc := service.NewAssistantService(nil, zap.NewNop())
		_, err := svc.Chat(ctxFor(seller), &domain.AssistantChatRequest{Message: "Oi"})
		assert.ErrorIs(t, err, service.ErrAssistantUnavailable)
	})

	t.Run("empty question", func(t *testing.T) {
		svc := service.NewAssistantService(&fakeCompleter{}, zap.NewNop())
		_, err := svc.Chat(ctxFor(seller), &domain.AssistantChatRequest{})
		assert.ErrorIs(t, err, service.ErrValidation)
	})

	t.Run("requires a user", func(t *testing.T) {
		svc := service.NewAssistantService(&fakeCompleter{}, zap.NewNop())
		_, err := svc.Chat(context.Background(), &domain.AssistantChatRequest{Message: "Oi"})
		assert.ErrorIs(t, err, service.ErrUnauthorized)
	})
}
