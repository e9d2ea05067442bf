package mailer_test

import (
	"context"
	"testing"

	"github.com/brasmat/proposal-api/internal/config"
	"github.com/brasmat/proposal-api/internal/mailer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_Disabled(t *testing.T) {
	m := mailer.New(&config.MailConfig{Enabled: false}, zap.NewNop())
	assert.IsType(t, mailer.NoopMailer{}, m)
	assert.NoError(t, m.SendApprovalDecision(context.Background(), mailer.ApprovalDecision{ToEmail: "a@b.com"}))

	m = mailer.New(&config.MailConfig{Enabled: true}, zap.NewNop())
	assert.IsType(t, mailer.NoopMailer{}, m)
}

func TestNew_Enabled(t *testing.T) {
	m := mailer.New(&config.MailConfig{Enabled: true, Host: "smtp.example.com", Port: 587, From: "noreply@example.com"}, zap.NewNop())
	assert.IsType(t, &mailer.SMTPMailer{}, m)
}

func TestRenderApprovalDecision(t *testing.T) {
	t.Run("approved", func(t *testing.T) {
		d := mailer.ApprovalDecision{
			RequesterName:     "Ana",
			ProposalNumber:    "PROP-2026-0007",
			ApproverName:      "Carlos",
			Approved:          true,
			RequestedDiscount: "12.5",
			DecisionNote:      "Cliente estratégico",
		}

		body, err := mailer.RenderApprovalDecision(d)

		require.NoError(t, err)
		assert.Contains(t, body, "Olá Ana")
		assert.Contains(t, body, "<strong>aprovado</strong>")
		assert.Contains(t, body, "12.5%")
		assert.Contains(t, body, "Cliente estratégico")
		assert.NotContains(t, body, "Abrir proposta")
		assert.Equal(t, "Desconto aprovado: PROP-2026-0007", d.Subject())
	})

	t.Run("rejected escapes html", func(t *testing.T) {
		d := mailer.ApprovalDecision{
			RequesterName:  "<b>Bruno</b>",
			ProposalNumber: "PROP-2026-0008",
			ProposalURL:    "https://portal.example.com/propostas/1",
		}

		body, err := mailer.RenderApprovalDecision(d)

		require.NoError(t, err)
		assert.Contains(t, body, "<strong>recusado</strong>")
		assert.Contains(t, body, "&lt;b&gt;Bruno&lt;/b&gt;")
		assert.Contains(t, body, "Abrir proposta")
		assert.Equal(t, "Desconto recusado: PROP-2026-0008", d.Subject())
	})
}

func TestSMTPMailer_SkipsEmptyRecipient(t *testing.T) {
	m := mailer.New(&config.MailConfig{Enabled: true, Host: "smtp.invalid", Port: 587, From: "noreply@example.com"}, zap.NewNop())
	assert.NoError(t, m.SendApprovalDecision(context.Background(), mailer.ApprovalDecision{ProposalNumber: "X"}))
}
