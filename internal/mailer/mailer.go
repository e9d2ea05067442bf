// Package mailer sends transactional emails over SMTP.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/brasmat/proposal-api/internal/config"
	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// ApprovalDecision is the content of an approval decision email
type ApprovalDecision struct {
	ToEmail           string
	RequesterName     string
	ProposalNumber    string
	ApproverName      string
	Approved          bool
	RequestedDiscount string
	DecisionNote      string
	ProposalURL       string
}

// Mailer sends approval decision emails
type Mailer interface {
	SendApprovalDecision(ctx context.Context, decision ApprovalDecision) error
}

// New returns an SMTP mailer, or a no-op mailer when mail is disabled
func New(cfg *config.MailConfig, logger *zap.Logger) Mailer {
	if cfg == nil || !cfg.Enabled || cfg.Host == "" {
		logger.Info("mail disabled, approval decisions are not emailed")
		return NoopMailer{}
	}
	return &SMTPMailer{cfg: *cfg, logger: logger}
}

// NoopMailer drops every message
type NoopMailer struct{}

// SendApprovalDecision does nothing
func (NoopMailer) SendApprovalDecision(ctx context.Context, decision ApprovalDecision) error {
	return nil
}

// SMTPMailer delivers through go-mail
type SMTPMailer struct {
	cfg    config.MailConfig
	logger *zap.Logger
}

var approvalTemplate = template.Must(template.New("approval").Parse(`<!DOCTYPE html>
<html lang="pt-BR">
<body style="font-family: Arial, sans-serif; color: #1f2937;">
  <p>Olá {{.RequesterName}},</p>
  {{if .Approved}}
  <p>O desconto de <strong>{{.RequestedDiscount}}%</strong> na proposta <strong>{{.ProposalNumber}}</strong> foi <strong>aprovado</strong> por {{.ApproverName}}.</p>
  {{else}}
  <p>O desconto de <strong>{{.RequestedDiscount}}%</strong> na proposta <strong>{{.ProposalNumber}}</strong> foi <strong>recusado</strong> por {{.ApproverName}}.</p>
  {{end}}
  {{if .DecisionNote}}<p>Observação: {{.DecisionNote}}</p>{{end}}
  {{if .ProposalURL}}<p><a href="{{.ProposalURL}}">Abrir proposta</a></p>{{end}}
</body>
</html>`))

// Subject is the email subject line for a decision
func (d ApprovalDecision) Subject() string {
	if d.Approved {
		return fmt.Sprintf("Desconto aprovado: %s", d.ProposalNumber)
	}
	return fmt.Sprintf("Desconto recusado: %s", d.ProposalNumber)
}

// RenderApprovalDecision renders the HTML body
func RenderApprovalDecision(d ApprovalDecision) (string, error) {
	var buf bytes.Buffer
	if err := approvalTemplate.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("render approval email: %w", err)
	}
	return buf.String(), nil
}

// SendApprovalDecision renders and sends the decision email
func (m *SMTPMailer) SendApprovalDecision(ctx context.Context, d ApprovalDecision) error {
	if d.ToEmail == "" {
		return nil
	}

	body, err := RenderApprovalDecision(d)
	if err != nil {
		return err
	}

	msg := gomail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(d.ToEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(d.Subject())
	msg.SetBodyString(gomail.TypeTextHTML, body)

	opts := []gomail.Option{
		gomail.WithPort(m.cfg.Port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15 * time.Second),
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(m.cfg.Username),
			gomail.WithPassword(m.cfg.Password),
		)
	}

	client, err := gomail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	m.logger.Info("approval decision email sent",
		zap.String("proposal_number", d.ProposalNumber),
		zap.Bool("approved", d.Approved),
	)
	return nil
}
