package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/brasmat/proposal-api/internal/followup"
	"github.com/brasmat/proposal-api/internal/mapper"
	"github.com/brasmat/proposal-api/internal/proposal"
	"github.com/brasmat/proposal-api/internal/repository"
	"github.com/brasmat/proposal-api/internal/validation"
	"github.com/brasmat/proposal-api/internal/whatsapp"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MessageSender delivers WhatsApp text messages
type MessageSender interface {
	Send(ctx context.Context, msg whatsapp.Message) (*whatsapp.Result, error)
	Region() string
}

// FollowUpQueue schedules follow-ups for later delivery
type FollowUpQueue interface {
	Enqueue(ctx context.Context, payload followup.Payload, runAt time.Time) error
}

// MessagingService sends WhatsApp messages and keeps their history. Delivery failures are
// recorded and reported, they never panic the caller.
type MessagingService struct {
	messageRepo     *repository.WhatsAppMessageRepository
	proposalRepo    *repository.ProposalRepository
	clientRepo      *repository.ClientRepository
	interactionRepo *repository.InteractionRepository
	sender          MessageSender
	queue           FollowUpQueue
	fromPhone       string
	logger          *zap.Logger
	now             Clock
}

// NewMessagingService creates a new MessagingService instance. sender and queue may be nil
// when WhatsApp or redis are not configured.
func NewMessagingService(
	messageRepo *repository.WhatsAppMessageRepository,
	proposalRepo *repository.ProposalRepository,
	clientRepo *repository.ClientRepository,
	interactionRepo *repository.InteractionRepository,
	sender MessageSender,
	queue FollowUpQueue,
	fromPhone string,
	logger *zap.Logger,
) *MessagingService {
	return &MessagingService{
		messageRepo:     messageRepo,
		proposalRepo:    proposalRepo,
		clientRepo:      clientRepo,
		interactionRepo: interactionRepo,
		sender:          sender,
		queue:           queue,
		fromPhone:       fromPhone,
		logger:          logger,
		now:             systemClock,
	}
}

// WithClock replaces the wall clock, used by tests
func (s *MessagingService) WithClock(clock Clock) *MessagingService {
	s.now = clock
	return s
}

func (s *MessagingService) region() string {
	if s.sender == nil {
		return whatsapp.DefaultRegion
	}
	return s.sender.Region()
}

// Send delivers a free-text message and records it in the history
func (s *MessagingService) Send(ctx context.Context, req *domain.SendWhatsAppRequest) (*domain.WhatsAppMessageDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if !user.IsStaff() {
		return nil, kindError(ErrPermissionDenied, "clients cannot send messages")
	}
	if err := checkRequest(req); err != nil {
		return nil, err
	}
	text := validation.SanitizeMultiline(req.Message)
	if text == "" {
		return nil, validationError("message", "is required")
	}
	phone, err := whatsapp.NormalizePhone(req.ToPhone, s.region())
	if err != nil {
		return nil, validationError("toPhone", "is not a valid phone number")
	}

	if req.ProposalID != nil {
		if _, err := s.proposalRepo.GetVisible(ctx, *req.ProposalID, viewerOf(user)); err != nil {
			if isNotFound(err) {
				return nil, ErrProposalNotFound
			}
			return nil, persistenceError("get proposal", err)
		}
	}

	record, err := s.deliver(ctx, req.ProposalID, phone, text, user.Actor(), user.DisplayName)
	if err != nil {
		return nil, err
	}
	dto := mapper.ToWhatsAppMessageDTO(record)
	return &dto, nil
}

// deliver sends through the gateway and stores the outcome. The record is returned even
// when delivery failed.
func (s *MessagingService) deliver(ctx context.Context, proposalID *uuid.UUID, phone, text string, sentBy *uuid.UUID, sentByName string) (*domain.WhatsAppMessage, error) {
	now := s.now()
	record := &domain.WhatsAppMessage{
		ProposalID: proposalID,
		ToPhone:    phone,
		FromPhone:  s.fromPhone,
		Message:    text,
		SentByID:   sentBy,
		SentAt:     now,
	}

	var sendErr error
	if s.sender == nil {
		sendErr = whatsapp.ErrNotConfigured
	} else {
		var result *whatsapp.Result
		result, sendErr = s.sender.Send(ctx, whatsapp.Message{ToPhone: phone, FromPhone: s.fromPhone, Text: text})
		if sendErr == nil {
			record.ProviderMessageID = result.MessageID
		}
	}

	if sendErr != nil {
		record.Status = domain.MessageStatusFailed
		record.Error = truncate(describeDeliveryError(sendErr), 500)
		s.logger.Error("whatsapp delivery failed",
			zap.String("to", phone),
			zap.Error(sendErr))
	} else {
		record.Status = domain.MessageStatusSent
	}

	// History is written with a context that outlives a cancelled request
	storeCtx := context.WithoutCancel(ctx)
	if err := s.messageRepo.Create(storeCtx, record); err != nil {
		s.logger.Error("failed to store whatsapp message", zap.Error(err))
		if sendErr == nil {
			return nil, persistenceError("store message", err)
		}
		return nil, fmt.Errorf("%w: %s", ErrMessagingUnavailable, record.Error)
	}

	if sendErr != nil {
		return record, fmt.Errorf("%w: %s", ErrMessagingUnavailable, record.Error)
	}

	if proposalID != nil {
		if err := s.interactionRepo.Create(storeCtx, &domain.ProposalInteraction{
			ProposalID:  *proposalID,
			Type:        domain.InteractionMessage,
			Description: truncate(fmt.Sprintf("Mensagem WhatsApp enviada para +%s: %s", phone, text), 1000),
			UserID:      sentBy,
			UserName:    sentByName,
			OccurredAt:  now,
		}); err != nil {
			s.logger.Warn("failed to log message interaction", zap.Error(err))
		}
	}
	return record, nil
}

func describeDeliveryError(err error) string {
	var gatewayErr *whatsapp.GatewayError
	switch {
	case errors.Is(err, whatsapp.ErrNotConfigured):
		return "WhatsApp não está configurado"
	case errors.Is(err, context.DeadlineExceeded):
		return "tempo de envio esgotado"
	case errors.As(err, &gatewayErr):
		return fmt.Sprintf("gateway respondeu %d", gatewayErr.StatusCode)
	}
	return err.Error()
}

// History lists sent and failed messages, optionally for one proposal
func (s *MessagingService) History(ctx context.Context, proposalID *uuid.UUID, page, pageSize int) (*domain.PaginatedResponse, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if !user.IsStaff() {
		return nil, kindError(ErrPermissionDenied, "clients cannot read message history")
	}

	messages, total, err := s.messageRepo.List(ctx, proposalID, page, pageSize)
	if err != nil {
		return nil, persistenceError("list messages", err)
	}
	dtos := make([]domain.WhatsAppMessageDTO, len(messages))
	for i := range messages {
		dtos[i] = mapper.ToWhatsAppMessageDTO(&messages[i])
	}
	return paginated(dtos, total, page, pageSize), nil
}

// FollowUp contacts the client of an open proposal, now or after req.DelayMinutes
func (s *MessagingService) FollowUp(ctx context.Context, proposalID uuid.UUID, req *domain.FollowUpRequest) (*domain.FollowUpDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if !user.IsStaff() {
		return nil, kindError(ErrPermissionDenied, "clients cannot send follow-ups")
	}
	if err := checkRequest(req); err != nil {
		return nil, err
	}

	p, err := s.proposalRepo.GetVisible(ctx, proposalID, viewerOf(user))
	if err != nil {
		if isNotFound(err) {
			return nil, ErrProposalNotFound
		}
		return nil, persistenceError("get proposal", err)
	}
	if !p.Status.IsOpen() {
		return nil, ErrProposalNotOpen
	}
	client, err := s.clientOf(ctx, p)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(client.Phone) == "" {
		return nil, ErrClientPhoneMissing
	}

	message := validation.SanitizeMultiline(req.Message)

	if req.DelayMinutes > 0 {
		if s.queue == nil {
			return nil, fmt.Errorf("%w: follow-up queue is not configured", ErrMessagingUnavailable)
		}
		runAt := s.now().Add(time.Duration(req.DelayMinutes) * time.Minute)
		payload := followup.Payload{
			ProposalID:  p.ID,
			Message:     message,
			Reason:      followup.ReasonManual,
			RequestedBy: user.Actor(),
		}
		if err := s.queue.Enqueue(ctx, payload, runAt); err != nil {
			s.logger.Error("failed to queue follow-up", zap.String("proposal_id", p.ID.String()), zap.Error(err))
			return nil, fmt.Errorf("%w: follow-up could not be queued", ErrMessagingUnavailable)
		}
		scheduled := runAt.UTC().Format(time.RFC3339)
		return &domain.FollowUpDTO{Queued: true, ScheduledFor: &scheduled}, nil
	}

	if message == "" {
		message = followUpText(p, client, s.now())
	}
	phone, err := whatsapp.NormalizePhone(client.Phone, s.region())
	if err != nil {
		return nil, validationError("phone", "client phone number is not valid")
	}

	id := p.ID
	record, err := s.deliver(ctx, &id, phone, message, user.Actor(), user.DisplayName)
	if err != nil {
		return nil, err
	}
	dto := mapper.ToWhatsAppMessageDTO(record)
	return &domain.FollowUpDTO{Message: &dto}, nil
}

// SendFollowUp delivers a queued follow-up. Proposals decided or expired in the meantime are
// skipped without error.
func (s *MessagingService) SendFollowUp(ctx context.Context, payload followup.Payload) error {
	p, err := s.proposalRepo.GetByID(ctx, payload.ProposalID)
	if err != nil {
		if isNotFound(err) {
			s.logger.Warn("follow-up for unknown proposal", zap.String("proposal_id", payload.ProposalID.String()))
			return nil
		}
		return persistenceError("get proposal", err)
	}

	now := s.now()
	if !p.Status.IsOpen() || p.ValidUntil.Before(now) {
		s.logger.Info("follow-up skipped, proposal no longer open",
			zap.String("proposal_id", p.ID.String()),
			zap.String("status", string(p.Status)))
		return nil
	}

	client, err := s.clientOf(ctx, p)
	if err != nil {
		return err
	}
	phone, err := whatsapp.NormalizePhone(client.Phone, s.region())
	if err != nil {
		s.logger.Warn("follow-up skipped, client phone invalid",
			zap.String("proposal_id", p.ID.String()),
			zap.String("client_id", client.ID.String()))
		return nil
	}

	message := payload.Message
	if message == "" {
		message = followUpText(p, client, now)
	}

	id := p.ID
	_, err = s.deliver(ctx, &id, phone, message, payload.RequestedBy, "")
	return err
}

func (s *MessagingService) clientOf(ctx context.Context, p *domain.Proposal) (*domain.Client, error) {
	if p.Client != nil {
		return p.Client, nil
	}
	client, err := s.clientRepo.GetByID(ctx, p.ClientID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrClientNotFound
		}
		return nil, persistenceError("get client", err)
	}
	return client, nil
}

// followUpText is the default Portuguese reminder
func followUpText(p *domain.Proposal, client *domain.Client, now time.Time) string {
	days := proposal.DaysRemaining(p.ValidUntil, now)
	return fmt.Sprintf("Olá, %s! A proposta %s é válida até %s (%d dia(s) restante(s)). Ficamos à disposição para qualquer dúvida.",
		client.Name, p.Number, p.ValidUntil.Format("02/01/2006"), days)
}
