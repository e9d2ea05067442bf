package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/brasmat/proposal-api/internal/auth"
	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/brasmat/proposal-api/internal/layout"
	"github.com/brasmat/proposal-api/internal/mapper"
	"github.com/brasmat/proposal-api/internal/proposal"
	"github.com/brasmat/proposal-api/internal/repository"
	"github.com/brasmat/proposal-api/internal/validation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProposalService handles proposal creation, delivery and client decisions.
// Validity is evaluated again on every read and never stored.
type ProposalService struct {
	db               *gorm.DB
	proposalRepo     *repository.ProposalRepository
	interactionRepo  *repository.InteractionRepository
	clientRepo       *repository.ClientRepository
	numberRepo       *repository.NumberSequenceRepository
	notificationRepo *repository.NotificationRepository
	discounts        *DiscountRuleService
	logger           *zap.Logger
	now              Clock
}

// NewProposalService creates a new ProposalService instance
func NewProposalService(
	db *gorm.DB,
	proposalRepo *repository.ProposalRepository,
	interactionRepo *repository.InteractionRepository,
	clientRepo *repository.ClientRepository,
	numberRepo *repository.NumberSequenceRepository,
	notificationRepo *repository.NotificationRepository,
	discounts *DiscountRuleService,
	logger *zap.Logger,
) *ProposalService {
	return &ProposalService{
		db:               db,
		proposalRepo:     proposalRepo,
		interactionRepo:  interactionRepo,
		clientRepo:       clientRepo,
		numberRepo:       numberRepo,
		notificationRepo: notificationRepo,
		discounts:        discounts,
		logger:           logger,
		now:              systemClock,
	}
}

// WithClock replaces the wall clock, used by tests
func (s *ProposalService) WithClock(clock Clock) *ProposalService {
	s.now = clock
	return s
}

// Create validates the payload, checks the discount against the caller's rule and stores a
// draft proposal with a fresh PROP-YYYY-NNNN number
func (s *ProposalService) Create(ctx context.Context, req *domain.CreateProposalRequest) (*domain.ProposalDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if !user.IsStaff() {
		return nil, kindError(ErrPermissionDenied, "clients cannot create proposals")
	}

	now := s.now()
	if err := validation.ValidateProposalPayload(req, now); err != nil {
		return nil, fieldErrors(err)
	}
	validUntil, _ := validation.ParseDate(req.ValidUntil)

	client, err := s.clientRepo.GetByID(ctx, req.ClientID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrClientNotFound
		}
		return nil, persistenceError("get client", err)
	}

	discount := decimal.NewFromFloat(req.DiscountPercent).Round(2)
	decision, err := s.discounts.CheckDiscount(ctx, user.Role, discount)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, ErrDiscountNotPermitted
	}

	// The sequence runs its own transaction, so it is drawn before ours opens
	seq, err := s.numberRepo.GetNextNumber(ctx, now.Year())
	if err != nil {
		return nil, persistenceError("next proposal number", err)
	}

	p := &domain.Proposal{
		Number:          proposal.FormatNumber(now.Year(), seq),
		ClientID:        client.ID,
		ClientName:      client.Name,
		DiscountPercent: discount,
		ValidUntil:      validUntil.UTC(),
		Observations:    validation.SanitizeMultiline(req.Observations),
		Status:          domain.ProposalStatusDraft,
		ProductGroup:    req.ProductGroup,
		CreatedByID:     user.UserID,
		CreatedByName:   user.DisplayName,
	}

	subtotal := decimal.Zero
	for i, item := range req.Items {
		quantity := decimal.NewFromFloat(item.Quantity)
		unitPrice := decimal.NewFromFloat(item.UnitPrice).Round(2)
		total := mapper.CalculateItemTotal(quantity, unitPrice)
		subtotal = subtotal.Add(total)
		p.Items = append(p.Items, domain.ProposalItem{
			Position:    i,
			Description: validation.SanitizeText(item.Description),
			Quantity:    quantity,
			UnitPrice:   unitPrice,
			Total:       total,
			Solution:    validation.SanitizeText(item.Solution),
		})
	}
	p.Subtotal = subtotal
	p.TotalValue = mapper.ApplyDiscount(subtotal, discount)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.proposalRepo.WithTx(tx).Create(ctx, p); err != nil {
			return err
		}
		return s.interactionRepo.WithTx(tx).Create(ctx, s.interaction(p.ID, user, domain.InteractionCreated,
			fmt.Sprintf("Proposta %s criada", p.Number), now))
	})
	if err != nil {
		return nil, persistenceError("create proposal", err)
	}

	s.logger.Info("proposal created",
		zap.String("proposal_id", p.ID.String()),
		zap.String("number", p.Number),
		zap.String("client_id", client.ID.String()),
		zap.String("total", p.TotalValue.String()),
	)

	dto := mapper.ToProposalDTO(p, proposal.EvaluateAt(p.ValidUntil, user.Role, now))
	return &dto, nil
}

// GetByID returns a proposal with its validity evaluated for the caller. The first time a
// client opens a sent proposal it is marked as viewed.
func (s *ProposalService) GetByID(ctx context.Context, id uuid.UUID) (*domain.ProposalDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()

	p, exp, err := s.loadVisible(ctx, user, id, now)
	if err != nil {
		return nil, err
	}

	if user.Role == domain.RoleClient && p.Status == domain.ProposalStatusSent {
		if err := s.markViewed(ctx, p, user, now); err != nil {
			s.logger.Warn("failed to mark proposal as viewed",
				zap.String("proposal_id", p.ID.String()),
				zap.Error(err))
		}
	}

	dto := mapper.ToProposalDTO(p, exp)
	return &dto, nil
}

// loadVisible loads a proposal in the caller's scope. Clients get ErrProposalHidden once the
// proposal is past its validity.
func (s *ProposalService) loadVisible(ctx context.Context, user *auth.UserContext, id uuid.UUID, now time.Time) (*domain.Proposal, proposal.Expiration, error) {
	p, exp, err := s.load(ctx, user, id, now)
	if err != nil {
		return nil, exp, err
	}
	if user.Role == domain.RoleClient && (!exp.CanView || p.Status == domain.ProposalStatusExpired) {
		return nil, exp, ErrProposalHidden
	}
	return p, exp, nil
}

func (s *ProposalService) load(ctx context.Context, user *auth.UserContext, id uuid.UUID, now time.Time) (*domain.Proposal, proposal.Expiration, error) {
	p, err := s.proposalRepo.GetVisible(ctx, id, viewerOf(user))
	if err != nil {
		if isNotFound(err) {
			return nil, proposal.Expiration{}, ErrProposalNotFound
		}
		return nil, proposal.Expiration{}, persistenceError("get proposal", err)
	}
	return p, proposal.EvaluateAt(p.ValidUntil, user.Role, now), nil
}

func (s *ProposalService) markViewed(ctx context.Context, p *domain.Proposal, user *auth.UserContext, now time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		changed, err := s.proposalRepo.WithTx(tx).TransitionStatus(ctx, p.ID,
			[]domain.ProposalStatus{domain.ProposalStatusSent}, domain.ProposalStatusViewed, now)
		if err != nil || !changed {
			return err
		}
		p.Status = domain.ProposalStatusViewed
		return s.interactionRepo.WithTx(tx).Create(ctx, s.interaction(p.ID, user, domain.InteractionViewed,
			"Proposta visualizada pelo cliente", now))
	})
}

// List returns proposals in the caller's scope. Clients never see expired proposals.
func (s *ProposalService) List(ctx context.Context, filters repository.ProposalFilters, sort repository.SortConfig, page, pageSize int) (*domain.PaginatedResponse, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()

	if user.Role == domain.RoleClient {
		filters.ValidAt = &now
	}
	filters.Search = validation.SanitizeText(filters.Search)

	proposals, total, err := s.proposalRepo.List(ctx, viewerOf(user), filters, sort, page, pageSize)
	if err != nil {
		return nil, persistenceError("list proposals", err)
	}

	dtos := make([]domain.ProposalDTO, len(proposals))
	for i := range proposals {
		dtos[i] = mapper.ToProposalDTO(&proposals[i], proposal.EvaluateAt(proposals[i].ValidUntil, user.Role, now))
	}
	return paginated(dtos, total, page, pageSize), nil
}

// Send delivers a draft to the client
func (s *ProposalService) Send(ctx context.Context, id uuid.UUID) (*domain.ProposalDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if !user.IsStaff() {
		return nil, kindError(ErrPermissionDenied, "clients cannot send proposals")
	}
	now := s.now()

	p, exp, err := s.loadVisible(ctx, user, id, now)
	if err != nil {
		return nil, err
	}

	switch {
	case p.Status == domain.ProposalStatusAccepted || p.Status == domain.ProposalStatusRejected:
		return nil, ErrProposalAlreadyDecided
	case p.Status != domain.ProposalStatusDraft:
		return nil, ErrStatusTransitionInvalid
	case exp.IsExpired:
		return nil, ErrProposalExpired
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		changed, err := s.proposalRepo.WithTx(tx).TransitionStatus(ctx, p.ID,
			[]domain.ProposalStatus{domain.ProposalStatusDraft}, domain.ProposalStatusSent, now)
		if err != nil {
			return persistenceError("send proposal", err)
		}
		if !changed {
			return ErrStatusTransitionInvalid
		}
		if err := s.interactionRepo.WithTx(tx).Create(ctx, s.interaction(p.ID, user, domain.InteractionSent,
			"Proposta enviada ao cliente", now)); err != nil {
			return persistenceError("log interaction", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.Status = domain.ProposalStatusSent
	p.SentAt = &now

	s.logger.Info("proposal sent",
		zap.String("proposal_id", p.ID.String()),
		zap.String("number", p.Number))

	dto := mapper.ToProposalDTO(p, exp)
	return &dto, nil
}

// Accept records the client's acceptance
func (s *ProposalService) Accept(ctx context.Context, id uuid.UUID, req *domain.ProposalDecisionRequest) (*domain.ProposalDTO, error) {
	return s.decide(ctx, id, proposal.ActionAccept, req)
}

// Reject records the client's refusal
func (s *ProposalService) Reject(ctx context.Context, id uuid.UUID, req *domain.ProposalDecisionRequest) (*domain.ProposalDTO, error) {
	return s.decide(ctx, id, proposal.ActionReject, req)
}

// decide applies a client action. Only the client, or an integration acting for it with the
// api_service role, may decide; staff cannot answer on the client's behalf. The status change,
// the interaction and the notification to the creator commit together; of two concurrent
// decisions only one changes the row.
func (s *ProposalService) decide(ctx context.Context, id uuid.UUID, action proposal.Action, req *domain.ProposalDecisionRequest) (*domain.ProposalDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if !user.HasAnyRole(domain.RoleClient, domain.RoleAPIService) {
		return nil, kindError(ErrPermissionDenied, "only the client can decide a proposal")
	}
	if req == nil {
		req = &domain.ProposalDecisionRequest{}
	}
	if err := checkRequest(req); err != nil {
		return nil, err
	}
	now := s.now()

	// Expired proposals answer with ErrProposalExpired here, even to clients
	p, exp, err := s.load(ctx, user, id, now)
	if err != nil {
		return nil, err
	}

	if p.Status == domain.ProposalStatusDraft {
		return nil, ErrProposalNotSent
	}
	next, err := proposal.Transition(proposal.ClientStateOf(p.Status), action)
	switch {
	case errors.Is(err, proposal.ErrTerminalState) && p.Status != domain.ProposalStatusExpired:
		return nil, ErrProposalAlreadyDecided
	case p.Status == domain.ProposalStatusExpired || exp.IsExpired:
		return nil, ErrProposalExpired
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	status := proposal.PersistedStatus(next)

	description := action.Description()
	if comment := validation.SanitizeText(req.Comment); comment != "" {
		description += ": " + comment
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		changed, err := s.proposalRepo.WithTx(tx).TransitionStatus(ctx, p.ID,
			[]domain.ProposalStatus{domain.ProposalStatusSent, domain.ProposalStatusViewed}, status, now)
		if err != nil {
			return persistenceError("decide proposal", err)
		}
		if !changed {
			return ErrProposalAlreadyDecided
		}
		if err := s.interactionRepo.WithTx(tx).Create(ctx, s.interaction(p.ID, user, action.InteractionType(), description, now)); err != nil {
			return persistenceError("log interaction", err)
		}
		if err := s.notificationRepo.WithTx(tx).Create(ctx, decisionNotification(p, action)); err != nil {
			return persistenceError("notify creator", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.Status = status
	p.DecidedAt = &now

	s.logger.Info("proposal decided",
		zap.String("proposal_id", p.ID.String()),
		zap.String("number", p.Number),
		zap.String("status", string(status)),
		zap.String("user_id", user.UserID.String()))

	dto := mapper.ToProposalDTO(p, exp)
	return &dto, nil
}

func decisionNotification(p *domain.Proposal, action proposal.Action) *domain.Notification {
	notificationType := domain.NotificationTypeProposalRejected
	title := "Proposta recusada"
	verb := "recusada"
	if action == proposal.ActionAccept {
		notificationType = domain.NotificationTypeProposalAccepted
		title = "Proposta aceita"
		verb = "aceita"
	}
	id := p.ID
	return newNotification(p.CreatedByID, notificationType, title,
		fmt.Sprintf("A proposta %s para %s foi %s pelo cliente.", p.Number, p.ClientName, verb),
		"proposal", &id)
}

// Interactions returns the interaction log of a proposal, oldest first
func (s *ProposalService) Interactions(ctx context.Context, id uuid.UUID) ([]domain.InteractionDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.loadVisible(ctx, user, id, s.now()); err != nil {
		return nil, err
	}

	interactions, err := s.interactionRepo.ListByProposal(ctx, id)
	if err != nil {
		return nil, persistenceError("list interactions", err)
	}
	dtos := make([]domain.InteractionDTO, len(interactions))
	for i := range interactions {
		dtos[i] = mapper.ToInteractionDTO(&interactions[i])
	}
	return dtos, nil
}

// AddNote appends an internal note to the interaction log
func (s *ProposalService) AddNote(ctx context.Context, id uuid.UUID, req *domain.AddNoteRequest) (*domain.InteractionDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if !user.IsStaff() {
		return nil, kindError(ErrPermissionDenied, "clients cannot add notes")
	}
	if err := checkRequest(req); err != nil {
		return nil, err
	}
	note := validation.SanitizeMultiline(req.Note)
	if strings.TrimSpace(note) == "" {
		return nil, validationError("note", "is required")
	}

	now := s.now()
	if _, _, err := s.loadVisible(ctx, user, id, now); err != nil {
		return nil, err
	}

	interaction := s.interaction(id, user, domain.InteractionNote, note, now)
	if err := s.interactionRepo.Create(ctx, interaction); err != nil {
		return nil, persistenceError("add note", err)
	}
	dto := mapper.ToInteractionDTO(interaction)
	return &dto, nil
}

// Layout renders the presentation of a proposal for its product group
func (s *ProposalService) Layout(ctx context.Context, id uuid.UUID) (*layout.Layout, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	p, _, err := s.loadVisible(ctx, user, id, s.now())
	if err != nil {
		return nil, err
	}
	l := layout.Render(p)
	return &l, nil
}

// ExpireOverdue marks open proposals past their validity as expired, at most batch of them,
// and reports how many changed. It runs without a caller and is used by the sweep job.
func (s *ProposalService) ExpireOverdue(ctx context.Context, batch int) (int, error) {
	now := s.now()
	overdue, err := s.proposalRepo.ListOpenPastValidity(ctx, now, batch)
	if err != nil {
		return 0, persistenceError("list overdue proposals", err)
	}

	expired := 0
	for i := range overdue {
		p := &overdue[i]
		committed := false
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			changed, err := s.proposalRepo.WithTx(tx).TransitionStatus(ctx, p.ID,
				[]domain.ProposalStatus{domain.ProposalStatusSent, domain.ProposalStatusViewed},
				domain.ProposalStatusExpired, now)
			if err != nil || !changed {
				return err
			}
			committed = true
			if err := s.interactionRepo.WithTx(tx).Create(ctx, &domain.ProposalInteraction{
				ProposalID:  p.ID,
				Type:        domain.InteractionExpired,
				Description: "Proposta expirada automaticamente",
				UserName:    "Sistema",
				OccurredAt:  now,
			}); err != nil {
				return err
			}
			id := p.ID
			return s.notificationRepo.WithTx(tx).Create(ctx, newNotification(p.CreatedByID,
				domain.NotificationTypeProposalExpired, "Proposta expirada",
				fmt.Sprintf("A proposta %s para %s expirou sem resposta do cliente.", p.Number, p.ClientName),
				"proposal", &id))
		})
		if err != nil {
			s.logger.Error("failed to expire proposal",
				zap.String("proposal_id", p.ID.String()),
				zap.Error(err))
			if ctx.Err() != nil {
				return expired, ctx.Err()
			}
			continue
		}
		if committed {
			expired++
		}
	}

	if expired > 0 {
		s.logger.Info("expired overdue proposals", zap.Int("count", expired))
	}
	return expired, nil
}

// ExpiringWithin returns open proposals whose validity ends in the next window, soonest first
func (s *ProposalService) ExpiringWithin(ctx context.Context, window time.Duration, limit int) ([]domain.Proposal, error) {
	now := s.now()
	system := repository.Viewer{Role: domain.RoleAPIService}
	proposals, err := s.proposalRepo.ListExpiringBetween(ctx, system, now, now.Add(window), limit)
	if err != nil {
		return nil, persistenceError("list expiring proposals", err)
	}
	return proposals, nil
}

func (s *ProposalService) interaction(proposalID uuid.UUID, user *auth.UserContext, t domain.InteractionType, description string, at time.Time) *domain.ProposalInteraction {
	return &domain.ProposalInteraction{
		ProposalID:  proposalID,
		Type:        t,
		Description: truncate(description, 1000),
		UserID:      user.Actor(),
		UserName:    user.DisplayName,
		OccurredAt:  at,
	}
}
