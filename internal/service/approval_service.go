package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/brasmat/proposal-api/internal/auth"
	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/brasmat/proposal-api/internal/mailer"
	"github.com/brasmat/proposal-api/internal/mapper"
	"github.com/brasmat/proposal-api/internal/repository"
	"github.com/brasmat/proposal-api/internal/validation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ApprovalService manages discount approval requests. Sellers ask for a discount above
// their ceiling, managers and administrators decide.
type ApprovalService struct {
	db               *gorm.DB
	approvalRepo     *repository.ApprovalRepository
	proposalRepo     *repository.ProposalRepository
	interactionRepo  *repository.InteractionRepository
	notificationRepo *repository.NotificationRepository
	mailer           mailer.Mailer
	publicURL        string
	logger           *zap.Logger
	now              Clock
}

// NewApprovalService creates a new ApprovalService instance. publicURL is the portal base
// used for links in decision emails and may be empty.
func NewApprovalService(
	db *gorm.DB,
	approvalRepo *repository.ApprovalRepository,
	proposalRepo *repository.ProposalRepository,
	interactionRepo *repository.InteractionRepository,
	notificationRepo *repository.NotificationRepository,
	m mailer.Mailer,
	publicURL string,
	logger *zap.Logger,
) *ApprovalService {
	if m == nil {
		m = mailer.NoopMailer{}
	}
	return &ApprovalService{
		db:               db,
		approvalRepo:     approvalRepo,
		proposalRepo:     proposalRepo,
		interactionRepo:  interactionRepo,
		notificationRepo: notificationRepo,
		mailer:           m,
		publicURL:        strings.TrimRight(publicURL, "/"),
		logger:           logger,
		now:              systemClock,
	}
}

// WithClock replaces the wall clock, used by tests
func (s *ApprovalService) WithClock(clock Clock) *ApprovalService {
	s.now = clock
	return s
}

// Create stores a pending request from the caller. Fields are validated before the store
// is touched.
func (s *ApprovalService) Create(ctx context.Context, req *domain.CreateApprovalRequest) (*domain.ApprovalRequestDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkRequest(req); err != nil {
		return nil, err
	}
	reason := validation.SanitizeMultiline(req.Reason)
	if reason == "" {
		return nil, validationError("reason", "is required")
	}
	if !user.IsStaff() {
		return nil, kindError(ErrPermissionDenied, "clients cannot request discounts")
	}

	p, err := s.proposalRepo.GetVisible(ctx, req.ProposalID, viewerOf(user))
	if err != nil {
		if isNotFound(err) {
			return nil, ErrProposalNotFound
		}
		return nil, persistenceError("get proposal", err)
	}
	if isClosed(p.Status) {
		return nil, ErrProposalAlreadyDecided
	}

	request := &domain.ApprovalRequest{
		ProposalID:        p.ID,
		RequestedBy:       user.UserID,
		RequestedByName:   user.DisplayName,
		RequestedByEmail:  user.Email,
		Status:            domain.ApprovalStatusPending,
		RequestedDiscount: decimal.NewFromFloat(req.RequestedDiscount).Round(2),
		Reason:            reason,
	}
	if err := s.approvalRepo.Create(ctx, request); err != nil {
		return nil, persistenceError("create approval request", err)
	}
	request.Proposal = p

	s.logger.Info("approval requested",
		zap.String("approval_id", request.ID.String()),
		zap.String("proposal_id", p.ID.String()),
		zap.String("requested_discount", request.RequestedDiscount.String()),
		zap.String("requested_by", user.UserID.String()),
	)

	dto := mapper.ToApprovalRequestDTO(request)
	return &dto, nil
}

// List returns the requests the caller may see, newest first
func (s *ApprovalService) List(ctx context.Context, status *domain.ApprovalStatus) ([]domain.ApprovalRequestDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if status != nil && !status.IsValid() {
		return nil, validationError("status", "must be one of: pending approved rejected")
	}

	requests, err := s.approvalRepo.List(ctx, viewerOf(user), status)
	if err != nil {
		return nil, persistenceError("list approval requests", err)
	}
	dtos := make([]domain.ApprovalRequestDTO, len(requests))
	for i := range requests {
		dtos[i] = mapper.ToApprovalRequestDTO(&requests[i])
	}
	return dtos, nil
}

// Update applies a partial change. A status decides the request, with the caller as
// approver; a note alone only edits the note. Approving also applies the discount to the
// proposal in the same transaction.
func (s *ApprovalService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateApprovalRequest) (*domain.ApprovalRequestDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if !user.Role.CanDecideApprovals() {
		return nil, kindError(ErrPermissionDenied, "only managers and administrators can decide approval requests")
	}
	if err := checkRequest(req); err != nil {
		return nil, err
	}
	if req.Status == nil && req.DecisionNote == nil {
		return nil, validationError("status", "status or decisionNote is required")
	}
	note := validation.SanitizePtr(req.DecisionNote)

	request, err := s.approvalRepo.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrApprovalNotFound
		}
		return nil, persistenceError("get approval request", err)
	}

	if req.Status == nil {
		if err := s.approvalRepo.UpdateNote(ctx, id, *note); err != nil {
			return nil, persistenceError("update decision note", err)
		}
		request.DecisionNote = *note
		dto := mapper.ToApprovalRequestDTO(request)
		return &dto, nil
	}

	if request.Status != domain.ApprovalStatusPending {
		return nil, ErrApprovalAlreadyDecided
	}
	approved := *req.Status == domain.ApprovalStatusApproved
	if approved && request.Proposal != nil && isClosed(request.Proposal.Status) {
		return nil, ErrProposalAlreadyDecided
	}

	now := s.now()
	decision := repository.ApprovalDecision{
		Status:       *req.Status,
		ApproverID:   user.Actor(),
		ApproverName: user.DisplayName,
		DecisionNote: note,
		DecidedAt:    now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		changed, err := s.approvalRepo.WithTx(tx).Decide(ctx, id, decision)
		if err != nil {
			return persistenceError("decide approval request", err)
		}
		if !changed {
			return ErrApprovalAlreadyDecided
		}

		if approved && request.Proposal != nil {
			total := mapper.ApplyDiscount(request.Proposal.Subtotal, request.RequestedDiscount)
			applied, err := s.proposalRepo.WithTx(tx).ApplyDiscount(ctx, request.ProposalID, request.RequestedDiscount, total)
			if err != nil {
				return persistenceError("apply discount", err)
			}
			if !applied {
				// decided by the client since the request was loaded
				return ErrProposalAlreadyDecided
			}
			request.Proposal.DiscountPercent = request.RequestedDiscount
			request.Proposal.TotalValue = total

			if err := s.interactionRepo.WithTx(tx).Create(ctx, &domain.ProposalInteraction{
				ProposalID:  request.ProposalID,
				Type:        domain.InteractionNote,
				Description: fmt.Sprintf("Desconto de %s%% aprovado por %s", request.RequestedDiscount.StringFixed(2), user.DisplayName),
				UserID:      user.Actor(),
				UserName:    user.DisplayName,
				OccurredAt:  now,
			}); err != nil {
				return persistenceError("log interaction", err)
			}
		}

		if err := s.notificationRepo.WithTx(tx).Create(ctx, s.decisionNotification(request, approved, user)); err != nil {
			return persistenceError("notify requester", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	request.Status = decision.Status
	request.ApproverID = decision.ApproverID
	request.ApproverName = decision.ApproverName
	request.DecidedAt = &now
	if note != nil {
		request.DecisionNote = *note
	}

	s.logger.Info("approval request decided",
		zap.String("approval_id", request.ID.String()),
		zap.String("status", string(request.Status)),
		zap.String("approver_id", user.UserID.String()),
	)

	s.sendDecisionEmail(ctx, request, approved)

	dto := mapper.ToApprovalRequestDTO(request)
	return &dto, nil
}

func (s *ApprovalService) decisionNotification(request *domain.ApprovalRequest, approved bool, approver *auth.UserContext) *domain.Notification {
	outcome := "recusado"
	if approved {
		outcome = "aprovado"
	}
	number := ""
	if request.Proposal != nil {
		number = request.Proposal.Number
	}
	id := request.ProposalID
	return newNotification(request.RequestedBy, domain.NotificationTypeApprovalDecided,
		"Desconto "+outcome,
		fmt.Sprintf("O desconto de %s%% na proposta %s foi %s por %s.",
			request.RequestedDiscount.StringFixed(2), number, outcome, approver.DisplayName),
		"proposal", &id)
}

// sendDecisionEmail runs after commit; a mail failure never undoes the decision
func (s *ApprovalService) sendDecisionEmail(ctx context.Context, request *domain.ApprovalRequest, approved bool) {
	if request.RequestedByEmail == "" {
		return
	}
	msg := mailer.ApprovalDecision{
		ToEmail:           request.RequestedByEmail,
		RequesterName:     request.RequestedByName,
		ApproverName:      request.ApproverName,
		Approved:          approved,
		RequestedDiscount: request.RequestedDiscount.StringFixed(2),
		DecisionNote:      request.DecisionNote,
	}
	if request.Proposal != nil {
		msg.ProposalNumber = request.Proposal.Number
	}
	if s.publicURL != "" {
		msg.ProposalURL = fmt.Sprintf("%s/proposals/%s", s.publicURL, request.ProposalID)
	}

	if err := s.mailer.SendApprovalDecision(context.WithoutCancel(ctx), msg); err != nil {
		s.logger.Warn("failed to email approval decision",
			zap.String("approval_id", request.ID.String()),
			zap.Error(err))
	}
}

// isClosed is true once a proposal can no longer change price
func isClosed(status domain.ProposalStatus) bool {
	return status == domain.ProposalStatusAccepted ||
		status == domain.ProposalStatusRejected ||
		status == domain.ProposalStatusExpired
}
