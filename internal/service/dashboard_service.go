package service

import (
	"context"

	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/brasmat/proposal-api/internal/mapper"
	"github.com/brasmat/proposal-api/internal/proposal"
	"github.com/brasmat/proposal-api/internal/repository"
	"github.com/brasmat/proposal-api/internal/validation"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultExpiringWithinDays is the dashboard window for proposals about to expire
const DefaultExpiringWithinDays = 7

const expiringSoonLimit = 10

type DashboardService struct {
	proposalRepo *repository.ProposalRepository
	approvalRepo *repository.ApprovalRepository
	clientRepo   *repository.ClientRepository
	logger       *zap.Logger
	now          Clock
}

func NewDashboardService(
	proposalRepo *repository.ProposalRepository,
	approvalRepo *repository.ApprovalRepository,
	clientRepo *repository.ClientRepository,
	logger *zap.Logger,
) *DashboardService {
	return &DashboardService{
		proposalRepo: proposalRepo,
		approvalRepo: approvalRepo,
		clientRepo:   clientRepo,
		logger:       logger,
		now:          systemClock,
	}
}

// WithClock replaces the wall clock, used by tests
func (s *DashboardService) WithClock(clock Clock) *DashboardService {
	s.now = clock
	return s
}

// GetMetrics aggregates the caller's proposals. The independent queries run concurrently;
// the first failure cancels the rest.
func (s *DashboardService) GetMetrics(ctx context.Context, withinDays int) (*domain.ProposalDashboardDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if !user.IsStaff() {
		return nil, kindError(ErrPermissionDenied, "clients have no dashboard")
	}
	if withinDays <= 0 {
		withinDays = DefaultExpiringWithinDays
	}

	viewer := viewerOf(user)
	now := s.now()

	var (
		counts   map[domain.ProposalStatus]int64
		accepted decimal.Decimal
		pending  int64
		expiring []domain.Proposal
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		counts, err = s.proposalRepo.CountByStatus(gctx, viewer)
		return err
	})
	g.Go(func() error {
		var err error
		accepted, err = s.proposalRepo.SumTotalByStatus(gctx, viewer, domain.ProposalStatusAccepted)
		return err
	})
	g.Go(func() error {
		var err error
		pending, err = s.approvalRepo.CountPending(gctx, viewer)
		return err
	})
	g.Go(func() error {
		var err error
		expiring, err = s.proposalRepo.ListExpiringBetween(gctx, viewer, now, now.AddDate(0, 0, withinDays), expiringSoonLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("failed to aggregate dashboard", zap.String("user_id", user.UserID.String()), zap.Error(err))
		return nil, persistenceError("dashboard", err)
	}

	dto := &domain.ProposalDashboardDTO{
		CountsByStatus:        counts,
		AcceptedValue:         mapper.Float(accepted),
		PendingApprovals:      pending,
		ExpiringSoon:          make([]domain.ProposalDTO, len(expiring)),
		ExpiringWithinDays:    withinDays,
		AcceptanceRatePercent: acceptanceRate(counts),
	}
	for i := range expiring {
		dto.ExpiringSoon[i] = mapper.ToProposalDTO(&expiring[i], proposal.EvaluateAt(expiring[i].ValidUntil, user.Role, now))
	}
	return dto, nil
}

// acceptanceRate is accepted over all closed proposals, in percent with one decimal
func acceptanceRate(counts map[domain.ProposalStatus]int64) float64 {
	accepted := counts[domain.ProposalStatusAccepted]
	closed := accepted + counts[domain.ProposalStatusRejected] + counts[domain.ProposalStatusExpired]
	if closed == 0 {
		return 0
	}
	rate := decimal.NewFromInt(accepted).Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(closed)).Round(1)
	return mapper.Float(rate)
}

// Search looks up clients and proposals matching query
func (s *DashboardService) Search(ctx context.Context, query string) (*domain.SearchResultsDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if !user.IsStaff() {
		return nil, kindError(ErrPermissionDenied, "clients cannot search")
	}
	query = validation.SanitizeText(query)
	if query == "" {
		return &domain.SearchResultsDTO{Clients: []domain.ClientDTO{}, Proposals: []domain.ProposalDTO{}}, nil
	}

	const limit = 10
	var (
		clients   []domain.Client
		proposals []domain.Proposal
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		clients, _, err = s.clientRepo.List(gctx, 1, limit, query)
		return err
	})
	g.Go(func() error {
		var err error
		proposals, _, err = s.proposalRepo.List(gctx, viewerOf(user),
			repository.ProposalFilters{Search: query}, repository.DefaultSortConfig(), 1, limit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, persistenceError("search", err)
	}

	now := s.now()
	results := &domain.SearchResultsDTO{
		Clients:   make([]domain.ClientDTO, len(clients)),
		Proposals: make([]domain.ProposalDTO, len(proposals)),
		Total:     len(clients) + len(proposals),
	}
	for i := range clients {
		results.Clients[i] = mapper.ToClientDTO(&clients[i])
	}
	for i := range proposals {
		results.Proposals[i] = mapper.ToProposalDTO(&proposals[i], proposal.EvaluateAt(proposals[i].ValidUntil, user.Role, now))
	}
	return results, nil
}
