package service

import (
	"context"

	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/brasmat/proposal-api/internal/mapper"
	"github.com/brasmat/proposal-api/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DiscountDecision is the outcome of checking a discount against a role's rule.
// Allowed discounts may be applied directly; anything else needs an approved request.
type DiscountDecision struct {
	Allowed          bool
	RequiresApproval bool
	// Ceiling is the largest discount the role may apply without approval
	Ceiling decimal.Decimal
	HasRule bool
}

// ToDTO converts the decision into its API shape
func (d DiscountDecision) ToDTO() domain.DiscountDecisionDTO {
	return domain.DiscountDecisionDTO{
		Allowed:          d.Allowed,
		RequiresApproval: d.RequiresApproval,
		Ceiling:          mapper.Float(d.Ceiling),
		HasRule:          d.HasRule,
	}
}

// DiscountRuleService reads and maintains the per-role discount ceilings
type DiscountRuleService struct {
	ruleRepo *repository.DiscountRuleRepository
	logger   *zap.Logger
}

// NewDiscountRuleService creates a new DiscountRuleService instance
func NewDiscountRuleService(ruleRepo *repository.DiscountRuleRepository, logger *zap.Logger) *DiscountRuleService {
	return &DiscountRuleService{ruleRepo: ruleRepo, logger: logger}
}

// GetRuleForRole returns the active rule of a role. A missing or inactive rule is reported
// as absent, which means the role may not discount at all.
func (s *DiscountRuleService) GetRuleForRole(ctx context.Context, role domain.UserRoleType) (*domain.DiscountRule, bool, error) {
	rule, err := s.ruleRepo.GetByRole(ctx, role)
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, persistenceError("get discount rule", err)
	}
	if !rule.Active {
		return nil, false, nil
	}
	return rule, true, nil
}

// ceilingOf is the lower of the maximum and the approval threshold
func ceilingOf(rule *domain.DiscountRule) decimal.Decimal {
	ceiling := rule.MaxDiscountPercent
	if rule.RequiresApprovalAbove != nil && rule.RequiresApprovalAbove.LessThan(ceiling) {
		ceiling = *rule.RequiresApprovalAbove
	}
	return ceiling
}

// CheckDiscount decides whether role may apply percent directly
func (s *DiscountRuleService) CheckDiscount(ctx context.Context, role domain.UserRoleType, percent decimal.Decimal) (DiscountDecision, error) {
	if percent.IsNegative() || percent.GreaterThan(decimal.NewFromInt(100)) {
		return DiscountDecision{}, validationError("discountPercent", "must be between 0 and 100")
	}

	rule, found, err := s.GetRuleForRole(ctx, role)
	if err != nil {
		return DiscountDecision{}, err
	}

	if !found {
		allowed := percent.IsZero()
		return DiscountDecision{Allowed: allowed, RequiresApproval: !allowed, Ceiling: decimal.Zero}, nil
	}

	ceiling := ceilingOf(rule)
	allowed := percent.LessThanOrEqual(ceiling)
	return DiscountDecision{
		Allowed:          allowed,
		RequiresApproval: !allowed,
		Ceiling:          ceiling,
		HasRule:          true,
	}, nil
}

// CheckForCaller checks a discount against the caller's own role
func (s *DiscountRuleService) CheckForCaller(ctx context.Context, req *domain.CheckDiscountRequest) (*domain.DiscountDecisionDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkRequest(req); err != nil {
		return nil, err
	}

	decision, err := s.CheckDiscount(ctx, user.Role, decimal.NewFromFloat(req.DiscountPercent))
	if err != nil {
		return nil, err
	}
	dto := decision.ToDTO()
	return &dto, nil
}

// List returns every rule
func (s *DiscountRuleService) List(ctx context.Context) ([]domain.DiscountRuleDTO, error) {
	rules, err := s.ruleRepo.List(ctx)
	if err != nil {
		return nil, persistenceError("list discount rules", err)
	}
	dtos := make([]domain.DiscountRuleDTO, len(rules))
	for i := range rules {
		dtos[i] = mapper.ToDiscountRuleDTO(&rules[i])
	}
	return dtos, nil
}

// UpdateRule changes a rule. Only administrators may do this.
func (s *DiscountRuleService) UpdateRule(ctx context.Context, id uuid.UUID, req *domain.UpdateDiscountRuleRequest) (*domain.DiscountRuleDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() {
		return nil, kindError(ErrPermissionDenied, "only administrators can change discount rules")
	}
	if err := checkRequest(req); err != nil {
		return nil, err
	}

	rule, err := s.ruleRepo.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrDiscountRuleNotFound
		}
		return nil, persistenceError("get discount rule", err)
	}

	if req.MaxDiscountPercent != nil {
		rule.MaxDiscountPercent = decimal.NewFromFloat(*req.MaxDiscountPercent).Round(2)
	}
	if req.RequiresApprovalAbove != nil {
		threshold := decimal.NewFromFloat(*req.RequiresApprovalAbove).Round(2)
		rule.RequiresApprovalAbove = &threshold
	}
	if req.Active != nil {
		rule.Active = *req.Active
	}
	if rule.RequiresApprovalAbove != nil && rule.RequiresApprovalAbove.GreaterThan(rule.MaxDiscountPercent) {
		return nil, validationError("requiresApprovalAbove", "must not exceed maxDiscountPercent")
	}
	rule.UpdatedByName = user.DisplayName

	if err := s.ruleRepo.Update(ctx, rule); err != nil {
		return nil, persistenceError("update discount rule", err)
	}

	s.logger.Info("discount rule updated",
		zap.String("role", string(rule.Role)),
		zap.String("max_discount", rule.MaxDiscountPercent.String()),
		zap.Bool("active", rule.Active),
		zap.String("updated_by", user.UserID.String()),
	)

	dto := mapper.ToDiscountRuleDTO(rule)
	return &dto, nil
}
