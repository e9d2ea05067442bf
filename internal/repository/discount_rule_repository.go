package repository

import (
	"context"

	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DiscountRuleRepository struct {
	db *gorm.DB
}

func NewDiscountRuleRepository(db *gorm.DB) *DiscountRuleRepository {
	return &DiscountRuleRepository{db: db}
}

func (r *DiscountRuleRepository) Create(ctx context.Context, rule *domain.DiscountRule) error {
	return r.db.WithContext(ctx).Create(rule).Error
}

// GetByRole looks a rule up by exact role match
func (r *DiscountRuleRepository) GetByRole(ctx context.Context, role domain.UserRoleType) (*domain.DiscountRule, error) {
	var rule domain.DiscountRule
	err := r.db.WithContext(ctx).Where("role = ?", role).First(&rule).Error
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *DiscountRuleRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.DiscountRule, error) {
	var rule domain.DiscountRule
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rule).Error
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *DiscountRuleRepository) List(ctx context.Context) ([]domain.DiscountRule, error) {
	var rules []domain.DiscountRule
	err := r.db.WithContext(ctx).Order("role ASC").Find(&rules).Error
	return rules, err
}

// Update saves every column of the rule, including nil ceilings
func (r *DiscountRuleRepository) Update(ctx context.Context, rule *domain.DiscountRule) error {
	return r.db.WithContext(ctx).Save(rule).Error
}
