package repository

import (
	"context"

	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InteractionRepository stores the append-only interaction log of proposals
type InteractionRepository struct {
	db *gorm.DB
}

func NewInteractionRepository(db *gorm.DB) *InteractionRepository {
	return &InteractionRepository{db: db}
}

// WithTx returns a repository bound to the transaction
func (r *InteractionRepository) WithTx(tx *gorm.DB) *InteractionRepository {
	return &InteractionRepository{db: tx}
}

func (r *InteractionRepository) Create(ctx context.Context, interaction *domain.ProposalInteraction) error {
	return r.db.WithContext(ctx).Create(interaction).Error
}

// ListByProposal returns the log of a proposal, oldest first
func (r *InteractionRepository) ListByProposal(ctx context.Context, proposalID uuid.UUID) ([]domain.ProposalInteraction, error) {
	var interactions []domain.ProposalInteraction
	err := r.db.WithContext(ctx).
		Where("proposal_id = ?", proposalID).
		Order("occurred_at ASC, created_at ASC").
		Find(&interactions).Error
	return interactions, err
}

// CountByType counts entries of one type for a proposal
func (r *InteractionRepository) CountByType(ctx context.Context, proposalID uuid.UUID, interactionType domain.InteractionType) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.ProposalInteraction{}).
		Where("proposal_id = ? AND type = ?", proposalID, interactionType).
		Count(&count).Error
	return count, err
}
