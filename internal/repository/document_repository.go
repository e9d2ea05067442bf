package repository

import (
	"context"

	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.ProposalDocument) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *DocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.ProposalDocument, error) {
	var doc domain.ProposalDocument
	err := r.db.WithContext(ctx).First(&doc, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListByProposal returns all documents attached to a proposal
func (r *DocumentRepository) ListByProposal(ctx context.Context, proposalID uuid.UUID) ([]domain.ProposalDocument, error) {
	var docs []domain.ProposalDocument
	err := r.db.WithContext(ctx).
		Where("proposal_id = ?", proposalID).
		Order("created_at DESC").
		Find(&docs).Error
	return docs, err
}
