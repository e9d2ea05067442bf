package repository

import (
	"context"

	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WhatsAppMessageRepository keeps the outbound message history
type WhatsAppMessageRepository struct {
	db *gorm.DB
}

func NewWhatsAppMessageRepository(db *gorm.DB) *WhatsAppMessageRepository {
	return &WhatsAppMessageRepository{db: db}
}

func (r *WhatsAppMessageRepository) Create(ctx context.Context, message *domain.WhatsAppMessage) error {
	return r.db.WithContext(ctx).Create(message).Error
}

// List returns the history, newest first, optionally for one proposal
func (r *WhatsAppMessageRepository) List(ctx context.Context, proposalID *uuid.UUID, page, pageSize int) ([]domain.WhatsAppMessage, int64, error) {
	var messages []domain.WhatsAppMessage
	var total int64

	page, pageSize = normalizePage(page, pageSize)
	query := r.db.WithContext(ctx).Model(&domain.WhatsAppMessage{})
	if proposalID != nil {
		query = query.Where("proposal_id = ?", *proposalID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Offset(offset).Limit(pageSize).Order("sent_at DESC").Find(&messages).Error
	return messages, total, err
}
