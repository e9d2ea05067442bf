package repository

import (
	"context"
	"time"

	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ApprovalDecision is the partial update applied when an approval request is decided
type ApprovalDecision struct {
	Status       domain.ApprovalStatus
	ApproverID   *uuid.UUID
	ApproverName string
	DecisionNote *string
	DecidedAt    time.Time
}

type ApprovalRepository struct {
	db *gorm.DB
}

func NewApprovalRepository(db *gorm.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

// WithTx returns a repository bound to the transaction
func (r *ApprovalRepository) WithTx(tx *gorm.DB) *ApprovalRepository {
	return &ApprovalRepository{db: tx}
}

func (r *ApprovalRepository) Create(ctx context.Context, request *domain.ApprovalRequest) error {
	return r.db.WithContext(ctx).Omit("Proposal").Create(request).Error
}

func (r *ApprovalRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.ApprovalRequest, error) {
	var request domain.ApprovalRequest
	err := r.db.WithContext(ctx).
		Preload("Proposal").
		Where("id = ?", id).
		First(&request).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

// List returns the requests visible to the viewer, newest first. Administrators see every
// request; any other role only the requests it authored.
func (r *ApprovalRepository) List(ctx context.Context, viewer Viewer, status *domain.ApprovalStatus) ([]domain.ApprovalRequest, error) {
	var requests []domain.ApprovalRequest

	query := r.db.WithContext(ctx).Model(&domain.ApprovalRequest{}).Preload("Proposal")
	query = ApplyOwnerFilter(query, viewer, "requested_by")

	if status != nil {
		query = query.Where("status = ?", *status)
	}

	err := query.Order("created_at DESC").Find(&requests).Error
	return requests, err
}

// Decide records a decision on a pending request. It reports false when the request was
// no longer pending, so only one decision can win.
func (r *ApprovalRepository) Decide(ctx context.Context, id uuid.UUID, decision ApprovalDecision) (bool, error) {
	updates := map[string]interface{}{
		"status":        decision.Status,
		"approver_id":   decision.ApproverID,
		"approver_name": decision.ApproverName,
		"decided_at":    decision.DecidedAt,
	}
	if decision.DecisionNote != nil {
		updates["decision_note"] = *decision.DecisionNote
	}

	result := r.db.WithContext(ctx).
		Model(&domain.ApprovalRequest{}).
		Where("id = ? AND status = ?", id, domain.ApprovalStatusPending).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// UpdateNote changes the decision note without touching the status
func (r *ApprovalRepository) UpdateNote(ctx context.Context, id uuid.UUID, note string) error {
	return r.db.WithContext(ctx).
		Model(&domain.ApprovalRequest{}).
		Where("id = ?", id).
		Update("decision_note", note).Error
}

// CountPending counts pending requests visible to the viewer
func (r *ApprovalRepository) CountPending(ctx context.Context, viewer Viewer) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&domain.ApprovalRequest{}).Where("status = ?", domain.ApprovalStatusPending)
	query = ApplyOwnerFilter(query, viewer, "requested_by")
	err := query.Count(&count).Error
	return count, err
}
