package repository

import (
	"context"
	"time"

	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProposalFilters narrows proposal listings. Nil fields are not applied.
type ProposalFilters struct {
	Status   *domain.ProposalStatus
	ClientID *uuid.UUID
	Search   string
	// ValidAt hides proposals that are expired at that instant
	ValidAt *time.Time
}

var proposalSortFields = map[string]string{
	"createdAt":  "proposals.created_at",
	"validUntil": "proposals.valid_until",
	"totalValue": "proposals.total_value",
	"number":     "proposals.number",
}

type ProposalRepository struct {
	db *gorm.DB
}

func NewProposalRepository(db *gorm.DB) *ProposalRepository {
	return &ProposalRepository{db: db}
}

// WithTx returns a repository bound to the transaction
func (r *ProposalRepository) WithTx(tx *gorm.DB) *ProposalRepository {
	return &ProposalRepository{db: tx}
}

// Create inserts the proposal together with its items
func (r *ProposalRepository) Create(ctx context.Context, proposal *domain.Proposal) error {
	return r.db.WithContext(ctx).Create(proposal).Error
}

func (r *ProposalRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Proposal, error) {
	return r.first(ctx, r.db.WithContext(ctx).Where("proposals.id = ?", id))
}

// GetVisible loads a proposal only if the viewer may see it
func (r *ProposalRepository) GetVisible(ctx context.Context, id uuid.UUID, viewer Viewer) (*domain.Proposal, error) {
	query := r.db.WithContext(ctx).Where("proposals.id = ?", id)
	return r.first(ctx, ApplyProposalVisibility(query, viewer))
}

func (r *ProposalRepository) first(ctx context.Context, query *gorm.DB) (*domain.Proposal, error) {
	var proposal domain.Proposal
	err := query.
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&proposal).Error
	if err != nil {
		return nil, err
	}
	return &proposal, nil
}

func (r *ProposalRepository) List(ctx context.Context, viewer Viewer, filters ProposalFilters, sort SortConfig, page, pageSize int) ([]domain.Proposal, int64, error) {
	var proposals []domain.Proposal
	var total int64

	page, pageSize = normalizePage(page, pageSize)
	query := r.db.WithContext(ctx).Model(&domain.Proposal{})
	query = ApplyProposalVisibility(query, viewer)

	if filters.Status != nil {
		query = query.Where("proposals.status = ?", *filters.Status)
	}
	if filters.ClientID != nil {
		query = query.Where("proposals.client_id = ?", *filters.ClientID)
	}
	if filters.Search != "" {
		pattern := "%" + filters.Search + "%"
		query = query.Where("proposals.number LIKE ? OR proposals.client_name LIKE ?", pattern, pattern)
	}
	if filters.ValidAt != nil {
		query = query.Where("proposals.status <> ? AND proposals.valid_until >= ?", domain.ProposalStatusExpired, filters.ValidAt.UTC())
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Order(BuildOrderClause(sort, proposalSortFields, "proposals.created_at")).
		Offset(offset).
		Limit(pageSize).
		Find(&proposals).Error

	return proposals, total, err
}

// TransitionStatus moves a proposal to a new status only if its current status is one of
// from. It reports whether the row was changed, so concurrent decisions cannot both win.
func (r *ProposalRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from []domain.ProposalStatus, to domain.ProposalStatus, at time.Time) (bool, error) {
	updates := map[string]interface{}{"status": to}
	switch to {
	case domain.ProposalStatusSent:
		updates["sent_at"] = at
	case domain.ProposalStatusAccepted, domain.ProposalStatusRejected:
		updates["decided_at"] = at
	}

	result := r.db.WithContext(ctx).
		Model(&domain.Proposal{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ApplyDiscount stores a new discount and the total derived from it while the proposal is
// still undecided. It reports false when the proposal is unknown or no longer open.
func (r *ProposalRepository) ApplyDiscount(ctx context.Context, id uuid.UUID, percent, total decimal.Decimal) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.Proposal{}).
		Where("id = ? AND status IN ?", id, discountableStatuses()).
		Updates(map[string]interface{}{
			"discount_percent": percent,
			"total_value":      total,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ListOpenPastValidity returns sent or viewed proposals whose validity ended before now
func (r *ProposalRepository) ListOpenPastValidity(ctx context.Context, now time.Time, limit int) ([]domain.Proposal, error) {
	var proposals []domain.Proposal
	err := r.db.WithContext(ctx).
		Where("status IN ?", openStatuses()).
		Where("valid_until < ?", now).
		Order("valid_until ASC").
		Limit(limit).
		Find(&proposals).Error
	return proposals, err
}

// ListExpiringBetween returns open proposals whose validity ends in [from, to)
func (r *ProposalRepository) ListExpiringBetween(ctx context.Context, viewer Viewer, from, to time.Time, limit int) ([]domain.Proposal, error) {
	var proposals []domain.Proposal
	query := r.db.WithContext(ctx).
		Where("proposals.status IN ?", openStatuses()).
		Where("proposals.valid_until >= ? AND proposals.valid_until < ?", from, to)
	query = ApplyProposalVisibility(query, viewer)
	err := query.Order("proposals.valid_until ASC").Limit(limit).Find(&proposals).Error
	return proposals, err
}

// StatusCount is a proposal count for one status
type StatusCount struct {
	Status domain.ProposalStatus
	Count  int64
}

// CountByStatus groups visible proposals by status
func (r *ProposalRepository) CountByStatus(ctx context.Context, viewer Viewer) (map[domain.ProposalStatus]int64, error) {
	var rows []StatusCount
	query := r.db.WithContext(ctx).Model(&domain.Proposal{})
	query = ApplyProposalVisibility(query, viewer)
	err := query.Select("proposals.status AS status, COUNT(*) AS count").
		Group("proposals.status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[domain.ProposalStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// SumTotalByStatus sums total_value of visible proposals in a status
func (r *ProposalRepository) SumTotalByStatus(ctx context.Context, viewer Viewer, status domain.ProposalStatus) (decimal.Decimal, error) {
	var sum decimal.Decimal
	query := r.db.WithContext(ctx).Model(&domain.Proposal{}).Where("proposals.status = ?", status)
	query = ApplyProposalVisibility(query, viewer)
	row := query.Select("COALESCE(SUM(proposals.total_value), 0)").Row()
	if err := row.Scan(&sum); err != nil {
		return decimal.Zero, err
	}
	return sum, nil
}

func discountableStatuses() []domain.ProposalStatus {
	return []domain.ProposalStatus{domain.ProposalStatusDraft, domain.ProposalStatusSent, domain.ProposalStatusViewed}
}

func openStatuses() []domain.ProposalStatus {
	return []domain.ProposalStatus{domain.ProposalStatusSent, domain.ProposalStatusViewed}
}
