package repository

import (
	"strings"

	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MaxPageSize is the maximum allowed page size for paginated queries
const MaxPageSize = 200

// SortOrder represents the sort direction
type SortOrder string

const (
	SortOrderAsc  SortOrder = "asc"
	SortOrderDesc SortOrder = "desc"
)

// SortConfig holds sorting configuration for list queries
type SortConfig struct {
	Field string    // The field to sort by (API field name)
	Order SortOrder // asc or desc
}

// DefaultSortConfig returns a default sort configuration (created_at DESC)
func DefaultSortConfig() SortConfig {
	return SortConfig{
		Field: "createdAt",
		Order: SortOrderDesc,
	}
}

// ParseSortOrder parses a string into SortOrder, defaulting to desc
func ParseSortOrder(s string) SortOrder {
	if strings.ToLower(s) == "asc" {
		return SortOrderAsc
	}
	return SortOrderDesc
}

// BuildOrderClause builds the SQL ORDER BY clause from field mapping and sort config.
// fieldMap maps API field names to database column names; unknown fields use defaultColumn.
func BuildOrderClause(config SortConfig, fieldMap map[string]string, defaultColumn string) string {
	column, ok := fieldMap[config.Field]
	if !ok {
		column = defaultColumn
	}

	order := "DESC"
	if config.Order == SortOrderAsc {
		order = "ASC"
	}

	return column + " " + order
}

// Viewer is the caller identity a query is scoped to. It is always passed explicitly;
// repositories never read it from the request context.
type Viewer struct {
	UserID uuid.UUID
	Role   domain.UserRoleType
}

// SeesEverything is true for administrators and system integrations
func (v Viewer) SeesEverything() bool {
	return v.Role == domain.RoleAdmin || v.Role == domain.RoleAPIService
}

// ApplyOwnerFilter restricts the query to rows owned by the viewer unless the viewer is
// an administrator
func ApplyOwnerFilter(query *gorm.DB, viewer Viewer, column string) *gorm.DB {
	if viewer.SeesEverything() {
		return query
	}
	return query.Where(column+" = ?", viewer.UserID)
}

// ApplyProposalVisibility scopes proposal queries by role: clients see proposals of the
// client company linked to their login, external sellers see the proposals they created,
// everyone else sees all proposals.
func ApplyProposalVisibility(query *gorm.DB, viewer Viewer) *gorm.DB {
	switch viewer.Role {
	case domain.RoleClient:
		return query.Where("proposals.client_id IN (?)",
			query.Session(&gorm.Session{NewDB: true}).
				Model(&domain.Client{}).
				Select("id").
				Where("portal_user_id = ?", viewer.UserID))
	case domain.RoleExternalSeller:
		return query.Where("proposals.created_by_id = ?", viewer.UserID)
	default:
		return query
	}
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}
