package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brasmat/proposal-api/internal/auth"
	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/brasmat/proposal-api/internal/repository"
	"github.com/brasmat/proposal-api/internal/validation"
	"gorm.io/gorm"
)

// Clock returns the current time. Services read the wall clock through it so tests can
// pin "now".
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

// currentUser returns the authenticated caller or ErrUnauthorized
func currentUser(ctx context.Context) (*auth.UserContext, error) {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("%w: user context required", ErrUnauthorized)
	}
	return user, nil
}

func viewerOf(user *auth.UserContext) repository.Viewer {
	return repository.Viewer{UserID: user.UserID, Role: user.Role}
}

// checkRequest runs struct tag validation and wraps the field errors in ErrValidation
func checkRequest(req interface{}) error {
	if err := validation.Struct(req); err != nil {
		return fieldErrors(err)
	}
	return nil
}

// fieldErrors keeps validation.FieldErrors reachable with errors.As
func fieldErrors(err error) error {
	var fields validation.FieldErrors
	if errors.As(err, &fields) {
		return fmt.Errorf("%w: %w", ErrValidation, fields)
	}
	return fmt.Errorf("%w: %v", ErrValidation, err)
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func paginated(data interface{}, total int64, page, pageSize int) *domain.PaginatedResponse {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > repository.MaxPageSize {
		pageSize = repository.MaxPageSize
	}
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return &domain.PaginatedResponse{
		Data:       data,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}
