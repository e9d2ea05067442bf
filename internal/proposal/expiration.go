// Package proposal holds the read-time validity evaluation, the client-facing status
// machine and the identity helpers (numbers, slugs, labels) of a proposal.
package proposal

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/brasmat/proposal-api/internal/validation"
)

// ErrInvalidValidUntil is returned when the validity timestamp cannot be parsed
var ErrInvalidValidUntil = errors.New("validUntil is not a valid ISO-8601 date")

const day = 24 * time.Hour

// Expiration is the validity of a proposal as seen by one viewer at one instant.
// It is never stored; callers evaluate it again on every read.
type Expiration struct {
	IsExpired     bool
	DaysRemaining int
	CanView       bool
}

// Evaluate parses validUntil and evaluates it for role at now.
// Unparseable input is an error, there is no fallback.
func Evaluate(validUntil string, role domain.UserRoleType, now time.Time) (Expiration, error) {
	t, err := validation.ParseDate(validUntil)
	if err != nil {
		return Expiration{}, fmt.Errorf("%w: %q", ErrInvalidValidUntil, validUntil)
	}
	return EvaluateAt(t, role, now), nil
}

// EvaluateAt evaluates an already parsed validity timestamp.
// A proposal whose validUntil equals now is still valid with zero days remaining.
func EvaluateAt(validUntil time.Time, role domain.UserRoleType, now time.Time) Expiration {
	expired := validUntil.Before(now)
	return Expiration{
		IsExpired:     expired,
		DaysRemaining: DaysRemaining(validUntil, now),
		CanView:       !(role == domain.RoleClient && expired),
	}
}

// DaysRemaining is the number of started days until validUntil, never negative
func DaysRemaining(validUntil, now time.Time) int {
	diff := validUntil.Sub(now)
	if diff <= 0 {
		return 0
	}
	return int(math.Ceil(float64(diff) / float64(day)))
}

// ToDTO converts the evaluation into its API shape
func (e Expiration) ToDTO() domain.ExpirationDTO {
	return domain.ExpirationDTO{
		IsExpired:     e.IsExpired,
		DaysRemaining: e.DaysRemaining,
		CanView:       e.CanView,
	}
}
