package proposal_test

import (
	"testing"
	"time"

	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/brasmat/proposal-api/internal/proposal"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 10, 16, 14, 0, 0, 0, time.UTC)

var allRoles = []interface{}{
	domain.RoleAdmin,
	domain.RoleManager,
	domain.RoleInternalSeller,
	domain.RoleExternalSeller,
	domain.RoleClient,
	domain.UserRoleType(""),
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name       string
		validUntil string
		role       domain.UserRoleType
		want       proposal.Expiration
	}{
		{
			name:       "valid for the client",
			validUntil: "2026-10-20T14:00:00Z",
			role:       domain.RoleClient,
			want:       proposal.Expiration{IsExpired: false, DaysRemaining: 4, CanView: true},
		},
		{
			name:       "partial day rounds up",
			validUntil: "2026-10-17T02:00:00Z",
			role:       domain.RoleClient,
			want:       proposal.Expiration{IsExpired: false, DaysRemaining: 1, CanView: true},
		},
		{
			name:       "expired hides from the client",
			validUntil: "2026-10-15",
			role:       domain.RoleClient,
			want:       proposal.Expiration{IsExpired: true, DaysRemaining: 0, CanView: false},
		},
		{
			name:       "expired stays visible to sellers",
			validUntil: "2026-10-15",
			role:       domain.RoleInternalSeller,
			want:       proposal.Expiration{IsExpired: true, DaysRemaining: 0, CanView: true},
		},
		{
			name:       "exactly now is not expired",
			validUntil: "2026-10-16T14:00:00Z",
			role:       domain.RoleClient,
			want:       proposal.Expiration{IsExpired: false, DaysRemaining: 0, CanView: true},
		},
		{
			name:       "offset timestamps are compared as instants",
			validUntil: "2026-10-16T11:00:00-03:00",
			role:       domain.RoleClient,
			want:       proposal.Expiration{IsExpired: false, DaysRemaining: 0, CanView: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := proposal.Evaluate(tt.validUntil, tt.role, now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluate_InvalidInputIsAnError(t *testing.T) {
	for _, input := range []string{"", "soon", "2026/10/20", "20-10-2026"} {
		_, err := proposal.Evaluate(input, domain.RoleAdmin, now)
		assert.ErrorIs(t, err, proposal.ErrInvalidValidUntil, input)
	}
}

func TestEvaluate_RecomputedFromClock(t *testing.T) {
	validUntil := now.Add(90 * time.Second)

	before := proposal.EvaluateAt(validUntil, domain.RoleClient, now)
	after := proposal.EvaluateAt(validUntil, domain.RoleClient, now.Add(2*time.Minute))

	assert.False(t, before.IsExpired)
	assert.True(t, before.CanView)
	assert.True(t, after.IsExpired)
	assert.False(t, after.CanView)
}

func TestExpirationProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	offsets := gen.Int64Range(-400*24*3600, 400*24*3600)

	properties.Property("daysRemaining is never negative", prop.ForAll(
		func(offset int64, role domain.UserRoleType) bool {
			e := proposal.EvaluateAt(now.Add(time.Duration(offset)*time.Second), role, now)
			return e.DaysRemaining >= 0
		},
		offsets, gen.OneConstOf(allRoles...),
	))

	properties.Property("clients cannot view strictly past proposals", prop.ForAll(
		func(offset int64) bool {
			e := proposal.EvaluateAt(now.Add(-time.Duration(offset)*time.Second), domain.RoleClient, now)
			return e.IsExpired && !e.CanView
		},
		gen.Int64Range(1, 400*24*3600),
	))

	properties.Property("other roles can always view", prop.ForAll(
		func(offset int64, role domain.UserRoleType) bool {
			if role == domain.RoleClient {
				return true
			}
			return proposal.EvaluateAt(now.Add(time.Duration(offset)*time.Second), role, now).CanView
		},
		offsets, gen.OneConstOf(allRoles...),
	))

	properties.Property("expired proposals have zero days remaining", prop.ForAll(
		func(offset int64) bool {
			e := proposal.EvaluateAt(now.Add(time.Duration(offset)*time.Second), domain.RoleAdmin, now)
			return !e.IsExpired || e.DaysRemaining == 0
		},
		offsets,
	))

	properties.Property("future proposals have at least one day remaining", prop.ForAll(
		func(offset int64) bool {
			return proposal.EvaluateAt(now.Add(time.Duration(offset)*time.Second), domain.RoleClient, now).DaysRemaining >= 1
		},
		gen.Int64Range(1, 400*24*3600),
	))

	properties.TestingRun(t)
}
