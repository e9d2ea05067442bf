package mapper_test

import (
	"testing"
	"time"

	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/brasmat/proposal-api/internal/mapper"
	"github.com/brasmat/proposal-api/internal/proposal"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDiscount(t *testing.T) {
	tests := []struct {
		subtotal string
		percent  string
		want     string
	}{
		{"1000", "0", "1000"},
		{"1000", "10", "900"},
		{"1234.56", "7.5", "1141.97"},
		{"99.99", "100", "0"},
	}
	for _, tt := range tests {
		got := mapper.ApplyDiscount(decimal.RequireFromString(tt.subtotal), decimal.RequireFromString(tt.percent))
		assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "%s - %s%% = %s", tt.subtotal, tt.percent, got)
	}
}

func TestCalculateItemTotal(t *testing.T) {
	got := mapper.CalculateItemTotal(decimal.RequireFromString("12.5"), decimal.RequireFromString("3.333"))
	assert.Equal(t, "41.66", got.StringFixed(2))
}

func TestToProposalDTO(t *testing.T) {
	sent := time.Date(2026, 10, 1, 10, 0, 0, 0, time.UTC)
	p := &domain.Proposal{
		Number:     "PROP-2026-0007",
		Subtotal:   decimal.NewFromInt(1000),
		TotalValue: decimal.NewFromInt(950),
		ValidUntil: time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC),
		Status:     domain.ProposalStatusViewed,
		SentAt:     &sent,
		Items: []domain.ProposalItem{
			{Description: "Caixa d'água 1000L", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(1000), Total: decimal.NewFromInt(1000)},
		},
	}

	dto := mapper.ToProposalDTO(p, proposal.Expiration{DaysRemaining: 4, CanView: true})

	assert.Equal(t, "Visualizada", dto.StatusLabel)
	assert.Equal(t, "pending", dto.ClientStatus)
	assert.Equal(t, 950.0, dto.TotalValue)
	assert.Equal(t, "2026-10-20T00:00:00Z", dto.ValidUntil)
	require.NotNil(t, dto.SentAt)
	assert.Equal(t, "2026-10-01T10:00:00Z", *dto.SentAt)
	assert.Nil(t, dto.DecidedAt)
	assert.Equal(t, 4, dto.Expiration.DaysRemaining)
	require.Len(t, dto.Items, 1)
	assert.Equal(t, 1000.0, dto.Items[0].Total)
}
