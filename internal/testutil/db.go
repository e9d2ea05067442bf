// Package testutil holds shared fixtures for package tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/brasmat/proposal-api/internal/database"
	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB opens a private in-memory SQLite database with every model migrated.
// A single connection keeps the in-memory database alive for the whole test.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_busy_timeout=5000", name, time.Now().UnixNano())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

// CreateTestClient creates a client company
func CreateTestClient(t *testing.T, db *gorm.DB, name string, portalUser *uuid.UUID) *domain.Client {
	t.Helper()
	client := &domain.Client{
		Name:         name,
		Slug:         strings.ToLower(strings.ReplaceAll(name, " ", "-")) + "-" + uuid.NewString()[:8],
		Document:     "12345678000190",
		Email:        "compras@example.com",
		Phone:        "+5511999990000",
		PortalUserID: portalUser,
	}
	require.NoError(t, db.Create(client).Error)
	return client
}

// ProposalOption customises a test proposal
type ProposalOption func(*domain.Proposal)

// WithStatus sets the persisted status
func WithStatus(status domain.ProposalStatus) ProposalOption {
	return func(p *domain.Proposal) { p.Status = status }
}

// WithValidUntil sets the validity timestamp
func WithValidUntil(t time.Time) ProposalOption {
	return func(p *domain.Proposal) { p.ValidUntil = t }
}

// WithCreator sets the creating seller
func WithCreator(id uuid.UUID) ProposalOption {
	return func(p *domain.Proposal) { p.CreatedByID = id }
}

// WithTotal sets subtotal and total with no discount
func WithTotal(v int64) ProposalOption {
	return func(p *domain.Proposal) {
		p.Subtotal = decimal.NewFromInt(v)
		p.TotalValue = decimal.NewFromInt(v)
	}
}

// CreateTestProposal creates a sent proposal with one item, valid for ten days
func CreateTestProposal(t *testing.T, db *gorm.DB, client *domain.Client, opts ...ProposalOption) *domain.Proposal {
	t.Helper()
	p := &domain.Proposal{
		Number:          "PROP-TEST-" + uuid.NewString()[:8],
		ClientID:        client.ID,
		ClientName:      client.Name,
		Subtotal:        decimal.NewFromInt(1000),
		DiscountPercent: decimal.Zero,
		TotalValue:      decimal.NewFromInt(1000),
		ValidUntil:      time.Now().UTC().Add(10 * 24 * time.Hour).Truncate(time.Second),
		Status:          domain.ProposalStatusSent,
		CreatedByID:     uuid.New(),
		CreatedByName:   "Vendedor Teste",
		Items: []domain.ProposalItem{
			{
				Position:    0,
				Description: "Telha cerâmica portuguesa",
				Quantity:    decimal.NewFromInt(100),
				UnitPrice:   decimal.NewFromInt(10),
				Total:       decimal.NewFromInt(1000),
				Solution:    "Cobertura",
			},
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	require.NoError(t, db.Create(p).Error)
	return p
}
