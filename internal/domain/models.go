package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// BeforeCreate assigns a new ID when none was set by the caller
func (m *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// UserRoleType represents a role a portal user can have
type UserRoleType string

const (
	RoleAdmin          UserRoleType = "admin"
	RoleManager        UserRoleType = "gerente"
	RoleInternalSeller UserRoleType = "vendedor_interno"
	RoleExternalSeller UserRoleType = "vendedor_externo"
	RoleClient         UserRoleType = "client"
	RoleAPIService     UserRoleType = "api_service"
)

// IsValid checks if the UserRoleType is a valid enum value
func (r UserRoleType) IsValid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleInternalSeller, RoleExternalSeller, RoleClient, RoleAPIService:
		return true
	}
	return false
}

// CanDecideApprovals reports whether the role may approve or reject approval requests
func (r UserRoleType) CanDecideApprovals() bool {
	return r == RoleAdmin || r == RoleManager || r == RoleAPIService
}

// Client represents a customer company buying from the retailer
type Client struct {
	BaseModel
	Name     string  `gorm:"type:varchar(200);not null;index"`
	Slug     string  `gorm:"type:varchar(200);not null;uniqueIndex"`
	Document string  `gorm:"type:varchar(20);index"`
	Email    string  `gorm:"type:varchar(255)"`
	Phone    string  `gorm:"type:varchar(30)"`
	ERPCode  *string `gorm:"type:varchar(50);column:erp_code"`
	// PortalUserID links the client company to its portal login
	PortalUserID *uuid.UUID `gorm:"type:uuid;index;column:portal_user_id"`
}

// ProposalStatus represents the persisted lifecycle status of a proposal
type ProposalStatus string

const (
	ProposalStatusDraft    ProposalStatus = "draft"
	ProposalStatusSent     ProposalStatus = "sent"
	ProposalStatusViewed   ProposalStatus = "viewed"
	ProposalStatusAccepted ProposalStatus = "accepted"
	ProposalStatusRejected ProposalStatus = "rejected"
	ProposalStatusExpired  ProposalStatus = "expired"
)

// IsValid checks if the ProposalStatus is a valid enum value
func (s ProposalStatus) IsValid() bool {
	switch s {
	case ProposalStatusDraft, ProposalStatusSent, ProposalStatusViewed,
		ProposalStatusAccepted, ProposalStatusRejected, ProposalStatusExpired:
		return true
	}
	return false
}

// IsOpen returns true while the client can still act on the proposal
func (s ProposalStatus) IsOpen() bool {
	return s == ProposalStatusSent || s == ProposalStatusViewed
}

// ProductGroup classifies a proposal for presentation purposes only
type ProductGroup string

const (
	ProductGroupGeneric    ProductGroup = "generic"
	ProductGroupRoofing    ProductGroup = "telhas"
	ProductGroupStructural ProductGroup = "estrutural"
	ProductGroupFinishing  ProductGroup = "acabamento"
	ProductGroupPlumbing   ProductGroup = "hidraulica"
)

// Proposal represents a priced quote sent to a client
type Proposal struct {
	BaseModel
	Number          string          `gorm:"type:varchar(30);uniqueIndex"`
	ClientID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	Client          *Client         `gorm:"foreignKey:ClientID"`
	ClientName      string          `gorm:"type:varchar(200)"`
	Subtotal        decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0"`
	DiscountPercent decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0;column:discount_percent"`
	TotalValue      decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0;column:total_value"`
	ValidUntil      time.Time       `gorm:"not null;index;column:valid_until"`
	Observations    string          `gorm:"type:text"`
	Status          ProposalStatus  `gorm:"type:varchar(20);not null;index"`
	ProductGroup    *ProductGroup   `gorm:"type:varchar(30);column:product_group"`
	CreatedByID     uuid.UUID       `gorm:"type:uuid;not null;index;column:created_by_id"`
	CreatedByName   string          `gorm:"type:varchar(200);column:created_by_name"`
	SentAt          *time.Time      `gorm:"column:sent_at"`
	DecidedAt       *time.Time      `gorm:"column:decided_at"`
	Items           []ProposalItem  `gorm:"foreignKey:ProposalID;constraint:OnDelete:CASCADE"`
}

// ProposalItem represents a line item of a proposal
type ProposalItem struct {
	BaseModel
	ProposalID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	Position    int             `gorm:"not null;default:0"`
	Description string          `gorm:"type:varchar(500);not null"`
	Quantity    decimal.Decimal `gorm:"type:decimal(12,3);not null"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(15,2);not null;column:unit_price"`
	Total       decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	Solution    string          `gorm:"type:varchar(100)"`
}

// InteractionType represents the kind of entry in a proposal interaction log
type InteractionType string

const (
	InteractionCreated InteractionType = "created"
	InteractionSent    InteractionType = "sent"
	InteractionViewed  InteractionType = "viewed"
	InteractionAccept  InteractionType = "accept"
	InteractionReject  InteractionType = "reject"
	InteractionExpired InteractionType = "expired"
	InteractionMessage InteractionType = "message"
	InteractionNote    InteractionType = "note"
)

// ProposalInteraction is an append-only log entry for a proposal
type ProposalInteraction struct {
	BaseModel
	ProposalID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	Type        InteractionType `gorm:"type:varchar(20);not null"`
	Description string          `gorm:"type:varchar(1000);not null"`
	UserID      *uuid.UUID      `gorm:"type:uuid;column:user_id"`
	UserName    string          `gorm:"type:varchar(200);column:user_name"`
	OccurredAt  time.Time       `gorm:"not null;index;column:occurred_at"`
}

// ApprovalStatus represents the decision state of an approval request
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
)

// IsValid checks if the ApprovalStatus is a valid enum value
func (s ApprovalStatus) IsValid() bool {
	switch s {
	case ApprovalStatusPending, ApprovalStatusApproved, ApprovalStatusRejected:
		return true
	}
	return false
}

// ApprovalRequest asks a privileged user to approve a discount on a proposal
type ApprovalRequest struct {
	BaseModel
	ProposalID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	Proposal          *Proposal       `gorm:"foreignKey:ProposalID"`
	RequestedBy       uuid.UUID       `gorm:"type:uuid;not null;index;column:requested_by"`
	RequestedByName   string          `gorm:"type:varchar(200);column:requested_by_name"`
	RequestedByEmail  string          `gorm:"type:varchar(255);column:requested_by_email"`
	ApproverID        *uuid.UUID      `gorm:"type:uuid;column:approver_id"`
	ApproverName      string          `gorm:"type:varchar(200);column:approver_name"`
	Status            ApprovalStatus  `gorm:"type:varchar(20);not null;default:'pending';index"`
	RequestedDiscount decimal.Decimal `gorm:"type:decimal(5,2);not null;column:requested_discount"`
	Reason            string          `gorm:"type:text;not null"`
	DecisionNote      string          `gorm:"type:text;column:decision_note"`
	DecidedAt         *time.Time      `gorm:"column:decided_at"`
}

// DiscountRule holds the discount ceiling for a single role
type DiscountRule struct {
	BaseModel
	Role                  UserRoleType     `gorm:"type:varchar(30);not null;uniqueIndex"`
	MaxDiscountPercent    decimal.Decimal  `gorm:"type:decimal(5,2);not null;column:max_discount_percent"`
	RequiresApprovalAbove *decimal.Decimal `gorm:"type:decimal(5,2);column:requires_approval_above"`
	Active                bool             `gorm:"not null"`
	UpdatedByName         string           `gorm:"type:varchar(200);column:updated_by_name"`
}

// NumberSequence tracks the last used proposal number per year
type NumberSequence struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key"`
	Year         int       `gorm:"not null;uniqueIndex"`
	LastSequence int       `gorm:"not null;default:0;column:last_sequence"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// NotificationType represents the type of notification
type NotificationType string

const (
	NotificationTypeProposalAccepted NotificationType = "proposal_accepted"
	NotificationTypeProposalRejected NotificationType = "proposal_rejected"
	NotificationTypeProposalExpired  NotificationType = "proposal_expired"
	NotificationTypeApprovalRequest  NotificationType = "approval_requested"
	NotificationTypeApprovalDecided  NotificationType = "approval_decided"
)

// Notification represents an in-app user notification
type Notification struct {
	BaseModel
	UserID     uuid.UUID `gorm:"type:uuid;not null;index"`
	Type       string    `gorm:"type:varchar(50);not null"`
	Title      string    `gorm:"type:varchar(200);not null"`
	Message    string    `gorm:"type:varchar(500);not null"`
	Read       bool      `gorm:"column:read;not null;default:false;index"`
	ReadAt     *time.Time
	EntityID   *uuid.UUID `gorm:"type:uuid"`
	EntityType string     `gorm:"type:varchar(50)"`
}

// MessageStatus represents the delivery status of a WhatsApp message
type MessageStatus string

const (
	MessageStatusSent   MessageStatus = "sent"
	MessageStatusFailed MessageStatus = "failed"
)

// WhatsAppMessage is the history record of an outbound WhatsApp message
type WhatsAppMessage struct {
	BaseModel
	ProposalID        *uuid.UUID    `gorm:"type:uuid;index"`
	ToPhone           string        `gorm:"type:varchar(30);not null;column:to_phone"`
	FromPhone         string        `gorm:"type:varchar(30);column:from_phone"`
	Message           string        `gorm:"type:text;not null"`
	Status            MessageStatus `gorm:"type:varchar(20);not null;index"`
	ProviderMessageID string        `gorm:"type:varchar(100);column:provider_message_id"`
	Error             string        `gorm:"type:varchar(500)"`
	SentByID          *uuid.UUID    `gorm:"type:uuid;column:sent_by_id"`
	SentAt            time.Time     `gorm:"not null;column:sent_at"`
}

// TableName keeps the table name readable
func (WhatsAppMessage) TableName() string {
	return "whatsapp_messages"
}

// ProposalDocument is an uploaded PDF kept in file storage
type ProposalDocument struct {
	BaseModel
	Filename     string     `gorm:"type:varchar(255);not null"`
	ContentType  string     `gorm:"type:varchar(100);not null;column:content_type"`
	Size         int64      `gorm:"not null"`
	StoragePath  string     `gorm:"type:varchar(500);not null;uniqueIndex;column:storage_path"`
	ProposalID   *uuid.UUID `gorm:"type:uuid;index"`
	UploadedByID *uuid.UUID `gorm:"type:uuid;column:uploaded_by_id"`
}

// AuditAction represents the kind of change recorded in the audit log
type AuditAction string

const (
	AuditActionCreate AuditAction = "create"
	AuditActionUpdate AuditAction = "update"
	AuditActionDelete AuditAction = "delete"
	AuditActionRead   AuditAction = "read"
	AuditActionLogin  AuditAction = "login"
	AuditActionLogout AuditAction = "logout"
)

// AuditLog is an append-only record of a modifying request
type AuditLog struct {
	ID          uuid.UUID   `gorm:"type:uuid;primary_key"`
	UserID      string      `gorm:"type:varchar(100);column:user_id;index"`
	UserEmail   string      `gorm:"type:varchar(255);column:user_email"`
	UserRole    string      `gorm:"type:varchar(30);column:user_role"`
	Action      AuditAction `gorm:"type:varchar(20);not null"`
	EntityType  string      `gorm:"type:varchar(50);not null;column:entity_type;index"`
	EntityID    *uuid.UUID  `gorm:"type:uuid;column:entity_id"`
	NewValues   string      `gorm:"type:text;column:new_values"`
	IPAddress   string      `gorm:"type:varchar(64);column:ip_address"`
	UserAgent   string      `gorm:"type:text;column:user_agent"`
	RequestID   string      `gorm:"type:varchar(100);column:request_id"`
	PerformedAt time.Time   `gorm:"not null;column:performed_at;index"`
}

// BeforeCreate assigns a new ID when none was set by the caller
func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
