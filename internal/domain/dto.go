package domain

import (
	"github.com/google/uuid"
)

// DTOs for API responses. Timestamps are ISO 8601 strings.

// ClientDTO represents a customer company
type ClientDTO struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	Slug         string     `json:"slug"`
	Document     string     `json:"document,omitempty"`
	Email        string     `json:"email,omitempty"`
	Phone        string     `json:"phone,omitempty"`
	ERPCode      *string    `json:"erpCode,omitempty"`
	PortalUserID *uuid.UUID `json:"portalUserId,omitempty"`
	CreatedAt    string     `json:"createdAt"`
	UpdatedAt    string     `json:"updatedAt"`
}

// ExpirationDTO is the read-time validity evaluation of a proposal
type ExpirationDTO struct {
	IsExpired     bool `json:"isExpired"`
	DaysRemaining int  `json:"daysRemaining"`
	CanView       bool `json:"canView"`
}

// ProposalDTO represents a proposal with its evaluated validity
type ProposalDTO struct {
	ID              uuid.UUID         `json:"id"`
	Number          string            `json:"number"`
	ClientID        uuid.UUID         `json:"clientId"`
	ClientName      string            `json:"clientName"`
	Subtotal        float64           `json:"subtotal"`
	DiscountPercent float64           `json:"discountPercent"`
	TotalValue      float64           `json:"totalValue"`
	ValidUntil      string            `json:"validUntil"`
	Observations    string            `json:"observations,omitempty"`
	Status          ProposalStatus    `json:"status"`
	StatusLabel     string            `json:"statusLabel"`
	StatusColor     string            `json:"statusColor"`
	ClientStatus    string            `json:"clientStatus"`
	ProductGroup    *ProductGroup     `json:"productGroup,omitempty"`
	CreatedByID     uuid.UUID         `json:"createdById"`
	CreatedByName   string            `json:"createdByName,omitempty"`
	SentAt          *string           `json:"sentAt,omitempty"`
	DecidedAt       *string           `json:"decidedAt,omitempty"`
	Expiration      ExpirationDTO     `json:"expiration"`
	Items           []ProposalItemDTO `json:"items,omitempty"`
	CreatedAt       string            `json:"createdAt"`
	UpdatedAt       string            `json:"updatedAt"`
}

// ProposalItemDTO represents a proposal line item
type ProposalItemDTO struct {
	ID          uuid.UUID `json:"id"`
	Position    int       `json:"position"`
	Description string    `json:"description"`
	Quantity    float64   `json:"quantity"`
	UnitPrice   float64   `json:"unitPrice"`
	Total       float64   `json:"total"`
	Solution    string    `json:"solution,omitempty"`
}

// InteractionDTO represents an interaction log entry
type InteractionDTO struct {
	ID          uuid.UUID       `json:"id"`
	Type        InteractionType `json:"type"`
	Description string          `json:"description"`
	UserID      *uuid.UUID      `json:"userId,omitempty"`
	UserName    string          `json:"userName,omitempty"`
	Timestamp   string          `json:"timestamp"`
}

// ApprovalRequestDTO represents an approval request
type ApprovalRequestDTO struct {
	ID                uuid.UUID      `json:"id"`
	ProposalID        uuid.UUID      `json:"proposalId"`
	ProposalNumber    string         `json:"proposalNumber,omitempty"`
	RequestedBy       uuid.UUID      `json:"requestedBy"`
	RequestedByName   string         `json:"requestedByName,omitempty"`
	ApproverID        *uuid.UUID     `json:"approverId,omitempty"`
	ApproverName      string         `json:"approverName,omitempty"`
	Status            ApprovalStatus `json:"status"`
	RequestedDiscount float64        `json:"requestedDiscount"`
	Reason            string         `json:"reason"`
	DecisionNote      string         `json:"decisionNote,omitempty"`
	DecidedAt         *string        `json:"decidedAt,omitempty"`
	CreatedAt         string         `json:"createdAt"`
	UpdatedAt         string         `json:"updatedAt"`
}

// DiscountRuleDTO represents a per-role discount ceiling
type DiscountRuleDTO struct {
	ID                    uuid.UUID    `json:"id"`
	Role                  UserRoleType `json:"role"`
	MaxDiscountPercent    float64      `json:"maxDiscountPercent"`
	RequiresApprovalAbove *float64     `json:"requiresApprovalAbove,omitempty"`
	Active                bool         `json:"active"`
	UpdatedAt             string       `json:"updatedAt"`
}

// DiscountDecisionDTO is the outcome of checking a discount against the caller's rule
type DiscountDecisionDTO struct {
	Allowed          bool    `json:"allowed"`
	RequiresApproval bool    `json:"requiresApproval"`
	Ceiling          float64 `json:"ceiling"`
	HasRule          bool    `json:"hasRule"`
}

// NotificationDTO represents a user notification
type NotificationDTO struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"userId"`
	Type       string     `json:"type"`
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	Read       bool       `json:"read"`
	ReadAt     *string    `json:"readAt,omitempty"`
	EntityID   *uuid.UUID `json:"entityId,omitempty"`
	EntityType string     `json:"entityType,omitempty"`
	CreatedAt  string     `json:"createdAt"`
}

// UnreadCountDTO represents the count of unread notifications
type UnreadCountDTO struct {
	Count int64 `json:"count"`
}

// WhatsAppMessageDTO represents a message history record
type WhatsAppMessageDTO struct {
	ID                uuid.UUID     `json:"id"`
	ProposalID        *uuid.UUID    `json:"proposalId,omitempty"`
	ToPhone           string        `json:"toPhone"`
	FromPhone         string        `json:"fromPhone,omitempty"`
	Message           string        `json:"message"`
	Status            MessageStatus `json:"status"`
	ProviderMessageID string        `json:"providerMessageId,omitempty"`
	Error             string        `json:"error,omitempty"`
	SentAt            string        `json:"sentAt"`
}

// FollowUpDTO reports whether a follow-up was sent now or queued for later
type FollowUpDTO struct {
	Queued       bool                `json:"queued"`
	ScheduledFor *string             `json:"scheduledFor,omitempty"`
	Message      *WhatsAppMessageDTO `json:"message,omitempty"`
}

// ProposalDashboardDTO aggregates proposal figures for the admin dashboard
type ProposalDashboardDTO struct {
	CountsByStatus        map[ProposalStatus]int64 `json:"countsByStatus"`
	AcceptedValue         float64                  `json:"acceptedValue"`
	PendingApprovals      int64                    `json:"pendingApprovals"`
	ExpiringSoon          []ProposalDTO            `json:"expiringSoon"`
	ExpiringWithinDays    int                      `json:"expiringWithinDays"`
	AcceptanceRatePercent float64                  `json:"acceptanceRatePercent"`
}

// SearchResultsDTO is the global search across clients and proposals
type SearchResultsDTO struct {
	Clients   []ClientDTO   `json:"clients"`
	Proposals []ProposalDTO `json:"proposals"`
	Total     int           `json:"total"`
}

// SessionStatusDTO reports the server-side inactivity countdown
type SessionStatusDTO struct {
	State            string `json:"state"`
	RemainingSeconds int64  `json:"remainingSeconds"`
	ShowWarning      bool   `json:"showWarning"`
}

// LoginResponse is returned after a successful identity provider login
type LoginResponse struct {
	AccessToken  string           `json:"accessToken"`
	RefreshToken string           `json:"refreshToken,omitempty"`
	ExpiresIn    int              `json:"expiresIn"`
	User         AuthUserDTO      `json:"user"`
	Session      SessionStatusDTO `json:"session"`
}

// AuthUserDTO represents the current user
type AuthUserDTO struct {
	ID    string       `json:"id"`
	Name  string       `json:"name"`
	Email string       `json:"email"`
	Role  UserRoleType `json:"role"`
}

// FingerprintDTO carries a computed device fingerprint
type FingerprintDTO struct {
	Fingerprint string `json:"fingerprint"`
	Saved       bool   `json:"saved"`
}

// DeviceCheckDTO reports whether the device matches the stored fingerprint
type DeviceCheckDTO struct {
	Fingerprint string `json:"fingerprint"`
	Known       bool   `json:"known"`
}

// ExtractedItemDTO is a line item read from an uploaded PDF
type ExtractedItemDTO struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	Total       float64 `json:"total"`
}

// ExtractionResultDTO is the structured content of an uploaded PDF
type ExtractionResultDTO struct {
	ClientName string             `json:"clientName"`
	Items      []ExtractedItemDTO `json:"items"`
	StorageKey string             `json:"storageKey,omitempty"`
}

// AssistantChatResponse wraps the assistant reply
type AssistantChatResponse struct {
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// AuditLogDTO represents an audit log entry
type AuditLogDTO struct {
	ID          uuid.UUID   `json:"id"`
	UserID      string      `json:"userId,omitempty"`
	UserEmail   string      `json:"userEmail,omitempty"`
	UserRole    string      `json:"userRole,omitempty"`
	Action      AuditAction `json:"action"`
	EntityType  string      `json:"entityType"`
	EntityID    *uuid.UUID  `json:"entityId,omitempty"`
	NewValues   string      `json:"newValues,omitempty"`
	IPAddress   string      `json:"ipAddress,omitempty"`
	RequestID   string      `json:"requestId,omitempty"`
	PerformedAt string      `json:"performedAt"`
}

// ProposalDocumentDTO represents a stored PDF
type ProposalDocumentDTO struct {
	ID          uuid.UUID  `json:"id"`
	Filename    string     `json:"filename"`
	ContentType string     `json:"contentType"`
	Size        int64      `json:"size"`
	ProposalID  *uuid.UUID `json:"proposalId,omitempty"`
	CreatedAt   string     `json:"createdAt"`
}

// HealthResponse is returned by the readiness probe
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// PaginatedResponse wraps list results
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"pageSize"`
	TotalPages int         `json:"totalPages"`
}

// Request DTOs

type CreateClientRequest struct {
	Name         string     `json:"name" validate:"required,max=200"`
	Document     string     `json:"document,omitempty" validate:"omitempty,min=11,max=20"`
	Email        string     `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Phone        string     `json:"phone,omitempty" validate:"max=30"`
	PortalUserID *uuid.UUID `json:"portalUserId,omitempty"`
}

type CreateProposalItemRequest struct {
	Description string  `json:"description" validate:"required,max=500"`
	Quantity    float64 `json:"quantity" validate:"gt=0"`
	UnitPrice   float64 `json:"unitPrice" validate:"gt=0"`
	Solution    string  `json:"solution,omitempty" validate:"max=100"`
}

type CreateProposalRequest struct {
	ClientID        uuid.UUID                   `json:"clientId" validate:"required"`
	ValidUntil      string                      `json:"validUntil" validate:"required"`
	DiscountPercent float64                     `json:"discountPercent" validate:"gte=0,lte=100"`
	Observations    string                      `json:"observations,omitempty" validate:"max=5000"`
	ProductGroup    *ProductGroup               `json:"productGroup,omitempty"`
	Items           []CreateProposalItemRequest `json:"items" validate:"required,min=1,dive"`
}

// ProposalDecisionRequest carries an optional comment on accept/reject
type ProposalDecisionRequest struct {
	Comment string `json:"comment,omitempty" validate:"max=1000"`
}

// AddNoteRequest appends an internal note to the interaction log
type AddNoteRequest struct {
	Note string `json:"note" validate:"required,max=1000"`
}

type CreateApprovalRequest struct {
	ProposalID        uuid.UUID `json:"proposalId" validate:"required"`
	RequestedDiscount float64   `json:"requestedDiscount" validate:"required,gt=0,lte=100"`
	Reason            string    `json:"reason" validate:"required,max=2000"`
}

// UpdateApprovalRequest is a partial update; nil fields are left untouched
type UpdateApprovalRequest struct {
	Status       *ApprovalStatus `json:"status,omitempty" validate:"omitempty,oneof=approved rejected"`
	DecisionNote *string         `json:"decisionNote,omitempty" validate:"omitempty,max=2000"`
}

// UpdateDiscountRuleRequest is a partial update; nil fields are left untouched
type UpdateDiscountRuleRequest struct {
	MaxDiscountPercent    *float64 `json:"maxDiscountPercent,omitempty" validate:"omitempty,gte=0,lte=100"`
	RequiresApprovalAbove *float64 `json:"requiresApprovalAbove,omitempty" validate:"omitempty,gte=0,lte=100"`
	Active                *bool    `json:"active,omitempty"`
}

type CheckDiscountRequest struct {
	DiscountPercent float64 `json:"discountPercent" validate:"gte=0,lte=100"`
}

type SendWhatsAppRequest struct {
	ToPhone    string     `json:"toPhone" validate:"required,max=30"`
	Message    string     `json:"message" validate:"required,max=4096"`
	ProposalID *uuid.UUID `json:"proposalId,omitempty"`
}

type FollowUpRequest struct {
	Message string `json:"message,omitempty" validate:"max=4096"`
	// DelayMinutes postpones delivery through the task queue
	DelayMinutes int `json:"delayMinutes,omitempty" validate:"gte=0,lte=10080"`
}

type AssistantChatRequest struct {
	Message         string                 `json:"message" validate:"required,max=4000"`
	ProposalData    map[string]interface{} `json:"proposalData,omitempty"`
	ClientQuestions []string               `json:"clientQuestions,omitempty" validate:"max=20"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type DeviceSignalsRequest struct {
	UserAgent        string `json:"userAgent" validate:"max=1000"`
	Language         string `json:"language" validate:"max=50"`
	Platform         string `json:"platform" validate:"max=100"`
	ScreenResolution string `json:"screenResolution" validate:"max=50"`
	Timezone         string `json:"timezone" validate:"max=100"`
	ColorDepth       int    `json:"colorDepth" validate:"gte=0,lte=64"`
	CookiesEnabled   bool   `json:"cookiesEnabled"`
	CanvasHash       string `json:"canvasHash" validate:"max=10000"`
	Save             bool   `json:"save,omitempty"`
}

// SessionActivityRequest reports a user interaction from the portal
type SessionActivityRequest struct {
	Kind string `json:"kind" validate:"required"`
}

type UpdatePasswordCheckRequest struct {
	Password string `json:"password" validate:"required"`
}

// PasswordCheckDTO lists the password policy violations
type PasswordCheckDTO struct {
	Valid      bool     `json:"valid"`
	Violations []string `json:"violations"`
}
