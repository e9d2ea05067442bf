package mapper

import (
	"time"

	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/brasmat/proposal-api/internal/proposal"
	"github.com/shopspring/decimal"
)

const timestampFormat = "2006-01-02T15:04:05Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampFormat)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// Float converts a decimal to float64 for JSON output
func Float(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// ToClientDTO converts Client to ClientDTO
func ToClientDTO(client *domain.Client) domain.ClientDTO {
	return domain.ClientDTO{
		ID:           client.ID,
		Name:         client.Name,
		Slug:         client.Slug,
		Document:     client.Document,
		Email:        client.Email,
		Phone:        client.Phone,
		ERPCode:      client.ERPCode,
		PortalUserID: client.PortalUserID,
		CreatedAt:    formatTime(client.CreatedAt),
		UpdatedAt:    formatTime(client.UpdatedAt),
	}
}

// ToProposalDTO converts Proposal to ProposalDTO with the validity evaluated for the viewer
func ToProposalDTO(p *domain.Proposal, exp proposal.Expiration) domain.ProposalDTO {
	dto := domain.ProposalDTO{
		ID:              p.ID,
		Number:          p.Number,
		ClientID:        p.ClientID,
		ClientName:      p.ClientName,
		Subtotal:        Float(p.Subtotal),
		DiscountPercent: Float(p.DiscountPercent),
		TotalValue:      Float(p.TotalValue),
		ValidUntil:      formatTime(p.ValidUntil),
		Observations:    p.Observations,
		Status:          p.Status,
		StatusLabel:     proposal.StatusLabel(p.Status),
		StatusColor:     proposal.StatusColor(p.Status),
		ClientStatus:    string(proposal.ClientStateOf(p.Status)),
		ProductGroup:    p.ProductGroup,
		CreatedByID:     p.CreatedByID,
		CreatedByName:   p.CreatedByName,
		SentAt:          formatTimePtr(p.SentAt),
		DecidedAt:       formatTimePtr(p.DecidedAt),
		Expiration:      exp.ToDTO(),
		CreatedAt:       formatTime(p.CreatedAt),
		UpdatedAt:       formatTime(p.UpdatedAt),
	}

	if len(p.Items) > 0 {
		dto.Items = make([]domain.ProposalItemDTO, len(p.Items))
		for i := range p.Items {
			dto.Items[i] = ToProposalItemDTO(&p.Items[i])
		}
	}

	return dto
}

// ToProposalItemDTO converts ProposalItem to ProposalItemDTO
func ToProposalItemDTO(item *domain.ProposalItem) domain.ProposalItemDTO {
	return domain.ProposalItemDTO{
		ID:          item.ID,
		Position:    item.Position,
		Description: item.Description,
		Quantity:    Float(item.Quantity),
		UnitPrice:   Float(item.UnitPrice),
		Total:       Float(item.Total),
		Solution:    item.Solution,
	}
}

// ToInteractionDTO converts ProposalInteraction to InteractionDTO
func ToInteractionDTO(i *domain.ProposalInteraction) domain.InteractionDTO {
	return domain.InteractionDTO{
		ID:          i.ID,
		Type:        i.Type,
		Description: i.Description,
		UserID:      i.UserID,
		UserName:    i.UserName,
		Timestamp:   formatTime(i.OccurredAt),
	}
}

// ToApprovalRequestDTO converts ApprovalRequest to ApprovalRequestDTO
func ToApprovalRequestDTO(r *domain.ApprovalRequest) domain.ApprovalRequestDTO {
	dto := domain.ApprovalRequestDTO{
		ID:                r.ID,
		ProposalID:        r.ProposalID,
		RequestedBy:       r.RequestedBy,
		RequestedByName:   r.RequestedByName,
		ApproverID:        r.ApproverID,
		ApproverName:      r.ApproverName,
		Status:            r.Status,
		RequestedDiscount: Float(r.RequestedDiscount),
		Reason:            r.Reason,
		DecisionNote:      r.DecisionNote,
		DecidedAt:         formatTimePtr(r.DecidedAt),
		CreatedAt:         formatTime(r.CreatedAt),
		UpdatedAt:         formatTime(r.UpdatedAt),
	}
	if r.Proposal != nil {
		dto.ProposalNumber = r.Proposal.Number
	}
	return dto
}

// ToDiscountRuleDTO converts DiscountRule to DiscountRuleDTO
func ToDiscountRuleDTO(rule *domain.DiscountRule) domain.DiscountRuleDTO {
	dto := domain.DiscountRuleDTO{
		ID:                 rule.ID,
		Role:               rule.Role,
		MaxDiscountPercent: Float(rule.MaxDiscountPercent),
		Active:             rule.Active,
		UpdatedAt:          formatTime(rule.UpdatedAt),
	}
	if rule.RequiresApprovalAbove != nil {
		v := Float(*rule.RequiresApprovalAbove)
		dto.RequiresApprovalAbove = &v
	}
	return dto
}

// ToNotificationDTO converts Notification to NotificationDTO
func ToNotificationDTO(notification *domain.Notification) domain.NotificationDTO {
	return domain.NotificationDTO{
		ID:         notification.ID,
		UserID:     notification.UserID,
		Type:       notification.Type,
		Title:      notification.Title,
		Message:    notification.Message,
		Read:       notification.Read,
		ReadAt:     formatTimePtr(notification.ReadAt),
		EntityID:   notification.EntityID,
		EntityType: notification.EntityType,
		CreatedAt:  formatTime(notification.CreatedAt),
	}
}

// ToWhatsAppMessageDTO converts WhatsAppMessage to WhatsAppMessageDTO
func ToWhatsAppMessageDTO(m *domain.WhatsAppMessage) domain.WhatsAppMessageDTO {
	return domain.WhatsAppMessageDTO{
		ID:                m.ID,
		ProposalID:        m.ProposalID,
		ToPhone:           m.ToPhone,
		FromPhone:         m.FromPhone,
		Message:           m.Message,
		Status:            m.Status,
		ProviderMessageID: m.ProviderMessageID,
		Error:             m.Error,
		SentAt:            formatTime(m.SentAt),
	}
}

// ToProposalDocumentDTO converts ProposalDocument to ProposalDocumentDTO
func ToProposalDocumentDTO(d *domain.ProposalDocument) domain.ProposalDocumentDTO {
	return domain.ProposalDocumentDTO{
		ID:          d.ID,
		Filename:    d.Filename,
		ContentType: d.ContentType,
		Size:        d.Size,
		ProposalID:  d.ProposalID,
		CreatedAt:   formatTime(d.CreatedAt),
	}
}

// ToAuditLogDTO converts AuditLog to AuditLogDTO
func ToAuditLogDTO(l *domain.AuditLog) domain.AuditLogDTO {
	return domain.AuditLogDTO{
		ID:          l.ID,
		UserID:      l.UserID,
		UserEmail:   l.UserEmail,
		UserRole:    l.UserRole,
		Action:      l.Action,
		EntityType:  l.EntityType,
		EntityID:    l.EntityID,
		NewValues:   l.NewValues,
		IPAddress:   l.IPAddress,
		RequestID:   l.RequestID,
		PerformedAt: formatTime(l.PerformedAt),
	}
}

// CalculateItemTotal returns quantity * unitPrice rounded to cents
func CalculateItemTotal(quantity, unitPrice decimal.Decimal) decimal.Decimal {
	return quantity.Mul(unitPrice).Round(2)
}

// ApplyDiscount returns subtotal reduced by percent, rounded to cents
func ApplyDiscount(subtotal, percent decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Sub(percent.Div(decimal.NewFromInt(100)))
	return subtotal.Mul(factor).Round(2)
}
