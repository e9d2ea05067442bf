package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/brasmat/proposal-api/internal/erp"
	"github.com/brasmat/proposal-api/internal/mapper"
	"github.com/brasmat/proposal-api/internal/proposal"
	"github.com/brasmat/proposal-api/internal/repository"
	"github.com/brasmat/proposal-api/internal/validation"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CustomerLookup finds a company in the ERP by its tax document
type CustomerLookup interface {
	LookupCustomer(ctx context.Context, document string) (*erp.Customer, error)
}

// ClientService manages client companies
type ClientService struct {
	clientRepo *repository.ClientRepository
	erp        CustomerLookup
	logger     *zap.Logger
}

// NewClientService creates a new ClientService instance. lookup may be nil when the ERP is
// not connected.
func NewClientService(clientRepo *repository.ClientRepository, lookup CustomerLookup, logger *zap.Logger) *ClientService {
	return &ClientService{clientRepo: clientRepo, erp: lookup, logger: logger}
}

const erpLookupTimeout = 5 * time.Second

// Create stores a client with a unique slug. When the ERP knows the document its customer
// code is linked; ERP trouble never blocks the creation.
func (s *ClientService) Create(ctx context.Context, req *domain.CreateClientRequest) (*domain.ClientDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if !user.IsStaff() {
		return nil, kindError(ErrPermissionDenied, "clients cannot register companies")
	}
	if err := checkRequest(req); err != nil {
		return nil, err
	}

	name := validation.SanitizeText(req.Name)
	if name == "" {
		return nil, validationError("name", "is required")
	}
	slug, err := s.uniqueSlug(ctx, name)
	if err != nil {
		return nil, err
	}

	client := &domain.Client{
		Name:         name,
		Slug:         slug,
		Document:     erp.NormalizeDocument(req.Document),
		Email:        req.Email,
		Phone:        validation.SanitizeText(req.Phone),
		PortalUserID: req.PortalUserID,
	}
	s.linkERP(ctx, client)

	if err := s.clientRepo.Create(ctx, client); err != nil {
		return nil, persistenceError("create client", err)
	}

	s.logger.Info("client created",
		zap.String("client_id", client.ID.String()),
		zap.String("slug", client.Slug),
		zap.Bool("erp_linked", client.ERPCode != nil))

	dto := mapper.ToClientDTO(client)
	return &dto, nil
}

// uniqueSlug appends -2, -3, ... until the slug is free
func (s *ClientService) uniqueSlug(ctx context.Context, name string) (string, error) {
	base := proposal.Slugify(name)
	if base == "" {
		base = "cliente"
	}
	slug := base
	for n := 2; ; n++ {
		exists, err := s.clientRepo.SlugExists(ctx, slug)
		if err != nil {
			return "", persistenceError("check slug", err)
		}
		if !exists {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, n)
	}
}

func (s *ClientService) linkERP(ctx context.Context, client *domain.Client) {
	if s.erp == nil || client.Document == "" {
		return
	}
	lookupCtx, cancel := context.WithTimeout(ctx, erpLookupTimeout)
	defer cancel()

	customer, err := s.erp.LookupCustomer(lookupCtx, client.Document)
	switch {
	case errors.Is(err, erp.ErrNotEnabled), errors.Is(err, erp.ErrCustomerNotFound):
		return
	case err != nil:
		s.logger.Warn("ERP customer lookup failed", zap.String("slug", client.Slug), zap.Error(err))
		return
	}

	code := customer.Code
	client.ERPCode = &code
	if client.Email == "" {
		client.Email = customer.Email
	}
	if client.Phone == "" {
		client.Phone = customer.Phone
	}
}

// GetByID returns a client. Portal users only see their own company.
func (s *ClientService) GetByID(ctx context.Context, id uuid.UUID) (*domain.ClientDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	client, err := s.clientRepo.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrClientNotFound
		}
		return nil, persistenceError("get client", err)
	}
	if user.Role == domain.RoleClient && (client.PortalUserID == nil || *client.PortalUserID != user.UserID) {
		return nil, ErrClientNotFound
	}
	dto := mapper.ToClientDTO(client)
	return &dto, nil
}

// GetBySlug resolves a client from its URL slug
func (s *ClientService) GetBySlug(ctx context.Context, slug string) (*domain.ClientDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	client, err := s.clientRepo.GetBySlug(ctx, slug)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrClientNotFound
		}
		return nil, persistenceError("get client", err)
	}
	if user.Role == domain.RoleClient && (client.PortalUserID == nil || *client.PortalUserID != user.UserID) {
		return nil, ErrClientNotFound
	}
	dto := mapper.ToClientDTO(client)
	return &dto, nil
}

// Mine returns the company linked to the caller's portal login
func (s *ClientService) Mine(ctx context.Context) (*domain.ClientDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	client, err := s.clientRepo.GetByPortalUser(ctx, user.UserID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrClientNotFound
		}
		return nil, persistenceError("get client", err)
	}
	dto := mapper.ToClientDTO(client)
	return &dto, nil
}

// List returns clients ordered by name
func (s *ClientService) List(ctx context.Context, page, pageSize int, search string) (*domain.PaginatedResponse, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if !user.IsStaff() {
		return nil, kindError(ErrPermissionDenied, "clients cannot list companies")
	}

	clients, total, err := s.clientRepo.List(ctx, page, pageSize, validation.SanitizeText(search))
	if err != nil {
		return nil, persistenceError("list clients", err)
	}
	dtos := make([]domain.ClientDTO, len(clients))
	for i := range clients {
		dtos[i] = mapper.ToClientDTO(&clients[i])
	}
	return paginated(dtos, total, page, pageSize), nil
}
