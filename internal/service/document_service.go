package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/brasmat/proposal-api/internal/extraction"
	"github.com/brasmat/proposal-api/internal/mapper"
	"github.com/brasmat/proposal-api/internal/repository"
	"github.com/brasmat/proposal-api/internal/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Extractor turns a PDF into structured proposal content
type Extractor interface {
	Extract(ctx context.Context, filename string, data []byte) (*extraction.Result, error)
	MaxSize() int64
}

// DocumentUpload is an uploaded file as received by the handler
type DocumentUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Data        io.Reader
	ProposalID  *uuid.UUID
}

// DocumentService stores uploaded PDFs and extracts their content
type DocumentService struct {
	docRepo      *repository.DocumentRepository
	proposalRepo *repository.ProposalRepository
	storage      storage.Storage
	extractor    Extractor
	storeUploads bool
	logger       *zap.Logger
}

// NewDocumentService creates a new DocumentService instance. With storeUploads unset the
// PDF is only forwarded to the extractor.
func NewDocumentService(
	docRepo *repository.DocumentRepository,
	proposalRepo *repository.ProposalRepository,
	store storage.Storage,
	extractor Extractor,
	storeUploads bool,
	logger *zap.Logger,
) *DocumentService {
	return &DocumentService{
		docRepo:      docRepo,
		proposalRepo: proposalRepo,
		storage:      store,
		extractor:    extractor,
		storeUploads: storeUploads,
		logger:       logger,
	}
}

func (s *DocumentService) maxSize() int64 {
	if s.extractor == nil {
		return extraction.DefaultMaxSize
	}
	return s.extractor.MaxSize()
}

// Extract validates the upload before any network call, keeps a copy in storage and returns
// the extracted client name and items
func (s *DocumentService) Extract(ctx context.Context, upload DocumentUpload) (*domain.ExtractionResultDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if !user.IsStaff() {
		return nil, kindError(ErrPermissionDenied, "clients cannot upload documents")
	}

	maxSize := s.maxSize()
	if err := extraction.ValidateUpload(upload.ContentType, upload.Size, maxSize); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocumentUpload, err)
	}

	data, err := io.ReadAll(io.LimitReader(upload.Data, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: could not read upload: %v", ErrValidation, err)
	}
	// The declared size is client supplied; check what was actually read
	if err := extraction.ValidateUpload(upload.ContentType, int64(len(data)), maxSize); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocumentUpload, err)
	}

	if upload.ProposalID != nil {
		if _, err := s.proposalRepo.GetVisible(ctx, *upload.ProposalID, viewerOf(user)); err != nil {
			if isNotFound(err) {
				return nil, ErrProposalNotFound
			}
			return nil, persistenceError("get proposal", err)
		}
	}

	result := &domain.ExtractionResultDTO{}
	if s.storeUploads && s.storage != nil {
		doc, err := s.store(ctx, upload, data, user.Actor())
		if err != nil {
			return nil, err
		}
		result.StorageKey = doc.StoragePath
	}

	if s.extractor == nil {
		return nil, ErrExtractionUnavailable
	}
	extracted, err := s.extractor.Extract(ctx, upload.Filename, data)
	if err != nil {
		s.logger.Error("document extraction failed",
			zap.String("filename", upload.Filename),
			zap.Int("size", len(data)),
			zap.Error(err))
		return nil, ErrExtractionUnavailable
	}

	result.ClientName = extracted.ClientName
	result.Items = make([]domain.ExtractedItemDTO, len(extracted.Items))
	for i, item := range extracted.Items {
		result.Items[i] = domain.ExtractedItemDTO{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Total:       item.Total,
		}
	}

	s.logger.Info("document extracted",
		zap.String("filename", upload.Filename),
		zap.Int("items", len(result.Items)))
	return result, nil
}

func (s *DocumentService) store(ctx context.Context, upload DocumentUpload, data []byte, uploadedBy *uuid.UUID) (*domain.ProposalDocument, error) {
	key, size, err := s.storage.Upload(ctx, upload.Filename, upload.ContentType, bytes.NewReader(data))
	if err != nil {
		return nil, persistenceError("store document", err)
	}

	doc := &domain.ProposalDocument{
		Filename:     upload.Filename,
		ContentType:  upload.ContentType,
		Size:         size,
		StoragePath:  key,
		ProposalID:   upload.ProposalID,
		UploadedByID: uploadedBy,
	}
	if err := s.docRepo.Create(ctx, doc); err != nil {
		if delErr := s.storage.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			s.logger.Warn("failed to remove orphaned document", zap.String("key", key), zap.Error(delErr))
		}
		return nil, persistenceError("record document", err)
	}
	return doc, nil
}

// ListForProposal returns the documents attached to a proposal
func (s *DocumentService) ListForProposal(ctx context.Context, proposalID uuid.UUID) ([]domain.ProposalDocumentDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.proposalRepo.GetVisible(ctx, proposalID, viewerOf(user)); err != nil {
		if isNotFound(err) {
			return nil, ErrProposalNotFound
		}
		return nil, persistenceError("get proposal", err)
	}

	docs, err := s.docRepo.ListByProposal(ctx, proposalID)
	if err != nil {
		return nil, persistenceError("list documents", err)
	}
	dtos := make([]domain.ProposalDocumentDTO, len(docs))
	for i := range docs {
		dtos[i] = mapper.ToProposalDocumentDTO(&docs[i])
	}
	return dtos, nil
}

// Open streams a stored document. The caller closes the reader.
func (s *DocumentService) Open(ctx context.Context, id uuid.UUID) (*domain.ProposalDocument, io.ReadCloser, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, nil, err
	}
	if !user.IsStaff() {
		return nil, nil, kindError(ErrPermissionDenied, "clients cannot download uploaded documents")
	}
	if s.storage == nil {
		return nil, nil, ErrDocumentNotFound
	}

	doc, err := s.docRepo.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, nil, ErrDocumentNotFound
		}
		return nil, nil, persistenceError("get document", err)
	}

	reader, err := s.storage.Download(ctx, doc.StoragePath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, nil, ErrDocumentNotFound
		}
		return nil, nil, persistenceError("download document", err)
	}
	return doc, reader, nil
}
