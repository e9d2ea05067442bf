package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/brasmat/proposal-api/internal/service"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// multipartOverhead leaves room for form fields and boundaries around the file
const multipartOverhead = 64 * 1024

type DocumentHandler struct {
	documentService *service.DocumentService
	maxUploadBytes  int64
	logger          *zap.Logger
}

func NewDocumentHandler(documentService *service.DocumentService, maxUploadBytes int64, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{
		documentService: documentService,
		maxUploadBytes:  maxUploadBytes,
		logger:          logger,
	}
}

// Extract godoc
// @Summary Extract a PDF quotation
// @Description Accepts only application/pdf up to 10MB; anything else is rejected before the extraction service is called.
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "PDF file"
// @Param proposalId formData string false "Proposal to attach the document to"
// @Success 200 {object} domain.ExtractionResultDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 502 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /documents/extract [post]
func (h *DocumentHandler) Extract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)

	if err := r.ParseMultipartForm(h.maxUploadBytes + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithError(w, http.StatusBadRequest, fmt.Sprintf("File too large: maximum size is %dMB", h.maxUploadBytes/(1024*1024)))
			return
		}
		respondWithError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid file upload: file field is required")
		return
	}
	defer file.Close()

	upload := service.DocumentUpload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Data:        file,
	}
	if pid := r.FormValue("proposalId"); pid != "" {
		id, err := uuid.Parse(pid)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid proposalId: must be a valid UUID")
			return
		}
		upload.ProposalID = &id
	}

	result, err := h.documentService.Extract(r.Context(), upload)
	if err != nil {
		respondServiceError(w, h.logger, err, "extract document")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// ListForProposal godoc
// @Summary Documents attached to a proposal
// @Tags Documents
// @Produce json
// @Param id path string true "Proposal ID" format(uuid)
// @Success 200 {array} domain.ProposalDocumentDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /proposals/{id}/documents [get]
func (h *DocumentHandler) ListForProposal(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "proposal")
	if !ok {
		return
	}

	docs, err := h.documentService.ListForProposal(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "list documents")
		return
	}
	respondJSON(w, http.StatusOK, docs)
}

// Download godoc
// @Summary Download a stored document
// @Tags Documents
// @Produce application/pdf
// @Param id path string true "Document ID" format(uuid)
// @Success 200
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /documents/{id}/download [get]
func (h *DocumentHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "document")
	if !ok {
		return
	}

	doc, reader, err := h.documentService.Open(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "download document")
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	w.Header().Set("Content-Type", doc.ContentType)
	_, _ = io.Copy(w, reader)
}
