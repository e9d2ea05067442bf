package handler_test

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"testing"

	"github.com/brasmat/proposal-api/internal/auth"
	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/brasmat/proposal-api/internal/extraction"
	"github.com/brasmat/proposal-api/internal/http/handler"
	"github.com/brasmat/proposal-api/internal/repository"
	"github.com/brasmat/proposal-api/internal/service"
	"github.com/brasmat/proposal-api/internal/storage"
	"github.com/brasmat/proposal-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubExtractor struct {
	calls int
}

func (s *stubExtractor) Extract(context.Context, string, []byte) (*extraction.Result, error) {
	s.calls++
	return &extraction.Result{
		ClientName: "Construtora Horizonte",
		Items:      []extraction.Item{{Description: "Areia média", Quantity: 5, UnitPrice: 120, Total: 600}},
	}, nil
}

func (s *stubExtractor) MaxSize() int64 { return 1024 }

func createDocumentHandler(t *testing.T, db *gorm.DB, extractor service.Extractor) *handler.DocumentHandler {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	svc := service.NewDocumentService(
		repository.NewDocumentRepository(db),
		repository.NewProposalRepository(db),
		store,
		extractor,
		true,
		zap.NewNop(),
	)
	return handler.NewDocumentHandler(svc, 1024, zap.NewNop())
}

func multipartRequest(t *testing.T, user *auth.UserContext, contentType string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if data != nil {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="file"; filename="orcamento.pdf"`)
		header.Set("Content-Type", contentType)
		part, err := mw.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := newRequest(t, http.MethodPost, "/api/v1/documents/extract", buf.String(), user)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestDocumentHandler_Extract(t *testing.T) {
	db := testutil.SetupTestDB(t)
	client := testutil.CreateTestClient(t, db, "Construtora Horizonte", nil)
	p := testutil.CreateTestProposal(t, db, client)
	seller := newUser(domain.RoleInternalSeller, "Carla Vendas")
	pdf := []byte("%PDF-1.4 orcamento")

	t.Run("extracts and stores", func(t *testing.T) {
		extractor := &stubExtractor{}
		h := createDocumentHandler(t, db, extractor)

		w := do(h.Extract, multipartRequest(t, seller, extraction.PDFContentType, pdf, map[string]string{"proposalId": p.ID.String()}))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		result := decode[domain.ExtractionResultDTO](t, w)
		assert.Equal(t, "Construtora Horizonte", result.ClientName)
		require.Len(t, result.Items, 1)
		assert.NotEmpty(t, result.StorageKey)
		assert.Equal(t, 1, extractor.calls)

		w = do(h.ListForProposal, newRequest(t, http.MethodGet, "/", nil, seller, "id", p.ID.String()))
		require.Equal(t, http.StatusOK, w.Code)
		docs := decode[[]domain.ProposalDocumentDTO](t, w)
		require.Len(t, docs, 1)

		w = do(h.Download, newRequest(t, http.MethodGet, "/", nil, seller, "id", docs[0].ID.String()))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, extraction.PDFContentType, w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), "orcamento.pdf")
		assert.Equal(t, pdf, w.Body.Bytes())
	})

	t.Run("wrong type never reaches the extractor", func(t *testing.T) {
		extractor := &stubExtractor{}
		h := createDocumentHandler(t, db, extractor)

		w := do(h.Extract, multipartRequest(t, seller, "image/png", []byte("png"), nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Zero(t, extractor.calls)
	})

	t.Run("missing file", func(t *testing.T) {
		h := createDocumentHandler(t, db, &stubExtractor{})
		w := do(h.Extract, multipartRequest(t, seller, "", nil, map[string]string{"note": "x"}))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("too large", func(t *testing.T) {
		extractor := &stubExtractor{}
		h := createDocumentHandler(t, db, extractor)
		big := append([]byte("%PDF-1.4 "), bytes.Repeat([]byte("x"), 200*1024)...)

		w := do(h.Extract, multipartRequest(t, seller, extraction.PDFContentType, big, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Zero(t, extractor.calls)
	})

	t.Run("clients cannot upload", func(t *testing.T) {
		h := createDocumentHandler(t, db, &stubExtractor{})
		w := do(h.Extract, multipartRequest(t, newUser(domain.RoleClient, "Cliente"), extraction.PDFContentType, pdf, nil))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
