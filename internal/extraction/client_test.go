package extraction_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/brasmat/proposal-api/internal/config"
	"github.com/brasmat/proposal-api/internal/extraction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateUpload(t *testing.T) {
	const max = 10 << 20

	tests := []struct {
		name        string
		contentType string
		size        int64
		wantErr     error
	}{
		{name: "pdf within limit", contentType: "application/pdf", size: 1024},
		{name: "pdf exactly at limit", contentType: "application/pdf", size: max},
		{name: "one byte over", contentType: "application/pdf", size: max + 1, wantErr: extraction.ErrTooLarge},
		{name: "empty", contentType: "application/pdf", size: 0, wantErr: extraction.ErrEmptyFile},
		{name: "image", contentType: "image/png", size: 10, wantErr: extraction.ErrUnsupportedType},
		{name: "pdf with parameters", contentType: "application/pdf; charset=binary", size: 10, wantErr: extraction.ErrUnsupportedType},
		{name: "upper case", contentType: "Application/PDF", size: 10, wantErr: extraction.ErrUnsupportedType},
		{name: "x-pdf alias", contentType: "application/x-pdf", size: 10, wantErr: extraction.ErrUnsupportedType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := extraction.ValidateUpload(tt.contentType, tt.size, max)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestClient_Extract(t *testing.T) {
	pdf := []byte("%PDF-1.7 fake proposal")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/extract", r.URL.Path)
		assert.Equal(t, "Bearer ext-key", r.Header.Get("Authorization"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "proposta.pdf", header.Filename)
		assert.Equal(t, "application/pdf", header.Header.Get("Content-Type"))
		got, _ := io.ReadAll(file)
		assert.Equal(t, pdf, got)

		_, _ = w.Write([]byte(`{"client_name":" Construtora Alfa ","items":[{"description":"Telha","quantity":100,"unit_price":12.5,"total":1250}]}`))
	}))
	defer srv.Close()

	client := extraction.NewClient(&config.ExtractionConfig{BaseURL: srv.URL, APIKey: "ext-key", MaxSizeMB: 10})
	result, err := client.Extract(context.Background(), "proposta.pdf", pdf)

	require.NoError(t, err)
	assert.Equal(t, "Construtora Alfa", result.ClientName)
	require.Len(t, result.Items, 1)
	assert.Equal(t, 12.5, result.Items[0].UnitPrice)
}

func TestClient_Extract_RejectsBeforeNetwork(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	client := extraction.NewClient(&config.ExtractionConfig{BaseURL: srv.URL, MaxSizeMB: 1})
	_, err := client.Extract(context.Background(), "big.pdf", bytes.Repeat([]byte("x"), 1<<20+1))

	assert.ErrorIs(t, err, extraction.ErrTooLarge)
	assert.False(t, called)
}

func TestClient_Extract_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte("could not parse document"))
	}))
	defer srv.Close()

	client := extraction.NewClient(&config.ExtractionConfig{BaseURL: srv.URL})
	_, err := client.Extract(context.Background(), "a.pdf", []byte("%PDF"))

	assert.ErrorContains(t, err, "422")
}
