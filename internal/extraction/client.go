// Package extraction sends proposal PDFs to the document-extraction service and returns
// the structured fields it finds.
package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/brasmat/proposal-api/internal/config"
)

// PDFContentType is the only accepted upload type
const PDFContentType = "application/pdf"

// DefaultMaxSize is the upload ceiling when none is configured
const DefaultMaxSize int64 = 10 << 20

var (
	// ErrUnsupportedType is returned for anything but application/pdf
	ErrUnsupportedType = errors.New("only application/pdf is accepted")
	// ErrEmptyFile is returned for zero-byte uploads
	ErrEmptyFile = errors.New("file is empty")
	// ErrTooLarge is returned when the upload exceeds the ceiling
	ErrTooLarge = errors.New("file exceeds the maximum size")
	// ErrNotConfigured is returned when no service URL is configured
	ErrNotConfigured = errors.New("extraction service not configured")
)

// ValidateUpload checks type and size. It runs before any network call.
func ValidateUpload(contentType string, size, maxSize int64) error {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if contentType != PDFContentType {
		return fmt.Errorf("%w: got %q", ErrUnsupportedType, contentType)
	}
	if size <= 0 {
		return ErrEmptyFile
	}
	if size > maxSize {
		return fmt.Errorf("%w: %d bytes > %d bytes", ErrTooLarge, size, maxSize)
	}
	return nil
}

// Item is an extracted line item
type Item struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Total       float64 `json:"total"`
}

// Result is the structured content of a PDF
type Result struct {
	ClientName string `json:"client_name"`
	Items      []Item `json:"items"`
}

// Client posts PDFs to {baseURL}/extract
type Client struct {
	baseURL string
	apiKey  string
	maxSize int64
	http    *http.Client
}

// NewClient builds a client from config
func NewClient(cfg *config.ExtractionConfig) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		maxSize: cfg.MaxSizeMB << 20,
		http:    &http.Client{Timeout: timeout},
	}
}

// MaxSize is the configured upload ceiling in bytes
func (c *Client) MaxSize() int64 {
	if c.maxSize <= 0 {
		return DefaultMaxSize
	}
	return c.maxSize
}

// Extract uploads the document as multipart form data
func (c *Client) Extract(ctx context.Context, filename string, data []byte) (*Result, error) {
	if err := ValidateUpload(PDFContentType, int64(len(data)), c.MaxSize()); err != nil {
		return nil, err
	}
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", PDFContentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("extraction: create form part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("extraction: write form part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("extraction: close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/extract", &body)
	if err != nil {
		return nil, fmt.Errorf("extraction: create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extraction: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("extraction: service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("extraction: decode response: %w", err)
	}
	result.ClientName = strings.TrimSpace(result.ClientName)
	return &result, nil
}
