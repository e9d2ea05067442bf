package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/brasmat/proposal-api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxAuditBody bounds how much of a request body is kept for the audit entry
const maxAuditBody = 64 << 10

// AuditConfig holds configuration for audit middleware
type AuditConfig struct {
	// SkipPaths contains path prefixes that should not be audited
	SkipPaths []string
	// SkipMethods contains HTTP methods that should not be audited (e.g., OPTIONS)
	SkipMethods []string
	// AuditReads enables auditing of GET requests (defaults to false)
	AuditReads bool
	// Timeout bounds the write that happens after the response was sent
	Timeout time.Duration
}

// DefaultAuditConfig returns default audit configuration
func DefaultAuditConfig() *AuditConfig {
	return &AuditConfig{
		SkipPaths: []string{
			"/health",
			"/swagger",
			"/api/v1/auth/session/activity",
			"/api/v1/auth/password/check",
			"/api/v1/devices/fingerprint",
			"/api/v1/devices/check",
			"/api/v1/assistant/chat",
		},
		SkipMethods: []string{
			http.MethodOptions,
			http.MethodHead,
		},
		Timeout: 5 * time.Second,
	}
}

// AuditLogger is the part of the audit service the middleware writes through
type AuditLogger interface {
	Log(ctx context.Context, r *http.Request, entry service.LogEntry) error
}

// AuditMiddleware records successful modifications in the audit log
type AuditMiddleware struct {
	auditService AuditLogger
	config       *AuditConfig
	logger       *zap.Logger
	// async is false in tests so entries are visible when the request returns
	async bool
}

// NewAuditMiddleware creates a new audit middleware
func NewAuditMiddleware(auditService AuditLogger, config *AuditConfig, logger *zap.Logger) *AuditMiddleware {
	if config == nil {
		config = DefaultAuditConfig()
	}
	return &AuditMiddleware{
		auditService: auditService,
		config:       config,
		logger:       logger,
		async:        true,
	}
}

// Synchronous makes the middleware write entries before returning
func (m *AuditMiddleware) Synchronous() *AuditMiddleware {
	m.async = false
	return m
}

// Audit returns middleware that logs modifications to the audit log
func (m *AuditMiddleware) Audit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.auditService == nil || !m.shouldAudit(r) {
			next.ServeHTTP(w, r)
			return
		}

		var requestBody []byte
		if r.Body != nil && isJSON(r) && (r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch) {
			requestBody, _ = io.ReadAll(io.LimitReader(r.Body, maxAuditBody+1))
			r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(requestBody), r.Body))
			if len(requestBody) > maxAuditBody {
				requestBody = nil
			}
		}

		rw := &responseCapture{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		if rw.statusCode < 200 || rw.statusCode >= 300 {
			return
		}

		// The route context is only complete once chi has matched, so entity info is read here
		entityType, entityID := m.extractEntityInfo(r)
		entry := service.LogEntry{
			Action:     m.methodToAction(r.Method, entityID != nil),
			EntityType: entityType,
			EntityID:   entityID,
			NewValues:  redact(requestBody),
		}
		if entry.Action == "" {
			return
		}

		if m.async {
			go m.write(r, entry)
			return
		}
		m.write(r, entry)
	})
}

func (m *AuditMiddleware) write(r *http.Request, entry service.LogEntry) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), m.config.Timeout)
	defer cancel()

	if err := m.auditService.Log(ctx, r, entry); err != nil {
		m.logger.Warn("failed to create audit log entry",
			zap.String("path", r.URL.Path),
			zap.String("method", r.Method),
			zap.Error(err))
	}
}

// shouldAudit determines if a request should be audited
func (m *AuditMiddleware) shouldAudit(r *http.Request) bool {
	for _, method := range m.config.SkipMethods {
		if r.Method == method {
			return false
		}
	}

	if r.Method == http.MethodGet && !m.config.AuditReads {
		return false
	}

	for _, skipPath := range m.config.SkipPaths {
		if strings.HasPrefix(r.URL.Path, skipPath) {
			return false
		}
	}

	return true
}

// methodToAction converts HTTP method to audit action. A POST against an existing
// entity (accept, send, notes) changes it rather than creating one.
func (m *AuditMiddleware) methodToAction(method string, hasEntity bool) domain.AuditAction {
	switch method {
	case http.MethodPost:
		if hasEntity {
			return domain.AuditActionUpdate
		}
		return domain.AuditActionCreate
	case http.MethodPut, http.MethodPatch:
		return domain.AuditActionUpdate
	case http.MethodDelete:
		return domain.AuditActionDelete
	case http.MethodGet:
		return domain.AuditActionRead
	default:
		return ""
	}
}

// extractEntityInfo extracts entity type and ID from the matched route
func (m *AuditMiddleware) extractEntityInfo(r *http.Request) (string, *uuid.UUID) {
	routeCtx := chi.RouteContext(r.Context())
	if routeCtx == nil {
		return parseEntityFromPath(r.URL.Path), nil
	}

	var entityID *uuid.UUID
	if id, err := uuid.Parse(routeCtx.URLParam("id")); err == nil {
		entityID = &id
	}

	pattern := routeCtx.RoutePattern()
	if pattern == "" {
		pattern = r.URL.Path
	}
	return parseEntityFromPath(pattern), entityID
}

var entityMap = map[string]string{
	"proposals":         "proposal",
	"approval-requests": "approval_request",
	"discount-rules":    "discount_rule",
	"clients":           "client",
	"notifications":     "notification",
	"whatsapp":          "whatsapp_message",
	"documents":         "proposal_document",
	"devices":           "device",
	"auth":              "session",
}

// parseEntityFromPath returns the entity of the first known path segment
func parseEntityFromPath(path string) string {
	for _, part := range strings.Split(strings.Trim(path, "/"), "/") {
		if entityType, ok := entityMap[part]; ok {
			return entityType
		}
	}
	return "unknown"
}

var sensitiveFields = []string{"password", "currentPassword", "newPassword", "secret", "token", "apiKey", "fingerprint"}

// redact parses a JSON object body and drops credential fields
func redact(body []byte) interface{} {
	if len(body) == 0 {
		return nil
	}
	var parsed map[string]interface{}
	if json.Unmarshal(body, &parsed) != nil {
		return nil
	}
	for _, field := range sensitiveFields {
		delete(parsed, field)
	}
	return parsed
}

func isJSON(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return ct == "" || strings.HasPrefix(ct, "application/json")
}

// responseCapture wraps ResponseWriter to capture the status code
type responseCapture struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseCapture) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
