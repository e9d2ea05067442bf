package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/brasmat/proposal-api/internal/service"
	"github.com/brasmat/proposal-api/internal/validation"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxBodyBytes bounds JSON request bodies
const maxBodyBytes = 1 << 20

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// respondWithError sends a standardized JSON error response
func respondWithError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(domain.APIError{
		Type:   getErrorType(status),
		Title:  http.StatusText(status),
		Status: status,
		Detail: message,
	})
}

// respondValidationError sends a 400 with one message per offending field
func respondValidationError(w http.ResponseWriter, detail string, fields validation.FieldErrors) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(domain.APIError{
		Type:   domain.ErrorTypeValidation,
		Title:  "Validation Error",
		Status: http.StatusBadRequest,
		Detail: detail,
		Errors: fields,
	})
}

// respondServiceError maps a service error kind to its status code. Upstream and persistence
// details are logged and replaced with generic text.
func respondServiceError(w http.ResponseWriter, logger *zap.Logger, err error, action string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		var fields validation.FieldErrors
		if errors.As(err, &fields) {
			respondValidationError(w, "One or more fields failed validation", fields)
			return
		}
		respondWithError(w, http.StatusBadRequest, publicMessage(err, service.ErrValidation))
	case errors.Is(err, service.ErrUnauthorized):
		respondWithError(w, http.StatusUnauthorized, publicMessage(err, service.ErrUnauthorized))
	case errors.Is(err, service.ErrPermissionDenied):
		respondWithError(w, http.StatusForbidden, publicMessage(err, service.ErrPermissionDenied))
	case errors.Is(err, service.ErrNotFound):
		respondWithError(w, http.StatusNotFound, publicMessage(err, service.ErrNotFound))
	case errors.Is(err, service.ErrConflict):
		respondWithError(w, http.StatusConflict, publicMessage(err, service.ErrConflict))
	case errors.Is(err, service.ErrUpstream):
		logger.Warn("upstream failure", zap.String("action", action), zap.Error(err))
		respondUpstreamError(w, err)
	default:
		logger.Error("request failed", zap.String("action", action), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to %s", action))
	}
}

// upstreamMessages are the only upstream texts shown to callers
var upstreamMessages = []error{
	service.ErrLoginTimeout,
	service.ErrMessagingUnavailable,
	service.ErrAssistantUnavailable,
	service.ErrExtractionUnavailable,
}

func respondUpstreamError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	if errors.Is(err, service.ErrLoginTimeout) {
		status = http.StatusGatewayTimeout
	}
	message := "An external service is unavailable, please try again later"
	for _, known := range upstreamMessages {
		if errors.Is(err, known) {
			message = publicMessage(known, service.ErrUpstream)
			break
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(domain.APIError{
		Type:   domain.ErrorTypeUpstream,
		Title:  http.StatusText(status),
		Status: status,
		Detail: message,
	})
}

// publicMessage strips the kind prefix, "permission denied: clients cannot ..." becomes
// "clients cannot ..."
func publicMessage(err, kind error) string {
	msg := strings.TrimPrefix(err.Error(), kind.Error()+": ")
	if msg == "" {
		return kind.Error()
	}
	return msg
}

// getErrorType returns the appropriate error type for an HTTP status code
func getErrorType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return domain.ErrorTypeBadRequest
	case http.StatusUnauthorized:
		return domain.ErrorTypeUnauthorized
	case http.StatusForbidden:
		return domain.ErrorTypeForbidden
	case http.StatusNotFound:
		return domain.ErrorTypeNotFound
	case http.StatusConflict:
		return domain.ErrorTypeConflict
	case http.StatusBadGateway:
		return domain.ErrorTypeUpstream
	case http.StatusGatewayTimeout:
		return domain.ErrorTypeTimeout
	default:
		return domain.ErrorTypeInternal
	}
}

// decodeJSON reads a bounded JSON body into target, rejecting unknown fields
func decodeJSON(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// decodeOptionalJSON accepts an empty body
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	return decodeJSON(w, r, target)
}

// parseIDParam reads a uuid path parameter, responding 400 when malformed
func parseIDParam(w http.ResponseWriter, r *http.Request, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s ID format", label))
		return uuid.Nil, false
	}
	return id, true
}

func parseIntQuery(r *http.Request, key string, defaultValue int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

// parsePagination reads page and pageSize, clamping pageSize to maxPageSize
func parsePagination(r *http.Request, maxPageSize int) (int, int) {
	page := parseIntQuery(r, "page", 1)
	if page < 1 {
		page = 1
	}
	pageSize := parseIntQuery(r, "pageSize", 20)
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}
