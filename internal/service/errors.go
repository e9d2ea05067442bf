package service

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by a service wraps exactly one of these,
// handlers map them to HTTP status codes with errors.Is.
var (
	// ErrValidation is returned when required input is missing or malformed
	ErrValidation = errors.New("validation failed")

	// ErrPermissionDenied is returned when the caller lacks the role or ownership for an action
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound is returned when a referenced entity does not exist
	ErrNotFound = errors.New("resource not found")

	// ErrConflict is returned when the entity is not in a state that allows the change
	ErrConflict = errors.New("resource conflict")

	// ErrPersistence is returned when the backing store rejects a read or write
	ErrPersistence = errors.New("persistence failure")

	// ErrUpstream is returned when a third-party service fails or times out
	ErrUpstream = errors.New("upstream service failure")

	// ErrUnauthorized is returned when the caller is not authenticated
	ErrUnauthorized = errors.New("unauthorized")
)

func kindError(kind error, msg string) error {
	return fmt.Errorf("%w: %s", kind, msg)
}

// Specific errors
var (
	ErrProposalNotFound        = kindError(ErrNotFound, "proposal not found")
	ErrClientNotFound          = kindError(ErrNotFound, "client not found")
	ErrApprovalNotFound        = kindError(ErrNotFound, "approval request not found")
	ErrDiscountRuleNotFound    = kindError(ErrNotFound, "discount rule not found")
	ErrNotificationNotFound    = kindError(ErrNotFound, "notification not found")
	ErrDocumentNotFound        = kindError(ErrNotFound, "document not found")
	ErrProposalExpired         = kindError(ErrConflict, "proposal is no longer valid")
	ErrProposalAlreadyDecided  = kindError(ErrConflict, "proposal has already been decided")
	ErrProposalNotSent         = kindError(ErrConflict, "proposal has not been sent to the client")
	ErrApprovalAlreadyDecided  = kindError(ErrConflict, "approval request has already been decided")
	ErrProposalHidden          = kindError(ErrPermissionDenied, "proposal is not available")
	ErrDiscountNotPermitted    = kindError(ErrPermissionDenied, "discount exceeds the ceiling for this role")
	ErrInvalidCredentials      = kindError(ErrUnauthorized, "invalid email or password")
	ErrLoginTimeout            = kindError(ErrUpstream, "login timed out, please try again")
	ErrMessagingUnavailable    = kindError(ErrUpstream, "message could not be delivered")
	ErrAssistantUnavailable    = kindError(ErrUpstream, "assistant is unavailable")
	ErrExtractionUnavailable   = kindError(ErrUpstream, "document extraction failed")
	ErrClientPhoneMissing      = kindError(ErrValidation, "client has no phone number")
	ErrInvalidDocumentUpload   = kindError(ErrValidation, "only PDF files up to 10MB are accepted")
	ErrStatusTransitionInvalid = kindError(ErrConflict, "status transition not allowed")
	ErrProposalNotOpen         = kindError(ErrConflict, "proposal is not awaiting the client")
)

// validationError builds an ErrValidation error naming the offending field
func validationError(field, msg string) error {
	return fmt.Errorf("%w: %s: %s", ErrValidation, field, msg)
}

// persistenceError wraps a store error so callers can match ErrPersistence
func persistenceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrPersistence, op, err)
}
