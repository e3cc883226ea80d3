// Package errors provides standardized error handling for the banking assistant.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeMissingCustomerID ErrorCode = "MISSING_CUSTOMER_ID"
	ErrCodeInvalidInput      ErrorCode = "INVALID_INPUT"
	ErrCodeUnauthenticated   ErrorCode = "UNAUTHENTICATED"
	ErrCodeRateLimited       ErrorCode = "RATE_LIMITED"

	ErrCodeIntentResolutionFailed ErrorCode = "INTENT_RESOLUTION_FAILED"
	ErrCodeIntentAPITimeout       ErrorCode = "INTENT_API_TIMEOUT"
	ErrCodeTimeRangeFailed        ErrorCode = "TIME_RANGE_ESCALATION_FAILED"
	ErrCodeLanguageServiceFailed  ErrorCode = "LANGUAGE_SERVICE_FAILED"
	ErrCodeScreeningFailed        ErrorCode = "SCREENING_FAILED"
	ErrCodeDraftingFailed         ErrorCode = "DRAFTING_FAILED"
	ErrCodeDraftingTimeout        ErrorCode = "DRAFTING_TIMEOUT"

	ErrCodeProviderFetchFailed   ErrorCode = "PROVIDER_FETCH_FAILED"
	ErrCodeProviderNotConfigured ErrorCode = "PROVIDER_NOT_CONFIGURED"
	ErrCodeMalformedDocument     ErrorCode = "MALFORMED_PROVIDER_DOCUMENT"
	ErrCodeNormalizationFailed   ErrorCode = "NORMALIZATION_FAILED"

	ErrCodeSessionStoreFailed ErrorCode = "SESSION_STORE_FAILED"
	ErrCodeSessionConflict    ErrorCode = "SESSION_CONFLICT"

	ErrCodeAuditWriteFailed ErrorCode = "AUDIT_WRITE_FAILED"
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata returns a copy of the error carrying an extra metadata entry.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	cp := *e
	cp.Metadata = make(map[string]interface{}, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		cp.Metadata[k] = v
	}
	cp.Metadata[key] = value
	return &cp
}

// ==========================
// 2. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewMissingCustomerIDError is returned before any pipeline stage runs.
func NewMissingCustomerIDError() *StandardError {
	return newError(ErrCodeMissingCustomerID, "Customer identity is required", "customerId was empty", false)
}

// NewInvalidInputError creates a non-retryable input error.
func NewInvalidInputError(details string) *StandardError {
	return newError(ErrCodeInvalidInput, "Invalid request input", details, false)
}

// NewUnauthenticatedError creates a non-retryable authentication error.
func NewUnauthenticatedError(details string) *StandardError {
	return newError(ErrCodeUnauthenticated, "Authentication failed", details, false)
}

// NewRateLimitedError signals that the caller exceeded its request budget.
func NewRateLimitedError(key string, limit int) *StandardError {
	return newError(ErrCodeRateLimited, "Too many requests", fmt.Sprintf("key: %s, limit: %d", key, limit), true)
}

// NewIntentResolutionFailedError wraps a failed call to the intent resolver.
func NewIntentResolutionFailedError(err error) *StandardError {
	return newError(ErrCodeIntentResolutionFailed, "Intent resolution failed", err.Error(), false)
}

// NewIntentAPITimeoutError is used when the intent resolver exceeded its deadline.
func NewIntentAPITimeoutError() *StandardError {
	return newError(ErrCodeIntentAPITimeout, "Intent resolution timeout", "intent call exceeded timeout threshold", false)
}

// NewTimeRangeFailedError wraps a failed time-range escalation.
func NewTimeRangeFailedError(hint string, err error) *StandardError {
	return newError(ErrCodeTimeRangeFailed, "Time range escalation failed", fmt.Sprintf("hint: %q, error: %s", hint, err.Error()), false)
}

// NewLanguageServiceFailedError wraps a failed detection or translation call.
func NewLanguageServiceFailedError(operation string, err error) *StandardError {
	return newError(ErrCodeLanguageServiceFailed, "Language service error", fmt.Sprintf("operation: %s, error: %s", operation, err.Error()), false)
}

// NewScreeningFailedError wraps a failed content screening call.
func NewScreeningFailedError(err error) *StandardError {
	return newError(ErrCodeScreeningFailed, "Content screening error", err.Error(), false)
}

// NewDraftingFailedError wraps a failed drafting call.
func NewDraftingFailedError(err error) *StandardError {
	return newError(ErrCodeDraftingFailed, "Response drafting failed", err.Error(), false)
}

// NewDraftingTimeoutError is used when drafting exceeded its deadline.
func NewDraftingTimeoutError() *StandardError {
	return newError(ErrCodeDraftingTimeout, "Response drafting timeout", "drafting call exceeded timeout threshold", false)
}

// NewProviderFetchFailedError wraps a failed banking provider call.
func NewProviderFetchFailedError(domain string, err error) *StandardError {
	return newError(ErrCodeProviderFetchFailed, "Banking data provider error", fmt.Sprintf("domain: %s, error: %s", domain, err.Error()), false)
}

// NewProviderNotConfiguredError is returned when no provider serves a domain.
func NewProviderNotConfiguredError(domain string) *StandardError {
	return newError(ErrCodeProviderNotConfigured, "No provider configured for domain", fmt.Sprintf("domain: %s", domain), false)
}

// NewMalformedDocumentError describes a provider document that failed decoding.
func NewMalformedDocumentError(domain, details string) *StandardError {
	return newError(ErrCodeMalformedDocument, "Malformed provider document", fmt.Sprintf("domain: %s, %s", domain, details), false)
}

// NewSessionStoreFailedError wraps a session store failure.
func NewSessionStoreFailedError(operation string, err error) *StandardError {
	return newError(ErrCodeSessionStoreFailed, "Session store error", fmt.Sprintf("operation: %s, error: %s", operation, err.Error()), true)
}

// NewSessionConflictError is returned when optimistic updates keep colliding.
func NewSessionConflictError(key string, attempts int) *StandardError {
	return newError(ErrCodeSessionConflict, "Concurrent session update conflict", fmt.Sprintf("key: %s, attempts: %d", key, attempts), true)
}

// NewAuditWriteFailedError wraps a failure of an audit sink.
func NewAuditWriteFailedError(sink string, err error) *StandardError {
	return newError(ErrCodeAuditWriteFailed, "Audit write failed", fmt.Sprintf("sink: %s, error: %s", sink, err.Error()), true)
}

// NewInternalError wraps anything unclassified.
func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false)
}

// ==========================
// 3. Utility Functions
// ==========================

// AsStandardError normalizes any error into a StandardError.
func AsStandardError(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// CodeOf returns the code of err, or INTERNAL_ERROR for unclassified errors.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	return AsStandardError(err).Code
}

// IsInputError reports whether the code belongs to the fail-fast input class.
func IsInputError(code ErrorCode) bool {
	switch code {
	case ErrCodeMissingCustomerID, ErrCodeInvalidInput, ErrCodeUnauthenticated:
		return true
	}
	return false
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case IsInputError(code) || code == ErrCodeRateLimited:
		return "INPUT"
	case strings.Contains(codeStr, "INTENT") || strings.Contains(codeStr, "TIME_RANGE") ||
		strings.Contains(codeStr, "LANGUAGE") || strings.Contains(codeStr, "SCREENING"):
		return "UPSTREAM_RESOLUTION"
	case strings.Contains(codeStr, "PROVIDER") || strings.Contains(codeStr, "NORMALIZATION"):
		return "PARTIAL_DATA"
	case strings.Contains(codeStr, "DRAFTING"):
		return "DRAFTING"
	case strings.Contains(codeStr, "SESSION") || strings.Contains(codeStr, "AUDIT"):
		return "STORAGE"
	default:
		return "FATAL"
	}
}
