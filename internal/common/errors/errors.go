// Package errors provides standardized error handling for the zoning API.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeConfigInvalid   ErrorCode = "CONFIG_INVALID"
	ErrCodeRulesUnreadable ErrorCode = "RULES_UNREADABLE"

	ErrCodeLLMTimeout         ErrorCode = "LLM_TIMEOUT"
	ErrCodeLLMAPIError        ErrorCode = "LLM_API_ERROR"
	ErrCodeLLMRequestInvalid  ErrorCode = "LLM_REQUEST_INVALID"
	ErrCodeLLMResponseInvalid ErrorCode = "LLM_RESPONSE_INVALID"

	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"

	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrCodeUnauthorized   ErrorCode = "UNAUTHORIZED"
	ErrCodeRateLimited    ErrorCode = "RATE_LIMITED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error { return e.cause }

// WithMetadata attaches a key/value pair and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = map[string]interface{}{}
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message string, cause error, retryable bool) *StandardError {
	e := &StandardError{
		Code:      code,
		Message:   message,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
	if cause != nil {
		e.Details = cause.Error()
	}
	return e
}

// ==========================
// 2. Error Constructors
// ==========================

// NewConfigInvalidError reports a fatal startup configuration problem.
func NewConfigInvalidError(details string) *StandardError {
	e := newError(ErrCodeConfigInvalid, "Invalid configuration", nil, false)
	e.Details = details
	return e
}

// NewRulesUnreadableError is a degraded, non-fatal policy document read failure.
func NewRulesUnreadableError(path string, err error) *StandardError {
	return newError(ErrCodeRulesUnreadable, "Rules file could not be read", err, false).
		WithMetadata("path", path)
}

// NewLLMTimeoutError creates a retryable model timeout error.
func NewLLMTimeoutError(err error) *StandardError {
	return newError(ErrCodeLLMTimeout, "Model request timed out", err, true)
}

// NewLLMAPIError creates a retryable upstream model API error for a non-2xx reply.
func NewLLMAPIError(status int, err error) *StandardError {
	return newError(ErrCodeLLMAPIError, "Model API error", err, true).
		WithMetadata("status", status)
}

// NewLLMConnectionError creates a retryable transport-level model API error.
func NewLLMConnectionError(err error) *StandardError {
	return newError(ErrCodeLLMAPIError, "Model API connection error", err, true)
}

// NewLLMRequestInvalidError creates a non-retryable error for requests that cannot be built.
func NewLLMRequestInvalidError(err error) *StandardError {
	return newError(ErrCodeLLMRequestInvalid, "Model request could not be built", err, false)
}

// NewLLMResponseInvalidError creates a non-retryable error for undecodable replies.
func NewLLMResponseInvalidError(err error) *StandardError {
	return newError(ErrCodeLLMResponseInvalid, "Model response could not be decoded", err, false)
}

// NewServiceUnavailableError wraps an exhausted upstream dependency.
func NewServiceUnavailableError(service string, err error) *StandardError {
	return newError(ErrCodeServiceUnavailable, fmt.Sprintf("%s service unavailable", service), err, false)
}

// NewInternalError wraps an unexpected fault.
func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Internal server error", err, false)
}

func NewInvalidRequestError(details string) *StandardError {
	e := newError(ErrCodeInvalidRequest, "Invalid request body", nil, false)
	e.Details = details
	return e
}

func NewUnauthorizedError(details string) *StandardError {
	e := newError(ErrCodeUnauthorized, "Invalid or missing API key", nil, false)
	e.Details = details
	return e
}

func NewRateLimitedError(limit int, window time.Duration) *StandardError {
	e := newError(ErrCodeRateLimited, "Rate limit exceeded", nil, true)
	e.Details = fmt.Sprintf("limit %d per %s", limit, window)
	return e
}

// ==========================
// 3. Utility Functions
// ==========================

// IsRetryable reports whether err carries a retryable StandardError.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return false
}

// GetHTTPStatus maps an error code to the status returned to API callers.
func GetHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidRequest:
		return http.StatusUnprocessableEntity
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "LLM") || code == ErrCodeServiceUnavailable:
		return "AI"
	case strings.Contains(codeStr, "CONFIG") || strings.Contains(codeStr, "RULES"):
		return "CONFIGURATION"
	case code == ErrCodeUnauthorized || code == ErrCodeRateLimited:
		return "ACCESS"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
