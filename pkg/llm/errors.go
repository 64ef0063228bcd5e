package llm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/schemasketch/engine/pkg/apperrors"
)

// ErrorType classifies a provider failure.
type ErrorType string

const (
	ErrorTypeQuota   ErrorType = "quota"
	ErrorTypeTimeout ErrorType = "timeout"
	ErrorTypeAuth    ErrorType = "auth"
	ErrorTypeModel   ErrorType = "model"
	ErrorTypeServer  ErrorType = "server"
	ErrorTypeUnknown ErrorType = "unknown"
)

// Error is a structured provider error with classification.
type Error struct {
	Type       ErrorType
	Message    string
	Retryable  bool
	Cause      error
	StatusCode int // upstream HTTP status if present
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string
	parts = append(parts, string(e.Type))
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("HTTP %d", e.StatusCode))
	}
	parts = append(parts, e.Message)
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", strings.Join(parts, " "), e.Cause)
	}
	return strings.Join(parts, " ")
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error { return e.Cause }

// IsRetryable implements the retry.RetryableError interface so the retry
// package can check retryability without importing llm.
func (e *Error) IsRetryable() bool { return e.Retryable }

// AppError maps the classification to the sentinel surfaced to clients:
// quota, timeout, or the generic provider failure.
func (e *Error) AppError() error {
	switch e.Type {
	case ErrorTypeQuota:
		return fmt.Errorf("%w: %s", apperrors.ErrAIQuota, e.Message)
	case ErrorTypeTimeout:
		return fmt.Errorf("%w: %s", apperrors.ErrAITimeout, e.Message)
	default:
		if e.StatusCode > 0 {
			return fmt.Errorf("%w: %s (upstream status %d)", apperrors.ErrAIFailed, e.Message, e.StatusCode)
		}
		return fmt.Errorf("%w: %s", apperrors.ErrAIFailed, e.Message)
	}
}

// ClassifyError categorizes a raw provider error into a structured Error.
// Classification is string-based because the vendor SDKs expose errors
// inconsistently.
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}

	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}

	errStr := err.Error()
	lower := strings.ToLower(errStr)

	statusCode := 0
	for _, code := range []int{400, 401, 403, 404, 429, 500, 502, 503, 504} {
		if strings.Contains(errStr, fmt.Sprintf("%d", code)) {
			statusCode = code
			break
		}
	}

	// Quota and rate limiting surface distinctly so clients can back off
	// longer than for a generic failure. Retryable: the internal backoff
	// gets a chance before the exhausted failure is surfaced.
	if strings.Contains(errStr, "429") || strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "quota") || strings.Contains(lower, "too many requests") {
		return &Error{Type: ErrorTypeQuota, Message: "provider quota exceeded", Retryable: true, Cause: err, StatusCode: statusCode}
	}

	if strings.Contains(lower, "deadline exceeded") || strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "timed out") || strings.Contains(lower, "context canceled") {
		return &Error{Type: ErrorTypeTimeout, Message: "provider request timed out", Retryable: false, Cause: err, StatusCode: statusCode}
	}

	if strings.Contains(errStr, "401") || strings.Contains(lower, "unauthorized") ||
		strings.Contains(lower, "invalid api key") || strings.Contains(lower, "invalid x-api-key") {
		return &Error{Type: ErrorTypeAuth, Message: "authentication failed", Retryable: false, Cause: err, StatusCode: statusCode}
	}

	if strings.Contains(lower, "model") && (strings.Contains(lower, "not found") ||
		strings.Contains(lower, "does not exist")) {
		return &Error{Type: ErrorTypeModel, Message: "model not found", Retryable: false, Cause: err, StatusCode: statusCode}
	}

	if strings.Contains(errStr, "500") || strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") || strings.Contains(errStr, "504") ||
		strings.Contains(lower, "connection refused") || strings.Contains(lower, "no such host") {
		return &Error{Type: ErrorTypeServer, Message: "provider server error", Retryable: true, Cause: err, StatusCode: statusCode}
	}

	return &Error{Type: ErrorTypeUnknown, Message: "provider error", Retryable: false, Cause: err, StatusCode: statusCode}
}
