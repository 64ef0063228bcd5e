// Package apperrors defines sentinel errors shared across services and
// handlers, plus the stable machine-readable codes surfaced to clients.
package apperrors

import "errors"

var (
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("version conflict")
	ErrMissingIdentity = errors.New("no user or guest identity on request")
	ErrAIQuota         = errors.New("ai provider quota exceeded")
	ErrAITimeout       = errors.New("ai provider deadline exceeded")
	ErrAIFailed        = errors.New("ai provider request failed")
	ErrDiagramLimit    = errors.New("diagram limit reached")
)

// Codes returned in error response bodies. Clients branch on these to
// distinguish "refresh and retry" (CONFLICT) from "fix your input"
// (VALIDATION) flows.
const (
	CodeValidation = "VALIDATION"
	CodeNotFound   = "NOT_FOUND"
	CodeConflict   = "CONFLICT"
	CodeMissingAID = "MISSING_AID"
	CodeAIQuota    = "AI_QUOTA_EXCEEDED"
	CodeAITimeout  = "AI_TIMEOUT"
	CodeAIFailed   = "AI_FAILED"
	CodeInternal   = "INTERNAL"
)

// Code maps an error to its machine-readable code. Unrecognized errors are
// reported as INTERNAL and must not leak their message to clients.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrDiagramLimit):
		return CodeValidation
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrConflict):
		return CodeConflict
	case errors.Is(err, ErrMissingIdentity):
		return CodeMissingAID
	case errors.Is(err, ErrAIQuota):
		return CodeAIQuota
	case errors.Is(err, ErrAITimeout):
		return CodeAITimeout
	case errors.Is(err, ErrAIFailed):
		return CodeAIFailed
	default:
		return CodeInternal
	}
}
