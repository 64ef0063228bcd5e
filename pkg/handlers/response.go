package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/schemasketch/engine/pkg/apperrors"
)

// Response is the envelope for every JSON reply. Success responses carry
// Data; failures carry a stable machine-readable Code plus a message.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteData writes a success envelope around data.
func WriteData(w http.ResponseWriter, statusCode int, data any) error {
	return WriteJSON(w, statusCode, Response{Success: true, Data: data})
}

// WriteError maps err to its code and HTTP status and writes the failure
// envelope. Unrecognized errors report INTERNAL with a generic message so
// server internals never leak to clients.
func WriteError(w http.ResponseWriter, err error) error {
	code := apperrors.Code(err)
	message := err.Error()
	if code == apperrors.CodeInternal {
		message = "internal server error"
	}
	return WriteJSON(w, statusForCode(code), Response{
		Success: false,
		Code:    code,
		Message: message,
	})
}

// statusForCode maps machine-readable codes to HTTP status codes.
func statusForCode(code string) int {
	switch code {
	case apperrors.CodeValidation:
		return http.StatusBadRequest
	case apperrors.CodeMissingAID:
		return http.StatusUnauthorized
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	case apperrors.CodeConflict:
		return http.StatusConflict
	case apperrors.CodeAIQuota:
		return http.StatusTooManyRequests
	case apperrors.CodeAITimeout:
		return http.StatusGatewayTimeout
	case apperrors.CodeAIFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
