package auth

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/schemasketch/engine/pkg/apperrors"
)

// Middleware provides HTTP identity middleware. It is thin and delegates
// resolution logic to Service.
type Middleware struct {
	service Service
	logger  *zap.Logger
}

// NewMiddleware creates a new identity middleware.
func NewMiddleware(service Service, logger *zap.Logger) *Middleware {
	return &Middleware{
		service: service,
		logger:  logger,
	}
}

// RequireOwner resolves the request identity and stores it in the context
// for downstream handlers. Requests with neither a valid bearer token nor
// a guest cookie are rejected with 401 MISSING_AID.
func (m *Middleware) RequireOwner(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := m.service.ResolveOwner(r)
		if err != nil {
			m.unauthorized(w, "Sign in or start a guest session first")
			return
		}

		next(w, r.WithContext(WithOwner(r.Context(), owner)))
	}
}

// unauthorized returns a 401 response with the standard error body.
func (m *Middleware) unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"code":    apperrors.CodeMissingAID,
		"message": message,
	})
}
