package handlers

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/schemasketch/engine/pkg/apperrors"
	"github.com/schemasketch/engine/pkg/auth"
	"github.com/schemasketch/engine/pkg/services"
)

// GuestResponse is returned when a guest identity is issued.
type GuestResponse struct {
	AnonID string `json:"anonId"`
}

// MergeResponse reports how many guest diagrams were transferred on login.
type MergeResponse struct {
	Moved int64 `json:"moved"`
}

// AuthHandler issues guest identities and merges guest diagrams into a
// user account after login.
type AuthHandler struct {
	auth     auth.Service
	diagrams services.DiagramService
	logger   *zap.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(authService auth.Service, diagrams services.DiagramService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		auth:     authService,
		diagrams: diagrams,
		logger:   logger,
	}
}

// RegisterRoutes registers the auth routes. Guest issuance is the one
// unauthenticated entry point; merge requires a bearer token.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/auth/guest", h.Guest)
	mux.HandleFunc("POST /api/auth/merge", authMiddleware.RequireOwner(h.Merge))
}

// Guest handles POST /api/auth/guest. Issues a guest identity cookie, or
// returns the existing one unchanged.
func (h *AuthHandler) Guest(w http.ResponseWriter, r *http.Request) {
	anonID, err := h.auth.IssueGuest(w, r)
	if err != nil {
		h.logger.Error("Failed to issue guest identity", zap.Error(err))
		h.error(w, err)
		return
	}
	h.respond(w, http.StatusOK, GuestResponse{AnonID: anonID})
}

// Merge handles POST /api/auth/merge. Called after login while the guest
// cookie is still present: transfers the guest's diagrams to the
// authenticated user unless the combined total would exceed the free-plan
// cap, in which case nothing moves.
func (h *AuthHandler) Merge(w http.ResponseWriter, r *http.Request) {
	owner, ok := auth.GetOwner(r.Context())
	if !ok || !owner.IsUser() {
		h.error(w, fmt.Errorf("%w: merge requires an authenticated user", apperrors.ErrValidation))
		return
	}

	anonID, ok := h.auth.GuestID(r)
	if !ok {
		h.respond(w, http.StatusOK, MergeResponse{Moved: 0})
		return
	}

	moved, err := h.diagrams.MergeGuest(r.Context(), anonID, owner.UserID)
	if err != nil {
		h.error(w, err)
		return
	}
	h.respond(w, http.StatusOK, MergeResponse{Moved: moved})
}

func (h *AuthHandler) respond(w http.ResponseWriter, statusCode int, data any) {
	if err := WriteData(w, statusCode, data); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *AuthHandler) error(w http.ResponseWriter, err error) {
	if werr := WriteError(w, err); werr != nil {
		h.logger.Error("Failed to write error response", zap.Error(werr))
	}
}
