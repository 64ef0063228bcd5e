package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/schemasketch/engine/pkg/apperrors"
	"github.com/schemasketch/engine/pkg/auth"
	"github.com/schemasketch/engine/pkg/models"
	"github.com/schemasketch/engine/pkg/services"
	"github.com/schemasketch/engine/pkg/sqlgen"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// CreateDiagramRequest is the POST body for creating a diagram.
type CreateDiagramRequest struct {
	Title string `json:"title"`
	Type  string `json:"type"`
	Model string `json:"model,omitempty"`
}

// FieldRequest carries a field payload plus the caller's observed version.
type FieldRequest struct {
	services.FieldInput
	Version int64 `json:"version"`
}

// ReorderFieldRequest is the body for moving a field within its table.
type ReorderFieldRequest struct {
	Position int   `json:"position"`
	Version  int64 `json:"version"`
}

// RenameNodeRequest is the body for renaming a table's display label.
type RenameNodeRequest struct {
	Label   string `json:"label"`
	Version int64  `json:"version"`
}

// ListDiagramsResponse is the paginated list envelope.
type ListDiagramsResponse struct {
	Items  []*models.Diagram `json:"items"`
	Total  int               `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

// DiagramsHandler handles the diagram REST surface.
type DiagramsHandler struct {
	svc    services.DiagramService
	logger *zap.Logger
}

// NewDiagramsHandler creates a new diagrams handler.
func NewDiagramsHandler(svc services.DiagramService, logger *zap.Logger) *DiagramsHandler {
	return &DiagramsHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers the diagram routes. Every route requires a
// resolved owner identity.
func (h *DiagramsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("GET /api/diagrams", authMiddleware.RequireOwner(h.List))
	mux.HandleFunc("POST /api/diagrams", authMiddleware.RequireOwner(h.Create))
	mux.HandleFunc("GET /api/diagrams/{id}", authMiddleware.RequireOwner(h.Get))
	mux.HandleFunc("PATCH /api/diagrams/{id}", authMiddleware.RequireOwner(h.Update))
	mux.HandleFunc("DELETE /api/diagrams/{id}", authMiddleware.RequireOwner(h.Delete))

	mux.HandleFunc("POST /api/diagrams/{id}/nodes/{nodeId}/fields",
		authMiddleware.RequireOwner(h.AddField))
	mux.HandleFunc("PATCH /api/diagrams/{id}/nodes/{nodeId}/fields/{fieldId}",
		authMiddleware.RequireOwner(h.UpdateField))
	mux.HandleFunc("DELETE /api/diagrams/{id}/nodes/{nodeId}/fields/{fieldId}",
		authMiddleware.RequireOwner(h.DeleteField))
	mux.HandleFunc("POST /api/diagrams/{id}/nodes/{nodeId}/fields/{fieldId}/reorder",
		authMiddleware.RequireOwner(h.ReorderField))
	mux.HandleFunc("PATCH /api/diagrams/{id}/nodes/{nodeId}",
		authMiddleware.RequireOwner(h.RenameNode))

	mux.HandleFunc("GET /api/diagrams/{id}/export", authMiddleware.RequireOwner(h.ExportSQL))
}

// List handles GET /api/diagrams. Owner-scoped, sorted by last update
// descending, paginated via limit/offset query params.
func (h *DiagramsHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := auth.GetOwner(r.Context())
	if !ok {
		h.error(w, apperrors.ErrMissingIdentity)
		return
	}

	limit := intParam(r, "limit", defaultListLimit)
	if limit < 1 || limit > maxListLimit {
		limit = defaultListLimit
	}
	offset := intParam(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	items, total, err := h.svc.List(r.Context(), owner, limit, offset)
	if err != nil {
		h.error(w, err)
		return
	}
	if items == nil {
		items = []*models.Diagram{}
	}

	h.respond(w, http.StatusOK, ListDiagramsResponse{
		Items:  items,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// Create handles POST /api/diagrams.
func (h *DiagramsHandler) Create(w http.ResponseWriter, r *http.Request) {
	owner, ok := auth.GetOwner(r.Context())
	if !ok {
		h.error(w, apperrors.ErrMissingIdentity)
		return
	}

	var req CreateDiagramRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.error(w, fmt.Errorf("%w: invalid JSON body", apperrors.ErrValidation))
		return
	}
	if req.Type == "" {
		req.Type = "erd"
	}

	d, err := h.svc.Create(r.Context(), owner, req.Title, req.Type, req.Model)
	if err != nil {
		h.error(w, err)
		return
	}

	h.respond(w, http.StatusCreated, d)
}

// Get handles GET /api/diagrams/{id}.
func (h *DiagramsHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.ownerAndID(w, r)
	if !ok {
		return
	}

	d, err := h.svc.Get(r.Context(), id, owner)
	if err != nil {
		h.error(w, err)
		return
	}
	h.respond(w, http.StatusOK, d)
}

// Update handles PATCH /api/diagrams/{id}: metadata changes, a manual
// nodes/edges replacement, or an AI prompt, all version-conditioned.
func (h *DiagramsHandler) Update(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.ownerAndID(w, r)
	if !ok {
		return
	}

	var req services.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.error(w, fmt.Errorf("%w: invalid JSON body", apperrors.ErrValidation))
		return
	}

	d, err := h.svc.Update(r.Context(), id, owner, &req)
	if err != nil {
		h.error(w, err)
		return
	}
	h.respond(w, http.StatusOK, d)
}

// Delete handles DELETE /api/diagrams/{id}.
func (h *DiagramsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.ownerAndID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), id, owner); err != nil {
		h.error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddField handles POST /api/diagrams/{id}/nodes/{nodeId}/fields.
func (h *DiagramsHandler) AddField(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.ownerAndID(w, r)
	if !ok {
		return
	}

	var req FieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.error(w, fmt.Errorf("%w: invalid JSON body", apperrors.ErrValidation))
		return
	}

	d, err := h.svc.AddField(r.Context(), id, owner, req.Version, r.PathValue("nodeId"), &req.FieldInput)
	if err != nil {
		h.error(w, err)
		return
	}
	h.respond(w, http.StatusOK, d)
}

// UpdateField handles PATCH /api/diagrams/{id}/nodes/{nodeId}/fields/{fieldId}.
func (h *DiagramsHandler) UpdateField(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.ownerAndID(w, r)
	if !ok {
		return
	}

	var req FieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.error(w, fmt.Errorf("%w: invalid JSON body", apperrors.ErrValidation))
		return
	}

	d, err := h.svc.UpdateField(r.Context(), id, owner, req.Version,
		r.PathValue("nodeId"), r.PathValue("fieldId"), &req.FieldInput)
	if err != nil {
		h.error(w, err)
		return
	}
	h.respond(w, http.StatusOK, d)
}

// DeleteField handles DELETE /api/diagrams/{id}/nodes/{nodeId}/fields/{fieldId}.
// The observed version rides in the "version" query param since DELETE
// requests carry no body.
func (h *DiagramsHandler) DeleteField(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.ownerAndID(w, r)
	if !ok {
		return
	}

	version, err := strconv.ParseInt(r.URL.Query().Get("version"), 10, 64)
	if err != nil {
		h.error(w, fmt.Errorf("%w: version query param is required", apperrors.ErrValidation))
		return
	}

	d, err := h.svc.DeleteField(r.Context(), id, owner, version,
		r.PathValue("nodeId"), r.PathValue("fieldId"))
	if err != nil {
		h.error(w, err)
		return
	}
	h.respond(w, http.StatusOK, d)
}

// ReorderField handles POST /api/diagrams/{id}/nodes/{nodeId}/fields/{fieldId}/reorder.
func (h *DiagramsHandler) ReorderField(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.ownerAndID(w, r)
	if !ok {
		return
	}

	var req ReorderFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.error(w, fmt.Errorf("%w: invalid JSON body", apperrors.ErrValidation))
		return
	}

	d, err := h.svc.ReorderField(r.Context(), id, owner, req.Version,
		r.PathValue("nodeId"), r.PathValue("fieldId"), req.Position)
	if err != nil {
		h.error(w, err)
		return
	}
	h.respond(w, http.StatusOK, d)
}

// RenameNode handles PATCH /api/diagrams/{id}/nodes/{nodeId}.
func (h *DiagramsHandler) RenameNode(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.ownerAndID(w, r)
	if !ok {
		return
	}

	var req RenameNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.error(w, fmt.Errorf("%w: invalid JSON body", apperrors.ErrValidation))
		return
	}

	d, err := h.svc.RenameNode(r.Context(), id, owner, req.Version, r.PathValue("nodeId"), req.Label)
	if err != nil {
		h.error(w, err)
		return
	}
	h.respond(w, http.StatusOK, d)
}

// ExportSQL handles GET /api/diagrams/{id}/export. The dialect comes from
// the "dialect" query param (default postgres); rendering knobs are
// individually overridable.
func (h *DiagramsHandler) ExportSQL(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.ownerAndID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	dialect := q.Get("dialect")
	if dialect == "" {
		dialect = "postgres"
	}

	opts := sqlgen.DefaultOptions()
	opts.Schema = q.Get("schema")
	opts.AddIdentity = boolParam(q.Get("identity"), opts.AddIdentity)
	opts.AddNotNull = boolParam(q.Get("not_null"), opts.AddNotNull)
	opts.AddFkIndexes = boolParam(q.Get("fk_indexes"), opts.AddFkIndexes)
	opts.AddTimestampDefaults = boolParam(q.Get("timestamps"), opts.AddTimestampDefaults)

	ddl, filename, err := h.svc.ExportSQL(r.Context(), id, owner, dialect, opts)
	if err != nil {
		h.error(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(ddl)); err != nil {
		h.logger.Error("Failed to write SQL export", zap.Error(err))
	}
}

// ownerAndID pulls the resolved owner from context and parses the {id}
// path value, writing the error response itself on failure.
func (h *DiagramsHandler) ownerAndID(w http.ResponseWriter, r *http.Request) (models.Owner, uuid.UUID, bool) {
	owner, ok := auth.GetOwner(r.Context())
	if !ok {
		h.error(w, apperrors.ErrMissingIdentity)
		return models.Owner{}, uuid.Nil, false
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.error(w, fmt.Errorf("%w: invalid diagram id", apperrors.ErrValidation))
		return models.Owner{}, uuid.Nil, false
	}
	return owner, id, true
}

func (h *DiagramsHandler) respond(w http.ResponseWriter, statusCode int, data any) {
	if err := WriteData(w, statusCode, data); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *DiagramsHandler) error(w http.ResponseWriter, err error) {
	if apperrors.Code(err) == apperrors.CodeInternal {
		h.logger.Error("Request failed", zap.Error(err))
	}
	if werr := WriteError(w, err); werr != nil {
		h.logger.Error("Failed to write error response", zap.Error(werr))
	}
}

// intParam parses an integer query param, falling back to def when absent
// or malformed.
func intParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

// boolParam parses an optional boolean query param.
func boolParam(raw string, def bool) bool {
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}
