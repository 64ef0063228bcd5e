package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/schemasketch/engine/pkg/config"
)

// ModelsHandler exposes the AI model catalog so clients can populate a
// model picker.
type ModelsHandler struct {
	catalog *config.Catalog
	logger  *zap.Logger
}

// NewModelsHandler creates a new models handler.
func NewModelsHandler(catalog *config.Catalog, logger *zap.Logger) *ModelsHandler {
	return &ModelsHandler{catalog: catalog, logger: logger}
}

// RegisterRoutes registers the model catalog route.
func (h *ModelsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/models", h.List)
}

// List handles GET /api/models.
func (h *ModelsHandler) List(w http.ResponseWriter, r *http.Request) {
	if err := WriteData(w, http.StatusOK, h.catalog.Models); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
