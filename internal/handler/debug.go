package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/items-api/internal/model"
	"github.com/vyrodovalexey/items-api/internal/service"
)

// DebugHandler exposes test-support endpoints that only work in debug mode.
// They are public; the debug flag is their only guard.
type DebugHandler struct {
	items    *service.ItemService
	enabled  bool
	seedFile string
	logger   *zap.Logger
}

// NewDebugHandler creates a DebugHandler. When enabled is false every
// endpoint answers 403.
func NewDebugHandler(items *service.ItemService, enabled bool, seedFile string, logger *zap.Logger) *DebugHandler {
	return &DebugHandler{
		items:    items,
		enabled:  enabled,
		seedFile: seedFile,
		logger:   logger,
	}
}

// RegisterRoutes registers the reset route on an /api subrouter.
func (h *DebugHandler) RegisterRoutes(api *mux.Router) {
	api.HandleFunc("/test/reset-db", h.ResetDB).Methods(http.MethodPost)
}

// ResetDB handles POST /api/test/reset-db: it empties the store and
// loads the seed file.
func (h *DebugHandler) ResetDB(w http.ResponseWriter, r *http.Request) {
	if !h.enabled {
		writeJSON(w, h.logger, http.StatusForbidden, model.ResetResponse{
			Success: false,
			Message: "This endpoint is only available in DEBUG mode",
		})
		return
	}

	seed, err := service.LoadSeed(h.seedFile)
	if err == nil {
		err = h.items.Reset(r.Context(), seed)
	}
	if err != nil {
		h.logger.Error("database reset failed", zap.String("seed_file", h.seedFile), zap.Error(err))
		writeJSON(w, h.logger, http.StatusInternalServerError, model.ResetResponse{
			Success: false,
			Message: "Database reset failed",
		})
		return
	}

	h.logger.Info("database reset", zap.Int("seed_items", len(seed)))
	writeJSON(w, h.logger, http.StatusOK, model.ResetResponse{
		Success: true,
		Message: "Database reset successfully",
	})
}
