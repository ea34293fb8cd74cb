// Package handler provides HTTP request handlers for the items API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/items-api/internal/model"
	"github.com/vyrodovalexey/items-api/internal/service"
	"github.com/vyrodovalexey/items-api/internal/store"
)

// Version is the application version.
const Version = "1.0.0"

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Status string `json:"status"`
}

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ProbeHandler serves liveness and readiness probes.
type ProbeHandler struct {
	pinger Pinger
	logger *zap.Logger
}

// NewProbeHandler creates a ProbeHandler that checks pinger for readiness.
func NewProbeHandler(pinger Pinger, logger *zap.Logger) *ProbeHandler {
	return &ProbeHandler{pinger: pinger, logger: logger}
}

// RegisterRoutes registers /health and /ready.
func (h *ProbeHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	router.HandleFunc("/ready", h.Ready).Methods(http.MethodGet)
}

// Health handles GET /health requests.
func (h *ProbeHandler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, HealthResponse{Status: "healthy", Version: Version})
}

// Ready handles GET /ready requests. The store must answer a ping.
func (h *ProbeHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.pinger.Ping(r.Context()); err != nil {
		h.logger.Warn("readiness check failed", zap.Error(err))
		writeJSON(w, h.logger, http.StatusServiceUnavailable, ReadyResponse{Status: "unavailable"})
		return
	}
	writeJSON(w, h.logger, http.StatusOK, ReadyResponse{Status: "ready"})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}

// writeError writes an error response with the given status code and message.
func writeError(w http.ResponseWriter, logger *zap.Logger, status int, message string, details []model.FieldError) {
	writeJSON(w, logger, status, model.ErrorResponse{
		Code:    status,
		Message: message,
		Details: details,
	})
}

// errBadBody marks a request body that is not valid JSON.
var errBadBody = errors.New("invalid request body")

// decodeJSON decodes the request body into dst. Syntax errors wrap
// errBadBody; a value of the wrong type becomes a field validation error.
func decodeJSON(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return nil
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return service.NewValidationError(typeErr.Field, fmt.Sprintf("must be of type %s", typeErr.Type))
	}

	return fmt.Errorf("%w: %w", errBadBody, err)
}

// handleError maps service and store errors to HTTP responses. Anything
// unrecognised is logged and answered with 500.
func handleError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error, operation string) {
	switch {
	case errors.Is(err, errBadBody):
		writeError(w, logger, http.StatusBadRequest, errBadBody.Error(), nil)
	case errors.Is(err, service.ErrValidation):
		writeError(w, logger, http.StatusUnprocessableEntity, service.ErrValidation.Error(), service.FieldErrors(err))
	case errors.Is(err, store.ErrNotFound):
		writeError(w, logger, http.StatusNotFound, "item not found", nil)
	default:
		logger.Error("request failed",
			zap.String("operation", operation),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, logger, http.StatusInternalServerError, "internal server error", nil)
	}
}
