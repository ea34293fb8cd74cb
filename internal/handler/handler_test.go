package handler

import (
	"errors"
	"net/http"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/items-api/internal/store"
)

func TestProbeHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		pinger     Pinger
		path       string
		wantStatus int
		wantBody   string
	}{
		{"health", store.NewMemoryStore(), "/health", http.StatusOK, `{"status":"healthy","version":"1.0.0"}`},
		{"health ignores store", &failingStore{err: errors.New("down")}, "/health", http.StatusOK, `{"status":"healthy","version":"1.0.0"}`},
		{"ready", store.NewMemoryStore(), "/ready", http.StatusOK, `{"status":"ready"}`},
		{"not ready", &failingStore{err: errors.New("down")}, "/ready", http.StatusServiceUnavailable, `{"status":"unavailable"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// Arrange
			router := mux.NewRouter()
			NewProbeHandler(tt.pinger, zap.NewNop()).RegisterRoutes(router)

			// Act
			rr := do(router, http.MethodGet, tt.path, "")

			// Assert
			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.JSONEq(t, tt.wantBody, rr.Body.String())
		})
	}
}
