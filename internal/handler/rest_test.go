package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vyrodovalexey/items-api/internal/model"
	"github.com/vyrodovalexey/items-api/internal/service"
	"github.com/vyrodovalexey/items-api/internal/store"
)

// failingStore fails every call with err.
type failingStore struct {
	store.Store
	err error
}

func (f *failingStore) Count(context.Context) (int, error) { return 0, f.err }

func (f *failingStore) Ping(context.Context) error { return f.err }

func newItemsRouter(t *testing.T, s store.Store, logger *zap.Logger) (*mux.Router, *service.ItemService) {
	t.Helper()

	svc := service.NewItemService(s, nil)
	router := mux.NewRouter()
	NewRESTHandler(svc, logger).RegisterRoutes(router.PathPrefix("/api").Subrouter())

	return router, svc
}

func do(router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestRESTHandler_ListItems(t *testing.T) {
	t.Parallel()

	// Arrange
	router, svc := newItemsRouter(t, store.NewMemoryStore(), zap.NewNop())
	for _, price := range []int64{100, 80} {
		name, p := "item", price
		_, err := svc.Create(context.Background(), model.ItemInput{Name: &name, Price: &p})
		require.NoError(t, err)
	}

	// Act
	rr := do(router, http.MethodGet, "/api/items", "")

	// Assert
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{
		"items": [{"id": 2, "name": "item", "price": 80}, {"id": 1, "name": "item", "price": 100}],
		"count": 2, "limit": 10, "offset": 0
	}`, rr.Body.String())
}

func TestRESTHandler_ListItems_InvalidParams(t *testing.T) {
	t.Parallel()

	router, _ := newItemsRouter(t, store.NewMemoryStore(), zap.NewNop())

	for _, query := range []string{"limit=-1", "limit=0", "limit=101", "offset=-1", "limit=abc"} {
		t.Run(query, func(t *testing.T) {
			rr := do(router, http.MethodGet, "/api/items?"+query, "")

			assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

			var body model.ErrorResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
			assert.Equal(t, http.StatusUnprocessableEntity, body.Code)
			assert.NotEmpty(t, body.Details)
		})
	}
}

func TestRESTHandler_StoreFailure(t *testing.T) {
	t.Parallel()

	// Arrange
	core, logs := observer.New(zap.ErrorLevel)
	router, _ := newItemsRouter(t, &failingStore{Store: store.NewMemoryStore(), err: errors.New("db down")}, zap.New(core))

	// Act
	rr := do(router, http.MethodGet, "/api/items", "")

	// Assert
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"code":500,"message":"internal server error"}`, rr.Body.String())
	entries := logs.FilterMessage("request failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "list items", entries[0].ContextMap()["operation"])
}

func TestRESTHandler_CRUD(t *testing.T) {
	t.Parallel()

	router, _ := newItemsRouter(t, store.NewMemoryStore(), zap.NewNop())

	rr := do(router, http.MethodPost, "/api/items", `{"name":"Widget","price":-3}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"id":1,"name":"Widget","price":-3}`, rr.Body.String())

	rr = do(router, http.MethodGet, "/api/items/1", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"id":1,"name":"Widget","price":-3}`, rr.Body.String())

	rr = do(router, http.MethodPut, "/api/items/1", `{"name":"Gadget","price":7}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"id":1,"name":"Gadget","price":7}`, rr.Body.String())

	rr = do(router, http.MethodDelete, "/api/items/1", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"success":true}`, rr.Body.String())

	rr = do(router, http.MethodDelete, "/api/items/1", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"code":404,"message":"item not found"}`, rr.Body.String())

	rr = do(router, http.MethodGet, "/api/items/1", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRESTHandler_BadInput(t *testing.T) {
	t.Parallel()

	router, _ := newItemsRouter(t, store.NewMemoryStore(), zap.NewNop())

	tests := []struct {
		name       string
		method     string
		target     string
		body       string
		wantStatus int
	}{
		{"malformed json", http.MethodPost, "/api/items", `{"name":`, http.StatusBadRequest},
		{"empty body", http.MethodPost, "/api/items", "", http.StatusBadRequest},
		{"missing price", http.MethodPost, "/api/items", `{"name":"x"}`, http.StatusUnprocessableEntity},
		{"missing name", http.MethodPost, "/api/items", `{"price":1}`, http.StatusUnprocessableEntity},
		{"price wrong type", http.MethodPost, "/api/items", `{"name":"x","price":"cheap"}`, http.StatusUnprocessableEntity},
		{"update missing item", http.MethodPut, "/api/items/99", `{"name":"x","price":1}`, http.StatusNotFound},
		{"update invalid body", http.MethodPut, "/api/items/99", `{"name":"x"}`, http.StatusUnprocessableEntity},
		{"non-numeric id", http.MethodGet, "/api/items/abc", "", http.StatusNotFound},
		{"overflowing id", http.MethodGet, "/api/items/99999999999999999999", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(router, tt.method, tt.target, tt.body)

			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}

func TestRESTHandler_ValidationDetails(t *testing.T) {
	t.Parallel()

	router, _ := newItemsRouter(t, store.NewMemoryStore(), zap.NewNop())

	rr := do(router, http.MethodPost, "/api/items", `{"name":"x","price":"cheap"}`)

	var body model.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	require.Len(t, body.Details, 1)
	assert.Equal(t, "price", body.Details[0].Field)
}
