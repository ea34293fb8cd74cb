package handler

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/items-api/internal/model"
	"github.com/vyrodovalexey/items-api/internal/service"
	"github.com/vyrodovalexey/items-api/internal/store"
)

// RESTHandler handles REST API requests for items.
type RESTHandler struct {
	items  *service.ItemService
	logger *zap.Logger
}

// NewRESTHandler creates a new RESTHandler instance.
func NewRESTHandler(items *service.ItemService, logger *zap.Logger) *RESTHandler {
	return &RESTHandler{
		items:  items,
		logger: logger,
	}
}

// RegisterRoutes registers the item routes on an /api subrouter.
func (h *RESTHandler) RegisterRoutes(api *mux.Router) {
	api.HandleFunc("/items", h.ListItems).Methods(http.MethodGet)
	api.HandleFunc("/items", h.CreateItem).Methods(http.MethodPost)
	api.HandleFunc("/items/{id:[0-9]+}", h.GetItem).Methods(http.MethodGet)
	api.HandleFunc("/items/{id:[0-9]+}", h.UpdateItem).Methods(http.MethodPut)
	api.HandleFunc("/items/{id:[0-9]+}", h.DeleteItem).Methods(http.MethodDelete)
}

// ListItems handles GET /api/items?limit=&offset= requests.
func (h *RESTHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	params, err := h.items.ParsePageParams(q.Get("limit"), q.Get("offset"))
	if err != nil {
		handleError(w, r, h.logger, err, "list items")
		return
	}

	page, err := h.items.List(r.Context(), params)
	if err != nil {
		handleError(w, r, h.logger, err, "list items")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, page)
}

// GetItem handles GET /api/items/{id} requests.
func (h *RESTHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(r)
	if !ok {
		handleError(w, r, h.logger, store.ErrNotFound, "get item")
		return
	}

	item, err := h.items.Get(r.Context(), id)
	if err != nil {
		handleError(w, r, h.logger, err, "get item")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, item)
}

// CreateItem handles POST /api/items requests.
func (h *RESTHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var input model.ItemInput
	if err := decodeJSON(r, &input); err != nil {
		handleError(w, r, h.logger, err, "create item")
		return
	}

	item, err := h.items.Create(r.Context(), input)
	if err != nil {
		handleError(w, r, h.logger, err, "create item")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, item)
}

// UpdateItem handles PUT /api/items/{id} requests.
func (h *RESTHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(r)
	if !ok {
		handleError(w, r, h.logger, store.ErrNotFound, "update item")
		return
	}

	var input model.ItemInput
	if err := decodeJSON(r, &input); err != nil {
		handleError(w, r, h.logger, err, "update item")
		return
	}

	item, err := h.items.Update(r.Context(), id, input)
	if err != nil {
		handleError(w, r, h.logger, err, "update item")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, item)
}

// DeleteItem handles DELETE /api/items/{id} requests. Deleting an id
// twice yields 404 the second time.
func (h *RESTHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(r)
	if !ok {
		handleError(w, r, h.logger, store.ErrNotFound, "delete item")
		return
	}

	if err := h.items.Delete(r.Context(), id); err != nil {
		handleError(w, r, h.logger, err, "delete item")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, model.DeleteResult{Success: true})
}

// itemID reads the {id} route variable. Ids that overflow int64 cannot
// exist in any store.
func itemID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
