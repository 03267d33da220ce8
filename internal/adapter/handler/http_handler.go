package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/rl1809/commerce-core/internal/core/domain"
	"github.com/rl1809/commerce-core/internal/core/service"
)

type HTTPHandler struct {
	inventory   *service.InventoryService
	projections *service.ProjectionService
	logger      *zap.Logger
	readiness   func() bool
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type QuantityRequest struct {
	Quantity int `json:"quantity"`
	// RequestID makes an allocation idempotent when set.
	RequestID string `json:"request_id,omitempty"`
}

type AttributeValuesRequest struct {
	Values map[string]string `json:"values"`
}

type CatalogRequest struct {
	DefaultLocale string `json:"default_locale"`
}

type StoreRequest struct {
	CatalogCode      string   `json:"catalog_code"`
	DefaultLocale    string   `json:"default_locale"`
	SupportedLocales []string `json:"supported_locales"`
}

type ResolveRequest struct {
	CatalogLocale    string            `json:"catalog_locale"`
	StoreLocale      string            `json:"store_locale"`
	SupportedLocales []string          `json:"supported_locales"`
	Values           map[string]string `json:"values"`
}

type ResolveResponse struct {
	Translations []domain.Translation `json:"translations"`
}

// NewHTTPHandler wires the handlers. readiness may be nil.
func NewHTTPHandler(inventory *service.InventoryService, projections *service.ProjectionService, logger *zap.Logger, readiness func() bool) *HTTPHandler {
	return &HTTPHandler{inventory: inventory, projections: projections, logger: logger, readiness: readiness}
}

func (h *HTTPHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Post("/translations/resolve", h.ResolveTranslations)

		r.Put("/catalogs/{catalog}", h.SaveCatalog)
		r.Put("/catalogs/{catalog}/attributes/{attribute}/translations", h.SaveAttributeValues)
		r.Put("/stores/{store}", h.SaveStore)
		r.Get("/stores/{store}/attributes/{attribute}/translations", h.AttributeTranslations)

		r.Post("/inventory", h.CreateInventory)
		r.Route("/inventory/{sku}/{warehouse}", func(r chi.Router) {
			r.Get("/", h.GetInventory)
			r.Put("/", h.UpdateInventory)
			r.Delete("/", h.DeleteInventory)
			r.Post("/adjust", h.Adjust)
			r.Post("/allocate", h.Allocate)
			r.Post("/deallocate", h.Deallocate)
			r.Post("/release", h.Release)
			r.Post("/rollup", h.Rollup)
		})
	})

	return r
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.readiness != nil && !h.readiness() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) ResolveTranslations(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if !decode(w, r, &req) {
		return
	}

	catalogLocale, err := domain.ParseLocale(req.CatalogLocale)
	if err != nil {
		h.writeError(w, err)
		return
	}
	storeLocale, err := domain.ParseLocale(req.StoreLocale)
	if err != nil {
		h.writeError(w, err)
		return
	}
	supported, err := domain.ParseLocales(req.SupportedLocales)
	if err != nil {
		h.writeError(w, err)
		return
	}
	values, err := domain.ParseLocaleValues(req.Values)
	if err != nil {
		h.writeError(w, err)
		return
	}

	translations, err := service.ResolveTranslations(catalogLocale, storeLocale, supported, values)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ResolveResponse{Translations: translations})
}

func (h *HTTPHandler) SaveCatalog(w http.ResponseWriter, r *http.Request) {
	var req CatalogRequest
	if !decode(w, r, &req) {
		return
	}

	loc, err := domain.ParseLocale(req.DefaultLocale)
	if err != nil {
		h.writeError(w, err)
		return
	}

	catalog := domain.Catalog{Code: chi.URLParam(r, "catalog"), DefaultLocale: loc}
	if err := h.projections.SaveCatalog(r.Context(), catalog); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, catalog)
}

func (h *HTTPHandler) SaveStore(w http.ResponseWriter, r *http.Request) {
	var req StoreRequest
	if !decode(w, r, &req) {
		return
	}

	defaultLocale, err := domain.ParseLocale(req.DefaultLocale)
	if err != nil {
		h.writeError(w, err)
		return
	}
	supported, err := domain.ParseLocales(req.SupportedLocales)
	if err != nil {
		h.writeError(w, err)
		return
	}

	store := domain.Store{
		Code:             chi.URLParam(r, "store"),
		CatalogCode:      req.CatalogCode,
		DefaultLocale:    defaultLocale,
		SupportedLocales: supported,
	}
	if err := h.projections.SaveStore(r.Context(), store); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, store)
}

func (h *HTTPHandler) SaveAttributeValues(w http.ResponseWriter, r *http.Request) {
	var req AttributeValuesRequest
	if !decode(w, r, &req) {
		return
	}

	values, err := domain.ParseLocaleValues(req.Values)
	if err != nil {
		h.writeError(w, err)
		return
	}

	err = h.projections.SaveAttributeValues(r.Context(), chi.URLParam(r, "catalog"), chi.URLParam(r, "attribute"), values)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) AttributeTranslations(w http.ResponseWriter, r *http.Request) {
	projection, err := h.projections.AttributeTranslations(r.Context(), chi.URLParam(r, "store"), chi.URLParam(r, "attribute"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projection)
}

func (h *HTTPHandler) CreateInventory(w http.ResponseWriter, r *http.Request) {
	var inv domain.Inventory
	if !decode(w, r, &inv) {
		return
	}

	created, err := h.inventory.CreateInventory(r.Context(), inv)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *HTTPHandler) GetInventory(w http.ResponseWriter, r *http.Request) {
	key, ok := inventoryKey(w, r)
	if !ok {
		return
	}

	inv, err := h.inventory.GetInventory(r.Context(), key)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *HTTPHandler) UpdateInventory(w http.ResponseWriter, r *http.Request) {
	key, ok := inventoryKey(w, r)
	if !ok {
		return
	}

	var inv domain.Inventory
	if !decode(w, r, &inv) {
		return
	}
	inv.SkuCode, inv.WarehouseID = key.SkuCode, key.WarehouseID

	updated, err := h.inventory.UpdateInventory(r.Context(), inv)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *HTTPHandler) DeleteInventory(w http.ResponseWriter, r *http.Request) {
	key, ok := inventoryKey(w, r)
	if !ok {
		return
	}

	if err := h.inventory.DeleteInventory(r.Context(), key); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	h.quantityCommand(w, r, func(r *http.Request, key domain.InventoryKey, req QuantityRequest) (*domain.Inventory, error) {
		return h.inventory.AdjustQuantityOnHand(r.Context(), key, req.Quantity)
	})
}

func (h *HTTPHandler) Allocate(w http.ResponseWriter, r *http.Request) {
	h.quantityCommand(w, r, func(r *http.Request, key domain.InventoryKey, req QuantityRequest) (*domain.Inventory, error) {
		if req.RequestID != "" {
			return h.inventory.AllocateOnce(r.Context(), req.RequestID, key, req.Quantity)
		}
		return h.inventory.Allocate(r.Context(), key, req.Quantity)
	})
}

func (h *HTTPHandler) Deallocate(w http.ResponseWriter, r *http.Request) {
	h.quantityCommand(w, r, func(r *http.Request, key domain.InventoryKey, req QuantityRequest) (*domain.Inventory, error) {
		return h.inventory.Deallocate(r.Context(), key, req.Quantity)
	})
}

func (h *HTTPHandler) Release(w http.ResponseWriter, r *http.Request) {
	h.quantityCommand(w, r, func(r *http.Request, key domain.InventoryKey, req QuantityRequest) (*domain.Inventory, error) {
		return h.inventory.Release(r.Context(), key, req.Quantity)
	})
}

func (h *HTTPHandler) Rollup(w http.ResponseWriter, r *http.Request) {
	key, ok := inventoryKey(w, r)
	if !ok {
		return
	}

	result, err := h.inventory.ProcessRollup(r.Context(), key)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *HTTPHandler) quantityCommand(
	w http.ResponseWriter, r *http.Request,
	run func(r *http.Request, key domain.InventoryKey, req QuantityRequest) (*domain.Inventory, error),
) {
	key, ok := inventoryKey(w, r)
	if !ok {
		return
	}

	var req QuantityRequest
	if !decode(w, r, &req) {
		return
	}

	inv, err := run(r, key, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func inventoryKey(w http.ResponseWriter, r *http.Request) (domain.InventoryKey, bool) {
	warehouseID, err := strconv.ParseInt(chi.URLParam(r, "warehouse"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "warehouse must be an integer"})
		return domain.InventoryKey{}, false
	}
	return domain.InventoryKey{SkuCode: chi.URLParam(r, "sku"), WarehouseID: warehouseID}, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

// statusFor maps service and domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInventoryNotFound),
		errors.Is(err, service.ErrStoreNotFound),
		errors.Is(err, service.ErrCatalogNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInsufficientStock),
		errors.Is(err, service.ErrInventoryExists),
		errors.Is(err, service.ErrStaleInventory),
		errors.Is(err, service.ErrDuplicateRequest):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidStore),
		errors.Is(err, domain.ErrInvalidInventory),
		errors.Is(err, domain.ErrInvalidLocale):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrLocaleValueNotFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrRollupLocked):
		return http.StatusLocked
	default:
		return http.StatusInternalServerError
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
		writeJSON(w, status, ErrorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
