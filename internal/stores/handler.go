package stores

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/agrodistri/agrodistri/internal/platform/httpx"
	"github.com/agrodistri/agrodistri/internal/shared"
)

// Handler exposes store endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers store routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Get("/{id}/prices", h.listPrices)
	r.Put("/{id}/prices/{productID}", h.setPrice)
}

type setPriceRequest struct {
	Price decimal.Decimal `json:"price"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, perPage := shared.NormalizePage(httpx.QueryInt(r, "page", 1), httpx.QueryInt(r, "per_page", shared.DefaultPerPage))
	items, err := h.service.ListStores(r.Context(), StoreFilter{
		Region:   strings.TrimSpace(q.Get("region")),
		WithDebt: q.Get("with_debt") == "true",
		Search:   strings.TrimSpace(q.Get("q")),
		Limit:    perPage,
		Offset:   (page - 1) * perPage,
	})
	if err != nil {
		h.logger.Warn("list stores", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if items == nil {
		items = []Store{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "page": page, "per_page": perPage})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var input CreateStoreInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	store, err := h.service.CreateStore(r.Context(), input)
	if err != nil {
		h.logger.Warn("create store", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, store)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	store, err := h.service.GetStore(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, store)
}

func (h *Handler) listPrices(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	prices, err := h.service.ListCustomPrices(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if prices == nil {
		prices = []CustomPrice{}
	}
	httpx.JSON(w, http.StatusOK, prices)
}

func (h *Handler) setPrice(w http.ResponseWriter, r *http.Request) {
	storeID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	productID, err := httpx.IDParam(r, "productID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req setPriceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	cp, err := h.service.SetCustomPrice(r.Context(), storeID, productID, req.Price)
	if err != nil {
		h.logger.Warn("set store price", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, cp)
}
