package inventory

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/agrodistri/agrodistri/internal/platform/httpx"
	"github.com/agrodistri/agrodistri/internal/shared"
)

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listProducts)
	r.Post("/", h.createProduct)
	r.Get("/{id}", h.getProduct)
	r.Post("/{id}/stock-in", h.stockIn)
	r.Post("/{id}/adjust", h.adjust)
	r.Get("/{id}/stock-logs", h.stockLogs)
}

type stockInRequest struct {
	Quantity int    `json:"quantity" validate:"gt=0"`
	Notes    string `json:"notes" validate:"max=500"`
}

type adjustRequest struct {
	Delta  int    `json:"delta" validate:"ne=0"`
	Reason string `json:"reason" validate:"required,oneof=adjustment damaged lost expired"`
	Notes  string `json:"notes" validate:"max=500"`
}

type productList struct {
	Items   []Product `json:"items"`
	Page    int       `json:"page"`
	PerPage int       `json:"per_page"`
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, perPage := shared.NormalizePage(httpx.QueryInt(r, "page", 1), httpx.QueryInt(r, "per_page", shared.DefaultPerPage))
	filter := ProductFilter{
		ActiveOnly:   q.Get("active") != "false",
		LowStockOnly: q.Get("low_stock") == "true",
		Search:       strings.TrimSpace(q.Get("q")),
		Limit:        perPage,
		Offset:       (page - 1) * perPage,
	}
	items, err := h.service.ListProducts(r.Context(), filter)
	if err != nil {
		h.fail(w, "list products", err)
		return
	}
	if items == nil {
		items = []Product{}
	}
	httpx.JSON(w, http.StatusOK, productList{Items: items, Page: page, PerPage: perPage})
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var input CreateProductInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	product, err := h.service.CreateProduct(r.Context(), input)
	if err != nil {
		h.fail(w, "create product", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, product)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	product, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		h.fail(w, "get product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) stockIn(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req stockInRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	log, err := h.service.StockIn(r.Context(), StockInInput{ProductID: id, Quantity: req.Quantity, Notes: req.Notes})
	if err != nil {
		h.fail(w, "stock in", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, log)
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req adjustRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	log, err := h.service.Adjust(r.Context(), AdjustInput{
		ProductID: id,
		Delta:     req.Delta,
		Reason:    LogType(req.Reason),
		Notes:     req.Notes,
	})
	if err != nil {
		h.fail(w, "adjust stock", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, log)
}

func (h *Handler) stockLogs(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	logs, err := h.service.ListStockLogs(r.Context(), id, httpx.QueryInt(r, "limit", 50))
	if err != nil {
		h.fail(w, "list stock logs", err)
		return
	}
	if logs == nil {
		logs = []StockLog{}
	}
	httpx.JSON(w, http.StatusOK, logs)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Warn(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
