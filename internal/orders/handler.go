package orders

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/agrodistri/agrodistri/internal/platform/httpx"
	"github.com/agrodistri/agrodistri/internal/shared"
)

// Handler manages order endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Post("/{id}/cancel", h.cancel)
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type orderList struct {
	Items      []Order           `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pg := shared.NewPagination(httpx.QueryInt(r, "page", 1), httpx.QueryInt(r, "per_page", shared.DefaultPerPage), 0)
	filter := ListFilter{
		Status: Status(q.Get("status")),
		Limit:  pg.PerPage,
		Offset: pg.Offset(),
	}
	if raw := q.Get("store_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.RespondError(w, shared.NewValidationError("store_id", "must be an integer"))
			return
		}
		filter.StoreID = id
	}
	items, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Warn("list orders", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if items == nil {
		items = []Order{}
	}
	httpx.JSON(w, http.StatusOK, orderList{Items: items, Pagination: shared.NewPagination(pg.Page, pg.PerPage, total)})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var input CreateInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	detail, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.logger.Warn("create order", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, detail)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	detail, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req cancelRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	detail, err := h.service.Cancel(r.Context(), id, req.Reason)
	if err != nil {
		h.logger.Warn("cancel order", slog.Any("error", err), slog.Int64("order_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}
