package delivery

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/agrodistri/agrodistri/internal/platform/httpx"
	"github.com/agrodistri/agrodistri/internal/shared"
)

// Handler manages delivery endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers delivery routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}/route", h.reorder)
	r.Post("/{id}/start", h.start)
	r.Post("/{id}/stops/{orderID}/delivered", h.markDelivered)
	r.Post("/{id}/complete", h.complete)
	r.Post("/{id}/cancel", h.cancel)
}

type reorderRequest struct {
	OrderIDs []int64 `json:"order_ids" validate:"required,min=1,dive,gt=0"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type deliveryList struct {
	Items      []Delivery        `json:"items"`
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
	for name, dst := range map[string]**time.Time{"date_from": &filter.DateFrom, "date_to": &filter.DateTo} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			httpx.RespondError(w, shared.NewValidationError(name, "must be YYYY-MM-DD"))
			return
		}
		*dst = &t
	}
	items, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Warn("list deliveries", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if items == nil {
		items = []Delivery{}
	}
	httpx.JSON(w, http.StatusOK, deliveryList{Items: items, Pagination: pg})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var input CreateInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	d, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.logger.Warn("create delivery", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, d)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	d, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) reorder(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req reorderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	d, err := h.service.ReorderStops(r.Context(), id, req.OrderIDs)
	h.reply(w, "reorder delivery", id, d, err)
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	d, err := h.service.Start(r.Context(), id)
	h.reply(w, "start delivery", id, d, err)
}

func (h *Handler) markDelivered(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	orderID, err := httpx.IDParam(r, "orderID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var input MarkDeliveredInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	d, err := h.service.MarkStopDelivered(r.Context(), id, orderID, input)
	h.reply(w, "mark stop delivered", id, d, err)
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	d, err := h.service.Complete(r.Context(), id)
	h.reply(w, "complete delivery", id, d, err)
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
	d, err := h.service.Cancel(r.Context(), id, req.Reason)
	h.reply(w, "cancel delivery", id, d, err)
}

func (h *Handler) reply(w http.ResponseWriter, op string, id int64, d Delivery, err error) {
	if err != nil {
		h.logger.Warn(op, slog.Any("error", err), slog.Int64("delivery_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}
