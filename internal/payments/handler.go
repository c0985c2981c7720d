package payments

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/agrodistri/agrodistri/internal/platform/httpx"
)

// Handler manages payment endpoints nested under an order.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers payment routes. The router is expected to carry an
// {id} order parameter.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.summary)
	r.Post("/", h.add)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	orderID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	sum, err := h.service.Summary(r.Context(), orderID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sum)
}

func (h *Handler) add(w http.ResponseWriter, r *http.Request) {
	orderID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var input AddInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input.OrderID = orderID
	input.IdempotencyKey = strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	receipt, err := h.service.AddPayment(r.Context(), input)
	if err != nil {
		h.logger.Warn("add payment", slog.Any("error", err), slog.Int64("order_id", orderID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, receipt)
}
