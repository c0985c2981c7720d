package employees

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agrodistri/agrodistri/internal/platform/httpx"
)

// Handler manages employee endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers employee routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListEmployees(r.Context(), Role(r.URL.Query().Get("role")))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if items == nil {
		items = []Employee{}
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var input CreateEmployeeInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	e, err := h.service.CreateEmployee(r.Context(), input)
	if err != nil {
		h.logger.Warn("create employee", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, e)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	e, err := h.service.GetEmployee(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, e)
}
