package settings

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agrodistri/agrodistri/internal/platform/httpx"
)

// Handler exposes settings over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers settings routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.all)
	r.Get("/{key}", h.get)
	r.Put("/{key}", h.set)
}

type setRequest struct {
	Value string `json:"value"`
}

func (h *Handler) all(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.All(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if items == nil {
		items = []Setting{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Get(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}

func (h *Handler) set(w http.ResponseWriter, r *http.Request) {
	var req setRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	st, err := h.service.Set(r.Context(), chi.URLParam(r, "key"), req.Value)
	if err != nil {
		h.logger.Warn("set setting", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}
