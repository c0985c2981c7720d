package reports

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/agrodistri/agrodistri/internal/platform/httpx"
	"github.com/agrodistri/agrodistri/internal/shared"
)

// Handler exposes reports over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.kinds)
	r.Post("/refresh", h.refresh)
	r.Get("/{kind}", h.run)
}

func (h *Handler) kinds(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{"kinds": h.service.Kinds()})
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request) {
	var p Params
	q := r.URL.Query()
	for name, dst := range map[string]*time.Time{"from": &p.From, "to": &p.To} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			httpx.RespondError(w, shared.NewValidationError(name, "must be YYYY-MM-DD"))
			return
		}
		*dst = t
	}
	kind := Kind(chi.URLParam(r, "kind"))
	out, err := h.service.Run(r.Context(), kind, p)
	if err != nil {
		h.logger.Warn("run report", slog.String("kind", string(kind)), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Invalidate(r.Context()); err != nil {
		h.logger.Error("invalidate reports", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
