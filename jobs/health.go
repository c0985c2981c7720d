package jobs

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/agrodistri/agrodistri/internal/platform/httpx"
)

// QueueInspector reports queue depth. *asynq.Inspector satisfies it.
type QueueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// Handler serves queue health for operators.
type Handler struct {
	inspector QueueInspector
	logger    *slog.Logger
}

// NewHandler builds the jobs handler. A nil inspector reports an empty queue.
func NewHandler(inspector QueueInspector, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{inspector: inspector, logger: logger}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.health)
}

type queueHealth struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
	Paused    bool   `json:"paused"`
	Processed int    `json:"processed_today"`
	Failed    int    `json:"failed_today"`
}

func fromQueueInfo(info *asynq.QueueInfo) queueHealth {
	return queueHealth{
		Queue:     info.Queue,
		Pending:   info.Pending,
		Active:    info.Active,
		Retry:     info.Retry,
		Archived:  info.Archived,
		Paused:    info.Paused,
		Processed: info.Processed,
		Failed:    info.Failed,
	}
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	if h.inspector == nil {
		httpx.JSON(w, http.StatusOK, queueHealth{Queue: QueueDefault})
		return
	}
	info, err := h.inspector.GetQueueInfo(QueueDefault)
	switch {
	case err != nil:
		h.logger.Warn("queue inspection failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Queue unavailable", "background queue could not be inspected")
	case info == nil:
		httpx.JSON(w, http.StatusOK, queueHealth{Queue: QueueDefault})
	default:
		httpx.JSON(w, http.StatusOK, fromQueueInfo(info))
	}
}
