package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/agrodistri/agrodistri/internal/delivery"
	"github.com/agrodistri/agrodistri/internal/employees"
	"github.com/agrodistri/agrodistri/internal/inventory"
	"github.com/agrodistri/agrodistri/internal/observability"
	"github.com/agrodistri/agrodistri/internal/orders"
	"github.com/agrodistri/agrodistri/internal/payments"
	"github.com/agrodistri/agrodistri/internal/platform/httpx"
	"github.com/agrodistri/agrodistri/internal/reports"
	"github.com/agrodistri/agrodistri/internal/settings"
	"github.com/agrodistri/agrodistri/internal/stores"
	"github.com/agrodistri/agrodistri/jobs"
)

// Pinger reports backend reachability for /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics
	Checks  map[string]Pinger

	InventoryHandler *inventory.Handler
	StoresHandler    *stores.Handler
	EmployeesHandler *employees.Handler
	OrdersHandler    *orders.Handler
	PaymentsHandler  *payments.Handler
	DeliveryHandler  *delivery.Handler
	ReportsHandler   *reports.Handler
	SettingsHandler  *settings.Handler
	JobHandler       *jobs.Handler
}

// NewRouter constructs the chi.Router with API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", healthz(params.Checks, params.Logger))
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	hash := ""
	if params.Config != nil {
		hash = params.Config.APITokenHash
	}

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(hash, params.Logger))
		r.Use(ActorContext)

		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
		r.Route("/api", func(r chi.Router) {
			if params.InventoryHandler != nil {
				r.Route("/products", params.InventoryHandler.MountRoutes)
			}
			if params.StoresHandler != nil {
				r.Route("/stores", params.StoresHandler.MountRoutes)
			}
			if params.EmployeesHandler != nil {
				r.Route("/employees", params.EmployeesHandler.MountRoutes)
			}
			r.Route("/orders", func(r chi.Router) {
				if params.OrdersHandler != nil {
					params.OrdersHandler.MountRoutes(r)
				}
				if params.PaymentsHandler != nil {
					r.Route("/{id}/payments", params.PaymentsHandler.MountRoutes)
				}
			})
			if params.DeliveryHandler != nil {
				r.Route("/deliveries", params.DeliveryHandler.MountRoutes)
			}
			if params.ReportsHandler != nil {
				r.Route("/reports", params.ReportsHandler.MountRoutes)
			}
			if params.SettingsHandler != nil {
				r.Route("/settings", params.SettingsHandler.MountRoutes)
			}
		})
	})

	return r
}

func healthz(checks map[string]Pinger, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status := map[string]string{"status": "ok"}
		code := http.StatusOK
		for name, check := range checks {
			if check == nil {
				continue
			}
			if err := check.Ping(ctx); err != nil {
				logger.Warn("health check failed", slog.String("check", name), slog.Any("error", err))
				status[name] = "down"
				status["status"] = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			status[name] = "up"
		}
		httpx.JSON(w, code, status)
	}
}
