package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tradyx/backoffice/internal/auth"
	"github.com/tradyx/backoffice/internal/cashregister"
	closehttp "github.com/tradyx/backoffice/internal/close/http"
	"github.com/tradyx/backoffice/internal/inventory"
	"github.com/tradyx/backoffice/internal/maintenance"
	"github.com/tradyx/backoffice/internal/observability"
	"github.com/tradyx/backoffice/internal/platform/httpx"
	"github.com/tradyx/backoffice/internal/rbac"
	"github.com/tradyx/backoffice/internal/sales"
	"github.com/tradyx/backoffice/internal/sales/customers"
	"github.com/tradyx/backoffice/internal/settings"
	"github.com/tradyx/backoffice/internal/shared"
	"github.com/tradyx/backoffice/internal/users"
	"github.com/tradyx/backoffice/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	RBACMiddleware rbac.Middleware
	Metrics        *observability.Metrics
	HealthCheck    func(r *http.Request) error

	AuthHandler        *auth.Handler
	SalesHandler       *sales.Handler
	CloseHandler       *closehttp.Handler
	InventoryHandler   *inventory.Handler
	UsersHandler       *users.Handler
	CashHandler        *cashregister.Handler
	CustomersHandler   *customers.Handler
	MaintenanceHandler *maintenance.Handler
	SettingsHandler    *settings.Handler
	JobHandler         *jobs.Handler
}

// NewRouter constructs the chi.Router with back office defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if params.HealthCheck != nil {
			if err := params.HealthCheck(r); err != nil {
				params.Logger.Warn("health check", slog.Any("error", err))
				httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.AuthHandler != nil {
		r.Route("/auth", params.AuthHandler.MountRoutes)
	}

	r.Group(func(r chi.Router) {
		r.Use(params.RBACMiddleware.Authenticate)
		if params.SalesHandler != nil {
			params.SalesHandler.MountRoutes(r)
		}
		if params.CloseHandler != nil {
			params.CloseHandler.MountRoutes(r)
		}
		if params.InventoryHandler != nil {
			params.InventoryHandler.MountRoutes(r)
		}
		if params.UsersHandler != nil {
			params.UsersHandler.MountRoutes(r)
		}
		if params.CashHandler != nil {
			params.CashHandler.MountRoutes(r)
		}
		if params.CustomersHandler != nil {
			params.CustomersHandler.MountRoutes(r)
		}
		if params.MaintenanceHandler != nil {
			params.MaintenanceHandler.MountRoutes(r)
		}
		if params.SettingsHandler != nil {
			params.SettingsHandler.MountRoutes(r)
		}
		if params.JobHandler != nil {
			r.Group(func(r chi.Router) {
				r.Use(params.RBACMiddleware.RequireAll(shared.PermJobsRun))
				params.JobHandler.MountRoutes(r)
			})
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "no route for "+r.URL.Path)
	})
	return r
}
