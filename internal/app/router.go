package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/cohaus/cohaus/internal/admin"
	"github.com/cohaus/cohaus/internal/auth"
	"github.com/cohaus/cohaus/internal/bookings"
	"github.com/cohaus/cohaus/internal/finance"
	"github.com/cohaus/cohaus/internal/houses"
	"github.com/cohaus/cohaus/internal/observability"
	"github.com/cohaus/cohaus/internal/perm"
	"github.com/cohaus/cohaus/internal/shared"
	"github.com/cohaus/cohaus/internal/tasks"
	"github.com/cohaus/cohaus/internal/users"
	"github.com/cohaus/cohaus/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	RBAC           perm.Middleware

	AuthHandler     *auth.Handler
	UsersHandler    *users.Handler
	HousesHandler   *houses.Handler
	BookingsHandler *bookings.Handler
	FinanceHandler  *finance.Handler
	TasksHandler    *tasks.Handler
	AdminHandler    *admin.Handler
	JobHandler      *jobs.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router for the API.
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
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Route("/users", func(r chi.Router) {
		params.UsersHandler.MountPublicRoutes(r)
		r.Group(func(r chi.Router) {
			r.Use(params.RBAC.Authenticate)
			params.UsersHandler.MountRoutes(r)
		})
	})

	// Everything below requires a session with loadable role data.
	r.Group(func(r chi.Router) {
		r.Use(params.RBAC.Authenticate)

		r.Route("/houses", func(r chi.Router) {
			params.HousesHandler.MountRoutes(r)

			r.Route("/{houseID}", func(r chi.Router) {
				params.HousesHandler.MountHouseRoutes(r)
				r.Route("/bookings", params.BookingsHandler.MountRoutes)
				r.Route("/finance", params.FinanceHandler.MountRoutes)
				r.Route("/tasks", params.TasksHandler.MountRoutes)
			})
		})

		if params.AdminHandler != nil {
			r.Route("/admin", func(r chi.Router) {
				r.Use(params.RBAC.Require(func(p perm.PermissionSet) bool { return p.CanAccessAdminConsole }))
				params.AdminHandler.MountRoutes(r)
			})
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
