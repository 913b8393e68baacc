package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/meridian-mdm/meridian-mdm/internal/auth"
	"github.com/meridian-mdm/meridian-mdm/internal/groups"
	"github.com/meridian-mdm/meridian-mdm/internal/observability"
	"github.com/meridian-mdm/meridian-mdm/internal/permissions"
	"github.com/meridian-mdm/meridian-mdm/internal/roles"
	"github.com/meridian-mdm/meridian-mdm/internal/users"
	"github.com/meridian-mdm/meridian-mdm/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	AuthHandler        *auth.Handler
	AuthMiddleware     auth.Middleware
	PermissionsHandler *permissions.Handler
	GroupsHandler      *groups.Handler
	RolesHandler       *roles.Handler
	UsersHandler       *users.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with Meridian defaults.
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

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	// Everything below requires a resolved bearer token.
	r.Group(func(r chi.Router) {
		r.Use(params.AuthMiddleware.Authenticate)

		if params.PermissionsHandler != nil {
			r.Route("/permissions", params.PermissionsHandler.MountRoutes)
		}
		if params.GroupsHandler != nil {
			r.Route("/permission-groups", params.GroupsHandler.MountRoutes)
		}
		if params.RolesHandler != nil {
			r.Route("/roles", func(r chi.Router) {
				params.RolesHandler.MountRoutes(r)
				if params.UsersHandler != nil {
					params.UsersHandler.MountRoleRoutes(r)
				}
			})
		}
		if params.UsersHandler != nil {
			r.Route("/users", params.UsersHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
