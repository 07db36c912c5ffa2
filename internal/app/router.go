package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/freshcart/console/internal/access"
	audithttp "github.com/freshcart/console/internal/audit/http"
	"github.com/freshcart/console/internal/auth"
	"github.com/freshcart/console/internal/observability"
	"github.com/freshcart/console/internal/platform/httpx"
	"github.com/freshcart/console/internal/rbac"
	"github.com/freshcart/console/internal/roles"
	"github.com/freshcart/console/internal/shared"
	"github.com/freshcart/console/internal/users"
	"github.com/freshcart/console/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	SessionManager     *shared.SessionManager
	CSRFManager        *shared.CSRFManager
	AuthHandler        *auth.Handler
	RolesHandler       *roles.Handler
	UsersHandler       *users.Handler
	AuditHandler       *audithttp.Handler
	PermissionsHandler *rbac.PermissionsHandler
	DashboardHandler   *rbac.DashboardHandler
	JobHandler         *jobs.Handler
	RBACMiddleware     rbac.Middleware
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with console defaults.
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

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(params.RBACMiddleware.Authenticate)

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			target := access.LoginPath
			if actor, ok := access.ActorFromContext(r.Context()); ok {
				target = actor.EffectiveRole().LandingPath()
			}
			http.Redirect(w, r, target, http.StatusSeeOther)
		})

		if params.AuthHandler != nil {
			r.Group(params.AuthHandler.MountRoutes)
		}
		if params.PermissionsHandler != nil {
			r.Route("/access", params.PermissionsHandler.MountRoutes)
		}
		if params.DashboardHandler != nil {
			r.Group(params.DashboardHandler.MountRoutes)
		}
		if params.RolesHandler != nil {
			r.Route("/roles", params.RolesHandler.MountRoutes)
		}
		if params.UsersHandler != nil {
			r.Route("/users", params.UsersHandler.MountRoutes)
		}
		if params.AuditHandler != nil {
			r.Route("/audit", params.AuditHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", func(r chi.Router) {
				r.Use(params.RBACMiddleware.RequireRoles(access.RoleAdmin))
				params.JobHandler.MountRoutes(r)
			})
		}
	})

	return r
}
