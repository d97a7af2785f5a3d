package app

import (
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/meridian-bank/meridian-web/internal/admin"
	"github.com/meridian-bank/meridian-web/internal/auth"
	"github.com/meridian-bank/meridian-web/internal/banking"
	"github.com/meridian-bank/meridian-web/internal/boundary"
	"github.com/meridian-bank/meridian-web/internal/mappings"
	"github.com/meridian-bank/meridian-web/internal/observability"
	"github.com/meridian-bank/meridian-web/internal/platform/httpx"
	"github.com/meridian-bank/meridian-web/internal/rbac"
	"github.com/meridian-bank/meridian-web/internal/reports"
	"github.com/meridian-bank/meridian-web/internal/shared"
	"github.com/meridian-bank/meridian-web/internal/view"
	"github.com/meridian-bank/meridian-web/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	Templates       *view.Engine
	Pages           view.Pages
	SessionManager  *shared.SessionManager
	CSRFManager     *shared.CSRFManager
	RBACMiddleware  rbac.Middleware
	AuthHandler     *auth.Handler
	BankingHandler  *banking.Handler
	AdminHandler    *admin.Handler
	ReportsHandler  *reports.Handler
	MappingsHandler *mappings.Handler
	BoundaryHandler *boundary.Handler
	Metrics         *observability.Metrics
}

// Roles admitted to each guarded area.
var (
	adminRoles    = []rbac.Role{rbac.RoleAdmin}
	reportsRoles  = []rbac.Role{rbac.RoleAdmin, rbac.RoleAuditor, rbac.RoleBankStaff}
	mappingsRoles = []rbac.Role{rbac.RoleAdmin, rbac.RoleBankStaff}
)

// NewRouter constructs the chi.Router with Meridian defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
		Boundary:       params.BoundaryHandler,
	}) {
		r.Use(mw)
	}

	if params.Config == nil || !params.Config.IsProduction() {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		st := auth.FromRequest(r)
		if st == nil || !st.IsAuthenticated() {
			http.Redirect(w, r, rbac.LoginPath, http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, rbac.DashboardPathFor(st.Roles()), http.StatusSeeOther)
	})

	r.Get(rbac.UnauthorizedPath, func(w http.ResponseWriter, r *http.Request) {
		data := params.Pages.Data(r, "Access denied", nil)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusForbidden)
		if err := params.Templates.Render(w, "pages/unauthorized.html", data); err != nil {
			params.Logger.Error("render unauthorized", slog.Any("error", err))
		}
	})

	loginLimit := 10
	if params.Config != nil && params.Config.LoginRateLimitPerMinute > 0 {
		loginLimit = params.Config.LoginRateLimitPerMinute
	}
	r.Group(func(r chi.Router) {
		r.Use(httprate.Limit(loginLimit, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP, httprate.KeyByEndpoint),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "Too many sign-in attempts. Please wait a minute and try again.", http.StatusTooManyRequests)
			}),
		))
		params.AuthHandler.MountRoutes(r)
	})

	if params.BoundaryHandler != nil {
		params.BoundaryHandler.MountRoutes(r)
	}

	guard := params.RBACMiddleware
	r.Group(func(r chi.Router) {
		r.Use(guard.Guard())
		params.AuthHandler.MountPreferenceRoutes(r)
		if params.BankingHandler != nil {
			params.BankingHandler.MountRoutes(r)
		}
	})
	if params.AdminHandler != nil {
		r.Group(func(r chi.Router) {
			r.Use(guard.Guard(adminRoles...))
			params.AdminHandler.MountRoutes(r)
		})
	}
	if params.ReportsHandler != nil {
		r.Group(func(r chi.Router) {
			r.Use(guard.Guard(reportsRoles...))
			params.ReportsHandler.MountRoutes(r)
		})
	}
	if params.MappingsHandler != nil {
		r.Group(func(r chi.Router) {
			r.Use(guard.Guard(mappingsRoles...))
			params.MappingsHandler.MountRoutes(r)
		})
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// staticCacheHandler wraps a file server with Cache-Control headers.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
