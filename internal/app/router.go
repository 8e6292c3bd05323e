package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/activos-fijos/activos/internal/activos"
	analytichttp "github.com/activos-fijos/activos/internal/analytics/http"
	audithttp "github.com/activos-fijos/activos/internal/audit/http"
	"github.com/activos-fijos/activos/internal/auth"
	"github.com/activos-fijos/activos/internal/contables"
	"github.com/activos-fijos/activos/internal/entregas"
	"github.com/activos-fijos/activos/internal/observability"
	"github.com/activos-fijos/activos/internal/roles"
	"github.com/activos-fijos/activos/internal/shared"
	"github.com/activos-fijos/activos/internal/users"
	"github.com/activos-fijos/activos/internal/view"
	"github.com/activos-fijos/activos/jobs"
	"github.com/activos-fijos/activos/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	Templates        *view.Engine
	SessionManager   *shared.SessionManager
	CSRFManager      *shared.CSRFManager
	AuthHandler      *auth.Handler
	AuthMiddleware   *auth.Middleware
	AnalyticsHandler *analytichttp.Handler
	ActivosHandler   *activos.Handler
	EntregasHandler  *entregas.Handler
	ContablesHandler *contables.Handler
	RolesHandler     *roles.Handler
	UsersHandler     *users.Handler
	AuditHandler     *audithttp.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
	// AccessLog enables chi's request logger.
	AccessLog bool
}

// NewRouter constructs the chi.Router serving the dashboard.
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
	if params.AccessLog {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		loggerOf(params).Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Group(func(r chi.Router) {
		r.Use(params.AuthMiddleware.RequireLogin)

		r.Get("/api/me", params.AuthHandler.Me)
		if params.AnalyticsHandler != nil {
			params.AnalyticsHandler.MountRoutes(r)
		}
		if params.ActivosHandler != nil {
			r.Route("/activos", params.ActivosHandler.MountRoutes)
		}
		if params.EntregasHandler != nil {
			r.Route("/entregas", params.EntregasHandler.MountRoutes)
		}
		if params.ContablesHandler != nil {
			r.Route("/contables", params.ContablesHandler.MountRoutes)
		}
		if params.RolesHandler != nil {
			r.Route("/roles", params.RolesHandler.MountRoutes)
		}
		if params.UsersHandler != nil {
			r.Route("/usuarios", params.UsersHandler.MountRoutes)
		}
		if params.AuditHandler != nil {
			r.Route("/bitacora", params.AuditHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if params.Templates == nil {
			http.NotFound(w, r)
			return
		}
		data := view.Page(r, params.CSRFManager, "No encontrado", map[string]any{
			"Status":  http.StatusNotFound,
			"Message": "La página solicitada no existe",
		})
		if err := params.Templates.RenderStatus(w, http.StatusNotFound, "pages/error.html", data); err != nil {
			loggerOf(params).Error("render not found", slog.Any("error", err))
		}
	})

	return r
}

func loggerOf(params RouterParams) *slog.Logger {
	if params.Logger == nil {
		return slog.Default()
	}
	return params.Logger
}

// staticCacheHandler caches embedded assets for an hour.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
