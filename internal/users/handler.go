package users

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/activos-fijos/activos/internal/backend"
	"github.com/activos-fijos/activos/internal/rbac"
	"github.com/activos-fijos/activos/internal/shared"
	"github.com/activos-fijos/activos/internal/view"
)

// Failer renders the response for a backend failure.
type Failer interface {
	Fail(w http.ResponseWriter, r *http.Request, err error)
}

// Handler manages user management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	failer    Failer
	rbac      rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, failer Failer) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, failer: failer, rbac: rbac.Middleware{Logger: logger}}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.Require(rbac.SubjectUsuarios, rbac.ActionRead)).Get("/", h.listUsers)
}

type listData struct {
	Users  []User
	Pager  shared.Pagination
	Search string
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	params := backend.ParseListParams(query)
	users, meta, err := h.service.ListUsers(r.Context(), params)
	if err != nil {
		h.failer.Fail(w, r, err)
		return
	}
	data := listData{
		Users:  users,
		Pager:  shared.NewPagination(meta.Page, meta.Limit, meta.Total, meta.LastPage, query),
		Search: params.Search,
	}
	if err := h.templates.Render(w, "pages/usuarios.html", view.Page(r, h.csrf, "Usuarios", data)); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
