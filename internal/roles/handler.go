package roles

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/activos-fijos/activos/internal/backend"
	"github.com/activos-fijos/activos/internal/rbac"
	"github.com/activos-fijos/activos/internal/shared"
	"github.com/activos-fijos/activos/internal/view"
)

// Failer renders the response for a backend failure.
type Failer interface {
	Fail(w http.ResponseWriter, r *http.Request, err error)
}

// Handler manages role management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	failer    Failer
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, failer Failer) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		templates: templates,
		csrf:      csrf,
		failer:    failer,
		rbac:      rbac.Middleware{Logger: logger},
		validator: validator.New(),
	}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.Require(rbac.SubjectRoles, rbac.ActionRead)).Get("/", h.listRoles)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.SubjectRoles, rbac.ActionCreate))
		r.Get("/new", h.showCreateRoleForm)
		r.Post("/", h.createRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.SubjectRoles, rbac.ActionUpdate))
		r.Get("/{id}/edit", h.showEditRoleForm)
		r.Post("/{id}", h.updateRole)
	})
	r.With(h.rbac.Require(rbac.SubjectRoles, rbac.ActionDelete)).Post("/{id}/delete", h.deleteRole)
}

type formErrors map[string]string

type roleForm struct {
	Name        string `validate:"required,max=60"`
	Description string `validate:"max=255"`
	Permissions []rbac.Permission
}

type listData struct {
	Roles   []Row
	Catalog []rbac.Permission
}

type formData struct {
	ID     int64
	Form   roleForm
	Matrix [][]Cell
	Errors formErrors
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.failer.Fail(w, r, err)
		return
	}
	h.render(w, r, "pages/roles_list.html", "Roles", listData{Roles: roles, Catalog: rbac.Catalog}, http.StatusOK)
}

func (h *Handler) showCreateRoleForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/roles_form.html", "Nuevo rol", formData{Matrix: Matrix(rbac.Table{})}, http.StatusOK)
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	form, ok := h.readForm(w, r)
	if !ok {
		return
	}
	if err := h.validator.Struct(form); err != nil {
		h.renderForm(w, r, "Nuevo rol", 0, form, shared.FieldErrors(err))
		return
	}
	if _, err := h.service.CreateRole(r.Context(), form.input()); err != nil {
		if msg, rejected := backend.Rejected(err); rejected {
			h.renderForm(w, r, "Nuevo rol", 0, form, formErrors{"general": msg})
			return
		}
		h.failer.Fail(w, r, err)
		return
	}
	h.redirectWithFlash(w, r, "/roles", "success", "Rol creado")
}

func (h *Handler) showEditRoleForm(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	role, err := h.service.GetRole(r.Context(), id)
	if err != nil {
		h.failer.Fail(w, r, err)
		return
	}
	form := roleForm{Name: role.Name, Description: role.Description, Permissions: role.Permissions}
	h.render(w, r, "pages/roles_form.html", "Editar rol", formData{ID: id, Form: form, Matrix: Matrix(rbac.Merge(role.Permissions))}, http.StatusOK)
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	form, ok := h.readForm(w, r)
	if !ok {
		return
	}
	if err := h.validator.Struct(form); err != nil {
		h.renderForm(w, r, "Editar rol", id, form, shared.FieldErrors(err))
		return
	}
	if _, err := h.service.UpdateRole(r.Context(), id, form.input()); err != nil {
		if msg, rejected := backend.Rejected(err); rejected {
			h.renderForm(w, r, "Editar rol", id, form, formErrors{"general": msg})
			return
		}
		h.failer.Fail(w, r, err)
		return
	}
	h.redirectWithFlash(w, r, "/roles", "success", "Rol actualizado")
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteRole(r.Context(), id); err != nil {
		if msg, rejected := backend.Rejected(err); rejected {
			h.redirectWithFlash(w, r, "/roles", "error", msg)
			return
		}
		h.failer.Fail(w, r, err)
		return
	}
	h.redirectWithFlash(w, r, "/roles", "success", "Rol eliminado")
}

func (h *Handler) readForm(w http.ResponseWriter, r *http.Request) (roleForm, bool) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return roleForm{}, false
	}
	return roleForm{
		Name:        strings.TrimSpace(r.PostFormValue("name")),
		Description: strings.TrimSpace(r.PostFormValue("description")),
		Permissions: ParsePermissions(r.PostForm["perm"]),
	}, true
}

func (f roleForm) input() backend.RoleInput {
	return backend.RoleInput{Name: f.Name, Description: f.Description, Permissions: f.Permissions}
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, title string, id int64, form roleForm, errs formErrors) {
	data := formData{ID: id, Form: form, Matrix: Matrix(rbac.Merge(form.Permissions)), Errors: errs}
	h.render(w, r, "pages/roles_form.html", title, data, http.StatusBadRequest)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template, title string, data any, status int) {
	if err := h.templates.RenderStatus(w, status, template, view.Page(r, h.csrf, title, data)); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	shared.AddFlash(r.Context(), kind, message)
	http.Redirect(w, r, location, http.StatusSeeOther)
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.NotFound(w, r)
		return 0, false
	}
	return id, true
}
