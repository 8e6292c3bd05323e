package activos

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/activos-fijos/activos/internal/analytics/export"
	"github.com/activos-fijos/activos/internal/backend"
	"github.com/activos-fijos/activos/internal/rbac"
	"github.com/activos-fijos/activos/internal/shared"
	"github.com/activos-fijos/activos/internal/view"
)

// Failer renders the response for a backend failure.
type Failer interface {
	Fail(w http.ResponseWriter, r *http.Request, err error)
}

// Handler manages asset endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	failer    Failer
	rbac      rbac.Middleware
	validator *validator.Validate
	csvPool   sync.Pool
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, failer Failer) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		logger:    logger,
		service:   service,
		templates: templates,
		csrf:      csrf,
		failer:    failer,
		rbac:      rbac.Middleware{Logger: logger},
		validator: validator.New(),
	}
	h.csvPool.New = func() any { return new(bytes.Buffer) }
	return h
}

// MountRoutes registers asset routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.SubjectActivos, rbac.ActionRead))
		r.Get("/", h.list)
		r.Get("/{id}", h.show)
	})
	r.With(h.rbac.Require(rbac.SubjectActivos, rbac.ActionPrint)).Get("/export.csv", h.exportCSV)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.SubjectActivos, rbac.ActionCreate))
		r.Get("/new", h.showCreateForm)
		r.Post("/", h.create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.SubjectActivos, rbac.ActionUpdate))
		r.Get("/{id}/edit", h.showEditForm)
		r.Post("/{id}", h.update)
	})
	r.With(h.rbac.Require(rbac.SubjectActivos, rbac.ActionDelete)).Post("/{id}/delete", h.delete)
}

type filters struct {
	Search    string
	Estado    string
	Categoria string
}

type listData struct {
	Items   []backend.Activo
	Pager   shared.Pagination
	Filters filters
	Estados []string
}

type formData struct {
	ID      int64
	Form    activoForm
	Errors  map[string]string
	Estados []string
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	params := backend.ParseListParams(query, backend.FilterEstado, backend.FilterCategoria)
	page, err := h.service.List(r.Context(), params)
	if err != nil {
		h.failer.Fail(w, r, err)
		return
	}
	h.render(w, r, "pages/activos_list.html", "Activos", listData{
		Items: page.Data,
		Pager: pager(page.Meta, query),
		Filters: filters{
			Search:    params.Search,
			Estado:    params.Filters[backend.FilterEstado],
			Categoria: params.Filters[backend.FilterCategoria],
		},
		Estados: backend.Estados,
	}, http.StatusOK)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	activo, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.failer.Fail(w, r, err)
		return
	}
	h.render(w, r, "pages/activos_detail.html", activo.Nombre, activo, http.StatusOK)
}

func (h *Handler) showCreateForm(w http.ResponseWriter, r *http.Request) {
	form := activoForm{Estado: backend.EstadoDisponible}
	h.render(w, r, "pages/activos_form.html", "Nuevo activo", formData{Form: form, Estados: backend.Estados}, http.StatusOK)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	form, errs, ok := h.readForm(w, r)
	if !ok {
		return
	}
	if len(errs) > 0 {
		h.render(w, r, "pages/activos_form.html", "Nuevo activo", formData{Form: form, Errors: errs, Estados: backend.Estados}, http.StatusBadRequest)
		return
	}
	activo, err := h.service.Create(r.Context(), form.input())
	if err != nil {
		if msg, rejected := backend.Rejected(err); rejected {
			h.render(w, r, "pages/activos_form.html", "Nuevo activo", formData{Form: form, Errors: map[string]string{"general": msg}, Estados: backend.Estados}, http.StatusBadRequest)
			return
		}
		h.failer.Fail(w, r, err)
		return
	}
	h.redirectWithFlash(w, r, fmt.Sprintf("/activos/%d", activo.ID), "success", "Activo registrado")
}

func (h *Handler) showEditForm(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	activo, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.failer.Fail(w, r, err)
		return
	}
	h.render(w, r, "pages/activos_form.html", "Editar activo", formData{ID: id, Form: formFrom(activo), Estados: backend.Estados}, http.StatusOK)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	form, errs, ok := h.readForm(w, r)
	if !ok {
		return
	}
	if len(errs) > 0 {
		h.render(w, r, "pages/activos_form.html", "Editar activo", formData{ID: id, Form: form, Errors: errs, Estados: backend.Estados}, http.StatusBadRequest)
		return
	}
	if _, err := h.service.Update(r.Context(), id, form.input()); err != nil {
		if msg, rejected := backend.Rejected(err); rejected {
			h.render(w, r, "pages/activos_form.html", "Editar activo", formData{ID: id, Form: form, Errors: map[string]string{"general": msg}, Estados: backend.Estados}, http.StatusBadRequest)
			return
		}
		h.failer.Fail(w, r, err)
		return
	}
	h.redirectWithFlash(w, r, fmt.Sprintf("/activos/%d", id), "success", "Activo actualizado")
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		if msg, rejected := backend.Rejected(err); rejected {
			h.redirectWithFlash(w, r, fmt.Sprintf("/activos/%d", id), "error", msg)
			return
		}
		h.failer.Fail(w, r, err)
		return
	}
	h.redirectWithFlash(w, r, "/activos", "success", "Activo eliminado")
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	params := backend.ParseListParams(r.URL.Query(), backend.FilterEstado, backend.FilterCategoria)
	items, err := h.service.All(r.Context(), params)
	if err != nil {
		h.failer.Fail(w, r, err)
		return
	}

	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.csvPool.Put(buf)
	}()

	if err := export.WriteActivosCSV(buf, items); err != nil {
		h.logger.Error("write activos csv", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="activos.csv"`)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Warn("stream csv", slog.Any("error", err))
	}
}

func (h *Handler) readForm(w http.ResponseWriter, r *http.Request) (activoForm, map[string]string, bool) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return activoForm{}, nil, false
	}
	form, errs := parseForm(r)
	if err := h.validator.Struct(form); err != nil {
		for field, msg := range shared.FieldErrors(err) {
			if _, seen := errs[field]; !seen {
				errs[field] = msg
			}
		}
	}
	return form, errs, true
}

func (h *Handler) id(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.NotFound(w, r)
		return 0, false
	}
	return id, true
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template, title string, data any, status int) {
	if err := h.templates.RenderStatus(w, status, template, view.Page(r, h.csrf, title, data)); err != nil {
		h.logger.Error("render template", slog.String("template", template), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	shared.AddFlash(r.Context(), kind, message)
	http.Redirect(w, r, location, http.StatusSeeOther)
}

func pager(meta backend.Meta, query url.Values) shared.Pagination {
	return shared.NewPagination(meta.Page, meta.Limit, meta.Total, meta.LastPage, query)
}
