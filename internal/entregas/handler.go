package entregas

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

// Handler manages hand-out and return endpoints.
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

// MountRoutes registers /entregas routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.Require(rbac.SubjectEntregas, rbac.ActionRead)).Get("/", h.listEntregas)
	r.With(h.rbac.Require(rbac.SubjectEntregas, rbac.ActionCreate)).Post("/", h.createEntrega)
	r.With(h.rbac.Require(rbac.SubjectDevoluciones, rbac.ActionRead)).Get("/devoluciones", h.listDevoluciones)
	r.With(h.rbac.Require(rbac.SubjectDevoluciones, rbac.ActionCreate)).Post("/devoluciones", h.createDevolucion)
}

type entregaForm struct {
	ActivoID      int64  `validate:"required,gt=0"`
	Responsable   string `validate:"required,max=120"`
	Compania      string `validate:"required,max=60"`
	Fecha         string `validate:"required,datetime=2006-01-02"`
	Observaciones string `validate:"max=500"`
}

type devolucionForm struct {
	EntregaID     int64  `validate:"required,gt=0"`
	EstadoActivo  string `validate:"required,oneof=disponible mantenimiento baja"`
	Fecha         string `validate:"required,datetime=2006-01-02"`
	Observaciones string `validate:"max=500"`
}

type entregasData struct {
	Items       []backend.Entrega
	Pager       shared.Pagination
	Disponibles []backend.Activo
	Form        entregaForm
	Errors      map[string]string
}

type devolucionesData struct {
	Items      []backend.Devolucion
	Pager      shared.Pagination
	Pendientes []backend.Entrega
	Estados    []string
	Form       devolucionForm
	Errors     map[string]string
}

func (h *Handler) listEntregas(w http.ResponseWriter, r *http.Request) {
	h.renderEntregas(w, r, entregasData{}, http.StatusOK)
}

func (h *Handler) createEntrega(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := entregaForm{
		ActivoID:      parseID(r.PostFormValue("activo_id")),
		Responsable:   strings.TrimSpace(r.PostFormValue("responsable")),
		Compania:      strings.TrimSpace(r.PostFormValue("compania")),
		Fecha:         strings.TrimSpace(r.PostFormValue("fecha")),
		Observaciones: strings.TrimSpace(r.PostFormValue("observaciones")),
	}
	if err := h.validator.Struct(form); err != nil {
		h.renderEntregas(w, r, entregasData{Form: form, Errors: shared.FieldErrors(err)}, http.StatusBadRequest)
		return
	}
	_, err := h.service.Entregar(r.Context(), backend.EntregaInput{
		ActivoID:      form.ActivoID,
		Responsable:   form.Responsable,
		Compania:      form.Compania,
		Fecha:         form.Fecha,
		Observaciones: form.Observaciones,
	})
	if err != nil {
		if msg, ok := backend.Rejected(err); ok {
			h.renderEntregas(w, r, entregasData{Form: form, Errors: map[string]string{"general": msg}}, http.StatusBadRequest)
			return
		}
		h.failer.Fail(w, r, err)
		return
	}
	h.redirectWithFlash(w, r, "/entregas", "success", "Entrega registrada")
}

func (h *Handler) listDevoluciones(w http.ResponseWriter, r *http.Request) {
	h.renderDevoluciones(w, r, devolucionesData{}, http.StatusOK)
}

func (h *Handler) createDevolucion(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := devolucionForm{
		EntregaID:     parseID(r.PostFormValue("entrega_id")),
		EstadoActivo:  strings.TrimSpace(r.PostFormValue("estado_activo")),
		Fecha:         strings.TrimSpace(r.PostFormValue("fecha")),
		Observaciones: strings.TrimSpace(r.PostFormValue("observaciones")),
	}
	if err := h.validator.Struct(form); err != nil {
		h.renderDevoluciones(w, r, devolucionesData{Form: form, Errors: shared.FieldErrors(err)}, http.StatusBadRequest)
		return
	}
	_, err := h.service.Devolver(r.Context(), backend.DevolucionInput{
		EntregaID:     form.EntregaID,
		EstadoActivo:  form.EstadoActivo,
		Fecha:         form.Fecha,
		Observaciones: form.Observaciones,
	})
	if err != nil {
		if msg, ok := backend.Rejected(err); ok {
			h.renderDevoluciones(w, r, devolucionesData{Form: form, Errors: map[string]string{"general": msg}}, http.StatusBadRequest)
			return
		}
		h.failer.Fail(w, r, err)
		return
	}
	h.redirectWithFlash(w, r, "/entregas/devoluciones", "success", "Devolución registrada")
}

// renderEntregas loads the listing, plus the assets on offer when the
// caller may hand out, around data's form state.
func (h *Handler) renderEntregas(w http.ResponseWriter, r *http.Request, data entregasData, status int) {
	query := r.URL.Query()
	page, err := h.service.Entregas(r.Context(), backend.ParseListParams(query))
	if err != nil {
		h.failer.Fail(w, r, err)
		return
	}
	data.Items = page.Data
	data.Pager = shared.NewPagination(page.Meta.Page, page.Meta.Limit, page.Meta.Total, page.Meta.LastPage, query)
	if rbac.TableFromContext(r.Context()).Can(rbac.SubjectEntregas, rbac.ActionCreate) {
		if data.Disponibles, err = h.service.Disponibles(r.Context()); err != nil {
			h.failer.Fail(w, r, err)
			return
		}
	}
	h.render(w, r, "pages/entregas.html", "Entregas", data, status)
}

func (h *Handler) renderDevoluciones(w http.ResponseWriter, r *http.Request, data devolucionesData, status int) {
	query := r.URL.Query()
	page, err := h.service.Devoluciones(r.Context(), backend.ParseListParams(query))
	if err != nil {
		h.failer.Fail(w, r, err)
		return
	}
	data.Items = page.Data
	data.Pager = shared.NewPagination(page.Meta.Page, page.Meta.Limit, page.Meta.Total, page.Meta.LastPage, query)
	data.Estados = []string{backend.EstadoDisponible, backend.EstadoMantenimiento, backend.EstadoBaja}
	if rbac.TableFromContext(r.Context()).Can(rbac.SubjectDevoluciones, rbac.ActionCreate) {
		if data.Pendientes, err = h.service.Pendientes(r.Context()); err != nil {
			h.failer.Fail(w, r, err)
			return
		}
	}
	h.render(w, r, "pages/devoluciones.html", "Devoluciones", data, status)
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

func parseID(raw string) int64 {
	id, _ := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	return id
}
