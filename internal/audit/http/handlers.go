package audithttp

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/activos-fijos/activos/internal/audit"
	"github.com/activos-fijos/activos/internal/backend"
	"github.com/activos-fijos/activos/internal/rbac"
	"github.com/activos-fijos/activos/internal/shared"
	"github.com/activos-fijos/activos/internal/view"
)

const maxRangeDays = 366

// TimelineService defines the business contract for audit log data.
type TimelineService interface {
	Timeline(ctx context.Context, filters audit.Filters) (backend.Page[backend.Registro], error)
	Export(ctx context.Context, filters audit.Filters) ([]backend.Registro, error)
}

// Failer renders the response for a backend failure.
type Failer interface {
	Fail(w http.ResponseWriter, r *http.Request, err error)
}

// Handler serves the audit log screen.
type Handler struct {
	logger    *slog.Logger
	service   TimelineService
	templates *view.Engine
	csrf      *shared.CSRFManager
	failer    Failer
	rbac      rbac.Middleware
	csvPool   sync.Pool
}

// NewHandler builds the audit log handler.
func NewHandler(logger *slog.Logger, service TimelineService, templates *view.Engine, csrf *shared.CSRFManager, failer Failer) *Handler {
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
	}
	h.csvPool.New = func() any { return new(bytes.Buffer) }
	return h
}

type filterView struct {
	Usuario string
	Accion  string
	Desde   string
	Hasta   string
}

type timelineView struct {
	Rows      []backend.Registro
	Pager     shared.Pagination
	Filters   filterView
	ExportURL string
	Error     string
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filters, err := parseFilters(query)
	if err != nil {
		h.render(w, r, timelineView{Filters: rawFilters(query), Error: err.Error()}, http.StatusBadRequest)
		return
	}
	page, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.failer.Fail(w, r, err)
		return
	}
	h.render(w, r, timelineView{
		Rows:      page.Data,
		Pager:     shared.NewPagination(page.Meta.Page, page.Meta.Limit, page.Meta.Total, page.Meta.LastPage, query),
		Filters:   rawFilters(query),
		ExportURL: "/bitacora/export.csv?" + filterQuery(query),
	}, http.StatusOK)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rows, err := h.service.Export(r.Context(), filters)
	if errors.Is(err, audit.ErrExportTooLarge) {
		shared.AddFlash(r.Context(), "warning", "Demasiados registros para exportar, acote el rango de fechas.")
		http.Redirect(w, r, "/bitacora?"+filterQuery(r.URL.Query()), http.StatusSeeOther)
		return
	}
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
	if err := audit.WriteCSV(buf, rows); err != nil {
		h.logger.Error("encode csv", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="bitacora.csv"`)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Warn("write csv", slog.Any("error", err))
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, data timelineView, status int) {
	if err := h.templates.RenderStatus(w, status, "pages/bitacora.html", view.Page(r, h.csrf, "Bitácora", data)); err != nil {
		h.logger.Error("render bitacora", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

type filterError string

func (e filterError) Error() string { return string(e) }

func parseFilters(query url.Values) (audit.Filters, error) {
	desde, err := parseDate(query.Get(backend.FilterDesde))
	if err != nil {
		return audit.Filters{}, filterError("Fecha desde inválida")
	}
	hasta, err := parseDate(query.Get(backend.FilterHasta))
	if err != nil {
		return audit.Filters{}, filterError("Fecha hasta inválida")
	}
	if !desde.IsZero() && !hasta.IsZero() {
		if desde.After(hasta) {
			return audit.Filters{}, filterError("La fecha desde debe ser anterior a la fecha hasta")
		}
		if hasta.Sub(desde) > maxRangeDays*24*time.Hour {
			return audit.Filters{}, filterError("El rango no puede superar un año")
		}
	}

	page := 1
	if v := strings.TrimSpace(query.Get("page")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return audit.Filters{}, filterError("Página inválida")
		}
		page = parsed
	}
	limit, _ := strconv.Atoi(query.Get("limit"))

	return audit.Filters{
		Usuario: strings.TrimSpace(query.Get(backend.FilterUsuario)),
		Accion:  strings.TrimSpace(query.Get(backend.FilterAccion)),
		Desde:   desde,
		Hasta:   hasta,
		Page:    page,
		Limit:   limit,
	}, nil
}

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(audit.DateLayout, value)
}

func rawFilters(query url.Values) filterView {
	return filterView{
		Usuario: query.Get(backend.FilterUsuario),
		Accion:  query.Get(backend.FilterAccion),
		Desde:   query.Get(backend.FilterDesde),
		Hasta:   query.Get(backend.FilterHasta),
	}
}

// filterQuery keeps the active filters and drops paging.
func filterQuery(query url.Values) string {
	out := url.Values{}
	for _, key := range []string{backend.FilterUsuario, backend.FilterAccion, backend.FilterDesde, backend.FilterHasta} {
		if v := strings.TrimSpace(query.Get(key)); v != "" {
			out.Set(key, v)
		}
	}
	return out.Encode()
}
