// Package contables serves the depreciation schedule of an asset.
package contables

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/activos-fijos/activos/internal/analytics/export"
	"github.com/activos-fijos/activos/internal/analytics/svg"
	"github.com/activos-fijos/activos/internal/backend"
	"github.com/activos-fijos/activos/internal/rbac"
	"github.com/activos-fijos/activos/internal/shared"
	"github.com/activos-fijos/activos/internal/view"
)

// API is the backend surface the schedule screen uses.
type API interface {
	GetActivo(ctx context.Context, id int64) (backend.Activo, error)
	GetDepreciacion(ctx context.Context, activoID int64) (backend.Depreciacion, error)
}

// Failer renders the response for a backend failure.
type Failer interface {
	Fail(w http.ResponseWriter, r *http.Request, err error)
}

// Handler serves /contables.
type Handler struct {
	logger    *slog.Logger
	api       API
	templates *view.Engine
	csrf      *shared.CSRFManager
	failer    Failer
	rbac      rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, api API, templates *view.Engine, csrf *shared.CSRFManager, failer Failer) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, api: api, templates: templates, csrf: csrf, failer: failer, rbac: rbac.Middleware{Logger: logger}}
}

// MountRoutes registers /contables routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.SubjectContables, rbac.ActionCalcular))
		r.Get("/depreciacion/{id}", h.schedule)
		r.Get("/depreciacion/{id}/export.csv", h.exportCSV)
	})
}

type scheduleData struct {
	Activo       backend.Activo
	Depreciacion backend.Depreciacion
	Chart        template.HTML
}

func (h *Handler) schedule(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var data scheduleData
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		activo, err := h.api.GetActivo(ctx, id)
		if err != nil {
			return err
		}
		data.Activo = activo
		return nil
	})
	g.Go(func() error {
		dep, err := h.api.GetDepreciacion(ctx, id)
		if err != nil {
			return err
		}
		data.Depreciacion = dep
		return nil
	})
	if err := g.Wait(); err != nil {
		h.failer.Fail(w, r, err)
		return
	}

	if len(data.Depreciacion.Periodos) > 0 {
		chart, err := bookValueChart(data.Depreciacion)
		if err != nil {
			h.logger.Warn("render book value chart", slog.Any("error", err))
		}
		data.Chart = chart
	}
	title := "Depreciación " + data.Activo.Codigo
	if err := h.templates.Render(w, "pages/depreciacion.html", view.Page(r, h.csrf, title, data)); err != nil {
		h.logger.Error("render depreciacion", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	dep, err := h.api.GetDepreciacion(r.Context(), id)
	if err != nil {
		h.failer.Fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteDepreciacionCSV(&buf, dep); err != nil {
		h.logger.Error("write depreciacion csv", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"depreciacion-%d.csv\"", id))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Warn("stream csv", slog.Any("error", err))
	}
}

func bookValueChart(dep backend.Depreciacion) (template.HTML, error) {
	labels := make([]string, len(dep.Periodos))
	values := make([]float64, len(dep.Periodos))
	for i, p := range dep.Periodos {
		labels[i] = strconv.Itoa(p.Anio)
		values[i] = p.ValorLibro
	}
	return svg.Line(svg.DefaultWidth, svg.DefaultHeight, labels, values, svg.LineOpts{
		Title:       "Valor libro",
		Description: "Valor libro al cierre de cada año",
		ShowDots:    true,
	})
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.NotFound(w, r)
		return 0, false
	}
	return id, true
}
