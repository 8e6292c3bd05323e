package analytichttp

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/activos-fijos/activos/internal/analytics"
	"github.com/activos-fijos/activos/internal/analytics/svg"
	"github.com/activos-fijos/activos/internal/rbac"
	"github.com/activos-fijos/activos/internal/shared"
	"github.com/activos-fijos/activos/internal/view"
)

const requestTimeout = 5 * time.Second

// DashboardService defines the data contract used by the handler.
type DashboardService interface {
	Summary(ctx context.Context, table rbac.Table) (analytics.Summary, error)
	Invalidate(ctx context.Context)
}

// Failer renders the response for a backend failure.
type Failer interface {
	Fail(w http.ResponseWriter, r *http.Request, err error)
}

// Handler serves the dashboard home.
type Handler struct {
	logger    *slog.Logger
	service   DashboardService
	templates *view.Engine
	csrf      *shared.CSRFManager
	failer    Failer
	rbac      rbac.Middleware
}

// NewHandler constructs the dashboard HTTP handler.
func NewHandler(logger *slog.Logger, service DashboardService, templates *view.Engine, csrf *shared.CSRFManager, failer Failer) *Handler {
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
	}
}

type dashboardView struct {
	analytics.Summary
	Chart template.HTML
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	summary, err := h.service.Summary(ctx, rbac.TableFromContext(r.Context()))
	if err != nil {
		h.failer.Fail(w, r, err)
		return
	}
	vm := dashboardView{Summary: summary}
	if len(summary.Dashboard.Movimientos) > 0 {
		vm.Chart, err = movementsChart(summary)
		if err != nil {
			h.logger.Warn("render movements chart", slog.Any("error", err))
		}
	}
	if err := h.templates.Render(w, "pages/dashboard.html", view.Page(r, h.csrf, "Panel", vm)); err != nil {
		h.logger.Error("render dashboard", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	h.service.Invalidate(r.Context())
	shared.AddFlash(r.Context(), "success", "Indicadores actualizados.")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func movementsChart(summary analytics.Summary) (template.HTML, error) {
	movs := summary.Dashboard.Movimientos
	labels := make([]string, len(movs))
	entregas := make([]float64, len(movs))
	devoluciones := make([]float64, len(movs))
	for i, m := range movs {
		labels[i] = m.Mes
		entregas[i] = float64(m.Entregas)
		devoluciones[i] = float64(m.Devoluciones)
	}
	return svg.Bars(svg.DefaultWidth, svg.DefaultHeight, labels, []svg.Series{
		{Label: "Entregas", Values: entregas},
		{Label: "Devoluciones", Values: devoluciones},
	}, svg.BarOpts{
		Title:       "Movimientos mensuales",
		Description: "Entregas y devoluciones de activos por mes",
	})
}
