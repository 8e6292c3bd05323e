package contables

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/activos-fijos/activos/internal/backend"
	"github.com/activos-fijos/activos/internal/rbac"
	"github.com/activos-fijos/activos/internal/testing/webtest"
)

type stubAPI struct {
	dep backend.Depreciacion
	err error
}

func (s stubAPI) GetActivo(ctx context.Context, id int64) (backend.Activo, error) {
	return backend.Activo{ID: id, Codigo: "CAM-1", Nombre: "Camioneta"}, nil
}

func (s stubAPI) GetDepreciacion(ctx context.Context, activoID int64) (backend.Depreciacion, error) {
	return s.dep, s.err
}

func newRouter(t *testing.T, api API) http.Handler {
	t.Helper()
	engine := webtest.Engine(t)
	h := NewHandler(nil, api, engine, webtest.CSRF(), webtest.Failer(engine))
	r := chi.NewRouter()
	r.Route("/contables", h.MountRoutes)
	return r
}

func schedule() backend.Depreciacion {
	return backend.Depreciacion{
		ActivoID: 4, Metodo: "lineal", ValorInicial: 3000, ValorResidual: 0,
		Periodos: []backend.Periodo{
			{Anio: 2024, Depreciacion: 1000, Acumulada: 1000, ValorLibro: 2000},
			{Anio: 2025, Depreciacion: 1000, Acumulada: 2000, ValorLibro: 1000},
		},
	}
}

func TestScheduleRendersTableAndChart(t *testing.T) {
	router := newRouter(t, stubAPI{dep: schedule()})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, webtest.Request(t, nil, http.MethodGet, "/contables/depreciacion/4", nil, webtest.Grant(rbac.SubjectContables, rbac.ActionCalcular)))

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "CAM-1")
	assert.Contains(t, body, "<svg")
	assert.Contains(t, body, "CLP 2")
	assert.Equal(t, 2, strings.Count(body, "<circle"))
}

func TestScheduleRequiresCalcular(t *testing.T) {
	router := newRouter(t, stubAPI{dep: schedule()})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, webtest.Request(t, nil, http.MethodGet, "/contables/depreciacion/4", nil, webtest.Grant(rbac.SubjectActivos, rbac.ActionRead)))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestScheduleBackendForbidden(t *testing.T) {
	router := newRouter(t, stubAPI{err: &backend.APIError{Status: http.StatusForbidden}})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, webtest.Request(t, nil, http.MethodGet, "/contables/depreciacion/4", nil, webtest.Grant(rbac.SubjectContables, rbac.ActionCalcular)))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestScheduleExport(t *testing.T) {
	router := newRouter(t, stubAPI{dep: schedule()})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, webtest.Request(t, nil, http.MethodGet, "/contables/depreciacion/4/export.csv", nil, webtest.Grant(rbac.SubjectContables, rbac.ActionCalcular)))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "depreciacion-4.csv")
	assert.Contains(t, rr.Body.String(), "2025,1000.00,2000.00,1000.00")
}
