package entregas

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/activos-fijos/activos/internal/backend"
	"github.com/activos-fijos/activos/internal/rbac"
	"github.com/activos-fijos/activos/internal/testing/webtest"
)

type stubAPI struct {
	entregas     []backend.Entrega
	devoluciones []backend.Devolucion
	activos      []backend.Activo
	activoParams []backend.ListParams
	created      []backend.EntregaInput
	returned     []backend.DevolucionInput
	createErr    error
}

func (s *stubAPI) ListEntregas(ctx context.Context, params backend.ListParams) (backend.Page[backend.Entrega], error) {
	return backend.Page[backend.Entrega]{Data: s.entregas, Meta: backend.Meta{Page: 1, Limit: params.Limit, Total: len(s.entregas), LastPage: 1}}, nil
}

func (s *stubAPI) CreateEntrega(ctx context.Context, input backend.EntregaInput) (backend.Entrega, error) {
	if s.createErr != nil {
		return backend.Entrega{}, s.createErr
	}
	s.created = append(s.created, input)
	return backend.Entrega{ID: 1}, nil
}

func (s *stubAPI) ListDevoluciones(ctx context.Context, params backend.ListParams) (backend.Page[backend.Devolucion], error) {
	return backend.Page[backend.Devolucion]{Data: s.devoluciones, Meta: backend.Meta{Page: 1, LastPage: 1}}, nil
}

func (s *stubAPI) CreateDevolucion(ctx context.Context, input backend.DevolucionInput) (backend.Devolucion, error) {
	s.returned = append(s.returned, input)
	return backend.Devolucion{ID: 1}, nil
}

func (s *stubAPI) ListActivos(ctx context.Context, params backend.ListParams) (backend.Page[backend.Activo], error) {
	s.activoParams = append(s.activoParams, params)
	return backend.Page[backend.Activo]{Data: s.activos}, nil
}

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) Invalidate(ctx context.Context) { c.calls++ }

func newRouter(t *testing.T, api *stubAPI, cache *countingInvalidator) http.Handler {
	t.Helper()
	engine := webtest.Engine(t)
	var inv Invalidator
	if cache != nil {
		inv = cache
	}
	h := NewHandler(nil, NewService(api, inv), engine, webtest.CSRF(), webtest.Failer(engine))
	r := chi.NewRouter()
	r.Route("/entregas", h.MountRoutes)
	return r
}

func TestListEntregasOffersAvailableAssetsToCreators(t *testing.T) {
	api := &stubAPI{
		entregas: []backend.Entrega{{ID: 1, ActivoID: 3, Responsable: "Tte. Rojas", Compania: "Primera", Fecha: time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)}},
		activos:  []backend.Activo{{ID: 8, Codigo: "RAD-8", Nombre: "Radio portátil"}},
	}
	router := newRouter(t, api, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, webtest.Request(t, nil, http.MethodGet, "/entregas", nil,
		webtest.Grant(rbac.SubjectEntregas, rbac.ActionRead, rbac.ActionCreate)))

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Tte. Rojas")
	assert.Contains(t, body, "03/02/2025")
	assert.Contains(t, body, "RAD-8")
	require.Len(t, api.activoParams, 1)
	assert.Equal(t, backend.EstadoDisponible, api.activoParams[0].Filters[backend.FilterEstado])
}

func TestListEntregasReadOnly(t *testing.T) {
	api := &stubAPI{}
	router := newRouter(t, api, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, webtest.Request(t, nil, http.MethodGet, "/entregas", nil, webtest.Grant(rbac.SubjectEntregas, rbac.ActionRead)))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "Registrar entrega")
	assert.Empty(t, api.activoParams)
}

func TestCreateEntrega(t *testing.T) {
	api := &stubAPI{}
	cache := &countingInvalidator{}
	router := newRouter(t, api, cache)
	perms := webtest.Grant(rbac.SubjectEntregas, rbac.ActionRead, rbac.ActionCreate)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, webtest.Request(t, nil, http.MethodPost, "/entregas", url.Values{
		"activo_id": {"8"}, "responsable": {"Tte. Rojas"}, "compania": {"Primera"}, "fecha": {"2025-02-03"},
	}, perms))

	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Len(t, api.created, 1)
	assert.Equal(t, int64(8), api.created[0].ActivoID)
	assert.Equal(t, 1, cache.calls)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, webtest.Request(t, nil, http.MethodPost, "/entregas", url.Values{"responsable": {"x"}}, perms))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Campo obligatorio")
	assert.Len(t, api.created, 1)
}

func TestCreateEntregaRejectedAssetInUse(t *testing.T) {
	api := &stubAPI{createErr: &backend.APIError{Status: http.StatusConflict, Message: "El activo ya está asignado"}}
	router := newRouter(t, api, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, webtest.Request(t, nil, http.MethodPost, "/entregas", url.Values{
		"activo_id": {"8"}, "responsable": {"Tte. Rojas"}, "compania": {"Primera"}, "fecha": {"2025-02-03"},
	}, webtest.Grant(rbac.SubjectEntregas, rbac.ActionCreate)))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "El activo ya está asignado")
}

func TestDevolucionesListOnlyPendingHandOuts(t *testing.T) {
	api := &stubAPI{entregas: []backend.Entrega{
		{ID: 1, ActivoID: 3, Responsable: "Pendiente"},
		{ID: 2, ActivoID: 4, Responsable: "Cerrada", Devuelta: true},
	}}
	router := newRouter(t, api, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, webtest.Request(t, nil, http.MethodGet, "/entregas/devoluciones", nil,
		webtest.Grant(rbac.SubjectDevoluciones, rbac.ActionRead, rbac.ActionCreate)))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Pendiente")
	assert.NotContains(t, rr.Body.String(), "Cerrada")
}

func TestCreateDevolucion(t *testing.T) {
	api := &stubAPI{}
	router := newRouter(t, api, &countingInvalidator{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, webtest.Request(t, nil, http.MethodPost, "/entregas/devoluciones", url.Values{
		"entrega_id": {"1"}, "estado_activo": {"mantenimiento"}, "fecha": {"2025-03-01"},
	}, webtest.Grant(rbac.SubjectDevoluciones, rbac.ActionCreate)))

	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/entregas/devoluciones", rr.Header().Get("Location"))
	require.Len(t, api.returned, 1)
	assert.Equal(t, backend.EstadoMantenimiento, api.returned[0].EstadoActivo)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, webtest.Request(t, nil, http.MethodPost, "/entregas/devoluciones", url.Values{
		"entrega_id": {"1"}, "estado_activo": {"asignado"}, "fecha": {"2025-03-01"},
	}, webtest.Grant(rbac.SubjectDevoluciones, rbac.ActionCreate)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Valor no permitido")
}

func TestDevolucionesRequirePermission(t *testing.T) {
	router := newRouter(t, &stubAPI{}, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, webtest.Request(t, nil, http.MethodGet, "/entregas/devoluciones", nil, webtest.Grant(rbac.SubjectEntregas, rbac.ActionRead)))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}
