package users

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/activos-fijos/activos/internal/backend"
	"github.com/activos-fijos/activos/internal/credentials"
	"github.com/activos-fijos/activos/internal/rbac"
	"github.com/activos-fijos/activos/internal/testing/webtest"
)

type stubAPI struct {
	last backend.ListParams
	err  error
}

func (s *stubAPI) ListUsers(ctx context.Context, params backend.ListParams) (backend.Page[credentials.User], error) {
	s.last = params
	if s.err != nil {
		return backend.Page[credentials.User]{}, s.err
	}
	return backend.Page[credentials.User]{
		Data: []credentials.User{{ID: 4, Email: "voluntario@bomberos.local", Name: "Voluntario", Roles: []rbac.Role{{Name: "lector"}, {Name: "bodega"}}}},
		Meta: backend.Meta{Total: 21, Page: 2, Limit: 10, LastPage: 3},
	}, nil
}

func newRouter(t *testing.T, api API) http.Handler {
	t.Helper()
	engine := webtest.Engine(t)
	h := NewHandler(nil, NewService(api), engine, webtest.CSRF(), webtest.Failer(engine))
	r := chi.NewRouter()
	r.Route("/usuarios", h.MountRoutes)
	return r
}

func TestListUsers(t *testing.T) {
	api := &stubAPI{}
	router := newRouter(t, api)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, webtest.Request(t, nil, http.MethodGet, "/usuarios?page=2&search=vol", nil, webtest.Grant(rbac.SubjectUsuarios, rbac.ActionRead)))

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "voluntario@bomberos.local")
	assert.Contains(t, body, "lector, bodega")
	assert.Contains(t, body, "page=1")
	assert.Contains(t, body, "page=3")
	assert.Equal(t, 2, api.last.Page)
	assert.Equal(t, "vol", api.last.Search)
}

func TestListUsersForbidden(t *testing.T) {
	router := newRouter(t, &stubAPI{})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, webtest.Request(t, nil, http.MethodGet, "/usuarios", nil))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestListUsersBackendDenied(t *testing.T) {
	router := newRouter(t, &stubAPI{err: &backend.APIError{Status: http.StatusForbidden}})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, webtest.Request(t, nil, http.MethodGet, "/usuarios", nil, webtest.Grant(rbac.SubjectUsuarios, rbac.ActionRead)))
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "No tiene permisos")
}
