package app_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/activos-fijos/activos/internal/activos"
	"github.com/activos-fijos/activos/internal/app"
	"github.com/activos-fijos/activos/internal/auth"
	"github.com/activos-fijos/activos/internal/backend"
	"github.com/activos-fijos/activos/internal/credentials"
	"github.com/activos-fijos/activos/internal/gateway"
	"github.com/activos-fijos/activos/internal/observability"
	"github.com/activos-fijos/activos/internal/rbac"
	"github.com/activos-fijos/activos/internal/shared"
	"github.com/activos-fijos/activos/internal/testing/webtest"
)

type stubAuthAPI struct{}

func (stubAuthAPI) Login(_ context.Context, email, password string, _ bool) (backend.Session, error) {
	if password != "secreto1" {
		return backend.Session{}, backend.ErrUnauthorized
	}
	return backend.Session{
		User: credentials.User{ID: 7, Email: email, Name: "Teniente", Roles: []rbac.Role{{
			Name:        "bodega",
			Permissions: []rbac.Permission{{Subject: "activos", Actions: []string{"read"}}},
		}}},
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
	}, nil
}

func (stubAuthAPI) Refresh(context.Context, string) (backend.Session, error) {
	return backend.Session{}, backend.ErrUnauthorized
}

func (stubAuthAPI) Logout(context.Context, int64) error { return nil }

// stubActivosAPI answers the asset listing; other calls are not expected.
type stubActivosAPI struct {
	activos.API
	lists int
}

func (s *stubActivosAPI) ListActivos(context.Context, backend.ListParams) (backend.Page[backend.Activo], error) {
	s.lists++
	return backend.Page[backend.Activo]{Meta: backend.Meta{Page: 1, Limit: backend.DefaultLimit}}, nil
}

var csrfField = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)

type fixture struct {
	router http.Handler
	store  *credentials.MemoryStore
	assets *stubActivosAPI
	cookie *http.Cookie
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	engine := webtest.Engine(t)
	csrf := webtest.CSRF()
	sessions := shared.NewSessionManager(client, shared.SessionConfig{CookieName: "activos_session", TTL: time.Hour, RememberTTL: 24 * time.Hour})
	store := credentials.NewMemoryStore()
	service := auth.NewService(stubAuthAPI{}, nil, store, nil)
	transport := gateway.New(gateway.Config{Store: store, Refresher: gateway.RefresherFunc(func(ctx context.Context, token string) (credentials.Credentials, error) {
		return service.Refresh(ctx, token)
	})})
	guard := &auth.Middleware{Tokens: transport, Store: store, Templates: engine, CSRF: csrf}
	assets := &stubActivosAPI{}

	router := app.NewRouter(app.RouterParams{
		Config:         &app.Config{AppEnv: "test", AppRequestTimeout: 5 * time.Second},
		Templates:      engine,
		SessionManager: sessions,
		CSRFManager:    csrf,
		AuthHandler:    auth.NewHandler(nil, service, store, engine, sessions, csrf),
		AuthMiddleware: guard,
		ActivosHandler: activos.NewHandler(nil, activos.NewService(assets, nil), engine, csrf, guard),
		Metrics:        observability.NewMetrics(),
	})
	return &fixture{router: router, store: store, assets: assets}
}

func (f *fixture) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	if f.cookie != nil {
		req.AddCookie(f.cookie)
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	for _, c := range rr.Result().Cookies() {
		if c.Name == "activos_session" {
			f.cookie = c
		}
	}
	return rr
}

func (f *fixture) login(t *testing.T, password string) *httptest.ResponseRecorder {
	t.Helper()
	page := f.do(t, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	require.Equal(t, http.StatusOK, page.Code)
	match := csrfField.FindStringSubmatch(page.Body.String())
	require.Len(t, match, 2)

	form := url.Values{"csrf_token": {match[1]}, "email": {"teniente@bomberos.local"}, "password": {password}, "next": {"/activos"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return f.do(t, req)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
}

func TestStaticAssetsAreCached(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, httptest.NewRequest(http.MethodGet, "/static/css/app.css", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "public, max-age=3600", rr.Header().Get("Cache-Control"))
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/css")
}

func TestProtectedRouteRedirectsToLogin(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, httptest.NewRequest(http.MethodGet, "/activos", nil))
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/auth/login?next=%2Factivos", rr.Header().Get("Location"))
	assert.Zero(t, f.assets.lists)
}

func TestLoginThenProtectedRoute(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusSeeOther, f.login(t, "secreto1").Code)

	rr := f.do(t, httptest.NewRequest(http.MethodGet, "/activos", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "No hay activos")
	assert.Equal(t, 1, f.assets.lists)
}

func TestAPIMeRequiresLogin(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/problem+json")
}

func TestPostWithoutCSRFTokenIsForbidden(t *testing.T) {
	f := newFixture(t)
	f.do(t, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	require.NotNil(t, f.cookie)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	rr := f.do(t, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestUnknownRouteRendersNotFound(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, httptest.NewRequest(http.MethodGet, "/no-existe", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "no existe")
}

func TestLoginThenMe(t *testing.T) {
	f := newFixture(t)
	rr := f.login(t, "secreto1")
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/activos", rr.Header().Get("Location"))

	me := f.do(t, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	require.Equal(t, http.StatusOK, me.Code)
	var body struct {
		User        credentials.User  `json:"user"`
		Permissions []rbac.Permission `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal(me.Body.Bytes(), &body))
	assert.Equal(t, int64(7), body.User.ID)
	require.Len(t, body.Permissions, 1)
	assert.Equal(t, "activos", body.Permissions[0].Subject)

	creds, err := f.store.Get(context.Background(), f.cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, "access-1", creds.AccessToken)
}

func TestLoginWithWrongPasswordRerenders(t *testing.T) {
	f := newFixture(t)
	rr := f.login(t, "incorrecta")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Correo o contraseña incorrectos")
}
