package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/activos-fijos/activos/internal/auth"
	"github.com/activos-fijos/activos/internal/backend"
	"github.com/activos-fijos/activos/internal/credentials"
	"github.com/activos-fijos/activos/internal/gateway"
	"github.com/activos-fijos/activos/internal/rbac"
	"github.com/activos-fijos/activos/internal/shared"
	"github.com/activos-fijos/activos/internal/testing/webtest"
)

type stubAPI struct {
	session    backend.Session
	loginErr   error
	refreshed  backend.Session
	refreshErr error
	logins     int
	logouts    []int64
}

func (s *stubAPI) Login(ctx context.Context, email, password string, remember bool) (backend.Session, error) {
	s.logins++
	if s.loginErr != nil {
		return backend.Session{}, s.loginErr
	}
	return s.session, nil
}

func (s *stubAPI) Refresh(ctx context.Context, refreshToken string) (backend.Session, error) {
	if s.refreshErr != nil {
		return backend.Session{}, s.refreshErr
	}
	return s.refreshed, nil
}

func (s *stubAPI) Logout(ctx context.Context, userID int64) error {
	s.logouts = append(s.logouts, userID)
	return nil
}

var jefe = credentials.User{
	ID:    7,
	Email: "jefe@bomberos.local",
	Name:  "Jefe",
	Roles: []rbac.Role{{ID: 1, Name: "admin", Permissions: []rbac.Permission{
		{Subject: "activos", Actions: []string{"read", "create"}},
	}}},
}

type fixture struct {
	api      *stubAPI
	store    *credentials.MemoryStore
	sessions *shared.SessionManager
	guard    *auth.Middleware
	router   http.Handler
}

func newFixture(t *testing.T, api *stubAPI) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := credentials.NewMemoryStore()
	sessions := shared.NewSessionManager(client, shared.SessionConfig{TTL: time.Hour, RememberTTL: 30 * 24 * time.Hour})
	engine := webtest.Engine(t)
	service := auth.NewService(api, nil, store, nil)
	tokens := gateway.New(gateway.Config{Store: store, Refresher: service})
	guard := &auth.Middleware{Tokens: tokens, Store: store, Templates: engine, CSRF: webtest.CSRF()}
	handler := auth.NewHandler(nil, service, store, engine, sessions, webtest.CSRF())

	r := chi.NewRouter()
	r.Route("/auth", handler.MountRoutes)
	r.Group(func(r chi.Router) {
		r.Use(guard.RequireLogin)
		r.Get("/api/me", handler.Me)
		r.Get("/activos", func(w http.ResponseWriter, r *http.Request) {
			user, _ := credentials.UserFromContext(r.Context())
			_, _ = w.Write([]byte("hola " + user.Name))
		})
	})
	return &fixture{api: api, store: store, sessions: sessions, guard: guard, router: r}
}

func (f *fixture) request(t *testing.T, sess *shared.Session, method, target string, form url.Values) *http.Request {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func TestLoginPage(t *testing.T) {
	f := newFixture(t, &stubAPI{})
	sess := webtest.Session(t)

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, f.request(t, sess, http.MethodGet, "/auth/login?next=/activos", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "<form")
	assert.Contains(t, body, `value="/activos"`)
	assert.NotEmpty(t, sess.Get(shared.CSRFSessionKey))
}

func TestLoginPageRedirectsWhenSignedIn(t *testing.T) {
	f := newFixture(t, &stubAPI{})
	sess := webtest.Session(t)
	require.NoError(t, f.store.Set(context.Background(), sess.ID, credentials.Credentials{AccessToken: "a", User: jefe}))

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, f.request(t, sess, http.MethodGet, "/auth/login", nil))

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/", rr.Header().Get("Location"))
}

func TestLoginValidation(t *testing.T) {
	api := &stubAPI{}
	f := newFixture(t, api)

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, f.request(t, webtest.Session(t), http.MethodPost, "/auth/login", url.Values{"email": {"no-es-correo"}}))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Correo inválido")
	assert.Zero(t, api.logins)
}

func TestLoginInvalidCredentials(t *testing.T) {
	api := &stubAPI{loginErr: &backend.APIError{Status: http.StatusUnauthorized, Message: "Unauthorized"}}
	f := newFixture(t, api)
	sess := webtest.Session(t)

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, f.request(t, sess, http.MethodPost, "/auth/login", url.Values{
		"email":    {"jefe@bomberos.local"},
		"password": {"incorrecta"},
	}))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Correo o contraseña incorrectos")
	assert.NotContains(t, body, "incorrecta\"")
	got, err := f.store.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.True(t, got.Empty())
}

func TestLoginBackendUnavailable(t *testing.T) {
	f := newFixture(t, &stubAPI{loginErr: errors.New("dial tcp: connection refused")})

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, f.request(t, webtest.Session(t), http.MethodPost, "/auth/login", url.Values{
		"email":    {"jefe@bomberos.local"},
		"password": {"secreta123"},
	}))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "No fue posible contactar al servidor")
}

func TestLoginSuccessRenewsSessionAndRemembers(t *testing.T) {
	api := &stubAPI{session: backend.Session{User: jefe, AccessToken: "access-1", RefreshToken: "refresh-1"}}
	f := newFixture(t, api)
	sess := webtest.Session(t)
	before := sess.ID

	req := f.request(t, sess, http.MethodPost, "/auth/login", url.Values{
		"email":    {"jefe@bomberos.local"},
		"password": {"secreta123"},
		"remember": {"1"},
		"next":     {"/activos"},
	})
	rr := webtest.Serve(t, f.router, f.sessions, req)

	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/activos", rr.Header().Get("Location"))
	assert.NotEqual(t, before, sess.ID)
	assert.True(t, sess.Remember())

	stored, err := f.store.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "access-1", stored.AccessToken)
	assert.Equal(t, "refresh-1", stored.RefreshToken)
	assert.True(t, stored.RememberMe)

	var cookie *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == f.sessions.CookieName() {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, sess.ID, cookie.Value)
	assert.Equal(t, int((30 * 24 * time.Hour).Seconds()), cookie.MaxAge)
}

func TestLoginRejectsOpenRedirect(t *testing.T) {
	api := &stubAPI{session: backend.Session{User: jefe, AccessToken: "a", RefreshToken: "r"}}
	f := newFixture(t, api)

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, f.request(t, webtest.Session(t), http.MethodPost, "/auth/login", url.Values{
		"email":    {"jefe@bomberos.local"},
		"password": {"secreta123"},
		"next":     {"//evil.example"},
	}))

	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/", rr.Header().Get("Location"))
}

func TestRequireLoginRedirects(t *testing.T) {
	f := newFixture(t, &stubAPI{})

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, f.request(t, webtest.Session(t), http.MethodGet, "/activos", nil))

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, auth.LoginPath+"?next=%2Factivos", rr.Header().Get("Location"))
}

func TestRequireLoginFirstVisitHasNoExpiryFlash(t *testing.T) {
	f := newFixture(t, &stubAPI{})
	sess := webtest.Session(t)

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, f.request(t, sess, http.MethodGet, "/activos", nil))

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Nil(t, sess.PopFlash())
}

func TestRequireLoginJSONUnauthorized(t *testing.T) {
	f := newFixture(t, &stubAPI{})

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, f.request(t, webtest.Session(t), http.MethodGet, "/api/me", nil))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
}

func TestRequireLoginSilentRefresh(t *testing.T) {
	api := &stubAPI{refreshed: backend.Session{AccessToken: "access-2", RefreshToken: "refresh-2"}}
	f := newFixture(t, api)
	sess := webtest.Session(t)
	require.NoError(t, f.store.Set(context.Background(), sess.ID, credentials.Credentials{RefreshToken: "refresh-1", RememberMe: true, User: jefe}))

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, f.request(t, sess, http.MethodGet, "/activos", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "hola Jefe", rr.Body.String())
	stored, err := f.store.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "access-2", stored.AccessToken)
	assert.Equal(t, "refresh-2", stored.RefreshToken)
	assert.True(t, stored.RememberMe)
	assert.Equal(t, jefe, stored.User)
}

func TestRequireLoginRefreshFailureEndsSession(t *testing.T) {
	api := &stubAPI{refreshErr: &backend.APIError{Status: http.StatusUnauthorized}}
	f := newFixture(t, api)
	sess := webtest.Session(t)
	require.NoError(t, f.store.Set(context.Background(), sess.ID, credentials.Credentials{RefreshToken: "revoked", User: jefe}))

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, f.request(t, sess, http.MethodGet, "/activos", nil))

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	stored, err := f.store.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.True(t, stored.Empty())
	flash := sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "warning", flash.Kind)
}

func TestMe(t *testing.T) {
	f := newFixture(t, &stubAPI{})
	sess := webtest.Session(t)
	require.NoError(t, f.store.Set(context.Background(), sess.ID, credentials.Credentials{AccessToken: "a", RefreshToken: "r", User: jefe}))

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, f.request(t, sess, http.MethodGet, "/api/me", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		User struct {
			ID    int64  `json:"id"`
			Email string `json:"email"`
		} `json:"user"`
		Permissions []rbac.Permission `json:"permissions"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, int64(7), body.User.ID)
	assert.Equal(t, []rbac.Permission{{Subject: "activos", Actions: []string{"create", "read"}}}, body.Permissions)
}

func TestFailMapping(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"forbidden", &backend.APIError{Status: http.StatusForbidden}, http.StatusForbidden, "No tiene permisos"},
		{"not found", &backend.APIError{Status: http.StatusNotFound}, http.StatusNotFound, "no existe"},
		{"validation", &backend.APIError{Status: http.StatusUnprocessableEntity, Message: "Código duplicado"}, http.StatusUnprocessableEntity, "Código duplicado"},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, "no respondió a tiempo"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "error inesperado"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, &stubAPI{})
			rr := httptest.NewRecorder()
			f.guard.Fail(rr, webtest.Request(t, nil, http.MethodGet, "/activos/1", nil), tc.err)
			assert.Equal(t, tc.status, rr.Code)
			assert.Contains(t, rr.Body.String(), tc.message)
		})
	}
}

func TestFailUnauthorizedClearsCredentials(t *testing.T) {
	f := newFixture(t, &stubAPI{})
	sess := webtest.Session(t)
	require.NoError(t, f.store.Set(context.Background(), sess.ID, credentials.Credentials{AccessToken: "a", RefreshToken: "r", User: jefe}))

	rr := httptest.NewRecorder()
	f.guard.Fail(rr, webtest.Request(t, sess, http.MethodGet, "/activos", nil), &backend.APIError{Status: http.StatusUnauthorized})

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	stored, err := f.store.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.True(t, stored.Empty())
}

func TestLogout(t *testing.T) {
	api := &stubAPI{}
	f := newFixture(t, api)
	sess := webtest.Session(t)
	require.NoError(t, f.store.Set(context.Background(), sess.ID, credentials.Credentials{AccessToken: "a", RefreshToken: "r", User: jefe}))

	req := f.request(t, sess, http.MethodPost, "/auth/logout", url.Values{})
	rr := webtest.Serve(t, f.router, f.sessions, req)

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, auth.LoginPath, rr.Header().Get("Location"))
	assert.Equal(t, []int64{7}, api.logouts)
	stored, err := f.store.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.True(t, stored.Empty())

	cookies := rr.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, f.sessions.CookieName(), cookies[len(cookies)-1].Name)
	assert.Equal(t, -1, cookies[len(cookies)-1].MaxAge)
}

func TestSafeNext(t *testing.T) {
	assert.Equal(t, "/activos?page=2", auth.SafeNext("/activos?page=2"))
	assert.Equal(t, "/", auth.SafeNext(""))
	assert.Equal(t, "/", auth.SafeNext("https://evil.example"))
	assert.Equal(t, "/", auth.SafeNext("//evil.example"))
	assert.Equal(t, "/", auth.SafeNext("/\\evil.example"))
}
