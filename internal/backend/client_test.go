package backend_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/activos-fijos/activos/internal/backend"
	"github.com/activos-fijos/activos/internal/credentials"
	"github.com/activos-fijos/activos/internal/gateway"
	"github.com/activos-fijos/activos/internal/rbac"
)

func newServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *backend.Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, backend.NewClient(backend.Config{BaseURL: srv.URL + "/"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestLoginSendsCredentialsAndDecodesSession(t *testing.T) {
	var got map[string]any
	_, client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusCreated, map[string]any{
			"access_token":  "a1",
			"refresh_token": "r1",
			"user": map[string]any{
				"id": 4, "email": "op@bomberos.local", "nombre": "Operador",
				"roles": []map[string]any{{"id": 2, "name": "bodega", "permissions": []map[string]any{
					{"subject": "activos", "action": []string{"read", "create"}},
				}}},
			},
		})
	})

	session, err := client.Login(context.Background(), "op@bomberos.local", "secreto", true)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"email": "op@bomberos.local", "password": "secreto", "rememberMe": true}, got)
	assert.Equal(t, "a1", session.AccessToken)
	assert.Equal(t, "r1", session.RefreshToken)
	assert.Equal(t, int64(4), session.User.ID)
	assert.Equal(t, "Operador", session.User.Name)

	creds := session.Credentials(true)
	assert.True(t, creds.RememberMe)
	assert.True(t, creds.Permissions().Can(rbac.SubjectActivos, rbac.ActionCreate))
}

func TestRefreshAndLogout(t *testing.T) {
	var calls []string
	_, client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		switch r.URL.Path {
		case "/auth/refresh-token":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "r1", body["token"])
			writeJSON(w, http.StatusOK, map[string]any{"access_token": "a2", "refresh_token": "r2"})
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	})

	session, err := client.Refresh(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "a2", session.AccessToken)
	require.NoError(t, client.Logout(context.Background(), 9))
	assert.Equal(t, []string{"POST /auth/refresh-token", "DELETE /auth/logout/9"}, calls)
}

func TestListActivosEncodesQuery(t *testing.T) {
	var query url.Values
	_, client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		writeJSON(w, http.StatusOK, map[string]any{
			"data": []map[string]any{{"id": 1, "codigo": "MB-01", "nombre": "Motobomba", "estado": "disponible"}},
			"meta": map[string]any{"total": 21, "page": 2, "limit": 10, "last_page": 3},
		})
	})

	page, err := client.ListActivos(context.Background(), backend.ListParams{
		Page: 2, Search: " bomba ",
		Filters: map[string]string{backend.FilterEstado: "disponible", backend.FilterCategoria: " "},
	})
	require.NoError(t, err)
	assert.Equal(t, "2", query.Get("page"))
	assert.Equal(t, "10", query.Get("limit"))
	assert.Equal(t, "bomba", query.Get("search"))
	assert.Equal(t, "disponible", query.Get("estado"))
	assert.False(t, query.Has("categoria"))

	require.Len(t, page.Data, 1)
	assert.Equal(t, "MB-01", page.Data[0].Codigo)
	assert.True(t, page.Meta.HasPrev())
	assert.True(t, page.Meta.HasNext())
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		body     string
		sentinel error
		message  string
		details  int
	}{
		{"validation list", http.StatusBadRequest, `{"statusCode":400,"message":["codigo must not be empty","vida_util must be positive"],"error":"Bad Request"}`, backend.ErrValidation, "codigo must not be empty; vida_util must be positive", 2},
		{"not found", http.StatusNotFound, `{"statusCode":404,"message":"Activo no encontrado"}`, backend.ErrNotFound, "Activo no encontrado", 0},
		{"forbidden", http.StatusForbidden, `{"statusCode":403,"error":"Forbidden"}`, backend.ErrForbidden, "Forbidden", 0},
		{"conflict", http.StatusConflict, `{"statusCode":409,"message":"codigo duplicado"}`, backend.ErrConflict, "codigo duplicado", 0},
		{"plain text", http.StatusUnauthorized, "denied", backend.ErrUnauthorized, "denied", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			})
			_, err := client.GetActivo(context.Background(), 1)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.sentinel)
			var apiErr *backend.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tc.status, apiErr.Status)
			assert.Equal(t, tc.message, apiErr.Message)
			assert.Len(t, apiErr.Details, tc.details)
		})
	}
}

func TestRejected(t *testing.T) {
	msg, ok := backend.Rejected(&backend.APIError{Status: http.StatusConflict, Message: "codigo duplicado"})
	assert.True(t, ok)
	assert.Equal(t, "codigo duplicado", msg)

	_, ok = backend.Rejected(&backend.APIError{Status: http.StatusUnprocessableEntity})
	assert.True(t, ok)

	_, ok = backend.Rejected(&backend.APIError{Status: http.StatusInternalServerError, Message: "boom"})
	assert.False(t, ok)
	_, ok = backend.Rejected(context.DeadlineExceeded)
	assert.False(t, ok)
}

func TestRequestIDForwarded(t *testing.T) {
	var ids []string
	_, client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		ids = append(ids, r.Header.Get(backend.RequestIDHeader))
		writeJSON(w, http.StatusOK, map[string]any{})
	})

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "host/abc-000001")
	_, err := client.GetDashboard(ctx)
	require.NoError(t, err)
	_, err = client.GetDashboard(context.Background())
	require.NoError(t, err)

	require.Len(t, ids, 2)
	assert.Equal(t, "host/abc-000001", ids[0])
	assert.NotEmpty(t, ids[1])
}

func TestListParams(t *testing.T) {
	p := backend.ListParams{Page: -3, Limit: 500}.Normalize()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, backend.MaxLimit, p.Limit)
	assert.Equal(t, backend.DefaultLimit, backend.ListParams{}.Normalize().Limit)

	parsed := backend.ParseListParams(url.Values{
		"page": {"3"}, "limit": {"25"}, "search": {"casco"}, "estado": {"baja"}, "categoria": {""}, "otro": {"x"},
	}, backend.FilterEstado, backend.FilterCategoria)
	assert.Equal(t, 3, parsed.Page)
	assert.Equal(t, 25, parsed.Limit)
	assert.Equal(t, "casco", parsed.Search)
	assert.Equal(t, map[string]string{"estado": "baja"}, parsed.Filters)

	invalid := backend.ParseListParams(url.Values{"page": {"x"}})
	assert.Equal(t, 1, invalid.Page)
	assert.Nil(t, invalid.Filters)
}

func TestClientThroughGatewayReplaysCreate(t *testing.T) {
	var creates atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"statusCode": 401, "message": "Unauthorized"})
			return
		}
		creates.Add(1)
		var input backend.ActivoInput
		require.NoError(t, json.NewDecoder(r.Body).Decode(&input))
		writeJSON(w, http.StatusCreated, map[string]any{"id": 12, "codigo": input.Codigo, "nombre": input.Nombre})
	}))
	t.Cleanup(srv.Close)

	store := credentials.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), credentials.DefaultKey, credentials.Credentials{AccessToken: "expired", RefreshToken: "r1"}))
	transport := gateway.New(gateway.Config{
		Store: store,
		Refresher: gateway.RefresherFunc(func(ctx context.Context, token string) (credentials.Credentials, error) {
			return credentials.Credentials{AccessToken: "fresh", RefreshToken: "r2"}, nil
		}),
	})
	client := backend.NewClient(backend.Config{BaseURL: srv.URL, Transport: transport})

	activo, err := client.CreateActivo(context.Background(), backend.ActivoInput{Codigo: "ES-04", Nombre: "Escala telescópica"})
	require.NoError(t, err)
	assert.Equal(t, int64(12), activo.ID)
	assert.Equal(t, "ES-04", activo.Codigo)
	assert.Equal(t, int32(1), creates.Load())
}

type call struct {
	method, endpoint string
	status           int
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []call
}

func (o *recordingObserver) ObserveBackend(method, endpoint string, status int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, call{method, endpoint, status})
}

func TestClientObservesCallsByEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/activos/42" {
			writeJSON(w, http.StatusNotFound, map[string]any{"statusCode": 404, "message": "no existe"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"total_activos": 1})
	}))
	t.Cleanup(srv.Close)
	observer := &recordingObserver{}
	client := backend.NewClient(backend.Config{BaseURL: srv.URL, Metrics: observer})

	_, err := client.GetActivo(context.Background(), 42)
	require.ErrorIs(t, err, backend.ErrNotFound)
	_, err = client.GetDashboard(context.Background())
	require.NoError(t, err)

	srv.Close()
	_, err = client.GetDashboard(context.Background())
	require.Error(t, err)

	assert.Equal(t, []call{
		{http.MethodGet, "/activos/{id}", http.StatusNotFound},
		{http.MethodGet, "/dashboard", http.StatusOK},
		{http.MethodGet, "/dashboard", 0},
	}, observer.calls)
}
