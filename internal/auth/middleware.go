package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/activos-fijos/activos/internal/backend"
	"github.com/activos-fijos/activos/internal/credentials"
	"github.com/activos-fijos/activos/internal/gateway"
	"github.com/activos-fijos/activos/internal/platform/httpx"
	"github.com/activos-fijos/activos/internal/rbac"
	"github.com/activos-fijos/activos/internal/shared"
	"github.com/activos-fijos/activos/internal/view"
)

// LoginPath is where unauthenticated browsers are sent.
const LoginPath = "/auth/login"

// TokenSource yields a usable access token for the context's credential key.
type TokenSource interface {
	EnsureToken(ctx context.Context) (string, error)
}

// Middleware guards dashboard routes and maps backend failures to responses.
type Middleware struct {
	Logger    *slog.Logger
	Tokens    TokenSource
	Store     credentials.Store
	Templates *view.Engine
	CSRF      *shared.CSRFManager
}

// RequireLogin re-establishes the session credentials, silently refreshing
// them when only a refresh token survives, and binds the user and the merged
// permission table to the request.
func (m *Middleware) RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil {
			m.unauthenticated(w, r)
			return
		}
		ctx := credentials.WithKey(r.Context(), sess.ID)
		if _, err := m.Tokens.EnsureToken(ctx); err != nil {
			if errors.Is(err, gateway.ErrUnauthenticated) {
				// Never signed in: nothing to expire.
				m.unauthenticated(w, r.WithContext(ctx))
				return
			}
			m.Fail(w, r.WithContext(ctx), err)
			return
		}
		creds, err := m.Store.Get(ctx, sess.ID)
		if err != nil {
			m.Fail(w, r.WithContext(ctx), err)
			return
		}
		ctx = credentials.WithUser(ctx, creds.User)
		ctx = rbac.ContextWithTable(ctx, creds.Permissions())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Fail writes the response for an error raised while serving r.
func (m *Middleware) Fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, gateway.ErrUnauthenticated),
		errors.Is(err, gateway.ErrRefreshFailed),
		errors.Is(err, backend.ErrUnauthorized):
		m.expire(r.Context(), err)
		m.unauthenticated(w, r)
	case errors.Is(err, backend.ErrForbidden):
		m.errorPage(w, r, http.StatusForbidden, "No tiene permisos para esta acción.")
	case errors.Is(err, backend.ErrNotFound):
		m.errorPage(w, r, http.StatusNotFound, "El recurso solicitado no existe.")
	case errors.Is(err, backend.ErrValidation), errors.Is(err, backend.ErrConflict):
		m.errorPage(w, r, statusOf(err), messageOf(err))
	case errors.Is(err, context.DeadlineExceeded):
		m.logger().Warn("backend timeout", slog.String("path", r.URL.Path), slog.Any("error", err))
		m.errorPage(w, r, http.StatusGatewayTimeout, "El servidor no respondió a tiempo.")
	default:
		m.logger().Error("request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		m.errorPage(w, r, http.StatusInternalServerError, "Ocurrió un error inesperado.")
	}
}

// expire clears the credentials of a session that can no longer be refreshed.
func (m *Middleware) expire(ctx context.Context, cause error) {
	key := credentials.KeyFromContext(ctx)
	if sess := shared.SessionFromContext(ctx); sess != nil {
		key = sess.ID
		sess.AddFlash(shared.FlashMessage{Kind: "warning", Message: "Su sesión expiró, ingrese nuevamente."})
	}
	if err := m.Store.Clear(ctx, key); err != nil {
		m.logger().Warn("clear credentials", slog.Any("error", err))
	}
	m.logger().Info("session ended", slog.String("reason", cause.Error()))
}

func (m *Middleware) unauthenticated(w http.ResponseWriter, r *http.Request) {
	if wantsJSON(r) {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
		return
	}
	target := LoginPath
	if r.Method == http.MethodGet && r.URL.Path != "/" {
		target += "?" + url.Values{"next": {r.URL.RequestURI()}}.Encode()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (m *Middleware) errorPage(w http.ResponseWriter, r *http.Request, status int, message string) {
	if wantsJSON(r) {
		httpx.Problem(w, status, http.StatusText(status), message)
		return
	}
	if m.Templates == nil {
		http.Error(w, message, status)
		return
	}
	data := view.Page(r, m.CSRF, http.StatusText(status), map[string]any{"Status": status, "Message": message})
	if err := m.Templates.RenderStatus(w, status, "pages/error.html", data); err != nil {
		m.logger().Error("render error page", slog.Any("error", err))
	}
}

func (m *Middleware) logger() *slog.Logger {
	if m.Logger == nil {
		return slog.Default()
	}
	return m.Logger
}

func statusOf(err error) int {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return http.StatusBadRequest
}

func messageOf(err error) string {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return "La solicitud no es válida."
}

func wantsJSON(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/") || strings.Contains(r.Header.Get("Accept"), "application/json")
}

// SafeNext returns next when it is a local path, else "/".
func SafeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}
