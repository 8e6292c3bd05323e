package rbac

import (
	"context"
	"log/slog"
	"net/http"
)

type tableContextKey struct{}

// ContextWithTable stores the caller's authorization table in context.
func ContextWithTable(ctx context.Context, table Table) context.Context {
	return context.WithValue(ctx, tableContextKey{}, table)
}

// TableFromContext returns the authorization table, or an empty table when none is bound.
func TableFromContext(ctx context.Context) Table {
	table, _ := ctx.Value(tableContextKey{}).(Table)
	if table == nil {
		return Table{}
	}
	return table
}

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Logger *slog.Logger
}

// Require ensures the current user holds at least one of the actions on subject.
func (m Middleware) Require(subject string, actions ...string) func(http.Handler) http.Handler {
	subject = normalize(subject)
	if len(actions) == 0 {
		actions = []string{ActionRead}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			table := TableFromContext(r.Context())
			if table.CanAny(subject, actions...) {
				next.ServeHTTP(w, r)
				return
			}
			if m.Logger != nil {
				m.Logger.Warn("rbac denied", slog.String("subject", subject), slog.Any("actions", actions), slog.String("path", r.URL.Path))
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}
