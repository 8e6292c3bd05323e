// Package credentials holds the session credentials shared by the gateway
// and the login/logout flow.
package credentials

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/activos-fijos/activos/internal/rbac"
)

// DefaultKey identifies the process-wide session used by the worker and the CLI.
const DefaultKey = "default"

// User is the authenticated account returned by the backend.
type User struct {
	ID    int64       `json:"id"`
	Email string      `json:"email"`
	Name  string      `json:"nombre"`
	Roles []rbac.Role `json:"roles"`
}

// Credentials is the token pair of one session.
type Credentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
	RememberMe   bool   `json:"remember_me"`
}

// Authenticated reports whether an access token is present.
func (c Credentials) Authenticated() bool {
	return c.AccessToken != ""
}

// Empty reports whether nothing is stored.
func (c Credentials) Empty() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}

// Permissions merges the user's roles into an authorization table.
func (c Credentials) Permissions() rbac.Table {
	return rbac.FromRoles(c.User.Roles)
}

// Store is the narrow mutation API over session credentials.
type Store interface {
	// Get returns the credentials for key, or the zero value when none are stored.
	Get(ctx context.Context, key string) (Credentials, error)
	Set(ctx context.Context, key string, creds Credentials) error
	Clear(ctx context.Context, key string) error
}

type keyContextKey struct{}

// WithKey binds the credential key used for outgoing requests.
func WithKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, keyContextKey{}, key)
}

// KeyFromContext returns the bound credential key or DefaultKey.
func KeyFromContext(ctx context.Context) string {
	if key, ok := ctx.Value(keyContextKey{}).(string); ok && key != "" {
		return key
	}
	return DefaultKey
}

// ExpiresAt reads the exp claim of a JWT without verifying it. The backend
// is the verifier; the client only needs token lifetimes.
func ExpiresAt(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

type userContextKey struct{}

// WithUser binds the authenticated user to ctx.
func WithUser(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext returns the user bound by WithUser.
func UserFromContext(ctx context.Context) (User, bool) {
	user, ok := ctx.Value(userContextKey{}).(User)
	return user, ok
}
