package gateway

import (
	"context"
	"errors"
)

// ErrRefreshFailed matches every error produced by a failed token refresh.
var ErrRefreshFailed = errors.New("gateway: token refresh failed")

// errNoRefreshToken signals that no refresh can be attempted.
var errNoRefreshToken = errors.New("gateway: no refresh token")

// ErrUnauthenticated is returned by EnsureToken when the session holds no
// usable credentials.
var ErrUnauthenticated = errors.New("gateway: unauthenticated")

// RefreshError carries the cause of a failed refresh to every caller that
// waited on it.
type RefreshError struct {
	Key string
	Err error
}

func (e *RefreshError) Error() string {
	return "gateway: refresh " + e.Key + ": " + e.Err.Error()
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrRefreshFailed) hold for any RefreshError.
func (e *RefreshError) Is(target error) bool {
	return target == ErrRefreshFailed
}

type retriedContextKey struct{}

// MarkRetried flags requests built from ctx as already retried; a 401 on
// them is returned without attempting a refresh.
func MarkRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, retriedContextKey{}, true)
}

// IsRetried reports whether ctx carries the retried flag.
func IsRetried(ctx context.Context) bool {
	retried, _ := ctx.Value(retriedContextKey{}).(bool)
	return retried
}
