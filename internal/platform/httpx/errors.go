package httpx

import (
	"context"
	"errors"
	"net/http"

	"github.com/activos-fijos/activos/internal/backend"
)

// RespondError maps backend errors to RFC7807 responses.
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	p := ProblemDetail{Instance: r.URL.Path}
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		p.Detail = apiErr.Message
		p.Errors = apiErr.Details
	}
	switch {
	case errors.Is(err, backend.ErrNotFound):
		p.Status, p.Title = http.StatusNotFound, "Not Found"
	case errors.Is(err, backend.ErrConflict):
		p.Status, p.Title = http.StatusConflict, "Conflict"
	case errors.Is(err, backend.ErrValidation):
		p.Status, p.Title = http.StatusBadRequest, "Validation Failed"
	case errors.Is(err, backend.ErrForbidden):
		p.Status, p.Title = http.StatusForbidden, "Forbidden"
	case errors.Is(err, backend.ErrUnauthorized):
		p.Status, p.Title = http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, context.DeadlineExceeded):
		p.Status, p.Title, p.Detail = http.StatusGatewayTimeout, "Gateway Timeout", ""
	default:
		p.Status, p.Title, p.Detail, p.Errors = http.StatusInternalServerError, "Internal Error", "", nil
	}
	WriteProblem(w, p)
}
