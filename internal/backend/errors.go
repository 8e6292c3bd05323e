package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Sentinel errors matched by APIError.
var (
	ErrUnauthorized = errors.New("backend: unauthorized")
	ErrForbidden    = errors.New("backend: forbidden")
	ErrNotFound     = errors.New("backend: not found")
	ErrValidation   = errors.New("backend: validation failed")
	ErrConflict     = errors.New("backend: conflict")
)

// APIError is a non-2xx backend answer.
type APIError struct {
	Status  int
	Message string
	// Details lists per-field messages when the backend returns several.
	Details []string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend: status %d", e.Status)
	}
	return fmt.Sprintf("backend: status %d: %s", e.Status, e.Message)
}

// Is maps the status onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrForbidden:
		return e.Status == http.StatusForbidden
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrValidation:
		return e.Status == http.StatusBadRequest || e.Status == http.StatusUnprocessableEntity
	case ErrConflict:
		return e.Status == http.StatusConflict
	}
	return false
}

// Rejected reports whether the backend refused a write for a reason the
// user can fix (validation or conflict), and the message to show.
func Rejected(err error) (string, bool) {
	if !errors.Is(err, ErrValidation) && !errors.Is(err, ErrConflict) {
		return "", false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message, true
	}
	return "La solicitud fue rechazada por el servidor", true
}

// errorBody is the NestJS error envelope; message is a string or a list.
type errorBody struct {
	StatusCode int             `json:"statusCode"`
	Message    json.RawMessage `json:"message"`
	Error      string          `json:"error"`
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		apiErr.Message = strings.TrimSpace(string(raw))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	var single string
	var list []string
	switch {
	case json.Unmarshal(body.Message, &single) == nil && single != "":
		apiErr.Message = single
	case json.Unmarshal(body.Message, &list) == nil && len(list) > 0:
		apiErr.Message = strings.Join(list, "; ")
		apiErr.Details = list
	case body.Error != "":
		apiErr.Message = body.Error
	default:
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
