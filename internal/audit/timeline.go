package audit

import (
	"time"

	"github.com/activos-fijos/activos/internal/backend"
)

// DateLayout is the date format of the range filters.
const DateLayout = "2006-01-02"

// Filters holds the audit log query.
type Filters struct {
	Usuario string
	Accion  string
	Desde   time.Time
	Hasta   time.Time
	Page    int
	Limit   int
}

// Params converts the filters into a backend listing query. Zero dates are
// left out.
func (f Filters) Params() backend.ListParams {
	params := backend.ListParams{Page: f.Page, Limit: f.Limit, Filters: map[string]string{}}
	if f.Usuario != "" {
		params.Filters[backend.FilterUsuario] = f.Usuario
	}
	if f.Accion != "" {
		params.Filters[backend.FilterAccion] = f.Accion
	}
	if !f.Desde.IsZero() {
		params.Filters[backend.FilterDesde] = f.Desde.Format(DateLayout)
	}
	if !f.Hasta.IsZero() {
		params.Filters[backend.FilterHasta] = f.Hasta.Format(DateLayout)
	}
	return params.Normalize()
}

// Range renders a filter date for a form input.
func Range(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}
