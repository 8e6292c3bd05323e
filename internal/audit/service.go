package audit

import (
	"context"
	"errors"

	"github.com/activos-fijos/activos/internal/backend"
)

// MaxExportRows caps how many entries a single export collects.
const MaxExportRows = 5000

// ErrExportTooLarge is returned when the filtered log exceeds MaxExportRows.
var ErrExportTooLarge = errors.New("audit: export exceeds row limit")

// API defines the backend audit log endpoint.
type API interface {
	ListBitacora(ctx context.Context, params backend.ListParams) (backend.Page[backend.Registro], error)
}

// Service reads the audit log.
type Service struct {
	api API
}

// NewService builds Service instance.
func NewService(api API) *Service {
	return &Service{api: api}
}

// Timeline returns one page of the audit log.
func (s *Service) Timeline(ctx context.Context, filters Filters) (backend.Page[backend.Registro], error) {
	return s.api.ListBitacora(ctx, filters.Params())
}

// Export collects every entry that matches filters, ignoring their paging.
func (s *Service) Export(ctx context.Context, filters Filters) ([]backend.Registro, error) {
	filters.Page = 1
	filters.Limit = backend.MaxLimit
	var rows []backend.Registro
	for {
		page, err := s.api.ListBitacora(ctx, filters.Params())
		if err != nil {
			return nil, err
		}
		rows = append(rows, page.Data...)
		if len(rows) > MaxExportRows {
			return nil, ErrExportTooLarge
		}
		if !page.Meta.HasNext() || len(page.Data) == 0 {
			return rows, nil
		}
		filters.Page++
	}
}
