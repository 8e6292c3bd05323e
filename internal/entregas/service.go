// Package entregas serves asset hand-out and return screens.
package entregas

import (
	"context"

	"github.com/activos-fijos/activos/internal/backend"
)

// API is the backend surface the hand-out screens use.
type API interface {
	ListEntregas(ctx context.Context, params backend.ListParams) (backend.Page[backend.Entrega], error)
	CreateEntrega(ctx context.Context, input backend.EntregaInput) (backend.Entrega, error)
	ListDevoluciones(ctx context.Context, params backend.ListParams) (backend.Page[backend.Devolucion], error)
	CreateDevolucion(ctx context.Context, input backend.DevolucionInput) (backend.Devolucion, error)
	ListActivos(ctx context.Context, params backend.ListParams) (backend.Page[backend.Activo], error)
}

// Invalidator drops cached aggregates that movements make stale.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// Service handles hand-outs and returns.
type Service struct {
	api   API
	cache Invalidator
}

// NewService builds Service instance. cache may be nil.
func NewService(api API, cache Invalidator) *Service {
	return &Service{api: api, cache: cache}
}

// Entregas returns one page of hand-outs.
func (s *Service) Entregas(ctx context.Context, params backend.ListParams) (backend.Page[backend.Entrega], error) {
	return s.api.ListEntregas(ctx, params)
}

// Devoluciones returns one page of returns.
func (s *Service) Devoluciones(ctx context.Context, params backend.ListParams) (backend.Page[backend.Devolucion], error) {
	return s.api.ListDevoluciones(ctx, params)
}

// Disponibles lists the assets that can be handed out.
func (s *Service) Disponibles(ctx context.Context) ([]backend.Activo, error) {
	page, err := s.api.ListActivos(ctx, backend.ListParams{
		Page:    1,
		Limit:   backend.MaxLimit,
		Filters: map[string]string{backend.FilterEstado: backend.EstadoDisponible},
	})
	return page.Data, err
}

// Pendientes lists the hand-outs not yet returned among the latest ones.
func (s *Service) Pendientes(ctx context.Context) ([]backend.Entrega, error) {
	page, err := s.api.ListEntregas(ctx, backend.ListParams{Page: 1, Limit: backend.MaxLimit})
	if err != nil {
		return nil, err
	}
	out := make([]backend.Entrega, 0, len(page.Data))
	for _, e := range page.Data {
		if !e.Devuelta {
			out = append(out, e)
		}
	}
	return out, nil
}

// Entregar records a hand-out.
func (s *Service) Entregar(ctx context.Context, input backend.EntregaInput) (backend.Entrega, error) {
	entrega, err := s.api.CreateEntrega(ctx, input)
	if err == nil && s.cache != nil {
		s.cache.Invalidate(ctx)
	}
	return entrega, err
}

// Devolver records a return.
func (s *Service) Devolver(ctx context.Context, input backend.DevolucionInput) (backend.Devolucion, error) {
	dev, err := s.api.CreateDevolucion(ctx, input)
	if err == nil && s.cache != nil {
		s.cache.Invalidate(ctx)
	}
	return dev, err
}
