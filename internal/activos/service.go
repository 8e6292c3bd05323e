// Package activos serves the fixed-asset register screens.
package activos

import (
	"context"

	"github.com/activos-fijos/activos/internal/backend"
)

// API is the backend surface the asset screens use.
type API interface {
	ListActivos(ctx context.Context, params backend.ListParams) (backend.Page[backend.Activo], error)
	GetActivo(ctx context.Context, id int64) (backend.Activo, error)
	CreateActivo(ctx context.Context, input backend.ActivoInput) (backend.Activo, error)
	UpdateActivo(ctx context.Context, id int64, input backend.ActivoInput) (backend.Activo, error)
	DeleteActivo(ctx context.Context, id int64) error
}

// Invalidator drops cached aggregates that asset writes make stale.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// Service handles asset reads and writes.
type Service struct {
	api   API
	cache Invalidator
}

// NewService builds Service instance. cache may be nil.
func NewService(api API, cache Invalidator) *Service {
	return &Service{api: api, cache: cache}
}

// List returns one page of assets.
func (s *Service) List(ctx context.Context, params backend.ListParams) (backend.Page[backend.Activo], error) {
	return s.api.ListActivos(ctx, params)
}

// All walks every page of the filtered listing, for exports.
func (s *Service) All(ctx context.Context, params backend.ListParams) ([]backend.Activo, error) {
	params.Page = 1
	params.Limit = backend.MaxLimit
	var out []backend.Activo
	for {
		page, err := s.api.ListActivos(ctx, params)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Data...)
		if !page.Meta.HasNext() || len(page.Data) == 0 {
			return out, nil
		}
		params.Page++
	}
}

// Get returns one asset.
func (s *Service) Get(ctx context.Context, id int64) (backend.Activo, error) {
	return s.api.GetActivo(ctx, id)
}

// Create registers an asset.
func (s *Service) Create(ctx context.Context, input backend.ActivoInput) (backend.Activo, error) {
	activo, err := s.api.CreateActivo(ctx, input)
	if err == nil {
		s.invalidate(ctx)
	}
	return activo, err
}

// Update modifies an asset.
func (s *Service) Update(ctx context.Context, id int64, input backend.ActivoInput) (backend.Activo, error) {
	activo, err := s.api.UpdateActivo(ctx, id, input)
	if err == nil {
		s.invalidate(ctx)
	}
	return activo, err
}

// Delete removes an asset.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.api.DeleteActivo(ctx, id)
	if err == nil {
		s.invalidate(ctx)
	}
	return err
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}
