// Package analytics assembles the dashboard home: KPI summary, monthly
// movements and the latest audit entries.
package analytics

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/activos-fijos/activos/internal/backend"
	"github.com/activos-fijos/activos/internal/rbac"
)

// RecentLimit is how many audit entries the home page shows.
const RecentLimit = 5

// API is the subset of the backend client the dashboard reads.
type API interface {
	GetDashboard(ctx context.Context) (backend.Dashboard, error)
	ListBitacora(ctx context.Context, params backend.ListParams) (backend.Page[backend.Registro], error)
}

// Summary is everything the home page renders.
type Summary struct {
	Dashboard backend.Dashboard
	Recent    []backend.Registro
}

// Service coordinates backend reads with the cache layer.
type Service struct {
	api    API
	cache  *Cache
	logger *slog.Logger
}

// NewService wires the backend API with a Cache helper.
func NewService(api API, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{api: api, cache: cache, logger: logger}
}

// Dashboard returns the KPI summary, served from cache when warm.
func (s *Service) Dashboard(ctx context.Context) (backend.Dashboard, error) {
	key, err := s.cache.BuildKey(ctx, "analytics", "dashboard")
	if err != nil {
		s.logger.Warn("dashboard cache key", slog.Any("error", err))
		return s.api.GetDashboard(ctx)
	}
	var dash backend.Dashboard
	err = s.cache.FetchJSON(ctx, key, &dash, func(ctx context.Context) (any, error) {
		return s.api.GetDashboard(ctx)
	})
	return dash, err
}

// Warm fetches a fresh KPI summary and stores it under the current version.
func (s *Service) Warm(ctx context.Context) (backend.Dashboard, error) {
	dash, err := s.api.GetDashboard(ctx)
	if err != nil {
		return backend.Dashboard{}, err
	}
	key, err := s.cache.BuildKey(ctx, "analytics", "dashboard")
	if err != nil {
		return dash, err
	}
	return dash, s.cache.Store(ctx, key, dash)
}

// Invalidate drops every cached summary; called after writes that move KPIs.
func (s *Service) Invalidate(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("dashboard cache bump", slog.Any("error", err))
	}
}

// Summary loads the KPI summary and, when the table grants it, the latest
// audit entries concurrently.
func (s *Service) Summary(ctx context.Context, table rbac.Table) (Summary, error) {
	var out Summary
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		dash, err := s.Dashboard(ctx)
		if err != nil {
			return err
		}
		out.Dashboard = dash
		return nil
	})

	if table.Can(rbac.SubjectBitacora, rbac.ActionRead) {
		g.Go(func() error {
			page, err := s.api.ListBitacora(ctx, backend.ListParams{Page: 1, Limit: RecentLimit})
			if err != nil {
				return err
			}
			out.Recent = page.Data
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Summary{}, err
	}
	return out, nil
}
