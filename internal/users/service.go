package users

import (
	"context"

	"github.com/activos-fijos/activos/internal/backend"
	"github.com/activos-fijos/activos/internal/credentials"
)

// API defines the backend user endpoints.
type API interface {
	ListUsers(ctx context.Context, params backend.ListParams) (backend.Page[credentials.User], error)
}

// Service handles user business logic.
type Service struct {
	api API
}

// NewService builds Service instance.
func NewService(api API) *Service {
	return &Service{api: api}
}

// ListUsers returns one page of accounts.
func (s *Service) ListUsers(ctx context.Context, params backend.ListParams) ([]User, backend.Meta, error) {
	page, err := s.api.ListUsers(ctx, params)
	if err != nil {
		return nil, backend.Meta{}, err
	}
	out := make([]User, len(page.Data))
	for i, u := range page.Data {
		out[i] = User{User: u}
	}
	return out, page.Meta, nil
}
