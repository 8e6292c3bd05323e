package roles

import (
	"context"
	"strings"

	"github.com/activos-fijos/activos/internal/backend"
	"github.com/activos-fijos/activos/internal/rbac"
)

// API defines the backend role endpoints.
type API interface {
	ListRoles(ctx context.Context) ([]rbac.Role, error)
	GetRole(ctx context.Context, id int64) (rbac.Role, error)
	CreateRole(ctx context.Context, input backend.RoleInput) (rbac.Role, error)
	UpdateRole(ctx context.Context, id int64, input backend.RoleInput) (rbac.Role, error)
	DeleteRole(ctx context.Context, id int64) error
}

// Service handles role business logic.
type Service struct {
	api API
}

// NewService builds Service instance.
func NewService(api API) *Service {
	return &Service{api: api}
}

// ListRoles returns all roles with their merged tables.
func (s *Service) ListRoles(ctx context.Context) ([]Row, error) {
	roles, err := s.api.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(roles))
	for _, role := range roles {
		rows = append(rows, Row{Role: role, Table: rbac.Merge(role.Permissions)})
	}
	return rows, nil
}

// GetRole returns one role.
func (s *Service) GetRole(ctx context.Context, id int64) (rbac.Role, error) {
	return s.api.GetRole(ctx, id)
}

// CreateRole creates a role.
func (s *Service) CreateRole(ctx context.Context, input backend.RoleInput) (rbac.Role, error) {
	return s.api.CreateRole(ctx, input)
}

// UpdateRole replaces a role definition.
func (s *Service) UpdateRole(ctx context.Context, id int64, input backend.RoleInput) (rbac.Role, error) {
	return s.api.UpdateRole(ctx, id, input)
}

// DeleteRole removes a role.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	return s.api.DeleteRole(ctx, id)
}

// ParsePermissions folds "subject:action" form values into one grant per
// subject.
func ParsePermissions(values []string) []rbac.Permission {
	perms := make([]rbac.Permission, 0, len(values))
	for _, v := range values {
		subject, action, ok := strings.Cut(v, ":")
		if !ok {
			continue
		}
		perms = append(perms, rbac.Permission{Subject: subject, Actions: []string{action}})
	}
	return rbac.Merge(perms).Permissions()
}
