package backend

import (
	"context"

	"github.com/activos-fijos/activos/internal/rbac"
)

// RoleInput creates or updates a role.
type RoleInput struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Permissions []rbac.Permission `json:"permissions"`
}

// ListRoles returns every role.
func (c *Client) ListRoles(ctx context.Context) ([]rbac.Role, error) {
	var roles []rbac.Role
	err := c.get(ctx, "/roles", nil, &roles)
	return roles, err
}

// GetRole returns one role.
func (c *Client) GetRole(ctx context.Context, id int64) (rbac.Role, error) {
	var role rbac.Role
	err := c.get(ctx, pathf("/roles/%s", id), nil, &role)
	return role, err
}

// CreateRole creates a role.
func (c *Client) CreateRole(ctx context.Context, input RoleInput) (rbac.Role, error) {
	var role rbac.Role
	err := c.post(ctx, "/roles", input, &role)
	return role, err
}

// UpdateRole replaces the name, description and permissions of a role.
func (c *Client) UpdateRole(ctx context.Context, id int64, input RoleInput) (rbac.Role, error) {
	var role rbac.Role
	err := c.patch(ctx, pathf("/roles/%s", id), input, &role)
	return role, err
}

// DeleteRole removes a role.
func (c *Client) DeleteRole(ctx context.Context, id int64) error {
	return c.delete(ctx, pathf("/roles/%s", id))
}
