package backend

import (
	"context"

	"github.com/activos-fijos/activos/internal/credentials"
)

// ListUsers returns a page of user accounts.
func (c *Client) ListUsers(ctx context.Context, params ListParams) (Page[credentials.User], error) {
	var page Page[credentials.User]
	err := c.get(ctx, "/users", params.Values(), &page)
	return page, err
}
