package users

import (
	"strings"

	"github.com/activos-fijos/activos/internal/credentials"
)

// User is an account row of the listing.
type User struct {
	credentials.User
}

// RoleNames lists the names of the account's roles.
func (u User) RoleNames() string {
	names := make([]string, 0, len(u.Roles))
	for _, role := range u.Roles {
		names = append(names, role.Name)
	}
	return strings.Join(names, ", ")
}
