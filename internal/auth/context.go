package auth

import (
	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/fieldhub/internal/marketplace"
)

// Context keys set by the session middleware.
const (
	CtxUsername = "username"
	CtxRole     = "role"
	CtxCity     = "city"
)

// SetIdentity stores id on the echo context.
func SetIdentity(c echo.Context, id Identity) {
	c.Set(CtxUsername, id.Username)
	c.Set(CtxRole, string(id.Role))
	c.Set(CtxCity, id.City)
}

// IdentityFrom reads the identity stored by SetIdentity.
func IdentityFrom(c echo.Context) (Identity, bool) {
	username, _ := c.Get(CtxUsername).(string)
	if username == "" {
		return Identity{}, false
	}
	role, _ := c.Get(CtxRole).(string)
	city, _ := c.Get(CtxCity).(string)
	return Identity{Username: username, Role: marketplace.Role(role), City: city}, true
}
